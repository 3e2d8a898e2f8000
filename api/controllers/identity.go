package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/settlement-engine/api/middleware"
	"github.com/angelmondragon/settlement-engine/internal/escrow"
	"github.com/angelmondragon/settlement-engine/pkg/enums"
	pkgerrors "github.com/angelmondragon/settlement-engine/pkg/errors"
)

func userIDFromRequest(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(middleware.UserIDFromContext(r.Context()))
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid user context")
	}
	return id, nil
}

func actorFromRequest(r *http.Request) (escrow.Actor, error) {
	id, err := userIDFromRequest(r)
	if err != nil {
		return escrow.Actor{}, err
	}
	role := enums.Role(middleware.RoleFromContext(r.Context()))
	if !role.IsValid() {
		return escrow.Actor{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid role context")
	}
	return escrow.Actor{ID: &id, Role: role}, nil
}
