package cart

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/settlement-engine/pkg/db/models"
	pkgerrors "github.com/angelmondragon/settlement-engine/pkg/errors"
	"github.com/angelmondragon/settlement-engine/pkg/logger"
)

type repository interface {
	ListByBuyer(ctx context.Context, buyerID uuid.UUID) ([]models.CartItem, error)
	DeleteByBuyer(ctx context.Context, buyerID uuid.UUID) (int64, error)
}

// Service exposes the cart operations checkout needs.
type Service interface {
	Items(ctx context.Context, buyerID uuid.UUID) ([]models.CartItem, error)
	Clear(ctx context.Context, buyerID uuid.UUID) error
}

type service struct {
	repo repository
	logg *logger.Logger
}

func NewService(repo repository, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{repo: repo, logg: logg}, nil
}

func (s *service) Items(ctx context.Context, buyerID uuid.UUID) ([]models.CartItem, error) {
	if buyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer id required")
	}
	items, err := s.repo.ListByBuyer(ctx, buyerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list cart items")
	}
	return items, nil
}

// Clear empties the buyer's cart. Clearing an empty cart succeeds.
func (s *service) Clear(ctx context.Context, buyerID uuid.UUID) error {
	if buyerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "buyer id required")
	}
	removed, err := s.repo.DeleteByBuyer(ctx, buyerID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
	}
	s.logg.Info(s.logg.WithField(ctx, "removed_items", removed), "cart cleared")
	return nil
}
