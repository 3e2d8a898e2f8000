package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/settlement-engine/pkg/enums"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID  uuid.UUID
	Role    enums.Role
	Email   string
	Subject string
	JTI     string
}

// AccessTokenClaims represents the typed JWT presented by buyers, admins and internal services.
type AccessTokenClaims struct {
	UserID uuid.UUID  `json:"user_id"`
	Role   enums.Role `json:"role"`
	Email  string     `json:"email,omitempty"`
	jwt.RegisteredClaims
}
