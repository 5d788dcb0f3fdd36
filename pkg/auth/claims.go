package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/opticore/opticore-backend/pkg/enums"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID   uuid.UUID
	Role     enums.Role
	BranchID *uuid.UUID
	JTI      string
}

// AccessTokenClaims represents the typed JWT issued to clients. BranchID is
// present for staff and customers bound to a home branch; admins carry none.
type AccessTokenClaims struct {
	UserID   uuid.UUID  `json:"user_id"`
	Role     enums.Role `json:"role"`
	BranchID *uuid.UUID `json:"branch_id,omitempty"`
	jwt.RegisteredClaims
}
