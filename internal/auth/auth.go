package auth

import (
	"github.com/golang-jwt/jwt/v5"

	"github.com/frahmantamala/kitchen-ops/internal"
)

// Claims represents JWT token claims
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

type TokenIssuer interface {
	GenerateAccessToken(userID string, email string) (string, error)
}

type TokenValidator interface {
	ValidateToken(tokenString string) (*Claims, error)
}

var (
	ErrInvalidToken = internal.ErrInvalidToken
	ErrTokenExpired = internal.ErrTokenExpired
	ErrUserInactive = internal.ErrUserInactive
)
