package auth

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "kitchen-ops"

// RSATokenManager signs access tokens with a private key and verifies them
// with the matching public key. A manager without a private key can only verify.
type RSATokenManager struct {
	PrivateKey     *rsa.PrivateKey
	PublicKey      *rsa.PublicKey
	AccessTokenTTL time.Duration
	now            func() time.Time
}

func NewRSATokenManager(private *rsa.PrivateKey, public *rsa.PublicKey, ttl time.Duration) *RSATokenManager {
	if public == nil && private != nil {
		public = &private.PublicKey
	}
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &RSATokenManager{
		PrivateKey:     private,
		PublicKey:      public,
		AccessTokenTTL: ttl,
		now:            time.Now,
	}
}

// GenerateAccessToken creates a new access token
func (m *RSATokenManager) GenerateAccessToken(userID string, email string) (string, error) {
	if m.PrivateKey == nil {
		return "", errors.New("token signing is not configured")
	}

	now := m.now()
	claims := &Claims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.AccessTokenTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	return token.SignedString(m.PrivateKey)
}

// ValidateToken validates a JWT token and returns claims
func (m *RSATokenManager) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.PublicKey, nil
	}, jwt.WithIssuer(issuer), jwt.WithTimeFunc(m.now))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, ErrInvalidToken
}
