package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
)

var ErrUserNotFound = errors.New("user not found")

type UserLoader interface {
	GetUserWithPermissions(ctx context.Context, userID int64) (*User, error)
}

type ServiceAPI interface {
	Authenticate(ctx context.Context, token string) (*User, error)
	IssueToken(ctx context.Context, userID int64) (string, error)
}

// Service resolves bearer tokens into active users.
type Service struct {
	users  UserLoader
	tokens interface {
		TokenIssuer
		TokenValidator
	}
}

func NewService(users UserLoader, tokens *RSATokenManager) *Service {
	return &Service{users: users, tokens: tokens}
}

func (s *Service) Authenticate(ctx context.Context, token string) (*User, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}

	claims, err := s.tokens.ValidateToken(token)
	if err != nil {
		return nil, err
	}

	userID, err := strconv.ParseInt(claims.UserID, 10, 64)
	if err != nil || userID <= 0 {
		return nil, ErrInvalidToken
	}

	user, err := s.users.GetUserWithPermissions(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("load user %d: %w", userID, err)
	}
	if !user.IsActive {
		return nil, ErrUserInactive
	}
	return user, nil
}

// IssueToken signs an access token for an active user.
func (s *Service) IssueToken(ctx context.Context, userID int64) (string, error) {
	user, err := s.users.GetUserWithPermissions(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("load user %d: %w", userID, err)
	}
	if !user.IsActive {
		return "", ErrUserInactive
	}
	return s.tokens.GenerateAccessToken(strconv.FormatInt(user.ID, 10), user.Email)
}
