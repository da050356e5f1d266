package staff

import (
	"context"
	"errors"
	"fmt"
)

type Repository interface {
	GetByID(ctx context.Context, id int64) (*Person, error)
	GetPermissions(ctx context.Context, id int64) ([]string, error)
	ListActive(ctx context.Context) ([]*Person, error)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// GetByID loads a person with their permissions regardless of active state.
func (s *Service) GetByID(ctx context.Context, id int64) (*Person, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get employee by id: %w", err)
	}

	perms, err := s.repo.GetPermissions(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get employee permissions: %w", err)
	}
	p.Permissions = perms

	return p, nil
}

// Resolve returns an active person. Missing and deactivated people both yield ErrNotFound.
func (s *Service) Resolve(ctx context.Context, id int64) (*Person, error) {
	p, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.IsActive {
		return nil, ErrNotFound
	}
	return p, nil
}

func (s *Service) ListActive(ctx context.Context) ([]*Person, error) {
	people, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list active employees: %w", err)
	}
	return people, nil
}
