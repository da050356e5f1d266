package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/frahmantamala/kitchen-ops/internal/auth"
)

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

type userRow struct {
	ID         int64  `db:"id"`
	Email      string `db:"email"`
	Name       string `db:"name"`
	Department string `db:"department"`
	Role       string `db:"role"`
	IsActive   bool   `db:"is_active"`
}

func (r *Repository) GetUserWithPermissions(ctx context.Context, userID int64) (*auth.User, error) {
	var row userRow
	query := r.db.Rebind(`SELECT id, email, name, COALESCE(department, '') AS department,
		COALESCE(role, '') AS role, is_active
		FROM users WHERE id = ?`)
	if err := r.db.GetContext(ctx, &row, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, auth.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	var permissions []string
	permQuery := r.db.Rebind(`SELECT p.name
		FROM permissions p
		JOIN user_permissions up ON p.id = up.permission_id
		WHERE up.user_id = ?
		ORDER BY p.name`)
	if err := r.db.SelectContext(ctx, &permissions, permQuery, userID); err != nil {
		return nil, fmt.Errorf("get user permissions: %w", err)
	}

	return &auth.User{
		ID:          row.ID,
		Email:       row.Email,
		Name:        row.Name,
		Department:  row.Department,
		Role:        row.Role,
		IsActive:    row.IsActive,
		Permissions: permissions,
	}, nil
}
