package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/frahmantamala/kitchen-ops/internal/staff"
)

const personColumns = `id, email, name, COALESCE(department, '') AS department, COALESCE(role, '') AS role,
	COALESCE(timezone, '') AS timezone, is_active, created_at, updated_at`

// StaffRepository reads the employee directory with hand-written queries.
type StaffRepository struct {
	db *sqlx.DB
}

func NewStaffRepository(db *sqlx.DB) *StaffRepository {
	return &StaffRepository{db: db}
}

func (r *StaffRepository) GetByID(ctx context.Context, id int64) (*staff.Person, error) {
	var p staff.Person
	query := r.db.Rebind(`SELECT ` + personColumns + ` FROM users WHERE id = ?`)
	if err := r.db.GetContext(ctx, &p, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, staff.ErrNotFound
		}
		return nil, fmt.Errorf("get employee: %w", err)
	}
	return &p, nil
}

func (r *StaffRepository) GetPermissions(ctx context.Context, id int64) ([]string, error) {
	perms := []string{}
	query := r.db.Rebind(`
SELECT p.name FROM user_permissions up
JOIN permissions p ON up.permission_id = p.id
WHERE up.user_id = ?
ORDER BY p.name`)
	if err := r.db.SelectContext(ctx, &perms, query, id); err != nil {
		return nil, fmt.Errorf("get permissions: %w", err)
	}
	return perms, nil
}

func (r *StaffRepository) ListActive(ctx context.Context) ([]*staff.Person, error) {
	people := []*staff.Person{}
	query := `SELECT ` + personColumns + ` FROM users WHERE is_active = TRUE ORDER BY name, id`
	if err := r.db.SelectContext(ctx, &people, query); err != nil {
		return nil, fmt.Errorf("list active employees: %w", err)
	}
	return people, nil
}
