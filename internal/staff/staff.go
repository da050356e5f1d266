package staff

import (
	"slices"
	"time"

	"github.com/frahmantamala/kitchen-ops/internal"
	userDatamodel "github.com/frahmantamala/kitchen-ops/internal/core/datamodel/user"
)

const (
	PermissionApproveTransfers = "approve_transfers"
	PermissionManageTransfers  = "manage_transfer_permissions"
	PermissionAdmin            = "admin"

	RoleManager = "manager"
	RoleAdmin   = "admin"
)

// Person is a staff member as seen by the directory.
type Person struct {
	ID          int64     `json:"id" db:"id"`
	Email       string    `json:"email" db:"email"`
	Name        string    `json:"name" db:"name"`
	Department  string    `json:"department" db:"department"`
	Role        string    `json:"role" db:"role"`
	Timezone    string    `json:"timezone,omitempty" db:"timezone"`
	IsActive    bool      `json:"is_active" db:"is_active"`
	Permissions []string  `json:"permissions,omitempty" db:"-"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

func (p *Person) HasPermission(permission string) bool {
	return slices.Contains(p.Permissions, permission)
}

func (p *Person) HasAnyPermission(permissions ...string) bool {
	for _, required := range permissions {
		if p.HasPermission(required) {
			return true
		}
	}
	return false
}

func (p *Person) IsManager() bool {
	return p.Role == RoleManager || p.Role == RoleAdmin || p.HasAnyPermission(PermissionApproveTransfers, PermissionAdmin)
}

func (p *Person) IsAdmin() bool {
	return p.Role == RoleAdmin || p.HasPermission(PermissionAdmin)
}

// Location returns the person's own timezone, or nil when unset or unknown.
func (p *Person) Location() *time.Location {
	if p.Timezone == "" {
		return nil
	}
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return nil
	}
	return loc
}

var ErrNotFound = internal.NewNotFoundError("employee not found", internal.ErrCodeEmployeeNotFound)

func FromDataModel(u *userDatamodel.User) *Person {
	return &Person{
		ID:          u.ID,
		Email:       u.Email,
		Name:        u.Name,
		Department:  u.Department,
		Role:        u.Role,
		Timezone:    u.Timezone,
		IsActive:    u.IsActive,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
		Permissions: []string{},
	}
}

func ToDataModel(p *Person) *userDatamodel.User {
	return &userDatamodel.User{
		ID:         p.ID,
		Email:      p.Email,
		Name:       p.Name,
		Department: p.Department,
		Role:       p.Role,
		Timezone:   p.Timezone,
		IsActive:   p.IsActive,
		CreatedAt:  p.CreatedAt,
		UpdatedAt:  p.UpdatedAt,
	}
}
