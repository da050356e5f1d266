package auth

import (
	"context"
	"slices"
)

// User is the authenticated caller attached to a request context.
type User struct {
	ID          int64    `json:"id"`
	Email       string   `json:"email"`
	Name        string   `json:"name"`
	Department  string   `json:"department"`
	Role        string   `json:"role"`
	IsActive    bool     `json:"-"`
	Permissions []string `json:"permissions,omitempty"`
}

func (u *User) HasPermission(permission string) bool {
	return slices.Contains(u.Permissions, permission)
}

func (u *User) HasAnyPermission(permissions ...string) bool {
	for _, p := range permissions {
		if u.HasPermission(p) {
			return true
		}
	}
	return false
}

// HasAnyRole reports whether the user's role is one of roles.
func (u *User) HasAnyRole(roles ...string) bool {
	return u.Role != "" && slices.Contains(roles, u.Role)
}

type ctxKey string

const ContextUserKey ctxKey = "user"

func UserFromContext(ctx context.Context) (*User, bool) {
	u, ok := ctx.Value(ContextUserKey).(*User)
	return u, ok
}

func ContextWithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, ContextUserKey, u)
}
