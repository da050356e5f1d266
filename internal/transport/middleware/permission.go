package middleware

import (
	"log/slog"
	"net/http"

	"github.com/frahmantamala/kitchen-ops/internal"
	"github.com/frahmantamala/kitchen-ops/internal/auth"
	"github.com/frahmantamala/kitchen-ops/internal/transport"
)

// RequirePermissions admits callers holding any of the given permissions.
func RequirePermissions(lg *slog.Logger, permissions ...string) func(http.Handler) http.Handler {
	return RequireRoleOrPermission(lg, nil, permissions...)
}

// RequireRoleOrPermission admits callers whose role is in roles or who hold
// any of the given permissions.
func RequireRoleOrPermission(lg *slog.Logger, roles []string, permissions ...string) func(http.Handler) http.Handler {
	base := transport.NewBaseHandler(lg)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := auth.UserFromContext(r.Context())
			if !ok || user == nil {
				base.WriteAppError(w, internal.NewUnauthorizedError("authentication required", internal.ErrCodeInvalidToken))
				return
			}

			if !user.HasAnyRole(roles...) && !user.HasAnyPermission(permissions...) {
				base.Logger.Warn("access denied: user lacks required permissions",
					"user_id", user.ID,
					"role", user.Role,
					"required_roles", roles,
					"required_permissions", permissions,
					"user_permissions", user.Permissions)
				base.WriteAppError(w, internal.ErrUnauthorizedAccess)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
