package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/frahmantamala/kitchen-ops/internal"
	"github.com/frahmantamala/kitchen-ops/internal/auth"
	"github.com/frahmantamala/kitchen-ops/internal/transport"
	"github.com/frahmantamala/kitchen-ops/pkg/logger"
)

type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*auth.User, error)
}

// Authenticate resolves the bearer token into the calling employee and
// attaches it to the request context.
func Authenticate(authenticator Authenticator, lg *slog.Logger) func(http.Handler) http.Handler {
	base := transport.NewBaseHandler(lg)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := transport.BearerToken(r)
			if token == "" {
				base.WriteAppError(w, internal.NewUnauthorizedError("missing bearer token", internal.ErrCodeInvalidToken))
				return
			}

			user, err := authenticator.Authenticate(r.Context(), token)
			if err != nil {
				var appErr *internal.AppError
				if errors.As(err, &appErr) {
					base.WriteAppError(w, appErr)
					return
				}
				base.HandleServiceError(w, err)
				return
			}

			ctx := auth.ContextWithUser(r.Context(), user)
			ctx = internal.ContextWithEmployeeID(ctx, user.ID)
			ctx = logger.With(ctx, "user_id", user.ID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
