package rest

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"

	"github.com/frahmantamala/kitchen-ops/internal/notification"
	"github.com/frahmantamala/kitchen-ops/internal/staff"
	"github.com/frahmantamala/kitchen-ops/internal/transfer"
	"github.com/frahmantamala/kitchen-ops/internal/transport/middleware"
	"github.com/frahmantamala/kitchen-ops/internal/transport/openapi"
	"github.com/frahmantamala/kitchen-ops/internal/transport/swagger"
)

const APIPrefix = "/api/v1"

type Dependencies struct {
	DB                  *sql.DB
	Authenticator       middleware.Authenticator
	Validator           *openapi.Validator
	OpenAPIDocument     []byte
	AllowedOrigins      string
	StaffHandler        *staff.Handler
	TransferHandler     *transfer.Handler
	NotificationHandler *notification.Handler
	Logger              *slog.Logger
}

func RegisterAllRoutes(router *chi.Mux, deps Dependencies) {
	healthHandler := NewHealthHandler(deps.DB)

	router.Use(middleware.CORS(deps.AllowedOrigins))
	router.Use(middleware.RequestID)
	router.Use(middleware.RecoveryMiddleware(deps.Logger))
	router.Use(middleware.LoggingMiddleware(deps.Logger))

	if len(deps.OpenAPIDocument) > 0 {
		router.Get("/openapi.yml", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/yaml")
			_, _ = w.Write(deps.OpenAPIDocument)
		})
		router.Handle("/swagger/*", swagger.Handler("/openapi.yml"))
	}

	router.Route(APIPrefix, func(r chi.Router) {
		r.Get("/health", healthHandler.healthCheckHandler)
		r.Get("/ping", healthHandler.pingHandler)

		r.Group(func(pr chi.Router) {
			pr.Use(middleware.Authenticate(deps.Authenticator, deps.Logger))
			if deps.Validator != nil {
				pr.Use(deps.Validator.Middleware)
			}

			if deps.StaffHandler != nil {
				pr.Get("/users/me", deps.StaffHandler.GetCurrentUser)
			}
			if deps.NotificationHandler != nil {
				pr.Get("/notifications", deps.NotificationHandler.ListMine)
			}
			if deps.TransferHandler != nil {
				deps.TransferHandler.Routes(pr)
			}

			if deps.StaffHandler != nil {
				pr.Group(func(ar chi.Router) {
					ar.Use(middleware.RequireRoleOrPermission(deps.Logger,
						[]string{staff.RoleAdmin, staff.RoleManager},
						staff.PermissionAdmin, staff.PermissionManageTransfers, staff.PermissionApproveTransfers))
					ar.Get("/staff", deps.StaffHandler.ListActive)
				})
			}
		})
	})
}
