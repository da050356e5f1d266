package staff

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/frahmantamala/kitchen-ops/internal/auth"
	"github.com/frahmantamala/kitchen-ops/internal/transport"
	"github.com/frahmantamala/kitchen-ops/pkg/logger"
)

type ServiceAPI interface {
	GetByID(ctx context.Context, id int64) (*Person, error)
	ListActive(ctx context.Context) ([]*Person, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(svc ServiceAPI) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     svc,
	}
}

// GetCurrentUser handles GET /users/me
func (h *Handler) GetCurrentUser(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.UserFromContext(r.Context())
	if !ok || caller == nil {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	p, err := h.Service.GetByID(r.Context(), caller.ID)
	if err != nil {
		h.Logger.Error("GetCurrentUser: lookup failed", "user_id", caller.ID, "error", err)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, p)
}

// ListActive handles GET /staff
func (h *Handler) ListActive(w http.ResponseWriter, r *http.Request) {
	people, err := h.Service.ListActive(r.Context())
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"staff": people,
	})
}
