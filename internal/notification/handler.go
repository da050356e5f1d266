package notification

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/frahmantamala/kitchen-ops/internal/auth"
	"github.com/frahmantamala/kitchen-ops/internal/core/events"
	"github.com/frahmantamala/kitchen-ops/internal/staff"
	"github.com/frahmantamala/kitchen-ops/internal/transport"
	"github.com/frahmantamala/kitchen-ops/pkg/logger"
)

type Lister interface {
	ListForRecipient(ctx context.Context, userID int64, roles []string, limit int) ([]*Notification, error)
}

// Handler serves the caller's notification feed. Approvers also see rows
// addressed to ApproverRole.
type Handler struct {
	*transport.BaseHandler
	Notifications Lister
	Approvals     staff.ApprovalPolicy
	ApproverRole  string
}

func NewHandler(notifications Lister, approvals staff.ApprovalPolicy, approverRole string) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	if approvals == nil {
		approvals = staff.NewApprovalPolicy()
	}
	if approverRole == "" {
		approverRole = events.RoleTransferApprover
	}
	return &Handler{
		BaseHandler:   transport.NewBaseHandler(lg),
		Notifications: notifications,
		Approvals:     approvals,
		ApproverRole:  approverRole,
	}
}

// ListMine handles GET /notifications
func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.UserFromContext(r.Context())
	if !ok || caller == nil {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			h.WriteError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, 200)
	}

	var roles []string
	if h.Approvals.IsApprover(&staff.Person{ID: caller.ID, Role: caller.Role, IsActive: true, Permissions: caller.Permissions}) {
		roles = []string{h.ApproverRole}
	}

	items, err := h.Notifications.ListForRecipient(r.Context(), caller.ID, roles, limit)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"notifications": items,
	})
}
