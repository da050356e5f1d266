package transfer

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"

	"github.com/frahmantamala/kitchen-ops/internal"
	"github.com/frahmantamala/kitchen-ops/internal/auth"
	"github.com/frahmantamala/kitchen-ops/internal/transport"
	"github.com/frahmantamala/kitchen-ops/pkg/logger"
)

type ServiceAPI interface {
	Propose(ctx context.Context, fromUserID int64, dto ProposeTransferDTO) (*TransferRequest, error)
	Respond(ctx context.Context, id string, responderID int64, dto RespondTransferDTO) (*TransferRequest, error)
	Cancel(ctx context.Context, id string, requesterID int64) (*TransferRequest, error)
	Get(ctx context.Context, id string, viewerID int64) (*TransferRequest, error)
	ListForUser(ctx context.Context, userID int64, q ListTransfersQuery) ([]*TransferRequest, error)
	PendingApprovals(ctx context.Context, approverID int64, limit, offset int) ([]*TransferRequest, error)
	GetPermissions(ctx context.Context, viewerID, employeeID int64) (*PermissionProfile, error)
	UpdatePermissions(ctx context.Context, adminID, employeeID int64, dto UpdatePermissionsDTO) (*PermissionProfile, error)
	EligibleRecipients(ctx context.Context, userID int64) ([]Recipient, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(service ServiceAPI) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     service,
	}
}

func (h *Handler) caller(w http.ResponseWriter, r *http.Request) (*auth.User, bool) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok || user == nil {
		h.WriteAppError(w, internal.NewUnauthorizedError("authentication required", internal.ErrCodeInvalidToken))
		return nil, false
	}
	return user, true
}

// Propose handles POST /transfers
func (h *Handler) Propose(w http.ResponseWriter, r *http.Request) {
	user, ok := h.caller(w, r)
	if !ok {
		return
	}

	var dto ProposeTransferDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	req, err := h.Service.Propose(r.Context(), user.ID, dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	logger.From(r.Context()).Info("transfer proposed",
		"transfer_id", req.ID,
		"task_id", req.TaskID,
		"to_user_id", req.ToUserID,
		"status", req.Status)

	h.WriteJSON(w, http.StatusCreated, req)
}

// List handles GET /transfers
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	user, ok := h.caller(w, r)
	if !ok {
		return
	}

	limit, offset, err := h.page(r)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	q := ListTransfersQuery{
		Direction: r.URL.Query().Get("direction"),
		Status:    r.URL.Query().Get("status"),
		Limit:     limit,
		Offset:    offset,
	}
	items, err := h.Service.ListForUser(r.Context(), user.ID, q)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	limit, offset = NormalizePage(limit, offset)
	h.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"transfers": items,
		"limit":     limit,
		"offset":    offset,
	})
}

// Get handles GET /transfers/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	user, ok := h.caller(w, r)
	if !ok {
		return
	}

	req, err := h.Service.Get(r.Context(), chi.URLParam(r, "id"), user.ID)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, req)
}

// Respond handles POST /transfers/{id}/respond
func (h *Handler) Respond(w http.ResponseWriter, r *http.Request) {
	user, ok := h.caller(w, r)
	if !ok {
		return
	}

	var dto RespondTransferDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	req, err := h.Service.Respond(r.Context(), chi.URLParam(r, "id"), user.ID, dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	logger.From(r.Context()).Info("transfer resolved",
		"transfer_id", req.ID,
		"status", req.Status)

	h.WriteJSON(w, http.StatusOK, req)
}

// Cancel handles POST /transfers/{id}/cancel
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	user, ok := h.caller(w, r)
	if !ok {
		return
	}

	req, err := h.Service.Cancel(r.Context(), chi.URLParam(r, "id"), user.ID)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, req)
}

// PendingApprovals handles GET /transfers/approvals
func (h *Handler) PendingApprovals(w http.ResponseWriter, r *http.Request) {
	user, ok := h.caller(w, r)
	if !ok {
		return
	}

	limit, offset, err := h.page(r)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	items, err := h.Service.PendingApprovals(r.Context(), user.ID, limit, offset)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	limit, offset = NormalizePage(limit, offset)
	h.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"transfers": items,
		"limit":     limit,
		"offset":    offset,
	})
}

// Recipients handles GET /transfers/recipients
func (h *Handler) Recipients(w http.ResponseWriter, r *http.Request) {
	user, ok := h.caller(w, r)
	if !ok {
		return
	}

	recipients, err := h.Service.EligibleRecipients(r.Context(), user.ID)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"recipients": recipients,
	})
}

// MyPermissions handles GET /transfer-permissions/me
func (h *Handler) MyPermissions(w http.ResponseWriter, r *http.Request) {
	user, ok := h.caller(w, r)
	if !ok {
		return
	}

	profile, err := h.Service.GetPermissions(r.Context(), user.ID, user.ID)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, profile)
}

// GetPermissions handles GET /transfer-permissions/{employeeID}
func (h *Handler) GetPermissions(w http.ResponseWriter, r *http.Request) {
	user, ok := h.caller(w, r)
	if !ok {
		return
	}

	employeeID, err := h.ParseIDParam(chi.URLParam(r, "employeeID"), "employee_id")
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	profile, err := h.Service.GetPermissions(r.Context(), user.ID, employeeID)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, profile)
}

// UpdatePermissions handles PUT /transfer-permissions/{employeeID}
func (h *Handler) UpdatePermissions(w http.ResponseWriter, r *http.Request) {
	user, ok := h.caller(w, r)
	if !ok {
		return
	}

	employeeID, err := h.ParseIDParam(chi.URLParam(r, "employeeID"), "employee_id")
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	var dto UpdatePermissionsDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	profile, err := h.Service.UpdatePermissions(r.Context(), user.ID, employeeID, dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	logger.From(r.Context()).Info("transfer permissions updated",
		"employee_id", employeeID,
		"max_transfers_per_day", profile.MaxTransfersPerDay,
		"requires_approval", profile.RequiresApproval)

	h.WriteJSON(w, http.StatusOK, profile)
}

func (h *Handler) page(r *http.Request) (int, int, error) {
	limit, offset := 0, 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return 0, 0, internal.NewValidationFieldError("limit", "limit must be a non-negative integer", internal.ErrCodeValidationFailed)
		}
		limit = n
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return 0, 0, internal.NewValidationFieldError("offset", "offset must be a non-negative integer", internal.ErrCodeValidationFailed)
		}
		offset = n
	}
	return limit, offset, nil
}

// Routes mounts the transfer endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/transfers", func(tr chi.Router) {
		tr.Post("/", h.Propose)
		tr.Get("/", h.List)
		tr.Get("/approvals", h.PendingApprovals)
		tr.Get("/recipients", h.Recipients)
		tr.Get("/{id}", h.Get)
		tr.Post("/{id}/respond", h.Respond)
		tr.Post("/{id}/cancel", h.Cancel)
	})

	r.Route("/transfer-permissions", func(pr chi.Router) {
		pr.Get("/me", h.MyPermissions)
		pr.Get("/{employeeID}", h.GetPermissions)
		pr.Put("/{employeeID}", h.UpdatePermissions)
	})
}
