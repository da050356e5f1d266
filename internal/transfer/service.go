package transfer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/frahmantamala/kitchen-ops/internal/core/events"
	"github.com/frahmantamala/kitchen-ops/internal/staff"
	"github.com/frahmantamala/kitchen-ops/internal/tasks"
)

// Ledger is the durable record of transfer requests.
type Ledger interface {
	DailyCounter
	Create(ctx context.Context, req *TransferRequest) error
	GetByID(ctx context.Context, id string) (*TransferRequest, error)
	// CompareAndSetStatus applies upd only while the row still has status
	// expected. It reports false when another writer got there first.
	CompareAndSetStatus(ctx context.Context, id string, expected Status, upd StatusUpdate) (bool, error)
	ListForUser(ctx context.Context, filter ListFilter) ([]*TransferRequest, error)
	ListByStatus(ctx context.Context, status Status, limit, offset int) ([]*TransferRequest, error)
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type StatusUpdate struct {
	Status          Status
	ResponseMessage *string
	RespondedBy     int64
	RespondedAt     time.Time
}

type ServiceDeps struct {
	Ledger       Ledger
	Profiles     ProfileStore
	Directory    Directory
	Approvals    staff.ApprovalPolicy
	Dispatcher   *Dispatcher
	Emitter      Emitter
	Metrics      *Metrics
	Logger       *slog.Logger
	Location     *time.Location
	ApproverRole string
	Now          func() time.Time
}

// Service drives the transfer lifecycle: propose, respond, cancel.
type Service struct {
	ledger       Ledger
	profiles     ProfileStore
	directory    Directory
	approvals    staff.ApprovalPolicy
	policy       *PolicyEvaluator
	dispatcher   *Dispatcher
	emitter      Emitter
	metrics      *Metrics
	logger       *slog.Logger
	tracer       trace.Tracer
	approverRole string
	now          func() time.Time
}

func NewService(deps ServiceDeps) *Service {
	lg := deps.Logger
	if lg == nil {
		lg = slog.Default()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	approvals := deps.Approvals
	if approvals == nil {
		approvals = staff.NewApprovalPolicy()
	}
	dispatcher := deps.Dispatcher
	if dispatcher == nil {
		dispatcher = NewDispatcher(deps.Emitter, lg)
	}
	role := deps.ApproverRole
	if role == "" {
		role = events.RoleTransferApprover
	}

	return &Service{
		ledger:       deps.Ledger,
		profiles:     deps.Profiles,
		directory:    deps.Directory,
		approvals:    approvals,
		policy:       NewPolicyEvaluator(deps.Directory, deps.Profiles, deps.Ledger, deps.Location),
		dispatcher:   dispatcher,
		emitter:      deps.Emitter,
		metrics:      deps.Metrics,
		logger:       lg,
		tracer:       otel.Tracer(instrumentationScope),
		approverRole: role,
		now:          now,
	}
}

// Propose validates and evaluates a transfer from fromUserID. Rejected
// proposals leave no record behind.
func (s *Service) Propose(ctx context.Context, fromUserID int64, dto ProposeTransferDTO) (req *TransferRequest, err error) {
	ctx, span := s.tracer.Start(ctx, "transfer.Propose", trace.WithAttributes(
		attribute.Int64("transfer.from_user_id", fromUserID),
		attribute.Int64("transfer.to_user_id", dto.ToUserID),
		attribute.String("transfer.task_type", dto.TaskType),
	))
	defer func() { s.endSpan(span, err) }()

	if err = dto.Validate(); err != nil {
		s.logger.Warn("transfer proposal validation failed", "error", err, "from_user_id", fromUserID)
		s.metrics.Rejected(ctx, "propose", err)
		return nil, err
	}

	now := s.now().UTC()
	eval, err := s.policy.Evaluate(ctx, fromUserID, dto.ToUserID, now)
	if err != nil {
		s.logger.Info("transfer proposal rejected",
			"from_user_id", fromUserID,
			"to_user_id", dto.ToUserID,
			"task_id", dto.TaskID,
			"error", err)
		s.metrics.Rejected(ctx, "propose", err)
		return nil, err
	}

	metadata := dto.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}

	req = &TransferRequest{
		TaskID:      dto.TaskID,
		TaskType:    TaskType(dto.TaskType),
		FromUserID:  fromUserID,
		ToUserID:    dto.ToUserID,
		Reason:      dto.Reason,
		Status:      eval.InitialStatus,
		Metadata:    metadata,
		RequestedAt: now,
	}
	if !req.TaskType.Known() {
		s.logger.Warn("proposal names an unrecognised task type, reassignment will be a no-op",
			"task_type", dto.TaskType, "task_id", dto.TaskID)
	}

	if err = s.ledger.Create(ctx, req); err != nil {
		s.logger.Error("failed to create transfer request", "error", err, "from_user_id", fromUserID)
		return nil, err
	}

	s.logger.Info("transfer request created",
		"transfer_id", req.ID,
		"from_user_id", req.FromUserID,
		"to_user_id", req.ToUserID,
		"task_id", req.TaskID,
		"task_type", req.TaskType,
		"status", req.Status)
	s.metrics.Proposed(ctx, req.Status)

	recipient := events.ToUser(req.ToUserID)
	if req.Status == StatusPendingApproval {
		recipient = events.ToRole(s.approverRole)
	}
	s.emit(ctx, events.NewTransferRequestedEvent(recipient, req.Snapshot()))

	return req, nil
}

// Respond resolves a pending request. Acceptance moves the task in the
// same transaction that flips the status.
func (s *Service) Respond(ctx context.Context, id string, responderID int64, dto RespondTransferDTO) (req *TransferRequest, err error) {
	ctx, span := s.tracer.Start(ctx, "transfer.Respond", trace.WithAttributes(
		attribute.String("transfer.id", id),
		attribute.Int64("transfer.responder_id", responderID),
	))
	defer func() {
		if err != nil {
			s.metrics.Rejected(ctx, "respond", err)
		}
		s.endSpan(span, err)
	}()

	decision, err := ParseDecision(dto.Decision)
	if err != nil {
		return nil, err
	}
	if err = dto.Validate(); err != nil {
		return nil, err
	}

	req, err = s.ledger.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Status.IsTerminal() {
		return nil, ErrAlreadyResolved
	}

	if err = s.authorizeResponse(ctx, req, responderID); err != nil {
		s.logger.Warn("transfer response not authorized",
			"transfer_id", id,
			"responder_id", responderID,
			"status", req.Status)
		return nil, err
	}

	now := s.now().UTC()
	newStatus := decision.Status()
	reassignment := tasks.Reassignment{
		TransferID: req.ID,
		TaskID:     req.TaskID,
		TaskType:   string(req.TaskType),
		NewOwner:   req.ToUserID,
		OldOwner:   req.FromUserID,
		Metadata:   req.Metadata,
	}

	var outcome Outcome
	err = s.ledger.WithinTransaction(ctx, func(ctx context.Context) error {
		ok, err := s.ledger.CompareAndSetStatus(ctx, req.ID, req.Status, StatusUpdate{
			Status:          newStatus,
			ResponseMessage: dto.Message,
			RespondedBy:     responderID,
			RespondedAt:     now,
		})
		if err != nil {
			return err
		}
		if !ok {
			return ErrAlreadyResolved
		}

		if newStatus != StatusAccepted {
			return nil
		}

		outcome, err = s.dispatcher.Apply(ctx, reassignment)
		if err != nil {
			s.metrics.Reassignment(ctx, req.TaskType, "failed")
			return NewReassignmentFailed(err)
		}
		return nil
	})
	if err != nil {
		if !errors.Is(err, ErrAlreadyResolved) && !errors.Is(err, ErrReassignmentFailed) {
			s.logger.Error("failed to resolve transfer request", "transfer_id", id, "error", err)
		}
		return nil, err
	}

	previous := req.Status
	req.Status = newStatus
	req.ResponseMessage = dto.Message
	req.RespondedBy = &responderID
	req.RespondedAt = &now

	s.logger.Info("transfer request resolved",
		"transfer_id", req.ID,
		"previous_status", previous,
		"status", req.Status,
		"responder_id", responderID)
	s.metrics.Resolved(ctx, req.Status)

	snap := req.Snapshot()
	s.emit(ctx, events.NewTransferRespondedEvent(events.ToUser(req.FromUserID), snap))
	if responderID != req.ToUserID {
		s.emit(ctx, events.NewTransferRespondedEvent(events.ToUser(req.ToUserID), snap))
	}
	if outcome.Applied {
		s.metrics.Reassignment(ctx, req.TaskType, "applied")
		s.dispatcher.Announce(ctx, reassignment)
	} else if newStatus == StatusAccepted {
		s.metrics.Reassignment(ctx, req.TaskType, "skipped")
	}

	return req, nil
}

// Cancel withdraws an open request. Only the sender may cancel.
func (s *Service) Cancel(ctx context.Context, id string, requesterID int64) (req *TransferRequest, err error) {
	ctx, span := s.tracer.Start(ctx, "transfer.Cancel", trace.WithAttributes(
		attribute.String("transfer.id", id),
		attribute.Int64("transfer.requester_id", requesterID),
	))
	defer func() {
		if err != nil {
			s.metrics.Rejected(ctx, "cancel", err)
		}
		s.endSpan(span, err)
	}()

	req, err = s.ledger.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Status.IsTerminal() {
		return nil, ErrAlreadyResolved
	}
	if req.FromUserID != requesterID {
		return nil, ErrNotAuthorized
	}

	now := s.now().UTC()
	ok, err := s.ledger.CompareAndSetStatus(ctx, req.ID, req.Status, StatusUpdate{
		Status:      StatusCancelled,
		RespondedBy: requesterID,
		RespondedAt: now,
	})
	if err != nil {
		s.logger.Error("failed to cancel transfer request", "transfer_id", id, "error", err)
		return nil, err
	}
	if !ok {
		return nil, ErrAlreadyResolved
	}

	req.Status = StatusCancelled
	req.RespondedBy = &requesterID
	req.RespondedAt = &now

	s.logger.Info("transfer request cancelled", "transfer_id", req.ID, "requester_id", requesterID)
	s.metrics.Resolved(ctx, req.Status)
	s.emit(ctx, events.NewTransferCancelledEvent(events.ToUser(req.ToUserID), req.Snapshot()))

	return req, nil
}

// Get returns a request visible to viewer: its sender, its recipient, or an approver.
func (s *Service) Get(ctx context.Context, id string, viewerID int64) (*TransferRequest, error) {
	req, err := s.ledger.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Involves(viewerID) {
		return req, nil
	}
	viewer, err := s.resolveActor(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	if !s.approvals.IsApprover(viewer) {
		return nil, ErrNotAuthorized
	}
	return req, nil
}

// ListForUser returns requests sent and/or received by userID, newest first.
func (s *Service) ListForUser(ctx context.Context, userID int64, q ListTransfersQuery) ([]*TransferRequest, error) {
	filter, err := q.Normalize(userID)
	if err != nil {
		return nil, err
	}
	reqs, err := s.ledger.ListForUser(ctx, filter)
	if err != nil {
		s.logger.Error("failed to list transfers", "error", err, "user_id", userID)
		return nil, err
	}
	return reqs, nil
}

// PendingApprovals lists requests waiting for approval. Only approvers may see it.
func (s *Service) PendingApprovals(ctx context.Context, approverID int64, limit, offset int) ([]*TransferRequest, error) {
	approver, err := s.resolveActor(ctx, approverID)
	if err != nil {
		return nil, err
	}
	if !s.approvals.IsApprover(approver) {
		return nil, ErrNotAuthorized
	}

	limit, offset = NormalizePage(limit, offset)
	reqs, err := s.ledger.ListByStatus(ctx, StatusPendingApproval, limit, offset)
	if err != nil {
		s.logger.Error("failed to list pending approvals", "error", err)
		return nil, err
	}

	// an approver cannot act on their own request, so don't show it
	out := make([]*TransferRequest, 0, len(reqs))
	for _, r := range reqs {
		if s.approvals.CanApprove(approver, r.FromUserID) {
			out = append(out, r)
		}
	}
	return out, nil
}

// GetPermissions returns the stored profile for employeeID or the default.
// Anyone may read their own; reading another's requires management rights.
func (s *Service) GetPermissions(ctx context.Context, viewerID, employeeID int64) (*PermissionProfile, error) {
	if viewerID != employeeID {
		if err := s.requirePermissionManager(ctx, viewerID); err != nil {
			return nil, err
		}
	}
	profile, err := s.policy.ProfileFor(ctx, employeeID)
	if err != nil {
		s.logger.Error("failed to load permission profile", "error", err, "employee_id", employeeID)
		return nil, err
	}
	return &profile, nil
}

// UpdatePermissions upserts an employee's profile on behalf of an administrator.
func (s *Service) UpdatePermissions(ctx context.Context, adminID, employeeID int64, dto UpdatePermissionsDTO) (*PermissionProfile, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}
	if err := s.requirePermissionManager(ctx, adminID); err != nil {
		return nil, err
	}
	if _, err := s.directory.Resolve(ctx, employeeID); err != nil {
		if errors.Is(err, staff.ErrNotFound) {
			return nil, ErrEmployeeNotFound
		}
		return nil, fmt.Errorf("resolve employee %d: %w", employeeID, err)
	}

	current, err := s.policy.ProfileFor(ctx, employeeID)
	if err != nil {
		return nil, err
	}

	updated := dto.Apply(current)
	updated.UpdatedBy = &adminID
	updated.UpdatedAt = s.now().UTC()

	if err := s.profiles.Upsert(ctx, &updated); err != nil {
		s.logger.Error("failed to update permission profile", "error", err, "employee_id", employeeID)
		return nil, err
	}

	s.logger.Info("permission profile updated",
		"employee_id", employeeID,
		"updated_by", adminID,
		"max_transfers_per_day", updated.MaxTransfersPerDay,
		"requires_approval", updated.RequiresApproval)
	return &updated, nil
}

// BootstrapPermissions stores profiles for employees that have none yet.
// Existing profiles are left untouched. It returns how many were created.
func (s *Service) BootstrapPermissions(ctx context.Context, profiles []PermissionProfile) (int64, error) {
	for i := range profiles {
		if profiles[i].MaxTransfersPerDay < 0 {
			return 0, fmt.Errorf("employee %d: max_transfers_per_day must be >= 0", profiles[i].EmployeeID)
		}
		profiles[i].IsDefault = false
	}
	created, err := s.profiles.InsertMissing(ctx, profiles)
	if err != nil {
		s.logger.Error("failed to bootstrap permission profiles", "error", err)
		return 0, err
	}
	s.logger.Info("permission profiles bootstrapped", "requested", len(profiles), "created", created)
	return created, nil
}

// EligibleRecipients lists every other active employee, annotated with
// whether userID's restrictions would allow a transfer to them.
func (s *Service) EligibleRecipients(ctx context.Context, userID int64) ([]Recipient, error) {
	profile, err := s.policy.ProfileFor(ctx, userID)
	if err != nil {
		return nil, err
	}

	people, err := s.directory.ListActive(ctx)
	if err != nil {
		s.logger.Error("failed to list active employees", "error", err)
		return nil, err
	}

	out := make([]Recipient, 0, len(people))
	for _, p := range people {
		if p.ID == userID {
			continue
		}
		r := Recipient{
			ID:         p.ID,
			Name:       p.Name,
			Department: p.Department,
			Role:       p.Role,
			Allowed:    profile.AllowsDepartment(p.Department),
		}
		if !r.Allowed {
			r.Reason = fmt.Sprintf("transfers to department %q are not allowed", p.Department)
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *Service) authorizeResponse(ctx context.Context, req *TransferRequest, responderID int64) error {
	switch req.Status {
	case StatusPending:
		if responderID != req.ToUserID {
			return ErrNotAuthorized
		}
		return nil
	case StatusPendingApproval:
		responder, err := s.resolveActor(ctx, responderID)
		if err != nil {
			return err
		}
		if !s.approvals.CanApprove(responder, req.FromUserID) {
			return ErrNotAuthorized
		}
		return nil
	default:
		return ErrAlreadyResolved
	}
}

// resolveActor loads the caller; an unknown caller is simply not authorized.
func (s *Service) resolveActor(ctx context.Context, id int64) (*staff.Person, error) {
	p, err := s.directory.Resolve(ctx, id)
	if err != nil {
		if errors.Is(err, staff.ErrNotFound) {
			return nil, ErrNotAuthorized
		}
		return nil, fmt.Errorf("resolve employee %d: %w", id, err)
	}
	return p, nil
}

func (s *Service) requirePermissionManager(ctx context.Context, id int64) error {
	p, err := s.resolveActor(ctx, id)
	if err != nil {
		return err
	}
	if !p.IsAdmin() && !p.HasPermission(staff.PermissionManageTransfers) && !p.IsManager() {
		return ErrNotAuthorized
	}
	return nil
}

func (s *Service) emit(ctx context.Context, evt *events.TransferEvent) {
	if s.emitter == nil {
		return
	}
	if err := s.emitter.Publish(ctx, evt); err != nil {
		s.logger.Error("failed to emit transfer event",
			"event_type", evt.EventType(),
			"transfer_id", evt.Transfer.TransferID,
			"error", err)
	}
}

func (s *Service) endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
