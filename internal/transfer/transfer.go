package transfer

import (
	"strings"
	"time"

	"github.com/frahmantamala/kitchen-ops/internal/core/events"
)

// TaskType tags the kind of external record a transfer moves. Each known
// type has exactly one reassignment handler registered with the Dispatcher.
type TaskType string

const (
	TaskTypeWorkflow  TaskType = "workflow_task"
	TaskTypeChecklist TaskType = "checklist_item"
	TaskTypeReview    TaskType = "review_task"
	TaskTypeGeneric   TaskType = "generic"
)

var KnownTaskTypes = []TaskType{TaskTypeWorkflow, TaskTypeChecklist, TaskTypeReview, TaskTypeGeneric}

func (t TaskType) Known() bool {
	for _, k := range KnownTaskTypes {
		if t == k {
			return true
		}
	}
	return false
}

type Status string

const (
	StatusPending         Status = "pending"
	StatusPendingApproval Status = "pending_approval"
	StatusAccepted        Status = "accepted"
	StatusDenied          Status = "denied"
	StatusCancelled       Status = "cancelled"
)

var AllStatuses = []Status{StatusPending, StatusPendingApproval, StatusAccepted, StatusDenied, StatusCancelled}

// IsTerminal reports whether no further transition is allowed.
func (s Status) IsTerminal() bool {
	return s == StatusAccepted || s == StatusDenied || s == StatusCancelled
}

func (s Status) IsOpen() bool {
	return s == StatusPending || s == StatusPendingApproval
}

func ParseStatus(raw string) (Status, bool) {
	s := Status(strings.ToLower(strings.TrimSpace(raw)))
	for _, known := range AllStatuses {
		if s == known {
			return s, true
		}
	}
	return "", false
}

type Decision string

const (
	DecisionAccepted Decision = "accepted"
	DecisionDenied   Decision = "denied"
)

func ParseDecision(raw string) (Decision, error) {
	switch d := Decision(strings.ToLower(strings.TrimSpace(raw))); d {
	case DecisionAccepted, DecisionDenied:
		return d, nil
	default:
		return "", ErrInvalidDecision
	}
}

func (d Decision) Status() Status {
	if d == DecisionAccepted {
		return StatusAccepted
	}
	return StatusDenied
}

type Direction string

const (
	DirectionSent     Direction = "sent"
	DirectionReceived Direction = "received"
	DirectionBoth     Direction = "both"
)

func ParseDirection(raw string) (Direction, bool) {
	switch d := Direction(strings.ToLower(strings.TrimSpace(raw))); d {
	case "":
		return DirectionBoth, true
	case DirectionSent, DirectionReceived, DirectionBoth:
		return d, true
	default:
		return "", false
	}
}

type TransferRequest struct {
	ID              string         `json:"id"`
	TaskID          string         `json:"task_id"`
	TaskType        TaskType       `json:"task_type"`
	FromUserID      int64          `json:"from_user_id"`
	ToUserID        int64          `json:"to_user_id"`
	Reason          *string        `json:"reason,omitempty"`
	Status          Status         `json:"status"`
	ResponseMessage *string        `json:"response_message,omitempty"`
	RespondedBy     *int64         `json:"responded_by,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
	RequestedAt     time.Time      `json:"requested_at"`
	RespondedAt     *time.Time     `json:"responded_at,omitempty"`
}

// Involves reports whether id is the sender or the recipient.
func (t *TransferRequest) Involves(id int64) bool {
	return t.FromUserID == id || t.ToUserID == id
}

func (t *TransferRequest) Snapshot() events.TransferSnapshot {
	snap := events.TransferSnapshot{
		TransferID: t.ID,
		TaskID:     t.TaskID,
		TaskType:   string(t.TaskType),
		FromUserID: t.FromUserID,
		ToUserID:   t.ToUserID,
		Status:     string(t.Status),
		Metadata:   t.Metadata,
	}
	if t.Reason != nil {
		snap.Reason = *t.Reason
	}
	if t.ResponseMessage != nil {
		snap.ResponseMessage = *t.ResponseMessage
	}
	if t.RespondedBy != nil {
		snap.RespondedBy = *t.RespondedBy
	}
	return snap
}

// PermissionProfile is the per-employee transfer policy.
type PermissionProfile struct {
	EmployeeID             int64     `json:"employee_id"`
	DepartmentRestrictions []string  `json:"department_restrictions"`
	MaxTransfersPerDay     int       `json:"max_transfers_per_day"`
	RequiresApproval       bool      `json:"requires_approval"`
	UpdatedBy              *int64    `json:"updated_by,omitempty"`
	UpdatedAt              time.Time `json:"updated_at,omitempty"`
	IsDefault              bool      `json:"is_default"`
}

const (
	DefaultMaxTransfersPerDay = 5
	DefaultRequiresApproval   = true
)

// DefaultProfile is the policy applied to anyone without a stored profile.
func DefaultProfile(employeeID int64) PermissionProfile {
	return PermissionProfile{
		EmployeeID:             employeeID,
		DepartmentRestrictions: []string{},
		MaxTransfersPerDay:     DefaultMaxTransfersPerDay,
		RequiresApproval:       DefaultRequiresApproval,
		IsDefault:              true,
	}
}

// AllowsDepartment reports whether a recipient in dept is reachable. An
// empty restriction set allows every department.
func (p PermissionProfile) AllowsDepartment(dept string) bool {
	if len(p.DepartmentRestrictions) == 0 {
		return true
	}
	for _, allowed := range p.DepartmentRestrictions {
		if strings.EqualFold(strings.TrimSpace(allowed), strings.TrimSpace(dept)) {
			return true
		}
	}
	return false
}

// Recipient is a potential transfer target annotated with whether the
// caller's restrictions allow it.
type Recipient struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Department string `json:"department"`
	Role       string `json:"role"`
	Allowed    bool   `json:"allowed"`
	Reason     string `json:"reason,omitempty"`
}
