package transfer

import (
	"errors"

	"github.com/frahmantamala/kitchen-ops/internal"
)

var (
	ErrSameParty       = internal.NewValidationError("cannot transfer a task to yourself", internal.ErrCodeSameParty)
	ErrUnknownParty    = internal.NewValidationError("employee does not exist or is inactive", internal.ErrCodeUnknownParty)
	ErrInvalidDecision = internal.NewValidationError("decision must be either 'accepted' or 'denied'", internal.ErrCodeInvalidDecision)
	ErrInvalidTaskType = internal.NewValidationError("task_type is malformed", internal.ErrCodeInvalidTaskType)

	ErrDailyLimitExceeded   = internal.NewPolicyError("daily transfer limit reached", internal.ErrCodeDailyLimitExceeded)
	ErrDepartmentNotAllowed = internal.NewPolicyError("transfers to this department are not allowed", internal.ErrCodeDepartmentNotAllowed)

	ErrTransferNotFound = internal.NewNotFoundError("transfer request not found", internal.ErrCodeTransferNotFound)
	ErrEmployeeNotFound = internal.NewNotFoundError("employee not found", internal.ErrCodeEmployeeNotFound)
	ErrNotAuthorized    = internal.NewForbiddenError("not authorized to act on this transfer", internal.ErrCodeNotAuthorized)
	ErrAlreadyResolved  = internal.NewConflictError("transfer request has already been resolved", internal.ErrCodeAlreadyResolved)

	ErrReassignmentFailed = internal.NewConflictError("task reassignment failed", internal.ErrCodeReassignmentFailed)

	// ErrProfileNotFound is internal to the store contract; callers fall back to DefaultProfile.
	ErrProfileNotFound = errors.New("permission profile not found")
)

func NewUnknownParty(employeeID int64) error {
	return ErrUnknownParty.WithDetails(map[string]any{"employee_id": employeeID})
}

func NewDailyLimitExceeded(limit int) error {
	return ErrDailyLimitExceeded.WithDetails(map[string]any{"limit": limit})
}

func NewDepartmentNotAllowed(department string) error {
	return ErrDepartmentNotAllowed.WithDetails(map[string]any{"department": department})
}

func NewReassignmentFailed(cause error) error {
	return ErrReassignmentFailed.
		WithDetails(map[string]any{"reason": cause.Error()}).
		WithCause(cause)
}
