package transfer

import (
	"regexp"

	"github.com/frahmantamala/kitchen-ops/internal"
	"github.com/frahmantamala/kitchen-ops/internal/core/common/validation"
)

const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

var taskTypePattern = regexp.MustCompile(`^[a-z][a-z0-9_]{0,63}$`)

// ProposeTransferDTO is the payload for POST /transfers. The sender is the caller.
type ProposeTransferDTO struct {
	TaskID   string         `json:"task_id"`
	TaskType string         `json:"task_type"`
	ToUserID int64          `json:"to_user_id"`
	Reason   *string        `json:"reason,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

func (dto ProposeTransferDTO) Validate() error {
	v := validation.NewValidator()
	v.Field("task_id", dto.TaskID).Required().MaxLength(128)
	v.Field("task_type", dto.TaskType).Required().Custom(func(value interface{}) *internal.AppError {
		s, _ := value.(string)
		if s != "" && !taskTypePattern.MatchString(s) {
			return internal.NewValidationFieldError("task_type", "task_type must be a lowercase identifier", internal.ErrCodeInvalidTaskType)
		}
		return nil
	})
	v.Field("to_user_id", dto.ToUserID).Required()
	v.Field("reason", dto.Reason).MaxLength(1000)
	if err := v.Validate(); err != nil {
		return err
	}
	return nil
}

type RespondTransferDTO struct {
	Decision string  `json:"decision"`
	Message  *string `json:"message,omitempty"`
}

func (dto RespondTransferDTO) Validate() error {
	v := validation.NewValidator()
	v.Field("message", dto.Message).MaxLength(1000)
	if err := v.Validate(); err != nil {
		return err
	}
	return nil
}

type ListTransfersQuery struct {
	Direction string
	Status    string
	Limit     int
	Offset    int
}

// ListFilter is the normalised query handed to the ledger.
type ListFilter struct {
	UserID    int64
	Direction Direction
	Status    *Status
	Limit     int
	Offset    int
}

func (q ListTransfersQuery) Normalize(userID int64) (ListFilter, error) {
	dir, ok := ParseDirection(q.Direction)
	if !ok {
		return ListFilter{}, internal.NewValidationFieldError("direction", "direction must be one of: sent, received, both", internal.ErrCodeValidationFailed)
	}

	filter := ListFilter{UserID: userID, Direction: dir, Limit: q.Limit, Offset: q.Offset}
	if q.Status != "" {
		status, ok := ParseStatus(q.Status)
		if !ok {
			return ListFilter{}, internal.NewValidationFieldError("status", "unknown status filter", internal.ErrCodeValidationFailed)
		}
		filter.Status = &status
	}

	filter.Limit, filter.Offset = NormalizePage(q.Limit, q.Offset)
	return filter, nil
}

func NormalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// UpdatePermissionsDTO carries a partial profile update; nil fields keep their current value.
type UpdatePermissionsDTO struct {
	DepartmentRestrictions *[]string `json:"department_restrictions,omitempty"`
	MaxTransfersPerDay     *int      `json:"max_transfers_per_day,omitempty"`
	RequiresApproval       *bool     `json:"requires_approval,omitempty"`
}

func (dto UpdatePermissionsDTO) Validate() error {
	v := validation.NewValidator()
	v.Field("max_transfers_per_day", dto.MaxTransfersPerDay).MinInt(0, internal.ErrCodeValidationFailed)
	if dto.DepartmentRestrictions != nil {
		for _, dept := range *dto.DepartmentRestrictions {
			v.Field("department_restrictions", dept).Required().MaxLength(64)
		}
	}
	if err := v.Validate(); err != nil {
		return err
	}
	return nil
}

// Apply merges the update onto base.
func (dto UpdatePermissionsDTO) Apply(base PermissionProfile) PermissionProfile {
	out := base
	if dto.DepartmentRestrictions != nil {
		out.DepartmentRestrictions = append([]string{}, (*dto.DepartmentRestrictions)...)
	}
	if dto.MaxTransfersPerDay != nil {
		out.MaxTransfersPerDay = *dto.MaxTransfersPerDay
	}
	if dto.RequiresApproval != nil {
		out.RequiresApproval = *dto.RequiresApproval
	}
	out.IsDefault = false
	return out
}
