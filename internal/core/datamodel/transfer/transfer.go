package transfer

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type TransferRequest struct {
	ID              string            `gorm:"column:id;primaryKey;type:varchar(36)"`
	TaskID          string            `gorm:"column:task_id;not null"`
	TaskType        string            `gorm:"column:task_type;not null"`
	FromUserID      int64             `gorm:"column:from_user_id;not null;index:idx_transfer_from_requested"`
	ToUserID        int64             `gorm:"column:to_user_id;not null;index"`
	Reason          *string           `gorm:"column:reason"`
	Status          string            `gorm:"column:status;not null;index"`
	ResponseMessage *string           `gorm:"column:response_message"`
	RespondedBy     *int64            `gorm:"column:responded_by"`
	Metadata        datatypes.JSONMap `gorm:"column:metadata"`
	RequestedAt     time.Time         `gorm:"column:requested_at;not null;index:idx_transfer_from_requested"`
	RespondedAt     *time.Time        `gorm:"column:responded_at"`
	UpdatedAt       time.Time         `gorm:"column:updated_at"`
}

func (TransferRequest) TableName() string { return "transfer_requests" }

func (t *TransferRequest) BeforeCreate(_ *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if t.RequestedAt.IsZero() {
		t.RequestedAt = now
	}
	t.UpdatedAt = now
	if t.Metadata == nil {
		t.Metadata = datatypes.JSONMap{}
	}
	return nil
}

type PermissionProfile struct {
	ID                     int64                       `gorm:"column:id;primaryKey;autoIncrement"`
	EmployeeID             int64                       `gorm:"column:employee_id;not null;uniqueIndex"`
	DepartmentRestrictions datatypes.JSONSlice[string] `gorm:"column:department_restrictions"`
	MaxTransfersPerDay     int                         `gorm:"column:max_transfers_per_day;not null"`
	RequiresApproval       bool                        `gorm:"column:requires_approval;not null"`
	UpdatedBy              *int64                      `gorm:"column:updated_by"`
	CreatedAt              time.Time                   `gorm:"column:created_at"`
	UpdatedAt              time.Time                   `gorm:"column:updated_at"`
}

func (PermissionProfile) TableName() string { return "transfer_permissions" }

func (p *PermissionProfile) BeforeCreate(_ *gorm.DB) error {
	if p.DepartmentRestrictions == nil {
		p.DepartmentRestrictions = datatypes.JSONSlice[string]{}
	}
	return nil
}
