package notification

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Notification struct {
	ID              string            `gorm:"column:id;primaryKey;type:varchar(36)"`
	EventID         string            `gorm:"column:event_id;not null;index"`
	Type            string            `gorm:"column:type;not null"`
	RecipientUserID *int64            `gorm:"column:recipient_user_id;index"`
	RecipientRole   *string           `gorm:"column:recipient_role"`
	Title           string            `gorm:"column:title;not null"`
	Payload         datatypes.JSONMap `gorm:"column:payload"`
	Attempts        int               `gorm:"column:attempts;not null"`
	LastError       *string           `gorm:"column:last_error"`
	DeliveredAt     *time.Time        `gorm:"column:delivered_at;index"`
	CreatedAt       time.Time         `gorm:"column:created_at"`
	UpdatedAt       time.Time         `gorm:"column:updated_at"`
}

func (Notification) TableName() string { return "notifications" }

func (n *Notification) BeforeCreate(_ *gorm.DB) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if n.CreatedAt.IsZero() {
		n.CreatedAt = now
	}
	n.UpdatedAt = now
	if n.Payload == nil {
		n.Payload = datatypes.JSONMap{}
	}
	return nil
}
