package notification

import (
	"context"
	"time"
)

// Notification is one recorded event addressed to an employee or a role.
type Notification struct {
	ID              string         `json:"id"`
	EventID         string         `json:"event_id"`
	Type            string         `json:"type"`
	RecipientUserID *int64         `json:"recipient_user_id,omitempty"`
	RecipientRole   *string        `json:"recipient_role,omitempty"`
	Title           string         `json:"title"`
	Payload         map[string]any `json:"payload"`
	Attempts        int            `json:"attempts"`
	LastError       *string        `json:"last_error,omitempty"`
	DeliveredAt     *time.Time     `json:"delivered_at,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
}

func (n *Notification) Delivered() bool {
	return n.DeliveredAt != nil
}

type Repository interface {
	Create(ctx context.Context, n *Notification) error
	// ListUndelivered returns the oldest undelivered rows with fewer than maxAttempts attempts.
	ListUndelivered(ctx context.Context, maxAttempts, limit int) ([]*Notification, error)
	MarkDelivered(ctx context.Context, id string, at time.Time) error
	RecordFailure(ctx context.Context, id string, reason string) error
}
