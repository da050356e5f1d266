package postgres

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/frahmantamala/kitchen-ops/internal/core/database"
	notificationDatamodel "github.com/frahmantamala/kitchen-ops/internal/core/datamodel/notification"
	"github.com/frahmantamala/kitchen-ops/internal/notification"
)

type NotificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

func (r *NotificationRepository) Create(ctx context.Context, n *notification.Notification) error {
	row := &notificationDatamodel.Notification{
		ID:              n.ID,
		EventID:         n.EventID,
		Type:            n.Type,
		RecipientUserID: n.RecipientUserID,
		RecipientRole:   n.RecipientRole,
		Title:           n.Title,
		Payload:         n.Payload,
		Attempts:        n.Attempts,
		LastError:       n.LastError,
		DeliveredAt:     n.DeliveredAt,
		CreatedAt:       n.CreatedAt,
	}
	if err := database.Conn(ctx, r.db).Create(row).Error; err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	n.ID = row.ID
	n.CreatedAt = row.CreatedAt
	return nil
}

func (r *NotificationRepository) ListUndelivered(ctx context.Context, maxAttempts, limit int) ([]*notification.Notification, error) {
	var rows []notificationDatamodel.Notification
	err := database.Conn(ctx, r.db).
		Where("delivered_at IS NULL AND attempts < ?", maxAttempts).
		Order("created_at ASC, id ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list undelivered notifications: %w", err)
	}

	out := make([]*notification.Notification, 0, len(rows))
	for i := range rows {
		out = append(out, fromRow(&rows[i]))
	}
	return out, nil
}

// ListForRecipient returns notifications addressed to userID or to any of
// roles, newest first.
func (r *NotificationRepository) ListForRecipient(ctx context.Context, userID int64, roles []string, limit int) ([]*notification.Notification, error) {
	var rows []notificationDatamodel.Notification
	q := database.Conn(ctx, r.db)
	if len(roles) > 0 {
		q = q.Where("recipient_user_id = ? OR recipient_role IN ?", userID, roles)
	} else {
		q = q.Where("recipient_user_id = ?", userID)
	}
	err := q.
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list notifications for user %d: %w", userID, err)
	}

	out := make([]*notification.Notification, 0, len(rows))
	for i := range rows {
		out = append(out, fromRow(&rows[i]))
	}
	return out, nil
}

func (r *NotificationRepository) MarkDelivered(ctx context.Context, id string, at time.Time) error {
	res := database.Conn(ctx, r.db).
		Model(&notificationDatamodel.Notification{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"delivered_at": at,
			"attempts":     gorm.Expr("attempts + 1"),
			"last_error":   nil,
			"updated_at":   time.Now().UTC(),
		})
	if res.Error != nil {
		return fmt.Errorf("mark notification delivered: %w", res.Error)
	}
	return nil
}

func (r *NotificationRepository) RecordFailure(ctx context.Context, id string, reason string) error {
	res := database.Conn(ctx, r.db).
		Model(&notificationDatamodel.Notification{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"attempts":   gorm.Expr("attempts + 1"),
			"last_error": reason,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return fmt.Errorf("record notification failure: %w", res.Error)
	}
	return nil
}

func fromRow(row *notificationDatamodel.Notification) *notification.Notification {
	return &notification.Notification{
		ID:              row.ID,
		EventID:         row.EventID,
		Type:            row.Type,
		RecipientUserID: row.RecipientUserID,
		RecipientRole:   row.RecipientRole,
		Title:           row.Title,
		Payload:         row.Payload,
		Attempts:        row.Attempts,
		LastError:       row.LastError,
		DeliveredAt:     row.DeliveredAt,
		CreatedAt:       row.CreatedAt,
	}
}
