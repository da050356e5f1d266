package notification

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/frahmantamala/kitchen-ops/internal/core/events"
)

// Recorder persists every transfer event it receives as a notification row.
type Recorder struct {
	repo   Repository
	logger *slog.Logger
}

func NewRecorder(repo Repository, logger *slog.Logger) *Recorder {
	return &Recorder{
		repo:   repo,
		logger: logger,
	}
}

func (r *Recorder) HandleTransferEvent(ctx context.Context, event events.Event) error {
	transferEvent, ok := event.(*events.TransferEvent)
	if !ok {
		r.logger.Error("invalid event type for notification recorder", "event_type", event.EventType())
		return fmt.Errorf("expected TransferEvent, got %T", event)
	}

	n := &Notification{
		EventID: transferEvent.EventID(),
		Type:    transferEvent.EventType(),
		Title:   transferEvent.Title,
		Payload: transferEvent.Data,
	}
	if transferEvent.Recipient.UserID != 0 {
		id := transferEvent.Recipient.UserID
		n.RecipientUserID = &id
	}
	if transferEvent.Recipient.Role != "" {
		role := transferEvent.Recipient.Role
		n.RecipientRole = &role
	}

	if err := r.repo.Create(ctx, n); err != nil {
		return fmt.Errorf("record notification for event %s: %w", transferEvent.EventID(), err)
	}

	r.logger.Debug("notification recorded",
		"notification_id", n.ID,
		"event_type", n.Type,
		"transfer_id", transferEvent.Transfer.TransferID)
	return nil
}

func (r *Recorder) RegisterEventHandlers(eventBus *events.EventBus) {
	types := []string{
		events.EventTypeTransferRequested,
		events.EventTypeTransferResponded,
		events.EventTypeTransferCancelled,
		events.EventTypeTaskTransferred,
	}
	for _, t := range types {
		eventBus.Subscribe(t, r.HandleTransferEvent)
	}

	r.logger.Info("notification event handlers registered", "handlers", types)
}
