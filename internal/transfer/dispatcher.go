package transfer

import (
	"context"
	"log/slog"
	"sync"

	"github.com/frahmantamala/kitchen-ops/internal/core/events"
	"github.com/frahmantamala/kitchen-ops/internal/tasks"
)

// Emitter publishes notification events. Failures are the emitter's problem;
// callers log and move on.
type Emitter interface {
	Publish(ctx context.Context, event events.Event) error
}

// Outcome reports what Apply did. Applied is false for no-op task types.
type Outcome struct {
	Applied bool
}

// Dispatcher routes a reassignment to the handler registered for its task
// type. Adding a task type means registering one more handler.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[TaskType]tasks.Store
	emitter  Emitter
	logger   *slog.Logger
}

func NewDispatcher(emitter Emitter, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		handlers: make(map[TaskType]tasks.Store),
		emitter:  emitter,
		logger:   logger,
	}
}

func (d *Dispatcher) Register(taskType TaskType, handler tasks.Store) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[taskType] = handler
}

func (d *Dispatcher) handler(taskType TaskType) (tasks.Store, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	h, ok := d.handlers[taskType]
	return h, ok
}

// Apply performs the ownership change. It runs inside the caller's
// transaction when ctx carries one.
func (d *Dispatcher) Apply(ctx context.Context, r tasks.Reassignment) (Outcome, error) {
	h, ok := d.handler(TaskType(r.TaskType))
	if !ok {
		d.logger.Warn("no reassignment handler for task type, ledger entry is authoritative",
			"transfer_id", r.TransferID,
			"task_id", r.TaskID,
			"task_type", r.TaskType)
		return Outcome{}, nil
	}

	if err := h.Reassign(ctx, r); err != nil {
		d.logger.Error("task reassignment failed",
			"transfer_id", r.TransferID,
			"task_id", r.TaskID,
			"task_type", r.TaskType,
			"error", err)
		return Outcome{}, err
	}

	d.logger.Info("task reassigned",
		"transfer_id", r.TransferID,
		"task_id", r.TaskID,
		"task_type", r.TaskType,
		"from", r.OldOwner,
		"to", r.NewOwner)
	return Outcome{Applied: true}, nil
}

// Announce emits task_transferred for an applied reassignment. Call it
// only after the surrounding transaction committed.
func (d *Dispatcher) Announce(ctx context.Context, r tasks.Reassignment) {
	if d.emitter == nil {
		return
	}
	evt := events.NewTaskTransferredEvent(r.TransferID, r.TaskID, r.TaskType, r.OldOwner, r.NewOwner)
	if err := d.emitter.Publish(ctx, evt); err != nil {
		d.logger.Error("failed to emit task transferred event", "transfer_id", r.TransferID, "error", err)
	}
}
