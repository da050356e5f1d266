package transfer

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/frahmantamala/kitchen-ops/internal"
)

const instrumentationScope = "github.com/frahmantamala/kitchen-ops/internal/transfer"

// Metrics holds the transfer engine instruments.
type Metrics struct {
	proposed      metric.Int64Counter
	rejected      metric.Int64Counter
	resolved      metric.Int64Counter
	reassignments metric.Int64Counter
}

// NewMetrics registers instruments on meter, or on the global provider when meter is nil.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	if meter == nil {
		meter = otel.Meter(instrumentationScope)
	}

	proposed, err := meter.Int64Counter("transfer.proposed",
		metric.WithDescription("Transfer requests created, by initial status"))
	if err != nil {
		return nil, err
	}
	rejected, err := meter.Int64Counter("transfer.rejected",
		metric.WithDescription("Proposals or responses rejected, by error code"))
	if err != nil {
		return nil, err
	}
	resolved, err := meter.Int64Counter("transfer.resolved",
		metric.WithDescription("Transfer requests reaching a terminal status"))
	if err != nil {
		return nil, err
	}
	reassignments, err := meter.Int64Counter("transfer.reassignments",
		metric.WithDescription("Task reassignments attempted, by task type and result"))
	if err != nil {
		return nil, err
	}

	return &Metrics{
		proposed:      proposed,
		rejected:      rejected,
		resolved:      resolved,
		reassignments: reassignments,
	}, nil
}

func (m *Metrics) Proposed(ctx context.Context, status Status) {
	if m == nil {
		return
	}
	m.proposed.Add(ctx, 1, metric.WithAttributes(attribute.String("status", string(status))))
}

func (m *Metrics) Rejected(ctx context.Context, op string, err error) {
	if m == nil {
		return
	}
	code := "INTERNAL_ERROR"
	if appErr, ok := internal.IsAppError(err); ok {
		code = string(appErr.Code)
	}
	m.rejected.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", op),
		attribute.String("code", code),
	))
}

func (m *Metrics) Resolved(ctx context.Context, status Status) {
	if m == nil {
		return
	}
	m.resolved.Add(ctx, 1, metric.WithAttributes(attribute.String("status", string(status))))
}

func (m *Metrics) Reassignment(ctx context.Context, taskType TaskType, result string) {
	if m == nil {
		return
	}
	m.reassignments.Add(ctx, 1, metric.WithAttributes(
		attribute.String("task_type", string(taskType)),
		attribute.String("result", result),
	))
}
