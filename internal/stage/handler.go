package stage

import (
	"context"
	"log/slog"

	"postflow/internal/queue"
)

// Capability is the per-item work a stage delegates to an external
// collaborator. It receives a private copy of the claimed item and returns
// the fields to write with the status change. Errors are classified with the
// services markers: permanent ones divert the item to failed, anything else
// leaves it for a later batch.
type Capability interface {
	Work(ctx context.Context, item *queue.Item) (queue.Patch, error)
}

// CapabilityFunc adapts a function to Capability.
type CapabilityFunc func(ctx context.Context, item *queue.Item) (queue.Patch, error)

// Work calls f.
func (f CapabilityFunc) Work(ctx context.Context, item *queue.Item) (queue.Patch, error) {
	return f(ctx, item)
}

// BatchPreparer is implemented by capabilities that need one setup call per
// batch, before any item is processed.
type BatchPreparer interface {
	PrepareBatch(ctx context.Context, items []*queue.Item) error
}

// HealthChecker is implemented by capabilities that can report readiness.
type HealthChecker interface {
	HealthCheck(ctx context.Context) Health
}

// LoggerAware is implemented by capabilities that log with stage context.
type LoggerAware interface {
	SetLogger(*slog.Logger)
}
