package publisher

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"postflow/internal/config"
	"postflow/internal/logging"
	"postflow/internal/queue"
	"postflow/internal/services"
	"postflow/internal/services/graph"
	"postflow/internal/stage"
	"postflow/internal/stageexec"
)

// StageName labels publisher log lines and audit events.
const StageName = "publisher"

// Backend performs the externally visible publish action. It must return
// only once the post is durably observable and should treat a repeat call
// for the same item as success.
type Backend interface {
	Name() string
	Publish(ctx context.Context, item *queue.Item) (externalID string, err error)
}

// Publisher is the scheduled → published capability.
type Publisher struct {
	backend Backend
	clock   services.Clock
	logger  *slog.Logger
}

// New constructs a Publisher.
func New(backend Backend, clock services.Clock, logger *slog.Logger) *Publisher {
	return &Publisher{
		backend: backend,
		clock:   clock,
		logger:  logging.NewComponentLogger(logger, StageName),
	}
}

// NewFromConfig selects the backend named by publisher.backend.
func NewFromConfig(cfg *config.Config, clock services.Clock, logger *slog.Logger) (*Publisher, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Publisher.Backend)) {
	case "", "outbox":
		return New(NewOutbox(cfg.Paths.OutboxDir), clock, logger), nil
	case "graph":
		client := graph.NewClient(graph.Config{
			BaseURL:        cfg.Publisher.GraphBaseURL,
			AccessToken:    cfg.Publisher.AccessToken,
			IGUserID:       cfg.Publisher.IGUserID,
			TimeoutSeconds: cfg.Publisher.TimeoutSeconds,
		})
		backend, err := NewGraph(client, cfg.Publisher.AssetBaseURL)
		if err != nil {
			return nil, err
		}
		return New(backend, clock, logger), nil
	default:
		return nil, services.Wrap(services.ErrConfiguration, StageName, "init",
			fmt.Sprintf("unknown publisher backend %q", cfg.Publisher.Backend), nil)
	}
}

// ClaimDue selects scheduled items whose planned timestamp is at or before
// the clock's current time.
func ClaimDue(clock services.Clock) stageexec.ClaimFunc {
	return func(ctx context.Context, store *queue.Store, limit int) ([]*queue.Item, error) {
		return store.ClaimDue(ctx, clock.Now(), limit)
	}
}

// SetLogger implements stage.LoggerAware.
func (p *Publisher) SetLogger(logger *slog.Logger) {
	p.logger = logger
}

// Backend returns the configured backend.
func (p *Publisher) Backend() Backend {
	return p.backend
}

// Work publishes a due item and records when it went live.
func (p *Publisher) Work(ctx context.Context, item *queue.Item) (queue.Patch, error) {
	if strings.TrimSpace(item.AssetRef) == "" {
		return queue.Patch{}, services.Wrap(services.ErrPermanent, StageName, "publish", "item has no rendered asset", nil)
	}
	now := p.clock.Now()
	if item.PlannedPublishAt == nil || item.PlannedPublishAt.After(now) {
		return queue.Patch{}, services.Wrap(services.ErrTransient, StageName, "publish", "item is not due yet", nil)
	}

	externalID, err := p.backend.Publish(ctx, item)
	if err != nil {
		return queue.Patch{}, err
	}
	publishedAt := p.clock.Now().UTC()
	logging.WithContext(ctx, p.logger).Info(
		"item published",
		logging.String(logging.FieldEventType, "item_published"),
		logging.String("backend", p.backend.Name()),
		logging.String("external_id", externalID),
		logging.String("planned_publish_at", item.PlannedPublishAt.Format(time.RFC3339)),
	)
	patch := queue.Patch{PublishedAt: &publishedAt}
	if externalID != "" {
		patch.ExternalID = &externalID
	}
	return patch, nil
}

// HealthCheck reports whether the backend can accept posts.
func (p *Publisher) HealthCheck(ctx context.Context) stage.Health {
	if p.backend == nil {
		return stage.Unhealthy(StageName, "no backend configured")
	}
	if checker, ok := p.backend.(interface{ HealthCheck(context.Context) error }); ok {
		if err := checker.HealthCheck(ctx); err != nil {
			return stage.Unhealthy(StageName, err.Error())
		}
	}
	return stage.Healthy(StageName)
}

// FullCaption joins the caption and the tag list the way it is posted.
func FullCaption(item *queue.Item) string {
	caption := strings.TrimSpace(item.Caption)
	if len(item.Tags) == 0 {
		return caption
	}
	return caption + "\n\n" + strings.Join(item.Tags, " ")
}
