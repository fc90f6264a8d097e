package workflow

import (
	"fmt"
	"log/slog"
	"time"

	"postflow/internal/catalog"
	"postflow/internal/config"
	"postflow/internal/generator"
	"postflow/internal/notifications"
	"postflow/internal/planner"
	"postflow/internal/publisher"
	"postflow/internal/queue"
	"postflow/internal/renderer"
	"postflow/internal/scheduler"
	"postflow/internal/services"
	"postflow/internal/validator"
)

// BuildOptions tunes Build.
type BuildOptions struct {
	Logger   *slog.Logger
	Notifier notifications.Service
	Clock    services.Clock
	// ScheduleStart is the earliest day the scheduler may assign.
	ScheduleStart time.Time
	// ScheduleEnd is the last day the scheduler may assign. Zero means no cap.
	ScheduleEnd time.Time
}

// Build wires the production capabilities described by cfg.
func Build(cfg *config.Config, store *queue.Store, opts BuildOptions) (*Orchestrator, error) {
	cat, err := catalog.Load(cfg.Paths.CatalogPath)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "workflow", "load catalog", "", err)
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "workflow", "load timezone", "", err)
	}

	gen, err := generator.NewFromConfig(cfg, cat, opts.Logger)
	if err != nil {
		return nil, fmt.Errorf("generator: %w", err)
	}
	render, err := renderer.New(cfg, opts.Logger)
	if err != nil {
		return nil, fmt.Errorf("renderer: %w", err)
	}
	slot, err := scheduler.SlotFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("scheduler: %w", err)
	}
	sched := scheduler.New(store, slot, opts.Clock, opts.Logger).
		WithStart(opts.ScheduleStart).
		WithEnd(opts.ScheduleEnd)
	pub, err := publisher.NewFromConfig(cfg, opts.Clock, opts.Logger)
	if err != nil {
		return nil, fmt.Errorf("publisher: %w", err)
	}

	set := StageSet{
		Generator: gen,
		Validator: validator.New(cat, validator.LimitsFromConfig(cfg), opts.Logger),
		Renderer:  render,
		Scheduler: sched,
		Publisher: pub,
	}
	return New(cfg, store, set,
		WithLogger(opts.Logger),
		WithNotifier(opts.Notifier),
		WithClock(opts.Clock),
		WithPlanner(planner.New(store, cat, loc, opts.Clock, opts.Logger)),
	), nil
}
