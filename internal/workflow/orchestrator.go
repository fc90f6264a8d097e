package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"postflow/internal/config"
	"postflow/internal/generator"
	"postflow/internal/logging"
	"postflow/internal/notifications"
	"postflow/internal/planner"
	"postflow/internal/publisher"
	"postflow/internal/queue"
	"postflow/internal/renderer"
	"postflow/internal/scheduler"
	"postflow/internal/services"
	"postflow/internal/stage"
	"postflow/internal/stageexec"
	"postflow/internal/validator"
)

// StageSet bundles the capabilities the orchestrator drives, in run order.
type StageSet struct {
	Generator stage.Capability
	Validator stage.Capability
	Renderer  stage.Capability
	Scheduler stage.Capability
	Publisher stage.Capability
}

// Stage verbs accepted by RunStage, in run order.
const (
	StageGenerate = "generate"
	StageValidate = "validate"
	StageRender   = "render"
	StageSchedule = "schedule"
	StagePublish  = "publish"
)

// StageVerbs lists the verbs in run order.
var StageVerbs = []string{StageGenerate, StageValidate, StageRender, StageSchedule, StagePublish}

// Orchestrator runs the stage processors in dependency order.
type Orchestrator struct {
	cfg      *config.Config
	store    *queue.Store
	logger   *slog.Logger
	notifier notifications.Service
	clock    services.Clock
	planner  *planner.Planner

	stages []boundStage
}

type boundStage struct {
	verb   string
	policy stageexec.Policy
}

// Option configures optional Orchestrator behavior.
type Option func(*Orchestrator)

// WithLogger sets the base logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

// WithNotifier overrides the notifier built from config.
func WithNotifier(notifier notifications.Service) Option {
	return func(o *Orchestrator) { o.notifier = notifier }
}

// WithClock injects the clock used for due checks.
func WithClock(clock services.Clock) Option {
	return func(o *Orchestrator) { o.clock = clock }
}

// WithPlanner enables calendar planning at the start of a cycle.
func WithPlanner(p *planner.Planner) Option {
	return func(o *Orchestrator) { o.planner = p }
}

// New constructs an Orchestrator over set. Nil capabilities are skipped.
func New(cfg *config.Config, store *queue.Store, set StageSet, opts ...Option) *Orchestrator {
	o := &Orchestrator{cfg: cfg, store: store}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = logging.NewNop()
	}
	if o.notifier == nil {
		o.notifier = notifications.NewService(cfg)
	}

	candidates := []boundStage{
		{StageGenerate, stageexec.Policy{Name: generator.StageName, Source: queue.StatusDraft, Destination: queue.StatusGenerated, Capability: set.Generator}},
		{StageValidate, stageexec.Policy{Name: validator.StageName, Source: queue.StatusGenerated, Destination: queue.StatusValidated, Capability: set.Validator}},
		{StageRender, stageexec.Policy{Name: renderer.StageName, Source: queue.StatusValidated, Destination: queue.StatusRendered, Capability: set.Renderer}},
		{StageSchedule, stageexec.Policy{Name: scheduler.StageName, Source: queue.StatusRendered, Destination: queue.StatusScheduled, Capability: set.Scheduler, Sequential: true}},
		{StagePublish, stageexec.Policy{Name: publisher.StageName, Source: queue.StatusScheduled, Destination: queue.StatusPublished, Capability: set.Publisher, Claim: publisher.ClaimDue(o.clock)}},
	}
	for _, candidate := range candidates {
		if candidate.policy.Capability != nil {
			o.stages = append(o.stages, candidate)
		}
	}
	return o
}

// Store returns the item store the orchestrator works against.
func (o *Orchestrator) Store() *queue.Store {
	return o.store
}

// RunOptions controls one cycle.
type RunOptions struct {
	// PlanDays fills the calendar this many days ahead before the stages run.
	PlanDays int
	// Limit caps each stage batch; zero uses workflow.batch_size.
	Limit int
}

// Summary aggregates one cycle.
type Summary struct {
	RunID     string
	Planned   int
	Stages    []stageexec.Result
	Advanced  int
	Pending   int
	Failed    int
	Skipped   int
	Published int
	Failures  []stageexec.Failure
	Duration  time.Duration
}

func (s *Summary) add(verb string, result stageexec.Result) {
	s.Stages = append(s.Stages, result)
	s.Advanced += result.Advanced
	s.Pending += result.Pending
	s.Failed += result.Failed
	s.Skipped += result.Skipped
	s.Failures = append(s.Failures, result.Failures...)
	if verb == StagePublish {
		s.Published += result.Advanced
	}
}

// RunCycle runs every configured stage once, in order. Item failures are
// counted in the summary; an error is returned only when the store or the
// context fails, and later stages are then skipped.
func (o *Orchestrator) RunCycle(ctx context.Context, opts RunOptions) (Summary, error) {
	started := time.Now()
	summary := Summary{RunID: uuid.NewString()}
	ctx = services.WithRequestID(ctx, summary.RunID)
	logger := logging.WithContext(ctx, o.logger.With(logging.String(logging.FieldComponent, "workflow")))

	logger.Info("run started",
		logging.String(logging.FieldEventType, "run_start"),
		logging.Int("plan_days", opts.PlanDays),
	)

	if opts.PlanDays > 0 && o.planner != nil {
		planned, err := o.planner.Plan(ctx, time.Time{}, opts.PlanDays)
		if err != nil {
			return o.abort(ctx, logger, summary, started, "planner", err)
		}
		summary.Planned = planned.Advanced
	}

	for _, stg := range o.stages {
		result, err := stageexec.Run(ctx, stg.policy, o.stageOptions(opts.Limit))
		summary.add(stg.verb, result)
		if err != nil {
			return o.abort(ctx, logger, summary, started, stg.policy.Name, err)
		}
	}

	summary.Duration = time.Since(started)
	logger.Info("run completed",
		logging.String(logging.FieldEventType, "run_complete"),
		logging.Int("planned", summary.Planned),
		logging.Int("advanced", summary.Advanced),
		logging.Int("published", summary.Published),
		logging.Int("pending", summary.Pending),
		logging.Int("failed", summary.Failed),
		logging.Int("skipped", summary.Skipped),
		logging.Duration("duration", summary.Duration),
	)
	o.notify(ctx, logger, notifications.EventRunCompleted, notifications.Payload{
		"run_id":    summary.RunID,
		"published": summary.Published,
		"advanced":  summary.Advanced,
		"failed":    summary.Failed,
		"duration":  summary.Duration,
	})
	return summary, nil
}

// RunStage runs a single stage batch identified by verb.
func (o *Orchestrator) RunStage(ctx context.Context, verb string, limit int) (stageexec.Result, error) {
	for _, stg := range o.stages {
		if stg.verb == verb {
			ctx = services.WithRequestID(ctx, uuid.NewString())
			return stageexec.Run(ctx, stg.policy, o.stageOptions(limit))
		}
	}
	return stageexec.Result{}, fmt.Errorf("unknown or unconfigured stage %q", verb)
}

// Health reports the readiness of every configured stage.
func (o *Orchestrator) Health(ctx context.Context) []stage.Health {
	health := make([]stage.Health, 0, len(o.stages))
	for _, stg := range o.stages {
		health = append(health, stage.Check(ctx, stg.policy.Name, stg.policy.Capability))
	}
	return health
}

func (o *Orchestrator) stageOptions(limit int) stageexec.Options {
	if limit <= 0 {
		limit = o.cfg.Workflow.BatchSize
	}
	return stageexec.Options{
		Logger:      o.logger,
		Store:       o.store,
		Notifier:    o.notifier,
		Limit:       limit,
		Concurrency: o.cfg.Workflow.Concurrency,
		Timeout:     o.cfg.CapabilityTimeout(),
	}
}

func (o *Orchestrator) abort(ctx context.Context, logger *slog.Logger, summary Summary, started time.Time, stageName string, err error) (Summary, error) {
	summary.Duration = time.Since(started)
	logging.ErrorWithContext(logger, "run aborted", "run_aborted",
		logging.String(logging.FieldStage, stageName),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check database health with `postflow health`"),
	)
	if ctx.Err() == nil {
		o.notify(ctx, logger, notifications.EventError, notifications.Payload{
			"error":   err,
			"context": stageName,
		})
	}
	return summary, fmt.Errorf("%s: %w", stageName, err)
}

func (o *Orchestrator) notify(ctx context.Context, logger *slog.Logger, event notifications.Event, payload notifications.Payload) {
	if o.notifier == nil {
		return
	}
	if err := o.notifier.Publish(ctx, event, payload); err != nil {
		logger.Debug("notification failed", logging.String(logging.FieldEventType, string(event)), logging.Error(err))
	}
}

// Planner returns the calendar planner, or nil when planning is disabled.
func (o *Orchestrator) Planner() *planner.Planner {
	return o.planner
}
