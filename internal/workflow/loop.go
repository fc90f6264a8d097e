package workflow

import (
	"context"
	"errors"
	"sync"
	"time"

	"postflow/internal/logging"
	"postflow/internal/queue"
	"postflow/internal/stage"
)

// Loop runs cycles on a timer until its context ends.
type Loop struct {
	orchestrator *Orchestrator
	pollInterval time.Duration
	retryDelay   time.Duration
	planDays     int

	mu       sync.RWMutex
	running  bool
	cycles   int
	lastRun  *Summary
	lastErr  error
	lastTime time.Time
}

// NewLoop constructs a polling loop. Each cycle plans planDays ahead.
func NewLoop(o *Orchestrator, pollInterval, retryDelay time.Duration, planDays int) *Loop {
	if pollInterval <= 0 {
		pollInterval = time.Minute
	}
	if retryDelay <= 0 {
		retryDelay = pollInterval
	}
	return &Loop{
		orchestrator: o,
		pollInterval: pollInterval,
		retryDelay:   retryDelay,
		planDays:     planDays,
	}
}

// Run blocks until ctx is cancelled. A failed cycle is retried after the
// retry delay; it never stops the loop.
func (l *Loop) Run(ctx context.Context) error {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return errors.New("workflow loop already running")
	}
	l.running = true
	l.mu.Unlock()
	defer func() {
		l.mu.Lock()
		l.running = false
		l.mu.Unlock()
	}()

	logger := l.orchestrator.logger.With(logging.String(logging.FieldComponent, "workflow-loop"))
	logger.Info("workflow loop started",
		logging.String(logging.FieldEventType, "loop_start"),
		logging.Duration("poll_interval", l.pollInterval),
	)

	for {
		summary, err := l.orchestrator.RunCycle(ctx, RunOptions{PlanDays: l.planDays})
		l.record(summary, err)

		wait := l.pollInterval
		if err != nil {
			if ctx.Err() != nil {
				logger.Info("workflow loop stopped", logging.String(logging.FieldEventType, "loop_stop"))
				return nil
			}
			wait = l.retryDelay
			logging.WarnWithContext(logger, "cycle failed; retrying", "cycle_failed",
				logging.Error(err),
				logging.Duration("retry_in", wait),
				logging.String(logging.FieldErrorHint, "check database health with `postflow health`"),
			)
		}

		select {
		case <-ctx.Done():
			logger.Info("workflow loop stopped", logging.String(logging.FieldEventType, "loop_stop"))
			return nil
		case <-time.After(wait):
		}
	}
}

func (l *Loop) record(summary Summary, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cycles++
	l.lastRun = &summary
	l.lastErr = err
	l.lastTime = time.Now()
}

// StatusSummary represents lightweight workflow diagnostics.
type StatusSummary struct {
	Running     bool
	Cycles      int
	LastRun     *Summary
	LastRunAt   time.Time
	LastError   string
	QueueStats  map[queue.Status]int
	StageHealth []stage.Health
}

// Status returns the latest loop information.
func (l *Loop) Status(ctx context.Context) StatusSummary {
	l.mu.RLock()
	summary := StatusSummary{
		Running:   l.running,
		Cycles:    l.cycles,
		LastRunAt: l.lastTime,
	}
	if l.lastRun != nil {
		run := *l.lastRun
		summary.LastRun = &run
	}
	if l.lastErr != nil {
		summary.LastError = l.lastErr.Error()
	}
	l.mu.RUnlock()

	stats, err := l.orchestrator.store.Stats(ctx)
	if err != nil {
		l.orchestrator.logger.Warn("failed to read queue stats", logging.Error(err))
	}
	summary.QueueStats = stats
	summary.StageHealth = l.orchestrator.Health(ctx)
	return summary
}
