package stageexec

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"postflow/internal/logging"
	"postflow/internal/notifications"
	"postflow/internal/queue"
	"postflow/internal/services"
	"postflow/internal/stage"
)

// ClaimFunc selects the items a batch works on. Implementations must not
// mutate the store.
type ClaimFunc func(ctx context.Context, store *queue.Store, limit int) ([]*queue.Item, error)

// Policy binds a capability to the status it consumes and the status it
// produces.
type Policy struct {
	Name        string
	Source      queue.Status
	Destination queue.Status
	Capability  stage.Capability
	// Claim overrides the default claim-by-source-status selection.
	Claim ClaimFunc
	// Sequential forces one item at a time in claim order, for capabilities
	// whose output depends on the items committed before.
	Sequential bool
}

// Options controls batch size, parallelism and the per-item deadline.
type Options struct {
	Logger      *slog.Logger
	Store       *queue.Store
	Notifier    notifications.Service
	Limit       int
	Concurrency int
	Timeout     time.Duration
}

// Outcome classifies what happened to one claimed item.
type Outcome string

const (
	OutcomeAdvanced Outcome = "advanced"
	OutcomePending  Outcome = "pending"
	OutcomeFailed   Outcome = "failed"
	OutcomeSkipped  Outcome = "skipped"
)

// Failure names an item that did not advance and why.
type Failure struct {
	ItemID int64
	Reason string
}

// Result aggregates one batch.
type Result struct {
	Stage    string
	Claimed  int
	Advanced int
	Pending  int
	Failed   int
	Skipped  int
	// Failures lists items diverted to failed during this batch.
	Failures []Failure
	// Transient lists items left in place for a later batch.
	Transient []Failure
	Duration  time.Duration
}

// Merge adds other's counters into r.
func (r *Result) Merge(other Result) {
	r.Claimed += other.Claimed
	r.Advanced += other.Advanced
	r.Pending += other.Pending
	r.Failed += other.Failed
	r.Skipped += other.Skipped
	r.Failures = append(r.Failures, other.Failures...)
	r.Transient = append(r.Transient, other.Transient...)
	r.Duration += other.Duration
}

func (r *Result) record(item *queue.Item, outcome Outcome, reason string) {
	switch outcome {
	case OutcomeAdvanced:
		r.Advanced++
	case OutcomePending:
		r.Pending++
		r.Transient = append(r.Transient, Failure{ItemID: item.ID, Reason: reason})
	case OutcomeFailed:
		r.Failed++
		r.Failures = append(r.Failures, Failure{ItemID: item.ID, Reason: reason})
	case OutcomeSkipped:
		r.Skipped++
	}
}

// Run claims up to opts.Limit items for the policy and drives each through
// the capability. Per-item failures are recorded in the Result; only store
// or context failures are returned as errors.
func Run(ctx context.Context, policy Policy, opts Options) (Result, error) {
	result := Result{Stage: policy.Name}
	if policy.Capability == nil {
		return result, fmt.Errorf("stage capability unavailable: %s", policy.Name)
	}
	if opts.Store == nil {
		return result, fmt.Errorf("queue store is required")
	}
	if !queue.CanTransition(policy.Source, policy.Destination) {
		return result, fmt.Errorf("%w: stage %s moves %s -> %s", queue.ErrInvalidTransition, policy.Name, policy.Source, policy.Destination)
	}
	limit := opts.Limit
	if limit <= 0 {
		return result, nil
	}

	started := time.Now()
	stageCtx := services.WithStage(ctx, policy.Name)
	logger := logging.WithContext(stageCtx, opts.Logger)
	if aware, ok := policy.Capability.(stage.LoggerAware); ok {
		aware.SetLogger(logger)
	}

	claim := policy.Claim
	if claim == nil {
		claim = func(ctx context.Context, store *queue.Store, limit int) ([]*queue.Item, error) {
			return store.Claim(ctx, policy.Source, limit)
		}
	}
	items, err := claim(stageCtx, opts.Store, limit)
	if err != nil {
		return result, fmt.Errorf("claim %s items: %w", policy.Source, err)
	}
	result.Claimed = len(items)

	logger.Info(
		"stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.String("source_status", string(policy.Source)),
		logging.String("destination_status", string(policy.Destination)),
		logging.Int("claimed", len(items)),
	)
	if len(items) == 0 {
		result.Duration = time.Since(started)
		logStageComplete(logger, result)
		return result, nil
	}

	if preparer, ok := policy.Capability.(stage.BatchPreparer); ok {
		if err := preparer.PrepareBatch(stageCtx, items); err != nil {
			// The whole batch waits for the next run; nothing was mutated.
			for _, item := range items {
				result.record(item, OutcomePending, services.Reason(err))
			}
			logging.WarnWithContext(logger, "batch preparation failed", "stage_prepare_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "items stay in place and are retried by the next batch"),
				logging.String(logging.FieldImpact, "no items advanced in this batch"),
			)
			result.Duration = time.Since(started)
			logStageComplete(logger, result)
			return result, nil
		}
	}

	concurrency := opts.Concurrency
	if concurrency <= 0 || policy.Sequential {
		concurrency = 1
	}

	runner := &itemRunner{
		policy: policy,
		opts:   opts,
		logger: logger,
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(stageCtx)
	g.SetLimit(concurrency)
	for _, item := range items {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			outcome, reason, err := runner.process(gctx, item)
			if err != nil {
				return err
			}
			mu.Lock()
			result.record(item, outcome, reason)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		result.Duration = time.Since(started)
		logging.ErrorWithContext(logger, "stage aborted", "stage_aborted",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check database health with `postflow health`"),
		)
		return result, err
	}

	byItem := func(a, b Failure) int { return cmp.Compare(a.ItemID, b.ItemID) }
	slices.SortFunc(result.Failures, byItem)
	slices.SortFunc(result.Transient, byItem)
	result.Duration = time.Since(started)
	logStageComplete(logger, result)
	return result, nil
}

type itemRunner struct {
	policy Policy
	opts   Options
	logger *slog.Logger
}

// process returns the item outcome, or an error that aborts the batch.
func (r *itemRunner) process(ctx context.Context, item *queue.Item) (Outcome, string, error) {
	itemCtx := services.WithItemID(ctx, item.ID)
	logger := logging.WithContext(itemCtx, r.opts.Logger)

	patch, workErr := r.work(itemCtx, item)
	if workErr != nil {
		if err := ctx.Err(); err != nil {
			return "", "", err
		}
		reason := services.Reason(workErr)
		if !services.IsPermanent(workErr) {
			logging.WarnWithContext(logger, "item left for retry", "item_transient",
				logging.String(logging.FieldReason, reason),
				logging.Int64(logging.FieldRevision, item.Revision),
				logging.Error(workErr),
				logging.String(logging.FieldErrorHint, "the next batch retries this item"),
				logging.String(logging.FieldImpact, "item stays in "+string(item.Status)),
			)
			return OutcomePending, reason, nil
		}
		return r.fail(itemCtx, logger, item, reason)
	}

	tr := queue.Transition{
		To:     r.policy.Destination,
		Patch:  patch,
		Stage:  r.policy.Name,
		Detail: strings.Join(patch.Corrections, "; "),
	}
	updated, err := r.opts.Store.Commit(itemCtx, item.ID, item.Revision, tr)
	switch {
	case err == nil:
		logger.Info(
			"item advanced",
			logging.String(logging.FieldEventType, "item_advanced"),
			logging.String(logging.FieldStatus, string(updated.Status)),
			logging.Int64(logging.FieldRevision, updated.Revision),
		)
		return OutcomeAdvanced, "", nil
	case errors.Is(err, queue.ErrStaleRevision), errors.Is(err, queue.ErrSlotTaken):
		logger.Info(
			"item changed concurrently; skipped",
			logging.String(logging.FieldEventType, "item_conflict"),
			logging.Int64(logging.FieldRevision, item.Revision),
			logging.String(logging.FieldReason, err.Error()),
		)
		return OutcomeSkipped, err.Error(), nil
	case errors.Is(err, queue.ErrInvariant):
		return r.fail(itemCtx, logger, item, err.Error())
	default:
		return "", "", fmt.Errorf("commit item %d: %w", item.ID, err)
	}
}

func (r *itemRunner) work(ctx context.Context, item *queue.Item) (patch queue.Patch, err error) {
	workCtx := ctx
	if r.opts.Timeout > 0 {
		var cancel context.CancelFunc
		workCtx, cancel = context.WithTimeout(ctx, r.opts.Timeout)
		defer cancel()
	}
	defer func() {
		if rec := recover(); rec != nil {
			err = services.Wrap(services.ErrPermanent, r.policy.Name, "work", "capability panicked", fmt.Errorf("%v", rec))
		}
	}()

	patch, err = r.policy.Capability.Work(workCtx, item.Clone())
	// A success that arrives after the deadline is still committed: the
	// capability's side effect has already happened.
	if err != nil && ctx.Err() == nil && errors.Is(workCtx.Err(), context.DeadlineExceeded) {
		err = services.Wrap(services.ErrTimeout, r.policy.Name, "work",
			fmt.Sprintf("capability exceeded %s", r.opts.Timeout), err)
	}
	return patch, err
}

func (r *itemRunner) fail(ctx context.Context, logger *slog.Logger, item *queue.Item, reason string) (Outcome, string, error) {
	_, err := r.opts.Store.MarkFailed(ctx, item.ID, item.Revision, r.policy.Name, reason)
	switch {
	case err == nil:
	case errors.Is(err, queue.ErrStaleRevision):
		logger.Info(
			"item changed concurrently; failure not recorded",
			logging.String(logging.FieldEventType, "item_conflict"),
			logging.Int64(logging.FieldRevision, item.Revision),
			logging.String(logging.FieldReason, reason),
		)
		return OutcomeSkipped, reason, nil
	default:
		return "", "", fmt.Errorf("mark item %d failed: %w", item.ID, err)
	}

	logging.ErrorWithContext(logger, "item failed", "item_failed",
		logging.String(logging.FieldReason, reason),
		logging.String("failed_from", string(item.Status)),
		logging.String(logging.FieldErrorHint, fmt.Sprintf("fix the cause, then run `postflow queue retry %d`", item.ID)),
	)
	if r.opts.Notifier != nil {
		if err := r.opts.Notifier.Publish(ctx, notifications.EventItemFailed, notifications.Payload{
			"item_id": item.ID,
			"stage":   r.policy.Name,
			"reason":  reason,
		}); err != nil {
			logger.Debug("item failure notification failed", logging.Error(err))
		}
	}
	return OutcomeFailed, reason, nil
}

func logStageComplete(logger *slog.Logger, result Result) {
	logger.Info(
		"stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.Int("claimed", result.Claimed),
		logging.Int("advanced", result.Advanced),
		logging.Int("pending", result.Pending),
		logging.Int("failed", result.Failed),
		logging.Int("skipped", result.Skipped),
		logging.Duration("duration", result.Duration),
	)
}
