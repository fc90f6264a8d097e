package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"postflow/internal/config"
	"postflow/internal/logging"
	"postflow/internal/queue"
	"postflow/internal/services"
)

// StageName labels scheduler log lines and audit events.
const StageName = "scheduler"

// Slot is the daily publish time.
type Slot struct {
	Hour     int
	Minute   int
	Location *time.Location
}

// SlotFromConfig reads the scheduler section.
func SlotFromConfig(cfg *config.Config) (Slot, error) {
	loc, err := cfg.Location()
	if err != nil {
		return Slot{}, services.Wrap(services.ErrConfiguration, StageName, "load timezone", cfg.Scheduler.Timezone, err)
	}
	return Slot{Hour: cfg.Scheduler.PublishHour, Minute: cfg.Scheduler.PublishMinute, Location: loc}, nil
}

// On returns the slot on the calendar day of t.
func (s Slot) On(t time.Time) time.Time {
	t = t.In(s.location())
	return time.Date(t.Year(), t.Month(), t.Day(), s.Hour, s.Minute, 0, 0, s.location())
}

func (s Slot) location() *time.Location {
	if s.Location == nil {
		return time.UTC
	}
	return s.Location
}

// Scheduler is the rendered → scheduled capability. Each item gets the
// first free day after the latest planned publish timestamp in the store,
// never earlier than the floor. It must run with one item at a time.
type Scheduler struct {
	store  *queue.Store
	slot   Slot
	clock  services.Clock
	start  time.Time
	end    time.Time
	logger *slog.Logger
}

// New constructs a Scheduler.
func New(store *queue.Store, slot Slot, clock services.Clock, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		store:  store,
		slot:   slot,
		clock:  clock,
		logger: logging.NewComponentLogger(logger, StageName),
	}
}

// WithStart sets the earliest day a slot may fall on. The zero time restores
// the default floor: the first slot at or after now.
func (s *Scheduler) WithStart(day time.Time) *Scheduler {
	s.start = day
	return s
}

// WithEnd sets the last day a slot may fall on. Items that would land after
// it stay rendered until the window moves. The zero time removes the cap.
func (s *Scheduler) WithEnd(day time.Time) *Scheduler {
	s.end = day
	return s
}

// SetLogger implements stage.LoggerAware.
func (s *Scheduler) SetLogger(logger *slog.Logger) {
	s.logger = logger
}

// NextSlot computes the timestamp the next item would receive: the day after
// the latest planned publish timestamp, or the floor when that is later. The
// floor is the start day when one is set, otherwise the first slot at or
// after now. A latest slot in the past therefore does not pull new items
// into the past; scheduling resumes from now.
func (s *Scheduler) NextSlot(ctx context.Context) (time.Time, error) {
	latest, err := s.store.LatestPlannedPublish(ctx)
	if err != nil {
		return time.Time{}, services.Wrap(services.ErrTransient, StageName, "read latest slot", "", err)
	}
	next := s.floor()
	if latest != nil {
		if afterLatest := s.slot.On(latest.In(s.slot.location()).AddDate(0, 0, 1)); afterLatest.After(next) {
			next = afterLatest
		}
	}
	if !s.end.IsZero() && next.After(s.slot.On(s.end)) {
		return time.Time{}, services.Wrap(services.ErrTransient, StageName, "assign slot",
			fmt.Sprintf("no free slot on or before %s", s.end.Format(time.DateOnly)), nil)
	}
	return next, nil
}

func (s *Scheduler) floor() time.Time {
	if !s.start.IsZero() {
		return s.slot.On(s.start)
	}
	now := s.clock.Now()
	today := s.slot.On(now)
	if today.Before(now) {
		return s.slot.On(today.AddDate(0, 0, 1))
	}
	return today
}

// Work assigns the next free slot to item.
func (s *Scheduler) Work(ctx context.Context, item *queue.Item) (queue.Patch, error) {
	if item.PlannedPublishAt != nil {
		return queue.Patch{}, services.Wrap(services.ErrPermanent, StageName, "assign slot",
			fmt.Sprintf("item already planned for %s", item.PlannedPublishAt.Format(time.RFC3339)), nil)
	}
	next, err := s.NextSlot(ctx)
	if err != nil {
		return queue.Patch{}, err
	}
	logging.WithContext(ctx, s.logger).Debug(
		"slot assigned",
		logging.String(logging.FieldEventType, "slot_assigned"),
		logging.String("planned_publish_at", next.Format(time.RFC3339)),
	)
	return queue.Patch{PlannedPublishAt: &next}, nil
}
