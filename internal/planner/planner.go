package planner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"postflow/internal/catalog"
	"postflow/internal/logging"
	"postflow/internal/queue"
	"postflow/internal/services"
	"postflow/internal/stageexec"
)

// StageName labels planner log lines and audit events.
const StageName = "planner"

const slotLayout = "2006-01-02"

// Entry is one planned calendar day.
type Entry struct {
	Slot  string
	Kind  queue.Kind
	Sign  string
	Theme string
}

// Planner fills the editorial calendar with one draft per day.
type Planner struct {
	store   *queue.Store
	catalog *catalog.Catalog
	loc     *time.Location
	clock   services.Clock
	logger  *slog.Logger
}

// New constructs a Planner. A nil location means UTC.
func New(store *queue.Store, cat *catalog.Catalog, loc *time.Location, clock services.Clock, logger *slog.Logger) *Planner {
	if cat == nil {
		cat = catalog.Default()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Planner{
		store:   store,
		catalog: cat,
		loc:     loc,
		clock:   clock,
		logger:  logging.NewComponentLogger(logger, StageName),
	}
}

// Today returns the current calendar day in the planner's timezone.
func (p *Planner) Today() time.Time {
	now := p.clock.Now().In(p.loc)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, p.loc)
}

// Calendar computes the entries for days consecutive days from start
// without touching the store.
func (p *Planner) Calendar(start time.Time, days int) []Entry {
	if days <= 0 {
		return nil
	}
	start = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, p.loc)
	entries := make([]Entry, 0, days)
	for i := range days {
		day := start.AddDate(0, 0, i)
		entries = append(entries, p.entryFor(day))
	}
	return entries
}

// entryFor derives the kind and topic from the day number alone so that
// overlapping planning runs agree on every day.
func (p *Planner) entryFor(day time.Time) Entry {
	rotation := p.catalog.Rotation()
	n := dayNumber(day)
	cycle := int64(len(rotation))
	pos := mod(n, cycle)
	entry := Entry{Slot: day.Format(slotLayout), Kind: rotation[pos]}

	if entry.Kind.UsesSign() {
		idx := picksBefore(rotation, n, queue.Kind.UsesSign)
		entry.Sign = p.catalog.Signs[mod(idx, int64(len(p.catalog.Signs)))]
	}
	if entry.Kind.UsesTheme() {
		idx := picksBefore(rotation, n, queue.Kind.UsesTheme)
		entry.Theme = p.catalog.Themes[mod(idx, int64(len(p.catalog.Themes)))]
	}
	return entry
}

// picksBefore counts the days before day n whose kind satisfies uses.
func picksBefore(rotation []queue.Kind, n int64, uses func(queue.Kind) bool) int64 {
	cycle := int64(len(rotation))
	var perCycle int64
	for _, kind := range rotation {
		if uses(kind) {
			perCycle++
		}
	}
	full := floorDiv(n, cycle)
	count := full * perCycle
	for _, kind := range rotation[:mod(n, cycle)] {
		if uses(kind) {
			count++
		}
	}
	return count
}

// Plan creates a draft for every day in [start, start+days) that has none.
// A zero start means today.
func (p *Planner) Plan(ctx context.Context, start time.Time, days int) (stageexec.Result, error) {
	result := stageexec.Result{Stage: StageName}
	if p.store == nil {
		return result, fmt.Errorf("queue store is required")
	}
	if days <= 0 {
		return result, fmt.Errorf("plan: days must be positive, got %d", days)
	}
	if start.IsZero() {
		start = p.Today()
	}
	began := time.Now()
	ctx = services.WithStage(ctx, StageName)
	logger := logging.WithContext(ctx, p.logger)

	entries := p.Calendar(start, days)
	result.Claimed = len(entries)
	logger.Info(
		"stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.String("first_slot", entries[0].Slot),
		logging.String("last_slot", entries[len(entries)-1].Slot),
		logging.Int("days", days),
	)

	existing, err := p.store.PlanSlotsBetween(ctx, entries[0].Slot, entries[len(entries)-1].Slot)
	if err != nil {
		return result, fmt.Errorf("load planned slots: %w", err)
	}

	for _, entry := range entries {
		if _, ok := existing[entry.Slot]; ok {
			result.Skipped++
			continue
		}
		item, err := p.store.Create(ctx, &queue.Item{
			Kind:     entry.Kind,
			Sign:     entry.Sign,
			Theme:    entry.Theme,
			PlanSlot: entry.Slot,
		})
		if errors.Is(err, queue.ErrSlotTaken) {
			// Another planner run claimed the day between the read and the insert.
			result.Skipped++
			continue
		}
		if err != nil {
			return result, fmt.Errorf("create draft for %s: %w", entry.Slot, err)
		}
		result.Advanced++
		logging.WithContext(services.WithItemID(ctx, item.ID), p.logger).Info(
			"draft planned",
			logging.String(logging.FieldEventType, "item_advanced"),
			logging.String(logging.FieldStatus, string(item.Status)),
			logging.String("plan_slot", entry.Slot),
			logging.String("kind", string(entry.Kind)),
			logging.String("topic", item.Topic()),
		)
	}

	result.Duration = time.Since(began)
	logger.Info(
		"stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.Int("created", result.Advanced),
		logging.Int("existing", result.Skipped),
		logging.Duration("duration", result.Duration),
	)
	return result, nil
}

// dayNumber is the count of calendar days between 1970-01-01 and day's date.
func dayNumber(day time.Time) int64 {
	civil := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	return floorDiv(civil.Unix(), 86400)
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func mod(a, b int64) int64 {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}
