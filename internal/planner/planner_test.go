package planner_test

import (
	"context"
	"slices"
	"testing"
	"time"

	"postflow/internal/catalog"
	"postflow/internal/planner"
	"postflow/internal/queue"
	"postflow/internal/services"
	"postflow/internal/testsupport"
)

var start = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func newPlanner(t *testing.T) (*planner.Planner, *queue.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	clock := services.FixedClock(start.Add(15 * time.Hour))
	return planner.New(store, catalog.Default(), time.UTC, clock, nil), store
}

func TestCalendarRotatesKindsAndTopics(t *testing.T) {
	p, _ := newPlanner(t)
	cat := catalog.Default()
	entries := p.Calendar(start, 36)
	if len(entries) != 36 {
		t.Fatalf("expected 36 entries, got %d", len(entries))
	}

	rotation := cat.Rotation()
	var signs, themes []string
	for i, entry := range entries {
		want := start.AddDate(0, 0, i).Format("2006-01-02")
		if entry.Slot != want {
			t.Fatalf("entry %d slot = %s, want %s", i, entry.Slot, want)
		}
		if i > 0 {
			prev := slices.Index(rotation, entries[i-1].Kind)
			if got := slices.Index(rotation, entry.Kind); got != (prev+1)%len(rotation) {
				t.Fatalf("kind rotation broken at %d: %s after %s", i, entry.Kind, entries[i-1].Kind)
			}
		}
		switch {
		case entry.Kind.UsesSign():
			if entry.Sign == "" || entry.Theme != "" {
				t.Fatalf("sign entry %+v", entry)
			}
			signs = append(signs, entry.Sign)
		case entry.Kind.UsesTheme():
			if entry.Theme == "" || entry.Sign != "" {
				t.Fatalf("theme entry %+v", entry)
			}
			themes = append(themes, entry.Theme)
		default:
			if entry.Sign != "" || entry.Theme != "" {
				t.Fatalf("topic-free entry %+v", entry)
			}
		}
	}

	assertSequential(t, "sign", signs, cat.Signs)
	assertSequential(t, "theme", themes, cat.Themes)
}

// assertSequential checks that consecutive picks walk the list in order.
func assertSequential(t *testing.T, label string, picks, list []string) {
	t.Helper()
	if len(picks) < 2 {
		t.Fatalf("too few %s picks: %v", label, picks)
	}
	for i := 1; i < len(picks); i++ {
		prev := slices.Index(list, picks[i-1])
		if got := slices.Index(list, picks[i]); got != (prev+1)%len(list) {
			t.Fatalf("%s rotation broken at pick %d: %q after %q", label, i, picks[i], picks[i-1])
		}
	}
}

func TestCalendarIsDeterministicAcrossWindows(t *testing.T) {
	p, _ := newPlanner(t)
	wide := p.Calendar(start, 20)
	narrow := p.Calendar(start.AddDate(0, 0, 7), 13)
	if !slices.Equal(wide[7:], narrow) {
		t.Fatalf("overlapping windows disagree:\n%v\n%v", wide[7:], narrow)
	}
	if p.Calendar(start, 0) != nil {
		t.Fatal("expected no entries for zero days")
	}
}

func TestPlanCreatesOneDraftPerDay(t *testing.T) {
	p, store := newPlanner(t)
	ctx := context.Background()

	result, err := p.Plan(ctx, time.Time{}, 7)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if result.Stage != planner.StageName || result.Advanced != 7 || result.Skipped != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}

	// Overlap the first window by four days.
	result, err = p.Plan(ctx, start.AddDate(0, 0, 3), 7)
	if err != nil {
		t.Fatalf("second Plan: %v", err)
	}
	if result.Advanced != 3 || result.Skipped != 4 {
		t.Fatalf("unexpected overlapping result: %+v", result)
	}

	items, err := store.Query(ctx, queue.Filter{})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(items) != 10 {
		t.Fatalf("expected 10 drafts, got %d", len(items))
	}
	seen := make(map[string]bool)
	for _, item := range items {
		if item.Status != queue.StatusDraft {
			t.Fatalf("planned item %d is %s", item.ID, item.Status)
		}
		if seen[item.PlanSlot] {
			t.Fatalf("slot %s planned twice", item.PlanSlot)
		}
		seen[item.PlanSlot] = true
	}
	if !seen["2026-03-02"] || !seen["2026-03-11"] {
		t.Fatalf("unexpected slots: %v", seen)
	}

	if _, err := p.Plan(ctx, start, 0); err == nil {
		t.Fatal("expected error for non-positive days")
	}
}
