package testsupport

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"postflow/internal/config"
	"postflow/internal/queue"
	"postflow/internal/services"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config, opts ...queue.Option) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg, opts...)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewDraft creates a draft item of the given kind for tests.
func NewDraft(t testing.TB, store *queue.Store, kind queue.Kind, topic string) *queue.Item {
	t.Helper()

	item := &queue.Item{Kind: kind}
	switch {
	case kind.UsesSign():
		item.Sign = topic
	case kind.UsesTheme():
		item.Theme = topic
	}
	created, err := store.Create(context.Background(), item)
	if err != nil {
		t.Fatalf("store.Create: %v", err)
	}
	return created
}

// MustGet fetches an item and fails the test when it is missing.
func MustGet(t testing.TB, store *queue.Store, id int64) *queue.Item {
	t.Helper()

	item, err := store.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("store.GetByID(%d): %v", id, err)
	}
	if item == nil {
		t.Fatalf("item %d not found", id)
	}
	return item
}

// Clock is a settable clock for tests.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock returns a Clock frozen at start.
func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

// Set moves the clock to t.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Func exposes the clock as a services.Clock.
func (c *Clock) Func() services.Clock {
	return func() time.Time {
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.now
	}
}

// Advance commits one transition against the item's current revision.
func Advance(t testing.TB, store *queue.Store, id int64, to queue.Status, patch queue.Patch) *queue.Item {
	t.Helper()

	current := MustGet(t, store, id)
	updated, err := store.Commit(context.Background(), id, current.Revision, queue.Transition{
		To:    to,
		Patch: patch,
		Stage: "test",
	})
	if err != nil {
		t.Fatalf("commit item %d to %s: %v", id, to, err)
	}
	return updated
}

// NewRendered creates a draft and walks it to rendered with placeholder
// content and asset reference.
func NewRendered(t testing.TB, store *queue.Store, kind queue.Kind, topic string) *queue.Item {
	t.Helper()

	item := NewDraft(t, store, kind, topic)
	text := "texto de teste"
	caption := "legenda de teste"
	Advance(t, store, item.ID, queue.StatusGenerated, queue.Patch{
		DisplayText: &text,
		Caption:     &caption,
		Tags:        []string{"#NutriSigno"},
	})
	Advance(t, store, item.ID, queue.StatusValidated, queue.Patch{})
	asset := fmt.Sprintf("/tmp/postflow-test/post_%d.png", item.ID)
	return Advance(t, store, item.ID, queue.StatusRendered, queue.Patch{AssetRef: &asset})
}

// NewScheduled creates a rendered item and schedules it at plannedAt.
func NewScheduled(t testing.TB, store *queue.Store, kind queue.Kind, topic string, plannedAt time.Time) *queue.Item {
	t.Helper()

	item := NewRendered(t, store, kind, topic)
	return Advance(t, store, item.ID, queue.StatusScheduled, queue.Patch{PlannedPublishAt: &plannedAt})
}
