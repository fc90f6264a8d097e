package publisher_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"postflow/internal/publisher"
	"postflow/internal/queue"
	"postflow/internal/services"
	"postflow/internal/services/graph"
	"postflow/internal/stageexec"
	"postflow/internal/testsupport"
)

var day = time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC)

func runPublisher(t *testing.T, store *queue.Store, p *publisher.Publisher, clock services.Clock) stageexec.Result {
	t.Helper()
	result, err := stageexec.Run(context.Background(), stageexec.Policy{
		Name:        publisher.StageName,
		Source:      queue.StatusScheduled,
		Destination: queue.StatusPublished,
		Capability:  p,
		Claim:       publisher.ClaimDue(clock),
	}, stageexec.Options{Store: store, Limit: 10, Concurrency: 2, Timeout: time.Second})
	if err != nil {
		t.Fatalf("run publisher: %v", err)
	}
	return result
}

func TestClaimDueBoundary(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	due := testsupport.NewScheduled(t, store, queue.KindSinglePhrase, "", day)
	future := testsupport.NewScheduled(t, store, queue.KindEducational, "", day.Add(time.Second))

	items, err := publisher.ClaimDue(services.FixedClock(day))(context.Background(), store, 10)
	if err != nil {
		t.Fatalf("ClaimDue: %v", err)
	}
	if len(items) != 1 || items[0].ID != due.ID {
		t.Fatalf("expected only item %d to be due, got %v", due.ID, items)
	}
	if items[0].ID == future.ID {
		t.Fatal("future item claimed")
	}

	items, err = publisher.ClaimDue(services.FixedClock(day.Add(-time.Nanosecond)))(context.Background(), store, 10)
	if err != nil {
		t.Fatalf("ClaimDue: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected nothing due before the slot, got %d", len(items))
	}
}

func TestOutboxPublish(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	item := testsupport.NewScheduled(t, store, queue.KindSinglePhrase, "", day)
	later := testsupport.NewScheduled(t, store, queue.KindEducational, "", day.AddDate(0, 0, 1))

	clock := testsupport.NewClock(day.Add(time.Minute))
	outbox := publisher.NewOutbox(cfg.Paths.OutboxDir)
	p := publisher.New(outbox, clock.Func(), nil)

	result := runPublisher(t, store, p, clock.Func())
	if result.Claimed != 1 || result.Advanced != 1 {
		t.Fatalf("unexpected result %+v", result)
	}

	published := testsupport.MustGet(t, store, item.ID)
	if published.Status != queue.StatusPublished {
		t.Fatalf("status = %s", published.Status)
	}
	if published.PublishedAt == nil || !published.PublishedAt.Equal(day.Add(time.Minute)) {
		t.Fatalf("published at = %v", published.PublishedAt)
	}
	if published.ExternalID != "outbox-"+strconv.FormatInt(item.ID, 10) {
		t.Fatalf("external id = %q", published.ExternalID)
	}
	if got := testsupport.MustGet(t, store, later.ID).Status; got != queue.StatusScheduled {
		t.Fatalf("future item status = %s", got)
	}

	data, err := os.ReadFile(outbox.Path(item.ID))
	if err != nil {
		t.Fatalf("read outbox: %v", err)
	}
	var envelope publisher.Envelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("decode outbox: %v", err)
	}
	if envelope.ID != item.ID || !strings.Contains(envelope.Caption, "#NutriSigno") || !envelope.PlannedPublishAt.Equal(day) {
		t.Fatalf("unexpected envelope %+v", envelope)
	}

	// Replaying over the published item claims nothing and leaves the file alone.
	info, _ := os.Stat(outbox.Path(item.ID))
	clock.Advance(time.Hour)
	result = runPublisher(t, store, p, clock.Func())
	if result.Claimed != 0 {
		t.Fatalf("replay claimed %d items", result.Claimed)
	}
	after, _ := os.Stat(outbox.Path(item.ID))
	if !after.ModTime().Equal(info.ModTime()) {
		t.Fatal("outbox document rewritten on replay")
	}
}

func TestOutboxPublishIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	outbox := publisher.NewOutbox(dir)
	planned := day
	item := &queue.Item{ID: 4, Kind: queue.KindMotivational, Caption: "c", AssetRef: "/a/post_4.png", PlannedPublishAt: &planned}

	first, err := outbox.Publish(context.Background(), item)
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	item.Caption = "changed"
	second, err := outbox.Publish(context.Background(), item)
	if err != nil {
		t.Fatalf("second Publish: %v", err)
	}
	if first != second {
		t.Fatalf("external ids differ: %q vs %q", first, second)
	}
	data, _ := os.ReadFile(outbox.Path(4))
	if strings.Contains(string(data), "changed") {
		t.Fatal("existing document was overwritten")
	}

	if err := os.WriteFile(outbox.Path(5), []byte(`{"id":99}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err = outbox.Publish(context.Background(), &queue.Item{ID: 5, AssetRef: "/a/post_5.png", PlannedPublishAt: &planned})
	if !services.IsPermanent(err) {
		t.Fatalf("expected permanent error for foreign document, got %v", err)
	}
}

func TestWorkGuards(t *testing.T) {
	p := publisher.New(publisher.NewOutbox(t.TempDir()), services.FixedClock(day), nil)
	future := day.Add(time.Hour)

	_, err := p.Work(context.Background(), &queue.Item{ID: 1, PlannedPublishAt: &future})
	if !services.IsPermanent(err) {
		t.Fatalf("missing asset should be permanent, got %v", err)
	}
	_, err = p.Work(context.Background(), &queue.Item{ID: 1, AssetRef: "/a.png", PlannedPublishAt: &future})
	if err == nil || services.IsPermanent(err) {
		t.Fatalf("not-due item should be transient, got %v", err)
	}
}

type flakyBackend struct {
	err   error
	calls atomic.Int32
}

func (f *flakyBackend) Name() string { return "flaky" }

func (f *flakyBackend) Publish(context.Context, *queue.Item) (string, error) {
	f.calls.Add(1)
	return "", f.err
}

func TestBackendErrorsRouteItems(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	transient := testsupport.NewScheduled(t, store, queue.KindSinglePhrase, "", day)
	clock := services.FixedClock(day)

	backend := &flakyBackend{err: services.Wrap(services.ErrExternal, "graph", "publish", "rate limited", nil)}
	result := runPublisher(t, store, publisher.New(backend, clock, nil), clock)
	if result.Pending != 1 {
		t.Fatalf("expected pending item, got %+v", result)
	}
	if got := testsupport.MustGet(t, store, transient.ID).Status; got != queue.StatusScheduled {
		t.Fatalf("status = %s", got)
	}

	backend.err = services.Wrap(services.ErrPermanent, "graph", "publish", "invalid image", nil)
	result = runPublisher(t, store, publisher.New(backend, clock, nil), clock)
	if result.Failed != 1 {
		t.Fatalf("expected failed item, got %+v", result)
	}
	failed := testsupport.MustGet(t, store, transient.ID)
	if failed.Status != queue.StatusFailed || failed.FailedFrom != queue.StatusScheduled || failed.PublishedAt != nil {
		t.Fatalf("unexpected failed item %+v", failed)
	}
}

func TestGraphBackend(t *testing.T) {
	var imageURL, caption string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		switch {
		case strings.HasSuffix(r.URL.Path, "/media"):
			imageURL = r.Form.Get("image_url")
			caption = r.Form.Get("caption")
			_, _ = w.Write([]byte(`{"id":"c1"}`))
		case strings.HasSuffix(r.URL.Path, "/media_publish"):
			_, _ = w.Write([]byte(`{"id":"m1"}`))
		}
	}))
	defer server.Close()

	client := graph.NewClient(graph.Config{BaseURL: server.URL, AccessToken: "t", IGUserID: "42"})
	backend, err := publisher.NewGraph(client, "https://cdn.example/posts/")
	if err != nil {
		t.Fatalf("NewGraph: %v", err)
	}
	planned := day
	id, err := backend.Publish(context.Background(), &queue.Item{
		ID:               3,
		Caption:          "Legenda",
		Tags:             []string{"#NutriSigno", "#Foco"},
		AssetRef:         "/var/renders/post_3.png",
		PlannedPublishAt: &planned,
	})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if id != "m1" {
		t.Fatalf("id = %q", id)
	}
	if imageURL != "https://cdn.example/posts/post_3.png" {
		t.Fatalf("image url = %q", imageURL)
	}
	if caption != "Legenda\n\n#NutriSigno #Foco" {
		t.Fatalf("caption = %q", caption)
	}
}

func TestNewFromConfig(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	p, err := publisher.NewFromConfig(cfg, services.FixedClock(day), nil)
	if err != nil {
		t.Fatalf("outbox: %v", err)
	}
	if p.Backend().Name() != "outbox" {
		t.Fatalf("backend = %s", p.Backend().Name())
	}
	if h := p.HealthCheck(context.Background()); !h.Ready {
		t.Fatalf("outbox health: %+v", h)
	}

	cfg.Publisher.Backend = "graph"
	_, err = publisher.NewFromConfig(cfg, services.FixedClock(day), nil)
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error without asset base url, got %v", err)
	}

	cfg.Publisher.Backend = "carrier-pigeon"
	if _, err := publisher.NewFromConfig(cfg, services.FixedClock(day), nil); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
