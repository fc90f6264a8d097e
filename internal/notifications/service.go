package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"postflow/internal/config"
)

const userAgent = "postflow/0.1.0"

// Event identifies a notification-worthy pipeline milestone.
type Event string

const (
	// EventRunCompleted summarizes one orchestrator cycle.
	EventRunCompleted Event = "run_completed"
	// EventItemFailed reports an item diverted into the failed lane.
	EventItemFailed Event = "item_failed"
	// EventItemPublished reports a successful publication.
	EventItemPublished Event = "item_published"
	// EventError reports an infrastructure failure that aborted a cycle.
	EventError Event = "error"
	// EventTest is sent by `postflow health --notify`.
	EventTest Event = "test"
)

// Payload carries event attributes keyed by name.
type Payload map[string]any

// Service defines the notification surface exposed to workflow components.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:   topic,
		client:     &http.Client{Timeout: timeout},
		runSummary: cfg.Notifications.RunSummary,
		failures:   cfg.Notifications.Failures,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint   string
	client     *http.Client
	runSummary bool
	failures   bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, data Payload) error {
	if n == nil {
		return nil
	}
	msg, ok := n.format(event, data)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func (n *ntfyService) format(event Event, data Payload) (payload, bool) {
	switch event {
	case EventRunCompleted:
		if !n.runSummary {
			return payload{}, false
		}
		published := intValue(data, "published")
		failed := intValue(data, "failed")
		if published == 0 && failed == 0 {
			return payload{}, false
		}
		duration := durationValue(data, "duration").Round(time.Second)
		title := "postflow - Run Complete"
		if failed > 0 {
			title = "postflow - Run Complete (with failures)"
		}
		return payload{
			title: title,
			message: fmt.Sprintf("Run finished in %s: %d published, %d advanced, %d failed",
				duration, published, intValue(data, "advanced"), failed),
			tags: []string{"postflow", "run", "completed"},
		}, true
	case EventItemFailed:
		if !n.failures {
			return payload{}, false
		}
		return payload{
			title: "postflow - Item Failed",
			message: fmt.Sprintf("Item #%d failed in %s: %s",
				intValue(data, "item_id"), stringValue(data, "stage"), stringValue(data, "reason")),
			tags:     []string{"postflow", "item", "failed"},
			priority: "high",
		}, true
	case EventItemPublished:
		return payload{}, false
	case EventError:
		var builder strings.Builder
		builder.WriteString("Error")
		if label := stringValue(data, "context"); label != "" {
			builder.WriteString(" in ")
			builder.WriteString(label)
		}
		builder.WriteString(": ")
		if msg := stringValue(data, "error"); msg != "" {
			builder.WriteString(msg)
		} else {
			builder.WriteString("unknown")
		}
		return payload{
			title:    "postflow - Error",
			message:  builder.String(),
			tags:     []string{"postflow", "error", "alert"},
			priority: "high",
		}, true
	case EventTest:
		return payload{
			title:    "postflow - Test",
			message:  "Notification system test",
			tags:     []string{"postflow", "test"},
			priority: "low",
		}, true
	default:
		return payload{}, false
	}
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func stringValue(data Payload, key string) string {
	switch v := data[key].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case error:
		return strings.TrimSpace(v.Error())
	case fmt.Stringer:
		return strings.TrimSpace(v.String())
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

func intValue(data Payload, key string) int64 {
	switch v := data[key].(type) {
	case int:
		return int64(v)
	case int64:
		return v
	case int32:
		return int64(v)
	default:
		return 0
	}
}

func durationValue(data Payload, key string) time.Duration {
	if v, ok := data[key].(time.Duration); ok && v > 0 {
		return v
	}
	return 0
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
