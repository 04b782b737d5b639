package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"subcue/internal/config"
)

const userAgent = "Subcue/0.1.0"

// Event identifies a notification-worthy milestone.
type Event string

const (
	EventRunStarted   Event = "run_started"
	EventRunCompleted Event = "run_completed"
	EventRunCancelled Event = "run_cancelled"
	EventError        Event = "error"
	EventTest         Event = "test"
)

// Payload carries event-specific values for message formatting.
type Payload map[string]any

// Service delivers notifications for run milestones. Implementations
// must treat unknown or disabled events as a silent success.
type Service interface {
	Publish(ctx context.Context, event Event, data Payload) error
}

// NewService builds a notification service backed by ntfy when a topic
// is configured, a noop otherwise.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:     topic,
		client:       &http.Client{Timeout: timeout},
		runStarted:   cfg.Notifications.RunStarted,
		runCompleted: cfg.Notifications.RunCompleted,
		errors:       cfg.Notifications.Errors,
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint     string
	client       *http.Client
	runStarted   bool
	runCompleted bool
	errors       bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, data Payload) error {
	if !n.enabled(event) {
		return nil
	}
	msg, ok := format(event, data)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

// enabled applies the per-event config toggles. Cancellations follow
// the run_completed toggle; tests always go through.
func (n *ntfyService) enabled(event Event) bool {
	switch event {
	case EventRunStarted:
		return n.runStarted
	case EventRunCompleted, EventRunCancelled:
		return n.runCompleted
	case EventError:
		return n.errors
	case EventTest:
		return true
	default:
		return false
	}
}

func format(event Event, data Payload) (message, bool) {
	switch event {
	case EventRunStarted:
		return message{
			title: "Subcue - Run Started",
			body:  fmt.Sprintf("Synchronizing %d subtitle files", intValue(data, "count")),
			tags:  []string{"subcue", "run", "started"},
		}, true
	case EventRunCompleted:
		completed := intValue(data, "completed")
		failed := intValue(data, "failed")
		skipped := intValue(data, "skipped")
		duration := durationText(durationValue(data, "duration"))
		if failed == 0 {
			return message{
				title: "Subcue - Run Complete",
				body:  fmt.Sprintf("✅ Run complete: %d files synchronized in %s", completed, duration),
				tags:  []string{"subcue", "run", "completed"},
			}, true
		}
		return message{
			title: "Subcue - Run Complete (with errors)",
			body: fmt.Sprintf("Run complete: %d synchronized, %d failed, %d skipped in %s",
				completed, failed, skipped, duration),
			tags: []string{"subcue", "run", "completed"},
		}, true
	case EventRunCancelled:
		return message{
			title: "Subcue - Run Cancelled",
			body:  fmt.Sprintf("Run cancelled: %d files finished before stop", intValue(data, "completed")),
			tags:  []string{"subcue", "run", "cancelled"},
		}, true
	case EventError:
		body := "❌ Error"
		if label := stringValue(data, "context"); label != "" {
			body += " with " + label
		}
		body += ": " + errorText(data["error"])
		return message{
			title:    "Subcue - Error",
			body:     body,
			tags:     []string{"subcue", "error", "alert"},
			priority: "high",
		}, true
	case EventTest:
		return message{
			title:    "Subcue - Test",
			body:     "Notification system test",
			tags:     []string{"subcue", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if msg.title != "" {
		req.Header.Set("Title", msg.title)
	}
	if len(msg.tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.tags, ","))
	}
	if msg.priority != "" && msg.priority != "default" {
		req.Header.Set("Priority", msg.priority)
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

func intValue(data Payload, key string) int {
	switch v := data[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

func stringValue(data Payload, key string) string {
	if v, ok := data[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

func durationValue(data Payload, key string) time.Duration {
	if v, ok := data[key].(time.Duration); ok {
		return v
	}
	return 0
}

func durationText(d time.Duration) string {
	d = d.Round(time.Second)
	if d <= 0 {
		return "0s"
	}
	return d.String()
}

func errorText(v any) string {
	switch value := v.(type) {
	case error:
		return strings.TrimSpace(value.Error())
	case string:
		return strings.TrimSpace(value)
	default:
		return "unknown"
	}
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
