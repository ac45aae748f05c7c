package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"sentinel/internal/config"
)

const userAgent = "Sentinel-Go/0.1.0"

// Event identifies a notification type.
type Event string

const (
	EventAnalysisCompleted Event = "analysis_completed"
	EventRateLimited       Event = "rate_limited"
	EventError             Event = "error"
	EventTest              Event = "test"
)

// Payload carries event fields. Unknown keys are ignored.
type Payload map[string]any

// Service publishes run events.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
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
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		enabled: map[Event]bool{
			EventAnalysisCompleted: cfg.Notifications.Completion,
			EventRateLimited:       cfg.Notifications.RateLimit,
			EventError:             cfg.Notifications.Errors,
			EventTest:              true,
		},
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	enabled  map[Event]bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	if n == nil || !n.enabled[event] {
		return nil
	}
	msg, ok := format(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func format(event Event, payload Payload) (message, bool) {
	switch event {
	case EventAnalysisCompleted:
		media := payload.text("mediaID")
		if source := payload.text("source"); source != "" {
			media = fmt.Sprintf("%s (%s)", source, media)
		}
		succeeded := payload.number("succeeded")
		failed := payload.number("failed")
		skipped := payload.number("skipped")
		title := "Sentinel - Analysis Complete"
		if failed > 0 {
			title = "Sentinel - Analysis Complete (with errors)"
		}
		body := fmt.Sprintf("Analyzed %s: %d succeeded, %d failed, %d skipped", media, succeeded, failed, skipped)
		if level := payload.text("riskLevel"); level != "" {
			body = fmt.Sprintf("%s\nRisk level: %s", body, level)
		}
		priority := ""
		if payload.text("riskLevel") == "high" {
			priority = "high"
		}
		return message{
			title:    title,
			body:     body,
			tags:     []string{"sentinel", "analysis", "completed"},
			priority: priority,
		}, true
	case EventRateLimited:
		body := fmt.Sprintf("Rate limited while analyzing %s", payload.text("mediaID"))
		if unitName := payload.text("unit"); unitName != "" {
			body = fmt.Sprintf("%s (unit %s)", body, unitName)
		}
		if retry := payload.text("retryIn"); retry != "" {
			body = fmt.Sprintf("%s\nRetrying in %s", body, retry)
		}
		return message{
			title: "Sentinel - Rate Limited",
			body:  body,
			tags:  []string{"sentinel", "ratelimit", "warning"},
		}, true
	case EventError:
		var builder strings.Builder
		builder.WriteString("Error")
		if label := payload.text("context"); label != "" {
			builder.WriteString(" with ")
			builder.WriteString(label)
		}
		builder.WriteString(": ")
		if detail := payload.text("error"); detail != "" {
			builder.WriteString(detail)
		} else {
			builder.WriteString("unknown")
		}
		return message{
			title:    "Sentinel - Error",
			body:     builder.String(),
			tags:     []string{"sentinel", "error", "alert"},
			priority: "high",
		}, true
	case EventTest:
		return message{
			title:    "Sentinel - Test",
			body:     "Notification system test",
			tags:     []string{"sentinel", "test"},
			priority: "low",
		}, true
	}
	return message{}, false
}

func (p Payload) text(key string) string {
	switch v := p[key].(type) {
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

func (p Payload) number(key string) int {
	switch v := p[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
	if n.client == nil {
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

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
