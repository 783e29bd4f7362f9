package notifications

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"sheetsync/internal/retry"
)

// ErrBreakerOpen is returned while pushes are suspended after repeated failures.
var ErrBreakerOpen = errors.New("notifications suspended after repeated failures")

// Client pushes alerts to an ntfy topic so they reach people away from the
// terminal that ran the command.
type Client struct {
	httpClient *http.Client
	topicURL   string
	enabled    bool
	retry      retry.Config
	breaker    *breaker

	sent   atomic.Int64
	failed atomic.Int64
}

// PushError describes a push ntfy did not accept.
type PushError struct {
	Kind       string // network, auth, rate_limit, client, server
	StatusCode int
	Err        error
}

func (e *PushError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("ntfy push failed (%s, HTTP %d): %v", e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("ntfy push failed (%s): %v", e.Kind, e.Err)
}

func (e *PushError) Unwrap() error {
	return e.Err
}

func (e *PushError) retryable() bool {
	return e.Kind == "network" || e.Kind == "server" || e.Kind == "rate_limit"
}

// Stats counts pushes since the client was created.
type Stats struct {
	Sent   int64
	Failed int64
}

func NewClient(baseURL, topic string, enabled bool) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		topicURL:   strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(topic, "/"),
		enabled:    enabled,
		retry: retry.Config{
			Name:       "ntfy.push",
			MaxRetries: 2,
			BaseDelay:  500 * time.Millisecond,
			MaxDelay:   5 * time.Second,
			Timeout:    10 * time.Second,
		},
		breaker: newBreaker(5, 30*time.Second),
	}
}

// Alert pushes message under title. Disabled clients do nothing.
func (c *Client) Alert(ctx context.Context, title, message string) error {
	if !c.enabled {
		return nil
	}
	if !c.breaker.allow() {
		log.Debug().Str("title", title).Msg("Notification breaker open, dropping push")
		return ErrBreakerOpen
	}

	p := newPush(title, message)
	_, err := retry.WithRetry(ctx, c.retry, func(ctx context.Context) (struct{}, error) {
		err := c.send(ctx, p)
		var pe *PushError
		if errors.As(err, &pe) && !pe.retryable() {
			return struct{}{}, retry.Permanent(err)
		}
		return struct{}{}, err
	})
	if err != nil {
		c.failed.Add(1)
		c.breaker.failure()
		return err
	}

	c.sent.Add(1)
	c.breaker.success()
	return nil
}

func (c *Client) Stats() Stats {
	return Stats{Sent: c.sent.Load(), Failed: c.failed.Load()}
}

// push is one ntfy message. Leading status marks in the title become ntfy
// tags, and failures are sent with high priority.
type push struct {
	title    string
	body     string
	tags     string
	priority string
}

func newPush(title, message string) push {
	p := push{title: title, body: message, priority: "default"}
	switch {
	case strings.HasPrefix(title, "✅"):
		p.title = strings.TrimSpace(strings.TrimPrefix(title, "✅"))
		p.tags = "white_check_mark"
	case strings.HasPrefix(title, "❌"):
		p.title = strings.TrimSpace(strings.TrimPrefix(title, "❌"))
		p.tags = "x"
		p.priority = "high"
	}
	if p.title == "" {
		p.title = "sheetsync"
	}
	return p
}

func (c *Client) send(ctx context.Context, p push) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.topicURL, strings.NewReader(p.body))
	if err != nil {
		return &PushError{Kind: "client", Err: err}
	}
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	req.Header.Set("Title", p.title)
	req.Header.Set("Priority", p.priority)
	if p.tags != "" {
		req.Header.Set("Tags", p.tags)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &PushError{Kind: "network", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return &PushError{
			Kind:       kindForStatus(resp.StatusCode),
			StatusCode: resp.StatusCode,
			Err:        errors.New(resp.Status),
		}
	}

	log.Debug().
		Str("title", p.title).
		Int("status_code", resp.StatusCode).
		Msg("Pushed notification")
	return nil
}

func kindForStatus(code int) string {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return "auth"
	case code == http.StatusTooManyRequests:
		return "rate_limit"
	case code >= 500:
		return "server"
	default:
		return "client"
	}
}
