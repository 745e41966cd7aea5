package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/andresuchdata/bakecast/internal/config"
	"github.com/rs/zerolog/log"
)

const (
	EventForecastApproved = "forecast.approved"
	EventWasteApproved    = "waste.approved"
	EventPipelineFailed   = "pipeline.failed"

	defaultTimeout = 10 * time.Second
	maxAttempts    = 3
)

// Event is the JSON payload posted to the webhook.
type Event struct {
	Type       string         `json:"type"`
	StoreID    int64          `json:"store_id"`
	TargetDate string         `json:"target_date,omitempty"`
	Actor      string         `json:"actor,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
	Message    string         `json:"message"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Notifier delivers pipeline events. Delivery failures never undo the
// operation that produced the event.
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// New returns a background webhook notifier when a URL is configured,
// otherwise a no-op. Callers should Close the result on shutdown.
func New(cfg config.NotifyConfig) Notifier {
	if cfg.WebhookURL == "" {
		return Noop{}
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	hook := NewWebhook(cfg.WebhookURL, &http.Client{Timeout: timeout})
	return NewAsync(hook, defaultQueueSize, timeout*maxAttempts+5*time.Second)
}

// Close drains n when it queues events in the background.
func Close(ctx context.Context, n Notifier) error {
	if a, ok := n.(*Async); ok {
		return a.Close(ctx)
	}
	return nil
}

// Noop discards every event.
type Noop struct{}

func (Noop) Notify(context.Context, Event) error { return nil }

// Webhook posts events as JSON to a single URL.
type Webhook struct {
	url     string
	client  *http.Client
	backoff time.Duration
}

func NewWebhook(url string, client *http.Client) *Webhook {
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	return &Webhook{url: url, client: client, backoff: 500 * time.Millisecond}
}

func (w *Webhook) Notify(ctx context.Context, event Event) error {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		lastErr = w.deliver(ctx, payload)
		if lastErr == nil {
			return nil
		}

		log.Warn().Err(lastErr).
			Str("event", event.Type).
			Int("attempt", attempt).
			Msg("webhook delivery failed")

		if attempt < maxAttempts {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(w.backoff * time.Duration(attempt)):
			}
		}
	}

	return fmt.Errorf("webhook delivery failed after %d attempts: %w", maxAttempts, lastErr)
}

func (w *Webhook) deliver(ctx context.Context, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
