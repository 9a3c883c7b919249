package notify

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"paper-trader/internal/config"
)

// WebhookSink posts each event as JSON to an HTTP endpoint.
type WebhookSink struct {
	url     string
	client  *http.Client
	limiter *RateLimiter // nil when unlimited
}

// NewWebhookSink creates a new WebhookSink.
func NewWebhookSink(cfg config.WebhookConfig) *WebhookSink {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	w := &WebhookSink{
		url: cfg.URL,
		client: &http.Client{
			Timeout: timeout,
		},
	}
	if cfg.RatePerSecond > 0 {
		w.limiter = NewRateLimiter(cfg.RatePerSecond, cfg.Burst)
	}
	return w
}

// Name returns the name of the sink.
func (w *WebhookSink) Name() string {
	return "webhook"
}

// Notify sends the event via webhook.
func (w *WebhookSink) Notify(ctx context.Context, e Event) error {
	if w.limiter != nil {
		if err := w.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("waiting for webhook rate limit: %w", err)
		}
	}

	body, err := NewPayload(e).Marshal()
	if err != nil {
		return fmt.Errorf("marshaling webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating webhook request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "PaperTrader/1.0")
	req.Header.Set("X-Execution-ID", e.Result.ID)

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	return nil
}
