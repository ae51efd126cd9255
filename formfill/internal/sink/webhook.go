package sink

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Webhook POSTs each pass as JSON. Network errors, 429 and 5xx answers are
// retried with doubling pauses; other 4xx answers are final.
type Webhook struct {
	url     string
	client  *http.Client
	retries int
	backoff time.Duration
	logger  *slog.Logger
}

type WebhookOption func(*Webhook)

// WithWebhookRetries sets how many times a delivery is retried. Default: 3.
func WithWebhookRetries(n int) WebhookOption {
	return func(w *Webhook) { w.retries = n }
}

// WithWebhookBackoff sets the first pause. Default: 1s.
func WithWebhookBackoff(d time.Duration) WebhookOption {
	return func(w *Webhook) { w.backoff = d }
}

func WithWebhookClient(c *http.Client) WebhookOption {
	return func(w *Webhook) { w.client = c }
}

func WithWebhookLogger(l *slog.Logger) WebhookOption {
	return func(w *Webhook) { w.logger = l }
}

func NewWebhook(url string, opts ...WebhookOption) *Webhook {
	w := &Webhook{
		url:     url,
		client:  &http.Client{Timeout: 10 * time.Second},
		retries: 3,
		backoff: time.Second,
		logger:  slog.Default(),
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

func (w *Webhook) Send(ctx context.Context, ev Event) error {
	body, err := encode(ev)
	if err != nil {
		return fmt.Errorf("webhook: encode %s: %w", ev.PassID, err)
	}

	var lastErr error
	pause := w.backoff
	for attempt := 0; attempt <= w.retries; attempt++ {
		if attempt > 0 {
			t := time.NewTimer(pause)
			select {
			case <-t.C:
			case <-ctx.Done():
				t.Stop()
				return fmt.Errorf("webhook: %s: %w", ev.PassID, ctx.Err())
			}
			pause *= 2
		}

		retry, err := w.post(ctx, ev.PassID, body)
		if err == nil {
			return nil
		}
		lastErr = err
		w.logger.WarnContext(ctx, "webhook: delivery failed",
			"pass_id", ev.PassID, "attempt", attempt+1, "error", err)
		if !retry {
			break
		}
	}
	return fmt.Errorf("webhook: %s: %w", ev.PassID, lastErr)
}

// post makes one attempt and reports whether a failure is worth retrying.
func (w *Webhook) post(ctx context.Context, passID string, body []byte) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Formfill-Pass", passID)

	resp, err := w.client.Do(req)
	if err != nil {
		return true, err
	}
	resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return false, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return true, fmt.Errorf("status %d", resp.StatusCode)
	}
	return false, fmt.Errorf("status %d", resp.StatusCode)
}

func (w *Webhook) Close() error { return nil }
