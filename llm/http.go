package llm

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/hazyhaar/formfill/internal/safeurl"
)

// NewHTTP returns a handler that POSTs the prompt as text/plain to a
// completion proxy and returns the response body as the model reply.
func NewHTTP(endpoint string, timeout time.Duration) (Handler, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("llm/http: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("llm/http: unsupported scheme %q", u.Scheme)
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	client := &http.Client{Timeout: timeout}

	return func(ctx context.Context, payload []byte) ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("llm/http: create request: %w", err)
		}
		req.Header.Set("Content-Type", "text/plain; charset=utf-8")

		resp, err := client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("llm/http: do request: %w", err)
		}
		defer resp.Body.Close()

		body, err := safeurl.ReadLimited(resp.Body, maxResponseBody)
		if err != nil {
			return nil, fmt.Errorf("llm/http: read response: %w", err)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf("llm/http: status %d: %s", resp.StatusCode, body)
		}
		return body, nil
	}, nil
}
