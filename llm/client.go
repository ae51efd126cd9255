package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hazyhaar/formfill/field"
)

// Port is what the orchestrator needs from a model.
type Port interface {
	Send(ctx context.Context, req Request) (field.Response, error)
}

// Client sends prompts through a Router to one provider.
type Client struct {
	router   *Router
	provider string
	logger   *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithClientLogger sets the logger for reply diagnostics.
func WithClientLogger(l *slog.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient creates a Client calling provider on router.
func NewClient(router *Router, provider string, opts ...ClientOption) *Client {
	c := &Client{router: router, provider: provider, logger: slog.Default()}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Provider returns the provider name.
func (c *Client) Provider() string { return c.provider }

// Send builds the prompt, calls the provider and parses the reply. Provider
// failures come back as *Error; a reply that is not a JSON object wraps
// field.ErrMalformedResponse.
func (c *Client) Send(ctx context.Context, req Request) (field.Response, error) {
	out, err := c.router.Call(ctx, c.provider, []byte(BuildPrompt(req)))
	if err != nil {
		return field.Response{}, &Error{Provider: c.provider, Err: err}
	}
	resp, err := field.ParseResponse([]byte(StripFences(string(out))))
	if err != nil {
		c.logger.WarnContext(ctx, "llm: unparsable reply", "provider", c.provider, "bytes", len(out))
		return field.Response{}, fmt.Errorf("llm: %s reply: %w", c.provider, err)
	}
	return resp, nil
}

// StripFences removes a reasoning preamble, a markdown code fence around the
// reply and any text before the first '{' or after the last '}'.
func StripFences(s string) string {
	if i := strings.LastIndex(s, "</think>"); i >= 0 {
		s = s[i+len("</think>"):]
	}
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if nl := strings.IndexByte(s, '\n'); nl >= 0 {
			s = s[nl+1:]
		}
		if end := strings.LastIndex(s, "```"); end >= 0 {
			s = s[:end]
		}
		s = strings.TrimSpace(s)
	}
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start >= 0 && end > start {
		s = s[start : end+1]
	}
	return s
}
