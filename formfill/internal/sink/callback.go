package sink

import "context"

// Func is called for each event.
type Func func(ctx context.Context, ev Event) error

// Callback delivers events through a Go function call, for callers that
// embed the service in their own process.
type Callback struct {
	fn Func
}

// NewCallback creates a Callback sink. A nil fn discards events.
func NewCallback(fn Func) *Callback {
	return &Callback{fn: fn}
}

func (c *Callback) Send(ctx context.Context, ev Event) error {
	if c.fn != nil {
		return c.fn(ctx, ev)
	}
	return nil
}

func (c *Callback) Close() error { return nil }
