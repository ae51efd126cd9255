package formfill

import (
	"context"
	"io"
	"log/slog"

	"github.com/hazyhaar/formfill/formfill/internal/sink"
)

// Sink receives one Event per finished fill pass.
type Sink = sink.Sink

// Event is the record of one finished fill pass.
type Event = sink.Event

// NewStdoutSink creates a JSON-lines sink. A nil w writes to stdout.
func NewStdoutSink(w io.Writer) Sink {
	return sink.NewStdout(w)
}

// NewWebhookSink creates a webhook POST sink with retry.
func NewWebhookSink(url string, logger *slog.Logger) Sink {
	return sink.NewWebhook(url, sink.WithWebhookLogger(logger))
}

// NewCallbackSink creates an in-process sink.
func NewCallbackSink(fn func(ctx context.Context, ev Event) error) Sink {
	return sink.NewCallback(fn)
}
