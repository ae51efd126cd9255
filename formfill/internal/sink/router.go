package sink

import (
	"context"
	"errors"
	"log/slog"
)

// Router delivers each event to every sink in order. A failing sink is
// logged and does not stop the others; the joined errors are returned.
type Router struct {
	sinks  []Sink
	logger *slog.Logger
}

func NewRouter(logger *slog.Logger, sinks ...Sink) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{sinks: sinks, logger: logger}
}

// Add registers one more sink. Not safe once Send is in use.
func (r *Router) Add(s Sink) { r.sinks = append(r.sinks, s) }

func (r *Router) Len() int { return len(r.sinks) }

func (r *Router) Send(ctx context.Context, ev Event) error {
	var errs []error
	for i, s := range r.sinks {
		if err := s.Send(ctx, ev); err != nil {
			r.logger.WarnContext(ctx, "sink: delivery failed", "pass_id", ev.PassID, "sink", i, "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink, even after a failure.
func (r *Router) Close() error {
	errs := make([]error, 0, len(r.sinks))
	for _, s := range r.sinks {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}
