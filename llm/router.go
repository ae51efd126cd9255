// Package llm asks a language model to fill a form. Providers are plain
// handlers (prompt bytes in, model text out) registered on a Router under a
// name and wrapped with middleware; Client turns the reply into a
// field.Response.
//
//	router := llm.NewRouter()
//	router.RegisterLocal("ollama", llm.Chain(llm.Retry(2, time.Second, nil))(llm.NewOllama(url, "llama3", nil)))
//	client := llm.NewClient(router, "ollama")
//	resp, err := client.Send(ctx, llm.Request{Descriptors: descs, Resume: cv})
package llm

import (
	"context"
	"log/slog"
	"sort"
	"sync"
)

// Handler is a provider call: payload in, raw model output out.
type Handler func(ctx context.Context, payload []byte) ([]byte, error)

// Router dispatches calls to named providers. Safe for concurrent use.
type Router struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	logger   *slog.Logger
}

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithLogger sets the router logger.
func WithLogger(l *slog.Logger) RouterOption {
	return func(r *Router) { r.logger = l }
}

// NewRouter creates an empty Router.
func NewRouter(opts ...RouterOption) *Router {
	r := &Router{handlers: make(map[string]Handler), logger: slog.Default()}
	for _, o := range opts {
		o(r)
	}
	return r
}

// RegisterLocal registers h under service, replacing any previous handler.
func (r *Router) RegisterLocal(service string, h Handler) {
	r.mu.Lock()
	r.handlers[service] = h
	r.mu.Unlock()
}

// Services lists registered provider names, sorted.
func (r *Router) Services() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Call dispatches payload to service.
func (r *Router) Call(ctx context.Context, service string, payload []byte) ([]byte, error) {
	r.mu.RLock()
	h, ok := r.handlers[service]
	r.mu.RUnlock()
	if !ok {
		return nil, &ErrServiceNotFound{Service: service}
	}
	r.logger.DebugContext(ctx, "llm: routing", "service", service, "payload_bytes", len(payload))
	return h(ctx, payload)
}
