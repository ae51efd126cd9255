// Package shield provides the HTTP middleware stack of the formfill API:
// security headers, body limits, request ids with a per-request logger, and
// per-IP rate limiting.
//
// Usage:
//
//	r := chi.NewRouter()
//	for _, mw := range shield.APIStack(shield.StackConfig{MaxBody: 4 << 20}, done) {
//	    r.Use(mw)
//	}
package shield

import (
	"log/slog"
	"net/http"
	"time"
)

type contextKey string

// LoggerKey is the context key for the per-request structured logger.
const LoggerKey contextKey = "shield_logger"

// StackConfig tunes APIStack.
type StackConfig struct {
	// MaxBody caps request bodies. Zero means 4 MiB.
	MaxBody int64
	// Limits maps "METHOD /path" to a rate limit. Nil disables limiting.
	Limits map[string]Limit
	Logger *slog.Logger
}

// APIStack returns the middleware for the JSON API, outermost first:
// HeadToGet → SecurityHeaders → MaxBody → RequestID → RateLimiter.
// The rate limiter's bucket GC runs until done is closed.
func APIStack(cfg StackConfig, done <-chan struct{}) []func(http.Handler) http.Handler {
	if cfg.MaxBody <= 0 {
		cfg.MaxBody = 4 << 20
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	stack := []func(http.Handler) http.Handler{
		HeadToGet,
		SecurityHeaders(DefaultHeaders()),
		MaxBody(cfg.MaxBody),
		RequestID(cfg.Logger),
	}
	if len(cfg.Limits) > 0 {
		rl := NewRateLimiter(cfg.Limits, "/healthz")
		if done != nil {
			rl.StartGC(done, 5*time.Minute)
		}
		stack = append(stack, rl.Middleware)
	}
	return stack
}
