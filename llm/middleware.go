package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"runtime/debug"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/hazyhaar/formfill/field"
	"github.com/hazyhaar/formfill/kit"
)

// Middleware wraps a Handler without changing its signature.
type Middleware func(next Handler) Handler

// Chain composes middlewares; the first is the outermost wrapper.
func Chain(mws ...Middleware) Middleware {
	return func(next Handler) Handler {
		for i := len(mws) - 1; i >= 0; i-- {
			next = mws[i](next)
		}
		return next
	}
}

// Logging logs every call with its duration.
func Logging(logger *slog.Logger, service string) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, payload []byte) ([]byte, error) {
			start := time.Now()
			resp, err := next(ctx, payload)
			dur := time.Since(start)
			if err != nil {
				logger.ErrorContext(ctx, "llm: call failed",
					"service", service,
					"pass_id", kit.GetPassID(ctx),
					"duration_ms", dur.Milliseconds(),
					"payload_bytes", len(payload),
					"error", err)
			} else {
				logger.DebugContext(ctx, "llm: call ok",
					"service", service,
					"pass_id", kit.GetPassID(ctx),
					"duration_ms", dur.Milliseconds(),
					"payload_bytes", len(payload),
					"response_bytes", len(resp))
			}
			return resp, err
		}
	}
}

// Timeout bounds each call. Zero disables it.
func Timeout(d time.Duration) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, payload []byte) ([]byte, error) {
			if d > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, d)
				defer cancel()
			}
			return next(ctx, payload)
		}
	}
}

// Recovery turns a provider panic into an *ErrPanic.
func Recovery(logger *slog.Logger) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, payload []byte) (resp []byte, err error) {
			defer func() {
				if r := recover(); r != nil {
					logger.ErrorContext(ctx, "llm: provider panic recovered",
						"panic", r,
						"stack", string(debug.Stack()))
					err = &ErrPanic{Value: r}
				}
			}()
			return next(ctx, payload)
		}
	}
}

// Retry retries failed calls with exponential backoff, stopping early when
// the context is done. logger may be nil.
func Retry(maxRetries int, baseBackoff time.Duration, logger *slog.Logger) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, payload []byte) ([]byte, error) {
			var lastErr error
			for attempt := 0; attempt <= maxRetries; attempt++ {
				resp, err := next(ctx, payload)
				if err == nil {
					return resp, nil
				}
				lastErr = err
				if ctx.Err() != nil {
					return nil, lastErr
				}
				if attempt < maxRetries {
					wait := baseBackoff * (1 << uint(attempt))
					if logger != nil {
						logger.WarnContext(ctx, "llm: retrying call",
							"attempt", attempt+1,
							"max_retries", maxRetries,
							"backoff_ms", wait.Milliseconds(),
							"error", err)
					}
					select {
					case <-ctx.Done():
						return nil, lastErr
					case <-time.After(wait):
					}
				}
			}
			return nil, lastErr
		}
	}
}

// Fallback calls local when the wrapped provider fails, unless the caller
// gave up. A nil local disables the middleware.
func Fallback(local Handler, service string, logger *slog.Logger) Middleware {
	return func(next Handler) Handler {
		if local == nil {
			return next
		}
		return func(ctx context.Context, payload []byte) ([]byte, error) {
			resp, err := next(ctx, payload)
			if err == nil {
				return resp, nil
			}
			if ctx.Err() != nil {
				return nil, err
			}
			if logger != nil {
				logger.WarnContext(ctx, "llm: provider failed, using fallback",
					"service", service, "error", err)
			}
			return local(ctx, payload)
		}
	}
}

// Cache memoises replies keyed by the SHA-256 of the payload, so filling the
// same form twice with the same résumé costs one call. Only replies that
// parse as a JSON object are kept; a garbage answer is asked again next time.
func Cache(size int) (Middleware, error) {
	c, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, err
	}
	return func(next Handler) Handler {
		return func(ctx context.Context, payload []byte) ([]byte, error) {
			sum := sha256.Sum256(payload)
			key := hex.EncodeToString(sum[:])
			if v, ok := c.Get(key); ok {
				return v, nil
			}
			resp, err := next(ctx, payload)
			if err != nil {
				return nil, err
			}
			if _, perr := field.ParseResponse([]byte(StripFences(string(resp)))); perr == nil {
				c.Add(key, resp)
			}
			return resp, nil
		}
	}, nil
}
