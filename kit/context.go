package kit

import "context"

type ctxKey int

const (
	transportKey ctxKey = iota
	requestIDKey
	remoteAddrKey
	passIDKey
)

func str(ctx context.Context, k ctxKey) string {
	v, _ := ctx.Value(k).(string)
	return v
}

// WithTransport records how the call arrived: "http" or "mcp".
func WithTransport(ctx context.Context, t string) context.Context {
	return context.WithValue(ctx, transportKey, t)
}

// GetTransport defaults to "http".
func GetTransport(ctx context.Context) string {
	if t := str(ctx, transportKey); t != "" {
		return t
	}
	return "http"
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

func GetRequestID(ctx context.Context) string { return str(ctx, requestIDKey) }

func WithRemoteAddr(ctx context.Context, addr string) context.Context {
	return context.WithValue(ctx, remoteAddrKey, addr)
}

func GetRemoteAddr(ctx context.Context) string { return str(ctx, remoteAddrKey) }

// WithPassID tags the context with the fill pass being run, so provider
// and filler logs can be tied back to one pass.
func WithPassID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, passIDKey, id)
}

func GetPassID(ctx context.Context) string { return str(ctx, passIDKey) }
