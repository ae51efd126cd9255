package shield

import "net/http"

// Header is one response header set on every reply.
type Header struct{ Name, Value string }

// DefaultHeaders suits a JSON API that never serves active content.
func DefaultHeaders() []Header {
	return []Header{
		{"Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'"},
		{"X-Frame-Options", "DENY"},
		{"X-Content-Type-Options", "nosniff"},
		{"Referrer-Policy", "no-referrer"},
		{"Cache-Control", "no-store"},
	}
}

// SecurityHeaders sets hs before the handler runs, so handlers may still
// override one of them.
func SecurityHeaders(hs []Header) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, h := range hs {
				if h.Value != "" {
					w.Header().Set(h.Name, h.Value)
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// MaxBody rejects a declared Content-Length above limit with 413 and caps
// the remaining bodies while they are read.
func MaxBody(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > limit {
				http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
				return
			}
			if r.Body != nil && r.Body != http.NoBody {
				r.Body = http.MaxBytesReader(w, r.Body, limit)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// HeadToGet lets chi's GET routes answer HEAD; net/http drops the body.
func HeadToGet(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			r.Method = http.MethodGet
		}
		next.ServeHTTP(w, r)
	})
}
