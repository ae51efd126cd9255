package shield

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hazyhaar/formfill/kit"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestSecurityHeaders(t *testing.T) {
	// WHAT: Default headers are set on every response.
	// WHY: The API never serves active content.
	h := SecurityHeaders(DefaultHeaders())(okHandler())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("missing nosniff")
	}
	if rec.Header().Get("X-Frame-Options") != "DENY" {
		t.Error("missing frame options")
	}
	if !strings.Contains(rec.Header().Get("Content-Security-Policy"), "default-src 'none'") {
		t.Error("missing csp")
	}
}

func TestMaxBody(t *testing.T) {
	// WHAT: Bodies beyond the limit are answered with 413.
	// WHY: Fill requests carry whole pages and must be bounded.
	h := MaxBody(4)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := io.ReadAll(r.Body); err != nil {
			w.WriteHeader(http.StatusRequestEntityTooLarge)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("too long")))
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("code = %d, want 413", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("ok")))
	if rec.Code != http.StatusOK {
		t.Errorf("code = %d, want 200", rec.Code)
	}
}

func TestRequestID(t *testing.T) {
	// WHAT: Requests get an id, or keep the caller's, with a tagged logger.
	// WHY: Logs of one request must be traceable across layers.
	var gotID, gotTransport string
	h := RequestID(quiet())(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		gotID = kit.GetRequestID(r.Context())
		gotTransport = kit.GetTransport(r.Context())
		if GetLogger(r.Context()) == slog.Default() {
			t.Error("expected per-request logger")
		}
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if gotID == "" || rec.Header().Get("X-Request-ID") != gotID {
		t.Errorf("id = %q, header = %q", gotID, rec.Header().Get("X-Request-ID"))
	}
	if gotTransport != "http" {
		t.Errorf("transport = %q", gotTransport)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if gotID != "abc" {
		t.Errorf("caller id not kept: %q", gotID)
	}
}

func TestHeadToGet(t *testing.T) {
	var method string
	h := HeadToGet(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) { method = r.Method }))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodHead, "/", nil))
	if method != http.MethodGet {
		t.Errorf("method = %s", method)
	}
}

func TestRateLimiter(t *testing.T) {
	// WHAT: Requests over the window limit get 429 per IP.
	// WHY: Each fill may start Chrome and call a model.
	rl := NewRateLimiter(map[string]Limit{
		"POST /api/fill": {MaxRequests: 2, Window: time.Minute},
	}, "/healthz")
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	h := rl.Middleware(okHandler())

	do := func(method, path, ip string) int {
		req := httptest.NewRequest(method, path, nil)
		req.RemoteAddr = ip + ":1234"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	for i := 0; i < 2; i++ {
		if code := do(http.MethodPost, "/api/fill", "10.0.0.1"); code != http.StatusOK {
			t.Fatalf("request %d: code %d", i, code)
		}
	}
	if code := do(http.MethodPost, "/api/fill", "10.0.0.1"); code != http.StatusTooManyRequests {
		t.Errorf("third request code = %d, want 429", code)
	}
	if code := do(http.MethodPost, "/api/fill", "10.0.0.2"); code != http.StatusOK {
		t.Errorf("other client code = %d", code)
	}
	if code := do(http.MethodGet, "/api/profiles", "10.0.0.1"); code != http.StatusOK {
		t.Errorf("unlisted endpoint code = %d", code)
	}

	now = now.Add(2 * time.Minute)
	if code := do(http.MethodPost, "/api/fill", "10.0.0.1"); code != http.StatusOK {
		t.Errorf("after window code = %d", code)
	}
	rl.gc()
}

func TestExtractIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-For", "1.2.3.4, 5.6.7.8")
	if ip := ExtractIP(req); ip != "1.2.3.4" {
		t.Errorf("ip = %q", ip)
	}
}

func TestMaxBody_DeclaredLength(t *testing.T) {
	called := false
	h := MaxBody(4)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("0123456789")))
	if rec.Code != http.StatusRequestEntityTooLarge || called {
		t.Errorf("code = %d, handler called = %v", rec.Code, called)
	}
}
