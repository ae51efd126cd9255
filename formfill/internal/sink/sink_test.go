package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hazyhaar/formfill/field"
)

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func event() Event {
	return Event{
		PassID: "p1",
		URL:    "https://example.com/apply",
		Report: field.NewReport([]field.Outcome{{ID: "email", Kind: field.KindEmail, Status: field.Filled}}),
		At:     time.Unix(0, 0).UTC(),
	}
}

func TestStdout(t *testing.T) {
	// WHAT: Stdout writes one typed JSON line per pass.
	// WHY: CLI users pipe the output into jq.
	var buf bytes.Buffer
	s := NewStdout(&buf)
	if err := s.Send(context.Background(), event()); err != nil {
		t.Fatal(err)
	}

	var got struct {
		Type string `json:"type"`
		Data Event  `json:"data"`
	}
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("decode %q: %v", buf.String(), err)
	}
	if got.Type != "pass" || got.Data.PassID != "p1" || got.Data.Report.Filled != 1 {
		t.Errorf("got %+v", got)
	}
}

func TestWebhook_RetriesThenSucceeds(t *testing.T) {
	// WHAT: Server errors are retried until a 2xx.
	// WHY: Receivers restart during deploys.
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("content-type = %q", r.Header.Get("Content-Type"))
		}
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	w := NewWebhook(srv.URL, WithWebhookBackoff(time.Millisecond), WithWebhookLogger(quiet()))
	if err := w.Send(context.Background(), event()); err != nil {
		t.Fatalf("send: %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestWebhook_Exhausted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	w := NewWebhook(srv.URL, WithWebhookRetries(1), WithWebhookBackoff(time.Millisecond), WithWebhookLogger(quiet()))
	if err := w.Send(context.Background(), event()); err == nil {
		t.Fatal("expected error")
	}
}

type failing struct{ closed bool }

func (f *failing) Send(context.Context, Event) error { return errors.New("down") }
func (f *failing) Close() error                      { f.closed = true; return nil }

func TestRouter_FanOut(t *testing.T) {
	// WHAT: A failing sink does not stop the others.
	// WHY: History must be written even when the webhook is down.
	var got []string
	cb := NewCallback(func(_ context.Context, ev Event) error {
		got = append(got, ev.PassID)
		return nil
	})
	bad := &failing{}
	r := NewRouter(quiet(), bad, cb)

	if err := r.Send(context.Background(), event()); err == nil {
		t.Error("expected delivery error")
	}
	if len(got) != 1 || got[0] != "p1" {
		t.Errorf("callback got %v", got)
	}
	if err := r.Close(); err != nil {
		t.Fatal(err)
	}
	if !bad.closed {
		t.Error("sink not closed")
	}
}

func TestCallback_Nil(t *testing.T) {
	if err := NewCallback(nil).Send(context.Background(), event()); err != nil {
		t.Fatal(err)
	}
}

func TestWebhook_ClientErrorIsFinal(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.Header.Get("X-Formfill-Pass") != "p1" {
			t.Errorf("pass header = %q", r.Header.Get("X-Formfill-Pass"))
		}
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	w := NewWebhook(srv.URL, WithWebhookBackoff(time.Millisecond), WithWebhookLogger(quiet()))
	if err := w.Send(context.Background(), event()); err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}
