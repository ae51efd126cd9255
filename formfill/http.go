package formfill

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/hazyhaar/formfill/field"
	"github.com/hazyhaar/formfill/formfill/internal/history"
	"github.com/hazyhaar/formfill/profile"
	"github.com/hazyhaar/formfill/shield"
)

// Routes returns the HTTP API. Background work of the middleware stops
// when done is closed.
//
//	GET  /healthz
//	POST /api/reconcile        ReconcileRequest → Pass
//	POST /api/fill-html        FillHTMLRequest  → FillHTMLResult
//	POST /api/fill-url         FillURLRequest   → Pass
//	GET  /api/profiles[/{id}]
//	GET  /api/passes[/{id}]    when history is enabled
//	GET  /api/stats            when history is enabled
func (s *Service) Routes(done <-chan struct{}) http.Handler {
	r := chi.NewRouter()

	var limits map[string]shield.Limit
	if n := s.cfg.HTTP.RateLimit; n > 0 {
		lim := shield.Limit{MaxRequests: n, Window: time.Minute}
		limits = map[string]shield.Limit{
			"POST /api/reconcile": lim,
			"POST /api/fill-html": lim,
			"POST /api/fill-url":  lim,
		}
	}
	for _, mw := range shield.APIStack(shield.StackConfig{
		MaxBody: s.cfg.HTTP.MaxBody,
		Limits:  limits,
		Logger:  s.logger,
	}, done) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, 200, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(s.requireToken)

		r.Post("/api/reconcile", serve(s.reconcileEndpoint, func(req *ReconcileRequest) error {
			if len(req.Descriptors) == 0 {
				return field.ErrNoDescriptors
			}
			return nil
		}))
		r.Post("/api/fill-html", serve[FillHTMLRequest](s.fillHTMLEndpoint, nil))
		r.Post("/api/fill-url", serve[FillURLRequest](s.fillURLEndpoint, nil))

		r.Get("/api/profiles", func(w http.ResponseWriter, r *http.Request) {
			s.respond(w, r, &ProfilesRequest{})
		})
		r.Get("/api/profiles/{id}", func(w http.ResponseWriter, r *http.Request) {
			s.respond(w, r, &ProfilesRequest{ID: chi.URLParam(r, "id")})
		})

		if s.history == nil {
			return
		}
		r.Get("/api/passes", func(w http.ResponseWriter, r *http.Request) {
			limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
			evs, err := s.history.List(r.Context(), r.URL.Query().Get("profile_id"), limit)
			if err != nil {
				writeError(w, statusOf(err), err)
				return
			}
			writeJSON(w, 200, evs)
		})
		r.Get("/api/passes/{id}", func(w http.ResponseWriter, r *http.Request) {
			ev, err := s.history.Get(r.Context(), chi.URLParam(r, "id"))
			if err != nil {
				writeError(w, statusOf(err), err)
				return
			}
			writeJSON(w, 200, ev)
		})
		r.Get("/api/stats", func(w http.ResponseWriter, r *http.Request) {
			st, err := s.history.Stats(r.Context())
			if err != nil {
				writeError(w, statusOf(err), err)
				return
			}
			writeJSON(w, 200, st)
		})
	})

	return r
}

func (s *Service) respond(w http.ResponseWriter, r *http.Request, req *ProfilesRequest) {
	out, err := s.profilesEndpoint(r.Context(), req)
	if err != nil {
		writeError(w, statusOf(err), err)
		return
	}
	writeJSON(w, 200, out)
}

// requireToken checks "Authorization: Bearer <token>" against the bcrypt
// hash in the configuration. An empty hash lets every request through.
func (s *Service) requireToken(next http.Handler) http.Handler {
	hash := []byte(s.cfg.HTTP.TokenHash)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(hash) == 0 {
			next.ServeHTTP(w, r)
			return
		}
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || bcrypt.CompareHashAndPassword(hash, []byte(token)) != nil {
			shield.GetLogger(r.Context()).Warn("formfill: unauthorized request")
			writeJSON(w, 401, map[string]string{"error": "unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// serve decodes a JSON body into T, runs check when given, then the
// endpoint.
func serve[T any](ep func(context.Context, any) (any, error), check func(*T) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req T
		dec := json.NewDecoder(r.Body)
		if err := dec.Decode(&req); err != nil {
			writeError(w, 400, err)
			return
		}
		if check != nil {
			if err := check(&req); err != nil {
				writeError(w, 400, err)
				return
			}
		}
		out, err := ep(r.Context(), &req)
		if err != nil {
			shield.GetLogger(r.Context()).Warn("formfill: request failed", "error", err)
			writeError(w, statusOf(err), err)
			return
		}
		writeJSON(w, 200, out)
	}
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, profile.ErrNotFound), errors.Is(err, history.ErrNotFound),
		errors.Is(err, ErrNoProfile):
		return 404
	case errors.Is(err, ErrInvalidForm), errors.Is(err, ErrBadURL),
		errors.Is(err, field.ErrNoDescriptors), errors.Is(err, field.ErrMalformedResponse):
		return 400
	case errors.Is(err, context.DeadlineExceeded):
		return 504
	}
	return 500
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		code = 500
		buf.Reset()
		buf.WriteString(`{"error":"encode response"}` + "\n")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(buf.Bytes())
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
