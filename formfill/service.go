// Package formfill runs fill passes: scrape the form, load the candidate
// profile, ask the model, reconcile its answer against the fields and fill
// the document. When the model is unavailable or useless the profile fields
// are mapped directly through the alias table.
package formfill

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hazyhaar/formfill/field"
	"github.com/hazyhaar/formfill/fill"
	"github.com/hazyhaar/formfill/formfill/internal/browser"
	"github.com/hazyhaar/formfill/formfill/internal/history"
	"github.com/hazyhaar/formfill/formfill/internal/sink"
	"github.com/hazyhaar/formfill/kit"
	"github.com/hazyhaar/formfill/llm"
	"github.com/hazyhaar/formfill/profile"
	"github.com/hazyhaar/formfill/reconcile"
)

var (
	// ErrNoProfile is returned when a pass needs a profile and none exists.
	ErrNoProfile = errors.New("formfill: no profile available")
	// ErrInvalidForm wraps descriptor validation failures.
	ErrInvalidForm = errors.New("formfill: invalid form")
)

// Service runs fill passes. It is safe for concurrent use; every pass gets
// its own Pass value and filler.
type Service struct {
	cfg        *Config
	llm        llm.Port
	profiles   *profile.Store
	history    *history.Store
	reconciler *reconcile.Reconciler
	sinks      *sink.Router
	importer   *profile.Importer
	logger     *slog.Logger

	browserOnce sync.Once
	browser     *browser.Manager

	pendingSinks []Sink
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithLLM sets the model port. Without one every pass uses the profile
// fields directly.
func WithLLM(p llm.Port) Option {
	return func(s *Service) { s.llm = p }
}

// WithProfiles sets the profile store.
func WithProfiles(st *profile.Store) Option {
	return func(s *Service) { s.profiles = st }
}

// WithReconciler replaces the default reconciler.
func WithReconciler(r *reconcile.Reconciler) Option {
	return func(s *Service) { s.reconciler = r }
}

// WithSinks adds report sinks.
func WithSinks(sinks ...Sink) Option {
	return func(s *Service) { s.pendingSinks = append(s.pendingSinks, sinks...) }
}

func withHistory(h *history.Store) Option {
	return func(s *Service) { s.history = h }
}

// New creates a Service. A nil cfg uses DefaultConfig.
func New(cfg *Config, opts ...Option) *Service {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	s := &Service{cfg: cfg}
	for _, o := range opts {
		o(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.reconciler == nil {
		s.reconciler = reconcile.New(reconcile.WithLogger(s.logger))
	}
	s.sinks = sink.NewRouter(s.logger, s.pendingSinks...)
	if s.history != nil {
		s.sinks.Add(s.history)
	}
	s.pendingSinks = nil
	s.importer = profile.NewImporter(s.logger)
	return s
}

// Close releases the browser, the sinks and the databases.
func (s *Service) Close() error {
	var errs []error
	if s.browser != nil {
		errs = append(errs, s.browser.Close())
	}
	errs = append(errs, s.sinks.Close())
	if s.profiles != nil {
		errs = append(errs, s.profiles.Close())
	}
	return errors.Join(errs...)
}

// Profiles returns the profile store, or nil.
func (s *Service) Profiles() *profile.Store { return s.profiles }

func (s *Service) newPass(descs []field.Descriptor) (*Pass, error) {
	if err := field.Validate(descs); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidForm, err)
	}
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("formfill: pass id: %w", err)
	}
	return &Pass{ID: id.String(), Descriptors: descs, StartedAt: time.Now().UTC()}, nil
}

// Reconcile maps a response the caller already has onto descs. Nothing is
// filled; extension clients apply the mappings on their side.
func (s *Service) Reconcile(ctx context.Context, descs []field.Descriptor, resp field.Response) (*Pass, error) {
	p, err := s.newPass(descs)
	if err != nil {
		return nil, err
	}
	p.Response = resp
	if err := s.reconcile(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Plan loads the profile, asks the model and reconciles its answer. An
// empty profileID uses the most recently updated profile. Model failures
// (provider errors and unparsable replies) switch to the profile fields.
func (s *Service) Plan(ctx context.Context, descs []field.Descriptor, profileID string) (*Pass, error) {
	p, err := s.newPass(descs)
	if err != nil {
		return nil, err
	}
	ctx = kit.WithPassID(ctx, p.ID)
	prof, err := s.loadProfile(ctx, profileID)
	if err != nil {
		return nil, err
	}
	p.Profile, p.ProfileID = prof, prof.ID

	resp, err := s.ask(ctx, p)
	if err != nil {
		return nil, err
	}
	p.Response = resp
	if err := s.reconcile(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Run plans and fills one pass over doc. The report is also sent to every
// sink.
func (s *Service) Run(ctx context.Context, doc fill.Document, descs []field.Descriptor, profileID string) (*Pass, error) {
	p, err := s.Plan(ctx, descs, profileID)
	if err != nil {
		return nil, err
	}
	s.apply(ctx, doc, p, s.cfg.Fill.Delay)
	return p, nil
}

func (s *Service) loadProfile(ctx context.Context, id string) (*profile.Profile, error) {
	if s.profiles == nil {
		return nil, ErrNoProfile
	}
	if id != "" {
		prof, err := s.profiles.Get(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("formfill: %w", err)
		}
		return prof, nil
	}
	all, err := s.profiles.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("formfill: %w", err)
	}
	if len(all) == 0 {
		return nil, ErrNoProfile
	}
	return &all[0], nil
}

// ask returns the model's response, or the deterministic one when the
// model fails. Cancellation is returned as is.
func (s *Service) ask(ctx context.Context, p *Pass) (field.Response, error) {
	if s.llm == nil {
		p.UsedFallback = true
		return deterministic(p.Profile), nil
	}
	if pr, ok := s.llm.(interface{ Provider() string }); ok {
		p.Provider = pr.Provider()
	}

	resp, err := s.llm.Send(ctx, llm.Request{
		Descriptors:  p.Descriptors,
		Resume:       p.Profile.Resume,
		Profile:      p.Profile.Fields,
		Instructions: s.cfg.LLM.Instructions,
	})
	if err == nil {
		return resp, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return field.Response{}, fmt.Errorf("formfill: ask model: %w", ctxErr)
	}
	var lerr *llm.Error
	if !errors.As(err, &lerr) && !errors.Is(err, field.ErrMalformedResponse) {
		return field.Response{}, fmt.Errorf("formfill: ask model: %w", err)
	}
	s.logger.WarnContext(ctx, "formfill: model failed, mapping profile fields",
		"pass_id", p.ID, "provider", p.Provider, "error", err)
	p.UsedFallback = true
	p.ModelError = err.Error()
	return deterministic(p.Profile), nil
}

func (s *Service) reconcile(ctx context.Context, p *Pass) error {
	mappings, err := s.reconciler.Reconcile(p.Descriptors, p.Response)
	if err != nil {
		return fmt.Errorf("formfill: reconcile: %w", err)
	}
	p.Mappings = mappings
	p.Summary = reconcile.Validate(mappings)
	if !p.Summary.Valid {
		s.logger.InfoContext(ctx, "formfill: required fields without value",
			"pass_id", p.ID, "errors", p.Summary.CriticalErrors)
	}
	return nil
}

// apply fills doc and records the report. When the model's answer filled
// nothing and the profile has fields, the profile fields are tried once.
func (s *Service) apply(ctx context.Context, doc fill.Document, p *Pass, delay time.Duration) {
	filler := fill.New(doc, fill.WithDelay(delay), fill.WithLogger(s.logger))
	report := filler.Fill(ctx, p.Mappings)

	if report.Filled == 0 && !p.UsedFallback && p.Profile != nil && len(p.Profile.Fields) > 0 {
		s.logger.InfoContext(ctx, "formfill: model answer filled nothing, mapping profile fields",
			"pass_id", p.ID)
		p.UsedFallback = true
		p.Response = deterministic(p.Profile)
		if err := s.reconcile(ctx, p); err == nil {
			report = filler.Fill(ctx, p.Mappings)
		}
	}

	p.Report = &report
	p.FinishedAt = time.Now().UTC()
	s.logger.InfoContext(ctx, "formfill: pass done",
		"pass_id", p.ID,
		"url", p.URL,
		"filled", report.Filled,
		"failed", report.Failed,
		"skipped", report.Skipped,
		"fallback", p.UsedFallback)

	if err := s.sinks.Send(ctx, p.event()); err != nil {
		s.logger.WarnContext(ctx, "formfill: report delivery failed", "pass_id", p.ID, "error", err)
	}
}

// deterministic turns the profile fields into a response. Keys are the
// field names themselves, so matching relies on ids, names and the alias
// table.
func deterministic(prof *profile.Profile) field.Response {
	if prof == nil {
		return field.NewResponse()
	}
	fields := prof.Fields
	first, last := fields["first_name"], fields["last_name"]
	if _, ok := fields["full_name"]; !ok && first != "" && last != "" {
		fields = make(map[string]string, len(prof.Fields)+1)
		for k, v := range prof.Fields {
			fields[k] = v
		}
		fields["full_name"] = first + " " + last
	}
	return field.ResponseFrom(fields)
}
