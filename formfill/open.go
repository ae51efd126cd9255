package formfill

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/hazyhaar/formfill/coerce"
	"github.com/hazyhaar/formfill/formfill/internal/browser"
	"github.com/hazyhaar/formfill/formfill/internal/history"
	"github.com/hazyhaar/formfill/formfill/internal/sink"
	"github.com/hazyhaar/formfill/llm"
	"github.com/hazyhaar/formfill/profile"
	"github.com/hazyhaar/formfill/reconcile"
)

// Open builds a Service from cfg: the profile store, the optional pass
// history, the alias table, the sinks and the model port. Options given
// here override what cfg would build.
func Open(ctx context.Context, cfg *Config, opts ...Option) (*Service, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	probe := &Service{}
	for _, o := range opts {
		o(probe)
	}
	logger := probe.logger
	if logger == nil {
		logger = slog.Default()
	}

	coerce.SetLogger(logger)
	base := []Option{WithLogger(logger)}
	var opened []io.Closer
	fail := func(err error) (*Service, error) {
		for _, c := range opened {
			c.Close()
		}
		return nil, err
	}

	profiles, err := profile.Open(cfg.Store.Profiles)
	if err != nil {
		return nil, fmt.Errorf("formfill: %w", err)
	}
	opened = append(opened, profiles)
	base = append(base, WithProfiles(profiles))

	if cfg.Store.History != "" {
		h, err := history.Open(cfg.Store.History)
		if err != nil {
			return fail(fmt.Errorf("formfill: %w", err))
		}
		opened = append(opened, h)
		base = append(base, withHistory(h))
	}

	aliases := reconcile.DefaultAliases()
	if cfg.Aliases != "" {
		if err := aliases.LoadAliasFile(cfg.Aliases); err != nil {
			return fail(fmt.Errorf("formfill: %w", err))
		}
	}
	base = append(base, WithReconciler(reconcile.New(
		reconcile.WithAliases(aliases),
		reconcile.WithLogger(logger),
	)))

	sinks, err := buildSinks(cfg.Sinks, logger)
	if err != nil {
		return fail(err)
	}
	base = append(base, WithSinks(sinks...))

	port, err := newPort(ctx, cfg.LLM, logger)
	if err != nil {
		return fail(err)
	}
	if port != nil {
		base = append(base, WithLLM(port))
	}

	return New(cfg, append(base, opts...)...), nil
}

func buildSinks(cfgs []SinkConfig, logger *slog.Logger) ([]Sink, error) {
	var out []Sink
	for _, sc := range cfgs {
		switch sc.Type {
		case "stdout", "":
			out = append(out, sink.NewStdout(nil))
		case "webhook":
			if sc.URL == "" {
				return nil, errors.New("formfill: webhook sink without url")
			}
			out = append(out, sink.NewWebhook(sc.URL, sink.WithWebhookLogger(logger)))
		default:
			return nil, fmt.Errorf("formfill: unknown sink type %q", sc.Type)
		}
	}
	return out, nil
}

const retryBackoff = 500 * time.Millisecond

// newPort builds the model client behind the usual middleware chain. It
// returns nil when the provider is "none", or "gemini" without a key; the
// Service then maps profile fields directly.
func newPort(ctx context.Context, cfg LLMConfig, logger *slog.Logger) (llm.Port, error) {
	var (
		h   llm.Handler
		err error
	)
	switch cfg.Provider {
	case "none":
		return nil, nil
	case "gemini":
		if cfg.APIKey == "" {
			logger.Warn("formfill: GEMINI_API_KEY not set, model disabled")
			return nil, nil
		}
		h, err = llm.NewGemini(ctx, cfg.APIKey, cfg.Model)
	case "ollama":
		h = llm.NewOllama(cfg.URL, cfg.Model, nil)
	case "http":
		h, err = llm.NewHTTP(cfg.URL, cfg.Timeout)
	default:
		return nil, fmt.Errorf("formfill: unknown llm provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("formfill: %w", err)
	}

	mws := []llm.Middleware{
		llm.Logging(logger, cfg.Provider),
		llm.Recovery(logger),
	}
	if cfg.FallbackModel != "" {
		mws = append(mws, llm.Fallback(llm.NewOllama(cfg.FallbackURL, cfg.FallbackModel, nil), cfg.Provider, logger))
	}
	mws = append(mws,
		llm.Retry(cfg.Retries, retryBackoff, logger),
		llm.Timeout(cfg.Timeout),
	)
	if cfg.CacheSize > 0 {
		cache, err := llm.Cache(cfg.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("formfill: llm cache: %w", err)
		}
		mws = append([]llm.Middleware{cache}, mws...)
	}

	router := llm.NewRouter(llm.WithLogger(logger))
	router.RegisterLocal(cfg.Provider, llm.Chain(mws...)(h))
	return llm.NewClient(router, cfg.Provider, llm.WithClientLogger(logger)), nil
}

// browserManager returns the shared Chrome manager, created on first use.
func (s *Service) browserManager() *browser.Manager {
	s.browserOnce.Do(func() {
		bc := s.cfg.Browser
		s.browser = browser.NewManager(browser.Config{
			RemoteURL:        bc.Remote,
			MemoryLimit:      bc.MemoryLimit,
			RecycleInterval:  bc.RecycleInterval,
			ResourceBlocking: bc.ResourceBlocking,
			Stealth:          browser.ParseStealth(bc.Stealth),
			XvfbDisplay:      bc.XvfbDisplay,
			NavTimeout:       bc.NavTimeout,
			Logger:           s.logger,
		})
	})
	return s.browser
}
