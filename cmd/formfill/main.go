// Command formfill fills web forms from a stored profile.
//
// Usage:
//
//	formfill -import cv.pdf -name "Ada"          # store a profile from a résumé
//	formfill -url https://example.com/apply      # fill a live page in Chrome
//	formfill -html form.html -out filled.html    # fill a saved page offline
//	formfill -serve                              # HTTP API
//	formfill -mcp                                # MCP server on stdio
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/formfill/formfill"
)

type options struct {
	configPath string
	profileID  string
	url        string
	html       string
	out        string
	importPath string
	name       string
	serve      bool
	mcp        bool
}

func main() {
	var o options
	flag.StringVar(&o.configPath, "config", "", "path to formfill.yaml")
	flag.StringVar(&o.profileID, "profile", "", "profile id (default: most recent)")
	flag.StringVar(&o.url, "url", "", "fill the form at this URL")
	flag.StringVar(&o.html, "html", "", "fill a saved HTML page offline")
	flag.StringVar(&o.out, "out", "-", "where -html writes the filled page")
	flag.StringVar(&o.importPath, "import", "", "import a résumé (pdf, docx, html, md, txt, yaml)")
	flag.StringVar(&o.name, "name", "", "profile name for -import")
	flag.BoolVar(&o.serve, "serve", false, "serve the HTTP API")
	flag.BoolVar(&o.mcp, "mcp", false, "serve MCP on stdio")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			logger.Warn("formfill: .env not loaded", "error", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, o); err != nil {
		logger.Error("formfill: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, o options) error {
	if o.importPath == "" && o.url == "" && o.html == "" && !o.serve && !o.mcp {
		fmt.Fprintln(os.Stderr, "usage: formfill -import <file> | -url <url> | -html <file> | -serve | -mcp")
		os.Exit(2)
	}

	cfg := formfill.DefaultConfig()
	if o.configPath != "" {
		var err error
		if cfg, err = formfill.LoadConfigFile(o.configPath); err != nil {
			return fmt.Errorf("load config: %w", err)
		}
	}
	cfg.LLM.APIKey = os.Getenv("GEMINI_API_KEY")
	if h := os.Getenv("FORMFILL_TOKEN_HASH"); h != "" {
		cfg.HTTP.TokenHash = h
	}
	// stdout carries the MCP protocol or the filled page in these modes.
	if o.mcp || (o.html != "" && o.out == "-") {
		dropStdoutSinks(cfg)
	}

	svc, err := formfill.Open(ctx, cfg, formfill.WithLogger(logger))
	if err != nil {
		return err
	}
	defer svc.Close()

	switch {
	case o.importPath != "":
		p, err := svc.ImportProfile(ctx, o.importPath, o.name)
		if err != nil {
			return err
		}
		fmt.Println(p.ID)
		return nil
	case o.url != "":
		_, err := svc.FillURL(ctx, o.url, o.profileID)
		return err
	case o.html != "":
		return runHTML(ctx, svc, o)
	case o.serve:
		return serveHTTP(ctx, logger, svc, cfg.HTTP.Addr)
	case o.mcp:
		srv := mcp.NewServer(&mcp.Implementation{Name: "formfill", Version: "0.1.0"}, nil)
		svc.RegisterMCP(srv)
		return srv.Run(ctx, &mcp.StdioTransport{})
	}
	return nil
}

func runHTML(ctx context.Context, svc *formfill.Service, o options) error {
	in, err := os.Open(o.html)
	if err != nil {
		return err
	}
	defer in.Close()

	var w io.Writer = os.Stdout
	if o.out != "-" {
		f, err := os.Create(o.out)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	_, err = svc.FillHTML(ctx, in, w, o.profileID, nil)
	return err
}

func serveHTTP(ctx context.Context, logger *slog.Logger, svc *formfill.Service, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           svc.Routes(ctx.Done()),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      3 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("formfill: http listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("formfill: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func dropStdoutSinks(cfg *formfill.Config) {
	kept := cfg.Sinks[:0]
	for _, sc := range cfg.Sinks {
		if sc.Type != "stdout" && sc.Type != "" {
			kept = append(kept, sc)
		}
	}
	cfg.Sinks = kept
}
