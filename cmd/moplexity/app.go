// ABOUTME: Wires configuration, logging, telemetry, settings storage, and the conversation store
// ABOUTME: One app per process; Close releases everything in reverse order

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/2389/moplexity-client/internal/client"
	"github.com/2389/moplexity-client/internal/config"
	"github.com/2389/moplexity-client/internal/conversation"
	"github.com/2389/moplexity-client/internal/logging"
	"github.com/2389/moplexity-client/internal/settings"
	"github.com/2389/moplexity-client/internal/store"
	"github.com/2389/moplexity-client/internal/telemetry"
)

type appOptions struct {
	configPath string
	ephemeral  bool
	out        io.Writer
}

// kvStore is what the app needs from a settings backend.
type kvStore interface {
	settings.KV
	Close() error
}

type app struct {
	cfg          *config.Config
	logger       *slog.Logger
	out          io.Writer
	api          *client.Client
	kv           kvStore
	settings     *settings.Manager
	store        *conversation.Store
	orchestrator *conversation.Orchestrator

	closers []func() error
}

func newApp(ctx context.Context, opts appOptions) (*app, error) {
	path := opts.configPath
	if path == "" {
		path = config.Path()
	}
	cfg, err := config.LoadOrDefault(path)
	if err != nil {
		return nil, err
	}
	if opts.ephemeral {
		cfg.Database.Ephemeral = true
	}

	logger, logCloser, err := logging.New(cfg.Logging, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("setting up logging: %w", err)
	}
	slog.SetDefault(logger)

	a := &app{
		cfg:    cfg,
		logger: logger,
		out:    opts.out,
	}
	a.closers = append(a.closers, logCloser.Close)

	shutdown, err := telemetry.Init(ctx, cfg.Telemetry, version, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("setting up telemetry: %w", err)
	}
	a.closers = append(a.closers, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return shutdown(ctx)
	})

	if cfg.Database.Ephemeral {
		a.kv = store.NewMemoryStore()
	} else {
		sqlStore, err := store.NewSQLiteStore(cfg.Database.Path)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("opening settings database: %w", err)
		}
		a.kv = sqlStore
	}
	a.closers = append(a.closers, a.kv.Close)

	a.settings = settings.NewManager(a.kv, logger)
	if err := a.settings.Load(ctx); err != nil {
		a.Close()
		return nil, err
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = cfg.Server.ResponseHeaderTimeout
	a.api = client.New(cfg.Server.BaseURL,
		client.WithHTTPClient(&http.Client{Transport: transport}),
		client.WithLogger(logger))

	a.store = conversation.NewStore(a.api, logger)
	a.closers = append(a.closers, func() error {
		a.store.Close()
		return nil
	})
	a.orchestrator = conversation.NewOrchestrator(a.store, a.settings, logger)

	logger.Info("moplexity started",
		"version", version,
		"backend", cfg.Server.BaseURL,
		"config", path,
		"ephemeral", cfg.Database.Ephemeral)

	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && a.logger != nil {
			a.logger.Warn("shutdown step failed", "error", err)
		}
	}
	a.closers = nil
}
