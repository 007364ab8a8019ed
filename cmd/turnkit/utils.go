package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/elee1766/turnkit/src/app"
	"github.com/elee1766/turnkit/src/config"
	"github.com/elee1766/turnkit/src/turnagent/toolsutil"
)

// loadConfig loads the configuration from the default locations. path, when
// set, replaces the user config file.
func loadConfig(path string) (*config.Config, error) {
	precedence := config.GetConfigPaths()
	if path != "" {
		precedence.UserConfig = path
	}

	loader := config.NewLoader(precedence)
	return loader.Load()
}

// overrideConfigFromCLI overrides configuration values with CLI flags
func overrideConfigFromCLI(cfg *config.Config, cli *CLI) {
	if cli.APIKey != "" {
		cfg.API.APIKey = cli.APIKey
	}
	if cli.BaseURL != "" {
		cfg.API.BaseURL = cli.BaseURL
	}
	if cli.LogLevel != "" {
		cfg.Logging.Level = cli.LogLevel
	}
	if cli.LogFormat != "" {
		cfg.Logging.Format = cli.LogFormat
	}
}

// setup loads configuration and builds the logger every command shares.
func setup(cli *CLI) (*config.Config, *slog.Logger, error) {
	cfg, err := loadConfig(cli.ConfigFile)
	if err != nil {
		return nil, nil, err
	}
	overrideConfigFromCLI(cfg, cli)

	logger := createCLILogger(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)
	toolsutil.SetLogger(logger)
	return cfg, logger, nil
}

// newApp builds the application and, when enabled, serves its metrics until
// the returned cleanup runs.
func newApp(ctx context.Context, cli *CLI) (*app.App, func(), error) {
	cfg, logger, err := setup(cli)
	if err != nil {
		return nil, nil, err
	}

	a, err := app.New(ctx, app.Options{Config: cfg, Logger: logger})
	if err != nil {
		return nil, nil, err
	}

	stop := func() {}
	if cfg.Metrics.Enabled {
		stop = serveMetrics(a, cfg.Metrics.Listen)
	}
	return a, func() {
		stop()
		if err := a.Close(); err != nil {
			logger.Warn("failed to close app", "error", err)
		}
	}, nil
}

func serveMetrics(a *app.App, addr string) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", a.Metrics.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.Error("metrics server failed", "error", err, "addr", addr)
		}
	}()
	a.Logger.Info("serving metrics", "addr", addr)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}
}

// maskAPIKey masks an API key for display
func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + strings.Repeat("*", len(key)-8) + key[len(key)-4:]
}
