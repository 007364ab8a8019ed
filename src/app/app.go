// Package app wires configuration into the storage, memory, tool, provider
// and runner services a command needs.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/elee1766/turnkit/src/agent"
	"github.com/elee1766/turnkit/src/config"
	"github.com/elee1766/turnkit/src/executor"
	"github.com/elee1766/turnkit/src/frame"
	"github.com/elee1766/turnkit/src/memory"
	"github.com/elee1766/turnkit/src/metrics"
	"github.com/elee1766/turnkit/src/orclient"
	"github.com/elee1766/turnkit/src/storage"
	"github.com/elee1766/turnkit/src/turnagent"
	"github.com/elee1766/turnkit/src/turnagent/tools"
	tool_websearch "github.com/elee1766/turnkit/src/turnagent/tools/tool_websearch"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"
)

// App represents the main application with all services
type App struct {
	Config   *config.Config
	Store    *storage.DB
	Memory   *memory.Store
	Toolbox  *agent.DefaultToolbox
	Provider *orclient.Client
	Metrics  *metrics.Metrics
	Registry *prometheus.Registry
	Logger   *slog.Logger
}

// Options holds what New needs beyond the configuration
type Options struct {
	Config *config.Config
	Logger *slog.Logger

	// Fs backs the fs memory backend. Defaults to the OS filesystem.
	Fs afero.Fs

	// HTTPClient replaces the provider's HTTP client.
	HTTPClient *http.Client
}

// New creates a new App instance with all services initialized
func New(ctx context.Context, opts Options) (*App, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}

	store, err := openStore(ctx, cfg.Storage.DatabasePath)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	var backend memory.Backend
	switch cfg.Memory.Backend {
	case config.BackendFS:
		fsys := opts.Fs
		if fsys == nil {
			fsys = afero.NewOsFs()
		}
		if err := fsys.MkdirAll(cfg.Memory.RootDir, 0o755); err != nil {
			store.Close()
			return nil, fmt.Errorf("failed to create memory directory: %w", err)
		}
		backend = memory.NewFSBackend(fsys, cfg.Memory.RootDir)
	default:
		backend = storage.NewMemoryBackend(store)
	}
	mem := memory.NewStore(backend, memory.Limits{
		MaxFileBytes: cfg.Memory.MaxFileBytes,
		MaxUserBytes: cfg.Memory.MaxUserBytes,
		MaxViewBytes: cfg.Memory.MaxViewBytes,
	}, memory.WithLogger(logger), memory.WithMetrics(m))

	toolbox, err := tools.Build(tools.Options{
		Enabled:  cfg.Dispatch.Enabled,
		Deferred: cfg.Dispatch.Deferred,
		Memory:   mem,
		Search: tool_websearch.Config{
			Endpoint: cfg.Dispatch.SearchEndpoint,
			Timeout:  cfg.Dispatch.ToolTimeout,
		},
		Logger: logger,
	})
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to build toolbox: %w", err)
	}

	provider := orclient.NewClient(orclient.Config{
		APIKey:     cfg.API.ResolveAPIKey(),
		BaseURL:    cfg.API.BaseURL,
		Logger:     logger,
		Timeout:    cfg.API.Timeout,
		RetryCount: cfg.API.Retry.MaxRetries + 1,
		RetryDelay: cfg.API.Retry.InitialDelay,
		SiteURL:    cfg.API.SiteURL,
		SiteName:   cfg.API.SiteName,
		HTTPClient: opts.HTTPClient,
	})

	return &App{
		Config:   cfg,
		Store:    store,
		Memory:   mem,
		Toolbox:  toolbox,
		Provider: provider,
		Metrics:  m,
		Registry: reg,
		Logger:   logger,
	}, nil
}

func openStore(ctx context.Context, path string) (*storage.DB, error) {
	if path == "" {
		path = config.GetDefaultStoragePaths().DatabasePath
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create storage directory: %w", err)
		}
	}
	store, err := storage.Open(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}
	return store, nil
}

// SystemPrompt renders the system prompt for the configured toolbox.
func (a *App) SystemPrompt() string {
	return turnagent.GenerateSystemPrompt(a.Toolbox, turnagent.PromptOptions{
		Base:        a.Config.Agent.SystemPrompt,
		Suggestions: a.Config.Agent.SuggestionsEnabled(),
	})
}

// RunnerOptions are the per-invocation parts of a runner.
type RunnerOptions struct {
	// Model overrides the configured model.
	Model string
	// User is sent to the provider and owns memory files.
	User    string
	Sink    executor.EventSink
	Capture io.Writer
}

// NewRunner builds a turn runner bound to one model.
func (a *App) NewRunner(ctx context.Context, opts RunnerOptions) (*executor.Runner, error) {
	cfg := a.Config
	model := opts.Model
	if model == "" {
		model = cfg.Agent.Model
	}
	client, err := a.Provider.Model(ctx, model)
	if err != nil {
		return nil, fmt.Errorf("failed to get model client: %w", err)
	}

	ag := &agent.Agent{
		Model:   client,
		Toolbox: a.Toolbox,
		Logger:  a.Logger,
		User:    opts.User,
	}
	if cfg.Agent.Temperature != 0 {
		t := cfg.Agent.Temperature
		ag.Temperature = &t
	}
	if cfg.Agent.MaxTokens != 0 {
		n := cfg.Agent.MaxTokens
		ag.MaxTokens = &n
	}

	dispatcher, err := executor.NewDispatcher(executor.DispatcherConfig{
		Toolbox:     a.Toolbox,
		Concurrency: cfg.Dispatch.Concurrency,
		Timeout:     cfg.Dispatch.ToolTimeout,
		Validator:   agent.NewValidator(),
		Metrics:     a.Metrics,
		Recorder:    a.Store,
		Logger:      a.Logger,
	})
	if err != nil {
		return nil, err
	}

	return executor.NewRunner(executor.RunnerConfig{
		Agent:      ag,
		Dispatcher: dispatcher,
		Frame:      a.FrameConfig(),
		MaxSteps:   cfg.Agent.MaxSteps,
		ChunkSize:  cfg.Stream.ChunkSize,
		Persister:  a.Store,
		Sink:       opts.Sink,
		Metrics:    a.Metrics,
		Capture:    opts.Capture,
		Logger:     a.Logger,
	})
}

// FrameConfig returns the configured reader settings.
func (a *App) FrameConfig() frame.Config {
	return frame.Config{
		Format:       frame.Format(a.Config.Stream.Format),
		RecordPrefix: a.Config.Stream.RecordPrefix,
		Logger:       a.Logger,
	}
}

// Close closes all resources held by the app
func (a *App) Close() error {
	if a.Store != nil {
		return a.Store.Close()
	}
	return nil
}
