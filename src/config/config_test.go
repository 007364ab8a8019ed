package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.Version != "1.0" {
		t.Errorf("Expected version 1.0, got %s", config.Version)
	}
	if config.Agent.Model == "" {
		t.Error("Expected model to be set")
	}
	if config.Stream.Format != FormatRecords {
		t.Errorf("Expected records format, got %s", config.Stream.Format)
	}
	if config.Memory.Backend != BackendSQLite {
		t.Errorf("Expected sqlite memory backend, got %s", config.Memory.Backend)
	}
	if !config.Agent.SuggestionsEnabled() {
		t.Error("Expected suggestions to be enabled by default")
	}
	if filepath.Base(config.Storage.DatabasePath) != "turnkit.db" {
		t.Errorf("Unexpected database path %s", config.Storage.DatabasePath)
	}
	if err := NewValidator().Validate(config); err != nil {
		t.Errorf("Default config should be valid: %v", err)
	}
}

func TestConfigValidation(t *testing.T) {
	validator := NewValidator()

	tests := []struct {
		name    string
		mutate  func(c *Config)
		field   string
		wantErr bool
	}{
		{
			name:   "valid config",
			mutate: func(c *Config) {},
		},
		{
			name:    "invalid temperature",
			mutate:  func(c *Config) { c.Agent.Temperature = 3.0 },
			field:   "Config.Agent.Temperature",
			wantErr: true,
		},
		{
			name:    "negative max tokens",
			mutate:  func(c *Config) { c.Agent.MaxTokens = -1 },
			field:   "Config.Agent.MaxTokens",
			wantErr: true,
		},
		{
			name:    "unknown wire format",
			mutate:  func(c *Config) { c.Stream.Format = "xml" },
			field:   "Config.Stream.Format",
			wantErr: true,
		},
		{
			name:    "unknown memory backend",
			mutate:  func(c *Config) { c.Memory.Backend = "redis" },
			field:   "Config.Memory.Backend",
			wantErr: true,
		},
		{
			name:    "unknown log level",
			mutate:  func(c *Config) { c.Logging.Level = "verbose" },
			field:   "Config.Logging.Level",
			wantErr: true,
		},
		{
			name:    "zero concurrency",
			mutate:  func(c *Config) { c.Dispatch.Concurrency = 0 },
			field:   "Config.Dispatch.Concurrency",
			wantErr: true,
		},
		{
			name:    "bad metrics address",
			mutate:  func(c *Config) { c.Metrics.Listen = "not an address" },
			field:   "Config.Metrics.Listen",
			wantErr: true,
		},
		{
			name: "fs backend needs a root",
			mutate: func(c *Config) {
				c.Memory.Backend = BackendFS
				c.Memory.RootDir = ""
			},
			field:   "Config.Memory.RootDir",
			wantErr: true,
		},
		{
			name:   "empty tags filled by defaults",
			mutate: func(c *Config) { c.Stream.Format = ""; c.Logging.Level = "" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.mutate(config)
			err := validator.Validate(config)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr {
				return
			}
			var verr ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Expected ValidationError, got %T", err)
			}
			if verr.Field != tt.field {
				t.Errorf("Expected field %s, got %s", tt.field, verr.Field)
			}
		})
	}
}

func TestConfigLoader(t *testing.T) {
	tempDir := t.TempDir()
	userPath := filepath.Join(tempDir, "user", "config.json")
	projectPath := filepath.Join(tempDir, "project", "config.json")

	loader := NewLoader(ConfigPrecedence{
		UserConfig:    userPath,
		ProjectConfig: projectPath,
		LocalConfig:   filepath.Join(tempDir, "missing.json"),
	})

	user := DefaultConfig()
	user.Agent.Model = "anthropic/claude-sonnet"
	user.Dispatch.ToolTimeout = 10 * time.Second
	if err := loader.SaveFile(user, userPath); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}

	project := `{"stream":{"format":"tags"},"memory":{"backend":"fs","root_dir":"/tmp/mem"},"agent":{"suggestions":false}}`
	if err := os.MkdirAll(filepath.Dir(projectPath), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(projectPath, []byte(project), 0o644); err != nil {
		t.Fatal(err)
	}

	loaded, err := loader.Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if loaded.Agent.Model != "anthropic/claude-sonnet" {
		t.Errorf("Expected model from user config, got %s", loaded.Agent.Model)
	}
	if loaded.Dispatch.ToolTimeout != 10*time.Second {
		t.Errorf("Expected tool timeout from user config, got %v", loaded.Dispatch.ToolTimeout)
	}
	if loaded.Stream.Format != FormatTags {
		t.Errorf("Expected tags format from project config, got %s", loaded.Stream.Format)
	}
	if loaded.Memory.Backend != BackendFS || loaded.Memory.RootDir != "/tmp/mem" {
		t.Errorf("Expected fs memory at /tmp/mem, got %s at %s", loaded.Memory.Backend, loaded.Memory.RootDir)
	}
	if loaded.Agent.SuggestionsEnabled() {
		t.Error("Expected suggestions to be disabled by project config")
	}
	if loaded.Dispatch.Concurrency != 4 {
		t.Errorf("Expected default concurrency, got %d", loaded.Dispatch.Concurrency)
	}
}

func TestConfigLoaderRejectsInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"stream":{"format":"xml"}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := NewLoader(ConfigPrecedence{UserConfig: path}).Load()
	var verr ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Expected ValidationError, got %v", err)
	}

	if err := os.WriteFile(path, []byte(`{`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewLoader(ConfigPrecedence{UserConfig: path}).Load(); err == nil {
		t.Error("Expected parse error")
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	env := map[string]string{
		"TEST_API_KEY":        "test-key-123",
		"TEST_MODEL":          "test-model",
		"TEST_WIRE_FORMAT":    "tags",
		"TEST_MEMORY_BACKEND": "fs",
		"TEST_MAX_STEPS":      "3",
		"TEST_TOOL_TIMEOUT":   "5s",
		"TEST_METRICS":        "true",
	}
	loader := NewLoader(ConfigPrecedence{EnvironmentPrefix: "TEST"})
	loader.getenv = func(k string) string { return env[k] }

	config := DefaultConfig()
	if err := loader.applyEnvironmentOverrides(config); err != nil {
		t.Fatalf("applyEnvironmentOverrides() failed: %v", err)
	}

	if config.API.APIKey != "test-key-123" {
		t.Errorf("Expected API key from environment, got %s", config.API.APIKey)
	}
	if config.Agent.Model != "test-model" {
		t.Errorf("Expected model from environment, got %s", config.Agent.Model)
	}
	if config.Stream.Format != FormatTags {
		t.Errorf("Expected tags format, got %s", config.Stream.Format)
	}
	if config.Memory.Backend != BackendFS {
		t.Errorf("Expected fs backend, got %s", config.Memory.Backend)
	}
	if config.Agent.MaxSteps != 3 {
		t.Errorf("Expected 3 max steps, got %d", config.Agent.MaxSteps)
	}
	if config.Dispatch.ToolTimeout != 5*time.Second {
		t.Errorf("Expected 5s tool timeout, got %v", config.Dispatch.ToolTimeout)
	}
	if !config.Metrics.Enabled {
		t.Error("Expected metrics to be enabled from environment")
	}

	env["TEST_MAX_STEPS"] = "many"
	if err := loader.applyEnvironmentOverrides(DefaultConfig()); err == nil {
		t.Error("Expected error for non-numeric max steps")
	}
}

func TestResolveAPIKey(t *testing.T) {
	t.Setenv("TURNKIT_TEST_KEY", "from-env")

	api := APIConfig{APIKeyEnvVar: "TURNKIT_TEST_KEY"}
	if got := api.ResolveAPIKey(); got != "from-env" {
		t.Errorf("Expected key from env var, got %q", got)
	}
	api.APIKey = "explicit"
	if got := api.ResolveAPIKey(); got != "explicit" {
		t.Errorf("Expected explicit key, got %q", got)
	}
}

func TestConfigMerging(t *testing.T) {
	loader := &Loader{}

	base := DefaultConfig()
	override := &Config{
		API: APIConfig{
			BaseURL: "http://localhost:8080/v1",
		},
		Agent: AgentConfig{MaxSteps: 2},
		Logging: LoggingConfig{
			Level: "debug",
		},
	}

	merged := loader.mergeConfigs(base, override)

	if merged.API.BaseURL != "http://localhost:8080/v1" {
		t.Errorf("Expected overridden base URL, got %s", merged.API.BaseURL)
	}
	if merged.Agent.MaxSteps != 2 {
		t.Errorf("Expected 2 max steps, got %d", merged.Agent.MaxSteps)
	}
	if merged.Logging.Level != "debug" {
		t.Errorf("Expected debug level, got %s", merged.Logging.Level)
	}

	// Check preserved values
	if merged.Agent.Model != base.Agent.Model {
		t.Error("Expected model to be preserved")
	}
	if merged.Memory.MaxFileBytes != base.Memory.MaxFileBytes {
		t.Error("Expected memory limits to be preserved")
	}
}
