package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/adrg/xdg"
)

// Loader handles loading and merging configurations from multiple sources
type Loader struct {
	precedence ConfigPrecedence
	validator  *Validator
	getenv     func(string) string
}

// NewLoader creates a new configuration loader
func NewLoader(precedence ConfigPrecedence) *Loader {
	return &Loader{
		precedence: precedence,
		validator:  NewValidator(),
		getenv:     os.Getenv,
	}
}

// Load loads configuration from all sources and merges them. Missing files
// are skipped.
func (l *Loader) Load() (*Config, error) {
	config := DefaultConfig()

	sources := []struct {
		path   string
		source ConfigSource
	}{
		{l.precedence.SystemConfig, SourceSystem},
		{l.precedence.UserConfig, SourceUser},
		{l.precedence.ProjectConfig, SourceProject},
		{l.precedence.LocalConfig, SourceLocal},
	}

	for _, src := range sources {
		if src.path == "" {
			continue
		}

		if cfg, err := l.loadFile(src.path); err == nil {
			config = l.mergeConfigs(config, cfg)
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load %s config from %s: %w", src.source, src.path, err)
		}
	}

	if l.precedence.EnvironmentPrefix != "" {
		if err := l.applyEnvironmentOverrides(config); err != nil {
			return nil, fmt.Errorf("failed to apply %s overrides: %w", SourceEnvironment, err)
		}
	}

	if err := l.validator.Validate(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return config, nil
}

// LoadFile loads a single configuration file
func (l *Loader) loadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}
	return &config, nil
}

// SaveFile saves configuration to a file
func (l *Loader) SaveFile(config *Config, path string) error {
	if err := l.validator.Validate(config); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, append(data, '\n'), 0o600); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

// mergeConfigs merges two configurations with the second taking precedence
func (l *Loader) mergeConfigs(base, override *Config) *Config {
	result := *base

	// Merge API config
	if override.API.BaseURL != "" {
		result.API.BaseURL = override.API.BaseURL
	}
	if override.API.APIKey != "" {
		result.API.APIKey = override.API.APIKey
	}
	if override.API.APIKeyEnvVar != "" {
		result.API.APIKeyEnvVar = override.API.APIKeyEnvVar
	}
	if override.API.Timeout != 0 {
		result.API.Timeout = override.API.Timeout
	}
	if override.API.Retry.MaxRetries != 0 {
		result.API.Retry.MaxRetries = override.API.Retry.MaxRetries
	}
	if override.API.Retry.InitialDelay != 0 {
		result.API.Retry.InitialDelay = override.API.Retry.InitialDelay
	}
	if override.API.SiteURL != "" {
		result.API.SiteURL = override.API.SiteURL
	}
	if override.API.SiteName != "" {
		result.API.SiteName = override.API.SiteName
	}

	result.Agent = l.mergeAgentConfig(result.Agent, override.Agent)

	// Merge Stream
	if override.Stream.Format != "" {
		result.Stream.Format = override.Stream.Format
	}
	if override.Stream.RecordPrefix != "" {
		result.Stream.RecordPrefix = override.Stream.RecordPrefix
	}
	if override.Stream.ChunkSize != 0 {
		result.Stream.ChunkSize = override.Stream.ChunkSize
	}

	// Merge Dispatch
	if override.Dispatch.Concurrency != 0 {
		result.Dispatch.Concurrency = override.Dispatch.Concurrency
	}
	if override.Dispatch.ToolTimeout != 0 {
		result.Dispatch.ToolTimeout = override.Dispatch.ToolTimeout
	}
	if len(override.Dispatch.Enabled) > 0 {
		result.Dispatch.Enabled = override.Dispatch.Enabled
	}
	if len(override.Dispatch.Deferred) > 0 {
		result.Dispatch.Deferred = override.Dispatch.Deferred
	}
	if override.Dispatch.SearchEndpoint != "" {
		result.Dispatch.SearchEndpoint = override.Dispatch.SearchEndpoint
	}

	// Merge Memory
	if override.Memory.Backend != "" {
		result.Memory.Backend = override.Memory.Backend
	}
	if override.Memory.RootDir != "" {
		result.Memory.RootDir = override.Memory.RootDir
	}
	if override.Memory.MaxFileBytes != 0 {
		result.Memory.MaxFileBytes = override.Memory.MaxFileBytes
	}
	if override.Memory.MaxUserBytes != 0 {
		result.Memory.MaxUserBytes = override.Memory.MaxUserBytes
	}
	if override.Memory.MaxViewBytes != 0 {
		result.Memory.MaxViewBytes = override.Memory.MaxViewBytes
	}

	if override.Storage.DatabasePath != "" {
		result.Storage.DatabasePath = override.Storage.DatabasePath
	}

	// Merge Logging
	if override.Logging.Level != "" {
		result.Logging.Level = override.Logging.Level
	}
	if override.Logging.Format != "" {
		result.Logging.Format = override.Logging.Format
	}

	// Merge Metrics
	if override.Metrics.Enabled {
		result.Metrics.Enabled = true
	}
	if override.Metrics.Listen != "" {
		result.Metrics.Listen = override.Metrics.Listen
	}

	return &result
}

// mergeAgentConfig merges agent configurations
func (l *Loader) mergeAgentConfig(base, override AgentConfig) AgentConfig {
	result := base

	if override.Model != "" {
		result.Model = override.Model
	}
	if override.Temperature != 0 {
		result.Temperature = override.Temperature
	}
	if override.MaxTokens != 0 {
		result.MaxTokens = override.MaxTokens
	}
	if override.SystemPrompt != "" {
		result.SystemPrompt = override.SystemPrompt
	}
	if override.MaxSteps != 0 {
		result.MaxSteps = override.MaxSteps
	}
	if override.Suggestions != nil {
		result.Suggestions = override.Suggestions
	}
	return result
}

// applyEnvironmentOverrides applies environment variable overrides to config
func (l *Loader) applyEnvironmentOverrides(config *Config) error {
	env := func(name string) string {
		return l.getenv(l.precedence.EnvironmentPrefix + "_" + name)
	}

	if apiKey := env("API_KEY"); apiKey != "" {
		config.API.APIKey = apiKey
	}
	if baseURL := env("BASE_URL"); baseURL != "" {
		config.API.BaseURL = baseURL
	}
	if model := env("MODEL"); model != "" {
		config.Agent.Model = model
	}
	if format := env("WIRE_FORMAT"); format != "" {
		config.Stream.Format = format
	}
	if backend := env("MEMORY_BACKEND"); backend != "" {
		config.Memory.Backend = backend
	}
	if dir := env("MEMORY_DIR"); dir != "" {
		config.Memory.RootDir = dir
	}
	if path := env("DATABASE_PATH"); path != "" {
		config.Storage.DatabasePath = path
	}
	if level := env("LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if raw := env("MAX_STEPS"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("MAX_STEPS: %w", err)
		}
		config.Agent.MaxSteps = n
	}
	if raw := env("TOOL_TIMEOUT"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("TOOL_TIMEOUT: %w", err)
		}
		config.Dispatch.ToolTimeout = d
	}
	if raw := env("METRICS"); raw != "" {
		on, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("METRICS: %w", err)
		}
		config.Metrics.Enabled = on
	}
	return nil
}

// GetConfigPaths returns the configuration file paths to check
func GetConfigPaths() ConfigPrecedence {
	// System config path varies by OS
	systemConfigPath := "/etc/turnkit/config.json"
	if runtime.GOOS == "windows" {
		systemConfigPath = filepath.Join(os.Getenv("PROGRAMDATA"), "turnkit", "config.json")
	}

	return ConfigPrecedence{
		SystemConfig:      systemConfigPath,
		UserConfig:        filepath.Join(xdg.ConfigHome, "turnkit", "config.json"),
		ProjectConfig:     filepath.Join(".turnkit", "config.json"),
		LocalConfig:       filepath.Join(".turnkit", "config.local.json"),
		EnvironmentPrefix: "TURNKIT",
	}
}
