package config

import (
	"os"
	"time"
)

// Config represents the complete configuration for turnkit
type Config struct {
	// Version of the configuration format
	Version string `json:"version"`

	// API configuration
	API APIConfig `json:"api"`

	// Agent configuration
	Agent AgentConfig `json:"agent"`

	// Stream decoding
	Stream StreamConfig `json:"stream"`

	// Tool dispatch
	Dispatch DispatchConfig `json:"dispatch"`

	// Memory store
	Memory MemoryConfig `json:"memory"`

	// Storage holds the database location
	Storage StorageConfig `json:"storage"`

	Logging LoggingConfig `json:"logging"`

	Metrics MetricsConfig `json:"metrics"`
}

// APIConfig holds API-related configuration
type APIConfig struct {
	// BaseURL overrides the default API endpoint
	BaseURL string `json:"base_url,omitempty" validate:"omitempty,url"`

	// APIKey for authentication (can be omitted if using env vars)
	APIKey string `json:"api_key,omitempty"`

	// APIKeyEnvVar specifies the environment variable to read the API key from
	APIKeyEnvVar string `json:"api_key_env_var,omitempty"`

	// Timeout bounds the wait for response headers
	Timeout time.Duration `json:"timeout,omitempty" validate:"min=0"`

	// Retry configuration for opening streams
	Retry RetryConfig `json:"retry,omitempty"`

	// Ranking headers sent with each request
	SiteURL  string `json:"site_url,omitempty" validate:"omitempty,url"`
	SiteName string `json:"site_name,omitempty"`
}

// ResolveAPIKey returns the configured key, falling back to APIKeyEnvVar.
func (c APIConfig) ResolveAPIKey() string {
	if c.APIKey != "" {
		return c.APIKey
	}
	if c.APIKeyEnvVar != "" {
		return os.Getenv(c.APIKeyEnvVar)
	}
	return ""
}

// RetryConfig defines retry behavior for API requests
type RetryConfig struct {
	MaxRetries   int           `json:"max_retries" validate:"min=0,max=10"`
	InitialDelay time.Duration `json:"initial_delay" validate:"min=0"`
}

// AgentConfig holds basic agent configuration
type AgentConfig struct {
	Model        string  `json:"model" validate:"required"`
	Temperature  float64 `json:"temperature" validate:"min=0,max=2"`
	MaxTokens    int     `json:"max_tokens" validate:"min=1"`
	SystemPrompt string  `json:"system_prompt,omitempty"`
	// MaxSteps bounds the model requests of one turn.
	MaxSteps int `json:"max_steps" validate:"min=1,max=64"`
	// Suggestions asks the model for follow-up suggestions. Nil means on.
	Suggestions *bool `json:"suggestions,omitempty"`
}

// SuggestionsEnabled reports whether follow-up suggestions are requested.
func (c AgentConfig) SuggestionsEnabled() bool {
	return c.Suggestions == nil || *c.Suggestions
}

// StreamConfig selects how response streams are decoded
type StreamConfig struct {
	// Format is "tags" or "records"
	Format string `json:"format" validate:"wire_format"`

	// RecordPrefix marks data lines of the records format
	RecordPrefix string `json:"record_prefix,omitempty"`

	// ChunkSize is the read buffer size
	ChunkSize int `json:"chunk_size,omitempty" validate:"min=0"`
}

// DispatchConfig configures tool execution
type DispatchConfig struct {
	Concurrency int           `json:"concurrency" validate:"min=1,max=64"`
	ToolTimeout time.Duration `json:"tool_timeout" validate:"min=0"`

	// Enabled lists the tools to register. Empty registers all of them.
	Enabled []string `json:"enabled,omitempty" validate:"dive,required"`

	// Deferred lists tools advertised by name only.
	Deferred []string `json:"deferred,omitempty" validate:"dive,required"`

	// SearchEndpoint overrides the web_search HTML endpoint
	SearchEndpoint string `json:"search_endpoint,omitempty" validate:"omitempty,url"`
}

// MemoryConfig configures the memory store
type MemoryConfig struct {
	// Backend is "fs" or "sqlite"
	Backend string `json:"backend" validate:"memory_backend"`

	// RootDir holds per-user directories for the fs backend
	RootDir string `json:"root_dir,omitempty"`

	MaxFileBytes int64 `json:"max_file_bytes" validate:"min=0"`
	MaxUserBytes int64 `json:"max_user_bytes" validate:"min=0"`
	MaxViewBytes int   `json:"max_view_bytes" validate:"min=0"`
}

// StorageConfig locates the database
type StorageConfig struct {
	DatabasePath string `json:"database_path,omitempty"`
}

// LoggingConfig defines logging configuration
type LoggingConfig struct {
	// Level is the minimum log level (debug, info, warn, error)
	Level string `json:"level,omitempty" validate:"log_level"`

	// Format is the output format (text, json)
	Format string `json:"format,omitempty" validate:"log_format"`
}

// MetricsConfig configures the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool `json:"enabled"`

	// Listen is the address served while a command runs
	Listen string `json:"listen,omitempty" validate:"omitempty,hostname_port"`
}

// ConfigPrecedence defines the order of configuration loading
type ConfigPrecedence struct {
	// SystemConfig path
	SystemConfig string

	// UserConfig path
	UserConfig string

	// ProjectConfig path
	ProjectConfig string

	// LocalConfig path
	LocalConfig string

	// EnvironmentPrefix for env var overrides
	EnvironmentPrefix string
}

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
	Value   any
}

func (e ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// ConfigSource indicates where a configuration value came from
type ConfigSource string

const (
	SourceDefault     ConfigSource = "default"
	SourceSystem      ConfigSource = "system"
	SourceUser        ConfigSource = "user"
	SourceProject     ConfigSource = "project"
	SourceLocal       ConfigSource = "local"
	SourceEnvironment ConfigSource = "environment"
)

// Wire formats and memory backends accepted by the validator.
const (
	FormatTags    = "tags"
	FormatRecords = "records"

	BackendFS     = "fs"
	BackendSQLite = "sqlite"
)
