package config

import (
	"time"
)

// DefaultConfig returns a default configuration with sensible defaults
func DefaultConfig() *Config {
	paths := GetDefaultStoragePaths()
	return &Config{
		Version: "1.0",
		API: APIConfig{
			APIKeyEnvVar: "OPENROUTER_API_KEY",
			Timeout:      30 * time.Second,
			Retry: RetryConfig{
				MaxRetries:   3,
				InitialDelay: time.Second,
			},
			SiteName: "turnkit",
		},

		Agent: AgentConfig{
			Model:     "google/gemini-2.5-flash",
			MaxTokens: 4096,
			MaxSteps:  8,
		},

		Stream: StreamConfig{
			Format:       FormatRecords,
			RecordPrefix: "data: ",
			ChunkSize:    4096,
		},

		Dispatch: DispatchConfig{
			Concurrency: 4,
			ToolTimeout: 30 * time.Second,
		},

		Memory: MemoryConfig{
			Backend:      BackendSQLite,
			RootDir:      paths.MemoryRoot,
			MaxFileBytes: 100 << 10,
			MaxUserBytes: 10 << 20,
			MaxViewBytes: 16 << 10,
		},

		Storage: StorageConfig{
			DatabasePath: paths.DatabasePath,
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},

		Metrics: MetricsConfig{
			Listen: "127.0.0.1:9464",
		},
	}
}
