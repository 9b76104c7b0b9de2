// Package config holds the persistent mnemo configuration and its viper
// loading logic. The TOML layout uses sections for logical grouping.
package config

// Config is the full mnemo configuration.
type Config struct {
	Version       int                 `toml:"version"`
	Storage       StorageConfig       `toml:"storage"`
	API           APIConfig           `toml:"api"`
	LLM           LLMConfig           `toml:"llm"`
	EventStream   EventStreamConfig   `toml:"event_stream"`
	Consolidation ConsolidationConfig `toml:"consolidation"`
	Extraction    ExtractionConfig    `toml:"extraction"`
}

// StorageConfig selects and parameterizes the storage backend.
type StorageConfig struct {
	// Backend is "memory", "sqlite", or "postgres".
	Backend     string `toml:"backend,omitempty"`
	SQLitePath  string `toml:"sqlite_path,omitempty"`
	PostgresDSN string `toml:"postgres_dsn,omitempty"`
}

// APIConfig holds HTTP API server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// LLMConfig selects the provider backing the extraction and consolidation
// proposers.
type LLMConfig struct {
	Provider string `toml:"provider,omitempty"`
	Model    string `toml:"model,omitempty"`
	APIKey   string `toml:"api_key,omitempty"`
	BaseURL  string `toml:"base_url,omitempty"`
}

// EventStreamConfig holds memory-change event publishing settings.
type EventStreamConfig struct {
	Enabled bool     `toml:"enabled,omitempty"`
	Brokers []string `toml:"brokers,omitempty"`
	Topic   string   `toml:"topic,omitempty"`
}

// ConsolidationConfig tunes the consolidation hysteresis. Threshold must
// stay strictly greater than Target.
type ConsolidationConfig struct {
	Threshold int `toml:"threshold,omitempty"`
	Target    int `toml:"target,omitempty"`
}

// ExtractionConfig tunes the extraction pipeline.
type ExtractionConfig struct {
	MaxConcurrent int `toml:"max_concurrent,omitempty"`
}
