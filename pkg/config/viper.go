package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads config.toml from
// configDir (when non-empty), and binds environment variables with the
// MNEMO_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound by the command)
//  2. Environment variables (MNEMO_API_LISTEN, MNEMO_STORAGE_BACKEND, ...)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	setViperDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("toml")
	if configDir != "" {
		v.AddConfigPath(configDir)
	}

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	v.SetEnvPrefix("MNEMO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// setViperDefaults registers defaults from NewDefaultConfig() using
// dotted-key notation, keeping defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	v.SetDefault("storage.backend", d.Storage.Backend)
	v.SetDefault("storage.sqlite_path", d.Storage.SQLitePath)
	v.SetDefault("storage.postgres_dsn", d.Storage.PostgresDSN)

	v.SetDefault("api.listen", d.API.Listen)

	v.SetDefault("llm.provider", d.LLM.Provider)
	v.SetDefault("llm.model", d.LLM.Model)
	v.SetDefault("llm.api_key", d.LLM.APIKey)
	v.SetDefault("llm.base_url", d.LLM.BaseURL)

	v.SetDefault("event_stream.enabled", d.EventStream.Enabled)
	v.SetDefault("event_stream.brokers", d.EventStream.Brokers)
	v.SetDefault("event_stream.topic", d.EventStream.Topic)

	v.SetDefault("consolidation.threshold", d.Consolidation.Threshold)
	v.SetDefault("consolidation.target", d.Consolidation.Target)

	v.SetDefault("extraction.max_concurrent", d.Extraction.MaxConcurrent)
}

// FromViper materializes a Config from resolved viper state and validates
// it.
func FromViper(v *viper.Viper) (*Config, error) {
	c := &Config{
		Version: v.GetInt("version"),
		Storage: StorageConfig{
			Backend:     v.GetString("storage.backend"),
			SQLitePath:  v.GetString("storage.sqlite_path"),
			PostgresDSN: v.GetString("storage.postgres_dsn"),
		},
		API: APIConfig{
			Listen: v.GetString("api.listen"),
		},
		LLM: LLMConfig{
			Provider: v.GetString("llm.provider"),
			Model:    v.GetString("llm.model"),
			APIKey:   v.GetString("llm.api_key"),
			BaseURL:  v.GetString("llm.base_url"),
		},
		EventStream: EventStreamConfig{
			Enabled: v.GetBool("event_stream.enabled"),
			Brokers: v.GetStringSlice("event_stream.brokers"),
			Topic:   v.GetString("event_stream.topic"),
		},
		Consolidation: ConsolidationConfig{
			Threshold: v.GetInt("consolidation.threshold"),
			Target:    v.GetInt("consolidation.target"),
		},
		Extraction: ExtractionConfig{
			MaxConcurrent: v.GetInt("extraction.max_concurrent"),
		},
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}

	return c, nil
}

// Validate rejects configurations that would violate system invariants.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case "memory", "sqlite", "postgres":
	default:
		return fmt.Errorf("unknown storage backend: %s", c.Storage.Backend)
	}

	// Hysteresis invariant: a pass must shrink the set below the trigger
	// point or it would re-trigger immediately.
	if c.Consolidation.Threshold <= c.Consolidation.Target {
		return fmt.Errorf("consolidation threshold (%d) must be strictly greater than target (%d)",
			c.Consolidation.Threshold, c.Consolidation.Target)
	}

	if c.EventStream.Enabled && len(c.EventStream.Brokers) == 0 {
		return errors.New("event_stream.enabled requires at least one broker")
	}

	return nil
}
