package config

import "github.com/lattermind/mnemo/pkg/consolidate"

// CurrentVersion is the config schema version written by this build.
const CurrentVersion = 1

// NewDefaultConfig returns the configuration used when no file, env, or
// flag overrides are present.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentVersion,
		Storage: StorageConfig{
			Backend:    "sqlite",
			SQLitePath: "mnemo.db",
		},
		API: APIConfig{
			Listen: ":8080",
		},
		LLM: LLMConfig{
			Provider: "openai",
		},
		EventStream: EventStreamConfig{
			Enabled: false,
			Topic:   "mnemo.memory.changed",
		},
		Consolidation: ConsolidationConfig{
			Threshold: consolidate.DefaultThreshold,
			Target:    consolidate.DefaultTarget,
		},
		Extraction: ExtractionConfig{
			MaxConcurrent: 2,
		},
	}
}
