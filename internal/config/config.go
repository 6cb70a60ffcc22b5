// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(ctx) to build a Config with defaults.
// - Load layers defaults, an optional YAML file and environment variables.
// - Errors returned from this package wrap ErrInvalidConfig or ErrLoadConfig.
package config

import (
	"context"
	"runtime"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects text or json log output.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// QueueSize bounds the in-memory scoring job queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of scoring workers.
	WorkerCount int `koanf:"worker_count"`

	// RequestTimeoutSeconds bounds one suggestion request end to end.
	RequestTimeoutSeconds int `koanf:"request_timeout_seconds"`

	// MinScoreThreshold is the selector's minimum top score.
	MinScoreThreshold float64 `koanf:"min_score_threshold"`

	// ScoreDifferenceThreshold is the selector's minimum lead over the runner-up.
	ScoreDifferenceThreshold float64 `koanf:"score_difference_threshold"`

	// PrefilterEnabled drops candidates below PrefilterMinScore before selection.
	PrefilterEnabled  bool    `koanf:"prefilter_enabled"`
	PrefilterMinScore float64 `koanf:"prefilter_min_score"`

	// Strategy is "deterministic" or "llm".
	Strategy string `koanf:"strategy"`

	// DefaultPlatform is the connector tag used when a request names none.
	DefaultPlatform string `koanf:"default_platform"`

	// Platforms configures CRM connectors by tag.
	Platforms map[string]PlatformConfig `koanf:"platforms"`

	// StageTables overrides or adds stage weight tables by tag.
	StageTables map[string]StageTableConfig `koanf:"stage_tables"`

	// Lookup configures the user/product lookup store.
	Lookup LookupConfig `koanf:"lookup"`

	// LLM configures the language model used by the llm strategy.
	LLM LLMConfig `koanf:"llm"`

	// Metrics configures the Prometheus collectors.
	Metrics MetricsConfig `koanf:"metrics"`
}

// PlatformConfig configures one CRM connector.
type PlatformConfig struct {
	// Type selects the connector implementation; defaults to the map key.
	Type           string `koanf:"type"`
	BaseURL        string `koanf:"base_url"`
	AccessToken    string `koanf:"access_token"`
	Username       string `koanf:"username"`
	Password       string `koanf:"password"`
	FormName       string `koanf:"form_name"`
	Environment    string `koanf:"environment"`
	APIVersion     string `koanf:"api_version"`
	TimeoutSeconds int    `koanf:"timeout_seconds"`
	Proxy          string `koanf:"proxy"`
	// StageTable names the stage weight table; defaults to the connector type.
	StageTable string `koanf:"stage_table"`
}

// StageTableConfig overrides a stage table. A nil Default keeps the existing one.
type StageTableConfig struct {
	Default *float64           `koanf:"default"`
	Weights map[string]float64 `koanf:"weights"`
}

// LookupConfig selects and configures the lookup store.
type LookupConfig struct {
	// Backend is "csv" or "sqlite".
	Backend    string `koanf:"backend"`
	DataDir    string `koanf:"data_dir"`
	SQLitePath string `koanf:"sqlite_path"`
}

// LLMConfig configures the Anthropic chat client.
type LLMConfig struct {
	APIKey         string            `koanf:"api_key"`
	Speed          string            `koanf:"speed"`
	Models         map[string]string `koanf:"models"`
	MaxTokens      int64             `koanf:"max_tokens"`
	TimeoutSeconds int               `koanf:"timeout_seconds"`
}

// MetricsConfig shapes the exported collectors.
type MetricsConfig struct {
	Enabled                bool              `koanf:"enabled"`
	Namespace              string            `koanf:"namespace"`
	Subsystem              string            `koanf:"subsystem"`
	HistogramBuckets       []float64         `koanf:"histogram_buckets"`
	RefreshIntervalSeconds int               `koanf:"refresh_interval_seconds"`
	Labels                 map[string]string `koanf:"labels"`
}

// New creates a Config with defaults. Context is accepted first to satisfy
// the project-wide convention.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:                 "info",
		LogFormat:                "text",
		Addr:                     ":9080",
		QueueSize:                10_000,
		WorkerCount:              runtime.NumCPU() * 2,
		RequestTimeoutSeconds:    30,
		MinScoreThreshold:        0.25,
		ScoreDifferenceThreshold: 0.1,
		PrefilterEnabled:         false,
		PrefilterMinScore:        0.5,
		Strategy:                 "deterministic",
		DefaultPlatform:          "salesforce",
		Platforms:                map[string]PlatformConfig{},
		StageTables:              map[string]StageTableConfig{},
		Lookup: LookupConfig{
			Backend: "csv",
			DataDir: "./data",
		},
		LLM: LLMConfig{
			Speed:          "fast",
			MaxTokens:      1024,
			TimeoutSeconds: 30,
		},
		Metrics: MetricsConfig{
			Enabled:                true,
			Namespace:              "oppsuggest",
			Subsystem:              "ranking",
			RefreshIntervalSeconds: 10,
		},
	}
}

// ConnectorType returns the implementation tag for a platform entry.
func (p PlatformConfig) ConnectorType(key string) string {
	if p.Type != "" {
		return p.Type
	}
	return key
}

// StageTableName returns the stage table tag for a platform entry.
func (p PlatformConfig) StageTableName(key string) string {
	if p.StageTable != "" {
		return p.StageTable
	}
	return p.ConnectorType(key)
}
