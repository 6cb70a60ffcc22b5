package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	// EnvPrefix prefixes every environment override.
	EnvPrefix = "OPPSUGGEST_"
	// EnvConfigFile names the variable holding an optional YAML path.
	EnvConfigFile = "OPPSUGGEST_CONFIG"
	// envAnthropicKey is read when llm.api_key is not configured.
	envAnthropicKey = "ANTHROPIC_API_KEY"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New(ctx))
//  2. file (YAML) if OPPSUGGEST_CONFIG is set
//  3. env (prefix OPPSUGGEST_); a double underscore descends one level,
//     e.g. OPPSUGGEST_LOOKUP__BACKEND -> lookup.backend
func Load(ctx context.Context) (*Config, error) {
	base := New(ctx)

	k := koanf.New(".")

	if path := os.Getenv(EnvConfigFile); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: read %s: %v", ErrLoadConfig, path, err)
		}
	}

	envProvider := env.Provider(EnvPrefix, ".", envKey)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %v", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}

	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = os.Getenv(envAnthropicKey)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKey maps OPPSUGGEST_MIN_SCORE_THRESHOLD -> min_score_threshold and
// OPPSUGGEST_LLM__SPEED -> llm.speed.
func envKey(s string) string {
	s = strings.TrimPrefix(s, EnvPrefix)
	s = strings.ToLower(s)
	return strings.ReplaceAll(s, "__", ".")
}

// Validate reports the first invalid setting wrapped in ErrInvalidConfig.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	if c.QueueSize <= 0 {
		return fmt.Errorf("%w: queue_size must be positive, got %d", ErrInvalidConfig, c.QueueSize)
	}
	if c.WorkerCount <= 0 {
		return fmt.Errorf("%w: worker_count must be positive, got %d", ErrInvalidConfig, c.WorkerCount)
	}
	for name, v := range map[string]float64{
		"min_score_threshold":        c.MinScoreThreshold,
		"score_difference_threshold": c.ScoreDifferenceThreshold,
		"prefilter_min_score":        c.PrefilterMinScore,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%w: %s must be within [0,1], got %v", ErrInvalidConfig, name, v)
		}
	}
	switch c.Strategy {
	case "deterministic", "llm":
	default:
		return fmt.Errorf("%w: unknown strategy %q", ErrInvalidConfig, c.Strategy)
	}
	switch c.Lookup.Backend {
	case "csv":
		if c.Lookup.DataDir == "" {
			return fmt.Errorf("%w: lookup.data_dir must not be empty", ErrInvalidConfig)
		}
	case "sqlite":
		if c.Lookup.SQLitePath == "" {
			return fmt.Errorf("%w: lookup.sqlite_path must not be empty", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown lookup backend %q", ErrInvalidConfig, c.Lookup.Backend)
	}
	for name, p := range c.Platforms {
		if p.BaseURL == "" {
			return fmt.Errorf("%w: platforms.%s.base_url must not be empty", ErrInvalidConfig, name)
		}
	}
	for name, t := range c.StageTables {
		for label, w := range t.Weights {
			if w < 0 || w > 1 {
				return fmt.Errorf("%w: stage_tables.%s.%s must be within [0,1]", ErrInvalidConfig, name, label)
			}
		}
		if t.Default != nil && (*t.Default < 0 || *t.Default > 1) {
			return fmt.Errorf("%w: stage_tables.%s.default must be within [0,1]", ErrInvalidConfig, name)
		}
	}
	if c.Metrics.RefreshIntervalSeconds <= 0 {
		return fmt.Errorf("%w: metrics.refresh_interval_seconds must be positive", ErrInvalidConfig)
	}
	for i := 1; i < len(c.Metrics.HistogramBuckets); i++ {
		if c.Metrics.HistogramBuckets[i] <= c.Metrics.HistogramBuckets[i-1] {
			return fmt.Errorf("%w: metrics.histogram_buckets must be strictly increasing", ErrInvalidConfig)
		}
	}
	return nil
}
