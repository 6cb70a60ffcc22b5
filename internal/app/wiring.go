package service

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/oppsuggest/internal/adapters/crm"
	"github.com/okian/oppsuggest/internal/adapters/llm"
	"github.com/okian/oppsuggest/internal/adapters/lookup"
	"github.com/okian/oppsuggest/internal/config"
	"github.com/okian/oppsuggest/internal/domain/scoring"
	"github.com/okian/oppsuggest/internal/domain/stage"
	"github.com/okian/oppsuggest/internal/domain/suggestion"
	"github.com/okian/oppsuggest/pkg/logger"
)

// FromConfig builds an unstarted Service from cfg: stage table overrides,
// CRM connectors, the lookup store and, when a key is configured, the
// Anthropic chat client. Connector packages must already be registered with
// crm.Register by the caller's imports. opts are applied last.
func FromConfig(ctx context.Context, cfg *config.Config, log logger.Logger, opts ...Option) (*Service, error) {
	if log == nil {
		log = logger.Get()
	}

	stages := stage.NewRegistry()
	for name, t := range cfg.StageTables {
		stages.Override(name, t.Weights, t.Default)
	}

	platforms, err := crm.NewPlatformRegistry(cfg.Platforms, log.Named("crm"))
	if err != nil {
		return nil, fmt.Errorf("crm platforms: %w", err)
	}

	store, err := lookup.Open(cfg.Lookup)
	if err != nil {
		return nil, fmt.Errorf("lookup store: %w", err)
	}

	base := []Option{
		WithLogger(log.Named("service")),
		WithWorkerCount(cfg.WorkerCount),
		WithQueueSize(cfg.QueueSize),
		WithRequestTimeout(time.Duration(cfg.RequestTimeoutSeconds) * time.Second),
		WithStrategy(cfg.Strategy),
		WithDefaultPlatform(cfg.DefaultPlatform),
		WithStageRegistry(stages),
		WithPlatforms(platforms),
		WithLookup(store),
		WithPolicy(suggestion.Policy{
			MinScore:          cfg.MinScoreThreshold,
			Margin:            cfg.ScoreDifferenceThreshold,
			PrefilterEnabled:  cfg.PrefilterEnabled,
			PrefilterMinScore: cfg.PrefilterMinScore,
		}),
	}

	if cfg.LLM.APIKey != "" {
		speed, err := scoring.ParseSpeed(cfg.LLM.Speed)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("%w: llm.speed: %v", config.ErrInvalidConfig, err)
		}
		chat, err := llm.NewAnthropicChatter(cfg.LLM.APIKey,
			llm.WithModels(cfg.LLM.Models),
			llm.WithMaxTokens(cfg.LLM.MaxTokens),
			llm.WithTimeout(time.Duration(cfg.LLM.TimeoutSeconds)*time.Second),
			llm.WithLogger(log.Named("llm")),
		)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("llm client: %w", err)
		}
		base = append(base, WithChatter(chat, speed))
	} else if cfg.Strategy == scoring.StrategyLLM {
		_ = store.Close()
		return nil, fmt.Errorf("%w: strategy llm needs llm.api_key or ANTHROPIC_API_KEY", config.ErrInvalidConfig)
	}

	log.Info(ctx, "service wired",
		logger.Any("platforms", platforms.Platforms()),
		logger.Any("stage_tables", stages.Names()),
		logger.String("lookup", cfg.Lookup.Backend),
		logger.Bool("llm", cfg.LLM.APIKey != ""))

	return New(append(base, opts...)...), nil
}
