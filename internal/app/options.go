package service

import (
	"time"

	"github.com/okian/oppsuggest/internal/adapters/crm"
	"github.com/okian/oppsuggest/internal/adapters/lookup"
	"github.com/okian/oppsuggest/internal/domain/scoring"
	"github.com/okian/oppsuggest/internal/domain/stage"
	"github.com/okian/oppsuggest/internal/domain/suggestion"
	"github.com/okian/oppsuggest/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of scoring workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the scoring job queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithPolicy sets the default selection policy.
func WithPolicy(p suggestion.Policy) Option {
	return func(s *Service) {
		s.policy = p
	}
}

// WithStrategy sets the default scoring strategy.
func WithStrategy(strategy string) Option {
	return func(s *Service) {
		if strategy != "" {
			s.strategy = strategy
		}
	}
}

// WithDefaultPlatform sets the connector used when a request names none.
func WithDefaultPlatform(platform string) Option {
	return func(s *Service) {
		if platform != "" {
			s.defaultPlatform = platform
		}
	}
}

// WithLookup sets the user/product store.
func WithLookup(store lookup.Store) Option {
	return func(s *Service) {
		s.lookup = store
	}
}

// WithPlatforms sets the CRM connectors.
func WithPlatforms(reg *crm.PlatformRegistry) Option {
	return func(s *Service) {
		if reg != nil {
			s.platforms = reg
		}
	}
}

// WithStageRegistry sets the stage weight tables.
func WithStageRegistry(reg *stage.Registry) Option {
	return func(s *Service) {
		if reg != nil {
			s.stages = reg
		}
	}
}

// WithChatter enables the llm strategy through chat at the given speed tier.
func WithChatter(chat scoring.Chatter, speed scoring.Speed) Option {
	return func(s *Service) {
		s.chatter = chat
		s.llmSpeed = speed
	}
}

// WithRequestTimeout bounds a single Suggest or Rank call.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.requestTimeout = d
		}
	}
}
