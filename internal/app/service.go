// Package service wires lookups, CRM connectors and the scoring pool into
// the suggestion use cases served by the HTTP API and the CLI.
package service

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/oppsuggest/internal/adapters/crm"
	"github.com/okian/oppsuggest/internal/adapters/lookup"
	"github.com/okian/oppsuggest/internal/adapters/mq/queue"
	"github.com/okian/oppsuggest/internal/adapters/mq/worker"
	"github.com/okian/oppsuggest/internal/domain/scoring"
	"github.com/okian/oppsuggest/internal/domain/stage"
	"github.com/okian/oppsuggest/internal/domain/suggestion"
	"github.com/okian/oppsuggest/pkg/logger"
	"github.com/okian/oppsuggest/pkg/metrics"
)

// Service implements the suggestion and ranking use cases.
type Service struct {
	mu sync.RWMutex

	// Collaborators
	lookup    lookup.Store
	platforms *crm.PlatformRegistry
	stages    *stage.Registry
	chatter   scoring.Chatter

	// Scoring pipeline
	jobs queue.Queue
	pool *worker.Pool

	// Configuration
	workerCount     int
	queueSize       int
	policy          suggestion.Policy
	strategy        string
	defaultPlatform string
	llmSpeed        scoring.Speed
	requestTimeout  time.Duration

	// State
	started bool
	stats   counters

	logger logger.Logger
}

type counters struct {
	requests  atomic.Int64
	suggested atomic.Int64
	failures  atomic.Int64
}

// New constructs a Service with default configuration. Collaborators left
// unset get empty defaults: no platforms, the built-in stage tables and no
// lookup store.
func New(opts ...Option) *Service {
	s := &Service{
		stages:          stage.NewRegistry(),
		platforms:       crm.NewStaticRegistry(nil),
		workerCount:     runtime.NumCPU() * 2,
		queueSize:       10_000,
		policy:          suggestion.DefaultPolicy(),
		strategy:        scoring.StrategyDeterministic,
		defaultPlatform: "salesforce",
		llmSpeed:        scoring.SpeedFast,
		requestTimeout:  30 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start builds the scoring queue and starts the worker pool.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	if err := s.policy.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	poolOpts := []worker.PoolOption{
		worker.WithPoolLogger(s.logger.Named("pool")),
		worker.WithScorer(scoring.StrategyDeterministic, scoring.NewWeightedScorer()),
	}
	if s.chatter != nil {
		poolOpts = append(poolOpts, worker.WithScorer(scoring.StrategyLLM,
			scoring.NewLLMScorer(s.chatter, scoring.WithSpeed(s.llmSpeed))))
	}

	s.jobs = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.pool = worker.NewPool(s.workerCount, s.jobs, poolOpts...)
	s.pool.Start(ctx)
	s.started = true

	s.logger.Info(ctx, "suggestion service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.String("strategy", s.strategy),
		logger.Any("strategies", s.pool.Strategies()),
		logger.Any("platforms", s.platforms.Platforms()),
	)
	return nil
}

// Stop drains the worker pool and closes the lookup store.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx := context.Background()
	s.logger.Info(ctx, "stopping suggestion service...")

	if err := s.pool.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "worker pool shutdown", logger.Error(err))
	}
	if s.lookup != nil {
		if err := s.lookup.Close(); err != nil {
			s.logger.Warn(ctx, "closing lookup store", logger.Error(err))
		}
	}
	s.started = false
	s.logger.Info(ctx, "suggestion service stopped")
}

// Platforms lists configured connector names.
func (s *Service) Platforms() []string {
	return s.platforms.Platforms()
}

// StageTables lists registered stage table tags.
func (s *Service) StageTables() []string {
	return s.stages.Names()
}

// Strategies lists the scoring strategies this service can run.
func (s *Service) Strategies() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.pool != nil {
		return s.pool.Strategies()
	}
	out := []string{scoring.StrategyDeterministic}
	if s.chatter != nil {
		out = append(out, scoring.StrategyLLM)
	}
	return out
}

// Policy returns the default selection policy.
func (s *Service) Policy() suggestion.Policy { return s.policy }

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":         s.started,
		"workerCount":     s.workerCount,
		"queueSize":       s.queueSize,
		"strategy":        s.strategy,
		"defaultPlatform": s.defaultPlatform,
		"platforms":       s.platforms.Platforms(),
		"requests":        s.stats.requests.Load(),
		"suggested":       s.stats.suggested.Load(),
		"failures":        s.stats.failures.Load(),
	}
	if s.started {
		stats["queueLength"] = s.jobs.Len()
		metrics.UpdateWorkerCount(s.workerCount)
	}
	return stats
}

func (s *Service) isStarted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}
