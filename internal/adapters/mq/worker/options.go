package worker

import (
	"github.com/okian/oppsuggest/internal/domain/scoring"
	"github.com/okian/oppsuggest/pkg/logger"
)

// Option applies a configuration option to the InMemoryWorker.
type Option func(*InMemoryWorker)

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(w *InMemoryWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(l logger.Logger) Option {
	return func(w *InMemoryWorker) {
		if l != nil {
			w.logger = l
		}
	}
}

// PoolOption applies a configuration option to the Pool.
type PoolOption func(*Pool)

// WithScorer makes scorer available under strategy.
func WithScorer(strategy string, scorer scoring.Scorer) PoolOption {
	return func(p *Pool) {
		if strategy != "" && scorer != nil {
			p.scorers[strategy] = scorer
		}
	}
}

// WithPoolLogger sets the pool's logger; workers derive named loggers from it.
func WithPoolLogger(l logger.Logger) PoolOption {
	return func(p *Pool) {
		if l != nil {
			p.logger = l
		}
	}
}
