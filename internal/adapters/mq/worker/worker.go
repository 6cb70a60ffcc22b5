// Package worker scores queued opportunities concurrently.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/oppsuggest/internal/adapters/mq/queue"
	"github.com/okian/oppsuggest/internal/domain/scoring"
	"github.com/okian/oppsuggest/pkg/logger"
	"github.com/okian/oppsuggest/pkg/metrics"
)

// Worker processes jobs until stopped.
type Worker interface {
	// Run starts the worker loop until ctx is canceled, the job channel is
	// closed or Shutdown is called.
	Run(ctx context.Context)
	// Shutdown stops the worker and waits for the current job.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker reads jobs from a channel and replies with scores.
type InMemoryWorker struct {
	jobs    <-chan queue.Job
	scorers map[string]scoring.Scorer
	name    string

	shutdown chan struct{}
	done     chan struct{}
	// processed is invoked after every job; the pool uses it for throughput.
	processed func()

	logger logger.Logger
}

// NewInMemoryWorker creates a worker over jobs using scorers keyed by strategy.
func NewInMemoryWorker(jobs <-chan queue.Job, scorers map[string]scoring.Scorer, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		jobs:      jobs,
		scorers:   scorers,
		name:      "worker",
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
		processed: func() {},
		logger:    logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run implements Worker.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case job, ok := <-w.jobs:
			if !ok {
				return
			}
			w.process(job)
			w.processed()
		}
	}
}

// Shutdown implements Worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	close(w.shutdown)

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out", logger.String("worker", w.name))
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Done is closed once Run returns.
func (w *InMemoryWorker) Done() <-chan struct{} { return w.done }

func (w *InMemoryWorker) process(job queue.Job) { //nolint:gocritic // hugeParam: jobs travel by value
	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	ctx := job.Context
	if ctx == nil {
		ctx = context.Background()
	}
	res := queue.Result{Index: job.Index}

	switch scorer, ok := w.scorers[job.Strategy]; {
	case !ok:
		res.Err = fmt.Errorf("%w: %q", ErrUnknownStrategy, job.Strategy)
	case ctx.Err() != nil:
		// The submitting request is gone; skip the work.
		res.Err = fmt.Errorf("job %d: %w", job.Index, ctx.Err())
	default:
		scoreStart := time.Now()
		res.Result, res.Err = scorer.Score(ctx, job.Input)
		metrics.RecordScoringLatency(job.Strategy, float64(time.Since(scoreStart).Microseconds())/1000)
		if res.Err == nil {
			metrics.RecordOpportunityScored(job.Strategy, res.Result.Score)
		}
	}

	if res.Err != nil {
		metrics.RecordScoringError(job.Strategy)
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "scoring_error")
		w.logger.Debug(ctx, "scoring failed",
			logger.String("worker", w.name),
			logger.String("opportunity_id", job.Input.Opportunity.ID),
			logger.Error(res.Err))
	}

	if job.Reply == nil {
		return
	}
	select {
	case job.Reply <- res:
	default:
		w.logger.Warn(ctx, "reply channel full, result dropped",
			logger.String("worker", w.name),
			logger.Int("index", job.Index))
	}
}
