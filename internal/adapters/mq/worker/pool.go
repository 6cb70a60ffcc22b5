package worker

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/oppsuggest/internal/adapters/mq/queue"
	"github.com/okian/oppsuggest/internal/domain/scoring"
	"github.com/okian/oppsuggest/pkg/logger"
	"github.com/okian/oppsuggest/pkg/metrics"
)

const (
	defaultWorkerMultiplier = 2
	metricsUpdateInterval   = 5 * time.Second
	poolShutdownTimeout     = 30 * time.Second
)

// Pool runs a fixed set of workers over one queue and fans scoring batches
// out to them.
type Pool struct {
	workers []*InMemoryWorker
	queue   queue.Queue
	scorers map[string]scoring.Scorer

	shutdown     chan struct{}
	shutdownOnce sync.Once
	started      atomic.Bool
	stopped      atomic.Bool

	processed atomic.Int64
	lastTick  time.Time

	logger logger.Logger
}

// NewPool creates a pool of workerCount workers reading from q. A
// non-positive count defaults to twice the CPU count.
func NewPool(workerCount int, q queue.Queue, opts ...PoolOption) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkerMultiplier
	}

	p := &Pool{
		workers:  make([]*InMemoryWorker, workerCount),
		queue:    q,
		scorers:  make(map[string]scoring.Scorer),
		shutdown: make(chan struct{}),
		lastTick: time.Now(),
		logger:   logger.Get().Named("worker-pool"),
	}
	for _, opt := range opts {
		opt(p)
	}

	for i := range p.workers {
		name := "worker-" + strconv.Itoa(i)
		w := NewInMemoryWorker(q.Dequeue(), p.scorers,
			WithName(name),
			WithLogger(p.logger.Named(name)))
		w.processed = func() { p.processed.Add(1) }
		p.workers[i] = w
	}

	metrics.UpdateWorkerCount(workerCount)
	metrics.UpdateWorkerJobsPerSecond(0)
	return p
}

// Start launches every worker and the throughput updater.
func (p *Pool) Start(ctx context.Context) {
	if !p.started.CompareAndSwap(false, true) {
		return
	}
	for _, w := range p.workers {
		go w.Run(ctx)
	}
	go p.startMetricsUpdater(ctx)
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Strategies lists the strategies the pool can score with.
func (p *Pool) Strategies() []string {
	out := make([]string, 0, len(p.scorers))
	for s := range p.scorers {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Processed returns the number of jobs handled since the last metrics tick.
func (p *Pool) Processed() int64 { return p.processed.Load() }

// Dispatch scores inputs with strategy and returns results in input order.
// A full queue fails fast with queue.ErrFull; the first scoring error aborts
// the batch and cancels its remaining jobs.
func (p *Pool) Dispatch(ctx context.Context, strategy string, inputs []scoring.Input) ([]scoring.Result, error) {
	if p.stopped.Load() {
		return nil, ErrStopped
	}
	if !p.started.Load() {
		return nil, ErrNotStarted
	}
	if _, ok := p.scorers[strategy]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, strategy)
	}
	if len(inputs) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	replies := make(chan queue.Result, len(inputs))
	for i := range inputs {
		job := queue.Job{
			Context:  ctx,
			Index:    i,
			Strategy: strategy,
			Input:    inputs[i],
			Reply:    replies,
		}
		if err := p.queue.Enqueue(ctx, job); err != nil {
			return nil, fmt.Errorf("dispatch job %d of %d: %w", i+1, len(inputs), err)
		}
	}

	results := make([]scoring.Result, len(inputs))
	for n := 0; n < len(inputs); n++ {
		select {
		case r := <-replies:
			if r.Err != nil {
				return nil, r.Err
			}
			results[r.Index] = r.Result
		case <-ctx.Done():
			return nil, fmt.Errorf("dispatch: %w", ctx.Err())
		}
	}
	return results, nil
}

func (p *Pool) startMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(metricsUpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.shutdown:
			return
		case <-ticker.C:
			p.updateMetrics()
		}
	}
}

func (p *Pool) updateMetrics() {
	now := time.Now()
	if elapsed := now.Sub(p.lastTick).Seconds(); elapsed > 0 {
		metrics.UpdateWorkerJobsPerSecond(float64(p.processed.Swap(0)) / elapsed)
	}
	p.lastTick = now
}

// Shutdown closes the queue, lets workers drain pending jobs and waits for
// them up to ctx or an internal ceiling, whichever comes first.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.stopped.Store(true)
	if err := p.queue.Close(); err != nil {
		p.logger.Error(ctx, "error closing queue", logger.Error(err))
	}

	waitCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var timedOut int
	for _, w := range p.workers {
		if !p.started.Load() {
			break
		}
		select {
		case <-w.Done():
		case <-waitCtx.Done():
			timedOut++
		}
	}
	p.shutdownOnce.Do(func() { close(p.shutdown) })

	if timedOut > 0 {
		p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("workers", timedOut))
		return fmt.Errorf("%d workers still busy: %w", timedOut, waitCtx.Err())
	}
	return nil
}
