// Package queue carries scoring jobs from request handlers to workers.
package queue

import (
	"context"
	"fmt"
	"sync"

	"github.com/okian/oppsuggest/internal/domain/scoring"
	"github.com/okian/oppsuggest/pkg/metrics"
)

const defaultCapacity = 10_000

// Job asks a worker to score one opportunity.
type Job struct {
	// Context scopes the job to the request that submitted it.
	Context context.Context //nolint:containedctx // jobs outlive the enqueue call
	// Index is the job's position in its batch.
	Index    int
	Strategy string
	Input    scoring.Input
	// Reply receives exactly one Result. Submitters buffer it for the whole batch.
	Reply chan<- Result
}

// Result is a worker's answer to one Job.
type Result struct {
	Index  int
	Result scoring.Result
	Err    error
}

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a job without blocking. It fails with ErrFull or ErrClosed.
	Enqueue(ctx context.Context, j Job) error
	// Dequeue returns the channel workers read jobs from; it is closed by Close.
	Dequeue() <-chan Job
	// Len returns the number of pending jobs.
	Len() int
	// Cap returns the configured capacity.
	Cap() int
	// Close stops accepting jobs. Pending jobs remain readable.
	Close() error
	IsClosed() bool
}

// InMemoryQueue implements Queue with a buffered channel.
type InMemoryQueue struct {
	jobs     chan Job
	capacity int

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a bounded in-memory queue.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.jobs = make(chan Job, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0, q.capacity)
	return q
}

// Enqueue implements Queue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, j Job) error { //nolint:gocritic // hugeParam: jobs travel by value
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueEnqueueError("closed")
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		metrics.RecordQueueEnqueueError("context_cancelled")
		return fmt.Errorf("enqueue: %w", err)
	}

	select {
	case q.jobs <- j:
		metrics.RecordQueueEnqueue()
		metrics.UpdateQueueSize(len(q.jobs), q.capacity)
		return nil
	default:
		metrics.RecordQueueEnqueueError("full")
		metrics.RecordErrorByComponent("queue", "full")
		return ErrFull
	}
}

// Dequeue implements Queue.
func (q *InMemoryQueue) Dequeue() <-chan Job {
	return q.jobs
}

// Len implements Queue.
func (q *InMemoryQueue) Len() int {
	size := len(q.jobs)
	metrics.UpdateQueueSize(size, q.capacity)
	return size
}

// Cap implements Queue.
func (q *InMemoryQueue) Cap() int { return q.capacity }

// Close implements Queue. Closing twice is a no-op.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.jobs)
	q.closed = true
	return nil
}

// IsClosed implements Queue.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
