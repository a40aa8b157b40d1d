// Package queue buffers invalidation signals between the request path and
// the workers that deliver them.
//
// The queue is bounded: when it is full Enqueue refuses the signal instead
// of blocking the caller.
package queue

import (
	"context"
	"sync"

	"github.com/uara-ai/healthscore/internal/adapters/mq/invalidation"
	"github.com/uara-ai/healthscore/pkg/metrics"
)

// Default queue configuration constants.
const (
	defaultQueueCapacity = 1024
)

// Signal is the payload flowing through the queue.
type Signal = invalidation.Signal

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a signal to the queue.
	// Returns false if the queue is full or closed.
	Enqueue(ctx context.Context, s Signal) bool

	// Dequeue returns a channel that receives signals as they become available.
	// The channel is closed once the queue is closed and drained.
	Dequeue(ctx context.Context) <-chan Signal

	// Len returns the current number of queued signals.
	Len(ctx context.Context) int

	// Close stops accepting signals. Signals already queued are still delivered.
	Close() error

	// IsClosed returns true if the queue has been closed.
	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	signals  chan Signal
	capacity int
	mu       sync.RWMutex
	closed   bool
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{
		capacity: defaultQueueCapacity,
	}

	for _, opt := range opts {
		opt(q)
	}

	q.signals = make(chan Signal, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueDepth(0)

	return q
}

// Enqueue adds a signal to the queue without blocking.
func (q *InMemoryQueue) Enqueue(ctx context.Context, s Signal) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueEnqueue("closed")
		return false
	}
	if err := ctx.Err(); err != nil {
		metrics.RecordQueueEnqueue("cancelled")
		return false
	}

	select {
	case q.signals <- s:
		metrics.RecordQueueEnqueue("ok")
		metrics.UpdateQueueDepth(len(q.signals))
		return true
	default:
		metrics.RecordQueueEnqueue("full")
		metrics.RecordErrorByComponent("queue", "queue_full")
		return false
	}
}

// Dequeue returns a channel that receives signals as they become available.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Signal {
	out := make(chan Signal)
	go func() {
		defer close(out)
		for s := range q.signals {
			select {
			case out <- s:
				metrics.UpdateQueueDepth(len(q.signals))
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Len returns the current number of queued signals.
func (q *InMemoryQueue) Len(_ context.Context) int {
	size := len(q.signals)
	metrics.UpdateQueueDepth(size)
	return size
}

// Capacity returns the maximum number of queued signals.
func (q *InMemoryQueue) Capacity() int {
	return q.capacity
}

// Close stops accepting signals.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}

	close(q.signals)
	q.closed = true

	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
