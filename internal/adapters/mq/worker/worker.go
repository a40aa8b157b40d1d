// Package worker delivers queued invalidation signals on background
// goroutines so publishing never holds up a calculate request.
package worker

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/uara-ai/healthscore/internal/adapters/mq/invalidation"
	"github.com/uara-ai/healthscore/internal/adapters/mq/queue"
	"github.com/uara-ai/healthscore/pkg/logger"
	"github.com/uara-ai/healthscore/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultWorkerCount  = 2
	deliveryTimeout     = 10 * time.Second
	poolShutdownTimeout = 15 * time.Second
)

// Queue defines how workers receive signals.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Signal
}

// Worker delivers signals read from a Queue.
type Worker interface {
	// Run starts the worker loop until the queue is drained or ctx is canceled.
	Run(ctx context.Context)

	// Shutdown waits for the worker loop to return.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker on top of an invalidation.Publisher.
type InMemoryWorker struct {
	queue     Queue
	publisher invalidation.Publisher
	name      string

	done chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, pub invalidation.Publisher, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:     q,
		publisher: pub,
		name:      "worker",
		done:      make(chan struct{}),
		logger:    logger.Nop(),
	}

	for _, opt := range opts {
		opt(w)
	}

	w.logger = w.logger.Named(w.name)

	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	for sig := range w.queue.Dequeue(ctx) {
		if err := w.deliver(ctx, sig); err != nil {
			w.logger.Warn(ctx, "invalidation delivery failed",
				logger.String("user_id", sig.UserID),
				logger.String("snapshot_id", sig.SnapshotID),
				logger.Error(err))
		}
	}
}

// Shutdown waits for the worker loop to return or ctx to expire.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (w *InMemoryWorker) deliver(ctx context.Context, sig queue.Signal) error {
	start := time.Now()
	defer func() {
		metrics.RecordDeliveryLatency(float64(time.Since(start).Milliseconds()))
	}()

	dctx, cancel := context.WithTimeout(ctx, deliveryTimeout)
	defer cancel()

	if err := w.publisher.Publish(dctx, sig); err != nil {
		metrics.RecordInvalidation("delivery_failed")
		metrics.RecordErrorByComponent("worker", "delivery_error")
		return fmt.Errorf("deliver %s: %w", sig.SnapshotID, err)
	}
	metrics.RecordInvalidation("delivered")
	return nil
}

// Pool is an asynchronous invalidation.Publisher. Publish only queues the
// signal; a fixed set of workers hands it to the wrapped publisher.
type Pool struct {
	workers   []*InMemoryWorker
	queue     *queue.InMemoryQueue
	publisher invalidation.Publisher

	cancel    context.CancelFunc
	started   atomic.Bool
	startOnce sync.Once
	closeOnce sync.Once
	closeErr  error

	logger logger.Logger
}

// NewPool creates a pool of workerCount workers draining q into pub.
// A workerCount below one selects the default.
func NewPool(workerCount int, q *queue.InMemoryQueue, pub invalidation.Publisher, opts ...PoolOption) *Pool {
	if workerCount < 1 {
		workerCount = defaultWorkerCount
	}

	p := &Pool{
		workers:   make([]*InMemoryWorker, workerCount),
		queue:     q,
		publisher: pub,
		cancel:    func() {},
		logger:    logger.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}

	for i := 0; i < workerCount; i++ {
		p.workers[i] = NewInMemoryWorker(q, pub,
			WithName("invalidation-worker-"+strconv.Itoa(i)),
			WithLogger(p.logger),
		)
	}

	return p
}

// Start launches the workers. The workers outlive cancellation of ctx and
// stop only on Shutdown, so queued signals are not lost at exit.
func (p *Pool) Start(ctx context.Context) {
	p.startOnce.Do(func() {
		wctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		p.cancel = cancel
		for _, w := range p.workers {
			go w.Run(wctx)
		}
		p.started.Store(true)
	})
}

// Publish implements invalidation.Publisher by queueing sig.
func (p *Pool) Publish(ctx context.Context, sig invalidation.Signal) error {
	sig.Topics = append([]string(nil), sig.Topics...)
	if p.queue.Enqueue(ctx, sig) {
		return nil
	}
	if p.queue.IsClosed() {
		return queue.ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return queue.ErrFull
}

// Shutdown stops accepting signals, waits for the queue to drain and closes
// the wrapped publisher. Workers still running when ctx expires are canceled.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.closeOnce.Do(func() {
		if err := p.queue.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}

		var errs []error
		for i, w := range p.workers {
			if !p.started.Load() {
				break
			}
			if err := w.Shutdown(ctx); err != nil {
				p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
				errs = append(errs, err)
				break
			}
		}
		p.cancel()

		if c, ok := p.publisher.(interface{ Close() error }); ok {
			errs = append(errs, c.Close())
		}
		p.closeErr = errors.Join(errs...)
	})
	return p.closeErr
}

// Close shuts the pool down with the default timeout.
func (p *Pool) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), poolShutdownTimeout)
	defer cancel()
	return p.Shutdown(ctx)
}
