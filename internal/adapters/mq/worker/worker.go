// Package worker runs generation jobs from a queue on a fixed pool of
// goroutines.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/okian/xscaffold/internal/adapters/mq/queue"
	"github.com/okian/xscaffold/pkg/logger"
	"github.com/okian/xscaffold/pkg/metrics"
)

// Processor handles one job. Implementations must be safe for concurrent
// use by several workers.
type Processor interface {
	Process(ctx context.Context, job queue.Job) error
}

// ProcessorFunc adapts a function to Processor.
type ProcessorFunc func(ctx context.Context, job queue.Job) error

// Process calls f.
func (f ProcessorFunc) Process(ctx context.Context, job queue.Job) error { return f(ctx, job) }

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Job
}

// Worker processes jobs until its queue is drained or its context ends.
type Worker interface {
	// Run starts the worker loop until ctx is canceled or the queue closes.
	Run(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue     Queue
	processor Processor
	name      string

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, p Processor, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:     q,
		processor: p,
		name:      "worker",
		logger:    logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run processes jobs until the queue is drained. The first failing job stops
// the worker and its error is returned.
func (w *InMemoryWorker) Run(ctx context.Context) error {
	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case job, ok := <-jobs:
			if !ok {
				return nil
			}
			if err := w.processJob(ctx, job); err != nil {
				return err
			}
		}
	}
}

func (w *InMemoryWorker) processJob(ctx context.Context, job queue.Job) error {
	start := time.Now()
	defer func() {
		metrics.RecordBatchLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	if err := w.processor.Process(ctx, job); err != nil {
		w.logger.Error(ctx, "batch failed",
			logger.Int("batch", job.Index),
			logger.Int("offset", job.Offset),
			logger.Error(err),
		)
		return fmt.Errorf("batch %d: %w", job.Index, err)
	}
	w.logger.Debug(ctx, "batch done",
		logger.Int("batch", job.Index),
		logger.Int("count", job.Count),
		logger.Duration("took", time.Since(start)),
	)
	return nil
}

// Pool manages multiple workers sharing one queue.
type Pool struct {
	workers []*InMemoryWorker

	wg     sync.WaitGroup
	cancel context.CancelFunc

	errOnce sync.Once
	err     error

	logger logger.Logger
}

// NewPool creates a pool of workerCount workers, one per CPU when
// workerCount < 1.
func NewPool(workerCount int, q Queue, p Processor, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}

	pool := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		logger:  logger.Get().Named("worker-pool"),
	}
	for i := 0; i < workerCount; i++ {
		wopts := append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)
		pool.workers[i] = NewInMemoryWorker(q, p, wopts...)
	}

	metrics.UpdateWorkerCount(workerCount)
	return pool
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Start starts all workers. A failing worker cancels the others.
func (p *Pool) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	p.logger.Debug(ctx, "starting workers", logger.Int("workers", len(p.workers)))
	for _, w := range p.workers {
		p.wg.Add(1)
		go func(w *InMemoryWorker) {
			defer p.wg.Done()
			if err := w.Run(ctx); err != nil {
				p.errOnce.Do(func() {
					p.err = err
					p.cancel()
				})
			}
		}(w)
	}
}

// Wait blocks until every worker has returned and reports the first error.
func (p *Pool) Wait() error {
	p.wg.Wait()
	if p.cancel != nil {
		p.cancel()
	}
	metrics.UpdateWorkerCount(0)
	return p.err
}
