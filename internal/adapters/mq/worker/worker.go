// Package worker executes queued runs.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/matchflow/internal/adapters/mq/queue"
	"github.com/okian/matchflow/pkg/logger"
	"github.com/okian/matchflow/pkg/metrics"
)

const (
	defaultJobTimeout   = time.Minute
	poolShutdownTimeout = 30 * time.Second
)

// ErrJobTimeout marks a run that exceeded its deadline. Whatever it produced
// is discarded.
var ErrJobTimeout = errors.New("run exceeded its deadline")

// Executor solves a job and returns its encoded result.
type Executor interface {
	Execute(ctx context.Context, j queue.Job) (json.RawMessage, error)
}

// Recorder tracks the lifecycle of a job.
type Recorder interface {
	MarkRunning(ctx context.Context, runID string) error
	MarkFinished(ctx context.Context, runID string, result json.RawMessage, runErr error) error
}

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Job
}

// Worker processes jobs until stopped.
type Worker interface {
	// Run starts the worker loop until ctx is canceled, the queue is drained
	// and closed, or Shutdown is called.
	Run(ctx context.Context)

	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue      Queue
	executor   Executor
	recorder   Recorder
	name       string
	jobTimeout time.Duration
	active     *atomic.Int64

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a worker.
func NewInMemoryWorker(q Queue, executor Executor, recorder Recorder, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:      q,
		executor:   executor,
		recorder:   recorder,
		name:       "worker",
		jobTimeout: defaultJobTimeout,
		active:     new(atomic.Int64),
		shutdown:   make(chan struct{}),
		done:       make(chan struct{}),
		logger:     logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run implements Worker.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case j, ok := <-jobs:
			if !ok {
				return
			}
			if err := w.process(ctx, j); err != nil {
				w.logger.Error(ctx, "run failed", logger.String("run_id", j.RunID), logger.Error(err))
			}
		}
	}
}

// Shutdown implements Worker. The job in progress, if any, is finished first.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// process runs one job under its deadline and records the outcome. A run
// that overruns fails even if the executor returned a result.
func (w *InMemoryWorker) process(ctx context.Context, j queue.Job) error {
	metrics.UpdateWorkerActiveCount(int(w.active.Add(1)))
	defer func() { metrics.UpdateWorkerActiveCount(int(w.active.Add(-1))) }()

	if err := w.recorder.MarkRunning(ctx, j.RunID); err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "record_error")
		return fmt.Errorf("mark %s running: %w", j.RunID, err)
	}

	jobCtx, cancel := ctx, context.CancelFunc(func() {})
	if w.jobTimeout > 0 {
		jobCtx, cancel = context.WithTimeout(ctx, w.jobTimeout)
	}
	result, runErr := w.executor.Execute(jobCtx, j)
	if errors.Is(jobCtx.Err(), context.DeadlineExceeded) {
		result, runErr = nil, fmt.Errorf("%w: %s after %s", ErrJobTimeout, j.RunID, w.jobTimeout)
	}
	cancel()

	if runErr != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "run_error")
	}
	if err := w.recorder.MarkFinished(ctx, j.RunID, result, runErr); err != nil {
		metrics.RecordErrorByComponent("worker", "record_error")
		return fmt.Errorf("mark %s finished: %w", j.RunID, err)
	}
	return runErr
}

// Pool manages multiple workers sharing one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	active  atomic.Int64
	logger  logger.Logger
}

// NewPool creates workerCount workers; a count below one uses NumCPU. opts
// apply to every worker.
func NewPool(workerCount int, q Queue, executor Executor, recorder Recorder, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}
	p := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		logger:  logger.Get().Named("worker-pool"),
	}
	for i := range p.workers {
		w := NewInMemoryWorker(q, executor, recorder, append(opts, WithName("worker-"+strconv.Itoa(i)))...)
		w.active = &p.active
		p.workers[i] = w
	}

	metrics.UpdateWorkerCount(workerCount)
	metrics.UpdateWorkerActiveCount(0)
	return p
}

// Start starts all workers.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Active returns the number of workers currently running a job.
func (p *Pool) Active() int { return int(p.active.Load()) }

// Shutdown closes the queue and lets workers drain it. Workers still busy
// when ctx (capped at 30s) expires are told to stop after their current job.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var timedOut bool
	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			timedOut = true
			p.logger.Warn(ctx, "worker drain timed out", logger.Int("worker_id", i))
			w.shutdownOnce.Do(func() { close(w.shutdown) })
		}
	}
	if timedOut {
		return fmt.Errorf("worker pool drain: %w", shutdownCtx.Err())
	}
	return nil
}
