// Package service wires the engine to the queue, the worker pool and the run
// store, and implements the dependencies required by the HTTP API.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	runqueue "github.com/okian/matchflow/internal/adapters/mq/queue"
	workerpool "github.com/okian/matchflow/internal/adapters/mq/worker"
	"github.com/okian/matchflow/internal/adapters/repository"
	"github.com/okian/matchflow/internal/domain/dedupe"
	"github.com/okian/matchflow/internal/domain/matching"
	"github.com/okian/matchflow/internal/domain/types"
	"github.com/okian/matchflow/pkg/logger"
	"github.com/okian/matchflow/pkg/metrics"
)

// Service accepts runs, executes them on a worker pool and keeps their
// results.
type Service struct {
	mu sync.RWMutex

	store   repository.Store
	deduper dedupe.Deduper
	queue   runqueue.Queue
	pool    *workerpool.Pool
	engine  *Engine

	workerCount int
	queueSize   int
	dedupeSize  int
	jobTimeout  time.Duration
	algorithm   matching.Algorithm
	balancing   map[string]float64
	storeDSN    string
	ownsStore   bool
	now         func() time.Time
	newID       func() string

	started bool
	logger  logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of worker goroutines.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum number of waiting runs.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets how many request ids are remembered.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithJobTimeout sets the per-run deadline. Zero disables it.
func WithJobTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.jobTimeout = d
		}
	}
}

// WithAlgorithm sets the algorithm used when a request names none.
func WithAlgorithm(a matching.Algorithm) Option {
	return func(s *Service) {
		s.algorithm = a
	}
}

// WithBalancing sets the target shares used when a request carries none.
func WithBalancing(targets map[string]float64) Option {
	return func(s *Service) {
		s.balancing = targets
	}
}

// WithStore sets the run store. Without it Start opens a PostgreSQL store
// when a DSN is configured and a memory store otherwise.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithStoreDSN sets the PostgreSQL connection string for the run store.
func WithStoreDSN(dsn string) Option {
	return func(s *Service) {
		s.storeDSN = dsn
	}
}

// WithClock sets the clock used for timestamps and waiting days.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
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

// New constructs a Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount: runtime.NumCPU(),
		queueSize:   1024,
		dedupeSize:  100000,
		jobTimeout:  time.Minute,
		algorithm:   matching.SuccessiveShortestPaths,
		now:         time.Now,
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}
	s.logger.Info(ctx, "starting matchflow service...")

	if s.store == nil {
		if s.storeDSN != "" {
			store, err := repository.NewPostgresStore(ctx, s.storeDSN)
			if err != nil {
				return fmt.Errorf("open run store: %w", err)
			}
			s.store = store
			s.logger.Info(ctx, "using postgres run store")
		} else {
			s.store = repository.NewMemoryStore(ctx)
			s.logger.Info(ctx, "using memory run store")
		}
		s.ownsStore = true
	}
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.queue = runqueue.NewInMemoryQueue(runqueue.WithCapacity(s.queueSize))
	s.engine = NewEngine(s.logger.Named("engine"))
	s.pool = workerpool.NewPool(s.workerCount, s.queue, s.engine, s,
		workerpool.WithJobTimeout(s.jobTimeout),
		workerpool.WithLogger(s.logger.Named("worker")),
	)
	s.pool.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "matchflow service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.Duration("jobTimeout", s.jobTimeout),
		logger.String("algorithm", s.algorithm.String()),
	)
	return nil
}

// Stop drains the queue and closes the store.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.logger.Info(ctx, "stopping matchflow service...")

	var errs []error
	if err := s.pool.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if s.ownsStore {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close run store: %w", err))
		}
		s.store, s.ownsStore = nil, false
	}
	s.started = false
	s.logger.Info(ctx, "matchflow service stopped")
	return errors.Join(errs...)
}

func (s *Service) defaults() Defaults {
	return Defaults{Algorithm: s.algorithm, Balancing: s.balancing, Now: s.now}
}

// SubmitMatching validates a matching request and queues it. duplicate is
// set when the request id was seen before; the earlier run is returned.
func (s *Service) SubmitMatching(ctx context.Context, req *MatchingRequest) (run types.Run, duplicate bool, err error) {
	in, err := req.Decode(s.defaults())
	if err != nil {
		return types.Run{}, false, err
	}
	return s.submit(ctx, types.KindMatching, req.RequestID, in)
}

// SubmitCourses validates a course-assignment request and queues it.
func (s *Service) SubmitCourses(ctx context.Context, req *CourseRequest) (run types.Run, duplicate bool, err error) {
	in, err := req.Decode()
	if err != nil {
		return types.Run{}, false, err
	}
	return s.submit(ctx, types.KindCourses, req.RequestID, in)
}

func (s *Service) submit(ctx context.Context, kind types.RunKind, requestID string, payload any) (types.Run, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return types.Run{}, false, ErrNotStarted
	}

	runID := s.newID()
	if requestID != "" {
		if owner, dup := s.deduper.Claim(ctx, requestID, runID); dup {
			metrics.RecordRunDuplicate()
			s.logger.Debug(ctx, "duplicate request", logger.String("request_id", requestID), logger.String("run_id", owner))
			run, err := s.store.Get(ctx, owner)
			if errors.Is(err, repository.ErrNotFound) {
				return types.Run{ID: owner, RequestID: requestID, Kind: kind}, true, nil
			}
			return run, true, err
		}
	}

	run := types.Run{
		ID:        runID,
		RequestID: requestID,
		Kind:      kind,
		Status:    types.StatusQueued,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.Create(ctx, run); err != nil {
		s.release(ctx, requestID)
		return types.Run{}, false, fmt.Errorf("store run: %w", err)
	}

	if err := s.queue.Enqueue(ctx, runqueue.Job{RunID: runID, Kind: kind, Payload: payload}); err != nil {
		s.release(ctx, requestID)
		s.fail(ctx, run, err)
		if errors.Is(err, runqueue.ErrFull) {
			return types.Run{}, false, fmt.Errorf("%w: %w", ErrBackpressure, err)
		}
		return types.Run{}, false, fmt.Errorf("queue run: %w", err)
	}

	metrics.RecordRunSubmitted(string(kind))
	s.logger.Debug(ctx, "run queued", logger.String("run_id", runID), logger.String("kind", string(kind)))
	return run, false, nil
}

func (s *Service) release(ctx context.Context, requestID string) {
	if requestID != "" {
		s.deduper.Release(ctx, requestID)
	}
}

// fail marks a run that never reached a worker as failed.
func (s *Service) fail(ctx context.Context, run types.Run, cause error) {
	finished := s.now().UTC()
	run.Status = types.StatusFailed
	run.Error = cause.Error()
	run.FinishedAt = &finished
	if err := s.store.Update(ctx, run); err != nil {
		s.logger.Error(ctx, "failed to record rejected run", logger.String("run_id", run.ID), logger.Error(err))
	}
	metrics.RecordRunCompleted(string(run.Kind), string(run.Status))
}

// MarkRunning implements worker.Recorder.
func (s *Service) MarkRunning(ctx context.Context, runID string) error {
	run, err := s.store.Get(ctx, runID)
	if err != nil {
		return err
	}
	started := s.now().UTC()
	run.Status = types.StatusRunning
	run.StartedAt = &started
	return s.store.Update(ctx, run)
}

// MarkFinished implements worker.Recorder.
func (s *Service) MarkFinished(ctx context.Context, runID string, result json.RawMessage, runErr error) error {
	run, err := s.store.Get(ctx, runID)
	if err != nil {
		return err
	}
	finished := s.now().UTC()
	run.FinishedAt = &finished
	if runErr != nil {
		run.Status = types.StatusFailed
		run.Error = runErr.Error()
		run.Result = nil
	} else {
		run.Status = types.StatusSucceeded
		run.Result = result
	}
	metrics.RecordRunCompleted(string(run.Kind), string(run.Status))
	return s.store.Update(ctx, run)
}

// GetRun returns a run by id.
func (s *Service) GetRun(ctx context.Context, id string) (types.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return types.Run{}, ErrNotStarted
	}
	return s.store.Get(ctx, id)
}

// ListRuns returns up to limit runs, newest first.
func (s *Service) ListRuns(ctx context.Context, limit int) ([]types.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotStarted
	}
	return s.store.List(ctx, limit)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"dedupeSize":  s.dedupeSize,
		"algorithm":   s.algorithm.String(),
	}
	if s.started {
		queueLen := s.queue.Len(ctx)
		storedRuns := s.store.Count(ctx)

		stats["queueLength"] = queueLen
		stats["activeWorkers"] = s.pool.Active()
		stats["storedRuns"] = storedRuns
		stats["dedupeEntries"] = s.deduper.Size()

		metrics.UpdateStoredRuns(storedRuns)
		metrics.UpdateWorkerCount(s.workerCount)
	}
	return stats
}
