package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/matchflow/internal/domain/types"
	"github.com/okian/matchflow/pkg/metrics"
)

// MemoryStore keeps runs in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	runs  map[string]types.Run
	order []string // insertion order, oldest first

	maxRuns               int
	metricsUpdateInterval time.Duration

	stopOnce sync.Once
	stopChan chan struct{}
}

// NewMemoryStore creates a MemoryStore and starts its metrics updater, which
// runs until ctx is done or Close is called.
func NewMemoryStore(ctx context.Context, opts ...Option) *MemoryStore {
	s := &MemoryStore{
		runs:                  make(map[string]types.Run),
		metricsUpdateInterval: 5 * time.Second,
		stopChan:              make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.startMetricsUpdater(ctx)
	return s
}

func (s *MemoryStore) startMetricsUpdater(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.metricsUpdateInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				metrics.UpdateStoredRuns(s.Count(ctx))
			}
		}
	}()
}

// Close stops the metrics updater. It is safe to call more than once.
func (s *MemoryStore) Close() error {
	s.stopOnce.Do(func() { close(s.stopChan) })
	return nil
}

// Create implements Store.
func (s *MemoryStore) Create(_ context.Context, run types.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.runs[run.ID]; ok {
		metrics.RecordErrorByComponent("repository", "exists")
		return fmt.Errorf("%w: %s", ErrExists, run.ID)
	}
	s.runs[run.ID] = run
	s.order = append(s.order, run.ID)
	s.evict()
	return nil
}

// evict drops the oldest finished runs above maxRuns. Caller holds s.mu.
func (s *MemoryStore) evict() {
	if s.maxRuns <= 0 || len(s.order) <= s.maxRuns {
		return
	}
	excess := len(s.order) - s.maxRuns
	kept := s.order[:0]
	for _, id := range s.order {
		if excess > 0 && s.runs[id].Status.Done() {
			delete(s.runs, id)
			excess--
			continue
		}
		kept = append(kept, id)
	}
	s.order = kept
}

// Update implements Store.
func (s *MemoryStore) Update(_ context.Context, run types.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.runs[run.ID]; !ok {
		metrics.RecordErrorByComponent("repository", "not_found")
		return fmt.Errorf("%w: %s", ErrNotFound, run.ID)
	}
	s.runs[run.ID] = run
	return nil
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, id string) (types.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	if !ok {
		metrics.RecordErrorByComponent("repository", "not_found")
		return types.Run{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return run, nil
}

// List implements Store.
func (s *MemoryStore) List(_ context.Context, limit int) ([]types.Run, error) {
	if limit <= 0 {
		metrics.RecordErrorByComponent("repository", "invalid_limit")
		return nil, fmt.Errorf("%w: %d", ErrInvalidLimit, limit)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.Run, 0, min(limit, len(s.order)))
	for i := len(s.order) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.runs[s.order[i]])
	}
	return out, nil
}

// Count implements Store.
func (s *MemoryStore) Count(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.runs)
}
