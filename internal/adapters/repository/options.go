package repository

import "time"

// Option applies a configuration option to the MemoryStore.
type Option func(*MemoryStore)

// WithMetricsUpdateInterval sets how often the stored-runs gauge is refreshed.
func WithMetricsUpdateInterval(interval time.Duration) Option {
	return func(s *MemoryStore) {
		if interval > 0 {
			s.metricsUpdateInterval = interval
		}
	}
}

// WithMaxRuns bounds the number of runs kept. The oldest finished runs are
// dropped first. maxRuns <= 0 disables the bound.
func WithMaxRuns(maxRuns int) Option {
	return func(s *MemoryStore) {
		s.maxRuns = maxRuns
	}
}
