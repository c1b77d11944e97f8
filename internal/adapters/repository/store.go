// Package repository persists runs and their results.
package repository

import (
	"context"

	"github.com/okian/matchflow/internal/domain/types"
)

// Store provides read/write access to runs.
type Store interface {
	// Create stores a new run. Returns ErrExists if the id is taken.
	Create(ctx context.Context, run types.Run) error

	// Update replaces a stored run. Returns ErrNotFound if it is unknown.
	Update(ctx context.Context, run types.Run) error

	// Get returns a run by id. Returns ErrNotFound if it is unknown.
	Get(ctx context.Context, id string) (types.Run, error)

	// List returns up to limit runs, newest first.
	List(ctx context.Context, limit int) ([]types.Run, error)

	// Count returns the number of stored runs.
	Count(ctx context.Context) int

	Close() error
}
