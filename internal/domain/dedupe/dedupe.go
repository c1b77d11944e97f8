// Package dedupe tracks client request ids so that a resubmitted run is
// answered with the run it already created.
package dedupe

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"
)

// Deduper maps request ids to the run ids they created.
type Deduper interface {
	// Claim records requestID as owned by runID unless it is already known.
	// When it is, the owning run id is returned with duplicate set.
	Claim(ctx context.Context, requestID, runID string) (owner string, duplicate bool)

	// Release forgets requestID so it can be submitted again. Used when the
	// run could not be queued.
	Release(ctx context.Context, requestID string)

	Size() int64
}

type entry struct {
	requestID string
	runID     string
}

// inMemoryDeduper keeps claims in a map. In bounded mode the oldest claim is
// evicted once maxSize is reached.
type inMemoryDeduper struct {
	mu      sync.Mutex
	claims  map[string]*list.Element
	order   *list.List // front is the oldest claim
	maxSize int        // <= 0 means unbounded
	size    atomic.Int64
}

// NewInMemoryDeduper creates an in-memory deduper.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		maxSize: 50000,
		claims:  make(map[string]*list.Element),
		order:   list.New(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *inMemoryDeduper) Claim(_ context.Context, requestID, runID string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if el, ok := d.claims[requestID]; ok {
		return el.Value.(*entry).runID, true
	}
	if d.maxSize > 0 && d.order.Len() >= d.maxSize {
		d.evictOldest()
	}
	d.claims[requestID] = d.order.PushBack(&entry{requestID: requestID, runID: runID})
	d.size.Store(int64(d.order.Len()))
	return runID, false
}

func (d *inMemoryDeduper) Release(_ context.Context, requestID string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if el, ok := d.claims[requestID]; ok {
		d.order.Remove(el)
		delete(d.claims, requestID)
		d.size.Store(int64(d.order.Len()))
	}
}

// evictOldest drops the front claim. Caller holds d.mu.
func (d *inMemoryDeduper) evictOldest() {
	front := d.order.Front()
	if front == nil {
		return
	}
	d.order.Remove(front)
	delete(d.claims, front.Value.(*entry).requestID)
}

// Size returns the number of claims held.
func (d *inMemoryDeduper) Size() int64 {
	return d.size.Load()
}
