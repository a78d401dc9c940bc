// Package locker provides per-key mutual exclusion for award state changes.
// Finalize and cascade operations on one requisition must be applied as a
// single read-modify-write; the registry serializes them per requisition ID.
package locker

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Registry hands out one single-slot semaphore per key.
type Registry struct {
	mu    sync.Mutex
	locks map[string]*semaphore.Weighted
}

// NewRegistry creates an empty lock registry.
func NewRegistry() *Registry {
	return &Registry{locks: make(map[string]*semaphore.Weighted)}
}

// Acquire blocks until the lock for key is held or ctx is done. On success it
// returns a release function that must be called exactly once.
func (r *Registry) Acquire(ctx context.Context, key string) (func(), error) {
	r.mu.Lock()
	sem, ok := r.locks[key]
	if !ok {
		sem = semaphore.NewWeighted(1)
		r.locks[key] = sem
	}
	r.mu.Unlock()

	if err := sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	return func() { sem.Release(1) }, nil
}
