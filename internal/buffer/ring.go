// Package buffer provides a bounded history of recent items.
package buffer

import (
	"sync"
)

// Ring is a thread-safe circular buffer that keeps the most recent items
// up to a fixed capacity. When full, the oldest item is discarded.
//
// The relay uses it to replay recent notifications to clients that
// connect after they were broadcast.
type Ring[T any] struct {
	items    []T
	start    int
	count    int
	capacity int
	mu       sync.RWMutex
}

// NewRing creates a Ring with the specified capacity.
// The capacity must be greater than 0; if not, it defaults to 1.
func NewRing[T any](capacity int) *Ring[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &Ring[T]{
		items:    make([]T, capacity),
		capacity: capacity,
	}
}

// Push appends item, evicting the oldest item when the ring is full.
func (r *Ring[T]) Push(item T) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.count < r.capacity {
		r.items[(r.start+r.count)%r.capacity] = item
		r.count++
		return
	}
	r.items[r.start] = item
	r.start = (r.start + 1) % r.capacity
}

// Snapshot returns the items oldest first. The returned slice is a copy.
func (r *Ring[T]) Snapshot() []T {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.count == 0 {
		return nil
	}
	out := make([]T, r.count)
	for i := 0; i < r.count; i++ {
		out[i] = r.items[(r.start+i)%r.capacity]
	}
	return out
}

// Clear removes all items.
func (r *Ring[T]) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	var zero T
	for i := range r.items {
		r.items[i] = zero
	}
	r.start, r.count = 0, 0
}

// Len returns the current number of items.
func (r *Ring[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.count
}

// Cap returns the capacity of the ring.
func (r *Ring[T]) Cap() int {
	return r.capacity
}
