// Package ringbuf provides a bounded, mutex-guarded ring that evicts the
// oldest entry when full. The stream connector keeps its diagnostic frame
// log in one.
package ringbuf

import "sync"

// Ring is a fixed-capacity FIFO. Push never blocks: when the ring is full the
// oldest entry is overwritten and counted as evicted.
//
// Thread-safe for concurrent writes and reads.
type Ring[T any] struct {
	mu   sync.RWMutex
	buf  []T
	pos  int // next write position
	full bool

	evicted uint64
}

// New creates a ring with the given capacity. Non-positive capacity means 100.
func New[T any](capacity int) *Ring[T] {
	if capacity <= 0 {
		capacity = 100
	}
	return &Ring[T]{buf: make([]T, capacity)}
}

// Push appends v, overwriting the oldest entry when full.
func (r *Ring[T]) Push(v T) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.full {
		r.evicted++
	}
	r.buf[r.pos] = v
	r.pos = (r.pos + 1) % len(r.buf)
	if r.pos == 0 && !r.full {
		r.full = true
	}
}

// Snapshot returns a copy of the contents ordered oldest to newest.
func (r *Ring[T]) Snapshot() []T {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := r.len()
	out := make([]T, n)
	for i := 0; i < n; i++ {
		out[i] = r.buf[r.index(i)]
	}
	return out
}

// Clear drops every entry. The eviction counter is kept.
func (r *Ring[T]) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	var zero T
	for i := range r.buf {
		r.buf[i] = zero
	}
	r.pos = 0
	r.full = false
}

// Len returns the number of entries currently held.
func (r *Ring[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.len()
}

// Cap returns the ring capacity.
func (r *Ring[T]) Cap() int {
	return len(r.buf)
}

// Evicted returns the total number of entries overwritten because the ring was full.
func (r *Ring[T]) Evicted() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.evicted
}

func (r *Ring[T]) len() int {
	if r.full {
		return len(r.buf)
	}
	return r.pos
}

// index maps logical position i (0 = oldest) to a slot in buf.
func (r *Ring[T]) index(i int) int {
	if !r.full {
		return i
	}
	return (r.pos + i) % len(r.buf)
}
