package ring

import (
	"errors"
	"fmt"
	"iter"
	"sync"
)

// ErrInvalidConfiguration is returned when a buffer is built with a
// non-positive capacity.
var ErrInvalidConfiguration = errors.New("invalid configuration")

// Buffer is a fixed-capacity circular store. Once full, each Append
// overwrites the oldest entry.
// Readers copy the live entries under the lock and scan the copy, so
// producers never wait on a scan.
type Buffer[T any] struct {
	mu    sync.Mutex
	items []T
	head  int // index of the oldest entry
	size  int
}

// New creates a Buffer holding at most capacity entries.
func New[T any](capacity int) (*Buffer[T], error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: buffer capacity must be positive, got %d", ErrInvalidConfiguration, capacity)
	}
	return &Buffer[T]{items: make([]T, capacity)}, nil
}

// Append stores item, evicting the oldest entry when the buffer is full.
func (b *Buffer[T]) Append(item T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := len(b.items)
	if b.size < n {
		b.items[(b.head+b.size)%n] = item
		b.size++
		return
	}
	b.items[b.head] = item
	b.head = (b.head + 1) % n
}

// Size returns the number of live entries.
func (b *Buffer[T]) Size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

// Cap returns the fixed capacity.
func (b *Buffer[T]) Cap() int {
	return len(b.items)
}

// Snapshot returns a copy of the live entries, oldest first.
func (b *Buffer[T]) Snapshot() []T {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]T, b.size)
	n := len(b.items)
	first := copy(out, b.items[b.head:min(b.head+b.size, n)])
	if first < b.size {
		copy(out[first:], b.items[:b.size-first])
	}
	return out
}

// Elements returns a lazy view of the entries, oldest first. Each range
// over the sequence takes its own snapshot when it starts, so the view is
// restartable and entries appended mid-iteration are not observed.
func (b *Buffer[T]) Elements() iter.Seq[T] {
	return func(yield func(T) bool) {
		for _, item := range b.Snapshot() {
			if !yield(item) {
				return
			}
		}
	}
}

// Clear drops every entry.
func (b *Buffer[T]) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()

	var zero T
	for i := range b.items {
		b.items[i] = zero
	}
	b.head = 0
	b.size = 0
}
