// Package history keeps a bounded window of recent readings.
package history

// Ring is a fixed-capacity buffer that evicts its oldest entry on overflow.
// It is owned by a single goroutine; readers get copies from Values.
type Ring[T any] struct {
	buf   []T
	start int
	size  int
}

// New returns an empty ring holding at most n entries (n < 1 is treated as 1).
func New[T any](n int) *Ring[T] {
	if n < 1 {
		n = 1
	}
	return &Ring[T]{buf: make([]T, n)}
}

// Append adds v, dropping the oldest entry when the ring is full.
func (r *Ring[T]) Append(v T) {
	if r.size < len(r.buf) {
		r.buf[(r.start+r.size)%len(r.buf)] = v
		r.size++
		return
	}
	r.buf[r.start] = v
	r.start = (r.start + 1) % len(r.buf)
}

// Values returns the entries oldest first in a freshly allocated slice.
func (r *Ring[T]) Values() []T {
	out := make([]T, r.size)
	for i := 0; i < r.size; i++ {
		out[i] = r.buf[(r.start+i)%len(r.buf)]
	}
	return out
}

// Len is the number of retained entries.
func (r *Ring[T]) Len() int { return r.size }

// Cap is the maximum number of retained entries.
func (r *Ring[T]) Cap() int { return len(r.buf) }

// Resize changes the capacity, keeping the newest entries that still fit.
func (r *Ring[T]) Resize(n int) {
	if n < 1 {
		n = 1
	}
	if n == len(r.buf) {
		return
	}
	values := r.Values()
	if len(values) > n {
		values = values[len(values)-n:]
	}
	r.buf = make([]T, n)
	copy(r.buf, values)
	r.start = 0
	r.size = len(values)
}
