package domain

// Ring keeps the most recent values up to a fixed capacity. Not safe for concurrent use.
type Ring[T any] struct {
	buf  []T
	next int
	full bool
}

// NewRing creates a ring holding at most size values. size < 1 is treated as 1.
func NewRing[T any](size int) *Ring[T] {
	if size < 1 {
		size = 1
	}
	return &Ring[T]{buf: make([]T, size)}
}

// Push adds v, evicting the oldest value when full.
func (r *Ring[T]) Push(v T) {
	r.buf[r.next] = v
	r.next = (r.next + 1) % len(r.buf)
	if r.next == 0 {
		r.full = true
	}
}

// Len returns the number of stored values.
func (r *Ring[T]) Len() int {
	if r.full {
		return len(r.buf)
	}
	return r.next
}

// Newest returns up to limit values, newest first. limit <= 0 returns all.
func (r *Ring[T]) Newest(limit int) []T {
	n := r.Len()
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]T, 0, n)
	for i := 1; i <= n; i++ {
		idx := (r.next - i + len(r.buf)) % len(r.buf)
		out = append(out, r.buf[idx])
	}
	return out
}
