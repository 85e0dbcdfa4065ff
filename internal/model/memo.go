package model

import "sync"

// Memo caches a lazily computed value until it is explicitly invalidated.
// The zero value is uncomputed and ready for use. A Memo must not be copied
// after first use.
type Memo[T any] struct {
	mu       sync.Mutex
	value    T
	computed bool
}

// Get returns the cached value, calling compute to fill it when the memo is
// uncomputed. A failed compute leaves the memo uncomputed.
func (m *Memo[T]) Get(compute func() (T, error)) (T, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.computed {
		return m.value, nil
	}
	v, err := compute()
	if err != nil {
		var zero T
		return zero, err
	}
	m.value = v
	m.computed = true
	return v, nil
}

// Peek returns the cached value and whether one is present, without
// computing.
func (m *Memo[T]) Peek() (T, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.value, m.computed
}

// Set stores v as the computed value.
func (m *Memo[T]) Set(v T) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.value = v
	m.computed = true
}

// Invalidate marks the memo uncomputed so the next Get recomputes.
func (m *Memo[T]) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	var zero T
	m.value = zero
	m.computed = false
}
