package native

import (
	"sync"
	"sync/atomic"
)

// Handle owns one opaque native value and guarantees its release function
// runs exactly once, no matter how many times or from how many goroutines
// Release is called.
type Handle[T any] struct {
	value    T
	release  func(T) error
	once     sync.Once
	released atomic.Bool
	err      error
}

// New wraps value. A nil release function is treated as a no-op.
func New[T any](value T, release func(T) error) *Handle[T] {
	return &Handle[T]{value: value, release: release}
}

// Get returns the wrapped value, or ErrReleased once the handle is released.
// A nil handle reports ErrNilHandle.
func (h *Handle[T]) Get() (T, error) {
	var zero T
	if h == nil {
		return zero, ErrNilHandle
	}
	if h.released.Load() {
		return zero, ErrReleased
	}
	return h.value, nil
}

// Release frees the native value. Only the first call invokes the release
// function; every call returns that first call's error.
func (h *Handle[T]) Release() error {
	if h == nil {
		return nil
	}
	h.once.Do(func() {
		h.released.Store(true)
		if h.release != nil {
			h.err = h.release(h.value)
		}
	})
	return h.err
}

// Released reports whether Release has been called.
func (h *Handle[T]) Released() bool {
	if h == nil {
		return true
	}
	return h.released.Load()
}
