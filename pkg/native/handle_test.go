package native_test

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/devicekit/pkg/native"
)

type resource struct {
	name  string
	freed atomic.Int32
}

func TestHandle_Get(t *testing.T) {
	t.Parallel()

	r := &resource{name: "db"}
	h := native.New(r, func(r *resource) error {
		r.freed.Add(1)
		return nil
	})

	got, err := h.Get()
	require.NoError(t, err)
	assert.Same(t, r, got)
	assert.False(t, h.Released())

	require.NoError(t, h.Release())
	assert.True(t, h.Released())

	got, err = h.Get()
	assert.ErrorIs(t, err, native.ErrReleased)
	assert.Nil(t, got)
}

func TestHandle_ReleaseExactlyOnce(t *testing.T) {
	t.Parallel()

	t.Run("sequential calls", func(t *testing.T) {
		t.Parallel()

		r := &resource{}
		h := native.New(r, func(r *resource) error {
			r.freed.Add(1)
			return nil
		})

		for range 5 {
			require.NoError(t, h.Release())
		}
		assert.Equal(t, int32(1), r.freed.Load())
	})

	t.Run("concurrent calls", func(t *testing.T) {
		t.Parallel()

		r := &resource{}
		h := native.New(r, func(r *resource) error {
			r.freed.Add(1)
			return nil
		})

		var wg sync.WaitGroup
		for range 64 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_ = h.Release()
			}()
		}
		wg.Wait()

		assert.Equal(t, int32(1), r.freed.Load())
	})

	t.Run("first error is sticky", func(t *testing.T) {
		t.Parallel()

		boom := errors.New("boom")
		calls := 0
		h := native.New("ctx", func(string) error {
			calls++
			return boom
		})

		assert.ErrorIs(t, h.Release(), boom)
		assert.ErrorIs(t, h.Release(), boom)
		assert.Equal(t, 1, calls)
	})

	t.Run("released on panic path", func(t *testing.T) {
		t.Parallel()

		r := &resource{}
		h := native.New(r, func(r *resource) error {
			r.freed.Add(1)
			return nil
		})

		func() {
			defer func() { _ = recover() }()
			defer func() { _ = h.Release() }()
			panic("lookup blew up")
		}()

		assert.Equal(t, int32(1), r.freed.Load())
	})
}

func TestHandle_NilSafety(t *testing.T) {
	t.Parallel()

	var h *native.Handle[int]
	_, err := h.Get()
	assert.ErrorIs(t, err, native.ErrNilHandle)
	assert.NoError(t, h.Release())
	assert.True(t, h.Released())

	noop := native.New(42, nil)
	assert.NoError(t, noop.Release())
	assert.True(t, noop.Released())
}
