package freelist_test

import (
	"testing"

	"github.com/djdv/go-rescache/freelist"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type event struct {
	name    string
	payload []int
}

func newEvent() *event { return &event{payload: make([]int, 0, 8)} }

func resetEvent(e *event) {
	e.name = ""
	e.payload = e.payload[:0]
}

func TestList(t *testing.T) {
	t.Parallel()
	t.Run("recycles", func(t *testing.T) {
		list := freelist.New(newEvent, freelist.WithReset(resetEvent))
		first := list.Get()
		first.name = "collision"
		first.payload = append(first.payload, 1, 2)
		require.True(t, list.Put(first))
		assert.Equal(t, 1, list.Len())

		second := list.Get()
		require.Same(t, first, second)
		assert.Empty(t, second.name, "recycled object was not reset")
		assert.Empty(t, second.payload)
		assert.Equal(t, 1, list.Allocated())
		assert.Zero(t, list.Len())
	})
	t.Run("allocates when empty", func(t *testing.T) {
		list := freelist.New(newEvent)
		a, b := list.Get(), list.Get()
		assert.NotSame(t, a, b)
		assert.Equal(t, 2, list.Allocated())
	})
	t.Run("bounded", func(t *testing.T) {
		list := freelist.New(newEvent, freelist.WithCapacity[*event](1))
		a, b := list.Get(), list.Get()
		assert.True(t, list.Put(a))
		assert.False(t, list.Put(b), "full list accepted an object")
		assert.Equal(t, 1, list.Len())
	})
	t.Run("zero capacity retains nothing", func(t *testing.T) {
		list := freelist.New(newEvent, freelist.WithCapacity[*event](0))
		assert.False(t, list.Put(list.Get()))
		assert.Zero(t, list.Len())
	})
	t.Run("last in first out", func(t *testing.T) {
		list := freelist.New(newEvent)
		a, b := list.Get(), list.Get()
		list.Put(a)
		list.Put(b)
		assert.Same(t, b, list.Get())
		assert.Same(t, a, list.Get())
	})
}
