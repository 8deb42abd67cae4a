package window

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistory_AppendAndEvict(t *testing.T) {
	h := NewHistory(3)
	require.Equal(t, 3, h.Capacity())

	for _, v := range []float64{1, 2, 3} {
		_, evicted := h.TryAppend(v)
		assert.False(t, evicted)
	}
	assert.True(t, h.Full())

	old, evicted := h.TryAppend(4)
	assert.True(t, evicted)
	assert.Equal(t, 1.0, old)
	assert.Equal(t, 3, h.Count())
	assert.Equal(t, []float64{2, 3, 4}, h.Values(nil))

	last, ok := h.Last()
	assert.True(t, ok)
	assert.Equal(t, 4.0, last)
}

func TestHistory_CapacityClamped(t *testing.T) {
	for _, c := range []int{0, -5} {
		h := NewHistory(c)
		assert.Equal(t, 1, h.Capacity())
		h.TryAppend(7)
		h.TryAppend(8)
		assert.Equal(t, []float64{8}, h.Values(nil))
	}
}

func TestHistory_OffsetValue(t *testing.T) {
	h := NewHistory(5)

	// Empty: candidate at every offset.
	assert.Equal(t, 42.0, h.OffsetValue(42, 0))
	assert.Equal(t, 42.0, h.OffsetValue(42, 3))

	for _, v := range []float64{10, 20, 30} {
		h.TryAppend(v)
	}
	assert.Equal(t, 99.0, h.OffsetValue(99, 0))
	assert.Equal(t, 99.0, h.OffsetValue(99, -1))
	assert.Equal(t, 30.0, h.OffsetValue(99, 1))
	assert.Equal(t, 20.0, h.OffsetValue(99, 2))
	assert.Equal(t, 10.0, h.OffsetValue(99, 3))
	// Warm-up: oldest available is substituted.
	assert.Equal(t, 10.0, h.OffsetValue(99, 4))
	assert.Equal(t, 10.0, h.OffsetValue(99, 40))
}

func TestHistory_GetOutOfRange(t *testing.T) {
	h := NewHistory(2)
	h.TryAppend(1)
	assert.Equal(t, 0.0, h.Get(1))
	assert.Equal(t, 0.0, h.Get(-1))
	_, full := h.Oldest()
	assert.False(t, full)
}

func TestHistory_ClearKeepsStorage(t *testing.T) {
	h := NewHistory(4)
	for i := 0; i < 10; i++ {
		h.TryAppend(float64(i))
	}
	h.Clear()
	assert.Equal(t, 0, h.Count())
	assert.Equal(t, 4, h.Capacity())
	_, ok := h.Last()
	assert.False(t, ok)

	h.TryAppend(5)
	assert.Equal(t, []float64{5}, h.Values(nil))
}
