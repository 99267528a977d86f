package heap

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractOrder(t *testing.T) {
	h := New[int](8)
	h.Insert(3, 30, 0)
	h.Insert(1, 10, 0)
	h.Insert(7, 70, 0)
	h.Insert(2, 20, 0)

	var order []uint32
	for h.Len() > 0 {
		node, _, _, ok := h.ExtractMin()
		require.True(t, ok)
		order = append(order, node)
	}
	assert.Equal(t, []uint32{1, 2, 3, 7}, order)

	_, _, _, ok := h.ExtractMin()
	assert.False(t, ok)
}

func TestDecreaseKey(t *testing.T) {
	h := New[uint32](4)
	h.Insert(0, 100, 9)
	h.Insert(1, 50, 9)
	h.Insert(2, 75, 9)

	h.DecreaseKey(0, 10, 5)

	key, ok := h.Key(0)
	require.True(t, ok)
	assert.Equal(t, uint32(10), key)
	assert.Equal(t, uint32(10), h.MinKey())

	node, key, data, ok := h.ExtractMin()
	require.True(t, ok)
	assert.Equal(t, uint32(0), node)
	assert.Equal(t, uint32(10), key)
	assert.Equal(t, uint32(5), data)
}

func TestInsertedRemovedLifecycle(t *testing.T) {
	h := New[struct{}](4)
	assert.False(t, h.Inserted(2))

	h.Insert(2, 5, struct{}{})
	assert.True(t, h.Inserted(2))
	assert.False(t, h.Removed(2))

	h.ExtractMin()
	assert.True(t, h.Inserted(2))
	assert.True(t, h.Removed(2))

	// Key survives extraction: settled distances stay addressable.
	key, ok := h.Key(2)
	require.True(t, ok)
	assert.Equal(t, uint32(5), key)
}

func TestClearIsGenerationBump(t *testing.T) {
	h := New[int](4)
	h.Insert(0, 1, 0)
	h.Insert(1, 2, 0)
	h.Clear()

	assert.Equal(t, 0, h.Len())
	assert.False(t, h.Inserted(0))
	assert.False(t, h.Inserted(1))
	_, ok := h.Key(0)
	assert.False(t, ok)

	// Reuse after clear behaves like a fresh heap.
	h.Insert(1, 7, 42)
	node, key, data, ok := h.ExtractMin()
	require.True(t, ok)
	assert.Equal(t, uint32(1), node)
	assert.Equal(t, uint32(7), key)
	assert.Equal(t, 42, data)
}

func TestRandomizedAgainstSort(t *testing.T) {
	const n = 500
	rng := rand.New(rand.NewSource(42))

	h := New[struct{}](n)
	keys := make([]uint32, n)
	for i := uint32(0); i < n; i++ {
		keys[i] = uint32(rng.Intn(100000))
		h.Insert(i, keys[i], struct{}{})
	}

	sorted := append([]uint32(nil), keys...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	for i := 0; i < n; i++ {
		_, key, _, ok := h.ExtractMin()
		require.True(t, ok)
		assert.Equal(t, sorted[i], key)
	}
}
