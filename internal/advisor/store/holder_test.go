package store

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type closeTracker struct {
	*MemoryIndex
	closed atomic.Int32
}

func (c *closeTracker) Close(context.Context) error {
	c.closed.Add(1)
	return nil
}

func trackedIndex(t *testing.T, n int) *closeTracker {
	t.Helper()
	idx, err := NewMemoryIndex(testChunks()[:n])
	require.NoError(t, err)
	return &closeTracker{MemoryIndex: idx}
}

func TestIndexHolder_Lifecycle(t *testing.T) {
	h := NewIndexHolder()
	ctx := context.Background()

	_, ok := h.Current()
	assert.False(t, ok)
	assert.False(t, h.Stats().Ready)
	assert.Equal(t, uint64(1), h.NextGeneration())

	first := trackedIndex(t, 3)
	assert.Equal(t, uint64(1), h.Replace(ctx, first))

	handle, ok := h.Current()
	require.True(t, ok)
	assert.Equal(t, uint64(1), handle.Generation)
	assert.Equal(t, 3, handle.Index.Len())
	handle.Release()

	second := trackedIndex(t, 1)
	assert.Equal(t, uint64(2), h.Replace(ctx, second))
	assert.Equal(t, int32(1), first.closed.Load(), "unused index is closed on replace")

	stats := h.Stats()
	assert.True(t, stats.Ready)
	assert.Equal(t, uint64(2), stats.Generation)
	assert.Equal(t, 1, stats.Chunks)
	assert.False(t, stats.UpdatedAt.IsZero())

	require.NoError(t, h.Close(ctx))
	assert.Equal(t, int32(1), second.closed.Load())
	_, ok = h.Current()
	assert.False(t, ok)
}

func TestIndexHolder_CapturedHandleOutlivesReplace(t *testing.T) {
	h := NewIndexHolder()
	ctx := context.Background()

	first := trackedIndex(t, 3)
	h.Replace(ctx, first)

	captured, ok := h.Current()
	require.True(t, ok)

	h.Replace(ctx, trackedIndex(t, 1))
	assert.Zero(t, first.closed.Load(), "index must stay open while a handle is held")

	results, err := captured.Index.Search(ctx, []float32{1, 0, 0}, 3)
	require.NoError(t, err)
	assert.Len(t, results, 3)
	assert.Equal(t, uint64(1), captured.Generation)

	captured.Release()
	assert.Equal(t, int32(1), first.closed.Load())

	// 重复释放不会再次关闭
	captured.Release()
	assert.Equal(t, int32(1), first.closed.Load())
}

func TestIndexHolder_CloseWaitsForReaders(t *testing.T) {
	h := NewIndexHolder()
	ctx := context.Background()

	idx := trackedIndex(t, 2)
	h.Replace(ctx, idx)
	handle, ok := h.Current()
	require.True(t, ok)

	require.NoError(t, h.Close(ctx))
	assert.Zero(t, idx.closed.Load())
	_, ok = h.Current()
	assert.False(t, ok)

	handle.Release()
	assert.Equal(t, int32(1), idx.closed.Load())
}

func TestIndexHolder_ConcurrentAccess(t *testing.T) {
	h := NewIndexHolder()
	ctx := context.Background()

	indexes := make([]*closeTracker, 8)
	for i := range indexes {
		indexes[i] = trackedIndex(t, 3)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(idx *closeTracker) {
			defer wg.Done()
			h.Replace(ctx, idx)
		}(indexes[i])
		go func() {
			defer wg.Done()
			if handle, ok := h.Current(); ok {
				defer handle.Release()
				_, err := handle.Index.Search(ctx, []float32{1, 0, 0}, 1)
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, uint64(8), h.Stats().Generation)

	require.NoError(t, h.Close(ctx))
	for _, idx := range indexes {
		assert.Equal(t, int32(1), idx.closed.Load())
	}
}
