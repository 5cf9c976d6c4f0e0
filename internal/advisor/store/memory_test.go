package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/sentinel-advisor/internal/model"
)

func testChunks() []*model.Chunk {
	return []*model.Chunk{
		{ID: "a", Source: "a.pdf", Content: "bonds", Embedding: []float32{1, 0, 0}},
		{ID: "b", Source: "b.pdf", Content: "stocks", Embedding: []float32{0, 1, 0}},
		{ID: "c", Source: "c.pdf", Content: "mixed", Embedding: []float32{0.7, 0.7, 0}},
	}
}

func TestMemoryIndex_Search(t *testing.T) {
	idx, err := NewMemoryIndex(testChunks())
	require.NoError(t, err)
	assert.Equal(t, 3, idx.Len())
	assert.Equal(t, 3, idx.Dimension())

	results, err := idx.Search(context.Background(), []float32{1, 0.1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].ChunkID)
	assert.Equal(t, "c", results[1].ChunkID)
	assert.GreaterOrEqual(t, results[0].Score, results[1].Score)

	all, err := idx.Search(context.Background(), []float32{0, 1, 0}, 10)
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Equal(t, "stocks", all[0].Content)
}

func TestMemoryIndex_Errors(t *testing.T) {
	_, err := NewMemoryIndex([]*model.Chunk{{ID: "x"}})
	assert.Error(t, err)

	_, err = NewMemoryIndex([]*model.Chunk{
		{ID: "a", Embedding: []float32{1, 0}},
		{ID: "b", Embedding: []float32{1, 0, 0}},
	})
	assert.True(t, errors.Is(err, ErrDimensionMismatch))

	idx, err := NewMemoryIndex(testChunks())
	require.NoError(t, err)
	_, err = idx.Search(context.Background(), []float32{1, 0}, 1)
	assert.True(t, errors.Is(err, ErrDimensionMismatch))

	res, err := idx.Search(context.Background(), []float32{1, 0, 0}, 0)
	assert.NoError(t, err)
	assert.Nil(t, res)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = idx.Search(ctx, []float32{1, 0, 0}, 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMemoryBuilder(t *testing.T) {
	b := NewMemoryBuilder()
	assert.Equal(t, "memory", b.Name())

	idx, err := b.Build(context.Background(), 1, testChunks())
	require.NoError(t, err)
	assert.Equal(t, 3, idx.Len())
	assert.NoError(t, idx.Close(context.Background()))
}
