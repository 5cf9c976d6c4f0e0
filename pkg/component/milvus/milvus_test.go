package milvus

import (
	"context"
	"testing"
	"time"

	"github.com/milvus-io/milvus/client/v2/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	milvusopts "github.com/kart-io/sentinel-advisor/pkg/options/milvus"
)

func TestDefaultCollectionSpec(t *testing.T) {
	spec := DefaultCollectionSpec("clova_rag", milvusopts.NewOptions())
	assert.Equal(t, "clova_rag", spec.Name)
	assert.Equal(t, 1024, spec.Dimension)
	assert.Equal(t, 500, spec.SourceMaxLength)
	assert.Equal(t, 2000, spec.TextMaxLength)
	assert.Equal(t, IndexHNSW, spec.IndexType)
	assert.Equal(t, entity.IP, spec.Metric)
	assert.Equal(t, 8, spec.M)
	assert.Equal(t, 200, spec.EfConstruction)

	idx, err := spec.vectorIndex()
	require.NoError(t, err)
	assert.Equal(t, "HNSW", string(idx.IndexType()))
	assert.Equal(t, "8", idx.Params()["M"])
	assert.Equal(t, "200", idx.Params()["efConstruction"])
}

func TestVectorIndexTypes(t *testing.T) {
	spec := DefaultCollectionSpec("c", milvusopts.NewOptions())
	spec.IndexType = IndexIVFFlat
	idx, err := spec.vectorIndex()
	require.NoError(t, err)
	assert.Equal(t, "IVF_FLAT", string(idx.IndexType()))

	spec.IndexType = "DISKANN"
	_, err = spec.vectorIndex()
	require.Error(t, err)
}

func TestNew_NilOptions(t *testing.T) {
	_, err := New(context.Background(), nil)
	require.Error(t, err)
}

// Runs against a local Milvus; skipped when none is reachable.
func TestCollectionLifecycle(t *testing.T) {
	opts := milvusopts.NewOptions()
	opts.Timeout = 2 * time.Second
	opts.Dimension = 4

	ctx := context.Background()
	c, err := New(ctx, opts)
	if err != nil {
		t.Skipf("milvus not available: %v", err)
	}
	defer func() { _ = c.Close(ctx) }()

	spec := DefaultCollectionSpec("advisor_component_test", opts)
	require.NoError(t, c.RecreateCollection(ctx, spec))
	defer func() { _ = c.DropCollection(ctx, spec.Name) }()

	n, err := c.Insert(ctx, spec.Name, []Row{
		{Source: "a", Text: "bonds", Embedding: []float32{1, 0, 0, 0}},
		{Source: "b", Text: "stocks", Embedding: []float32{0, 1, 0, 0}},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	hits, err := c.Search(ctx, spec.Name, []float32{0, 1, 0, 0}, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "stocks", hits[0].Text)
	assert.Equal(t, "b", hits[0].Source)

	ok, err := c.HasCollection(ctx, spec.Name)
	require.NoError(t, err)
	assert.True(t, ok)
}
