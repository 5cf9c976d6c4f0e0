// Package milvus wraps the Milvus v2 SDK for document collections with the
// layout id / source / text / embedding.
package milvus

import (
	"context"
	"fmt"
	"strconv"

	"github.com/kart-io/logger"
	"github.com/milvus-io/milvus/client/v2/column"
	"github.com/milvus-io/milvus/client/v2/entity"
	"github.com/milvus-io/milvus/client/v2/index"
	"github.com/milvus-io/milvus/client/v2/milvusclient"

	milvusopts "github.com/kart-io/sentinel-advisor/pkg/options/milvus"
)

// Field names of a document collection.
const (
	FieldID        = "id"
	FieldSource    = "source"
	FieldText      = "text"
	FieldEmbedding = "embedding"
)

// Index types supported by CreateCollection.
const (
	IndexHNSW    = "HNSW"
	IndexIVFFlat = "IVF_FLAT"
)

// Client wraps the Milvus SDK client.
type Client struct {
	client *milvusclient.Client
	opts   *milvusopts.Options
}

// New connects to Milvus using opts.Timeout as the dial deadline.
func New(ctx context.Context, opts *milvusopts.Options) (*Client, error) {
	if opts == nil {
		return nil, fmt.Errorf("milvus options is nil")
	}

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	c, err := milvusclient.New(ctx, &milvusclient.ClientConfig{
		Address:  opts.Address,
		Username: opts.Username,
		Password: opts.Password,
		DBName:   opts.Database,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to milvus at %s: %w", opts.Address, err)
	}

	return &Client{client: c, opts: opts}, nil
}

// Close closes the Milvus client connection.
func (c *Client) Close(ctx context.Context) error {
	return c.client.Close(ctx)
}

// CollectionSpec describes a document collection.
type CollectionSpec struct {
	Name            string
	Description     string
	Dimension       int
	SourceMaxLength int
	TextMaxLength   int
	// IndexType is HNSW (default) or IVF_FLAT.
	IndexType string
	// Metric defaults to inner product.
	Metric entity.MetricType
	// HNSW parameters.
	M              int
	EfConstruction int
	// IVF parameter.
	NList int
}

// DefaultCollectionSpec returns the spec for name derived from the client options:
// source VARCHAR(500), text VARCHAR(2000), HNSW over inner product.
func DefaultCollectionSpec(name string, opts *milvusopts.Options) *CollectionSpec {
	return &CollectionSpec{
		Name:            name,
		Description:     "advisor document chunks",
		Dimension:       opts.Dimension,
		SourceMaxLength: 500,
		TextMaxLength:   2000,
		IndexType:       IndexHNSW,
		Metric:          entity.IP,
		M:               opts.HNSWM,
		EfConstruction:  opts.HNSWEfConstruction,
		NList:           128,
	}
}

func (s *CollectionSpec) vectorIndex() (index.Index, error) {
	metric := s.Metric
	if metric == "" {
		metric = entity.IP
	}
	switch s.IndexType {
	case "", IndexHNSW:
		return index.NewHNSWIndex(metric, s.M, s.EfConstruction), nil
	case IndexIVFFlat:
		return index.NewIvfFlatIndex(metric, s.NList), nil
	default:
		return nil, fmt.Errorf("unsupported index type %q", s.IndexType)
	}
}

// HasCollection reports whether the collection exists.
func (c *Client) HasCollection(ctx context.Context, name string) (bool, error) {
	ok, err := c.client.HasCollection(ctx, milvusclient.NewHasCollectionOption(name))
	if err != nil {
		return false, fmt.Errorf("failed to check collection existence: %w", err)
	}
	return ok, nil
}

// DropCollection drops a collection. Dropping a missing collection is not an error.
func (c *Client) DropCollection(ctx context.Context, name string) error {
	ok, err := c.HasCollection(ctx, name)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	if err := c.client.DropCollection(ctx, milvusclient.NewDropCollectionOption(name)); err != nil {
		return fmt.Errorf("failed to drop collection %s: %w", name, err)
	}
	logger.Infow("milvus collection dropped", "collection", name)
	return nil
}

// RecreateCollection drops the collection if present, then creates, indexes and loads it.
func (c *Client) RecreateCollection(ctx context.Context, spec *CollectionSpec) error {
	if err := c.DropCollection(ctx, spec.Name); err != nil {
		return err
	}
	return c.CreateCollection(ctx, spec)
}

// CreateCollection creates the collection, builds the vector index and loads it.
func (c *Client) CreateCollection(ctx context.Context, spec *CollectionSpec) error {
	idx, err := spec.vectorIndex()
	if err != nil {
		return err
	}

	schema := entity.NewSchema().
		WithName(spec.Name).
		WithDescription(spec.Description).
		WithAutoID(true).
		WithField(entity.NewField().
			WithName(FieldID).
			WithDataType(entity.FieldTypeInt64).
			WithIsPrimaryKey(true).
			WithIsAutoID(true)).
		WithField(entity.NewField().
			WithName(FieldSource).
			WithDataType(entity.FieldTypeVarChar).
			WithMaxLength(int64(spec.SourceMaxLength))).
		WithField(entity.NewField().
			WithName(FieldText).
			WithDataType(entity.FieldTypeVarChar).
			WithMaxLength(int64(spec.TextMaxLength))).
		WithField(entity.NewField().
			WithName(FieldEmbedding).
			WithDataType(entity.FieldTypeFloatVector).
			WithDim(int64(spec.Dimension)))

	if err := c.client.CreateCollection(ctx, milvusclient.NewCreateCollectionOption(spec.Name, schema)); err != nil {
		return fmt.Errorf("failed to create collection %s: %w", spec.Name, err)
	}

	idxTask, err := c.client.CreateIndex(ctx, milvusclient.NewCreateIndexOption(spec.Name, FieldEmbedding, idx))
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	if err := idxTask.Await(ctx); err != nil {
		return fmt.Errorf("failed to wait for index creation: %w", err)
	}

	loadTask, err := c.client.LoadCollection(ctx, milvusclient.NewLoadCollectionOption(spec.Name))
	if err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}
	if err := loadTask.Await(ctx); err != nil {
		return fmt.Errorf("failed to wait for collection loading: %w", err)
	}

	logger.Infow("milvus collection created",
		"collection", spec.Name,
		"dimension", spec.Dimension,
		"index", spec.IndexType,
	)
	return nil
}

// Row is a single document chunk to insert.
type Row struct {
	Source    string
	Text      string
	Embedding []float32
}

// Insert writes rows and flushes so that they are searchable immediately.
func (c *Client) Insert(ctx context.Context, collection string, rows []Row) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	dim := len(rows[0].Embedding)
	sources := make([]string, len(rows))
	texts := make([]string, len(rows))
	vectors := make([][]float32, len(rows))
	for i, r := range rows {
		if len(r.Embedding) != dim {
			return 0, fmt.Errorf("row %d has dimension %d, expected %d", i, len(r.Embedding), dim)
		}
		sources[i] = r.Source
		texts[i] = r.Text
		vectors[i] = r.Embedding
	}

	result, err := c.client.Insert(ctx, milvusclient.NewColumnBasedInsertOption(collection,
		column.NewColumnVarChar(FieldSource, sources),
		column.NewColumnVarChar(FieldText, texts),
		column.NewColumnFloatVector(FieldEmbedding, dim, vectors),
	))
	if err != nil {
		return 0, fmt.Errorf("failed to insert into %s: %w", collection, err)
	}

	flushTask, err := c.client.Flush(ctx, milvusclient.NewFlushOption(collection))
	if err != nil {
		return 0, fmt.Errorf("failed to flush collection: %w", err)
	}
	if err := flushTask.Await(ctx); err != nil {
		return 0, fmt.Errorf("failed to wait for flush: %w", err)
	}

	return int(result.InsertCount), nil
}

// Hit is a single search result.
type Hit struct {
	ID     int64
	Score  float32
	Source string
	Text   string
}

// Search returns the topK nearest chunks to vector.
func (c *Client) Search(ctx context.Context, collection string, vector []float32, topK int) ([]Hit, error) {
	opt := milvusclient.NewSearchOption(collection, topK, []entity.Vector{entity.FloatVector(vector)}).
		WithANNSField(FieldEmbedding).
		WithSearchParam("ef", strconv.Itoa(max(c.opts.SearchEf, topK))).
		WithOutputFields(FieldSource, FieldText)

	results, err := c.client.Search(ctx, opt)
	if err != nil {
		return nil, fmt.Errorf("failed to search %s: %w", collection, err)
	}
	if len(results) == 0 {
		return nil, nil
	}

	rs := results[0]
	hits := make([]Hit, rs.ResultCount)
	for i := 0; i < rs.ResultCount; i++ {
		hits[i].Score = rs.Scores[i]
		if ids, ok := rs.IDs.(*column.ColumnInt64); ok {
			hits[i].ID = ids.Data()[i]
		}
	}
	for _, field := range rs.Fields {
		col, ok := field.(*column.ColumnVarChar)
		if !ok {
			continue
		}
		data := col.Data()
		for i := 0; i < rs.ResultCount && i < len(data); i++ {
			switch col.Name() {
			case FieldSource:
				hits[i].Source = data[i]
			case FieldText:
				hits[i].Text = data[i]
			}
		}
	}
	return hits, nil
}

// RowCount returns the number of entities in a collection.
func (c *Client) RowCount(ctx context.Context, collection string) (int64, error) {
	stats, err := c.client.GetCollectionStats(ctx, milvusclient.NewGetCollectionStatsOption(collection))
	if err != nil {
		return 0, fmt.Errorf("failed to get collection stats: %w", err)
	}
	if val, ok := stats["row_count"]; ok {
		return strconv.ParseInt(val, 10, 64)
	}
	return 0, nil
}
