package store

import (
	"context"
	"fmt"
	"strconv"

	"github.com/kart-io/logger"

	"github.com/kart-io/sentinel-advisor/internal/model"
	"github.com/kart-io/sentinel-advisor/internal/pkg/rag/textutil"
	"github.com/kart-io/sentinel-advisor/pkg/component/milvus"
)

// MilvusBackend 是 MilvusIndex 依赖的最小客户端接口，由 milvus.Client 实现。
type MilvusBackend interface {
	RecreateCollection(ctx context.Context, spec *milvus.CollectionSpec) error
	DropCollection(ctx context.Context, name string) error
	Insert(ctx context.Context, collection string, rows []milvus.Row) (int, error)
	Search(ctx context.Context, collection string, vector []float32, topK int) ([]milvus.Hit, error)
	RowCount(ctx context.Context, collection string) (int64, error)
}

var _ MilvusBackend = (*milvus.Client)(nil)

// MilvusBuilderConfig Milvus 索引构建配置。
type MilvusBuilderConfig struct {
	// Spec 集合模板，Name 与 Dimension 在构建时填充。
	Spec milvus.CollectionSpec
	// Prefix 集合名前缀，每一代索引使用 <Prefix>_<generation>。
	Prefix string
	// FixedName 非空时始终使用该集合名（重建前先删除）。
	FixedName string
	// InsertBatchSize 单次插入的行数。
	InsertBatchSize int
}

// maxVarCharLength 是 Milvus VARCHAR 字段允许的最大字节数。
const maxVarCharLength = 65535

// TextMaxLengthFor 返回容纳 chunkSize 个字符（UTF-8 最多 4 字节）所需的 text 字段长度。
func TextMaxLengthFor(chunkSize int) int {
	if chunkSize <= 0 {
		return 0
	}
	return min(chunkSize*4, maxVarCharLength)
}

// MilvusBuilder 在 Milvus 中为每次导入创建新集合。
type MilvusBuilder struct {
	backend MilvusBackend
	config  MilvusBuilderConfig
}

// NewMilvusBuilder 创建 Milvus 索引构建器。
func NewMilvusBuilder(backend MilvusBackend, cfg MilvusBuilderConfig) *MilvusBuilder {
	if cfg.Prefix == "" {
		cfg.Prefix = "advisor"
	}
	if cfg.InsertBatchSize <= 0 {
		cfg.InsertBatchSize = 256
	}
	if cfg.Spec.SourceMaxLength <= 0 {
		cfg.Spec.SourceMaxLength = 500
	}
	if cfg.Spec.TextMaxLength <= 0 {
		cfg.Spec.TextMaxLength = 2000
	}
	return &MilvusBuilder{backend: backend, config: cfg}
}

// Name 返回后端名称。
func (b *MilvusBuilder) Name() string { return "milvus" }

// CollectionName 返回第 generation 代索引的集合名。
func (b *MilvusBuilder) CollectionName(generation uint64) string {
	if b.config.FixedName != "" {
		return b.config.FixedName
	}
	return b.config.Prefix + "_" + strconv.FormatUint(generation, 10)
}

// Build 重建集合并写入全部文档块。
func (b *MilvusBuilder) Build(ctx context.Context, generation uint64, chunks []*model.Chunk) (VectorIndex, error) {
	if len(chunks) == 0 {
		return nil, fmt.Errorf("no chunks to index")
	}
	dim := len(chunks[0].Embedding)
	if dim == 0 {
		return nil, fmt.Errorf("chunk 0 has no embedding")
	}

	spec := b.config.Spec
	spec.Name = b.CollectionName(generation)
	spec.Dimension = dim
	if err := b.backend.RecreateCollection(ctx, &spec); err != nil {
		return nil, err
	}

	total := 0
	for start := 0; start < len(chunks); start += b.config.InsertBatchSize {
		end := min(start+b.config.InsertBatchSize, len(chunks))
		rows := make([]milvus.Row, 0, end-start)
		for i, c := range chunks[start:end] {
			if len(c.Embedding) != dim {
				_ = b.backend.DropCollection(ctx, spec.Name)
				return nil, fmt.Errorf("chunk %d: %w: got %d, expected %d", start+i, ErrDimensionMismatch, len(c.Embedding), dim)
			}
			// 正文不截断，超长时整次构建失败
			if len(c.Content) > spec.TextMaxLength {
				_ = b.backend.DropCollection(ctx, spec.Name)
				return nil, fmt.Errorf("chunk %d: %w: %d bytes, text field holds %d",
					start+i, ErrChunkTooLong, len(c.Content), spec.TextMaxLength)
			}
			rows = append(rows, milvus.Row{
				Source:    textutil.TruncateBytes(c.Source, spec.SourceMaxLength),
				Text:      c.Content,
				Embedding: c.Embedding,
			})
		}
		n, err := b.backend.Insert(ctx, spec.Name, rows)
		if err != nil {
			_ = b.backend.DropCollection(ctx, spec.Name)
			return nil, err
		}
		total += n
	}

	logger.Infow("milvus index built",
		"collection", spec.Name,
		"generation", generation,
		"chunks", total,
	)
	return &MilvusIndex{
		backend:    b.backend,
		collection: spec.Name,
		dim:        dim,
		count:      total,
		owned:      b.config.FixedName == "",
	}, nil
}

// MilvusIndex 基于单个 Milvus 集合的只读索引。
type MilvusIndex struct {
	backend    MilvusBackend
	collection string
	dim        int
	count      int
	owned      bool
}

// Collection 返回集合名。
func (m *MilvusIndex) Collection() string { return m.collection }

// Search 在集合中执行近似最近邻检索。
func (m *MilvusIndex) Search(ctx context.Context, vector []float32, topK int) ([]*SearchResult, error) {
	if topK <= 0 {
		return nil, nil
	}
	if m.dim > 0 && len(vector) != m.dim {
		return nil, fmt.Errorf("%w: got %d, expected %d", ErrDimensionMismatch, len(vector), m.dim)
	}
	hits, err := m.backend.Search(ctx, m.collection, vector, topK)
	if err != nil {
		return nil, err
	}
	results := make([]*SearchResult, 0, len(hits))
	for _, h := range hits {
		results = append(results, &SearchResult{
			ChunkID: strconv.FormatInt(h.ID, 10),
			Source:  h.Source,
			Content: h.Text,
			Score:   h.Score,
		})
	}
	return results, nil
}

// Len 返回写入的文档块数量。
func (m *MilvusIndex) Len() int { return m.count }

// StoredRows 查询集合统计中的行数，刚写入的数据可能尚未计入。
func (m *MilvusIndex) StoredRows(ctx context.Context) (int64, error) {
	return m.backend.RowCount(ctx, m.collection)
}

var _ RowCounter = (*MilvusIndex)(nil)

// Close 删除本索引创建的集合。
func (m *MilvusIndex) Close(ctx context.Context) error {
	if !m.owned {
		return nil
	}
	return m.backend.DropCollection(ctx, m.collection)
}
