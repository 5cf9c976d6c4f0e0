package store

import (
	"context"
	"fmt"
	"sort"

	"github.com/kart-io/sentinel-advisor/internal/model"
	"github.com/kart-io/sentinel-advisor/internal/pkg/rag/textutil"
)

// MemoryIndex 进程内的余弦相似度索引，适合小规模语料。
type MemoryIndex struct {
	chunks []*model.Chunk
	dim    int
}

// NewMemoryIndex 使用给定文档块创建内存索引，所有向量维度必须一致。
func NewMemoryIndex(chunks []*model.Chunk) (*MemoryIndex, error) {
	idx := &MemoryIndex{chunks: make([]*model.Chunk, 0, len(chunks))}
	for i, c := range chunks {
		if c == nil || len(c.Embedding) == 0 {
			return nil, fmt.Errorf("chunk %d has no embedding", i)
		}
		if idx.dim == 0 {
			idx.dim = len(c.Embedding)
		} else if len(c.Embedding) != idx.dim {
			return nil, fmt.Errorf("chunk %d: %w: got %d, expected %d", i, ErrDimensionMismatch, len(c.Embedding), idx.dim)
		}
		idx.chunks = append(idx.chunks, c)
	}
	return idx, nil
}

// Search 线性扫描并返回余弦相似度最高的 topK 个文档块。
func (m *MemoryIndex) Search(ctx context.Context, vector []float32, topK int) ([]*SearchResult, error) {
	if topK <= 0 || len(m.chunks) == 0 {
		return nil, nil
	}
	if len(vector) != m.dim {
		return nil, fmt.Errorf("%w: got %d, expected %d", ErrDimensionMismatch, len(vector), m.dim)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	results := make([]*SearchResult, len(m.chunks))
	for i, c := range m.chunks {
		results[i] = &SearchResult{
			ChunkID: c.ID,
			Source:  c.Source,
			Content: c.Content,
			Score:   float32(textutil.CosineSimilarity(vector, c.Embedding)),
		}
	}
	// 稳定排序保证同分时按插入顺序返回
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// Len 返回文档块数量。
func (m *MemoryIndex) Len() int { return len(m.chunks) }

// Dimension 返回向量维度。
func (m *MemoryIndex) Dimension() int { return m.dim }

// Close 内存索引无需释放资源。
func (m *MemoryIndex) Close(context.Context) error { return nil }

// MemoryBuilder 构建 MemoryIndex。
type MemoryBuilder struct{}

// NewMemoryBuilder 创建内存索引构建器。
func NewMemoryBuilder() *MemoryBuilder { return &MemoryBuilder{} }

// Name 返回后端名称。
func (*MemoryBuilder) Name() string { return "memory" }

// Build 构建内存索引，generation 对内存后端无意义。
func (*MemoryBuilder) Build(_ context.Context, _ uint64, chunks []*model.Chunk) (VectorIndex, error) {
	return NewMemoryIndex(chunks)
}
