package store

import (
	"context"
	"errors"

	"github.com/kart-io/sentinel-advisor/internal/model"
)

// ErrDimensionMismatch 查询向量与索引维度不一致。
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// ErrChunkTooLong 文档块超出后端文本字段长度。
var ErrChunkTooLong = errors.New("chunk exceeds text field length")

// SearchResult 表示检索结果。
type SearchResult struct {
	// ChunkID 文档块 ID。
	ChunkID string
	// Source 原始来源（文件名或 URL）。
	Source string
	// Content 文档块内容。
	Content string
	// Score 相似度分数，越大越相似。
	Score float32
}

// VectorIndex 只读向量索引。
type VectorIndex interface {
	// Search 返回与 vector 最相近的 topK 个文档块，按分数降序排列。
	Search(ctx context.Context, vector []float32, topK int) ([]*SearchResult, error)

	// Len 返回索引中的文档块数量。
	Len() int

	// Close 释放索引占用的资源。
	Close(ctx context.Context) error
}

// RowCounter 由能够查询后端实际行数的索引实现。
type RowCounter interface {
	StoredRows(ctx context.Context) (int64, error)
}

// IndexBuilder 根据带向量的文档块构建新索引。
type IndexBuilder interface {
	// Build 构建第 generation 代索引。
	Build(ctx context.Context, generation uint64, chunks []*model.Chunk) (VectorIndex, error)

	// Name 返回后端名称。
	Name() string
}
