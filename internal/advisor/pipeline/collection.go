package pipeline

import (
	"context"
	"time"

	"github.com/kart-io/logger"
	"github.com/oklog/ulid/v2"

	"github.com/kart-io/sentinel-advisor/internal/advisor/biz"
	"github.com/kart-io/sentinel-advisor/internal/advisor/store"
	"github.com/kart-io/sentinel-advisor/internal/model"
	"github.com/kart-io/sentinel-advisor/pkg/llm"
	"github.com/kart-io/sentinel-advisor/pkg/utils/errors"
)

// DefaultCollection 流水线使用的固定集合名。
const DefaultCollection = "clova_rag"

// BuildCollection 为所有文档生成向量并重建集合。
// batchSize <= 0 时一次性提交全部文本。
func BuildCollection(
	ctx context.Context,
	docs []model.Document,
	embedder llm.EmbeddingProvider,
	builder store.IndexBuilder,
	batchSize int,
) (store.VectorIndex, error) {
	start := time.Now()

	chunks := make([]*model.Chunk, len(docs))
	for i, doc := range docs {
		chunks[i] = &model.Chunk{
			ID:      ulid.Make().String(),
			Source:  doc.Source(),
			Content: doc.Content,
		}
	}

	if err := biz.EmbedChunks(ctx, embedder, chunks, batchSize, nil); err != nil {
		return nil, errors.ErrEmbeddingFailed.WithCause(err)
	}

	idx, err := builder.Build(ctx, 0, chunks)
	if err != nil {
		return nil, errors.ErrIndexFailed.WithCause(err)
	}

	logger.Infow("collection built",
		"backend", builder.Name(),
		"rows", idx.Len(),
		"duration", time.Since(start).String(),
	)
	return idx, nil
}
