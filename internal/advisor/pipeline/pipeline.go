package pipeline

import (
	"context"

	"github.com/kart-io/logger"

	"github.com/kart-io/sentinel-advisor/internal/advisor/loader"
	"github.com/kart-io/sentinel-advisor/internal/advisor/store"
	"github.com/kart-io/sentinel-advisor/pkg/llm"
)

// Config 流水线参数。
type Config struct {
	URLs           []string
	PDFPaths       []string
	OutputDir      string
	EmbedBatchSize int
	// ReuseCache 跳过抓取，直接使用 OutputDir 中已缓存的文件。
	ReuseCache bool
}

// Deps 流水线依赖的外部能力。
type Deps struct {
	Fetcher   loader.Fetcher
	Segmenter llm.SegmentationProvider
	Embedder  llm.EmbeddingProvider
	Builder   store.IndexBuilder
}

// Prepare 依次执行抓取、加载、分段与建库，返回可检索的索引。
// cfg.ReuseCache 为 true 时以缓存目录代替抓取。
func Prepare(ctx context.Context, cfg Config, deps Deps) (store.VectorIndex, error) {
	var (
		files     []string
		sourceMap map[string]string
		err       error
	)
	if cfg.ReuseCache {
		files, sourceMap, err = LoadCachedSources(cfg.OutputDir)
	} else {
		files, sourceMap, err = FetchSources(ctx, deps.Fetcher, cfg.URLs, cfg.PDFPaths, cfg.OutputDir)
	}
	if err != nil {
		return nil, err
	}

	docs, err := LoadDocuments(ctx, files, sourceMap)
	if err != nil {
		return nil, err
	}

	segments, err := SegmentDocuments(ctx, docs, deps.Segmenter)
	if err != nil {
		return nil, err
	}

	idx, err := BuildCollection(ctx, segments, deps.Embedder, deps.Builder, cfg.EmbedBatchSize)
	if err != nil {
		return nil, err
	}

	logger.Infow("pipeline prepared",
		"files", len(files),
		"documents", len(docs),
		"segments", len(segments),
	)
	return idx, nil
}
