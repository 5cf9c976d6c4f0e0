package biz

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/kart-io/logger"
	"github.com/oklog/ulid/v2"

	"github.com/kart-io/sentinel-advisor/internal/advisor/loader"
	"github.com/kart-io/sentinel-advisor/internal/advisor/metrics"
	"github.com/kart-io/sentinel-advisor/internal/advisor/store"
	"github.com/kart-io/sentinel-advisor/internal/model"
	"github.com/kart-io/sentinel-advisor/internal/pkg/rag/textutil"
	log "github.com/kart-io/sentinel-advisor/pkg/infra/logger"
	"github.com/kart-io/sentinel-advisor/pkg/infra/pool"
	"github.com/kart-io/sentinel-advisor/pkg/llm"
	"github.com/kart-io/sentinel-advisor/pkg/utils/errors"
	"github.com/kart-io/sentinel-advisor/pkg/utils/validator"
)

// StatusUpdated 导入成功后返回的状态。
const StatusUpdated = "vectorstore updated"

// PDFUpload 上传的 PDF 文件。
type PDFUpload struct {
	// Filename 原始文件名，作为文档来源。
	Filename string
	// Open 打开文件内容。
	Open func() (io.ReadCloser, error)
}

// IngestRequest 导入请求。
type IngestRequest struct {
	PDFs []PDFUpload
	URLs []string
}

// IngestResult 导入结果。
type IngestResult struct {
	Status       string `json:"status"`
	TotalSources int    `json:"total_sources"`
	DocsCount    int    `json:"docs_count"`
	ChunksCount  int    `json:"chunks_count"`
	Generation   uint64 `json:"-"`
}

// URLBatchLoader 批量加载网页，结果顺序与输入一致。
type URLBatchLoader interface {
	LoadAll(ctx context.Context, urls []string) ([]model.Document, error)
}

var _ URLBatchLoader = (*loader.URLLoader)(nil)

// IngestConfig 导入配置。
type IngestConfig struct {
	// ChunkSize 文本块大小（字符）。
	ChunkSize int
	// ChunkOverlap 块重叠大小（字符）。
	ChunkOverlap int
	// EmbedBatchSize 单次 embedding 请求的文本数。
	EmbedBatchSize int
	// TempDir 上传文件的临时目录，为空时使用系统默认目录。
	TempDir string
}

// Ingestor 负责资料导入与索引替换。
type Ingestor struct {
	pdf      loader.DocumentLoader
	urls     URLBatchLoader
	embedder llm.EmbeddingProvider
	builder  store.IndexBuilder
	holder   *store.IndexHolder
	splitter *textutil.Splitter
	config   *IngestConfig
	metrics  *metrics.AdvisorMetrics

	// embedPool 为空时按顺序提交 embedding 批次。
	embedPool *pool.Pool

	// buildMu 串行化索引构建与替换，保证代数与集合名一一对应。
	buildMu sync.Mutex
}

// NewIngestor 创建导入器。
func NewIngestor(
	pdf loader.DocumentLoader,
	urls URLBatchLoader,
	embedder llm.EmbeddingProvider,
	builder store.IndexBuilder,
	holder *store.IndexHolder,
	config *IngestConfig,
	m *metrics.AdvisorMetrics,
) *Ingestor {
	if config == nil {
		config = &IngestConfig{ChunkSize: 1000, ChunkOverlap: 200, EmbedBatchSize: 16}
	}
	if config.EmbedBatchSize <= 0 {
		config.EmbedBatchSize = 16
	}
	if m == nil {
		m = metrics.Global()
	}
	return &Ingestor{
		pdf:      pdf,
		urls:     urls,
		embedder: embedder,
		builder:  builder,
		holder:   holder,
		splitter: textutil.NewSplitter(config.ChunkSize, config.ChunkOverlap),
		config:   config,
		metrics:  m,
	}
}

// WithEmbedPool 设置并发提交 embedding 批次的工作池。
func (i *Ingestor) WithEmbedPool(p *pool.Pool) *Ingestor {
	i.embedPool = p
	return i
}

// Ingest 加载全部来源并以新索引替换当前索引。
// 替换前的任何失败都不会影响现有索引。
func (i *Ingestor) Ingest(ctx context.Context, req *IngestRequest) (result *IngestResult, err error) {
	start := time.Now()
	defer func() {
		docs, chunks := 0, 0
		if result != nil {
			docs, chunks = result.DocsCount, result.ChunksCount
		}
		i.metrics.RecordIngest(docs, chunks, time.Since(start), err)
	}()

	if req == nil {
		req = &IngestRequest{}
	}
	urls, err := normalizeURLs(req.URLs)
	if err != nil {
		return nil, err
	}

	var docs []model.Document
	for _, up := range req.PDFs {
		pages, err := i.loadPDF(ctx, up)
		if err != nil {
			return nil, err
		}
		docs = append(docs, pages...)
	}

	if len(urls) > 0 {
		web, err := i.urls.LoadAll(ctx, urls)
		if err != nil {
			return nil, errors.ErrLoadFailed.WithCause(err)
		}
		docs = append(docs, web...)
	}

	if len(docs) == 0 {
		return nil, errors.ErrNoSources
	}

	chunks := i.split(docs)
	if len(chunks) == 0 {
		return nil, errors.ErrNoSources
	}
	if err := EmbedChunks(ctx, i.embedder, chunks, i.config.EmbedBatchSize, i.embedPool); err != nil {
		return nil, errors.ErrEmbeddingFailed.WithCause(err)
	}

	gen, err := i.swapIndex(ctx, chunks)
	if err != nil {
		return nil, err
	}

	log.FromContext(ctx).Infow("vector index replaced",
		"generation", gen,
		"backend", i.builder.Name(),
		"sources", len(req.PDFs)+len(urls),
		"documents", len(docs),
		"chunks", len(chunks),
		"elapsed", time.Since(start).String(),
	)

	return &IngestResult{
		Status:       StatusUpdated,
		TotalSources: len(req.PDFs) + len(urls),
		DocsCount:    len(docs),
		ChunksCount:  len(chunks),
		Generation:   gen,
	}, nil
}

func (i *Ingestor) swapIndex(ctx context.Context, chunks []*model.Chunk) (uint64, error) {
	i.buildMu.Lock()
	defer i.buildMu.Unlock()

	idx, err := i.builder.Build(ctx, i.holder.NextGeneration(), chunks)
	if err != nil {
		return 0, errors.ErrIndexFailed.WithCause(err)
	}
	// 旧索引关闭不应受请求取消影响
	return i.holder.Replace(context.WithoutCancel(ctx), idx), nil
}

// loadPDF 将上传内容写入临时文件后解析，临时文件在任何路径上都会被删除。
func (i *Ingestor) loadPDF(ctx context.Context, up PDFUpload) ([]model.Document, error) {
	if up.Open == nil {
		return nil, errors.ErrInvalidParam.WithMessagef("pdf %q has no content", up.Filename)
	}
	src, err := up.Open()
	if err != nil {
		return nil, errors.ErrLoadFailed.WithCause(err)
	}
	defer func() { _ = src.Close() }()

	tmp, err := os.CreateTemp(i.config.TempDir, "upload-*.pdf")
	if err != nil {
		return nil, errors.ErrInternal.WithCause(err)
	}
	defer func() {
		_ = tmp.Close()
		if err := os.Remove(tmp.Name()); err != nil && !os.IsNotExist(err) {
			logger.Warnw("failed to remove temp file", "path", tmp.Name(), "error", err.Error())
		}
	}()

	if _, err := io.Copy(tmp, src); err != nil {
		return nil, errors.ErrLoadFailed.WithCause(fmt.Errorf("failed to buffer %s: %w", up.Filename, err))
	}
	if err := tmp.Close(); err != nil {
		return nil, errors.ErrLoadFailed.WithCause(err)
	}

	docs, err := i.pdf.Load(ctx, loader.Source{Location: tmp.Name(), Name: up.Filename})
	if err != nil {
		return nil, errors.ErrLoadFailed.WithCause(err)
	}
	return docs, nil
}

func (i *Ingestor) split(docs []model.Document) []*model.Chunk {
	var chunks []*model.Chunk
	for _, doc := range docs {
		for _, text := range i.splitter.Split(doc.Content) {
			chunks = append(chunks, &model.Chunk{
				ID:      ulid.Make().String(),
				Source:  doc.Source(),
				Content: text,
			})
		}
	}
	return chunks
}

// EmbedChunks 按批次为文本块生成向量。
// p 非空时各批次在池中并发执行，任一批次失败即返回。
func EmbedChunks(ctx context.Context, embedder llm.EmbeddingProvider, chunks []*model.Chunk, batchSize int, p *pool.Pool) error {
	if batchSize <= 0 {
		batchSize = len(chunks)
	}

	var tasks []func(ctx context.Context) error
	for start := 0; start < len(chunks); start += batchSize {
		batch := chunks[start:min(start+batchSize, len(chunks))]
		offset := start
		tasks = append(tasks, func(ctx context.Context) error {
			return embedBatch(ctx, embedder, batch, offset)
		})
	}

	if p == nil {
		for _, task := range tasks {
			if err := task(ctx); err != nil {
				return err
			}
		}
		return nil
	}
	return p.RunAll(ctx, tasks...)
}

func embedBatch(ctx context.Context, embedder llm.EmbeddingProvider, batch []*model.Chunk, offset int) error {
	texts := make([]string, len(batch))
	for j, c := range batch {
		texts[j] = c.Content
	}

	end := offset + len(batch)
	vectors, err := embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embedding batch %d-%d: %w", offset, end, err)
	}
	if len(vectors) != len(texts) {
		return fmt.Errorf("embedding batch %d-%d: got %d vectors for %d texts", offset, end, len(vectors), len(texts))
	}
	for j, v := range vectors {
		batch[j].Embedding = v
	}
	return nil
}

// normalizeURLs 去除空白项并校验 URL 格式。
func normalizeURLs(raw []string) ([]string, error) {
	urls := make([]string, 0, len(raw))
	for _, u := range raw {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		if verr := validator.Var(u, "required,"+validator.TagHTTPURL); verr != nil {
			return nil, errors.ErrInvalidURL.WithMessagef("invalid source URL %q", u).WithCause(verr)
		}
		urls = append(urls, u)
	}
	return urls, nil
}
