package biz

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/sentinel-advisor/internal/advisor/metrics"
	"github.com/kart-io/sentinel-advisor/internal/advisor/store"
	"github.com/kart-io/sentinel-advisor/internal/model"
	"github.com/kart-io/sentinel-advisor/pkg/infra/pool"
	"github.com/kart-io/sentinel-advisor/pkg/utils/errors"
	"github.com/kart-io/sentinel-advisor/pkg/utils/validator"
)

type ingestFixture struct {
	pdf      *textPDFLoader
	urls     *staticURLLoader
	embedder *keywordEmbedder
	holder   *store.IndexHolder
	ingestor *Ingestor
	tempDir  string
}

func newIngestFixture(t *testing.T, builder store.IndexBuilder) *ingestFixture {
	t.Helper()
	f := &ingestFixture{
		pdf: &textPDFLoader{},
		urls: &staticURLLoader{pages: map[string]string{
			"https://example.com/etf":   "ETF investing basics. ETF fees are low.",
			"https://example.com/bonds": "Government bond ladders.",
		}},
		embedder: &keywordEmbedder{},
		holder:   store.NewIndexHolder(),
		tempDir:  t.TempDir(),
	}
	if builder == nil {
		builder = store.NewMemoryBuilder()
	}
	f.ingestor = NewIngestor(f.pdf, f.urls, f.embedder, builder, f.holder, &IngestConfig{
		ChunkSize:      1000,
		ChunkOverlap:   200,
		EmbedBatchSize: 2,
		TempDir:        f.tempDir,
	}, metrics.New())
	return f
}

func (f *ingestFixture) tempFiles(t *testing.T) []string {
	t.Helper()
	entries, err := os.ReadDir(f.tempDir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestIngest_PDFsAndURLs(t *testing.T) {
	f := newIngestFixture(t, nil)

	res, err := f.ingestor.Ingest(context.Background(), &IngestRequest{
		PDFs: []PDFUpload{upload("guide.pdf", "stock picking page one\fstock page two")},
		URLs: []string{"https://example.com/etf", "  ", "https://example.com/bonds"},
	})
	require.NoError(t, err)

	assert.Equal(t, StatusUpdated, res.Status)
	assert.Equal(t, 3, res.TotalSources)
	assert.Equal(t, 4, res.DocsCount)
	assert.Equal(t, 4, res.ChunksCount)
	assert.Equal(t, uint64(1), res.Generation)

	// 4 个块按批大小 2 分两次请求
	assert.Equal(t, []int{2, 2}, f.embedder.batches)

	handle, ok := f.holder.Current()
	require.True(t, ok)
	assert.Equal(t, 4, handle.Index.Len())

	require.Len(t, f.pdf.paths, 1)
	assert.True(t, strings.HasPrefix(f.pdf.paths[0], f.tempDir))
	assert.True(t, strings.HasSuffix(f.pdf.paths[0], ".pdf"))
	assert.Empty(t, f.tempFiles(t), "temp file must be removed")
}

func TestIngest_ReplacesIndex(t *testing.T) {
	f := newIngestFixture(t, nil)
	ctx := context.Background()

	_, err := f.ingestor.Ingest(ctx, &IngestRequest{URLs: []string{"https://example.com/etf"}})
	require.NoError(t, err)
	first, _ := f.holder.Current()

	res, err := f.ingestor.Ingest(ctx, &IngestRequest{URLs: []string{"https://example.com/bonds"}})
	require.NoError(t, err)
	assert.Equal(t, uint64(2), res.Generation)

	second, ok := f.holder.Current()
	require.True(t, ok)
	assert.Equal(t, uint64(2), second.Generation)

	results, err := second.Index.Search(ctx, embedText("etf"), 4)
	require.NoError(t, err)
	for _, r := range results {
		assert.Equal(t, "https://example.com/bonds", r.Source, "old sources must not survive a re-ingest")
	}

	// 旧句柄仍可读取
	assert.Equal(t, 1, first.Index.Len())
}

func TestIngest_SplitsLongDocuments(t *testing.T) {
	f := newIngestFixture(t, nil)
	long := strings.Repeat("stock market volatility explained. ", 100)

	res, err := f.ingestor.Ingest(context.Background(), &IngestRequest{
		PDFs: []PDFUpload{upload("long.pdf", long)},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.DocsCount)
	assert.Greater(t, res.ChunksCount, 3)
}

func TestIngest_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("no sources", func(t *testing.T) {
		f := newIngestFixture(t, nil)
		_, err := f.ingestor.Ingest(ctx, &IngestRequest{})
		assert.True(t, errors.IsCode(err, errors.ErrNoSources.Code))
		assert.Equal(t, "Provide at least one PDF or URL.", errors.FromError(err).MessageEN)
	})

	t.Run("blank pdf yields no documents", func(t *testing.T) {
		f := newIngestFixture(t, nil)
		_, err := f.ingestor.Ingest(ctx, &IngestRequest{PDFs: []PDFUpload{upload("blank.pdf", "  \f ")}})
		assert.True(t, errors.IsCode(err, errors.ErrNoSources.Code))
		assert.Empty(t, f.tempFiles(t))
	})

	t.Run("invalid url", func(t *testing.T) {
		f := newIngestFixture(t, nil)
		_, err := f.ingestor.Ingest(ctx, &IngestRequest{URLs: []string{"ftp://example.com/x"}})
		assert.True(t, errors.IsCode(err, errors.ErrInvalidURL.Code))
		assert.True(t, validator.IsValidationError(err), "URL is checked by the httpurl rule")
	})

	t.Run("url fetch failure", func(t *testing.T) {
		f := newIngestFixture(t, nil)
		_, err := f.ingestor.Ingest(ctx, &IngestRequest{URLs: []string{"https://example.com/missing"}})
		assert.True(t, errors.IsCode(err, errors.ErrLoadFailed.Code))
	})

	t.Run("pdf loader failure removes temp file", func(t *testing.T) {
		f := newIngestFixture(t, nil)
		f.pdf.err = assert.AnError
		_, err := f.ingestor.Ingest(ctx, &IngestRequest{PDFs: []PDFUpload{upload("bad.pdf", "x")}})
		assert.True(t, errors.IsCode(err, errors.ErrLoadFailed.Code))
		assert.Empty(t, f.tempFiles(t))
	})

	t.Run("embedding failure keeps previous index", func(t *testing.T) {
		f := newIngestFixture(t, nil)
		_, err := f.ingestor.Ingest(ctx, &IngestRequest{URLs: []string{"https://example.com/etf"}})
		require.NoError(t, err)

		f.embedder.err = assert.AnError
		_, err = f.ingestor.Ingest(ctx, &IngestRequest{URLs: []string{"https://example.com/bonds"}})
		assert.True(t, errors.IsCode(err, errors.ErrEmbeddingFailed.Code))

		handle, ok := f.holder.Current()
		require.True(t, ok)
		assert.Equal(t, uint64(1), handle.Generation)
	})

	t.Run("build failure", func(t *testing.T) {
		f := newIngestFixture(t, failingBuilder{})
		_, err := f.ingestor.Ingest(ctx, &IngestRequest{URLs: []string{"https://example.com/etf"}})
		assert.True(t, errors.IsCode(err, errors.ErrIndexFailed.Code))
		_, ok := f.holder.Current()
		assert.False(t, ok)
	})
}

func TestEmbedChunks(t *testing.T) {
	chunks := []*model.Chunk{{Content: "bond"}, {Content: "stock"}, {Content: "etf"}}
	e := &keywordEmbedder{}
	require.NoError(t, EmbedChunks(context.Background(), e, chunks, 0, nil))
	assert.Equal(t, []int{3}, e.batches)
	for _, c := range chunks {
		assert.Len(t, c.Embedding, 3)
	}
}

func TestEmbedChunks_Pool(t *testing.T) {
	p, err := pool.NewPool("test-embed", pool.EmbedPool, pool.ConfigFor(pool.EmbedPool, 2))
	require.NoError(t, err)
	defer p.Release()

	chunks := []*model.Chunk{
		{Content: "bond"}, {Content: "stock"}, {Content: "etf"},
		{Content: "bond bond"}, {Content: "stock etf"},
	}
	e := &keywordEmbedder{}
	require.NoError(t, EmbedChunks(context.Background(), e, chunks, 2, p))

	assert.ElementsMatch(t, []int{2, 2, 1}, e.batches)
	for _, c := range chunks {
		assert.Equal(t, embedText(c.Content), c.Embedding, c.Content)
	}

	t.Run("batch failure", func(t *testing.T) {
		failing := &keywordEmbedder{err: fmt.Errorf("quota exceeded")}
		err := EmbedChunks(context.Background(), failing, chunks, 2, p)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "quota exceeded")
	})
}
