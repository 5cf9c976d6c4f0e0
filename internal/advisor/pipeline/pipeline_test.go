package pipeline

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/sentinel-advisor/internal/advisor/store"
	"github.com/kart-io/sentinel-advisor/internal/model"
	"github.com/kart-io/sentinel-advisor/pkg/llm"
	"github.com/kart-io/sentinel-advisor/pkg/utils/errors"
)

const forumPage = `<html><head><title>ignored</title></head><body>
<p>ETF products track an index at low cost.</p>
<p>Government bond funds suit conservative savers.</p>
<script>var stock = 1;</script>
</body></html>`

func TestLoadDocuments(t *testing.T) {
	dir := t.TempDir()
	htmlPath := filepath.Join(dir, "page.html")
	require.NoError(t, os.WriteFile(htmlPath, []byte(forumPage), 0o644))
	txtPath := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(txtPath, []byte("skip"), 0o644))

	docs, err := LoadDocuments(context.Background(),
		[]string{htmlPath, txtPath},
		map[string]string{htmlPath: "https://example.com/page"},
	)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "https://example.com/page", docs[0].Source())
	assert.Contains(t, docs[0].Content, "ETF products")
	assert.NotContains(t, docs[0].Content, "var stock")
	assert.NotContains(t, docs[0].Content, "ignored")
}

func TestLoadDocuments_MissingSource(t *testing.T) {
	dir := t.TempDir()
	htmlPath := filepath.Join(dir, "page.html")
	require.NoError(t, os.WriteFile(htmlPath, []byte(forumPage), 0o644))

	_, err := LoadDocuments(context.Background(), []string{htmlPath}, map[string]string{})
	assert.Error(t, err)
}

func TestLoadDocuments_BrokenPDF(t *testing.T) {
	dir := t.TempDir()
	pdfPath := filepath.Join(dir, "broken.pdf")
	require.NoError(t, os.WriteFile(pdfPath, []byte("not a pdf"), 0o644))

	_, err := LoadDocuments(context.Background(), []string{pdfPath}, map[string]string{pdfPath: pdfPath})
	assert.True(t, errors.IsCode(err, errors.ErrLoadFailed.Code))
}

func TestSegmentDocuments(t *testing.T) {
	seg := &paragraphSegmenter{}
	docs := []model.Document{
		model.NewDocument("first part\n\nsecond part", "a.html"),
		model.NewDocument("   ", "b.pdf"),
		model.NewDocument("only", "c.pdf"),
	}

	out, err := SegmentDocuments(context.Background(), docs, seg)
	require.NoError(t, err)
	assert.Equal(t, 3, seg.calls)
	require.Len(t, out, 3)
	assert.Equal(t, "first part", out[0].Content)
	assert.Equal(t, "a.html", out[1].Source())
	assert.Equal(t, "c.pdf", out[2].Source())
}

func TestSegmentDocuments_Error(t *testing.T) {
	seg := &paragraphSegmenter{err: stderrors.New("quota exceeded")}
	_, err := SegmentDocuments(context.Background(), []model.Document{model.NewDocument("x", "a")}, seg)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrSegmentFailed.Code))
	assert.ErrorContains(t, err, "quota exceeded")
}

func TestBuildCollection(t *testing.T) {
	docs := []model.Document{
		model.NewDocument("ETF etf index", "a"),
		model.NewDocument("bond ladder", "b"),
		model.NewDocument("stock picking", "c"),
	}
	idx, err := BuildCollection(context.Background(), docs, &keywordEmbedder{}, store.NewMemoryBuilder(), 2)
	require.NoError(t, err)
	assert.Equal(t, 3, idx.Len())

	results, err := idx.Search(context.Background(), embedText("bond"), 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "b", results[0].Source)
	assert.NotEmpty(t, results[0].ChunkID)
}

func TestPrepare(t *testing.T) {
	out := t.TempDir()
	fetcher := mapFetcher{
		"https://example.com/etf": {
			body:        "<p>ETF basics</p>\n\n<p>bond basics</p>",
			contentType: "text/html; charset=utf-8",
		},
	}

	idx, err := Prepare(context.Background(), Config{
		URLs:      []string{"https://example.com/etf"},
		OutputDir: out,
	}, Deps{
		Fetcher:   fetcher,
		Segmenter: &paragraphSegmenter{},
		Embedder:  &keywordEmbedder{},
		Builder:   store.NewMemoryBuilder(),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, idx.Len())

	results, err := idx.Search(context.Background(), embedText("etf"), 1)
	require.NoError(t, err)
	assert.Equal(t, "ETF basics", results[0].Content)
	assert.Equal(t, "https://example.com/etf", results[0].Source)

	t.Run("reuse cache", func(t *testing.T) {
		cached, err := Prepare(context.Background(), Config{OutputDir: out, ReuseCache: true}, Deps{
			Fetcher:   mapFetcher{},
			Segmenter: &paragraphSegmenter{},
			Embedder:  &keywordEmbedder{},
			Builder:   store.NewMemoryBuilder(),
		})
		require.NoError(t, err)
		assert.Equal(t, 2, cached.Len())
	})
}

func newTestChain(t *testing.T, chat llm.ChatProvider, embedder llm.EmbeddingProvider) *ConversationalChain {
	t.Helper()
	docs := []model.Document{
		model.NewDocument("ETF products track an index.", "etf.html"),
		model.NewDocument("Bond funds pay coupons.", "bond.html"),
	}
	idx, err := BuildCollection(context.Background(), docs, &keywordEmbedder{}, store.NewMemoryBuilder(), 0)
	require.NoError(t, err)
	return NewConversationalChain(idx, embedder, chat, 0)
}

func TestConversationalChain(t *testing.T) {
	chat := &scriptedChat{standalone: "What about bond funds?"}
	embedder := &keywordEmbedder{}
	chain := newTestChain(t, chat, embedder)

	answer, err := chain.Run(context.Background(), "Tell me about ETF")
	require.NoError(t, err)
	assert.Equal(t, "answer 1", answer)
	// 首轮没有历史，不做改写
	require.Len(t, chat.prompts, 1)
	assert.Contains(t, chat.prompts[0], "ETF products track an index.")
	assert.Contains(t, chat.prompts[0], "Question: Tell me about ETF")

	answer, err = chain.Run(context.Background(), "and those?")
	require.NoError(t, err)
	assert.Equal(t, "answer 2", answer)
	require.Len(t, chat.prompts, 3)
	assert.Contains(t, chat.prompts[1], "Human: Tell me about ETF\nAssistant: answer 1")
	assert.Contains(t, chat.prompts[1], "Follow Up Input: and those?")
	assert.Contains(t, chat.prompts[2], "Question: What about bond funds?")
	assert.Equal(t, []string{"Tell me about ETF", "What about bond funds?"}, embedder.inputs)

	history := chain.History()
	require.Len(t, history, 4)
	assert.Equal(t, llm.RoleUser, history[2].Role)
	assert.Equal(t, "and those?", history[2].Content)

	chain.Reset()
	assert.Empty(t, chain.History())
}
