package biz

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/sentinel-advisor/internal/advisor/metrics"
	"github.com/kart-io/sentinel-advisor/internal/advisor/store"
	"github.com/kart-io/sentinel-advisor/internal/model"
	"github.com/kart-io/sentinel-advisor/pkg/utils/errors"
)

func newTestService(t *testing.T) (*AdvisorService, *recordingChat) {
	t.Helper()
	m := metrics.New()
	holder := store.NewIndexHolder()
	embedder := &keywordEmbedder{}
	chat := &recordingChat{answer: "Diversify with ETFs."}
	urls := &staticURLLoader{pages: map[string]string{
		"https://example.com/etf": "ETF investing basics.",
	}}
	ingestor := NewIngestor(&textPDFLoader{}, urls, embedder, store.NewMemoryBuilder(), holder, &IngestConfig{
		ChunkSize: 1000, ChunkOverlap: 200, EmbedBatchSize: 16, TempDir: t.TempDir(),
	}, m)
	recommender := NewRecommender(holder, embedder, chat, nil, nil, nil, m)
	return NewAdvisorService(ingestor, recommender, holder, nil), chat
}

func TestAdvisorService_EndToEnd(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	profile, err := svc.Profile(ctx, &model.Questionnaire{
		Q1: 1, Q2: 5, Q3: []int{2}, Q3Period: 3, Q4: 3, Q5: 3, Q6: 3, Q9: 3, Q10: 5, Q11: 5,
	})
	require.NoError(t, err)
	assert.Equal(t, RiskAggressive, profile.RiskLevel)

	_, err = svc.Recommend(ctx, &RecommendRequest{Q: "etf?", Profile: profile})
	assert.True(t, errors.IsCode(err, errors.ErrIndexNotReady.Code))

	res, err := svc.Ingest(ctx, &IngestRequest{URLs: []string{"https://example.com/etf"}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.DocsCount)

	rec, err := svc.Recommend(ctx, &RecommendRequest{Q: "etf?", Profile: profile})
	require.NoError(t, err)
	assert.Equal(t, "Diversify with ETFs.", rec.Recommendation)

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	idx := stats["index"].(store.HolderStats)
	assert.True(t, idx.Ready)
	assert.Equal(t, uint64(1), idx.Generation)
	assert.Equal(t, "memory", stats["index_backend"])
	assert.Equal(t, "keyword", stats["embed_provider"])
	assert.Equal(t, "recording", stats["chat_provider"])

	m := svc.Metrics().Stats()
	assert.Equal(t, uint64(1), m["profiles"].(map[string]any)["total"])
	assert.Equal(t, uint64(2), m["recommends"].(map[string]any)["total"])
}

func TestAdvisorService_IngestNilRequest(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Ingest(context.Background(), nil)
	assert.True(t, errors.IsCode(err, errors.ErrNoSources.Code))
}

func TestAdvisorService_IngestClearsCache(t *testing.T) {
	client := newTestRedis(t)
	ctx := context.Background()
	svc, _ := newTestService(t)
	svc.cache = NewAnswerCache(client, &AnswerCacheConfig{Enabled: true, TTL: time.Minute, KeyPrefix: "test-answer:" + t.Name() + ":"})
	t.Cleanup(func() { _, _ = svc.cache.Clear(context.Background()) })

	require.NoError(t, svc.cache.Set(ctx, 7, "etf?", &RecommendResult{Recommendation: "stale"}))

	_, err := svc.Ingest(ctx, &IngestRequest{URLs: []string{"https://example.com/etf"}})
	require.NoError(t, err)

	stale, err := svc.cache.Get(ctx, 7, "etf?")
	require.NoError(t, err)
	assert.Nil(t, stale)
}

type countedIndex struct {
	store.VectorIndex
	rows int64
}

func (c *countedIndex) StoredRows(context.Context) (int64, error) { return c.rows, nil }

func TestAdvisorService_StatsStoredRows(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.NotContains(t, stats, "index_stored_rows")

	idx, err := store.NewMemoryBuilder().Build(ctx, 1, []*model.Chunk{{ID: "a", Content: "etf", Embedding: embedText("etf")}})
	require.NoError(t, err)
	svc.holder.Replace(ctx, &countedIndex{VectorIndex: idx, rows: 41})

	stats, err = svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(41), stats["index_stored_rows"])
}
