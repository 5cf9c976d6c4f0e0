package biz

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"github.com/kart-io/sentinel-advisor/internal/advisor/metrics"
	"github.com/kart-io/sentinel-advisor/internal/advisor/store"
	"github.com/kart-io/sentinel-advisor/internal/model"
	log "github.com/kart-io/sentinel-advisor/pkg/infra/logger"
	"github.com/kart-io/sentinel-advisor/pkg/infra/tracing"
)

// Service 定义投资顾问服务接口。
type Service interface {
	// Profile 根据问卷生成风险画像。
	Profile(ctx context.Context, q *model.Questionnaire) (*model.UserProfile, error)
	// Ingest 导入资料并替换向量索引。
	Ingest(ctx context.Context, req *IngestRequest) (*IngestResult, error)
	// Recommend 生成投资建议。
	Recommend(ctx context.Context, req *RecommendRequest) (*RecommendResult, error)
	// Stats 返回索引与业务指标统计。
	Stats(ctx context.Context) (map[string]any, error)
}

// AdvisorService 组合 Ingestor 与 Recommender 提供完整服务。
type AdvisorService struct {
	ingestor    *Ingestor
	recommender *Recommender
	holder      *store.IndexHolder
	cache       *AnswerCache
	metrics     *metrics.AdvisorMetrics
	embedName   string
	chatName    string
}

// NewAdvisorService 创建服务实例。
func NewAdvisorService(ingestor *Ingestor, recommender *Recommender, holder *store.IndexHolder, cache *AnswerCache) *AdvisorService {
	return &AdvisorService{
		ingestor:    ingestor,
		recommender: recommender,
		holder:      holder,
		cache:       cache,
		metrics:     ingestor.metrics,
		embedName:   ingestor.embedder.Name(),
		chatName:    recommender.chat.Name(),
	}
}

// Profile 根据问卷生成风险画像。
func (s *AdvisorService) Profile(ctx context.Context, q *model.Questionnaire) (*model.UserProfile, error) {
	_, span := tracing.StartSpan(ctx, "advisor.Profile")
	profile, err := ScoreProfile(q)
	if err == nil {
		span.SetAttributes(attribute.String("advisor.risk_level", profile.RiskLevel))
	}
	tracing.End(span, err)
	s.metrics.RecordProfile(err)
	return profile, err
}

// Ingest 导入资料并替换向量索引。
func (s *AdvisorService) Ingest(ctx context.Context, req *IngestRequest) (result *IngestResult, err error) {
	if req == nil {
		req = &IngestRequest{}
	}
	ctx, span := tracing.StartSpan(ctx, "advisor.Ingest",
		attribute.Int("advisor.pdfs", len(req.PDFs)),
		attribute.Int("advisor.urls", len(req.URLs)),
	)
	defer func() { tracing.End(span, err) }()

	result, err = s.ingestor.Ingest(ctx, req)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("advisor.chunks", result.ChunksCount),
		attribute.Int64("advisor.generation", int64(result.Generation)),
	)

	// 旧代数的答案已不可达，清理失败不影响导入结果
	if _, cerr := s.cache.Clear(ctx); cerr != nil {
		log.FromContext(ctx).Warnw("failed to clear answer cache after ingest",
			"generation", result.Generation,
			"error", cerr.Error(),
		)
	}
	return result, nil
}

// Recommend 生成投资建议。
func (s *AdvisorService) Recommend(ctx context.Context, req *RecommendRequest) (result *RecommendResult, err error) {
	ctx, span := tracing.StartSpan(ctx, "advisor.Recommend")
	defer func() { tracing.End(span, err) }()
	return s.recommender.Recommend(ctx, req)
}

// Stats 返回索引与业务指标统计。
func (s *AdvisorService) Stats(ctx context.Context) (map[string]any, error) {
	stats := map[string]any{
		"index":          s.holder.Stats(),
		"index_backend":  s.ingestor.builder.Name(),
		"embed_provider": s.embedName,
		"chat_provider":  s.chatName,
		"metrics":        s.metrics.Stats(),
	}
	if handle, ok := s.holder.Current(); ok {
		if counter, ok := handle.Index.(store.RowCounter); ok {
			if n, err := counter.StoredRows(ctx); err == nil {
				stats["index_stored_rows"] = n
			} else {
				log.FromContext(ctx).Warnw("failed to read index row count", "error", err.Error())
			}
		}
		handle.Release()
	}
	if s.cache != nil {
		if cacheStats, err := s.cache.Stats(ctx); err == nil {
			stats["cache"] = cacheStats
		}
	}
	return stats, nil
}

// Metrics 返回指标收集器。
func (s *AdvisorService) Metrics() *metrics.AdvisorMetrics {
	return s.metrics
}

// 确保 AdvisorService 实现了 Service 接口。
var _ Service = (*AdvisorService)(nil)
