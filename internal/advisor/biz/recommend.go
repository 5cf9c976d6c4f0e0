package biz

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kart-io/sentinel-advisor/internal/advisor/metrics"
	"github.com/kart-io/sentinel-advisor/internal/advisor/store"
	"github.com/kart-io/sentinel-advisor/internal/model"
	"github.com/kart-io/sentinel-advisor/internal/pkg/rag/textutil"
	log "github.com/kart-io/sentinel-advisor/pkg/infra/logger"
	"github.com/kart-io/sentinel-advisor/pkg/infra/pool"
	"github.com/kart-io/sentinel-advisor/pkg/llm"
	advisoropts "github.com/kart-io/sentinel-advisor/pkg/options/advisor"
	"github.com/kart-io/sentinel-advisor/pkg/utils/errors"
	"github.com/kart-io/sentinel-advisor/pkg/utils/validator"
)

// RecommendRequest 投资建议请求。
type RecommendRequest struct {
	Q       string             `json:"q" validate:"required"`
	Profile *model.UserProfile `json:"profile" validate:"required"`
}

// RecommendResult 投资建议结果。
type RecommendResult struct {
	Recommendation string            `json:"recommendation"`
	Sources        []model.SourceRef `json:"sources,omitempty"`
}

// RecommendConfig 建议生成配置。
type RecommendConfig struct {
	// TopK 检索的文本块数量。
	TopK int
	// QueryTemplate 检索查询模板，参数依次为风险等级与投资期限。
	QueryTemplate string
	// PromptTemplate stuff 提示模板，包含 {{context}} 与 {{question}}。
	PromptTemplate string
}

// Recommender 基于当前索引生成投资建议。
type Recommender struct {
	holder   *store.IndexHolder
	embedder llm.EmbeddingProvider
	chat     llm.ChatProvider
	cache    *AnswerCache
	bg       *pool.Pool
	config   *RecommendConfig
	metrics  *metrics.AdvisorMetrics
}

// NewRecommender 创建建议生成器。cache 与 bg 可为 nil。
func NewRecommender(
	holder *store.IndexHolder,
	embedder llm.EmbeddingProvider,
	chat llm.ChatProvider,
	cache *AnswerCache,
	bg *pool.Pool,
	config *RecommendConfig,
	m *metrics.AdvisorMetrics,
) *Recommender {
	if config == nil {
		config = &RecommendConfig{}
	}
	if config.TopK <= 0 {
		config.TopK = 4
	}
	if config.QueryTemplate == "" {
		config.QueryTemplate = advisoropts.DefaultQueryTemplate
	}
	if config.PromptTemplate == "" {
		config.PromptTemplate = advisoropts.DefaultPromptTemplate
	}
	if m == nil {
		m = metrics.Global()
	}
	return &Recommender{
		holder:   holder,
		embedder: embedder,
		chat:     chat,
		cache:    cache,
		bg:       bg,
		config:   config,
		metrics:  m,
	}
}

// BuildQuery 将风险画像与问题拼接为检索查询。
func (r *Recommender) BuildQuery(profile *model.UserProfile, q string) string {
	return fmt.Sprintf(r.config.QueryTemplate, profile.RiskLevel, profile.InvestmentHorizon) + q
}

// BuildPrompt 将检索结果全部填入提示模板。
func (r *Recommender) BuildPrompt(question string, results []*store.SearchResult) string {
	return StuffPrompt(r.config.PromptTemplate, question, results)
}

// StuffPrompt 用检索结果替换模板中的 {{context}}，用问题替换 {{question}}。
func StuffPrompt(template, question string, results []*store.SearchResult) string {
	parts := make([]string, len(results))
	for i, res := range results {
		parts[i] = res.Content
	}
	return strings.NewReplacer(
		"{{context}}", strings.Join(parts, "\n\n"),
		"{{question}}", question,
	).Replace(template)
}

// Recommend 生成投资建议。先检查索引，再校验字段。
func (r *Recommender) Recommend(ctx context.Context, req *RecommendRequest) (result *RecommendResult, err error) {
	cacheHit := false
	defer func() { r.metrics.RecordRecommend(cacheHit, err) }()

	// 每个请求只获取一次句柄，并发导入不会影响本次检索
	handle, ok := r.holder.Current()
	if !ok {
		return nil, errors.ErrIndexNotReady
	}
	defer handle.Release()
	if req == nil || strings.TrimSpace(req.Q) == "" {
		return nil, errors.ErrMissingFields
	}
	if verr := validator.Struct(req); verr != nil {
		log.FromContext(ctx).Debugw("recommend request rejected", "error", verr.Error())
		return nil, errors.ErrMissingFields.WithCause(verr)
	}

	query := r.BuildQuery(req.Profile, req.Q)

	if cached, cerr := r.cache.Get(ctx, handle.Generation, query); cerr == nil && cached != nil {
		cacheHit = true
		return cached, nil
	}

	retrievalStart := time.Now()
	results, err := r.retrieve(ctx, handle.Index, query)
	r.metrics.RecordRetrieval(time.Since(retrievalStart), err)
	if err != nil {
		return nil, err
	}

	llmStart := time.Now()
	resp, err := r.chat.Generate(ctx, r.BuildPrompt(query, results), "")
	promptTokens, completionTokens := 0, 0
	if resp != nil && resp.Usage != nil {
		promptTokens, completionTokens = resp.Usage.PromptTokens, resp.Usage.CompletionTokens
	}
	r.metrics.RecordLLMCall(time.Since(llmStart), promptTokens, completionTokens, err)
	if err != nil {
		return nil, errors.ErrChatFailed.WithCause(err)
	}

	sources := make([]model.SourceRef, len(results))
	for i, res := range results {
		sources[i] = model.SourceRef{Source: res.Source, Content: res.Content, Score: res.Score}
	}
	result = &RecommendResult{Recommendation: resp.Content, Sources: sources}

	log.FromContext(ctx).Infow("recommendation generated",
		"question", textutil.TruncateString(req.Q, questionLogRunes),
		"risk_level", req.Profile.RiskLevel,
		"horizon", req.Profile.InvestmentHorizon,
		"generation", handle.Generation,
		"sources", sourceNames(sources),
	)

	r.storeAsync(ctx, handle.Generation, query, result)
	return result, nil
}

// questionLogRunes 日志中保留的问题长度。
const questionLogRunes = 80

func (r *Recommender) retrieve(ctx context.Context, idx store.VectorIndex, query string) ([]*store.SearchResult, error) {
	vector, err := r.embedder.EmbedSingle(ctx, query)
	if err != nil {
		return nil, errors.ErrEmbeddingFailed.WithCause(err)
	}
	results, err := idx.Search(ctx, vector, r.config.TopK)
	if err != nil {
		return nil, errors.ErrIndexFailed.WithCause(err)
	}
	return results, nil
}

// storeAsync 在后台写入缓存，池满或未配置池时同步写入。
func (r *Recommender) storeAsync(ctx context.Context, gen uint64, query string, result *RecommendResult) {
	if !r.cache.enabled() {
		return
	}
	ctx = context.WithoutCancel(ctx)
	write := func() { _ = r.cache.Set(ctx, gen, query, result) }
	if r.bg == nil || r.bg.Submit(write) != nil {
		write()
	}
}

func sourceNames(sources []model.SourceRef) []string {
	names := make([]string, len(sources))
	for i, s := range sources {
		names[i] = s.Source
	}
	return names
}
