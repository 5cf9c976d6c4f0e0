// Package metrics 提供投资顾问服务的业务指标收集。
package metrics

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kart-io/sentinel-advisor/pkg/llm/resilience"
)

// AdvisorMetrics 投资顾问服务业务指标。
type AdvisorMetrics struct {
	// 画像指标
	profilesTotal  uint64
	profilesErrors uint64

	// 导入指标
	ingestsTotal     uint64
	ingestsErrors    uint64
	documentsIndexed uint64
	chunksIndexed    uint64
	ingestDuration   float64

	// 建议指标
	recommendsTotal   uint64
	recommendsErrors  uint64
	answerCacheHits   uint64
	answerCacheMisses uint64

	// 检索指标
	retrievalTotal    uint64
	retrievalErrors   uint64
	retrievalDuration float64

	// LLM 调用指标
	llmCallsTotal       uint64
	llmCallsErrors      uint64
	llmCallsDuration    float64
	llmTokensPrompt     uint64
	llmTokensCompletion uint64

	// 熔断器指标
	circuitBreakerOpens uint64
	circuitBreakerState int32 // 0=closed, 1=open, 2=half-open

	startTime  time.Time
	durationMu sync.Mutex
}

var (
	global     *AdvisorMetrics
	globalOnce sync.Once
)

// New 创建独立的指标实例。
func New() *AdvisorMetrics {
	return &AdvisorMetrics{startTime: time.Now()}
}

// Global 返回进程级指标实例。
func Global() *AdvisorMetrics {
	globalOnce.Do(func() {
		global = New()
	})
	return global
}

func (m *AdvisorMetrics) addDuration(dst *float64, d time.Duration) {
	m.durationMu.Lock()
	*dst += d.Seconds()
	m.durationMu.Unlock()
}

// RecordProfile 记录一次画像评分。
func (m *AdvisorMetrics) RecordProfile(err error) {
	atomic.AddUint64(&m.profilesTotal, 1)
	if err != nil {
		atomic.AddUint64(&m.profilesErrors, 1)
	}
}

// RecordIngest 记录一次资料导入。
func (m *AdvisorMetrics) RecordIngest(documents, chunks int, duration time.Duration, err error) {
	atomic.AddUint64(&m.ingestsTotal, 1)
	if err != nil {
		atomic.AddUint64(&m.ingestsErrors, 1)
		return
	}
	atomic.AddUint64(&m.documentsIndexed, uint64(documents))
	atomic.AddUint64(&m.chunksIndexed, uint64(chunks))
	m.addDuration(&m.ingestDuration, duration)
}

// RecordRecommend 记录一次投资建议请求。
func (m *AdvisorMetrics) RecordRecommend(cacheHit bool, err error) {
	atomic.AddUint64(&m.recommendsTotal, 1)
	if err != nil {
		atomic.AddUint64(&m.recommendsErrors, 1)
		return
	}
	if cacheHit {
		atomic.AddUint64(&m.answerCacheHits, 1)
	} else {
		atomic.AddUint64(&m.answerCacheMisses, 1)
	}
}

// RecordRetrieval 记录检索操作，失败时也计入耗时。
func (m *AdvisorMetrics) RecordRetrieval(duration time.Duration, err error) {
	atomic.AddUint64(&m.retrievalTotal, 1)
	if err != nil {
		atomic.AddUint64(&m.retrievalErrors, 1)
	}
	m.addDuration(&m.retrievalDuration, duration)
}

// RecordLLMCall 记录 LLM 调用。
func (m *AdvisorMetrics) RecordLLMCall(duration time.Duration, promptTokens, completionTokens int, err error) {
	atomic.AddUint64(&m.llmCallsTotal, 1)
	if err != nil {
		atomic.AddUint64(&m.llmCallsErrors, 1)
		return
	}
	m.addDuration(&m.llmCallsDuration, duration)
	if promptTokens > 0 {
		atomic.AddUint64(&m.llmTokensPrompt, uint64(promptTokens))
	}
	if completionTokens > 0 {
		atomic.AddUint64(&m.llmTokensCompletion, uint64(completionTokens))
	}
}

// RecordBreakerState 记录熔断器状态变化，可直接用作 BreakerConfig.OnStateChange。
func (m *AdvisorMetrics) RecordBreakerState(_ string, _, to resilience.State) {
	switch to {
	case resilience.StateOpen:
		atomic.AddUint64(&m.circuitBreakerOpens, 1)
		atomic.StoreInt32(&m.circuitBreakerState, 1)
	case resilience.StateHalfOpen:
		atomic.StoreInt32(&m.circuitBreakerState, 2)
	default:
		atomic.StoreInt32(&m.circuitBreakerState, 0)
	}
}

func writeMetric(sb *strings.Builder, name, typ, help string, value any) {
	fmt.Fprintf(sb, "# HELP %s %s\n", name, help)
	fmt.Fprintf(sb, "# TYPE %s %s\n", name, typ)
	switch v := value.(type) {
	case float64:
		fmt.Fprintf(sb, "%s %.6f\n\n", name, v)
	default:
		fmt.Fprintf(sb, "%s %v\n\n", name, v)
	}
}

// Export 导出 Prometheus 文本格式指标。
func (m *AdvisorMetrics) Export(namespace, subsystem string) string {
	prefix := namespace
	if subsystem != "" {
		prefix = prefix + "_" + subsystem
	}

	m.durationMu.Lock()
	ingestDuration := m.ingestDuration
	retrievalDuration := m.retrievalDuration
	llmDuration := m.llmCallsDuration
	m.durationMu.Unlock()

	hits := atomic.LoadUint64(&m.answerCacheHits)
	misses := atomic.LoadUint64(&m.answerCacheMisses)
	hitRate := 0.0
	if hits+misses > 0 {
		hitRate = float64(hits) / float64(hits+misses)
	}

	var sb strings.Builder
	counter := func(name, help string, v any) { writeMetric(&sb, prefix+"_"+name, "counter", help, v) }
	gauge := func(name, help string, v any) { writeMetric(&sb, prefix+"_"+name, "gauge", help, v) }

	counter("profiles_total", "Total number of profile requests.", atomic.LoadUint64(&m.profilesTotal))
	counter("profiles_errors_total", "Number of rejected questionnaires.", atomic.LoadUint64(&m.profilesErrors))

	counter("ingests_total", "Total number of ingest requests.", atomic.LoadUint64(&m.ingestsTotal))
	counter("ingests_errors_total", "Number of failed ingests.", atomic.LoadUint64(&m.ingestsErrors))
	counter("documents_indexed_total", "Total documents indexed.", atomic.LoadUint64(&m.documentsIndexed))
	counter("chunks_indexed_total", "Total chunks indexed.", atomic.LoadUint64(&m.chunksIndexed))
	counter("ingest_duration_seconds_total", "Total ingest duration.", ingestDuration)

	counter("recommends_total", "Total number of recommend requests.", atomic.LoadUint64(&m.recommendsTotal))
	counter("recommends_errors_total", "Number of failed recommend requests.", atomic.LoadUint64(&m.recommendsErrors))
	counter("answer_cache_hits_total", "Number of answer cache hits.", hits)
	counter("answer_cache_misses_total", "Number of answer cache misses.", misses)
	gauge("answer_cache_hit_rate", "Answer cache hit rate (0-1).", hitRate)

	counter("retrieval_total", "Total number of retrievals.", atomic.LoadUint64(&m.retrievalTotal))
	counter("retrieval_errors_total", "Number of retrieval errors.", atomic.LoadUint64(&m.retrievalErrors))
	counter("retrieval_duration_seconds_total", "Total retrieval duration.", retrievalDuration)

	counter("llm_calls_total", "Total number of LLM calls.", atomic.LoadUint64(&m.llmCallsTotal))
	counter("llm_calls_errors_total", "Number of LLM call errors.", atomic.LoadUint64(&m.llmCallsErrors))
	counter("llm_calls_duration_seconds_total", "Total LLM call duration.", llmDuration)
	counter("llm_tokens_prompt_total", "Total prompt tokens.", atomic.LoadUint64(&m.llmTokensPrompt))
	counter("llm_tokens_completion_total", "Total completion tokens.", atomic.LoadUint64(&m.llmTokensCompletion))

	counter("circuit_breaker_opens_total", "Number of circuit breaker opens.", atomic.LoadUint64(&m.circuitBreakerOpens))
	gauge("circuit_breaker_state", "Circuit breaker state (0=closed, 1=open, 2=half-open).", atomic.LoadInt32(&m.circuitBreakerState))

	gauge("uptime_seconds", "Service uptime in seconds.", time.Since(m.startTime).Seconds())
	return sb.String()
}

// Stats 返回当前统计信息（用于 API）。
func (m *AdvisorMetrics) Stats() map[string]any {
	m.durationMu.Lock()
	retrievalDuration := m.retrievalDuration
	llmDuration := m.llmCallsDuration
	m.durationMu.Unlock()

	avg := func(total float64, n uint64) float64 {
		if n == 0 {
			return 0
		}
		return total / float64(n)
	}

	hits := atomic.LoadUint64(&m.answerCacheHits)
	misses := atomic.LoadUint64(&m.answerCacheMisses)
	retrievals := atomic.LoadUint64(&m.retrievalTotal)
	llmCalls := atomic.LoadUint64(&m.llmCallsTotal)

	state := "closed"
	switch atomic.LoadInt32(&m.circuitBreakerState) {
	case 1:
		state = "open"
	case 2:
		state = "half-open"
	}

	return map[string]any{
		"profiles": map[string]any{
			"total":  atomic.LoadUint64(&m.profilesTotal),
			"errors": atomic.LoadUint64(&m.profilesErrors),
		},
		"ingests": map[string]any{
			"total":             atomic.LoadUint64(&m.ingestsTotal),
			"errors":            atomic.LoadUint64(&m.ingestsErrors),
			"documents_indexed": atomic.LoadUint64(&m.documentsIndexed),
			"chunks_indexed":    atomic.LoadUint64(&m.chunksIndexed),
		},
		"recommends": map[string]any{
			"total":          atomic.LoadUint64(&m.recommendsTotal),
			"errors":         atomic.LoadUint64(&m.recommendsErrors),
			"cache_hits":     hits,
			"cache_misses":   misses,
			"cache_hit_rate": avg(float64(hits), hits+misses),
		},
		"retrieval": map[string]any{
			"total":             retrievals,
			"errors":            atomic.LoadUint64(&m.retrievalErrors),
			"avg_duration_secs": avg(retrievalDuration, retrievals),
		},
		"llm": map[string]any{
			"calls_total":       llmCalls,
			"errors":            atomic.LoadUint64(&m.llmCallsErrors),
			"avg_duration_secs": avg(llmDuration, llmCalls),
			"tokens_prompt":     atomic.LoadUint64(&m.llmTokensPrompt),
			"tokens_completion": atomic.LoadUint64(&m.llmTokensCompletion),
		},
		"circuit_breaker": map[string]any{
			"state": state,
			"opens": atomic.LoadUint64(&m.circuitBreakerOpens),
		},
		"uptime_seconds": time.Since(m.startTime).Seconds(),
	}
}
