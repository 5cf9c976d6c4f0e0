package resilience

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"syscall"

	"github.com/kart-io/sentinel-advisor/pkg/llm"
	"github.com/kart-io/sentinel-advisor/pkg/utils/httpclient"
)

// Options 包装器共用的重试与熔断配置。
type Options struct {
	Retry   *RetryConfig
	Breaker *BreakerConfig
}

func (o *Options) normalize() (*RetryConfig, *BreakerConfig) {
	if o == nil {
		return DefaultRetryConfig(), DefaultBreakerConfig()
	}
	retry, breaker := o.Retry, o.Breaker
	if retry == nil {
		retry = DefaultRetryConfig()
	}
	if breaker == nil {
		breaker = DefaultBreakerConfig()
	}
	return retry, breaker
}

// EmbeddingProvider 带重试与熔断的 Embedding Provider。
type EmbeddingProvider struct {
	provider llm.EmbeddingProvider
	retry    *RetryConfig
	breaker  *Breaker
}

// WrapEmbedding 为 Embedding Provider 增加重试与熔断。
func WrapEmbedding(provider llm.EmbeddingProvider, opts *Options) *EmbeddingProvider {
	retry, bc := opts.normalize()
	return &EmbeddingProvider{
		provider: provider,
		retry:    retry,
		breaker:  NewBreaker(provider.Name()+".embed", bc),
	}
}

// Embed 为多个文本生成向量。
func (r *EmbeddingProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return Call(ctx, r.retry, r.breaker, func(ctx context.Context) ([][]float32, error) {
		return r.provider.Embed(ctx, texts)
	})
}

// EmbedSingle 为单个文本生成向量。
func (r *EmbeddingProvider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	return Call(ctx, r.retry, r.breaker, func(ctx context.Context) ([]float32, error) {
		return r.provider.EmbedSingle(ctx, text)
	})
}

// Name 返回底层 provider 名称。
func (r *EmbeddingProvider) Name() string { return r.provider.Name() }

// Breaker 返回熔断器（用于监控）。
func (r *EmbeddingProvider) Breaker() *Breaker { return r.breaker }

// ChatProvider 带重试与熔断的 Chat Provider。
type ChatProvider struct {
	provider llm.ChatProvider
	retry    *RetryConfig
	breaker  *Breaker
}

// WrapChat 为 Chat Provider 增加重试与熔断。
func WrapChat(provider llm.ChatProvider, opts *Options) *ChatProvider {
	retry, bc := opts.normalize()
	return &ChatProvider{
		provider: provider,
		retry:    retry,
		breaker:  NewBreaker(provider.Name()+".chat", bc),
	}
}

// Chat 进行多轮对话。
func (r *ChatProvider) Chat(ctx context.Context, messages []llm.Message) (*llm.GenerateResponse, error) {
	return Call(ctx, r.retry, r.breaker, func(ctx context.Context) (*llm.GenerateResponse, error) {
		return r.provider.Chat(ctx, messages)
	})
}

// Generate 根据提示生成文本。
func (r *ChatProvider) Generate(ctx context.Context, prompt, systemPrompt string) (*llm.GenerateResponse, error) {
	return Call(ctx, r.retry, r.breaker, func(ctx context.Context) (*llm.GenerateResponse, error) {
		return r.provider.Generate(ctx, prompt, systemPrompt)
	})
}

// Name 返回底层 provider 名称。
func (r *ChatProvider) Name() string { return r.provider.Name() }

// Breaker 返回熔断器（用于监控）。
func (r *ChatProvider) Breaker() *Breaker { return r.breaker }

// SegmentationProvider 带重试与熔断的分段 Provider。
type SegmentationProvider struct {
	provider llm.SegmentationProvider
	retry    *RetryConfig
	breaker  *Breaker
}

// WrapSegmentation 为分段 Provider 增加重试与熔断。
func WrapSegmentation(provider llm.SegmentationProvider, opts *Options) *SegmentationProvider {
	retry, bc := opts.normalize()
	return &SegmentationProvider{
		provider: provider,
		retry:    retry,
		breaker:  NewBreaker(provider.Name()+".segment", bc),
	}
}

// Segment 将文本切分为语义段落。
func (r *SegmentationProvider) Segment(ctx context.Context, text string) ([]string, error) {
	return Call(ctx, r.retry, r.breaker, func(ctx context.Context) ([]string, error) {
		return r.provider.Segment(ctx, text)
	})
}

// Name 返回底层 provider 名称。
func (r *SegmentationProvider) Name() string { return r.provider.Name() }

// Breaker 返回熔断器（用于监控）。
func (r *SegmentationProvider) Breaker() *Breaker { return r.breaker }

// IsRetryableError 判断错误是否可重试。
// 5xx、429、408 状态码以及网络层错误可重试；取消、超时和熔断错误不重试。
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrBreakerOpen) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var statusErr *httpclient.StatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode >= http.StatusInternalServerError,
			statusErr.StatusCode == http.StatusTooManyRequests,
			statusErr.StatusCode == http.StatusRequestTimeout:
			return true
		default:
			return false
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	return errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED)
}

var (
	_ llm.EmbeddingProvider    = (*EmbeddingProvider)(nil)
	_ llm.ChatProvider         = (*ChatProvider)(nil)
	_ llm.SegmentationProvider = (*SegmentationProvider)(nil)
)
