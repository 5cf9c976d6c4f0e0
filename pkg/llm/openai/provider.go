// Package openai 提供基于 go-openai 的 LLM 供应商实现。
// 同时支持 OpenAI API 和兼容 OpenAI API 的服务（通过 base_url 覆盖）。
//
//	import _ "github.com/kart-io/sentinel-advisor/pkg/llm/openai"
//
//	provider, err := llm.NewEmbeddingProvider("openai", map[string]any{
//	    "api_key": os.Getenv("OPENAI_API_KEY"),
//	})
package openai

import (
	"context"
	"errors"
	"fmt"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/kart-io/sentinel-advisor/pkg/llm"
	"github.com/kart-io/sentinel-advisor/pkg/utils/httpclient"
)

// ProviderName 是 OpenAI 供应商的名称标识符。
const ProviderName = "openai"

func init() {
	llm.RegisterProvider(ProviderName, NewProvider)
}

// Config OpenAI 供应商配置。
type Config struct {
	// BaseURL API 基础地址，为空时使用 go-openai 默认值。
	BaseURL string
	// APIKey API 密钥。
	APIKey string
	// EmbedModel 用于生成嵌入的模型。
	EmbedModel string
	// ChatModel 用于对话的模型。
	ChatModel string
	// Timeout 请求超时时间。
	Timeout time.Duration
	// MaxRetries 5xx 响应的最大重试次数。
	MaxRetries int
	// MaxTokens 最大生成 token 数，0 表示使用 API 默认值。
	MaxTokens int
	// Temperature 采样温度，0 表示使用 API 默认值。
	Temperature float32
	// Organization 组织 ID（可选）。
	Organization string
}

// DefaultConfig 返回默认配置。
func DefaultConfig() *Config {
	return &Config{
		EmbedModel: string(goopenai.LargeEmbedding3),
		ChatModel:  goopenai.GPT4oMini,
		Timeout:    120 * time.Second,
		MaxRetries: 3,
	}
}

// Provider OpenAI 供应商实现。
type Provider struct {
	config *Config
	client *goopenai.Client
}

// NewProvider 从配置 map 创建 OpenAI 供应商。
// "model" 同时作为 embedding 与 chat 模型的覆盖值，"embed_model" / "chat_model" 优先。
func NewProvider(configMap map[string]any) (llm.Provider, error) {
	cfg := DefaultConfig()

	cfg.BaseURL = llm.ConfigString(configMap, "base_url")
	cfg.APIKey = llm.ConfigString(configMap, "api_key")
	cfg.Organization = llm.ConfigString(configMap, "organization")
	if m := llm.ConfigString(configMap, "model"); m != "" {
		if isEmbeddingModel(m) {
			cfg.EmbedModel = m
		} else {
			cfg.ChatModel = m
		}
	}
	if m := llm.ConfigString(configMap, "embed_model"); m != "" {
		cfg.EmbedModel = m
	}
	if m := llm.ConfigString(configMap, "chat_model"); m != "" {
		cfg.ChatModel = m
	}
	if v := llm.ConfigDuration(configMap, "timeout"); v > 0 {
		cfg.Timeout = v
	}
	if v, ok := configMap["max_retries"].(int); ok && v >= 0 {
		cfg.MaxRetries = v
	}
	cfg.MaxTokens = llm.ConfigInt(configMap, "max_tokens")
	cfg.Temperature = float32(llm.ConfigFloat(configMap, "temperature"))

	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: api_key 是必需的")
	}

	return NewProviderWithConfig(cfg), nil
}

// NewProviderWithConfig 使用结构化配置创建 OpenAI 供应商。
// 请求经由共享的 httpclient 发出，以获得 5xx 重试和 trace 头注入。
func NewProviderWithConfig(cfg *Config) *Provider {
	clientConfig := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	clientConfig.OrgID = cfg.Organization
	clientConfig.HTTPClient = httpclient.NewClient(cfg.Timeout, cfg.MaxRetries)

	return &Provider{
		config: cfg,
		client: goopenai.NewClientWithConfig(clientConfig),
	}
}

// Name 返回供应商名称。
func (p *Provider) Name() string {
	return ProviderName
}

// Embed 为多个文本生成向量嵌入，结果按输入顺序排列。
func (p *Provider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := p.client.CreateEmbeddings(ctx, goopenai.EmbeddingRequestStrings{
		Input: texts,
		Model: goopenai.EmbeddingModel(p.config.EmbedModel),
	})
	if err != nil {
		return nil, fmt.Errorf("openai embeddings: %w", translateError(err))
	}

	embeddings := make([][]float32, len(texts))
	for _, data := range resp.Data {
		if data.Index >= 0 && data.Index < len(embeddings) {
			embeddings[data.Index] = data.Embedding
		}
	}
	for i, e := range embeddings {
		if e == nil {
			return nil, fmt.Errorf("openai embeddings: missing vector for input %d", i)
		}
	}
	return embeddings, nil
}

// EmbedSingle 为单个文本生成向量嵌入。
func (p *Provider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := p.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

// Chat 进行多轮对话。
func (p *Provider) Chat(ctx context.Context, messages []llm.Message) (*llm.GenerateResponse, error) {
	msgs := make([]goopenai.ChatCompletionMessage, len(messages))
	for i, msg := range messages {
		msgs[i] = goopenai.ChatCompletionMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		}
	}

	start := time.Now()
	resp, err := p.client.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model:       p.config.ChatModel,
		Messages:    msgs,
		MaxTokens:   p.config.MaxTokens,
		Temperature: p.config.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("openai chat: %w", translateError(err))
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("openai chat: 未返回响应内容")
	}

	return &llm.GenerateResponse{
		Content: resp.Choices[0].Message.Content,
		Model:   resp.Model,
		Usage: &llm.TokenUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
		Latency: time.Since(start),
	}, nil
}

// Generate 根据提示生成文本。
func (p *Provider) Generate(ctx context.Context, prompt string, systemPrompt string) (*llm.GenerateResponse, error) {
	messages := make([]llm.Message, 0, 2)
	if systemPrompt != "" {
		messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: systemPrompt})
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: prompt})
	return p.Chat(ctx, messages)
}

// translateError 将 go-openai 的错误转换为 httpclient.StatusError，便于统一判断是否可重试。
func translateError(err error) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode > 0 {
		return &httpclient.StatusError{StatusCode: apiErr.HTTPStatusCode, Body: apiErr.Message}
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode > 0 {
		return &httpclient.StatusError{StatusCode: reqErr.HTTPStatusCode, Body: string(reqErr.Body)}
	}
	return err
}

func isEmbeddingModel(model string) bool {
	switch goopenai.EmbeddingModel(model) {
	case goopenai.AdaEmbeddingV2, goopenai.SmallEmbedding3, goopenai.LargeEmbedding3:
		return true
	}
	return false
}

var _ llm.Provider = (*Provider)(nil)
