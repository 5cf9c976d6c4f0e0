// Package clova 提供 NAVER CLOVA Studio 供应商实现（文段切分、向量化、对话）。
package clova

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kart-io/logger"
	"golang.org/x/time/rate"

	"github.com/kart-io/sentinel-advisor/pkg/llm"
	"github.com/kart-io/sentinel-advisor/pkg/utils/httpclient"
	"github.com/kart-io/sentinel-advisor/pkg/utils/json"
)

// ProviderName 是 CLOVA 供应商的名称标识符。
const ProviderName = "clova"

const (
	headerGatewayKeyID = "X-NCP-APIGW-API-KEY-ID"
	headerAPIKey       = "X-NCP-APIGW-API-KEY"

	pathSegmentation = "/clovastudio/v1/segmentation"
	pathEmbedding    = "/clovastudio/v1/embedding"
	pathChat         = "/clovastudio/v1/chat/"
)

func init() {
	llm.RegisterProvider(ProviderName, NewProvider)
}

// Config CLOVA 供应商配置。
type Config struct {
	// BaseURL API 网关地址。
	BaseURL string
	// APIKey 对应 X-NCP-APIGW-API-KEY。
	APIKey string
	// GatewayKey 对应 X-NCP-APIGW-API-KEY-ID。
	GatewayKey string
	// ChatModel 对话模型 ID。
	ChatModel string
	// MaxTokens 单次生成的最大 token 数。
	MaxTokens int
	// SegmentAppID 文段切分应用 ID。
	SegmentAppID string
	// EmbeddingAppID 向量化应用 ID。
	EmbeddingAppID string
	// EmbeddingModel 向量化模型。
	EmbeddingModel string
	// SegCount / MinSize / MaxSize 文段切分参数。
	SegCount int
	MinSize  int
	MaxSize  int
	// Timeout 请求超时时间。
	Timeout time.Duration
	// MaxRetries 5xx 响应的最大重试次数。
	MaxRetries int
	// RequestsPerSecond 客户端限流，0 表示不限流。
	RequestsPerSecond float64
}

// DefaultConfig 返回默认配置。
func DefaultConfig() *Config {
	return &Config{
		BaseURL:           "https://api-gateway-kr-northwest-1.naver.com",
		ChatModel:         "hyperclova-x",
		MaxTokens:         512,
		EmbeddingModel:    "clir-emb-dolphin",
		SegCount:          5,
		MinSize:           200,
		MaxSize:           500,
		Timeout:           120 * time.Second,
		MaxRetries:        3,
		RequestsPerSecond: 5,
	}
}

// Provider CLOVA Studio 供应商实现。
type Provider struct {
	config  *Config
	client  *httpclient.Client
	limiter *rate.Limiter
}

// NewProvider 从配置 map 创建 CLOVA 供应商。
func NewProvider(configMap map[string]any) (llm.Provider, error) {
	cfg := DefaultConfig()

	if v := llm.ConfigString(configMap, "base_url"); v != "" {
		cfg.BaseURL = v
	}
	cfg.APIKey = llm.ConfigString(configMap, "api_key")
	cfg.GatewayKey = llm.ConfigString(configMap, "gateway_key")
	cfg.SegmentAppID = llm.ConfigString(configMap, "segment_app_id")
	cfg.EmbeddingAppID = llm.ConfigString(configMap, "embedding_app_id")
	if v := llm.ConfigString(configMap, "model"); v != "" {
		cfg.ChatModel = v
	}
	if v := llm.ConfigString(configMap, "embedding_model"); v != "" {
		cfg.EmbeddingModel = v
	}
	if v := llm.ConfigInt(configMap, "max_tokens"); v > 0 {
		cfg.MaxTokens = v
	}
	if v := llm.ConfigDuration(configMap, "timeout"); v > 0 {
		cfg.Timeout = v
	}
	if v, ok := configMap["max_retries"].(int); ok && v >= 0 {
		cfg.MaxRetries = v
	}
	if _, ok := configMap["requests_per_second"]; ok {
		cfg.RequestsPerSecond = llm.ConfigFloat(configMap, "requests_per_second")
	}

	if cfg.APIKey == "" {
		return nil, errors.New("clova: api_key 是必需的")
	}
	return NewProviderWithConfig(cfg), nil
}

// NewProviderWithConfig 使用结构化配置创建 CLOVA 供应商。
func NewProviderWithConfig(cfg *Config) *Provider {
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return &Provider{
		config:  cfg,
		client:  httpclient.NewClient(cfg.Timeout, cfg.MaxRetries),
		limiter: limiter,
	}
}

// Name 返回供应商名称。
func (p *Provider) Name() string {
	return ProviderName
}

func (p *Provider) post(ctx context.Context, path string, payload, out interface{}) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}
	headers := map[string]string{headerAPIKey: p.config.APIKey}
	if p.config.GatewayKey != "" {
		headers[headerGatewayKeyID] = p.config.GatewayKey
	}
	return p.client.PostJSON(ctx, strings.TrimRight(p.config.BaseURL, "/")+path, headers, payload, out)
}

type segmentationRequest struct {
	AppID              string `json:"appId"`
	Text               string `json:"text"`
	SegCnt             int    `json:"segCnt"`
	PostProcessMinSize int    `json:"postProcessMinSize"`
	PostProcessMaxSize int    `json:"postProcessMaxSize"`
}

type segmentationResponse struct {
	Segments []json.RawMessage `json:"segments"`
	Result   struct {
		TopicSeg [][]string `json:"topicSeg"`
	} `json:"result"`
}

// Segment 调用文段切分 API。每个段落可能是字符串，也可能是句子数组（拼接为一段）。
func (p *Provider) Segment(ctx context.Context, text string) ([]string, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	var resp segmentationResponse
	err := p.post(ctx, pathSegmentation, segmentationRequest{
		AppID:              p.config.SegmentAppID,
		Text:               text,
		SegCnt:             p.config.SegCount,
		PostProcessMinSize: p.config.MinSize,
		PostProcessMaxSize: p.config.MaxSize,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("clova segmentation: %w", err)
	}

	segments := make([]string, 0, len(resp.Segments))
	for _, raw := range resp.Segments {
		seg, err := decodeSegment(raw)
		if err != nil {
			return nil, fmt.Errorf("clova segmentation: %w", err)
		}
		if seg != "" {
			segments = append(segments, seg)
		}
	}
	if len(segments) == 0 {
		for _, sentences := range resp.Result.TopicSeg {
			if seg := strings.TrimSpace(strings.Join(sentences, " ")); seg != "" {
				segments = append(segments, seg)
			}
		}
	}
	return segments, nil
}

func decodeSegment(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s), nil
	}
	var parts []string
	if err := json.Unmarshal(raw, &parts); err != nil {
		return "", fmt.Errorf("unexpected segment %s", string(raw))
	}
	return strings.TrimSpace(strings.Join(parts, " ")), nil
}

type embeddingRequest struct {
	AppID string   `json:"appId"`
	Texts []string `json:"texts"`
	Model string   `json:"model"`
}

type embeddingResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed 为多个文本生成向量嵌入。
func (p *Provider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var resp embeddingResponse
	err := p.post(ctx, pathEmbedding, embeddingRequest{
		AppID: p.config.EmbeddingAppID,
		Texts: texts,
		Model: p.config.EmbeddingModel,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("clova embedding: %w", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("clova embedding: expected %d vectors, got %d", len(texts), len(resp.Embeddings))
	}
	return resp.Embeddings, nil
}

// EmbedSingle 为单个文本生成向量嵌入。
func (p *Provider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := p.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

type chatRequest struct {
	Prompt    string `json:"prompt"`
	MaxTokens int    `json:"maxTokens"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Chat 将多轮消息拼成单个 prompt 后调用对话 API。
func (p *Provider) Chat(ctx context.Context, messages []llm.Message) (*llm.GenerateResponse, error) {
	var b strings.Builder
	for i, msg := range messages {
		if i > 0 {
			b.WriteString("\n")
		}
		switch msg.Role {
		case llm.RoleSystem:
			b.WriteString(msg.Content)
		case llm.RoleAssistant:
			b.WriteString("Assistant: ")
			b.WriteString(msg.Content)
		default:
			if len(messages) == 1 {
				b.WriteString(msg.Content)
				continue
			}
			b.WriteString("Human: ")
			b.WriteString(msg.Content)
		}
	}
	return p.complete(ctx, b.String())
}

// Generate 根据提示生成文本，系统提示放在 prompt 之前。
func (p *Provider) Generate(ctx context.Context, prompt string, systemPrompt string) (*llm.GenerateResponse, error) {
	if systemPrompt != "" {
		prompt = systemPrompt + "\n\n" + prompt
	}
	return p.complete(ctx, prompt)
}

func (p *Provider) complete(ctx context.Context, prompt string) (*llm.GenerateResponse, error) {
	start := time.Now()
	var resp chatResponse
	err := p.post(ctx, pathChat+url.PathEscape(p.config.ChatModel), chatRequest{
		Prompt:    prompt,
		MaxTokens: p.config.MaxTokens,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("clova chat: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("clova chat: 未返回响应内容")
	}

	latency := time.Since(start)
	logger.Debugw("clova chat completed", "model", p.config.ChatModel, "latency", latency.String())
	return &llm.GenerateResponse{
		Content: resp.Choices[0].Message.Content,
		Model:   p.config.ChatModel,
		Latency: latency,
	}, nil
}

var (
	_ llm.Provider             = (*Provider)(nil)
	_ llm.SegmentationProvider = (*Provider)(nil)
)
