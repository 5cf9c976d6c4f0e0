// Package llm 提供统一的 LLM 供应商抽象层。
// Embedding、Chat 与文段切分可以分别使用不同供应商。
package llm

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// EmbeddingProvider 定义 Embedding 供应商接口。
type EmbeddingProvider interface {
	// Embed 为多个文本生成向量嵌入，结果顺序与输入一致。
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedSingle 为单个文本生成向量嵌入。
	EmbedSingle(ctx context.Context, text string) ([]float32, error)

	// Name 返回供应商名称。
	Name() string
}

// ChatProvider 定义 Chat 供应商接口。
type ChatProvider interface {
	// Chat 进行多轮对话。
	Chat(ctx context.Context, messages []Message) (*GenerateResponse, error)

	// Generate 根据提示生成文本（单轮），systemPrompt 可为空。
	Generate(ctx context.Context, prompt string, systemPrompt string) (*GenerateResponse, error)

	// Name 返回供应商名称。
	Name() string
}

// SegmentationProvider 将长文本切分为语义段落。
type SegmentationProvider interface {
	Segment(ctx context.Context, text string) ([]string, error)
	Name() string
}

// Message 表示对话中的一条消息。
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Role 定义消息角色。
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// TokenUsage 记录一次调用的 token 消耗。
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// GenerateResponse 生成结果。
type GenerateResponse struct {
	Content string        `json:"content"`
	Model   string        `json:"model,omitempty"`
	Usage   *TokenUsage   `json:"usage,omitempty"`
	Latency time.Duration `json:"-"`
}

// Provider 同时支持 Embedding 和 Chat 的完整供应商。
type Provider interface {
	EmbeddingProvider
	ChatProvider
}

// ProviderFactory 供应商工厂函数类型。
type ProviderFactory func(config map[string]any) (Provider, error)

var registry = &providerRegistry{
	providers: make(map[string]ProviderFactory),
}

type providerRegistry struct {
	mu        sync.RWMutex
	providers map[string]ProviderFactory
}

// RegisterProvider 注册供应商工厂，通常在供应商包的 init 中调用。
func RegisterProvider(name string, factory ProviderFactory) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.providers[name] = factory
}

// NewProvider 根据名称创建供应商实例。
func NewProvider(name string, config map[string]any) (Provider, error) {
	registry.mu.RLock()
	factory, ok := registry.providers[name]
	registry.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown provider: %s", name)
	}
	return factory(config)
}

// NewEmbeddingProvider 创建 Embedding 供应商。
func NewEmbeddingProvider(name string, config map[string]any) (EmbeddingProvider, error) {
	return NewProvider(name, config)
}

// NewChatProvider 创建 Chat 供应商。
func NewChatProvider(name string, config map[string]any) (ChatProvider, error) {
	return NewProvider(name, config)
}

// NewSegmentationProvider 创建文段切分供应商，供应商必须实现 SegmentationProvider。
func NewSegmentationProvider(name string, config map[string]any) (SegmentationProvider, error) {
	p, err := NewProvider(name, config)
	if err != nil {
		return nil, err
	}
	seg, ok := p.(SegmentationProvider)
	if !ok {
		return nil, fmt.Errorf("provider %s does not support segmentation", name)
	}
	return seg, nil
}

// ListProviders 列出所有已注册的供应商名称（已排序）。
func ListProviders() []string {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	names := make([]string, 0, len(registry.providers))
	for name := range registry.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ConfigString 读取字符串配置项。
func ConfigString(config map[string]any, key string) string {
	if v, ok := config[key].(string); ok {
		return v
	}
	return ""
}

// ConfigInt 读取整数配置项。
func ConfigInt(config map[string]any, key string) int {
	switch v := config[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

// ConfigFloat 读取浮点配置项。
func ConfigFloat(config map[string]any, key string) float64 {
	switch v := config[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}

// ConfigDuration 读取时长配置项，支持 time.Duration 与字符串形式。
func ConfigDuration(config map[string]any, key string) time.Duration {
	switch v := config[key].(type) {
	case time.Duration:
		return v
	case string:
		d, _ := time.ParseDuration(v)
		return d
	}
	return 0
}
