// Package llm provides LLM provider configuration options.
package llm

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/sentinel-advisor/pkg/options"
)

var (
	_ options.IOptions = (*ProviderOptions)(nil)
	_ options.IOptions = (*ClovaOptions)(nil)
)

// ProviderOptions 定义 LLM 供应商配置。
type ProviderOptions struct {
	// Provider 供应商名称（openai, clova）。
	Provider string `json:"provider" mapstructure:"provider"`

	// BaseURL API 基础地址，为空时使用供应商默认值。
	BaseURL string `json:"base-url" mapstructure:"base-url"`

	// APIKey API 密钥（OpenAI 需要）。
	APIKey string `json:"-" mapstructure:"api-key"`

	// Model 使用的模型名称。
	Model string `json:"model" mapstructure:"model"`

	// Timeout 请求超时时间。
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`

	// MaxRetries 最大重试次数。
	MaxRetries int `json:"max-retries" mapstructure:"max-retries"`

	// MaxTokens 单次生成的最大 token 数。
	MaxTokens int `json:"max-tokens" mapstructure:"max-tokens"`

	// Organization 组织 ID（OpenAI 可选）。
	Organization string `json:"organization" mapstructure:"organization"`

	// name 用于 flag 前缀（chat / embedding）。
	name string
}

// NewEmbeddingOptions 创建默认 Embedding 供应商配置。
func NewEmbeddingOptions() *ProviderOptions {
	return &ProviderOptions{
		Provider:   "openai",
		Model:      "text-embedding-3-large",
		Timeout:    60 * time.Second,
		MaxRetries: 3,
		name:       "embedding",
	}
}

// NewChatOptions 创建默认 Chat 供应商配置。
func NewChatOptions() *ProviderOptions {
	return &ProviderOptions{
		Provider:   "clova",
		Model:      "hyperclova-x",
		Timeout:    120 * time.Second,
		MaxRetries: 3,
		MaxTokens:  512,
		name:       "chat",
	}
}

// Complete 从原有环境变量补全未设置的字段。
func (o *ProviderOptions) Complete() error {
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	switch o.Provider {
	case "openai":
		if o.APIKey == "" {
			o.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	case "clova":
		if id := os.Getenv("HYPER_CLOVA_MODEL_ID"); id != "" && o.Model == "hyperclova-x" {
			o.Model = id
		}
	}
	return nil
}

// ToConfigMap 转换为配置 map，用于供应商工厂。
func (o *ProviderOptions) ToConfigMap() map[string]any {
	return map[string]any{
		"base_url":     o.BaseURL,
		"api_key":      o.APIKey,
		"model":        o.Model,
		"timeout":      o.Timeout,
		"max_retries":  o.MaxRetries,
		"max_tokens":   o.MaxTokens,
		"organization": o.Organization,
	}
}

// AddFlags adds flags for LLM provider options to the specified FlagSet.
func (o *ProviderOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + o.name + "."
	fs.StringVar(&o.Provider, p+"provider", o.Provider, "Provider name (openai, clova).")
	fs.StringVar(&o.BaseURL, p+"base-url", o.BaseURL, "API base URL, empty for the provider default.")
	fs.StringVar(&o.APIKey, p+"api-key", o.APIKey, "API key.")
	fs.StringVar(&o.Model, p+"model", o.Model, "Model name.")
	fs.DurationVar(&o.Timeout, p+"timeout", o.Timeout, "Request timeout.")
	fs.IntVar(&o.MaxRetries, p+"max-retries", o.MaxRetries, "Maximum number of retries on 5xx responses.")
	fs.IntVar(&o.MaxTokens, p+"max-tokens", o.MaxTokens, "Maximum tokens to generate (chat only).")
	fs.StringVar(&o.Organization, p+"organization", o.Organization, "Organization ID (openai, optional).")
}

// Validate validates the LLM provider options.
func (o *ProviderOptions) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	switch o.Provider {
	case "openai", "clova":
	case "":
		errs = append(errs, fmt.Errorf("%s.provider is required", o.name))
	default:
		errs = append(errs, fmt.Errorf("%s.provider %q is not supported", o.name, o.Provider))
	}
	if o.Model == "" {
		errs = append(errs, fmt.Errorf("%s.model is required", o.name))
	}
	if o.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("%s.timeout must be positive", o.name))
	}
	return errs
}

// ClovaOptions 定义 CLOVA Studio 访问配置。
type ClovaOptions struct {
	// Region API 网关区域。
	Region string `json:"region" mapstructure:"region"`

	// BaseURL 覆盖默认网关地址（测试用）。
	BaseURL string `json:"base-url" mapstructure:"base-url"`

	// APIKey 对应 X-NCP-APIGW-API-KEY。
	APIKey string `json:"-" mapstructure:"api-key"`

	// GatewayKey 对应 X-NCP-APIGW-API-KEY-ID。
	GatewayKey string `json:"-" mapstructure:"gateway-key"`

	// SegmentAppID 文段切分应用 ID。
	SegmentAppID string `json:"segment-app-id" mapstructure:"segment-app-id"`

	// EmbeddingAppID 向量化应用 ID。
	EmbeddingAppID string `json:"embedding-app-id" mapstructure:"embedding-app-id"`

	// EmbeddingModel 向量化模型。
	EmbeddingModel string `json:"embedding-model" mapstructure:"embedding-model"`

	// RequestsPerSecond 客户端限流，0 表示不限流。
	RequestsPerSecond float64 `json:"requests-per-second" mapstructure:"requests-per-second"`
}

// NewClovaOptions 创建默认 CLOVA 配置。
func NewClovaOptions() *ClovaOptions {
	return &ClovaOptions{
		Region:            "kr-northwest-1",
		EmbeddingModel:    "clir-emb-dolphin",
		RequestsPerSecond: 5,
	}
}

// Complete 从环境变量补全密钥。服务使用 NCP_* 变量，流水线使用 CLOVA_* 变量。
func (o *ClovaOptions) Complete() error {
	o.APIKey = firstNonEmpty(o.APIKey, os.Getenv("CLOVA_API_KEY"), os.Getenv("NCP_CLOVASTUDIO_API_KEY"))
	o.GatewayKey = firstNonEmpty(o.GatewayKey, os.Getenv("CLOVA_GATEWAY_KEY"), os.Getenv("NCP_APIGW_API_KEY"))
	o.SegmentAppID = firstNonEmpty(o.SegmentAppID, os.Getenv("CLOVA_SEGMENT_APP_ID"))
	o.EmbeddingAppID = firstNonEmpty(o.EmbeddingAppID, os.Getenv("CLOVA_EMBEDDING_APP_ID"))
	return nil
}

// AddFlags adds flags for CLOVA options to the specified FlagSet.
func (o *ClovaOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "clova."
	fs.StringVar(&o.Region, p+"region", o.Region, "CLOVA Studio API gateway region.")
	fs.StringVar(&o.BaseURL, p+"base-url", o.BaseURL, "Override the API gateway base URL.")
	fs.StringVar(&o.APIKey, p+"api-key", o.APIKey, "CLOVA Studio API key.")
	fs.StringVar(&o.GatewayKey, p+"gateway-key", o.GatewayKey, "API gateway key.")
	fs.StringVar(&o.SegmentAppID, p+"segment-app-id", o.SegmentAppID, "Segmentation app id.")
	fs.StringVar(&o.EmbeddingAppID, p+"embedding-app-id", o.EmbeddingAppID, "Embedding app id.")
	fs.StringVar(&o.EmbeddingModel, p+"embedding-model", o.EmbeddingModel, "Embedding model.")
	fs.Float64Var(&o.RequestsPerSecond, p+"requests-per-second", o.RequestsPerSecond, "Client side rate limit, 0 disables it.")
}

// Validate validates the CLOVA options.
func (o *ClovaOptions) Validate() []error {
	if o == nil {
		return nil
	}
	var errs []error
	if o.Region == "" && o.BaseURL == "" {
		errs = append(errs, fmt.Errorf("clova.region or clova.base-url is required"))
	}
	if o.RequestsPerSecond < 0 {
		errs = append(errs, fmt.Errorf("clova.requests-per-second must not be negative"))
	}
	return errs
}

// Endpoint returns the API gateway base URL.
func (o *ClovaOptions) Endpoint() string {
	if o.BaseURL != "" {
		return o.BaseURL
	}
	return fmt.Sprintf("https://api-gateway-%s.naver.com", o.Region)
}

// MergeInto 将 CLOVA 访问参数合并进供应商配置 map。
// 供应商自身配置的 base_url 和 api_key 优先。
func (o *ClovaOptions) MergeInto(m map[string]any) map[string]any {
	if m == nil {
		m = map[string]any{}
	}
	if s, _ := m["base_url"].(string); s == "" {
		m["base_url"] = o.Endpoint()
	}
	if s, _ := m["api_key"].(string); s == "" {
		m["api_key"] = o.APIKey
	}
	m["gateway_key"] = o.GatewayKey
	m["segment_app_id"] = o.SegmentAppID
	m["embedding_app_id"] = o.EmbeddingAppID
	m["embedding_model"] = o.EmbeddingModel
	m["requests_per_second"] = o.RequestsPerSecond
	return m
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
