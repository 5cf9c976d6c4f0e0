package middleware

import (
	"errors"

	"github.com/spf13/pflag"

	"github.com/kart-io/sentinel-advisor/pkg/options"
)

// RateLimitOptions 定义限流中间件的配置选项（按客户端 IP 的令牌桶）。
type RateLimitOptions struct {
	// RequestsPerSecond 每个客户端每秒补充的令牌数。
	RequestsPerSecond float64 `json:"requests-per-second" mapstructure:"requests-per-second"`

	// Burst 令牌桶容量。
	Burst int `json:"burst" mapstructure:"burst"`

	// SkipPaths 是跳过限流的路径列表。
	SkipPaths []string `json:"skip-paths" mapstructure:"skip-paths"`
}

// NewRateLimitOptions 创建默认的限流选项。
func NewRateLimitOptions() *RateLimitOptions {
	return &RateLimitOptions{
		RequestsPerSecond: 5,
		Burst:             20,
		SkipPaths:         []string{"/health", "/metrics"},
	}
}

// AddFlags 为限流选项添加标志到指定的 FlagSet。
func (o *RateLimitOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "middleware.rate-limit."
	fs.Float64Var(&o.RequestsPerSecond, p+"requests-per-second", o.RequestsPerSecond, "Tokens added per second for each client.")
	fs.IntVar(&o.Burst, p+"burst", o.Burst, "Maximum burst size for each client.")
	fs.StringSliceVar(&o.SkipPaths, p+"skip-paths", o.SkipPaths, "List of paths to skip rate limiting.")
}

// Validate 验证限流选项。
func (o *RateLimitOptions) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.RequestsPerSecond <= 0 {
		errs = append(errs, errors.New("requests-per-second must be positive"))
	}
	if o.Burst <= 0 {
		errs = append(errs, errors.New("burst must be positive"))
	}
	return errs
}
