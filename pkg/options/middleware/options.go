// Package middleware provides middleware configuration options.
package middleware

import (
	"fmt"
	"slices"

	"github.com/spf13/pflag"

	"github.com/kart-io/sentinel-advisor/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// ConfigError 表示配置错误。
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("config error in field %q: %s", e.Field, e.Message)
	}
	return e.Message
}

// 中间件名称常量。
const (
	MiddlewareRecovery  = "recovery"
	MiddlewareRequestID = "request-id"
	MiddlewareLogger    = "logger"
	MiddlewareTracing   = "tracing"
	MiddlewareCORS      = "cors"
	MiddlewareRateLimit = "rate-limit"
	MiddlewareTimeout   = "timeout"
)

// knownMiddleware 是默认顺序。
var knownMiddleware = []string{
	MiddlewareRecovery,
	MiddlewareRequestID,
	MiddlewareLogger,
	MiddlewareTracing,
	MiddlewareCORS,
	MiddlewareRateLimit,
	MiddlewareTimeout,
}

// Options 中间件配置。Middleware 决定启用哪些中间件以及应用顺序。
type Options struct {
	// Middleware 指定中间件的应用顺序，为空时使用默认顺序。
	Middleware []string `json:"enabled" mapstructure:"enabled"`

	Recovery  *RecoveryOptions  `json:"recovery" mapstructure:"recovery"`
	RequestID *RequestIDOptions `json:"request-id" mapstructure:"request-id"`
	Logger    *LoggerOptions    `json:"logger" mapstructure:"logger"`
	CORS      *CORSOptions      `json:"cors" mapstructure:"cors"`
	RateLimit *RateLimitOptions `json:"rate-limit" mapstructure:"rate-limit"`
	Timeout   *TimeoutOptions   `json:"timeout" mapstructure:"timeout"`
}

// NewOptions 创建默认中间件选项。
// 默认启用 recovery, request-id, logger, tracing, cors, timeout。
func NewOptions() *Options {
	return &Options{
		Middleware: []string{
			MiddlewareRecovery,
			MiddlewareRequestID,
			MiddlewareLogger,
			MiddlewareTracing,
			MiddlewareCORS,
			MiddlewareTimeout,
		},
		Recovery:  NewRecoveryOptions(),
		RequestID: NewRequestIDOptions(),
		Logger:    NewLoggerOptions(),
		CORS:      NewCORSOptions(),
		RateLimit: NewRateLimitOptions(),
		Timeout:   NewTimeoutOptions(),
	}
}

// Enabled reports whether the named middleware is enabled.
func (o *Options) Enabled(name string) bool {
	return slices.Contains(o.Middleware, name)
}

// Order returns the enabled middleware in application order.
func (o *Options) Order() []string {
	if len(o.Middleware) == 0 {
		return knownMiddleware
	}
	return o.Middleware
}

// AddFlags adds flags for all middleware options.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringSliceVar(&o.Middleware, options.Join(prefixes...)+"middleware.enabled", o.Middleware,
		"Ordered list of enabled middleware (recovery, request-id, logger, tracing, cors, rate-limit, timeout).")
	o.Recovery.AddFlags(fs, prefixes...)
	o.RequestID.AddFlags(fs, prefixes...)
	o.Logger.AddFlags(fs, prefixes...)
	o.CORS.AddFlags(fs, prefixes...)
	o.RateLimit.AddFlags(fs, prefixes...)
	o.Timeout.AddFlags(fs, prefixes...)
}

// Validate 验证所有中间件配置。
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	for _, name := range o.Middleware {
		if !slices.Contains(knownMiddleware, name) {
			errs = append(errs, &ConfigError{Field: "middleware", Message: fmt.Sprintf("unknown middleware %q", name)})
		}
	}

	groups := map[string]options.IOptions{
		MiddlewareRecovery:  o.Recovery,
		MiddlewareRequestID: o.RequestID,
		MiddlewareLogger:    o.Logger,
		MiddlewareCORS:      o.CORS,
		MiddlewareRateLimit: o.RateLimit,
		MiddlewareTimeout:   o.Timeout,
	}
	for name, cfg := range groups {
		if !o.Enabled(name) {
			continue
		}
		for _, err := range cfg.Validate() {
			errs = append(errs, &ConfigError{Field: name, Message: err.Error()})
		}
	}
	return errs
}
