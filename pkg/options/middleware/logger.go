package middleware

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/sentinel-advisor/pkg/options"
)

// LoggerOptions 控制访问日志。
type LoggerOptions struct {
	// SkipPaths 不记录访问日志的路径，需以 "/" 开头。
	SkipPaths []string `json:"skip-paths" mapstructure:"skip-paths"`
	// SlowThreshold 超过该耗时的请求按 warn 记录并标记 slow，0 表示不判断。
	SlowThreshold time.Duration `json:"slow-threshold" mapstructure:"slow-threshold"`
}

// NewLoggerOptions 返回默认配置。建议生成依赖一次 embedding 与一次对话补全，
// 正常耗时在数秒内。
func NewLoggerOptions() *LoggerOptions {
	return &LoggerOptions{
		SkipPaths:     []string{"/health", "/metrics"},
		SlowThreshold: 20 * time.Second,
	}
}

// AddFlags adds flags for logger options to the specified FlagSet.
func (o *LoggerOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "middleware.logger."
	fs.StringSliceVar(&o.SkipPaths, p+"skip-paths", o.SkipPaths, "Paths excluded from the access log.")
	fs.DurationVar(&o.SlowThreshold, p+"slow-threshold", o.SlowThreshold,
		"Requests slower than this are logged at warn level, 0 disables the check.")
}

// Validate validates the logger options.
func (o *LoggerOptions) Validate() []error {
	if o == nil {
		return nil
	}
	var errs []error
	for _, p := range o.SkipPaths {
		if !strings.HasPrefix(p, "/") {
			errs = append(errs, fmt.Errorf("skip path %q must start with /", p))
		}
	}
	if o.SlowThreshold < 0 {
		errs = append(errs, fmt.Errorf("slow-threshold must not be negative"))
	}
	return errs
}
