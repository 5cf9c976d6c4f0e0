package middleware

import (
	"errors"

	"github.com/spf13/pflag"

	"github.com/kart-io/sentinel-advisor/pkg/options"
)

// RecoveryOptions 控制 panic 恢复后返回给前端的内容。
// 堆栈总是写入日志，与这里的开关无关。
type RecoveryOptions struct {
	// ExposePanic 在响应消息中带上 panic 值，关闭时只返回通用错误文案。
	ExposePanic bool `json:"expose-panic" mapstructure:"expose-panic"`
	// EnableStackTrace 在响应中附带堆栈，需要同时开启 ExposePanic，生产环境忽略。
	EnableStackTrace bool `json:"enable-stack-trace" mapstructure:"enable-stack-trace"`
}

// NewRecoveryOptions 返回默认配置：不向客户端暴露 panic 细节。
func NewRecoveryOptions() *RecoveryOptions {
	return &RecoveryOptions{}
}

// AddFlags adds flags for recovery options to the specified FlagSet.
func (o *RecoveryOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "middleware.recovery."
	fs.BoolVar(&o.ExposePanic, p+"expose-panic", o.ExposePanic,
		"Include the panic value in the error message returned to clients.")
	fs.BoolVar(&o.EnableStackTrace, p+"enable-stack-trace", o.EnableStackTrace,
		"Also return the stack trace (requires expose-panic, ignored in production).")
}

// Validate validates the recovery options.
func (o *RecoveryOptions) Validate() []error {
	if o == nil {
		return nil
	}
	if o.EnableStackTrace && !o.ExposePanic {
		return []error{errors.New("enable-stack-trace requires expose-panic")}
	}
	return nil
}
