package middleware

import (
	"errors"

	"github.com/spf13/pflag"

	"github.com/kart-io/sentinel-advisor/pkg/options"
)

// RequestIDOptions defines request ID middleware options.
type RequestIDOptions struct {
	Header string `json:"header" mapstructure:"header"`
	// GeneratorType 指定 ID 生成器类型
	//   - "random" 或 "hex": 加密随机十六进制(默认,32字符)
	//   - "ulid": ULID(26字符,时间可排序)
	GeneratorType string `json:"generator-type" mapstructure:"generator-type"`
}

// NewRequestIDOptions creates default request ID middleware options.
func NewRequestIDOptions() *RequestIDOptions {
	return &RequestIDOptions{
		Header:        "X-Request-ID",
		GeneratorType: "random",
	}
}

// AddFlags adds flags for request ID options to the specified FlagSet.
func (o *RequestIDOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.Header, options.Join(prefixes...)+"middleware.request-id.header", o.Header, "Request ID header name.")
	fs.StringVar(&o.GeneratorType, options.Join(prefixes...)+"middleware.request-id.generator-type", o.GeneratorType, "ID generator type: random/hex (32 chars) or ulid (26 chars, sortable).")
}

// Validate validates the request ID options.
func (o *RequestIDOptions) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.Header == "" {
		errs = append(errs, errors.New("request ID header name is required"))
	}
	switch o.GeneratorType {
	case "random", "hex", "ulid", "":
	default:
		errs = append(errs, errors.New("invalid generator type: must be 'random', 'hex', or 'ulid'"))
	}
	return errs
}
