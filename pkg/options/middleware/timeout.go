package middleware

import (
	"errors"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/sentinel-advisor/pkg/options"
)

// TimeoutOptions defines timeout middleware options.
type TimeoutOptions struct {
	Timeout   time.Duration `json:"timeout" mapstructure:"timeout"`
	SkipPaths []string      `json:"skip-paths" mapstructure:"skip-paths"`
}

// NewTimeoutOptions creates default timeout options. Ingestion embeds every
// chunk before responding, so the budget is generous.
func NewTimeoutOptions() *TimeoutOptions {
	return &TimeoutOptions{
		Timeout:   150 * time.Second,
		SkipPaths: []string{},
	}
}

// AddFlags adds flags for timeout options to the specified FlagSet.
func (o *TimeoutOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "middleware.timeout."
	fs.DurationVar(&o.Timeout, p+"timeout", o.Timeout, "Request processing timeout.")
	fs.StringSliceVar(&o.SkipPaths, p+"skip-paths", o.SkipPaths, "Paths to skip the timeout.")
}

// Validate validates the timeout options.
func (o *TimeoutOptions) Validate() []error {
	if o == nil {
		return nil
	}
	if o.Timeout <= 0 {
		return []error{errors.New("timeout must be positive")}
	}
	return nil
}
