package middleware

import (
	"errors"

	"github.com/spf13/pflag"

	"github.com/kart-io/sentinel-advisor/pkg/options"
)

// CORSOptions defines CORS middleware options.
type CORSOptions struct {
	AllowOrigins     []string `json:"allow-origins" mapstructure:"allow-origins"`
	AllowMethods     []string `json:"allow-methods" mapstructure:"allow-methods"`
	AllowHeaders     []string `json:"allow-headers" mapstructure:"allow-headers"`
	ExposeHeaders    []string `json:"expose-headers" mapstructure:"expose-headers"`
	AllowCredentials bool     `json:"allow-credentials" mapstructure:"allow-credentials"`
	MaxAge           int      `json:"max-age" mapstructure:"max-age"`
}

// NewCORSOptions creates default CORS options. The browser frontend is served
// from a different origin during development, so every origin is allowed.
func NewCORSOptions() *CORSOptions {
	return &CORSOptions{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Accept-Language", "X-Request-ID"},
		ExposeHeaders:    []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           86400,
	}
}

// AddFlags adds flags for CORS options to the specified FlagSet.
func (o *CORSOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "middleware.cors."
	fs.StringSliceVar(&o.AllowOrigins, p+"allow-origins", o.AllowOrigins, "CORS allowed origins.")
	fs.StringSliceVar(&o.AllowMethods, p+"allow-methods", o.AllowMethods, "CORS allowed methods.")
	fs.StringSliceVar(&o.AllowHeaders, p+"allow-headers", o.AllowHeaders, "CORS allowed headers.")
	fs.StringSliceVar(&o.ExposeHeaders, p+"expose-headers", o.ExposeHeaders, "CORS exposed headers.")
	fs.BoolVar(&o.AllowCredentials, p+"allow-credentials", o.AllowCredentials, "CORS allow credentials.")
	fs.IntVar(&o.MaxAge, p+"max-age", o.MaxAge, "CORS preflight max age.")
}

// Validate validates the CORS options.
func (o *CORSOptions) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if len(o.AllowOrigins) == 0 {
		errs = append(errs, errors.New("CORS: AllowOrigins must be explicitly configured, empty list not allowed"))
	}
	return errs
}
