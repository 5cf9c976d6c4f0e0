// Package options contains flags and options for initializing the advisor server.
package options

import (
	"fmt"

	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	advisorsvc "github.com/kart-io/sentinel-advisor/internal/advisor"
	"github.com/kart-io/sentinel-advisor/pkg/infra/app"
	genericoptions "github.com/kart-io/sentinel-advisor/pkg/options"
	advisoropts "github.com/kart-io/sentinel-advisor/pkg/options/advisor"
	llmopts "github.com/kart-io/sentinel-advisor/pkg/options/llm"
	logopts "github.com/kart-io/sentinel-advisor/pkg/options/logger"
	middlewareopts "github.com/kart-io/sentinel-advisor/pkg/options/middleware"
	milvusopts "github.com/kart-io/sentinel-advisor/pkg/options/milvus"
	redisopts "github.com/kart-io/sentinel-advisor/pkg/options/redis"
	httpopts "github.com/kart-io/sentinel-advisor/pkg/options/server/http"
	tracingopts "github.com/kart-io/sentinel-advisor/pkg/options/tracing"
)

var _ app.CliOptions = (*ServerOptions)(nil)

// ServerOptions contains the configuration options for the server.
type ServerOptions struct {
	// HTTPOptions contains HTTP server configuration.
	HTTPOptions *httpopts.Options `json:"http" mapstructure:"http"`

	// LogOptions contains logger configuration.
	LogOptions *logopts.Options `json:"log" mapstructure:"log"`

	// MiddlewareOptions contains the HTTP middleware chain configuration.
	MiddlewareOptions *middlewareopts.Options `json:"middleware" mapstructure:"middleware"`

	// TracingOptions contains OpenTelemetry configuration.
	TracingOptions *tracingopts.Options `json:"tracing" mapstructure:"tracing"`

	// AdvisorOptions contains ingest and recommendation configuration.
	AdvisorOptions *advisoropts.Options `json:"advisor" mapstructure:"advisor"`

	// EmbeddingOptions contains embedding provider configuration.
	EmbeddingOptions *llmopts.ProviderOptions `json:"embedding" mapstructure:"embedding"`

	// ChatOptions contains chat provider configuration.
	ChatOptions *llmopts.ProviderOptions `json:"chat" mapstructure:"chat"`

	// ClovaOptions contains CLOVA Studio gateway configuration.
	ClovaOptions *llmopts.ClovaOptions `json:"clova" mapstructure:"clova"`

	// MilvusOptions is used when advisor.index-backend is milvus.
	MilvusOptions *milvusopts.Options `json:"milvus" mapstructure:"milvus"`

	// RedisOptions backs the embedding and answer caches.
	RedisOptions *redisopts.Options `json:"redis" mapstructure:"redis"`
}

// NewServerOptions creates a ServerOptions instance with default values.
func NewServerOptions() *ServerOptions {
	tracing := tracingopts.NewOptions()
	tracing.ServiceName = advisorsvc.Name

	return &ServerOptions{
		HTTPOptions:       httpopts.NewOptions(),
		LogOptions:        logopts.NewOptions(),
		MiddlewareOptions: middlewareopts.NewOptions(),
		TracingOptions:    tracing,
		AdvisorOptions:    advisoropts.NewOptions(),
		EmbeddingOptions:  llmopts.NewEmbeddingOptions(),
		ChatOptions:       llmopts.NewChatOptions(),
		ClovaOptions:      llmopts.NewClovaOptions(),
		MilvusOptions:     milvusopts.NewOptions(),
		RedisOptions:      redisopts.NewOptions(),
	}
}

// Flags returns flags for a specific server by section name.
func (o *ServerOptions) Flags() (fss app.NamedFlagSets) {
	o.HTTPOptions.AddFlags(fss.FlagSet("http"))
	o.LogOptions.AddFlags(fss.FlagSet("log"))
	o.MiddlewareOptions.AddFlags(fss.FlagSet("middleware"))
	o.TracingOptions.AddFlags(fss.FlagSet("tracing"))
	o.AdvisorOptions.AddFlags(fss.FlagSet("advisor"))
	o.EmbeddingOptions.AddFlags(fss.FlagSet("embedding"))
	o.ChatOptions.AddFlags(fss.FlagSet("chat"))
	o.ClovaOptions.AddFlags(fss.FlagSet("clova"))
	o.MilvusOptions.AddFlags(fss.FlagSet("milvus"))
	o.RedisOptions.AddFlags(fss.FlagSet("redis"))
	return fss
}

// Complete completes all the required options.
func (o *ServerOptions) Complete() error {
	if err := o.EmbeddingOptions.Complete(); err != nil {
		return fmt.Errorf("embedding: %w", err)
	}
	if err := o.ChatOptions.Complete(); err != nil {
		return fmt.Errorf("chat: %w", err)
	}
	if err := o.ClovaOptions.Complete(); err != nil {
		return fmt.Errorf("clova: %w", err)
	}
	if err := o.TracingOptions.Complete(); err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	return nil
}

// Validate checks whether the options in ServerOptions are valid.
func (o *ServerOptions) Validate() error {
	groups := []genericoptions.IOptions{
		o.HTTPOptions,
		o.LogOptions,
		o.MiddlewareOptions,
		o.TracingOptions,
		o.AdvisorOptions,
		o.EmbeddingOptions,
		o.ChatOptions,
		o.ClovaOptions,
		o.RedisOptions,
	}
	if o.AdvisorOptions.IndexBackend == advisoropts.BackendMilvus {
		groups = append(groups, o.MilvusOptions)
	}

	return utilerrors.NewAggregate(genericoptions.ValidateAll(groups...))
}

// Config builds an advisorsvc.Config based on ServerOptions.
func (o *ServerOptions) Config() (*advisorsvc.Config, error) {
	return &advisorsvc.Config{
		HTTPOptions:       o.HTTPOptions,
		LogOptions:        o.LogOptions,
		MiddlewareOptions: o.MiddlewareOptions,
		TracingOptions:    o.TracingOptions,
		AdvisorOptions:    o.AdvisorOptions,
		EmbeddingOptions:  o.EmbeddingOptions,
		ChatOptions:       o.ChatOptions,
		ClovaOptions:      o.ClovaOptions,
		MilvusOptions:     o.MilvusOptions,
		RedisOptions:      o.RedisOptions,
	}, nil
}
