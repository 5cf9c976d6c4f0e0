// Package advisor provides configuration options for the investment advisor service.
package advisor

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/sentinel-advisor/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Index backends.
const (
	BackendMemory = "memory"
	BackendMilvus = "milvus"
)

// MaxMilvusChunkSize is the largest chunk size whose text still fits a Milvus VARCHAR field.
const MaxMilvusChunkSize = 65535 / 4

// DefaultQueryTemplate frames the user's question with their risk profile.
// Arguments: risk level label, investment horizon.
const DefaultQueryTemplate = "You are a %s investor and your investment horizon is %d years.\n"

// DefaultPromptTemplate is the stuff-style prompt. {{context}} receives every
// retrieved chunk, {{question}} the framed question.
const DefaultPromptTemplate = `Use the following pieces of context to answer the question at the end. If you don't know the answer, just say that you don't know, don't try to make up an answer.

{{context}}

Question: {{question}}
Helpful Answer:`

// Options contains advisor-specific configuration.
type Options struct {
	// ChunkSize is the maximum size of text chunks, in characters.
	ChunkSize int `json:"chunk-size" mapstructure:"chunk-size"`

	// ChunkOverlap is the overlap between neighbouring chunks, in characters.
	ChunkOverlap int `json:"chunk-overlap" mapstructure:"chunk-overlap"`

	// TopK is the number of chunks retrieved for a recommendation.
	TopK int `json:"top-k" mapstructure:"top-k"`

	// EmbedBatchSize is the number of chunks sent per embedding request.
	EmbedBatchSize int `json:"embed-batch-size" mapstructure:"embed-batch-size"`

	// IndexBackend selects where ingested vectors live (memory, milvus).
	IndexBackend string `json:"index-backend" mapstructure:"index-backend"`

	// CollectionPrefix names the per-ingest Milvus collections.
	CollectionPrefix string `json:"collection-prefix" mapstructure:"collection-prefix"`

	// FetchConcurrency bounds concurrent URL downloads during ingest.
	FetchConcurrency int `json:"fetch-concurrency" mapstructure:"fetch-concurrency"`

	// RequestTimeout bounds a single ingest or recommend call.
	RequestTimeout time.Duration `json:"request-timeout" mapstructure:"request-timeout"`

	// ReturnSources adds retrieved sources to /recommend responses.
	ReturnSources bool `json:"return-sources" mapstructure:"return-sources"`

	// AnswerCacheTTL is how long recommendations are cached in Redis; 0 disables the cache.
	AnswerCacheTTL time.Duration `json:"answer-cache-ttl" mapstructure:"answer-cache-ttl"`

	// QueryTemplate and PromptTemplate shape the retrieval query and the LLM prompt.
	QueryTemplate  string `json:"query-template" mapstructure:"query-template"`
	PromptTemplate string `json:"prompt-template" mapstructure:"prompt-template"`
}

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	return &Options{
		ChunkSize:        1000,
		ChunkOverlap:     200,
		TopK:             4,
		EmbedBatchSize:   16,
		IndexBackend:     BackendMemory,
		CollectionPrefix: "advisor",
		FetchConcurrency: 4,
		RequestTimeout:   60 * time.Second,
		AnswerCacheTTL:   10 * time.Minute,
		QueryTemplate:    DefaultQueryTemplate,
		PromptTemplate:   DefaultPromptTemplate,
	}
}

// AddFlags adds flags for advisor options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "advisor."
	fs.IntVar(&o.ChunkSize, p+"chunk-size", o.ChunkSize, "Size of text chunks.")
	fs.IntVar(&o.ChunkOverlap, p+"chunk-overlap", o.ChunkOverlap, "Overlap between chunks.")
	fs.IntVar(&o.TopK, p+"top-k", o.TopK, "Number of chunks retrieved per recommendation.")
	fs.IntVar(&o.EmbedBatchSize, p+"embed-batch-size", o.EmbedBatchSize, "Chunks per embedding request.")
	fs.StringVar(&o.IndexBackend, p+"index-backend", o.IndexBackend, "Vector index backend (memory, milvus).")
	fs.StringVar(&o.CollectionPrefix, p+"collection-prefix", o.CollectionPrefix, "Milvus collection name prefix for the milvus backend.")
	fs.IntVar(&o.FetchConcurrency, p+"fetch-concurrency", o.FetchConcurrency, "Concurrent URL downloads during ingest.")
	fs.DurationVar(&o.RequestTimeout, p+"request-timeout", o.RequestTimeout, "Timeout for a single ingest or recommend call.")
	fs.BoolVar(&o.ReturnSources, p+"return-sources", o.ReturnSources, "Include retrieved sources in recommendations.")
	fs.DurationVar(&o.AnswerCacheTTL, p+"answer-cache-ttl", o.AnswerCacheTTL, "Redis answer cache TTL, 0 disables caching.")
	fs.StringVar(&o.QueryTemplate, p+"query-template", o.QueryTemplate, "Retrieval query template (risk level %s, horizon %d).")
	fs.StringVar(&o.PromptTemplate, p+"prompt-template", o.PromptTemplate, "Stuff prompt template with {{context}} and {{question}}.")
}

// Validate validates the advisor options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("advisor.chunk-size must be positive"))
	}
	if o.ChunkOverlap < 0 || o.ChunkOverlap >= o.ChunkSize {
		errs = append(errs, fmt.Errorf("advisor.chunk-overlap must be in [0, chunk-size)"))
	}
	if o.TopK <= 0 {
		errs = append(errs, fmt.Errorf("advisor.top-k must be positive"))
	}
	if o.EmbedBatchSize <= 0 {
		errs = append(errs, fmt.Errorf("advisor.embed-batch-size must be positive"))
	}
	if o.IndexBackend != BackendMemory && o.IndexBackend != BackendMilvus {
		errs = append(errs, fmt.Errorf("advisor.index-backend must be %q or %q", BackendMemory, BackendMilvus))
	}
	// Milvus VARCHAR holds at most 65535 bytes, 4 bytes per character in the worst case.
	if o.IndexBackend == BackendMilvus && o.ChunkSize > MaxMilvusChunkSize {
		errs = append(errs, fmt.Errorf("advisor.chunk-size must not exceed %d with the milvus backend", MaxMilvusChunkSize))
	}
	if o.FetchConcurrency <= 0 {
		errs = append(errs, fmt.Errorf("advisor.fetch-concurrency must be positive"))
	}
	if o.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("advisor.request-timeout must be positive"))
	}
	if strings.Count(o.QueryTemplate, "%") != 2 {
		errs = append(errs, fmt.Errorf("advisor.query-template needs exactly one %%s and one %%d verb"))
	}
	if !strings.Contains(o.PromptTemplate, "{{context}}") || !strings.Contains(o.PromptTemplate, "{{question}}") {
		errs = append(errs, fmt.Errorf("advisor.prompt-template must contain {{context}} and {{question}}"))
	}
	return errs
}
