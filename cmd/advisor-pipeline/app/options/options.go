// Package options contains flags and options for the pipeline command.
package options

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	"github.com/kart-io/sentinel-advisor/internal/advisor/pipeline"
	"github.com/kart-io/sentinel-advisor/pkg/infra/app"
	genericoptions "github.com/kart-io/sentinel-advisor/pkg/options"
	llmopts "github.com/kart-io/sentinel-advisor/pkg/options/llm"
	logopts "github.com/kart-io/sentinel-advisor/pkg/options/logger"
	milvusopts "github.com/kart-io/sentinel-advisor/pkg/options/milvus"
)

var _ app.CliOptions = (*PipelineOptions)(nil)

// PipelineOptions contains the configuration options for the pipeline.
type PipelineOptions struct {
	// URLs are fetched and saved as HTML.
	URLs []string `json:"urls" mapstructure:"urls"`

	// PDFs are moved into OutputDir.
	PDFs []string `json:"pdfs" mapstructure:"pdfs"`

	// OutputDir holds fetched pages, PDFs and source_map.json.
	OutputDir string `json:"output-dir" mapstructure:"output-dir"`

	// TopK is the number of segments retrieved per question.
	TopK int `json:"top-k" mapstructure:"top-k"`

	// EmbedBatchSize is the number of segments per embedding request, 0 sends all at once.
	EmbedBatchSize int `json:"embed-batch-size" mapstructure:"embed-batch-size"`

	// ReuseCache skips fetching and loads the files already in OutputDir.
	ReuseCache bool `json:"reuse-cache" mapstructure:"reuse-cache"`

	// Plain uses a line-oriented prompt instead of the interactive UI.
	Plain bool `json:"plain" mapstructure:"plain"`

	LogOptions    *logopts.Options         `json:"log" mapstructure:"log"`
	ChatOptions   *llmopts.ProviderOptions `json:"chat" mapstructure:"chat"`
	ClovaOptions  *llmopts.ClovaOptions    `json:"clova" mapstructure:"clova"`
	MilvusOptions *milvusopts.Options      `json:"milvus" mapstructure:"milvus"`
}

// NewPipelineOptions creates PipelineOptions with default values.
func NewPipelineOptions() *PipelineOptions {
	log := logopts.NewOptions()
	// stdout belongs to the chat UI
	log.OutputPaths = []string{"stderr"}

	milvus := milvusopts.NewOptions()
	milvus.Collection = pipeline.DefaultCollection

	return &PipelineOptions{
		URLs:          append([]string(nil), pipeline.DefaultURLs...),
		OutputDir:     pipeline.DefaultOutputDir,
		TopK:          pipeline.DefaultTopK,
		LogOptions:    log,
		ChatOptions:   llmopts.NewChatOptions(),
		ClovaOptions:  llmopts.NewClovaOptions(),
		MilvusOptions: milvus,
	}
}

// Flags returns flags for the pipeline by section name.
func (o *PipelineOptions) Flags() (fss app.NamedFlagSets) {
	o.AddFlags(fss.FlagSet("pipeline"))
	o.LogOptions.AddFlags(fss.FlagSet("log"))
	o.ChatOptions.AddFlags(fss.FlagSet("chat"))
	o.ClovaOptions.AddFlags(fss.FlagSet("clova"))
	o.MilvusOptions.AddFlags(fss.FlagSet("milvus"))
	return fss
}

// AddFlags adds the pipeline's own flags.
func (o *PipelineOptions) AddFlags(fs *pflag.FlagSet) {
	fs.StringSliceVar(&o.URLs, "urls", o.URLs, "Web pages to fetch.")
	fs.StringSliceVar(&o.PDFs, "pdfs", o.PDFs, "PDF files to move into the output directory.")
	fs.StringVar(&o.OutputDir, "output-dir", o.OutputDir, "Directory for fetched sources and source_map.json.")
	fs.IntVar(&o.TopK, "top-k", o.TopK, "Segments retrieved per question.")
	fs.IntVar(&o.EmbedBatchSize, "embed-batch-size", o.EmbedBatchSize, "Segments per embedding request, 0 sends all at once.")
	fs.BoolVar(&o.ReuseCache, "reuse-cache", o.ReuseCache, "Skip fetching and load the sources recorded in output-dir/source_map.json.")
	fs.BoolVar(&o.Plain, "plain", o.Plain, "Use a plain line prompt instead of the interactive UI.")
}

// Complete reads the CLOVA_* environment variables.
func (o *PipelineOptions) Complete() error {
	if err := o.ClovaOptions.Complete(); err != nil {
		return fmt.Errorf("clova: %w", err)
	}
	if id := os.Getenv("CLOVA_CHAT_MODEL_ID"); id != "" && o.ChatOptions.Model == llmopts.NewChatOptions().Model {
		o.ChatOptions.Model = id
	}
	return o.ChatOptions.Complete()
}

// Validate checks whether the options are valid.
func (o *PipelineOptions) Validate() error {
	errs := []error{}

	if !o.ReuseCache && len(o.URLs) == 0 && len(o.PDFs) == 0 {
		errs = append(errs, fmt.Errorf("at least one of --urls or --pdfs is required"))
	}
	if o.OutputDir == "" {
		errs = append(errs, fmt.Errorf("output-dir is required"))
	}
	if o.TopK <= 0 {
		errs = append(errs, fmt.Errorf("top-k must be positive"))
	}
	if o.EmbedBatchSize < 0 {
		errs = append(errs, fmt.Errorf("embed-batch-size must not be negative"))
	}
	if o.ChatOptions.Provider != "clova" {
		errs = append(errs, fmt.Errorf("chat.provider must be clova, the pipeline also needs its segmentation API"))
	}

	errs = append(errs, genericoptions.ValidateAll(
		o.LogOptions,
		o.ChatOptions,
		o.ClovaOptions,
		o.MilvusOptions,
	)...)

	return utilerrors.NewAggregate(errs)
}
