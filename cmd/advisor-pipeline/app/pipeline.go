// Package app provides the pipeline command.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kart-io/logger"

	"github.com/kart-io/sentinel-advisor/cmd/advisor-pipeline/app/options"
	"github.com/kart-io/sentinel-advisor/internal/advisor/pipeline"
	"github.com/kart-io/sentinel-advisor/internal/advisor/store"
	"github.com/kart-io/sentinel-advisor/internal/advisor/tui"
	"github.com/kart-io/sentinel-advisor/pkg/component/milvus"
	"github.com/kart-io/sentinel-advisor/pkg/infra/app"
	"github.com/kart-io/sentinel-advisor/pkg/llm"
	// 注册 CLOVA 供应商
	_ "github.com/kart-io/sentinel-advisor/pkg/llm/clova"
	"github.com/kart-io/sentinel-advisor/pkg/llm/resilience"
	"github.com/kart-io/sentinel-advisor/pkg/utils/httpclient"
)

const (
	// Name is the name of the command.
	Name = "advisor-pipeline"

	// Banner is printed when the chat starts.
	Banner = "PDF/HTML 기반 HyperCLOVA 챗봇, 'exit' 입력 시 종료"

	commandDesc = `Offline knowledge base pipeline

Fetches web pages and PDFs, splits them with the CLOVA segmentation API,
embeds the segments into a Milvus collection and opens a chat that answers
from that collection, remembering the conversation.`
)

// NewApp creates the pipeline command.
func NewApp() *app.App {
	opts := options.NewPipelineOptions()
	return app.NewApp(
		app.WithName(Name),
		app.WithShortDescription("Build the CLOVA knowledge base and chat with it"),
		app.WithDescription(commandDesc),
		app.WithOptions(opts),
		app.WithRunFunc(func() error {
			return Run(setupSignalContext(), opts)
		}),
	)
}

// Run executes the pipeline and then the chat loop.
func Run(ctx context.Context, opts *options.PipelineOptions) error {
	app.AnnotateLogger(opts.LogOptions.LogOption, Name)
	if err := opts.LogOptions.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	cfgMap := opts.ClovaOptions.MergeInto(opts.ChatOptions.ToConfigMap())
	provider, err := llm.NewProvider(opts.ChatOptions.Provider, cfgMap)
	if err != nil {
		return fmt.Errorf("failed to initialize clova provider: %w", err)
	}
	segmenter, ok := provider.(llm.SegmentationProvider)
	if !ok {
		return fmt.Errorf("provider %s does not support segmentation", provider.Name())
	}

	milvusClient, err := milvus.New(ctx, opts.MilvusOptions)
	if err != nil {
		return fmt.Errorf("failed to initialize milvus: %w", err)
	}
	defer func() { _ = milvusClient.Close(context.WithoutCancel(ctx)) }()

	embedder := resilience.WrapEmbedding(provider, nil)
	builder := store.NewMilvusBuilder(milvusClient, store.MilvusBuilderConfig{
		Spec:      *milvus.DefaultCollectionSpec(opts.MilvusOptions.Collection, opts.MilvusOptions),
		FixedName: opts.MilvusOptions.Collection,
	})

	idx, err := pipeline.Prepare(ctx, pipeline.Config{
		URLs:           opts.URLs,
		PDFPaths:       opts.PDFs,
		OutputDir:      opts.OutputDir,
		EmbedBatchSize: opts.EmbedBatchSize,
		ReuseCache:     opts.ReuseCache,
	}, pipeline.Deps{
		Fetcher:   httpclient.NewClient(opts.ChatOptions.Timeout, opts.ChatOptions.MaxRetries),
		Segmenter: resilience.WrapSegmentation(segmenter, nil),
		Embedder:  embedder,
		Builder:   builder,
	})
	if err != nil {
		return err
	}
	defer func() { _ = idx.Close(context.WithoutCancel(ctx)) }()

	chain := pipeline.NewConversationalChain(idx, embedder, resilience.WrapChat(provider, nil), opts.TopK)
	logger.Infow("chat ready", "collection", opts.MilvusOptions.Collection, "top_k", opts.TopK)

	if opts.Plain || !isTerminal(os.Stdin) {
		return tui.RunPlain(ctx, chain, Banner, os.Stdin, os.Stdout)
	}
	return tui.Run(ctx, chain, Banner)
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

// setupSignalContext returns a context that is cancelled on SIGINT or SIGTERM.
func setupSignalContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	c := make(chan os.Signal, 2)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		cancel()
		<-c
		os.Exit(1)
	}()
	return ctx
}
