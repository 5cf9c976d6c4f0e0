// Package tracing wires OpenTelemetry tracing for the advisor binaries.
package tracing

import (
	"context"
	"fmt"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc/credentials/insecure"

	options "github.com/kart-io/sentinel-advisor/pkg/options/tracing"
)

// Options is re-exported from pkg/options/tracing for convenience.
type Options = options.Options

// NewOptions is re-exported from pkg/options/tracing for convenience.
var NewOptions = options.NewOptions

// Provider manages the OpenTelemetry tracer provider lifecycle.
type Provider struct {
	tracerProvider *sdktrace.TracerProvider
	opts           *Options
}

// NewProvider creates and initializes a new tracer provider.
// When tracing is disabled the global no-op provider is left untouched.
func NewProvider(ctx context.Context, opts *Options) (*Provider, error) {
	if opts == nil {
		opts = NewOptions()
	}
	if err := opts.Complete(); err != nil {
		return nil, fmt.Errorf("failed to complete options: %w", err)
	}
	if errs := opts.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("failed to validate options: %v", errs)
	}

	if !opts.Enabled {
		return &Provider{opts: opts}, nil
	}

	res, err := newResource(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	exporter, err := newExporter(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create exporter: %w", err)
	}

	bsp := sdktrace.NewBatchSpanProcessor(
		exporter,
		sdktrace.WithBatchTimeout(opts.BatchTimeout),
		sdktrace.WithMaxExportBatchSize(opts.BatchMaxSize),
		sdktrace.WithExportTimeout(opts.ExportTimeout),
		sdktrace.WithMaxQueueSize(opts.MaxQueueSize),
	)

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(newSampler(opts)),
		sdktrace.WithSpanProcessor(bsp),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &Provider{
		tracerProvider: tp,
		opts:           opts,
	}, nil
}

// Enabled reports whether spans are being exported.
func (p *Provider) Enabled() bool {
	return p.tracerProvider != nil
}

// Tracer returns a tracer with the given name.
func (p *Provider) Tracer(name string, opts ...trace.TracerOption) trace.Tracer {
	if p.tracerProvider == nil {
		return otel.Tracer(name, opts...)
	}
	return p.tracerProvider.Tracer(name, opts...)
}

// Shutdown flushes pending spans and releases exporter resources.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.tracerProvider == nil {
		return nil
	}
	return p.tracerProvider.Shutdown(ctx)
}

// ForceFlush flushes any pending spans.
func (p *Provider) ForceFlush(ctx context.Context) error {
	if p.tracerProvider == nil {
		return nil
	}
	return p.tracerProvider.ForceFlush(ctx)
}

func newResource(ctx context.Context, opts *Options) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{
		attribute.String("service.name", opts.ServiceName),
		attribute.String("service.version", opts.ServiceVersion),
	}
	if opts.Environment != "" {
		attrs = append(attrs, attribute.String("deployment.environment", opts.Environment))
	}

	return resource.New(ctx,
		resource.WithAttributes(attrs...),
		resource.WithFromEnv(),
		resource.WithTelemetrySDK(),
		resource.WithHost(),
		resource.WithProcess(),
	)
}

func newExporter(ctx context.Context, opts *Options) (sdktrace.SpanExporter, error) {
	switch opts.ExporterType {
	case options.ExporterOTLPGRPC:
		grpcOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(opts.Endpoint)}
		if opts.Insecure {
			grpcOpts = append(grpcOpts, otlptracegrpc.WithTLSCredentials(insecure.NewCredentials()))
		}
		if len(opts.Headers) > 0 {
			grpcOpts = append(grpcOpts, otlptracegrpc.WithHeaders(opts.Headers))
		}
		return otlptrace.New(ctx, otlptracegrpc.NewClient(grpcOpts...))
	case options.ExporterOTLPHTTP:
		httpOpts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(opts.Endpoint)}
		if opts.Insecure {
			httpOpts = append(httpOpts, otlptracehttp.WithInsecure())
		}
		if len(opts.Headers) > 0 {
			httpOpts = append(httpOpts, otlptracehttp.WithHeaders(opts.Headers))
		}
		return otlptrace.New(ctx, otlptracehttp.NewClient(httpOpts...))
	case options.ExporterStdout:
		return stdouttrace.New(
			stdouttrace.WithPrettyPrint(),
			stdouttrace.WithWriter(os.Stdout),
		)
	case options.ExporterNoop:
		return noopExporter{}, nil
	default:
		return nil, fmt.Errorf("unsupported exporter type: %s", opts.ExporterType)
	}
}

type noopExporter struct{}

func (noopExporter) ExportSpans(context.Context, []sdktrace.ReadOnlySpan) error { return nil }

func (noopExporter) Shutdown(context.Context) error { return nil }

func newSampler(opts *Options) sdktrace.Sampler {
	switch opts.SamplerType {
	case options.SamplerAlwaysOn:
		return sdktrace.AlwaysSample()
	case options.SamplerAlwaysOff:
		return sdktrace.NeverSample()
	case options.SamplerRatio:
		return sdktrace.TraceIDRatioBased(opts.SamplerRatio)
	case options.SamplerParentBased:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(opts.SamplerRatio))
	default:
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	}
}
