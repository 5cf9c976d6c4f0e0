package tracing

import (
	"context"
	"testing"

	options "github.com/kart-io/sentinel-advisor/pkg/options/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

func TestNewProviderDisabled(t *testing.T) {
	p, err := NewProvider(context.Background(), NewOptions())
	if err != nil {
		t.Fatalf("NewProvider() error = %v", err)
	}
	if p.Enabled() {
		t.Error("Expected disabled provider")
	}
	if p.Tracer("test") == nil {
		t.Error("Expected a tracer even when disabled")
	}
	if err := p.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}

func TestNewProviderInvalidOptions(t *testing.T) {
	opts := NewOptions()
	opts.Enabled = true
	opts.ExporterType = "invalid"

	if _, err := NewProvider(context.Background(), opts); err == nil {
		t.Error("Expected error for invalid exporter type")
	}
}

func TestNewProviderNoopExporter(t *testing.T) {
	opts := NewOptions()
	opts.Enabled = true
	opts.ExporterType = options.ExporterNoop
	opts.SamplerType = options.SamplerAlwaysOn

	p, err := NewProvider(context.Background(), opts)
	if err != nil {
		t.Fatalf("NewProvider() error = %v", err)
	}
	defer func() { _ = p.Shutdown(context.Background()) }()

	if !p.Enabled() {
		t.Fatal("Expected enabled provider")
	}

	ctx, span := p.Tracer("test").Start(context.Background(), "op")
	if !span.SpanContext().IsValid() {
		t.Error("Expected a valid span context")
	}
	if TraceIDFromContext(ctx) == "" {
		t.Error("Expected trace id in context")
	}
	span.End()

	if err := p.ForceFlush(context.Background()); err != nil {
		t.Errorf("ForceFlush() error = %v", err)
	}
}

func TestSamplers(t *testing.T) {
	tests := []struct {
		sampler options.SamplerType
		want    string
	}{
		{options.SamplerAlwaysOn, "AlwaysOnSampler"},
		{options.SamplerAlwaysOff, "AlwaysOffSampler"},
	}
	for _, tt := range tests {
		opts := NewOptions()
		opts.SamplerType = tt.sampler
		if got := newSampler(opts).Description(); got != tt.want {
			t.Errorf("sampler %s: got %s, want %s", tt.sampler, got, tt.want)
		}
	}
}

func TestTraceIDFromEmptyContext(t *testing.T) {
	if id := TraceIDFromContext(context.Background()); id != "" {
		t.Errorf("Expected empty trace id, got %s", id)
	}
}

func TestStartSpanAndEnd(t *testing.T) {
	ctx, span := StartSpan(context.Background(), "unit", attribute.String("k", "v"))
	RecordError(ctx, nil)
	End(span, context.Canceled)
	if trace.SpanFromContext(ctx) != span {
		t.Error("Expected span stored in context")
	}
}
