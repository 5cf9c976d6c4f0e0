// Package logger provides context-aware structured logging helpers.
package logger

import (
	"context"

	klog "github.com/kart-io/logger"
	"github.com/kart-io/logger/core"

	"github.com/kart-io/sentinel-advisor/pkg/infra/middleware/common"
	"github.com/kart-io/sentinel-advisor/pkg/infra/tracing"
)

type fieldsKey struct{}

// WithFields returns a context carrying extra log fields.
// Fields accumulate across calls.
func WithFields(ctx context.Context, keysAndValues ...interface{}) context.Context {
	prev, _ := ctx.Value(fieldsKey{}).([]interface{})
	fields := make([]interface{}, 0, len(prev)+len(keysAndValues))
	fields = append(fields, prev...)
	fields = append(fields, keysAndValues...)
	return context.WithValue(ctx, fieldsKey{}, fields)
}

// Fields returns the request-scoped fields found in ctx:
// request_id, trace_id and anything added with WithFields.
func Fields(ctx context.Context) []interface{} {
	var fields []interface{}
	if id := common.GetRequestID(ctx); id != "" {
		fields = append(fields, "request_id", id)
	}
	if traceID := tracing.TraceIDFromContext(ctx); traceID != "" {
		fields = append(fields, "trace_id", traceID)
	}
	if extra, ok := ctx.Value(fieldsKey{}).([]interface{}); ok {
		fields = append(fields, extra...)
	}
	return fields
}

// FromContext returns the global logger enriched with the fields in ctx.
func FromContext(ctx context.Context) core.Logger {
	fields := Fields(ctx)
	if len(fields) == 0 {
		return klog.Global()
	}
	return klog.With(fields...)
}
