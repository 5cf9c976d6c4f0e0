package middleware

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/kart-io/sentinel-advisor/pkg/infra/middleware/common"
	"github.com/kart-io/sentinel-advisor/pkg/infra/tracing"
)

// Tracing 为每个请求创建 server span，并从请求头中提取上游 trace 上下文。
func Tracing() gin.HandlerFunc {
	tracer := otel.Tracer(tracing.TracerName)

	return func(c *gin.Context) {
		ctx := otel.GetTextMapPropagator().Extract(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		ctx, span := tracer.Start(ctx, fmt.Sprintf("%s %s", c.Request.Method, route),
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.request.method", c.Request.Method),
				attribute.String("http.route", route),
				attribute.String("client.address", c.ClientIP()),
			),
		)
		defer span.End()

		if id := common.GetRequestID(ctx); id != "" {
			span.SetAttributes(attribute.String("request.id", id))
		}
		if sc := span.SpanContext(); sc.HasTraceID() {
			c.Header(common.HeaderTraceID, sc.TraceID().String())
		}

		c.Request = c.Request.WithContext(ctx)
		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(attribute.Int("http.response.status_code", status))
		if status >= 500 {
			span.SetStatus(codes.Error, fmt.Sprintf("HTTP %d", status))
		}
		if len(c.Errors) > 0 {
			span.RecordError(c.Errors.Last())
		}
	}
}
