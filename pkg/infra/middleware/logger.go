package middleware

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/sentinel-advisor/pkg/infra/middleware/common"
	"github.com/kart-io/sentinel-advisor/pkg/infra/tracing"
	mwopts "github.com/kart-io/sentinel-advisor/pkg/options/middleware"
)

var fieldsPool = sync.Pool{
	New: func() interface{} {
		s := make([]interface{}, 0, 20)
		return &s
	},
}

// Logger 记录每个请求的方法、路径、状态码与耗时。
// 4xx 与超过 SlowThreshold 的请求记为 warn，5xx 记为 error。
func Logger(opts mwopts.LoggerOptions) gin.HandlerFunc {
	skip := make(map[string]struct{}, len(opts.SkipPaths))
	for _, p := range opts.SkipPaths {
		skip[p] = struct{}{}
	}

	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if _, ok := skip[path]; ok {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		latency := time.Since(start)

		fp := fieldsPool.Get().(*[]interface{})
		fields := (*fp)[:0]
		defer func() {
			*fp = fields[:0]
			fieldsPool.Put(fp)
		}()

		status := c.Writer.Status()
		fields = append(fields,
			"method", c.Request.Method,
			"path", path,
			"status", status,
			"remote_addr", c.ClientIP(),
			"latency", latency.String(),
			"latency_ms", latency.Milliseconds(),
			"size", c.Writer.Size(),
		)
		if id := common.GetRequestID(c.Request.Context()); id != "" {
			fields = append(fields, "request_id", id)
		}
		if traceID := tracing.TraceIDFromContext(c.Request.Context()); traceID != "" {
			fields = append(fields, "trace_id", traceID)
		}
		if len(c.Errors) > 0 {
			fields = append(fields, "errors", c.Errors.String())
		}

		slow := opts.SlowThreshold > 0 && latency > opts.SlowThreshold
		if slow {
			fields = append(fields, "slow", true)
		}

		switch {
		case status >= 500:
			logger.Errorw("HTTP Request", fields...)
		case status >= 400, slow:
			logger.Warnw("HTTP Request", fields...)
		default:
			logger.Infow("HTTP Request", fields...)
		}
	}
}
