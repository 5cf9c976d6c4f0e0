package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/kart-io/sentinel-advisor/pkg/infra/middleware/common"
	mwopts "github.com/kart-io/sentinel-advisor/pkg/options/middleware"
)

// ContextKeyRequestID is the gin context key holding the request ID.
const ContextKeyRequestID = "request_id"

// RequestID 为每个请求分配 ID：优先沿用请求头中的值，否则按配置生成。
// ID 写入响应头、gin 上下文以及 request context。
func RequestID(opts mwopts.RequestIDOptions) gin.HandlerFunc {
	header := opts.Header
	if header == "" {
		header = common.HeaderXRequestID
	}
	generate := common.Generator(opts.GeneratorType)

	return func(c *gin.Context) {
		requestID := c.GetHeader(header)
		if requestID == "" {
			requestID = generate()
		}

		c.Header(header, requestID)
		c.Set(ContextKeyRequestID, requestID)
		c.Request = c.Request.WithContext(common.WithRequestID(c.Request.Context(), requestID))

		c.Next()
	}
}

// GetRequestID is re-exported from common.
var GetRequestID = common.GetRequestID
