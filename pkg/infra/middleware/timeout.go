package middleware

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"

	mwopts "github.com/kart-io/sentinel-advisor/pkg/options/middleware"
	apierrors "github.com/kart-io/sentinel-advisor/pkg/utils/errors"
	"github.com/kart-io/sentinel-advisor/pkg/utils/response"
)

// Timeout 为请求上下文设置截止时间。
// 处理器需要遵守 ctx；若超时且尚未写出响应，则返回 ErrRequestTimeout。
func Timeout(opts mwopts.TimeoutOptions) gin.HandlerFunc {
	skip := make(map[string]struct{}, len(opts.SkipPaths))
	for _, p := range opts.SkipPaths {
		skip[p] = struct{}{}
	}

	return func(c *gin.Context) {
		if _, ok := skip[c.Request.URL.Path]; ok || opts.Timeout <= 0 {
			c.Next()
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), opts.Timeout)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		if errors.Is(ctx.Err(), context.DeadlineExceeded) && !c.Writer.Written() {
			response.Fail(c, apierrors.ErrRequestTimeout)
		}
	}
}
