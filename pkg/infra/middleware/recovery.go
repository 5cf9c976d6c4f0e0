// Package middleware provides the gin middleware chain used by the advisor HTTP server.
package middleware

import (
	"fmt"
	"os"
	"runtime/debug"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	mwopts "github.com/kart-io/sentinel-advisor/pkg/options/middleware"
	"github.com/kart-io/sentinel-advisor/pkg/utils/errors"
	"github.com/kart-io/sentinel-advisor/pkg/utils/response"
)

// PanicHandler 定义 panic 处理器类型。
type PanicHandler func(c *gin.Context, err interface{}, stack []byte)

// Recovery 返回一个捕获 panic 的中间件。
// 完整堆栈总是写入日志；panic 值仅在开启 ExposePanic 时返回，
// 堆栈另需非生产环境且开启 EnableStackTrace。
func Recovery(opts mwopts.RecoveryOptions, onPanic PanicHandler) gin.HandlerFunc {
	includeStack := opts.ExposePanic && opts.EnableStackTrace
	if includeStack && isProductionEnvironment() {
		logger.Warn("Stack trace is enabled but running in production environment, it will only be logged.")
		includeStack = false
	}

	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				stack := debug.Stack()
				logger.Errorw("panic recovered",
					"panic", r,
					"stack_trace", string(stack),
					"path", c.Request.URL.Path,
					"method", c.Request.Method,
				)

				if onPanic != nil {
					onPanic(c, r, stack)
				}

				if !opts.ExposePanic {
					response.Fail(c, errors.ErrPanic)
					return
				}
				msg := fmt.Sprintf("panic: %v", r)
				if includeStack {
					msg = fmt.Sprintf("%s\n%s", msg, stack)
				}
				response.Fail(c, errors.ErrPanic.WithMessage(msg))
			}
		}()
		c.Next()
	}
}

// isProductionEnvironment checks APP_ENV, then GO_ENV.
func isProductionEnvironment() bool {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = os.Getenv("GO_ENV")
	}
	switch strings.ToLower(env) {
	case "production", "prod":
		return true
	default:
		return false
	}
}
