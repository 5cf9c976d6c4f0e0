package middleware

import (
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	mwopts "github.com/kart-io/sentinel-advisor/pkg/options/middleware"
)

// CORS 返回跨域中间件。配置非法时返回错误，应在启动时失败。
func CORS(opts mwopts.CORSOptions) (gin.HandlerFunc, error) {
	if err := validateCORSOptions(opts); err != nil {
		return nil, err
	}

	allowAll := slices.Contains(opts.AllowOrigins, "*")
	allowMethods := strings.Join(opts.AllowMethods, ", ")
	allowHeaders := strings.Join(opts.AllowHeaders, ", ")
	exposeHeaders := strings.Join(opts.ExposeHeaders, ", ")
	maxAge := strconv.Itoa(opts.MaxAge)

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin == "" {
			c.Next()
			return
		}

		switch {
		case allowAll:
			c.Header("Access-Control-Allow-Origin", "*")
		case slices.Contains(opts.AllowOrigins, origin):
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
		default:
			if c.Request.Method == http.MethodOptions {
				c.AbortWithStatus(http.StatusForbidden)
				return
			}
			c.Next()
			return
		}

		if opts.AllowCredentials {
			c.Header("Access-Control-Allow-Credentials", "true")
		}
		if exposeHeaders != "" {
			c.Header("Access-Control-Expose-Headers", exposeHeaders)
		}

		if c.Request.Method == http.MethodOptions {
			c.Header("Access-Control-Allow-Methods", allowMethods)
			c.Header("Access-Control-Allow-Headers", allowHeaders)
			if opts.MaxAge > 0 {
				c.Header("Access-Control-Max-Age", maxAge)
			}
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}, nil
}

func validateCORSOptions(opts mwopts.CORSOptions) error {
	if len(opts.AllowOrigins) == 0 {
		return fmt.Errorf("CORS: AllowOrigins must be explicitly configured, empty list not allowed")
	}

	hasWildcard := false
	for _, origin := range opts.AllowOrigins {
		if origin == "*" {
			hasWildcard = true
			continue
		}
		if err := validateOriginFormat(origin); err != nil {
			return fmt.Errorf("CORS: invalid origin format '%s': %w", origin, err)
		}
	}

	if hasWildcard && opts.AllowCredentials {
		return fmt.Errorf("CORS: cannot use wildcard origin '*' with AllowCredentials=true")
	}
	return nil
}

// validateOriginFormat checks the scheme://host[:port] form.
func validateOriginFormat(origin string) error {
	idx := strings.Index(origin, "://")
	if idx <= 0 {
		return fmt.Errorf("origin must include scheme (http:// or https://)")
	}
	if strings.ContainsAny(origin[idx+3:], "/?#") {
		return fmt.Errorf("origin should not include path, query, or fragment")
	}
	return nil
}
