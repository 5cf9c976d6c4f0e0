package middleware

import (
	"fmt"

	"github.com/gin-gonic/gin"

	mwopts "github.com/kart-io/sentinel-advisor/pkg/options/middleware"
)

// Build returns the enabled middleware in configured order.
func Build(opts *mwopts.Options) ([]gin.HandlerFunc, error) {
	if opts == nil {
		opts = mwopts.NewOptions()
	}

	var chain []gin.HandlerFunc
	for _, name := range opts.Order() {
		switch name {
		case mwopts.MiddlewareRecovery:
			chain = append(chain, Recovery(*opts.Recovery, nil))
		case mwopts.MiddlewareRequestID:
			chain = append(chain, RequestID(*opts.RequestID))
		case mwopts.MiddlewareLogger:
			chain = append(chain, Logger(*opts.Logger))
		case mwopts.MiddlewareTracing:
			chain = append(chain, Tracing())
		case mwopts.MiddlewareCORS:
			h, err := CORS(*opts.CORS)
			if err != nil {
				return nil, err
			}
			chain = append(chain, h)
		case mwopts.MiddlewareRateLimit:
			chain = append(chain, RateLimit(*opts.RateLimit))
		case mwopts.MiddlewareTimeout:
			chain = append(chain, Timeout(*opts.Timeout))
		default:
			return nil, fmt.Errorf("unknown middleware %q", name)
		}
	}
	return chain, nil
}
