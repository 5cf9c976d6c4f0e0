// Package router provides advisor service routing.
package router

import (
	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/sentinel-advisor/internal/advisor/handler"
)

// Register registers the advisor routes on r.
//
// The questionnaire, ingest and recommend endpoints stay at the root because
// the bundled frontend calls them there.
func Register(r gin.IRouter, h *handler.AdvisorHandler) {
	logger.Info("Registering advisor routes...")

	r.POST("/profile", h.Profile)
	r.POST("/ingest-sources", h.IngestSources)
	r.POST("/recommend", h.Recommend)

	r.GET("/health", h.Health)
	r.GET("/metrics", h.Metrics)

	v1 := r.Group("/v1")
	{
		advisor := v1.Group("/advisor")
		{
			advisor.GET("/stats", h.Stats)
		}
	}

	logger.Info("HTTP routes registered")
}
