package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/awards/internal/app"
	"github.com/charlesng35/awards/internal/handlers"
)

func registerHealthRoutes(r *gin.Engine, cfg *app.Config, h *handlers.HealthHandler) {
	if !cfg.Monitoring.Health.Enabled {
		r.GET("/health", disabledHealthHandler)
		r.GET("/health/live", disabledHealthHandler)
		r.GET("/health/ready", disabledHealthHandler)
		return
	}

	r.GET("/health", h.Health)
	r.GET("/health/live", h.Live)
	r.GET("/health/ready", h.Ready)
}

func disabledHealthHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{
		"success": false,
		"status":  "disabled",
	})
}
