package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/awards/internal/handlers"
	"github.com/charlesng35/awards/internal/middleware"
)

func registerAdminRoutes(api *gin.RouterGroup, h *handlers.AdminHandler, health *handlers.HealthHandler) {
	admin := api.Group("/admin")
	admin.Use(middleware.RequireSuperAdmin())
	{
		admin.DELETE("/votes/:id", h.RevokeVote)

		admin.GET("/users", h.ListUsers)
		admin.PUT("/users/:id/role", h.SetRole)

		admin.GET("/settings/voting", h.GetVoting)
		admin.PUT("/settings/voting", h.SetVoting)
		admin.PUT("/settings/device-policy", h.SetDevicePolicy)

		admin.POST("/categories", h.CreateCategory)
		admin.POST("/categories/:id/candidates", h.CreateCandidate)
		admin.POST("/categories/:id/reveal", h.RevealLeadership)
		admin.PATCH("/candidates/:id", h.RenameCandidate)

		admin.GET("/audit", h.ListAudit)
		admin.GET("/summary", h.Summary)
		admin.GET("/health", health.Admin)
	}
}
