package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/awards/internal/handlers"
)

func registerAuthRoutes(public, api *gin.RouterGroup, h *handlers.AuthHandler) {
	auth := public.Group("/auth")
	{
		auth.POST("/register", h.Register)
		auth.POST("/login", h.Login)
	}

	api.GET("/auth/me", h.Me)
	api.POST("/auth/logout", h.Logout)
}
