package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/awards/internal/handlers"
	"github.com/charlesng35/awards/internal/middleware"
)

type votingRouteDeps struct {
	Votes        *handlers.VoteHandler
	Verification *handlers.VerificationHandler
	Devices      *handlers.DeviceHandler
	Categories   *handlers.CategoryHandler
}

func registerVotingRoutes(api *gin.RouterGroup, deps votingRouteDeps) {
	api.POST("/votes", deps.Votes.Cast)
	api.GET("/votes/me", deps.Votes.Mine)

	verification := api.Group("/verification")
	{
		verification.POST("/request", deps.Verification.Request)
		verification.POST("/confirm", deps.Verification.Confirm)
	}

	api.POST("/devices/register", deps.Devices.Register)

	api.GET("/categories", deps.Categories.List)
	api.GET("/categories/:id/tally", middleware.RequireSuperAdmin(), deps.Categories.Tally)
}
