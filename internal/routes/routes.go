package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/livepoll/livepoll/internal/handlers"
)

func RegisterRoutes(rg *gin.RouterGroup, handler *handlers.PollsHandler) {
	{
		rg.GET("/polls", handler.GetPolls)
		rg.GET("/polls/:id", handler.GetPollByID)
		rg.GET("/polls/:id/results", handler.GetResults)

		rg.POST("/polls", handler.CreatePoll)
		rg.POST("/polls/:id/vote", handler.CastVote)
	}
}
