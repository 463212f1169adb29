package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/yaruyo/internal/handlers"
)

func registerReactionRoutes(api *gin.RouterGroup, handler *handlers.ReactionHandler) {
	reactions := api.Group("/reactions")
	{
		reactions.POST("/like", handler.Like)
		reactions.POST("/mine", handler.Mine)
	}
}
