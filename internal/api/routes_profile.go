package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/yaruyo/internal/handlers"
)

func registerProfileRoutes(api *gin.RouterGroup, handler *handlers.ProfileHandler) {
	me := api.Group("/me")
	{
		me.GET("", handler.Me)
		me.PATCH("/settings", handler.UpdateSettings)
	}
}
