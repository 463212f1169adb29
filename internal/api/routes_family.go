package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/yaruyo/internal/handlers"
)

func registerFamilyRoutes(api *gin.RouterGroup, handler *handlers.FamilyHandler) {
	family := api.Group("/family")
	{
		family.GET("", handler.Current)
		family.POST("", handler.Create)
		family.POST("/join", handler.Join)
		family.POST("/leave", handler.Leave)
		family.POST("/close", handler.Close)
		family.PATCH("/name", handler.Rename)
	}
}
