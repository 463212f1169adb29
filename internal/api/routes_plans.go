package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/yaruyo/internal/handlers"
)

func registerPlanRoutes(api *gin.RouterGroup, handler *handlers.PlanHandler) {
	plans := api.Group("/plans")
	{
		plans.POST("", handler.Declare)
		plans.POST("/:id/record", handler.Record)
		plans.POST("/:id/cancel", handler.Cancel)
	}
}
