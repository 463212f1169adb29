package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/yaruyo/internal/handlers"
)

// The webhook authenticates with its own signature header, so it sits
// outside the bearer-token group. Every method is routed so non-POST
// requests get a 405 from the handler.
func registerWebhookRoutes(r *gin.Engine, handler *handlers.LineWebhookHandler) {
	r.Any("/webhooks/line", handler.Handle)
}
