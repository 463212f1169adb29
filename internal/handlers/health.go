package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/charlesng35/yaruyo/internal/database"
	appErrors "github.com/charlesng35/yaruyo/pkg/errors"
	"github.com/charlesng35/yaruyo/pkg/response"
)

// Health reports liveness and checks the database connection.
func Health(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := database.Ping(requestContext(c), db); err != nil {
			response.Error(c, appErrors.Internal("database unavailable").WithInternal(err))
			return
		}
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	}
}
