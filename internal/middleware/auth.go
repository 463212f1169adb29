package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	iauth "github.com/charlesng35/yaruyo/internal/auth"
	"github.com/charlesng35/yaruyo/internal/models"
	"github.com/charlesng35/yaruyo/internal/services"
	"github.com/charlesng35/yaruyo/pkg/errors"
	"github.com/charlesng35/yaruyo/pkg/logger"
	"github.com/charlesng35/yaruyo/pkg/metrics"
	"github.com/charlesng35/yaruyo/pkg/response"
)

const (
	CtxIdentityKey = "authIdentity"
	CtxUserIDKey   = "userID"
	CtxUserKey     = "user"
)

// UserEnsurer creates or refreshes the user row of a verified caller.
type UserEnsurer interface {
	Ensure(ctx context.Context, profile services.Profile) (*models.User, error)
}

// Auth enforces bearer token authentication and makes sure the caller has a
// user row before any handler runs.
func Auth(verifier iauth.TokenVerifier, users UserEnsurer) gin.HandlerFunc {
	return func(c *gin.Context) {
		authz := c.GetHeader("Authorization")
		if len(authz) < 8 || !strings.EqualFold(authz[:7], "Bearer ") {
			metrics.AuthAttempts.WithLabelValues("missing").Inc()
			c.Header("WWW-Authenticate", "Bearer")
			response.Error(c, errors.ErrUnauthenticated)
			c.Abort()
			return
		}

		identity, err := verifier.Verify(c.Request.Context(), strings.TrimSpace(authz[7:]))
		if err != nil {
			metrics.AuthAttempts.WithLabelValues("failure").Inc()
			logger.WithModule("auth").Debug("token rejected", zap.Error(err))
			c.Header("WWW-Authenticate", "Bearer")
			response.Error(c, errors.ErrUnauthenticated)
			c.Abort()
			return
		}
		metrics.AuthAttempts.WithLabelValues("success").Inc()

		user, err := users.Ensure(c.Request.Context(), services.Profile{
			UserID:      identity.UserID,
			DisplayName: identity.DisplayName,
			PictureURL:  identity.PictureURL,
		})
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(CtxIdentityKey, identity)
		c.Set(CtxUserIDKey, user.ID)
		c.Set(CtxUserKey, user)
		c.Next()
	}
}
