package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/yaruyo/internal/middleware"
	appErrors "github.com/charlesng35/yaruyo/pkg/errors"
	"github.com/charlesng35/yaruyo/pkg/response"
)

// requestContext safely returns the request context with a background fallback for tests.
func requestContext(c *gin.Context) context.Context {
	if c == nil {
		return context.Background()
	}
	if req := c.Request; req != nil {
		return req.Context()
	}
	return context.Background()
}

// currentUserID returns the caller id stored by the auth middleware. When it
// is missing a 401 is written and ok is false.
func currentUserID(c *gin.Context) (string, bool) {
	uid := c.GetString(middleware.CtxUserIDKey)
	if uid == "" {
		response.Error(c, appErrors.ErrUnauthenticated)
		return "", false
	}
	return uid, true
}
