package api

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/charlesng35/yaruyo/internal/app"
	iauth "github.com/charlesng35/yaruyo/internal/auth"
	"github.com/charlesng35/yaruyo/internal/handlers"
	"github.com/charlesng35/yaruyo/internal/middleware"
	"github.com/charlesng35/yaruyo/internal/push"
	"github.com/charlesng35/yaruyo/internal/services"
)

// Dependencies bundles the services the HTTP surface is built from.
type Dependencies struct {
	Verifier  iauth.TokenVerifier
	Replier   push.Replier
	Users     *services.UserService
	Families  *services.FamilyService
	Plans     *services.PlanService
	Reactions *services.ReactionService
	Drafts    *services.DraftService
}

func (d Dependencies) validate() error {
	switch {
	case d.Verifier == nil:
		return errors.New("router: token verifier must be provided")
	case d.Replier == nil:
		return errors.New("router: replier must be provided")
	case d.Users == nil, d.Families == nil, d.Plans == nil, d.Reactions == nil, d.Drafts == nil:
		return errors.New("router: all services must be provided")
	}
	return nil
}

// NewRouter builds the Gin engine, wires middleware and registers routes.
func NewRouter(db *gorm.DB, deps Dependencies, cfg *app.Config) (*gin.Engine, error) {
	if db == nil {
		return nil, errors.New("router: database handle must be provided")
	}
	if cfg == nil {
		return nil, errors.New("router: config must be provided")
	}
	if err := deps.validate(); err != nil {
		return nil, err
	}

	r := gin.New()

	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.AllowedOrigins...))

	registerHealthRoutes(r, db, cfg)
	registerWebhookRoutes(r, handlers.NewLineWebhookHandler(cfg.Line.ChannelSecret, deps.Drafts, deps.Replier))

	api := r.Group("/api")
	api.Use(middleware.Auth(deps.Verifier, deps.Users))
	if limit := cfg.Server.RateLimit; limit.Enabled && limit.RequestsPerSecond > 0 {
		api.Use(middleware.RateLimit(limit.RequestsPerSecond, limit.Burst))
	}

	registerProfileRoutes(api, handlers.NewProfileHandler(deps.Users))
	registerFamilyRoutes(api, handlers.NewFamilyHandler(deps.Families))
	registerPlanRoutes(api, handlers.NewPlanHandler(deps.Plans))
	registerReactionRoutes(api, handlers.NewReactionHandler(deps.Reactions))

	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}

func metricsEndpoint(cfg *app.Config) string {
	endpoint := strings.TrimSpace(cfg.Monitoring.Prometheus.Endpoint)
	if endpoint == "" {
		return "/metrics"
	}
	return endpoint
}
