package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/yaruyo/internal/api"
	"github.com/charlesng35/yaruyo/internal/app"
	"github.com/charlesng35/yaruyo/internal/app/scheduler"
	iauth "github.com/charlesng35/yaruyo/internal/auth"
	"github.com/charlesng35/yaruyo/internal/database"
	"github.com/charlesng35/yaruyo/internal/push"
	"github.com/charlesng35/yaruyo/internal/services"
)

// runtimeStack bundles long-lived components used by the HTTP server.
type runtimeStack struct {
	DB        *gorm.DB
	Scheduler *scheduler.Scheduler
	Router    *gin.Engine
}

// bootstrapRuntime initialises the database, services, background jobs and
// the HTTP router.
func bootstrapRuntime(ctx context.Context, cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	stack := &runtimeStack{}
	var err error
	success := false

	defer func() {
		if !success {
			if shutdownErr := stack.Shutdown(context.Background()); shutdownErr != nil {
				log.Warn("cleanup after failed bootstrap", zap.Error(shutdownErr))
			}
		}
	}()

	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	stack.DB, err = initialiseDatabase(cfg)
	if err != nil {
		return nil, err
	}

	loc, err := cfg.Reminders.Location()
	if err != nil {
		return nil, fmt.Errorf("load reminder timezone: %w", err)
	}
	grid := cfg.Reminders.Grid()

	users, err := services.NewUserService(stack.DB)
	if err != nil {
		return nil, fmt.Errorf("initialise user service: %w", err)
	}

	lineClient := push.NewLineClient(cfg.Line.LineClientConfig())
	sender, err := buildSender(ctx, cfg, lineClient, users)
	if err != nil {
		return nil, err
	}

	dispatch, err := services.NewDispatchService(stack.DB, sender, services.WithDispatchConcurrency(cfg.Dispatch.Concurrency))
	if err != nil {
		return nil, fmt.Errorf("initialise dispatch service: %w", err)
	}
	codes, err := services.NewInviteCodeService(stack.DB)
	if err != nil {
		return nil, fmt.Errorf("initialise invite code service: %w", err)
	}
	families, err := services.NewFamilyService(stack.DB, codes)
	if err != nil {
		return nil, fmt.Errorf("initialise family service: %w", err)
	}
	plans, err := services.NewPlanService(stack.DB, dispatch, services.WithSlotGrid(grid, loc))
	if err != nil {
		return nil, fmt.Errorf("initialise plan service: %w", err)
	}
	reactions, err := services.NewReactionService(stack.DB, dispatch)
	if err != nil {
		return nil, fmt.Errorf("initialise reaction service: %w", err)
	}
	drafts, err := services.NewDraftService(stack.DB, dispatch)
	if err != nil {
		return nil, fmt.Errorf("initialise draft service: %w", err)
	}

	verifier, err := buildVerifier(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var sweeper scheduler.ReminderSweeper
	if cfg.Reminders.Enabled {
		reminders, err := services.NewReminderService(stack.DB, dispatch, services.WithReminderWindow(cfg.Reminders.Buffer, grid, loc))
		if err != nil {
			return nil, fmt.Errorf("initialise reminder service: %w", err)
		}
		sweeper = reminders
	} else {
		log.Info("start reminders disabled")
	}

	schedOpts := []scheduler.Option{scheduler.WithLocation(loc)}
	if spec := strings.TrimSpace(cfg.Reminders.Schedule); spec != "" {
		schedOpts = append(schedOpts, scheduler.WithReminderSchedule(spec))
	}
	stack.Scheduler = scheduler.New(sweeper, families, schedOpts...)
	if err := stack.Scheduler.Start(); err != nil {
		stack.Scheduler = nil
		return nil, fmt.Errorf("start scheduler: %w", err)
	}

	stack.Router, err = api.NewRouter(stack.DB, api.Dependencies{
		Verifier:  verifier,
		Replier:   lineClient,
		Users:     users,
		Families:  families,
		Plans:     plans,
		Reactions: reactions,
		Drafts:    drafts,
	}, cfg)
	if err != nil {
		return nil, fmt.Errorf("initialise router: %w", err)
	}

	success = true
	return stack, nil
}

// Shutdown stops background jobs and releases the database handle.
func (s *runtimeStack) Shutdown(ctx context.Context) error {
	if s == nil {
		return nil
	}

	var errs error
	if s.Scheduler != nil {
		select {
		case <-s.Scheduler.Stop().Done():
		case <-ctx.Done():
			errs = multierr.Append(errs, fmt.Errorf("scheduler stop: %w", ctx.Err()))
		}
		s.Scheduler = nil
	}
	if s.DB != nil {
		errs = multierr.Append(errs, database.Close(s.DB))
		s.DB = nil
	}
	return errs
}

// buildSender selects the outbound notification channel.
func buildSender(ctx context.Context, cfg *app.Config, line *push.LineClient, tokens push.TokenResolver) (push.Sender, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Push.Provider)) {
	case "", "line":
		return line, nil
	case "fcm":
		sender, err := push.NewFCMSender(ctx, cfg.Push.FCMSenderConfig(), tokens)
		if err != nil {
			return nil, fmt.Errorf("initialise fcm sender: %w", err)
		}
		return sender, nil
	default:
		return nil, fmt.Errorf("unsupported push provider %q", cfg.Push.Provider)
	}
}

// buildVerifier accepts our own access tokens and, when enabled, LINE ID tokens.
func buildVerifier(ctx context.Context, cfg *app.Config) (iauth.TokenVerifier, error) {
	jwtSvc, err := iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise jwt service: %w", err)
	}
	if !cfg.Auth.LineLogin.Enabled {
		return jwtSvc, nil
	}

	lineVerifier, err := iauth.NewLineVerifier(ctx, cfg.Auth.LineLoginConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise line login verifier: %w", err)
	}
	return iauth.Chain{jwtSvc, lineVerifier}, nil
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	db, err := database.Open(convertDatabaseConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := database.Migrate(db); err != nil {
		_ = database.Close(db)
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return db, nil
}

func convertDatabaseConfig(cfg *app.Config) database.Config {
	dbCfg := database.Config{
		Driver: strings.ToLower(strings.TrimSpace(cfg.Database.Driver)),
		Path:   strings.TrimSpace(cfg.Database.Path),
		DSN:    strings.TrimSpace(cfg.Database.DSN),
	}

	var auth app.DBAuthConfig
	switch dbCfg.Driver {
	case "", "sqlite":
		dbCfg.Driver = "sqlite"
		return dbCfg
	case "postgres", "postgresql":
		dbCfg.Driver = "postgres"
		auth = cfg.Database.Postgres
	case "mysql", "mariadb":
		dbCfg.Driver = "mysql"
		auth = cfg.Database.MySQL
	default:
		// Unsupported drivers surface from database.Open.
		return dbCfg
	}

	dbCfg.Host = strings.TrimSpace(auth.Host)
	dbCfg.Port = auth.Port
	dbCfg.Name = strings.TrimSpace(auth.Database)
	dbCfg.User = strings.TrimSpace(auth.Username)
	dbCfg.Password = auth.Password
	return dbCfg
}
