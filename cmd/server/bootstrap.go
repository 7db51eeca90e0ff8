package main

import (
	"context"

	"github.com/huangang/issuetrack/internal/config"
	"github.com/huangang/issuetrack/internal/handlers"
	"github.com/huangang/issuetrack/internal/metrics"
	"github.com/huangang/issuetrack/internal/middleware"
	"github.com/huangang/issuetrack/internal/models"
	"github.com/huangang/issuetrack/internal/services"
	"github.com/huangang/issuetrack/internal/utils"
	"github.com/huangang/issuetrack/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"gorm.io/gorm"
)

// appServices holds all initialized services and handlers needed by the application.
type appServices struct {
	db       *gorm.DB
	registry *prometheus.Registry
	guards   *middleware.Guards
	throttle *middleware.AuthThrottle
	cors     config.CORSConfig

	authHandler          *handlers.AuthHandler
	userHandler          *handlers.UserHandler
	projectHandler       *handlers.ProjectHandler
	projectMemberHandler *handlers.ProjectMemberHandler
	issueHandler         *handlers.IssueHandler
	commentHandler       *handlers.CommentHandler
	logHandler           *handlers.LogHandler
	healthHandler        *handlers.HealthHandler
}

// bootstrap connects and migrates the configured database, then builds the
// application on it.
func bootstrap(cfg *config.Config) *appServices {
	if err := models.InitDB(&cfg.Database); err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	if err := models.AutoMigrate(); err != nil {
		logger.Fatalf("Failed to migrate database: %v", err)
	}
	return newAppServices(cfg, models.GetDB())
}

// newAppServices wires metrics, services and handlers on db and seeds the
// first admin account.
func newAppServices(cfg *config.Config, db *gorm.DB) *appServices {
	utils.SetJWTSecret(cfg.JWT.Secret)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if sqlDB, err := db.DB(); err == nil {
		registry.MustRegister(collectors.NewDBStatsCollector(sqlDB, cfg.Database.Driver))
	}
	m := metrics.New(registry)

	audit := services.NewAuditService(db, m)
	authorizer := services.NewAuthorizer(db, m)
	userService := services.NewUserService(db, audit)
	authService := services.NewAuthService(db, audit, &cfg.JWT)
	projectService := services.NewProjectService(db, audit)

	if err := authService.CreateAdminIfNotExists(context.Background(), &cfg.Admin); err != nil {
		logger.Warn().Err(err).Msg("Failed to create admin user")
	}

	return &appServices{
		db:       db,
		registry: registry,
		guards:   middleware.NewGuards(authorizer),
		throttle: middleware.NewAuthThrottle(cfg.RateLimit, m),
		cors:     cfg.CORS,

		authHandler:          handlers.NewAuthHandler(authService, userService),
		userHandler:          handlers.NewUserHandler(userService),
		projectHandler:       handlers.NewProjectHandler(projectService),
		projectMemberHandler: handlers.NewProjectMemberHandler(projectService),
		issueHandler:         handlers.NewIssueHandler(services.NewIssueService(db, audit)),
		commentHandler:       handlers.NewCommentHandler(services.NewCommentService(db, audit)),
		logHandler:           handlers.NewLogHandler(services.NewLogService(db)),
		healthHandler:        handlers.NewHealthHandler(db),
	}
}

// shutdown stops background work and closes the database pool.
func (s *appServices) shutdown() {
	s.throttle.Stop()

	sqlDB, err := s.db.DB()
	if err != nil {
		return
	}
	if err := sqlDB.Close(); err != nil {
		logger.Warn().Err(err).Msg("Failed to close database")
		return
	}
	logger.Info().Msg("Database closed")
}
