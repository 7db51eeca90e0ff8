package main

import (
	"github.com/gin-gonic/gin"
	"github.com/huangang/issuetrack/internal/handlers"
	"github.com/huangang/issuetrack/internal/middleware"
	"github.com/huangang/issuetrack/internal/models"
	"github.com/huangang/issuetrack/pkg/logger"
)

// registerRoutes sets up all HTTP routes on the given Gin engine.
func registerRoutes(r *gin.Engine, svc *appServices) {
	r.Use(middleware.RequestID(), logger.GinLogger(), logger.GinRecovery())
	r.RedirectTrailingSlash = false
	r.RedirectFixedPath = false
	r.Use(middleware.CORS(svc.cors))

	g := svc.guards

	r.GET("/health", svc.healthHandler.CheckHealth)
	r.GET("/metrics", handlers.Metrics(svc.registry))

	api := r.Group("/api")
	{
		// Public, rate limited
		public := api.Group("", svc.throttle.Middleware())
		{
			public.POST("/register", svc.authHandler.Register)
			public.POST("/login", svc.authHandler.Login)
		}

		protected := api.Group("")
		protected.Use(middleware.AuthRequired())
		{
			// Current user
			protected.GET("/user", g.RequireIdentity(), svc.authHandler.GetCurrentUser)
			protected.PUT("/user", g.RequireIdentity(), svc.userHandler.UpdateProfile)
			protected.PUT("/user/password", g.RequireIdentity(), svc.authHandler.ChangePassword)

			// Admin
			admin := protected.Group("/admin", g.RequireRole(models.RoleAdmin))
			{
				admin.POST("/change_role", svc.userHandler.ChangeRole)
				admin.DELETE("/users/:id", svc.userHandler.Delete)
			}

			// Audit trail
			logs := protected.Group("/logs", g.RequireRole(models.RoleAdmin))
			{
				logs.GET("", svc.logHandler.List)
				logs.GET("/:count", svc.logHandler.List)
			}

			// Projects
			protected.GET("/projects", g.RequireIdentity(), svc.projectHandler.List)
			protected.POST("/projects", g.RequireRole(models.RoleProjectManager), svc.projectHandler.Create)

			manage := g.RequireRoleAndProjectAccess(models.RoleProjectManager, "project_id")
			protected.PUT("/projects/:project_id", manage, svc.projectHandler.Update)
			protected.DELETE("/projects/:project_id", manage, svc.projectHandler.Delete)
			protected.POST("/projects/:project_id/members", g.RequireMembershipChange("project_id"), svc.projectMemberHandler.Add)

			project := protected.Group("/projects/:project_id", g.RequireProjectAccess("project_id"))
			{
				project.GET("", svc.projectHandler.Get)
				project.GET("/members", svc.projectMemberHandler.List)

				project.GET("/issues", svc.issueHandler.List)
				project.POST("/issues", svc.issueHandler.Create)
				project.GET("/issues/:issue_id", svc.issueHandler.Get)
				project.PUT("/issues/:issue_id", svc.issueHandler.Update)
				project.DELETE("/issues/:issue_id", svc.issueHandler.Delete)

				project.GET("/issues/:issue_id/comments", svc.commentHandler.List)
				project.POST("/issues/:issue_id/comments", svc.commentHandler.Create)
				project.PUT("/issues/:issue_id/comments/:comment_id", svc.commentHandler.Update)
				project.DELETE("/issues/:issue_id/comments/:comment_id", svc.commentHandler.Delete)
			}
		}
	}
}
