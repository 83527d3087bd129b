package main

import (
	"github.com/gin-gonic/gin"
	"github.com/huangang/projecthub/backend/internal/config"
	"github.com/huangang/projecthub/backend/internal/handlers"
	"github.com/huangang/projecthub/backend/internal/middleware"
	"github.com/huangang/projecthub/backend/internal/models"
	"github.com/huangang/projecthub/backend/internal/workflow"
	"github.com/huangang/projecthub/backend/pkg/logger"
)

// registerRoutes sets up all HTTP routes on the given Gin engine.
func registerRoutes(r *gin.Engine, cfg *config.Config, svc *appServices) {
	r.Use(logger.GinLogger(), logger.GinRecovery())
	r.RedirectTrailingSlash = false
	r.RedirectFixedPath = false
	r.Use(middleware.CORS(cfg.App.FrontendURL))

	// Write endpoints are throttled per caller
	writeLimiter := middleware.NewRateLimiter(5, 20)

	healthHandler := handlers.NewHealthHandler()
	r.GET("/health", healthHandler.CheckHealth)

	api := r.Group("/api")
	api.Use(middleware.AuthRequired(), middleware.TrackUser(svc.users))
	{
		userHandler := handlers.NewUserHandler()
		api.GET("/users/me", userHandler.Me)

		projectHandler := handlers.NewSubmissionHandler(workflow.KindProject, svc.submissions)
		projects := api.Group("/projects")
		registerSubmissionRoutes(projects, projectHandler, writeLimiter)
		projects.PATCH("/:id/additional-info", writeLimiter.Middleware(), projectHandler.AdditionalInfo)

		workshopHandler := handlers.NewSubmissionHandler(workflow.KindWorkshop, svc.submissions)
		registerSubmissionRoutes(api.Group("/workshops"), workshopHandler, writeLimiter)

		admin := api.Group("")
		admin.Use(middleware.AdminRequired(), middleware.AuditLog())
		{
			systemLogHandler := handlers.NewSystemLogHandler(models.GetDB(), cfg.SystemLog.RetentionDays)
			admin.GET("/system-logs", systemLogHandler.List)
			admin.GET("/system-logs/modules", systemLogHandler.GetModules)
			admin.POST("/system-logs/cleanup", systemLogHandler.Cleanup)

			dashboardHandler := handlers.NewDashboardHandler(models.GetDB())
			admin.GET("/dashboard/stats", dashboardHandler.GetStats)
		}
	}
}

// registerSubmissionRoutes mounts the routes shared by projects and workshops.
func registerSubmissionRoutes(g *gin.RouterGroup, h *handlers.SubmissionHandler, limiter *middleware.RateLimiter) {
	g.GET("/me", h.Mine)
	g.GET("/:id", h.Get)

	writes := g.Group("", limiter.Middleware())
	{
		writes.POST("", h.Create)
		writes.PUT("/:id", h.Update)
		writes.DELETE("/:id", middleware.AuditLog(), h.Delete)
		writes.POST("/:id/leave", h.Leave)
	}

	admin := g.Group("", middleware.AdminRequired(), middleware.AuditLog())
	{
		admin.GET("", h.List)
		admin.PATCH("/:id/review", h.Review)
		admin.PATCH("/:id/request-changes", h.RequestChanges)
		admin.PATCH("/:id/complete", h.Complete)
	}
}
