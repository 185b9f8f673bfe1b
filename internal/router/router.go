package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/lookout-dev/lookout/internal/handlers"
	"github.com/lookout-dev/lookout/internal/middleware"
	"github.com/lookout-dev/lookout/internal/types"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config carries the router's injected dependencies. The status-update
// endpoint is authenticated by a shared secret rather than a user session, so
// the secret travels here instead of through the auth middleware.
type Config struct {
	StatusUpdates *handlers.StatusUpdateHandler
	Hub           *handlers.Hub
	CronSecret    string
}

func NewRouter(cfg Config) *gin.Engine {
	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:     types.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	{
		api.GET("/health", handlers.HealthCheck)
		api.GET("/ws/:workspace_id", middleware.AuthMiddleware(), cfg.Hub.ServeWorkspace)

		auth := api.Group("/auth")
		{
			auth.POST("/register", handlers.Register)
			auth.POST("/login", handlers.Login)
			auth.POST("/logout", handlers.Logout)
			auth.GET("/me", middleware.AuthMiddleware(), handlers.Me)
		}

		// Probe-layer callback, authenticated by shared secret.
		api.POST("/status-update", middleware.CronAuthMiddleware(cfg.CronSecret), cfg.StatusUpdates.UpdateStatus)

		workspaces := api.Group("/workspaces", middleware.AuthMiddleware())
		{
			workspaces.POST("", handlers.CreateWorkspace)
			workspaces.GET("", handlers.ListWorkspaces)
			workspaces.PATCH("/:workspace_id", handlers.UpdateWorkspace)
			workspaces.DELETE("/:workspace_id", handlers.DeleteWorkspace)

			workspaces.GET("/:workspace_id/dashboard", handlers.GetDashboard)

			workspaces.POST("/:workspace_id/monitors", handlers.CreateMonitor)
			workspaces.GET("/:workspace_id/monitors", handlers.GetMonitors)
			workspaces.PUT("/:workspace_id/monitors/:monitor_id", handlers.UpdateMonitor)
			workspaces.DELETE("/:workspace_id/monitors/:monitor_id", handlers.DeleteMonitor)
			workspaces.GET("/:workspace_id/monitors/:monitor_id/checks", handlers.GetMonitorChecks)
			workspaces.GET("/:workspace_id/monitors/:monitor_id/incidents", handlers.GetMonitorIncidents)

			workspaces.POST("/:workspace_id/channels", handlers.CreateChannel)
			workspaces.GET("/:workspace_id/channels", handlers.ListChannels)
			workspaces.PUT("/:workspace_id/channels/:channel_id", handlers.UpdateChannel)
			workspaces.DELETE("/:workspace_id/channels/:channel_id", handlers.DeleteChannel)
		}
	}

	return r
}
