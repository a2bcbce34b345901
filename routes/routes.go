package routes

import (
	"market-compass-api/controllers"
	"market-compass-api/middleware"
	"market-compass-api/models"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(router *gin.Engine) {
	// API v1 group
	v1 := router.Group("/api/v1")
	{
		// Public routes
		public := v1.Group("")
		{
			// Authentication
			public.POST("/login", controllers.Login)

			// Health check
			public.GET("/health", func(c *gin.Context) {
				c.JSON(200, gin.H{
					"status":  "ok",
					"message": "Market Compass API is running",
				})
			})
		}

		// Protected routes (require authentication)
		protected := v1.Group("")
		protected.Use(middleware.AuthMiddleware())
		{
			// User profile
			protected.GET("/profile", controllers.GetProfile)
			protected.PUT("/change-password", controllers.ChangePassword)

			// Dashboard summary
			protected.GET("/dashboard", controllers.GetDashboard)

			// Traders
			traders := protected.Group("/traders")
			{
				traders.GET("", controllers.GetTraders)
				traders.GET("/:id", controllers.GetTrader)
				traders.GET("/:id/portfolio", controllers.GetTraderPortfolio)
				traders.GET("/:id/posts", controllers.GetTraderPosts)
			}

			// Assets and discussion posts
			protected.GET("/assets", controllers.GetAssets)
			protected.GET("/assets/:symbol", controllers.GetAsset)
			protected.GET("/posts", controllers.GetPosts)

			// Analysis reports (read side)
			protected.GET("/reports", controllers.GetReports)
			protected.GET("/reports/:id", controllers.GetReport)

			// Sync visibility (read side, polled by the dashboard)
			sync := protected.Group("/sync")
			{
				sync.GET("/status", controllers.GetSyncStatus)
				sync.GET("/runs", controllers.GetSyncRuns)
				sync.GET("/runs/:id", controllers.GetSyncRun)
				sync.GET("/logs", controllers.GetSyncLogs)
			}

			// Admin-only operations
			admin := protected.Group("/admin")
			admin.Use(middleware.RequireRole(models.RoleAdmin))
			{
				admin.POST("/traders", controllers.CreateTrader)

				admin.POST("/sync/trigger", controllers.TriggerSync)
				admin.POST("/sync/clear-stale-locks", controllers.ClearStaleLocks)
				admin.GET("/sync/jobs", controllers.GetSyncJobs)

				admin.POST("/reports/generate", controllers.GenerateReport)
				admin.POST("/reports/:id/review", controllers.ReviewReport)
			}
		}

	}

	// Catch-all for unknown paths
	router.NoRoute(func(c *gin.Context) {
		c.JSON(404, gin.H{"success": false, "error": "Endpoint not found"})
	})
}
