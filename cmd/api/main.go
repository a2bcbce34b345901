package main

import (
	"context"
	"log"
	"os"

	"market-compass-api/config"
	"market-compass-api/controllers"
	"market-compass-api/middleware"
	"market-compass-api/monitor"
	"market-compass-api/routes"
	"market-compass-api/services"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	logFile, _ := config.InitLogging()
	if logFile != nil {
		defer logFile.Close()
	}

	// Initialize database
	config.InitDB()

	// Set Gin mode
	ginMode := os.Getenv("GIN_MODE")
	if ginMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Start the sync worker pool; the orchestrator owns background sync
	// lifecycle for this process instance.
	orchestrator := services.NewSyncOrchestrator(nil)
	orchestrator.Start(0)
	defer orchestrator.Stop()
	controllers.InitSync(orchestrator)

	// Optional scheduled sync of all domains.
	if os.Getenv("SYNC_CRON_ENABLED") == "true" {
		spec := os.Getenv("SYNC_CRON")
		if spec == "" {
			spec = "0 * * * *" // hourly
		}
		scheduler := cron.New()
		if _, err := scheduler.AddFunc(spec, func() {
			results := orchestrator.Trigger(context.Background(), nil, "cron")
			for _, r := range results {
				log.Printf("cron sync %s: %s (%s)", r.Domain, r.Status, r.Message)
			}
		}); err != nil {
			log.Printf("Warning: invalid SYNC_CRON %q: %v", spec, err)
		} else {
			scheduler.Start()
			defer scheduler.Stop()
			log.Printf("Scheduled sync enabled: %s", spec)
		}
	}

	// Create Gin router
	router := gin.New()

	// Add logging middleware
	router.Use(gin.Logger())

	// Add recovery middleware
	router.Use(gin.Recovery())

	// Add security headers middleware
	router.Use(func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Next()
	})

	// Add CORS middleware
	router.Use(middleware.CORSMiddleware())

	// Register /logs route early (before 404 catch-all in SetupRoutes)
	router.GET("/logs", func(c *gin.Context) {
		accessToken := os.Getenv("LOG_ACCESS_TOKEN")
		if accessToken == "" || c.Query("token") != accessToken {
			c.JSON(401, gin.H{"error": "Unauthorized"})
			return
		}

		logData, err := os.ReadFile(config.LogFilePath())
		if err != nil {
			c.JSON(500, gin.H{"error": "Unable to read log"})
			return
		}

		c.Data(200, "text/plain; charset=utf-8", logData)
	})

	// Register sync monitor page
	monitor.RegisterMonitorPage(router)

	// Setup routes
	routes.SetupRoutes(router)

	// Start server
	port := os.Getenv("SERVER_PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("🚀 Server starting on port %s", port)
	log.Printf("📊 Database connected successfully")
	log.Printf("🔄 Sync orchestrator running as %s", orchestrator.HolderID())

	if ginMode == "release" {
		log.Printf("🏭 Running in production mode")
	} else {
		log.Printf("🔧 Running in development mode")
	}

	if err := router.Run(":" + port); err != nil {
		log.Fatal("❌ Failed to start server:", err)
	}
}
