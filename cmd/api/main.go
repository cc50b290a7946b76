package main

import (
	"fmt"
	"log"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-co-op/gocron"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"

	"github.com/edupath/referral-backend/internal/attribution"
	"github.com/edupath/referral-backend/internal/config"
	"github.com/edupath/referral-backend/internal/database"
	"github.com/edupath/referral-backend/internal/database/migrations"
	"github.com/edupath/referral-backend/internal/jobs"
	"github.com/edupath/referral-backend/internal/routes"
	"github.com/edupath/referral-backend/internal/tracking"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	// Initialize configuration
	cfg := config.LoadConfig()

	// Setup database connection
	db, err := database.InitDB(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Run versioned migrations
	if err := migrations.RunMigrations(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Redis backs the session page-load counters; the tracker degrades to
	// an in-process counter if the connection is unusable.
	var redisClient *redis.Client
	if opts, err := redis.ParseURL(cfg.Redis.URL); err != nil {
		log.Printf("Warning: invalid REDIS_URL, session counters run in-process: %v", err)
	} else {
		if cfg.Redis.Password != "" {
			opts.Password = cfg.Redis.Password
		}
		opts.DB = cfg.Redis.DB
		redisClient = redis.NewClient(opts)
	}

	// Tracking pipeline
	sessions := tracking.NewSessionTracker(redisClient)
	trackingMirror := tracking.NewLegacyMirror(cfg.LegacyForms.TrackingURL, time.Duration(cfg.LegacyForms.TimeoutSeconds)*time.Second)
	registrationMirror := tracking.NewLegacyMirror(cfg.LegacyForms.RegistrationURL, time.Duration(cfg.LegacyForms.TimeoutSeconds)*time.Second)
	emitter := tracking.NewEmitter(db, trackingMirror, sessions)

	// Initialize router
	router := gin.Default()

	// Configure CORS
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{cfg.FrontendURL},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}))

	// Schedule the attribution sweep
	scheduler := gocron.NewScheduler(time.UTC)
	sweep := jobs.NewAttributionSweepJob(db, attribution.NewReconciler(db))
	if err := sweep.Schedule(scheduler); err != nil {
		log.Fatalf("Failed to schedule attribution sweep: %v", err)
	}
	scheduler.StartAsync()

	// Register routes
	routes.RegisterRoutes(router, db, cfg, emitter, registrationMirror)

	// Start server
	fmt.Printf("Referral backend running on port %s\n", cfg.Server.Port)
	if err := router.Run(":" + cfg.Server.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
