package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/edupath/referral-backend/internal/attribution"
	"github.com/edupath/referral-backend/internal/config"
	"github.com/edupath/referral-backend/internal/handlers"
	"github.com/edupath/referral-backend/internal/ledger"
	"github.com/edupath/referral-backend/internal/middleware"
	"github.com/edupath/referral-backend/internal/referral"
	"github.com/edupath/referral-backend/internal/tracking"
)

// RegisterRoutes configures all API routes
func RegisterRoutes(router *gin.Engine, db *gorm.DB, cfg *config.Config, emitter *tracking.Emitter, registrationMirror *tracking.LegacyMirror) {
	// Public endpoints get a per-IP limiter; tracking calls arrive from
	// every page load of the marketing site.
	rateLimiter := middleware.NewRateLimiter(20, 40)

	reconciler := attribution.NewReconciler(db)
	conversionLedger := ledger.NewLedger(db, reconciler)
	issuer := referral.NewIssuer(db, cfg.Referral.MaxIssueAttempts)

	authHandler := handlers.NewAuthHandler(db, cfg)
	trackingHandler := handlers.NewTrackingHandler(emitter)
	registrantHandler := handlers.NewRegistrantHandler(db, issuer, emitter, registrationMirror)
	conversionHandler := handlers.NewConversionHandler(conversionLedger)
	attributionHandler := handlers.NewAttributionHandler(reconciler)

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api")
	{
		v1.GET("/version", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"version": "1.0.0"})
		})

		// Staff authentication
		v1.POST("/auth/login", authHandler.Login)

		// Public tracking and registration
		public := v1.Group("/")
		public.Use(rateLimiter.IPRateLimiterMiddleware())
		{
			public.POST("/referral-tracking", trackingHandler.Track)
			public.GET("/referral-tracking", trackingHandler.Info)
			public.POST("/ambassadors", registrantHandler.RegisterAmbassador)
			public.POST("/campus-guides", registrantHandler.RegisterCampusGuide)
		}

		// Staff routes - require a valid token and an allow-listed email
		staff := v1.Group("/admin")
		staff.Use(middleware.AuthMiddleware(), middleware.StaffMiddleware(cfg))
		{
			staff.GET("/ambassadors", registrantHandler.ListAmbassadors)
			staff.GET("/campus-guides", registrantHandler.ListCampusGuides)

			staff.POST("/conversions", conversionHandler.Create)
			staff.GET("/conversions", conversionHandler.List)
			staff.GET("/conversions/stats", conversionHandler.Stats)
			staff.GET("/conversions/:id", conversionHandler.Get)
			staff.PUT("/conversions/:id", conversionHandler.Update)
			staff.DELETE("/conversions/:id", conversionHandler.Delete)

			staff.GET("/attribution/resolve/:code", attributionHandler.Resolve)
			staff.POST("/attribution/resolve-batch", attributionHandler.ResolveBatch)
			staff.GET("/attribution/search", attributionHandler.Search)
		}
	}
}
