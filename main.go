package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/auth0/go-jwt-middleware/v2"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/production-planner-api/config"
	"github.com/kendall-kelly/production-planner-api/controllers"
	"github.com/kendall-kelly/production-planner-api/middleware"
	"github.com/kendall-kelly/production-planner-api/services"
	"github.com/sirupsen/logrus"
)

const directoryCacheTTL = 5 * time.Minute

func main() {
	logger := config.GetLogger()
	logger.Info("Starting Production Planner API server...")

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}
	config.ConfigureLogger(cfg)

	// Connect to database
	if err := config.ConnectDatabase(cfg); err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}

	// Auto-migrate database models
	db := config.GetDB()
	if err := config.Migrate(db); err != nil {
		logger.WithError(err).Fatal("Failed to migrate database")
	}
	logger.Info("Database migration completed successfully")

	if err := config.ConnectRedis(cfg); err != nil {
		logger.WithError(err).Fatal("Failed to connect to redis")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var directory services.Directory = services.NewGormDirectory(db)
	var locker services.Locker = services.NoopLocker{}
	if rdb := config.GetRedis(); rdb != nil {
		directory = services.NewCachedDirectory(directory, rdb, directoryCacheTTL, logger)
		locker = services.NewRedisLocker(config.GetRedisLock())
	}

	sink, err := services.InitEventSink(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize event sink")
	}
	if closer, ok := sink.(io.Closer); ok {
		defer closer.Close()
	}
	logger.WithField("event_sink", cfg.EventSink).Info("Event sink ready")

	svcs := services.Build(db, directory, sink, locker, logger)
	svcs.Outbox.Interval = cfg.OutboxPollInterval
	services.SetServices(svcs)

	if cfg.OutboxWorkerEnabled {
		go svcs.Outbox.Run(ctx)
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	validateToken, err := middleware.NewTokenValidator(cfg)
	if err != nil {
		logger.WithError(err).Fatal("Failed to set up token validation")
	}
	router := newRouter(cfg, validateToken, svcs.Resolver)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Infof("Server is running on http://localhost:%s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Failed to start server")
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server shutdown failed")
	}
}

// newRouter wires middleware and routes. Everything except the health and
// database status endpoints needs a valid token and a resolved company.
func newRouter(cfg *config.Config, validateToken jwtmiddleware.ValidateToken, resolver services.CompanyResolver) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())
	router.Use(cors.New(corsConfig(cfg)))

	v1 := router.Group("/api/v1")
	{
		// Health check endpoint
		v1.GET("/health", healthCheck)

		// Database status endpoint
		v1.GET("/database/status", databaseStatus)

		authed := v1.Group("")
		authed.Use(middleware.EnsureValidToken(validateToken))
		if cfg.Auth0RequiredScope != "" {
			authed.Use(middleware.RequirePermission(cfg.Auth0RequiredScope))
		}
		{
			authed.GET("/me", controllers.GetMyProfile)
			authed.PUT("/me", controllers.UpdateMyProfile)

			scoped := authed.Group("")
			scoped.Use(middleware.ResolveCompany(resolver))

			plans := scoped.Group("/production-plans")
			plans.GET("", controllers.ListPlans)
			plans.POST("", controllers.CreatePlan)
			plans.GET("/:id", controllers.GetPlan)
			plans.PUT("/:id", controllers.UpdatePlan)
			plans.DELETE("/:id", controllers.DeletePlan)

			assignments := scoped.Group("/job-assignments")
			assignments.GET("", controllers.ListAssignments)
			assignments.POST("", controllers.AssignJob)
			assignments.DELETE("/:id", controllers.UnassignJob)

			orders := scoped.Group("/wholesale-orders")
			orders.GET("", controllers.ListOrders)
			orders.POST("", controllers.CreateOrder)
			orders.GET("/:id", controllers.GetOrder)
			orders.PATCH("/:id/status", controllers.UpdateOrderStatus)
			orders.POST("/:id/generate-next", controllers.GenerateNextOrder)
		}
	}

	return router
}

func corsConfig(cfg *config.Config) cors.Config {
	corsCfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", middleware.CompanyHeader},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	for _, origin := range cfg.CORSAllowedOrigins {
		if origin == "*" {
			corsCfg.AllowAllOrigins = true
			return corsCfg
		}
	}
	corsCfg.AllowOrigins = cfg.CORSAllowedOrigins
	corsCfg.AllowCredentials = true
	return corsCfg
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		config.GetLogger().WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.FullPath(),
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
		}).Debug("request")
	}
}

// healthCheck handles the health check endpoint
func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Production Planner API is running",
	})
}

// databaseStatus checks database connectivity and returns table information
func databaseStatus(c *gin.Context) {
	db := config.GetDB()

	// Get the underlying SQL database to check connection
	sqlDB, err := db.DB()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to get database instance",
			},
		})
		return
	}

	// Ping the database to verify connection
	if err := sqlDB.PingContext(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_CONNECTION_ERROR",
				"message": "Database connection failed",
			},
		})
		return
	}

	// Get list of tables
	tables, err := db.Migrator().GetTables()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_QUERY_ERROR",
				"message": "Failed to query tables",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Database connected",
		"tables":  tables,
	})
}
