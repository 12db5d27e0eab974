package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/flowstudio/studio-api/api/swagger"
	"github.com/flowstudio/studio-api/internal/handler"
	"github.com/flowstudio/studio-api/internal/middleware"
	"github.com/flowstudio/studio-api/internal/models"
	"github.com/flowstudio/studio-api/internal/repository"
	"github.com/flowstudio/studio-api/internal/service"
	"github.com/flowstudio/studio-api/pkg/cache"
	"github.com/flowstudio/studio-api/pkg/config"
	"github.com/flowstudio/studio-api/pkg/database"
	"github.com/flowstudio/studio-api/pkg/export"
	"github.com/flowstudio/studio-api/pkg/logger"
	corsmiddleware "github.com/flowstudio/studio-api/pkg/middleware/cors"
	reqidmiddleware "github.com/flowstudio/studio-api/pkg/middleware/requestid"
)

// @title FlowStudio API
// @version 1.0.0
// @description Class catalog, bookings and progress tracking for the studio
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	migrateCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	if err := database.Migrate(migrateCtx, db, cfg.Database.MigrationsDir); err != nil {
		logr.Fatal("failed to run migrations", zap.Error(err))
	}

	var redisClient *redis.Client
	if cfg.Redis.Host != "" {
		redisClient, err = cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, caching disabled", zap.Error(err))
			redisClient = nil
		}
	}

	router := buildRouter(cfg, logr, db, redisClient)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := router.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}

func buildRouter(cfg *config.Config, logr *zap.Logger, db *sqlx.DB, redisClient *redis.Client) *gin.Engine {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	metricsSvc := service.NewMetricsService()

	var cacheRepo service.CacheRepository
	if redisClient != nil {
		cacheRepo = repository.NewCacheRepository(redisClient, logr)
	}
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Catalog.CacheTTL, logr, redisClient != nil)

	userRepo := repository.NewUserRepository(db)
	classRepo := repository.NewClassRepository(db)
	bookingRepo := repository.NewBookingRepository(db)
	progressRepo := repository.NewProgressRepository(db)

	authSvc := service.NewAuthService(userRepo, nil, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	})
	classSvc := service.NewClassService(classRepo, bookingRepo, cacheSvc, nil, logr)
	bookingSvc := service.NewBookingService(bookingRepo, classRepo, userRepo, cacheSvc, metricsSvc, logr)
	progressSvc := service.NewProgressService(progressRepo, classRepo, cacheSvc, logr)
	dashboardSvc := service.NewDashboardService(bookingRepo, classRepo, progressRepo, userRepo, cacheSvc, cfg.Dashboard.CacheTTL, logr)
	exportSvc := service.NewExportService(bookingRepo, classRepo, logr, export.NewCSVExporter(), export.NewPDFExporter())

	authHandler := handler.NewAuthHandler(authSvc)
	classHandler := handler.NewClassHandler(classSvc)
	bookingHandler := handler.NewBookingHandler(bookingSvc)
	progressHandler := handler.NewProgressHandler(progressSvc)
	dashboardHandler := handler.NewDashboardHandler(dashboardSvc)
	exportHandler := handler.NewExportHandler(exportSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(reqidmiddleware.Middleware())
	router.Use(logger.GinMiddleware(logr))
	router.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	router.Use(middleware.Metrics(metricsSvc))

	router.GET("/health", metricsHandler.Health)
	router.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	router.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		router.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := router.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/logout", middleware.JWT(authSvc), authHandler.Logout)
		auth.GET("/me", middleware.JWT(authSvc), authHandler.Me)
	}

	classes := api.Group("/classes")
	{
		classes.GET("", middleware.OptionalJWT(authSvc), classHandler.List)
		classes.GET("/:id", middleware.OptionalJWT(authSvc), classHandler.Get)
		classes.GET("/:id/availability", classHandler.Availability)
		classes.POST("", middleware.JWT(authSvc), middleware.RequireStaff(), classHandler.Create)
		classes.PUT("/:id", middleware.JWT(authSvc), middleware.RequireStaff(), classHandler.Update)
		classes.DELETE("/:id", middleware.JWT(authSvc), middleware.RequireAdmin(), classHandler.Delete)

		classes.POST("/:id/bookings", middleware.JWT(authSvc), bookingHandler.Toggle)
		classes.GET("/:id/bookings", middleware.JWT(authSvc), middleware.RequireStaff(), bookingHandler.ListForClass)
		classes.POST("/:id/progress", middleware.JWT(authSvc), progressHandler.Toggle)

		if cfg.Exports.Enabled {
			classes.GET("/:id/roster", middleware.JWT(authSvc), middleware.RequireStaff(), exportHandler.Roster)
		}
	}

	bookings := api.Group("/bookings", middleware.JWT(authSvc))
	{
		bookings.GET("", bookingHandler.ListMine)
		bookings.GET("/usage", bookingHandler.Usage)
	}

	progress := api.Group("/progress", middleware.JWT(authSvc))
	{
		progress.GET("", progressHandler.List)
		progress.GET("/summary", progressHandler.Summary)
	}

	if cfg.Dashboard.Enabled {
		api.GET("/dashboard", middleware.JWT(authSvc), middleware.RBAC(models.RoleAdmin, models.RoleInstructor, models.RoleAlumna), dashboardHandler.Home)
	}

	return router
}
