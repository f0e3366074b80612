package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/classwatch/classwatch-api/api/swagger"
	"github.com/classwatch/classwatch-api/internal/handler"
	"github.com/classwatch/classwatch-api/internal/middleware"
	"github.com/classwatch/classwatch-api/internal/models"
	"github.com/classwatch/classwatch-api/internal/notify"
	"github.com/classwatch/classwatch-api/internal/repository"
	"github.com/classwatch/classwatch-api/internal/scoring"
	"github.com/classwatch/classwatch-api/internal/service"
	"github.com/classwatch/classwatch-api/pkg/cache"
	"github.com/classwatch/classwatch-api/pkg/config"
	"github.com/classwatch/classwatch-api/pkg/database"
	"github.com/classwatch/classwatch-api/pkg/logger"
	corsmiddleware "github.com/classwatch/classwatch-api/pkg/middleware/cors"
	reqidmiddleware "github.com/classwatch/classwatch-api/pkg/middleware/requestid"
)

// @title ClassWatch API
// @version 1.0.0
// @description Classroom wearable event engine
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
		logr.Sugar().Fatalw("failed to connect to database", "error", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := service.NewMetricsService()
	validate := validator.New()

	var cacheService *service.CacheService
	if cfg.Analytics.CacheEnabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Fatalw("failed to connect to redis", "error", err)
		}
		cacheRepo := repository.NewCacheRepository(redisClient, logr)
		defer cacheRepo.Close()
		cacheService = service.NewCacheService(cacheRepo, metrics, cfg.Analytics.CacheTTL, logr, true)
	} else {
		cacheService = service.NewCacheService(nil, metrics, cfg.Analytics.CacheTTL, logr, false)
	}

	notifier := notify.NewWebhookNotifier(notify.Config{
		WebhookURL: cfg.Alerts.WebhookURL,
		Workers:    cfg.Alerts.NotifyWorkers,
	}, logr)
	notifier.Start(ctx)
	defer notifier.Stop()

	attendanceRepo := repository.NewAttendanceRepository(db)
	focusRepo := repository.NewFocusRepository(db)
	emergencyRepo := repository.NewEmergencyRepository(db)

	engine := scoring.NewHTTPEngine(cfg.Scoring.BaseURL, cfg.Scoring.Timeout)

	authService := service.NewAuthService(logr, service.AuthConfig{
		Secret:     cfg.JWT.Secret,
		Expiration: cfg.JWT.Expiration,
	})
	attendanceService := service.NewAttendanceService(attendanceRepo, metrics, validate, logr, service.AttendanceServiceConfig{
		DedupWindow:   cfg.Attendance.DedupWindow,
		LateThreshold: cfg.Attendance.LateThreshold,
	})
	analyticsService := service.NewAnalyticsService(focusRepo, engine, cacheService, metrics, validate, logr, service.AnalyticsServiceConfig{
		ScoringTimeout: cfg.Scoring.Timeout,
		CacheTTL:       cfg.Analytics.CacheTTL,
	})
	emergencyService := service.NewEmergencyService(emergencyRepo, notifier, validate, logr, service.EmergencyServiceConfig{
		RateBurst:     cfg.Alerts.RateBurst,
		RatePerMinute: cfg.Alerts.RatePerMinute,
	})
	exportService := service.NewExportService(attendanceService, logr)

	attendanceHandler := handler.NewAttendanceHandler(attendanceService, exportService)
	analyticsHandler := handler.NewAnalyticsHandler(analyticsService)
	emergencyHandler := handler.NewEmergencyHandler(emergencyService)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "database unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(authService))

	attendance := api.Group("/attendance")
	{
		attendance.POST("/mark", attendanceHandler.Mark)
		attendance.PUT("/checkout", attendanceHandler.Checkout)
		attendance.GET("/student/:studentId", middleware.RBAC("SUPERADMIN", "ADMIN", "TEACHER", "SELF"), attendanceHandler.StudentHistory)
		attendance.GET("/class/:classId", middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin, models.RoleTeacher), attendanceHandler.ClassAttendance)
		attendance.GET("/class/:classId/export", middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin, models.RoleTeacher), attendanceHandler.Export)
	}

	analytics := api.Group("/analytics")
	{
		analytics.POST("/session", analyticsHandler.RecordSession)
		analytics.GET("/student/:studentId", middleware.RBAC("SUPERADMIN", "ADMIN", "TEACHER", "SELF"), analyticsHandler.StudentSummary)
		analytics.GET("/class/:classId", middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin, models.RoleTeacher), analyticsHandler.ClassSummary)
		analytics.GET("/trends/:studentId", middleware.RBAC("SUPERADMIN", "ADMIN", "TEACHER", "SELF"), analyticsHandler.Trend)
		analytics.GET("/dashboard", middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin), analyticsHandler.Dashboard)
	}

	emergency := api.Group("/emergency")
	{
		emergency.POST("/alert", emergencyHandler.Raise)
		emergency.GET("/active", middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin, models.RoleTeacher), emergencyHandler.ListActive)
		emergency.PATCH("/:alertId/status", middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin, models.RoleTeacher), emergencyHandler.UpdateStatus)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
	logr.Info("server stopped")
}
