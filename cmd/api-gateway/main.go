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
	_ "time/tzdata"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/school-attendance-api/api/swagger"
	"github.com/noah-isme/school-attendance-api/internal/handler"
	"github.com/noah-isme/school-attendance-api/internal/middleware"
	"github.com/noah-isme/school-attendance-api/internal/repository"
	"github.com/noah-isme/school-attendance-api/internal/service"
	"github.com/noah-isme/school-attendance-api/pkg/cache"
	"github.com/noah-isme/school-attendance-api/pkg/config"
	"github.com/noah-isme/school-attendance-api/pkg/database"
	"github.com/noah-isme/school-attendance-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/school-attendance-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/school-attendance-api/pkg/middleware/requestid"
)

const (
	cacheKeyPrefix    = "attendance"
	readHeaderTimeout = 10 * time.Second
)

// @title School Attendance API
// @version 1.0.0
// @description Teaching-slot scheduling, attendance ledger and attendance analytics.
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil {
		logr.Fatal("server stopped with error", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close()

	if cfg.Database.RunMigrations {
		if err := database.RunMigrations(db.DB, logr); err != nil {
			return err
		}
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, analytics cache disabled", zap.Error(err))
			redisClient = nil
		}
	}

	metricsSvc := service.NewMetricsService()
	validate := service.NewValidator()
	loc := cfg.School.Location

	cacheRepo := repository.NewCacheRepository(redisClient, cacheKeyPrefix)
	defer cacheRepo.Close() //nolint:errcheck
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Analytics.CacheTTL, logr, cfg.Analytics.CacheEnabled && redisClient != nil)

	slotRepo := repository.NewTimeSlotRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	analyticsRepo := repository.NewAnalyticsRepository(db)
	followUpRepo := repository.NewFollowUpRepository(db)

	slotSvc := service.NewSlotService(slotRepo, cacheSvc, metricsSvc, logr)
	schedulerSvc := service.NewSchedulerService(assignmentRepo, slotSvc, cacheSvc, metricsSvc, validate, logr, loc)
	attendanceSvc := service.NewAttendanceService(attendanceRepo, cacheSvc, metricsSvc, validate, logr, service.AttendanceOptions{
		PageSize:    cfg.Attendance.PageSize,
		MaxPageSize: cfg.Attendance.MaxPageSize,
		MaxBatch:    cfg.Attendance.MaxBatch,
	}, loc)
	analyticsSvc := service.NewAnalyticsService(analyticsRepo, cacheSvc, metricsSvc, logr, loc)
	followUpSvc := service.NewFollowUpService(followUpRepo, metricsSvc, validate, logr)
	tokenSvc := service.NewTokenService(service.TokenConfig{Secret: cfg.JWT.Secret, Issuer: cfg.JWT.Issuer})

	if !cfg.JWT.Enabled {
		logr.Warn("authentication disabled, every request runs as superadmin")
	}

	probes := map[string]handler.Probe{"postgres": db.PingContext}
	if redisClient != nil {
		probes["redis"] = cacheRepo.Ping
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	handler.RegisterRoutes(r, cfg.APIPrefix, middleware.JWT(tokenSvc, cfg.JWT.Enabled), handler.Handlers{
		Slots:       handler.NewSlotHandler(slotSvc, schedulerSvc),
		Assignments: handler.NewAssignmentHandler(schedulerSvc),
		Attendance:  handler.NewAttendanceHandler(attendanceSvc),
		Analytics:   handler.NewAnalyticsHandler(analyticsSvc),
		FollowUps:   handler.NewFollowUpHandler(followUpSvc),
		Metrics:     handler.NewMetricsHandler(metricsSvc, probes),
	})

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Info("server starting",
			zap.String("addr", srv.Addr),
			zap.String("env", cfg.Env),
			zap.String("timezone", loc.String()),
			zap.Bool("cache", cacheSvc.Enabled()),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logr.Info("shutting down", zap.Duration("timeout", cfg.ShutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
