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

	_ "github.com/dockwise/dockwise-api/api/swagger"
	"github.com/dockwise/dockwise-api/internal/availability"
	"github.com/dockwise/dockwise-api/internal/handler"
	"github.com/dockwise/dockwise-api/internal/middleware"
	"github.com/dockwise/dockwise-api/internal/repository"
	"github.com/dockwise/dockwise-api/internal/service"
	"github.com/dockwise/dockwise-api/pkg/cache"
	"github.com/dockwise/dockwise-api/pkg/config"
	"github.com/dockwise/dockwise-api/pkg/database"
	"github.com/dockwise/dockwise-api/pkg/jobs"
	"github.com/dockwise/dockwise-api/pkg/logger"
	corsmiddleware "github.com/dockwise/dockwise-api/pkg/middleware/cors"
	reqidmiddleware "github.com/dockwise/dockwise-api/pkg/middleware/requestid"
	"github.com/dockwise/dockwise-api/pkg/storage"
	"go.uber.org/zap"
)

// @title Dockwise API
// @version 0.1.0
// @description Dock appointment availability and booking service
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, rule caching disabled", zap.Error(err))
		redisClient = nil
	}

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Availability.RuleCacheTTL, logr, redisClient != nil)

	facilityRepo := repository.NewFacilityRepository(db)
	ruleRepo := repository.NewAvailabilityRuleRepository(db)
	bookingRepo := repository.NewBookingRepository(db)

	availabilitySvc := service.NewAvailabilityService(
		facilityRepo,
		ruleRepo,
		bookingRepo,
		availability.SystemClock(),
		cacheSvc,
		metricsSvc,
		validate,
		logr,
		cfg.Availability.GranularityMinutes,
		cfg.Availability.RuleCacheTTL,
	)
	bookingSvc := service.NewBookingService(availabilitySvc, bookingRepo, validate, logr, metricsSvc)
	tokenSvc := service.NewTokenService(cfg.JWT)

	var daySheetSvc *service.DaySheetService
	var daySheetQueue *jobs.Queue
	if cfg.DaySheets.Enabled {
		fileStore, err := storage.NewLocalStorage(cfg.DaySheets.StorageDir)
		if err != nil {
			logr.Fatal("failed to init day sheet storage", zap.Error(err))
		}
		signer := storage.NewSignedURLSigner(cfg.DaySheets.SignedURLSecret, cfg.DaySheets.SignedURLTTL)
		daySheetRepo := repository.NewDaySheetRepository(db)

		var worker *service.DaySheetWorker
		daySheetQueue = jobs.NewQueue("day_sheets", func(ctx context.Context, job jobs.Job) error {
			return worker.Handle(ctx, job)
		}, jobs.QueueConfig{
			Workers:    cfg.DaySheets.WorkerConcurrency,
			MaxRetries: cfg.DaySheets.WorkerRetries,
			Logger:     logr,
		})
		daySheetSvc = service.NewDaySheetService(
			daySheetRepo,
			facilityRepo,
			bookingRepo,
			daySheetQueue,
			fileStore,
			signer,
			logr,
			service.DaySheetConfig{
				APIPrefix:       cfg.APIPrefix,
				ResultTTL:       cfg.DaySheets.SignedURLTTL,
				CleanupInterval: cfg.DaySheets.CleanupInterval,
				MaxRetries:      cfg.DaySheets.WorkerRetries,
			},
		)
		worker = service.NewDaySheetWorker(daySheetRepo, daySheetSvc, cfg.DaySheets.WorkerRetries, logr)

		daySheetQueue.Start(ctx)
		defer daySheetQueue.Stop()
		daySheetSvc.RecoverPendingJobs(ctx)
		daySheetSvc.StartCleanup(ctx)
	}

	availabilityHandler := handler.NewAvailabilityHandler(availabilitySvc)
	bookingHandler := handler.NewBookingHandler(bookingSvc)
	daySheetHandler := handler.NewDaySheetHandler(nil)
	if daySheetSvc != nil {
		daySheetHandler = handler.NewDaySheetHandler(daySheetSvc)
	}
	metricsHandler := handler.NewMetricsHandler(metricsSvc, db, redisClient)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	{
		// Slot listing is readable by unauthenticated carrier portals;
		// everything that mutates requires a token.
		public := api.Group("")
		public.Use(middleware.OptionalJWT(tokenSvc))
		public.GET("/facilities/:id/slots", availabilityHandler.ListSlots)
		public.POST("/facilities/:id/slots/validate", availabilityHandler.ValidateSlot)

		// Day-sheet downloads authenticate via the signed token in the path.
		public.GET("/export/:token", daySheetHandler.Download)

		authed := api.Group("")
		authed.Use(middleware.JWT(tokenSvc))
		authed.POST("/facilities/:id/bookings", bookingHandler.Create)
		authed.GET("/facilities/:id/bookings/:bookingId", bookingHandler.Get)
		authed.POST("/facilities/:id/day-sheets", daySheetHandler.Create)
		authed.GET("/day-sheets/:jobId", daySheetHandler.Status)
		authed.GET("/system/metrics", metricsHandler.System)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}
