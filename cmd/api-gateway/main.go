package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/event-calendar-api/api/swagger"
	"github.com/noah-isme/event-calendar-api/internal/handler"
	"github.com/noah-isme/event-calendar-api/internal/middleware"
	"github.com/noah-isme/event-calendar-api/internal/repository"
	"github.com/noah-isme/event-calendar-api/internal/service"
	"github.com/noah-isme/event-calendar-api/pkg/cache"
	"github.com/noah-isme/event-calendar-api/pkg/config"
	"github.com/noah-isme/event-calendar-api/pkg/database"
	"github.com/noah-isme/event-calendar-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/event-calendar-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/event-calendar-api/pkg/middleware/requestid"
)

// @title Event Calendar API
// @version 1.0.0
// @description Recurring events, per-occurrence overrides and iCalendar feeds for multi-tenant spaces.
// @BasePath /api/v1
// @schemes http https
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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logr.Info("signal received, shutting down", zap.String("signal", sig.String()))
		cancel()
	}()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	var redisClient *redis.Client
	if cfg.Cache.Enabled {
		redisClient, err = cache.Connect(ctx, cfg.Redis, logr)
		if err != nil {
			// The calendar stays correct without its cache.
			logr.Warn("occurrence cache disabled", zap.Error(err))
		}
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))

	metrics := service.NewMetricsService()
	if cfg.Metrics.Enabled {
		r.Use(middleware.Metrics(metrics))
	}
	registerRoutes(r, cfg, logr, db, redisClient, metrics)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Error("server failed", zap.Error(err))
			cancel()
		}
	}()

	<-ctx.Done()
	shutdownCtx, stop := context.WithTimeout(context.Background(), 15*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}
}

func registerRoutes(r *gin.Engine, cfg *config.Config, logr *zap.Logger, db *sqlx.DB, redisClient *redis.Client, metrics *service.MetricsService) {
	loc := cfg.Calendar.Location

	events := repository.NewEventRepository(db)
	audits := repository.NewAuditRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Cache.TTL, logr, cfg.Cache.Enabled && redisClient != nil)
	validate := service.NewValidator()
	tokens := service.NewTokenVerifier(cfg.JWT.Secret)

	occurrences := service.NewOccurrenceService(events, cacheSvc, metrics, logr, service.OccurrenceServiceConfig{
		Location:       loc,
		MaxWindow:      cfg.Calendar.MaxWindow,
		MaxOccurrences: cfg.Calendar.MaxOccurrences,
		CacheTTL:       cfg.Cache.TTL,
	})
	overrides := service.NewOverrideService(events, cacheSvc, audits, metrics, validate, logr, loc)
	series := service.NewSeriesService(events, cacheSvc, audits, metrics, validate, logr, loc, cfg.Calendar.MaxOccurrences)
	feeds := service.NewFeedService(events, occurrences, logr, service.FeedServiceConfig{
		Location: loc,
		Lookback: cfg.Calendar.FeedLookback,
		Horizon:  cfg.Calendar.FeedHorizon,
	})
	exports := service.NewExportService(occurrences, loc, logr, nil, nil)

	occurrenceHandler := handler.NewOccurrenceHandler(occurrences)
	eventHandler := handler.NewEventHandler(series, overrides)
	feedHandler := handler.NewFeedHandler(feeds, exports)
	checks := map[string]handler.Pinger{
		"database": handler.PingFunc(func(ctx context.Context) error { return database.Ping(ctx, db, time.Second) }),
	}
	if redisClient != nil {
		checks["redis"] = cacheRepo
	}
	metricsHandler := handler.NewMetricsHandler(metrics, checks)

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	if cfg.Metrics.Enabled {
		r.GET("/metrics", metricsHandler.Prometheus)
	}
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.WithResponseMeta())

	public := api.Group("")
	public.Use(middleware.OptionalJWT(tokens))
	public.GET("/occurrences", occurrenceHandler.List)
	public.GET("/events/:id", eventHandler.Get)
	public.GET("/events/:id/next", occurrenceHandler.Next)
	public.GET("/feeds/:space_id", feedHandler.SpaceFeed)
	public.GET("/exports/occurrences", feedHandler.ExportAgenda)

	editors := api.Group("")
	editors.Use(middleware.JWT(tokens), middleware.RequireEditor())
	editors.POST("/events", eventHandler.Create)
	editors.PATCH("/events/:id", eventHandler.Update)
	editors.POST("/events/:id/split", eventHandler.Split)
	editors.PUT("/events/:id/occurrences/:date/override", eventHandler.UpsertOverride)
	editors.DELETE("/events/:id/occurrences/:date/override", eventHandler.RemoveOverride)
	editors.DELETE("/events/:id/occurrences/:date", eventHandler.DeleteOccurrence)
}
