package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"skyprice/internal/cache"
	"skyprice/internal/config"
	"skyprice/internal/database"
	"skyprice/internal/handlers"
	"skyprice/internal/logger"
	"skyprice/internal/middleware"
	"skyprice/internal/service"
	"skyprice/internal/tracing"
)

const shutdownTimeout = 5 * time.Second

func main() {
	configPath := flag.String("config", "conf/config.yaml", "Path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.InitLogger(config.LogConfig{Console: true}, "skyprice-alerts")
		logger.Log.Fatal("Failed to load configuration", zap.Error(err))
	}

	logger.InitLogger(cfg.Log, cfg.AppName)
	defer logger.Sync()

	ctx := context.Background()

	shutdownTracer, err := tracing.InitTracer(ctx, cfg.Tracing)
	if err != nil {
		logger.Log.Fatal("Failed to initialize tracer", zap.Error(err))
	}

	store, err := database.Connect(ctx, cfg.Mongo)
	if err != nil {
		logger.Log.Fatal("Failed to connect to MongoDB", zap.Error(err))
	}

	var opts []service.Option
	var limiter middleware.Limiter
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			logger.Log.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		opts = append(opts, service.WithCache(cache.NewRedisCache(redisClient, cfg.Instance), cfg.Redis.CacheTTL))
		if cfg.Redis.RateLimitPerMinute > 0 {
			limiter = cache.NewRateLimiter(redisClient, cfg.Redis.RateLimitPerMinute)
		}
		logger.Log.Info("Redis cache enabled", zap.String("addr", cfg.Redis.Addr))
	}

	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := handlers.NewRouter(handlers.RouterOptions{
		Service:        service.NewAlertService(store, opts...),
		Limiter:        limiter,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
	})

	srv := &http.Server{
		Addr:    cfg.Listen,
		Handler: router,
	}

	go func() {
		logger.Log.Info("Alerts service starting", zap.String("listen", cfg.Listen), zap.String("instance", cfg.Instance))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logger.Log.Info("Shutting down", zap.String("signal", sig.String()))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err = srv.Shutdown(shutdownCtx)
	err = multierr.Append(err, store.Close(shutdownCtx))
	if redisClient != nil {
		err = multierr.Append(err, redisClient.Close())
	}
	err = multierr.Append(err, shutdownTracer(shutdownCtx))
	if err != nil {
		logger.Log.Error("Shutdown completed with errors", zap.Errors("errors", multierr.Errors(err)))
		return
	}
	logger.Log.Info("Shutdown complete")
}
