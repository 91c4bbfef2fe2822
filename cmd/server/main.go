package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	config "github.com/avatarctic/tagcache/go/configs"
	"github.com/avatarctic/tagcache/go/internal/application/services"
	"github.com/avatarctic/tagcache/go/internal/core/ports"
	"github.com/avatarctic/tagcache/go/internal/infrastructure/codec"
	"github.com/avatarctic/tagcache/go/internal/infrastructure/health"
	"github.com/avatarctic/tagcache/go/internal/infrastructure/httpserver"
	"github.com/avatarctic/tagcache/go/internal/infrastructure/redis"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	logger := newLogger(cfg.Log)
	logger.Info("Starting tag cache service...")

	redisClient, err := redis.NewRedisClient(&cfg.Redis, logger)
	if err != nil {
		logger.Fatal("Failed to connect to Redis:", err)
	}
	defer redisClient.Close()
	logger.WithField("addr", cfg.Redis.Addr()).Info("Connected to Redis successfully")

	algo, err := codec.ParseAlgorithm(cfg.Cache.CompressionLib)
	if err != nil {
		logger.Fatal("Invalid compression settings:", err)
	}
	c, err := codec.New(algo, cfg.Cache.CompressThreshold)
	if err != nil {
		logger.Fatal("Invalid compression settings:", err)
	}

	backend := redis.NewBackend(redisClient, c, redis.Options{
		KeyPrefix:               cfg.Cache.KeyPrefix,
		CompressData:            cfg.Cache.CompressData,
		CompressTags:            cfg.Cache.CompressTags,
		DefaultLifetime:         cfg.Cache.DefaultLifetime,
		LifetimeLimit:           cfg.Cache.LifetimeLimit,
		NotMatchingTags:         cfg.Cache.NotMatchingTags,
		PersistentTags:          cfg.Cache.PersistentTags,
		PersistentTagPrefix:     cfg.Cache.PersistentTagPrefix,
		AutomaticCleaningFactor: cfg.Cache.AutomaticCleaningFactor,
		GCBatchSize:             cfg.Cache.GCBatchSize,
	}, logger)

	content := services.NewContentCacheService(backend, services.ContentCacheConfig{
		StoreID:                 cfg.Content.StoreID,
		Lifetime:                cfg.Content.Lifetime,
		AutomaticCleaningFactor: cfg.Cache.AutomaticCleaningFactor,
	}, logger)

	checkers := []ports.HealthChecker{health.NewRedisHealthChecker(redisClient)}
	if fc := health.NewFillingChecker(backend, cfg.Cache.HealthFillThreshold); fc != nil {
		checkers = append(checkers, fc)
	}

	serverConfig := &httpserver.ServerConfig{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		TLSCertFile:  cfg.Server.TLSCertFile,
		TLSKeyFile:   cfg.Server.TLSKeyFile,
		MaxBodySize:  cfg.Server.MaxBodySize,
	}
	server := httpserver.NewServer(serverConfig, cfg.Admin.JWTSecret, logger, httpserver.ServerDeps{
		Cache:          backend,
		Content:        content,
		HealthCheckers: checkers,
	})

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	if cfg.Cache.GCInterval > 0 {
		go runGarbageCollector(ctx, backend, cfg.Cache.GCInterval, logger)
	}

	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server:", err)
		}
	}()

	logger.Infof("Server started on %s:%s", cfg.Server.Host, cfg.Server.Port)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("Server forced to shutdown:", err)
	}

	logger.Info("Server exited")
}

func newLogger(cfg config.LogConfig) *logrus.Logger {
	logger := logrus.New()
	if cfg.Format == "text" {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		logger.SetLevel(logrus.InfoLevel)
	} else {
		logger.SetLevel(level)
	}
	return logger
}

// runGarbageCollector sweeps the tag index every interval until ctx is done.
func runGarbageCollector(ctx context.Context, cache ports.TagCache, interval time.Duration, logger *logrus.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := cache.CollectGarbage(ctx); err != nil && ctx.Err() == nil {
				logger.WithError(err).Warn("scheduled cache garbage collection failed")
			}
		}
	}
}
