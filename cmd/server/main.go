// Command server runs the front-end HTTP surface: POST /shorten, GET
// /{code}, GET /stats/{code}, GET /health.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/sxyafiq/urlshortener/internal/cache"
	"github.com/sxyafiq/urlshortener/internal/columnar"
	"github.com/sxyafiq/urlshortener/internal/config"
	"github.com/sxyafiq/urlshortener/internal/events"
	"github.com/sxyafiq/urlshortener/internal/httpapi"
	"github.com/sxyafiq/urlshortener/internal/idgen"
	"github.com/sxyafiq/urlshortener/internal/logging"
	"github.com/sxyafiq/urlshortener/internal/store"
	"github.com/sxyafiq/urlshortener/internal/workerid"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Singleton init order per §9: KV -> worker-id -> generator -> publisher.
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("parse redis url: %w", err)
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}

	workerManager := workerid.NewManager(redisClient, workerid.Config{
		LeaseTTL:      cfg.WorkerIDLeaseTTL,
		RenewInterval: cfg.WorkerIDRenewInterval,
		MaxWorkerID:   cfg.MaxWorkerID,
	}, logger)

	workerID, err := workerManager.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire worker id: %w", err)
	}
	logger.Infow("acquired worker id", "worker_id", workerID)

	generator, err := idgen.New(workerID)
	if err != nil {
		return fmt.Errorf("construct id generator: %w", err)
	}

	publisher := events.NewPublisher(cfg.RabbitMQURL, logger)
	defer publisher.Close()

	pgStore, err := store.NewPostgresStore(ctx, store.PostgresConfig{
		DSN:         cfg.PostgresDSN,
		PoolSize:    cfg.DBPoolSize,
		MaxOverflow: cfg.DBMaxOverflow,
		PoolTimeout: cfg.DBPoolTimeout,
		PoolRecycle: cfg.DBPoolRecycle,
	})
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pgStore.Close()
	if err := pgStore.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensure postgres schema: %w", err)
	}

	redirectCache := cache.New(redisClient, cache.DefaultTTL)

	var analytics *columnar.Store
	chStore, err := columnar.New(columnar.Config{
		Host:     cfg.ClickHouseHost,
		Port:     cfg.ClickHousePort,
		Database: cfg.ClickHouseDatabase,
		User:     cfg.ClickHouseUser,
		Password: cfg.ClickHousePassword,
	})
	if err != nil {
		logger.Warnw("stats endpoint disabled: clickhouse unavailable at startup", "error", err)
	} else {
		analytics = chStore
		defer chStore.Close()
	}

	api := &httpapi.API{
		Store:     pgStore,
		Cache:     redirectCache,
		Generator: generator,
		Publisher: publisher,
		BaseURL:   cfg.BaseURL,
		Logger:    logger,
	}
	if analytics != nil {
		api.Analytics = analytics
	}

	router := httpapi.NewRouter(api, cfg.CORSAllowedOrigins)
	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Infow("listening", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	var unrecoverable error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serveErr:
		logger.Errorw("http server failed", "error", err)
		unrecoverable = err
	case lost := <-workerManager.Lost():
		logger.Errorw("worker id lease lost, shutting down", "error", lost)
		generator.Disable(lost)
		unrecoverable = fmt.Errorf("worker id lease lost: %w", lost)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Teardown in reverse of init order: http -> publisher -> worker-id -> KV.
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warnw("http server shutdown error", "error", err)
	}
	publisher.Close()
	if err := workerManager.Release(shutdownCtx); err != nil {
		logger.Warnw("worker id release error", "error", err)
	}

	// A clean SIGINT/SIGTERM shutdown exits 0; losing the worker-id lease or
	// the HTTP listener dying unexpectedly must exit non-zero (§6).
	return unrecoverable
}
