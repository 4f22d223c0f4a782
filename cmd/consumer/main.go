// Command consumer drains the click_events queue and appends rows into
// the columnar analytics store (C7).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sxyafiq/urlshortener/internal/columnar"
	"github.com/sxyafiq/urlshortener/internal/config"
	"github.com/sxyafiq/urlshortener/internal/events"
	"github.com/sxyafiq/urlshortener/internal/logging"
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

	chStore, err := columnar.New(columnar.Config{
		Host:     cfg.ClickHouseHost,
		Port:     cfg.ClickHousePort,
		Database: cfg.ClickHouseDatabase,
		User:     cfg.ClickHouseUser,
		Password: cfg.ClickHousePassword,
	})
	if err != nil {
		return fmt.Errorf("connect clickhouse: %w", err)
	}
	defer chStore.Close()

	consumer, err := events.NewConsumer(ctx, cfg.RabbitMQURL, chStore, logger)
	if err != nil {
		return fmt.Errorf("connect bus: %w", err)
	}
	defer consumer.Close()

	logger.Info("consumer started")
	if err := consumer.Run(ctx); err != nil {
		return fmt.Errorf("consume: %w", err)
	}
	logger.Info("consumer shut down cleanly")
	return nil
}
