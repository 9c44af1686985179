package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"bestiary-server/internal/janitor"
	"bestiary-server/internal/logger"
	"bestiary-server/internal/messaging"
	"bestiary-server/internal/storage"
)

// janitor удаляет из хранилища иллюстрации, на которые не ссылается ни одна запись.
func main() {
	cfg, err := janitor.LoadConfig()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Logger())
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()
	zap.ReplaceGlobals(log)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := storage.NewMinioAssetStore(ctx, cfg.Storage(), log)
	if err != nil {
		log.Fatal("Failed to initialize asset store", zap.Error(err))
	}

	conn, err := messaging.Connect(ctx, cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay, log.Named("RabbitMQ"))
	if err != nil {
		log.Fatal("Failed to connect to RabbitMQ", zap.Error(err))
	}
	defer func() { _ = conn.Close() }()

	metrics := janitor.NewMetrics(cfg.PushgatewayURL, log)
	defer metrics.Cleanup()

	consumer, err := messaging.NewOrphanConsumer(conn, cfg.OrphanQueue, store, metrics, cfg.DeleteTimeout, log)
	if err != nil {
		log.Fatal("Failed to create orphan consumer", zap.Error(err))
	}
	defer func() { _ = consumer.Close() }()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return consumer.Run(gctx)
	})
	g.Go(func() error {
		return metrics.Run(gctx, cfg.MetricsPushInterval)
	})

	log.Info("Janitor started", zap.String("queue", cfg.OrphanQueue))
	if err := g.Wait(); err != nil {
		log.Error("Janitor stopped with error", zap.Error(err))
		return
	}
	log.Info("Janitor stopped")
}
