package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"bestiary-server/internal/config"
)

const (
	connectMaxRetries = 10
	connectRetryDelay = 3 * time.Second
)

// Connect создает пул соединений к PostgreSQL и ждет, пока база станет доступна.
func Connect(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse DSN: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MaxConnIdleTime = cfg.IdleTimeout
	poolConfig.ConnConfig.ConnectTimeout = 5 * time.Second

	var lastErr error
	for attempt := 1; attempt <= connectMaxRetries; attempt++ {
		logger.Debug("Connecting to PostgreSQL",
			zap.Int("attempt", attempt),
			zap.String("host", cfg.Host),
			zap.String("port", cfg.Port),
			zap.String("database", cfg.Name),
		)

		pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
		if err != nil {
			lastErr = fmt.Errorf("failed to create pool: %w", err)
		} else {
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err = pool.Ping(pingCtx)
			cancel()
			if err == nil {
				logger.Info("Connected to PostgreSQL", zap.String("host", cfg.Host), zap.String("database", cfg.Name))
				return pool, nil
			}
			pool.Close()
			lastErr = fmt.Errorf("failed to ping database: %w", err)
		}

		logger.Warn("PostgreSQL is not ready, retrying",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", connectMaxRetries),
			zap.Duration("delay", connectRetryDelay),
			zap.Error(lastErr),
		)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(connectRetryDelay):
		}
	}
	return nil, fmt.Errorf("could not connect to PostgreSQL after %d attempts: %w", connectMaxRetries, lastErr)
}
