package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"bestiary-server/internal/models"
)

// InlineOrphanCleaner удаляет осиротевший файл сразу, без очереди.
// Используется, когда RabbitMQ не настроен.
type InlineOrphanCleaner struct {
	store   AssetStore
	timeout time.Duration
	logger  *zap.Logger
}

func NewInlineOrphanCleaner(store AssetStore, timeout time.Duration, logger *zap.Logger) *InlineOrphanCleaner {
	return &InlineOrphanCleaner{store: store, timeout: timeout, logger: logger.Named("InlineOrphanCleaner")}
}

// ReportOrphan удаляет объект. Контекст запроса к этому моменту может быть отменен,
// поэтому удаление идет со своим таймаутом.
func (c *InlineOrphanCleaner) ReportOrphan(_ context.Context, event models.OrphanedAssetEvent) error {
	ctx := context.Background()
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	if err := c.store.Delete(ctx, event.Key); err != nil {
		return fmt.Errorf("delete orphaned asset %s: %w", event.Key, err)
	}
	c.logger.Info("Orphaned asset deleted", zap.String("key", event.Key), zap.String("reason", event.Reason))
	return nil
}
