package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"bestiary-server/internal/models"
)

// Результаты обработки сообщения об осиротевшем файле.
const (
	ResultDeleted   = "deleted"
	ResultMalformed = "malformed"
	ResultFailed    = "failed"
)

// AssetDeleter удаляет объект из хранилища. Отсутствующий объект ошибкой не считается.
type AssetDeleter interface {
	Delete(ctx context.Context, key string) error
}

// ResultRecorder получает результат обработки каждого сообщения (для метрик).
type ResultRecorder interface {
	RecordOrphanResult(result string, duration time.Duration)
}

// OrphanConsumer читает очередь осиротевших файлов и удаляет их из хранилища.
type OrphanConsumer struct {
	ch            *amqp091.Channel
	deleter       AssetDeleter
	recorder      ResultRecorder
	logger        *zap.Logger
	queueName     string
	consumerTag   string
	deleteTimeout time.Duration
	retryDelay    time.Duration
}

// NewOrphanConsumer открывает канал, объявляет очередь и выставляет prefetch = 1.
func NewOrphanConsumer(
	conn *amqp091.Connection,
	queueName string,
	deleter AssetDeleter,
	recorder ResultRecorder,
	deleteTimeout time.Duration,
	logger *zap.Logger,
) (*OrphanConsumer, error) {
	if conn == nil {
		return nil, fmt.Errorf("rabbitmq connection is nil")
	}
	if deleter == nil {
		return nil, fmt.Errorf("asset deleter is nil")
	}
	if queueName == "" {
		queueName = DefaultOrphanQueue
	}

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	if err := declareOrphanQueue(ch, queueName); err != nil {
		_ = ch.Close()
		return nil, err
	}
	if err := ch.Qos(1, 0, false); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("failed to set QoS: %w", err)
	}

	consumerTag := fmt.Sprintf("orphan_janitor_%d", time.Now().UnixNano())
	return &OrphanConsumer{
		ch:            ch,
		deleter:       deleter,
		recorder:      recorder,
		logger:        logger.Named("OrphanConsumer").With(zap.String("queue", queueName), zap.String("consumer_tag", consumerTag)),
		queueName:     queueName,
		consumerTag:   consumerTag,
		deleteTimeout: deleteTimeout,
		retryDelay:    time.Second,
	}, nil
}

// Run обрабатывает сообщения, пока не отменен ctx или не закрыт канал.
// При отмене ctx возвращает nil.
func (c *OrphanConsumer) Run(ctx context.Context) error {
	deliveries, err := c.ch.Consume(
		c.queueName,
		c.consumerTag,
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register a consumer: %w", err)
	}
	c.logger.Info("Consumer started")

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Stopping consumer")
			if err := c.ch.Cancel(c.consumerTag, false); err != nil {
				c.logger.Warn("Failed to cancel consumer", zap.Error(err))
			}
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("deliveries channel closed")
			}
			c.handleDelivery(ctx, d)
		}
	}
}

// Close закрывает канал.
func (c *OrphanConsumer) Close() error {
	if c.ch != nil {
		return c.ch.Close()
	}
	return nil
}

// handleDelivery удаляет файл и подтверждает сообщение.
// Битое сообщение отбрасывается, при ошибке удаления сообщение возвращается в очередь.
func (c *OrphanConsumer) handleDelivery(ctx context.Context, d amqp091.Delivery) string {
	start := time.Now()
	log := c.logger.With(zap.Uint64("delivery_tag", d.DeliveryTag), zap.Bool("redelivered", d.Redelivered))

	var event models.OrphanedAssetEvent
	if err := json.Unmarshal(d.Body, &event); err != nil || event.Key == "" {
		log.Warn("Malformed orphaned asset event, dropping", zap.ByteString("body", d.Body), zap.Error(err))
		if nackErr := d.Nack(false, false); nackErr != nil {
			log.Error("Failed to Nack malformed message", zap.Error(nackErr))
		}
		c.record(ResultMalformed, start)
		return ResultMalformed
	}
	log = log.With(zap.String("key", event.Key), zap.String("request_id", event.RequestID))

	deleteCtx := ctx
	if c.deleteTimeout > 0 {
		var cancel context.CancelFunc
		deleteCtx, cancel = context.WithTimeout(ctx, c.deleteTimeout)
		defer cancel()
	}

	if err := c.deleter.Delete(deleteCtx, event.Key); err != nil {
		log.Error("Failed to delete orphaned asset, requeueing", zap.Error(err))
		if nackErr := d.Nack(false, true); nackErr != nil {
			log.Error("Failed to Nack message", zap.Error(nackErr))
		}
		c.record(ResultFailed, start)
		// Пауза, чтобы не крутить одно и то же сообщение без остановки
		if c.retryDelay > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(c.retryDelay):
			}
		}
		return ResultFailed
	}

	if ackErr := d.Ack(false); ackErr != nil {
		log.Error("Failed to Ack message", zap.Error(ackErr))
	}
	log.Info("Orphaned asset deleted", zap.Time("occurred_at", event.OccurredAt))
	c.record(ResultDeleted, start)
	return ResultDeleted
}

func (c *OrphanConsumer) record(result string, start time.Time) {
	if c.recorder != nil {
		c.recorder.RecordOrphanResult(result, time.Since(start))
	}
}
