package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"bestiary-server/internal/models"
	"bestiary-server/internal/service"
)

// DefaultOrphanQueue - очередь событий о файлах без записи в БД.
const DefaultOrphanQueue = "monster_orphaned_assets"

var _ service.OrphanReporter = (*OrphanPublisher)(nil)

// OrphanPublisher отправляет OrphanedAssetEvent в durable очередь.
type OrphanPublisher struct {
	ch        *amqp091.Channel
	queueName string
	logger    *zap.Logger
}

// NewOrphanPublisher открывает канал и объявляет очередь.
func NewOrphanPublisher(conn *amqp091.Connection, queueName string, logger *zap.Logger) (*OrphanPublisher, error) {
	if conn == nil {
		return nil, fmt.Errorf("rabbitmq connection is nil")
	}
	if queueName == "" {
		queueName = DefaultOrphanQueue
	}

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}
	if err := declareOrphanQueue(ch, queueName); err != nil {
		_ = ch.Close()
		return nil, err
	}

	log := logger.Named("OrphanPublisher").With(zap.String("queue", queueName))
	log.Info("Orphaned asset queue declared")
	return &OrphanPublisher{ch: ch, queueName: queueName, logger: log}, nil
}

// ReportOrphan публикует событие. Сообщение persistent, чтобы пережить перезапуск брокера.
func (p *OrphanPublisher) ReportOrphan(ctx context.Context, event models.OrphanedAssetEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal orphaned asset event: %w", err)
	}

	err = p.ch.PublishWithContext(ctx,
		"",          // default exchange
		p.queueName, // routing key
		false,       // mandatory
		false,       // immediate
		amqp091.Publishing{
			ContentType:   "application/json",
			DeliveryMode:  amqp091.Persistent,
			Timestamp:     time.Now(),
			CorrelationId: event.RequestID,
			Body:          body,
		},
	)
	if err != nil {
		p.logger.Error("Failed to publish orphaned asset event", zap.String("key", event.Key), zap.Error(err))
		return fmt.Errorf("failed to publish orphaned asset event: %w", err)
	}

	p.logger.Debug("Orphaned asset event published", zap.String("key", event.Key))
	return nil
}

// Close закрывает канал.
func (p *OrphanPublisher) Close() error {
	if p.ch != nil {
		return p.ch.Close()
	}
	return nil
}

func declareOrphanQueue(ch *amqp091.Channel, queueName string) error {
	_, err := ch.QueueDeclare(
		queueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue '%s': %w", queueName, err)
	}
	return nil
}
