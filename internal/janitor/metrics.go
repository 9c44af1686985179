package janitor

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
	"go.uber.org/zap"

	"bestiary-server/internal/messaging"
)

const jobName = "bestiary_orphan_janitor"

var _ messaging.ResultRecorder = (*Metrics)(nil)

// Metrics - метрики воркера в собственном реестре. Воркер не слушает HTTP,
// поэтому метрики периодически отправляются в Pushgateway.
type Metrics struct {
	registry  *prometheus.Registry
	processed *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	pusher    *push.Pusher
	logger    *zap.Logger
}

// NewMetrics создает реестр метрик. При пустом pushgatewayURL метрики только копятся в памяти.
func NewMetrics(pushgatewayURL string, logger *zap.Logger) *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		processed: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "bestiary_janitor_orphans_processed_total",
				Help: "Total number of orphaned asset events processed, partitioned by result.",
			},
			[]string{"result"},
		),
		duration: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bestiary_janitor_orphan_duration_seconds",
				Help:    "Time spent handling one orphaned asset event.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		),
		logger: logger.Named("JanitorMetrics"),
	}

	if pushgatewayURL != "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		instanceID := fmt.Sprintf("%s-%d", hostname, os.Getpid())
		m.pusher = push.New(pushgatewayURL, jobName).Gatherer(registry).Grouping("instance", instanceID)
		m.logger.Info("Pushgateway pusher initialized",
			zap.String("url", pushgatewayURL), zap.String("job", jobName), zap.String("instance", instanceID))
	}
	return m
}

// RecordOrphanResult учитывает результат обработки одного события.
func (m *Metrics) RecordOrphanResult(result string, d time.Duration) {
	m.processed.WithLabelValues(result).Inc()
	m.duration.WithLabelValues(result).Observe(d.Seconds())
}

// Push отправляет текущие значения в Pushgateway.
func (m *Metrics) Push() error {
	if m.pusher == nil {
		return nil
	}
	if err := m.pusher.Push(); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}

// Run отправляет метрики с заданным интервалом до отмены ctx, затем делает последнюю отправку.
func (m *Metrics) Run(ctx context.Context, interval time.Duration) error {
	if m.pusher == nil {
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			if err := m.Push(); err != nil {
				m.logger.Warn("Final metrics push failed", zap.Error(err))
			}
			return nil
		case <-ticker.C:
			if err := m.Push(); err != nil {
				m.logger.Warn("Metrics push failed", zap.Error(err))
			}
		}
	}
}

// Cleanup удаляет метрики этого инстанса из Pushgateway.
func (m *Metrics) Cleanup() {
	if m.pusher == nil {
		return
	}
	if err := m.pusher.Delete(); err != nil {
		m.logger.Warn("Failed to delete metrics from Pushgateway", zap.Error(err))
		return
	}
	m.logger.Info("Metrics deleted from Pushgateway")
}
