package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// KafkaPublisher writes engine events to a Kafka topic, keyed by order id so
// one order's lifecycle lands on a single partition in order.
type KafkaPublisher struct {
	writer *kafka.Writer
	logger *zap.Logger
}

// KafkaConfig contains tuning options for the event writer.
type KafkaConfig struct {
	BatchSize    int
	BatchTimeout time.Duration
	WriteTimeout time.Duration
	RequiredAcks int
}

// DefaultKafkaConfig favors low latency over throughput; lifecycle events
// are rare compared to price updates.
func DefaultKafkaConfig() *KafkaConfig {
	return &KafkaConfig{
		BatchSize:    100,
		BatchTimeout: 5 * time.Millisecond,
		WriteTimeout: 1 * time.Second,
		RequiredAcks: 1,
	}
}

// NewKafkaPublisher creates a publisher for the given brokers and topic.
func NewKafkaPublisher(brokers []string, topic string, cfg *KafkaConfig, logger *zap.Logger) *KafkaPublisher {
	if cfg == nil {
		cfg = DefaultKafkaConfig()
	}
	return &KafkaPublisher{
		logger: logger,
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.CRC32Balancer{},
			BatchSize:    cfg.BatchSize,
			BatchTimeout: cfg.BatchTimeout,
			WriteTimeout: cfg.WriteTimeout,
			RequiredAcks: kafka.RequiredAcks(cfg.RequiredAcks),
			Compression:  kafka.Snappy,
		},
	}
}

// Publish implements Publisher.
func (p *KafkaPublisher) Publish(ctx context.Context, e Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(e.OrderID.String()),
		Value: payload,
		Time:  e.Timestamp,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("failed to publish event",
			zap.String("type", e.Type),
			zap.String("order_id", e.OrderID.String()),
			zap.Error(err))
		return fmt.Errorf("write event: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
