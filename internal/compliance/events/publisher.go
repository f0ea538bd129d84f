// Package events publishes compliance check outcomes to Kafka so
// downstream consumers (reporting pipelines, platform connectors) can
// react to violations without polling the API.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// CheckEvent is the message emitted after a check that found problems.
type CheckEvent struct {
	Kind       string    `json:"kind"` // "policy" or "regulatory"
	ContentID  string    `json:"content_id"`
	Platform   string    `json:"platform,omitempty"`
	Region     string    `json:"region,omitempty"`
	Industry   string    `json:"industry,omitempty"`
	Violations int       `json:"violations"`
	Timestamp  time.Time `json:"timestamp"`
}

// Publisher emits check events. Implementations are best effort;
// callers ignore delivery failures beyond logging.
type Publisher interface {
	Publish(ctx context.Context, event CheckEvent) error
	Close() error
}

// KafkaPublisher writes check events to a single topic, keyed by
// content id so per-content ordering is preserved across partitions.
type KafkaPublisher struct {
	writer *kafka.Writer
	logger *zap.Logger
}

var _ Publisher = (*KafkaPublisher)(nil)

// NewKafkaPublisher creates a publisher for the given brokers and
// topic.
func NewKafkaPublisher(brokers []string, topic string, logger *zap.Logger) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
	}
	return &KafkaPublisher{writer: writer, logger: logger}
}

// Publish writes one event.
func (p *KafkaPublisher) Publish(ctx context.Context, event CheckEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "encoding check event")
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.ContentID),
		Value: payload,
	})
	if err != nil {
		return errors.Wrap(err, "writing check event")
	}
	p.logger.Debug("published check event",
		zap.String("kind", event.Kind),
		zap.String("content_id", event.ContentID),
		zap.Int("violations", event.Violations))
	return nil
}

// Close flushes and closes the underlying writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
