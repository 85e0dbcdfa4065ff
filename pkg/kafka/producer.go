package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/textindex/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/textindex/pkg/resilience"
	"github.com/segmentio/kafka-go"
)

// Keyed is a JSON-serialisable event that names its partition key. Events
// about the same document share a key, so they stay ordered.
type Keyed interface {
	PartitionKey() string
}

// Writer is the part of *kafka.Writer the Producer uses.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes JSON-encoded events to one Kafka topic. A failed write
// is retried under the producer's policy.
type Producer struct {
	writer Writer
	topic  string
	retry  resilience.RetryConfig
	logger *slog.Logger
}

// NewProducer creates a Producer for topic. The writer itself makes a single
// attempt per call; retries follow retry.
func NewProducer(cfg config.KafkaConfig, topic string, retry resilience.RetryConfig) *Producer {
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		MaxAttempts:  1,
		RequiredAcks: kafka.RequireAll,
	}
	return NewProducerWithWriter(w, topic, retry)
}

// NewProducerWithWriter creates a Producer over an existing writer.
func NewProducerWithWriter(w Writer, topic string, retry resilience.RetryConfig) *Producer {
	return &Producer{
		writer: w,
		topic:  topic,
		retry:  retry,
		logger: slog.Default().With("component", "kafka-producer", "topic", topic),
	}
}

// Publish serialises event and writes it synchronously under its partition
// key. An event without a key is rejected.
func (p *Producer) Publish(ctx context.Context, event Keyed) error {
	key := event.PartitionKey()
	if key == "" {
		return errors.New("publishing to kafka: event has no partition key")
	}
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling %T: %w", event, err)
	}
	msg := kafka.Message{Key: []byte(key), Value: value}

	err = resilience.Retry(ctx, "kafka-publish:"+p.topic, p.retry, func() error {
		return p.writer.WriteMessages(ctx, msg)
	})
	if err != nil {
		p.logger.Error("failed to publish message", "key", key, "error", err)
		return fmt.Errorf("publishing to kafka: %w", err)
	}
	p.logger.Debug("message published", "key", key, "value_size", len(value))
	return nil
}

// Close flushes pending writes and closes the underlying writer.
func (p *Producer) Close() error {
	return p.writer.Close()
}
