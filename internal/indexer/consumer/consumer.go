// Package consumer reads ingestion.IngestEvent messages from Kafka, adds
// each document to the corpus and publishes the outcome as an
// ingestion.IndexedEvent.
package consumer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/textindex/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/textindex/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/textindex/internal/ingestion/validator"
	"github.com/Adithya-Monish-Kumar-K/textindex/pkg/kafka"
)

// Adder adds a document to the corpus.
type Adder interface {
	Add(ctx context.Context, req corpus.AddRequest) corpus.Result
}

// Publisher publishes a keyed event.
type Publisher interface {
	Publish(ctx context.Context, event kafka.Keyed) error
}

// IndexConsumer wraps a Kafka consumer to drive the indexing pipeline.
type IndexConsumer struct {
	consumer *kafka.Consumer
	logger   *slog.Logger
}

// New creates an IndexConsumer backed by the given Kafka consumer.
func New(kafkaConsumer *kafka.Consumer) *IndexConsumer {
	return &IndexConsumer{
		consumer: kafkaConsumer,
		logger:   slog.Default().With("component", "index-consumer"),
	}
}

// Start begins consuming Kafka messages. It blocks until ctx is cancelled.
func (ic *IndexConsumer) Start(ctx context.Context) error {
	ic.logger.Info("index consumer starting")
	return ic.consumer.Start(ctx)
}

// HandleMessage returns a Kafka MessageHandler adding every ingest event to
// the corpus and committing it. Undecodable messages are dropped; invalid
// ones are dropped with an "invalid" outcome published. A storage
// failure is returned so the consumer retries the message; every other
// outcome is published and the message acknowledged. publisher may be nil.
func HandleMessage(adder Adder, publisher Publisher) kafka.MessageHandler {
	logger := slog.Default().With("component", "index-consumer")
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[ingestion.IngestEvent](value)
		if err != nil {
			logger.Error("failed to decode ingest event",
				"error", err,
				"key", string(key),
			)
			return nil
		}
		if err := validator.ValidateIngestEvent(&event); err != nil {
			logger.Error("dropping invalid ingest event",
				"error", err,
				"key", string(key),
			)
			if publisher != nil {
				out := ingestion.IndexedEvent{
					Checksum:  event.Checksum,
					Path:      event.Path,
					Outcome:   "invalid",
					Error:     err.Error(),
					IndexedAt: time.Now().UTC(),
				}
				if err := publisher.Publish(ctx, out); err != nil {
					logger.Error("failed to publish index event", "path", event.Path, "error", err)
				}
			}
			return nil
		}
		logger.Debug("processing ingest event",
			"path", event.Path,
			"checksum", event.Checksum,
		)

		req := corpus.AddRequest{
			Checksum:   event.Checksum,
			Path:       event.Path,
			ModifiedAt: event.ModifiedAt,
			Commit:     true,
		}
		if event.Content != "" {
			req.RawData = []byte(event.Content)
		}
		res := adder.Add(ctx, req)

		if publisher != nil {
			if err := publisher.Publish(ctx, indexed(event, res)); err != nil {
				logger.Error("failed to publish index event", "path", event.Path, "error", err)
			}
		}
		if res.Outcome == corpus.StorageFailed {
			return fmt.Errorf("indexing %s: %w", event.Path, res.Err)
		}
		logger.Info("document indexed",
			"path", event.Path,
			"outcome", res.Outcome.String(),
		)
		return nil
	}
}

func indexed(event ingestion.IngestEvent, res corpus.Result) ingestion.IndexedEvent {
	out := ingestion.IndexedEvent{
		Checksum:  event.Checksum,
		Path:      event.Path,
		Outcome:   res.Outcome.String(),
		IndexedAt: time.Now().UTC(),
	}
	if res.Document != nil {
		out.DocID = res.Document.ID
		out.TokenCount = res.Document.TokenCount
	}
	if res.Err != nil {
		out.Error = res.Err.Error()
	}
	return out
}
