// Package publisher turns files into ingest events and publishes them to
// Kafka for the indexer worker.
package publisher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/Adithya-Monish-Kumar-K/textindex/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/textindex/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/textindex/internal/ingestion/validator"
	"github.com/Adithya-Monish-Kumar-K/textindex/pkg/kafka"
)

// Producer publishes a keyed event.
type Producer interface {
	Publish(ctx context.Context, event kafka.Keyed) error
}

// Publisher produces ingest events keyed by path so every version of a file
// lands on the same partition.
type Publisher struct {
	producer Producer
	inline   bool
	logger   *slog.Logger
}

// New creates a Publisher. With inline set, file content travels in the
// event; otherwise the worker reads the file itself.
func New(producer Producer, inline bool) *Publisher {
	return &Publisher{
		producer: producer,
		inline:   inline,
		logger:   slog.Default().With("component", "publisher"),
	}
}

// PublishFile reads the file at path, checksums it and publishes an
// IngestEvent.
func (p *Publisher) PublishFile(ctx context.Context, path string) (*ingestion.IngestEvent, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", abs, err)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", abs, err)
	}
	return p.Publish(ctx, abs, data, info.ModTime())
}

// Publish validates and publishes an IngestEvent for content found at path.
func (p *Publisher) Publish(ctx context.Context, path string, content []byte, modifiedAt time.Time) (*ingestion.IngestEvent, error) {
	ev := &ingestion.IngestEvent{
		Checksum:   corpus.Checksum(content),
		Path:       path,
		ModifiedAt: modifiedAt.UTC(),
	}
	if p.inline {
		ev.Content = string(content)
	}
	if err := validator.ValidateIngestEvent(ev); err != nil {
		return nil, fmt.Errorf("invalid ingest event for %s: %w", path, err)
	}
	if err := p.producer.Publish(ctx, *ev); err != nil {
		return nil, fmt.Errorf("publishing %s: %w", path, err)
	}
	p.logger.Debug("ingest event published",
		"path", ev.Path,
		"checksum", ev.Checksum,
		"inline", p.inline,
	)
	return ev, nil
}
