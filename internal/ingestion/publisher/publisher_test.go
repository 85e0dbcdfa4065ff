package publisher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/textindex/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/textindex/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/textindex/pkg/kafka"
)

type recordingProducer struct {
	events []kafka.Keyed
	err    error
}

func (p *recordingProducer) Publish(ctx context.Context, event kafka.Keyed) error {
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func TestPublishFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(path, []byte("alpha beta"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name        string
		inline      bool
		wantContent string
	}{
		{"by reference", false, ""},
		{"inline", true, "alpha beta"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prod := &recordingProducer{}
			ev, err := New(prod, tt.inline).PublishFile(context.Background(), path)
			if err != nil {
				t.Fatal(err)
			}
			if ev.Checksum != corpus.Checksum([]byte("alpha beta")) || ev.Path != path || ev.ModifiedAt.IsZero() {
				t.Errorf("event = %+v", ev)
			}
			if len(prod.events) != 1 || prod.events[0].PartitionKey() != path {
				t.Fatalf("published %+v", prod.events)
			}
			if got := prod.events[0].(ingestion.IngestEvent).Content; got != tt.wantContent {
				t.Errorf("content = %q, want %q", got, tt.wantContent)
			}
		})
	}
}

func TestPublishRejectsInvalid(t *testing.T) {
	prod := &recordingProducer{}
	if _, err := New(prod, false).Publish(context.Background(), "relative.txt", []byte("x"), time.Now()); err == nil {
		t.Fatal("relative path accepted")
	}
	if len(prod.events) != 0 {
		t.Error("invalid event published")
	}
}

func TestPublishProducerFailure(t *testing.T) {
	boom := errors.New("broker down")
	_, err := New(&recordingProducer{err: boom}, false).Publish(context.Background(), "/a.txt", []byte("x"), time.Now())
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want wrapped broker error", err)
	}
}

func TestPublishFileMissing(t *testing.T) {
	if _, err := New(&recordingProducer{}, false).PublishFile(context.Background(), filepath.Join(t.TempDir(), "gone")); err == nil {
		t.Error("missing file published")
	}
}
