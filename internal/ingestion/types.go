// Package ingestion defines the Kafka event schemas of the indexing pipeline:
// the ingest event asking the worker to index a document and the event
// reporting the outcome.
package ingestion

import "time"

// IngestEvent asks the worker to index one document. Content is optional;
// without it the document is read from Path.
type IngestEvent struct {
	Checksum   int64     `json:"checksum"`
	Path       string    `json:"path"`
	ModifiedAt time.Time `json:"modified_at"`
	Content    string    `json:"content,omitempty"`
}

// PartitionKey keys the event by path so every version of a file is
// indexed in order.
func (e IngestEvent) PartitionKey() string { return e.Path }

// IndexedEvent reports the outcome of an IngestEvent.
type IndexedEvent struct {
	DocID      uint32    `json:"doc_id,omitempty"`
	Checksum   int64     `json:"checksum"`
	Path       string    `json:"path"`
	Outcome    string    `json:"outcome"`
	TokenCount int       `json:"token_count"`
	Error      string    `json:"error,omitempty"`
	IndexedAt  time.Time `json:"indexed_at"`
}

// PartitionKey keys the outcome like the IngestEvent it reports on.
func (e IndexedEvent) PartitionKey() string { return e.Path }
