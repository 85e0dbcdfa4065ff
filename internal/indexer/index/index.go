// Package index maintains the inverted index: one occurrence record per
// (token, document) pair, with the postings derived from them. Reads go
// through the configured retry policy because the store may be networked.
package index

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/Adithya-Monish-Kumar-K/textindex/internal/model"
	"github.com/Adithya-Monish-Kumar-K/textindex/internal/store"
	"github.com/Adithya-Monish-Kumar-K/textindex/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/textindex/pkg/resilience"
	"github.com/RoaringBitmap/roaring/v2"
)

// Index is the occurrence repository with retried reads.
type Index struct {
	store   store.Store
	retry   resilience.RetryConfig
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New returns an Index over s. m may be nil.
func New(s store.Store, retry resilience.RetryConfig, m *metrics.Metrics) *Index {
	return &Index{
		store:   s,
		retry:   retry,
		metrics: m,
		logger:  slog.Default().With("component", "inverted-index"),
	}
}

func (ix *Index) policy(op string) resilience.RetryConfig {
	cfg := ix.retry
	cfg.OnRetry = ix.metrics.RetryObserver(op)
	return cfg
}

// GetOrCreate returns the stored occurrence for (occ.TokenID, occ.DocumentID)
// or stores occ when there is none. created reports which happened.
func (ix *Index) GetOrCreate(ctx context.Context, occ *model.Occurrence) (*model.Occurrence, bool, error) {
	existing, err := resilience.Do(ctx, "index.get", ix.policy("index.get"), func() (*model.Occurrence, error) {
		return ix.store.Occurrences().Get(ctx, occ.TokenID, occ.DocumentID)
	})
	if err != nil {
		return nil, false, fmt.Errorf("reading occurrence of token %d in document %d: %w", occ.TokenID, occ.DocumentID, err)
	}
	if existing != nil {
		return existing, false, nil
	}
	if err := ix.store.Occurrences().Insert(ctx, occ); err != nil {
		return nil, false, fmt.Errorf("creating occurrence: %w", err)
	}
	return occ, true, nil
}

// Replace discards every occurrence of documentID and stores occs in their
// place. It returns the sorted IDs of all tokens whose postings changed.
func (ix *Index) Replace(ctx context.Context, documentID uint32, occs []*model.Occurrence) ([]uint32, error) {
	removed, err := ix.store.Occurrences().DeleteByDocument(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("clearing occurrences of document %d: %w", documentID, err)
	}
	affected := slices.Clone(removed)
	for _, occ := range occs {
		if occ.DocumentID != documentID {
			return nil, fmt.Errorf("occurrence for document %d passed to replace of document %d", occ.DocumentID, documentID)
		}
		if err := ix.store.Occurrences().Insert(ctx, occ); err != nil {
			return nil, fmt.Errorf("storing occurrence of token %d: %w", occ.TokenID, err)
		}
		affected = append(affected, occ.TokenID)
	}
	slices.Sort(affected)
	affected = slices.Compact(affected)
	ix.logger.Debug("document occurrences replaced",
		"doc_id", documentID,
		"removed", len(removed),
		"stored", len(occs),
	)
	return affected, nil
}

// TotalOccurrences sums the count of tokenID over all documents.
func (ix *Index) TotalOccurrences(ctx context.Context, tokenID uint32) (int, error) {
	return resilience.Do(ctx, "index.total", ix.policy("index.total"), func() (int, error) {
		return ix.store.Occurrences().TotalCount(ctx, tokenID)
	})
}

// DocumentFrequency counts the documents containing tokenID.
func (ix *Index) DocumentFrequency(ctx context.Context, tokenID uint32) (int, error) {
	docs, err := ix.Documents(ctx, tokenID)
	if err != nil {
		return 0, err
	}
	return int(docs.GetCardinality()), nil
}

// Documents returns the posting list of tokenID as a document set.
func (ix *Index) Documents(ctx context.Context, tokenID uint32) (*roaring.Bitmap, error) {
	return resilience.Do(ctx, "index.documents", ix.policy("index.documents"), func() (*roaring.Bitmap, error) {
		return ix.store.Occurrences().Documents(ctx, tokenID)
	})
}

// Postings returns the document sets of several tokens keyed by token ID.
func (ix *Index) Postings(ctx context.Context, tokens []*model.Token) (map[uint32]*roaring.Bitmap, error) {
	out := make(map[uint32]*roaring.Bitmap, len(tokens))
	for _, tok := range tokens {
		if _, done := out[tok.ID]; done {
			continue
		}
		docs, err := ix.Documents(ctx, tok.ID)
		if err != nil {
			return nil, fmt.Errorf("reading postings of %v: %w", tok, err)
		}
		out[tok.ID] = docs
	}
	return out, nil
}

// ForDocument returns every occurrence recorded for documentID.
func (ix *Index) ForDocument(ctx context.Context, documentID uint32) ([]*model.Occurrence, error) {
	return resilience.Do(ctx, "index.document", ix.policy("index.document"), func() ([]*model.Occurrence, error) {
		return ix.store.Occurrences().ByDocument(ctx, documentID)
	})
}
