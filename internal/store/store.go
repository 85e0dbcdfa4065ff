// Package store defines the storage collaborator the index runs against: one
// repository per entity plus commit and schema lifecycle. Implementations
// live in the memory, postgres and redisq subpackages.
//
// Lookups that find nothing return a nil entity and a nil error. Writes may be
// buffered until Commit; reads issued through the same Store observe them.
package store

import (
	"context"
	"time"

	"github.com/Adithya-Monish-Kumar-K/textindex/internal/model"
	"github.com/RoaringBitmap/roaring/v2"
)

// TokenRepository persists lexicon entries.
type TokenRepository interface {
	// Insert stores a token with unique text and assigns its ID.
	Insert(ctx context.Context, tok *model.Token) error
	Get(ctx context.Context, id uint32) (*model.Token, error)
	FindByText(ctx context.Context, text string) (*model.Token, error)
	// FindByTextFold returns the tokens whose lower-cased text equals the
	// lower-cased text, in ascending ID order.
	FindByTextFold(ctx context.Context, text string) ([]*model.Token, error)
	// Scan calls fn for every token in ascending ID order until fn returns
	// false.
	Scan(ctx context.Context, fn func(*model.Token) bool) error
	IncrementSearchCount(ctx context.Context, id uint32, delta int) error
}

// DocumentFilter restricts Find. Nil fields match anything.
type DocumentFilter struct {
	Checksum *int64
	Path     *string
}

// DocumentRepository persists corpus entries.
type DocumentRepository interface {
	// Insert stores a document and assigns its ID.
	Insert(ctx context.Context, doc *model.Document) error
	// Update rewrites the mutable attributes of an existing document.
	Update(ctx context.Context, doc *model.Document) error
	Get(ctx context.Context, id uint32) (*model.Document, error)
	// Find returns matching documents in ascending ID order.
	Find(ctx context.Context, filter DocumentFilter) ([]*model.Document, error)
	// GetMany returns the documents among ids that exist, in ascending ID
	// order.
	GetMany(ctx context.Context, ids []uint32) ([]*model.Document, error)
	IDs(ctx context.Context) (*roaring.Bitmap, error)
	Count(ctx context.Context) (int, error)
	MaxOpenCount(ctx context.Context) (int, error)
	// OldestModification returns the earliest ModifiedAt; ok is false on an
	// empty corpus.
	OldestModification(ctx context.Context) (oldest time.Time, ok bool, err error)
}

// OccurrenceRepository persists the inverted index.
type OccurrenceRepository interface {
	Get(ctx context.Context, tokenID, documentID uint32) (*model.Occurrence, error)
	Insert(ctx context.Context, occ *model.Occurrence) error
	// DeleteByDocument removes every occurrence of documentID and returns the
	// affected token IDs.
	DeleteByDocument(ctx context.Context, documentID uint32) ([]uint32, error)
	ByDocument(ctx context.Context, documentID uint32) ([]*model.Occurrence, error)
	// Documents returns the IDs of documents containing tokenID.
	Documents(ctx context.Context, tokenID uint32) (*roaring.Bitmap, error)
	// TotalCount sums Count over all occurrences of tokenID.
	TotalCount(ctx context.Context, tokenID uint32) (int, error)
}

// WordRepository persists stop and whitelist words.
type WordRepository interface {
	Add(ctx context.Context, kind model.WordKind, word string) error
	Remove(ctx context.Context, kind model.WordKind, word string) error
	List(ctx context.Context, kind model.WordKind) ([]string, error)
}

// FrequentQueryRepository persists the frequent-query cache.
type FrequentQueryRepository interface {
	// Increment adds one to query's count, inserting it at 1, and returns the
	// new count.
	Increment(ctx context.Context, query string) (int, error)
	Get(ctx context.Context, query string) (*model.FrequentQuery, error)
	Count(ctx context.Context) (int, error)
	// DeleteLowest removes the n entries with the lowest counts, breaking
	// ties by ascending query text, and returns how many were removed.
	DeleteLowest(ctx context.Context, n int) (int, error)
	// Top returns up to n entries by descending count.
	Top(ctx context.Context, n int) ([]model.FrequentQuery, error)
	Clear(ctx context.Context) error
}

// Store groups the repositories with the storage lifecycle.
type Store interface {
	Tokens() TokenRepository
	Documents() DocumentRepository
	Occurrences() OccurrenceRepository
	Words() WordRepository
	FrequentQueries() FrequentQueryRepository

	// Commit flushes pending writes as one unit.
	Commit(ctx context.Context) error
	Ping(ctx context.Context) error
	EnsureSchema(ctx context.Context) error
	// Reset drops all stored data. EnsureSchema must follow.
	Reset(ctx context.Context) error
	Close() error
}

// WithFrequentQueries returns s with its frequent-query repository replaced
// by fq. Reset also clears fq.
func WithFrequentQueries(s Store, fq FrequentQueryRepository) Store {
	return &overlay{Store: s, fq: fq}
}

type overlay struct {
	Store
	fq FrequentQueryRepository
}

func (o *overlay) FrequentQueries() FrequentQueryRepository {
	return o.fq
}

func (o *overlay) Reset(ctx context.Context) error {
	if err := o.Store.Reset(ctx); err != nil {
		return err
	}
	return o.fq.Clear(ctx)
}
