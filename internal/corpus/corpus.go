// Package corpus is the canonical store of documents. Reads are retried with
// a bounded fixed-delay policy; Add and Update report a typed Result instead
// of failing.
package corpus

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/textindex/internal/model"
	"github.com/Adithya-Monish-Kumar-K/textindex/internal/store"
	apperrors "github.com/Adithya-Monish-Kumar-K/textindex/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/textindex/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/textindex/pkg/resilience"
	"github.com/RoaringBitmap/roaring/v2"
	"golang.org/x/sync/errgroup"
)

// Processor extracts a document's tokens into the inverted index and returns
// its token count.
type Processor interface {
	Process(ctx context.Context, doc *model.Document) (int, error)
}

// Corpus wraps the document repository of a store.
type Corpus struct {
	store      store.Store
	processor  Processor
	retry      resilience.RetryConfig
	metrics    *metrics.Metrics
	duplicates atomic.Int64
	logger     *slog.Logger
}

// New returns a corpus over s. processor may be nil, in which case added
// documents keep the token count they were added with. m may be nil.
func New(s store.Store, processor Processor, retry resilience.RetryConfig, m *metrics.Metrics) *Corpus {
	return &Corpus{
		store:     s,
		processor: processor,
		retry:     retry,
		metrics:   m,
		logger:    slog.Default().With("component", "corpus"),
	}
}

func read[T any](ctx context.Context, c *Corpus, op string, fn func() (T, error)) (T, error) {
	policy := c.retry
	policy.OnRetry = c.metrics.RetryObserver(op)
	return resilience.Do(ctx, op, policy, fn)
}

// ExistsChecksum reports whether any document has checksum.
func (c *Corpus) ExistsChecksum(ctx context.Context, checksum int64) (bool, error) {
	doc, err := c.ByChecksum(ctx, checksum)
	return doc != nil, err
}

// ExistsIdentity reports whether the document (checksum, path) exists.
func (c *Corpus) ExistsIdentity(ctx context.Context, checksum int64, path string) (bool, error) {
	doc, err := c.ByIdentity(ctx, checksum, path)
	return doc != nil, err
}

// ExistsPath reports whether any document has path.
func (c *Corpus) ExistsPath(ctx context.Context, path string) (bool, error) {
	doc, err := c.ByPath(ctx, path)
	return doc != nil, err
}

// ByPath returns the latest document recorded for path, or nil.
func (c *Corpus) ByPath(ctx context.Context, path string) (*model.Document, error) {
	docs, err := c.find(ctx, "corpus.by_path", store.DocumentFilter{Path: &path})
	if err != nil || len(docs) == 0 {
		return nil, err
	}
	return docs[len(docs)-1], nil
}

// ByChecksum returns the first document recorded with checksum, or nil.
func (c *Corpus) ByChecksum(ctx context.Context, checksum int64) (*model.Document, error) {
	docs, err := c.find(ctx, "corpus.by_checksum", store.DocumentFilter{Checksum: &checksum})
	if err != nil || len(docs) == 0 {
		return nil, err
	}
	return docs[0], nil
}

// ByIdentity returns the document (checksum, path), or nil.
func (c *Corpus) ByIdentity(ctx context.Context, checksum int64, path string) (*model.Document, error) {
	docs, err := c.find(ctx, "corpus.by_identity", store.DocumentFilter{Checksum: &checksum, Path: &path})
	if err != nil || len(docs) == 0 {
		return nil, err
	}
	return docs[0], nil
}

func (c *Corpus) find(ctx context.Context, op string, filter store.DocumentFilter) ([]*model.Document, error) {
	docs, err := read(ctx, c, op, func() ([]*model.Document, error) {
		return c.store.Documents().Find(ctx, filter)
	})
	if err != nil {
		return nil, fmt.Errorf("finding documents: %w", err)
	}
	return docs, nil
}

// ByID returns the document with id, or nil.
func (c *Corpus) ByID(ctx context.Context, id uint32) (*model.Document, error) {
	doc, err := read(ctx, c, "corpus.by_id", func() (*model.Document, error) {
		return c.store.Documents().Get(ctx, id)
	})
	if err != nil {
		return nil, fmt.Errorf("getting document %d: %w", id, err)
	}
	return doc, nil
}

// ByIDs returns the existing documents among ids in ascending ID order.
func (c *Corpus) ByIDs(ctx context.Context, ids []uint32) ([]*model.Document, error) {
	if len(ids) == 0 {
		return []*model.Document{}, nil
	}
	docs, err := read(ctx, c, "corpus.by_ids", func() ([]*model.Document, error) {
		return c.store.Documents().GetMany(ctx, ids)
	})
	if err != nil {
		return nil, fmt.Errorf("getting %d documents: %w", len(ids), err)
	}
	return docs, nil
}

// IDs returns the set of all document IDs.
func (c *Corpus) IDs(ctx context.Context) (*roaring.Bitmap, error) {
	ids, err := read(ctx, c, "corpus.ids", func() (*roaring.Bitmap, error) {
		return c.store.Documents().IDs(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("listing document ids: %w", err)
	}
	return ids, nil
}

// Count returns the number of documents.
func (c *Corpus) Count(ctx context.Context) (int, error) {
	n, err := read(ctx, c, "corpus.count", func() (int, error) {
		return c.store.Documents().Count(ctx)
	})
	if err != nil {
		return 0, fmt.Errorf("counting documents: %w", err)
	}
	return n, nil
}

// Duplicates returns how many added documents reused a checksum already
// recorded under another path.
func (c *Corpus) Duplicates() int64 {
	return c.duplicates.Load()
}

// AddRequest describes a document to add.
type AddRequest struct {
	Checksum int64
	Path     string
	// TokenCount is the known token count; zero or less means unknown.
	TokenCount int
	// RawData is handed to the processor instead of the file at Path.
	RawData    []byte
	ModifiedAt time.Time
	// Commit flushes the store once the document is processed.
	Commit bool
}

// Add records the document (Checksum, Path) and runs the processor on it.
// Adding an existing identity is a successful no-op, unless an earlier add
// left it with an unknown token count: then the processor runs again.
func (c *Corpus) Add(ctx context.Context, req AddRequest) Result {
	res := c.add(ctx, req)
	c.observe(res)
	if res.Err != nil {
		c.logger.Warn("document add failed",
			"path", req.Path,
			"checksum", req.Checksum,
			"outcome", res.Outcome.String(),
			"error", res.Err,
		)
	}
	return res
}

func (c *Corpus) add(ctx context.Context, req AddRequest) Result {
	existing, err := c.ByIdentity(ctx, req.Checksum, req.Path)
	if err != nil {
		return failed(StorageFailed, nil, err)
	}
	if existing != nil {
		if existing.TokenCount != model.UnknownTokenCount || c.processor == nil {
			return Result{Outcome: AlreadyExists, Document: existing}
		}
		// An earlier add stored the document but never finished processing it.
		existing.RawData = req.RawData
		return c.finish(ctx, existing, true, req.Commit)
	}

	dup, err := c.ExistsChecksum(ctx, req.Checksum)
	if err != nil {
		return failed(StorageFailed, nil, err)
	}
	if dup {
		c.duplicates.Add(1)
		if c.metrics != nil {
			c.metrics.DuplicateDocuments.Inc()
		}
		c.logger.Info("duplicate content", "path", req.Path, "checksum", req.Checksum)
	}

	modified := req.ModifiedAt
	if modified.IsZero() {
		modified = time.Now()
	}
	doc := model.NewDocument(req.Checksum, req.Path, modified)
	if req.TokenCount > 0 {
		doc.TokenCount = req.TokenCount
	}
	doc.RawData = req.RawData
	if err := c.store.Documents().Insert(ctx, doc); err != nil {
		return failed(StorageFailed, nil, fmt.Errorf("inserting %s: %w", req.Path, err))
	}

	return c.finish(ctx, doc, false, req.Commit)
}

// finish processes a stored document and optionally commits.
func (c *Corpus) finish(ctx context.Context, doc *model.Document, replace, commit bool) Result {
	if res, ok := c.process(ctx, doc, replace); !ok {
		return res
	}
	if commit {
		if err := c.store.Commit(ctx); err != nil {
			return failed(StorageFailed, doc, fmt.Errorf("committing: %w", err))
		}
	}
	c.logger.Debug("document added", "doc_id", doc.ID, "path", doc.Path, "token_count", doc.TokenCount)
	return Result{Outcome: Created, Document: doc}
}

// Update re-runs the processor on an existing document and replaces its
// token count. The processor supersedes the document's prior occurrences.
func (c *Corpus) Update(ctx context.Context, doc *model.Document) Result {
	res := c.update(ctx, doc)
	c.observe(res)
	if res.Err != nil {
		c.logger.Warn("document update failed", "doc_id", doc.ID, "outcome", res.Outcome.String(), "error", res.Err)
	}
	return res
}

func (c *Corpus) update(ctx context.Context, doc *model.Document) Result {
	current, err := c.ByID(ctx, doc.ID)
	if err != nil {
		return failed(StorageFailed, doc, err)
	}
	if current == nil {
		return failed(StorageFailed, doc, apperrors.Newf(apperrors.ErrInvalidInput, "corpus.Update", "document %d does not exist", doc.ID))
	}
	if res, ok := c.process(ctx, doc, true); !ok {
		return res
	}
	return Result{Outcome: Updated, Document: doc}
}

// process runs the processor on a stored document and persists the token
// count. replace overwrites a known count with the processor's.
func (c *Corpus) process(ctx context.Context, doc *model.Document, replace bool) (Result, bool) {
	if c.processor == nil {
		return Result{}, true
	}
	n, err := c.processor.Process(ctx, doc)
	if err != nil {
		return failed(ProcessingFailed, doc, fmt.Errorf("processing %v: %w", doc, err)), false
	}
	if replace || doc.TokenCount == model.UnknownTokenCount {
		doc.TokenCount = n
	}
	if err := c.store.Documents().Update(ctx, doc); err != nil {
		return failed(StorageFailed, doc, fmt.Errorf("saving token count of %v: %w", doc, err)), false
	}
	return Result{}, true
}

// RecordOpen increments the open count of doc.
func (c *Corpus) RecordOpen(ctx context.Context, doc *model.Document) error {
	doc.OpenCount++
	if err := c.store.Documents().Update(ctx, doc); err != nil {
		doc.OpenCount--
		return fmt.Errorf("recording open of %v: %w", doc, err)
	}
	return nil
}

// Rate adds a rating in [0, MaxRating] to doc.
func (c *Corpus) Rate(ctx context.Context, doc *model.Document, rating float64) error {
	if rating < 0 || rating > model.MaxRating {
		return apperrors.Newf(apperrors.ErrInvalidInput, "corpus.Rate", "rating %v outside [0, %v]", rating, model.MaxRating)
	}
	doc.RatingSum += rating
	doc.RatingCount++
	if err := c.store.Documents().Update(ctx, doc); err != nil {
		doc.RatingSum -= rating
		doc.RatingCount--
		return fmt.Errorf("rating %v: %w", doc, err)
	}
	return nil
}

// Stats are the corpus-wide aggregates the ranking function normalizes by.
type Stats struct {
	Documents    int
	MaxOpenCount int
	MaxAge       time.Duration
}

// Statistics computes the corpus aggregates as of now. MaxOpenCount and
// MaxAge are zero on an empty corpus.
func (c *Corpus) Statistics(ctx context.Context, now time.Time) (Stats, error) {
	var st Stats
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := c.Count(gctx)
		st.Documents = n
		return err
	})
	g.Go(func() error {
		n, err := read(gctx, c, "corpus.max_open_count", func() (int, error) {
			return c.store.Documents().MaxOpenCount(gctx)
		})
		if err != nil {
			return fmt.Errorf("max open count: %w", err)
		}
		st.MaxOpenCount = n
		return nil
	})
	g.Go(func() error {
		type oldest struct {
			at time.Time
			ok bool
		}
		o, err := read(gctx, c, "corpus.oldest_modification", func() (oldest, error) {
			at, ok, err := c.store.Documents().OldestModification(gctx)
			return oldest{at, ok}, err
		})
		if err != nil {
			return fmt.Errorf("oldest modification: %w", err)
		}
		if o.ok {
			st.MaxAge = max(now.Sub(o.at), 0)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return Stats{}, err
	}
	return st, nil
}

func (c *Corpus) observe(res Result) {
	if c.metrics != nil {
		c.metrics.DocumentsAddedTotal.WithLabelValues(res.Outcome.String()).Inc()
	}
}

// Checksum returns the content checksum used as document identity.
func Checksum(data []byte) int64 {
	h := fnv.New64a()
	h.Write(data)
	return int64(h.Sum64())
}
