// Package query evaluates boolean token queries against the inverted index.
//
// Document sets are roaring bitmaps of document IDs. Every operation takes an
// optional candidate set within; nil means the whole corpus. The Set variants
// compose by progressive intersection, the Find variants resolve and order
// the documents.
package query

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/Adithya-Monish-Kumar-K/textindex/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/textindex/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/textindex/internal/model"
	"github.com/RoaringBitmap/roaring/v2"
)

// Engine evaluates queries over one corpus and its index.
type Engine struct {
	index  *index.Index
	corpus *corpus.Corpus
	logger *slog.Logger
}

func New(ix *index.Index, c *corpus.Corpus) *Engine {
	return &Engine{
		index:  ix,
		corpus: c,
		logger: slog.Default().With("component", "query-engine"),
	}
}

// universe resolves a nil candidate set to every document.
func (e *Engine) universe(ctx context.Context, within *roaring.Bitmap) (*roaring.Bitmap, error) {
	if within != nil {
		return within, nil
	}
	return e.corpus.IDs(ctx)
}

// matches returns, for every document of within holding at least one of
// tokens, the number of distinct tokens it holds.
func (e *Engine) matches(ctx context.Context, tokens []*model.Token, within *roaring.Bitmap) (map[uint32]int, error) {
	counts := make(map[uint32]int)
	if len(tokens) == 0 {
		return counts, nil
	}
	within, err := e.universe(ctx, within)
	if err != nil {
		return nil, err
	}
	postings, err := e.index.Postings(ctx, tokens)
	if err != nil {
		return nil, fmt.Errorf("resolving postings: %w", err)
	}
	for _, docs := range postings {
		it := roaring.And(docs, within).Iterator()
		for it.HasNext() {
			counts[it.Next()]++
		}
	}
	return counts, nil
}

// AnySet returns the documents of within holding at least one of tokens.
func (e *Engine) AnySet(ctx context.Context, tokens []*model.Token, within *roaring.Bitmap) (*roaring.Bitmap, error) {
	if len(tokens) == 0 {
		return roaring.New(), nil
	}
	within, err := e.universe(ctx, within)
	if err != nil {
		return nil, err
	}
	postings, err := e.index.Postings(ctx, tokens)
	if err != nil {
		return nil, fmt.Errorf("resolving postings: %w", err)
	}
	sets := make([]*roaring.Bitmap, 0, len(postings))
	for _, docs := range postings {
		sets = append(sets, docs)
	}
	return roaring.And(roaring.FastOr(sets...), within), nil
}

// AllSet returns the documents of within holding every one of tokens. No
// tokens yields no documents.
func (e *Engine) AllSet(ctx context.Context, tokens []*model.Token, within *roaring.Bitmap) (*roaring.Bitmap, error) {
	if len(tokens) == 0 {
		return roaring.New(), nil
	}
	result, err := e.universe(ctx, within)
	if err != nil {
		return nil, err
	}
	result = result.Clone()
	postings, err := e.index.Postings(ctx, tokens)
	if err != nil {
		return nil, fmt.Errorf("resolving postings: %w", err)
	}
	for _, docs := range postings {
		result.And(docs)
		if result.IsEmpty() {
			break
		}
	}
	return result, nil
}

// OneOfEachSet narrows within by the OR of each group in turn, so a result
// holds at least one token of every group. No groups yields no documents.
func (e *Engine) OneOfEachSet(ctx context.Context, groups [][]*model.Token, within *roaring.Bitmap) (*roaring.Bitmap, error) {
	if len(groups) == 0 {
		return roaring.New(), nil
	}
	current, err := e.universe(ctx, within)
	if err != nil {
		return nil, err
	}
	for i, group := range groups {
		current, err = e.AnySet(ctx, group, current)
		if err != nil {
			return nil, fmt.Errorf("group %d: %w", i, err)
		}
		if current.IsEmpty() {
			break
		}
	}
	return current, nil
}

// NotSet returns within minus AnySet(tokens, within).
func (e *Engine) NotSet(ctx context.Context, tokens []*model.Token, within *roaring.Bitmap) (*roaring.Bitmap, error) {
	within, err := e.universe(ctx, within)
	if err != nil {
		return nil, err
	}
	hits, err := e.AnySet(ctx, tokens, within)
	if err != nil {
		return nil, err
	}
	return roaring.AndNot(within, hits), nil
}

// FindAny returns the documents holding at least one of tokens, most
// distinct matches first, then by recency.
func (e *Engine) FindAny(ctx context.Context, tokens []*model.Token, within *roaring.Bitmap) ([]*model.Document, error) {
	counts, err := e.matches(ctx, tokens, within)
	if err != nil {
		return nil, err
	}
	ids := make([]uint32, 0, len(counts))
	for id := range counts {
		ids = append(ids, id)
	}
	docs, err := e.corpus.ByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	slices.SortFunc(docs, func(a, b *model.Document) int {
		if c := cmp.Compare(counts[b.ID], counts[a.ID]); c != 0 {
			return c
		}
		return byRecency(a, b)
	})
	return docs, nil
}

// FindAllExact returns the documents holding every one of tokens, by recency.
func (e *Engine) FindAllExact(ctx context.Context, tokens []*model.Token, within *roaring.Bitmap) ([]*model.Document, error) {
	set, err := e.AllSet(ctx, tokens, within)
	if err != nil {
		return nil, err
	}
	return e.documents(ctx, set)
}

// FindOneOfEach returns the documents holding a token of every group. The
// last group is applied as FindAny, so results are ordered by how many of its
// tokens they hold.
func (e *Engine) FindOneOfEach(ctx context.Context, groups [][]*model.Token, within *roaring.Bitmap) ([]*model.Document, error) {
	if len(groups) == 0 {
		return []*model.Document{}, nil
	}
	narrowed := within
	if len(groups) > 1 {
		var err error
		narrowed, err = e.OneOfEachSet(ctx, groups[:len(groups)-1], within)
		if err != nil {
			return nil, err
		}
	}
	return e.FindAny(ctx, groups[len(groups)-1], narrowed)
}

// FindNot returns the documents of within holding none of tokens, by
// recency.
func (e *Engine) FindNot(ctx context.Context, tokens []*model.Token, within *roaring.Bitmap) ([]*model.Document, error) {
	set, err := e.NotSet(ctx, tokens, within)
	if err != nil {
		return nil, err
	}
	return e.documents(ctx, set)
}

// documents resolves set and orders it by recency.
func (e *Engine) documents(ctx context.Context, set *roaring.Bitmap) ([]*model.Document, error) {
	docs, err := e.corpus.ByIDs(ctx, set.ToArray())
	if err != nil {
		return nil, err
	}
	slices.SortFunc(docs, byRecency)
	return docs, nil
}

// byRecency orders by modification date, average rating and open count, all
// descending, then by ID.
func byRecency(a, b *model.Document) int {
	if c := b.ModifiedAt.Compare(a.ModifiedAt); c != 0 {
		return c
	}
	if c := cmp.Compare(b.AverageRating(), a.AverageRating()); c != 0 {
		return c
	}
	if c := cmp.Compare(b.OpenCount, a.OpenCount); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}
