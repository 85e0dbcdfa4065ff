// Package frequency records issued queries in the bounded frequent-query
// cache and bumps the search counts of the tokens they used.
package frequency

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/textindex/internal/lexicon"
	"github.com/Adithya-Monish-Kumar-K/textindex/internal/model"
	"github.com/Adithya-Monish-Kumar-K/textindex/internal/store"
	apperrors "github.com/Adithya-Monish-Kumar-K/textindex/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/textindex/pkg/metrics"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DefaultCeiling bounds the frequent-query cache.
const DefaultCeiling = 1000

type Tracker struct {
	queries store.FrequentQueryRepository
	lexicon *lexicon.Lexicon
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func New(queries store.FrequentQueryRepository, lex *lexicon.Lexicon, m *metrics.Metrics) *Tracker {
	return &Tracker{
		queries: queries,
		lexicon: lex,
		metrics: m,
		logger:  slog.Default().With("component", "frequency-tracker"),
	}
}

// Normalize lower-cases query and collapses its whitespace.
func Normalize(query string) string {
	return strings.Join(strings.Fields(cases.Lower(language.Und).String(query)), " ")
}

// Record increments the count of the normalized query, inserting it at 1,
// and returns the new count.
func (t *Tracker) Record(ctx context.Context, query string) (int, error) {
	q := Normalize(query)
	if q == "" {
		return 0, apperrors.New(apperrors.ErrInvalidInput, "frequency.Record", "empty query")
	}
	n, err := t.queries.Increment(ctx, q)
	if err != nil {
		return 0, fmt.Errorf("recording query %q: %w", q, err)
	}
	return n, nil
}

// Prune evicts the lowest-count entries until at most ceiling remain and
// returns how many were evicted.
func (t *Tracker) Prune(ctx context.Context, ceiling int) (int, error) {
	if ceiling < 0 {
		return 0, apperrors.Newf(apperrors.ErrInvalidInput, "frequency.Prune", "negative ceiling %d", ceiling)
	}
	size, err := t.queries.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("counting frequent queries: %w", err)
	}
	if size <= ceiling {
		return 0, nil
	}
	removed, err := t.queries.DeleteLowest(ctx, size-ceiling)
	if err != nil {
		return 0, fmt.Errorf("pruning frequent queries: %w", err)
	}
	if t.metrics != nil {
		t.metrics.FrequentQueriesPruned.Add(float64(removed))
	}
	t.logger.Info("frequent queries pruned", "removed", removed, "ceiling", ceiling)
	return removed, nil
}

// Top returns the n most frequent queries; n < 0 returns all of them.
func (t *Tracker) Top(ctx context.Context, n int) ([]model.FrequentQuery, error) {
	top, err := t.queries.Top(ctx, n)
	if err != nil {
		return nil, fmt.Errorf("listing frequent queries: %w", err)
	}
	return top, nil
}

// IncrementTokenSearchCounts bumps the search count of every distinct token
// a resolved query used.
func (t *Tracker) IncrementTokenSearchCounts(ctx context.Context, tokens []*model.Token) error {
	return t.lexicon.IncrementSearchCounts(ctx, tokens)
}
