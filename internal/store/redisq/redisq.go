// Package redisq keeps the frequent-query cache in a Redis sorted set. Scores
// are search counts, so the ascending rank order is exactly the eviction
// order: lowest count first, equal counts by ascending query text.
package redisq

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/Adithya-Monish-Kumar-K/textindex/internal/model"
	pkgredis "github.com/Adithya-Monish-Kumar-K/textindex/pkg/redis"
)

// Repository implements store.FrequentQueryRepository. Writes are applied
// immediately and are not part of the store's pending transaction.
type Repository struct {
	client *pkgredis.Client
	key    string
	prefix string
	logger *slog.Logger
}

// New returns a repository keeping its set under prefix+"frequent_queries".
func New(client *pkgredis.Client, prefix string) *Repository {
	return &Repository{
		client: client,
		key:    prefix + "frequent_queries",
		prefix: prefix,
		logger: slog.Default().With("component", "redis-frequent-queries"),
	}
}

func (r *Repository) Increment(ctx context.Context, query string) (int, error) {
	score, err := r.client.ZIncrBy(ctx, r.key, 1, query)
	if err != nil {
		return 0, fmt.Errorf("recording query %q: %w", query, err)
	}
	return int(math.Round(score)), nil
}

func (r *Repository) Get(ctx context.Context, query string) (*model.FrequentQuery, error) {
	score, found, err := r.client.ZScore(ctx, r.key, query)
	if err != nil {
		return nil, fmt.Errorf("querying frequent query %q: %w", query, err)
	}
	if !found {
		return nil, nil
	}
	return &model.FrequentQuery{Query: query, SearchCount: int(math.Round(score))}, nil
}

func (r *Repository) Count(ctx context.Context) (int, error) {
	n, err := r.client.ZCard(ctx, r.key)
	if err != nil {
		return 0, fmt.Errorf("counting frequent queries: %w", err)
	}
	return int(n), nil
}

func (r *Repository) DeleteLowest(ctx context.Context, n int) (int, error) {
	if n <= 0 {
		return 0, nil
	}
	removed, err := r.client.ZRemRangeByRank(ctx, r.key, 0, int64(n-1))
	if err != nil {
		return 0, fmt.Errorf("pruning frequent queries: %w", err)
	}
	return int(removed), nil
}

// Top returns up to n entries by descending count. Equal counts come back in
// descending query order, as ZREVRANGE yields them.
func (r *Repository) Top(ctx context.Context, n int) ([]model.FrequentQuery, error) {
	if n == 0 {
		return nil, nil
	}
	stop := int64(n - 1)
	if n < 0 {
		stop = -1
	}
	members, err := r.client.ZRevRangeWithScores(ctx, r.key, 0, stop)
	if err != nil {
		return nil, fmt.Errorf("listing frequent queries: %w", err)
	}
	out := make([]model.FrequentQuery, 0, len(members))
	for _, m := range members {
		out = append(out, model.FrequentQuery{Query: m.Member, SearchCount: int(math.Round(m.Score))})
	}
	return out, nil
}

// Clear removes every key under the repository's prefix.
func (r *Repository) Clear(ctx context.Context) error {
	deleted, err := r.client.FlushByPattern(ctx, r.prefix+"*")
	if err != nil {
		return fmt.Errorf("clearing frequent queries: %w", err)
	}
	r.logger.Info("frequent queries cleared", "keys_deleted", deleted)
	return nil
}
