// Package engine assembles the index from a store and a Config: lexicon,
// corpus, inverted index, query engine, ranker, fuzzy matcher and frequency
// tracker. Index is the handle callers search and add documents through.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/textindex/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/textindex/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/textindex/internal/indexer/processor"
	"github.com/Adithya-Monish-Kumar-K/textindex/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/textindex/internal/lexicon"
	"github.com/Adithya-Monish-Kumar-K/textindex/internal/model"
	"github.com/Adithya-Monish-Kumar-K/textindex/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/textindex/internal/searcher/frequency"
	"github.com/Adithya-Monish-Kumar-K/textindex/internal/searcher/fuzzy"
	"github.com/Adithya-Monish-Kumar-K/textindex/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/textindex/internal/searcher/query"
	"github.com/Adithya-Monish-Kumar-K/textindex/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/textindex/internal/store"
	"github.com/Adithya-Monish-Kumar-K/textindex/internal/store/memory"
	pgstore "github.com/Adithya-Monish-Kumar-K/textindex/internal/store/postgres"
	"github.com/Adithya-Monish-Kumar-K/textindex/internal/store/redisq"
	"github.com/Adithya-Monish-Kumar-K/textindex/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/textindex/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/textindex/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/textindex/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/textindex/pkg/metrics"
	pgclient "github.com/Adithya-Monish-Kumar-K/textindex/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/textindex/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/textindex/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/textindex/pkg/tracing"
	"golang.org/x/sync/errgroup"
)

const pingTimeout = 5 * time.Second

// Option customizes an Index.
type Option func(*Index)

// WithMetrics reports to m instead of discarding metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(ix *Index) { ix.metrics = m }
}

// WithProcessor replaces the default tokenizing document processor.
func WithProcessor(p corpus.Processor) Option {
	return func(ix *Index) { ix.custom = p }
}

// WithStrategy replaces the weighted-sum ranking function.
func WithStrategy(s ranker.Strategy) Option {
	return func(ix *Index) { ix.strategy = s }
}

// WithClock sets the time source document ages are measured against.
func WithClock(now func() time.Time) Option {
	return func(ix *Index) { ix.clock = now }
}

// Index owns every component of one corpus. Search, Add and Update require
// a successful Initialize.
type Index struct {
	cfg      *config.Config
	store    store.Store
	metrics  *metrics.Metrics
	clock    func() time.Time
	custom   corpus.Processor
	strategy ranker.Strategy
	closers  []func() error

	lexicon   *lexicon.Lexicon
	inverted  *index.Index
	tokenizer *tokenizer.Tokenizer
	processor *processor.Processor
	corpus    *corpus.Corpus
	query     *query.Engine
	ranker    *ranker.Ranker
	fuzzy     *fuzzy.Matcher
	tracker   *frequency.Tracker
	parser    *parser.Parser
	executor  *executor.Executor

	mu          sync.Mutex
	initialized atomic.Bool
	stats       corpus.Stats
	stale       atomic.Bool

	logger *slog.Logger
}

// New builds an Index over s. Nothing touches storage until Initialize.
func New(cfg *config.Config, s store.Store, opts ...Option) *Index {
	ix := &Index{
		cfg:    cfg,
		store:  s,
		clock:  time.Now,
		logger: slog.Default().With("component", "engine"),
	}
	for _, opt := range opts {
		opt(ix)
	}

	retry := resilience.FixedRetry(cfg.Retry.MaxAttempts, cfg.Retry.Delay)
	ix.lexicon = lexicon.New(s)
	ix.inverted = index.New(s, retry, ix.metrics)
	ix.tokenizer = tokenizer.New(tokenizer.Options{Stem: cfg.Index.Stem})
	ix.processor = processor.New(ix.lexicon, ix.inverted, ix.tokenizer, index.FlagsFromConfig(cfg.Index.Statistics))
	var proc corpus.Processor = ix.processor
	if ix.custom != nil {
		proc = ix.custom
	}
	ix.corpus = corpus.New(s, proc, retry, ix.metrics)
	ix.query = query.New(ix.inverted, ix.corpus)
	if ix.strategy == nil {
		ix.strategy = ranker.WeightedSum{Weights: ranker.WeightsFromConfig(cfg.Ranking)}
	}
	ix.ranker = ranker.New(ix.strategy)
	ix.fuzzy = fuzzy.New(ix.lexicon, fuzzy.Options{
		MaxDistance: cfg.Index.FuzzyMaxDistance,
		IgnoreCase:  cfg.Index.FuzzyIgnoreCase,
	})
	ix.tracker = frequency.New(s.FrequentQueries(), ix.lexicon, ix.metrics)
	ix.parser = parser.New(ix.tokenizer)
	ix.executor = executor.New(executor.Components{
		Lexicon:           ix.lexicon,
		Index:             ix.inverted,
		Query:             ix.query,
		Ranker:            ix.ranker,
		Fuzzy:             ix.fuzzy,
		Tracker:           ix.tracker,
		Stats:             ix.CorpusStats,
		Metrics:           ix.metrics,
		ExpandApproximate: cfg.Index.ExpandApproximate,
	})
	return ix
}

// Open connects the storage backends named by cfg and builds an Index over
// them. The returned Index owns the connections; Close releases them.
func Open(ctx context.Context, cfg *config.Config, opts ...Option) (*Index, error) {
	var (
		s       store.Store
		closers []func() error
	)
	switch cfg.Storage.Driver {
	case "memory":
		s = memory.New()
	case "postgres":
		client, err := pgclient.New(cfg.Postgres)
		if err != nil {
			return nil, apperrors.Newf(apperrors.ErrStorageUnavailable, "engine.Open", "postgres: %v", err)
		}
		s = pgstore.New(client)
	default:
		return nil, apperrors.Newf(apperrors.ErrInvalidInput, "engine.Open", "unknown storage driver %q", cfg.Storage.Driver)
	}

	if cfg.Storage.FrequentQueries == "redis" {
		client, err := pkgredis.NewClient(cfg.Redis)
		if err != nil {
			s.Close()
			return nil, apperrors.Newf(apperrors.ErrStorageUnavailable, "engine.Open", "redis: %v", err)
		}
		s = store.WithFrequentQueries(s, redisq.New(client, cfg.Redis.KeyPrefix))
		closers = append(closers, client.Close)
	}

	ix := New(cfg, s, opts...)
	ix.closers = closers
	ix.logger.Info("storage opened",
		"driver", cfg.Storage.Driver,
		"frequent_queries", cfg.Storage.FrequentQueries,
	)
	return ix, nil
}

// Initialize verifies storage, optionally resets it, ensures the schema,
// caches the corpus statistics, loads the word lists and prunes the
// frequent-query cache. A second call after success is a no-op.
func (ix *Index) Initialize(ctx context.Context, reset bool) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.initialized.Load() {
		return nil
	}
	start := time.Now()

	if err := ix.ping(ctx); err != nil {
		return apperrors.Newf(apperrors.ErrStorageUnavailable, "engine.Initialize", "ping: %v", err)
	}
	if reset {
		if err := ix.store.Reset(ctx); err != nil {
			ix.logger.Warn("storage reset failed, continuing", "error", err)
		}
		ix.lexicon.Forget()
	}
	if err := ix.store.EnsureSchema(ctx); err != nil {
		return apperrors.Newf(apperrors.ErrSchema, "engine.Initialize", "%v", err)
	}

	var stats corpus.Stats
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		st, err := ix.corpus.Statistics(gctx, ix.clock())
		if err != nil {
			return fmt.Errorf("computing corpus statistics: %w", err)
		}
		stats = st
		return nil
	})
	g.Go(func() error {
		if err := ix.processor.RefreshWords(gctx, ix.store.Words()); err != nil {
			return fmt.Errorf("loading word lists: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	pruned, err := ix.tracker.Prune(ctx, ix.ceiling())
	if err != nil {
		ix.logger.Warn("pruning frequent queries failed", "error", err)
	}
	if err := ix.store.Commit(ctx); err != nil {
		return fmt.Errorf("committing initialization: %w", err)
	}

	ix.setStats(stats)
	ix.initialized.Store(true)
	ix.logger.Info("index initialized",
		"reset", reset,
		"documents", stats.Documents,
		"max_open_count", stats.MaxOpenCount,
		"max_age", stats.MaxAge,
		"pruned_queries", pruned,
		"duration", time.Since(start),
	)
	return nil
}

func (ix *Index) ping(ctx context.Context) error {
	return resilience.WithTimeout(ctx, "storage.ping", pingTimeout, ix.store.Ping)
}

func (ix *Index) ceiling() int {
	if ix.cfg.Index.FrequentQueryCeiling > 0 {
		return ix.cfg.Index.FrequentQueryCeiling
	}
	return frequency.DefaultCeiling
}

func (ix *Index) setStats(st corpus.Stats) {
	ix.stats = st
	ix.stale.Store(false)
	if ix.metrics != nil {
		ix.metrics.CorpusDocuments.Set(float64(st.Documents))
	}
}

// CorpusStats returns the cached corpus maxima with the current time. The
// cache is recomputed after documents were added or updated.
func (ix *Index) CorpusStats(ctx context.Context) (ranker.CorpusStats, error) {
	if !ix.initialized.Load() {
		return ranker.CorpusStats{}, apperrors.New(apperrors.ErrNotInitialized, "engine.CorpusStats", "")
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	now := ix.clock()
	if ix.stale.Load() {
		st, err := ix.corpus.Statistics(ctx, now)
		if err != nil {
			return ranker.CorpusStats{}, fmt.Errorf("refreshing corpus statistics: %w", err)
		}
		ix.setStats(st)
	}
	return ranker.CorpusStats{
		Documents:    ix.stats.Documents,
		MaxOpenCount: ix.stats.MaxOpenCount,
		MaxAge:       ix.stats.MaxAge,
		Now:          now,
	}, nil
}

// Search parses q and returns at most limit ranked hits.
func (ix *Index) Search(ctx context.Context, q string, limit int) (*executor.SearchResult, error) {
	if !ix.initialized.Load() {
		return nil, apperrors.New(apperrors.ErrNotInitialized, "engine.Search", "")
	}
	ctx = logger.WithQuery(ctx, q)
	ctx, span := tracing.Start(ctx, "search")
	defer span.End()
	span.SetAttr("query", q)

	result, err := ix.executor.Execute(ctx, ix.parser.Parse(q), limit)
	if err != nil {
		logger.FromContext(ctx).Error("search failed", "component", "engine", "error", err)
		return nil, err
	}
	span.SetAttr("hits", result.TotalHits)
	return result, nil
}

// Add adds a document to the corpus.
func (ix *Index) Add(ctx context.Context, req corpus.AddRequest) corpus.Result {
	if !ix.initialized.Load() {
		return corpus.Result{Outcome: corpus.StorageFailed, Err: apperrors.New(apperrors.ErrNotInitialized, "engine.Add", "")}
	}
	res := ix.corpus.Add(ctx, req)
	if res.Outcome != corpus.AlreadyExists {
		ix.stale.Store(true)
	}
	return res
}

// Update reprocesses an existing document.
func (ix *Index) Update(ctx context.Context, doc *model.Document) corpus.Result {
	if !ix.initialized.Load() {
		return corpus.Result{Outcome: corpus.StorageFailed, Err: apperrors.New(apperrors.ErrNotInitialized, "engine.Update", "")}
	}
	res := ix.corpus.Update(ctx, doc)
	ix.stale.Store(true)
	return res
}

// RecordOpen counts one open of doc.
func (ix *Index) RecordOpen(ctx context.Context, doc *model.Document) error {
	if err := ix.corpus.RecordOpen(ctx, doc); err != nil {
		return err
	}
	ix.stale.Store(true)
	return nil
}

// Commit flushes pending writes.
func (ix *Index) Commit(ctx context.Context) error {
	return ix.store.Commit(ctx)
}

// TopQueries returns the n most frequent queries.
func (ix *Index) TopQueries(ctx context.Context, n int) ([]model.FrequentQuery, error) {
	return ix.tracker.Top(ctx, n)
}

// Corpus exposes document lookups and mutations.
func (ix *Index) Corpus() *corpus.Corpus { return ix.corpus }

// Lexicon exposes token lookups.
func (ix *Index) Lexicon() *lexicon.Lexicon { return ix.lexicon }

// Query exposes the boolean query engine.
func (ix *Index) Query() *query.Engine { return ix.query }

// Fuzzy exposes approximate token matching.
func (ix *Index) Fuzzy() *fuzzy.Matcher { return ix.fuzzy }

// Words exposes the stop and whitelist word lists. Changes apply to the
// tokenizer on RefreshWords.
func (ix *Index) Words() store.WordRepository { return ix.store.Words() }

// RefreshWords reloads the word lists into the tokenizer.
func (ix *Index) RefreshWords(ctx context.Context) error {
	return ix.processor.RefreshWords(ctx, ix.store.Words())
}

// Health returns a checker probing the storage backends. Storage is
// critical; the frequent-query cache is not.
func (ix *Index) Health() *health.Checker {
	c := health.NewChecker()
	c.RegisterPing("storage", true, ix.ping)
	c.RegisterPing("frequent_queries", false, func(ctx context.Context) error {
		_, err := ix.store.FrequentQueries().Count(ctx)
		return err
	})
	return c
}

// Close releases the storage connections.
func (ix *Index) Close() error {
	err := ix.store.Close()
	for _, closeFn := range ix.closers {
		if cerr := closeFn(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}
