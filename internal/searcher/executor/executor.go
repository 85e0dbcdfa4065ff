package executor

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/Adithya-Monish-Kumar-K/textindex/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/textindex/internal/lexicon"
	"github.com/Adithya-Monish-Kumar-K/textindex/internal/model"
	"github.com/Adithya-Monish-Kumar-K/textindex/internal/searcher/frequency"
	"github.com/Adithya-Monish-Kumar-K/textindex/internal/searcher/fuzzy"
	"github.com/Adithya-Monish-Kumar-K/textindex/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/textindex/internal/searcher/query"
	"github.com/Adithya-Monish-Kumar-K/textindex/internal/searcher/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/textindex/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/textindex/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/textindex/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/textindex/pkg/tracing"
	"github.com/RoaringBitmap/roaring/v2"
)

// Hit is one ranked result.
type Hit struct {
	DocID      uint32    `json:"doc_id"`
	Path       string    `json:"path"`
	Score      float64   `json:"score"`
	ModifiedAt time.Time `json:"modified_at"`
}

type SearchResult struct {
	Query     string         `json:"query"`
	TotalHits int            `json:"total_hits"`
	Results   []Hit          `json:"results"`
	TermStats map[string]int `json:"term_stats"`
	// Ranked is false when scoring was skipped and Results are in query
	// engine order with zero scores. UnrankedReason then says why, e.g. no
	// document has been opened yet.
	Ranked         bool   `json:"ranked"`
	UnrankedReason string `json:"unranked_reason,omitempty"`
}

// StatsFunc supplies the corpus statistics ranking normalizes by.
type StatsFunc func(ctx context.Context) (ranker.CorpusStats, error)

// Components are the collaborators a search runs through.
type Components struct {
	Lexicon *lexicon.Lexicon
	Index   *index.Index
	Query   *query.Engine
	Ranker  *ranker.Ranker
	Fuzzy   *fuzzy.Matcher
	Tracker *frequency.Tracker
	Stats   StatsFunc
	Metrics *metrics.Metrics
	// ExpandApproximate adds near spellings of optional words to the query.
	ExpandApproximate bool
}

type Executor struct {
	c      Components
	logger *slog.Logger
}

func New(c Components) *Executor {
	return &Executor{
		c:      c,
		logger: slog.Default().With("component", "query-executor"),
	}
}

// resolved is a plan with its words mapped to tokens.
type resolved struct {
	query    ranker.Query
	groups   [][]*model.Token
	positive []*model.Token
	excluded []*model.Token
	// used are the tokens whose search counts the query bumps.
	used  []*model.Token
	terms map[string][]*model.Token
}

// Execute evaluates plan and returns at most limit ranked hits; limit <= 0
// returns all of them.
func (e *Executor) Execute(ctx context.Context, plan *parser.QueryPlan, limit int) (*SearchResult, error) {
	start := time.Now()
	if plan.IsEmpty() {
		e.observe("zero_result", start, 0)
		return &SearchResult{
			Query:     plan.RawQuery,
			Results:   []Hit{},
			TermStats: map[string]int{},
		}, nil
	}

	ctx, span := tracing.Start(ctx, "execute")
	defer span.End()

	sctx, stage := tracing.Start(ctx, "resolve")
	r, err := e.resolve(sctx, plan)
	stage.End()
	if err != nil {
		e.observe("error", start, 0)
		return nil, err
	}
	sctx, stage = tracing.Start(ctx, "candidates")
	docs, err := e.candidates(sctx, plan, r)
	stage.SetAttr("candidates", len(docs))
	stage.End()
	if err != nil {
		e.observe("error", start, 0)
		return nil, err
	}

	postings, err := e.c.Index.Postings(ctx, slices.Concat(r.positive, r.excluded))
	if err != nil {
		e.observe("error", start, 0)
		return nil, fmt.Errorf("reading postings: %w", err)
	}
	sctx, stage = tracing.Start(ctx, "rank")
	hits, skipped := e.rank(sctx, plan, r, docs, postings)
	ranked := skipped == nil
	stage.SetAttr("ranked", ranked)
	stage.End()

	result := &SearchResult{
		Query:     plan.RawQuery,
		TotalHits: len(hits),
		Results:   hits,
		TermStats: termStats(r.terms, postings),
		Ranked:    ranked,
	}
	if skipped != nil {
		result.UnrankedReason = skipped.Error()
	}
	if limit > 0 && len(result.Results) > limit {
		result.Results = result.Results[:limit]
	}
	e.record(ctx, plan, r)

	outcome := "hit"
	switch {
	case result.TotalHits == 0:
		outcome = "zero_result"
	case !ranked:
		outcome = "unranked"
	}
	e.observe(outcome, start, result.TotalHits)
	e.logger.Info("query executed",
		"query", plan.RawQuery,
		"required", plan.Required,
		"optional", plan.Optional,
		"excluded", plan.Excluded,
		"candidates", len(docs),
		"results", len(result.Results),
		"ranked", ranked,
	)
	return result, nil
}

func (e *Executor) resolve(ctx context.Context, plan *parser.QueryPlan) (*resolved, error) {
	r := &resolved{terms: make(map[string][]*model.Token)}
	exact := func(word string) ([]*model.Token, error) {
		toks, err := e.c.Lexicon.FindExactFold(ctx, word)
		if err != nil {
			return nil, fmt.Errorf("resolving %q: %w", word, err)
		}
		r.terms[word] = toks
		return toks, nil
	}

	for _, word := range plan.Required {
		toks, err := exact(word)
		if err != nil {
			return nil, err
		}
		r.groups = append(r.groups, toks)
		r.positive = append(r.positive, toks...)
		r.used = append(r.used, toks...)
		r.query.Required = append(r.query.Required, ranker.Term{Word: word, Exact: ids(toks)})
	}
	for _, group := range plan.Groups {
		var toks []*model.Token
		for _, word := range group {
			alt, err := exact(word)
			if err != nil {
				return nil, err
			}
			toks = append(toks, alt...)
		}
		r.groups = append(r.groups, toks)
		r.positive = append(r.positive, toks...)
		r.used = append(r.used, toks...)
		r.query.Required = append(r.query.Required, ranker.Term{Word: fmt.Sprint(group), Exact: ids(toks)})
	}
	for _, word := range plan.Optional {
		toks, err := exact(word)
		if err != nil {
			return nil, err
		}
		term := ranker.Term{Word: word, Exact: ids(toks)}
		r.positive = append(r.positive, toks...)
		r.used = append(r.used, toks...)
		if e.c.ExpandApproximate {
			near, err := e.approximate(ctx, word, toks)
			if err != nil {
				return nil, err
			}
			term.Approximate = ids(near)
			r.positive = append(r.positive, near...)
		}
		r.query.Optional = append(r.query.Optional, term)
	}
	for _, word := range plan.Approximate {
		near, err := e.approximate(ctx, word, nil)
		if err != nil {
			return nil, err
		}
		r.terms[word] = near
		r.positive = append(r.positive, near...)
		r.query.Optional = append(r.query.Optional, ranker.Term{Word: word, Approximate: ids(near)})
	}
	for _, word := range plan.Excluded {
		toks, err := exact(word)
		if err != nil {
			return nil, err
		}
		r.excluded = append(r.excluded, toks...)
	}
	return r, nil
}

// approximate returns the near spellings of word other than the tokens in
// exclude.
func (e *Executor) approximate(ctx context.Context, word string, exclude []*model.Token) ([]*model.Token, error) {
	if e.c.Fuzzy == nil {
		return nil, nil
	}
	near, err := e.c.Fuzzy.Collect(ctx, word)
	if err != nil {
		return nil, fmt.Errorf("approximate lookup of %q: %w", word, err)
	}
	return slices.DeleteFunc(near, func(tok *model.Token) bool {
		return slices.Contains(exclude, tok)
	}), nil
}

// candidates narrows the corpus by the required groups, or by the optional
// words when there are none, then removes exclusions.
func (e *Executor) candidates(ctx context.Context, plan *parser.QueryPlan, r *resolved) ([]*model.Document, error) {
	if !plan.HasPositive() {
		docs, err := e.c.Query.FindNot(ctx, r.excluded, nil)
		if err != nil {
			return nil, fmt.Errorf("evaluating exclusions: %w", err)
		}
		return docs, nil
	}

	var (
		set *roaring.Bitmap
		err error
	)
	if len(r.groups) > 0 {
		set, err = e.c.Query.OneOfEachSet(ctx, r.groups, nil)
	} else {
		set, err = e.c.Query.AnySet(ctx, r.positive, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("evaluating query: %w", err)
	}
	if len(r.excluded) > 0 && !set.IsEmpty() {
		set, err = e.c.Query.NotSet(ctx, r.excluded, set)
		if err != nil {
			return nil, fmt.Errorf("evaluating exclusions: %w", err)
		}
	}
	if set.IsEmpty() {
		return []*model.Document{}, nil
	}
	docs, err := e.c.Query.FindAny(ctx, r.positive, set)
	if err != nil {
		return nil, fmt.Errorf("ordering candidates: %w", err)
	}
	return docs, nil
}

// rank scores docs. When the ranking preconditions fail the query engine
// order is kept with zero scores.
// rank scores docs. When ranking preconditions fail it returns the docs in
// query engine order together with the reason.
func (e *Executor) rank(ctx context.Context, plan *parser.QueryPlan, r *resolved, docs []*model.Document, postings map[uint32]*roaring.Bitmap) ([]Hit, error) {
	hits := make([]Hit, 0, len(docs))
	if len(docs) == 0 {
		return hits, nil
	}
	scored, err := e.score(ctx, r, docs, postings)
	if err != nil {
		logger.FromContext(ctx).Warn("ranking skipped, keeping query order", "component", "query-executor", "error", err)
		for _, d := range docs {
			hits = append(hits, Hit{DocID: d.ID, Path: d.Path, ModifiedAt: d.ModifiedAt})
		}
		return hits, err
	}
	for _, s := range scored {
		hits = append(hits, Hit{
			DocID:      s.Document.ID,
			Path:       s.Document.Path,
			Score:      s.Score,
			ModifiedAt: s.Document.ModifiedAt,
		})
	}
	return hits, nil
}

func (e *Executor) score(ctx context.Context, r *resolved, docs []*model.Document, postings map[uint32]*roaring.Bitmap) ([]ranker.Scored, error) {
	if e.c.Stats == nil {
		return nil, apperrors.New(apperrors.ErrNotInitialized, "executor.score", "no corpus statistics")
	}
	stats, err := e.c.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return e.c.Ranker.Rank(r.query, docs, ranker.Postings(postings), stats)
}

// record bumps the frequent-query cache and token search counts. Failures
// are logged; they never fail the search.
func (e *Executor) record(ctx context.Context, plan *parser.QueryPlan, r *resolved) {
	if e.c.Tracker == nil {
		return
	}
	if _, err := e.c.Tracker.Record(ctx, plan.RawQuery); err != nil {
		e.logger.Warn("recording query failed", "query", plan.RawQuery, "error", err)
	}
	if err := e.c.Tracker.IncrementTokenSearchCounts(ctx, r.used); err != nil {
		e.logger.Warn("incrementing token search counts failed", "query", plan.RawQuery, "error", err)
	}
}

func (e *Executor) observe(result string, start time.Time, hits int) {
	if e.c.Metrics == nil {
		return
	}
	e.c.Metrics.QueriesTotal.WithLabelValues(result).Inc()
	e.c.Metrics.QueryLatency.Observe(time.Since(start).Seconds())
	e.c.Metrics.QueryResults.Observe(float64(hits))
}

// termStats maps each query word to the number of documents holding one of
// its tokens.
func termStats(terms map[string][]*model.Token, postings map[uint32]*roaring.Bitmap) map[string]int {
	out := make(map[string]int, len(terms))
	for word, toks := range terms {
		sets := make([]*roaring.Bitmap, 0, len(toks))
		for _, tok := range toks {
			if docs, ok := postings[tok.ID]; ok {
				sets = append(sets, docs)
			}
		}
		out[word] = int(roaring.FastOr(sets...).GetCardinality())
	}
	return out
}

func ids(toks []*model.Token) []uint32 {
	out := make([]uint32, len(toks))
	for i, tok := range toks {
		out[i] = tok.ID
	}
	return out
}
