package ranker

import (
	"log/slog"
	"slices"
	"time"

	"github.com/Adithya-Monish-Kumar-K/textindex/internal/model"
	"github.com/Adithya-Monish-Kumar-K/textindex/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/textindex/pkg/errors"
	"github.com/RoaringBitmap/roaring/v2"
)

// Weights of the default ranking function. By convention they sum to 1.
type Weights struct {
	Exact  float64
	Approx float64
	Eval   float64
	Open   float64
	Age    float64
}

func WeightsFromConfig(c config.RankingConfig) Weights {
	return Weights{
		Exact:  c.Exact,
		Approx: c.Approx,
		Eval:   c.Eval,
		Open:   c.Open,
		Age:    c.Age,
	}
}

func DefaultWeights() Weights {
	return WeightsFromConfig(config.DefaultRanking())
}

func (w Weights) Sum() float64 {
	return w.Exact + w.Approx + w.Eval + w.Open + w.Age
}

// Term is one query word resolved to token IDs. Exact holds the tokens
// spelling the word; Approximate holds near spellings found by edit distance.
type Term struct {
	Word        string
	Exact       []uint32
	Approximate []uint32
}

// Query is the ranking view of a parsed query.
type Query struct {
	Required []Term
	Optional []Term
}

// Postings maps token IDs to the documents containing them.
type Postings map[uint32]*roaring.Bitmap

func (p Postings) holdsAny(docID uint32, ids []uint32) bool {
	for _, id := range ids {
		if docs, ok := p[id]; ok && docs.Contains(docID) {
			return true
		}
	}
	return false
}

// CorpusStats are the corpus-wide maxima scores are normalized by.
type CorpusStats struct {
	Documents    int
	MaxOpenCount int
	MaxAge       time.Duration
	Now          time.Time
}

// Validate reports ErrEmptyCorpus or ErrDegenerateStatistics when scores
// would divide by zero. A corpus in which no document has been opened yet,
// or whose documents all share one modification time, is therefore not
// ranked: searches return hits in query engine order with zero scores until
// a document is opened.
func (s CorpusStats) Validate() error {
	if s.Documents == 0 {
		return apperrors.New(apperrors.ErrEmptyCorpus, "ranker.Rank", "no documents to normalize by")
	}
	if s.MaxOpenCount <= 0 {
		return apperrors.New(apperrors.ErrDegenerateStatistics, "ranker.Rank", "max open count is zero")
	}
	if s.MaxAge <= 0 {
		return apperrors.New(apperrors.ErrDegenerateStatistics, "ranker.Rank", "max age is zero")
	}
	return nil
}

// Strategy scores one document. Stats have been validated.
type Strategy interface {
	Score(q Query, doc *model.Document, postings Postings, stats CorpusStats) float64
}

// WeightedSum is the default Strategy:
//
//	score = Exact·exactFraction + Approx·approxFraction + Eval·rating/100
//	      + Open·openCount/maxOpenCount + Age·(1 − age/maxAge)
type WeightedSum struct {
	Weights Weights
}

func (w WeightedSum) Score(q Query, doc *model.Document, postings Postings, stats CorpusStats) float64 {
	age := min(max(doc.Age(stats.Now), 0), stats.MaxAge)
	return w.Weights.Exact*ExactFraction(q, doc.ID, postings) +
		w.Weights.Approx*ApproxFraction(q, doc.ID, postings) +
		w.Weights.Eval*(doc.AverageRating()/model.MaxRating) +
		w.Weights.Open*(float64(doc.OpenCount)/float64(stats.MaxOpenCount)) +
		w.Weights.Age*(1-float64(age)/float64(stats.MaxAge))
}

// ExactFraction is the share of required and optional terms the document
// holds exactly. It is 0 for a query without terms.
func ExactFraction(q Query, docID uint32, postings Postings) float64 {
	total := len(q.Required) + len(q.Optional)
	if total == 0 {
		return 0
	}
	hits := 0
	for _, t := range q.Required {
		if postings.holdsAny(docID, t.Exact) {
			hits++
		}
	}
	for _, t := range q.Optional {
		if postings.holdsAny(docID, t.Exact) {
			hits++
		}
	}
	return float64(hits) / float64(total)
}

// ApproxFraction is the share of optional terms the document holds exactly
// or through an approximate spelling. It is 0 without optional terms.
func ApproxFraction(q Query, docID uint32, postings Postings) float64 {
	if len(q.Optional) == 0 {
		return 0
	}
	hits := 0
	for _, t := range q.Optional {
		if postings.holdsAny(docID, t.Exact) || postings.holdsAny(docID, t.Approximate) {
			hits++
		}
	}
	return float64(hits) / float64(len(q.Optional))
}

// Scored is a document with its score.
type Scored struct {
	Document *model.Document
	Score    float64
}

// Ranker orders candidate documents with a Strategy.
type Ranker struct {
	strategy Strategy
	logger   *slog.Logger
}

// New returns a ranker using strategy, or WeightedSum with the default
// weights when strategy is nil.
func New(strategy Strategy) *Ranker {
	if strategy == nil {
		strategy = WeightedSum{Weights: DefaultWeights()}
	}
	return &Ranker{
		strategy: strategy,
		logger:   slog.Default().With("component", "ranker"),
	}
}

// Rank scores docs and sorts them by descending score. Equal scores keep the
// input order.
func (r *Ranker) Rank(q Query, docs []*model.Document, postings Postings, stats CorpusStats) ([]Scored, error) {
	if err := stats.Validate(); err != nil {
		return nil, err
	}
	out := make([]Scored, len(docs))
	for i, doc := range docs {
		out[i] = Scored{Document: doc, Score: r.strategy.Score(q, doc, postings, stats)}
	}
	slices.SortStableFunc(out, func(a, b Scored) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		default:
			return 0
		}
	})
	r.logger.Debug("ranked", "candidates", len(docs))
	return out, nil
}
