package executor

import (
	"context"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/textindex/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/textindex/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/textindex/internal/indexer/processor"
	"github.com/Adithya-Monish-Kumar-K/textindex/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/textindex/internal/lexicon"
	"github.com/Adithya-Monish-Kumar-K/textindex/internal/searcher/frequency"
	"github.com/Adithya-Monish-Kumar-K/textindex/internal/searcher/fuzzy"
	"github.com/Adithya-Monish-Kumar-K/textindex/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/textindex/internal/searcher/query"
	"github.com/Adithya-Monish-Kumar-K/textindex/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/textindex/internal/store/memory"
	"github.com/Adithya-Monish-Kumar-K/textindex/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/textindex/pkg/resilience"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

var now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	store    *memory.Store
	corpus   *corpus.Corpus
	parser   *parser.Parser
	executor *Executor
	metrics  *metrics.Metrics
	paths    map[string]uint32
}

func newFixture(t *testing.T, docs map[string]string, opened ...string) *fixture {
	t.Helper()
	ctx := context.Background()
	s := memory.New()
	m := metrics.NewUnregistered()
	lex := lexicon.New(s)
	ix := index.New(s, resilience.NoRetry(), m)
	tk := tokenizer.New(tokenizer.Options{})
	c := corpus.New(s, processor.New(lex, ix, tk, index.AllStats()), resilience.NoRetry(), m)

	f := &fixture{store: s, corpus: c, parser: parser.New(tk), metrics: m, paths: make(map[string]uint32)}
	names := make([]string, 0, len(docs))
	for p := range docs {
		names = append(names, p)
	}
	slices.Sort(names)
	for i, p := range names {
		res := c.Add(ctx, corpus.AddRequest{
			Checksum:   int64(i + 1),
			Path:       p,
			RawData:    []byte(docs[p]),
			ModifiedAt: now.Add(-time.Duration(len(names)-i) * time.Hour),
		})
		if !res.OK() {
			t.Fatalf("adding %s: %v", p, res.Err)
		}
		f.paths[p] = res.Document.ID
		if slices.Contains(opened, p) {
			c.RecordOpen(ctx, res.Document)
		}
	}

	stats := func(ctx context.Context) (ranker.CorpusStats, error) {
		st, err := c.Statistics(ctx, now)
		if err != nil {
			return ranker.CorpusStats{}, err
		}
		return ranker.CorpusStats{Documents: st.Documents, MaxOpenCount: st.MaxOpenCount, MaxAge: st.MaxAge, Now: now}, nil
	}
	f.executor = New(Components{
		Lexicon: lex,
		Index:   ix,
		Query:   query.New(ix, c),
		Ranker:  ranker.New(nil),
		Fuzzy:   fuzzy.New(lex, fuzzy.DefaultOptions()),
		Tracker: frequency.New(s.FrequentQueries(), lex, m),
		Stats:   stats,
		Metrics: m,
	})
	return f
}

func (f *fixture) search(t *testing.T, q string, limit int) *SearchResult {
	t.Helper()
	res, err := f.executor.Execute(context.Background(), f.parser.Parse(q), limit)
	if err != nil {
		t.Fatalf("Execute(%q): %v", q, err)
	}
	return res
}

func hitPaths(res *SearchResult) []string {
	out := make([]string, len(res.Results))
	for i, h := range res.Results {
		out[i] = h.Path
	}
	return out
}

var library = map[string]string{
	"a.txt": "alpha beta gamma",
	"b.txt": "alpha delta",
	"c.txt": "beta gamma",
	"d.txt": "colour theory",
}

func TestRequiredWordsRankFullMatchFirst(t *testing.T) {
	f := newFixture(t, library, "a.txt")
	res := f.search(t, "+alpha +beta", 0)
	if !res.Ranked {
		t.Fatal("expected ranked results")
	}
	if !slices.Equal(hitPaths(res), []string{"a.txt"}) {
		t.Errorf("hits = %v", hitPaths(res))
	}

	res = f.search(t, "alpha beta", 0)
	if len(res.Results) != 3 || res.Results[0].Path != "a.txt" {
		t.Errorf("optional hits = %v", hitPaths(res))
	}
	for i := 1; i < len(res.Results); i++ {
		if res.Results[i].Score > res.Results[i-1].Score {
			t.Errorf("results not sorted by score: %+v", res.Results)
		}
	}
	if res.TermStats["alpha"] != 2 || res.TermStats["beta"] != 2 {
		t.Errorf("term stats = %v", res.TermStats)
	}
}

func TestExclusions(t *testing.T) {
	f := newFixture(t, library, "a.txt")
	res := f.search(t, "gamma -alpha", 0)
	if !slices.Equal(hitPaths(res), []string{"c.txt"}) {
		t.Errorf("hits = %v", hitPaths(res))
	}

	res = f.search(t, "NOT alpha", 0)
	if !slices.Equal(hitPaths(res), []string{"d.txt", "c.txt"}) {
		t.Errorf("exclusion-only hits = %v", hitPaths(res))
	}
}

func TestGroupsAndApproximate(t *testing.T) {
	f := newFixture(t, library, "a.txt")
	res := f.search(t, "delta|gamma +alpha", 0)
	if got := hitPaths(res); len(got) != 2 || !slices.Contains(got, "a.txt") || !slices.Contains(got, "b.txt") {
		t.Errorf("grouped hits = %v", got)
	}

	res = f.search(t, "~color", 0)
	if !slices.Equal(hitPaths(res), []string{"d.txt"}) {
		t.Errorf("approximate hits = %v", hitPaths(res))
	}
}

func TestLimitKeepsTotal(t *testing.T) {
	f := newFixture(t, library, "a.txt")
	res := f.search(t, "alpha beta", 1)
	if len(res.Results) != 1 || res.TotalHits != 3 {
		t.Errorf("limit 1: %d results of %d", len(res.Results), res.TotalHits)
	}
}

func TestFallsBackToQueryOrderWithoutStatistics(t *testing.T) {
	f := newFixture(t, library)
	res := f.search(t, "alpha", 0)
	if res.Ranked {
		t.Fatal("ranking should be skipped when no document was opened")
	}
	if !strings.Contains(res.UnrankedReason, "max open count is zero") {
		t.Errorf("UnrankedReason = %q", res.UnrankedReason)
	}
	if !slices.Equal(hitPaths(res), []string{"b.txt", "a.txt"}) {
		t.Errorf("hits = %v, want newest first", hitPaths(res))
	}
	for _, h := range res.Results {
		if h.Score != 0 {
			t.Errorf("unranked hit has score %v", h.Score)
		}
	}
	if got := testutil.ToFloat64(f.metrics.QueriesTotal.WithLabelValues("unranked")); got != 1 {
		t.Errorf("unranked metric = %v", got)
	}
}

func TestSearchRecordsFrequency(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, library, "a.txt")
	f.search(t, "Alpha  beta", 0)
	f.search(t, "alpha beta", 0)

	fq, err := f.store.FrequentQueries().Get(ctx, "alpha beta")
	if err != nil || fq == nil || fq.SearchCount != 2 {
		t.Fatalf("frequent query = %+v, %v", fq, err)
	}
	tok, _ := f.store.Tokens().FindByText(ctx, "alpha")
	if tok.SearchCount != 2 {
		t.Errorf("alpha SearchCount = %d, want 2", tok.SearchCount)
	}
}

func TestEmptyQuery(t *testing.T) {
	f := newFixture(t, library)
	res := f.search(t, "the of", 0)
	if len(res.Results) != 0 || res.TotalHits != 0 {
		t.Errorf("empty query returned %v", hitPaths(res))
	}
}
