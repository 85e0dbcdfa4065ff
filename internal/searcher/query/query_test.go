package query

import (
	"context"
	"slices"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/textindex/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/textindex/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/textindex/internal/indexer/processor"
	"github.com/Adithya-Monish-Kumar-K/textindex/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/textindex/internal/lexicon"
	"github.com/Adithya-Monish-Kumar-K/textindex/internal/model"
	"github.com/Adithya-Monish-Kumar-K/textindex/internal/store/memory"
	"github.com/Adithya-Monish-Kumar-K/textindex/pkg/resilience"
	"github.com/RoaringBitmap/roaring/v2"
)

var base = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

type fixture struct {
	engine *Engine
	lex    *lexicon.Lexicon
	corpus *corpus.Corpus
	docs   map[string]uint32
}

// newFixture indexes one document per entry of contents, keyed by path. The
// n-th document is modified n days after base.
func newFixture(t *testing.T, contents [][2]string) *fixture {
	t.Helper()
	ctx := context.Background()
	s := memory.New()
	lex := lexicon.New(s)
	ix := index.New(s, resilience.NoRetry(), nil)
	proc := processor.New(lex, ix, tokenizer.New(tokenizer.Options{}), index.AllStats())
	c := corpus.New(s, proc, resilience.NoRetry(), nil)

	f := &fixture{engine: New(ix, c), lex: lex, corpus: c, docs: make(map[string]uint32)}
	for i, entry := range contents {
		res := c.Add(ctx, corpus.AddRequest{
			Checksum:   int64(i + 1),
			Path:       entry[0],
			RawData:    []byte(entry[1]),
			ModifiedAt: base.Add(time.Duration(i) * 24 * time.Hour),
		})
		if !res.OK() {
			t.Fatalf("adding %s: %v", entry[0], res.Err)
		}
		f.docs[entry[0]] = res.Document.ID
	}
	return f
}

func (f *fixture) tokens(t *testing.T, words ...string) []*model.Token {
	t.Helper()
	var out []*model.Token
	for _, w := range words {
		found, err := f.lex.FindExact(context.Background(), w)
		if err != nil {
			t.Fatal(err)
		}
		out = append(out, found...)
	}
	return out
}

func (f *fixture) set(paths ...string) *roaring.Bitmap {
	bm := roaring.New()
	for _, p := range paths {
		bm.Add(f.docs[p])
	}
	return bm
}

func paths(docs []*model.Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.Path
	}
	return out
}

func sample(t *testing.T) *fixture {
	return newFixture(t, [][2]string{
		{"a", "alpha beta gamma"},
		{"b", "alpha delta"},
		{"c", "beta gamma"},
		{"d", "epsilon"},
		{"e", "alpha beta delta"},
	})
}

func TestFindAnyOrdering(t *testing.T) {
	f := sample(t)
	got, err := f.engine.FindAny(context.Background(), f.tokens(t, "alpha", "beta"), nil)
	if err != nil {
		t.Fatal(err)
	}
	// a and e match two tokens, e is newer; b and c match one, c is newer.
	want := []string{"e", "a", "c", "b"}
	if !slices.Equal(paths(got), want) {
		t.Errorf("FindAny = %v, want %v", paths(got), want)
	}
}

func TestFindAnyDateTiebreak(t *testing.T) {
	f := newFixture(t, [][2]string{
		{"older", "shared"},
		{"newer", "shared"},
	})
	got, err := f.engine.FindAny(context.Background(), f.tokens(t, "shared"), nil)
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(paths(got), []string{"newer", "older"}) {
		t.Errorf("FindAny = %v, want newer first", paths(got))
	}
}

func TestRatingAndOpenCountBreakDateTies(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	var docs []*model.Document
	for i, p := range []string{"low", "high", "opened"} {
		res := f.corpus.Add(ctx, corpus.AddRequest{Checksum: int64(i + 1), Path: p, RawData: []byte("same"), ModifiedAt: base})
		docs = append(docs, res.Document)
	}
	f.corpus.Rate(ctx, docs[1], 100)
	f.corpus.RecordOpen(ctx, docs[2])

	got, err := f.engine.FindAllExact(ctx, f.tokens(t, "same"), nil)
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(paths(got), []string{"high", "opened", "low"}) {
		t.Errorf("FindAllExact = %v", paths(got))
	}
}

func TestFindAllExact(t *testing.T) {
	f := sample(t)
	got, err := f.engine.FindAllExact(context.Background(), f.tokens(t, "alpha", "beta"), nil)
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(paths(got), []string{"e", "a"}) {
		t.Errorf("FindAllExact = %v", paths(got))
	}
}

func TestFindOneOfEach(t *testing.T) {
	f := sample(t)
	groups := [][]*model.Token{
		f.tokens(t, "alpha", "epsilon"),
		f.tokens(t, "gamma", "delta"),
	}
	got, err := f.engine.FindOneOfEach(context.Background(), groups, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(paths(got), []string{"e", "b", "a"}) {
		t.Errorf("FindOneOfEach = %v", paths(got))
	}
}

func TestFindNot(t *testing.T) {
	f := sample(t)
	got, err := f.engine.FindNot(context.Background(), f.tokens(t, "alpha"), nil)
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(paths(got), []string{"d", "c"}) {
		t.Errorf("FindNot = %v", paths(got))
	}
}

func TestEmptyTokenLists(t *testing.T) {
	ctx := context.Background()
	f := sample(t)
	within := f.set("a", "b")

	if s, _ := f.engine.AnySet(ctx, nil, within); !s.IsEmpty() {
		t.Error("OR of no tokens should be empty")
	}
	if s, _ := f.engine.AllSet(ctx, nil, within); !s.IsEmpty() {
		t.Error("AND of no tokens should be empty")
	}
	if s, _ := f.engine.NotSet(ctx, nil, within); !s.Equals(within) {
		t.Errorf("NOT of no tokens = %v, want within", s.ToArray())
	}
	if s, _ := f.engine.OneOfEachSet(ctx, nil, within); !s.IsEmpty() {
		t.Error("no groups should be empty")
	}
}

func TestSetLaws(t *testing.T) {
	ctx := context.Background()
	f := sample(t)
	vocabulary := []string{"alpha", "beta", "gamma", "delta", "epsilon", "missing"}
	subsets := []*roaring.Bitmap{
		nil,
		f.set(),
		f.set("a"),
		f.set("a", "c", "d"),
		f.set("b", "d", "e"),
		f.set("a", "b", "c", "d", "e"),
	}
	all, _ := f.corpus.IDs(ctx)

	for mask := 0; mask < 1<<len(vocabulary); mask++ {
		var words []string
		for i, w := range vocabulary {
			if mask&(1<<i) != 0 {
				words = append(words, w)
			}
		}
		toks := f.tokens(t, words...)
		for _, within := range subsets {
			scope := within
			if scope == nil {
				scope = all
			}
			anySet, err := f.engine.AnySet(ctx, toks, within)
			if err != nil {
				t.Fatal(err)
			}
			notSet, _ := f.engine.NotSet(ctx, toks, within)
			if want := roaring.AndNot(scope, anySet); !notSet.Equals(want) {
				t.Fatalf("NOT %v within %v = %v, want %v", words, scope.ToArray(), notSet.ToArray(), want.ToArray())
			}
			allSet, _ := f.engine.AllSet(ctx, toks, within)
			if !allSet.IsEmpty() && !roaring.AndNot(allSet, anySet).IsEmpty() {
				t.Fatalf("AND %v is not a subset of OR", words)
			}
			if len(toks) >= 2 {
				groups := [][]*model.Token{toks[:1], toks[1:]}
				grouped, _ := f.engine.OneOfEachSet(ctx, groups, within)
				for _, g := range groups {
					orSet, _ := f.engine.AnySet(ctx, g, within)
					if !roaring.AndNot(grouped, orSet).IsEmpty() {
						t.Fatalf("groups %v not a subset of a group's OR", words)
					}
				}
			}
		}
	}
}
