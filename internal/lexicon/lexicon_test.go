package lexicon

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/textindex/internal/model"
	"github.com/Adithya-Monish-Kumar-K/textindex/internal/store"
	"github.com/Adithya-Monish-Kumar-K/textindex/internal/store/memory"
	apperrors "github.com/Adithya-Monish-Kumar-K/textindex/pkg/errors"
)

func TestGetOrCreateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	lex := New(memory.New())

	a, err := lex.GetOrCreate(ctx, "alpha")
	if err != nil {
		t.Fatal(err)
	}
	b, err := lex.GetOrCreate(ctx, "alpha")
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Error("GetOrCreate returned two instances for the same text")
	}

	if _, err := lex.GetOrCreate(ctx, ""); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Errorf("empty text: got %v, want ErrInvalidInput", err)
	}
}

func TestGetOrCreateConcurrent(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	lex := New(s)

	var wg sync.WaitGroup
	results := make([]*model.Token, 32)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tok, err := lex.GetOrCreate(ctx, "shared")
			if err != nil {
				t.Error(err)
				return
			}
			results[i] = tok
		}(i)
	}
	wg.Wait()

	for _, tok := range results {
		if tok != results[0] {
			t.Fatal("concurrent GetOrCreate produced distinct tokens")
		}
	}
	seen := 0
	s.Tokens().Scan(ctx, func(*model.Token) bool { seen++; return true })
	if seen != 1 {
		t.Errorf("store holds %d tokens, want 1", seen)
	}
}

func TestFindVariants(t *testing.T) {
	ctx := context.Background()
	lex := New(memory.New())
	for _, w := range []string{"Color", "color", "colour", "discolored", "Straße"} {
		if _, err := lex.GetOrCreate(ctx, w); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		name string
		find func(context.Context, string) ([]*model.Token, error)
		in   string
		want int
	}{
		{"exact hit", lex.FindExact, "color", 1},
		{"exact miss", lex.FindExact, "COLOR", 0},
		{"fold", lex.FindExactFold, "COLOR", 2},
		{"fold non-ascii", lex.FindExactFold, "STRAßE", 1},
		{"substring", lex.FindSubstring, "olo", 4},
		{"substring empty", lex.FindSubstring, "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.find(ctx, tt.in)
			if err != nil {
				t.Fatal(err)
			}
			if got == nil {
				t.Fatal("not found must be an empty slice, not nil")
			}
			if len(got) != tt.want {
				t.Errorf("got %d tokens, want %d", len(got), tt.want)
			}
		})
	}
}

// scanCountingStore counts full token scans.
type scanCountingStore struct {
	store.Store
	scans int
}

func (s *scanCountingStore) Tokens() store.TokenRepository {
	return scanCountingTokens{s.Store.Tokens(), s}
}

type scanCountingTokens struct {
	store.TokenRepository
	owner *scanCountingStore
}

func (r scanCountingTokens) Scan(ctx context.Context, fn func(*model.Token) bool) error {
	r.owner.scans++
	return r.TokenRepository.Scan(ctx, fn)
}

func TestFindExactFoldUsesIndex(t *testing.T) {
	ctx := context.Background()
	s := &scanCountingStore{Store: memory.New()}
	lex := New(s)
	for _, w := range []string{"Alpha", "ALPHA", "beta"} {
		if _, err := lex.GetOrCreate(ctx, w); err != nil {
			t.Fatal(err)
		}
	}

	got, err := lex.FindExactFold(ctx, "alpha")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Text != "Alpha" || got[1].Text != "ALPHA" {
		t.Errorf("FindExactFold(alpha) = %v", got)
	}
	again, _ := lex.GetOrCreate(ctx, "Alpha")
	if again != got[0] {
		t.Error("folded lookup returned a token outside the identity map")
	}
	if s.scans != 0 {
		t.Errorf("FindExactFold scanned the lexicon %d times", s.scans)
	}
}

func TestStatisticsMemoizedUntilCleared(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	lex := New(s)

	tok, _ := lex.GetOrCreate(ctx, "beta")
	now := time.Now()
	d1 := model.NewDocument(1, "/1", now)
	d2 := model.NewDocument(2, "/2", now)
	d3 := model.NewDocument(3, "/3", now)
	for _, d := range []*model.Document{d1, d2, d3} {
		if err := s.Documents().Insert(ctx, d); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.Occurrences().Insert(ctx, &model.Occurrence{TokenID: tok.ID, DocumentID: d1.ID, Count: 4}); err != nil {
		t.Fatal(err)
	}

	total, _ := lex.TotalOccurrences(ctx, tok)
	df, _ := lex.DocumentFrequency(ctx, tok)
	idf, _ := lex.InverseDocumentFrequency(ctx, tok)
	if total != 4 || df != 1 || math.Abs(idf-math.Log(3)) > 1e-12 {
		t.Fatalf("stats = %d, %d, %v", total, df, idf)
	}

	if err := s.Occurrences().Insert(ctx, &model.Occurrence{TokenID: tok.ID, DocumentID: d2.ID, Count: 2}); err != nil {
		t.Fatal(err)
	}
	if total, _ := lex.TotalOccurrences(ctx, tok); total != 4 {
		t.Errorf("stale total should stay cached until cleared, got %d", total)
	}

	h := lex.Heuristics(tok)
	lex.ClearStatisticsByID(tok.ID)
	if _, ok := tok.Heuristics.Peek(); !ok {
		t.Error("heuristics must survive ClearStatistics")
	}
	if lex.Heuristics(tok) != h {
		t.Error("heuristics changed")
	}

	total, _ = lex.TotalOccurrences(ctx, tok)
	df, _ = lex.DocumentFrequency(ctx, tok)
	idf, _ = lex.InverseDocumentFrequency(ctx, tok)
	if total != 6 || df != 2 || math.Abs(idf-math.Log(1.5)) > 1e-12 {
		t.Errorf("refreshed stats = %d, %d, %v", total, df, idf)
	}
}

func TestInverseDocumentFrequencyUnusedToken(t *testing.T) {
	ctx := context.Background()
	lex := New(memory.New())
	tok, _ := lex.GetOrCreate(ctx, "ghost")
	idf, err := lex.InverseDocumentFrequency(ctx, tok)
	if err != nil || idf != 0 {
		t.Errorf("idf = %v, %v; want 0", idf, err)
	}
}

func TestIncrementSearchCounts(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	lex := New(s)
	a, _ := lex.GetOrCreate(ctx, "a1")
	b, _ := lex.GetOrCreate(ctx, "b1")

	if err := lex.IncrementSearchCounts(ctx, []*model.Token{a, b, a}); err != nil {
		t.Fatal(err)
	}
	if a.SearchCount != 1 || b.SearchCount != 1 {
		t.Errorf("in-memory counts = %d, %d; want 1, 1", a.SearchCount, b.SearchCount)
	}
	stored, _ := s.Tokens().Get(ctx, a.ID)
	if stored.SearchCount != 1 {
		t.Errorf("stored count = %d, want 1", stored.SearchCount)
	}
}

func TestComputeHeuristics(t *testing.T) {
	tests := []struct {
		text        string
		casingAbove float64
		garbageMax  float64
	}{
		{"hello", 0.99, 0.01},
		{"Hello", 0.99, 0.01},
		{"NASA", 0.99, 0.01},
	}
	for _, tt := range tests {
		h := ComputeHeuristics(tt.text)
		if h.Casing < tt.casingAbove {
			t.Errorf("%q casing = %v", tt.text, h.Casing)
		}
		if h.Garbage > tt.garbageMax {
			t.Errorf("%q garbage = %v", tt.text, h.Garbage)
		}
	}

	word := ComputeHeuristics("window")
	noise := ComputeHeuristics("x#$%zzzz9q")
	if noise.Garbage <= word.Garbage {
		t.Errorf("noise garbage %v should exceed word garbage %v", noise.Garbage, word.Garbage)
	}
	if noise.Phonetic >= word.Phonetic {
		t.Errorf("noise phonetic %v should be below word phonetic %v", noise.Phonetic, word.Phonetic)
	}
	if mixed := ComputeHeuristics("hElLo"); mixed.Casing >= 0.5 {
		t.Errorf("alternating case scored %v", mixed.Casing)
	}
}
