package frequency

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/textindex/internal/lexicon"
	"github.com/Adithya-Monish-Kumar-K/textindex/internal/model"
	"github.com/Adithya-Monish-Kumar-K/textindex/internal/store/memory"
	apperrors "github.com/Adithya-Monish-Kumar-K/textindex/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/textindex/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNormalize(t *testing.T) {
	tests := map[string]string{
		"Hello World":       "hello world",
		"  spaced \t out  ": "spaced out",
		"ÜBER":              "über",
		"":                  "",
	}
	for in, want := range tests {
		if got := Normalize(in); got != want {
			t.Errorf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRecord(t *testing.T) {
	ctx := context.Background()
	tr := New(memory.New().FrequentQueries(), nil, nil)

	for _, q := range []string{"Go Lang", "go   lang", "rust"} {
		if _, err := tr.Record(ctx, q); err != nil {
			t.Fatal(err)
		}
	}
	top, err := tr.Top(ctx, -1)
	if err != nil {
		t.Fatal(err)
	}
	want := []model.FrequentQuery{{Query: "go lang", SearchCount: 2}, {Query: "rust", SearchCount: 1}}
	if fmt.Sprint(top) != fmt.Sprint(want) {
		t.Errorf("Top = %v, want %v", top, want)
	}
	if _, err := tr.Record(ctx, "   "); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Errorf("blank query: got %v", err)
	}
}

func TestPruneToCeiling(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	m := metrics.NewUnregistered()
	tr := New(s.FrequentQueries(), nil, m)

	// Every query is recorded twice except "q-0000", the single lowest entry.
	for i := range 1001 {
		q := fmt.Sprintf("q-%04d", i)
		tr.Record(ctx, q)
		if i > 0 {
			tr.Record(ctx, q)
		}
	}

	removed, err := tr.Prune(ctx, DefaultCeiling)
	if err != nil {
		t.Fatal(err)
	}
	if removed != 1 {
		t.Errorf("removed %d, want 1", removed)
	}
	if n, _ := s.FrequentQueries().Count(ctx); n != DefaultCeiling {
		t.Errorf("%d entries remain, want %d", n, DefaultCeiling)
	}
	if fq, _ := s.FrequentQueries().Get(ctx, "q-0000"); fq != nil {
		t.Error("lowest-count entry survived pruning")
	}
	if got := testutil.ToFloat64(m.FrequentQueriesPruned); got != 1 {
		t.Errorf("pruned metric = %v, want 1", got)
	}

	if removed, _ := tr.Prune(ctx, DefaultCeiling); removed != 0 {
		t.Errorf("second prune removed %d", removed)
	}
}

func TestIncrementTokenSearchCounts(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	lex := lexicon.New(s)
	tok, _ := lex.GetOrCreate(ctx, "alpha")
	tr := New(s.FrequentQueries(), lex, nil)

	if err := tr.IncrementTokenSearchCounts(ctx, []*model.Token{tok, tok}); err != nil {
		t.Fatal(err)
	}
	stored, _ := s.Tokens().Get(ctx, tok.ID)
	if stored.SearchCount != 1 {
		t.Errorf("SearchCount = %d, want 1", stored.SearchCount)
	}
}
