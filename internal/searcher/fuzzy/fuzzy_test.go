package fuzzy

import (
	"context"
	"slices"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/textindex/internal/lexicon"
	"github.com/Adithya-Monish-Kumar-K/textindex/internal/model"
	"github.com/Adithya-Monish-Kumar-K/textindex/internal/store/memory"
)

func newMatcher(t *testing.T, words ...string) *Matcher {
	t.Helper()
	lex := lexicon.New(memory.New())
	for _, w := range words {
		if _, err := lex.GetOrCreate(context.Background(), w); err != nil {
			t.Fatal(err)
		}
	}
	return New(lex, DefaultOptions())
}

func texts(toks []*model.Token) []string {
	out := make([]string, len(toks))
	for i, tok := range toks {
		out[i] = tok.Text
	}
	return out
}

func TestDistance(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"color", "color", 0},
		{"color", "colour", 1},
		{"kitten", "sitting", 3},
		{"", "abc", 3},
		{"flaw", "lawn", 2},
		{"naïve", "naive", 1},
	}
	for _, tt := range tests {
		if got := Distance(tt.a, tt.b); got != tt.want {
			t.Errorf("Distance(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
		if got := Distance(tt.b, tt.a); got != tt.want {
			t.Errorf("Distance(%q, %q) = %d, want %d", tt.b, tt.a, got, tt.want)
		}
	}
}

func TestFindApproximateBound(t *testing.T) {
	ctx := context.Background()
	m := newMatcher(t, "color", "colour", "collar", "dolor")

	got, err := m.Collect(ctx, "color", WithMaxDistance(1))
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(texts(got), []string{"color", "colour", "dolor"}) {
		t.Errorf("distance 1 = %v", texts(got))
	}

	got, _ = m.Collect(ctx, "color", WithMaxDistance(0))
	if !slices.Equal(texts(got), []string{"color"}) {
		t.Errorf("distance 0 = %v", texts(got))
	}
}

func TestFindApproximateCase(t *testing.T) {
	ctx := context.Background()
	m := newMatcher(t, "Color")

	got, _ := m.Collect(ctx, "cOLOR", WithMaxDistance(0))
	if len(got) != 1 {
		t.Errorf("case-insensitive lookup found %v", texts(got))
	}
	got, _ = m.Collect(ctx, "cOLOR", WithMaxDistance(0), CaseSensitive())
	if len(got) != 0 {
		t.Errorf("case-sensitive lookup found %v", texts(got))
	}
}

func TestFindApproximateIsRestartableAndLazy(t *testing.T) {
	ctx := context.Background()
	m := newMatcher(t, "aa", "ab", "ac", "ad")
	seq := m.FindApproximate(ctx, "aa", WithMaxDistance(1))

	for range 2 {
		n := 0
		for _, err := range seq {
			if err != nil {
				t.Fatal(err)
			}
			n++
		}
		if n != 4 {
			t.Errorf("iteration yielded %d tokens, want 4", n)
		}
	}

	n := 0
	for range seq {
		n++
		if n == 2 {
			break
		}
	}
	if n != 2 {
		t.Errorf("early break yielded %d", n)
	}
}
