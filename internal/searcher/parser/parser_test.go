package parser

import (
	"reflect"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/textindex/internal/indexer/tokenizer"
)

func TestParse(t *testing.T) {
	p := New(tokenizer.New(tokenizer.Options{}))
	tests := []struct {
		name  string
		query string
		want  QueryPlan
	}{
		{
			name:  "plain words are optional",
			query: "distributed search",
			want:  QueryPlan{Optional: []string{"distributed", "search"}},
		},
		{
			name:  "prefixes",
			query: "+engine -legacy ~serach index",
			want: QueryPlan{
				Required:    []string{"engine"},
				Optional:    []string{"index"},
				Excluded:    []string{"legacy"},
				Approximate: []string{"serach"},
			},
		},
		{
			name:  "NOT keyword",
			query: "search NOT spam",
			want:  QueryPlan{Optional: []string{"search"}, Excluded: []string{"spam"}},
		},
		{
			name:  "AND switches mode until OR",
			query: "alpha AND beta gamma OR delta",
			want: QueryPlan{
				Required: []string{"beta", "gamma"},
				Optional: []string{"alpha", "delta"},
			},
		},
		{
			name:  "groups",
			query: "color|colour shade|hue|tint",
			want:  QueryPlan{Groups: [][]string{{"color", "colour"}, {"shade", "hue", "tint"}}},
		},
		{
			name:  "stop words and duplicates dropped",
			query: "the cat the Cat cat",
			want:  QueryPlan{Optional: []string{"cat", "Cat"}},
		},
		{
			name:  "required wins over optional",
			query: "beta +beta",
			want:  QueryPlan{Required: []string{"beta"}},
		},
		{
			name:  "punctuation",
			query: "+full-text",
			want:  QueryPlan{Required: []string{"full", "text"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := p.Parse(tt.query)
			got.RawQuery = ""
			if !reflect.DeepEqual(normalize(*got), normalize(tt.want)) {
				t.Errorf("Parse(%q) = %+v, want %+v", tt.query, *got, tt.want)
			}
		})
	}
}

// normalize makes nil and empty slices compare equal.
func normalize(p QueryPlan) QueryPlan {
	fix := func(s []string) []string {
		if len(s) == 0 {
			return nil
		}
		return s
	}
	p.Required = fix(p.Required)
	p.Optional = fix(p.Optional)
	p.Excluded = fix(p.Excluded)
	p.Approximate = fix(p.Approximate)
	if len(p.Groups) == 0 {
		p.Groups = nil
	}
	return p
}

func TestEmptyQuery(t *testing.T) {
	p := New(tokenizer.New(tokenizer.Options{}))
	for _, q := range []string{"", "   ", "the and of"} {
		plan := p.Parse(q)
		if !plan.IsEmpty() {
			t.Errorf("Parse(%q) = %+v, want empty", q, plan)
		}
	}
	if plan := p.Parse("-spam"); plan.IsEmpty() || plan.HasPositive() {
		t.Errorf("exclusion-only plan = %+v", plan)
	}
}
