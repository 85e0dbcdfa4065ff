package parser

import (
	"slices"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/textindex/internal/indexer/tokenizer"
)

// QueryType is the mode plain words are classified under.
type QueryType int

const (
	QueryOR QueryType = iota
	QueryAND
)

// QueryPlan classifies the words of a query. Words are normalized the way
// documents are, so they can be looked up in the lexicon directly.
type QueryPlan struct {
	// Required words must all appear in a result.
	Required []string
	// Optional words rank results that hold them higher.
	Optional []string
	// Excluded words must not appear in a result.
	Excluded []string
	// Groups each require at least one of their words.
	Groups [][]string
	// Approximate words only match through near spellings.
	Approximate []string
	RawQuery    string
}

// HasPositive reports whether the plan selects documents by presence of a
// word rather than only by exclusion.
func (p *QueryPlan) HasPositive() bool {
	return len(p.Required) > 0 || len(p.Optional) > 0 || len(p.Groups) > 0 || len(p.Approximate) > 0
}

// IsEmpty reports whether nothing in the query survived normalization.
func (p *QueryPlan) IsEmpty() bool {
	return !p.HasPositive() && len(p.Excluded) == 0
}

type Parser struct {
	tokenizer *tokenizer.Tokenizer
}

func New(tk *tokenizer.Tokenizer) *Parser {
	return &Parser{tokenizer: tk}
}

// Parse classifies query. "+w" is required, "-w" and "NOT w" are excluded,
// "a|b" is a group and "~w" is approximate. After the keyword AND plain
// words are required; after OR they are optional again.
func (p *Parser) Parse(query string) *QueryPlan {
	plan := &QueryPlan{
		Required:    make([]string, 0),
		Optional:    make([]string, 0),
		Excluded:    make([]string, 0),
		Groups:      make([][]string, 0),
		Approximate: make([]string, 0),
		RawQuery:    query,
	}
	if strings.TrimSpace(query) == "" {
		return plan
	}
	mode := QueryOR
	excludeNext := false
	for _, word := range strings.Fields(query) {
		switch strings.ToUpper(word) {
		case "AND":
			mode = QueryAND
			continue
		case "OR":
			mode = QueryOR
			continue
		case "NOT":
			excludeNext = true
			continue
		}

		if excludeNext {
			plan.Excluded = add(plan.Excluded, p.terms(word)...)
			excludeNext = false
			continue
		}
		switch {
		case strings.Contains(word, "|"):
			var group []string
			for _, alt := range strings.Split(word, "|") {
				group = add(group, p.terms(alt)...)
			}
			if len(group) > 0 {
				plan.Groups = append(plan.Groups, group)
			}
		case strings.HasPrefix(word, "+"):
			plan.Required = add(plan.Required, p.terms(word[1:])...)
		case strings.HasPrefix(word, "-"):
			plan.Excluded = add(plan.Excluded, p.terms(word[1:])...)
		case strings.HasPrefix(word, "~"):
			plan.Approximate = add(plan.Approximate, p.terms(word[1:])...)
		case mode == QueryAND:
			plan.Required = add(plan.Required, p.terms(word)...)
		default:
			plan.Optional = add(plan.Optional, p.terms(word)...)
		}
	}
	plan.Optional = slices.DeleteFunc(plan.Optional, func(w string) bool {
		return slices.Contains(plan.Required, w)
	})
	return plan
}

func (p *Parser) terms(word string) []string {
	tokens := p.tokenizer.Tokenize(word)
	out := make([]string, len(tokens))
	for i, t := range tokens {
		out[i] = t.Term
	}
	return out
}

func add(list []string, terms ...string) []string {
	for _, t := range terms {
		if !slices.Contains(list, t) {
			list = append(list, t)
		}
	}
	return list
}
