// Package fuzzy finds lexicon tokens within a Levenshtein distance of a word.
// Lookups are a full linear scan of the lexicon.
package fuzzy

import (
	"context"
	"iter"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/textindex/internal/lexicon"
	"github.com/Adithya-Monish-Kumar-K/textindex/internal/model"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	DefaultMaxDistance = 3
	DefaultIgnoreCase  = true
)

// Options are the matcher defaults applied to every lookup.
type Options struct {
	MaxDistance int
	IgnoreCase  bool
}

// DefaultOptions ignores case and allows three edits.
func DefaultOptions() Options {
	return Options{MaxDistance: DefaultMaxDistance, IgnoreCase: DefaultIgnoreCase}
}

// Option overrides a default for one lookup.
type Option func(*Options)

// WithMaxDistance sets the largest accepted edit distance.
func WithMaxDistance(n int) Option {
	return func(o *Options) { o.MaxDistance = n }
}

// CaseSensitive compares the word and token texts as written.
func CaseSensitive() Option {
	return func(o *Options) { o.IgnoreCase = false }
}

// Matcher scans a lexicon for approximate matches.
type Matcher struct {
	lexicon  *lexicon.Lexicon
	defaults Options
	logger   *slog.Logger
}

func New(lex *lexicon.Lexicon, defaults Options) *Matcher {
	if defaults.MaxDistance < 0 {
		defaults.MaxDistance = 0
	}
	return &Matcher{
		lexicon:  lex,
		defaults: defaults,
		logger:   slog.Default().With("component", "fuzzy-matcher"),
	}
}

// FindApproximate yields every token whose text is within the configured
// distance of word, in lexicon scan order. The sequence is lazy and may be
// iterated again; a scan failure is yielded as the final pair.
func (m *Matcher) FindApproximate(ctx context.Context, word string, opts ...Option) iter.Seq2[*model.Token, error] {
	o := m.defaults
	for _, opt := range opts {
		opt(&o)
	}
	return func(yield func(*model.Token, error) bool) {
		lower := cases.Lower(language.Und)
		target := []rune(word)
		if o.IgnoreCase {
			target = []rune(lower.String(word))
		}
		stopped := false
		err := m.lexicon.Scan(ctx, func(tok *model.Token) bool {
			text := tok.Text
			if o.IgnoreCase {
				text = lower.String(text)
			}
			if Within([]rune(text), target, o.MaxDistance) {
				if !yield(tok, nil) {
					stopped = true
					return false
				}
			}
			return true
		})
		if err != nil && !stopped {
			m.logger.Warn("approximate lookup aborted", "word", word, "error", err)
			yield(nil, err)
		}
	}
}

// Collect drains FindApproximate into a slice.
func (m *Matcher) Collect(ctx context.Context, word string, opts ...Option) ([]*model.Token, error) {
	var out []*model.Token
	for tok, err := range m.FindApproximate(ctx, word, opts...) {
		if err != nil {
			return nil, err
		}
		out = append(out, tok)
	}
	return out, nil
}

// Within reports whether the edit distance of a and b is at most maxDistance.
func Within(a, b []rune, maxDistance int) bool {
	diff := len(a) - len(b)
	if diff < 0 {
		diff = -diff
	}
	if diff > maxDistance {
		return false
	}
	return distance(a, b) <= maxDistance
}

// Distance returns the Levenshtein distance between a and b in runes.
func Distance(a, b string) int {
	return distance([]rune(a), []rune(b))
}

func distance(a, b []rune) int {
	if len(a) < len(b) {
		a, b = b, a
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				curr[j] = prev[j-1]
			} else {
				curr[j] = 1 + min(prev[j], curr[j-1], prev[j-1])
			}
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
