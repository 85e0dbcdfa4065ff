// Package tokenizer splits document text into index terms. It splits on
// Unicode letter/digit boundaries, preserves case, drops stop words unless
// they are whitelisted and can optionally apply the Snowball English stemmer
// (which lower-cases).
package tokenizer

import (
	"strings"
	"sync"
	"unicode"

	snowballeng "github.com/kljensen/snowball/english"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

var defaultStopWords = []string{
	"a", "an", "and", "are", "as", "at",
	"be", "by", "for", "from", "has", "he",
	"in", "is", "it", "its", "of", "on",
	"or", "that", "the", "to", "was", "were",
	"will", "with", "this", "but", "they",
	"have", "had", "what", "when", "where",
	"who", "which", "their", "if", "each",
	"do", "not", "no", "so", "can",
}

// Token is a single term and its offset among the kept terms of the text.
type Token struct {
	Term     string
	Position int
}

// Options configures a Tokenizer.
type Options struct {
	// Stem applies the Snowball English stemmer to every term.
	Stem bool
	// MinLength drops terms shorter than this many runes.
	MinLength int
}

// Tokenizer is safe for concurrent use. Word lists can be swapped at runtime
// with SetWords.
type Tokenizer struct {
	opts Options

	mu        sync.RWMutex
	stop      map[string]struct{}
	whitelist map[string]struct{}
}

// New returns a tokenizer using the built-in stop list.
func New(opts Options) *Tokenizer {
	if opts.MinLength <= 0 {
		opts.MinLength = 2
	}
	t := &Tokenizer{opts: opts}
	t.SetWords(nil, nil)
	return t
}

// SetWords replaces the stop list with the built-in list plus stop, and the
// whitelist with whitelist. Comparison is case-insensitive.
func (t *Tokenizer) SetWords(stop, whitelist []string) {
	s := make(map[string]struct{}, len(defaultStopWords)+len(stop))
	for _, w := range defaultStopWords {
		s[fold(w)] = struct{}{}
	}
	for _, w := range stop {
		s[fold(w)] = struct{}{}
	}
	wl := make(map[string]struct{}, len(whitelist))
	for _, w := range whitelist {
		wl[fold(w)] = struct{}{}
	}
	t.mu.Lock()
	t.stop, t.whitelist = s, wl
	t.mu.Unlock()
}

// Tokenize breaks text into terms with stop words removed.
func (t *Tokenizer) Tokenize(text string) []Token {
	text = norm.NFC.String(text)
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := make([]Token, 0, len(words)/2)
	pos := 0
	for _, word := range words {
		term, ok := t.Normalize(word)
		if !ok {
			continue
		}
		tokens = append(tokens, Token{
			Term:     term,
			Position: pos,
		})
		pos++
	}
	return tokens
}

// Normalize maps a single word to its index term. ok is false when the word
// is dropped.
func (t *Tokenizer) Normalize(word string) (term string, ok bool) {
	word = norm.NFC.String(strings.TrimSpace(word))
	folded := fold(word)

	t.mu.RLock()
	_, white := t.whitelist[folded]
	_, stop := t.stop[folded]
	t.mu.RUnlock()

	if !white {
		if len([]rune(word)) < t.opts.MinLength || stop {
			return "", false
		}
	}
	if t.opts.Stem {
		word = snowballeng.Stem(word, false)
	}
	if word == "" {
		return "", false
	}
	return word, true
}

// Terms returns the distinct terms of text grouped with their positions, in
// order of first appearance, and the total number of kept terms.
func (t *Tokenizer) Terms(text string) (terms []string, positions map[string][]int, total int) {
	tokens := t.Tokenize(text)
	positions = make(map[string][]int)
	for _, tok := range tokens {
		if _, seen := positions[tok.Term]; !seen {
			terms = append(terms, tok.Term)
		}
		positions[tok.Term] = append(positions[tok.Term], tok.Position)
	}
	return terms, positions, len(tokens)
}

func fold(s string) string {
	return cases.Fold().String(s)
}
