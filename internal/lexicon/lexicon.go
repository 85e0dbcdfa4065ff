// Package lexicon is the canonical token store. Every token is identity
// mapped: all callers asking for the same text get the same *model.Token, so
// its memoized statistics are shared and ClearStatistics reaches every holder.
package lexicon

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/textindex/internal/model"
	"github.com/Adithya-Monish-Kumar-K/textindex/internal/store"
	apperrors "github.com/Adithya-Monish-Kumar-K/textindex/pkg/errors"
	"golang.org/x/sync/singleflight"
	"golang.org/x/text/cases"
)

// Lexicon resolves token text to tokens and computes per-token statistics.
//
// GetOrCreate is atomic within one process. Separate processes writing the
// same store rely on the storage uniqueness constraint; a losing writer gets
// an error and must retry.
type Lexicon struct {
	store store.Store

	mu     sync.RWMutex
	byText map[string]*model.Token
	byID   map[uint32]*model.Token

	group  singleflight.Group
	logger *slog.Logger
}

// New returns a lexicon over s with an empty identity map.
func New(s store.Store) *Lexicon {
	return &Lexicon{
		store:  s,
		byText: make(map[string]*model.Token),
		byID:   make(map[uint32]*model.Token),
		logger: slog.Default().With("component", "lexicon"),
	}
}

// GetOrCreate returns the token for text, creating and persisting it when
// absent.
func (l *Lexicon) GetOrCreate(ctx context.Context, text string) (*model.Token, error) {
	if text == "" {
		return nil, apperrors.New(apperrors.ErrInvalidInput, "lexicon.GetOrCreate", "empty token text")
	}
	if tok := l.cached(text); tok != nil {
		return tok, nil
	}
	v, err, _ := l.group.Do(text, func() (any, error) {
		if tok := l.cached(text); tok != nil {
			return tok, nil
		}
		tok, err := l.store.Tokens().FindByText(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("looking up token %q: %w", text, err)
		}
		if tok == nil {
			tok = &model.Token{Text: text}
			if err := l.store.Tokens().Insert(ctx, tok); err != nil {
				return nil, fmt.Errorf("creating token %q: %w", text, err)
			}
			l.logger.Debug("token created", "token_id", tok.ID, "text", text)
		}
		return l.remember(tok), nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*model.Token), nil
}

// FindExact returns the token whose text equals text, or an empty slice.
func (l *Lexicon) FindExact(ctx context.Context, text string) ([]*model.Token, error) {
	if tok := l.cached(text); tok != nil {
		return []*model.Token{tok}, nil
	}
	tok, err := l.store.Tokens().FindByText(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("looking up token %q: %w", text, err)
	}
	if tok == nil {
		return []*model.Token{}, nil
	}
	return []*model.Token{l.remember(tok)}, nil
}

// FindExactFold returns every token equal to text under Unicode case folding.
// Candidates come from the store's case-insensitive index, not a scan.
func (l *Lexicon) FindExactFold(ctx context.Context, text string) ([]*model.Token, error) {
	candidates, err := l.store.Tokens().FindByTextFold(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("looking up tokens folded to %q: %w", text, err)
	}
	folder := cases.Fold()
	want := folder.String(text)
	out := make([]*model.Token, 0, len(candidates))
	for _, tok := range candidates {
		if folder.String(tok.Text) == want {
			out = append(out, l.remember(tok))
		}
	}
	return out, nil
}

// FindSubstring returns every token containing text. An empty text matches
// nothing.
func (l *Lexicon) FindSubstring(ctx context.Context, text string) ([]*model.Token, error) {
	if text == "" {
		return []*model.Token{}, nil
	}
	return l.filter(ctx, func(tok *model.Token) bool {
		return strings.Contains(tok.Text, text)
	})
}

func (l *Lexicon) filter(ctx context.Context, match func(*model.Token) bool) ([]*model.Token, error) {
	out := []*model.Token{}
	err := l.Scan(ctx, func(tok *model.Token) bool {
		if match(tok) {
			out = append(out, tok)
		}
		return true
	})
	return out, err
}

// Scan visits every token in ascending ID order until fn returns false.
func (l *Lexicon) Scan(ctx context.Context, fn func(*model.Token) bool) error {
	err := l.store.Tokens().Scan(ctx, func(tok *model.Token) bool {
		return fn(l.remember(tok))
	})
	if err != nil {
		return fmt.Errorf("scanning lexicon: %w", err)
	}
	return nil
}

// TotalOccurrences returns how often tok occurs across the corpus.
func (l *Lexicon) TotalOccurrences(ctx context.Context, tok *model.Token) (int, error) {
	return tok.TotalOccurrences.Get(func() (int, error) {
		n, err := l.store.Occurrences().TotalCount(ctx, tok.ID)
		if err != nil {
			return 0, fmt.Errorf("counting occurrences of %v: %w", tok, err)
		}
		return n, nil
	})
}

// DocumentFrequency returns how many documents contain tok.
func (l *Lexicon) DocumentFrequency(ctx context.Context, tok *model.Token) (int, error) {
	return tok.DocumentFrequency.Get(func() (int, error) {
		docs, err := l.store.Occurrences().Documents(ctx, tok.ID)
		if err != nil {
			return 0, fmt.Errorf("counting documents of %v: %w", tok, err)
		}
		return int(docs.GetCardinality()), nil
	})
}

// InverseDocumentFrequency returns ln(documents / documentFrequency), or 0
// when no document contains tok.
func (l *Lexicon) InverseDocumentFrequency(ctx context.Context, tok *model.Token) (float64, error) {
	return tok.InverseDocumentFrequency.Get(func() (float64, error) {
		df, err := l.DocumentFrequency(ctx, tok)
		if err != nil {
			return 0, err
		}
		if df == 0 {
			return 0, nil
		}
		total, err := l.store.Documents().Count(ctx)
		if err != nil {
			return 0, fmt.Errorf("counting documents: %w", err)
		}
		return math.Log(float64(total) / float64(df)), nil
	})
}

// Heuristics returns the intrinsic scores of tok. They are computed once and
// survive ClearStatistics.
func (l *Lexicon) Heuristics(tok *model.Token) model.Heuristics {
	h, _ := tok.Heuristics.Get(func() (model.Heuristics, error) {
		return ComputeHeuristics(tok.Text), nil
	})
	return h
}

// ClearStatistics marks the corpus-dependent statistics of tok stale.
func (l *Lexicon) ClearStatistics(tok *model.Token) {
	tok.TotalOccurrences.Invalidate()
	tok.DocumentFrequency.Invalidate()
	tok.InverseDocumentFrequency.Invalidate()
}

// ClearStatisticsByID is ClearStatistics for a token known only by ID. A
// token never loaded has nothing cached.
func (l *Lexicon) ClearStatisticsByID(id uint32) {
	l.mu.RLock()
	tok, ok := l.byID[id]
	l.mu.RUnlock()
	if ok {
		l.ClearStatistics(tok)
	}
}

// ClearAllStatistics invalidates the aggregates of every loaded token.
func (l *Lexicon) ClearAllStatistics() {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, tok := range l.byID {
		l.ClearStatistics(tok)
	}
}

// IncrementSearchCounts adds one to the search count of each distinct token.
func (l *Lexicon) IncrementSearchCounts(ctx context.Context, tokens []*model.Token) error {
	seen := make(map[uint32]struct{}, len(tokens))
	for _, tok := range tokens {
		if _, dup := seen[tok.ID]; dup {
			continue
		}
		seen[tok.ID] = struct{}{}
		if err := l.store.Tokens().IncrementSearchCount(ctx, tok.ID, 1); err != nil {
			return fmt.Errorf("incrementing search count of %v: %w", tok, err)
		}
		l.mu.Lock()
		tok.SearchCount++
		l.mu.Unlock()
	}
	return nil
}

// Forget drops the identity map. Used after the store is reset.
func (l *Lexicon) Forget() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.byText = make(map[string]*model.Token)
	l.byID = make(map[uint32]*model.Token)
}

func (l *Lexicon) cached(text string) *model.Token {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.byText[text]
}

// remember returns the canonical instance for tok, registering tok when it is
// the first one seen.
func (l *Lexicon) remember(tok *model.Token) *model.Token {
	l.mu.Lock()
	defer l.mu.Unlock()
	if existing, ok := l.byText[tok.Text]; ok {
		return existing
	}
	l.byText[tok.Text] = tok
	l.byID[tok.ID] = tok
	return tok
}
