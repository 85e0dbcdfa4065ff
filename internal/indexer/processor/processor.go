// Package processor is the default document processor: it turns a document's
// content into tokens and occurrence records, replacing whatever the index
// held for that document before.
package processor

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/Adithya-Monish-Kumar-K/textindex/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/textindex/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/textindex/internal/lexicon"
	"github.com/Adithya-Monish-Kumar-K/textindex/internal/model"
	"github.com/Adithya-Monish-Kumar-K/textindex/internal/store"
	apperrors "github.com/Adithya-Monish-Kumar-K/textindex/pkg/errors"
)

// Processor implements corpus.Processor.
type Processor struct {
	lexicon   *lexicon.Lexicon
	index     *index.Index
	tokenizer *tokenizer.Tokenizer
	flags     index.StatsFlags
	readFile  func(string) ([]byte, error)
	logger    *slog.Logger
}

// New returns a processor computing the statistics selected by flags.
func New(lex *lexicon.Lexicon, ix *index.Index, tk *tokenizer.Tokenizer, flags index.StatsFlags) *Processor {
	return &Processor{
		lexicon:   lex,
		index:     ix,
		tokenizer: tk,
		flags:     flags,
		readFile:  os.ReadFile,
		logger:    slog.Default().With("component", "document-processor"),
	}
}

// RefreshWords reloads the stored stop and whitelist words into the
// tokenizer.
func (p *Processor) RefreshWords(ctx context.Context, words store.WordRepository) error {
	stop, err := words.List(ctx, model.StopWord)
	if err != nil {
		return fmt.Errorf("loading stop words: %w", err)
	}
	white, err := words.List(ctx, model.WhiteListWord)
	if err != nil {
		return fmt.Errorf("loading whitelist: %w", err)
	}
	p.tokenizer.SetWords(stop, white)
	p.logger.Debug("word lists loaded", "stop_words", len(stop), "whitelist", len(white))
	return nil
}

// Process indexes doc and returns its token count. The content is doc.RawData
// when set and the file at doc.Path otherwise. Aggregate statistics of every
// token whose postings changed are invalidated.
func (p *Processor) Process(ctx context.Context, doc *model.Document) (int, error) {
	data := doc.RawData
	if data == nil {
		var err error
		data, err = p.readFile(doc.Path)
		if err != nil {
			return 0, apperrors.Newf(apperrors.ErrProcessing, "processor.Process", "reading %s: %v", doc.Path, err)
		}
	}

	terms, positions, total := p.tokenizer.Terms(string(data))
	occs := make([]*model.Occurrence, 0, len(terms))
	for _, term := range terms {
		tok, err := p.lexicon.GetOrCreate(ctx, term)
		if err != nil {
			return 0, fmt.Errorf("resolving term %q: %w", term, err)
		}
		occ := index.Compute(positions[term], total, p.flags)
		occ.TokenID = tok.ID
		occ.DocumentID = doc.ID
		occs = append(occs, &occ)
	}

	affected, err := p.index.Replace(ctx, doc.ID, occs)
	if err != nil {
		return 0, fmt.Errorf("indexing %v: %w", doc, err)
	}
	for _, id := range affected {
		p.lexicon.ClearStatisticsByID(id)
	}

	p.logger.Debug("document processed",
		"doc_id", doc.ID,
		"path", doc.Path,
		"token_count", total,
		"distinct_terms", len(terms),
	)
	return total, nil
}
