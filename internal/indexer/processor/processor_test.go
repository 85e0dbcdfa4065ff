package processor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/textindex/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/textindex/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/textindex/internal/lexicon"
	"github.com/Adithya-Monish-Kumar-K/textindex/internal/model"
	"github.com/Adithya-Monish-Kumar-K/textindex/internal/store/memory"
	apperrors "github.com/Adithya-Monish-Kumar-K/textindex/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/textindex/pkg/resilience"
)

type fixture struct {
	store *memory.Store
	lex   *lexicon.Lexicon
	ix    *index.Index
	proc  *Processor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s := memory.New()
	lex := lexicon.New(s)
	ix := index.New(s, resilience.NoRetry(), nil)
	return &fixture{
		store: s,
		lex:   lex,
		ix:    ix,
		proc:  New(lex, ix, tokenizer.New(tokenizer.Options{}), index.AllStats()),
	}
}

func (f *fixture) document(t *testing.T, path string, content string) *model.Document {
	t.Helper()
	doc := model.NewDocument(int64(len(content)), path, time.Now())
	doc.RawData = []byte(content)
	if err := f.store.Documents().Insert(context.Background(), doc); err != nil {
		t.Fatal(err)
	}
	return doc
}

func TestProcessBuildsOccurrences(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	doc := f.document(t, "/a.txt", "alpha beta alpha the gamma")

	n, err := f.proc.Process(ctx, doc)
	if err != nil {
		t.Fatal(err)
	}
	if n != 4 {
		t.Errorf("token count = %d, want 4", n)
	}

	alpha, _ := f.lex.FindExact(ctx, "alpha")
	if len(alpha) != 1 {
		t.Fatal("alpha not in lexicon")
	}
	occ, err := f.store.Occurrences().Get(ctx, alpha[0].ID, doc.ID)
	if err != nil || occ == nil {
		t.Fatalf("occurrence missing: %v", err)
	}
	if occ.Count != 2 || occ.Density != 0.5 {
		t.Errorf("occurrence = %+v", occ)
	}
	if the, _ := f.lex.FindExact(ctx, "the"); len(the) != 0 {
		t.Error("stop word was indexed")
	}
}

func TestReprocessReplacesAndInvalidates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	doc := f.document(t, "/b.txt", "alpha beta")
	if _, err := f.proc.Process(ctx, doc); err != nil {
		t.Fatal(err)
	}
	beta, _ := f.lex.FindExact(ctx, "beta")
	if df, _ := f.lex.DocumentFrequency(ctx, beta[0]); df != 1 {
		t.Fatalf("df(beta) = %d, want 1", df)
	}

	doc.RawData = []byte("alpha delta")
	if _, err := f.proc.Process(ctx, doc); err != nil {
		t.Fatal(err)
	}
	if df, _ := f.lex.DocumentFrequency(ctx, beta[0]); df != 0 {
		t.Errorf("df(beta) = %d after reprocessing, want 0", df)
	}
	occs, _ := f.ix.ForDocument(ctx, doc.ID)
	if len(occs) != 2 {
		t.Errorf("document has %d occurrences, want 2", len(occs))
	}
}

func TestProcessReadsFileWhenNoRawData(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	path := filepath.Join(t.TempDir(), "c.txt")
	if err := os.WriteFile(path, []byte("plain disk"), 0o644); err != nil {
		t.Fatal(err)
	}
	doc := f.document(t, path, "")
	doc.RawData = nil

	n, err := f.proc.Process(ctx, doc)
	if err != nil || n != 2 {
		t.Fatalf("Process = %d, %v; want 2", n, err)
	}

	missing := f.document(t, filepath.Join(t.TempDir(), "missing.txt"), "")
	missing.RawData = nil
	if _, err := f.proc.Process(ctx, missing); !errors.Is(err, apperrors.ErrProcessing) {
		t.Errorf("missing file: got %v, want ErrProcessing", err)
	}
}

func TestRefreshWords(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	if err := f.store.Words().Add(ctx, model.StopWord, "alpha"); err != nil {
		t.Fatal(err)
	}
	if err := f.proc.RefreshWords(ctx, f.store.Words()); err != nil {
		t.Fatal(err)
	}
	doc := f.document(t, "/d.txt", "alpha beta")
	n, err := f.proc.Process(ctx, doc)
	if err != nil || n != 1 {
		t.Errorf("Process = %d, %v; want 1", n, err)
	}
}
