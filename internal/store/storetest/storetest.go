// Package storetest holds a behavioural test suite that every store.Store
// implementation must pass.
package storetest

import (
	"context"
	"slices"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/textindex/internal/model"
	"github.com/Adithya-Monish-Kumar-K/textindex/internal/store"
)

// Run exercises s. The store must be empty and have its schema in place.
func Run(t *testing.T, s store.Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("Tokens", func(t *testing.T) { testTokens(t, ctx, s) })
	t.Run("Documents", func(t *testing.T) { testDocuments(t, ctx, s) })
	t.Run("Occurrences", func(t *testing.T) { testOccurrences(t, ctx, s) })
	t.Run("Words", func(t *testing.T) { testWords(t, ctx, s) })
	t.Run("FrequentQueries", func(t *testing.T) { RunFrequentQueries(t, s.FrequentQueries()) })
}

func testTokens(t *testing.T, ctx context.Context, s store.Store) {
	repo := s.Tokens()
	a := &model.Token{Text: "alpha"}
	if err := repo.Insert(ctx, a); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if a.ID == 0 {
		t.Fatal("insert did not assign an ID")
	}
	if err := repo.Insert(ctx, &model.Token{Text: "alpha"}); err == nil {
		t.Error("duplicate token text must be rejected")
	}
	b := &model.Token{Text: "Beta"}
	if err := repo.Insert(ctx, b); err != nil {
		t.Fatal(err)
	}

	got, err := repo.FindByText(ctx, "alpha")
	if err != nil || got == nil || got.ID != a.ID {
		t.Fatalf("FindByText(alpha) = %v, %v", got, err)
	}
	if got, err := repo.FindByText(ctx, "missing"); err != nil || got != nil {
		t.Errorf("FindByText(missing) = %v, %v; want nil, nil", got, err)
	}

	if err := repo.IncrementSearchCount(ctx, a.ID, 2); err != nil {
		t.Fatal(err)
	}
	got, err = repo.Get(ctx, a.ID)
	if err != nil || got.SearchCount != 2 {
		t.Errorf("SearchCount = %v, %v; want 2", got, err)
	}

	var texts []string
	if err := repo.Scan(ctx, func(tok *model.Token) bool {
		texts = append(texts, tok.Text)
		return true
	}); err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(texts, []string{"alpha", "Beta"}) {
		t.Errorf("Scan = %v", texts)
	}

	visited := 0
	if err := repo.Scan(ctx, func(*model.Token) bool {
		visited++
		return false
	}); err != nil {
		t.Fatal(err)
	}
	if visited != 1 {
		t.Errorf("Scan visited %d tokens after stop, want 1", visited)
	}

	lowerBeta := &model.Token{Text: "beta"}
	if err := repo.Insert(ctx, lowerBeta); err != nil {
		t.Fatal(err)
	}
	folded, err := repo.FindByTextFold(ctx, "BETA")
	if err != nil {
		t.Fatal(err)
	}
	var ids []uint32
	for _, tok := range folded {
		ids = append(ids, tok.ID)
	}
	if !slices.Equal(ids, []uint32{b.ID, lowerBeta.ID}) {
		t.Errorf("FindByTextFold(BETA) = %v, want tokens %d and %d", ids, b.ID, lowerBeta.ID)
	}
	if folded, err := repo.FindByTextFold(ctx, "gamma"); err != nil || len(folded) != 0 {
		t.Errorf("FindByTextFold(gamma) = %v, %v; want none", folded, err)
	}
}

func testDocuments(t *testing.T, ctx context.Context, s store.Store) {
	repo := s.Documents()
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	d1 := model.NewDocument(100, "/a", base)
	d1.RawData = []byte("content")
	if err := repo.Insert(ctx, d1); err != nil {
		t.Fatal(err)
	}
	if err := repo.Insert(ctx, model.NewDocument(100, "/a", base)); err == nil {
		t.Error("duplicate (checksum, path) must be rejected")
	}
	d2 := model.NewDocument(100, "/b", base.Add(time.Hour))
	d3 := model.NewDocument(200, "/a", base.Add(2*time.Hour))
	for _, d := range []*model.Document{d2, d3} {
		if err := repo.Insert(ctx, d); err != nil {
			t.Fatal(err)
		}
	}

	got, err := repo.Get(ctx, d1.ID)
	if err != nil || got == nil {
		t.Fatalf("Get = %v, %v", got, err)
	}
	if got.RawData != nil {
		t.Error("raw data must not be persisted")
	}
	if got.TokenCount != model.UnknownTokenCount || got.AverageRating() != 50 {
		t.Errorf("stored defaults lost: %+v", got)
	}

	checksum := int64(100)
	byChecksum, err := repo.Find(ctx, store.DocumentFilter{Checksum: &checksum})
	if err != nil || len(byChecksum) != 2 {
		t.Fatalf("Find(checksum) = %d docs, %v", len(byChecksum), err)
	}
	path := "/a"
	byPath, err := repo.Find(ctx, store.DocumentFilter{Path: &path})
	if err != nil || len(byPath) != 2 || byPath[0].ID != d1.ID || byPath[1].ID != d3.ID {
		t.Fatalf("Find(path) = %v, %v", byPath, err)
	}
	both, err := repo.Find(ctx, store.DocumentFilter{Checksum: &checksum, Path: &path})
	if err != nil || len(both) != 1 || both[0].ID != d1.ID {
		t.Fatalf("Find(checksum, path) = %v, %v", both, err)
	}

	d2.OpenCount = 7
	d2.TokenCount = 12
	if err := repo.Update(ctx, d2); err != nil {
		t.Fatal(err)
	}
	maxOpen, err := repo.MaxOpenCount(ctx)
	if err != nil || maxOpen != 7 {
		t.Errorf("MaxOpenCount = %d, %v; want 7", maxOpen, err)
	}
	oldest, ok, err := repo.OldestModification(ctx)
	if err != nil || !ok || !oldest.Equal(base) {
		t.Errorf("OldestModification = %v, %v, %v", oldest, ok, err)
	}
	n, err := repo.Count(ctx)
	if err != nil || n != 3 {
		t.Errorf("Count = %d, %v", n, err)
	}
	ids, err := repo.IDs(ctx)
	if err != nil || ids.GetCardinality() != 3 {
		t.Errorf("IDs = %v, %v", ids, err)
	}
	many, err := repo.GetMany(ctx, []uint32{d3.ID, d1.ID, 9999})
	if err != nil || len(many) != 2 || many[0].ID != d1.ID {
		t.Errorf("GetMany = %v, %v", many, err)
	}
}

func testOccurrences(t *testing.T, ctx context.Context, s store.Store) {
	tok := &model.Token{Text: "gamma"}
	if err := s.Tokens().Insert(ctx, tok); err != nil {
		t.Fatal(err)
	}
	other := &model.Token{Text: "delta"}
	if err := s.Tokens().Insert(ctx, other); err != nil {
		t.Fatal(err)
	}
	now := time.Now().UTC().Truncate(time.Second)
	d1 := model.NewDocument(301, "/occ/1", now)
	d2 := model.NewDocument(302, "/occ/2", now)
	for _, d := range []*model.Document{d1, d2} {
		if err := s.Documents().Insert(ctx, d); err != nil {
			t.Fatal(err)
		}
	}

	repo := s.Occurrences()
	occs := []*model.Occurrence{
		{TokenID: tok.ID, DocumentID: d1.ID, Count: 3, Density: 0.3, Positions: []int{1, 4, 9}},
		{TokenID: tok.ID, DocumentID: d2.ID, Count: 2, Density: 0.5, Positions: []int{0, 2}},
		{TokenID: other.ID, DocumentID: d1.ID, Count: 1, Density: 0.1, Positions: []int{5}},
	}
	for _, occ := range occs {
		if err := repo.Insert(ctx, occ); err != nil {
			t.Fatal(err)
		}
	}
	if err := repo.Insert(ctx, &model.Occurrence{TokenID: tok.ID, DocumentID: d1.ID, Count: 1}); err == nil {
		t.Error("duplicate occurrence must be rejected")
	}

	got, err := repo.Get(ctx, tok.ID, d1.ID)
	if err != nil || got == nil {
		t.Fatalf("Get = %v, %v", got, err)
	}
	if got.Count != 3 || !slices.Equal(got.Positions, []int{1, 4, 9}) {
		t.Errorf("Get = %+v", got)
	}

	total, err := repo.TotalCount(ctx, tok.ID)
	if err != nil || total != 5 {
		t.Errorf("TotalCount = %d, %v; want 5", total, err)
	}
	docs, err := repo.Documents(ctx, tok.ID)
	if err != nil || !slices.Equal(docs.ToArray(), []uint32{d1.ID, d2.ID}) {
		t.Errorf("Documents = %v, %v", docs, err)
	}
	inDoc, err := repo.ByDocument(ctx, d1.ID)
	if err != nil || len(inDoc) != 2 {
		t.Errorf("ByDocument = %d, %v; want 2", len(inDoc), err)
	}

	removed, err := repo.DeleteByDocument(ctx, d1.ID)
	if err != nil {
		t.Fatal(err)
	}
	slices.Sort(removed)
	want := []uint32{tok.ID, other.ID}
	slices.Sort(want)
	if !slices.Equal(removed, want) {
		t.Errorf("DeleteByDocument removed %v, want %v", removed, want)
	}
	docs, err = repo.Documents(ctx, tok.ID)
	if err != nil || !slices.Equal(docs.ToArray(), []uint32{d2.ID}) {
		t.Errorf("Documents after delete = %v, %v", docs, err)
	}
	if total, _ := repo.TotalCount(ctx, other.ID); total != 0 {
		t.Errorf("TotalCount after delete = %d, want 0", total)
	}
}

func testWords(t *testing.T, ctx context.Context, s store.Store) {
	repo := s.Words()
	for _, w := range []string{"the", "and"} {
		if err := repo.Add(ctx, model.StopWord, w); err != nil {
			t.Fatal(err)
		}
	}
	if err := repo.Add(ctx, model.WhiteListWord, "it"); err != nil {
		t.Fatal(err)
	}
	if err := repo.Remove(ctx, model.StopWord, "the"); err != nil {
		t.Fatal(err)
	}
	stop, err := repo.List(ctx, model.StopWord)
	if err != nil || !slices.Equal(stop, []string{"and"}) {
		t.Errorf("stop words = %v, %v", stop, err)
	}
	white, err := repo.List(ctx, model.WhiteListWord)
	if err != nil || !slices.Equal(white, []string{"it"}) {
		t.Errorf("whitelist = %v, %v", white, err)
	}
}

// RunFrequentQueries exercises a frequent-query repository on its own. The
// repository must be empty.
func RunFrequentQueries(t *testing.T, repo store.FrequentQueryRepository) {
	t.Helper()
	ctx := context.Background()

	for _, q := range []string{"b", "a", "c", "c", "d", "d", "d"} {
		if _, err := repo.Increment(ctx, q); err != nil {
			t.Fatal(err)
		}
	}
	n, err := repo.Increment(ctx, "d")
	if err != nil || n != 4 {
		t.Fatalf("Increment(d) = %d, %v; want 4", n, err)
	}
	got, err := repo.Get(ctx, "c")
	if err != nil || got == nil || got.SearchCount != 2 {
		t.Errorf("Get(c) = %v, %v", got, err)
	}
	if got, err := repo.Get(ctx, "zzz"); err != nil || got != nil {
		t.Errorf("Get(zzz) = %v, %v; want nil, nil", got, err)
	}
	if count, err := repo.Count(ctx); err != nil || count != 4 {
		t.Fatalf("Count = %d, %v; want 4", count, err)
	}

	top, err := repo.Top(ctx, 2)
	if err != nil || len(top) != 2 || top[0].Query != "d" || top[1].Query != "c" {
		t.Errorf("Top(2) = %v, %v", top, err)
	}

	// a and b tie at 1; a goes first.
	removed, err := repo.DeleteLowest(ctx, 1)
	if err != nil || removed != 1 {
		t.Fatalf("DeleteLowest = %d, %v", removed, err)
	}
	if got, _ := repo.Get(ctx, "a"); got != nil {
		t.Error("lowest entry a should have been removed")
	}
	if got, _ := repo.Get(ctx, "b"); got == nil {
		t.Error("entry b should remain")
	}

	if err := repo.Clear(ctx); err != nil {
		t.Fatal(err)
	}
	if count, _ := repo.Count(ctx); count != 0 {
		t.Errorf("Count after Clear = %d", count)
	}
}
