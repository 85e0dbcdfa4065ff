// Package memory is an in-process implementation of store.Store. Writes are
// visible immediately and Commit is a no-op. After Close every call fails.
// It backs tests and the default local configuration.
package memory

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/textindex/internal/model"
	"github.com/Adithya-Monish-Kumar-K/textindex/internal/store"
	"github.com/RoaringBitmap/roaring/v2"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var errClosed = errors.New("memory store is closed")

type tokenRow struct {
	id          uint32
	text        string
	searchCount int
}

type occurrenceKey struct {
	tokenID    uint32
	documentID uint32
}

// Store holds every collection in maps guarded by one RWMutex.
type Store struct {
	mu sync.RWMutex

	nextTokenID    uint32
	tokens         map[uint32]*tokenRow
	tokensByText   map[string]uint32
	tokensByLower  map[string]*roaring.Bitmap
	nextDocumentID uint32
	documents      map[uint32]model.Document
	occurrences    map[occurrenceKey]model.Occurrence
	postings       map[uint32]*roaring.Bitmap
	byDocument     map[uint32]*roaring.Bitmap
	words          map[model.WordKind]map[string]struct{}
	queries        map[string]int

	closed bool
	logger *slog.Logger
}

// New returns an empty store.
func New() *Store {
	s := &Store{
		logger: slog.Default().With("component", "memory-store"),
	}
	s.clear()
	return s
}

func (s *Store) clear() {
	s.nextTokenID = 0
	s.tokens = make(map[uint32]*tokenRow)
	s.tokensByText = make(map[string]uint32)
	s.tokensByLower = make(map[string]*roaring.Bitmap)
	s.nextDocumentID = 0
	s.documents = make(map[uint32]model.Document)
	s.occurrences = make(map[occurrenceKey]model.Occurrence)
	s.postings = make(map[uint32]*roaring.Bitmap)
	s.byDocument = make(map[uint32]*roaring.Bitmap)
	s.words = map[model.WordKind]map[string]struct{}{
		model.StopWord:      {},
		model.WhiteListWord: {},
	}
	s.queries = make(map[string]int)
}

func (s *Store) Tokens() store.TokenRepository                   { return tokenRepo{s} }
func (s *Store) Documents() store.DocumentRepository             { return documentRepo{s} }
func (s *Store) Occurrences() store.OccurrenceRepository         { return occurrenceRepo{s} }
func (s *Store) Words() store.WordRepository                     { return wordRepo{s} }
func (s *Store) FrequentQueries() store.FrequentQueryRepository { return queryRepo{s} }

func (s *Store) Commit(ctx context.Context) error {
	return s.Ping(ctx)
}

func (s *Store) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return errClosed
	}
	return ctx.Err()
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	return s.Ping(ctx)
}

func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errClosed
	}
	s.clear()
	s.logger.Info("store reset")
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

type tokenRepo struct{ s *Store }

func (r tokenRepo) Insert(ctx context.Context, tok *model.Token) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errClosed
	}
	if _, exists := s.tokensByText[tok.Text]; exists {
		return fmt.Errorf("token %q already exists", tok.Text)
	}
	s.nextTokenID++
	tok.ID = s.nextTokenID
	s.tokens[tok.ID] = &tokenRow{id: tok.ID, text: tok.Text, searchCount: tok.SearchCount}
	s.tokensByText[tok.Text] = tok.ID
	bitmapFor(s.tokensByLower, lower(tok.Text)).Add(tok.ID)
	return nil
}

func (r tokenRepo) Get(ctx context.Context, id uint32) (*model.Token, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if r.s.closed {
		return nil, errClosed
	}
	row, ok := r.s.tokens[id]
	if !ok {
		return nil, nil
	}
	return row.token(), nil
}

func (r tokenRepo) FindByText(ctx context.Context, text string) (*model.Token, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if r.s.closed {
		return nil, errClosed
	}
	id, ok := r.s.tokensByText[text]
	if !ok {
		return nil, nil
	}
	return r.s.tokens[id].token(), nil
}

func (r tokenRepo) FindByTextFold(ctx context.Context, text string) ([]*model.Token, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if r.s.closed {
		return nil, errClosed
	}
	ids, ok := r.s.tokensByLower[lower(text)]
	if !ok {
		return nil, nil
	}
	out := make([]*model.Token, 0, ids.GetCardinality())
	it := ids.Iterator()
	for it.HasNext() {
		out = append(out, r.s.tokens[it.Next()].token())
	}
	return out, nil
}

func (r tokenRepo) Scan(ctx context.Context, fn func(*model.Token) bool) error {
	r.s.mu.RLock()
	if r.s.closed {
		r.s.mu.RUnlock()
		return errClosed
	}
	ids := make([]uint32, 0, len(r.s.tokens))
	for id := range r.s.tokens {
		ids = append(ids, id)
	}
	r.s.mu.RUnlock()
	slices.Sort(ids)

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}
		tok, err := r.Get(ctx, id)
		if err != nil {
			return err
		}
		if tok == nil {
			continue
		}
		if !fn(tok) {
			return nil
		}
	}
	return nil
}

func (r tokenRepo) IncrementSearchCount(ctx context.Context, id uint32, delta int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.closed {
		return errClosed
	}
	row, ok := r.s.tokens[id]
	if !ok {
		return fmt.Errorf("token %d not found", id)
	}
	row.searchCount += delta
	return nil
}

func (row *tokenRow) token() *model.Token {
	return &model.Token{ID: row.id, Text: row.text, SearchCount: row.searchCount}
}

type documentRepo struct{ s *Store }

func (r documentRepo) Insert(ctx context.Context, doc *model.Document) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errClosed
	}
	for _, d := range s.documents {
		if d.Checksum == doc.Checksum && d.Path == doc.Path {
			return fmt.Errorf("document (%d, %s) already exists", doc.Checksum, doc.Path)
		}
	}
	s.nextDocumentID++
	doc.ID = s.nextDocumentID
	s.documents[doc.ID] = stored(doc)
	return nil
}

func (r documentRepo) Update(ctx context.Context, doc *model.Document) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errClosed
	}
	if _, ok := s.documents[doc.ID]; !ok {
		return fmt.Errorf("document %d not found", doc.ID)
	}
	s.documents[doc.ID] = stored(doc)
	return nil
}

func (r documentRepo) Get(ctx context.Context, id uint32) (*model.Document, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if r.s.closed {
		return nil, errClosed
	}
	d, ok := r.s.documents[id]
	if !ok {
		return nil, nil
	}
	return &d, nil
}

func (r documentRepo) Find(ctx context.Context, filter store.DocumentFilter) ([]*model.Document, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if r.s.closed {
		return nil, errClosed
	}
	var out []*model.Document
	for _, d := range r.s.documents {
		if filter.Checksum != nil && d.Checksum != *filter.Checksum {
			continue
		}
		if filter.Path != nil && d.Path != *filter.Path {
			continue
		}
		out = append(out, &d)
	}
	sortByID(out)
	return out, nil
}

func (r documentRepo) GetMany(ctx context.Context, ids []uint32) ([]*model.Document, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if r.s.closed {
		return nil, errClosed
	}
	out := make([]*model.Document, 0, len(ids))
	for _, id := range ids {
		if d, ok := r.s.documents[id]; ok {
			out = append(out, &d)
		}
	}
	sortByID(out)
	return out, nil
}

func (r documentRepo) IDs(ctx context.Context) (*roaring.Bitmap, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if r.s.closed {
		return nil, errClosed
	}
	bm := roaring.New()
	for id := range r.s.documents {
		bm.Add(id)
	}
	return bm, nil
}

func (r documentRepo) Count(ctx context.Context) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if r.s.closed {
		return 0, errClosed
	}
	return len(r.s.documents), nil
}

func (r documentRepo) MaxOpenCount(ctx context.Context) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if r.s.closed {
		return 0, errClosed
	}
	maxOpen := 0
	for _, d := range r.s.documents {
		maxOpen = max(maxOpen, d.OpenCount)
	}
	return maxOpen, nil
}

func (r documentRepo) OldestModification(ctx context.Context) (time.Time, bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if r.s.closed {
		return time.Time{}, false, errClosed
	}
	var (
		oldest time.Time
		found  bool
	)
	for _, d := range r.s.documents {
		if !found || d.ModifiedAt.Before(oldest) {
			oldest = d.ModifiedAt
			found = true
		}
	}
	return oldest, found, nil
}

// stored drops the transient fields of doc.
func stored(doc *model.Document) model.Document {
	d := *doc
	d.RawData = nil
	return d
}

func sortByID(docs []*model.Document) {
	slices.SortFunc(docs, func(a, b *model.Document) int {
		return cmp.Compare(a.ID, b.ID)
	})
}

type occurrenceRepo struct{ s *Store }

func (r occurrenceRepo) Get(ctx context.Context, tokenID, documentID uint32) (*model.Occurrence, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if r.s.closed {
		return nil, errClosed
	}
	occ, ok := r.s.occurrences[occurrenceKey{tokenID, documentID}]
	if !ok {
		return nil, nil
	}
	return cloneOccurrence(occ), nil
}

func (r occurrenceRepo) Insert(ctx context.Context, occ *model.Occurrence) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errClosed
	}
	key := occurrenceKey{occ.TokenID, occ.DocumentID}
	if _, exists := s.occurrences[key]; exists {
		return fmt.Errorf("occurrence of token %d in document %d already exists", occ.TokenID, occ.DocumentID)
	}
	if _, ok := s.tokens[occ.TokenID]; !ok {
		return fmt.Errorf("token %d not found", occ.TokenID)
	}
	if _, ok := s.documents[occ.DocumentID]; !ok {
		return fmt.Errorf("document %d not found", occ.DocumentID)
	}
	s.occurrences[key] = *cloneOccurrence(*occ)
	bitmapFor(s.postings, occ.TokenID).Add(occ.DocumentID)
	bitmapFor(s.byDocument, occ.DocumentID).Add(occ.TokenID)
	return nil
}

func (r occurrenceRepo) DeleteByDocument(ctx context.Context, documentID uint32) ([]uint32, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, errClosed
	}
	tokens, ok := s.byDocument[documentID]
	if !ok {
		return nil, nil
	}
	removed := tokens.ToArray()
	for _, tokenID := range removed {
		delete(s.occurrences, occurrenceKey{tokenID, documentID})
		if p, ok := s.postings[tokenID]; ok {
			p.Remove(documentID)
			if p.IsEmpty() {
				delete(s.postings, tokenID)
			}
		}
	}
	delete(s.byDocument, documentID)
	return removed, nil
}

func (r occurrenceRepo) ByDocument(ctx context.Context, documentID uint32) ([]*model.Occurrence, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if r.s.closed {
		return nil, errClosed
	}
	tokens, ok := r.s.byDocument[documentID]
	if !ok {
		return nil, nil
	}
	out := make([]*model.Occurrence, 0, tokens.GetCardinality())
	it := tokens.Iterator()
	for it.HasNext() {
		occ := r.s.occurrences[occurrenceKey{it.Next(), documentID}]
		out = append(out, cloneOccurrence(occ))
	}
	return out, nil
}

func (r occurrenceRepo) Documents(ctx context.Context, tokenID uint32) (*roaring.Bitmap, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if r.s.closed {
		return nil, errClosed
	}
	p, ok := r.s.postings[tokenID]
	if !ok {
		return roaring.New(), nil
	}
	return p.Clone(), nil
}

func (r occurrenceRepo) TotalCount(ctx context.Context, tokenID uint32) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if r.s.closed {
		return 0, errClosed
	}
	p, ok := r.s.postings[tokenID]
	if !ok {
		return 0, nil
	}
	total := 0
	it := p.Iterator()
	for it.HasNext() {
		total += r.s.occurrences[occurrenceKey{tokenID, it.Next()}].Count
	}
	return total, nil
}

func bitmapFor[K comparable](m map[K]*roaring.Bitmap, key K) *roaring.Bitmap {
	bm, ok := m[key]
	if !ok {
		bm = roaring.New()
		m[key] = bm
	}
	return bm
}

// lower matches PostgreSQL's lower() closely enough for token text.
func lower(text string) string {
	return cases.Lower(language.Und).String(text)
}

func cloneOccurrence(occ model.Occurrence) *model.Occurrence {
	occ.Positions = slices.Clone(occ.Positions)
	return &occ
}

type wordRepo struct{ s *Store }

func (r wordRepo) Add(ctx context.Context, kind model.WordKind, word string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.closed {
		return errClosed
	}
	set, ok := r.s.words[kind]
	if !ok {
		return fmt.Errorf("unknown word list %v", kind)
	}
	set[word] = struct{}{}
	return nil
}

func (r wordRepo) Remove(ctx context.Context, kind model.WordKind, word string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.closed {
		return errClosed
	}
	delete(r.s.words[kind], word)
	return nil
}

func (r wordRepo) List(ctx context.Context, kind model.WordKind) ([]string, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if r.s.closed {
		return nil, errClosed
	}
	out := make([]string, 0, len(r.s.words[kind]))
	for w := range r.s.words[kind] {
		out = append(out, w)
	}
	slices.Sort(out)
	return out, nil
}

type queryRepo struct{ s *Store }

func (r queryRepo) Increment(ctx context.Context, query string) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.closed {
		return 0, errClosed
	}
	r.s.queries[query]++
	return r.s.queries[query], nil
}

func (r queryRepo) Get(ctx context.Context, query string) (*model.FrequentQuery, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if r.s.closed {
		return nil, errClosed
	}
	n, ok := r.s.queries[query]
	if !ok {
		return nil, nil
	}
	return &model.FrequentQuery{Query: query, SearchCount: n}, nil
}

func (r queryRepo) Count(ctx context.Context) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if r.s.closed {
		return 0, errClosed
	}
	return len(r.s.queries), nil
}

func (r queryRepo) DeleteLowest(ctx context.Context, n int) (int, error) {
	if n <= 0 {
		return 0, nil
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.closed {
		return 0, errClosed
	}
	entries := r.s.sortedQueries()
	slices.SortFunc(entries, func(a, b model.FrequentQuery) int {
		if c := cmp.Compare(a.SearchCount, b.SearchCount); c != 0 {
			return c
		}
		return cmp.Compare(a.Query, b.Query)
	})
	n = min(n, len(entries))
	for _, e := range entries[:n] {
		delete(r.s.queries, e.Query)
	}
	return n, nil
}

func (r queryRepo) Top(ctx context.Context, n int) ([]model.FrequentQuery, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if r.s.closed {
		return nil, errClosed
	}
	entries := r.s.sortedQueries()
	slices.SortFunc(entries, func(a, b model.FrequentQuery) int {
		if c := cmp.Compare(b.SearchCount, a.SearchCount); c != 0 {
			return c
		}
		return cmp.Compare(a.Query, b.Query)
	})
	if n >= 0 && n < len(entries) {
		entries = entries[:n]
	}
	return entries, nil
}

func (r queryRepo) Clear(ctx context.Context) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.closed {
		return errClosed
	}
	r.s.queries = make(map[string]int)
	return nil
}

func (s *Store) sortedQueries() []model.FrequentQuery {
	entries := make([]model.FrequentQuery, 0, len(s.queries))
	for q, n := range s.queries {
		entries = append(entries, model.FrequentQuery{Query: q, SearchCount: n})
	}
	return entries
}
