package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Adithya-Monish-Kumar-K/textindex/internal/model"
	"github.com/Adithya-Monish-Kumar-K/textindex/internal/store"
	"github.com/RoaringBitmap/roaring/v2"
	"github.com/lib/pq"
)

type tokenRepo struct{ s *Store }

func (r tokenRepo) Insert(ctx context.Context, tok *model.Token) error {
	return r.s.write(ctx, func(q querier) error {
		var id int64
		err := q.QueryRowContext(ctx,
			`INSERT INTO tokens (text, search_count) VALUES ($1, $2) RETURNING id`,
			tok.Text, tok.SearchCount,
		).Scan(&id)
		if err != nil {
			return fmt.Errorf("inserting token %q: %w", tok.Text, err)
		}
		tok.ID = uint32(id)
		return nil
	})
}

func (r tokenRepo) Get(ctx context.Context, id uint32) (*model.Token, error) {
	return r.one(ctx, `SELECT id, text, search_count FROM tokens WHERE id = $1`, int64(id))
}

func (r tokenRepo) FindByText(ctx context.Context, text string) (*model.Token, error) {
	return r.one(ctx, `SELECT id, text, search_count FROM tokens WHERE text = $1`, text)
}

// FindByTextFold matches on lower(text), served by tokens_lower_text_idx.
func (r tokenRepo) FindByTextFold(ctx context.Context, text string) ([]*model.Token, error) {
	var out []*model.Token
	err := r.s.read(ctx, func(q querier) error {
		rows, err := q.QueryContext(ctx,
			`SELECT id, text, search_count FROM tokens WHERE lower(text) = lower($1) ORDER BY id`,
			text,
		)
		if err != nil {
			return fmt.Errorf("querying tokens folded to %q: %w", text, err)
		}
		defer rows.Close()
		for rows.Next() {
			var (
				id    int64
				match string
				n     int
			)
			if err := rows.Scan(&id, &match, &n); err != nil {
				return fmt.Errorf("scanning token row: %w", err)
			}
			out = append(out, &model.Token{ID: uint32(id), Text: match, SearchCount: n})
		}
		return rows.Err()
	})
	return out, err
}

func (r tokenRepo) one(ctx context.Context, query string, arg any) (*model.Token, error) {
	var tok *model.Token
	err := r.s.read(ctx, func(q querier) error {
		var (
			id    int64
			text  string
			count int
		)
		err := q.QueryRowContext(ctx, query, arg).Scan(&id, &text, &count)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("querying token: %w", err)
		}
		tok = &model.Token{ID: uint32(id), Text: text, SearchCount: count}
		return nil
	})
	return tok, err
}

func (r tokenRepo) Scan(ctx context.Context, fn func(*model.Token) bool) error {
	var after int64
	for {
		batch := make([]*model.Token, 0, scanBatch)
		err := r.s.read(ctx, func(q querier) error {
			rows, err := q.QueryContext(ctx,
				`SELECT id, text, search_count FROM tokens WHERE id > $1 ORDER BY id LIMIT $2`,
				after, scanBatch,
			)
			if err != nil {
				return fmt.Errorf("scanning tokens: %w", err)
			}
			defer rows.Close()
			for rows.Next() {
				var (
					id   int64
					text string
					n    int
				)
				if err := rows.Scan(&id, &text, &n); err != nil {
					return fmt.Errorf("scanning token row: %w", err)
				}
				batch = append(batch, &model.Token{ID: uint32(id), Text: text, SearchCount: n})
			}
			return rows.Err()
		})
		if err != nil {
			return err
		}
		for _, tok := range batch {
			if !fn(tok) {
				return nil
			}
		}
		if len(batch) < scanBatch {
			return nil
		}
		after = int64(batch[len(batch)-1].ID)
	}
}

func (r tokenRepo) IncrementSearchCount(ctx context.Context, id uint32, delta int) error {
	return r.s.write(ctx, func(q querier) error {
		res, err := q.ExecContext(ctx,
			`UPDATE tokens SET search_count = search_count + $2 WHERE id = $1`,
			int64(id), delta,
		)
		if err != nil {
			return fmt.Errorf("incrementing search count of token %d: %w", id, err)
		}
		return expectRow(res, "token", id)
	})
}

const documentColumns = `id, checksum, path, token_count, open_count, rating_sum, rating_count, modified_at`

type documentRepo struct{ s *Store }

func (r documentRepo) Insert(ctx context.Context, doc *model.Document) error {
	return r.s.write(ctx, func(q querier) error {
		var id int64
		err := q.QueryRowContext(ctx,
			`INSERT INTO documents (checksum, path, token_count, open_count, rating_sum, rating_count, modified_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
			doc.Checksum, doc.Path, doc.TokenCount, doc.OpenCount, doc.RatingSum, doc.RatingCount, doc.ModifiedAt.UTC(),
		).Scan(&id)
		if err != nil {
			return fmt.Errorf("inserting document (%d, %s): %w", doc.Checksum, doc.Path, err)
		}
		doc.ID = uint32(id)
		return nil
	})
}

func (r documentRepo) Update(ctx context.Context, doc *model.Document) error {
	return r.s.write(ctx, func(q querier) error {
		res, err := q.ExecContext(ctx,
			`UPDATE documents
			 SET token_count = $2, open_count = $3, rating_sum = $4, rating_count = $5, modified_at = $6
			 WHERE id = $1`,
			int64(doc.ID), doc.TokenCount, doc.OpenCount, doc.RatingSum, doc.RatingCount, doc.ModifiedAt.UTC(),
		)
		if err != nil {
			return fmt.Errorf("updating document %d: %w", doc.ID, err)
		}
		return expectRow(res, "document", doc.ID)
	})
}

func (r documentRepo) Get(ctx context.Context, id uint32) (*model.Document, error) {
	docs, err := r.list(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = $1`, int64(id))
	if err != nil || len(docs) == 0 {
		return nil, err
	}
	return docs[0], nil
}

func (r documentRepo) Find(ctx context.Context, filter store.DocumentFilter) ([]*model.Document, error) {
	var checksum sql.NullInt64
	if filter.Checksum != nil {
		checksum = sql.NullInt64{Int64: *filter.Checksum, Valid: true}
	}
	var path sql.NullString
	if filter.Path != nil {
		path = sql.NullString{String: *filter.Path, Valid: true}
	}
	return r.list(ctx,
		`SELECT `+documentColumns+` FROM documents
		 WHERE ($1::BIGINT IS NULL OR checksum = $1) AND ($2::TEXT IS NULL OR path = $2)
		 ORDER BY id`,
		checksum, path,
	)
}

func (r documentRepo) GetMany(ctx context.Context, ids []uint32) ([]*model.Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	wide := make([]int64, len(ids))
	for i, id := range ids {
		wide[i] = int64(id)
	}
	return r.list(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = ANY($1) ORDER BY id`,
		pq.Array(wide),
	)
}

func (r documentRepo) list(ctx context.Context, query string, args ...any) ([]*model.Document, error) {
	var docs []*model.Document
	err := r.s.read(ctx, func(q querier) error {
		rows, err := q.QueryContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("querying documents: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var (
				d  model.Document
				id int64
			)
			if err := rows.Scan(&id, &d.Checksum, &d.Path, &d.TokenCount, &d.OpenCount,
				&d.RatingSum, &d.RatingCount, &d.ModifiedAt); err != nil {
				return fmt.Errorf("scanning document row: %w", err)
			}
			d.ID = uint32(id)
			docs = append(docs, &d)
		}
		return rows.Err()
	})
	return docs, err
}

func (r documentRepo) IDs(ctx context.Context) (*roaring.Bitmap, error) {
	return r.s.bitmap(ctx, `SELECT id FROM documents`)
}

func (r documentRepo) Count(ctx context.Context) (int, error) {
	return r.s.scalar(ctx, `SELECT COUNT(*) FROM documents`)
}

func (r documentRepo) MaxOpenCount(ctx context.Context) (int, error) {
	return r.s.scalar(ctx, `SELECT COALESCE(MAX(open_count), 0) FROM documents`)
}

func (r documentRepo) OldestModification(ctx context.Context) (time.Time, bool, error) {
	var oldest sql.NullTime
	err := r.s.read(ctx, func(q querier) error {
		return q.QueryRowContext(ctx, `SELECT MIN(modified_at) FROM documents`).Scan(&oldest)
	})
	if err != nil {
		return time.Time{}, false, fmt.Errorf("querying oldest modification: %w", err)
	}
	return oldest.Time, oldest.Valid, nil
}

type occurrenceRepo struct{ s *Store }

func (r occurrenceRepo) Get(ctx context.Context, tokenID, documentID uint32) (*model.Occurrence, error) {
	occs, err := r.list(ctx,
		`SELECT token_id, document_id, count, density, position_average, position_median,
		        position_variance, steepness, positions
		 FROM occurrences WHERE token_id = $1 AND document_id = $2`,
		int64(tokenID), int64(documentID),
	)
	if err != nil || len(occs) == 0 {
		return nil, err
	}
	return occs[0], nil
}

func (r occurrenceRepo) Insert(ctx context.Context, occ *model.Occurrence) error {
	positions, err := model.EncodePositions(occ.Positions)
	if err != nil {
		return err
	}
	return r.s.write(ctx, func(q querier) error {
		_, err := q.ExecContext(ctx,
			`INSERT INTO occurrences (token_id, document_id, count, density, position_average,
			                          position_median, position_variance, steepness, positions)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			int64(occ.TokenID), int64(occ.DocumentID), occ.Count, occ.Density, occ.PositionAverage,
			occ.PositionMedian, occ.PositionVariance, occ.Steepness, positions,
		)
		if err != nil {
			return fmt.Errorf("inserting occurrence of token %d in document %d: %w", occ.TokenID, occ.DocumentID, err)
		}
		return nil
	})
}

func (r occurrenceRepo) DeleteByDocument(ctx context.Context, documentID uint32) ([]uint32, error) {
	var removed []uint32
	err := r.s.write(ctx, func(q querier) error {
		rows, err := q.QueryContext(ctx,
			`DELETE FROM occurrences WHERE document_id = $1 RETURNING token_id`,
			int64(documentID),
		)
		if err != nil {
			return fmt.Errorf("deleting occurrences of document %d: %w", documentID, err)
		}
		defer rows.Close()
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				return fmt.Errorf("scanning deleted token id: %w", err)
			}
			removed = append(removed, uint32(id))
		}
		return rows.Err()
	})
	return removed, err
}

func (r occurrenceRepo) ByDocument(ctx context.Context, documentID uint32) ([]*model.Occurrence, error) {
	return r.list(ctx,
		`SELECT token_id, document_id, count, density, position_average, position_median,
		        position_variance, steepness, positions
		 FROM occurrences WHERE document_id = $1 ORDER BY token_id`,
		int64(documentID),
	)
}

func (r occurrenceRepo) list(ctx context.Context, query string, args ...any) ([]*model.Occurrence, error) {
	var occs []*model.Occurrence
	err := r.s.read(ctx, func(q querier) error {
		rows, err := q.QueryContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("querying occurrences: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var (
				o              model.Occurrence
				tokenID, docID int64
				positions      []byte
			)
			if err := rows.Scan(&tokenID, &docID, &o.Count, &o.Density, &o.PositionAverage,
				&o.PositionMedian, &o.PositionVariance, &o.Steepness, &positions); err != nil {
				return fmt.Errorf("scanning occurrence row: %w", err)
			}
			o.TokenID, o.DocumentID = uint32(tokenID), uint32(docID)
			if o.Positions, err = model.DecodePositions(positions); err != nil {
				return err
			}
			occs = append(occs, &o)
		}
		return rows.Err()
	})
	return occs, err
}

func (r occurrenceRepo) Documents(ctx context.Context, tokenID uint32) (*roaring.Bitmap, error) {
	return r.s.bitmap(ctx, `SELECT document_id FROM occurrences WHERE token_id = $1`, int64(tokenID))
}

func (r occurrenceRepo) TotalCount(ctx context.Context, tokenID uint32) (int, error) {
	return r.s.scalar(ctx, `SELECT COALESCE(SUM(count), 0) FROM occurrences WHERE token_id = $1`, int64(tokenID))
}

type wordRepo struct{ s *Store }

func (r wordRepo) Add(ctx context.Context, kind model.WordKind, word string) error {
	return r.s.write(ctx, func(q querier) error {
		_, err := q.ExecContext(ctx,
			`INSERT INTO words (kind, word) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			int(kind), word,
		)
		if err != nil {
			return fmt.Errorf("adding %s word %q: %w", kind, word, err)
		}
		return nil
	})
}

func (r wordRepo) Remove(ctx context.Context, kind model.WordKind, word string) error {
	return r.s.write(ctx, func(q querier) error {
		_, err := q.ExecContext(ctx, `DELETE FROM words WHERE kind = $1 AND word = $2`, int(kind), word)
		if err != nil {
			return fmt.Errorf("removing %s word %q: %w", kind, word, err)
		}
		return nil
	})
}

func (r wordRepo) List(ctx context.Context, kind model.WordKind) ([]string, error) {
	var words []string
	err := r.s.read(ctx, func(q querier) error {
		rows, err := q.QueryContext(ctx,
			`SELECT word FROM words WHERE kind = $1 ORDER BY word COLLATE "C"`, int(kind))
		if err != nil {
			return fmt.Errorf("listing %s words: %w", kind, err)
		}
		defer rows.Close()
		for rows.Next() {
			var w string
			if err := rows.Scan(&w); err != nil {
				return fmt.Errorf("scanning word row: %w", err)
			}
			words = append(words, w)
		}
		return rows.Err()
	})
	return words, err
}

type queryRepo struct{ s *Store }

func (r queryRepo) Increment(ctx context.Context, query string) (int, error) {
	var n int
	err := r.s.write(ctx, func(q querier) error {
		err := q.QueryRowContext(ctx,
			`INSERT INTO frequent_queries (query, search_count) VALUES ($1, 1)
			 ON CONFLICT (query) DO UPDATE SET search_count = frequent_queries.search_count + 1
			 RETURNING search_count`,
			query,
		).Scan(&n)
		if err != nil {
			return fmt.Errorf("recording query %q: %w", query, err)
		}
		return nil
	})
	return n, err
}

func (r queryRepo) Get(ctx context.Context, query string) (*model.FrequentQuery, error) {
	var fq *model.FrequentQuery
	err := r.s.read(ctx, func(q querier) error {
		var n int
		err := q.QueryRowContext(ctx,
			`SELECT search_count FROM frequent_queries WHERE query = $1`, query,
		).Scan(&n)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("querying frequent query %q: %w", query, err)
		}
		fq = &model.FrequentQuery{Query: query, SearchCount: n}
		return nil
	})
	return fq, err
}

func (r queryRepo) Count(ctx context.Context) (int, error) {
	return r.s.scalar(ctx, `SELECT COUNT(*) FROM frequent_queries`)
}

func (r queryRepo) DeleteLowest(ctx context.Context, n int) (int, error) {
	if n <= 0 {
		return 0, nil
	}
	var removed int64
	err := r.s.write(ctx, func(q querier) error {
		res, err := q.ExecContext(ctx,
			`DELETE FROM frequent_queries WHERE query IN (
			     SELECT query FROM frequent_queries
			     ORDER BY search_count ASC, query COLLATE "C" ASC
			     LIMIT $1
			 )`,
			n,
		)
		if err != nil {
			return fmt.Errorf("pruning frequent queries: %w", err)
		}
		removed, err = res.RowsAffected()
		return err
	})
	return int(removed), err
}

func (r queryRepo) Top(ctx context.Context, n int) ([]model.FrequentQuery, error) {
	var limit sql.NullInt64
	if n >= 0 {
		limit = sql.NullInt64{Int64: int64(n), Valid: true}
	}
	var out []model.FrequentQuery
	err := r.s.read(ctx, func(q querier) error {
		rows, err := q.QueryContext(ctx,
			`SELECT query, search_count FROM frequent_queries
			 ORDER BY search_count DESC, query COLLATE "C" ASC
			 LIMIT $1`,
			limit,
		)
		if err != nil {
			return fmt.Errorf("listing frequent queries: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var fq model.FrequentQuery
			if err := rows.Scan(&fq.Query, &fq.SearchCount); err != nil {
				return fmt.Errorf("scanning frequent query row: %w", err)
			}
			out = append(out, fq)
		}
		return rows.Err()
	})
	return out, err
}

func (r queryRepo) Clear(ctx context.Context) error {
	return r.s.write(ctx, func(q querier) error {
		if _, err := q.ExecContext(ctx, `DELETE FROM frequent_queries`); err != nil {
			return fmt.Errorf("clearing frequent queries: %w", err)
		}
		return nil
	})
}

func (s *Store) scalar(ctx context.Context, query string, args ...any) (int, error) {
	var n int64
	err := s.read(ctx, func(q querier) error {
		return q.QueryRowContext(ctx, query, args...).Scan(&n)
	})
	if err != nil {
		return 0, fmt.Errorf("querying scalar: %w", err)
	}
	return int(n), nil
}

func (s *Store) bitmap(ctx context.Context, query string, args ...any) (*roaring.Bitmap, error) {
	bm := roaring.New()
	err := s.read(ctx, func(q querier) error {
		rows, err := q.QueryContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("querying id set: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				return fmt.Errorf("scanning id: %w", err)
			}
			bm.Add(uint32(id))
		}
		return rows.Err()
	})
	return bm, err
}

func expectRow(res sql.Result, entity string, id uint32) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %d not found", entity, id)
	}
	return nil
}
