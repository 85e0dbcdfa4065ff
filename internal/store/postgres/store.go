// Package postgres implements store.Store on PostgreSQL through lib/pq.
//
// Writes are held in one pending transaction that Commit flushes. Reads issued
// while a transaction is pending run inside it, so the writer observes its own
// uncommitted rows. Every statement on the pending transaction runs under a
// savepoint so a failed one does not abort it.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/textindex/internal/store"
	pgclient "github.com/Adithya-Monish-Kumar-K/textindex/pkg/postgres"
)

// scanBatch is how many tokens Scan fetches per round trip.
const scanBatch = 500

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store is a PostgreSQL-backed store.Store.
type Store struct {
	client *pgclient.Client
	logger *slog.Logger

	mu sync.Mutex
	tx *sql.Tx
}

// New wraps an open client. The schema is created by EnsureSchema.
func New(client *pgclient.Client) *Store {
	return &Store{
		client: client,
		logger: slog.Default().With("component", "postgres-store"),
	}
}

func (s *Store) Tokens() store.TokenRepository                   { return tokenRepo{s} }
func (s *Store) Documents() store.DocumentRepository             { return documentRepo{s} }
func (s *Store) Occurrences() store.OccurrenceRepository         { return occurrenceRepo{s} }
func (s *Store) Words() store.WordRepository                     { return wordRepo{s} }
func (s *Store) FrequentQueries() store.FrequentQueryRepository { return queryRepo{s} }

// read runs fn against the pending transaction when there is one and against
// the pool otherwise. Inside the transaction it runs under a savepoint, so a
// failed read leaves the pending writes usable.
func (s *Store) read(ctx context.Context, fn func(q querier) error) error {
	s.mu.Lock()
	if s.tx == nil {
		s.mu.Unlock()
		return fn(s.client.DB)
	}
	defer s.mu.Unlock()
	return s.savepoint(ctx, fn)
}

// write runs fn inside the pending transaction, opening one if needed.
func (s *Store) write(ctx context.Context, fn func(q querier) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tx == nil {
		// The transaction outlives the request that opened it.
		tx, err := s.client.DB.BeginTx(context.WithoutCancel(ctx), s.client.TxOptions())
		if err != nil {
			return fmt.Errorf("beginning transaction: %w", err)
		}
		s.tx = tx
	}
	return s.savepoint(ctx, fn)
}

// savepoint runs fn on the pending transaction and rolls back to the
// savepoint when fn fails. The caller holds s.mu.
func (s *Store) savepoint(ctx context.Context, fn func(q querier) error) error {
	if _, err := s.tx.ExecContext(ctx, `SAVEPOINT pending_statement`); err != nil {
		return fmt.Errorf("creating savepoint: %w", err)
	}
	if err := fn(s.tx); err != nil {
		if _, rbErr := s.tx.ExecContext(context.WithoutCancel(ctx), `ROLLBACK TO SAVEPOINT pending_statement`); rbErr != nil {
			return fmt.Errorf("rolling back to savepoint after error %v: %w", rbErr, err)
		}
		return err
	}
	if _, err := s.tx.ExecContext(ctx, `RELEASE SAVEPOINT pending_statement`); err != nil {
		return fmt.Errorf("releasing savepoint: %w", err)
	}
	return nil
}

// Commit flushes the pending transaction. It is a no-op when nothing is
// pending.
func (s *Store) Commit(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tx == nil {
		return nil
	}
	tx := s.tx
	s.tx = nil
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing pending writes: %w", err)
	}
	s.logger.Debug("pending writes committed")
	return nil
}

func (s *Store) rollback() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tx == nil {
		return
	}
	if err := s.tx.Rollback(); err != nil {
		s.logger.Warn("rolling back pending writes", "error", err)
	}
	s.tx = nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx)
}

// EnsureSchema creates any missing tables and indexes.
func (s *Store) EnsureSchema(ctx context.Context) error {
	err := s.client.InTx(ctx, func(tx *sql.Tx) error {
		for _, stmt := range schema {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("executing %q: %w", firstLine(stmt), err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("ensuring schema: %w", err)
	}
	return nil
}

// Reset discards pending writes and drops every table.
func (s *Store) Reset(ctx context.Context) error {
	s.rollback()
	if _, err := s.client.DB.ExecContext(ctx, dropSchema); err != nil {
		return fmt.Errorf("dropping schema: %w", err)
	}
	s.logger.Info("schema dropped")
	return nil
}

// Close discards pending writes and closes the pool.
func (s *Store) Close() error {
	s.rollback()
	return s.client.Close()
}

func firstLine(stmt string) string {
	for i, r := range stmt {
		if r == '\n' {
			return stmt[:i]
		}
	}
	return stmt
}
