// Package store is the persistence layer: a single Postgres database behind
// a serialized-writer, concurrent-reader discipline. Read and Write both
// hand the caller a Queries handle bound to the right connection — Read runs
// directly against the pool, Write opens a transaction and commits iff the
// closure returns nil. The write mutex enforces a single logical writer at a
// time so that count-then-insert quota checks done inside Write never race,
// without requiring the database itself to serialize unrelated writes.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx, letting Queries run
// uniformly inside or outside a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store is the persistence layer handle. It owns the pool and a write mutex.
type Store struct {
	pool    *pgxpool.Pool
	writeMu sync.Mutex
}

// New wraps an existing pgxpool.Pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Pool exposes the underlying pool for callers that need their own
// connections outside the Read/Write discipline.
func (s *Store) Pool() *pgxpool.Pool { return s.pool }

// Queries returns a pool-bound Queries handle for callers that need one
// outside the Read/Write closures, such as the auth middleware's per-request
// super-admin lookup.
func (s *Store) Queries() *Queries { return &Queries{db: s.pool} }

// NewQueries builds a Queries handle against an arbitrary DBTX, letting
// callers outside this package (mainly tests) exercise query methods
// against a fake without a live pool.
func NewQueries(db DBTX) *Queries { return &Queries{db: db} }

// Read runs fn against the pool with no transaction — any number of readers
// may run concurrently.
func (s *Store) Read(ctx context.Context, fn func(ctx context.Context, q *Queries) error) error {
	return fn(ctx, &Queries{db: s.pool})
}

// Write serializes callers behind a mutex, then runs fn inside a
// transaction that commits if fn returns nil and rolls back otherwise.
func (s *Store) Write(ctx context.Context, fn func(ctx context.Context, q *Queries) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	if err := fn(ctx, &Queries{db: tx}); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && rbErr != pgx.ErrTxClosed {
			return fmt.Errorf("%w (rollback also failed: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Queries is a thin query handle bound to either the pool or an open
// transaction, following the db.New(conn).MethodName(ctx, Params) calling
// convention used throughout this codebase.
type Queries struct {
	db DBTX
}

// isUniqueViolation reports whether err is a Postgres unique-constraint
// violation (SQLSTATE 23505), the only substring/code inspection this layer
// does to distinguish Conflict from Internal at the boundary.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
