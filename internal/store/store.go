// Package store provides the shared persistence primitives used by every
// domain package: the narrow DBTX interface that lets store types operate
// either against the pool or an open transaction, a transaction helper that
// enforces SERIALIZABLE isolation for loan and stock mutations, the
// offset-pagination helpers shared by list endpoints, and a sort allow-list
// helper (SortSpec). The list queries in this module use fixed ORDER BY
// clauses and do not call SortSpec.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// maxSerializableAttempts bounds retries of a SERIALIZABLE transaction that
// loses a write-write race to 3 (§4.10: "retries up to a small bounded
// number of times (≤ 3)").
const maxSerializableAttempts = 4

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx, letting store types
// accept either a pooled connection or an open transaction without knowing
// which one they got.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store wraps the connection pool and exposes transaction helpers. Domain
// stores embed the pool or an active tx through DBTX; Store itself is only
// used to start new transactions.
type Store struct {
	Pool *pgxpool.Pool
}

// New wraps a connection pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{Pool: pool}
}

// InTransaction runs fn inside a transaction at the given isolation level,
// committing on success and rolling back on error or panic. Loan lifecycle
// transitions and stock reservation/release must use pgx.Serializable so
// concurrent loans against the same stock item are ordered safely; most
// other mutations use pgx.ReadCommitted.
func (s *Store) InTransaction(ctx context.Context, isoLevel pgx.TxIsoLevel, fn func(ctx context.Context, tx pgx.Tx) error) (err error) {
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: isoLevel})
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		err = tx.Commit(ctx)
	}()

	err = fn(ctx, tx)
	return err
}

// RetrySerializable runs fn inside a pgx.Serializable transaction, retrying
// with jittered exponential backoff (5-40ms) up to maxSerializableAttempts
// when the transaction loses a write-write race (SQLSTATE 40001). Used by
// every operation that mutates a contended StockItem or AssetItem row: the
// stock reservation engine (C10) and the loan lifecycle engine (C9), both of
// which may touch the same stock row as a concurrent sibling transaction.
// Any other error stops retrying immediately and is returned as-is. onRetry,
// if non-nil, is invoked once per serialization failure before the next
// attempt, letting callers record retry/conflict metrics without this
// package knowing about any particular domain's counters.
func (s *Store) RetrySerializable(ctx context.Context, onRetry func(err error), fn func(ctx context.Context, tx pgx.Tx) error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 5 * time.Millisecond
	bo.MaxInterval = 40 * time.Millisecond

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		txErr := s.InTransaction(ctx, pgx.Serializable, fn)
		if txErr == nil {
			return struct{}{}, nil
		}
		if IsSerializationFailure(txErr) {
			if onRetry != nil {
				onRetry(txErr)
			}
			return struct{}{}, txErr
		}
		return struct{}{}, backoff.Permanent(txErr)
	}, backoff.WithMaxTries(maxSerializableAttempts), backoff.WithBackOff(bo))
	return err
}

// IsSerializationFailure reports whether err is a Postgres serialization
// failure (SQLSTATE 40001), the error SERIALIZABLE transactions return when
// they lose a write-write race and must be retried.
func IsSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001"
	}
	return false
}

// IsUniqueViolation reports whether err is a Postgres unique-constraint
// violation (SQLSTATE 23505), optionally narrowed to a specific constraint
// name. Pass an empty constraint to match any unique violation.
func IsUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return constraint == "" || pgErr.ConstraintName == constraint
	}
	return false
}

// IsForeignKeyViolation reports whether err is a Postgres foreign-key
// violation (SQLSTATE 23503), used to translate a dangling reference into a
// 409 conflict instead of a generic 500.
func IsForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}
