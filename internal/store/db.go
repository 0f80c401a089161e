// Package store is the Postgres access layer. It is the only shared
// mutable state between pipeline stages: single-writer claims use
// row-level locks with skip-locked semantics, idempotent writes carry a
// unique key with conflict-do-nothing.
package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/evafinance/evacore/internal/config"
	"github.com/evafinance/evacore/internal/errs"
)

// Store wraps the connection pool with per-call timeouts.
type Store struct {
	db      *sqlx.DB
	timeout time.Duration
	retry   errs.Backoff
}

// New wraps an existing pool. Used directly by tests with sqlmock.
func New(db *sqlx.DB, timeout time.Duration) *Store {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Store{db: db, timeout: timeout, retry: errs.DefaultBackoff}
}

// Connect opens the pool described by cfg and verifies connectivity.
func Connect(ctx context.Context, cfg config.DatabaseConfig) (*Store, error) {
	db, err := sqlx.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, errs.StorePermanent("store.connect", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, errs.StoreTransient("store.ping", err)
	}
	return New(db, cfg.QueryTimeout), nil
}

// Close releases the pool.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying pool for health checks.
func (s *Store) DB() *sqlx.DB { return s.db }

func (s *Store) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

// withTx runs fn inside a transaction, committing on nil error. The
// transaction never spans an external HTTP call.
func (s *Store) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return classify("store.begin", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return classify("store.commit", err)
	}
	return nil
}

// classify maps driver errors onto the pipeline error taxonomy.
// Serialization failures and lost connections are retryable; constraint
// and schema violations are fatal to the calling task.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return err
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, context.DeadlineExceeded) {
		return errs.StoreTransient(op, err)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "40001", "40P01": // serialization failure, deadlock detected
			return errs.StoreTransient(op, err)
		}
		switch pqErr.Code.Class() {
		case "08": // connection exceptions
			return errs.StoreTransient(op, err)
		case "23", "42": // integrity constraint, syntax/schema
			return errs.StorePermanent(op, err)
		}
	}
	return errs.StoreTransient(op, err)
}

// IsUniqueViolation reports whether err is a Postgres unique violation.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// RetryTx runs fn through withTx, retrying store-transient failures on
// the store's backoff schedule. Permanent failures surface immediately.
// fn must be restartable: it runs from the top on every attempt.
func (s *Store) RetryTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	var lastErr error
	backoff := s.retry
	for attempt := 0; ; attempt++ {
		lastErr = s.withTx(ctx, fn)
		if lastErr == nil || errs.KindOf(lastErr) != errs.KindStoreTransient {
			return lastErr
		}
		if attempt >= backoff.Retries {
			return lastErr
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("retry aborted: %w", ctx.Err())
		case <-time.After(backoff.Delay(attempt)):
		}
	}
}
