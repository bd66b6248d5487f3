// Package kvstore provides the durable key-value store backing chatpad's
// application settings and per-session conversation history.
//
// Values are opaque JSON blobs keyed by string, with an optional
// time-to-live. Expired entries are invisible to readers and reaped
// opportunistically on write. The backend is PostgreSQL via pgx; callers
// depend on the small DB interface so unit tests can substitute fakes.
package kvstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/yuchingtsai/chatpad/internal/log"
)

var (
	// ErrNotFound indicates the key is absent or its entry has expired.
	ErrNotFound = errors.New("key not found")

	// ErrUnavailable indicates the store itself could not be reached.
	// Distinct from ErrNotFound so callers can degrade reads to defaults
	// without masking structural misconfiguration.
	ErrUnavailable = errors.New("key-value store unavailable")
)

// DB is the database surface the store needs. *pgxpool.Pool satisfies it.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store is a namespaced key-value store with TTL support.
// Safe for concurrent use; every operation is a single statement.
type Store struct {
	db     DB
	logger log.Logger
}

// New creates a Store on the given database handle.
func New(db DB, logger log.Logger) *Store {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Store{db: db, logger: logger}
}

// Get returns the value stored at key.
// Returns ErrNotFound when the key is absent or expired, and a wrapped
// ErrUnavailable for any other failure.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRow(ctx,
		`SELECT value FROM kv_entries
		 WHERE key = $1 AND (expires_at IS NULL OR expires_at > now())`,
		key,
	).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get %s: %v", ErrUnavailable, key, err)
	}
	return value, nil
}

// Put stores value at key, overwriting any previous entry.
// A positive ttl sets the expiry relative to now and is refreshed on every
// save; ttl <= 0 stores the entry without expiry.
func (s *Store) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	var expiresAt *time.Time
	if ttl > 0 {
		t := time.Now().Add(ttl)
		expiresAt = &t
	}

	_, err := s.db.Exec(ctx,
		`INSERT INTO kv_entries (key, value, expires_at, updated_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (key) DO UPDATE
		 SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at, updated_at = now()`,
		key, value, expiresAt,
	)
	if err != nil {
		return fmt.Errorf("%w: put %s: %v", ErrUnavailable, key, err)
	}

	s.reapExpired(ctx)
	return nil
}

// Delete removes the entry at key. Deleting an absent key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM kv_entries WHERE key = $1`, key)
	if err != nil {
		return fmt.Errorf("%w: delete %s: %v", ErrUnavailable, key, err)
	}
	return nil
}

// reapExpired deletes expired rows. Best effort: reads already filter on
// expires_at, so a failed reap only leaves garbage behind.
func (s *Store) reapExpired(ctx context.Context) {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM kv_entries WHERE expires_at IS NOT NULL AND expires_at <= now()`)
	if err != nil {
		s.logger.Warn("failed to reap expired kv entries", "error", err)
		return
	}
	if n := tag.RowsAffected(); n > 0 {
		s.logger.Debug("reaped expired kv entries", "count", n)
	}
}
