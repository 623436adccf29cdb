package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the subset of a pgx pool, connection or transaction the
// PostgresStore needs.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const (
	pgSelectLive = `SELECT token_hash FROM refresh_sessions WHERE subject = $1 AND expires_at > $2`

	pgIsAbsent = `SELECT NOT EXISTS (SELECT 1 FROM refresh_sessions WHERE subject = $1 AND expires_at > $2)`

	pgUpsert = `INSERT INTO refresh_sessions (subject, token_hash, expires_at, updated_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (subject) DO UPDATE
SET token_hash = EXCLUDED.token_hash, expires_at = EXCLUDED.expires_at, updated_at = EXCLUDED.updated_at`

	pgInsertIfAbsent = pgUpsert + `
WHERE refresh_sessions.expires_at <= EXCLUDED.updated_at`

	pgReplaceIfEqual = `UPDATE refresh_sessions
SET token_hash = $3, expires_at = $4, updated_at = $5
WHERE subject = $1 AND token_hash = $2 AND expires_at > $5`

	pgDeleteAll = `DELETE FROM refresh_sessions WHERE subject = $1`

	pgDeleteIfEqual = `DELETE FROM refresh_sessions WHERE subject = $1 AND token_hash = $2 AND expires_at > $3`
)

// farFuture stands in for "no expiry" so every query can compare expires_at.
var farFuture = time.Date(9999, time.December, 31, 0, 0, 0, 0, time.UTC)

// PostgresStore keeps one refresh_sessions row per subject. Each swap is a
// single conditional statement, so row locking provides the atomicity.
type PostgresStore struct {
	db  DBTX
	ttl time.Duration
	now func() time.Time
}

// NewPostgresStore returns a store over db. Rows expire after ttl; a non
// positive ttl keeps them until replaced.
func NewPostgresStore(db DBTX, ttl time.Duration) *PostgresStore {
	return &PostgresStore{db: db, ttl: ttl, now: time.Now}
}

// WithClock replaces the expiry clock and returns the store.
func (s *PostgresStore) WithClock(now func() time.Time) *PostgresStore {
	if now != nil {
		s.now = now
	}
	return s
}

// Get implements Store. Expired rows read as Absent.
func (s *PostgresStore) Get(ctx context.Context, subject string) (Value, error) {
	if subject == "" {
		return Absent, ErrInvalidSubject
	}
	var token string
	err := s.db.QueryRow(ctx, pgSelectLive, subject, s.now().UTC()).Scan(&token)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Absent, nil
		}
		return Absent, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return Present(token), nil
}

// SetIfMatches implements Store.
func (s *PostgresStore) SetIfMatches(ctx context.Context, subject string, expected Expectation, next Value) (bool, error) {
	if subject == "" {
		return false, ErrInvalidSubject
	}

	now := s.now().UTC()
	expiresAt := farFuture
	if s.ttl > 0 {
		expiresAt = now.Add(s.ttl)
	}

	switch {
	case expected.IsAny() && next.Valid:
		return s.exec(ctx, true, pgUpsert, subject, next.Token, expiresAt, now)
	case expected.IsAny():
		return s.exec(ctx, true, pgDeleteAll, subject)
	case !expected.Value().Valid && next.Valid:
		return s.exec(ctx, false, pgInsertIfAbsent, subject, next.Token, expiresAt, now)
	case !expected.Value().Valid:
		var absent bool
		if err := s.db.QueryRow(ctx, pgIsAbsent, subject, now).Scan(&absent); err != nil {
			return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return absent, nil
	case next.Valid:
		return s.exec(ctx, false, pgReplaceIfEqual, subject, expected.Value().Token, next.Token, expiresAt, now)
	default:
		return s.exec(ctx, false, pgDeleteIfEqual, subject, expected.Value().Token, now)
	}
}

// exec runs a write and reports whether it swapped. Unconditional writes
// always swap; conditional ones swap when they touched exactly one row.
func (s *PostgresStore) exec(ctx context.Context, unconditional bool, sql string, args ...any) (bool, error) {
	tag, err := s.db.Exec(ctx, sql, args...)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if unconditional {
		return true, nil
	}
	return tag.RowsAffected() == 1, nil
}
