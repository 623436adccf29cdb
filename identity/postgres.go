package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/MrEthical07/pairauth"
)

// Querier is the subset of a pgx pool, connection or transaction the
// PostgresProvider needs.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const (
	pgUserColumns = `id, username, email, full_name, avatar_url, cover_image_url, password_hash, created_at`

	pgUserByIdentifier = `SELECT ` + pgUserColumns + `
FROM users
WHERE lower(username) = lower($1) OR lower(email) = lower($1)
ORDER BY (lower(username) = lower($1)) DESC
LIMIT 1`

	pgUserByID = `SELECT ` + pgUserColumns + ` FROM users WHERE id = $1`
)

// PostgresProvider reads users from the users table. The pool is owned by
// the caller.
type PostgresProvider struct {
	db Querier
}

func NewPostgresProvider(db Querier) (*PostgresProvider, error) {
	if db == nil {
		return nil, errors.New("identity: nil querier")
	}
	return &PostgresProvider{db: db}, nil
}

// GetUserByIdentifier matches username before email, like MemoryProvider,
// when one user's username is another user's email.
func (p *PostgresProvider) GetUserByIdentifier(ctx context.Context, identifier string) (pairauth.UserRecord, error) {
	return p.get(ctx, pgUserByIdentifier, normalize(identifier))
}

func (p *PostgresProvider) GetUserByID(ctx context.Context, userID string) (pairauth.UserRecord, error) {
	return p.get(ctx, pgUserByID, userID)
}

func (p *PostgresProvider) get(ctx context.Context, query string, arg string) (pairauth.UserRecord, error) {
	var u pairauth.UserRecord
	err := p.db.QueryRow(ctx, query, arg).Scan(
		&u.UserID,
		&u.Username,
		&u.Email,
		&u.FullName,
		&u.AvatarURL,
		&u.CoverImageURL,
		&u.PasswordHash,
		&u.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return pairauth.UserRecord{}, pairauth.ErrUserNotFound
	}
	if err != nil {
		return pairauth.UserRecord{}, fmt.Errorf("identity: query user: %w", err)
	}
	return u, nil
}
