package identity

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/pairauth"
	"github.com/MrEthical07/pairauth/migrations"
)

func TestPostgresProviderIntegration(t *testing.T) {
	dsn := os.Getenv("PAIRAUTH_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("PAIRAUTH_TEST_DATABASE_URL not set; skipping postgres integration test")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, migrations.UpPool(ctx, pool))

	// Everything runs in one transaction that is rolled back, so other
	// packages sharing the database never see these rows.
	tx, err := pool.Begin(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tx.Rollback(context.Background()) })

	// The email of one user is the username of another; the squatter is
	// inserted first so insertion order cannot decide the match.
	_, err = tx.Exec(ctx, `INSERT INTO users (id, username, email, password_hash) VALUES
		('it-squatter', 'It-Shared@Example.com', 'it-eve@example.com', 'h'),
		('it-owner', 'it-dave', 'it-shared@example.com', 'h')`)
	require.NoError(t, err)

	p, err := NewPostgresProvider(tx)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		u, err := p.GetUserByIdentifier(ctx, "it-shared@example.com")
		require.NoError(t, err)
		assert.Equal(t, "it-squatter", u.UserID)
	}

	u, err := p.GetUserByIdentifier(ctx, "IT-DAVE")
	require.NoError(t, err)
	assert.Equal(t, "it-owner", u.UserID)

	_, err = p.GetUserByIdentifier(ctx, "it-nobody")
	assert.ErrorIs(t, err, pairauth.ErrUserNotFound)
}
