package identity

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/pairauth"
)

func seeded(t *testing.T) (*MemoryProvider, pairauth.UserRecord) {
	t.Helper()
	p := NewMemoryProvider()
	u, err := p.Put(pairauth.UserRecord{
		Username:     "Alice",
		Email:        "alice@example.com",
		FullName:     "Alice Liddell",
		PasswordHash: "hash",
	})
	require.NoError(t, err)
	return p, u
}

func TestMemoryProviderPutAssignsIDAndTimestamp(t *testing.T) {
	p := NewMemoryProvider()
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return fixed }

	u, err := p.Put(pairauth.UserRecord{Username: "bob", Email: "bob@example.com", PasswordHash: "h"})
	require.NoError(t, err)

	assert.Len(t, u.UserID, 26)
	assert.Equal(t, fixed, u.CreatedAt)

	kept, err := p.Put(pairauth.UserRecord{UserID: "fixed-id", Username: "carol", Email: "carol@example.com", PasswordHash: "h"})
	require.NoError(t, err)
	assert.Equal(t, "fixed-id", kept.UserID)
}

func TestMemoryProviderLookupByUsernameOrEmail(t *testing.T) {
	p, u := seeded(t)
	ctx := context.Background()

	for _, identifier := range []string{"alice", "ALICE", " Alice ", "alice@example.com", "Alice@Example.com"} {
		got, err := p.GetUserByIdentifier(ctx, identifier)
		require.NoError(t, err, identifier)
		assert.Equal(t, u.UserID, got.UserID, identifier)
	}

	got, err := p.GetUserByID(ctx, u.UserID)
	require.NoError(t, err)
	assert.Equal(t, "Alice Liddell", got.FullName)
}

func TestMemoryProviderMissReturnsUserNotFound(t *testing.T) {
	p, _ := seeded(t)
	ctx := context.Background()

	_, err := p.GetUserByIdentifier(ctx, "mallory")
	assert.ErrorIs(t, err, pairauth.ErrUserNotFound)

	_, err = p.GetUserByID(ctx, "missing")
	assert.ErrorIs(t, err, pairauth.ErrUserNotFound)
}

func TestMemoryProviderRejectsDuplicatesAndIncompleteRecords(t *testing.T) {
	p, _ := seeded(t)

	_, err := p.Put(pairauth.UserRecord{Username: "alice", Email: "other@example.com", PasswordHash: "h"})
	assert.ErrorIs(t, err, ErrDuplicateUser)

	_, err = p.Put(pairauth.UserRecord{Username: "other", Email: "ALICE@example.com", PasswordHash: "h"})
	assert.ErrorIs(t, err, ErrDuplicateUser)

	_, err = p.Put(pairauth.UserRecord{Username: "", Email: "x@example.com", PasswordHash: "h"})
	assert.Error(t, err)

	_, err = p.Put(pairauth.UserRecord{Username: "x", Email: "x@example.com"})
	assert.Error(t, err)
}

func TestMemoryProviderDelete(t *testing.T) {
	p, u := seeded(t)
	p.Delete(u.UserID)
	p.Delete(u.UserID)

	_, err := p.GetUserByID(context.Background(), u.UserID)
	assert.ErrorIs(t, err, pairauth.ErrUserNotFound)

	_, err = p.Put(pairauth.UserRecord{Username: "alice", Email: "alice@example.com", PasswordHash: "h"})
	assert.NoError(t, err, "username is free again after delete")
}

func TestMemoryProviderHonoursCanceledContext(t *testing.T) {
	p, u := seeded(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.GetUserByID(ctx, u.UserID)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMemoryProviderUsernameWinsOverEmail(t *testing.T) {
	p := NewMemoryProvider()
	owner, err := p.Put(pairauth.UserRecord{Username: "dave", Email: "shared@example.com", PasswordHash: "h"})
	require.NoError(t, err)
	squatter, err := p.Put(pairauth.UserRecord{Username: "Shared@Example.com", Email: "eve@example.com", PasswordHash: "h"})
	require.NoError(t, err)

	u, err := p.GetUserByIdentifier(context.Background(), "shared@example.com")
	require.NoError(t, err)
	assert.Equal(t, squatter.UserID, u.UserID)

	u, err = p.GetUserByIdentifier(context.Background(), "dave")
	require.NoError(t, err)
	assert.Equal(t, owner.UserID, u.UserID)
}
