package identity

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/MrEthical07/pairauth"
)

// ErrDuplicateUser is returned by Put when the username or email is taken.
var ErrDuplicateUser = errors.New("identity: username or email already exists")

// MemoryProvider is an in-memory UserProvider. It is safe for concurrent use.
type MemoryProvider struct {
	mu         sync.RWMutex
	byID       map[string]pairauth.UserRecord
	byUsername map[string]string
	byEmail    map[string]string
	now        func() time.Time
}

func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{
		byID:       make(map[string]pairauth.UserRecord),
		byUsername: make(map[string]string),
		byEmail:    make(map[string]string),
		now:        time.Now,
	}
}

// Put stores user and returns it with UserID and CreatedAt filled in. An
// empty UserID gets a new ULID.
func (p *MemoryProvider) Put(user pairauth.UserRecord) (pairauth.UserRecord, error) {
	username := normalize(user.Username)
	email := normalize(user.Email)
	if username == "" || email == "" {
		return pairauth.UserRecord{}, errors.New("identity: username and email are required")
	}
	if user.PasswordHash == "" {
		return pairauth.UserRecord{}, errors.New("identity: password hash is required")
	}

	now := p.now().UTC()
	if user.UserID == "" {
		id, err := ulid.New(ulid.Timestamp(now), rand.Reader)
		if err != nil {
			return pairauth.UserRecord{}, fmt.Errorf("identity: new id: %w", err)
		}
		user.UserID = id.String()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.byID[user.UserID]; ok {
		return pairauth.UserRecord{}, ErrDuplicateUser
	}
	if _, ok := p.byUsername[username]; ok {
		return pairauth.UserRecord{}, ErrDuplicateUser
	}
	if _, ok := p.byEmail[email]; ok {
		return pairauth.UserRecord{}, ErrDuplicateUser
	}

	p.byID[user.UserID] = user
	p.byUsername[username] = user.UserID
	p.byEmail[email] = user.UserID
	return user, nil
}

// Delete removes a user. Refresh tokens issued to it then fail with
// KindUnknownSubject.
func (p *MemoryProvider) Delete(userID string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	user, ok := p.byID[userID]
	if !ok {
		return
	}
	delete(p.byID, userID)
	delete(p.byUsername, normalize(user.Username))
	delete(p.byEmail, normalize(user.Email))
}

func (p *MemoryProvider) GetUserByIdentifier(ctx context.Context, identifier string) (pairauth.UserRecord, error) {
	if err := ctx.Err(); err != nil {
		return pairauth.UserRecord{}, err
	}

	key := normalize(identifier)

	p.mu.RLock()
	defer p.mu.RUnlock()

	id, ok := p.byUsername[key]
	if !ok {
		id, ok = p.byEmail[key]
	}
	if !ok {
		return pairauth.UserRecord{}, pairauth.ErrUserNotFound
	}
	return p.byID[id], nil
}

func (p *MemoryProvider) GetUserByID(ctx context.Context, userID string) (pairauth.UserRecord, error) {
	if err := ctx.Err(); err != nil {
		return pairauth.UserRecord{}, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	user, ok := p.byID[userID]
	if !ok {
		return pairauth.UserRecord{}, pairauth.ErrUserNotFound
	}
	return user, nil
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
