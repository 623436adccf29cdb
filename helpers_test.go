package pairauth

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

const testPasswordPlain = "correct-password-123"

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Unix(1_700_000_000, 0).UTC()}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// plainVerifier accepts "plain:<password>" hashes so engine tests skip argon2.
type plainVerifier struct {
	err error
}

func (v plainVerifier) Verify(password, encodedHash string) (bool, error) {
	if v.err != nil {
		return false, v.err
	}
	return encodedHash == "plain:"+password, nil
}

type mockUserProvider struct {
	mu           sync.Mutex
	users        map[string]UserRecord
	byIdentifier map[string]string
	err          error

	getByIdentifierCalls int
	getByIDCalls         int
}

func newMockUserProvider() *mockUserProvider {
	up := &mockUserProvider{
		users:        map[string]UserRecord{},
		byIdentifier: map[string]string{},
	}
	up.put(UserRecord{
		UserID:       "u1",
		Username:     "alice",
		Email:        "alice@example.com",
		FullName:     "Alice",
		PasswordHash: "plain:" + testPasswordPlain,
		CreatedAt:    time.Unix(1_690_000_000, 0).UTC(),
	})
	up.put(UserRecord{
		UserID:       "u2",
		Username:     "bob",
		Email:        "bob@example.com",
		PasswordHash: "plain:" + testPasswordPlain,
	})
	return up
}

func (p *mockUserProvider) put(u UserRecord) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.users[u.UserID] = u
	p.byIdentifier[strings.ToLower(u.Username)] = u.UserID
	p.byIdentifier[strings.ToLower(u.Email)] = u.UserID
}

func (p *mockUserProvider) remove(userID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.users, userID)
}

func (p *mockUserProvider) setErr(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

func (p *mockUserProvider) GetUserByIdentifier(_ context.Context, identifier string) (UserRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.getByIdentifierCalls++
	if p.err != nil {
		return UserRecord{}, p.err
	}
	id, ok := p.byIdentifier[strings.ToLower(identifier)]
	if !ok {
		return UserRecord{}, ErrUserNotFound
	}
	u, ok := p.users[id]
	if !ok {
		return UserRecord{}, ErrUserNotFound
	}
	return u, nil
}

func (p *mockUserProvider) GetUserByID(_ context.Context, userID string) (UserRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.getByIDCalls++
	if p.err != nil {
		return UserRecord{}, p.err
	}
	u, ok := p.users[userID]
	if !ok {
		return UserRecord{}, errors.Join(ErrUserNotFound, errors.New("deleted"))
	}
	return u, nil
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.AccessSecret = "test-access-secret"
	cfg.JWT.RefreshSecret = "test-refresh-secret"
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true
	return cfg
}

func newTestRedis(t testing.TB) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return mr, rdb
}

type testHarness struct {
	engine *Engine
	mr     *miniredis.Miniredis
	users  *mockUserProvider
	clock  *testClock
	logs   *syncBuffer
}

// syncBuffer collects log output written from concurrent requests.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestEngine(t testing.TB, cfg Config, configure ...func(*Builder)) *testHarness {
	t.Helper()

	mr, rdb := newTestRedis(t)
	h := &testHarness{
		mr:    mr,
		users: newMockUserProvider(),
		clock: newTestClock(),
		logs:  &syncBuffer{},
	}
	logger := slog.New(slog.NewTextHandler(h.logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	b := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserProvider(h.users).
		WithCredentialVerifier(plainVerifier{}).
		WithLogger(logger).
		WithClock(h.clock.Now)
	for _, fn := range configure {
		fn(b)
	}

	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	h.engine = engine
	return h
}

func (h *testHarness) login(t testing.TB, identifier string) *LoginResult {
	t.Helper()
	res, err := h.engine.Login(context.Background(), LoginRequest{Identifier: identifier, Password: testPasswordPlain})
	if err != nil {
		t.Fatalf("login %s failed: %v", identifier, err)
	}
	return res
}

func requireKind(t *testing.T, err error, want ErrorKind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %v error, got nil", want)
	}
	if got := KindOf(err); got != want {
		t.Fatalf("expected kind %v, got %v (%v)", want, got, err)
	}
}
