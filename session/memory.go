package session

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	token     string
	expiresAt time.Time
}

// MemoryStore is an in-process Store guarded by a mutex.
type MemoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]memoryEntry
}

// NewMemoryStore returns an empty MemoryStore. Stored values expire after
// ttl; a non-positive ttl keeps them until replaced.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]memoryEntry),
	}
}

// WithClock replaces the expiry clock and returns the store.
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	if now != nil {
		s.now = now
	}
	return s
}

// Get implements Store.
func (s *MemoryStore) Get(ctx context.Context, subject string) (Value, error) {
	if err := ctx.Err(); err != nil {
		return Absent, err
	}
	if subject == "" {
		return Absent, ErrInvalidSubject
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentLocked(subject), nil
}

// SetIfMatches implements Store.
func (s *MemoryStore) SetIfMatches(ctx context.Context, subject string, expected Expectation, next Value) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if subject == "" {
		return false, ErrInvalidSubject
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !expected.Matches(s.currentLocked(subject)) {
		return false, nil
	}
	if !next.Valid {
		delete(s.entries, subject)
		return true, nil
	}

	entry := memoryEntry{token: next.Token}
	if s.ttl > 0 {
		entry.expiresAt = s.now().Add(s.ttl)
	}
	s.entries[subject] = entry
	return true, nil
}

// Len returns the number of live values.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for subject := range s.entries {
		if s.currentLocked(subject).Valid {
			n++
		}
	}
	return n
}

func (s *MemoryStore) currentLocked(subject string) Value {
	entry, ok := s.entries[subject]
	if !ok {
		return Absent
	}
	if !entry.expiresAt.IsZero() && !s.now().Before(entry.expiresAt) {
		delete(s.entries, subject)
		return Absent
	}
	return Present(entry.token)
}
