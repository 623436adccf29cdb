package session

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
)

// ErrUnavailable wraps every infrastructure failure of a Store backend.
var ErrUnavailable = errors.New("session store unavailable")

// ErrInvalidSubject is returned for an empty subject.
var ErrInvalidSubject = errors.New("session subject is required")

// Value is the nullable refresh-token value stored for a subject.
type Value struct {
	Token string
	Valid bool
}

// Absent is the empty Value.
var Absent = Value{}

// Present wraps token as a stored Value.
func Present(token string) Value {
	return Value{Token: token, Valid: true}
}

// Equal reports value equality, treating every absent Value as equal.
func (v Value) Equal(other Value) bool {
	if !v.Valid || !other.Valid {
		return v.Valid == other.Valid
	}
	return v.Token == other.Token
}

// Expectation is the precondition of a SetIfMatches call.
type Expectation struct {
	any   bool
	value Value
}

// ExpectAny matches whatever is stored, including nothing.
func ExpectAny() Expectation {
	return Expectation{any: true}
}

// Expect matches only when the stored value equals v. Expect(Absent) matches
// only when nothing is stored.
func Expect(v Value) Expectation {
	return Expectation{value: v}
}

// IsAny reports whether e matches every stored state.
func (e Expectation) IsAny() bool {
	return e.any
}

// Value returns the expected value of a non-any expectation.
func (e Expectation) Value() Value {
	return e.value
}

// Matches reports whether current satisfies e.
func (e Expectation) Matches(current Value) bool {
	return e.any || e.value.Equal(current)
}

// Store is the persistence contract for refresh-token values.
type Store interface {
	// Get returns the stored value for subject, or Absent.
	Get(ctx context.Context, subject string) (Value, error)
	// SetIfMatches atomically replaces the stored value with next when the
	// current value satisfies expected. next == Absent clears the value.
	SetIfMatches(ctx context.Context, subject string, expected Expectation, next Value) (bool, error)
}

// Fingerprint returns the storage form of a refresh token: the unpadded
// base64url SHA-256 digest. Equal tokens have equal fingerprints.
func Fingerprint(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
