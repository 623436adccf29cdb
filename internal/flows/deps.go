package flows

import (
	"context"

	"github.com/MrEthical07/pairauth/session"
)

// Deps aggregates the dependency sets of every flow.
type Deps struct {
	Login   LoginDeps
	Refresh RefreshDeps
	Logout  LogoutDeps
}

// SessionStore is the persistence contract shared by all flows.
type SessionStore interface {
	Get(ctx context.Context, subject string) (session.Value, error)
	SetIfMatches(ctx context.Context, subject string, expected session.Expectation, next session.Value) (bool, error)
}

// IssuedPair is a freshly signed access and refresh token.
type IssuedPair struct {
	AccessToken  string
	RefreshToken string
	// Opaque carries issuer-specific metadata (expiry times) back to the caller.
	Opaque any
}
