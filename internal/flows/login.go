package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/pairauth/session"
)

// LoginFailureKind classifies login failures for root-level mapping.
type LoginFailureKind int

const (
	LoginFailureNone LoginFailureKind = iota
	LoginFailureUnknownIdentifier
	LoginFailureBadPassword
	LoginFailureLookup
	LoginFailureVerify
	LoginFailureIssue
	LoginFailurePersist
)

// LoginUser is the slice of a user record the login flow needs. Record
// carries the caller's full user value through unchanged.
type LoginUser struct {
	UserID       string
	PasswordHash string
	Record       any
}

// LoginDeps captures login flow dependencies.
type LoginDeps struct {
	LookupUser     func(ctx context.Context, identifier string) (LoginUser, error)
	UserNotFound   error
	VerifyPassword func(password, encodedHash string) (bool, error)
	IssuePair      func(subject string) (IssuedPair, error)
	Fingerprint    func(token string) string
	SessionStore   SessionStore
}

// LoginResult carries either the issued pair or failure metadata.
type LoginResult struct {
	Failure  LoginFailureKind
	Err      error
	User     LoginUser
	Pair     IssuedPair
	Replaced bool
}

// RunLogin authenticates identifier/password and installs a fresh refresh
// value for the user, replacing any live one.
func RunLogin(ctx context.Context, identifier, password string, deps LoginDeps) LoginResult {
	user, err := deps.LookupUser(ctx, identifier)
	if err != nil {
		if deps.UserNotFound != nil && errors.Is(err, deps.UserNotFound) {
			return LoginResult{Failure: LoginFailureUnknownIdentifier, Err: err}
		}
		return LoginResult{Failure: LoginFailureLookup, Err: err}
	}

	ok, err := deps.VerifyPassword(password, user.PasswordHash)
	if err != nil {
		return LoginResult{Failure: LoginFailureVerify, Err: err, User: user}
	}
	if !ok {
		return LoginResult{Failure: LoginFailureBadPassword, User: user}
	}

	pair, err := deps.IssuePair(user.UserID)
	if err != nil {
		return LoginResult{Failure: LoginFailureIssue, Err: err, User: user}
	}

	// The prior value only feeds the Replaced flag; the write below does not
	// depend on it.
	prior, err := deps.SessionStore.Get(ctx, user.UserID)
	if err != nil {
		return LoginResult{Failure: LoginFailurePersist, Err: err, User: user}
	}

	if _, err := deps.SessionStore.SetIfMatches(
		ctx,
		user.UserID,
		session.ExpectAny(),
		session.Present(deps.Fingerprint(pair.RefreshToken)),
	); err != nil {
		return LoginResult{Failure: LoginFailurePersist, Err: err, User: user}
	}

	return LoginResult{User: user, Pair: pair, Replaced: prior.Valid}
}
