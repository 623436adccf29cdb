package flows

import (
	"context"
	"crypto/subtle"
	"errors"

	"github.com/MrEthical07/pairauth/session"
)

// RefreshFailureKind classifies refresh flow failures for root-level mapping.
type RefreshFailureKind int

const (
	RefreshFailureNone RefreshFailureKind = iota
	// RefreshFailureToken means the codec rejected the presented token.
	RefreshFailureToken
	RefreshFailureUnknownSubject
	RefreshFailureLookup
	RefreshFailureStoreRead
	// RefreshFailureNoSession means nothing is stored for the subject.
	RefreshFailureNoSession
	// RefreshFailureReuse means a different value is stored for the subject.
	RefreshFailureReuse
	// RefreshFailureRaceLost means the final swap found a changed value.
	RefreshFailureRaceLost
	RefreshFailureIssue
	RefreshFailureStoreWrite
)

// RefreshDeps captures refresh flow dependencies.
type RefreshDeps struct {
	VerifyRefresh func(token string) (subject string, err error)
	// LookupUser reports whether the subject still exists.
	LookupUser    func(ctx context.Context, subject string) error
	UserNotFound  error
	IssuePair     func(subject string) (IssuedPair, error)
	Fingerprint   func(token string) string
	SessionStore  SessionStore
	RevokeOnReuse bool
	Warn          func(msg string, args ...any)
}

// RefreshResult carries either the rotated pair or failure metadata.
type RefreshResult struct {
	Failure RefreshFailureKind
	Err     error
	Subject string
	Pair    IssuedPair
	// Revoked reports that reuse detection cleared the live value.
	Revoked bool
}

// RunRefresh verifies a presented refresh token and rotates it. The rotation
// commits only if the stored value still equals the presented token, so of
// two concurrent calls with the same token exactly one succeeds.
func RunRefresh(ctx context.Context, refreshToken string, deps RefreshDeps) RefreshResult {
	subject, err := deps.VerifyRefresh(refreshToken)
	if err != nil {
		return RefreshResult{Failure: RefreshFailureToken, Err: err}
	}

	if err := deps.LookupUser(ctx, subject); err != nil {
		if deps.UserNotFound != nil && errors.Is(err, deps.UserNotFound) {
			return RefreshResult{Failure: RefreshFailureUnknownSubject, Err: err, Subject: subject}
		}
		return RefreshResult{Failure: RefreshFailureLookup, Err: err, Subject: subject}
	}

	current, err := deps.SessionStore.Get(ctx, subject)
	if err != nil {
		return RefreshResult{Failure: RefreshFailureStoreRead, Err: err, Subject: subject}
	}
	if !current.Valid {
		return RefreshResult{Failure: RefreshFailureNoSession, Subject: subject}
	}

	presented := deps.Fingerprint(refreshToken)
	if subtle.ConstantTimeCompare([]byte(presented), []byte(current.Token)) != 1 {
		result := RefreshResult{Failure: RefreshFailureReuse, Subject: subject}
		if deps.RevokeOnReuse {
			revoked, err := deps.SessionStore.SetIfMatches(ctx, subject, session.Expect(current), session.Absent)
			if err != nil && deps.Warn != nil {
				deps.Warn("pairauth: revoke on reuse failed", "subject", subject, "err", err)
			}
			result.Revoked = revoked
		}
		return result
	}

	pair, err := deps.IssuePair(subject)
	if err != nil {
		return RefreshResult{Failure: RefreshFailureIssue, Err: err, Subject: subject}
	}

	swapped, err := deps.SessionStore.SetIfMatches(
		ctx,
		subject,
		session.Expect(session.Present(presented)),
		session.Present(deps.Fingerprint(pair.RefreshToken)),
	)
	if err != nil {
		return RefreshResult{Failure: RefreshFailureStoreWrite, Err: err, Subject: subject}
	}
	if !swapped {
		return RefreshResult{Failure: RefreshFailureRaceLost, Subject: subject}
	}

	return RefreshResult{Subject: subject, Pair: pair}
}
