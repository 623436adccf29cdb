package flows

import (
	"context"

	"github.com/MrEthical07/pairauth/session"
)

// LogoutDeps captures logout flow dependencies.
type LogoutDeps struct {
	VerifyAccess func(token string) (subject string, err error)
	SessionStore SessionStore
}

// LogoutResult reports what a logout changed.
type LogoutResult struct {
	Subject string
	// HadSession is false when nothing was stored, which is still a success.
	HadSession bool
	Err        error
}

// RunLogout clears the stored value for subject. Clearing an absent value
// succeeds without a write.
func RunLogout(ctx context.Context, subject string, deps LogoutDeps) LogoutResult {
	current, err := deps.SessionStore.Get(ctx, subject)
	if err != nil {
		return LogoutResult{Subject: subject, Err: err}
	}
	if !current.Valid {
		return LogoutResult{Subject: subject}
	}

	if _, err := deps.SessionStore.SetIfMatches(ctx, subject, session.ExpectAny(), session.Absent); err != nil {
		return LogoutResult{Subject: subject, HadSession: true, Err: err}
	}
	return LogoutResult{Subject: subject, HadSession: true}
}

// LogoutByAccessResult separates token failures from store failures.
type LogoutByAccessResult struct {
	LogoutResult
	TokenErr error
}

// RunLogoutByAccessToken verifies an access token and logs its subject out.
func RunLogoutByAccessToken(ctx context.Context, token string, deps LogoutDeps) LogoutByAccessResult {
	subject, err := deps.VerifyAccess(token)
	if err != nil {
		return LogoutByAccessResult{TokenErr: err}
	}
	return LogoutByAccessResult{LogoutResult: RunLogout(ctx, subject, deps)}
}
