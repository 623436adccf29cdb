package pairauth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrEthical07/pairauth/internal/audit"
	"github.com/MrEthical07/pairauth/internal/flows"
	"github.com/MrEthical07/pairauth/jwt"
	"github.com/MrEthical07/pairauth/session"
)

const (
	opLogin    = "login"
	opRefresh  = "refresh"
	opLogout   = "logout"
	opValidate = "validate"
)

// Engine runs login, refresh and logout against one token codec and one
// session store.
//
// An Engine is built once through [Builder.Build] and is safe for concurrent
// use afterwards. Every failure it returns is an *Error.
type Engine struct {
	config   Config
	codec    *jwt.Codec
	store    session.Store
	users    UserProvider
	verifier CredentialVerifier
	flows    flows.Service
	audit    *audit.Dispatcher
	metrics  *Metrics
	logger   *slog.Logger
	tracer   trace.Tracer
	now      func() time.Time
}

type pairExpiry struct {
	access  time.Time
	refresh time.Time
}

// Close flushes pending audit events. The Engine must not be used afterwards.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.audit.Close()
}

// AuditDropped returns the number of audit events discarded because the
// buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

// AuditStats returns audit delivery counters. It is zero when auditing is
// disabled.
func (e *Engine) AuditStats() AuditStats {
	if e == nil {
		return AuditStats{}
	}
	return e.audit.Stats()
}

// MetricsSnapshot returns a point-in-time copy of engine metrics.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil {
		return (*Metrics)(nil).Snapshot()
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(ids ...MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	for _, id := range ids {
		e.metrics.Inc(id)
	}
}

func (e *Engine) ready() bool {
	return e != nil && e.flows.Initialized()
}

// Login authenticates a username or email and password and starts a session.
//
// A successful login replaces whatever refresh token the user held before,
// so a stolen refresh token is invalidated by the next login. An unknown
// identifier and a wrong password both return KindInvalidCredentials.
func (e *Engine) Login(ctx context.Context, req LoginRequest) (res *LoginResult, err error) {
	if !e.ready() {
		return nil, newError(KindInternal, opLogin, ErrEngineNotReady)
	}

	ctx, span := e.tracer.Start(ctx, "pairauth.Login")
	start := time.Now()
	defer func() {
		e.metrics.Observe(MetricLoginLatency, time.Since(start))
		endSpan(span, err)
	}()

	identifier := strings.TrimSpace(req.Identifier)
	if identifier == "" || req.Password == "" {
		err = validationError(opLogin, "username or email and password are required")
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, opLogin, false, "", err, reason("missing_fields"))
		return nil, err
	}

	result := e.flows.Login(ctx, identifier, req.Password)
	switch result.Failure {
	case flows.LoginFailureNone:
	case flows.LoginFailureUnknownIdentifier, flows.LoginFailureBadPassword:
		r := "bad_password"
		if result.Failure == flows.LoginFailureUnknownIdentifier {
			r = "unknown_identifier"
		}
		err = newError(KindInvalidCredentials, opLogin, result.Err)
		e.metricInc(MetricLoginFailure, MetricLoginInvalidCredentials)
		e.emitAudit(ctx, auditEventLoginFailure, opLogin, false, result.User.UserID, err, reason(r))
		return nil, err
	default:
		err = e.internal(ctx, opLogin, loginStage(result.Failure), result.User.UserID, result.Err)
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, opLogin, false, result.User.UserID, err, reason(loginStage(result.Failure)))
		return nil, err
	}

	record, _ := result.User.Record.(UserRecord)
	res = &LoginResult{
		User:     record.Public(),
		Tokens:   toTokenPair(result.Pair),
		Replaced: result.Replaced,
	}

	e.metricInc(MetricLoginSuccess, MetricSessionCreated)
	if result.Replaced {
		e.metricInc(MetricSessionReplaced)
	}
	span.SetAttributes(attribute.Bool("pairauth.session_replaced", result.Replaced))
	e.emitAudit(ctx, auditEventLoginSuccess, opLogin, true, record.UserID, nil, func() map[string]string {
		if !result.Replaced {
			return nil
		}
		return map[string]string{"replaced": "true"}
	})
	e.logger.DebugContext(ctx, "pairauth: login", "user_id", record.UserID, "replaced", result.Replaced)

	return res, nil
}

// Refresh exchanges a refresh token for a new pair.
//
// The presented token is single use. Once exchanged, presenting it again
// returns KindSessionStale. Of two concurrent calls with the same token
// exactly one succeeds; the other returns KindSessionStale.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (pair *TokenPair, err error) {
	if !e.ready() {
		return nil, newError(KindInternal, opRefresh, ErrEngineNotReady)
	}

	ctx, span := e.tracer.Start(ctx, "pairauth.Refresh")
	start := time.Now()
	defer func() {
		e.metrics.Observe(MetricRefreshLatency, time.Since(start))
		endSpan(span, err)
	}()

	result := e.flows.Refresh(ctx, refreshToken)
	switch result.Failure {
	case flows.RefreshFailureNone:
	case flows.RefreshFailureToken:
		err = tokenError(opRefresh, result.Err)
		e.metricInc(MetricRefreshFailure, MetricRefreshTokenRejected)
		e.emitAudit(ctx, auditEventRefreshFailure, opRefresh, false, "", err, nil)
		return nil, err
	case flows.RefreshFailureUnknownSubject:
		err = newError(KindUnknownSubject, opRefresh, result.Err)
		e.metricInc(MetricRefreshFailure, MetricRefreshUnknownSubject)
		e.emitAudit(ctx, auditEventRefreshFailure, opRefresh, false, result.Subject, err, nil)
		return nil, err
	case flows.RefreshFailureNoSession:
		err = newError(KindSessionStale, opRefresh, errors.New("no live session"))
		e.metricInc(MetricRefreshFailure, MetricRefreshNoSession)
		e.emitAudit(ctx, auditEventRefreshFailure, opRefresh, false, result.Subject, err, reason("no_session"))
		return nil, err
	case flows.RefreshFailureReuse:
		err = newError(KindSessionStale, opRefresh, errors.New("refresh token is not the live one"))
		e.metricInc(MetricRefreshFailure, MetricRefreshReuseDetected)
		e.logger.WarnContext(ctx, "pairauth: refresh token reuse",
			"user_id", result.Subject,
			"revoked", result.Revoked,
			"request_id", RequestIDFromContext(ctx),
		)
		e.emitAudit(ctx, auditEventRefreshReuseDetected, opRefresh, false, result.Subject, err, nil)
		if result.Revoked {
			e.metricInc(MetricSessionRevoked)
			e.emitAudit(ctx, auditEventSessionRevoked, opRefresh, true, result.Subject, nil, reason("reuse"))
		}
		return nil, err
	case flows.RefreshFailureRaceLost:
		err = newError(KindSessionStale, opRefresh, errors.New("concurrent refresh won"))
		e.metricInc(MetricRefreshFailure, MetricRefreshRaceLost)
		e.emitAudit(ctx, auditEventRefreshRaceLost, opRefresh, false, result.Subject, err, nil)
		return nil, err
	default:
		err = e.internal(ctx, opRefresh, refreshStage(result.Failure), result.Subject, result.Err)
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshFailure, opRefresh, false, result.Subject, err, reason(refreshStage(result.Failure)))
		return nil, err
	}

	tokens := toTokenPair(result.Pair)
	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditEventRefreshSuccess, opRefresh, true, result.Subject, nil, nil)

	return &tokens, nil
}

// Logout ends the session of userID. Logging out a user without a session
// succeeds.
func (e *Engine) Logout(ctx context.Context, userID string) (err error) {
	if !e.ready() {
		return newError(KindInternal, opLogout, ErrEngineNotReady)
	}

	ctx, span := e.tracer.Start(ctx, "pairauth.Logout")
	defer func() { endSpan(span, err) }()

	if strings.TrimSpace(userID) == "" {
		return validationError(opLogout, "user id is required")
	}

	return e.finishLogout(ctx, e.flows.Logout(ctx, userID))
}

// LogoutByAccessToken verifies an access token and logs its subject out.
// Token failures return the matching token kind.
func (e *Engine) LogoutByAccessToken(ctx context.Context, accessToken string) (err error) {
	if !e.ready() {
		return newError(KindInternal, opLogout, ErrEngineNotReady)
	}

	ctx, span := e.tracer.Start(ctx, "pairauth.LogoutByAccessToken")
	defer func() { endSpan(span, err) }()

	result := e.flows.LogoutByAccessToken(ctx, accessToken)
	if result.TokenErr != nil {
		e.metricInc(MetricAccessRejected)
		return tokenError(opLogout, result.TokenErr)
	}

	return e.finishLogout(ctx, result.LogoutResult)
}

func (e *Engine) finishLogout(ctx context.Context, result flows.LogoutResult) error {
	if result.Err != nil {
		err := e.internal(ctx, opLogout, "store", result.Subject, result.Err)
		e.emitAudit(ctx, auditEventLogout, opLogout, false, result.Subject, err, nil)
		return err
	}

	if result.HadSession {
		e.metricInc(MetricLogout)
	} else {
		e.metricInc(MetricLogoutNoSession)
	}
	e.emitAudit(ctx, auditEventLogout, opLogout, true, result.Subject, nil, func() map[string]string {
		if result.HadSession {
			return nil
		}
		return map[string]string{"reason": "no_session"}
	})
	return nil
}

// ValidateAccess verifies an access token without touching the session
// store. Access tokens stay valid until they expire, even after logout.
func (e *Engine) ValidateAccess(ctx context.Context, accessToken string) (*AuthResult, error) {
	if !e.ready() {
		return nil, newError(KindInternal, opValidate, ErrEngineNotReady)
	}

	claims, err := e.codec.Verify(accessToken, jwt.RoleAccess)
	if err != nil {
		e.metricInc(MetricAccessRejected)
		return nil, tokenError(opValidate, err)
	}

	e.metricInc(MetricAccessValidated)
	res := &AuthResult{
		UserID:  claims.Subject,
		TokenID: claims.ID,
	}
	if claims.IssuedAt != nil {
		res.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		res.ExpiresAt = claims.ExpiresAt.Time
	}
	return res, nil
}

func (e *Engine) issuePair(subject string) (flows.IssuedPair, error) {
	access, err := e.codec.Issue(subject, jwt.RoleAccess)
	if err != nil {
		return flows.IssuedPair{}, err
	}
	refresh, err := e.codec.Issue(subject, jwt.RoleRefresh)
	if err != nil {
		return flows.IssuedPair{}, err
	}

	return flows.IssuedPair{
		AccessToken:  access.Raw,
		RefreshToken: refresh.Raw,
		Opaque:       pairExpiry{access: access.ExpiresAt, refresh: refresh.ExpiresAt},
	}, nil
}

func (e *Engine) internal(ctx context.Context, op, stage, userID string, cause error) error {
	e.metricInc(MetricInternalError)
	e.logger.ErrorContext(ctx, "pairauth: internal failure",
		"op", op,
		"stage", stage,
		"user_id", userID,
		"request_id", RequestIDFromContext(ctx),
		"err", cause,
	)
	return newError(KindInternal, op, cause)
}

func toTokenPair(p flows.IssuedPair) TokenPair {
	pair := TokenPair{AccessToken: p.AccessToken, RefreshToken: p.RefreshToken}
	if exp, ok := p.Opaque.(pairExpiry); ok {
		pair.AccessExpiresAt = exp.access
		pair.RefreshExpiresAt = exp.refresh
	}
	return pair
}

// tokenError maps a codec rejection onto the matching Engine kind.
func tokenError(op string, err error) *Error {
	switch jwt.KindOf(err) {
	case jwt.KindExpired:
		return newError(KindTokenExpired, op, err)
	case jwt.KindBadSignature:
		return newError(KindTokenBadSignature, op, err)
	case jwt.KindMalformed:
		return newError(KindTokenMalformed, op, err)
	default:
		return newError(KindInternal, op, err)
	}
}

func loginStage(kind flows.LoginFailureKind) string {
	switch kind {
	case flows.LoginFailureLookup:
		return "user_lookup"
	case flows.LoginFailureVerify:
		return "password_verify"
	case flows.LoginFailureIssue:
		return "token_issue"
	case flows.LoginFailurePersist:
		return "session_write"
	default:
		return "unknown"
	}
}

func refreshStage(kind flows.RefreshFailureKind) string {
	switch kind {
	case flows.RefreshFailureLookup:
		return "user_lookup"
	case flows.RefreshFailureStoreRead:
		return "session_read"
	case flows.RefreshFailureIssue:
		return "token_issue"
	case flows.RefreshFailureStoreWrite:
		return "session_write"
	default:
		return "unknown"
	}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		kind := KindOf(err)
		span.SetAttributes(attribute.String("pairauth.error_code", string(auditErrorCode(err))))
		if kind == KindInternal {
			span.RecordError(err)
			span.SetStatus(codes.Error, kind.String())
		}
	}
	span.End()
}
