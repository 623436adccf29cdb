package pairauth

import (
	"context"

	"github.com/MrEthical07/pairauth/internal/audit"
)

const (
	auditEventLoginSuccess         = "login_success"
	auditEventLoginFailure         = "login_failure"
	auditEventRefreshSuccess       = "refresh_success"
	auditEventRefreshFailure       = "refresh_failure"
	auditEventRefreshReuseDetected = "refresh_reuse_detected"
	auditEventRefreshRaceLost      = "refresh_race_lost"
	auditEventSessionRevoked       = "session_revoked"
	auditEventLogout               = "logout"
)

// AuditErrorCode is the error field of an audit event. Unlike public codes it
// distinguishes an unknown subject from bad credentials.
type AuditErrorCode string

const (
	auditErrValidation         AuditErrorCode = "validation_failed"
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrUnknownSubject     AuditErrorCode = "unknown_subject"
	auditErrTokenMalformed     AuditErrorCode = "token_malformed"
	auditErrTokenBadSignature  AuditErrorCode = "token_bad_signature"
	auditErrTokenExpired       AuditErrorCode = "token_expired"
	auditErrSessionStale       AuditErrorCode = "session_stale"
	auditErrInternal           AuditErrorCode = "internal_error"
)

func auditErrorCode(err error) AuditErrorCode {
	switch KindOf(err) {
	case 0:
		return ""
	case KindValidation:
		return auditErrValidation
	case KindInvalidCredentials:
		return auditErrInvalidCredentials
	case KindUnknownSubject:
		return auditErrUnknownSubject
	case KindTokenMalformed:
		return auditErrTokenMalformed
	case KindTokenBadSignature:
		return auditErrTokenBadSignature
	case KindTokenExpired:
		return auditErrTokenExpired
	case KindSessionStale:
		return auditErrSessionStale
	default:
		return auditErrInternal
	}
}

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	op string,
	success bool,
	userID string,
	err error,
	metadata func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var meta map[string]string
	if metadata != nil {
		meta = metadata()
	}

	e.audit.Emit(ctx, audit.Event{
		Timestamp: e.now().UTC(),
		EventType: eventType,
		Severity:  auditSeverity(eventType),
		Operation: op,
		UserID:    userID,
		RequestID: RequestIDFromContext(ctx),
		IP:        clientIPFromContext(ctx),
		UserAgent: userAgentFromContext(ctx),
		Success:   success,
		Error:     string(auditErrorCode(err)),
		Metadata:  meta,
	})
}

// auditSeverity marks the events a security team must see even when the
// audit buffer is saturated.
func auditSeverity(eventType string) audit.Severity {
	switch eventType {
	case auditEventRefreshReuseDetected, auditEventSessionRevoked:
		return audit.SeverityAlert
	default:
		return audit.SeverityInfo
	}
}

func reason(r string) func() map[string]string {
	return func() map[string]string {
		return map[string]string{"reason": r}
	}
}
