package pairauth

import (
	"errors"
	"net/http"
)

var (
	// ErrValidation reports missing or malformed caller input.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidCredentials reports an unknown identifier or a wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnknownSubject reports a verified token whose subject no longer exists.
	ErrUnknownSubject = errors.New("unknown subject")
	// ErrTokenMalformed reports a token that could not be parsed.
	ErrTokenMalformed = errors.New("token malformed")
	// ErrTokenBadSignature reports a token whose signature or algorithm is wrong.
	ErrTokenBadSignature = errors.New("token signature invalid")
	// ErrTokenExpired reports a token past its exp claim.
	ErrTokenExpired = errors.New("token expired")
	// ErrSessionStale reports a refresh token that is no longer the live one,
	// including the loser of a concurrent refresh.
	ErrSessionStale = errors.New("session stale")
	// ErrInternal reports an infrastructure failure.
	ErrInternal = errors.New("internal error")

	// ErrUserNotFound is returned by a UserProvider when no user matches.
	ErrUserNotFound = errors.New("user not found")
	// ErrEngineNotReady is returned by methods called on a nil or unbuilt Engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// ErrorKind is the single category every Engine failure maps to.
type ErrorKind uint8

const (
	KindValidation ErrorKind = iota + 1
	KindInvalidCredentials
	KindUnknownSubject
	KindTokenMalformed
	KindTokenBadSignature
	KindTokenExpired
	KindSessionStale
	KindInternal
)

// ErrorClass groups kinds the way callers handle them.
type ErrorClass string

const (
	ClassValidation ErrorClass = "validation"
	ClassAuth       ErrorClass = "auth"
	ClassToken      ErrorClass = "token"
	ClassSession    ErrorClass = "session"
	ClassInternal   ErrorClass = "internal"
)

type kindInfo struct {
	sentinel error
	class    ErrorClass
	status   int
	code     string
	message  string
}

var kindTable = map[ErrorKind]kindInfo{
	KindValidation:         {ErrValidation, ClassValidation, http.StatusBadRequest, "validation_failed", "validation failed"},
	KindInvalidCredentials: {ErrInvalidCredentials, ClassAuth, http.StatusUnauthorized, "invalid_credentials", "invalid credentials"},
	KindUnknownSubject:     {ErrUnknownSubject, ClassAuth, http.StatusUnauthorized, "invalid_credentials", "invalid credentials"},
	KindTokenMalformed:     {ErrTokenMalformed, ClassToken, http.StatusUnauthorized, "token_malformed", "token is malformed"},
	KindTokenBadSignature:  {ErrTokenBadSignature, ClassToken, http.StatusUnauthorized, "token_invalid", "token is invalid"},
	KindTokenExpired:       {ErrTokenExpired, ClassToken, http.StatusUnauthorized, "token_expired", "token has expired"},
	KindSessionStale:       {ErrSessionStale, ClassSession, http.StatusUnauthorized, "session_stale", "refresh token is no longer valid"},
	KindInternal:           {ErrInternal, ClassInternal, http.StatusInternalServerError, "internal_error", "internal server error"},
}

func (k ErrorKind) info() kindInfo {
	if info, ok := kindTable[k]; ok {
		return info
	}
	return kindTable[KindInternal]
}

// String returns the sentinel text of the kind.
func (k ErrorKind) String() string { return k.info().sentinel.Error() }

// Class returns the error family of the kind.
func (k ErrorKind) Class() ErrorClass { return k.info().class }

// HTTPStatus returns the boundary status code of the kind.
func (k ErrorKind) HTTPStatus() int { return k.info().status }

// Code returns the stable public code. Both AuthError kinds share one code so
// clients cannot tell an unknown user from a wrong password.
func (k ErrorKind) Code() string { return k.info().code }

// Error is the typed failure returned by every Engine operation.
type Error struct {
	Kind ErrorKind
	// Op names the operation: login, refresh, logout or validate.
	Op string
	// Message optionally replaces the default public message. Only
	// validation errors set it.
	Message string
	// Err is the underlying cause. It is never exposed publicly.
	Err error
}

func (e *Error) Error() string {
	msg := "pairauth: " + e.Op + ": " + e.Kind.String()
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel of the error's kind.
func (e *Error) Is(target error) bool {
	return target == e.Kind.info().sentinel
}

// PublicError is the client-safe view of an Error.
type PublicError struct {
	Status  int    `json:"statusCode"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Public returns the client-safe view. Causes never leak through it.
func (e *Error) Public() PublicError {
	info := e.Kind.info()
	msg := info.message
	if e.Kind == KindValidation && e.Message != "" {
		msg = e.Message
	}
	return PublicError{Status: info.status, Code: info.code, Message: msg}
}

// KindOf returns the kind carried by err. Errors that are not *Error report
// KindInternal; nil reports zero.
func KindOf(err error) ErrorKind {
	if err == nil {
		return 0
	}
	var authErr *Error
	if errors.As(err, &authErr) {
		return authErr.Kind
	}
	return KindInternal
}

// PublicErrorOf returns the client-safe view of any error.
func PublicErrorOf(err error) PublicError {
	var authErr *Error
	if errors.As(err, &authErr) {
		return authErr.Public()
	}
	return (&Error{Kind: KindInternal}).Public()
}

func newError(kind ErrorKind, op string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Err: cause}
}

func validationError(op, message string) *Error {
	return &Error{Kind: KindValidation, Op: op, Message: message}
}
