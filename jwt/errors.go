package jwt

import "errors"

// ErrorKind classifies a verification failure.
type ErrorKind uint8

const (
	// KindMalformed covers tokens that cannot be parsed or whose claims are
	// structurally invalid for the requested role.
	KindMalformed ErrorKind = iota + 1
	// KindBadSignature covers signature, algorithm and key mismatches.
	KindBadSignature
	// KindExpired covers tokens whose exp claim has passed.
	KindExpired
)

var (
	// ErrMalformed matches any *TokenError of kind KindMalformed.
	ErrMalformed = errors.New("token malformed")
	// ErrBadSignature matches any *TokenError of kind KindBadSignature.
	ErrBadSignature = errors.New("token signature invalid")
	// ErrExpired matches any *TokenError of kind KindExpired.
	ErrExpired = errors.New("token expired")
)

// String returns the stable lower-case name of the kind.
func (k ErrorKind) String() string {
	switch k {
	case KindMalformed:
		return "malformed"
	case KindBadSignature:
		return "bad_signature"
	case KindExpired:
		return "expired"
	default:
		return "unknown"
	}
}

func (k ErrorKind) sentinel() error {
	switch k {
	case KindBadSignature:
		return ErrBadSignature
	case KindExpired:
		return ErrExpired
	default:
		return ErrMalformed
	}
}

// TokenError is returned by Verify for every rejected token.
type TokenError struct {
	Kind ErrorKind
	Err  error
}

func (e *TokenError) Error() string {
	if e.Err == nil {
		return e.Kind.sentinel().Error()
	}
	return e.Kind.sentinel().Error() + ": " + e.Err.Error()
}

// Unwrap exposes both the kind sentinel and the underlying parser error.
func (e *TokenError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind.sentinel()}
	}
	return []error{e.Kind.sentinel(), e.Err}
}

// KindOf reports the TokenError kind carried by err, or zero when err is not
// a token error.
func KindOf(err error) ErrorKind {
	var tokenErr *TokenError
	if errors.As(err, &tokenErr) {
		return tokenErr.Kind
	}
	return 0
}

func newTokenError(kind ErrorKind, err error) *TokenError {
	return &TokenError{Kind: kind, Err: err}
}
