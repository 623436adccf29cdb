package jwt

import (
	"bytes"
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SigningMethod selects the JWS algorithm used for both token roles.
type SigningMethod string

const (
	// MethodHS256 signs with an HMAC-SHA256 shared secret per role.
	MethodHS256 SigningMethod = "hs256"
	// MethodEd25519 signs with an Ed25519 private key per role.
	MethodEd25519 SigningMethod = "ed25519"
)

// Role distinguishes access tokens from refresh tokens.
type Role string

const (
	// RoleAccess marks the short-lived token presented on every request.
	RoleAccess Role = "access"
	// RoleRefresh marks the long-lived token exchanged for a new pair.
	RoleRefresh Role = "refresh"
)

// Keys holds the key material of one role.
//
// For MethodHS256 SignKey is the shared secret and VerifyKey is ignored. For
// MethodEd25519 SignKey is a raw or PEM-encoded private key and VerifyKey an
// optional raw or PEM-encoded public key; when VerifyKey is empty the public
// half of SignKey is used.
type Keys struct {
	SignKey   []byte
	VerifyKey []byte
}

// Config is the immutable codec configuration.
type Config struct {
	SigningMethod SigningMethod
	AccessKeys    Keys
	RefreshKeys   Keys
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
	Leeway        time.Duration
	// Now replaces time.Now for issuance and expiry checks.
	Now func() time.Time
}

// Claims is the payload of every token issued by the codec.
type Claims struct {
	Role Role `json:"tkn"`
	jwt.RegisteredClaims
}

// SignedToken is an issued token together with the claims it carries.
type SignedToken struct {
	Raw       string
	ID        string
	Subject   string
	Role      Role
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type roleKeys struct {
	sign   interface{}
	verify interface{}
	ttl    time.Duration
}

// Codec issues and verifies tokens. It is safe for concurrent use.
type Codec struct {
	method  jwt.SigningMethod
	issuer  string
	leeway  time.Duration
	now     func() time.Time
	access  roleKeys
	refresh roleKeys
}

// NewCodec validates cfg and resolves key material.
//
// NewCodec rejects missing keys, identical access and refresh keys,
// lifetimes that are not a positive whole number of seconds and an access
// lifetime that is not shorter than the refresh lifetime.
func NewCodec(cfg Config) (*Codec, error) {
	if err := ValidateTTL(cfg.AccessTTL); err != nil {
		return nil, fmt.Errorf("access %w", err)
	}
	if err := ValidateTTL(cfg.RefreshTTL); err != nil {
		return nil, fmt.Errorf("refresh %w", err)
	}
	if cfg.AccessTTL >= cfg.RefreshTTL {
		return nil, errors.New("access TTL must be shorter than refresh TTL")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if cfg.SigningMethod == "" {
		cfg.SigningMethod = MethodHS256
	}

	c := &Codec{
		issuer: strings.TrimSpace(cfg.Issuer),
		leeway: cfg.Leeway,
		now:    cfg.Now,
	}
	if c.now == nil {
		c.now = time.Now
	}

	var err error
	switch cfg.SigningMethod {
	case MethodHS256:
		c.method = jwt.SigningMethodHS256
		if c.access, err = hmacKeys(RoleAccess, cfg.AccessKeys); err != nil {
			return nil, err
		}
		if c.refresh, err = hmacKeys(RoleRefresh, cfg.RefreshKeys); err != nil {
			return nil, err
		}
		if bytes.Equal(cfg.AccessKeys.SignKey, cfg.RefreshKeys.SignKey) {
			return nil, errors.New("access and refresh secrets must differ")
		}
	case MethodEd25519:
		c.method = jwt.SigningMethodEdDSA
		if c.access, err = edKeys(RoleAccess, cfg.AccessKeys); err != nil {
			return nil, err
		}
		if c.refresh, err = edKeys(RoleRefresh, cfg.RefreshKeys); err != nil {
			return nil, err
		}
		if bytes.Equal(c.access.verify.(ed25519.PublicKey), c.refresh.verify.(ed25519.PublicKey)) {
			return nil, errors.New("access and refresh keys must differ")
		}
	default:
		return nil, errors.New("unsupported signing method")
	}

	c.access.ttl = cfg.AccessTTL
	c.refresh.ttl = cfg.RefreshTTL
	return c, nil
}

// ValidateTTL reports whether ttl can be carried by the exp claim.
// NumericDate has whole-second precision, so anything shorter than a second
// or with a fractional part would expire early or at issuance.
func ValidateTTL(ttl time.Duration) error {
	if ttl < time.Second {
		return errors.New("TTL must be at least 1s")
	}
	if ttl%time.Second != 0 {
		return errors.New("TTL must be a whole number of seconds")
	}
	return nil
}

// TTL returns the configured lifetime of role.
func (c *Codec) TTL(role Role) time.Duration {
	keys, err := c.keysFor(role)
	if err != nil {
		return 0
	}
	return keys.ttl
}

// Issue signs a new token for subject with the lifetime and key of role.
//
// Every call produces a distinct token value, even for the same subject
// within the same second, because each token carries a random jti.
func (c *Codec) Issue(subject string, role Role) (SignedToken, error) {
	if subject == "" {
		return SignedToken{}, errors.New("subject is required")
	}
	keys, err := c.keysFor(role)
	if err != nil {
		return SignedToken{}, err
	}

	now := c.now()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    c.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(keys.ttl)),
			ID:        uuid.NewString(),
		},
	}

	raw, err := jwt.NewWithClaims(c.method, claims).SignedString(keys.sign)
	if err != nil {
		return SignedToken{}, fmt.Errorf("sign %s token: %w", role, err)
	}

	return SignedToken{
		Raw:       raw,
		ID:        claims.ID,
		Subject:   subject,
		Role:      role,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// Verify parses token and checks it against the key and role given.
//
// Verify returns a *TokenError on every rejection. Signature checks run
// before claim checks, so a forged token reports KindBadSignature even when
// its exp has also passed.
func (c *Codec) Verify(token string, role Role) (*Claims, error) {
	keys, err := c.keysFor(role)
	if err != nil {
		return nil, err
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{c.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(c.now),
	}
	if c.leeway > 0 {
		options = append(options, jwt.WithLeeway(c.leeway))
	}
	if c.issuer != "" {
		options = append(options, jwt.WithIssuer(c.issuer))
	}

	parser := jwt.NewParser(options...)
	parsed, err := parser.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != c.method.Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return keys.verify, nil
	})
	if err != nil {
		return nil, classify(err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, newTokenError(KindMalformed, jwt.ErrTokenInvalidClaims)
	}
	if claims.Role != role {
		return nil, newTokenError(KindMalformed, fmt.Errorf("token role %q, want %q", claims.Role, role))
	}
	if claims.Subject == "" {
		return nil, newTokenError(KindMalformed, errors.New("token has no subject"))
	}

	return claims, nil
}

func classify(err error) *TokenError {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return newTokenError(KindMalformed, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return newTokenError(KindBadSignature, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return newTokenError(KindExpired, err)
	default:
		return newTokenError(KindMalformed, err)
	}
}

func (c *Codec) keysFor(role Role) (roleKeys, error) {
	switch role {
	case RoleAccess:
		return c.access, nil
	case RoleRefresh:
		return c.refresh, nil
	default:
		return roleKeys{}, fmt.Errorf("unknown token role %q", role)
	}
}

func hmacKeys(role Role, keys Keys) (roleKeys, error) {
	if len(keys.SignKey) == 0 {
		return roleKeys{}, fmt.Errorf("hs256 requires a %s secret", role)
	}
	secret := append([]byte(nil), keys.SignKey...)
	return roleKeys{sign: secret, verify: secret}, nil
}

func edKeys(role Role, keys Keys) (roleKeys, error) {
	if len(keys.SignKey) == 0 {
		return roleKeys{}, fmt.Errorf("ed25519 requires a %s private key", role)
	}
	priv, err := parseEdPrivateKey(keys.SignKey)
	if err != nil {
		return roleKeys{}, fmt.Errorf("%s key: %w", role, err)
	}
	pub := priv.Public().(ed25519.PublicKey)
	if len(keys.VerifyKey) > 0 {
		if pub, err = parseEdPublicKey(keys.VerifyKey); err != nil {
			return roleKeys{}, fmt.Errorf("%s key: %w", role, err)
		}
	}
	return roleKeys{sign: priv, verify: pub}, nil
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}
