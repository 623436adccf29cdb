package pairauth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/MrEthical07/pairauth/jwt"
	"github.com/MrEthical07/pairauth/password"
)

// Config is the complete Engine configuration. Every field can be set from
// the environment through LoadConfigFromEnv; the env tags name the variables
// without the caller-chosen prefix.
type Config struct {
	JWT      JWTConfig
	Session  SessionConfig
	Security SecurityConfig
	Password PasswordConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
}

// JWTConfig configures token issuance.
//
// With SigningMethod "hs256" the secrets are HMAC keys. With "ed25519" they
// are PEM-encoded private keys. The two secrets must differ.
type JWTConfig struct {
	SigningMethod string        `env:"TOKEN_SIGNING_METHOD"`
	AccessSecret  string        `env:"ACCESS_TOKEN_SECRET"`
	RefreshSecret string        `env:"REFRESH_TOKEN_SECRET"`
	AccessTTL     time.Duration `env:"ACCESS_TOKEN_TTL"`
	RefreshTTL    time.Duration `env:"REFRESH_TOKEN_TTL"`
	Issuer        string        `env:"TOKEN_ISSUER"`
	Leeway        time.Duration `env:"TOKEN_LEEWAY"`
}

// SessionConfig configures the default Redis-backed session store.
type SessionConfig struct {
	RedisPrefix string `env:"SESSION_REDIS_PREFIX"`
}

// SecurityConfig holds refresh-reuse policy.
type SecurityConfig struct {
	// RevokeOnReuse clears the live session when a refresh token that is
	// valid but no longer current is presented.
	RevokeOnReuse bool `env:"REVOKE_ON_REUSE"`
}

// PasswordConfig configures the default Argon2id credential verifier.
type PasswordConfig struct {
	Memory           uint32 `env:"PASSWORD_MEMORY_KB"` // in KB
	Time             uint32 `env:"PASSWORD_TIME"`
	Parallelism      uint8  `env:"PASSWORD_PARALLELISM"`
	SaltLength       uint32 `env:"PASSWORD_SALT_LENGTH"`
	KeyLength        uint32 `env:"PASSWORD_KEY_LENGTH"`
	MaxPasswordBytes int    `env:"PASSWORD_MAX_BYTES"`
}

// Hasher builds the Argon2id hasher these parameters describe. The Engine
// uses it as its default CredentialVerifier; user stores use it to hash and
// re-hash credentials with the same costs.
func (c PasswordConfig) Hasher() (*password.Argon2, error) {
	return password.NewArgon2(password.Config{
		Memory:           c.Memory,
		Time:             c.Time,
		Parallelism:      c.Parallelism,
		SaltLength:       c.SaltLength,
		KeyLength:        c.KeyLength,
		MaxPasswordBytes: c.MaxPasswordBytes,
	})
}

// AuditConfig configures the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool `env:"AUDIT_ENABLED"`
	BufferSize int  `env:"AUDIT_BUFFER_SIZE"`
	DropIfFull bool `env:"AUDIT_DROP_IF_FULL"`
}

// MetricsConfig toggles in-process counters and latency histograms.
type MetricsConfig struct {
	Enabled                 bool `env:"METRICS_ENABLED"`
	EnableLatencyHistograms bool `env:"METRICS_LATENCY_HISTOGRAMS"`
}

const (
	signingMethodHS256   = "hs256"
	signingMethodEd25519 = "ed25519"
)

// DefaultConfig returns the defaults applied before environment overrides.
// Secrets are empty and must be supplied.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			SigningMethod: signingMethodHS256,
			AccessTTL:     15 * time.Minute,
			RefreshTTL:    10 * 24 * time.Hour,
		},
		Session: SessionConfig{
			RedisPrefix: "prs",
		},
		Password: PasswordConfig{
			Memory:      65536,
			Time:        3,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
	}
}

// LoadConfigFromEnv starts from DefaultConfig and overrides every field whose
// variable is set, e.g. prefix "PAIRAUTH_" reads PAIRAUTH_ACCESS_TOKEN_SECRET.
// The result is validated.
func LoadConfigFromEnv(prefix string) (Config, error) {
	cfg := DefaultConfig()
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: prefix}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints. Builder.Build calls it.
func (c *Config) Validate() error {
	// JWT
	switch strings.ToLower(c.JWT.SigningMethod) {
	case signingMethodHS256, signingMethodEd25519:
	default:
		return errors.New("unsupported JWT signing method")
	}
	if c.JWT.AccessSecret == "" {
		return errors.New("JWT AccessSecret is required")
	}
	if c.JWT.RefreshSecret == "" {
		return errors.New("JWT RefreshSecret is required")
	}
	if c.JWT.AccessSecret == c.JWT.RefreshSecret {
		return errors.New("JWT AccessSecret and RefreshSecret must differ")
	}
	if err := jwt.ValidateTTL(c.JWT.AccessTTL); err != nil {
		return fmt.Errorf("JWT AccessTTL: %w", err)
	}
	if err := jwt.ValidateTTL(c.JWT.RefreshTTL); err != nil {
		return fmt.Errorf("JWT RefreshTTL: %w", err)
	}
	if c.JWT.AccessTTL >= c.JWT.RefreshTTL {
		return errors.New("JWT AccessTTL must be shorter than RefreshTTL")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be between 0 and 2m")
	}

	// Session
	if strings.TrimSpace(c.Session.RedisPrefix) == "" {
		return errors.New("Session RedisPrefix must not be empty")
	}

	// Password
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}
	if c.Password.MaxPasswordBytes < 0 {
		return errors.New("Password MaxPasswordBytes must be >= 0")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	// Metrics
	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return errors.New("Metrics EnableLatencyHistograms requires Metrics Enabled")
	}

	return nil
}
