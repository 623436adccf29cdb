package pairauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrEthical07/pairauth/internal/audit"
	"github.com/MrEthical07/pairauth/internal/flows"
	"github.com/MrEthical07/pairauth/jwt"
	"github.com/MrEthical07/pairauth/password"
	"github.com/MrEthical07/pairauth/session"
)

const tracerName = "github.com/MrEthical07/pairauth"

// Builder assembles an Engine. A Builder is single use: a second Build call
// fails.
type Builder struct {
	config Config
	redis  redis.UniversalClient
	store  session.Store

	userProvider   UserProvider
	verifier       CredentialVerifier
	auditSink      AuditSink
	logger         *slog.Logger
	tracerProvider trace.TracerProvider
	now            func() time.Time

	built bool
}

// New returns a Builder preloaded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithRedis selects the Redis session store. WithSessionStore takes
// precedence when both are set.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithSessionStore installs any session.Store, such as a PostgresStore or a
// MemoryStore.
func (b *Builder) WithSessionStore(store session.Store) *Builder {
	b.store = store
	return b
}

func (b *Builder) WithUserProvider(up UserProvider) *Builder {
	b.userProvider = up
	return b
}

// WithCredentialVerifier replaces the default Argon2id verifier built from
// Config.Password.
func (b *Builder) WithCredentialVerifier(v CredentialVerifier) *Builder {
	b.verifier = v
	return b
}

// WithAuditSink sets the destination of audit events. Events are only
// dispatched when Config.Audit.Enabled is true.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the logger used for internal failures and reuse warnings.
// The default is slog.Default().
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithTracerProvider sets the source of the spans around Login, Refresh and
// Logout. The default is the global provider.
func (b *Builder) WithTracerProvider(tp trace.TracerProvider) *Builder {
	b.tracerProvider = tp
	return b
}

// WithClock replaces time.Now for token issuance, verification and audit
// timestamps. Tests use it to exercise expiry.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := b.config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.userProvider == nil {
		return nil, errors.New("user provider required")
	}

	// -------- SESSION STORE --------
	store := b.store
	if store == nil {
		if b.redis == nil {
			return nil, errors.New("session store or redis client required")
		}
		store = session.NewRedisStore(b.redis, cfg.Session.RedisPrefix, cfg.JWT.RefreshTTL)
	}

	now := b.now
	if now == nil {
		now = time.Now
	}

	// -------- TOKEN CODEC --------
	codec, err := jwt.NewCodec(jwt.Config{
		SigningMethod: jwt.SigningMethod(strings.ToLower(cfg.JWT.SigningMethod)),
		AccessKeys:    jwt.Keys{SignKey: []byte(cfg.JWT.AccessSecret)},
		RefreshKeys:   jwt.Keys{SignKey: []byte(cfg.JWT.RefreshSecret)},
		AccessTTL:     cfg.JWT.AccessTTL,
		RefreshTTL:    cfg.JWT.RefreshTTL,
		Issuer:        cfg.JWT.Issuer,
		Leeway:        cfg.JWT.Leeway,
		Now:           now,
	})
	if err != nil {
		return nil, fmt.Errorf("token codec: %w", err)
	}

	// -------- CREDENTIALS --------
	verifier := b.verifier
	if verifier == nil {
		hasher, err := cfg.Password.Hasher()
		if err != nil {
			return nil, fmt.Errorf("password hasher: %w", err)
		}
		verifier = hasher
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	tp := b.tracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}

	e := &Engine{
		config:   cfg,
		codec:    codec,
		store:    store,
		users:    b.userProvider,
		verifier: verifier,
		audit: audit.NewDispatcher(audit.Config{
			Enabled:    cfg.Audit.Enabled,
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
		}, b.auditSink),
		metrics: NewMetrics(cfg.Metrics),
		logger:  logger,
		tracer:  tp.Tracer(tracerName),
		now:     now,
	}

	// -------- FLOWS --------
	e.flows = flows.New(flows.Deps{
		Login: flows.LoginDeps{
			LookupUser:     e.lookupLoginUser,
			UserNotFound:   ErrUserNotFound,
			VerifyPassword: e.verifyPassword,
			IssuePair:      e.issuePair,
			Fingerprint:    session.Fingerprint,
			SessionStore:   store,
		},
		Refresh: flows.RefreshDeps{
			VerifyRefresh: e.verifySubject(jwt.RoleRefresh),
			LookupUser: func(ctx context.Context, subject string) error {
				_, err := e.users.GetUserByID(ctx, subject)
				return err
			},
			UserNotFound:  ErrUserNotFound,
			IssuePair:     e.issuePair,
			Fingerprint:   session.Fingerprint,
			SessionStore:  store,
			RevokeOnReuse: cfg.Security.RevokeOnReuse,
			Warn:          logger.Warn,
		},
		Logout: flows.LogoutDeps{
			VerifyAccess: e.verifySubject(jwt.RoleAccess),
			SessionStore: store,
		},
	})

	b.built = true
	return e, nil
}

func (e *Engine) lookupLoginUser(ctx context.Context, identifier string) (flows.LoginUser, error) {
	user, err := e.users.GetUserByIdentifier(ctx, identifier)
	if err != nil {
		return flows.LoginUser{}, err
	}
	if user.UserID == "" {
		return flows.LoginUser{}, errors.New("user provider returned a record without UserID")
	}
	return flows.LoginUser{UserID: user.UserID, PasswordHash: user.PasswordHash, Record: user}, nil
}

// verifyPassword treats an oversized password as a wrong one.
func (e *Engine) verifyPassword(pw, encodedHash string) (bool, error) {
	ok, err := e.verifier.Verify(pw, encodedHash)
	if errors.Is(err, password.ErrPasswordTooLong) {
		return false, nil
	}
	return ok, err
}

func (e *Engine) verifySubject(role jwt.Role) func(string) (string, error) {
	return func(token string) (string, error) {
		claims, err := e.codec.Verify(token, role)
		if err != nil {
			return "", err
		}
		return claims.Subject, nil
	}
}
