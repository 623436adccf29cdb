// Command pairauth-server serves login, refresh and logout over HTTP.
//
// Settings come from PAIRAUTH_* environment variables, optionally loaded
// from a .env file. PAIRAUTH_BACKEND selects where sessions live: memory,
// redis or postgres. The postgres backend also reads users from Postgres;
// the others use an in-memory provider seeded from PAIRAUTH_SEED_USERS.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/pairauth"
	"github.com/MrEthical07/pairauth/httpauth"
	"github.com/MrEthical07/pairauth/identity"
	"github.com/MrEthical07/pairauth/metrics/export/prometheus"
	"github.com/MrEthical07/pairauth/middleware"
	"github.com/MrEthical07/pairauth/migrations"
	"github.com/MrEthical07/pairauth/session"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
	}

	if err := run(); err != nil {
		slog.Error("pairauth-server stopped", "err", err)
		os.Exit(1)
	}
}

func run() error {
	srvCfg, err := loadServerConfig()
	if err != nil {
		return err
	}
	logger := newLogger(srvCfg.LogLevel)

	cfg, err := pairauth.LoadConfigFromEnv(envPrefix)
	if err != nil {
		return fmt.Errorf("engine config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	builder := pairauth.New().
		WithConfig(cfg).
		WithLogger(logger)
	if cfg.Audit.Enabled {
		builder = builder.WithAuditSink(pairauth.NewJSONWriterSink(os.Stdout))
	}

	switch srvCfg.Backend {
	case backendPostgres:
		pool, err := pgxpool.New(ctx, srvCfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("postgres pool: %w", err)
		}
		defer pool.Close()
		if err := pool.Ping(ctx); err != nil {
			return fmt.Errorf("postgres ping: %w", err)
		}
		if err := migrations.UpPool(ctx, pool); err != nil {
			return err
		}
		users, err := identity.NewPostgresProvider(pool)
		if err != nil {
			return err
		}
		builder = builder.
			WithSessionStore(session.NewPostgresStore(pool, cfg.JWT.RefreshTTL)).
			WithUserProvider(users)
		logger.Info("using postgres backend")

	case backendRedis:
		client := redis.NewClient(&redis.Options{Addr: srvCfg.RedisAddr, Password: srvCfg.RedisPassword})
		defer func() { _ = client.Close() }()
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
		users, err := seededProvider(cfg, srvCfg.SeedUsers)
		if err != nil {
			return err
		}
		builder = builder.WithRedis(client).WithUserProvider(users)
		logger.Info("using redis backend", "addr", srvCfg.RedisAddr)

	default:
		users, err := seededProvider(cfg, srvCfg.SeedUsers)
		if err != nil {
			return err
		}
		builder = builder.
			WithSessionStore(session.NewMemoryStore(cfg.JWT.RefreshTTL)).
			WithUserProvider(users)
		logger.Warn("using memory backend; sessions are lost on restart")
	}

	engine, err := builder.Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer engine.Close()

	sameSite, _ := parseSameSite(srvCfg.CookieSameSite)
	auth := httpauth.NewHandler(engine,
		httpauth.WithLogger(logger),
		httpauth.WithCookieConfig(httpauth.CookieConfig{
			Secure:        srvCfg.CookieSecure,
			Path:          "/",
			Domain:        srvCfg.CookieDomain,
			SameSite:      sameSite,
			AccessMaxAge:  cfg.JWT.AccessTTL,
			RefreshMaxAge: cfg.JWT.RefreshTTL,
		}),
	)

	mux := http.NewServeMux()
	mux.Handle("/api/v1/users/", http.StripPrefix("/api/v1/users", auth.Routes()))
	mux.Handle("GET /api/v1/users/me", middleware.Guard(engine)(http.HandlerFunc(meHandler)))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	if cfg.Metrics.Enabled {
		metricsHandler, err := prometheus.Handler(prometheus.NewCollector(engine))
		if err != nil {
			return fmt.Errorf("metrics handler: %w", err)
		}
		mux.Handle("GET /metrics", metricsHandler)
	}

	srv := &http.Server{
		Addr:              srvCfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", srvCfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), srvCfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func meHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(httpauth.Envelope{
		StatusCode: http.StatusOK,
		Data:       map[string]string{"id": middleware.UserIDFromContext(r.Context())},
		Message:    "Current user",
		Success:    true,
	})
}

func seededProvider(cfg pairauth.Config, entries []string) (*identity.MemoryProvider, error) {
	seeds, err := parseSeedUsers(entries)
	if err != nil {
		return nil, err
	}

	users := identity.NewMemoryProvider()
	if len(seeds) == 0 {
		return users, nil
	}

	hasher, err := cfg.Password.Hasher()
	if err != nil {
		return nil, err
	}
	for _, s := range seeds {
		hash, err := hasher.Hash(s.password)
		if err != nil {
			return nil, fmt.Errorf("seed user %s: %w", s.username, err)
		}
		if _, err := users.Put(pairauth.UserRecord{Username: s.username, Email: s.email, PasswordHash: hash}); err != nil {
			return nil, fmt.Errorf("seed user %s: %w", s.username, err)
		}
	}
	return users, nil
}

func newLogger(level string) *slog.Logger {
	lvl := slog.LevelInfo
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)
	return logger
}
