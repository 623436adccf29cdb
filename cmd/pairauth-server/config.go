package main

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

const envPrefix = "PAIRAUTH_"

// serverConfig holds the process settings. Engine settings are read
// separately by pairauth.LoadConfigFromEnv with the same prefix.
type serverConfig struct {
	Addr            string        `env:"ADDR" envDefault:":8080"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	Backend         string        `env:"BACKEND" envDefault:"memory"`
	RedisAddr       string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword   string        `env:"REDIS_PASSWORD"`
	DatabaseURL     string        `env:"DATABASE_URL"`
	CookieSecure    bool          `env:"COOKIE_SECURE" envDefault:"true"`
	CookieSameSite  string        `env:"COOKIE_SAMESITE" envDefault:"lax"`
	CookieDomain    string        `env:"COOKIE_DOMAIN"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	// SeedUsers is "username:email:password" entries for the memory
	// identity provider.
	SeedUsers []string `env:"SEED_USERS" envSeparator:","`
}

const (
	backendMemory   = "memory"
	backendRedis    = "redis"
	backendPostgres = "postgres"
)

func loadServerConfig() (serverConfig, error) {
	var cfg serverConfig
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: envPrefix}); err != nil {
		return serverConfig{}, fmt.Errorf("parse env: %w", err)
	}

	cfg.Backend = strings.ToLower(strings.TrimSpace(cfg.Backend))
	switch cfg.Backend {
	case backendMemory, backendRedis:
	case backendPostgres:
		if cfg.DatabaseURL == "" {
			return serverConfig{}, fmt.Errorf("%sDATABASE_URL is required for the postgres backend", envPrefix)
		}
	default:
		return serverConfig{}, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
	if _, err := parseSameSite(cfg.CookieSameSite); err != nil {
		return serverConfig{}, err
	}
	return cfg, nil
}

func parseSameSite(v string) (http.SameSite, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "lax":
		return http.SameSiteLaxMode, nil
	case "strict":
		return http.SameSiteStrictMode, nil
	case "none":
		return http.SameSiteNoneMode, nil
	default:
		return 0, fmt.Errorf("invalid cookie SameSite %q", v)
	}
}

type seedUser struct {
	username string
	email    string
	password string
}

func parseSeedUsers(entries []string) ([]seedUser, error) {
	out := make([]seedUser, 0, len(entries))
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, ":", 3)
		if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
			return nil, fmt.Errorf("seed user %q: want username:email:password", parts[0])
		}
		out = append(out, seedUser{username: parts[0], email: parts[1], password: parts[2]})
	}
	return out, nil
}
