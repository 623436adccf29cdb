//go:build integration
// +build integration

package test

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/pairauth"
	"github.com/MrEthical07/pairauth/identity"
)

const testPassword = "correct-password-123"

// redisMode describes which Redis backend the suite is running against.
type redisMode struct {
	name  string
	setup func(t *testing.T) redis.UniversalClient
}

// redisModes returns the Redis backends to test. miniredis is always
// available; REDIS_ADDR and REDIS_CLUSTER_ADDRS add real deployments.
func redisModes(t *testing.T) []redisMode {
	t.Helper()
	modes := []redisMode{
		{
			name: "miniredis",
			setup: func(t *testing.T) redis.UniversalClient {
				t.Helper()
				mr, err := miniredis.Run()
				if err != nil {
					t.Fatalf("miniredis: %v", err)
				}
				rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
				t.Cleanup(func() { _ = rdb.Close(); mr.Close() })
				return rdb
			},
		},
	}

	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		modes = append(modes, redisMode{
			name: "standalone",
			setup: func(t *testing.T) redis.UniversalClient {
				t.Helper()
				rdb := redis.NewClient(&redis.Options{Addr: addr})
				ping(t, rdb)
				rdb.FlushDB(context.Background())
				t.Cleanup(func() { rdb.FlushDB(context.Background()); _ = rdb.Close() })
				return rdb
			},
		})
	}

	if addrs := os.Getenv("REDIS_CLUSTER_ADDRS"); addrs != "" {
		modes = append(modes, redisMode{
			name: "cluster",
			setup: func(t *testing.T) redis.UniversalClient {
				t.Helper()
				rdb := redis.NewClusterClient(&redis.ClusterOptions{Addrs: strings.Split(addrs, ",")})
				ping(t, rdb)
				t.Cleanup(func() { _ = rdb.Close() })
				return rdb
			},
		})
	}

	return modes
}

func ping(t *testing.T, rdb redis.UniversalClient) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		t.Skipf("cannot connect to Redis: %v", err)
	}
}

func testConfig() pairauth.Config {
	cfg := pairauth.DefaultConfig()
	cfg.JWT.AccessSecret = "integration-access-secret"
	cfg.JWT.RefreshSecret = "integration-refresh-secret"
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Metrics.Enabled = true
	return cfg
}

func hashPassword(t *testing.T, cfg pairauth.Config) string {
	t.Helper()
	hasher, err := cfg.Password.Hasher()
	if err != nil {
		t.Fatalf("argon2: %v", err)
	}
	hash, err := hasher.Hash(testPassword)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	return hash
}

// newUsers returns a provider holding alice and bob, both with testPassword.
func newUsers(t *testing.T, cfg pairauth.Config) *identity.MemoryProvider {
	t.Helper()
	hash := hashPassword(t, cfg)
	users := identity.NewMemoryProvider()
	for _, name := range []string{"alice", "bob"} {
		if _, err := users.Put(pairauth.UserRecord{
			Username:     name,
			Email:        name + "@example.com",
			PasswordHash: hash,
		}); err != nil {
			t.Fatalf("put %s: %v", name, err)
		}
	}
	return users
}

func build(t *testing.T, b *pairauth.Builder) *pairauth.Engine {
	t.Helper()
	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine
}
