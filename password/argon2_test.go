package password

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"
)

// cheapConfig keeps argon2 fast enough for table tests.
func cheapConfig() Config {
	return Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func newHasher(t *testing.T, cfg Config) *Argon2 {
	t.Helper()
	a, err := NewArgon2(cfg)
	if err != nil {
		t.Fatalf("NewArgon2: %v", err)
	}
	return a
}

func mustHash(t *testing.T, a *Argon2, pw string) string {
	t.Helper()
	h, err := a.Hash(pw)
	if err != nil {
		t.Fatalf("Hash(%q): %v", pw, err)
	}
	return h
}

func TestVerifyContract(t *testing.T) {
	a := newHasher(t, cheapConfig())
	stored := mustHash(t, a, "correct-password-123")

	if !strings.HasPrefix(stored, "$argon2id$v=19$m=8192,t=1,p=1$") {
		t.Fatalf("unexpected PHC prefix: %s", stored)
	}

	ok, err := a.Verify("correct-password-123", stored)
	if err != nil || !ok {
		t.Fatalf("match: got (%v, %v), want (true, nil)", ok, err)
	}

	// A wrong password is a plain mismatch; the engine counts it as bad
	// credentials rather than an internal failure.
	for _, pw := range []string{"wrong-password-123", "", "correct-password-12", "CORRECT-PASSWORD-123"} {
		ok, err := a.Verify(pw, stored)
		if err != nil || ok {
			t.Fatalf("Verify(%q): got (%v, %v), want (false, nil)", pw, ok, err)
		}
	}
}

func TestVerifyOversizedPasswordFailsFast(t *testing.T) {
	cfg := cheapConfig()
	cfg.MaxPasswordBytes = 64
	a := newHasher(t, cfg)

	// The stored value is never decoded: oversized input is rejected first.
	ok, err := a.Verify(strings.Repeat("x", 65), "not-a-phc-hash")
	if ok || !errors.Is(err, ErrPasswordTooLong) {
		t.Fatalf("got (%v, %v), want ErrPasswordTooLong", ok, err)
	}

	ok, err = a.Verify(strings.Repeat("x", 64), mustHash(t, a, strings.Repeat("y", 64)))
	if ok || err != nil {
		t.Fatalf("boundary length: got (%v, %v), want (false, nil)", ok, err)
	}
}

func TestDefaultMaxPasswordBytes(t *testing.T) {
	a := newHasher(t, cheapConfig())

	if _, err := a.Hash(strings.Repeat("a", DefaultMaxPasswordBytes)); err != nil {
		t.Fatalf("hash at the default limit: %v", err)
	}
	if _, err := a.Hash(strings.Repeat("a", DefaultMaxPasswordBytes+1)); !errors.Is(err, ErrPasswordTooLong) {
		t.Fatalf("expected ErrPasswordTooLong, got %v", err)
	}
}

func TestHashRejectsShortPasswords(t *testing.T) {
	a := newHasher(t, cheapConfig())
	for _, pw := range []string{"", "short", "123456789"} {
		if _, err := a.Hash(pw); !errors.Is(err, ErrPasswordTooShort) {
			t.Fatalf("Hash(%q): expected ErrPasswordTooShort, got %v", pw, err)
		}
	}
}

func TestHashUsesFreshSalt(t *testing.T) {
	a := newHasher(t, cheapConfig())
	first := mustHash(t, a, "same-password-twice")
	second := mustHash(t, a, "same-password-twice")
	if first == second {
		t.Fatal("two hashes of one password must differ")
	}
	for _, stored := range []string{first, second} {
		if ok, err := a.Verify("same-password-twice", stored); err != nil || !ok {
			t.Fatalf("Verify: got (%v, %v)", ok, err)
		}
	}
}

func TestVerifyMalformedStoredValues(t *testing.T) {
	a := newHasher(t, cheapConfig())
	good := mustHash(t, a, "correct-password-123")
	fields := strings.Split(good, "$")
	with := func(i int, v string) string {
		f := append([]string(nil), fields...)
		f[i] = v
		return strings.Join(f, "$")
	}
	shortSalt := base64.StdEncoding.EncodeToString(make([]byte, 8))

	cases := map[string]string{
		"empty":            "",
		"bcrypt":           "$2a$10$abcdefghijklmnopqrstuu5Jk0rS3nJ8y1G3l2ZgPZ9Oa1F5c3aW",
		"argon2i":          with(1, "argon2i"),
		"old version":      with(2, "v=16"),
		"params reordered": with(3, "t=1,m=8192,p=1"),
		"memory below min": with(3, "m=1024,t=1,p=1"),
		"zero lanes":       with(3, "m=8192,t=1,p=0"),
		"extra param":      with(3, "m=8192,t=1,p=1,x=2"),
		"salt not base64":  with(4, "***"),
		"salt too short":   with(4, shortSalt),
		"empty key":        with(5, ""),
		"trailing field":   good + "$extra",
		"missing lead $":   strings.TrimPrefix(good, "$"),
	}
	for name, stored := range cases {
		ok, err := a.Verify("correct-password-123", stored)
		if ok || !errors.Is(err, ErrMalformedHash) {
			t.Fatalf("%s: got (%v, %v), want ErrMalformedHash", name, ok, err)
		}
		if _, err := a.NeedsUpgrade(stored); !errors.Is(err, ErrMalformedHash) {
			t.Fatalf("%s: NeedsUpgrade got %v, want ErrMalformedHash", name, err)
		}
	}
}

func TestNeedsUpgrade(t *testing.T) {
	current := cheapConfig()
	current.Memory = 16 * 1024
	current.Time = 2
	current.Parallelism = 2
	a := newHasher(t, current)

	cases := map[string]struct {
		mutate func(*Config)
		want   bool
	}{
		"same parameters": {func(*Config) {}, false},
		"lower memory":    {func(c *Config) { c.Memory = 8 * 1024 }, true},
		"fewer passes":    {func(c *Config) { c.Time = 1 }, true},
		"fewer lanes":     {func(c *Config) { c.Parallelism = 1 }, true},
		"shorter key":     {func(c *Config) { c.KeyLength = 16 }, true},
		"longer key":      {func(c *Config) { c.KeyLength = 64 }, true},
		"higher memory":   {func(c *Config) { c.Memory = 32 * 1024 }, false},
		"longer salt":     {func(c *Config) { c.SaltLength = 32 }, false},
	}
	for name, tc := range cases {
		cfg := current
		tc.mutate(&cfg)
		stored := mustHash(t, newHasher(t, cfg), "upgrade-check-password")

		got, err := a.NeedsUpgrade(stored)
		if err != nil {
			t.Fatalf("%s: NeedsUpgrade: %v", name, err)
		}
		if got != tc.want {
			t.Fatalf("%s: NeedsUpgrade = %v, want %v", name, got, tc.want)
		}
		// Older parameters still verify until the caller re-hashes.
		if ok, err := a.Verify("upgrade-check-password", stored); err != nil || !ok {
			t.Fatalf("%s: Verify got (%v, %v)", name, ok, err)
		}
	}
}

func TestNewArgon2RejectsWeakCosts(t *testing.T) {
	cases := map[string]func(*Config){
		"memory":      func(c *Config) { c.Memory = 4096 },
		"time":        func(c *Config) { c.Time = 0 },
		"parallelism": func(c *Config) { c.Parallelism = 0 },
		"salt":        func(c *Config) { c.SaltLength = 8 },
		"key":         func(c *Config) { c.KeyLength = 8 },
	}
	for name, mutate := range cases {
		cfg := cheapConfig()
		mutate(&cfg)
		if _, err := NewArgon2(cfg); err == nil {
			t.Fatalf("%s: expected rejection", name)
		}
	}
}
