package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	minMemoryKB    uint32 = 8 * 1024
	minTimeCost    uint32 = 1
	minParallelism uint8  = 1
	minSaltLength  uint32 = 16
	minKeyLength   uint32 = 16
	minPassBytes          = 10
	algorithmID           = "argon2id"
)

// DefaultMaxPasswordBytes bounds the input hashed when Config.MaxPasswordBytes
// is zero.
const DefaultMaxPasswordBytes = 1024

var (
	// ErrPasswordTooLong is returned by Hash and Verify for inputs longer
	// than the configured maximum. Verify fails before running argon2.
	ErrPasswordTooLong = errors.New("password exceeds maximum length")
	// ErrPasswordTooShort is returned by Hash for inputs under 10 bytes.
	ErrPasswordTooShort = errors.New("password must be at least 10 bytes")
	// ErrMalformedHash wraps every failure to decode a stored credential.
	ErrMalformedHash = errors.New("malformed argon2id hash")
)

// Config holds the argon2id cost parameters. Memory is in KiB.
type Config struct {
	Memory           uint32
	Time             uint32
	Parallelism      uint8
	SaltLength       uint32
	KeyLength        uint32
	MaxPasswordBytes int
}

// Argon2 hashes and verifies passwords. It is safe for concurrent use and
// satisfies pairauth.CredentialVerifier.
type Argon2 struct {
	config Config
}

// NewArgon2 validates cfg against the minimum cost parameters.
func NewArgon2(cfg Config) (*Argon2, error) {
	switch {
	case cfg.Memory < minMemoryKB:
		return nil, errors.New("password memory must be >= 8192 KB")
	case cfg.Time < minTimeCost:
		return nil, errors.New("password time must be >= 1")
	case cfg.Parallelism < minParallelism:
		return nil, errors.New("password parallelism must be >= 1")
	case cfg.SaltLength < minSaltLength:
		return nil, errors.New("password salt length must be >= 16")
	case cfg.KeyLength < minKeyLength:
		return nil, errors.New("password key length must be >= 16")
	}
	if cfg.MaxPasswordBytes <= 0 {
		cfg.MaxPasswordBytes = DefaultMaxPasswordBytes
	}
	return &Argon2{config: cfg}, nil
}

// Hash returns the PHC string of password under a fresh random salt. The
// raw bytes are hashed as given, without Unicode normalization.
func (a *Argon2) Hash(password string) (string, error) {
	switch {
	case len(password) < minPassBytes:
		return "", ErrPasswordTooShort
	case len(password) > a.config.MaxPasswordBytes:
		return "", ErrPasswordTooLong
	}

	p := phc{
		memory:      a.config.Memory,
		time:        a.config.Time,
		parallelism: a.config.Parallelism,
		salt:        make([]byte, a.config.SaltLength),
	}
	if _, err := rand.Read(p.salt); err != nil {
		return "", fmt.Errorf("password salt: %w", err)
	}
	p.key = p.derive(password, a.config.KeyLength)
	return p.String(), nil
}

// Verify reports whether password matches the stored credential. A mismatch
// is (false, nil). ErrPasswordTooLong and ErrMalformedHash are the only
// errors.
func (a *Argon2) Verify(password, encodedHash string) (bool, error) {
	if len(password) > a.config.MaxPasswordBytes {
		return false, ErrPasswordTooLong
	}
	stored, err := decodePHC(encodedHash)
	if err != nil {
		return false, err
	}
	computed := stored.derive(password, uint32(len(stored.key)))
	return subtle.ConstantTimeCompare(computed, stored.key) == 1, nil
}

// NeedsUpgrade reports whether encodedHash is weaker than what Hash would
// produce today: lower costs, a shorter salt or a different key length.
func (a *Argon2) NeedsUpgrade(encodedHash string) (bool, error) {
	stored, err := decodePHC(encodedHash)
	if err != nil {
		return false, err
	}
	weaker := stored.memory < a.config.Memory ||
		stored.time < a.config.Time ||
		stored.parallelism < a.config.Parallelism ||
		uint32(len(stored.salt)) < a.config.SaltLength ||
		uint32(len(stored.key)) != a.config.KeyLength
	return weaker, nil
}

// phc is a decoded $argon2id$v=19$m=<kib>,t=<passes>,p=<lanes>$<salt>$<key>.
type phc struct {
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
	key         []byte
}

func (p phc) derive(password string, keyLen uint32) []byte {
	return argon2.IDKey([]byte(password), p.salt, p.time, p.memory, p.parallelism, keyLen)
}

func (p phc) String() string {
	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		algorithmID, argon2.Version,
		p.memory, p.time, p.parallelism,
		base64.StdEncoding.EncodeToString(p.salt),
		base64.StdEncoding.EncodeToString(p.key),
	)
}

func malformed(what string) error {
	return fmt.Errorf("%w: %s", ErrMalformedHash, what)
}

func decodePHC(s string) (phc, error) {
	var p phc

	fields := strings.Split(s, "$")
	if len(fields) != 6 || fields[0] != "" {
		return p, malformed("expected 5 $-separated fields")
	}
	if fields[1] != algorithmID {
		return p, malformed("algorithm " + strconv.Quote(fields[1]))
	}
	if fields[2] != "v="+strconv.Itoa(argon2.Version) {
		return p, malformed("version " + strconv.Quote(fields[2]))
	}

	// Parameters appear in the canonical m,t,p order written by String.
	params := strings.Split(fields[3], ",")
	if len(params) != 3 {
		return p, malformed("parameter list")
	}
	memory, err := paramValue(params[0], "m", 32, uint64(minMemoryKB))
	if err != nil {
		return p, err
	}
	passes, err := paramValue(params[1], "t", 32, uint64(minTimeCost))
	if err != nil {
		return p, err
	}
	lanes, err := paramValue(params[2], "p", 8, uint64(minParallelism))
	if err != nil {
		return p, err
	}
	p.memory, p.time, p.parallelism = uint32(memory), uint32(passes), uint8(lanes)

	if p.salt, err = base64.StdEncoding.DecodeString(fields[4]); err != nil {
		return p, malformed("salt encoding")
	}
	if uint32(len(p.salt)) < minSaltLength {
		return p, malformed("salt shorter than 16 bytes")
	}
	if p.key, err = base64.StdEncoding.DecodeString(fields[5]); err != nil {
		return p, malformed("key encoding")
	}
	if len(p.key) == 0 {
		return p, malformed("empty key")
	}
	return p, nil
}

func paramValue(pair, name string, bits int, floor uint64) (uint64, error) {
	k, v, ok := strings.Cut(pair, "=")
	if !ok || k != name {
		return 0, malformed("parameter " + strconv.Quote(pair))
	}
	n, err := strconv.ParseUint(v, 10, bits)
	if err != nil || n < floor {
		return 0, malformed("parameter " + strconv.Quote(pair))
	}
	return n, nil
}
