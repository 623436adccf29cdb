package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	expectModeAny    = "any"
	expectModeAbsent = "absent"
	expectModeValue  = "value"
)

const (
	casStatusConflict int64 = 0
	casStatusSwapped  int64 = 1
)

// KEYS[1] = session key
// ARGV[1] = expectation mode, ARGV[2] = expected value
// ARGV[3] = "1" to write ARGV[4], "0" to clear
// ARGV[5] = ttl in milliseconds, 0 for no expiry
const setIfMatchesScript = `
local current = redis.call("GET", KEYS[1])
local mode = ARGV[1]
if mode == "absent" then
  if current then
    return 0
  end
elseif mode == "value" then
  if (not current) or current ~= ARGV[2] then
    return 0
  end
end
if ARGV[3] == "1" then
  local ttl = tonumber(ARGV[5])
  if ttl and ttl > 0 then
    redis.call("SET", KEYS[1], ARGV[4], "PX", ttl)
  else
    redis.call("SET", KEYS[1], ARGV[4])
  end
else
  redis.call("DEL", KEYS[1])
end
return 1
`

var setIfMatchesLua = redis.NewScript(setIfMatchesScript)

// RedisStore keeps one string key per subject and swaps it with a Lua script.
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisStore returns a RedisStore writing keys "<prefix>:<subject>" that
// expire after ttl. An empty prefix defaults to "prs".
func NewRedisStore(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisStore {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "prs"
	}
	return &RedisStore{
		redis:  client,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (s *RedisStore) key(subject string) string {
	return s.prefix + ":" + subject
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, subject string) (Value, error) {
	if subject == "" {
		return Absent, ErrInvalidSubject
	}
	token, err := s.redis.Get(ctx, s.key(subject)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Absent, nil
		}
		return Absent, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return Present(token), nil
}

// SetIfMatches implements Store. The compare and the write run inside one
// script invocation, so concurrent callers presenting the same expectation
// observe exactly one swap.
func (s *RedisStore) SetIfMatches(ctx context.Context, subject string, expected Expectation, next Value) (bool, error) {
	if subject == "" {
		return false, ErrInvalidSubject
	}

	mode, expectedToken := expectModeAny, ""
	if !expected.IsAny() {
		if v := expected.Value(); v.Valid {
			mode, expectedToken = expectModeValue, v.Token
		} else {
			mode = expectModeAbsent
		}
	}

	write := "0"
	if next.Valid {
		write = "1"
	}

	status, err := setIfMatchesLua.Run(
		ctx,
		s.redis,
		[]string{s.key(subject)},
		mode,
		expectedToken,
		write,
		next.Token,
		s.ttl.Milliseconds(),
	).Int64()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	switch status {
	case casStatusSwapped:
		return true, nil
	case casStatusConflict:
		return false, nil
	default:
		return false, fmt.Errorf("%w: unexpected script status %d", ErrUnavailable, status)
	}
}
