package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "sequence:ratelimit:"

// acquireScript records ARGV[1] (microseconds) as the last run of KEYS[1]
// unless the previous run is less than ARGV[2] microseconds earlier. ARGV[3]
// is the key TTL in milliseconds; 0 keeps the key until Reset.
var acquireScript = redis.NewScript(`
local last = redis.call('GET', KEYS[1])
local now = tonumber(ARGV[1])
if last and now - tonumber(last) < tonumber(ARGV[2]) then
  return 0
end
local ttl = tonumber(ARGV[3])
if ttl > 0 then
  redis.call('SET', KEYS[1], ARGV[1], 'PX', ttl)
else
  redis.call('SET', KEYS[1], ARGV[1])
end
return 1
`)

// RedisStore implements Store on Redis so that windows survive process
// restarts and are shared by every process using the same keys. Each key holds
// the time of the last run, compared against the store's clock.
type RedisStore struct {
	client redis.UniversalClient
	prefix string

	now    func() time.Time
	expire bool
}

// RedisStoreOption configures a RedisStore.
type RedisStoreOption func(*RedisStore)

// WithPrefix sets the prefix prepended to every key.
func WithPrefix(prefix string) RedisStoreOption {
	return func(s *RedisStore) {
		s.prefix = prefix
	}
}

// WithRedisNow sets the time source windows are measured on, typically the
// machine's clock. Keys then never expire on their own since Redis expiry
// runs on the wall clock.
func WithRedisNow(now func() time.Time) RedisStoreOption {
	return func(s *RedisStore) {
		s.now = now
		s.expire = false
	}
}

// NewRedisStore creates a store backed by client.
func NewRedisStore(client redis.UniversalClient, opts ...RedisStoreOption) *RedisStore {
	s := &RedisStore{
		client: client,
		prefix: defaultRedisPrefix,
		now:    time.Now,
		expire: true,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Acquire implements Store.
func (s *RedisStore) Acquire(ctx context.Context, key string, window time.Duration) (bool, error) {
	if key == "" {
		return false, ErrEmptyKey
	}

	if window <= 0 {
		return true, nil
	}

	var ttl int64
	if s.expire {
		ttl = max(window.Milliseconds(), 1)
	}

	ok, err := acquireScript.Run(ctx, s.client,
		[]string{s.prefix + key},
		s.now().UnixMicro(), window.Microseconds(), ttl,
	).Int()
	if err != nil {
		return false, fmt.Errorf("redis error acquiring %q: %w", key, err)
	}

	return ok == 1, nil
}

// Reset implements Store.
func (s *RedisStore) Reset(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis error resetting %q: %w", key, err)
	}

	return nil
}
