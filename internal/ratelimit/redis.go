package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// incrScript increments the counter and stamps the window expiry in one atomic
// step, so concurrent callers across processes agree on the window boundary.
// Returns {count, remaining window in ms}.
var incrScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end
return {count, ttl}
`)

// RedisStore is a CounterStore on Redis, for deployments with more than one
// replica. Window expiry rides on key TTL; atomicity comes from the script.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisStore returns a Redis-backed counter store.
func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb, prefix: "ratelimit"}
}

// Incr implements CounterStore.
func (s *RedisStore) Incr(ctx context.Context, key string, window time.Duration) (int64, time.Time, error) {
	now := time.Now()
	res, err := incrScript.Run(ctx, s.rdb, []string{s.prefix + ":" + key}, window.Milliseconds()).Slice()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("ratelimit incr: %w", err)
	}
	if len(res) != 2 {
		return 0, time.Time{}, fmt.Errorf("ratelimit incr: unexpected reply %v", res)
	}
	count, ok := res[0].(int64)
	if !ok {
		return 0, time.Time{}, fmt.Errorf("ratelimit incr: unexpected count %T", res[0])
	}
	ttlMs, ok := res[1].(int64)
	if !ok {
		return 0, time.Time{}, fmt.Errorf("ratelimit incr: unexpected ttl %T", res[1])
	}
	windowStart := now.Add(time.Duration(ttlMs) * time.Millisecond).Add(-window)
	return count, windowStart, nil
}
