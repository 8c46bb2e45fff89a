package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// fixedWindow increments the counter and starts its window on the first hit.
// It returns {count, pttl}.
var fixedWindow = goredis.NewScript(`
local c = redis.call("INCR", KEYS[1])
if c == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return {c, redis.call("PTTL", KEYS[1])}
`)

// FixedWindowLimiter allows limit hits per key per window, shared by every
// API instance pointing at the same Redis.
type FixedWindowLimiter struct {
	rdb    goredis.Scripter
	limit  int
	window time.Duration
	prefix string
}

func NewFixedWindowLimiter(rdb goredis.Scripter, limit int, window time.Duration) *FixedWindowLimiter {
	return &FixedWindowLimiter{rdb: rdb, limit: limit, window: window, prefix: "ratelimit:"}
}

// Allow counts one hit for key. retryAfter is the time left in the window
// when the hit is rejected.
func (l *FixedWindowLimiter) Allow(ctx context.Context, key string) (allowed bool, retryAfter time.Duration, err error) {
	res, err := fixedWindow.Run(ctx, l.rdb, []string{l.prefix + key}, l.window.Milliseconds()).Int64Slice()
	if err != nil {
		return false, 0, fmt.Errorf("ratelimit eval: %w", err)
	}
	if len(res) != 2 {
		return false, 0, fmt.Errorf("ratelimit eval: unexpected reply %v", res)
	}

	if res[0] <= int64(l.limit) {
		return true, 0, nil
	}
	ttl := time.Duration(res[1]) * time.Millisecond
	if ttl <= 0 {
		ttl = l.window
	}
	return false, ttl, nil
}
