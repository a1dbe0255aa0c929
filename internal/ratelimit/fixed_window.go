package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/mybeatfi/securegate/internal/storage"
	"github.com/redis/go-redis/v9"
)

// Counts only while below the limit so a denied request leaves the window untouched.
// The window starts with the first request, matching MemoryLimiter.
var fixedWindowScript = redis.NewScript(`
local current = tonumber(redis.call('GET', KEYS[1]) or '0')
if current >= tonumber(ARGV[1]) then
	return 0
end
current = redis.call('INCR', KEYS[1])
if current == 1 then
	redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return 1
`)

// Fixed window shared by every gateway replica through Redis
type RedisFixedWindow struct {
	redis  *storage.RedisClient
	name   string
	limit  int
	window time.Duration
}

func NewRedisFixedWindow(redis *storage.RedisClient, name string, limit int, window time.Duration) *RedisFixedWindow {
	return &RedisFixedWindow{
		redis:  redis,
		name:   name,
		limit:  limit,
		window: window,
	}
}

func (f *RedisFixedWindow) key(key string) string {
	return fmt.Sprintf("ratelimit:%s:fixed:%s", f.name, key)
}

func (f *RedisFixedWindow) Allow(ctx context.Context, key string) (bool, error) {
	res, err := f.redis.RunScript(ctx, fixedWindowScript, []string{f.key(key)}, f.limit, f.window.Milliseconds())
	if err != nil {
		return false, err
	}

	allowed, _ := res.(int64)
	return allowed == 1, nil
}

func (f *RedisFixedWindow) Remaining(ctx context.Context, key string) (int, error) {
	val, err := f.redis.Get(ctx, f.key(key))
	if errors.Is(err, redis.Nil) {
		return f.limit, nil
	}
	if err != nil {
		return 0, err
	}

	count, _ := strconv.Atoi(val)
	remaining := f.limit - count
	if remaining < 0 {
		remaining = 0
	}

	return remaining, nil
}

func (f *RedisFixedWindow) RemainingTime(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := f.redis.PTTL(ctx, f.key(key))
	if err != nil {
		return 0, err
	}

	// -2 missing key, -1 no expiry
	if ttl < 0 {
		return 0, nil
	}
	return ttl, nil
}

func (f *RedisFixedWindow) Limit() int {
	return f.limit
}

func (f *RedisFixedWindow) Window() time.Duration {
	return f.window
}
