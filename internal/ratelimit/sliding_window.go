package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/mybeatfi/securegate/internal/storage"
	"github.com/redis/go-redis/v9"
)

// ARGV: now ms, window ms, limit, member
var slidingWindowScript = redis.NewScript(`
redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', tonumber(ARGV[1]) - tonumber(ARGV[2]))
local count = redis.call('ZCARD', KEYS[1])
if count >= tonumber(ARGV[3]) then
	return 0
end
redis.call('ZADD', KEYS[1], ARGV[1], ARGV[4])
redis.call('PEXPIRE', KEYS[1], ARGV[2])
return 1
`)

// True sliding window backed by a Redis sorted set of request timestamps
type RedisSlidingWindow struct {
	redis  *storage.RedisClient
	name   string
	limit  int
	window time.Duration
	now    func() time.Time
}

func NewRedisSlidingWindow(redis *storage.RedisClient, name string, limit int, window time.Duration) *RedisSlidingWindow {
	return &RedisSlidingWindow{
		redis:  redis,
		name:   name,
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

func (s *RedisSlidingWindow) key(key string) string {
	return fmt.Sprintf("ratelimit:%s:sliding:%s", s.name, key)
}

func (s *RedisSlidingWindow) Allow(ctx context.Context, key string) (bool, error) {
	now := s.now()
	member := fmt.Sprintf("%d-%s", now.UnixNano(), uuid.NewString())

	res, err := s.redis.RunScript(ctx, slidingWindowScript, []string{s.key(key)},
		now.UnixMilli(), s.window.Milliseconds(), s.limit, member)
	if err != nil {
		return false, err
	}

	allowed, _ := res.(int64)
	return allowed == 1, nil
}

func (s *RedisSlidingWindow) Remaining(ctx context.Context, key string) (int, error) {
	now := s.now()
	windowStart := now.Add(-s.window)

	count, err := s.redis.ZCount(ctx, s.key(key),
		"("+strconv.FormatInt(windowStart.UnixMilli(), 10),
		strconv.FormatInt(now.UnixMilli(), 10))
	if err != nil {
		return 0, err
	}

	remaining := s.limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// Time until the oldest request in the window falls out of it
func (s *RedisSlidingWindow) RemainingTime(ctx context.Context, key string) (time.Duration, error) {
	oldest, err := s.redis.ZRangeWithScores(ctx, s.key(key), 0, 0)
	if err != nil {
		return 0, err
	}
	if len(oldest) == 0 {
		return 0, nil
	}

	resetAt := time.UnixMilli(int64(oldest[0].Score)).Add(s.window)
	remaining := resetAt.Sub(s.now())
	if remaining < 0 {
		return 0, nil
	}
	return remaining, nil
}

func (s *RedisSlidingWindow) Limit() int {
	return s.limit
}

func (s *RedisSlidingWindow) Window() time.Duration {
	return s.window
}
