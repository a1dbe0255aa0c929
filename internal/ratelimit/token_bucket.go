package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// TokenBucket keeps one x/time/rate limiter per key. It smooths bursts in
// front of the window policies and never talks to Redis.
type TokenBucket struct {
	mu      sync.Mutex
	entries map[string]*bucketEntry
	rps     rate.Limit
	burst   int
	idleTTL time.Duration
	now     func() time.Time
}

type bucketEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

type BucketOption func(*TokenBucket)

// Buckets unused for d are dropped by Cleanup (default 15m)
func WithIdleTTL(d time.Duration) BucketOption {
	return func(b *TokenBucket) { b.idleTTL = d }
}

func WithBucketClock(now func() time.Time) BucketOption {
	return func(b *TokenBucket) {
		if now != nil {
			b.now = now
		}
	}
}

func NewTokenBucket(rps float64, burst int, opts ...BucketOption) *TokenBucket {
	b := &TokenBucket{
		entries: make(map[string]*bucketEntry),
		rps:     rate.Limit(rps),
		burst:   burst,
		idleTTL: 15 * time.Minute,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *TokenBucket) get(key string, now time.Time) *rate.Limiter {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ent, ok := b.entries[key]; ok {
		ent.lastSeen = now
		return ent.lim
	}

	lim := rate.NewLimiter(b.rps, b.burst)
	b.entries[key] = &bucketEntry{lim: lim, lastSeen: now}
	return lim
}

func (b *TokenBucket) Allow(_ context.Context, key string) (bool, error) {
	now := b.now()
	return b.get(key, now).AllowN(now, 1), nil
}

// Whole tokens left in the bucket
func (b *TokenBucket) Remaining(_ context.Context, key string) (int, error) {
	now := b.now()
	tokens := b.get(key, now).TokensAt(now)
	if tokens < 0 {
		return 0, nil
	}
	return int(math.Floor(tokens)), nil
}

// Time until the next token is available
func (b *TokenBucket) RemainingTime(_ context.Context, key string) (time.Duration, error) {
	now := b.now()
	tokens := b.get(key, now).TokensAt(now)
	if tokens >= 1 || b.rps <= 0 {
		return 0, nil
	}

	seconds := (1 - tokens) / float64(b.rps)
	return time.Duration(seconds * float64(time.Second)), nil
}

func (b *TokenBucket) Limit() int {
	return b.burst
}

// Time to refill an empty bucket
func (b *TokenBucket) Window() time.Duration {
	if b.rps <= 0 {
		return 0
	}
	return time.Duration(float64(b.burst) / float64(b.rps) * float64(time.Second))
}

// Drops buckets idle for longer than the idle TTL
func (b *TokenBucket) Cleanup() int {
	cutoff := b.now().Add(-b.idleTTL)

	b.mu.Lock()
	defer b.mu.Unlock()

	removed := 0
	for k, ent := range b.entries {
		if ent.lastSeen.Before(cutoff) {
			delete(b.entries, k)
			removed++
		}
	}
	return removed
}

// Runs Cleanup every interval until ctx is cancelled
func (b *TokenBucket) StartJanitor(ctx context.Context, every time.Duration) {
	if every <= 0 {
		return
	}

	t := time.NewTicker(every)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				b.Cleanup()
			}
		}
	}()
}
