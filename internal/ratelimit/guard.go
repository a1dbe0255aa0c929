package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

var ErrRateLimited = errors.New("rate limit exceeded")

// Returned when a limiter denies a request. Matches ErrRateLimited.
type ExceededError struct {
	Class      string
	RetryAfter time.Duration
}

func (e *ExceededError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s requests, try again in %d seconds",
		e.Class, int(math.Ceil(e.RetryAfter.Seconds())))
}

func (e *ExceededError) Is(target error) bool {
	return target == ErrRateLimited
}

// Counts one request for key against l. Returns nil when allowed, an
// *ExceededError when denied, or the backend error.
func Check(ctx context.Context, l Limiter, class, key string) error {
	allowed, err := l.Allow(ctx, key)
	if err != nil {
		return fmt.Errorf("rate limit check failed: %w", err)
	}
	if allowed {
		return nil
	}

	retryAfter, _ := l.RemainingTime(ctx, key)
	return &ExceededError{Class: class, RetryAfter: retryAfter}
}

// Runs fn only when the limiter admits key
func WithRateLimit(ctx context.Context, l Limiter, class, key string, fn func(context.Context) error) error {
	if err := Check(ctx, l, class, key); err != nil {
		return err
	}
	return fn(ctx)
}
