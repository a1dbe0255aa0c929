package ratelimit

import (
	"context"
	"time"
)

type Limiter interface {
	// Reports whether one more request for key fits in the current window,
	// counting it when it does
	Allow(ctx context.Context, key string) (bool, error)

	Remaining(ctx context.Context, key string) (int, error)

	// Time left until the window for key resets, 0 when key is unknown
	RemainingTime(ctx context.Context, key string) (time.Duration, error)

	Limit() int

	Window() time.Duration
}
