package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingLimiter struct{ err error }

func (f failingLimiter) Allow(context.Context, string) (bool, error) { return false, f.err }
func (f failingLimiter) Remaining(context.Context, string) (int, error) { return 0, f.err }
func (f failingLimiter) RemainingTime(context.Context, string) (time.Duration, error) {
	return 0, f.err
}
func (f failingLimiter) Limit() int             { return 0 }
func (f failingLimiter) Window() time.Duration { return 0 }

func TestWithRateLimit(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	l := NewMemory(1, 5*time.Minute, WithClock(clock.Now))

	calls := 0
	fn := func(context.Context) error {
		calls++
		return nil
	}

	require.NoError(t, WithRateLimit(ctx, l, ClassPayment, "k", fn))

	clock.Advance(time.Minute)
	err := WithRateLimit(ctx, l, ClassPayment, "k", fn)
	require.ErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, 1, calls)

	var exceeded *ExceededError
	require.True(t, errors.As(err, &exceeded))
	assert.Equal(t, ClassPayment, exceeded.Class)
	assert.Equal(t, 4*time.Minute, exceeded.RetryAfter)
	assert.Contains(t, err.Error(), "240 seconds")
}

func TestCheck_BackendFailureIsNotRateLimit(t *testing.T) {
	backendErr := errors.New("connection refused")
	err := Check(context.Background(), failingLimiter{err: backendErr}, ClassAPI, "k")

	require.ErrorIs(t, err, backendErr)
	assert.NotErrorIs(t, err, ErrRateLimited)
}

func TestPolicy_Validate(t *testing.T) {
	for name, p := range DefaultPolicies() {
		assert.NoError(t, p.Validate(), name)
	}

	assert.Error(t, Policy{Name: "x", MaxRequests: 0, Window: time.Second}.Validate())
	assert.Error(t, Policy{Name: "x", MaxRequests: 1}.Validate())
	assert.Error(t, Policy{Name: "x", MaxRequests: 1, Window: time.Second, Algorithm: "leaky"}.Validate())
}

func TestNewLimiter_FallsBackToMemoryWithoutRedis(t *testing.T) {
	l := NewLimiter(nil, BackendRedis, PaymentPolicy)

	_, ok := l.(*MemoryLimiter)
	require.True(t, ok)
	assert.Equal(t, 3, l.Limit())
	assert.Equal(t, 5*time.Minute, l.Window())
}
