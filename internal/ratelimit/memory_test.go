package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func TestMemoryLimiter_AllowsUpToLimitWithinWindow(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	l := NewMemory(3, time.Minute, WithClock(clock.Now))

	for i := 0; i < 3; i++ {
		allowed, err := l.Allow(ctx, "client-a")
		require.NoError(t, err)
		assert.True(t, allowed, "request %d should be allowed", i+1)
		clock.Advance(10 * time.Second)
	}

	allowed, err := l.Allow(ctx, "client-a")
	require.NoError(t, err)
	assert.False(t, allowed)

	remaining, _ := l.Remaining(ctx, "client-a")
	assert.Equal(t, 0, remaining)
}

func TestMemoryLimiter_DeniedRequestDoesNotExtendWindow(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	l := NewMemory(1, time.Minute, WithClock(clock.Now))

	allowed, _ := l.Allow(ctx, "k")
	require.True(t, allowed)

	clock.Advance(40 * time.Second)
	allowed, _ = l.Allow(ctx, "k")
	require.False(t, allowed)

	left, _ := l.RemainingTime(ctx, "k")
	assert.Equal(t, 20*time.Second, left)
}

func TestMemoryLimiter_WindowExpiryResetsCount(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	l := NewMemory(2, time.Minute, WithClock(clock.Now))

	l.Allow(ctx, "k")
	l.Allow(ctx, "k")
	allowed, _ := l.Allow(ctx, "k")
	require.False(t, allowed)

	clock.Advance(time.Minute)

	allowed, _ = l.Allow(ctx, "k")
	assert.True(t, allowed)

	remaining, _ := l.Remaining(ctx, "k")
	assert.Equal(t, 1, remaining, "count restarts at 1 after expiry")

	left, _ := l.RemainingTime(ctx, "k")
	assert.Equal(t, time.Minute, left)
}

func TestMemoryLimiter_IdentifiersAreIndependent(t *testing.T) {
	ctx := context.Background()
	l := NewMemory(1, time.Hour)

	allowed, _ := l.Allow(ctx, "a")
	require.True(t, allowed)
	allowed, _ = l.Allow(ctx, "a")
	require.False(t, allowed)

	allowed, _ = l.Allow(ctx, "b")
	assert.True(t, allowed)
}

func TestMemoryLimiter_SweepRemovesExpiredEntries(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	l := NewMemory(5, time.Minute, WithClock(clock.Now))

	for i := 0; i < 10; i++ {
		l.Allow(ctx, fmt.Sprintf("client-%d", i))
	}
	require.Equal(t, 10, l.Len())

	clock.Advance(2 * time.Minute)
	l.Allow(ctx, "client-3")

	assert.Equal(t, 1, l.Len(), "only the just-touched entry survives the sweep")
}

func TestMemoryLimiter_UnknownIdentifier(t *testing.T) {
	ctx := context.Background()
	l := NewMemory(7, time.Minute)

	remaining, err := l.Remaining(ctx, "nobody")
	require.NoError(t, err)
	assert.Equal(t, 7, remaining)

	left, err := l.RemainingTime(ctx, "nobody")
	require.NoError(t, err)
	assert.Zero(t, left)
}

func TestMemoryLimiter_ExpiredEntryReportsAsAbsent(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	l := NewMemory(2, time.Minute, WithClock(clock.Now))

	l.Allow(ctx, "k")
	clock.Advance(90 * time.Second)

	remaining, _ := l.Remaining(ctx, "k")
	assert.Equal(t, 2, remaining)

	left, _ := l.RemainingTime(ctx, "k")
	assert.Zero(t, left)
}

func TestMemoryLimiter_KeyFunc(t *testing.T) {
	ctx := context.Background()
	l := NewMemory(1, time.Minute, WithKeyFunc(strings.ToLower))

	allowed, _ := l.Allow(ctx, "User@Example.com")
	require.True(t, allowed)

	allowed, _ = l.Allow(ctx, "user@example.com")
	assert.False(t, allowed, "identifiers mapping to the same key share an entry")
}
