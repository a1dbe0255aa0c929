package ratelimit

import (
	"context"
	"sync"
	"time"
)

type windowEntry struct {
	count     int
	resetTime time.Time
}

// MemoryLimiter is a fixed-window counter held in process memory.
// A window starts with the first request for a key and resets completely once
// it expires, so bursts at window boundaries are possible.
type MemoryLimiter struct {
	mu          sync.Mutex
	store       map[string]*windowEntry
	maxRequests int
	window      time.Duration
	keyFunc     func(string) string
	now         func() time.Time
}

type Option func(*MemoryLimiter)

// Maps a caller identifier to the key the entry is stored under
func WithKeyFunc(fn func(string) string) Option {
	return func(m *MemoryLimiter) {
		if fn != nil {
			m.keyFunc = fn
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(m *MemoryLimiter) {
		if now != nil {
			m.now = now
		}
	}
}

// maxRequests and window must be positive; Policy.Validate enforces it for
// configured limiters.
func NewMemory(maxRequests int, window time.Duration, opts ...Option) *MemoryLimiter {
	m := &MemoryLimiter{
		store:       make(map[string]*windowEntry),
		maxRequests: maxRequests,
		window:      window,
		keyFunc:     func(id string) string { return id },
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *MemoryLimiter) Allow(_ context.Context, identifier string) (bool, error) {
	key := m.keyFunc(identifier)
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.sweep(now)

	entry, ok := m.store[key]
	if !ok {
		m.store[key] = &windowEntry{count: 1, resetTime: now.Add(m.window)}
		return true, nil
	}

	if entry.count >= m.maxRequests {
		return false, nil
	}

	entry.count++
	return true, nil
}

func (m *MemoryLimiter) Remaining(_ context.Context, identifier string) (int, error) {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.live(m.keyFunc(identifier), now)
	if !ok {
		return m.maxRequests, nil
	}

	remaining := m.maxRequests - entry.count
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

func (m *MemoryLimiter) RemainingTime(_ context.Context, identifier string) (time.Duration, error) {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.live(m.keyFunc(identifier), now)
	if !ok {
		return 0, nil
	}

	return entry.resetTime.Sub(now), nil
}

func (m *MemoryLimiter) Limit() int {
	return m.maxRequests
}

func (m *MemoryLimiter) Window() time.Duration {
	return m.window
}

// Number of tracked entries, expired ones included until the next sweep
func (m *MemoryLimiter) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.store)
}

// Deletes every entry whose window has passed. Caller holds mu.
func (m *MemoryLimiter) sweep(now time.Time) {
	for key, entry := range m.store {
		if !now.Before(entry.resetTime) {
			delete(m.store, key)
		}
	}
}

// An expired entry that has not been swept yet counts as absent. Caller holds mu.
func (m *MemoryLimiter) live(key string, now time.Time) (*windowEntry, bool) {
	entry, ok := m.store[key]
	if !ok || !now.Before(entry.resetTime) {
		return nil, false
	}
	return entry, true
}
