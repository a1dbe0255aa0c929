package ratelimit

import (
	"fmt"
	"time"

	"github.com/mybeatfi/securegate/internal/storage"
)

const (
	BackendMemory = "memory"
	BackendRedis  = "redis"

	AlgorithmFixedWindow   = "fixed_window"
	AlgorithmSlidingWindow = "sliding_window"
)

// Call classes guarded by their own limiter
const (
	ClassAuth    = "auth"
	ClassAPI     = "api"
	ClassUpload  = "upload"
	ClassPayment = "payment"
)

type Policy struct {
	Name        string
	MaxRequests int
	Window      time.Duration
	Algorithm   string
}

var (
	AuthPolicy    = Policy{Name: ClassAuth, MaxRequests: 5, Window: 15 * time.Minute, Algorithm: AlgorithmFixedWindow}
	APIPolicy     = Policy{Name: ClassAPI, MaxRequests: 100, Window: time.Minute, Algorithm: AlgorithmFixedWindow}
	UploadPolicy  = Policy{Name: ClassUpload, MaxRequests: 10, Window: time.Hour, Algorithm: AlgorithmFixedWindow}
	PaymentPolicy = Policy{Name: ClassPayment, MaxRequests: 3, Window: 5 * time.Minute, Algorithm: AlgorithmFixedWindow}
)

func DefaultPolicies() map[string]Policy {
	return map[string]Policy{
		ClassAuth:    AuthPolicy,
		ClassAPI:     APIPolicy,
		ClassUpload:  UploadPolicy,
		ClassPayment: PaymentPolicy,
	}
}

func (p Policy) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("rate limit policy name is required")
	}
	if p.MaxRequests <= 0 {
		return fmt.Errorf("rate limit policy %s: max requests must be positive", p.Name)
	}
	if p.Window <= 0 {
		return fmt.Errorf("rate limit policy %s: window must be positive", p.Name)
	}
	switch p.Algorithm {
	case "", AlgorithmFixedWindow, AlgorithmSlidingWindow:
	default:
		return fmt.Errorf("rate limit policy %s: unknown algorithm %q", p.Name, p.Algorithm)
	}
	return nil
}

// Builds the limiter for a policy. The memory backend only implements the fixed
// window, redis is required for sliding windows.
func NewLimiter(redis *storage.RedisClient, backend string, p Policy) Limiter {
	if backend != BackendRedis || redis == nil {
		return NewMemory(p.MaxRequests, p.Window)
	}

	switch p.Algorithm {
	case AlgorithmSlidingWindow:
		return NewRedisSlidingWindow(redis, p.Name, p.MaxRequests, p.Window)
	default:
		return NewRedisFixedWindow(redis, p.Name, p.MaxRequests, p.Window)
	}
}
