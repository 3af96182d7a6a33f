package provider

import (
	"context"
	"sync"
	"time"
)

// RateLimiter is a token bucket shared by the API clients. Alpha Vantage's
// free tier allows very few calls per minute, so clients block on Wait
// instead of failing fast.
type RateLimiter struct {
	mu          sync.Mutex
	tokens      int
	maxTokens   int
	refillEvery time.Duration
	lastRefill  time.Time
}

// NewRateLimiter allows maxTokens calls, regaining one token per refillEvery.
func NewRateLimiter(maxTokens int, refillEvery time.Duration) *RateLimiter {
	return &RateLimiter{
		tokens:      maxTokens,
		maxTokens:   maxTokens,
		refillEvery: refillEvery,
		lastRefill:  time.Now(),
	}
}

// Wait blocks until a token is available or ctx is cancelled.
func (r *RateLimiter) Wait(ctx context.Context) error {
	for {
		if r.tryAcquire() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.refillEvery):
		}
	}
}

func (r *RateLimiter) tryAcquire() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	refilled := int(now.Sub(r.lastRefill) / r.refillEvery)
	if refilled > 0 {
		r.tokens += refilled
		if r.tokens > r.maxTokens {
			r.tokens = r.maxTokens
		}
		r.lastRefill = r.lastRefill.Add(time.Duration(refilled) * r.refillEvery)
	}

	if r.tokens > 0 {
		r.tokens--
		return true
	}
	return false
}
