package ratelimiter

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// EndpointLimiters holds one token bucket limiter per subscription.
// Each limiter enforces a steady-state rate (e.g. 100 tokens/sec).
// Burst is set equal to the rate so no extra burst capacity is allowed
// beyond the configured per-second maximum.
type EndpointLimiters struct {
	mu       sync.Mutex
	rate     rate.Limit
	burst    int
	limiters map[string]*rate.Limiter
}

// New creates EndpointLimiters with ratePerSec tokens per second per subscription.
func New(ratePerSec int) *EndpointLimiters {
	return &EndpointLimiters{
		rate:     rate.Limit(ratePerSec),
		burst:    ratePerSec,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Wait blocks until the subscription's limiter grants a token.
// Called by each worker immediately before pushing to the endpoint.
// Returns a non-nil error only if ctx is cancelled while waiting.
func (el *EndpointLimiters) Wait(ctx context.Context, subscriptionID string) error {
	return el.limiter(subscriptionID).Wait(ctx)
}

func (el *EndpointLimiters) limiter(subscriptionID string) *rate.Limiter {
	el.mu.Lock()
	defer el.mu.Unlock()
	l, ok := el.limiters[subscriptionID]
	if !ok {
		l = rate.NewLimiter(el.rate, el.burst)
		el.limiters[subscriptionID] = l
	}
	return l
}
