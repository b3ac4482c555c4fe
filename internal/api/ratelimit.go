package api

import (
	"sync"

	"golang.org/x/time/rate"
)

type RateLimiter struct {
	mu                sync.Mutex
	limiters          map[string]*rate.Limiter
	requestsPerSecond int
	burstSize         int
}

func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		limiters:          make(map[string]*rate.Limiter),
		requestsPerSecond: 50,
		burstSize:         100,
	}
}

func (rl *RateLimiter) Allow(client string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	// Prevent unlimited growth from spoofed clients.
	if len(rl.limiters) >= 10000 {
		rl.limiters = make(map[string]*rate.Limiter)
	}

	limiter, exists := rl.limiters[client]
	if !exists {
		limiter = rate.NewLimiter(
			rate.Limit(rl.requestsPerSecond),
			rl.burstSize,
		)
		rl.limiters[client] = limiter
	}

	return limiter.Allow()
}
