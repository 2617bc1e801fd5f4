package dashboard

import (
	"fmt"
	"sync"
	"time"
)

// RateLimitError is returned when a manual refresh arrives too soon.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("refresh rate limited, retry after %s", e.RetryAfter.Round(time.Second))
}

// RefreshRateLimiter allows one refresh per key per interval.
type RefreshRateLimiter struct {
	mu          sync.Mutex
	lastAllowed map[string]time.Time
	interval    time.Duration
}

// NewRefreshRateLimiter creates a limiter. The default interval is 30 seconds.
func NewRefreshRateLimiter(interval time.Duration) *RefreshRateLimiter {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &RefreshRateLimiter{
		lastAllowed: make(map[string]time.Time),
		interval:    interval,
	}
}

// Allow reports whether a refresh for key is permitted now, or how long to
// wait otherwise.
func (rl *RefreshRateLimiter) Allow(key string) (bool, time.Duration) {
	return rl.allowAt(key, time.Now())
}

func (rl *RefreshRateLimiter) allowAt(key string, now time.Time) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	last, ok := rl.lastAllowed[key]
	if ok {
		next := last.Add(rl.interval)
		if now.Before(next) {
			return false, next.Sub(now)
		}
	}
	rl.lastAllowed[key] = now
	return true, 0
}

// Reset forgets every key.
func (rl *RefreshRateLimiter) Reset() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.lastAllowed = make(map[string]time.Time)
}
