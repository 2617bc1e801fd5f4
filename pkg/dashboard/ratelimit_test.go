package dashboard

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRefreshRateLimiter(t *testing.T) {
	rl := NewRefreshRateLimiter(30 * time.Second)
	now := time.Now()

	ok, wait := rl.allowAt("manual", now)
	assert.True(t, ok)
	assert.Zero(t, wait)

	ok, wait = rl.allowAt("manual", now.Add(10*time.Second))
	assert.False(t, ok)
	assert.Equal(t, 20*time.Second, wait)

	ok, _ = rl.allowAt("other", now.Add(10*time.Second))
	assert.True(t, ok)

	ok, _ = rl.allowAt("manual", now.Add(30*time.Second))
	assert.True(t, ok)

	rl.Reset()
	ok, _ = rl.allowAt("manual", now.Add(31*time.Second))
	assert.True(t, ok)
}

func TestRefreshRateLimiter_DefaultInterval(t *testing.T) {
	rl := NewRefreshRateLimiter(0)
	assert.Equal(t, 30*time.Second, rl.interval)
}

func TestRateLimitError(t *testing.T) {
	err := &RateLimitError{RetryAfter: 1500 * time.Millisecond}
	assert.Equal(t, "refresh rate limited, retry after 2s", err.Error())
}
