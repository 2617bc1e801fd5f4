package cache

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// CacheConfig holds configuration for the response cache.
type CacheConfig struct {
	// Enabled controls whether caching is active. When false, no middleware
	// is applied and all requests pass through uncached.
	Enabled bool

	// ModelsTTL bounds how long model list and detail responses are served
	// from cache. Every refresh also clears the cache.
	ModelsTTL time.Duration

	// MaxSize is the maximum number of cached responses.
	MaxSize int
}

// DefaultCacheConfig returns a CacheConfig with sensible defaults.
func DefaultCacheConfig() *CacheConfig {
	return &CacheConfig{
		Enabled:   true,
		ModelsTTL: 30 * time.Second,
		MaxSize:   500,
	}
}

// CacheConfigFromEnv reads cache configuration from environment variables,
// falling back to defaults for any unset variable.
//
// Environment variables:
//   - DASHBOARD_CACHE_ENABLED: "true" or "false" (default: "true")
//   - DASHBOARD_CACHE_TTL: duration in seconds (default: 30)
//   - DASHBOARD_CACHE_MAX_SIZE: max entries (default: 500)
func CacheConfigFromEnv() *CacheConfig {
	cfg := DefaultCacheConfig()

	if v := os.Getenv("DASHBOARD_CACHE_ENABLED"); v != "" {
		cfg.Enabled = strings.EqualFold(v, "true") || v == "1"
	}

	if v := os.Getenv("DASHBOARD_CACHE_TTL"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			cfg.ModelsTTL = time.Duration(secs) * time.Second
		}
	}

	if v := os.Getenv("DASHBOARD_CACHE_MAX_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxSize = n
		}
	}

	return cfg
}
