package cache

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// CacheConfig holds configuration for the record read cache.
type CacheConfig struct {
	// Enabled controls whether caching is active. When false, no middleware
	// is applied and all reads pass through uncached.
	Enabled bool

	// RecordTTL is the TTL for record read responses. Latest-version reads
	// go stale on every update, so this stays short; invalidation on
	// mutation keeps the window smaller still.
	RecordTTL time.Duration

	// MaxSize is the maximum number of cached responses.
	MaxSize int
}

// DefaultCacheConfig returns a CacheConfig with sensible defaults.
func DefaultCacheConfig() *CacheConfig {
	return &CacheConfig{
		Enabled:   true,
		RecordTTL: 30 * time.Second,
		MaxSize:   1000,
	}
}

// CacheConfigFromEnv reads cache configuration from environment variables,
// falling back to defaults for any unset variable.
//
// Environment variables:
//   - DMPHUB_CACHE_ENABLED: "true" or "false" (default: "true")
//   - DMPHUB_CACHE_RECORD_TTL: duration in seconds (default: 30)
//   - DMPHUB_CACHE_MAX_SIZE: max cached responses (default: 1000)
func CacheConfigFromEnv() *CacheConfig {
	cfg := DefaultCacheConfig()

	if v := os.Getenv("DMPHUB_CACHE_ENABLED"); v != "" {
		cfg.Enabled = strings.EqualFold(v, "true") || v == "1"
	}

	if v := os.Getenv("DMPHUB_CACHE_RECORD_TTL"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			cfg.RecordTTL = time.Duration(secs) * time.Second
		}
	}

	if v := os.Getenv("DMPHUB_CACHE_MAX_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxSize = n
		}
	}

	return cfg
}
