package registry

import (
	"os"
	"strconv"
	"time"
)

// Config controls update-flow behavior.
type Config struct {
	// CoalesceWindow is how long after an owner edit further owner edits
	// keep amending the same version instead of snapshotting. Default 1h.
	CoalesceWindow time.Duration

	// IdentifierPrefix is the DOI shoulder used when minting identifiers
	// for records whose owner does not pre-register its own. Default
	// "10.48321/D1".
	IdentifierPrefix string
}

// DefaultConfig returns the default registry configuration.
func DefaultConfig() *Config {
	return &Config{
		CoalesceWindow:   time.Hour,
		IdentifierPrefix: "10.48321/D1",
	}
}

// ConfigFromEnv loads config from environment variables.
// DMPHUB_COALESCE_WINDOW_MINUTES, DMPHUB_IDENTIFIER_PREFIX.
func ConfigFromEnv() *Config {
	cfg := DefaultConfig()

	if v := os.Getenv("DMPHUB_COALESCE_WINDOW_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.CoalesceWindow = time.Duration(n) * time.Minute
		}
	}

	if v := os.Getenv("DMPHUB_IDENTIFIER_PREFIX"); v != "" {
		cfg.IdentifierPrefix = v
	}

	return cfg
}
