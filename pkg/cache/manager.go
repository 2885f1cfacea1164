package cache

import (
	"net/http"
)

// Manager owns the record read cache and provides targeted invalidation so
// that a write to one record only clears that record's cached reads. A nil
// Manager is valid and disables caching.
type Manager struct {
	reads *LRUCache
}

// NewManager creates a Manager from the given configuration. If cfg is nil
// or disabled, it returns nil.
func NewManager(cfg *CacheConfig) *Manager {
	if cfg == nil || !cfg.Enabled {
		return nil
	}
	return &Manager{
		reads: NewLRUCache(cfg.MaxSize, cfg.RecordTTL),
	}
}

// InvalidateRecord clears the cached latest read, versioned reads and
// version listing for one record.
func (m *Manager) InvalidateRecord(identifier string) {
	if m == nil {
		return
	}
	m.reads.InvalidatePrefix("/dmps/" + identifier)
	m.reads.InvalidatePrefix("/dmps/versions/" + identifier)
}

// InvalidateAll clears the read cache entirely.
func (m *Manager) InvalidateAll() {
	if m == nil {
		return
	}
	m.reads.InvalidateAll()
}

// Middleware returns HTTP middleware that serves record GET responses from
// the read cache. A nil Manager returns a pass-through.
func (m *Manager) Middleware() func(http.Handler) http.Handler {
	if m == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return CacheMiddleware(m.reads)
}
