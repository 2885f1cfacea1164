package registry

import (
	"errors"
	"time"

	"github.com/dmphub/dmphub/pkg/dmp"
	"github.com/dmphub/dmphub/pkg/store"
)

// SnapshotStore is the conditional-write surface the versioner needs.
type SnapshotStore interface {
	PutIfAbsent(identifier, versionKey string, rec dmp.Record) error
}

// Versioner decides whether the current latest state must be preserved as
// an immutable snapshot before a change is applied.
type Versioner struct {
	snapshots SnapshotStore
	window    time.Duration
	now       func() time.Time
}

// NewVersioner creates a Versioner using the config's coalescing window.
func NewVersioner(snapshots SnapshotStore, cfg *Config) *Versioner {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Versioner{
		snapshots: snapshots,
		window:    cfg.CoalesceWindow,
		now:       time.Now,
	}
}

// MaybeSnapshot persists an immutable copy of latest under its modified
// timestamp, unless the updater is the owner and the last change is recent
// enough to coalesce. The caller's latest is never altered; it remains the
// base for merging.
//
// A version-key collision means the same state was already captured by a
// near-simultaneous read and is swallowed as a no-op. Any other write
// failure aborts the whole update: changes must not be applied on top of a
// state that should have been preserved and was not.
func (v *Versioner) MaybeSnapshot(latest dmp.Record, role dmp.Role) error {
	if role == dmp.RoleOwner && v.now().Sub(latest.Modified) < v.window {
		return nil
	}

	snap := latest.Clone()
	key := dmp.SnapshotVersionKey(latest.Modified)
	err := v.snapshots.PutIfAbsent(latest.Identifier, key, snap)
	if err != nil {
		if errors.Is(err, store.ErrKeyExists) {
			return nil
		}
		return StoreUnavailable(err, "snapshot %s@%s failed", latest.Identifier, key)
	}
	return nil
}
