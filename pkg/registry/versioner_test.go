package registry

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmphub/dmphub/pkg/dmp"
	"github.com/dmphub/dmphub/pkg/store"
)

// stubSnapshots records conditional writes and can simulate failures.
type stubSnapshots struct {
	err  error
	puts map[string]dmp.Record
}

func newStubSnapshots() *stubSnapshots {
	return &stubSnapshots{puts: map[string]dmp.Record{}}
}

func (s *stubSnapshots) PutIfAbsent(identifier, versionKey string, rec dmp.Record) error {
	if s.err != nil {
		return s.err
	}
	if _, ok := s.puts[versionKey]; ok {
		return store.ErrKeyExists
	}
	s.puts[versionKey] = rec
	return nil
}

func newTestVersioner(snaps SnapshotStore, at time.Time) *Versioner {
	v := NewVersioner(snaps, DefaultConfig())
	v.now = func() time.Time { return at }
	return v
}

func TestVersioner_OwnerWithinWindowCoalesces(t *testing.T) {
	snaps := newStubSnapshots()
	modified := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	v := newTestVersioner(snaps, modified.Add(10*time.Minute))

	latest := dmp.Record{Identifier: "10.48321/D1X", Title: "Plan", Modified: modified}
	require.NoError(t, v.MaybeSnapshot(latest, dmp.RoleOwner))
	assert.Empty(t, snaps.puts)
}

func TestVersioner_OwnerBeyondWindowSnapshots(t *testing.T) {
	snaps := newStubSnapshots()
	modified := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	v := newTestVersioner(snaps, modified.Add(2*time.Hour))

	latest := dmp.Record{Identifier: "10.48321/D1X", Title: "Plan", Modified: modified}
	require.NoError(t, v.MaybeSnapshot(latest, dmp.RoleOwner))

	key := dmp.SnapshotVersionKey(modified)
	snap, ok := snaps.puts[key]
	require.True(t, ok, "expected a snapshot under the modified timestamp")
	assert.Equal(t, "Plan", snap.Title)
}

func TestVersioner_NonOwnerAlwaysSnapshots(t *testing.T) {
	snaps := newStubSnapshots()
	modified := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	v := newTestVersioner(snaps, modified.Add(time.Minute))

	latest := dmp.Record{Identifier: "10.48321/D1X", Modified: modified}
	require.NoError(t, v.MaybeSnapshot(latest, dmp.RoleNonOwner))
	assert.Len(t, snaps.puts, 1)
}

func TestVersioner_SameSecondStatesSnapshotSeparately(t *testing.T) {
	snaps := newStubSnapshots()
	first := time.Date(2026, 8, 31, 12, 0, 2, 300_000_000, time.UTC)
	second := time.Date(2026, 8, 31, 12, 0, 2, 800_000_000, time.UTC)
	v := newTestVersioner(snaps, second.Add(time.Minute))

	// Two serialized non-owner merges whose modified timestamps land in the
	// same second must both be preserved; neither may be swallowed as a
	// benign collision.
	require.NoError(t, v.MaybeSnapshot(
		dmp.Record{Identifier: "10.48321/D1X", Title: "first state", Modified: first}, dmp.RoleNonOwner))
	require.NoError(t, v.MaybeSnapshot(
		dmp.Record{Identifier: "10.48321/D1X", Title: "second state", Modified: second}, dmp.RoleNonOwner))

	require.Len(t, snaps.puts, 2)
	assert.Equal(t, "first state", snaps.puts[dmp.SnapshotVersionKey(first)].Title)
	assert.Equal(t, "second state", snaps.puts[dmp.SnapshotVersionKey(second)].Title)
}

func TestVersioner_CollisionIsBenign(t *testing.T) {
	snaps := newStubSnapshots()
	modified := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	key := dmp.SnapshotVersionKey(modified)
	snaps.puts[key] = dmp.Record{Title: "already captured"}

	v := newTestVersioner(snaps, modified.Add(2*time.Hour))
	latest := dmp.Record{Identifier: "10.48321/D1X", Title: "new read", Modified: modified}

	// The same state was snapshotted by a near-simultaneous reader; that is
	// not an error and the existing snapshot must not be overwritten.
	require.NoError(t, v.MaybeSnapshot(latest, dmp.RoleOwner))
	assert.Equal(t, "already captured", snaps.puts[key].Title)
}

func TestVersioner_WriteFailureAbortsUpdate(t *testing.T) {
	snaps := newStubSnapshots()
	snaps.err = errors.New("store down")
	modified := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

	v := newTestVersioner(snaps, modified.Add(2*time.Hour))
	latest := dmp.Record{Identifier: "10.48321/D1X", Modified: modified}

	err := v.MaybeSnapshot(latest, dmp.RoleOwner)
	require.Error(t, err)
	assert.Equal(t, KindStoreUnavailable, KindOf(err))
}
