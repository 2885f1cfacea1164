package registry

import (
	"time"

	"github.com/google/uuid"

	"github.com/dmphub/dmphub/pkg/dmp"
)

// Asserter appends externally proposed changes to a record's modifications
// log without overwriting authoritative fields.
type Asserter struct {
	now   func() time.Time
	newID func() string
}

// NewAsserter creates an Asserter.
func NewAsserter() *Asserter {
	return &Asserter{
		now:   time.Now,
		newID: func() string { return uuid.New().String() },
	}
}

// Add records the incoming body's related identifiers and funding as
// pending ledger entries on latest. Candidates already known to the record
// (authoritative fields or any existing ledger entry, compared on the
// normalized identifier) are skipped. Owner changes go through the splicer,
// not the ledger, so an owner updater returns latest unchanged.
// Pure apart from id/timestamp generation: inputs are not mutated.
func (a *Asserter) Add(updaterProvenanceID string, latest, incoming dmp.Record, note string) dmp.Record {
	if dmp.RoleFor(updaterProvenanceID, latest) == dmp.RoleOwner {
		return latest
	}

	out := latest.Clone()
	ts := a.now()

	knownRelated := latest.KnownRelatedIdentifiers()
	var proposed []dmp.RelatedIdentifier
	for _, ri := range incoming.RelatedIdentifiers {
		norm := dmp.NormalizeIdentifier(ri.Identifier)
		if norm == "" || knownRelated.Contains(norm) {
			continue
		}
		proposed = append(proposed, ri.WithDefaults())
		knownRelated.Add(norm)
	}
	if len(proposed) > 0 {
		out.ModificationsLog = append(out.ModificationsLog, dmp.Assertion{
			ID:                 a.newID(),
			ProvenanceID:       updaterProvenanceID,
			CreatedAt:          ts,
			Status:             dmp.StatusPending,
			Note:               note,
			RelatedIdentifiers: proposed,
		})
	}

	// Only the first incoming funding entry that carries a grant id is
	// considered.
	if grant := firstGranted(incoming); grant != nil {
		if !latest.KnownGrantIDs().Contains(dmp.NormalizeIdentifier(grant.GrantID)) {
			out.ModificationsLog = append(out.ModificationsLog, dmp.Assertion{
				ID:           a.newID(),
				ProvenanceID: updaterProvenanceID,
				CreatedAt:    ts,
				Status:       dmp.StatusPending,
				Note:         note,
				Funding:      []dmp.FundingEntry{*grant},
			})
		}
	}

	return out
}

// Append attaches a prebuilt assertion to latest. Dedup is the caller's
// responsibility; the augmenter uses this after its own known-item checks.
func (a *Asserter) Append(latest dmp.Record, assertion dmp.Assertion) dmp.Record {
	out := latest.Clone()
	if assertion.ID == "" {
		assertion.ID = a.newID()
	}
	if assertion.CreatedAt.IsZero() {
		assertion.CreatedAt = a.now()
	}
	if assertion.Status == "" {
		assertion.Status = dmp.StatusPending
	}
	out.ModificationsLog = append(out.ModificationsLog, assertion)
	return out
}

// SpliceLogs unions two modification logs by entry identity, for
// reconciling near-simultaneous writes by the same owner. Every entry from
// both sides survives; when the same entry appears on both, a reviewed copy
// wins over a still-pending one.
func (a *Asserter) SpliceLogs(base, incoming []dmp.Assertion) []dmp.Assertion {
	merged := make([]dmp.Assertion, len(base))
	index := make(map[string]int, len(base))
	for i, entry := range base {
		merged[i] = entry.Clone()
		index[entry.ID] = i
	}
	for _, entry := range incoming {
		i, seen := index[entry.ID]
		if !seen {
			index[entry.ID] = len(merged)
			merged = append(merged, entry.Clone())
			continue
		}
		if merged[i].Status == dmp.StatusPending && entry.Status != dmp.StatusPending {
			merged[i] = entry.Clone()
		}
	}
	return merged
}

// firstGranted returns the first funding entry in the body that carries a
// grant id, or nil.
func firstGranted(r dmp.Record) *dmp.FundingEntry {
	for _, f := range r.Funding() {
		if f.GrantID != "" {
			out := f
			return &out
		}
	}
	return nil
}
