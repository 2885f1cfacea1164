package registry

import (
	"strings"
	"time"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/dmphub/dmphub/pkg/dmp"
)

// SpliceForOwner reconciles an owner update against the current state. The
// owner's incoming body becomes authoritative, except that funding and
// related-identifier entries contributed by other provenance systems are
// preserved, and bookkeeping fields are always carried forward from base.
// Pure: neither input is mutated.
func SpliceForOwner(base, incoming dmp.Record) dmp.Record {
	out := incoming.Clone()

	// Bookkeeping is never taken from the incoming body.
	out.Identifier = base.Identifier
	out.OwnerProvenanceID = base.OwnerProvenanceID
	out.Created = base.Created
	out.Modified = base.Modified
	out.ModificationsLog = base.Clone().ModificationsLog

	// Owners cannot silently erase related identifiers contributed by
	// other systems.
	present := mapset.NewSet[string]()
	for _, ri := range out.RelatedIdentifiers {
		present.Add(dmp.NormalizeIdentifier(ri.Identifier))
	}
	for _, ri := range base.RelatedIdentifiers {
		if !foreignTo(ri.ProvenanceID, base.OwnerProvenanceID) {
			continue
		}
		if present.Contains(dmp.NormalizeIdentifier(ri.Identifier)) {
			continue
		}
		out.RelatedIdentifiers = append(out.RelatedIdentifiers, ri)
		present.Add(dmp.NormalizeIdentifier(ri.Identifier))
	}

	// Same for funding contributed by non-owner systems.
	known := mapset.NewSet[string]()
	for _, f := range out.Funding() {
		known.Add(fundingKey(f))
	}
	for _, f := range base.Funding() {
		if !foreignTo(f.ProvenanceID, base.OwnerProvenanceID) {
			continue
		}
		if known.Contains(fundingKey(f)) {
			continue
		}
		out = appendFunding(out, f)
		known.Add(fundingKey(f))
	}

	return out
}

// SpliceForOther reconciles a non-owner update. Authoritative fields are
// never replaced: only the funding and related-identifier lists change, and
// only within the updater's own contributions.
//
// Funding: an incoming entry carrying a grant id completes any pending
// entry from the same funder; otherwise it is appended as a new candidate
// tagged with the updater. Related identifiers: the updater's previously
// tagged entries are replaced wholesale by the incoming set, so repeated
// deliveries are idempotent; entries from other provenances are untouched.
func SpliceForOther(base, incoming dmp.Record, updaterProvenanceID string, now time.Time) dmp.Record {
	out := base.Clone()

	out = spliceFunding(out, incoming, updaterProvenanceID, now)

	if incoming.RelatedIdentifiers != nil {
		// Timestamps of entries the updater re-delivers are kept stable so
		// at-least-once delivery of the same set is a detectable no-op.
		previous := make(map[string]*time.Time)
		taken := mapset.NewSet[string]()
		kept := make([]dmp.RelatedIdentifier, 0, len(out.RelatedIdentifiers))
		for _, ri := range out.RelatedIdentifiers {
			if ri.ProvenanceID != updaterProvenanceID {
				kept = append(kept, ri)
				taken.Add(dmp.NormalizeIdentifier(ri.Identifier))
				continue
			}
			previous[dmp.NormalizeIdentifier(ri.Identifier)] = ri.CreatedAt
		}
		for _, ri := range incoming.RelatedIdentifiers {
			// An identifier already present on another provenance's entry,
			// or delivered twice in one payload, is appended only once.
			norm := dmp.NormalizeIdentifier(ri.Identifier)
			if taken.Contains(norm) {
				continue
			}
			entry := ri.WithDefaults()
			entry.ProvenanceID = updaterProvenanceID
			if was, ok := previous[norm]; ok && was != nil {
				entry.CreatedAt = was
			} else {
				ts := now
				entry.CreatedAt = &ts
			}
			kept = append(kept, entry)
			taken.Add(norm)
		}
		out.RelatedIdentifiers = kept
	}

	return out
}

func spliceFunding(out, incoming dmp.Record, updater string, now time.Time) dmp.Record {
	knownGrants := out.KnownGrantIDs()

	for _, in := range incoming.Funding() {
		if in.GrantID != "" {
			if knownGrants.Contains(dmp.NormalizeIdentifier(in.GrantID)) {
				continue
			}
			if completePendingFunding(&out, in) {
				knownGrants.Add(dmp.NormalizeIdentifier(in.GrantID))
				continue
			}
		}
		entry := in
		entry.ProvenanceID = updater
		ts := now
		entry.CreatedAt = &ts
		if entry.Status == "" {
			if entry.GrantID != "" {
				entry.Status = dmp.FundingGranted
			} else {
				entry.Status = dmp.FundingPlanned
			}
		}
		out = appendFunding(out, entry)
		if entry.GrantID != "" {
			knownGrants.Add(dmp.NormalizeIdentifier(entry.GrantID))
		}
	}
	return out
}

// completePendingFunding upgrades a pending (grant-less) entry from the
// same funder in place. Reports whether a match was found.
func completePendingFunding(out *dmp.Record, in dmp.FundingEntry) bool {
	for pi := range out.Projects {
		funding := out.Projects[pi].Funding
		for fi := range funding {
			if funding[fi].GrantID != "" {
				continue
			}
			if !sameFunder(funding[fi], in) {
				continue
			}
			funding[fi].GrantID = in.GrantID
			funding[fi].Status = dmp.FundingGranted
			if in.OpportunityID != "" {
				funding[fi].OpportunityID = in.OpportunityID
			}
			return true
		}
	}
	return false
}

func sameFunder(a, b dmp.FundingEntry) bool {
	if a.FunderID != "" && b.FunderID != "" {
		return dmp.NormalizeIdentifier(a.FunderID) == dmp.NormalizeIdentifier(b.FunderID)
	}
	return a.FunderName != "" &&
		strings.EqualFold(strings.TrimSpace(a.FunderName), strings.TrimSpace(b.FunderName))
}

// fundingKey identifies a funding entry for dedup: grant id when present,
// funder identity otherwise.
func fundingKey(f dmp.FundingEntry) string {
	if f.GrantID != "" {
		return "grant:" + dmp.NormalizeIdentifier(f.GrantID)
	}
	if f.FunderID != "" {
		return "funder:" + dmp.NormalizeIdentifier(f.FunderID)
	}
	return "name:" + strings.ToLower(strings.TrimSpace(f.FunderName))
}

// appendFunding adds an entry to the record's first project, creating one
// when the record has none.
func appendFunding(r dmp.Record, f dmp.FundingEntry) dmp.Record {
	if len(r.Projects) == 0 {
		r.Projects = []dmp.Project{{Title: r.Title}}
	}
	r.Projects[0].Funding = append(r.Projects[0].Funding, f)
	return r
}

// foreignTo reports whether a tagged provenance differs from the owner.
// Untagged entries belong to the owner.
func foreignTo(provenanceID, ownerID string) bool {
	return provenanceID != "" && provenanceID != ownerID
}
