// Package dmp defines the domain model for persistent data-management-plan
// records: the record body, its append-only assertion ledger, and the
// provenance actors that create and amend records.
package dmp

import (
	"time"

	mapset "github.com/deckarep/golang-set/v2"
)

// AssertionStatus is the review state of a ledger entry.
type AssertionStatus string

const (
	StatusPending  AssertionStatus = "pending"
	StatusAccepted AssertionStatus = "accepted"
	StatusRejected AssertionStatus = "rejected"
)

// FundingStatus tracks the lifecycle of a funding entry.
type FundingStatus string

const (
	FundingPlanned FundingStatus = "planned"
	FundingApplied FundingStatus = "applied"
	FundingGranted FundingStatus = "granted"
	FundingDenied  FundingStatus = "rejected"
)

// Confidence is the match tier assigned by the comparator.
type Confidence string

const (
	ConfidenceAbsolute Confidence = "absolute"
	ConfidenceHigh     Confidence = "high"
	ConfidenceMedium   Confidence = "medium"
	ConfidenceLow      Confidence = "low"
)

// Default values applied to related identifiers when the contributing
// system omits them.
const (
	DefaultWorkType   = "dataset"
	DefaultDescriptor = "references"
	IdentifierTypeDOI = "doi"
)

// Person is a contact or contributor on a record.
type Person struct {
	Name            string   `json:"name"`
	Mbox            string   `json:"mbox,omitempty"`
	ORCID           string   `json:"orcid,omitempty"`
	AffiliationID   string   `json:"affiliation_id,omitempty"`
	AffiliationName string   `json:"affiliation_name,omitempty"`
	Roles           []string `json:"roles,omitempty"`
}

// Clone returns a deep copy.
func (p Person) Clone() Person {
	out := p
	out.Roles = append([]string(nil), p.Roles...)
	return out
}

// RelatedIdentifier links a record to an external work.
type RelatedIdentifier struct {
	Type       string `json:"type"`
	Identifier string `json:"identifier"`
	Descriptor string `json:"descriptor,omitempty"`
	WorkType   string `json:"work_type,omitempty"`
	Citation   string `json:"citation,omitempty"`

	// ProvenanceID tags the system that contributed the entry. Empty means
	// the record owner supplied it.
	ProvenanceID string     `json:"provenance,omitempty"`
	CreatedAt    *time.Time `json:"created,omitempty"`
}

// WithDefaults returns a copy with work_type and descriptor defaulted.
func (ri RelatedIdentifier) WithDefaults() RelatedIdentifier {
	out := ri
	if out.WorkType == "" {
		out.WorkType = DefaultWorkType
	}
	if out.Descriptor == "" {
		out.Descriptor = DefaultDescriptor
	}
	if out.Type == "" {
		out.Type = IdentifierTypeDOI
	}
	return out
}

// FundingEntry is one funder relationship on a project.
type FundingEntry struct {
	FunderName    string        `json:"name,omitempty"`
	FunderID      string        `json:"funder_id,omitempty"`
	Status        FundingStatus `json:"funding_status,omitempty"`
	GrantID       string        `json:"grant_id,omitempty"`
	OpportunityID string        `json:"funding_opportunity_id,omitempty"`

	ProvenanceID string     `json:"provenance,omitempty"`
	CreatedAt    *time.Time `json:"created,omitempty"`
}

// Project groups funding entries under a research project.
type Project struct {
	Title   string         `json:"title,omitempty"`
	Start   string         `json:"start,omitempty"`
	End     string         `json:"end,omitempty"`
	Funding []FundingEntry `json:"funding,omitempty"`
}

// Clone returns a deep copy.
func (p Project) Clone() Project {
	out := p
	out.Funding = append([]FundingEntry(nil), p.Funding...)
	return out
}

// Assertion is one append-only entry in a record's modifications log: a
// change proposed by a non-owning system, pending curator review. It never
// mutates authoritative fields.
type Assertion struct {
	ID           string          `json:"id"`
	ProvenanceID string          `json:"provenance"`
	CreatedAt    time.Time       `json:"created"`
	Status       AssertionStatus `json:"status"`
	Note         string          `json:"note,omitempty"`
	Confidence   Confidence      `json:"confidence,omitempty"`
	Score        int             `json:"score,omitempty"`
	Notes        []string        `json:"notes,omitempty"`

	// Payload: proposed related identifiers and/or proposed funding
	// entries.
	RelatedIdentifiers []RelatedIdentifier `json:"related_identifiers,omitempty"`
	Funding            []FundingEntry      `json:"funding,omitempty"`
}

// Clone returns a deep copy.
func (a Assertion) Clone() Assertion {
	out := a
	out.Notes = append([]string(nil), a.Notes...)
	out.RelatedIdentifiers = append([]RelatedIdentifier(nil), a.RelatedIdentifiers...)
	out.Funding = append([]FundingEntry(nil), a.Funding...)
	return out
}

// Record is the authoritative body of a DMP record. A record has exactly
// one latest instance, zero or more immutable historical snapshots, and at
// most one tombstone, distinguished by version key in the store.
type Record struct {
	Identifier         string              `json:"identifier"`
	Title              string              `json:"title"`
	Description        string              `json:"description,omitempty"`
	Contact            *Person             `json:"contact,omitempty"`
	Contributors       []Person            `json:"contributors,omitempty"`
	Projects           []Project           `json:"project,omitempty"`
	RelatedIdentifiers []RelatedIdentifier `json:"related_identifiers,omitempty"`
	Private            bool                `json:"privacy,omitempty"`

	// OwnerProvenanceID is set at creation and never changes.
	OwnerProvenanceID string    `json:"owner_provenance_id"`
	Created           time.Time `json:"created"`
	Modified          time.Time `json:"modified"`

	// ModificationsLog is append-only; entries are never rewritten in place.
	ModificationsLog []Assertion `json:"modifications_log,omitempty"`
}

// Clone returns a deep copy of the record. Merge functions operate on
// copies so that callers never observe partial mutation.
func (r Record) Clone() Record {
	out := r
	if r.Contact != nil {
		c := r.Contact.Clone()
		out.Contact = &c
	}
	out.Contributors = make([]Person, len(r.Contributors))
	for i, p := range r.Contributors {
		out.Contributors[i] = p.Clone()
	}
	out.Projects = make([]Project, len(r.Projects))
	for i, p := range r.Projects {
		out.Projects[i] = p.Clone()
	}
	out.RelatedIdentifiers = append([]RelatedIdentifier(nil), r.RelatedIdentifiers...)
	out.ModificationsLog = make([]Assertion, len(r.ModificationsLog))
	for i, a := range r.ModificationsLog {
		out.ModificationsLog[i] = a.Clone()
	}
	return out
}

// Funding flattens all funding entries across the record's projects.
func (r Record) Funding() []FundingEntry {
	var out []FundingEntry
	for _, p := range r.Projects {
		out = append(out, p.Funding...)
	}
	return out
}

// KnownRelatedIdentifiers returns the normalized identifiers present in the
// authoritative related_identifiers list and anywhere in the modifications
// log. Used for dedup before every ledger append.
func (r Record) KnownRelatedIdentifiers() mapset.Set[string] {
	known := mapset.NewSet[string]()
	for _, ri := range r.RelatedIdentifiers {
		known.Add(NormalizeIdentifier(ri.Identifier))
	}
	for _, a := range r.ModificationsLog {
		for _, ri := range a.RelatedIdentifiers {
			known.Add(NormalizeIdentifier(ri.Identifier))
		}
	}
	known.Remove("")
	return known
}

// KnownGrantIDs returns the normalized grant ids present in authoritative
// funding entries and anywhere in the modifications log.
func (r Record) KnownGrantIDs() mapset.Set[string] {
	known := mapset.NewSet[string]()
	for _, f := range r.Funding() {
		known.Add(NormalizeIdentifier(f.GrantID))
	}
	for _, a := range r.ModificationsLog {
		for _, f := range a.Funding {
			known.Add(NormalizeIdentifier(f.GrantID))
		}
	}
	known.Remove("")
	return known
}

// KnownOpportunityIDs returns the normalized funding opportunity numbers
// known to the record, authoritative and ledger combined.
func (r Record) KnownOpportunityIDs() mapset.Set[string] {
	known := mapset.NewSet[string]()
	for _, f := range r.Funding() {
		known.Add(NormalizeIdentifier(f.OpportunityID))
	}
	for _, a := range r.ModificationsLog {
		for _, f := range a.Funding {
			known.Add(NormalizeIdentifier(f.OpportunityID))
		}
	}
	known.Remove("")
	return known
}

// Provenance is an external system or human actor that creates or amends
// records.
type Provenance struct {
	Key string `json:"key"`
	// IsOwnerCapable reports whether the system may create (own) records.
	IsOwnerCapable bool `json:"is_owner_capable"`
	// SeedingMode reports whether the system may pre-register
	// externally-minted identifiers ("prereg") or not ("none").
	SeedingMode string `json:"seeding_mode,omitempty"`
}

// Role is the updater's relationship to a record, computed once per update
// and passed down to the merge components.
type Role string

const (
	RoleOwner    Role = "owner"
	RoleNonOwner Role = "non_owner"
)

// RoleFor computes the updater's role for a record.
func RoleFor(updaterProvenanceID string, r Record) Role {
	if updaterProvenanceID == r.OwnerProvenanceID {
		return RoleOwner
	}
	return RoleNonOwner
}
