package matching

import (
	"fmt"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/dmphub/dmphub/pkg/dmp"
)

// Scoring weights and thresholds.
const (
	scoreAbsolute      = 100
	scoreOpportunity   = 5
	scorePerORCID      = 2
	scorePerRepository = 1
	scoreStrongText    = 5
	scoreWeakText      = 2

	strongTextThreshold = 0.75
	weakTextThreshold   = 0.5

	// Records scoring at or below this are not matches.
	discardThreshold = 2

	highTierAbove   = 10
	mediumTierAbove = 5
)

// Response is the comparator's verdict for one record.
type Response struct {
	Confidence dmp.Confidence `json:"confidence"`
	Score      int            `json:"score"`
	Notes      []string       `json:"notes,omitempty"`
}

// Match pairs a record identifier with its winning response.
type Match struct {
	Identifier string `json:"identifier"`
	Response
}

// Comparator scores candidate works against known records. It is stateless
// and a pure function of its inputs: identical inputs always yield
// identical output.
type Comparator struct{}

// NewComparator creates a Comparator.
func NewComparator() *Comparator { return &Comparator{} }

// Compare scores the candidate against every known record and returns the
// best match, or nil when no record scores above the discard threshold.
// Ties keep the earliest record in input order; callers must not rely on
// any particular tie-break.
func (c *Comparator) Compare(work CandidateWork, records []dmp.Record) *Match {
	var best *Match
	for _, rec := range records {
		resp := c.Score(work, rec)
		if resp.Score <= discardThreshold {
			continue
		}
		if best == nil || resp.Score > best.Score {
			best = &Match{Identifier: rec.Identifier, Response: resp}
		}
	}
	return best
}

// Score computes the multi-signal response for one record.
//
// A grant-id intersection is treated as proof: it short-circuits with
// absolute confidence and no further signals evaluated. Otherwise signals
// accumulate: funding opportunity, contributor ORCIDs, name and
// affiliation overlap, repository identifiers (only once some other signal
// fired), and title/abstract token similarity.
func (c *Comparator) Score(work CandidateWork, rec dmp.Record) Response {
	if n := intersectCount(normalizeAll(work.GrantIDs), rec.KnownGrantIDs()); n > 0 {
		return Response{
			Confidence: dmp.ConfidenceAbsolute,
			Score:      scoreAbsolute,
			Notes:      []string{"the grant ids matched"},
		}
	}

	score := 0
	var notes []string

	if n := intersectCount(normalizeAll(work.OpportunityIDs), rec.KnownOpportunityIDs()); n > 0 {
		score += scoreOpportunity
		notes = append(notes, "the funding opportunity numbers matched")
	}

	if n := matchedORCIDs(work.Contributors, rec); n > 0 {
		score += scorePerORCID * n
		notes = append(notes, fmt.Sprintf("%d contributor ORCIDs matched", n))
	}

	if n := nameAffiliationOverlap(work.Contributors, rec); n > 0 {
		score += n
		notes = append(notes, "contributor names or affiliations matched")
	}

	// Repository overlap alone proves nothing; count it only once another
	// signal has fired.
	if score > 0 {
		if n := intersectCount(normalizeAll(work.RepositoryIDs), relatedIdentifierSet(rec)); n > 0 {
			score += scorePerRepository * n
			notes = append(notes, "repository identifiers matched")
		}
	}

	sim := similarity(work.Title, rec.Title)
	if s := similarity(work.Abstract, rec.Description); s > sim {
		sim = s
	}
	switch {
	case sim >= strongTextThreshold:
		score += scoreStrongText
		notes = append(notes, "titles or abstracts are strongly similar")
	case sim >= weakTextThreshold:
		score += scoreWeakText
		notes = append(notes, "titles or abstracts are similar")
	}

	return Response{Confidence: tierFor(score), Score: score, Notes: notes}
}

func tierFor(score int) dmp.Confidence {
	switch {
	case score > highTierAbove:
		return dmp.ConfidenceHigh
	case score > mediumTierAbove:
		return dmp.ConfidenceMedium
	default:
		return dmp.ConfidenceLow
	}
}

func normalizeAll(ids []string) mapset.Set[string] {
	out := mapset.NewSet[string]()
	for _, id := range ids {
		out.Add(dmp.NormalizeIdentifier(id))
	}
	out.Remove("")
	return out
}

func intersectCount(a, b mapset.Set[string]) int {
	return a.Intersect(b).Cardinality()
}

// relatedIdentifierSet is the record's normalized related identifiers,
// authoritative only; pending assertions are not evidence.
func relatedIdentifierSet(rec dmp.Record) mapset.Set[string] {
	out := mapset.NewSet[string]()
	for _, ri := range rec.RelatedIdentifiers {
		out.Add(dmp.NormalizeIdentifier(ri.Identifier))
	}
	out.Remove("")
	return out
}

func recordPeople(rec dmp.Record) []dmp.Person {
	people := append([]dmp.Person(nil), rec.Contributors...)
	if rec.Contact != nil {
		people = append(people, *rec.Contact)
	}
	return people
}

func matchedORCIDs(contributors []dmp.Person, rec dmp.Record) int {
	known := mapset.NewSet[string]()
	for _, p := range recordPeople(rec) {
		known.Add(dmp.NormalizeIdentifier(p.ORCID))
	}
	known.Remove("")
	n := 0
	for _, p := range contributors {
		orcid := dmp.NormalizeIdentifier(p.ORCID)
		if orcid != "" && known.Contains(orcid) {
			n++
		}
	}
	return n
}

// nameAffiliationOverlap sums matched last names, matched affiliation ids,
// and matched affiliation names.
func nameAffiliationOverlap(contributors []dmp.Person, rec dmp.Record) int {
	lastNames := mapset.NewSet[string]()
	affIDs := mapset.NewSet[string]()
	affNames := mapset.NewSet[string]()
	for _, p := range recordPeople(rec) {
		lastNames.Add(lastName(p.Name))
		affIDs.Add(dmp.NormalizeIdentifier(p.AffiliationID))
		affNames.Add(strings.ToLower(strings.TrimSpace(p.AffiliationName)))
	}
	lastNames.Remove("")
	affIDs.Remove("")
	affNames.Remove("")

	n := 0
	seenNames := mapset.NewSet[string]()
	seenAffIDs := mapset.NewSet[string]()
	seenAffNames := mapset.NewSet[string]()
	for _, p := range contributors {
		if ln := lastName(p.Name); ln != "" && lastNames.Contains(ln) && seenNames.Add(ln) {
			n++
		}
		if id := dmp.NormalizeIdentifier(p.AffiliationID); id != "" && affIDs.Contains(id) && seenAffIDs.Add(id) {
			n++
		}
		if an := strings.ToLower(strings.TrimSpace(p.AffiliationName)); an != "" && affNames.Contains(an) && seenAffNames.Add(an) {
			n++
		}
	}
	return n
}

// lastName extracts a comparable surname from "Family, Given" or
// "Given Family" forms.
func lastName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	if comma := strings.Index(name, ","); comma >= 0 {
		return strings.ToLower(strings.TrimSpace(name[:comma]))
	}
	fields := strings.Fields(name)
	return strings.ToLower(fields[len(fields)-1])
}
