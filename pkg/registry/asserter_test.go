package registry

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmphub/dmphub/pkg/dmp"
)

func newTestAsserter(at time.Time) *Asserter {
	a := NewAsserter()
	a.now = func() time.Time { return at }
	seq := 0
	a.newID = func() string {
		seq++
		return fmt.Sprintf("assert-%d", seq)
	}
	return a
}

func TestAsserter_OwnerBypassesLedger(t *testing.T) {
	a := newTestAsserter(time.Now())
	latest := baseRecord()
	incoming := dmp.Record{RelatedIdentifiers: []dmp.RelatedIdentifier{{Identifier: "10.9/x"}}}

	out := a.Add("dmptool", latest, incoming, "note")
	assert.Empty(t, out.ModificationsLog)
}

func TestAsserter_AddRelatedIdentifiers(t *testing.T) {
	at := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	a := newTestAsserter(at)
	latest := baseRecord()

	incoming := dmp.Record{RelatedIdentifiers: []dmp.RelatedIdentifier{
		{Identifier: "10.9999/fresh"},
		// Already authoritative, case and prefix notwithstanding.
		{Identifier: "https://doi.org/10.1111/OWNER-DATASET"},
	}}

	out := a.Add("crossref", latest, incoming, "found via metadata search")
	require.Len(t, out.ModificationsLog, 1)

	entry := out.ModificationsLog[0]
	assert.Equal(t, "crossref", entry.ProvenanceID)
	assert.Equal(t, dmp.StatusPending, entry.Status)
	assert.Equal(t, "found via metadata search", entry.Note)
	assert.True(t, at.Equal(entry.CreatedAt))
	require.Len(t, entry.RelatedIdentifiers, 1)
	assert.Equal(t, "10.9999/fresh", entry.RelatedIdentifiers[0].Identifier)
	assert.Equal(t, dmp.DefaultWorkType, entry.RelatedIdentifiers[0].WorkType)
	assert.Equal(t, dmp.DefaultDescriptor, entry.RelatedIdentifiers[0].Descriptor)

	// The original is untouched.
	assert.Empty(t, latest.ModificationsLog)
}

func TestAsserter_DedupAgainstLedger(t *testing.T) {
	a := newTestAsserter(time.Now())
	latest := baseRecord()
	latest.ModificationsLog = []dmp.Assertion{{
		ID: "prior", ProvenanceID: "datacite", Status: dmp.StatusPending,
		RelatedIdentifiers: []dmp.RelatedIdentifier{{Identifier: "10.9999/fresh"}},
	}}

	incoming := dmp.Record{RelatedIdentifiers: []dmp.RelatedIdentifier{{Identifier: "10.9999/FRESH"}}}
	out := a.Add("crossref", latest, incoming, "")
	assert.Len(t, out.ModificationsLog, 1)
}

func TestAsserter_FirstGrantOnly(t *testing.T) {
	a := newTestAsserter(time.Now())
	latest := baseRecord()

	incoming := dmp.Record{Projects: []dmp.Project{{Funding: []dmp.FundingEntry{
		{FunderName: "NSF"},                          // no grant id, ignored
		{FunderName: "NSF", GrantID: "G-900"},        // first with a grant id
		{FunderName: "Wellcome", GrantID: "WT-111"},  // ignored, only the first counts
	}}}}

	out := a.Add("funder-nsf", latest, incoming, "")
	require.Len(t, out.ModificationsLog, 1)
	require.Len(t, out.ModificationsLog[0].Funding, 1)
	assert.Equal(t, "G-900", out.ModificationsLog[0].Funding[0].GrantID)
}

func TestAsserter_KnownGrantSkipped(t *testing.T) {
	a := newTestAsserter(time.Now())
	latest := baseRecord()
	latest.Projects[0].Funding[0].GrantID = "G-900"

	incoming := dmp.Record{Projects: []dmp.Project{{Funding: []dmp.FundingEntry{
		{FunderName: "NSF", GrantID: " g-900 "},
	}}}}

	out := a.Add("funder-nsf", latest, incoming, "")
	assert.Empty(t, out.ModificationsLog)
}

func TestAsserter_SpliceLogs(t *testing.T) {
	a := NewAsserter()

	base := []dmp.Assertion{
		{ID: "a", Status: dmp.StatusPending},
		{ID: "b", Status: dmp.StatusPending},
	}
	incoming := []dmp.Assertion{
		{ID: "b", Status: dmp.StatusAccepted}, // reviewed copy wins
		{ID: "c", Status: dmp.StatusPending},  // new on the other side
	}

	merged := a.SpliceLogs(base, incoming)
	require.Len(t, merged, 3)
	assert.Equal(t, "a", merged[0].ID)
	assert.Equal(t, dmp.StatusAccepted, merged[1].Status)
	assert.Equal(t, "c", merged[2].ID)
}

func TestAsserter_AppendDefaults(t *testing.T) {
	at := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	a := newTestAsserter(at)
	latest := baseRecord()

	out := a.Append(latest, dmp.Assertion{
		ProvenanceID:       "augmenter",
		RelatedIdentifiers: []dmp.RelatedIdentifier{{Identifier: "10.9/x"}},
	})
	require.Len(t, out.ModificationsLog, 1)
	entry := out.ModificationsLog[0]
	assert.NotEmpty(t, entry.ID)
	assert.Equal(t, dmp.StatusPending, entry.Status)
	assert.True(t, at.Equal(entry.CreatedAt))
}
