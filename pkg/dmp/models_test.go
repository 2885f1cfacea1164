package dmp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRecord() Record {
	return Record{
		Identifier:        "10.48321/D1ABCD",
		Title:             "Coastal Erosion Monitoring Plan",
		Description:       "Sediment transport observations along the Oregon coast.",
		Contact:           &Person{Name: "Jane Doe", ORCID: "0000-0001-2345-6789"},
		Contributors:      []Person{{Name: "Sam Lee", Roles: []string{"data_curator"}}},
		OwnerProvenanceID: "dmptool",
		Created:           time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		Modified:          time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		Projects: []Project{{
			Title: "Coastal Erosion",
			Funding: []FundingEntry{{
				FunderName: "National Science Foundation",
				FunderID:   "https://ror.org/021nxhr62",
				Status:     FundingGranted,
				GrantID:    "G-100",
			}},
		}},
		RelatedIdentifiers: []RelatedIdentifier{{
			Type:       IdentifierTypeDOI,
			Identifier: "10.1234/dataset-1",
			Descriptor: DefaultDescriptor,
			WorkType:   DefaultWorkType,
		}},
	}
}

func TestRecord_CloneIsDeep(t *testing.T) {
	r := testRecord()
	c := r.Clone()

	c.Contact.Name = "changed"
	c.Contributors[0].Roles[0] = "changed"
	c.Projects[0].Funding[0].GrantID = "changed"
	c.RelatedIdentifiers[0].Identifier = "changed"

	assert.Equal(t, "Jane Doe", r.Contact.Name)
	assert.Equal(t, "data_curator", r.Contributors[0].Roles[0])
	assert.Equal(t, "G-100", r.Projects[0].Funding[0].GrantID)
	assert.Equal(t, "10.1234/dataset-1", r.RelatedIdentifiers[0].Identifier)
}

func TestRecord_KnownIdentifierSets(t *testing.T) {
	r := testRecord()
	r.ModificationsLog = []Assertion{{
		ID:           "a1",
		ProvenanceID: "crossref",
		Status:       StatusPending,
		RelatedIdentifiers: []RelatedIdentifier{
			{Identifier: "HTTPS://DOI.ORG/10.5555/Other Work"},
		},
		Funding: []FundingEntry{{GrantID: " g-200 ", OpportunityID: "NSF-23-552"}},
	}}

	related := r.KnownRelatedIdentifiers()
	assert.True(t, related.Contains("10.1234/dataset-1"))
	assert.True(t, related.Contains("10.5555/otherwork"))
	assert.False(t, related.Contains(""))

	grants := r.KnownGrantIDs()
	assert.True(t, grants.Contains("g-100"))
	assert.True(t, grants.Contains("g-200"))

	opps := r.KnownOpportunityIDs()
	assert.True(t, opps.Contains("nsf-23-552"))
}

func TestRelatedIdentifier_WithDefaults(t *testing.T) {
	ri := RelatedIdentifier{Identifier: "10.9999/x"}.WithDefaults()
	assert.Equal(t, DefaultWorkType, ri.WorkType)
	assert.Equal(t, DefaultDescriptor, ri.Descriptor)
	assert.Equal(t, IdentifierTypeDOI, ri.Type)

	// Explicit values survive.
	ri = RelatedIdentifier{Identifier: "x", WorkType: "article", Descriptor: "documents", Type: "url"}.WithDefaults()
	assert.Equal(t, "article", ri.WorkType)
	assert.Equal(t, "documents", ri.Descriptor)
	assert.Equal(t, "url", ri.Type)
}

func TestRoleFor(t *testing.T) {
	r := testRecord()
	assert.Equal(t, RoleOwner, RoleFor("dmptool", r))
	assert.Equal(t, RoleNonOwner, RoleFor("crossref", r))
}

func TestEquivalent(t *testing.T) {
	a := testRecord()
	b := a.Clone()

	// Bookkeeping differences do not count.
	b.Modified = b.Modified.Add(time.Hour)
	b.ModificationsLog = []Assertion{{ID: "x"}}
	assert.True(t, Equivalent(a, b))

	// Authoritative field differences do.
	b.Title = "Renamed"
	assert.False(t, Equivalent(a, b))
}

func TestNormalizeIdentifier(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"10.1234/ABC", "10.1234/abc"},
		{"  10.1234/abc  ", "10.1234/abc"},
		{"https://doi.org/10.1234/abc", "10.1234/abc"},
		{"doi:10.1234/ABC", "10.1234/abc"},
		{"G - 100", "g-100"},
		{"", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, NormalizeIdentifier(tc.in), "input %q", tc.in)
	}
}

func TestVersionKeys(t *testing.T) {
	ts := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	key := SnapshotVersionKey(ts)
	assert.Equal(t, "VERSION#2024-03-01T10:00:00Z", key)

	got, ok := VersionTimestamp(key)
	require.True(t, ok)
	assert.True(t, ts.Equal(got))

	_, ok = VersionTimestamp(VersionLatest)
	assert.False(t, ok)
	_, ok = VersionTimestamp(VersionTombstone)
	assert.False(t, ok)

	assert.Equal(t, VersionLatest, NormalizeVersionKey(""))
	assert.Equal(t, VersionLatest, NormalizeVersionKey("latest"))
	assert.Equal(t, VersionTombstone, NormalizeVersionKey("tombstone"))
	assert.Equal(t, key, NormalizeVersionKey("2024-03-01T10:00:00Z"))
	assert.Equal(t, key, NormalizeVersionKey(key))

	assert.Equal(t, "DMP#10.1/x", RecordKey("10.1/x"))
	assert.Equal(t, "DMP#10.1/x", RecordKey("DMP#10.1/x"))
	assert.Equal(t, "10.1/x", StripRecordKey("DMP#10.1/x"))
	assert.Equal(t, "PROVENANCE#dmptool", ProvenanceKey("dmptool"))
}

func TestSnapshotVersionKeySubSecond(t *testing.T) {
	a := time.Date(2026, 8, 31, 12, 0, 2, 300_000_000, time.UTC)
	b := time.Date(2026, 8, 31, 12, 0, 2, 800_000_000, time.UTC)

	keyA := SnapshotVersionKey(a)
	keyB := SnapshotVersionKey(b)
	require.NotEqual(t, keyA, keyB)

	gotA, ok := VersionTimestamp(keyA)
	require.True(t, ok)
	assert.True(t, a.Equal(gotA))
	gotB, ok := VersionTimestamp(keyB)
	require.True(t, ok)
	assert.True(t, b.Equal(gotB))
}
