// Package matching implements the match-scoring engine that ranks
// externally discovered works and awards against known records, and the
// augmenter that turns accepted matches into ledger assertions.
package matching

import "github.com/dmphub/dmphub/pkg/dmp"

// CandidateWork describes an externally discovered work or award, as
// produced by the harvesting layer.
type CandidateWork struct {
	DOI      string `json:"doi"`
	Title    string `json:"title"`
	Abstract string `json:"abstract,omitempty"`
	WorkType string `json:"work_type,omitempty"`

	Contributors []dmp.Person `json:"contributors,omitempty"`

	// GrantIDs are award identifiers attached to the work.
	GrantIDs []string `json:"grant_ids,omitempty"`
	// OpportunityIDs are funding opportunity numbers attached to the work.
	OpportunityIDs []string `json:"opportunity_ids,omitempty"`
	// RepositoryIDs identify the repositories hosting the work.
	RepositoryIDs []string `json:"repository_ids,omitempty"`

	// FundingRefs are the work's funder relationships, used by the
	// augmenter to propose funding assertions.
	FundingRefs []dmp.FundingEntry `json:"funding_refs,omitempty"`

	// Citation-building metadata, all optional.
	Publisher string `json:"publisher,omitempty"`
	Container string `json:"container,omitempty"`
	Year      int    `json:"year,omitempty"`
}
