package matching

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmphub/dmphub/pkg/dmp"
)

// Augmenter turns scored candidate works into ledger assertions with
// citation metadata, guarding against re-adding items the record already
// knows. All entries from one invocation are grouped under a single
// assertion: one run id, one timestamp, one contributing provenance.
type Augmenter struct {
	comparator     *Comparator
	citer          Citer
	provenanceName string
	logger         *slog.Logger
	now            func() time.Time
	newRunID       func() string
}

// NewAugmenter creates an Augmenter contributing under the given
// provenance name. A nil citer uses the metadata-only formatter; a nil
// logger uses slog.Default.
func NewAugmenter(provenanceName string, citer Citer, logger *slog.Logger) *Augmenter {
	if citer == nil {
		citer = TextCiter{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Augmenter{
		comparator:     NewComparator(),
		citer:          citer,
		provenanceName: provenanceName,
		logger:         logger,
		now:            time.Now,
		newRunID:       func() string { return uuid.New().String() },
	}
}

// AddModifications scores each candidate work against the record,
// discards non-matches and already-known items, and appends the remainder
// as one combined pending assertion. Returns the updated record and the
// number of payload entries added; zero added means the record is returned
// unchanged and nothing needs writing.
func (a *Augmenter) AddModifications(record dmp.Record, works []CandidateWork) (dmp.Record, int) {
	knownRelated := record.KnownRelatedIdentifiers()
	knownGrants := record.KnownGrantIDs()
	knownOpps := record.KnownOpportunityIDs()

	var related []dmp.RelatedIdentifier
	var funding []dmp.FundingEntry
	var best Response
	var notes []string

	for _, work := range works {
		doi := dmp.NormalizeIdentifier(work.DOI)
		if doi == "" || knownRelated.Contains(doi) {
			continue
		}
		match := a.comparator.Compare(work, []dmp.Record{record})
		if match == nil {
			continue
		}

		entry := dmp.RelatedIdentifier{
			Type:       dmp.IdentifierTypeDOI,
			Identifier: work.DOI,
			Descriptor: dmp.DefaultDescriptor,
			WorkType:   work.WorkType,
		}.WithDefaults()
		if citation, err := a.citer.Cite(work); err == nil {
			entry.Citation = citation
		} else {
			a.logger.Debug("citation lookup failed",
				"doi", work.DOI, "error", err)
		}
		related = append(related, entry)
		knownRelated.Add(doi)

		if match.Score > best.Score {
			best = match.Response
		}
		notes = append(notes, match.Notes...)

		for _, ref := range work.FundingRefs {
			grant := dmp.NormalizeIdentifier(ref.GrantID)
			opp := dmp.NormalizeIdentifier(ref.OpportunityID)
			if grant == "" || knownGrants.Contains(grant) {
				continue
			}
			if opp != "" && knownOpps.Contains(opp) {
				continue
			}
			f := ref
			if f.Status == "" {
				f.Status = dmp.FundingGranted
			}
			funding = append(funding, f)
			knownGrants.Add(grant)
			if opp != "" {
				knownOpps.Add(opp)
			}
		}
	}

	added := len(related) + len(funding)
	if added == 0 {
		return record, 0
	}

	runID := a.newRunID()
	out := record.Clone()
	out.ModificationsLog = append(out.ModificationsLog, dmp.Assertion{
		ID:                 runID,
		ProvenanceID:       a.provenanceName,
		CreatedAt:          a.now(),
		Status:             dmp.StatusPending,
		Note:               fmt.Sprintf("augmenter run %s", runID),
		Confidence:         best.Confidence,
		Score:              best.Score,
		Notes:              notes,
		RelatedIdentifiers: related,
		Funding:            funding,
	})
	return out, added
}
