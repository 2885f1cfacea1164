package matching

import (
	"fmt"
	"strings"
)

// Citer produces a human-readable citation for a work. Citation building
// is best-effort: a failure degrades to an absent citation and never fails
// the augment operation.
type Citer interface {
	Cite(work CandidateWork) (string, error)
}

// TextCiter formats citations from the metadata carried on the candidate
// work itself, with no external lookups.
type TextCiter struct{}

// Cite implements Citer. Missing pieces are simply omitted.
func (TextCiter) Cite(work CandidateWork) (string, error) {
	var parts []string

	if names := authorList(work); names != "" {
		parts = append(parts, names)
	}
	if work.Year > 0 {
		parts = append(parts, fmt.Sprintf("(%d)", work.Year))
	}
	if t := strings.TrimSpace(work.Title); t != "" {
		parts = append(parts, t)
	}
	if c := strings.TrimSpace(work.Container); c != "" {
		parts = append(parts, c)
	} else if p := strings.TrimSpace(work.Publisher); p != "" {
		parts = append(parts, p)
	}
	if work.DOI != "" {
		parts = append(parts, "https://doi.org/"+strings.TrimSpace(work.DOI))
	}

	if len(parts) == 0 {
		return "", fmt.Errorf("no citable metadata")
	}
	return strings.Join(parts, ". ") + ".", nil
}

func authorList(work CandidateWork) string {
	var names []string
	for _, p := range work.Contributors {
		if n := strings.TrimSpace(p.Name); n != "" {
			names = append(names, n)
		}
		if len(names) == 3 {
			names = append(names, "et al")
			break
		}
	}
	return strings.Join(names, ", ")
}
