package dmp

import (
	"encoding/json"
	"strings"
)

// doiHosts are URL prefixes commonly pasted in front of a bare DOI.
var doiHosts = []string{
	"https://doi.org/",
	"http://doi.org/",
	"https://dx.doi.org/",
	"http://dx.doi.org/",
	"doi:",
}

// NormalizeIdentifier canonicalizes an identifier or grant id for
// comparison: case-folded, all whitespace removed, common DOI URL prefixes
// stripped. The dedup invariant ("never appears twice") is defined over
// this form.
func NormalizeIdentifier(id string) string {
	s := strings.ToLower(strings.TrimSpace(id))
	s = strings.Join(strings.Fields(s), "")
	for _, h := range doiHosts {
		s = strings.TrimPrefix(s, h)
	}
	return s
}

// comparableBody is a record stripped of bookkeeping for change detection.
type comparableBody struct {
	Title              string
	Description        string
	Contact            *Person
	Contributors       []Person
	Projects           []Project
	RelatedIdentifiers []RelatedIdentifier
	Private            bool
}

func bodyOf(r Record) comparableBody {
	return comparableBody{
		Title:              r.Title,
		Description:        r.Description,
		Contact:            r.Contact,
		Contributors:       r.Contributors,
		Projects:           r.Projects,
		RelatedIdentifiers: r.RelatedIdentifiers,
		Private:            r.Private,
	}
}

// Equivalent reports whether two records carry the same authoritative body,
// ignoring bookkeeping (identifier, owner, timestamps) and the
// modifications log. Used to detect no-op updates.
func Equivalent(a, b Record) bool {
	ja, err := json.Marshal(bodyOf(a))
	if err != nil {
		return false
	}
	jb, err := json.Marshal(bodyOf(b))
	if err != nil {
		return false
	}
	return string(ja) == string(jb)
}
