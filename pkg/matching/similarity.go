package matching

import (
	"strings"
	"unicode"

	mapset "github.com/deckarep/golang-set/v2"
)

// stopWords are excluded from token similarity; they carry no signal in
// plan titles and abstracts.
var stopWords = mapset.NewSet(
	"a", "an", "and", "are", "as", "at", "be", "but", "by", "for", "from",
	"has", "have", "in", "is", "it", "its", "of", "on", "or", "that", "the",
	"this", "to", "was", "were", "which", "will", "with",
)

// tokenize case-folds the text, splits on non-alphanumeric runes, and
// drops stop words and single-character fragments.
func tokenize(text string) mapset.Set[string] {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := mapset.NewSet[string]()
	for _, f := range fields {
		if len(f) < 2 || stopWords.Contains(f) {
			continue
		}
		tokens.Add(f)
	}
	return tokens
}

// similarity is the Jaccard index of the normalized token sets of two
// texts: 0 when either side is empty, 1 for identical token sets. Pure and
// deterministic.
func similarity(a, b string) float64 {
	ta := tokenize(a)
	tb := tokenize(b)
	if ta.Cardinality() == 0 || tb.Cardinality() == 0 {
		return 0
	}
	inter := ta.Intersect(tb).Cardinality()
	union := ta.Union(tb).Cardinality()
	return float64(inter) / float64(union)
}
