package retrieval

import (
	"strings"
	"unicode"

	"github.com/orsinium-labs/stopwords"
)

var englishStopwords = stopwords.MustGet("en")

// BuildMatchQuery turns free text into an FTS5 MATCH expression: lowercase
// tokens, stopwords dropped, each token quoted so FTS operator words ("and",
// "near") and punctuation cannot change the query's meaning. Tokens are OR-ed;
// bm25 ranking rewards documents matching more of them. Returns "" when
// nothing queryable remains.
func BuildMatchQuery(text string) string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	terms := make([]string, 0, len(fields))
	for _, w := range fields {
		if englishStopwords.Contains(w) {
			continue
		}
		terms = append(terms, `"`+w+`"`)
	}
	if len(terms) == 0 {
		return ""
	}
	return strings.Join(terms, " OR ")
}
