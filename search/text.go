package search

import (
	"strings"
	"unicode"
)

// Words ignored when checking for verbatim matches.
var stopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "be": {}, "is": {}, "are": {},
	"was": {}, "to": {}, "of": {}, "and": {}, "in": {}, "that": {},
	"have": {}, "it": {}, "for": {}, "not": {}, "on": {}, "with": {},
	"as": {}, "you": {}, "do": {}, "at": {}, "this": {}, "but": {},
	"by": {}, "from": {},
}

// contentWords lowercases text, splits it on anything that is not a letter,
// digit or apostrophe, and drops stop words.
func contentWords(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
	words := fields[:0]
	for _, field := range fields {
		field = strings.Trim(field, "'")
		if field == "" {
			continue
		}
		if _, stop := stopWords[field]; stop {
			continue
		}
		words = append(words, field)
	}
	return words
}

// verbatimMatcher reports whether documents contain every content word of
// a query. A query with no content words matches nothing.
type verbatimMatcher struct {
	words []string
}

func newVerbatimMatcher(query string) verbatimMatcher {
	return verbatimMatcher{words: contentWords(query)}
}

func (m verbatimMatcher) matches(document string) bool {
	if len(m.words) == 0 {
		return false
	}
	present := make(map[string]struct{})
	for _, word := range contentWords(document) {
		present[word] = struct{}{}
	}
	for _, word := range m.words {
		if _, ok := present[word]; !ok {
			return false
		}
	}
	return true
}
