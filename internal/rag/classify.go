package rag

import (
	"regexp"
)

// QueryType labels the retrieval intent inferred from the query text.
type QueryType string

const (
	QueryExactMatch QueryType = "exact_match"
	QuerySemantic   QueryType = "semantic"
	QueryBalanced   QueryType = "balanced"
)

// QueryProfile is the fusion strategy chosen for a classified query.
type QueryProfile struct {
	Type   QueryType    `json:"type"`
	Fusion FusionMethod `json:"fusion"`
	Alpha  float64      `json:"alpha"`
}

// Identifier-like shapes that signal lexical lookup intent: ticket keys,
// dotted versions, v-prefixed versions, uppercase code runs, short
// all-caps acronyms and bare numbers. Matched against the raw query so
// hyphenated keys survive; the code-run pattern is unanchored so runs
// embedded in longer tokens still count.
var exactMatchPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b[A-Z]{2,}-\d+\b`),
	regexp.MustCompile(`\b\d+\.\d+(\.\d+)?\b`),
	regexp.MustCompile(`\bv\d+\b`),
	regexp.MustCompile(`[A-Z]{3,}`),
	regexp.MustCompile(`\b[A-Z]{2,4}\b`),
	regexp.MustCompile(`\b\d+\b`),
}

var interrogatives = map[string]bool{
	"how": true, "what": true, "why": true, "when": true, "where": true,
}

// ClassifyQuery picks a fusion strategy from the query's surface form.
// Identifier-heavy queries lean on the sparse list, long or question-form
// queries lean on the dense list, everything else gets rank fusion.
func ClassifyQuery(query string) QueryProfile {
	for _, p := range exactMatchPatterns {
		if p.MatchString(query) {
			return QueryProfile{Type: QueryExactMatch, Fusion: FusionWeighted, Alpha: 0.6}
		}
	}

	tokens := Tokenize(query)
	semantic := len(tokens) > 3
	if !semantic {
		for _, t := range tokens {
			if interrogatives[t] {
				semantic = true
				break
			}
		}
	}
	if semantic {
		return QueryProfile{Type: QuerySemantic, Fusion: FusionWeighted, Alpha: 0.3}
	}

	return QueryProfile{Type: QueryBalanced, Fusion: FusionRRF, Alpha: 0.4}
}
