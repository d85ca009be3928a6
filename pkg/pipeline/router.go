package pipeline

import "strings"

// recencyKeywords is the fixed set of trigger terms that indicate a query
// needs fresh information the knowledge base cannot have.
var recencyKeywords = []string{
	"latest",
	"today",
	"tonight",
	"yesterday",
	"current",
	"currently",
	"right now",
	"recent",
	"recently",
	"breaking",
	"news",
	"this week",
	"this month",
	"this year",
	"up to date",
	"up-to-date",
}

// RouteDecision is the outcome of query routing.
type RouteDecision struct {
	UseWebSearch bool
	MatchedTerms []string
	ExplicitFlag bool
}

// Route decides the retrieval source for a query. A recency keyword match OR
// an explicit caller flag selects the web path (logical OR); otherwise the
// knowledge-base path is used.
func Route(query string, forceWebSearch bool) RouteDecision {
	decision := RouteDecision{ExplicitFlag: forceWebSearch}

	lower := strings.ToLower(query)
	for _, term := range recencyKeywords {
		if containsWord(lower, term) {
			decision.MatchedTerms = append(decision.MatchedTerms, term)
		}
	}

	decision.UseWebSearch = forceWebSearch || len(decision.MatchedTerms) > 0
	return decision
}

// containsWord matches a term at word boundaries so "now" does not trigger
// on "know" or "snow".
func containsWord(text, term string) bool {
	idx := 0
	for {
		i := strings.Index(text[idx:], term)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(term)

		beforeOK := start == 0 || !isWordChar(text[start-1])
		afterOK := end == len(text) || !isWordChar(text[end])
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
	}
}

func isWordChar(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}
