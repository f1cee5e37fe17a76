// Package classify contains the deterministic query classifiers that run
// before retrieval: the in-domain scope check and the structured
// aggregation/extraction pattern parsers.
package classify

import "strings"

// ScopeResult is the outcome of the out-of-domain check.
type ScopeResult struct {
	InScope bool   `json:"in_scope"`
	Reason  string `json:"reason,omitempty"`
}

// offTopic groups refusal keywords by topic so the reason names the topic.
// Order is fixed: the first matching topic wins, keeping the reason string
// deterministic for queries that touch several topics.
var offTopic = []struct {
	topic string
	words []string
}{
	{"politics", []string{"election", "president", "parliament", "senate", "vote", "campaign", "minister", "congress"}},
	{"food", []string{"recipe", "cooking", "restaurant", "pizza", "dinner", "bake", "ingredient"}},
	{"entertainment", []string{"movie", "film", "actor", "netflix", "song", "album", "concert", "celebrity"}},
	{"weather", []string{"weather", "forecast", "rain tomorrow", "temperature today", "snow"}},
	{"sports", []string{"football", "soccer", "basketball", "tennis", "olympics", "world cup", "championship"}},
}

// domainTerms override an off-topic hit: a query about "well temperature
// logs" stays in scope even though "temperature" is a weather keyword.
var domainTerms = []string{
	"well", "curve", "log", "mnemonic", "borehole", "reservoir", "formation",
	"porosity", "permeability", "gamma", "resistivity", "density", "sonic",
	"depth", "lithology", "petrophysic", "drilling", "wireline", "dataset",
	"measurement", "survey", "site", "field",
}

// CheckScope labels a query in-domain or out-of-domain. Deterministic:
// keyword lists only, no model calls.
func CheckScope(query string) ScopeResult {
	lower := strings.ToLower(query)

	for _, term := range domainTerms {
		if strings.Contains(lower, term) {
			return ScopeResult{InScope: true}
		}
	}

	for _, group := range offTopic {
		for _, w := range group.words {
			if strings.Contains(lower, w) {
				return ScopeResult{InScope: false, Reason: "query is about " + group.topic}
			}
		}
	}

	// Neither domain terms nor a known off-topic marker: let retrieval
	// decide; an unrelated query ends in the insufficient-context answer.
	return ScopeResult{InScope: true}
}
