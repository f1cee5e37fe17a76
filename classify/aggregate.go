package classify

import (
	"regexp"
	"strings"
)

// AggregationKind is the closed set of structured aggregation operations.
type AggregationKind string

const (
	AggCount    AggregationKind = "COUNT"
	AggList     AggregationKind = "LIST"
	AggDistinct AggregationKind = "DISTINCT"
)

// Aggregation is a parsed aggregation request. EntityType uses the graph
// vocabulary (well, curve, site, ...); Attribute is set for DISTINCT.
type Aggregation struct {
	Kind       AggregationKind
	EntityType string
	Attribute  string
}

// entityAliases maps query nouns to graph entity types.
var entityAliases = map[string]string{
	"well": "well", "wells": "well",
	"curve": "curve", "curves": "curve",
	"log": "curve", "logs": "curve",
	"site": "site", "sites": "site",
	"document": "document", "documents": "document",
	"metric": "metric", "metrics": "metric",
	"timeseries": "timeseries",
}

var (
	countPattern    = regexp.MustCompile(`(?i)\bhow many\s+([a-z]+)\b`)
	countAltPattern = regexp.MustCompile(`(?i)\b(?:count|number)\s+of\s+([a-z]+)\b`)
	listPattern     = regexp.MustCompile(`(?i)\b(?:list|show|name)\s+(?:all\s+|the\s+)?([a-z]+)\b`)
	distinctPattern = regexp.MustCompile(`(?i)\b(?:distinct|unique|different)\s+(?:values\s+of\s+)?([a-z_ ]+?)\s+(?:of|for|across|in)\s+(?:the\s+)?([a-z]+)\b`)
)

// ParseAggregation recognizes COUNT/LIST/DISTINCT queries. Returns nil when
// the query is not an aggregation.
func ParseAggregation(query string) *Aggregation {
	if m := distinctPattern.FindStringSubmatch(query); m != nil {
		if et, ok := entityAliases[strings.ToLower(m[2])]; ok {
			attr := strings.TrimSpace(strings.ToLower(m[1]))
			return &Aggregation{Kind: AggDistinct, EntityType: et, Attribute: normalizeAttr(attr)}
		}
	}
	if m := countPattern.FindStringSubmatch(query); m != nil {
		if et, ok := entityAliases[strings.ToLower(m[1])]; ok {
			return &Aggregation{Kind: AggCount, EntityType: et}
		}
	}
	if m := countAltPattern.FindStringSubmatch(query); m != nil {
		if et, ok := entityAliases[strings.ToLower(m[1])]; ok {
			return &Aggregation{Kind: AggCount, EntityType: et}
		}
	}
	if m := listPattern.FindStringSubmatch(query); m != nil {
		if et, ok := entityAliases[strings.ToLower(m[1])]; ok {
			return &Aggregation{Kind: AggList, EntityType: et}
		}
	}
	return nil
}

func normalizeAttr(attr string) string {
	return strings.ReplaceAll(strings.TrimSpace(attr), " ", "_")
}
