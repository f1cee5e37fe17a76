package classify

import (
	"regexp"
	"strings"
)

// Extraction is a parsed single-attribute lookup: "what is the <attribute>
// for <entity>".
type Extraction struct {
	Attribute string // normalized attribute key, e.g. "well_name"
	EntityRef string // raw entity reference from the query
}

// attrAliases maps spoken attribute phrases to stored attribute keys.
var attrAliases = map[string]string{
	"well name":    "well_name",
	"name":         "well_name",
	"display name": "well_name",
	"location":     "location",
	"depth":        "depth",
	"operator":     "operator",
	"field":        "field",
	"mnemonic":     "mnemonic",
	"unit":         "unit",
	"units":        "unit",
}

var extractionPatterns = []*regexp.Regexp{
	// "what is the well name for 15_9-13", "what's the operator of well X"
	regexp.MustCompile(`(?i)\bwhat(?:'s| is)\s+the\s+([a-z ]+?)\s+(?:for|of)\s+(?:well\s+|curve\s+)?([\w/.-]+)\??$`),
	// "give me the depth of 15_9-13"
	regexp.MustCompile(`(?i)\b(?:give me|tell me|show)\s+the\s+([a-z ]+?)\s+(?:for|of)\s+(?:well\s+|curve\s+)?([\w/.-]+)\??$`),
}

// ParseExtraction recognizes single-attribute lookups against an identified
// entity. Returns nil when the query is not an extraction.
func ParseExtraction(query string) *Extraction {
	for _, p := range extractionPatterns {
		m := p.FindStringSubmatch(strings.TrimSpace(query))
		if m == nil {
			continue
		}
		phrase := strings.TrimSpace(strings.ToLower(m[1]))
		attr, ok := attrAliases[phrase]
		if !ok {
			continue
		}
		ref := strings.TrimRight(m[2], "?.!")
		if ref == "" {
			continue
		}
		return &Extraction{Attribute: attr, EntityRef: ref}
	}
	return nil
}
