package retrieval

import "fmt"

// applyFilters keeps documents whose attributes match the filter set.
// Closed-world: a document that lacks a filtered attribute does not match it.
// all=true requires every attribute to match; all=false keeps a document
// matching any. Relative order is preserved.
func applyFilters(docs []Document, filters map[string][]string, all bool) []Document {
	var out []Document
	for _, d := range docs {
		if matches(d, filters, all) {
			out = append(out, d)
		}
	}
	return out
}

func matches(d Document, filters map[string][]string, all bool) bool {
	for attr, accepted := range filters {
		ok := attrMatches(d, attr, accepted)
		if all && !ok {
			return false
		}
		if !all && ok {
			return true
		}
	}
	return all
}

// attrMatches checks one attribute against its accepted values. entity_type
// is a document field, everything else lives in the attribute map.
func attrMatches(d Document, attr string, accepted []string) bool {
	var got string
	if attr == "entity_type" {
		got = d.EntityType
	} else {
		v, ok := d.Attributes[attr]
		if !ok {
			return false
		}
		got = fmt.Sprintf("%v", v)
	}
	for _, want := range accepted {
		if got == want {
			return true
		}
	}
	return false
}
