package retrieval

import (
	"sort"
	"strings"

	"github.com/mkleiva/wellgraph/vector"
)

// rerank scores candidates as a weighted blend of vector similarity
// (min-max normalized over the candidate pool) and lexical overlap with the
// query, then sorts descending. Equal scores order by id ascending so rerank
// output is stable across runs.
func rerank(query string, docs []vector.Document, wVec, wLex float64) []Document {
	if len(docs) == 0 {
		return nil
	}

	minSim, maxSim := docs[0].Similarity, docs[0].Similarity
	for _, d := range docs[1:] {
		if d.Similarity < minSim {
			minSim = d.Similarity
		}
		if d.Similarity > maxSim {
			maxSim = d.Similarity
		}
	}
	spread := maxSim - minSim

	queryTokens := tokenize(query)

	out := make([]Document, len(docs))
	for i, d := range docs {
		norm := 1.0
		if spread > 0 {
			norm = (d.Similarity - minSim) / spread
		}
		out[i] = Document{
			ID:         d.ID,
			EntityType: d.EntityType,
			Attributes: d.Attributes,
			Similarity: d.Similarity,
			Score:      wVec*norm + wLex*lexicalOverlap(queryTokens, d),
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// lexicalOverlap is the fraction of query tokens that appear in the
// document's id or string attribute values.
func lexicalOverlap(queryTokens []string, d vector.Document) float64 {
	if len(queryTokens) == 0 {
		return 0
	}

	var b strings.Builder
	b.WriteString(d.ID)
	for _, v := range d.Attributes {
		if s, ok := v.(string); ok {
			b.WriteByte(' ')
			b.WriteString(s)
		}
	}
	docTokens := make(map[string]bool)
	for _, t := range tokenize(b.String()) {
		docTokens[t] = true
	}

	hits := 0
	for _, t := range queryTokens {
		if docTokens[t] {
			hits++
		}
	}
	return float64(hits) / float64(len(queryTokens))
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return false
		}
		return true
	})
}
