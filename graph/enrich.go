package graph

// Enrichment attribute keys. Derived at load time, before indexing; keys are
// either present with a value or absent, never null.
const (
	AttrWellName       = "_well_name"
	AttrCurveMnemonics = "_curve_mnemonics"
)

// maxMnemonics caps how many curve mnemonics are materialized onto a
// document node.
const maxMnemonics = 10

// Enrich applies the load-time derivation rules in place:
//
//   - curve --describes--> document: the document's display name is copied
//     into the curve's _well_name.
//   - document with incoming describes edges: up to 10 connected curve
//     mnemonics are materialized into _curve_mnemonics, in edge insertion
//     order then id ascending.
//
// Only describes edges contribute. Enrichment is idempotent: the derived
// keys are recomputed from scratch on every call, so running it twice on the
// same inputs yields identical output.
func Enrich(nodes []Node, edges []Edge, byID map[string]int) {
	// Drop previously derived keys so re-enrichment cannot accumulate state.
	for i := range nodes {
		if nodes[i].Attrs != nil {
			delete(nodes[i].Attrs, AttrWellName)
			delete(nodes[i].Attrs, AttrCurveMnemonics)
		}
	}

	// incoming[docIdx] collects curve node indexes in edge insertion order.
	incoming := make(map[int][]int)

	for _, e := range edges {
		if e.Relation != RelDescribes {
			continue
		}
		si, ok := byID[e.Source]
		if !ok {
			continue
		}
		ti, ok := byID[e.Target]
		if !ok {
			continue
		}

		if nodes[si].Type == TypeCurve && nodes[ti].Type == TypeDocument {
			if name := wellDisplayName(nodes[ti]); name != "" {
				setAttr(&nodes[si], AttrWellName, name)
			}
			incoming[ti] = append(incoming[ti], si)
		}
	}

	for docIdx, curveIdxs := range incoming {
		// Insertion order is the edge order; duplicates collapse to their
		// first occurrence.
		seen := make(map[string]bool, len(curveIdxs))
		ordered := make([]int, 0, len(curveIdxs))
		for _, ci := range curveIdxs {
			if !seen[nodes[ci].ID] {
				seen[nodes[ci].ID] = true
				ordered = append(ordered, ci)
			}
		}

		mnemonics := make([]string, 0, maxMnemonics)
		for _, ci := range ordered {
			m := nodes[ci].Attr("mnemonic")
			if m == "" {
				m = nodes[ci].ID
			}
			mnemonics = append(mnemonics, m)
			if len(mnemonics) == maxMnemonics {
				break
			}
		}
		if len(mnemonics) > 0 {
			setAttr(&nodes[docIdx], AttrCurveMnemonics, mnemonics)
		}
	}
}

// wellDisplayName resolves the display name of a document (well) node.
func wellDisplayName(n Node) string {
	if v := n.Attr("well_name"); v != "" {
		return v
	}
	return n.Attr("name")
}

func setAttr(n *Node, key string, value any) {
	if n.Attrs == nil {
		n.Attrs = make(map[string]any)
	}
	n.Attrs[key] = value
}
