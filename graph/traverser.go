package graph

import (
	"errors"
	"sort"
)

// Direction selects which edge index a lookup walks.
type Direction int

const (
	Outgoing Direction = iota
	Incoming
	Both
)

// ErrInvalidHops is returned when a traversal is requested with a negative
// hop bound.
var ErrInvalidHops = errors.New("graph: max hops must be non-negative")

// Traverser provides typed, read-only lookups over a snapshot. All
// operations are safe for unlimited concurrent readers: the snapshot and the
// derived indexes are never mutated after construction.
type Traverser struct {
	snap *Snapshot

	edgesBySource map[string][]Edge
	edgesByTarget map[string][]Edge

	curvesByWell map[string][]string // well id -> curve ids (incoming describes)
	wellByCurve  map[string]string   // curve id -> most likely parent well id
	nodesByType  map[string][]string // type -> node ids, id ascending
}

// NewTraverser builds the edge indexes in O(|E|) and the domain lookup maps.
func NewTraverser(snap *Snapshot) *Traverser {
	t := &Traverser{
		snap:          snap,
		edgesBySource: make(map[string][]Edge),
		edgesByTarget: make(map[string][]Edge),
		curvesByWell:  make(map[string][]string),
		nodesByType:   make(map[string][]string),
	}

	for _, e := range snap.Edges {
		t.edgesBySource[e.Source] = append(t.edgesBySource[e.Source], e)
		t.edgesByTarget[e.Target] = append(t.edgesByTarget[e.Target], e)
	}

	for _, n := range snap.Nodes {
		t.nodesByType[n.Type] = append(t.nodesByType[n.Type], n.ID)
	}
	for _, ids := range t.nodesByType {
		sort.Strings(ids)
	}

	// Domain lookups over describes edges.
	bestWell := make(map[string]Edge)
	for _, e := range snap.Edges {
		if e.Relation != RelDescribes {
			continue
		}
		src, ok := snap.Node(e.Source)
		if !ok || src.Type != TypeCurve {
			continue
		}
		if _, ok := snap.Node(e.Target); !ok {
			continue
		}

		t.curvesByWell[e.Target] = append(t.curvesByWell[e.Target], e.Source)

		// Most likely parent well: highest weight wins; unweighted edges
		// tie-break on the lexicographically smallest target id.
		cur, seen := bestWell[e.Source]
		switch {
		case !seen:
			bestWell[e.Source] = e
		case e.Weight > cur.Weight:
			bestWell[e.Source] = e
		case e.Weight == cur.Weight && e.Target < cur.Target:
			bestWell[e.Source] = e
		}
	}
	t.wellByCurve = make(map[string]string, len(bestWell))
	for curve, e := range bestWell {
		t.wellByCurve[curve] = e.Target
	}

	return t
}

// Snapshot returns the underlying immutable snapshot.
func (t *Traverser) Snapshot() *Snapshot { return t.snap }

// GetNode returns the node with id, if present.
func (t *Traverser) GetNode(id string) (Node, bool) {
	return t.snap.Node(id)
}

// NodesByType returns the ids of all nodes with the given type, id ascending.
// The returned slice must not be modified.
func (t *Traverser) NodesByType(nodeType string) []string {
	return t.nodesByType[nodeType]
}

// OutEdges returns the outgoing edges of id. Unknown ids yield nil.
func (t *Traverser) OutEdges(id string) []Edge { return t.edgesBySource[id] }

// InEdges returns the incoming edges of id. Unknown ids yield nil.
func (t *Traverser) InEdges(id string) []Edge { return t.edgesByTarget[id] }

// Neighbors returns the nodes reachable from id by one edge in the given
// direction. relation filters to a single relation label when non-empty;
// predicate, when non-nil, filters the resulting nodes. Edges with relations
// outside the known vocabulary are skipped. Unknown ids yield an empty list.
// The result is a node set: parallel edges between the same pair of nodes
// collapse to a single entry.
func (t *Traverser) Neighbors(id string, dir Direction, relation string, predicate func(Node) bool) []Node {
	var out []Node
	seen := make(map[string]bool)

	appendNode := func(nid string) {
		if seen[nid] {
			return
		}
		n, ok := t.snap.Node(nid)
		if !ok {
			return
		}
		if predicate != nil && !predicate(n) {
			return
		}
		seen[nid] = true
		out = append(out, n)
	}

	match := func(e Edge) bool {
		if !KnownRelations[e.Relation] {
			return false
		}
		return relation == "" || e.Relation == relation
	}

	if dir == Outgoing || dir == Both {
		for _, e := range t.edgesBySource[id] {
			if match(e) {
				appendNode(e.Target)
			}
		}
	}
	if dir == Incoming || dir == Both {
		for _, e := range t.edgesByTarget[id] {
			if match(e) {
				appendNode(e.Source)
			}
		}
	}
	return out
}

// CurvesForWell returns the curve nodes reachable by one incoming describes
// edge into the well (document) node.
func (t *Traverser) CurvesForWell(wellID string) []Node {
	ids := t.curvesByWell[wellID]
	out := make([]Node, 0, len(ids))
	for _, id := range ids {
		if n, ok := t.snap.Node(id); ok {
			out = append(out, n)
		}
	}
	return out
}

// WellForCurve returns the most likely parent well of a curve: the target of
// its highest-weight outgoing describes edge, with the lexicographically
// smallest id breaking ties among unweighted edges.
func (t *Traverser) WellForCurve(curveID string) (Node, bool) {
	wellID, ok := t.wellByCurve[curveID]
	if !ok {
		return Node{}, false
	}
	return t.snap.Node(wellID)
}

// RelationshipSummary counts edges by relation label in each direction.
type RelationshipSummary struct {
	Outgoing map[string]int `json:"outgoing"`
	Incoming map[string]int `json:"incoming"`
}

// Summary returns per-relation edge counts for id. All stored relations are
// counted, including ones outside the traversal vocabulary.
func (t *Traverser) Summary(id string) RelationshipSummary {
	s := RelationshipSummary{
		Outgoing: make(map[string]int),
		Incoming: make(map[string]int),
	}
	for _, e := range t.edgesBySource[id] {
		s.Outgoing[e.Relation]++
	}
	for _, e := range t.edgesByTarget[id] {
		s.Incoming[e.Relation]++
	}
	return s
}

// Expand performs a bounded breadth-first traversal from the seed ids.
// The result starts with the seed nodes in their given order, followed by
// discovered nodes level by level in first-encounter order. edgeType, when
// non-empty, restricts which edges the frontier follows. maxHops 0 returns
// the seeds unchanged; a negative bound is an input error. A visited set
// prevents cycles.
func (t *Traverser) Expand(seeds []string, dir Direction, edgeType string, maxHops int) ([]Node, error) {
	if maxHops < 0 {
		return nil, ErrInvalidHops
	}

	visited := make(map[string]bool)
	var out []Node
	var frontier []string

	for _, id := range seeds {
		if visited[id] {
			continue
		}
		visited[id] = true
		if n, ok := t.snap.Node(id); ok {
			out = append(out, n)
			frontier = append(frontier, id)
		}
	}

	for hop := 0; hop < maxHops && len(frontier) > 0; hop++ {
		var next []string
		for _, id := range frontier {
			for _, n := range t.Neighbors(id, dir, edgeType, nil) {
				if visited[n.ID] {
					continue
				}
				visited[n.ID] = true
				out = append(out, n)
				next = append(next, n.ID)
			}
		}
		frontier = next
	}
	return out, nil
}
