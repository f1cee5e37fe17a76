package graph

import (
	"errors"
	"fmt"
	"testing"
)

// testSnapshot builds a small well/curve/site graph:
//
//	curve-GR, curve-RHOB, curve-NPHI --describes--> well-A (document)
//	curve-DT --describes--> well-B (document)
//	well-A --located_at--> site-1
//	well-A --annotated_by--> note-1   (unknown relation, traversal-invisible)
func testSnapshot(t *testing.T) *Snapshot {
	t.Helper()
	nodes := []Node{
		{ID: "well-A", Type: TypeDocument, Attrs: map[string]any{"well_name": "Alpha North", "doc_type": "well"}},
		{ID: "well-B", Type: TypeDocument, Attrs: map[string]any{"well_name": "Beta South", "doc_type": "well"}},
		{ID: "curve-GR", Type: TypeCurve, Attrs: map[string]any{"mnemonic": "GR"}},
		{ID: "curve-RHOB", Type: TypeCurve, Attrs: map[string]any{"mnemonic": "RHOB"}},
		{ID: "curve-NPHI", Type: TypeCurve, Attrs: map[string]any{"mnemonic": "NPHI"}},
		{ID: "curve-DT", Type: TypeCurve, Attrs: map[string]any{"mnemonic": "DT"}},
		{ID: "site-1", Type: TypeSite, Attrs: map[string]any{"name": "North Sea block 15"}},
		{ID: "note-1", Type: TypeDocument},
	}
	edges := []Edge{
		{Source: "curve-GR", Target: "well-A", Relation: RelDescribes},
		{Source: "curve-RHOB", Target: "well-A", Relation: RelDescribes},
		{Source: "curve-NPHI", Target: "well-A", Relation: RelDescribes},
		{Source: "curve-DT", Target: "well-B", Relation: RelDescribes},
		{Source: "well-A", Target: "site-1", Relation: RelLocatedAt},
		{Source: "well-A", Target: "note-1", Relation: "annotated_by"},
	}
	snap, err := NewSnapshot(nodes, edges)
	if err != nil {
		t.Fatalf("NewSnapshot: %v", err)
	}
	return snap
}

func TestNeighborsOutgoing(t *testing.T) {
	tr := NewTraverser(testSnapshot(t))

	got := tr.Neighbors("curve-GR", Outgoing, RelDescribes, nil)
	if len(got) != 1 || got[0].ID != "well-A" {
		t.Fatalf("expected [well-A], got %v", got)
	}

	// Size must equal the number of matching out-edges.
	edges := 0
	for _, e := range tr.OutEdges("curve-GR") {
		if e.Relation == RelDescribes {
			edges++
		}
	}
	if len(got) != edges {
		t.Errorf("neighbor count %d != edge count %d", len(got), edges)
	}
}

func TestNeighborsCollapsesParallelEdges(t *testing.T) {
	// Two describes edges between the same pair: the edge store keeps both,
	// Neighbors returns the node once.
	snap, err := NewSnapshot(
		[]Node{
			{ID: "well-A", Type: TypeDocument, Attrs: map[string]any{"doc_type": "well"}},
			{ID: "curve-GR", Type: TypeCurve, Attrs: map[string]any{"mnemonic": "GR"}},
		},
		[]Edge{
			{Source: "curve-GR", Target: "well-A", Relation: RelDescribes},
			{Source: "curve-GR", Target: "well-A", Relation: RelDescribes},
		},
	)
	if err != nil {
		t.Fatalf("NewSnapshot: %v", err)
	}
	tr := NewTraverser(snap)

	if got := tr.Neighbors("curve-GR", Outgoing, RelDescribes, nil); len(got) != 1 {
		t.Errorf("expected one neighbor for parallel edges, got %v", got)
	}
	if got := len(tr.OutEdges("curve-GR")); got != 2 {
		t.Errorf("edge store holds %d edges, want 2", got)
	}
	if got := tr.Summary("curve-GR").Outgoing[RelDescribes]; got != 2 {
		t.Errorf("summary counts %d describes edges, want 2", got)
	}
}

func TestNeighborsIgnoresUnknownRelations(t *testing.T) {
	tr := NewTraverser(testSnapshot(t))

	// annotated_by is outside the vocabulary: invisible without a filter...
	got := tr.Neighbors("well-A", Outgoing, "", nil)
	for _, n := range got {
		if n.ID == "note-1" {
			t.Error("unknown relation should be invisible to traversal")
		}
	}
	// ...and invisible with one.
	if got := tr.Neighbors("well-A", Outgoing, "annotated_by", nil); len(got) != 0 {
		t.Errorf("expected empty result for unknown relation, got %v", got)
	}
	// But still preserved in storage.
	if tr.Summary("well-A").Outgoing["annotated_by"] != 1 {
		t.Error("unknown relation should still be counted in the summary")
	}
}

func TestNeighborsUnknownID(t *testing.T) {
	tr := NewTraverser(testSnapshot(t))
	if got := tr.Neighbors("nope", Both, "", nil); len(got) != 0 {
		t.Errorf("unknown id should yield empty, got %v", got)
	}
}

func TestNeighborsPredicate(t *testing.T) {
	tr := NewTraverser(testSnapshot(t))
	got := tr.Neighbors("well-A", Incoming, RelDescribes, func(n Node) bool {
		return n.Attr("mnemonic") == "GR"
	})
	if len(got) != 1 || got[0].ID != "curve-GR" {
		t.Fatalf("predicate filter failed: %v", got)
	}
}

func TestCurvesForWellIsPermutationOfDescribesSources(t *testing.T) {
	tr := NewTraverser(testSnapshot(t))

	got := tr.CurvesForWell("well-A")
	want := map[string]bool{"curve-GR": true, "curve-RHOB": true, "curve-NPHI": true}
	if len(got) != len(want) {
		t.Fatalf("expected %d curves, got %d", len(want), len(got))
	}
	for _, n := range got {
		if !want[n.ID] {
			t.Errorf("unexpected curve %s", n.ID)
		}
	}
}

func TestWellForCurve(t *testing.T) {
	tr := NewTraverser(testSnapshot(t))
	well, ok := tr.WellForCurve("curve-DT")
	if !ok || well.ID != "well-B" {
		t.Fatalf("expected well-B, got %v ok=%v", well.ID, ok)
	}
	if _, ok := tr.WellForCurve("curve-missing"); ok {
		t.Error("unknown curve should report not found")
	}
}

func TestWellForCurveTieBreaks(t *testing.T) {
	nodes := []Node{
		{ID: "well-X", Type: TypeDocument, Attrs: map[string]any{"well_name": "X"}},
		{ID: "well-Y", Type: TypeDocument, Attrs: map[string]any{"well_name": "Y"}},
		{ID: "curve-1", Type: TypeCurve},
		{ID: "curve-2", Type: TypeCurve},
	}
	edges := []Edge{
		// curve-1: weighted, higher weight wins regardless of id order.
		{Source: "curve-1", Target: "well-Y", Relation: RelDescribes, Weight: 0.9},
		{Source: "curve-1", Target: "well-X", Relation: RelDescribes, Weight: 0.3},
		// curve-2: unweighted, lexicographically smallest id wins.
		{Source: "curve-2", Target: "well-Y", Relation: RelDescribes},
		{Source: "curve-2", Target: "well-X", Relation: RelDescribes},
	}
	snap, err := NewSnapshot(nodes, edges)
	if err != nil {
		t.Fatal(err)
	}
	tr := NewTraverser(snap)

	if w, _ := tr.WellForCurve("curve-1"); w.ID != "well-Y" {
		t.Errorf("highest weight should win, got %s", w.ID)
	}
	if w, _ := tr.WellForCurve("curve-2"); w.ID != "well-X" {
		t.Errorf("smallest id should win unweighted ties, got %s", w.ID)
	}
}

func TestExpandZeroHopsReturnsSeeds(t *testing.T) {
	tr := NewTraverser(testSnapshot(t))
	seeds := []string{"well-A", "curve-DT"}
	got, err := tr.Expand(seeds, Both, "", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].ID != "well-A" || got[1].ID != "curve-DT" {
		t.Fatalf("zero hops should return seeds unchanged, got %v", got)
	}
}

func TestExpandNegativeHops(t *testing.T) {
	tr := NewTraverser(testSnapshot(t))
	_, err := tr.Expand([]string{"well-A"}, Both, "", -1)
	if !errors.Is(err, ErrInvalidHops) {
		t.Fatalf("expected ErrInvalidHops, got %v", err)
	}
}

func TestExpandOneHop(t *testing.T) {
	tr := NewTraverser(testSnapshot(t))
	got, err := tr.Expand([]string{"well-A"}, Incoming, RelDescribes, 1)
	if err != nil {
		t.Fatal(err)
	}
	// Seed first, then the three curves.
	if len(got) != 4 {
		t.Fatalf("expected 4 nodes, got %d: %v", len(got), got)
	}
	if got[0].ID != "well-A" {
		t.Errorf("seed should come first, got %s", got[0].ID)
	}
}

func TestExpandCycleSafety(t *testing.T) {
	nodes := []Node{
		{ID: "a", Type: TypeDocument},
		{ID: "b", Type: TypeDocument},
	}
	edges := []Edge{
		{Source: "a", Target: "b", Relation: RelReportsOn},
		{Source: "b", Target: "a", Relation: RelReportsOn},
	}
	snap, err := NewSnapshot(nodes, edges)
	if err != nil {
		t.Fatal(err)
	}
	tr := NewTraverser(snap)

	got, err := tr.Expand([]string{"a"}, Both, "", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("cycle should not duplicate nodes, got %v", got)
	}
}

func TestExpandDeterministicOrder(t *testing.T) {
	tr := NewTraverser(testSnapshot(t))
	first, err := tr.Expand([]string{"well-A"}, Both, "", 2)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		again, err := tr.Expand([]string{"well-A"}, Both, "", 2)
		if err != nil {
			t.Fatal(err)
		}
		if len(again) != len(first) {
			t.Fatalf("run %d: length changed: %d vs %d", i, len(again), len(first))
		}
		for j := range again {
			if again[j].ID != first[j].ID {
				t.Fatalf("run %d: order changed at %d: %s vs %s", i, j, again[j].ID, first[j].ID)
			}
		}
	}
}

func TestSummary(t *testing.T) {
	tr := NewTraverser(testSnapshot(t))
	s := tr.Summary("well-A")
	if s.Incoming[RelDescribes] != 3 {
		t.Errorf("expected 3 incoming describes, got %d", s.Incoming[RelDescribes])
	}
	if s.Outgoing[RelLocatedAt] != 1 {
		t.Errorf("expected 1 outgoing located_at, got %d", s.Outgoing[RelLocatedAt])
	}
}

func TestNodesByTypeSorted(t *testing.T) {
	tr := NewTraverser(testSnapshot(t))
	ids := tr.NodesByType(TypeCurve)
	for i := 1; i < len(ids); i++ {
		if ids[i-1] >= ids[i] {
			t.Fatalf("ids not ascending: %v", ids)
		}
	}
	if len(ids) != 4 {
		t.Errorf("expected 4 curves, got %d", len(ids))
	}
}

func TestSnapshotImmutableUnderTraversal(t *testing.T) {
	snap := testSnapshot(t)
	tr := NewTraverser(snap)
	before := snap.Checksum()

	tr.Neighbors("well-A", Both, "", nil)
	tr.CurvesForWell("well-A")
	tr.Expand([]string{"well-A", "curve-DT"}, Both, "", 3)
	tr.Summary("well-A")

	if after := snap.Checksum(); after != before {
		t.Error("traversal mutated the snapshot")
	}
}

func TestDuplicateNodeRejected(t *testing.T) {
	_, err := NewSnapshot([]Node{{ID: "x"}, {ID: "x"}}, nil)
	if !errors.Is(err, ErrDuplicateNode) {
		t.Fatalf("expected ErrDuplicateNode, got %v", err)
	}
}

func TestManyCurves(t *testing.T) {
	// A well with 21 incoming describes edges reports exactly 21 curves.
	nodes := []Node{{ID: "well-15_9-13", Type: TypeDocument, Attrs: map[string]any{"well_name": "Sleipner East Appr"}}}
	var edges []Edge
	for i := 0; i < 21; i++ {
		id := fmt.Sprintf("curve-%02d", i)
		nodes = append(nodes, Node{ID: id, Type: TypeCurve, Attrs: map[string]any{"mnemonic": fmt.Sprintf("M%02d", i)}})
		edges = append(edges, Edge{Source: id, Target: "well-15_9-13", Relation: RelDescribes})
	}
	snap, err := NewSnapshot(nodes, edges)
	if err != nil {
		t.Fatal(err)
	}
	tr := NewTraverser(snap)
	if got := tr.CurvesForWell("well-15_9-13"); len(got) != 21 {
		t.Fatalf("expected 21 curves, got %d", len(got))
	}
}
