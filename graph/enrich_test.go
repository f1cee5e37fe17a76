package graph

import (
	"reflect"
	"testing"
)

func enrichFixture() ([]Node, []Edge) {
	nodes := []Node{
		{ID: "well-A", Type: TypeDocument, Attrs: map[string]any{"well_name": "Alpha North"}},
		{ID: "curve-GR", Type: TypeCurve, Attrs: map[string]any{"mnemonic": "GR"}},
		{ID: "curve-RHOB", Type: TypeCurve, Attrs: map[string]any{"mnemonic": "RHOB"}},
		{ID: "site-1", Type: TypeSite},
	}
	edges := []Edge{
		{Source: "curve-GR", Target: "well-A", Relation: RelDescribes},
		{Source: "curve-RHOB", Target: "well-A", Relation: RelDescribes},
		{Source: "well-A", Target: "site-1", Relation: RelLocatedAt},
	}
	return nodes, edges
}

func indexByID(nodes []Node) map[string]int {
	m := make(map[string]int, len(nodes))
	for i, n := range nodes {
		m[n.ID] = i
	}
	return m
}

func TestEnrichWellName(t *testing.T) {
	nodes, edges := enrichFixture()
	Enrich(nodes, edges, indexByID(nodes))

	if got := nodes[1].Attr(AttrWellName); got != "Alpha North" {
		t.Errorf("curve-GR _well_name = %q, want %q", got, "Alpha North")
	}
	if got := nodes[2].Attr(AttrWellName); got != "Alpha North" {
		t.Errorf("curve-RHOB _well_name = %q, want %q", got, "Alpha North")
	}
}

func TestEnrichCurveMnemonics(t *testing.T) {
	nodes, edges := enrichFixture()
	Enrich(nodes, edges, indexByID(nodes))

	got, ok := nodes[0].Attrs[AttrCurveMnemonics].([]string)
	if !ok {
		t.Fatalf("expected []string mnemonics, got %T", nodes[0].Attrs[AttrCurveMnemonics])
	}
	want := []string{"GR", "RHOB"} // edge insertion order
	if !reflect.DeepEqual(got, want) {
		t.Errorf("mnemonics = %v, want %v", got, want)
	}
}

func TestEnrichNonDescribesDoesNotContribute(t *testing.T) {
	nodes, edges := enrichFixture()
	Enrich(nodes, edges, indexByID(nodes))

	// site-1 has only a located_at edge: no enrichment keys at all.
	if _, ok := nodes[3].Attrs[AttrWellName]; ok {
		t.Error("site node must not receive _well_name")
	}
	if _, ok := nodes[3].Attrs[AttrCurveMnemonics]; ok {
		t.Error("site node must not receive _curve_mnemonics")
	}
}

func TestEnrichIdempotent(t *testing.T) {
	nodes, edges := enrichFixture()
	byID := indexByID(nodes)

	Enrich(nodes, edges, byID)
	snap1, err := NewSnapshot(append([]Node(nil), nodes...), edges)
	if err != nil {
		t.Fatal(err)
	}
	first := snap1.Checksum()

	Enrich(nodes, edges, byID)
	snap2, err := NewSnapshot(append([]Node(nil), nodes...), edges)
	if err != nil {
		t.Fatal(err)
	}
	if second := snap2.Checksum(); second != first {
		t.Error("enrichment is not idempotent")
	}
}

func TestEnrichMnemonicCap(t *testing.T) {
	nodes := []Node{{ID: "well-A", Type: TypeDocument, Attrs: map[string]any{"well_name": "Alpha"}}}
	var edges []Edge
	for i := 0; i < 15; i++ {
		id := string(rune('a' + i))
		nodes = append(nodes, Node{ID: "curve-" + id, Type: TypeCurve, Attrs: map[string]any{"mnemonic": "M" + id}})
		edges = append(edges, Edge{Source: "curve-" + id, Target: "well-A", Relation: RelDescribes})
	}
	Enrich(nodes, edges, indexByID(nodes))

	got := nodes[0].Attrs[AttrCurveMnemonics].([]string)
	if len(got) != 10 {
		t.Fatalf("expected cap of 10 mnemonics, got %d", len(got))
	}
	// First ten in insertion order.
	if got[0] != "Ma" || got[9] != "Mj" {
		t.Errorf("unexpected ordering: first=%s last=%s", got[0], got[9])
	}
}

func TestEnrichMissingNameYieldsNoKey(t *testing.T) {
	nodes := []Node{
		{ID: "well-A", Type: TypeDocument}, // no well_name or name attr
		{ID: "curve-GR", Type: TypeCurve, Attrs: map[string]any{"mnemonic": "GR"}},
	}
	edges := []Edge{{Source: "curve-GR", Target: "well-A", Relation: RelDescribes}}
	Enrich(nodes, edges, indexByID(nodes))

	if _, ok := nodes[1].Attrs[AttrWellName]; ok {
		t.Error("keys must be present with a value or absent, never empty")
	}
}
