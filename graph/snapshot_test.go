package graph

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeJSON(t *testing.T, path string, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func writeSnapshotFiles(t *testing.T, dir string) {
	t.Helper()
	writeJSON(t, filepath.Join(dir, "nodes.json"), []Node{
		{ID: "well-A", Type: TypeDocument, Attrs: map[string]any{"well_name": "Alpha"}},
		{ID: "curve-GR", Type: TypeCurve, Attrs: map[string]any{"mnemonic": "GR"}},
	})
	writeJSON(t, filepath.Join(dir, "edges.json"), []Edge{
		{Source: "curve-GR", Target: "well-A", Relation: RelDescribes},
	})
}

func TestLoadAppliesEnrichment(t *testing.T) {
	dir := t.TempDir()
	writeSnapshotFiles(t, dir)

	snap, err := Load(dir, "test-model")
	if err != nil {
		t.Fatal(err)
	}
	curve, ok := snap.Node("curve-GR")
	if !ok {
		t.Fatal("curve-GR missing")
	}
	if got := curve.Attr(AttrWellName); got != "Alpha" {
		t.Errorf("_well_name = %q, want Alpha", got)
	}
}

func TestLoadMergesEmbeddings(t *testing.T) {
	dir := t.TempDir()
	writeSnapshotFiles(t, dir)
	writeJSON(t, filepath.Join(dir, "node_embeddings.json"), embeddingFile{
		Model:   "test-model",
		Vectors: map[string][]float32{"well-A": {0.1, 0.2}},
	})

	snap, err := Load(dir, "test-model")
	if err != nil {
		t.Fatal(err)
	}
	well, _ := snap.Node("well-A")
	if len(well.Vector) != 2 {
		t.Errorf("expected merged vector of length 2, got %v", well.Vector)
	}
}

func TestLoadRejectsEmbeddingVersionMismatch(t *testing.T) {
	dir := t.TempDir()
	writeSnapshotFiles(t, dir)
	writeJSON(t, filepath.Join(dir, "node_embeddings.json"), embeddingFile{
		Model:   "other-model",
		Vectors: map[string][]float32{},
	})

	_, err := Load(dir, "test-model")
	if !errors.Is(err, ErrEmbeddingVersion) {
		t.Fatalf("expected ErrEmbeddingVersion, got %v", err)
	}
}

func TestLoadMissingFiles(t *testing.T) {
	_, err := Load(t.TempDir(), "test-model")
	if err == nil {
		t.Fatal("expected error for missing snapshot files")
	}
}

func TestChecksumStable(t *testing.T) {
	dir := t.TempDir()
	writeSnapshotFiles(t, dir)
	a, err := Load(dir, "")
	if err != nil {
		t.Fatal(err)
	}
	b, err := Load(dir, "")
	if err != nil {
		t.Fatal(err)
	}
	if a.Checksum() != b.Checksum() {
		t.Error("identical inputs must produce identical checksums")
	}
}
