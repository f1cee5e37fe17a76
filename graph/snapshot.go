// Package graph holds the immutable knowledge-graph snapshot and its
// read-only traverser. The snapshot is built once at startup from JSON files
// produced by the (out-of-process) ingestion pipeline and is never mutated
// on the query path.
package graph

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Node is a graph vertex. Attrs holds domain metadata plus enrichment
// attributes whose keys begin with "_".
type Node struct {
	ID     string         `json:"id"`
	Type   string         `json:"type"`
	Attrs  map[string]any `json:"attrs,omitempty"`
	Vector []float32      `json:"vector,omitempty"`
}

// Attr returns the string form of an attribute, or "" if absent.
func (n Node) Attr(key string) string {
	if n.Attrs == nil {
		return ""
	}
	if v, ok := n.Attrs[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
		return fmt.Sprint(v)
	}
	return ""
}

// IsWell reports whether a node represents a well. Wells are stored either
// as dedicated well nodes or as document nodes tagged with well metadata.
func IsWell(n Node) bool {
	if n.Type == TypeWell {
		return true
	}
	if n.Type != TypeDocument {
		return false
	}
	return n.Attr("doc_type") == "well" || n.Attr("well_name") != ""
}

// Edge is a directed, typed edge. Weight 0 means unweighted.
type Edge struct {
	Source   string  `json:"source"`
	Target   string  `json:"target"`
	Relation string  `json:"relation"`
	Weight   float64 `json:"weight,omitempty"`
}

// Relations form a closed vocabulary. Edges with other relation labels are
// preserved in the snapshot but ignored by traversal.
const (
	RelDescribes = "describes"
	RelMeasures  = "measures"
	RelReportsOn = "reports_on"
	RelLocatedAt = "located_at"
	RelHasMetric = "has_metric"
)

// KnownRelations is the traversal-visible relation vocabulary.
var KnownRelations = map[string]bool{
	RelDescribes: true,
	RelMeasures:  true,
	RelReportsOn: true,
	RelLocatedAt: true,
	RelHasMetric: true,
}

// Node types.
const (
	TypeDocument   = "document"
	TypeCurve      = "curve"
	TypeWell       = "well"
	TypeSite       = "site"
	TypeMetric     = "metric"
	TypeTimeseries = "timeseries"
)

// Snapshot is an immutable (Nodes, Edges) pair. All fields are read-only
// after Load; concurrent readers need no locks.
type Snapshot struct {
	Nodes []Node
	Edges []Edge

	byID map[string]int // node id -> index into Nodes
}

var (
	// ErrDuplicateNode indicates a snapshot file with a repeated node id.
	ErrDuplicateNode = errors.New("graph: duplicate node id")

	// ErrEmbeddingVersion indicates node_embeddings.json was produced by a
	// different embedding model than the one configured.
	ErrEmbeddingVersion = errors.New("graph: embedding version mismatch")
)

// embeddingFile is the on-disk layout of graph/node_embeddings.json.
type embeddingFile struct {
	Model   string               `json:"model"`
	Vectors map[string][]float32 `json:"vectors"`
}

// Load reads nodes.json and edges.json from dir, applies enrichment, and
// optionally merges node_embeddings.json. modelID guards the embedding file:
// a stamp mismatch is rejected rather than silently accepted.
func Load(dir, modelID string) (*Snapshot, error) {
	var nodes []Node
	if err := readJSON(filepath.Join(dir, "nodes.json"), &nodes); err != nil {
		return nil, fmt.Errorf("loading nodes: %w", err)
	}
	var edges []Edge
	if err := readJSON(filepath.Join(dir, "edges.json"), &edges); err != nil {
		return nil, fmt.Errorf("loading edges: %w", err)
	}

	embPath := filepath.Join(dir, "node_embeddings.json")
	if _, err := os.Stat(embPath); err == nil {
		var ef embeddingFile
		if err := readJSON(embPath, &ef); err != nil {
			return nil, fmt.Errorf("loading embeddings: %w", err)
		}
		if ef.Model != "" && modelID != "" && ef.Model != modelID {
			return nil, fmt.Errorf("%w: file=%q configured=%q", ErrEmbeddingVersion, ef.Model, modelID)
		}
		for i := range nodes {
			if v, ok := ef.Vectors[nodes[i].ID]; ok {
				nodes[i].Vector = v
			}
		}
	}

	return NewSnapshot(nodes, edges)
}

// NewSnapshot validates, enriches, and indexes an in-memory node/edge set.
func NewSnapshot(nodes []Node, edges []Edge) (*Snapshot, error) {
	byID := make(map[string]int, len(nodes))
	for i, n := range nodes {
		if _, dup := byID[n.ID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateNode, n.ID)
		}
		byID[n.ID] = i
	}

	Enrich(nodes, edges, byID)

	return &Snapshot{Nodes: nodes, Edges: edges, byID: byID}, nil
}

// Node returns the node with the given id, if present.
func (s *Snapshot) Node(id string) (Node, bool) {
	i, ok := s.byID[id]
	if !ok {
		return Node{}, false
	}
	return s.Nodes[i], true
}

// Checksum returns the SHA-256 of a canonical serialization of the snapshot.
// Used to assert that the query path never mutates the graph.
func (s *Snapshot) Checksum() string {
	nodes := make([]Node, len(s.Nodes))
	copy(nodes, s.Nodes)
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })

	edges := make([]Edge, len(s.Edges))
	copy(edges, s.Edges)
	sort.Slice(edges, func(i, j int) bool {
		a, b := edges[i], edges[j]
		if a.Source != b.Source {
			return a.Source < b.Source
		}
		if a.Target != b.Target {
			return a.Target < b.Target
		}
		return a.Relation < b.Relation
	})

	h := sha256.New()
	enc := json.NewEncoder(h)
	for _, n := range nodes {
		// Attrs maps serialize with sorted keys under encoding/json.
		enc.Encode(n)
	}
	for _, e := range edges {
		enc.Encode(e)
	}
	return hex.EncodeToString(h.Sum(nil))
}

func readJSON(path string, v any) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return json.NewDecoder(f).Decode(v)
}
