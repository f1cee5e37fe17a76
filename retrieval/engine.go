// Package retrieval runs the vector search pipeline: candidate fetch,
// rerank, closed-world filtering, and graph expansion. The orchestrator
// decides the tuning (breadth, weights, filter mode, hops) from routing
// confidence; this package executes it.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/mkleiva/wellgraph/graph"
	"github.com/mkleiva/wellgraph/vector"
)

const minInitialK = 50

// Searcher is the slice of the vector client the engine needs.
type Searcher interface {
	Find(ctx context.Context, filter map[string]any, sortVector []float32, limit int) ([]vector.Document, error)
	BatchFindByIDs(ctx context.Context, ids []string, sortVector []float32) ([]vector.Document, error)
}

// Params tune one retrieval run.
type Params struct {
	TopK int

	// Rerank weights. VectorWeight + LexicalWeight should sum to 1.
	VectorWeight  float64
	LexicalWeight float64

	// Filters maps attribute name to accepted values. FilterAll requires
	// every attribute to match (AND); otherwise any match keeps the
	// document (OR). An AND pass that empties the result is retried as OR.
	Filters   map[string][]string
	FilterAll bool

	// MaxHops controls graph expansion from the surviving documents.
	// Zero disables expansion.
	MaxHops int

	// RequiredIDs are node ids the query names explicitly. Any that the
	// similarity search misses are fetched directly by id.
	RequiredIDs []string
}

// Document is one retrieved record after reranking.
type Document struct {
	ID            string
	EntityType    string
	Attributes    map[string]any
	Similarity    float64
	Score         float64
	FromExpansion bool
}

// Result is the outcome of one retrieval run.
type Result struct {
	Documents      []Document
	ExpansionRatio float64
	// FellBackToOR is set when AND filtering emptied the result and the
	// run was salvaged with OR semantics.
	FellBackToOR bool
	// TargetedFetch is set when the id prefetch supplied a document the
	// similarity search missed.
	TargetedFetch bool
}

// Engine executes retrieval runs against a vector store and a graph
// traverser. The traverser may be nil, disabling expansion.
type Engine struct {
	searcher  Searcher
	traverser *graph.Traverser
	logger    *slog.Logger
}

// NewEngine creates a retrieval engine.
func NewEngine(searcher Searcher, traverser *graph.Traverser, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{searcher: searcher, traverser: traverser, logger: logger}
}

// initialK is the candidate pool size for a final top-k: wide enough that
// filtering and reranking have real choices.
func initialK(topK int) int {
	k := topK * 3
	if k < minInitialK {
		k = minInitialK
	}
	return k
}

// Search runs the full pipeline for query embedded as queryVector. An empty
// candidate set is a valid result, not an error.
func (e *Engine) Search(ctx context.Context, query string, queryVector []float32, p Params) (*Result, error) {
	if p.TopK <= 0 {
		p.TopK = 10
	}
	if p.VectorWeight == 0 && p.LexicalWeight == 0 {
		p.VectorWeight, p.LexicalWeight = 0.7, 0.3
	}

	// The similarity search and the prefetch of explicitly named ids are
	// independent remote calls; run them concurrently. The merged output is
	// identical to a sequential fetch-then-backfill.
	var docs, prefetched []vector.Document
	var prefetchErr error

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		d, err := e.searcher.Find(gctx, nil, queryVector, initialK(p.TopK))
		if err != nil {
			return fmt.Errorf("vector search: %w", err)
		}
		docs = d
		return nil
	})
	if len(p.RequiredIDs) > 0 {
		g.Go(func() error {
			d, err := e.searcher.BatchFindByIDs(gctx, p.RequiredIDs, queryVector)
			if err != nil {
				// A failed prefetch degrades the result, it does not sink
				// the whole run.
				prefetchErr = err
				return nil
			}
			prefetched = d
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if prefetchErr != nil {
		e.logger.Warn("targeted id fetch failed", "error", prefetchErr)
	}

	res := &Result{}

	present := make(map[string]bool, len(docs))
	for _, d := range docs {
		present[d.ID] = true
	}
	for _, d := range prefetched {
		if present[d.ID] {
			continue
		}
		present[d.ID] = true
		docs = append(docs, d)
		res.TargetedFetch = true
	}

	// Rerank to top-k first; post-filters act on that list only, so a
	// candidate ranked below top-k can never ride a filter into the result.
	candidates := rerank(query, docs, p.VectorWeight, p.LexicalWeight)
	if len(candidates) > p.TopK {
		candidates = candidates[:p.TopK]
	}

	if len(p.Filters) > 0 {
		filtered := applyFilters(candidates, p.Filters, p.FilterAll)
		if len(filtered) == 0 && p.FilterAll {
			filtered = applyFilters(candidates, p.Filters, false)
			res.FellBackToOR = true
		}
		candidates = filtered
	}

	before := len(candidates)
	candidates = e.expand(candidates, p.MaxHops)
	denom := before
	if denom < 1 {
		denom = 1
	}
	res.ExpansionRatio = float64(len(candidates)) / float64(denom)

	res.Documents = candidates
	return res, nil
}

// expand augments results with graph neighborhoods of the surviving
// documents. Existing entries are never replaced or reordered; expansion
// nodes append in BFS order.
func (e *Engine) expand(docs []Document, maxHops int) []Document {
	if maxHops <= 0 || e.traverser == nil || len(docs) == 0 {
		return docs
	}

	seeds := make([]string, 0, len(docs))
	seen := make(map[string]bool, len(docs))
	for _, d := range docs {
		seeds = append(seeds, d.ID)
		seen[d.ID] = true
	}

	nodes, err := e.traverser.Expand(seeds, graph.Both, "", maxHops)
	if err != nil {
		e.logger.Warn("graph expansion failed", "error", err, "seeds", len(seeds))
		return docs
	}

	for _, n := range nodes {
		if seen[n.ID] {
			continue
		}
		seen[n.ID] = true
		docs = append(docs, Document{
			ID:            n.ID,
			EntityType:    n.Type,
			Attributes:    n.Attrs,
			FromExpansion: true,
		})
	}
	return docs
}
