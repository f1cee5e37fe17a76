// Package wellgraph is a hybrid retrieval-and-reasoning engine over a
// knowledge graph of subsurface well logs. A query is classified, routed to
// the cheapest handler that can answer it deterministically (aggregation,
// attribute extraction, typed graph traversal, glossary tool calling) and
// otherwise answered by vector retrieval plus grounded generation.
package wellgraph

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mkleiva/wellgraph/agent"
	"github.com/mkleiva/wellgraph/cache"
	"github.com/mkleiva/wellgraph/glossary"
	"github.com/mkleiva/wellgraph/graph"
	"github.com/mkleiva/wellgraph/llm"
	"github.com/mkleiva/wellgraph/retrieval"
	"github.com/mkleiva/wellgraph/store"
	"github.com/mkleiva/wellgraph/vector"
)

// Canonical user-visible answers. Fixed strings so callers and tests can
// match them exactly.
const (
	// RefusalAnswer is returned for out-of-domain queries.
	RefusalAnswer = "I can only answer questions about subsurface well logs and related measurements."

	// InsufficientAnswer is returned when retrieval finds nothing to ground
	// an answer in.
	InsufficientAnswer = "I don't have enough information in the knowledge base to answer that."

	// TimeoutAnswer is returned when a query deadline expires.
	TimeoutAnswer = "The query timed out before an answer could be produced."
)

// Engine is the main entry point for the wellgraph engine.
type Engine interface {
	// Answer runs a question through the routing pipeline.
	Answer(ctx context.Context, query string, opts ...QueryOption) (*Result, error)

	// Traverser returns the graph traverser for diagnostic access.
	Traverser() *graph.Traverser

	// Store returns the underlying store for diagnostic access.
	Store() *store.Store

	// Close cleanly shuts down the engine.
	Close() error
}

// Result is the outcome of one query.
type Result struct {
	// Response is the answer text. For aggregation queries Structured
	// additionally carries the primitive value.
	Response   string    `json:"response"`
	Structured any       `json:"structured_answer,omitempty"`
	Metadata   *Metadata `json:"metadata"`
}

// embedder is the slice of the embedding stack the orchestrator needs.
type embedder interface {
	EmbedOne(ctx context.Context, text string) ([]float32, error)
}

// retriever runs one retrieval pipeline pass.
type retriever interface {
	Search(ctx context.Context, query string, queryVector []float32, p retrieval.Params) (*retrieval.Result, error)
}

// toolAgent runs the bounded tool-calling loop.
type toolAgent interface {
	Run(ctx context.Context, question string) agent.Outcome
}

// engine is the concrete implementation of Engine.
type engine struct {
	cfg       Config
	logger    *slog.Logger
	traverser *graph.Traverser
	store     *store.Store
	cache     *cache.TwoTier
	redis     *redis.Client
	chatLLM   llm.Provider
	embedder  embedder
	retriever retriever
	agent     toolAgent
}

// New creates a wellgraph engine from configuration. The graph snapshot is
// loaded eagerly so configuration problems surface at boot.
func New(cfg Config) (Engine, error) {
	snap, err := graph.Load(cfg.SnapshotDir, cfg.Embedding.Model)
	if err != nil {
		return nil, fmt.Errorf("loading snapshot: %w", err)
	}
	traverser := graph.NewTraverser(snap)

	s, err := store.New(cfg.resolveDBPath())
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
	}
	var universal redis.UniversalClient
	if rdb != nil {
		universal = rdb
	}
	tiered := cache.New(cache.Options{Redis: universal})

	chatLLM, err := llm.NewProvider(cfg.Chat)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("creating chat provider: %w", err)
	}
	embedLLM, err := llm.NewProvider(cfg.Embedding)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("creating embedding provider: %w", err)
	}

	vclient := vector.NewClient(vector.Config{
		BaseURL:    cfg.VectorBaseURL,
		Token:      cfg.VectorToken,
		Collection: cfg.VectorCollection,
		Dimension:  cfg.EmbeddingDim,
	})

	logger := slog.Default()

	glossarySvc := glossary.NewService(glossary.Options{
		Cache:           tiered,
		Statics:         s,
		RefillPerSecond: cfg.GlossaryRefillPerSecond,
		Logger:          logger,
	})

	registry := agent.NewRegistry()
	registry.Register(agent.NewDefineTermTool(glossarySvc))

	return &engine{
		cfg:       cfg,
		logger:    logger,
		traverser: traverser,
		store:     s,
		cache:     tiered,
		redis:     rdb,
		chatLLM:   chatLLM,
		embedder:  llm.NewEmbedder(embedLLM, cfg.Embedding.Model),
		retriever: retrieval.NewEngine(vclient, traverser, logger),
		agent:     agent.NewLoop(chatLLM, registry, logger),
	}, nil
}

// Traverser returns the graph traverser.
func (e *engine) Traverser() *graph.Traverser { return e.traverser }

// Store returns the underlying store.
func (e *engine) Store() *store.Store { return e.store }

// Close shuts down the engine.
func (e *engine) Close() error {
	var firstErr error
	if e.store != nil {
		if err := e.store.Close(); err != nil {
			firstErr = err
		}
	}
	if e.redis != nil {
		if err := e.redis.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// logQuery records an answered query in the audit log. Log failures are
// swallowed; auditing never breaks an answer.
func (e *engine) logQuery(ctx context.Context, query string, res *Result, started time.Time) {
	if e.store == nil {
		return
	}
	entry := store.QueryLog{
		Query:      query,
		Answer:     res.Response,
		Route:      res.Metadata.RoutingDecision,
		Confidence: res.Metadata.Confidence,
		DurationMS: time.Since(started).Milliseconds(),
	}
	if res.Metadata.Confidence > 0 {
		entry.ConfidenceBucket = bucketOf(res.Metadata.Confidence)
	}
	entry.ToolInvoked = res.Metadata.ToolInvoked
	if err := e.store.LogQuery(ctx, entry); err != nil {
		e.logger.Warn("query log write failed", "error", err)
	}
}
