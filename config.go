package wellgraph

import (
	"os"
	"path/filepath"

	"github.com/mkleiva/wellgraph/llm"
)

// Config holds all configuration for the wellgraph engine.
type Config struct {
	// SnapshotDir is the directory holding nodes.json, edges.json and the
	// optional node_embeddings.json.
	SnapshotDir string `json:"snapshot_dir"`

	// DBPath is the full path to the SQLite database file.
	// If empty, defaults to ~/.wellgraph/<DBName>.db
	DBPath string `json:"db_path"`

	// DBName is the name for the database (used when DBPath is empty).
	DBName string `json:"db_name"`

	// StorageDir controls where the database is created when DBPath is not
	// explicitly set. "home" (default) uses ~/.wellgraph/, "local" uses the
	// current working directory.
	StorageDir string `json:"storage_dir"`

	// LLM providers
	Chat      llm.Config `json:"chat"`
	Embedding llm.Config `json:"embedding"`

	// EmbeddingDim must match the embedding model and the vector
	// collection. Mismatches fail at boot.
	EmbeddingDim int `json:"embedding_dim"`

	// Vector store
	VectorBaseURL    string `json:"vector_base_url"`
	VectorToken      string `json:"vector_token"`
	VectorCollection string `json:"vector_collection"`

	// RedisAddr enables the primary cache tier when non-empty.
	RedisAddr     string `json:"redis_addr"`
	RedisPassword string `json:"redis_password"`

	// GlossaryExclusions extends the built-in exclusion patterns that keep
	// data queries away from the glossary agent.
	GlossaryExclusions []string `json:"glossary_exclusions"`

	// GlossaryRefillPerSecond is the per-host scrape rate.
	GlossaryRefillPerSecond float64 `json:"glossary_refill_per_second"`
}

// DefaultConfig returns a Config with sensible defaults for local inference.
// Database is stored in ~/.wellgraph/wellgraph.db by default.
func DefaultConfig() Config {
	return Config{
		SnapshotDir: "graph",
		DBName:      "wellgraph",
		StorageDir:  "home",
		Chat: llm.Config{
			Provider: "ollama",
			Model:    "llama3.1:8b",
			BaseURL:  "http://localhost:11434",
		},
		Embedding: llm.Config{
			Provider: "ollama",
			Model:    "nomic-embed-text",
			BaseURL:  "http://localhost:11434",
		},
		EmbeddingDim:            768,
		VectorCollection:        "nodes",
		GlossaryRefillPerSecond: 1,
	}
}

// resolveDBPath computes the final database path from config fields.
func (c *Config) resolveDBPath() string {
	if c.DBPath != "" {
		return c.DBPath
	}

	name := c.DBName
	if name == "" {
		name = "wellgraph"
	}

	switch c.StorageDir {
	case "local", "cwd":
		return name + ".db"
	default: // "home" or empty
		home, err := os.UserHomeDir()
		if err != nil {
			return name + ".db" // fallback to cwd
		}
		return filepath.Join(home, ".wellgraph", name+".db")
	}
}
