package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mkleiva/wellgraph"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (JSON)")
	addr := flag.String("addr", ":8080", "Listen address")
	flag.Parse()

	// Structured JSON logging.
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	cfg := wellgraph.DefaultConfig()
	if *configPath != "" {
		f, err := os.Open(*configPath)
		if err != nil {
			slog.Error("opening config", "error", err)
			os.Exit(1)
		}
		if err := json.NewDecoder(f).Decode(&cfg); err != nil {
			f.Close()
			slog.Error("parsing config", "error", err)
			os.Exit(1)
		}
		f.Close()
	}

	// Override from environment variables.
	if v := os.Getenv("WELLGRAPH_SNAPSHOT_DIR"); v != "" {
		cfg.SnapshotDir = v
	}
	if v := os.Getenv("WELLGRAPH_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("WELLGRAPH_CHAT_BASE_URL"); v != "" {
		cfg.Chat.BaseURL = v
	}
	if v := os.Getenv("WELLGRAPH_EMBED_BASE_URL"); v != "" {
		cfg.Embedding.BaseURL = v
	}
	if v := os.Getenv("WELLGRAPH_CHAT_API_KEY"); v != "" {
		cfg.Chat.APIKey = v
	}
	if v := os.Getenv("WELLGRAPH_EMBED_API_KEY"); v != "" {
		cfg.Embedding.APIKey = v
	}
	if v := os.Getenv("WELLGRAPH_CHAT_MODEL"); v != "" {
		cfg.Chat.Model = v
	}
	if v := os.Getenv("WELLGRAPH_EMBED_MODEL"); v != "" {
		cfg.Embedding.Model = v
	}
	if v := os.Getenv("WELLGRAPH_CHAT_PROVIDER"); v != "" {
		cfg.Chat.Provider = v
	}
	if v := os.Getenv("WELLGRAPH_EMBED_PROVIDER"); v != "" {
		cfg.Embedding.Provider = v
	}
	if v := os.Getenv("WELLGRAPH_EMBED_DIM"); v != "" {
		if dim, err := strconv.Atoi(v); err == nil && dim > 0 {
			cfg.EmbeddingDim = dim
		}
	}
	if v := os.Getenv("WELLGRAPH_VECTOR_BASE_URL"); v != "" {
		cfg.VectorBaseURL = v
	}
	if v := os.Getenv("WELLGRAPH_VECTOR_TOKEN"); v != "" {
		cfg.VectorToken = v
	}
	if v := os.Getenv("WELLGRAPH_VECTOR_COLLECTION"); v != "" {
		cfg.VectorCollection = v
	}
	if v := os.Getenv("WELLGRAPH_REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("WELLGRAPH_REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}

	// Fallback: check well-known provider env vars for API keys.
	if cfg.Chat.APIKey == "" && cfg.Chat.Provider == "openai" {
		cfg.Chat.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.Embedding.APIKey == "" && cfg.Embedding.Provider == "openai" {
		cfg.Embedding.APIKey = os.Getenv("OPENAI_API_KEY")
	}

	apiKey := os.Getenv("WELLGRAPH_API_KEY")
	corsOrigins := os.Getenv("WELLGRAPH_CORS_ORIGINS")

	engine, err := wellgraph.New(cfg)
	if err != nil {
		slog.Error("creating engine", "error", err)
		os.Exit(1)
	}
	defer engine.Close()

	h := newHandler(engine)
	mux := http.NewServeMux()

	mux.HandleFunc("POST /query", h.handleQuery)
	mux.HandleFunc("GET /queries/recent", h.handleRecentQueries)
	mux.HandleFunc("GET /nodes/{id}/relationships", h.handleRelationships)
	mux.HandleFunc("GET /health", h.handleHealth)

	// Middleware chain: recovery -> cors -> auth -> logging -> mux
	var handler http.Handler = mux
	handler = logMiddleware(handler)
	handler = authMiddleware(apiKey, handler)
	handler = corsMiddleware(corsOrigins, handler)
	handler = recoveryMiddleware(handler)

	srv := &http.Server{
		Addr:         *addr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 3 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown on SIGTERM/SIGINT.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("server starting", "addr", *addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		slog.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}
