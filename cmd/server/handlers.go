package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/mkleiva/wellgraph"
)

type handler struct {
	engine wellgraph.Engine
}

func newHandler(e wellgraph.Engine) *handler {
	return &handler{engine: e}
}

// POST /query
func (h *handler) handleQuery(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()

	var req struct {
		Query                 string              `json:"query"`
		RetrievalLimit        int                 `json:"retrieval_limit,omitempty"`
		Filters               map[string][]string `json:"filters,omitempty"`
		ForceDirectGeneration bool                `json:"force_direct_generation,omitempty"`
		TimeoutSeconds        int                 `json:"timeout_seconds,omitempty"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	// Bound parameters.
	if req.RetrievalLimit < 0 || req.RetrievalLimit > 100 {
		req.RetrievalLimit = 0 // use default
	}

	var opts []wellgraph.QueryOption
	if req.RetrievalLimit > 0 {
		opts = append(opts, wellgraph.WithRetrievalLimit(req.RetrievalLimit))
	}
	if len(req.Filters) > 0 {
		opts = append(opts, wellgraph.WithFilters(req.Filters))
	}
	if req.ForceDirectGeneration {
		opts = append(opts, wellgraph.WithForceDirectGeneration())
	}
	if req.TimeoutSeconds > 0 {
		opts = append(opts, wellgraph.WithDeadline(time.Now().Add(time.Duration(req.TimeoutSeconds)*time.Second)))
	}

	res, err := h.engine.Answer(ctx, req.Query, opts...)
	if err != nil {
		if errors.Is(err, wellgraph.ErrInvalidInput) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "query failed")
		slog.Error("query error", "query", req.Query, "error", err)
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// GET /queries/recent
func (h *handler) handleRecentQueries(w http.ResponseWriter, r *http.Request) {
	logs, err := h.engine.Store().RecentQueries(r.Context(), 0)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read query log")
		slog.Error("recent queries error", "error", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"queries": logs,
	})
}

// GET /nodes/{id}/relationships
func (h *handler) handleRelationships(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	t := h.engine.Traverser()
	if _, ok := t.GetNode(id); !ok {
		writeError(w, http.StatusNotFound, "unknown node")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"node_id": id,
		"summary": t.Summary(id),
	})
}

// GET /health
func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
