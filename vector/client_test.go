package vector

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mkleiva/wellgraph/resilience"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewClient(Config{BaseURL: srv.URL, Collection: "nodes", Dimension: 3})
	c.retry = resilience.RetryPolicy{MaxRetries: 3, BaseDelay: time.Millisecond, BackoffFactor: 2}
	return c
}

func TestFindSendsCommandAndParsesDocuments(t *testing.T) {
	var got findCommand
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/nodes" {
			t.Errorf("path = %q, want /nodes", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatal(err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"documents": []map[string]any{
					{"_id": "doc-1", "entity_type": "document", "$similarity": 0.91},
					{"_id": "curve-1", "entity_type": "curve", "$similarity": 0.84},
				},
			},
		})
	})

	docs, err := c.Find(context.Background(),
		map[string]any{"entity_type": "document"}, []float32{1, 0, 0}, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 2 {
		t.Fatalf("got %d documents, want 2", len(docs))
	}
	if docs[0].ID != "doc-1" || docs[0].Similarity != 0.91 {
		t.Errorf("first doc = %+v", docs[0])
	}

	if got.Find.Options.Limit != 5 {
		t.Errorf("limit = %d, want 5", got.Find.Options.Limit)
	}
	if !got.Find.Options.IncludeSimilarity {
		t.Error("includeSimilarity not set for a vector search")
	}
	if got.Find.Sort == nil || len(got.Find.Sort.Vector) != 3 {
		t.Errorf("sort vector missing: %+v", got.Find.Sort)
	}
}

func TestFindEmptyResultIsNotAnError(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{"documents": []any{}},
		})
	})

	docs, err := c.Find(context.Background(), nil, []float32{1, 0, 0}, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 0 {
		t.Errorf("got %d documents, want 0", len(docs))
	}
}

func TestFindRejectsDimensionMismatch(t *testing.T) {
	var calls atomic.Int32
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	})

	_, err := c.Find(context.Background(), nil, []float32{1, 0}, 5)
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("err = %v, want ErrDimensionMismatch", err)
	}
	if calls.Load() != 0 {
		t.Error("request sent despite dimension mismatch")
	}
}

func TestFindRetriesTransientFailure(t *testing.T) {
	var calls atomic.Int32
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"documents": []map[string]any{{"_id": "doc-1", "entity_type": "document"}},
			},
		})
	})

	docs, err := c.Find(context.Background(), nil, []float32{1, 0, 0}, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 1 {
		t.Fatalf("got %d documents, want 1", len(docs))
	}
	if calls.Load() != 2 {
		t.Errorf("server called %d times, want 2", calls.Load())
	}
}

func TestBatchFindByIDsUsesInFilter(t *testing.T) {
	var got findCommand
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatal(err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"documents": []map[string]any{{"_id": "well-1", "entity_type": "document"}},
			},
		})
	})

	docs, err := c.BatchFindByIDs(context.Background(), []string{"well-1", "well-2"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 1 {
		t.Fatalf("got %d documents, want 1", len(docs))
	}

	idFilter, ok := got.Find.Filter["_id"].(map[string]any)
	if !ok {
		t.Fatalf("filter = %+v, want _id $in", got.Find.Filter)
	}
	in, ok := idFilter["$in"].([]any)
	if !ok || len(in) != 2 {
		t.Errorf("$in = %+v, want two ids", idFilter["$in"])
	}
	if got.Find.Options.IncludeSimilarity {
		t.Error("includeSimilarity set without a sort vector")
	}
}

func TestBatchFindByIDsEmptyInput(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected for empty id list")
	})
	docs, err := c.BatchFindByIDs(context.Background(), nil, nil)
	if err != nil || docs != nil {
		t.Fatalf("got (%v, %v), want (nil, nil)", docs, err)
	}
}

func TestFindSurfacesAPIErrors(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"errors": []map[string]any{{"message": "collection not found"}},
		})
	})
	if _, err := c.Find(context.Background(), nil, []float32{1, 0, 0}, 5); err == nil {
		t.Fatal("expected api error")
	}
}
