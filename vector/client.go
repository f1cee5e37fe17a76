// Package vector is the client for the remote document vector API. Documents
// carry the node id, entity type, attributes and embedding; similarity search
// sorts by a query vector and reports $similarity per document.
package vector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mkleiva/wellgraph/resilience"
)

// ErrDimensionMismatch reports a sort vector whose length differs from the
// collection's configured dimension. Treated as a configuration error by
// callers, never retried.
var ErrDimensionMismatch = errors.New("vector: query dimension does not match collection")

// Document is one record in the vector collection.
type Document struct {
	ID         string         `json:"_id"`
	EntityType string         `json:"entity_type"`
	Attributes map[string]any `json:"attributes"`
	Vector     []float32      `json:"$vector,omitempty"`
	Similarity float64        `json:"$similarity,omitempty"`
}

// Config configures a vector store client.
type Config struct {
	BaseURL    string
	Token      string
	Collection string
	// Dimension is the collection's embedding width. Zero disables the
	// client-side check.
	Dimension int
	Timeout   time.Duration
}

// Client talks to the document API over JSON POST requests.
type Client struct {
	cfg    Config
	client *http.Client
	retry  resilience.RetryPolicy
}

// NewClient creates a vector store client.
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{
		cfg:    cfg,
		client: resilience.NewHTTPClient(0, cfg.Timeout),
		retry:  resilience.DefaultRetryPolicy(),
	}
}

type findCommand struct {
	Find findBody `json:"find"`
}

type findBody struct {
	Filter  map[string]any `json:"filter,omitempty"`
	Sort    *findSort      `json:"sort,omitempty"`
	Options findOptions    `json:"options"`
}

type findSort struct {
	Vector []float32 `json:"$vector"`
}

type findOptions struct {
	Limit             int  `json:"limit"`
	IncludeSimilarity bool `json:"includeSimilarity"`
}

type findResponse struct {
	Data struct {
		Documents []Document `json:"documents"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// Find runs a similarity search over the collection. filter narrows candidate
// documents; sortVector orders by cosine similarity; limit caps the result.
// An empty result is not an error.
func (c *Client) Find(ctx context.Context, filter map[string]any, sortVector []float32, limit int) ([]Document, error) {
	if c.cfg.Dimension > 0 && sortVector != nil && len(sortVector) != c.cfg.Dimension {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(sortVector), c.cfg.Dimension)
	}
	if limit <= 0 {
		limit = 10
	}

	cmd := findCommand{Find: findBody{
		Filter:  filter,
		Options: findOptions{Limit: limit, IncludeSimilarity: sortVector != nil},
	}}
	if sortVector != nil {
		cmd.Find.Sort = &findSort{Vector: sortVector}
	}
	return c.find(ctx, cmd)
}

// BatchFindByIDs fetches documents by id in one round trip using an $in
// filter. Missing ids are simply absent from the result. A sortVector may be
// supplied so the response carries $similarity for reranking.
func (c *Client) BatchFindByIDs(ctx context.Context, ids []string, sortVector []float32) ([]Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	if c.cfg.Dimension > 0 && sortVector != nil && len(sortVector) != c.cfg.Dimension {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(sortVector), c.cfg.Dimension)
	}

	cmd := findCommand{Find: findBody{
		Filter:  map[string]any{"_id": map[string]any{"$in": ids}},
		Options: findOptions{Limit: len(ids), IncludeSimilarity: sortVector != nil},
	}}
	if sortVector != nil {
		cmd.Find.Sort = &findSort{Vector: sortVector}
	}
	return c.find(ctx, cmd)
}

func (c *Client) find(ctx context.Context, cmd findCommand) ([]Document, error) {
	data, err := json.Marshal(cmd)
	if err != nil {
		return nil, err
	}

	url := c.cfg.BaseURL + "/" + c.cfg.Collection

	var docs []Document
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(data))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		if c.cfg.Token != "" {
			req.Header.Set("Token", c.cfg.Token)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("vector find request failed: %w", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("reading vector response: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			return &resilience.HTTPError{StatusCode: resp.StatusCode, Body: string(body)}
		}

		var fr findResponse
		if err := json.Unmarshal(body, &fr); err != nil {
			return fmt.Errorf("decoding vector response: %w", err)
		}
		if len(fr.Errors) > 0 {
			return fmt.Errorf("vector api error: %s", fr.Errors[0].Message)
		}
		docs = fr.Data.Documents
		return nil
	}

	if err := resilience.Retry(ctx, c.retry, "vector find", op); err != nil {
		return nil, err
	}
	return docs, nil
}
