package wellgraph

import "time"

// QueryOption configures a single Answer call.
type QueryOption func(*queryOptions)

type queryOptions struct {
	retrievalLimit        int
	filters               map[string][]string
	forceDirectGeneration bool
	deadline              time.Time
}

// WithRetrievalLimit overrides the confidence-derived top-k for this query.
func WithRetrievalLimit(n int) QueryOption {
	return func(o *queryOptions) { o.retrievalLimit = n }
}

// WithFilters restricts retrieval to nodes whose attributes match. Each
// attribute maps to the set of accepted values.
func WithFilters(filters map[string][]string) QueryOption {
	return func(o *queryOptions) { o.filters = filters }
}

// WithForceDirectGeneration skips the shortcut paths and routes straight to
// retrieval plus generation.
func WithForceDirectGeneration() QueryOption {
	return func(o *queryOptions) { o.forceDirectGeneration = true }
}

// WithDeadline bounds the whole query. In-flight calls are cancelled when it
// passes and the answer reports a timeout.
func WithDeadline(t time.Time) QueryOption {
	return func(o *queryOptions) { o.deadline = t }
}
