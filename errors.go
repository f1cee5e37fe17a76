package wellgraph

import "errors"

var (
	// ErrInvalidInput is returned when a query violates the input contract
	// (empty, too long, malformed options). Caller-facing, non-retryable.
	ErrInvalidInput = errors.New("wellgraph: invalid input")

	// ErrNotFound is returned when a node, term, or attribute does not exist.
	// The pipeline converts it to a structured "no information" answer.
	ErrNotFound = errors.New("wellgraph: not found")

	// ErrUpstream is returned when a dependency fails in a non-retryable way,
	// or after the retry budget for a transient failure is exhausted.
	ErrUpstream = errors.New("wellgraph: upstream failure")

	// ErrConfig is returned for startup-time contract violations such as an
	// embedding dimension mismatch. Fails fast at boot, never in the hot path.
	ErrConfig = errors.New("wellgraph: invalid configuration")

	// ErrTimeout is returned when a query deadline expires before the
	// pipeline produces an answer.
	ErrTimeout = errors.New("wellgraph: query deadline exceeded")

	// ErrNoResults is returned internally when retrieval yields no nodes.
	ErrNoResults = errors.New("wellgraph: no results found")
)
