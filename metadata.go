package wellgraph

// ScopeCheck records the in-domain classifier's verdict.
type ScopeCheck struct {
	InScope bool   `json:"in_scope"`
	Reason  string `json:"reason,omitempty"`
}

// AggregationResult carries a structured aggregation answer.
type AggregationResult struct {
	Type   string   `json:"type"` // COUNT, LIST, DISTINCT
	Count  int      `json:"count,omitempty"`
	Values []string `json:"values,omitempty"`
}

// Metadata is the observability record attached to every answer. The
// mandatory fields are set on every query regardless of routing path;
// optional fields appear only when their path ran.
type Metadata struct {
	RoutingDecision          string     `json:"routing_decision"`
	Confidence               float64    `json:"confidence"`
	ConfidenceEvidence       []string   `json:"confidence_evidence"`
	GraphTraversalApplied    bool       `json:"graph_traversal_applied"`
	NumResults               int        `json:"num_results"`
	NumResultsAfterTraversal int        `json:"num_results_after_traversal"`
	ExpansionRatio           float64    `json:"expansion_ratio"`
	ScopeCheck               ScopeCheck `json:"scope_check"`
	StructuredExtraction     bool       `json:"structured_extraction"`
	ToolInvoked              bool       `json:"tool_invoked"`
	RetrievedNodeIDs         []string   `json:"retrieved_node_ids"`
	RetrievedEntityTypes     []string   `json:"retrieved_entity_types"`
	DecisionLog              []string   `json:"decision_log"`
	Errors                   []string   `json:"errors"`

	AggregationResult *AggregationResult  `json:"aggregation_result,omitempty"`
	ToolLoopTruncated bool                `json:"tool_loop_truncated,omitempty"`
	ToolFailure       string              `json:"tool_failure,omitempty"`
	FilterApplied     map[string][]string `json:"filter_applied,omitempty"`
	FilterFallback    bool                `json:"filter_fallback,omitempty"`
	FallbackFrom      string              `json:"fallback_from,omitempty"`
	TimedOut          bool                `json:"timed_out,omitempty"`
}

// newMetadata returns a record with every mandatory slice non-nil so the
// JSON encoding always carries the keys.
func newMetadata() *Metadata {
	return &Metadata{
		ConfidenceEvidence:   []string{},
		RetrievedNodeIDs:     []string{},
		RetrievedEntityTypes: []string{},
		DecisionLog:          []string{},
		Errors:               []string{},
	}
}

// log appends one line to the decision log.
func (m *Metadata) log(entry string) {
	m.DecisionLog = append(m.DecisionLog, entry)
}

// fail records a caught stage error.
func (m *Metadata) fail(entry string) {
	m.Errors = append(m.Errors, entry)
}
