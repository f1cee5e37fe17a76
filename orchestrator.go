package wellgraph

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/mkleiva/wellgraph/classify"
	"github.com/mkleiva/wellgraph/graph"
	"github.com/mkleiva/wellgraph/llm"
	"github.com/mkleiva/wellgraph/relation"
	"github.com/mkleiva/wellgraph/retrieval"
)

// maxQueryLen bounds accepted query length in characters, not bytes.
const maxQueryLen = 500

// bucketOf labels a routing confidence score.
func bucketOf(confidence float64) string {
	return relation.Bucket(confidence)
}

// Answer runs a question through the routing pipeline: validation, scope
// check, the deterministic shortcut paths, and finally retrieval plus
// grounded generation. Only input validation surfaces as an error; every
// downstream failure degrades into an answer with the failure recorded in
// the metadata.
func (e *engine) Answer(ctx context.Context, query string, opts ...QueryOption) (*Result, error) {
	started := time.Now()
	var o queryOptions
	for _, opt := range opts {
		opt(&o)
	}

	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: empty query", ErrInvalidInput)
	}
	if utf8.RuneCountInString(query) > maxQueryLen {
		return nil, fmt.Errorf("%w: query exceeds %d characters", ErrInvalidInput, maxQueryLen)
	}

	if !o.deadline.IsZero() {
		var cancel context.CancelFunc
		ctx, cancel = context.WithDeadline(ctx, o.deadline)
		defer cancel()
	}

	md := newMetadata()
	if e.redis != nil && e.cache != nil && !e.cache.PrimaryAvailable() {
		md.fail("primary_unavailable")
	}

	res := e.route(ctx, query, &o, md)

	// The audit write must survive an expired query deadline.
	e.logQuery(context.WithoutCancel(ctx), query, res, started)
	return res, nil
}

// route walks the routing rules in order; the first rule that produces an
// answer wins. Shortcut failures fall through to retrieval with the failed
// path recorded.
func (e *engine) route(ctx context.Context, query string, o *queryOptions, md *Metadata) *Result {
	scope := classify.CheckScope(query)
	md.ScopeCheck = ScopeCheck{InScope: scope.InScope, Reason: scope.Reason}
	if !scope.InScope {
		md.RoutingDecision = "refusal"
		md.log("scope check: out of domain (" + scope.Reason + ")")
		return &Result{Response: RefusalAnswer, Metadata: md}
	}
	md.log("scope check: in domain")

	det := relation.Detect(query)
	md.Confidence = det.Confidence
	md.ConfidenceEvidence = append(md.ConfidenceEvidence, det.Evidence...)
	md.log(fmt.Sprintf("confidence %.2f (%s)", det.Confidence, bucketOf(det.Confidence)))

	if o.forceDirectGeneration {
		md.log("force_direct_generation: skipping shortcut paths")
		return e.retrieveAndGenerate(ctx, query, det, o, md)
	}

	if agg := classify.ParseAggregation(query); agg != nil {
		if res, ok := e.aggregate(agg, md); ok {
			return res
		}
		md.FallbackFrom = "aggregation"
		md.log("aggregation shortcut failed, falling through")
	}

	if ex := classify.ParseExtraction(query); ex != nil {
		if res, ok := e.extractAttribute(ex, md); ok {
			return res
		}
		md.FallbackFrom = "extraction"
		md.log("extraction shortcut failed, falling through")
	}

	if det.ApplyTraversal && det.Confidence >= relation.MediumThreshold {
		if res, ok := e.answerRelation(det, md); ok {
			return res
		}
		md.FallbackFrom = "relationship"
		md.log("relationship path failed, falling through")
	}

	if isGlossaryQuery(query, e.cfg.GlossaryExclusions) {
		if res, ok := e.defineTerm(ctx, query, md); ok {
			return res
		}
		md.FallbackFrom = "glossary"
		md.log("glossary agent failed, falling through")
	}

	return e.retrieveAndGenerate(ctx, query, det, o, md)
}

// aggregate answers COUNT/LIST/DISTINCT queries straight from the graph
// indexes. No model call is involved; the structured value rides along in
// Result.Structured.
func (e *engine) aggregate(agg *classify.Aggregation, md *Metadata) (*Result, bool) {
	nodes := e.nodesOfEntity(agg.EntityType)

	switch agg.Kind {
	case classify.AggCount:
		n := len(nodes)
		md.RoutingDecision = "aggregation"
		md.AggregationResult = &AggregationResult{Type: string(classify.AggCount), Count: n}
		md.NumResults = n
		md.log(fmt.Sprintf("aggregation: COUNT %s = %d", agg.EntityType, n))
		return &Result{Response: strconv.Itoa(n), Structured: n, Metadata: md}, true

	case classify.AggList:
		values := make([]string, 0, len(nodes))
		for _, n := range nodes {
			values = append(values, displayName(n))
		}
		if len(values) == 0 {
			md.fail("aggregation: no " + agg.EntityType + " nodes")
			return nil, false
		}
		md.RoutingDecision = "aggregation"
		md.AggregationResult = &AggregationResult{Type: string(classify.AggList), Count: len(values), Values: values}
		md.NumResults = len(values)
		md.log(fmt.Sprintf("aggregation: LIST %s (%d values)", agg.EntityType, len(values)))
		return &Result{Response: strings.Join(values, ", "), Structured: values, Metadata: md}, true

	case classify.AggDistinct:
		attr := strings.TrimSuffix(agg.Attribute, "_values")
		seen := make(map[string]bool)
		var values []string
		for _, n := range nodes {
			if v := n.Attr(attr); v != "" && !seen[v] {
				seen[v] = true
				values = append(values, v)
			}
		}
		sort.Strings(values)
		if len(values) == 0 {
			md.fail(fmt.Sprintf("aggregation: no %q values on %s nodes", attr, agg.EntityType))
			return nil, false
		}
		md.RoutingDecision = "aggregation"
		md.AggregationResult = &AggregationResult{Type: string(classify.AggDistinct), Count: len(values), Values: values}
		md.NumResults = len(values)
		md.log(fmt.Sprintf("aggregation: DISTINCT %s.%s (%d values)", agg.EntityType, attr, len(values)))
		return &Result{Response: strings.Join(values, ", "), Structured: values, Metadata: md}, true
	}
	return nil, false
}

// nodesOfEntity returns the nodes of one entity type, id ascending. Wells
// need a scan: they are stored both as well nodes and as tagged documents.
func (e *engine) nodesOfEntity(entityType string) []graph.Node {
	if entityType == graph.TypeWell {
		var out []graph.Node
		for _, n := range e.traverser.Snapshot().Nodes {
			if graph.IsWell(n) {
				out = append(out, n)
			}
		}
		sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
		return out
	}

	ids := e.traverser.NodesByType(entityType)
	out := make([]graph.Node, 0, len(ids))
	for _, id := range ids {
		if n, ok := e.traverser.GetNode(id); ok {
			out = append(out, n)
		}
	}
	return out
}

// extractAttribute answers single-attribute lookups with the literal stored
// value.
func (e *engine) extractAttribute(ex *classify.Extraction, md *Metadata) (*Result, bool) {
	node, ok := e.resolveEntity(ex.EntityRef)
	if !ok {
		md.fail("extraction: unknown entity " + ex.EntityRef)
		return nil, false
	}

	value := node.Attr(ex.Attribute)
	if value == "" && ex.Attribute == "well_name" {
		value = displayName(node)
	}
	if value == "" {
		md.fail(fmt.Sprintf("extraction: node %s has no %q attribute", node.ID, ex.Attribute))
		return nil, false
	}

	md.RoutingDecision = "extraction"
	md.StructuredExtraction = true
	md.NumResults = 1
	md.RetrievedNodeIDs = append(md.RetrievedNodeIDs, node.ID)
	md.RetrievedEntityTypes = append(md.RetrievedEntityTypes, node.Type)
	md.log(fmt.Sprintf("extraction: %s.%s", node.ID, ex.Attribute))
	return &Result{Response: value, Metadata: md}, true
}

// resolveEntity maps a raw query reference ("15_9-13", "GR", "Sleipner") to
// a snapshot node. It tries the reference as a literal id, then with the
// conventional type prefixes, then falls back to an attribute scan.
func (e *engine) resolveEntity(ref string) (graph.Node, bool) {
	if ref == "" {
		return graph.Node{}, false
	}

	normalized := strings.ReplaceAll(ref, "/", "_")
	for _, id := range []string{ref, normalized, "well-" + normalized, "curve-" + normalized, "site-" + normalized} {
		if n, ok := e.traverser.GetNode(id); ok {
			return n, true
		}
	}

	for _, n := range e.traverser.Snapshot().Nodes {
		if n.Attr("well_name") == ref || n.Attr("name") == ref {
			return n, true
		}
		if m := n.Attr("mnemonic"); m != "" && strings.EqualFold(m, ref) {
			return n, true
		}
	}
	return graph.Node{}, false
}

// answerRelation resolves a detected relationship question against the
// traverser. Failure to resolve the named entity, or an empty traversal,
// falls through to retrieval.
func (e *engine) answerRelation(det relation.Detection, md *Metadata) (*Result, bool) {
	switch det.Kind {
	case relation.KindCurvesForWell:
		well, ok := e.resolveEntity(det.WellRef)
		if !ok {
			md.fail("relationship: unknown well " + det.WellRef)
			return nil, false
		}
		curves := e.traverser.CurvesForWell(well.ID)
		if len(curves) == 0 {
			md.fail("relationship: no curves for " + well.ID)
			return nil, false
		}
		mnemonics := make([]string, 0, len(curves))
		for _, c := range curves {
			m := c.Attr("mnemonic")
			if m == "" {
				m = c.ID
			}
			mnemonics = append(mnemonics, m)
			md.RetrievedNodeIDs = append(md.RetrievedNodeIDs, c.ID)
		}
		e.markRelation(md, len(curves), []string{graph.TypeCurve})
		md.log(fmt.Sprintf("relationship: %d curves for %s", len(curves), well.ID))
		resp := fmt.Sprintf("Curves available for %s: %s", displayName(well), strings.Join(mnemonics, ", "))
		return &Result{Response: resp, Structured: mnemonics, Metadata: md}, true

	case relation.KindWellForCurve:
		curve, ok := e.resolveEntity(det.CurveRef)
		if !ok {
			md.fail("relationship: unknown curve " + det.CurveRef)
			return nil, false
		}
		well, ok := e.traverser.WellForCurve(curve.ID)
		if !ok {
			md.fail("relationship: no well for " + curve.ID)
			return nil, false
		}
		md.RetrievedNodeIDs = append(md.RetrievedNodeIDs, well.ID)
		e.markRelation(md, 1, []string{well.Type})
		md.log(fmt.Sprintf("relationship: well for %s is %s", curve.ID, well.ID))
		resp := fmt.Sprintf("Curve %s is recorded in well %s.", displayName(curve), displayName(well))
		return &Result{Response: resp, Structured: well.ID, Metadata: md}, true

	case relation.KindWellsAtSite:
		site, ok := e.resolveEntity(det.SiteRef)
		if !ok {
			md.fail("relationship: unknown site " + det.SiteRef)
			return nil, false
		}
		wells := e.traverser.Neighbors(site.ID, graph.Incoming, graph.RelLocatedAt, graph.IsWell)
		if len(wells) == 0 {
			md.fail("relationship: no wells at " + site.ID)
			return nil, false
		}
		names := make([]string, 0, len(wells))
		for _, w := range wells {
			names = append(names, displayName(w))
			md.RetrievedNodeIDs = append(md.RetrievedNodeIDs, w.ID)
		}
		e.markRelation(md, len(wells), entityTypes(wells))
		md.log(fmt.Sprintf("relationship: %d wells at %s", len(wells), site.ID))
		resp := fmt.Sprintf("Wells at %s: %s", displayName(site), strings.Join(names, ", "))
		return &Result{Response: resp, Structured: names, Metadata: md}, true

	case relation.KindSummary:
		ref := det.WellRef
		if ref == "" {
			ref = det.CurveRef
		}
		if ref == "" {
			ref = det.SiteRef
		}
		node, ok := e.resolveEntity(ref)
		if !ok {
			md.fail("relationship: unknown entity " + ref)
			return nil, false
		}
		summary := e.traverser.Summary(node.ID)
		md.RetrievedNodeIDs = append(md.RetrievedNodeIDs, node.ID)
		e.markRelation(md, 1, []string{node.Type})
		md.log("relationship: summary for " + node.ID)
		resp := fmt.Sprintf("Relationships for %s: %s", displayName(node), formatSummary(summary))
		return &Result{Response: resp, Structured: summary, Metadata: md}, true
	}
	return nil, false
}

// markRelation stamps the shared relationship-path metadata.
func (e *engine) markRelation(md *Metadata, n int, types []string) {
	md.RoutingDecision = "relationship"
	md.GraphTraversalApplied = true
	md.NumResults = n
	md.NumResultsAfterTraversal = n
	md.ExpansionRatio = 1
	md.RetrievedEntityTypes = append(md.RetrievedEntityTypes, types...)
}

// formatSummary renders per-relation edge counts with deterministic key
// order.
func formatSummary(s graph.RelationshipSummary) string {
	var parts []string
	for _, rel := range sortedKeys(s.Outgoing) {
		parts = append(parts, fmt.Sprintf("%s -> %d", rel, s.Outgoing[rel]))
	}
	for _, rel := range sortedKeys(s.Incoming) {
		parts = append(parts, fmt.Sprintf("%s <- %d", rel, s.Incoming[rel]))
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ", ")
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Glossary trigger and exclusion sets. Triggers are definition-shaped
// openings; exclusions keep data queries that merely contain a trigger verb
// away from the agent. The exclusion list is extensible via configuration.
var glossaryTriggers = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^\s*define\b`),
	regexp.MustCompile(`(?i)^\s*what(?:'s| is| are| does)\b`),
	regexp.MustCompile(`(?i)^\s*explain\b`),
	regexp.MustCompile(`(?i)\bmeaning of\b`),
}

var glossaryExclusions = []string{
	"how many", "number of", "count of", "list", "distinct",
	"well name for", "for well", "of well", "for curve", "of curve",
	"available", "dataset", "at the", "located",
}

// isGlossaryQuery reports whether a query should go to the tool-calling
// agent.
func isGlossaryQuery(query string, extraExclusions []string) bool {
	triggered := false
	for _, re := range glossaryTriggers {
		if re.MatchString(query) {
			triggered = true
			break
		}
	}
	if !triggered {
		return false
	}

	lower := strings.ToLower(query)
	for _, ex := range glossaryExclusions {
		if strings.Contains(lower, ex) {
			return false
		}
	}
	for _, ex := range extraExclusions {
		if ex != "" && strings.Contains(lower, strings.ToLower(ex)) {
			return false
		}
	}
	return true
}

// defineTerm dispatches to the tool-calling agent. An empty outcome falls
// through to retrieval with the failure recorded.
func (e *engine) defineTerm(ctx context.Context, query string, md *Metadata) (*Result, bool) {
	out := e.agent.Run(ctx, query)

	md.ToolInvoked = out.ToolInvoked
	md.ToolLoopTruncated = out.Truncated
	for _, tc := range out.ToolCalls {
		md.log(fmt.Sprintf("tool call: %s(%s)", tc.Name, tc.Input))
	}
	if out.Failure != "" {
		md.ToolFailure = out.Failure
		md.fail("glossary agent: " + out.Failure)
	}
	if out.Answer == "" {
		return nil, false
	}

	md.RoutingDecision = "glossary"
	md.log(fmt.Sprintf("glossary: answered in %d iterations", out.Iterations))
	return &Result{Response: out.Answer, Metadata: md}, true
}

// generationSystemPrompt pins the model to the retrieved context and the
// canonical insufficient-information answer.
const generationSystemPrompt = `You answer questions about subsurface well logs using ONLY the context provided.
Cite facts from the context; never invent wells, curves, or measurements.
If the context does not contain the answer, reply exactly:
` + InsufficientAnswer

// retrieveAndGenerate is the terminal path: vector retrieval tuned by
// routing confidence, then grounded generation. Every failure degrades to a
// canonical answer rather than an error.
func (e *engine) retrieveAndGenerate(ctx context.Context, query string, det relation.Detection, o *queryOptions, md *Metadata) *Result {
	md.RoutingDecision = "retrieval"
	bucket := bucketOf(det.Confidence)

	topK := 10
	switch bucket {
	case "high":
		topK = 30
	case "medium":
		topK = 15
	}
	if o.retrievalLimit > 0 {
		topK = o.retrievalLimit
	}

	wVec, wLex := 0.7, 0.3
	filterAll := true
	if bucket == "high" {
		wVec, wLex = 0.6, 0.4
		filterAll = false
	}

	hops := 0
	switch bucket {
	case "high":
		hops = 2
	case "medium":
		hops = 1
	}

	queryVector, err := e.embedder.EmbedOne(ctx, query)
	if err != nil {
		md.fail("embedding: " + err.Error())
		return e.degraded(ctx, md)
	}

	// Direct id fetches only back a high-confidence routing signal; at lower
	// confidence the entity reference itself is suspect.
	var required []string
	if bucket == "high" {
		for _, ref := range []string{det.WellRef, det.CurveRef, det.SiteRef} {
			if ref == "" {
				continue
			}
			if n, ok := e.resolveEntity(ref); ok {
				required = append(required, n.ID)
			}
		}
	}

	params := retrieval.Params{
		TopK:          topK,
		VectorWeight:  wVec,
		LexicalWeight: wLex,
		Filters:       o.filters,
		FilterAll:     filterAll,
		MaxHops:       hops,
		RequiredIDs:   required,
	}
	md.log(fmt.Sprintf("retrieval: top_k=%d weights=(%.1f, %.1f) hops=%d", topK, wVec, wLex, hops))

	res, err := e.retriever.Search(ctx, query, queryVector, params)
	if err != nil {
		md.fail("retrieval: " + err.Error())
		return e.degraded(ctx, md)
	}

	direct := 0
	for _, d := range res.Documents {
		if !d.FromExpansion {
			direct++
		}
	}
	md.NumResults = direct
	md.NumResultsAfterTraversal = len(res.Documents)
	md.ExpansionRatio = res.ExpansionRatio
	md.GraphTraversalApplied = hops > 0
	md.FilterFallback = res.FellBackToOR
	if len(o.filters) > 0 {
		md.FilterApplied = o.filters
	}

	seenType := make(map[string]bool)
	for _, d := range res.Documents {
		md.RetrievedNodeIDs = append(md.RetrievedNodeIDs, d.ID)
		if !seenType[d.EntityType] {
			seenType[d.EntityType] = true
			md.RetrievedEntityTypes = append(md.RetrievedEntityTypes, d.EntityType)
		}
	}

	if len(res.Documents) == 0 {
		md.log("retrieval empty")
		return &Result{Response: InsufficientAnswer, Metadata: md}
	}

	answer, err := e.generate(ctx, query, res.Documents)
	if err != nil {
		md.fail("generation: " + err.Error())
		return e.degraded(ctx, md)
	}
	md.log("generation complete")
	return &Result{Response: answer, Metadata: md}
}

// generate asks the chat model for an answer grounded in the retrieved
// documents.
func (e *engine) generate(ctx context.Context, query string, docs []retrieval.Document) (string, error) {
	var b strings.Builder
	for _, d := range docs {
		fmt.Fprintf(&b, "[%s] type=%s", d.ID, d.EntityType)
		for _, k := range sortedAttrKeys(d.Attributes) {
			fmt.Fprintf(&b, " %s=%v", k, d.Attributes[k])
		}
		b.WriteByte('\n')
	}

	resp, err := e.chatLLM.Chat(ctx, llm.ChatRequest{
		Model: e.cfg.Chat.Model,
		Messages: []llm.Message{
			{Role: "system", Content: generationSystemPrompt},
			{Role: "user", Content: "Context:\n" + b.String() + "\nQuestion: " + query},
		},
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Content), nil
}

func sortedAttrKeys(attrs map[string]any) []string {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// degraded converts a terminal-path failure into a canonical answer,
// distinguishing an expired deadline from an upstream failure.
func (e *engine) degraded(ctx context.Context, md *Metadata) *Result {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		md.TimedOut = true
		md.log("query deadline exceeded")
		return &Result{Response: TimeoutAnswer, Metadata: md}
	}
	return &Result{Response: InsufficientAnswer, Metadata: md}
}

// displayName resolves the human-readable name of a node.
func displayName(n graph.Node) string {
	if v := n.Attr("well_name"); v != "" {
		return v
	}
	if v := n.Attr("name"); v != "" {
		return v
	}
	return n.ID
}

func entityTypes(nodes []graph.Node) []string {
	seen := make(map[string]bool)
	var out []string
	for _, n := range nodes {
		if !seen[n.Type] {
			seen[n.Type] = true
			out = append(out, n.Type)
		}
	}
	return out
}
