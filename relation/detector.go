// Package relation scores how strongly a query asks about a typed
// relationship in the well-log graph, and emits traversal hints for the
// router. Scoring is additive over structural patterns, relationship
// keywords, and recognized entity references, capped at 1.0.
package relation

import (
	"fmt"
	"regexp"
	"strings"
)

// Kind names the relation a query targets.
type Kind string

const (
	KindNone          Kind = ""
	KindCurvesForWell Kind = "curves_for_well"
	KindWellForCurve  Kind = "well_for_curve"
	KindWellsAtSite   Kind = "wells_at_site"
	KindSummary       Kind = "relationship_summary"
)

// Confidence buckets. The thresholds modulate retrieval breadth, expansion
// depth, and filter strictness downstream.
const (
	HighThreshold   = 0.85
	MediumThreshold = 0.60
)

// Bucket labels a confidence score.
func Bucket(confidence float64) string {
	switch {
	case confidence >= HighThreshold:
		return "high"
	case confidence >= MediumThreshold:
		return "medium"
	default:
		return "low"
	}
}

// Scoring weights.
const (
	patternWeight = 0.6
	keywordWeight = 0.2
	entityWeight  = 0.1 // per recognized entity kind, up to two
	synergyBonus  = 0.1 // pattern and keywords co-occur
)

// Detection is the detector's output for one query.
type Detection struct {
	Confidence     float64
	Evidence       []string
	ApplyTraversal bool
	Kind           Kind

	// WellRef and CurveRef are raw entity references found in the query
	// (e.g. "15_9-13", "GR"); resolution to node ids is the caller's job.
	WellRef  string
	CurveRef string
	SiteRef  string
}

type structuralPattern struct {
	kind Kind
	re   *regexp.Regexp
	name string
}

var structuralPatterns = []structuralPattern{
	{KindCurvesForWell, regexp.MustCompile(`(?i)\b(what|which|list|show)\b.*\b(curves?|logs?|mnemonics?)\b.*\b(for|of|in|available)\b`), "curves-for-well question"},
	{KindCurvesForWell, regexp.MustCompile(`(?i)\bcurves?\b.*\b(available|recorded|present)\b`), "curve availability question"},
	{KindWellForCurve, regexp.MustCompile(`(?i)\b(what|which)\b.*\bwell\b.*\b(has|contains|recorded|measures?)\b`), "well-for-curve question"},
	{KindWellForCurve, regexp.MustCompile(`(?i)\bwell\b.*\bfor\b.*\bcurve\b`), "well-for-curve question"},
	{KindWellsAtSite, regexp.MustCompile(`(?i)\bwells?\b.*\b(at|near|on)\b.*\b(site|field|block|location)\b`), "wells-at-site question"},
	{KindSummary, regexp.MustCompile(`(?i)\b(relationships?|connections?|edges)\b.*\b(for|of|does)\b`), "relationship summary question"},
}

var relationshipKeywords = []string{
	"related", "associated", "connected", "available for", "belongs to",
	"measured", "recorded", "reports on", "describes", "linked",
}

// wellRefPattern matches well identifiers such as 15_9-13, 15/9-13, 34_10-A-12.
var wellRefPattern = regexp.MustCompile(`\b(\d{1,2}[_/]\d{1,2}-[A-Za-z0-9][\w.-]*)\b`)

// curveRefPattern matches log-curve mnemonics: short all-caps tokens.
var curveRefPattern = regexp.MustCompile(`\b([A-Z][A-Z0-9]{1,4})\b`)

// curveStopWords are all-caps tokens that are not mnemonics.
var curveStopWords = map[string]bool{
	"LIST": true, "SHOW": true, "WHAT": true, "THE": true, "FOR": true,
	"AND": true, "ALL": true, "HOW": true, "OF": true, "IN": true, "IS": true,
}

// sitePattern matches site/field references ("at the Sleipner field").
var sitePattern = regexp.MustCompile(`(?i)\b(?:site|field|block)\s+([\w-]+)|\b([\w-]+)\s+(?:field|block)\b`)

// Detect scores query and emits traversal hints. The score is the sum of
// +0.6 structural pattern, +0.2 relationship keyword, +0.1 per recognized
// entity kind (max two), +0.1 synergy when pattern and keyword co-occur,
// capped at 1.0.
func Detect(query string) Detection {
	d := Detection{}
	lower := strings.ToLower(query)

	for _, p := range structuralPatterns {
		if p.re.MatchString(query) {
			d.Kind = p.kind
			d.Confidence += patternWeight
			d.Evidence = append(d.Evidence, "pattern: "+p.name)
			break
		}
	}

	keywordHit := false
	for _, kw := range relationshipKeywords {
		if strings.Contains(lower, kw) {
			keywordHit = true
			d.Confidence += keywordWeight
			d.Evidence = append(d.Evidence, "keyword: "+kw)
			break
		}
	}

	entityKinds := 0
	if m := wellRefPattern.FindStringSubmatch(query); m != nil {
		d.WellRef = m[1]
		entityKinds++
		d.Evidence = append(d.Evidence, "entity: well "+m[1])
	}
	if ref := findCurveRef(query); ref != "" {
		d.CurveRef = ref
		entityKinds++
		d.Evidence = append(d.Evidence, "entity: curve "+ref)
	}
	if d.WellRef == "" || d.CurveRef == "" {
		if ref := findSiteRef(query); ref != "" {
			d.SiteRef = ref
			if entityKinds < 2 {
				entityKinds++
				d.Evidence = append(d.Evidence, "entity: site "+ref)
			}
		}
	}
	if entityKinds > 2 {
		entityKinds = 2
	}
	d.Confidence += float64(entityKinds) * entityWeight

	if d.Kind != KindNone && keywordHit {
		d.Confidence += synergyBonus
		d.Evidence = append(d.Evidence, "synergy: pattern+keyword")
	}

	if d.Confidence > 1.0 {
		d.Confidence = 1.0
	}

	// Traversal applies when a structural pattern matched and the query
	// names at least one concrete entity to seed from.
	d.ApplyTraversal = d.Kind != KindNone &&
		(d.WellRef != "" || d.CurveRef != "" || d.SiteRef != "")

	if d.ApplyTraversal {
		d.Evidence = append(d.Evidence, fmt.Sprintf("traversal: %s", d.Kind))
	}
	return d
}

func findCurveRef(query string) string {
	for _, m := range curveRefPattern.FindAllString(query, -1) {
		if !curveStopWords[m] && !wellRefPattern.MatchString(m) {
			return m
		}
	}
	return ""
}

func findSiteRef(query string) string {
	m := sitePattern.FindStringSubmatch(query)
	if m == nil {
		return ""
	}
	if m[1] != "" {
		return m[1]
	}
	return m[2]
}
