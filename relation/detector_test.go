package relation

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestDetectCurvesForWell(t *testing.T) {
	d := Detect("What curves are available for well 15_9-13?")

	if d.Kind != KindCurvesForWell {
		t.Fatalf("kind = %q, want %q", d.Kind, KindCurvesForWell)
	}
	if !d.ApplyTraversal {
		t.Error("expected traversal hint")
	}
	if d.WellRef != "15_9-13" {
		t.Errorf("well ref = %q, want 15_9-13", d.WellRef)
	}
	// pattern 0.6 + keyword ("available for") 0.2 + well entity 0.1 + synergy 0.1 = 1.0
	if !almostEqual(d.Confidence, 1.0) {
		t.Errorf("confidence = %v, want 1.0", d.Confidence)
	}
	if Bucket(d.Confidence) != "high" {
		t.Errorf("bucket = %q, want high", Bucket(d.Confidence))
	}
}

func TestDetectWellForCurve(t *testing.T) {
	d := Detect("Which well has the GR curve recorded?")
	if d.Kind != KindWellForCurve {
		t.Fatalf("kind = %q, want %q", d.Kind, KindWellForCurve)
	}
	if d.CurveRef != "GR" {
		t.Errorf("curve ref = %q, want GR", d.CurveRef)
	}
	if !d.ApplyTraversal {
		t.Error("expected traversal hint")
	}
}

func TestDetectNoPattern(t *testing.T) {
	d := Detect("Tell me about porosity in sandstone reservoirs")
	if d.Kind != KindNone {
		t.Errorf("kind = %q, want none", d.Kind)
	}
	if d.ApplyTraversal {
		t.Error("no structural pattern should mean no traversal")
	}
	if Bucket(d.Confidence) != "low" {
		t.Errorf("bucket = %q, want low", Bucket(d.Confidence))
	}
}

func TestDetectConfidenceAdditive(t *testing.T) {
	// Pattern only, no keywords or entities.
	d := Detect("Which well contains something")
	if !almostEqual(d.Confidence, 0.6) {
		t.Errorf("pattern-only confidence = %v, want 0.6", d.Confidence)
	}
}

func TestDetectConfidenceCapped(t *testing.T) {
	d := Detect("List curves available for well 15_9-13 related to the GR curve")
	if d.Confidence > 1.0 {
		t.Errorf("confidence %v exceeds cap", d.Confidence)
	}
}

func TestDetectEvidenceRecorded(t *testing.T) {
	d := Detect("What curves are available for well 15_9-13?")
	if len(d.Evidence) == 0 {
		t.Fatal("expected evidence entries")
	}
}

func TestBucketThresholds(t *testing.T) {
	tests := []struct {
		confidence float64
		want       string
	}{
		{1.0, "high"},
		{0.85, "high"},
		{0.8499, "medium"},
		{0.60, "medium"},
		{0.5999, "low"},
		{0, "low"},
	}
	for _, tt := range tests {
		if got := Bucket(tt.confidence); got != tt.want {
			t.Errorf("Bucket(%v) = %q, want %q", tt.confidence, got, tt.want)
		}
	}
}

func TestDetectDeterministic(t *testing.T) {
	q := "What curves are available for well 15_9-13?"
	first := Detect(q)
	for i := 0; i < 10; i++ {
		if got := Detect(q); got.Confidence != first.Confidence || got.Kind != first.Kind {
			t.Fatal("detection must be deterministic")
		}
	}
}

func TestCurveStopWordsFiltered(t *testing.T) {
	d := Detect("LIST ALL THE curves FOR well 15_9-13")
	if d.CurveRef != "" {
		t.Errorf("stop words misread as mnemonic: %q", d.CurveRef)
	}
}
