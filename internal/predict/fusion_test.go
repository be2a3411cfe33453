package predict

import (
	"math"
	"strings"
	"testing"
)

func TestFuseMergesIdenticalPayloads(t *testing.T) {
	candidates := []Candidate{
		{Source: SourceSemantic, Confidence: 0.4, Data: map[string]string{"app_name": "vscode"}, Reason: "Semantically similar (score: 0.40)"},
		{Source: SourceGraph, Confidence: 0.8, Data: map[string]string{"app_name": "vscode"}, Reason: "Historically follows current activity (0.80)"},
	}

	out := Fuse(candidates, 10, 0.0)
	if len(out) != 1 {
		t.Fatalf("len = %d, want 1", len(out))
	}
	if math.Abs(out[0].Confidence-0.6) > 1e-9 {
		t.Errorf("confidence = %v, want 0.6", out[0].Confidence)
	}
	if !strings.Contains(out[0].Reason, "Semantically similar") ||
		!strings.Contains(out[0].Reason, "Historically follows") {
		t.Errorf("reason lost a source: %q", out[0].Reason)
	}
}

func TestFuseRunningAverage(t *testing.T) {
	// Three-way merge: ((0.3*1 + 0.6)/2 = 0.45, (0.45*2 + 0.9)/3 = 0.6.
	data := map[string]string{"file_path": "/tmp/notes.md"}
	candidates := []Candidate{
		{Confidence: 0.3, Data: data, Reason: "a"},
		{Confidence: 0.6, Data: data, Reason: "b"},
		{Confidence: 0.9, Data: data, Reason: "c"},
	}

	out := Fuse(candidates, 10, 0.0)
	if len(out) != 1 {
		t.Fatalf("len = %d, want 1", len(out))
	}
	if math.Abs(out[0].Confidence-0.6) > 1e-9 {
		t.Errorf("confidence = %v, want 0.6", out[0].Confidence)
	}
}

func TestFuseKeyIsOrderIndependent(t *testing.T) {
	candidates := []Candidate{
		{Confidence: 0.4, Data: map[string]string{"app_name": "vscode", "window_title": "main.go"}, Reason: "a"},
		{Confidence: 0.8, Data: map[string]string{"window_title": "main.go", "app_name": "vscode"}, Reason: "b"},
	}

	out := Fuse(candidates, 10, 0.0)
	if len(out) != 1 {
		t.Fatalf("candidates with equal payload sets did not merge: %+v", out)
	}
}

func TestFuseDistinctPayloadsStaySeparate(t *testing.T) {
	candidates := []Candidate{
		{Confidence: 0.7, Data: map[string]string{"app_name": "vscode"}, Reason: "a"},
		{Confidence: 0.7, Data: map[string]string{"app_name": "firefox"}, Reason: "b"},
	}

	out := Fuse(candidates, 10, 0.0)
	if len(out) != 2 {
		t.Fatalf("len = %d, want 2", len(out))
	}
}

func TestFuseReasonNotDuplicated(t *testing.T) {
	data := map[string]string{"app_name": "vscode"}
	candidates := []Candidate{
		{Confidence: 0.5, Data: data, Reason: "Recent focus (3 recent activities)"},
		{Confidence: 0.7, Data: data, Reason: "Recent focus (3 recent activities)"},
	}

	out := Fuse(candidates, 10, 0.0)
	if len(out) != 1 {
		t.Fatalf("len = %d, want 1", len(out))
	}
	if strings.Contains(out[0].Reason, ";") {
		t.Errorf("duplicate reason appended: %q", out[0].Reason)
	}
}

func TestFuseThresholdGate(t *testing.T) {
	candidates := []Candidate{
		{Confidence: 0.9, Data: map[string]string{"a": "1"}, Reason: "x"},
		{Confidence: 0.5, Data: map[string]string{"b": "2"}, Reason: "y"},
		{Confidence: 0.7, Data: map[string]string{"c": "3"}, Reason: "z"},
	}

	out := Fuse(candidates, 10, 0.6)
	if len(out) != 2 {
		t.Fatalf("len = %d, want 2", len(out))
	}
	if out[0].Confidence != 0.9 || out[1].Confidence != 0.7 {
		t.Errorf("order = [%v, %v], want [0.9, 0.7]", out[0].Confidence, out[1].Confidence)
	}
}

func TestFuseTruncatesBeforeThreshold(t *testing.T) {
	// maxResults=2 keeps [0.9, 0.8]; the 0.7 entry is cut by truncation even
	// though it clears the threshold, so only two items come back.
	candidates := []Candidate{
		{Confidence: 0.7, Data: map[string]string{"a": "1"}, Reason: "x"},
		{Confidence: 0.9, Data: map[string]string{"b": "2"}, Reason: "y"},
		{Confidence: 0.8, Data: map[string]string{"c": "3"}, Reason: "z"},
	}

	out := Fuse(candidates, 2, 0.6)
	if len(out) != 2 {
		t.Fatalf("len = %d, want 2", len(out))
	}
	if out[0].Confidence != 0.9 || out[1].Confidence != 0.8 {
		t.Errorf("order = [%v, %v], want [0.9, 0.8]", out[0].Confidence, out[1].Confidence)
	}
}

func TestFuseTruncationCanEmptyResult(t *testing.T) {
	candidates := []Candidate{
		{Confidence: 0.5, Data: map[string]string{"a": "1"}, Reason: "x"},
		{Confidence: 0.4, Data: map[string]string{"b": "2"}, Reason: "y"},
	}

	out := Fuse(candidates, 1, 0.6)
	if len(out) != 0 {
		t.Errorf("out = %+v, want empty", out)
	}
}

func TestFuseEmptyInput(t *testing.T) {
	if out := Fuse(nil, 10, 0.6); len(out) != 0 {
		t.Errorf("out = %+v, want empty", out)
	}
}
