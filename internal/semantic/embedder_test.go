package semantic

import (
	"context"
	"math"
	"testing"

	"github.com/contextd/contextd/internal/store"
)

func testDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{"Application: vscode | Window: main.go", []string{"application", "vscode", "window", "main", "go"}},
		{"", nil},
		{"a b c", nil}, // single-char tokens skipped
		{"snake_case-kebab", []string{"snake_case-kebab"}},
	}

	for _, tt := range tests {
		got := tokenize(tt.input)
		if len(got) != len(tt.want) {
			t.Errorf("tokenize(%q) = %v, want %v", tt.input, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("tokenize(%q)[%d] = %q, want %q", tt.input, i, got[i], tt.want[i])
			}
		}
	}
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float64
		want float64
	}{
		{"identical", []float64{1, 0}, []float64{1, 0}, 1.0},
		{"orthogonal", []float64{1, 0}, []float64{0, 1}, 0.0},
		{"opposite", []float64{1, 0}, []float64{-1, 0}, -1.0},
		{"mismatched lengths", []float64{1, 0}, []float64{1}, 0.0},
		{"zero vector", []float64{0, 0}, []float64{1, 1}, 0.0},
	}

	for _, tt := range tests {
		got := CosineSimilarity(tt.a, tt.b)
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("%s: CosineSimilarity = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestTFIDFEmbedder(t *testing.T) {
	db := testDB(t)

	// Seed indexed texts so the embedder has a vocabulary to build from.
	texts := []string{
		"Application: vscode | Window: main.go project",
		"Application: firefox | Window: golang docs",
		"Application: vscode | Window: graph.go project",
	}
	for i, text := range texts {
		if err := db.SaveVector(docID(i), text, nil, []float64{1}, "seed"); err != nil {
			t.Fatalf("SaveVector: %v", err)
		}
	}

	emb, err := NewTFIDFEmbedder(db, 64)
	if err != nil {
		t.Fatalf("NewTFIDFEmbedder: %v", err)
	}
	if emb.Dimensions() == 0 {
		t.Fatal("zero dimensions")
	}

	ctx := context.Background()
	v1, err := emb.Embed(ctx, "vscode project editing")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	v2, err := emb.Embed(ctx, "vscode project work")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	v3, err := emb.Embed(ctx, "firefox docs reading")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}

	simNear := CosineSimilarity(v1, v2)
	simFar := CosineSimilarity(v1, v3)
	if simNear <= simFar {
		t.Errorf("expected related texts to score higher: near=%v far=%v", simNear, simFar)
	}
}

func TestTFIDFEmbedderEmptyStore(t *testing.T) {
	db := testDB(t)

	emb, err := NewTFIDFEmbedder(db, 64)
	if err != nil {
		t.Fatalf("NewTFIDFEmbedder: %v", err)
	}
	if emb.Dimensions() != 1 {
		t.Errorf("Dimensions = %d, want 1 for empty store", emb.Dimensions())
	}

	vec, err := emb.Embed(context.Background(), "anything")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) != 1 {
		t.Errorf("len = %d, want 1", len(vec))
	}
}

func docID(i int) string {
	return "doc-" + string(rune('a'+i))
}
