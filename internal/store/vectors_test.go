package store

import (
	"math"
	"testing"
)

func TestEncodeDecodeEmbedding(t *testing.T) {
	vec := []float64{0.1, -0.5, 3.14159, 0, math.MaxFloat64}
	decoded := decodeEmbedding(encodeEmbedding(vec))

	if len(decoded) != len(vec) {
		t.Fatalf("len = %d, want %d", len(decoded), len(vec))
	}
	for i := range vec {
		if decoded[i] != vec[i] {
			t.Errorf("decoded[%d] = %v, want %v", i, decoded[i], vec[i])
		}
	}
}

func TestSaveAndGetVector(t *testing.T) {
	db := testDB(t)

	meta := map[string]string{"app_name": "vscode", "activity_id": "act-1"}
	if err := db.SaveVector("act-1", "Application: vscode", meta, []float64{0.1, 0.2, 0.3}, "tfidf"); err != nil {
		t.Fatalf("SaveVector: %v", err)
	}

	v, err := db.GetVector("act-1")
	if err != nil {
		t.Fatalf("GetVector: %v", err)
	}
	if v == nil {
		t.Fatal("GetVector returned nil")
	}
	if v.Text != "Application: vscode" || v.Model != "tfidf" || v.Dimensions != 3 {
		t.Errorf("unexpected record: %+v", v)
	}
	if v.Metadata["app_name"] != "vscode" {
		t.Errorf("metadata = %v", v.Metadata)
	}
}

func TestSaveVectorReplaces(t *testing.T) {
	db := testDB(t)

	if err := db.SaveVector("doc", "first", nil, []float64{1}, "tfidf"); err != nil {
		t.Fatalf("SaveVector: %v", err)
	}
	if err := db.SaveVector("doc", "second", nil, []float64{1, 2}, "ollama:nomic"); err != nil {
		t.Fatalf("SaveVector replace: %v", err)
	}

	count, err := db.CountVectors()
	if err != nil {
		t.Fatalf("CountVectors: %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}

	v, err := db.GetVector("doc")
	if err != nil {
		t.Fatalf("GetVector: %v", err)
	}
	if v.Text != "second" || v.Dimensions != 2 {
		t.Errorf("replace did not take: %+v", v)
	}
}

func TestGetVectorMissing(t *testing.T) {
	db := testDB(t)

	v, err := db.GetVector("nope")
	if err != nil {
		t.Fatalf("GetVector: %v", err)
	}
	if v != nil {
		t.Errorf("expected nil for missing vector, got %+v", v)
	}
}

func TestAllVectorsAndDelete(t *testing.T) {
	db := testDB(t)

	for _, id := range []string{"a", "b", "c"} {
		if err := db.SaveVector(id, "text "+id, nil, []float64{1, 2}, "tfidf"); err != nil {
			t.Fatalf("SaveVector %s: %v", id, err)
		}
	}

	all, err := db.AllVectors()
	if err != nil {
		t.Fatalf("AllVectors: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("len = %d, want 3", len(all))
	}

	if err := db.DeleteVector("b"); err != nil {
		t.Fatalf("DeleteVector: %v", err)
	}
	count, _ := db.CountVectors()
	if count != 2 {
		t.Errorf("count after delete = %d, want 2", count)
	}
}
