package graph

import (
	"math"
	"testing"
	"time"
)

// buildChain creates a1 -> a2 (0.8) -> a3 (0.5), all followed_by.
func buildChain(t *testing.T) *Graph {
	t.Helper()
	g := New("", 100, 0.95)
	now := time.Now()
	addActivity(t, g, "a1", now)
	addActivity(t, g, "a2", now.Add(time.Minute))
	addActivity(t, g, "a3", now.Add(2*time.Minute))

	if err := g.UpsertEdge("a1", "a2", RelFollowedBy, 0.8, nil); err != nil {
		t.Fatalf("UpsertEdge a1->a2: %v", err)
	}
	if err := g.UpsertEdge("a2", "a3", RelFollowedBy, 0.5, nil); err != nil {
		t.Fatalf("UpsertEdge a2->a3: %v", err)
	}
	return g
}

func TestRelatedToChain(t *testing.T) {
	g := buildChain(t)

	related, err := g.RelatedTo("a1", 2, 0.1)
	if err != nil {
		t.Fatalf("RelatedTo: %v", err)
	}
	if len(related) != 2 {
		t.Fatalf("len = %d, want 2", len(related))
	}

	if related[0].ActivityID != "a2" || related[0].Depth != 1 {
		t.Errorf("first = %+v, want a2 at depth 1", related[0])
	}
	if math.Abs(related[0].Strength-0.8) > 1e-9 {
		t.Errorf("a2 strength = %v, want 0.8", related[0].Strength)
	}

	if related[1].ActivityID != "a3" || related[1].Depth != 2 {
		t.Errorf("second = %+v, want a3 at depth 2", related[1])
	}
	if math.Abs(related[1].Strength-0.4) > 1e-9 {
		t.Errorf("a3 strength = %v, want 0.8*0.5", related[1].Strength)
	}
}

func TestRelatedToDepthBound(t *testing.T) {
	g := buildChain(t)

	// a3 is only reachable through a path of 2 edges.
	related, err := g.RelatedTo("a1", 1, 0.1)
	if err != nil {
		t.Fatalf("RelatedTo: %v", err)
	}
	for _, r := range related {
		if r.ActivityID == "a3" {
			t.Error("a3 returned despite maxDepth=1")
		}
		if r.Depth > 1 {
			t.Errorf("depth = %d, want <= 1", r.Depth)
		}
	}
}

func TestRelatedToMinStrengthPrunes(t *testing.T) {
	g := buildChain(t)

	// minStrength 0.6 prunes the a2->a3 edge (0.5) from the walk.
	related, err := g.RelatedTo("a1", 2, 0.6)
	if err != nil {
		t.Fatalf("RelatedTo: %v", err)
	}
	if len(related) != 1 || related[0].ActivityID != "a2" {
		t.Errorf("related = %+v, want only a2", related)
	}
}

func TestRelatedToTraversesContextNodes(t *testing.T) {
	g := New("", 100, 0.95)
	now := time.Now()
	addActivity(t, g, "a1", now)
	if err := g.UpsertContextNode("ctx", "work", Attrs{}); err != nil {
		t.Fatalf("UpsertContextNode: %v", err)
	}
	addActivity(t, g, "a2", now)

	// a1 -> ctx -> a2: the context node is passed through, not returned.
	if err := g.UpsertEdge("a1", "ctx", RelBelongsTo, 0.9, nil); err != nil {
		t.Fatalf("UpsertEdge: %v", err)
	}
	if err := g.UpsertEdge("ctx", "a2", "contains", 0.8, nil); err != nil {
		t.Fatalf("UpsertEdge: %v", err)
	}

	related, err := g.RelatedTo("a1", 2, 0.1)
	if err != nil {
		t.Fatalf("RelatedTo: %v", err)
	}
	if len(related) != 1 {
		t.Fatalf("len = %d, want 1 (context node not emitted)", len(related))
	}
	if related[0].ActivityID != "a2" {
		t.Errorf("got %s, want a2", related[0].ActivityID)
	}
	if math.Abs(related[0].Strength-0.72) > 1e-9 {
		t.Errorf("strength = %v, want 0.9*0.8", related[0].Strength)
	}
}

func TestRelatedToFirstSeenWins(t *testing.T) {
	// Two paths to a3: direct weak edge at depth 1 and a stronger
	// two-hop path. BFS reaches the direct edge first and its strength
	// sticks — no re-optimization on the alternate path.
	g := New("", 100, 0.95)
	now := time.Now()
	addActivity(t, g, "a1", now)
	addActivity(t, g, "a2", now)
	addActivity(t, g, "a3", now)

	if err := g.UpsertEdge("a1", "a3", RelFollowedBy, 0.2, nil); err != nil {
		t.Fatalf("UpsertEdge: %v", err)
	}
	if err := g.UpsertEdge("a1", "a2", RelFollowedBy, 0.9, nil); err != nil {
		t.Fatalf("UpsertEdge: %v", err)
	}
	if err := g.UpsertEdge("a2", "a3", RelFollowedBy, 0.9, nil); err != nil {
		t.Fatalf("UpsertEdge: %v", err)
	}

	related, err := g.RelatedTo("a1", 2, 0.1)
	if err != nil {
		t.Fatalf("RelatedTo: %v", err)
	}

	for _, r := range related {
		if r.ActivityID == "a3" {
			if r.Depth != 1 {
				t.Errorf("a3 depth = %d, want 1 (first seen)", r.Depth)
			}
			if math.Abs(r.Strength-0.2) > 1e-9 {
				t.Errorf("a3 strength = %v, want 0.2 (no path re-optimization)", r.Strength)
			}
		}
	}
}

func TestRelatedToValidation(t *testing.T) {
	g := buildChain(t)

	if _, err := g.RelatedTo("", 2, 0.1); err == nil {
		t.Error("expected error for blank node id")
	}

	related, err := g.RelatedTo("unknown", 2, 0.1)
	if err != nil {
		t.Fatalf("RelatedTo unknown node: %v", err)
	}
	if len(related) != 0 {
		t.Errorf("related = %v, want empty for unknown node", related)
	}
}

func TestNextActivities(t *testing.T) {
	g := buildChain(t)

	next := g.NextActivities("a1", 5)
	if len(next) != 1 {
		t.Fatalf("len = %d, want 1", len(next))
	}
	if next[0].ActivityID != "a2" {
		t.Errorf("got %s, want a2", next[0].ActivityID)
	}
	if math.Abs(next[0].Probability-0.8) > 1e-9 {
		t.Errorf("probability = %v, want 0.8", next[0].Probability)
	}
}

func TestNextActivitiesFiltersRelationship(t *testing.T) {
	g := buildChain(t)
	if err := g.UpsertContextNode("ctx", "work", Attrs{}); err != nil {
		t.Fatalf("UpsertContextNode: %v", err)
	}
	if err := g.UpsertEdge("a1", "ctx", RelBelongsTo, 0.99, nil); err != nil {
		t.Fatalf("UpsertEdge: %v", err)
	}

	next := g.NextActivities("a1", 5)
	for _, n := range next {
		if n.ActivityID == "ctx" {
			t.Error("belongs_to edge leaked into next activities")
		}
	}
}

func TestNextActivitiesTopK(t *testing.T) {
	g := New("", 100, 0.95)
	now := time.Now()
	addActivity(t, g, "start", now)
	strengths := []float64{0.3, 0.9, 0.5, 0.7}
	for i, s := range strengths {
		id := nodeID(i)
		addActivity(t, g, id, now)
		if err := g.UpsertEdge("start", id, RelFollowedBy, s, nil); err != nil {
			t.Fatalf("UpsertEdge: %v", err)
		}
	}

	next := g.NextActivities("start", 2)
	if len(next) != 2 {
		t.Fatalf("len = %d, want 2", len(next))
	}
	if next[0].Probability < next[1].Probability {
		t.Errorf("not sorted: %v, %v", next[0].Probability, next[1].Probability)
	}
	if math.Abs(next[0].Probability-0.9) > 1e-9 {
		t.Errorf("top probability = %v, want 0.9", next[0].Probability)
	}
}

func TestNextActivitiesUnknownNode(t *testing.T) {
	g := buildChain(t)
	if next := g.NextActivities("ghost", 5); len(next) != 0 {
		t.Errorf("next = %v, want empty", next)
	}
}
