package engine

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/contextd/contextd/internal/graph"
	"github.com/contextd/contextd/internal/predict"
	"github.com/contextd/contextd/internal/privacy"
	"github.com/contextd/contextd/internal/store"
)

func testEngine(t *testing.T) *Engine {
	t.Helper()
	db, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	filter, err := privacy.NewFilter(privacy.Rules{
		Enabled:     true,
		BlockedApps: []string{"1password"},
	})
	if err != nil {
		t.Fatalf("NewFilter: %v", err)
	}

	g := graph.New("", 100, 0.95)
	e := New(db, g, nil, filter, 0.6)
	t.Cleanup(e.Stop)
	return e
}

func activity(id string, ts time.Time, app string) store.Activity {
	return store.Activity{
		ActivityID:   id,
		ActivityType: "window_focus",
		Timestamp:    ts,
		AppName:      app,
	}
}

func TestIngestRecordsAndGraphs(t *testing.T) {
	e := testEngine(t)
	ctx := context.Background()
	now := time.Now()

	ok, err := e.Ingest(ctx, activity("a1", now, "vscode"))
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if !ok {
		t.Fatal("activity dropped unexpectedly")
	}

	if got, err := e.DB.GetActivity("a1"); err != nil || got == nil {
		t.Fatalf("GetActivity: %v %v", got, err)
	}
	if !e.Graph.HasNode("a1") {
		t.Error("graph node missing")
	}
}

func TestIngestValidation(t *testing.T) {
	e := testEngine(t)

	if _, err := e.Ingest(context.Background(), store.Activity{ActivityType: "window_focus"}); err == nil {
		t.Error("expected error for missing activity id")
	}
	if _, err := e.Ingest(context.Background(), store.Activity{ActivityID: "a1"}); err == nil {
		t.Error("expected error for missing activity type")
	}
}

func TestIngestLinksSequential(t *testing.T) {
	e := testEngine(t)
	ctx := context.Background()
	now := time.Now()

	if _, err := e.Ingest(ctx, activity("a1", now, "vscode")); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if _, err := e.Ingest(ctx, activity("a2", now.Add(time.Hour), "terminal")); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	s, ok := e.Graph.EdgeStrength("a1", "a2")
	if !ok {
		t.Fatal("sequential edge missing")
	}
	// One hour apart: 1/(1+1) = 0.5.
	if s < 0.499 || s > 0.501 {
		t.Errorf("strength = %v, want 0.5", s)
	}
}

func TestIngestPrivacyDrop(t *testing.T) {
	e := testEngine(t)

	ok, err := e.Ingest(context.Background(), activity("a1", time.Now(), "1Password"))
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if ok {
		t.Fatal("blocked app was ingested")
	}
	if n, _ := e.DB.CountActivities(); n != 0 {
		t.Errorf("activities = %d, want 0", n)
	}
	if e.Graph.HasNode("a1") {
		t.Error("dropped activity reached the graph")
	}

	// A drop must not become the sequential predecessor of the next ingest.
	if _, err := e.Ingest(context.Background(), activity("a2", time.Now().Add(time.Minute), "vscode")); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if e.Graph.EdgeCount() != 0 {
		t.Error("edge created from a dropped activity")
	}
}

func TestIngestSanitizes(t *testing.T) {
	e := testEngine(t)

	a := store.Activity{
		ActivityID:   "a1",
		ActivityType: "window_focus",
		Timestamp:    time.Now(),
		AppName:      "thunderbird",
		WindowTitle:  "mail from alice@example.com",
	}
	if _, err := e.Ingest(context.Background(), a); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	got, err := e.DB.GetActivity("a1")
	if err != nil {
		t.Fatalf("GetActivity: %v", err)
	}
	if got.WindowTitle != "mail from [EMAIL]" {
		t.Errorf("title = %q, want redacted", got.WindowTitle)
	}
}

func TestLinkSequentialExplicit(t *testing.T) {
	e := testEngine(t)
	ctx := context.Background()
	now := time.Now()

	if _, err := e.Ingest(ctx, activity("a1", now, "vscode")); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if _, err := e.Ingest(ctx, activity("a2", now.Add(time.Minute), "terminal")); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	if err := e.LinkSequential("a2", "a1", time.Hour); err != nil {
		t.Fatalf("LinkSequential: %v", err)
	}
	if _, ok := e.Graph.EdgeStrength("a2", "a1"); !ok {
		t.Error("explicit link missing")
	}

	if err := e.LinkSequential("a1", "ghost", time.Minute); err == nil {
		t.Error("expected error linking to an unknown node")
	}
}

func TestPredictEndToEnd(t *testing.T) {
	e := testEngine(t)
	ctx := context.Background()
	now := time.Now()

	// a1 -> a2 observed repeatedly builds a strong edge.
	for i := 0; i < 3; i++ {
		base := now.Add(time.Duration(-3+i) * 10 * time.Minute)
		if _, err := e.Ingest(ctx, activity("a1", base, "vscode")); err != nil {
			t.Fatalf("Ingest: %v", err)
		}
		if _, err := e.Ingest(ctx, activity("a2", base.Add(time.Minute), "terminal")); err != nil {
			t.Fatalf("Ingest: %v", err)
		}
	}

	out, err := e.Predict(ctx, predict.CurrentActivity{ActivityID: "a1", AppName: "vscode"}, 10)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	found := false
	for _, c := range out {
		if c.Data["app_name"] == "terminal" {
			found = true
		}
	}
	if !found {
		t.Errorf("graph successor missing from predictions: %+v", out)
	}
}

func TestRelated(t *testing.T) {
	e := testEngine(t)
	ctx := context.Background()
	now := time.Now()

	if _, err := e.Ingest(ctx, activity("a1", now, "vscode")); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if _, err := e.Ingest(ctx, activity("a2", now.Add(time.Minute), "terminal")); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	related, err := e.Related("a1", 2, 0.1)
	if err != nil {
		t.Fatalf("Related: %v", err)
	}
	if len(related) != 1 || related[0].ActivityID != "a2" {
		t.Errorf("related = %+v", related)
	}

	if _, err := e.Related("", 2, 0.1); err == nil {
		t.Error("expected error for blank node id")
	}
}

func TestRunMaintenance(t *testing.T) {
	db, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	path := filepath.Join(t.TempDir(), "graph.json")
	g := graph.New(path, 100, 0.5)
	e := New(db, g, nil, nil, 0.6)
	t.Cleanup(e.Stop)

	ctx := context.Background()
	now := time.Now()
	if _, err := e.Ingest(ctx, activity("a1", now, "vscode")); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if _, err := e.Ingest(ctx, activity("a2", now.Add(time.Minute), "terminal")); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	if err := e.RunMaintenance(); err != nil {
		t.Fatalf("RunMaintenance: %v", err)
	}

	// Strong sequential edge decayed by 0.5 but survives the first cycle.
	s, ok := e.Graph.EdgeStrength("a1", "a2")
	if !ok {
		t.Fatal("edge gone after one decay cycle")
	}
	if s > 0.51 {
		t.Errorf("strength = %v, want decayed", s)
	}

	// Snapshot written and loadable.
	restored := graph.New(path, 100, 0.5)
	if err := restored.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if restored.NodeCount() != 2 {
		t.Errorf("restored nodes = %d, want 2", restored.NodeCount())
	}

	// Repeated cycles halve the strength until it drops below the floor.
	for i := 0; i < 4; i++ {
		if err := e.RunMaintenance(); err != nil {
			t.Fatalf("RunMaintenance: %v", err)
		}
	}
	if _, ok := e.Graph.EdgeStrength("a1", "a2"); ok {
		t.Error("edge should decay away")
	}
}

func TestStats(t *testing.T) {
	e := testEngine(t)
	ctx := context.Background()
	now := time.Now()

	if _, err := e.Ingest(ctx, activity("a1", now, "vscode")); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if _, err := e.Ingest(ctx, activity("a2", now.Add(time.Minute), "terminal")); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	s, err := e.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if s.Activities != 2 {
		t.Errorf("activities = %d, want 2", s.Activities)
	}
	if s.Graph.TotalNodes != 2 || s.Graph.TotalEdges != 1 {
		t.Errorf("graph stats = %+v", s.Graph)
	}
	if !s.Privacy.Enabled {
		t.Error("privacy stats missing")
	}
}
