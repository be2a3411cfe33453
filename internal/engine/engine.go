// Package engine orchestrates activity ingestion, the relevance graph,
// semantic indexing, prediction, and periodic maintenance.
package engine

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/contextd/contextd/internal/graph"
	"github.com/contextd/contextd/internal/predict"
	"github.com/contextd/contextd/internal/privacy"
	"github.com/contextd/contextd/internal/semantic"
	"github.com/contextd/contextd/internal/store"
)

// Engine wires the activity store, relevance graph, and semantic index
// behind the operations the server and CLI expose.
type Engine struct {
	DB     *store.DB
	Graph  *graph.Graph
	Index  *semantic.Index
	Filter *privacy.Filter

	predictor *predict.Predictor

	mu          sync.Mutex // guards lastID / lastTS
	lastID      string
	lastTS      time.Time
	maintMu     sync.Mutex // single-flight for maintenance
	ingestCount atomic.Int64
	stopCh      chan struct{}
	stopOnce    sync.Once
}

// maintenanceEvery triggers an extra maintenance cycle after this many
// ingested activities, independent of the timer.
const maintenanceEvery = 200

// New creates an engine. minConfidence is the prediction gate; values
// outside (0,1] fall back to 0.6.
func New(db *store.DB, g *graph.Graph, index *semantic.Index, filter *privacy.Filter, minConfidence float64) *Engine {
	e := &Engine{
		DB:     db,
		Graph:  g,
		Index:  index,
		Filter: filter,
		stopCh: make(chan struct{}),
	}
	var searcher predict.Searcher
	if index != nil {
		searcher = index
	}
	e.predictor = predict.New(g, searcher, historyAdapter{db}, minConfidence)
	return e
}

// historyAdapter exposes the activity store as the predictor's history
// capability.
type historyAdapter struct {
	db *store.DB
}

func (h historyAdapter) Recent(limit int, hoursBack float64) ([]predict.ActivityRecord, error) {
	acts, err := h.db.RecentActivities(limit, hoursBack)
	if err != nil {
		return nil, err
	}
	records := make([]predict.ActivityRecord, len(acts))
	for i, a := range acts {
		records[i] = predict.ActivityRecord{
			Timestamp:    a.Timestamp,
			ActivityType: a.ActivityType,
			AppName:      a.AppName,
			WindowTitle:  a.WindowTitle,
			FilePath:     a.FilePath,
			URL:          a.URL,
			Duration:     a.Duration,
		}
	}
	return records, nil
}

// Ingest records one observed activity: privacy check, sanitize, persist,
// index, graph upsert, and a sequential link to the previous ingested
// activity. Returns false when the privacy filter dropped it.
func (e *Engine) Ingest(ctx context.Context, a store.Activity) (bool, error) {
	if a.ActivityID == "" || a.ActivityType == "" {
		return false, fmt.Errorf("ingest: activity id and type are required")
	}
	if a.Timestamp.IsZero() {
		a.Timestamp = time.Now()
	}

	if e.Filter != nil {
		subject := privacy.Subject{
			AppName:     a.AppName,
			WindowTitle: a.WindowTitle,
			FilePath:    a.FilePath,
			URL:         a.URL,
		}
		if !e.Filter.Allow(subject) {
			log.Printf("engine: dropped activity %s (privacy)", a.ActivityID)
			return false, nil
		}
		subject = e.Filter.Sanitize(subject)
		a.AppName = subject.AppName
		a.WindowTitle = subject.WindowTitle
		a.FilePath = subject.FilePath
		a.URL = subject.URL
	}

	if err := e.DB.RecordActivity(&a); err != nil {
		return false, fmt.Errorf("record activity: %w", err)
	}

	if e.Index != nil {
		desc := predict.BuildDescription(predict.CurrentActivity{
			AppName:     a.AppName,
			WindowTitle: a.WindowTitle,
			FilePath:    a.FilePath,
			URL:         a.URL,
		})
		if err := e.Index.Add(ctx, a.ActivityID, desc, activityMetadata(a)); err != nil {
			log.Printf("engine: index %s: %v", a.ActivityID, err)
		}
	}

	attrs := graph.Attrs{
		AppName:     a.AppName,
		WindowTitle: a.WindowTitle,
		FilePath:    a.FilePath,
		URL:         a.URL,
	}
	if err := e.Graph.UpsertActivityNode(a.ActivityID, a.ActivityType, a.Timestamp, attrs); err != nil {
		return false, fmt.Errorf("graph upsert: %w", err)
	}

	e.mu.Lock()
	prevID, prevTS := e.lastID, e.lastTS
	e.lastID, e.lastTS = a.ActivityID, a.Timestamp
	e.mu.Unlock()

	if prevID != "" && prevID != a.ActivityID && a.Timestamp.After(prevTS) {
		if err := e.Graph.ConnectSequential(prevID, a.ActivityID, a.Timestamp.Sub(prevTS)); err != nil {
			log.Printf("engine: sequential link %s -> %s: %v", prevID, a.ActivityID, err)
		}
	}

	if e.ingestCount.Add(1)%maintenanceEvery == 0 {
		go func() {
			if err := e.RunMaintenance(); err != nil {
				log.Printf("engine: maintenance: %v", err)
			}
		}()
	}

	return true, nil
}

// LinkSequential connects two already-ingested activities explicitly.
func (e *Engine) LinkSequential(prevID, nextID string, elapsed time.Duration) error {
	return e.Graph.ConnectSequential(prevID, nextID, elapsed)
}

// Predict returns ranked context predictions for the current activity.
func (e *Engine) Predict(ctx context.Context, current predict.CurrentActivity, maxResults int) ([]predict.Candidate, error) {
	return e.predictor.Predict(ctx, current, maxResults)
}

// Related runs the weighted graph traversal from nodeID.
func (e *Engine) Related(nodeID string, maxDepth int, minStrength float64) ([]graph.Related, error) {
	return e.Graph.RelatedTo(nodeID, maxDepth, minStrength)
}

// Search queries the semantic index directly.
func (e *Engine) Search(ctx context.Context, query string, n int, floor float64) ([]semantic.Match, error) {
	if e.Index == nil {
		return nil, fmt.Errorf("search: no semantic index configured")
	}
	return e.Index.SearchSimilar(ctx, query, n, floor)
}

// Stats aggregates store, graph, and privacy counters.
type Stats struct {
	Graph      graph.Stats   `json:"graph"`
	Activities int           `json:"activities"`
	Vectors    int           `json:"vectors"`
	Privacy    privacy.Stats `json:"privacy"`
}

// Stats reports current sizes across the engine's stores.
func (e *Engine) Stats() (Stats, error) {
	activities, err := e.DB.CountActivities()
	if err != nil {
		return Stats{}, fmt.Errorf("count activities: %w", err)
	}
	vectors, err := e.DB.CountVectors()
	if err != nil {
		return Stats{}, fmt.Errorf("count vectors: %w", err)
	}
	s := Stats{
		Graph:      e.Graph.Stats(),
		Activities: activities,
		Vectors:    vectors,
	}
	if e.Filter != nil {
		s.Privacy = e.Filter.Stats()
	}
	return s, nil
}

// Stop shuts down the engine's background goroutines.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.stopCh) })
}

func activityMetadata(a store.Activity) map[string]string {
	m := make(map[string]string)
	if a.AppName != "" {
		m["app_name"] = a.AppName
	}
	if a.WindowTitle != "" {
		m["window_title"] = a.WindowTitle
	}
	if a.FilePath != "" {
		m["file_path"] = a.FilePath
	}
	if a.URL != "" {
		m["url"] = a.URL
	}
	return m
}
