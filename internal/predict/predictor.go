// Package predict generates ranked context predictions by fusing four
// independent signal sources: graph adjacency, semantic similarity,
// time-of-day frequency, and short-horizon continuation.
package predict

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/contextd/contextd/internal/graph"
	"github.com/contextd/contextd/internal/semantic"
)

// SourceType identifies which signal source produced a candidate.
type SourceType string

const (
	SourceGraph        SourceType = "graph"
	SourceSemantic     SourceType = "semantic"
	SourceTemporal     SourceType = "temporal_pattern"
	SourceContinuation SourceType = "context_continuation"
)

// Candidate is one scored prediction. Confidence is scaled per source;
// fusion averages overlapping candidates rather than renormalizing.
type Candidate struct {
	Source       SourceType        `json:"source"`
	Confidence   float64           `json:"confidence"`
	Data         map[string]string `json:"data"`
	Text         string            `json:"text,omitempty"`
	ActivityType string            `json:"activity_type,omitempty"`
	Reason       string            `json:"reason"`
}

// ActivityRecord is one row of recent history as the sources consume it.
type ActivityRecord struct {
	Timestamp    time.Time
	ActivityType string
	AppName      string
	WindowTitle  string
	FilePath     string
	URL          string
	Duration     int
}

// History supplies recent activity records, newest first.
type History interface {
	Recent(limit int, hoursBack float64) ([]ActivityRecord, error)
}

// Searcher answers similarity queries over indexed activity descriptions.
type Searcher interface {
	SearchSimilar(ctx context.Context, query string, n int, floor float64) ([]semantic.Match, error)
}

// Adjacency answers direct followed_by queries from the relevance graph.
type Adjacency interface {
	NextActivities(nodeID string, topK int) []graph.NextActivity
}

// CurrentActivity describes what the user is doing right now. ActivityID is
// optional; without it the graph source contributes nothing.
type CurrentActivity struct {
	ActivityID  string `json:"activity_id,omitempty"`
	AppName     string `json:"app_name,omitempty"`
	WindowTitle string `json:"window_title,omitempty"`
	FilePath    string `json:"file_path,omitempty"`
	URL         string `json:"url,omitempty"`
}

func (c CurrentActivity) isZero() bool {
	return c.ActivityID == "" && c.AppName == "" && c.WindowTitle == "" &&
		c.FilePath == "" && c.URL == ""
}

// Predictor runs all four sources against a current activity and fuses the
// results. Collaborator failures degrade to zero candidates from that source.
type Predictor struct {
	graph         Adjacency
	search        Searcher
	history       History
	minConfidence float64

	now func() time.Time // injectable for tests
}

// New creates a predictor. minConfidence outside (0,1] falls back to 0.6.
func New(g Adjacency, search Searcher, history History, minConfidence float64) *Predictor {
	if minConfidence <= 0 || minConfidence > 1 {
		minConfidence = 0.6
	}
	return &Predictor{
		graph:         g,
		search:        search,
		history:       history,
		minConfidence: minConfidence,
		now:           time.Now,
	}
}

// BuildDescription renders the activity as the text the semantic index was
// built over, e.g. "Application: vscode | Window: main.go".
func BuildDescription(a CurrentActivity) string {
	var parts []string
	if a.AppName != "" {
		parts = append(parts, "Application: "+a.AppName)
	}
	if a.WindowTitle != "" {
		parts = append(parts, "Window: "+a.WindowTitle)
	}
	if a.FilePath != "" {
		parts = append(parts, "File: "+a.FilePath)
	}
	if a.URL != "" {
		parts = append(parts, "URL: "+a.URL)
	}
	if len(parts) == 0 {
		return "Current activity"
	}
	return strings.Join(parts, " | ")
}

// Predict returns up to maxResults fused candidates at or above the
// configured confidence floor. A fully blank current activity is a caller
// error; sparse history or an empty graph just yields fewer candidates.
func (p *Predictor) Predict(ctx context.Context, current CurrentActivity, maxResults int) ([]Candidate, error) {
	if current.isZero() {
		return nil, fmt.Errorf("predict: empty current activity")
	}
	if maxResults <= 0 {
		maxResults = 10
	}

	var candidates []Candidate

	sem, err := p.fromSemantics(ctx, BuildDescription(current), maxResults)
	if err != nil {
		log.Printf("predict: semantic source: %v", err)
	}
	candidates = append(candidates, sem...)

	candidates = append(candidates, p.fromGraph(current, maxResults)...)

	tod, err := p.fromTimePatterns(maxResults)
	if err != nil {
		log.Printf("predict: time-of-day source: %v", err)
	}
	candidates = append(candidates, tod...)

	cont, err := p.fromContinuation(maxResults)
	if err != nil {
		log.Printf("predict: continuation source: %v", err)
	}
	candidates = append(candidates, cont...)

	return Fuse(candidates, maxResults, p.minConfidence), nil
}
