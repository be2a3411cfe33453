// Package graph implements the temporal relevance graph: a bounded,
// continuously-decaying weighted digraph of activity and context nodes.
package graph

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// NodeKind distinguishes activity occurrences from named contexts.
type NodeKind string

const (
	KindActivity NodeKind = "activity"
	KindContext  NodeKind = "context"
)

// Relationship labels used by the convenience wrappers. UpsertEdge accepts
// caller-defined labels too.
const (
	RelFollowedBy = "followed_by"
	RelBelongsTo  = "belongs_to"
)

// minEdgeStrength is the decay floor: edges weaker than this are dropped.
const minEdgeStrength = 0.1

// Attrs is the closed attribute record carried by nodes. Fields genuinely
// unknown ahead of time go in Extra.
type Attrs struct {
	AppName     string            `json:"app_name,omitempty"`
	WindowTitle string            `json:"window_title,omitempty"`
	FilePath    string            `json:"file_path,omitempty"`
	URL         string            `json:"url,omitempty"`
	Extra       map[string]string `json:"extra,omitempty"`
}

// Node is a graph vertex. Timestamp is the occurrence time for activity
// nodes and the creation time for context nodes. Nodes are immutable after
// insertion except for attribute refresh on re-upsert with the same ID.
type Node struct {
	ID           string    `json:"id"`
	Kind         NodeKind  `json:"kind"`
	ActivityType string    `json:"activity_type,omitempty"` // activity nodes
	Name         string    `json:"name,omitempty"`          // context nodes
	Timestamp    time.Time `json:"timestamp"`
	Attrs        Attrs     `json:"attrs"`
}

// Edge is a directed relationship between two nodes. At most one edge
// exists per (from, to) pair; re-adding accumulates strength up to 1.0.
type Edge struct {
	From         string            `json:"from"`
	To           string            `json:"to"`
	Relationship string            `json:"relationship"`
	Strength     float64           `json:"strength"`
	CreatedAt    time.Time         `json:"created_at"`
	LastUpdated  time.Time         `json:"last_updated"`
	TimeDelta    float64           `json:"time_delta,omitempty"` // seconds, followed_by edges
	Extra        map[string]string `json:"extra,omitempty"`
}

// Graph is the node and edge collection. It is the only mutable shared
// state in the core: all mutators serialize on the write lock, and readers
// never observe a half-updated edge.
type Graph struct {
	mu sync.RWMutex

	nodes     map[string]*Node
	out       map[string]map[string]*Edge // from -> to -> edge
	in        map[string]map[string]bool  // to -> set of from
	edgeCount int

	maxNodes    int
	decayFactor float64
	path        string // snapshot file, empty disables persistence
}

// Stats summarizes the graph for callers and the stats API.
type Stats struct {
	TotalNodes    int     `json:"total_nodes"`
	TotalEdges    int     `json:"total_edges"`
	ActivityNodes int     `json:"activity_nodes"`
	ContextNodes  int     `json:"context_nodes"`
	MaxNodes      int     `json:"max_nodes"`
	DecayFactor   float64 `json:"decay_factor"`
}

// New creates an empty graph. maxNodes <= 0 defaults to 10000 and
// decayFactor outside (0,1) defaults to 0.95. Call Load to restore a
// previous snapshot from path.
func New(path string, maxNodes int, decayFactor float64) *Graph {
	if maxNodes <= 0 {
		maxNodes = 10000
	}
	if decayFactor <= 0 || decayFactor >= 1 {
		decayFactor = 0.95
	}
	return &Graph{
		nodes:       make(map[string]*Node),
		out:         make(map[string]map[string]*Edge),
		in:          make(map[string]map[string]bool),
		maxNodes:    maxNodes,
		decayFactor: decayFactor,
		path:        path,
	}
}

// UpsertActivityNode inserts or refreshes an activity node. Re-inserting an
// existing ID overwrites its attributes and timestamp; the node count does
// not change. May trigger pruning when the store exceeds capacity.
func (g *Graph) UpsertActivityNode(id, activityType string, timestamp time.Time, attrs Attrs) error {
	if id == "" {
		return fmt.Errorf("upsert activity node: empty id")
	}
	if timestamp.IsZero() {
		timestamp = time.Now()
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.nodes[id] = &Node{
		ID:           id,
		Kind:         KindActivity,
		ActivityType: activityType,
		Timestamp:    timestamp,
		Attrs:        attrs,
	}

	if len(g.nodes) > g.maxNodes {
		g.pruneLocked()
	}
	return nil
}

// UpsertContextNode inserts or refreshes a context node. The creation time
// is set on first insert and refreshed on re-upsert.
func (g *Graph) UpsertContextNode(id, name string, attrs Attrs) error {
	if id == "" {
		return fmt.Errorf("upsert context node: empty id")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.nodes[id] = &Node{
		ID:        id,
		Kind:      KindContext,
		Name:      name,
		Timestamp: time.Now(),
		Attrs:     attrs,
	}

	if len(g.nodes) > g.maxNodes {
		g.pruneLocked()
	}
	return nil
}

// UpsertEdge adds or reinforces the edge from -> to. Both endpoints must
// already exist and strength must be non-negative; violating either is a
// caller error. Reinforcing
// accumulates strength capped at 1.0 and refreshes last-update time and
// extra attributes — it never creates a parallel edge.
func (g *Graph) UpsertEdge(from, to, relationship string, strength float64, extra map[string]string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.upsertEdgeLocked(from, to, relationship, strength, extra)
}

func (g *Graph) upsertEdgeLocked(from, to, relationship string, strength float64, extra map[string]string) error {
	if strength < 0 {
		return fmt.Errorf("upsert edge: negative strength %v", strength)
	}
	if _, ok := g.nodes[from]; !ok {
		return fmt.Errorf("upsert edge: source node %q does not exist", from)
	}
	if _, ok := g.nodes[to]; !ok {
		return fmt.Errorf("upsert edge: target node %q does not exist", to)
	}

	now := time.Now()
	if existing, ok := g.out[from][to]; ok {
		existing.Strength = min(1.0, existing.Strength+strength)
		existing.LastUpdated = now
		for k, v := range extra {
			if existing.Extra == nil {
				existing.Extra = make(map[string]string)
			}
			existing.Extra[k] = v
		}
		return nil
	}

	if g.out[from] == nil {
		g.out[from] = make(map[string]*Edge)
	}
	g.out[from][to] = &Edge{
		From:         from,
		To:           to,
		Relationship: relationship,
		Strength:     min(1.0, strength),
		CreatedAt:    now,
		LastUpdated:  now,
		Extra:        extra,
	}
	if g.in[to] == nil {
		g.in[to] = make(map[string]bool)
	}
	g.in[to][from] = true
	g.edgeCount++
	return nil
}

// ConnectSequential links two activities that occurred back to back.
// Temporally close pairs get stronger edges: strength = 1/(1 + dt/1h).
// delta must be non-negative.
func (g *Graph) ConnectSequential(firstID, secondID string, delta time.Duration) error {
	if delta < 0 {
		return fmt.Errorf("connect sequential: negative time delta %v", delta)
	}
	strength := 1.0 / (1.0 + delta.Seconds()/3600.0)

	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.upsertEdgeLocked(firstID, secondID, RelFollowedBy, strength, nil); err != nil {
		return err
	}
	g.out[firstID][secondID].TimeDelta = delta.Seconds()
	return nil
}

// LinkActivityToContext associates an activity with a context node.
func (g *Graph) LinkActivityToContext(activityID, contextID string, confidence float64) error {
	return g.UpsertEdge(activityID, contextID, RelBelongsTo, confidence, nil)
}

// Decay multiplies every edge strength by rate and removes edges that fall
// below the floor. rate outside (0,1) uses the configured decay factor.
// Returns the number of edges removed.
func (g *Graph) Decay(rate float64) int {
	if rate <= 0 || rate >= 1 {
		rate = g.decayFactor
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	var weak []*Edge
	for _, targets := range g.out {
		for _, e := range targets {
			e.Strength *= rate
			if e.Strength < minEdgeStrength {
				weak = append(weak, e)
			}
		}
	}
	for _, e := range weak {
		g.removeEdgeLocked(e.From, e.To)
	}
	return len(weak)
}

// EnforceCapacity prunes if the node count exceeds the maximum. Normally
// pruning happens on upsert; this exists for the maintenance cycle.
func (g *Graph) EnforceCapacity() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	if len(g.nodes) <= g.maxNodes {
		return 0
	}
	return g.pruneLocked()
}

// pruneLocked removes the oldest 10% of max capacity (at least 1) among
// timestamped nodes, cascading incident edge removal. Nodes without a
// timestamp are exempt. Caller holds the write lock.
func (g *Graph) pruneLocked() int {
	type aged struct {
		id string
		ts time.Time
	}
	var candidates []aged
	for id, n := range g.nodes {
		if n.Timestamp.IsZero() {
			continue
		}
		candidates = append(candidates, aged{id, n.Timestamp})
	}
	if len(candidates) == 0 {
		return 0
	}

	// Oldest first
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].ts.Before(candidates[j].ts)
	})

	toRemove := g.maxNodes / 10
	if toRemove < 1 {
		toRemove = 1
	}
	if toRemove > len(candidates) {
		toRemove = len(candidates)
	}

	for _, c := range candidates[:toRemove] {
		g.removeNodeLocked(c.id)
	}
	return toRemove
}

func (g *Graph) removeNodeLocked(id string) {
	for to := range g.out[id] {
		g.removeEdgeLocked(id, to)
	}
	for from := range g.in[id] {
		g.removeEdgeLocked(from, id)
	}
	delete(g.nodes, id)
}

func (g *Graph) removeEdgeLocked(from, to string) {
	if targets, ok := g.out[from]; ok {
		if _, ok := targets[to]; ok {
			delete(targets, to)
			g.edgeCount--
			if len(targets) == 0 {
				delete(g.out, from)
			}
		}
	}
	if sources, ok := g.in[to]; ok {
		delete(sources, from)
		if len(sources) == 0 {
			delete(g.in, to)
		}
	}
}

// GetNode returns a copy of the node with the given ID.
func (g *Graph) GetNode(id string) (Node, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	n, ok := g.nodes[id]
	if !ok {
		return Node{}, false
	}
	return *n, true
}

// HasNode reports whether a node with the given ID exists.
func (g *Graph) HasNode(id string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.nodes[id]
	return ok
}

// EdgeStrength returns the strength of the edge from -> to, or false if no
// such edge exists.
func (g *Graph) EdgeStrength(from, to string) (float64, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	e, ok := g.out[from][to]
	if !ok {
		return 0, false
	}
	return e.Strength, true
}

// NodeCount returns the current node count.
func (g *Graph) NodeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// EdgeCount returns the current edge count.
func (g *Graph) EdgeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.edgeCount
}

// Stats returns a summary of the graph.
func (g *Graph) Stats() Stats {
	g.mu.RLock()
	defer g.mu.RUnlock()

	s := Stats{
		TotalNodes:  len(g.nodes),
		TotalEdges:  g.edgeCount,
		MaxNodes:    g.maxNodes,
		DecayFactor: g.decayFactor,
	}
	for _, n := range g.nodes {
		switch n.Kind {
		case KindActivity:
			s.ActivityNodes++
		case KindContext:
			s.ContextNodes++
		}
	}
	return s
}
