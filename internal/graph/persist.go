package graph

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
)

// snapshot is the on-disk representation of the whole graph.
type snapshot struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Save writes the whole graph to the snapshot file. The graph is copied
// under the read lock and serialized outside it, so a long write does not
// block concurrent queries or ingestion.
func (g *Graph) Save() error {
	if g.path == "" {
		log.Printf("graph: no snapshot path set, skipping save")
		return nil
	}

	g.mu.RLock()
	snap := snapshot{
		Nodes: make([]Node, 0, len(g.nodes)),
		Edges: make([]Edge, 0, g.edgeCount),
	}
	for _, n := range g.nodes {
		snap.Nodes = append(snap.Nodes, *n)
	}
	for _, targets := range g.out {
		for _, e := range targets {
			snap.Edges = append(snap.Edges, *e)
		}
	}
	g.mu.RUnlock()

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal graph snapshot: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(g.path), 0755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}

	// Write-then-rename so a crash mid-write never corrupts the snapshot.
	tmp := g.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write graph snapshot: %w", err)
	}
	if err := os.Rename(tmp, g.path); err != nil {
		return fmt.Errorf("rename graph snapshot: %w", err)
	}
	return nil
}

// Load restores the graph from the snapshot file. A missing file is not an
// error: the graph simply starts empty.
func (g *Graph) Load() error {
	if g.path == "" {
		return nil
	}

	data, err := os.ReadFile(g.path)
	if os.IsNotExist(err) {
		log.Printf("graph: no snapshot at %s, starting empty", g.path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("read graph snapshot: %w", err)
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("decode graph snapshot: %w", err)
	}

	nodes := make(map[string]*Node, len(snap.Nodes))
	for i := range snap.Nodes {
		n := snap.Nodes[i]
		nodes[n.ID] = &n
	}

	out := make(map[string]map[string]*Edge)
	in := make(map[string]map[string]bool)
	edgeCount := 0
	for i := range snap.Edges {
		e := snap.Edges[i]
		// Edges must reference existing nodes; drop any that don't.
		if _, ok := nodes[e.From]; !ok {
			continue
		}
		if _, ok := nodes[e.To]; !ok {
			continue
		}
		if out[e.From] == nil {
			out[e.From] = make(map[string]*Edge)
		}
		if _, dup := out[e.From][e.To]; dup {
			continue
		}
		out[e.From][e.To] = &e
		if in[e.To] == nil {
			in[e.To] = make(map[string]bool)
		}
		in[e.To][e.From] = true
		edgeCount++
	}

	g.mu.Lock()
	g.nodes = nodes
	g.out = out
	g.in = in
	g.edgeCount = edgeCount
	g.mu.Unlock()

	log.Printf("graph: loaded %d nodes, %d edges from %s", len(nodes), edgeCount, g.path)
	return nil
}
