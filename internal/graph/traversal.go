package graph

import (
	"fmt"
	"sort"
	"time"
)

// maxTraversalDepth caps caller-supplied depth so worst-case traversal cost
// stays bounded regardless of query parameters.
const maxTraversalDepth = 8

// Related is one activity reachable from a traversal start node.
type Related struct {
	ActivityID   string    `json:"activity_id"`
	Relationship string    `json:"relationship"`
	Strength     float64   `json:"strength"` // cumulative product along the path
	Depth        int       `json:"depth"`
	ActivityType string    `json:"activity_type"`
	Timestamp    time.Time `json:"timestamp"`
}

// RelatedTo performs a breadth-first, depth-limited traversal over outgoing
// edges from nodeID. The cumulative strength of a result is the product of
// edge strengths along the path that first reached it; edges below
// minStrength are pruned from the walk. Each node is visited at most once
// — the first path found wins, with no re-optimization when a stronger
// alternate path exists later. Context nodes are traversed through but only
// activity nodes are returned, sorted by cumulative strength descending.
//
// maxDepth <= 0 defaults to 2. A blank nodeID is a caller error; a node
// that simply is not in the graph yields an empty result.
func (g *Graph) RelatedTo(nodeID string, maxDepth int, minStrength float64) ([]Related, error) {
	if nodeID == "" {
		return nil, fmt.Errorf("related to: empty node id")
	}
	if maxDepth <= 0 {
		maxDepth = 2
	}
	if maxDepth > maxTraversalDepth {
		maxDepth = maxTraversalDepth
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	if _, ok := g.nodes[nodeID]; !ok {
		return nil, nil
	}

	type frontier struct {
		id       string
		depth    int
		strength float64
	}

	visited := map[string]bool{nodeID: true}
	queue := []frontier{{nodeID, 0, 1.0}}
	var related []Related

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		if cur.depth >= maxDepth {
			continue
		}

		for to, e := range g.out[cur.id] {
			if visited[to] {
				continue
			}
			if e.Strength < minStrength {
				continue
			}

			strength := cur.strength * e.Strength
			node := g.nodes[to]

			if node.Kind == KindActivity {
				related = append(related, Related{
					ActivityID:   to,
					Relationship: e.Relationship,
					Strength:     strength,
					Depth:        cur.depth + 1,
					ActivityType: node.ActivityType,
					Timestamp:    node.Timestamp,
				})
			}

			visited[to] = true
			queue = append(queue, frontier{to, cur.depth + 1, strength})
		}
	}

	sort.SliceStable(related, func(i, j int) bool {
		return related[i].Strength > related[j].Strength
	})
	return related, nil
}

// NextActivity is a depth-1 prediction from the graph: an activity that
// historically followed the queried one.
type NextActivity struct {
	ActivityID   string  `json:"activity_id"`
	Probability  float64 `json:"probability"` // edge strength
	ActivityType string  `json:"activity_type"`
	Attrs        Attrs   `json:"attrs"`
}

// NextActivities returns the direct followed_by successors of nodeID,
// strongest first, truncated to topK (default 5). This is the hot path for
// prediction so it skips the full traversal machinery. An unknown nodeID
// yields an empty result, not an error: a current activity that has never
// been observed before is a degraded input.
func (g *Graph) NextActivities(nodeID string, topK int) []NextActivity {
	if topK <= 0 {
		topK = 5
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	if _, ok := g.nodes[nodeID]; !ok {
		return nil
	}

	var predictions []NextActivity
	for to, e := range g.out[nodeID] {
		if e.Relationship != RelFollowedBy {
			continue
		}
		node := g.nodes[to]
		predictions = append(predictions, NextActivity{
			ActivityID:   to,
			Probability:  e.Strength,
			ActivityType: node.ActivityType,
			Attrs:        node.Attrs,
		})
	}

	sort.SliceStable(predictions, func(i, j int) bool {
		return predictions[i].Probability > predictions[j].Probability
	})
	if len(predictions) > topK {
		predictions = predictions[:topK]
	}
	return predictions
}

// ContextActivities returns the IDs of all activities linked to the given
// context via belongs_to edges.
func (g *Graph) ContextActivities(contextID string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if _, ok := g.nodes[contextID]; !ok {
		return nil
	}

	var activities []string
	for from := range g.in[contextID] {
		if e, ok := g.out[from][contextID]; ok && e.Relationship == RelBelongsTo {
			activities = append(activities, from)
		}
	}
	sort.Strings(activities)
	return activities
}
