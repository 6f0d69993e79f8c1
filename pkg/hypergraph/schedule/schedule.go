// Package schedule computes execution orderings for a hypergraph.
//
// TopoSort produces a total order over the phases using Kahn's algorithm
// and Levels groups that order into parallel-safe levels: every node in a
// level is independent of its level-mates, so the orchestrator may run one
// level's nodes concurrently and must join them all before the next level.
package schedule

import (
	"errors"
	"slices"

	"github.com/matzehuels/phaseline/pkg/hypergraph"
)

// ErrCycle is returned by [TopoSort] when the graph contains a directed
// cycle and no valid total order exists. No partial order is returned.
var ErrCycle = errors.New("graph contains a cycle")

// TopoSort returns a topological order over all node IDs: for every edge
// (s, t), s precedes t. Ties between nodes that become ready at the same
// time are broken lexicographically by node ID, so the order is
// deterministic for a given graph.
//
// Returns ErrCycle when the graph is cyclic.
func TopoSort(g *hypergraph.Hypergraph) ([]string, error) {
	nodes := g.Nodes()
	inDegree := make(map[string]int, len(nodes))
	for _, n := range nodes {
		inDegree[n.ID] = 0
	}
	for _, e := range g.Edges() {
		inDegree[e.Target]++
	}

	// Nodes() is sorted by ID, so the seed queue is already ordered.
	var queue []string
	for _, n := range nodes {
		if inDegree[n.ID] == 0 {
			queue = append(queue, n.ID)
		}
	}

	order := make([]string, 0, len(nodes))
	for len(queue) > 0 {
		curr := queue[0]
		queue = queue[1:]
		order = append(order, curr)

		// Decrement per edge, not per distinct successor: the same node
		// pair may carry several parallel streams and each one counted
		// toward the target's in-degree above.
		ready := make([]string, 0, 2)
		for _, e := range g.Outgoing(curr) {
			inDegree[e.Target]--
			if inDegree[e.Target] == 0 {
				ready = append(ready, e.Target)
			}
		}
		queue = append(queue, ready...)
		slices.Sort(queue)
	}

	if len(order) < len(nodes) {
		return nil, ErrCycle
	}
	return order, nil
}

// Levels groups a topological order into execution levels. A node's level
// is 0 when it has no incoming edges, otherwise one more than the maximum
// level of its direct predecessors. Nodes within a level keep the relative
// ordering of the input order.
//
// The order must be a valid topological order over the graph, typically
// the result of [TopoSort]; predecessors are then guaranteed to be
// assigned before their dependents.
func Levels(g *hypergraph.Hypergraph, order []string) [][]string {
	level := make(map[string]int, len(order))
	maxLevel := 0
	for _, id := range order {
		l := 0
		for _, pred := range g.Predecessors(id) {
			if pl := level[pred] + 1; pl > l {
				l = pl
			}
		}
		level[id] = l
		if l > maxLevel {
			maxLevel = l
		}
	}

	if len(order) == 0 {
		return nil
	}
	levels := make([][]string, maxLevel+1)
	for _, id := range order {
		l := level[id]
		levels[l] = append(levels[l], id)
	}
	return levels
}
