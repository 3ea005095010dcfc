package ontology

import (
	"sort"
)

// Simulation constants. Behavioral parity depends on these values.
const (
	walkCount = 10_000
	maxSteps  = 10
)

// Direction selects which edges a walk follows.
type Direction int

const (
	// Forward follows outgoing edges by their forward probability.
	Forward Direction = iota
	// Backward follows incoming edges by their backward probability.
	Backward
)

// Sampler is the injectable randomness source for the simulation.
// *rand.Rand satisfies it; tests inject a seeded instance.
type Sampler interface {
	Float64() float64
}

// RankTables holds the Monte-Carlo estimates of one ranking run.
//
// PageRank is each class's visitation share over the walk starts;
// EdgeRank is each (class, predicate) pair's share of all edge
// traversals.
type RankTables struct {
	PageRank map[string]float64
	EdgeRank map[string]map[string]float64
}

// Rank runs the random-walk simulation over the graph in the given
// direction. Start classes are drawn by weighted sampling over
// weights; classes with zero or absent weight are never chosen. Each
// walk takes up to maxSteps edge traversals; walks stop at nodes
// without edges in the walk direction, and a forward step into the
// literal sink credits the departed class with the edge's forward
// probability instead of visiting the sink.
func Rank(g *Graph, dir Direction, weights map[string]float64, rng Sampler) RankTables {
	pageCounts := map[string]float64{}
	edgeCounts := map[string]map[string]float64{}
	var totalStarts, totalEdgeVisits float64

	starts, startWeights, startTotal := startDistribution(g, weights)
	if startTotal == 0 {
		return RankTables{PageRank: pageCounts, EdgeRank: edgeCounts}
	}

	for walk := 0; walk < walkCount; walk++ {
		current := weightedChoice(starts, startWeights, startTotal, rng)
		pageCounts[g.Node(current).Label]++
		totalStarts++

		for step := 0; step < maxSteps; step++ {
			edgeID, ok := sampleEdge(g, current, dir, rng)
			if !ok {
				break
			}
			edge := g.Edge(edgeID)
			label := g.Node(current).Label

			if edgeCounts[label] == nil {
				edgeCounts[label] = map[string]float64{}
			}
			edgeCounts[label][edge.Predicate]++
			totalEdgeVisits++

			var dest NodeID
			if dir == Forward {
				dest = edge.To
			} else {
				dest = edge.From
			}
			if g.Node(dest).Label == LiteralLabel {
				pageCounts[label] += edge.Forward
				break
			}
			pageCounts[g.Node(dest).Label]++
			current = dest
		}
	}

	for c := range pageCounts {
		pageCounts[c] /= totalStarts
	}
	if totalEdgeVisits > 0 {
		for c := range edgeCounts {
			for p := range edgeCounts[c] {
				edgeCounts[c][p] /= totalEdgeVisits
			}
		}
	}
	return RankTables{PageRank: pageCounts, EdgeRank: edgeCounts}
}

// startDistribution lists the eligible start nodes in sorted label
// order so sampling is reproducible for a seeded source.
func startDistribution(g *Graph, weights map[string]float64) ([]NodeID, []float64, float64) {
	labels := make([]string, 0, len(weights))
	for label, w := range weights {
		if w <= 0 {
			continue
		}
		if _, ok := g.Lookup(label); ok {
			labels = append(labels, label)
		}
	}
	sort.Strings(labels)

	ids := make([]NodeID, len(labels))
	ws := make([]float64, len(labels))
	var total float64
	for i, label := range labels {
		id, _ := g.Lookup(label)
		ids[i] = id
		ws[i] = weights[label]
		total += weights[label]
	}
	return ids, ws, total
}

// weightedChoice draws one node proportional to its weight.
func weightedChoice(ids []NodeID, weights []float64, total float64, rng Sampler) NodeID {
	r := rng.Float64() * total
	for i, w := range weights {
		r -= w
		if r < 0 {
			return ids[i]
		}
	}
	return ids[len(ids)-1]
}

// sampleEdge draws one edge at the node proportional to its
// directional probability. Edge order is the arena insertion order,
// which is deterministic for a given build.
func sampleEdge(g *Graph, at NodeID, dir Direction, rng Sampler) (EdgeID, bool) {
	var candidates []EdgeID
	if dir == Forward {
		candidates = g.Node(at).Out
	} else {
		candidates = g.Node(at).In
	}
	if len(candidates) == 0 {
		return 0, false
	}

	var total float64
	for _, e := range candidates {
		total += directional(g.Edge(e), dir)
	}
	if total <= 0 {
		return 0, false
	}

	r := rng.Float64() * total
	for _, e := range candidates {
		r -= directional(g.Edge(e), dir)
		if r < 0 {
			return e, true
		}
	}
	return candidates[len(candidates)-1], true
}

func directional(e *Edge, dir Direction) float64 {
	if dir == Forward {
		return e.Forward
	}
	return e.Backward
}
