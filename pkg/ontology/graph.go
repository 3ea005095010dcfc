// Package ontology implements the ontology structure analyzer: it
// derives a class-relation graph from the dataset, estimates class and
// predicate importance by random-walk simulation, prunes the graph over
// multiple rounds, scores predicates with information-theoretic
// statistics fused with a classifier confidence, and feeds the
// decisions back into the dataset as audited mutations.
package ontology

import (
	"sort"
)

// LiteralLabel is the synthetic sink node absorbing edges whose objects
// carry no class.
const LiteralLabel = "Literal"

// NodeID and EdgeID are arena handles into a Graph. They are never
// raw pointers; the arena stays valid while the graph shrinks by
// snapshot (see Without).
type (
	NodeID int
	EdgeID int
)

// Node is one class (or the literal sink) in the class-relation graph.
type Node struct {
	Label string
	Out   []EdgeID
	In    []EdgeID
}

// Edge is a directed class-to-class relation through one predicate.
// Forward and Backward are the directional probabilities computed from
// Count (see ComputeProbabilities).
type Edge struct {
	From      NodeID
	To        NodeID
	Predicate string
	Count     float64
	Forward   float64
	Backward  float64
}

// Graph is an arena-backed directed multigraph over class labels.
type Graph struct {
	nodes []Node
	edges []Edge
	index map[string]NodeID
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{index: make(map[string]NodeID)}
}

// AddNode returns the node for a label, creating it on first use.
func (g *Graph) AddNode(label string) NodeID {
	if id, ok := g.index[label]; ok {
		return id
	}
	id := NodeID(len(g.nodes))
	g.nodes = append(g.nodes, Node{Label: label})
	g.index[label] = id
	return id
}

// AddEdge inserts a directed edge and registers it on both endpoints.
func (g *Graph) AddEdge(from, to NodeID, predicate string, count float64) EdgeID {
	id := EdgeID(len(g.edges))
	g.edges = append(g.edges, Edge{From: from, To: to, Predicate: predicate, Count: count})
	g.nodes[from].Out = append(g.nodes[from].Out, id)
	g.nodes[to].In = append(g.nodes[to].In, id)
	return id
}

// Lookup resolves a label to its node handle.
func (g *Graph) Lookup(label string) (NodeID, bool) {
	id, ok := g.index[label]
	return id, ok
}

// Node returns the node for a handle.
func (g *Graph) Node(id NodeID) *Node { return &g.nodes[id] }

// Edge returns the edge for a handle.
func (g *Graph) Edge(id EdgeID) *Edge { return &g.edges[id] }

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// Labels returns all node labels in sorted order.
func (g *Graph) Labels() []string {
	labels := make([]string, 0, len(g.nodes))
	for _, n := range g.nodes {
		labels = append(labels, n.Label)
	}
	sort.Strings(labels)
	return labels
}

// ComputeProbabilities sets every edge's directional probabilities:
// per node and direction, an edge's probability is its count divided
// by the node's total count in that direction. Nodes without edges in
// a direction are left unset.
func (g *Graph) ComputeProbabilities() {
	for i := range g.nodes {
		n := &g.nodes[i]

		var outSum float64
		for _, e := range n.Out {
			outSum += g.edges[e].Count
		}
		if outSum > 0 {
			for _, e := range n.Out {
				g.edges[e].Forward = g.edges[e].Count / outSum
			}
		}

		var inSum float64
		for _, e := range n.In {
			inSum += g.edges[e].Count
		}
		if inSum > 0 {
			for _, e := range n.In {
				g.edges[e].Backward = g.edges[e].Count / inSum
			}
		}
	}
}

// Without builds a new graph snapshot excluding the given labels and
// every edge touching them. The receiver is left untouched, so handles
// held into it stay valid while the pruning loop works on the
// snapshot.
func (g *Graph) Without(remove map[string]bool) *Graph {
	out := NewGraph()
	for _, n := range g.nodes {
		if !remove[n.Label] {
			out.AddNode(n.Label)
		}
	}
	for _, e := range g.edges {
		from := g.nodes[e.From].Label
		to := g.nodes[e.To].Label
		if remove[from] || remove[to] {
			continue
		}
		fid, _ := out.Lookup(from)
		tid, _ := out.Lookup(to)
		out.AddEdge(fid, tid, e.Predicate, e.Count)
	}
	return out
}
