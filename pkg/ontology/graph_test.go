package ontology

import (
	"math"
	"testing"
)

// twoClassGraph builds Book --author--> Person plus a literal name
// edge from Book.
func twoClassGraph() *Graph {
	g := NewGraph()
	book := g.AddNode("http://schema.org/book")
	person := g.AddNode("http://schema.org/person")
	lit := g.AddNode(LiteralLabel)
	g.AddEdge(book, person, "http://schema.org/author", 100)
	g.AddEdge(book, lit, "http://schema.org/name", 100)
	return g
}

func TestComputeProbabilitiesSumToOne(t *testing.T) {
	g := twoClassGraph()
	g.ComputeProbabilities()

	for i := 0; i < g.NodeCount(); i++ {
		n := g.Node(NodeID(i))
		if len(n.Out) == 0 {
			continue
		}
		var sum float64
		for _, e := range n.Out {
			sum += g.Edge(e).Forward
		}
		if math.Abs(sum-1.0) > 1e-9 {
			t.Errorf("node %s: forward probabilities sum to %v", n.Label, sum)
		}
	}

	for i := 0; i < g.NodeCount(); i++ {
		n := g.Node(NodeID(i))
		if len(n.In) == 0 {
			continue
		}
		var sum float64
		for _, e := range n.In {
			sum += g.Edge(e).Backward
		}
		if math.Abs(sum-1.0) > 1e-9 {
			t.Errorf("node %s: backward probabilities sum to %v", n.Label, sum)
		}
	}
}

func TestProbabilitiesProportionalToCounts(t *testing.T) {
	g := NewGraph()
	a := g.AddNode("a")
	b := g.AddNode("b")
	c := g.AddNode("c")
	g.AddEdge(a, b, "p", 30)
	g.AddEdge(a, c, "q", 10)
	g.ComputeProbabilities()

	if got := g.Edge(0).Forward; math.Abs(got-0.75) > 1e-9 {
		t.Errorf("edge p forward = %v, want 0.75", got)
	}
	if got := g.Edge(1).Forward; math.Abs(got-0.25) > 1e-9 {
		t.Errorf("edge q forward = %v, want 0.25", got)
	}
}

func TestWithoutSnapshotsGraph(t *testing.T) {
	g := twoClassGraph()
	shrunk := g.Without(map[string]bool{"http://schema.org/person": true})

	if shrunk.NodeCount() != 2 {
		t.Fatalf("shrunk node count = %d, want 2", shrunk.NodeCount())
	}
	if _, ok := shrunk.Lookup("http://schema.org/person"); ok {
		t.Error("removed node still present")
	}
	// The author edge went with its endpoint; the literal edge stays.
	book, _ := shrunk.Lookup("http://schema.org/book")
	if len(shrunk.Node(book).Out) != 1 {
		t.Errorf("book out-degree = %d, want 1", len(shrunk.Node(book).Out))
	}

	// Original untouched.
	if g.NodeCount() != 3 {
		t.Errorf("original mutated: node count = %d", g.NodeCount())
	}
}
