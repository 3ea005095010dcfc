package ontology

import (
	"math"
	"math/rand"
	"testing"
)

func TestRankBookAuthorPerson(t *testing.T) {
	// Book --author--> Person, single outgoing edge with probability
	// 1; every walk starts at Book and reaches Person in one hop, then
	// stops (Person has no outgoing edges).
	g := NewGraph()
	book := g.AddNode("http://schema.org/book")
	person := g.AddNode("http://schema.org/person")
	g.AddEdge(book, person, "http://schema.org/author", 100)
	g.ComputeProbabilities()

	weights := map[string]float64{"http://schema.org/book": 100}
	rng := rand.New(rand.NewSource(42))

	tables := Rank(g, Forward, weights, rng)

	if got := tables.PageRank["http://schema.org/person"]; math.Abs(got-1.0) > 0.02 {
		t.Errorf("forwardRank[Person] = %v, want ~1.0", got)
	}
	if got := tables.PageRank["http://schema.org/book"]; math.Abs(got-1.0) > 0.02 {
		t.Errorf("forwardRank[Book] = %v, want ~1.0 (start visits)", got)
	}
	// Every edge traversal is the author edge.
	if got := tables.EdgeRank["http://schema.org/book"]["http://schema.org/author"]; math.Abs(got-1.0) > 1e-9 {
		t.Errorf("edgeRank[Book][author] = %v, want 1.0", got)
	}
}

func TestRankLiteralSinkAbsorbsMass(t *testing.T) {
	// Book's only edge leads to the literal sink; each walk credits
	// Book with the edge's forward probability (1.0) and stops.
	g := NewGraph()
	book := g.AddNode("http://schema.org/book")
	lit := g.AddNode(LiteralLabel)
	g.AddEdge(book, lit, "http://schema.org/name", 50)
	g.ComputeProbabilities()

	weights := map[string]float64{"http://schema.org/book": 50}
	tables := Rank(g, Forward, weights, rand.New(rand.NewSource(7)))

	// Start visit + absorbed probability per walk: 2.0 over 1 start.
	if got := tables.PageRank["http://schema.org/book"]; math.Abs(got-2.0) > 1e-9 {
		t.Errorf("forwardRank[Book] = %v, want 2.0", got)
	}
	if _, ok := tables.PageRank[LiteralLabel]; ok {
		t.Error("literal sink must never be visited")
	}
}

func TestRankBackwardDirection(t *testing.T) {
	g := NewGraph()
	book := g.AddNode("http://schema.org/book")
	person := g.AddNode("http://schema.org/person")
	g.AddEdge(book, person, "http://schema.org/author", 100)
	g.ComputeProbabilities()

	// Backward walks start at Person and step to Book via the
	// incoming author edge.
	weights := map[string]float64{"http://schema.org/person": 80}
	tables := Rank(g, Backward, weights, rand.New(rand.NewSource(1)))

	if got := tables.PageRank["http://schema.org/book"]; math.Abs(got-1.0) > 0.02 {
		t.Errorf("backwardRank[Book] = %v, want ~1.0", got)
	}
}

func TestRankSeededReproducibility(t *testing.T) {
	g := NewGraph()
	a := g.AddNode("a")
	b := g.AddNode("b")
	c := g.AddNode("c")
	g.AddEdge(a, b, "p", 3)
	g.AddEdge(a, c, "q", 1)
	g.ComputeProbabilities()

	weights := map[string]float64{"a": 10}
	first := Rank(g, Forward, weights, rand.New(rand.NewSource(99)))
	second := Rank(g, Forward, weights, rand.New(rand.NewSource(99)))

	for class, rank := range first.PageRank {
		if second.PageRank[class] != rank {
			t.Errorf("rank for %s differs across identical seeds", class)
		}
	}
}

func TestRankNoEligibleStarts(t *testing.T) {
	g := NewGraph()
	g.AddNode("a")

	tables := Rank(g, Forward, map[string]float64{"a": 0}, rand.New(rand.NewSource(1)))
	if len(tables.PageRank) != 0 {
		t.Errorf("expected empty tables, got %v", tables.PageRank)
	}
}
