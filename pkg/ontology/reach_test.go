package ontology

import (
	"reflect"
	"testing"
)

func TestOrderReverseDiscovery(t *testing.T) {
	// root -> a -> b, root -> Literal, c disconnected.
	g := NewGraph()
	root := g.AddNode("root")
	a := g.AddNode("a")
	b := g.AddNode("b")
	lit := g.AddNode(LiteralLabel)
	g.AddNode("c")
	g.AddEdge(root, a, "p", 1)
	g.AddEdge(a, b, "q", 1)
	g.AddEdge(root, lit, "r", 1)

	got := Order(g, "root")
	want := []ReachRecord{
		{Class: "b", Depth: 2},
		{Class: "a", Depth: 1},
		{Class: "root", Depth: 0},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Order = %v, want %v", got, want)
	}
}

func TestOrderCycleVisitedOnce(t *testing.T) {
	g := NewGraph()
	x := g.AddNode("x")
	y := g.AddNode("y")
	g.AddEdge(x, y, "p", 1)
	g.AddEdge(y, x, "q", 1)

	got := Order(g, "x")
	if len(got) != 2 {
		t.Fatalf("Order returned %d records, want 2", len(got))
	}
	if got[0].Class != "y" || got[1].Class != "x" {
		t.Errorf("Order = %v", got)
	}
}

func TestOrderMissingRoot(t *testing.T) {
	g := NewGraph()
	g.AddNode("a")
	if got := Order(g, "nope"); got != nil {
		t.Errorf("Order for missing root = %v, want nil", got)
	}
}
