package ontology

import (
	"math/rand"
	"testing"
)

func TestPruneRetainsDominantClass(t *testing.T) {
	// hub sits at the root with overwhelming entity count; leaves hang
	// off it with tiny counts.
	g := NewGraph()
	hub := g.AddNode("hub")
	for _, leaf := range []string{"leaf1", "leaf2", "leaf3", "leaf4"} {
		id := g.AddNode(leaf)
		g.AddEdge(hub, id, "rel-"+leaf, 5)
		g.AddEdge(id, hub, "back-"+leaf, 5)
	}

	order := Order(g, "hub")
	counts := map[string]float64{
		"hub":   100000,
		"leaf1": 2,
		"leaf2": 2,
		"leaf3": 2,
		"leaf4": 2,
	}

	result := Prune(g, order, counts, rand.New(rand.NewSource(11)))

	found := false
	for _, rec := range result.Keep {
		if rec.Class == "hub" {
			found = true
		}
	}
	if !found {
		t.Fatalf("dominant class pruned; keep = %v", result.Keep)
	}
	if rec := result.Records["hub"]; !rec.Kept {
		t.Errorf("hub's final record not kept: %+v", rec)
	}
	if _, ok := result.Scores["hub"]; !ok {
		t.Error("hub has no recorded score")
	}
}

func TestPruneRecordsRemovedClasses(t *testing.T) {
	g := NewGraph()
	a := g.AddNode("a")
	b := g.AddNode("b")
	c := g.AddNode("c")
	g.AddEdge(a, b, "p", 10)
	g.AddEdge(a, c, "q", 1)

	order := Order(g, "a")
	counts := map[string]float64{"a": 1000, "b": 500, "c": 1}

	result := Prune(g, order, counts, rand.New(rand.NewSource(3)))

	// Every evaluated class keeps a record and a score, removed or
	// not.
	for _, class := range []string{"a", "b", "c"} {
		if _, ok := result.Records[class]; !ok {
			t.Errorf("class %s has no round record", class)
		}
		if _, ok := result.Scores[class]; !ok {
			t.Errorf("class %s has no score", class)
		}
	}

	// Removed classes are not in the keep-set.
	keep := map[string]bool{}
	for _, rec := range result.Keep {
		keep[rec.Class] = true
	}
	for class, rec := range result.Records {
		if !rec.Kept && keep[class] {
			t.Errorf("class %s recorded removed but present in keep-set", class)
		}
	}
}

func TestRankRecordsOrdering(t *testing.T) {
	records := map[string]RoundRecord{
		"low":        {Class: "low", Score: 0.2, Round: 0},
		"high":       {Class: "high", Score: 0.9, Round: 1},
		"tied-early": {Class: "tied-early", Score: 0.5, Round: 0},
		"tied-late":  {Class: "tied-late", Score: 0.5, Round: 2},
	}

	got := rankRecords(records)
	want := []string{"high", "tied-late", "tied-early", "low"}
	if len(got) != len(want) {
		t.Fatalf("rankRecords returned %d records, want %d", len(got), len(want))
	}
	for i, class := range want {
		if got[i].Class != class {
			t.Errorf("rank %d = %s, want %s", i, got[i].Class, class)
		}
	}
}

func TestPruneRankingSorted(t *testing.T) {
	g := NewGraph()
	a := g.AddNode("a")
	b := g.AddNode("b")
	c := g.AddNode("c")
	g.AddEdge(a, b, "p", 10)
	g.AddEdge(a, c, "q", 1)

	order := Order(g, "a")
	counts := map[string]float64{"a": 1000, "b": 500, "c": 1}

	result := Prune(g, order, counts, rand.New(rand.NewSource(3)))

	if len(result.Ranking) != len(result.Records) {
		t.Fatalf("ranking has %d records, want %d", len(result.Ranking), len(result.Records))
	}
	for i := 1; i < len(result.Ranking); i++ {
		prev, cur := result.Ranking[i-1], result.Ranking[i]
		if cur.Score > prev.Score {
			t.Errorf("ranking not score-descending at %d: %v before %v", i, prev, cur)
		}
		if cur.Score == prev.Score && cur.Round > prev.Round {
			t.Errorf("tie at %d not broken by later round: %v before %v", i, prev, cur)
		}
	}
}

func TestPruneDoesNotMutateInputs(t *testing.T) {
	g := twoClassGraph()
	order := Order(g, "http://schema.org/book")
	counts := map[string]float64{
		"http://schema.org/book":   100,
		"http://schema.org/person": 80,
	}

	Prune(g, order, counts, rand.New(rand.NewSource(5)))

	if len(counts) != 2 {
		t.Errorf("input counts mutated: %v", counts)
	}
	if g.NodeCount() != 3 {
		t.Errorf("input graph mutated: %d nodes", g.NodeCount())
	}
}
