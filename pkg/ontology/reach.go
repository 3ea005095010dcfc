package ontology

// ReachRecord is one class reachable from the root with its BFS depth.
type ReachRecord struct {
	Class string
	Depth int
}

// Order walks the graph breadth-first from the root along outgoing
// edges, skipping the literal sink, and returns the reachable classes
// in reverse discovery order: deepest-discovered first, so pruning
// decisions later propagate from the leaves toward the root.
// Classes unreachable from the root never appear.
func Order(g *Graph, root string) []ReachRecord {
	start, ok := g.Lookup(root)
	if !ok {
		return nil
	}

	visited := map[NodeID]bool{start: true}
	queue := []ReachRecord{{Class: root, Depth: 0}}
	ids := []NodeID{start}
	var discovered []ReachRecord

	for len(queue) > 0 {
		rec := queue[0]
		id := ids[0]
		queue, ids = queue[1:], ids[1:]
		discovered = append(discovered, rec)

		for _, e := range g.Node(id).Out {
			to := g.Edge(e).To
			dest := g.Node(to)
			if dest.Label == LiteralLabel || visited[to] {
				continue
			}
			visited[to] = true
			queue = append(queue, ReachRecord{Class: dest.Label, Depth: rec.Depth + 1})
			ids = append(ids, to)
		}
	}

	// Reverse discovery order.
	for i, j := 0, len(discovered)-1; i < j; i, j = i+1, j-1 {
		discovered[i], discovered[j] = discovered[j], discovered[i]
	}
	return discovered
}
