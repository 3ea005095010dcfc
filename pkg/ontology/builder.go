package ontology

import (
	"context"
	"fmt"

	"github.com/orneryd/huginn/pkg/cache"
	"github.com/orneryd/huginn/pkg/rdf"
	"github.com/orneryd/huginn/pkg/store"
)

// adjacency is the cached form of the class-relation graph.
type adjacency struct {
	Classes []string        `json:"classes"`
	Edges   []adjacencyEdge `json:"edges"`
}

type adjacencyEdge struct {
	From      string  `json:"from"`
	Predicate string  `json:"predicate"`
	To        string  `json:"to"`
	Count     float64 `json:"count"`
}

// Builder derives the class-relation graph from the dataset, caching
// the adjacency list stamped with the dataset version.
type Builder struct {
	store   *store.Store
	cache   cache.Cache
	dataset string
}

// NewBuilder creates a graph builder for a named dataset.
func NewBuilder(st *store.Store, c cache.Cache, dataset string) *Builder {
	return &Builder{store: st, cache: c, dataset: dataset}
}

func (b *Builder) cacheKey() string {
	return "relations " + b.dataset
}

// Build queries the dataset for every class and its outgoing relations
// and materializes the class-relation graph. Predicate uses whose
// objects carry no class become edges to the literal sink; the type
// predicate itself never appears as a relation.
func (b *Builder) Build(ctx context.Context) (*Graph, error) {
	version := b.store.HistoryVersion()

	var adj adjacency
	hit, err := b.cache.Get(b.cacheKey(), version, &adj)
	if err == nil && hit {
		return materialize(adj), nil
	}

	adj, err = b.queryAdjacency(ctx)
	if err != nil {
		return nil, err
	}
	if err := b.cache.Put(b.cacheKey(), version, adj); err != nil {
		return nil, fmt.Errorf("persisting relation cache: %w", err)
	}
	return materialize(adj), nil
}

func (b *Builder) queryAdjacency(ctx context.Context) (adjacency, error) {
	var adj adjacency

	classRows, err := b.store.Query(ctx, `SELECT DISTINCT ?class WHERE { ?s a ?class . }`)
	if err != nil {
		return adj, err
	}
	for _, row := range classRows {
		adj.Classes = append(adj.Classes, rdf.ValueOf(row.Get("class")))
	}

	for _, class := range adj.Classes {
		classIRI := rdf.IRI(class)

		// Relations landing on typed objects.
		typed, err := b.store.Query(ctx, fmt.Sprintf(`
			SELECT ?p ?target (COUNT(*) AS ?n) WHERE {
				?s a %s .
				?s ?p ?o .
				?o a ?target .
			}
			GROUP BY ?p ?target`, classIRI))
		if err != nil {
			return adj, err
		}
		for _, row := range typed {
			pred := rdf.ValueOf(row.Get("p"))
			if rdf.IRI(pred) == rdf.TypePredicate {
				continue
			}
			n, _ := row.Get("n").(rdf.Literal).Float()
			adj.Edges = append(adj.Edges, adjacencyEdge{
				From:      class,
				Predicate: pred,
				To:        rdf.ValueOf(row.Get("target")),
				Count:     n,
			})
		}

		// Uses whose object has no class feed the literal sink.
		untyped, err := b.store.Query(ctx, fmt.Sprintf(`
			SELECT ?p (COUNT(*) AS ?n) WHERE {
				?s a %s .
				?s ?p ?o .
				FILTER NOT EXISTS { ?o a ?t . }
			}
			GROUP BY ?p`, classIRI))
		if err != nil {
			return adj, err
		}
		for _, row := range untyped {
			pred := rdf.ValueOf(row.Get("p"))
			if rdf.IRI(pred) == rdf.TypePredicate {
				continue
			}
			n, _ := row.Get("n").(rdf.Literal).Float()
			adj.Edges = append(adj.Edges, adjacencyEdge{
				From:      class,
				Predicate: pred,
				To:        LiteralLabel,
				Count:     n,
			})
		}
	}
	return adj, nil
}

func materialize(adj adjacency) *Graph {
	g := NewGraph()
	for _, class := range adj.Classes {
		g.AddNode(class)
	}
	g.AddNode(LiteralLabel)
	for _, e := range adj.Edges {
		from := g.AddNode(e.From)
		to := g.AddNode(e.To)
		g.AddEdge(from, to, e.Predicate, e.Count)
	}
	return g
}
