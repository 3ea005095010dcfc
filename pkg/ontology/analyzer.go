package ontology

import (
	"context"
	"fmt"
	"log"
	"math/rand"

	"github.com/orneryd/huginn/pkg/cache"
	"github.com/orneryd/huginn/pkg/classifier"
	"github.com/orneryd/huginn/pkg/rdf"
	"github.com/orneryd/huginn/pkg/store"
)

// Analyzer coordinates the full analysis pipeline: graph build,
// reachability ordering, iterative pruning, predicate analysis, score
// fusion and the mutation pass.
type Analyzer struct {
	store      *store.Store
	cache      cache.Cache
	classifier classifier.Classifier
	dataset    string
	rng        Sampler
	apply      bool
}

// Config wires the analyzer's collaborators.
type Config struct {
	Store      *store.Store
	Cache      cache.Cache
	Classifier classifier.Classifier
	// Dataset names the dataset in cache keys.
	Dataset string
	// Rand is the simulation randomness source; nil selects a
	// time-seeded source. Tests inject a seeded one.
	Rand Sampler
	// Apply enables the mutation pass. Without it the analysis is a
	// dry run: decisions are reported but the dataset stays untouched.
	Apply bool
}

// NewAnalyzer creates an analyzer from its configuration.
func NewAnalyzer(cfg Config) *Analyzer {
	rng := cfg.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}
	return &Analyzer{
		store:      cfg.Store,
		cache:      cfg.Cache,
		classifier: cfg.Classifier,
		dataset:    cfg.Dataset,
		rng:        rng,
		apply:      cfg.Apply,
	}
}

// Report is the outcome of one analysis run.
type Report struct {
	// Root is the synthesized root class IRI.
	Root string
	// Keep lists the surviving classes, leaves first.
	Keep []string
	// ClassScores holds each evaluated class's last composite score.
	ClassScores map[string]float64
	// Rounds holds each class's final pruning round record.
	Rounds map[string]RoundRecord
	// Ranking lists every evaluated class sorted for reporting: score
	// descending, ties broken by the later-surviving round.
	Ranking []RoundRecord
	// Predicates maps kept classes to their scored predicate stats,
	// sorted by score descending. A nil slice means the class had no
	// qualifying predicates.
	Predicates map[string][]PredicateStats
	// Applied reports whether the mutation pass ran.
	Applied bool
}

// Analyze runs the pipeline for a root class hint ("Book" resolves to
// the schema.org book class). Failures carry the phase they occurred
// in; the dataset keeps whatever state the last successful update left.
func (a *Analyzer) Analyze(ctx context.Context, rootHint string) (*Report, error) {
	root := string(rdf.SchemaIRI(rootHint))

	builder := NewBuilder(a.store, a.cache, a.dataset)
	graph, err := builder.Build(ctx)
	if err != nil {
		return nil, fmt.Errorf("graph build: %w", err)
	}
	log.Printf("ontology: graph built with %d nodes", graph.NodeCount())

	order := Order(graph, root)
	if len(order) == 0 {
		return nil, fmt.Errorf("reachability: root class %s not present in graph", root)
	}

	counts, err := a.entityCounts(ctx, order)
	if err != nil {
		return nil, fmt.Errorf("pruning: %w", err)
	}
	pruned := Prune(graph, order, counts, a.rng)
	log.Printf("ontology: pruning kept %d of %d classes", len(pruned.Keep), len(order))

	report := &Report{
		Root:        root,
		ClassScores: pruned.Scores,
		Rounds:      pruned.Records,
		Ranking:     pruned.Ranking,
		Predicates:  map[string][]PredicateStats{},
	}
	for _, rec := range pruned.Keep {
		report.Keep = append(report.Keep, rec.Class)
	}

	analyzer := NewPredicateAnalyzer(a.store, a.cache, a.dataset)
	for _, class := range report.Keep {
		stats, err := analyzer.Analyze(ctx, class, pruned.Final.EdgeRank[class])
		if err != nil {
			return nil, fmt.Errorf("predicate analysis for %s: %w", class, err)
		}
		if stats == nil {
			// No qualifying predicates; a valid terminal state.
			report.Predicates[class] = nil
			continue
		}
		scored, err := ComputeScores(stats, a.classifier)
		if err != nil {
			return nil, fmt.Errorf("score fusion for %s: %w", class, err)
		}
		report.Predicates[class] = scored
	}

	if !a.apply {
		return report, nil
	}

	mutator := NewMutator(a.store)
	if err := mutator.ApplyKeepSet(ctx, report.Keep); err != nil {
		return report, fmt.Errorf("mutation (keep-set): %w", err)
	}
	for class, stats := range report.Predicates {
		if err := mutator.DropPredicates(ctx, class, stats); err != nil {
			return report, fmt.Errorf("mutation (predicates for %s): %w", class, err)
		}
	}
	if err := mutator.ResolveDuplicateTypes(ctx, report.ClassScores); err != nil {
		return report, fmt.Errorf("mutation (duplicate types): %w", err)
	}
	report.Applied = true
	return report, nil
}

// entityCounts queries the instance count of every ordered class.
func (a *Analyzer) entityCounts(ctx context.Context, order []ReachRecord) (map[string]float64, error) {
	counts := make(map[string]float64, len(order))
	for _, rec := range order {
		rows, err := a.store.Query(ctx, fmt.Sprintf(
			`SELECT (COUNT(DISTINCT ?s) AS ?n) WHERE { ?s a %s . }`, rdf.IRI(rec.Class)))
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			continue
		}
		if lit, ok := rows[0].Get("n").(rdf.Literal); ok {
			if n, err := lit.Float(); err == nil {
				counts[rec.Class] = n
			}
		}
	}
	return counts, nil
}
