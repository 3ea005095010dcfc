package ontology

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/orneryd/huginn/pkg/cache"
	"github.com/orneryd/huginn/pkg/rdf"
	"github.com/orneryd/huginn/pkg/store"
)

const (
	// uniquenessTolerance decides when a predicate's objects are
	// entirely unique (a pure identifier, no structural signal).
	uniquenessTolerance = 1e-9

	// normalizeTolerance treats a column as constant during min-max
	// scaling.
	normalizeTolerance = 1e-12

	// analyzeWorkers is the fan-out width for per-predicate stats.
	analyzeWorkers = 4
)

// PredicateStats is the scored profile of one predicate on a class.
type PredicateStats struct {
	Predicate  string  `json:"predicate"`
	Frequency  float64 `json:"frequency"`
	Uniqueness float64 `json:"uniqueness"`
	Entropy    float64 `json:"entropy"`
	Quality    float64 `json:"quality"`
	EdgeRank   float64 `json:"edgeRank"`
	Score      float64 `json:"score"`
	Confidence float64 `json:"confidence"`
	Kept       bool    `json:"kept"`
}

// PredicateAnalyzer computes per-predicate statistics for a class,
// cached against the dataset version.
type PredicateAnalyzer struct {
	store   *store.Store
	cache   cache.Cache
	dataset string
}

// NewPredicateAnalyzer creates an analyzer bound to a named dataset.
func NewPredicateAnalyzer(st *store.Store, c cache.Cache, dataset string) *PredicateAnalyzer {
	return &PredicateAnalyzer{store: st, cache: c, dataset: dataset}
}

func (a *PredicateAnalyzer) cacheKey(class string) string {
	return "predicates " + a.dataset + " " + cache.SanitizeKey(class)
}

// Analyze computes (or loads) the statistics for every qualifying
// predicate on the class. Predicates whose objects are entirely unique
// are discarded; a class left without qualifying predicates yields a
// nil slice, which is a valid terminal state and not an error. Scores
// and keep decisions are NOT set here: fused scoring runs on every
// call so a swapped classifier re-decides over cached statistics.
func (a *PredicateAnalyzer) Analyze(ctx context.Context, class string, edgeRank map[string]float64) ([]PredicateStats, error) {
	version := a.store.HistoryVersion()

	var cached []PredicateStats
	hit, err := a.cache.Get(a.cacheKey(class), version, &cached)
	if err == nil && hit {
		return cached, nil
	}

	stats, err := a.compute(ctx, class, edgeRank)
	if err != nil {
		return nil, err
	}
	if err := a.cache.Put(a.cacheKey(class), version, stats); err != nil {
		return nil, fmt.Errorf("persisting predicate cache: %w", err)
	}
	return stats, nil
}

func (a *PredicateAnalyzer) compute(ctx context.Context, class string, edgeRank map[string]float64) ([]PredicateStats, error) {
	classIRI := rdf.IRI(class)

	total, err := a.countRows(ctx, fmt.Sprintf(
		`SELECT (COUNT(DISTINCT ?s) AS ?n) WHERE { ?s a %s . }`, classIRI))
	if err != nil {
		return nil, err
	}
	if total == 0 {
		return nil, nil
	}

	predRows, err := a.store.Query(ctx, fmt.Sprintf(
		`SELECT DISTINCT ?p WHERE { ?s a %s . ?s ?p ?o . }`, classIRI))
	if err != nil {
		return nil, err
	}
	var predicates []string
	for _, row := range predRows {
		p := rdf.ValueOf(row.Get("p"))
		if rdf.IRI(p) != rdf.TypePredicate {
			predicates = append(predicates, p)
		}
	}
	if len(predicates) == 0 {
		return nil, nil
	}

	// Fixed worker pool; each slot is written by exactly one worker.
	results := make([]PredicateStats, len(predicates))
	errs := make([]error, len(predicates))
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < analyzeWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i], errs[i] = a.predicateStats(ctx, classIRI, predicates[i], total)
			}
		}()
	}
	for i := range predicates {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	// Entirely unique predicates carry no structural signal.
	var stats []PredicateStats
	for _, s := range results {
		if math.Abs(s.Uniqueness-1.0) <= uniquenessTolerance {
			continue
		}
		s.EdgeRank = edgeRank[s.Predicate]
		stats = append(stats, s)
	}
	if len(stats) == 0 {
		return nil, nil
	}

	normalizeField(stats, func(s *PredicateStats) *float64 { return &s.Entropy })
	normalizeField(stats, func(s *PredicateStats) *float64 { return &s.Quality })
	return stats, nil
}

// predicateStats computes the raw statistics of one predicate.
func (a *PredicateAnalyzer) predicateStats(ctx context.Context, class rdf.IRI, predicate string, classTotal float64) (PredicateStats, error) {
	pred := rdf.IRI(predicate)
	stats := PredicateStats{Predicate: predicate}

	subjects, err := a.countRows(ctx, fmt.Sprintf(
		`SELECT (COUNT(DISTINCT ?s) AS ?n) WHERE { ?s a %s . ?s %s ?o . }`, class, pred))
	if err != nil {
		return stats, err
	}
	uses, err := a.countRows(ctx, fmt.Sprintf(
		`SELECT (COUNT(*) AS ?n) WHERE { ?s a %s . ?s %s ?o . }`, class, pred))
	if err != nil {
		return stats, err
	}
	distinctObjects, err := a.countRows(ctx, fmt.Sprintf(
		`SELECT (COUNT(DISTINCT ?o) AS ?n) WHERE { ?s a %s . ?s %s ?o . }`, class, pred))
	if err != nil {
		return stats, err
	}
	if uses == 0 {
		return stats, nil
	}

	stats.Frequency = subjects / classTotal
	stats.Uniqueness = distinctObjects / uses

	// Object-value group sizes feed the entropy.
	groupRows, err := a.store.Query(ctx, fmt.Sprintf(
		`SELECT ?o (COUNT(*) AS ?n) WHERE { ?s a %s . ?s %s ?o . } GROUP BY ?o`, class, pred))
	if err != nil {
		return stats, err
	}
	groups := make([]float64, 0, len(groupRows))
	for _, row := range groupRows {
		n, _ := row.Get("n").(rdf.Literal).Float()
		groups = append(groups, n)
	}
	stats.Entropy = entropy(groups)

	quality, err := a.quality(ctx, class, pred)
	if err != nil {
		return stats, err
	}
	stats.Quality = quality
	return stats, nil
}

// quality rewards predicates that co-occur with few sibling predicates:
// per subject, the predicate's use count divided by the number of its
// sibling predicates (at least 1), summed across subjects. The type
// predicate never counts as a sibling.
func (a *PredicateAnalyzer) quality(ctx context.Context, class, pred rdf.IRI) (float64, error) {
	usesPerSubject, err := a.store.Query(ctx, fmt.Sprintf(
		`SELECT ?s (COUNT(*) AS ?n) WHERE { ?s a %s . ?s %s ?o . } GROUP BY ?s`, class, pred))
	if err != nil {
		return 0, err
	}
	distinctPerSubject, err := a.store.Query(ctx, fmt.Sprintf(
		`SELECT ?s (COUNT(DISTINCT ?q) AS ?m) WHERE {
			?s a %s .
			?s %s ?o .
			?s ?q ?any .
			FILTER(?q != %s)
		} GROUP BY ?s`, class, pred, rdf.TypePredicate))
	if err != nil {
		return 0, err
	}

	distinct := make(map[string]float64, len(distinctPerSubject))
	for _, row := range distinctPerSubject {
		m, _ := row.Get("m").(rdf.Literal).Float()
		distinct[rdf.ValueOf(row.Get("s"))] = m
	}

	var quality float64
	for _, row := range usesPerSubject {
		n, _ := row.Get("n").(rdf.Literal).Float()
		siblings := distinct[rdf.ValueOf(row.Get("s"))] - 1 // exclude the predicate itself
		if siblings < 1 {
			siblings = 1
		}
		quality += n / siblings
	}
	return quality, nil
}

func (a *PredicateAnalyzer) countRows(ctx context.Context, query string) (float64, error) {
	rows, err := a.store.Query(ctx, query)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	lit, ok := rows[0].Get("n").(rdf.Literal)
	if !ok {
		return 0, nil
	}
	n, err := lit.Float()
	if err != nil {
		return 0, nil
	}
	return n, nil
}

// ============================================================================
// Statistics helpers
// ============================================================================

// entropy computes the base-2 Shannon entropy of a multiset of group
// sizes. Zero-size groups contribute nothing.
func entropy(groups []float64) float64 {
	var total float64
	for _, n := range groups {
		total += n
	}
	if total == 0 {
		return 0
	}
	var h float64
	for _, n := range groups {
		if n <= 0 {
			continue
		}
		p := n / total
		h -= p * math.Log2(p)
	}
	return h
}

// normalizeColumn min-max scales values into [0,1] in place. A
// constant column becomes all zeros.
func normalizeColumn(values []float64) {
	if len(values) == 0 {
		return
	}
	minV, maxV := values[0], values[0]
	for _, v := range values[1:] {
		minV = math.Min(minV, v)
		maxV = math.Max(maxV, v)
	}
	span := maxV - minV
	if span < normalizeTolerance {
		for i := range values {
			values[i] = 0
		}
		return
	}
	for i := range values {
		values[i] = (values[i] - minV) / span
	}
}

func normalizeField(stats []PredicateStats, field func(*PredicateStats) *float64) {
	column := make([]float64, len(stats))
	for i := range stats {
		column[i] = *field(&stats[i])
	}
	normalizeColumn(column)
	for i := range stats {
		*field(&stats[i]) = column[i]
	}
}
