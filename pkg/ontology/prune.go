package ontology

import (
	"math"
	"sort"
)

// pruneLevels is the number of pruning rounds.
const pruneLevels = 3

// RoundRecord captures one class's state in its last evaluated round.
type RoundRecord struct {
	Class       string
	EntityCount float64
	DepthScore  float64
	Forward     float64
	Backward    float64
	Round       int
	Kept        bool
	Score       float64
}

// PruneResult is the outcome of the iterative pruning loop.
type PruneResult struct {
	// Keep is the surviving class set in reverse-reachability order.
	Keep []ReachRecord
	// Scores maps every evaluated class to its last composite score.
	Scores map[string]float64
	// Records holds each class's final round record.
	Records map[string]RoundRecord
	// Ranking lists every evaluated class's final record sorted for
	// reporting: score descending, ties broken by the later-surviving
	// round.
	Ranking []RoundRecord
	// Final holds forward rank tables recomputed on the surviving
	// graph; the predicate analysis reads its edge ranks.
	Final RankTables
}

// Prune runs the multi-round shrink loop: each round ranks the
// remaining classes by simulation, scores them, keeps the top classes
// by cumulative softmax mass against a round-dependent threshold, and
// drops the rest from the graph. Dropped classes retain the record of
// the round that removed them.
func Prune(g *Graph, order []ReachRecord, counts map[string]float64, rng Sampler) PruneResult {
	result := PruneResult{
		Scores:  map[string]float64{},
		Records: map[string]RoundRecord{},
	}

	current := g
	remaining := append([]ReachRecord(nil), order...)
	counts = copyCounts(counts)

	for round := 0; round < pruneLevels; round++ {
		if len(remaining) == 0 {
			break
		}
		current.ComputeProbabilities()
		fwd := Rank(current, Forward, counts, rng)
		bwd := Rank(current, Backward, counts, rng)

		var total float64
		for _, rec := range remaining {
			total += counts[rec.Class]
		}

		type scored struct {
			rec   ReachRecord
			score float64
		}
		scoredClasses := make([]scored, 0, len(remaining))
		for _, rec := range remaining {
			depthScore := 1.0 / (1.0 + float64(rec.Depth))
			s := math.Sqrt(math.Sqrt(counts[rec.Class]/total)) *
				math.Sqrt(depthScore) *
				(3*fwd.PageRank[rec.Class] + bwd.PageRank[rec.Class])
			scoredClasses = append(scoredClasses, scored{rec: rec, score: s})
		}

		// Softmax weights, then greedy keep by cumulative mass until
		// the round threshold is crossed (the crossing class stays).
		var expSum float64
		for _, sc := range scoredClasses {
			expSum += math.Exp(sc.score)
		}
		sort.SliceStable(scoredClasses, func(i, j int) bool {
			if scoredClasses[i].score != scoredClasses[j].score {
				return scoredClasses[i].score > scoredClasses[j].score
			}
			return scoredClasses[i].rec.Class < scoredClasses[j].rec.Class
		})

		threshold := float64(round+1) / float64(pruneLevels+1)
		kept := map[string]bool{}
		cumulative := 0.0
		for _, sc := range scoredClasses {
			if cumulative > threshold {
				break
			}
			kept[sc.rec.Class] = true
			cumulative += math.Exp(sc.score) / expSum
		}

		removed := map[string]bool{}
		for _, sc := range scoredClasses {
			keep := kept[sc.rec.Class]
			if !keep {
				removed[sc.rec.Class] = true
			}
			result.Scores[sc.rec.Class] = sc.score
			result.Records[sc.rec.Class] = RoundRecord{
				Class:       sc.rec.Class,
				EntityCount: counts[sc.rec.Class],
				DepthScore:  1.0 / (1.0 + float64(sc.rec.Depth)),
				Forward:     fwd.PageRank[sc.rec.Class],
				Backward:    bwd.PageRank[sc.rec.Class],
				Round:       round,
				Kept:        keep,
				Score:       sc.score,
			}
		}

		if len(removed) > 0 {
			current = current.Without(removed)
			var next []ReachRecord
			for _, rec := range remaining {
				if !removed[rec.Class] {
					next = append(next, rec)
				}
			}
			remaining = next
			for class := range removed {
				delete(counts, class)
			}
		}
	}

	result.Keep = remaining
	result.Ranking = rankRecords(result.Records)
	current.ComputeProbabilities()
	result.Final = Rank(current, Forward, counts, rng)
	return result
}

// rankRecords orders final round records for reporting: score
// descending, equal scores broken by the round the class survived to
// (later wins), then by class IRI for determinism.
func rankRecords(records map[string]RoundRecord) []RoundRecord {
	out := make([]RoundRecord, 0, len(records))
	for _, rec := range records {
		out = append(out, rec)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if out[i].Round != out[j].Round {
			return out[i].Round > out[j].Round
		}
		return out[i].Class < out[j].Class
	})
	return out
}

func copyCounts(counts map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(counts))
	for k, v := range counts {
		out[k] = v
	}
	return out
}
