package ontology

import (
	"math"
	"sort"

	"github.com/orneryd/huginn/pkg/classifier"
)

// scoreBudget is the running budget for the score-based keep signal.
// Empirically chosen; preserved exactly.
const scoreBudget = 60.0

// ComputeScores fuses each predicate's statistics into a relative
// score, obtains the classifier's confidence, and decides keep/drop.
// The returned slice is sorted by score descending (zero-score
// predicates last); the input is not modified.
//
// Scoring: r = ln(1+edgeRank); structural = sqrt(frequency) * quality
// * r; dataBased = entropy * uniqueness; raw = structural * dataBased.
// Non-zero raw scores pass through a softmax with the class's
// predicate count as temperature, scaled onto a 0-100-ish range by
// dividing the denominator by 100. A zero raw score yields score 0 and
// exclusion from the ranking.
func ComputeScores(stats []PredicateStats, clf classifier.Classifier) ([]PredicateStats, error) {
	out := append([]PredicateStats(nil), stats...)
	n := float64(len(out))

	var denominator float64
	raws := make([]float64, len(out))
	for i := range out {
		s := &out[i]
		rScaled := math.Log1p(s.EdgeRank)
		structural := math.Sqrt(s.Frequency) * s.Quality * rScaled
		dataBased := s.Entropy * s.Uniqueness
		raws[i] = structural * dataBased
		if raws[i] != 0 {
			denominator += math.Exp(raws[i] * n)
		}
	}

	for i := range out {
		s := &out[i]
		if raws[i] == 0 || denominator == 0 {
			s.Score = 0
		} else {
			s.Score = math.Exp(raws[i]*n) / (denominator / 100)
		}

		conf, err := clf.Score([classifier.FeatureCount]float64{
			s.Frequency, s.Uniqueness, s.Entropy, s.Quality, s.EdgeRank,
		})
		if err != nil {
			return nil, err
		}
		s.Confidence = conf
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Predicate < out[j].Predicate
	})

	decide(out)
	return out, nil
}

// decide applies the keep policy over score-sorted stats.
//
// The classifier keeps a predicate when its confidence exceeds 0.5. A
// second signal walks the ranking with a draining budget: predicates
// processed while budget remains are score-kept. When the classifier
// says drop but the score signal says keep, a hybrid value arbitrates.
func decide(stats []PredicateStats) {
	budget := scoreBudget
	scoreKept := make([]bool, len(stats))
	var keptSum float64
	var keptN int
	for i := range stats {
		if stats[i].Score == 0 {
			continue
		}
		if budget > 0 {
			scoreKept[i] = true
			keptSum += stats[i].Score
			keptN++
		}
		budget -= stats[i].Score
	}
	meanKept := 0.0
	if keptN > 0 {
		meanKept = keptSum / float64(keptN)
	}

	for i := range stats {
		s := &stats[i]
		confKeep := s.Confidence > 0.5
		switch {
		case confKeep:
			s.Kept = true
		case scoreKept[i] && meanKept > 0:
			hybrid := s.Confidence + s.Confidence*s.Score/meanKept
			s.Kept = hybrid >= 0.5
		default:
			s.Kept = false
		}
	}
}
