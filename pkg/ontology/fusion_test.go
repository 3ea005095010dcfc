package ontology

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/huginn/pkg/classifier"
)

func fusionFixture() []PredicateStats {
	return []PredicateStats{
		{Predicate: "http://schema.org/author", Frequency: 1.0, Uniqueness: 0.8, Entropy: 0.9, Quality: 1.0, EdgeRank: 0.6},
		{Predicate: "http://schema.org/publisher", Frequency: 0.7, Uniqueness: 0.3, Entropy: 0.5, Quality: 0.4, EdgeRank: 0.3},
		{Predicate: "http://schema.org/genre", Frequency: 0.4, Uniqueness: 0.1, Entropy: 0.2, Quality: 0.1, EdgeRank: 0.1},
		// Zero entropy zeroes the raw score: excluded from ranking.
		{Predicate: "http://schema.org/flat", Frequency: 0.9, Uniqueness: 0.5, Entropy: 0, Quality: 0.8, EdgeRank: 0.4},
	}
}

func TestComputeScoresOrdering(t *testing.T) {
	scored, err := ComputeScores(fusionFixture(), classifier.Fixed(0.9))
	require.NoError(t, err)
	require.Len(t, scored, 4)

	// Sorted descending; zero-score entries trail.
	for i := 1; i < len(scored); i++ {
		assert.GreaterOrEqual(t, scored[i-1].Score, scored[i].Score)
	}
	assert.Zero(t, scored[len(scored)-1].Score)
	assert.Equal(t, "http://schema.org/flat", scored[len(scored)-1].Predicate)

	// Adjacent positive-score ratios stay in (0,1].
	for i := 1; i < len(scored); i++ {
		if scored[i].Score == 0 {
			continue
		}
		ratio := scored[i].Score / scored[i-1].Score
		assert.Greater(t, ratio, 0.0)
		assert.LessOrEqual(t, ratio, 1.0)
	}
}

func TestComputeScoresConfidence(t *testing.T) {
	scored, err := ComputeScores(fusionFixture(), classifier.Fixed(0.7))
	require.NoError(t, err)

	// Every predicate gets a confidence, zero-score ones included.
	for _, s := range scored {
		assert.Equal(t, 0.7, s.Confidence)
		assert.True(t, s.Kept, "confidence 0.7 keeps everything")
	}
}

func TestDecidePolicy(t *testing.T) {
	t.Run("classifier keeps", func(t *testing.T) {
		stats := []PredicateStats{{Predicate: "p", Score: 50, Confidence: 0.8}}
		decide(stats)
		assert.True(t, stats[0].Kept)
	})

	t.Run("both drop", func(t *testing.T) {
		stats := []PredicateStats{
			{Predicate: "p", Score: 70, Confidence: 0.9},
			// q exhausts no budget slot (70 > 60 budget already spent).
			{Predicate: "q", Score: 1, Confidence: 0.2},
		}
		decide(stats)
		assert.True(t, stats[0].Kept)
		assert.False(t, stats[1].Kept, "classifier drop + score drop")
	})

	t.Run("score rescues a strong drop candidate", func(t *testing.T) {
		// Classifier says drop (0.3) but the predicate dominates the
		// score-kept set: hybrid = 0.3 + 0.3*score/mean ≥ 0.5 when the
		// score is at least ~0.67x the kept mean.
		stats := []PredicateStats{
			{Predicate: "p", Score: 40, Confidence: 0.3},
			{Predicate: "q", Score: 30, Confidence: 0.9},
		}
		decide(stats)
		// mean kept score = 35; hybrid(p) = 0.3 + 0.3*40/35 ≈ 0.64.
		assert.True(t, stats[0].Kept)
	})

	t.Run("hybrid still drops weak candidates", func(t *testing.T) {
		stats := []PredicateStats{
			{Predicate: "p", Score: 50, Confidence: 0.9},
			{Predicate: "q", Score: 5, Confidence: 0.1},
		}
		decide(stats)
		// hybrid(q) = 0.1 + 0.1*5/27.5 ≈ 0.118: drop.
		assert.False(t, stats[1].Kept)
	})
}
