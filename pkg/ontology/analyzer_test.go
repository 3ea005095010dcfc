package ontology

import (
	"context"
	"fmt"
	"math/rand"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/huginn/pkg/cache"
	"github.com/orneryd/huginn/pkg/classifier"
	"github.com/orneryd/huginn/pkg/history"
	"github.com/orneryd/huginn/pkg/storage"
	"github.com/orneryd/huginn/pkg/store"
)

// analyzerStore seeds 20 books authored by 10 persons. Books carry a
// shared author predicate and a unique identifier; persons carry a name.
func analyzerStore(t *testing.T) *store.Store {
	t.Helper()
	log, err := history.Open(filepath.Join(t.TempDir(), "history.log"))
	require.NoError(t, err)
	engine := storage.NewMemoryEngine()
	s := store.New(engine, log, store.Options{})
	t.Cleanup(func() {
		s.Close()
		engine.Close()
	})

	var sb strings.Builder
	sb.WriteString("PREFIX schema: <http://schema.org/>\nINSERT DATA {\n")
	for i := 0; i < 20; i++ {
		sb.WriteString(fmt.Sprintf("<http://ex/book%02d> a schema:book .\n", i))
		sb.WriteString(fmt.Sprintf("<http://ex/book%02d> schema:author <http://ex/person%02d> .\n", i, i%10))
		sb.WriteString(fmt.Sprintf("<http://ex/book%02d> schema:identifier \"id-%02d\" .\n", i, i))
	}
	for i := 0; i < 10; i++ {
		sb.WriteString(fmt.Sprintf("<http://ex/person%02d> a schema:person .\n", i))
		sb.WriteString(fmt.Sprintf("<http://ex/person%02d> schema:name \"Person %02d\" .\n", i, i))
	}
	sb.WriteString("}")
	require.NoError(t, s.Update(context.Background(), sb.String()))
	return s
}

func TestAnalyzeDryRun(t *testing.T) {
	s := analyzerStore(t)
	before := s.HistoryVersion()

	a := NewAnalyzer(Config{
		Store:      s,
		Cache:      cache.NewMemoryCache(),
		Classifier: classifier.Fixed(0.9),
		Dataset:    "library",
		Rand:       rand.New(rand.NewSource(42)),
	})

	report, err := a.Analyze(context.Background(), "Book")
	require.NoError(t, err)

	assert.Equal(t, "http://schema.org/book", report.Root)
	assert.False(t, report.Applied)
	assert.Contains(t, report.Keep, "http://schema.org/book")

	// Every evaluated class carries a score and a round record, pruned
	// or not.
	for _, class := range []string{"http://schema.org/book", "http://schema.org/person"} {
		assert.Contains(t, report.ClassScores, class)
		assert.Contains(t, report.Rounds, class)
	}

	// The ranking covers every evaluated class, score-descending.
	require.Len(t, report.Ranking, len(report.Rounds))
	for i := 1; i < len(report.Ranking); i++ {
		assert.LessOrEqual(t, report.Ranking[i].Score, report.Ranking[i-1].Score)
	}

	// Kept classes each have a predicate entry; the fully unique
	// identifier predicate never survives the uniqueness filter.
	for _, class := range report.Keep {
		stats, ok := report.Predicates[class]
		require.True(t, ok, "kept class %s has no predicate entry", class)
		for _, p := range stats {
			assert.NotEqual(t, "http://schema.org/identifier", p.Predicate)
		}
	}

	// A dry run never touches the dataset.
	assert.Equal(t, before, s.HistoryVersion())
}

func TestAnalyzeApply(t *testing.T) {
	s := analyzerStore(t)
	ctx := context.Background()

	a := NewAnalyzer(Config{
		Store:      s,
		Cache:      cache.NewMemoryCache(),
		Classifier: classifier.Fixed(0.9),
		Dataset:    "library",
		Rand:       rand.New(rand.NewSource(42)),
		Apply:      true,
	})

	report, err := a.Analyze(ctx, "Book")
	require.NoError(t, err)
	require.True(t, report.Applied)

	kept := map[string]bool{}
	for _, class := range report.Keep {
		kept[class] = true
	}

	// Surviving classes still have instances; everything else is gone.
	rows, err := s.Query(ctx, `SELECT DISTINCT ?class WHERE { ?s a ?class . }`)
	require.NoError(t, err)
	for _, row := range rows {
		class := row.Get("class").String()
		class = strings.Trim(class, "<>")
		assert.True(t, kept[class], "class %s survived outside the keep-set", class)
	}

	require.True(t, kept["http://schema.org/book"])
	books, err := s.Query(ctx, `PREFIX schema: <http://schema.org/>
		SELECT (COUNT(DISTINCT ?s) AS ?n) WHERE { ?s a schema:book . }`)
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Equal(t, `"20"^^<http://www.w3.org/2001/XMLSchema#integer>`, books[0].Get("n").String())
}

func TestAnalyzeMissingRoot(t *testing.T) {
	s := analyzerStore(t)

	a := NewAnalyzer(Config{
		Store:      s,
		Cache:      cache.NewMemoryCache(),
		Classifier: classifier.Fixed(0.9),
		Dataset:    "library",
		Rand:       rand.New(rand.NewSource(1)),
	})

	_, err := a.Analyze(context.Background(), "Spacecraft")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not present in graph")
}
