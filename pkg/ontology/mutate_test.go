package ontology

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/huginn/pkg/history"
	"github.com/orneryd/huginn/pkg/rdf"
	"github.com/orneryd/huginn/pkg/storage"
	"github.com/orneryd/huginn/pkg/store"
)

func mutatorStore(t *testing.T) *store.Store {
	t.Helper()
	log, err := history.Open(filepath.Join(t.TempDir(), "history.log"))
	require.NoError(t, err)
	engine := storage.NewMemoryEngine()
	s := store.New(engine, log, store.Options{})
	t.Cleanup(func() {
		s.Close()
		engine.Close()
	})
	return s
}

func queryValues(t *testing.T, s *store.Store, query, v string) []string {
	t.Helper()
	rows, err := s.Query(context.Background(), query)
	require.NoError(t, err)
	var out []string
	for _, row := range rows {
		out = append(out, rdf.ValueOf(row.Get(v)))
	}
	return out
}

func TestResolveDuplicateTypes(t *testing.T) {
	s := mutatorStore(t)
	ctx := context.Background()

	require.NoError(t, s.Update(ctx, `
		PREFIX schema: <http://schema.org/>
		INSERT DATA {
			<http://ex/e> a <http://ex/A> .
			<http://ex/e> a <http://ex/B> .
			<http://ex/e> schema:name "e" .
		}`))

	m := NewMutator(s)
	scores := map[string]float64{"http://ex/A": 0.9, "http://ex/B": 0.4}
	require.NoError(t, m.ResolveDuplicateTypes(ctx, scores))

	types := queryValues(t, s, `SELECT ?t WHERE { <http://ex/e> a ?t . }`, "t")
	assert.Equal(t, []string{"http://ex/A"}, types)

	additional := queryValues(t, s,
		`SELECT ?t WHERE { <http://ex/e> <http://schema.org/additionalType> ?t . }`, "t")
	assert.Equal(t, []string{"http://ex/B"}, additional)
}

func TestResolveDuplicateTypesThreeWay(t *testing.T) {
	s := mutatorStore(t)
	ctx := context.Background()

	require.NoError(t, s.Update(ctx, `
		INSERT DATA {
			<http://ex/e> a <http://ex/A> .
			<http://ex/e> a <http://ex/B> .
			<http://ex/e> a <http://ex/C> .
		}`))

	m := NewMutator(s)
	scores := map[string]float64{"http://ex/A": 0.9, "http://ex/B": 0.4, "http://ex/C": 0.4}
	require.NoError(t, m.ResolveDuplicateTypes(ctx, scores))

	types := queryValues(t, s, `SELECT ?t WHERE { <http://ex/e> a ?t . }`, "t")
	assert.Equal(t, []string{"http://ex/A"}, types)
}

func TestResolveDuplicateTypesTieBreak(t *testing.T) {
	s := mutatorStore(t)
	ctx := context.Background()

	require.NoError(t, s.Update(ctx, `
		INSERT DATA {
			<http://ex/e> a <http://ex/A> .
			<http://ex/e> a <http://ex/B> .
		}`))

	// Equal scores: the lexicographically smaller IRI stays primary.
	m := NewMutator(s)
	require.NoError(t, m.ResolveDuplicateTypes(ctx, map[string]float64{}))

	types := queryValues(t, s, `SELECT ?t WHERE { <http://ex/e> a ?t . }`, "t")
	assert.Equal(t, []string{"http://ex/A"}, types)
}

func TestApplyKeepSet(t *testing.T) {
	s := mutatorStore(t)
	ctx := context.Background()

	require.NoError(t, s.Update(ctx, `
		PREFIX schema: <http://schema.org/>
		INSERT DATA {
			<http://ex/b1> a schema:book .
			<http://ex/b1> schema:name "Dune" .
			<http://ex/g1> a schema:gadget .
			<http://ex/g1> schema:name "Widget" .
		}`))

	m := NewMutator(s)
	require.NoError(t, m.ApplyKeepSet(ctx, []string{"http://schema.org/book"}))

	// The gadget class and its now-typeless entity are gone entirely.
	gadgets := queryValues(t, s, `SELECT ?s WHERE { <http://ex/g1> ?p ?s . }`, "s")
	assert.Empty(t, gadgets)

	books := queryValues(t, s, `PREFIX schema: <http://schema.org/>
		SELECT ?s WHERE { ?s a schema:book . }`, "s")
	assert.Equal(t, []string{"http://ex/b1"}, books)
}

func TestDropPredicates(t *testing.T) {
	s := mutatorStore(t)
	ctx := context.Background()

	require.NoError(t, s.Update(ctx, `
		PREFIX schema: <http://schema.org/>
		INSERT DATA {
			<http://ex/b1> a schema:book .
			<http://ex/b1> schema:name "Dune" .
			<http://ex/b1> schema:isbn "1234" .
		}`))

	m := NewMutator(s)
	stats := []PredicateStats{
		{Predicate: "http://schema.org/name", Kept: true},
		{Predicate: "http://schema.org/isbn", Kept: false},
	}
	require.NoError(t, m.DropPredicates(ctx, "http://schema.org/book", stats))

	isbn := queryValues(t, s, `SELECT ?o WHERE { <http://ex/b1> <http://schema.org/isbn> ?o . }`, "o")
	assert.Empty(t, isbn)
	names := queryValues(t, s, `SELECT ?o WHERE { <http://ex/b1> <http://schema.org/name> ?o . }`, "o")
	assert.Equal(t, []string{"Dune"}, names)
}

func TestMutationsAreLogged(t *testing.T) {
	s := mutatorStore(t)
	ctx := context.Background()

	require.NoError(t, s.Update(ctx, `
		INSERT DATA {
			<http://ex/e> a <http://ex/A> .
			<http://ex/e> a <http://ex/B> .
		}`))
	before := s.HistoryVersion()

	m := NewMutator(s)
	require.NoError(t, m.ResolveDuplicateTypes(ctx, map[string]float64{"http://ex/A": 1}))
	assert.Greater(t, s.HistoryVersion(), before)
}
