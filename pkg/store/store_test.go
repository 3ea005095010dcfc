package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/huginn/pkg/history"
	"github.com/orneryd/huginn/pkg/rdf"
	"github.com/orneryd/huginn/pkg/storage"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	log, err := history.Open(filepath.Join(dir, "history.log"))
	require.NoError(t, err)
	engine := storage.NewMemoryEngine()
	s := New(engine, log, Options{RoutinesDir: dir})
	t.Cleanup(func() {
		s.Close()
		engine.Close()
	})
	return s
}

func seedBooks(t *testing.T, s *Store) {
	t.Helper()
	err := s.Update(context.Background(), `
		PREFIX schema: <http://schema.org/>
		INSERT DATA {
			<http://ex/b1> a schema:book .
			<http://ex/b1> schema:name "Dune" .
			<http://ex/b2> a schema:book .
			<http://ex/b2> schema:name "Dune" .
			<http://ex/b1> schema:author <http://ex/p1> .
			<http://ex/b2> schema:author <http://ex/p1> .
			<http://ex/p1> a schema:person .
		}`)
	require.NoError(t, err)
}

func TestQueryAndUpdate(t *testing.T) {
	s := newStore(t)
	seedBooks(t, s)

	rows, err := s.Query(context.Background(), `
		PREFIX schema: <http://schema.org/>
		SELECT ?s WHERE { ?s a schema:book . }`)
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	_, err = s.Query(context.Background(), `SELECT WHERE broken`)
	assert.ErrorIs(t, err, ErrQueryFailed)
}

func TestHistoryVersionAdvances(t *testing.T) {
	s := newStore(t)
	v0 := s.HistoryVersion()
	assert.Equal(t, 0, v0)

	seedBooks(t, s)
	v1 := s.HistoryVersion()
	assert.Greater(t, v1, v0)

	require.NoError(t, s.WriteHistory("# annotation"))
	assert.Equal(t, v1+1, s.HistoryVersion())
}

func TestIterativeUpdate(t *testing.T) {
	s := newStore(t)
	seedBooks(t, s)

	err := s.IterativeUpdate(context.Background(), `
		PREFIX schema: <http://schema.org/>
		SELECT ?s WHERE { ?s a schema:book . }`,
		`DELETE WHERE { {{s}} <http://schema.org/name> ?n . }`)
	require.NoError(t, err)

	rows, err := s.Query(context.Background(), `
		PREFIX schema: <http://schema.org/>
		SELECT ?s WHERE { ?s schema:name ?n . }`)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestMergeEntities(t *testing.T) {
	s := newStore(t)
	seedBooks(t, s)

	// b1 and b2 share name and author; b1 (smaller IRI) survives.
	err := s.MergeEntities(context.Background(), rdf.SchemaIRI("Book"),
		[]rdf.IRI{rdf.IRI("http://schema.org/name"), rdf.IRI("http://schema.org/author")})
	require.NoError(t, err)

	rows, err := s.Query(context.Background(), `
		PREFIX schema: <http://schema.org/>
		SELECT ?s WHERE { ?s a schema:book . }`)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "http://ex/b1", rdf.ValueOf(rows[0].Get("s")))
}

func TestRunRoutine(t *testing.T) {
	s := newStore(t)
	seedBooks(t, s)

	routine := `
procedures:
  drop_names:
    steps:
      - select: |
          PREFIX schema: <http://schema.org/>
          SELECT ?s WHERE { ?s a schema:book . }
        update: |
          DELETE WHERE { {{s}} <http://schema.org/name> ?n . }
`
	path := filepath.Join(t.TempDir(), "cleanup.yaml")
	require.NoError(t, os.WriteFile(path, []byte(routine), 0o644))

	require.NoError(t, s.RunRoutine(context.Background(), path, "drop_names"))

	rows, err := s.Query(context.Background(), `
		PREFIX schema: <http://schema.org/>
		SELECT ?s WHERE { ?s schema:name ?n . }`)
	require.NoError(t, err)
	assert.Empty(t, rows)

	assert.Error(t, s.RunRoutine(context.Background(), path, "missing"))
}

func TestDumpAndRevert(t *testing.T) {
	s := newStore(t)
	dumps := t.TempDir()
	seedBooks(t, s)

	v := s.HistoryVersion()
	path, err := s.DumpVersion(context.Background(), dumps)
	require.NoError(t, err)
	assert.FileExists(t, path)

	// Mutate past the snapshot.
	err = s.Update(context.Background(), `
		PREFIX schema: <http://schema.org/>
		DELETE WHERE { ?s schema:name ?n . }`)
	require.NoError(t, err)
	assert.Greater(t, s.HistoryVersion(), v)

	require.NoError(t, s.Revert(context.Background(), v, dumps))
	assert.Equal(t, v, s.HistoryVersion())

	rows, err := s.Query(context.Background(), `
		PREFIX schema: <http://schema.org/>
		SELECT ?s WHERE { ?s schema:name ?n . }`)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestRevertReplaysHistory(t *testing.T) {
	s := newStore(t)
	seedBooks(t, s)
	v := s.HistoryVersion()

	err := s.Update(context.Background(), `
		PREFIX schema: <http://schema.org/>
		DELETE WHERE { ?s schema:name ?n . }`)
	require.NoError(t, err)

	// No snapshot exists: revert falls back to replaying the log.
	require.NoError(t, s.Revert(context.Background(), v, t.TempDir()))

	rows, err := s.Query(context.Background(), `
		PREFIX schema: <http://schema.org/>
		SELECT ?s WHERE { ?s schema:name ?n . }`)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestRevertRefusesReplayAcrossLoad(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	// Seed via a bulk load, recorded only as a history annotation.
	nt := `<http://ex/b1> <http://www.w3.org/1999/02/22-rdf-syntax-ns#type> <http://schema.org/book> .` + "\n"
	path := filepath.Join(t.TempDir(), "books.nt")
	require.NoError(t, os.WriteFile(path, []byte(nt), 0o644))
	stats, err := storage.LoadNTriplesFile(s.Engine(), path)
	require.NoError(t, err)
	require.NoError(t, s.NoteLoad("books.nt", stats.Inserted))
	v := s.HistoryVersion()

	require.NoError(t, s.Update(ctx, `
		INSERT DATA { <http://ex/b2> a <http://schema.org/book> . }`))

	// Without a snapshot the load cannot be reconstructed; the revert
	// must refuse and leave the dataset untouched.
	err = s.Revert(ctx, v, t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bulk load")

	rows, err := s.Query(ctx, `SELECT ?s WHERE { ?s a <http://schema.org/book> . }`)
	require.NoError(t, err)
	assert.Len(t, rows, 2, "refused revert must not clear the dataset")

	// A snapshot for the load version makes the revert possible.
	dumps := t.TempDir()
	require.NoError(t, s.Update(ctx, `DELETE DATA { <http://ex/b2> a <http://schema.org/book> . }`))
	_, err = s.DumpVersion(ctx, dumps)
	require.NoError(t, err)
	dumped := s.HistoryVersion()

	require.NoError(t, s.Update(ctx, `DELETE WHERE { ?s ?p ?o . }`))
	require.NoError(t, s.Revert(ctx, dumped, dumps))

	rows, err = s.Query(ctx, `SELECT ?s WHERE { ?s a <http://schema.org/book> . }`)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
