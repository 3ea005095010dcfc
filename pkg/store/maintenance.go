package store

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/orneryd/huginn/pkg/history"
	"github.com/orneryd/huginn/pkg/rdf"
	"github.com/orneryd/huginn/pkg/storage"
)

// MergeEntities merges entities of the given class that agree on every
// predicate in mergeUsing: the lexicographically smaller IRI survives,
// the other entity's statements are rewritten onto it, then removed.
//
// Transitive merge chains resolve through pair ordering: with a < b < c
// all pairwise merges target a, and later pairs find nothing left to
// move.
func (s *Store) MergeEntities(ctx context.Context, class rdf.IRI, mergeUsing []rdf.IRI) error {
	if len(mergeUsing) == 0 {
		return fmt.Errorf("store: MergeEntities needs at least one merge predicate")
	}

	var sb strings.Builder
	sb.WriteString("SELECT DISTINCT ?a ?b WHERE {\n")
	sb.WriteString(fmt.Sprintf("  ?a a %s .\n  ?b a %s .\n", class, class))
	for i, p := range mergeUsing {
		sb.WriteString(fmt.Sprintf("  ?a %s ?v%d .\n  ?b %s ?v%d .\n", p, i, p, i))
	}
	sb.WriteString("  FILTER(STR(?a) < STR(?b))\n}")

	template := `
		DELETE { {{b}} ?p ?o . } INSERT { {{a}} ?p ?o . } WHERE { {{b}} ?p ?o . } ;
		DELETE { ?s ?p {{b}} . } INSERT { ?s ?p {{a}} . } WHERE { ?s ?p {{b}} . }`

	return s.IterativeUpdate(ctx, sb.String(), template)
}

// loadNotePrefix marks history annotations recording a bulk file load.
// Loads are not replayable (the source file may be gone), so Revert
// refuses the replay fallback across one.
const loadNotePrefix = "# load "

// NoteLoad records a bulk file load in the history, moving the dataset
// version.
func (s *Store) NoteLoad(name string, inserted int64) error {
	return s.WriteHistory(fmt.Sprintf("%s%s (+%d triples)", loadNotePrefix, name, inserted))
}

// dumpName returns the snapshot file name for a version.
func dumpName(version int) string {
	return fmt.Sprintf("dump-v%d.nt", version)
}

// DumpVersion writes the current dataset as an N-Triples snapshot named
// after the current history version and returns its path.
func (s *Store) DumpVersion(ctx context.Context, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("store: creating dump dir: %w", err)
	}
	path := filepath.Join(dir, dumpName(s.HistoryVersion()))

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("store: creating dump: %w", err)
	}
	w := bufio.NewWriter(f)

	err = s.engine.Match(ctx, storage.Pattern{}, func(t rdf.Triple) error {
		_, werr := fmt.Fprintln(w, t.String())
		return werr
	})
	if err == nil {
		err = w.Flush()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return "", fmt.Errorf("store: writing dump: %w", err)
	}
	return path, nil
}

// Revert restores the dataset to an earlier history version and
// truncates the log to it. A snapshot for that exact version is loaded
// when one exists under dumpDir; otherwise the history log is replayed
// from the start up to the version. Replay cannot reconstruct bulk file
// loads, so a history containing a load annotation reverts only to
// versions with a snapshot.
func (s *Store) Revert(ctx context.Context, version int, dumpDir string) error {
	if version > s.HistoryVersion() {
		return fmt.Errorf("store: cannot revert forward to version %d (current %d)", version, s.HistoryVersion())
	}

	dump := filepath.Join(dumpDir, dumpName(version))
	_, statErr := os.Stat(dump)
	haveDump := statErr == nil

	if !haveDump {
		if err := s.checkReplayable(version); err != nil {
			return err
		}
	}

	if err := s.engine.Clear(); err != nil {
		return fmt.Errorf("store: revert clear: %w", err)
	}

	if haveDump {
		if _, err := storage.LoadNTriplesFile(s.engine, dump); err != nil {
			return fmt.Errorf("store: revert load: %w", err)
		}
	} else {
		if err := history.Replay(s.log.Path(), version, replayExecutor{ctx: ctx, store: s}); err != nil {
			return fmt.Errorf("store: revert replay: %w", err)
		}
	}
	if err := s.log.Truncate(version); err != nil {
		return fmt.Errorf("store: revert truncate: %w", err)
	}
	return nil
}

// checkReplayable rejects replay across a bulk-load annotation within
// the first version lines of the history.
func (s *Store) checkReplayable(version int) error {
	lines, err := s.log.Lines()
	if err != nil {
		return fmt.Errorf("store: reading history: %w", err)
	}
	if version > len(lines) {
		version = len(lines)
	}
	for _, line := range lines[:version] {
		if strings.HasPrefix(line, loadNotePrefix) {
			return fmt.Errorf("store: cannot replay past a bulk load (%q); revert needs a version snapshot", strings.TrimSpace(line))
		}
	}
	return nil
}
