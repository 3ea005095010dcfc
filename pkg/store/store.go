// Package store assembles the storage engine, the SPARQL subset
// evaluator and the mutation history log into the dataset facade the
// analysis phases run against.
//
// Every mutating entry point is recorded in the history log; the log's
// line count is the dataset version that stamps derived-result caches.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/orneryd/huginn/pkg/history"
	"github.com/orneryd/huginn/pkg/sparql"
	"github.com/orneryd/huginn/pkg/storage"
)

// ErrQueryFailed wraps parse and evaluation failures; the failing query
// text rides along in the wrap message.
var ErrQueryFailed = errors.New("store: query failed")

// Row is one query result row.
type Row = sparql.Solution

// Store is the dataset facade.
type Store struct {
	engine      storage.Engine
	eval        *sparql.Evaluator
	log         *history.Log
	routinesDir string
}

// Options configures optional Store collaborators.
type Options struct {
	// RoutinesDir is where file::procedure routine files are resolved.
	RoutinesDir string
}

// New creates a Store over an engine and a history log.
func New(engine storage.Engine, log *history.Log, opts Options) *Store {
	return &Store{
		engine:      engine,
		eval:        sparql.NewEvaluator(engine),
		log:         log,
		routinesDir: opts.RoutinesDir,
	}
}

// Engine exposes the underlying storage engine.
func (s *Store) Engine() storage.Engine { return s.engine }

// Count returns the number of stored triples.
func (s *Store) Count() (int64, error) { return s.engine.Count() }

// Query evaluates a SELECT query.
func (s *Store) Query(ctx context.Context, text string) ([]Row, error) {
	q, err := sparql.Parse(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v (query: %s)", ErrQueryFailed, err, condense(text))
	}
	rows, err := s.eval.Select(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("%w: %v (query: %s)", ErrQueryFailed, err, condense(text))
	}
	return rows, nil
}

// Update executes a SPARQL update and records it in the history log.
func (s *Store) Update(ctx context.Context, text string) error {
	if _, err := s.applyUpdate(ctx, text); err != nil {
		return err
	}
	return s.log.AppendUpdate(text)
}

// applyUpdate executes an update without logging it. Replay and
// routines go through here.
func (s *Store) applyUpdate(ctx context.Context, text string) (sparql.UpdateStats, error) {
	req, err := sparql.ParseUpdate(text)
	if err != nil {
		return sparql.UpdateStats{}, fmt.Errorf("%w: %v (update: %s)", ErrQueryFailed, err, condense(text))
	}
	stats, err := s.eval.Execute(ctx, req)
	if err != nil {
		return stats, fmt.Errorf("%w: %v (update: %s)", ErrQueryFailed, err, condense(text))
	}
	return stats, nil
}

// IterativeUpdate evaluates the select query, instantiates the update
// template once per result row by substituting {{var}} placeholders
// with the row's bound terms, executes the instantiated updates in row
// order, and logs the batch as a single history entry.
func (s *Store) IterativeUpdate(ctx context.Context, selectQuery, updateTemplate string) error {
	rows, err := s.Query(ctx, selectQuery)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}

	updates := make([]string, 0, len(rows))
	for _, row := range rows {
		updates = append(updates, instantiate(updateTemplate, row))
	}
	for _, u := range updates {
		if _, err := s.applyUpdate(ctx, u); err != nil {
			return err
		}
	}
	return s.log.AppendUpdate(strings.Join(updates, " ;\n"))
}

// instantiate replaces {{var}} placeholders with the row's terms in
// their N-Triples form.
func instantiate(template string, row Row) string {
	out := template
	for v, term := range row.Values {
		out = strings.ReplaceAll(out, "{{"+v+"}}", term.String())
	}
	return out
}

// HistoryVersion returns the current dataset version.
func (s *Store) HistoryVersion() int { return s.log.Version() }

// History returns the full history log contents.
func (s *Store) History() ([]string, error) { return s.log.Lines() }

// WriteHistory appends a free-text annotation line to the history log.
func (s *Store) WriteHistory(line string) error { return s.log.Append(line) }

// Close closes the history log. The engine is owned by the caller.
func (s *Store) Close() error { return s.log.Close() }

// condense collapses a query to a single log-friendly line.
func condense(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
