// Package storage provides triple storage engines for Huginn.
//
// Two implementations share the Engine interface: MemoryEngine for
// tests and small datasets, BadgerEngine for persistent storage. Both
// index every triple under its SPO, POS and OSP permutations so any
// partially bound pattern resolves without a full scan.
package storage

import (
	"context"
	"errors"

	"github.com/orneryd/huginn/pkg/rdf"
)

// Common storage errors.
var (
	// ErrStorageClosed is returned by operations on a closed engine.
	ErrStorageClosed = errors.New("storage: engine is closed")

	// ErrIterationStopped is returned by a Visitor to end a Match scan
	// early. Match swallows it and returns nil.
	ErrIterationStopped = errors.New("storage: iteration stopped")
)

// Pattern is a triple pattern; nil slots are wildcards.
type Pattern struct {
	Subject   rdf.Term
	Predicate rdf.Term
	Object    rdf.Term
}

// Matches reports whether the triple satisfies every bound slot.
func (p Pattern) Matches(t rdf.Triple) bool {
	if p.Subject != nil && p.Subject.String() != t.Subject.String() {
		return false
	}
	if p.Predicate != nil && p.Predicate.String() != t.Predicate.String() {
		return false
	}
	if p.Object != nil && p.Object.String() != t.Object.String() {
		return false
	}
	return true
}

// Visitor receives matched triples during a scan. Returning
// ErrIterationStopped ends the scan without error; any other error
// aborts it and propagates.
type Visitor func(rdf.Triple) error

// Engine is the storage abstraction the query layer evaluates against.
//
// Implementations must be safe for concurrent use. Match streams
// results in a deterministic order for a given dataset and pattern.
type Engine interface {
	// Insert adds a triple. Returns true if it was newly added, false
	// if it was already present.
	Insert(t rdf.Triple) (bool, error)

	// Delete removes a triple. Returns true if it was present.
	Delete(t rdf.Triple) (bool, error)

	// Match calls fn for every triple satisfying the pattern.
	Match(ctx context.Context, pat Pattern, fn Visitor) error

	// Count returns the number of stored triples.
	Count() (int64, error)

	// Clear removes all triples.
	Clear() error

	// Close releases underlying resources.
	Close() error
}
