package ontology

import (
	"context"
	"fmt"

	"github.com/orneryd/huginn/pkg/rdf"
	"github.com/orneryd/huginn/pkg/store"
)

// duplicateTypeRounds bounds the conflict-resolution fixpoint loop; a
// dataset where every entity carries that many competing types is
// broken input, not a loop to chase.
const duplicateTypeRounds = 100

// Mutator feeds analysis decisions back into the dataset. Every
// mutation goes through the store's logged update path, so each one is
// recorded in the history and moves the dataset version.
//
// Updates are not transactional across calls: a failure mid-sequence
// leaves the dataset partially mutated, with the history log showing
// exactly how far it got.
type Mutator struct {
	store *store.Store
}

// NewMutator creates a mutator over the store.
func NewMutator(st *store.Store) *Mutator {
	return &Mutator{store: st}
}

// ApplyKeepSet removes type assertions for every class outside the
// keep-set, then sweeps entities left without any type.
func (m *Mutator) ApplyKeepSet(ctx context.Context, keep []string) error {
	kept := make(map[string]bool, len(keep))
	for _, class := range keep {
		kept[class] = true
	}

	rows, err := m.store.Query(ctx, `SELECT DISTINCT ?class WHERE { ?s a ?class . }`)
	if err != nil {
		return err
	}
	for _, row := range rows {
		class := rdf.ValueOf(row.Get("class"))
		if kept[class] {
			continue
		}
		if err := m.store.WriteHistory(fmt.Sprintf("# drop class %s", class)); err != nil {
			return err
		}
		err := m.store.Update(ctx, fmt.Sprintf(`DELETE WHERE { ?s a %s . }`, rdf.IRI(class)))
		if err != nil {
			return err
		}
	}

	// Entities stripped of their last type lose all statements.
	return m.store.Update(ctx, `
		DELETE { ?s ?p ?o . }
		WHERE {
			?s ?p ?o .
			FILTER NOT EXISTS { ?s a ?t . }
		}`)
}

// DropPredicates deletes every use of the dropped predicates on
// instances of the class.
func (m *Mutator) DropPredicates(ctx context.Context, class string, stats []PredicateStats) error {
	for _, s := range stats {
		if s.Kept {
			continue
		}
		if err := m.store.WriteHistory(fmt.Sprintf("# drop predicate %s on %s", s.Predicate, class)); err != nil {
			return err
		}
		err := m.store.Update(ctx, fmt.Sprintf(`
			DELETE { ?s %s ?o . }
			WHERE { ?s a %s . ?s %s ?o . }`,
			rdf.IRI(s.Predicate), rdf.IRI(class), rdf.IRI(s.Predicate)))
		if err != nil {
			return err
		}
	}
	return nil
}

// ResolveDuplicateTypes demotes competing type assertions until no
// entity carries two classes: per conflicting pair the class with the
// higher analysis score stays primary, the other moves to the
// additional-type predicate. Equal scores fall back to the
// lexicographically smaller IRI.
func (m *Mutator) ResolveDuplicateTypes(ctx context.Context, scores map[string]float64) error {
	for round := 0; round < duplicateTypeRounds; round++ {
		rows, err := m.store.Query(ctx, `
			SELECT DISTINCT ?e ?a ?b WHERE {
				?e a ?a .
				?e a ?b .
				FILTER(STR(?a) < STR(?b))
			}`)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}

		for _, row := range rows {
			entity := row.Get("e")
			a := rdf.ValueOf(row.Get("a"))
			b := rdf.ValueOf(row.Get("b"))
			loser := pickLoser(a, b, scores)

			if err := m.store.WriteHistory(fmt.Sprintf("# demote duplicate type %s on %s", loser, entity)); err != nil {
				return err
			}
			err := m.store.Update(ctx, fmt.Sprintf(`
				DELETE DATA { %s %s %s . } ;
				INSERT DATA { %s %s %s . }`,
				entity, rdf.TypePredicate, rdf.IRI(loser),
				entity, rdf.AdditionalType, rdf.IRI(loser)))
			if err != nil {
				return err
			}
		}
	}
	return fmt.Errorf("duplicate-type resolution did not converge after %d rounds", duplicateTypeRounds)
}

// pickLoser returns the class to demote out of a conflicting pair.
func pickLoser(a, b string, scores map[string]float64) string {
	sa, sb := scores[a], scores[b]
	switch {
	case sa > sb:
		return b
	case sb > sa:
		return a
	case a < b:
		return b
	default:
		return a
	}
}
