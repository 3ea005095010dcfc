package sparql

import (
	"context"
	"fmt"

	"github.com/orneryd/huginn/pkg/rdf"
)

// UpdateStats reports what an update changed.
type UpdateStats struct {
	Inserted int64
	Deleted  int64
}

// Execute runs an update request against the engine, operation by
// operation in written order.
func (e *Evaluator) Execute(ctx context.Context, req *UpdateRequest) (UpdateStats, error) {
	var stats UpdateStats
	for _, op := range req.Ops {
		s, err := e.executeOp(ctx, op)
		if err != nil {
			return stats, err
		}
		stats.Inserted += s.Inserted
		stats.Deleted += s.Deleted
	}
	return stats, nil
}

func (e *Evaluator) executeOp(ctx context.Context, op UpdateOp) (UpdateStats, error) {
	switch op := op.(type) {
	case InsertData:
		return e.insertAll(op.Triples)
	case DeleteData:
		return e.deleteAll(op.Triples)
	case DeleteWhere:
		// DELETE WHERE treats the template as both pattern and
		// deletion target.
		return e.executeModify(ctx, Modify{
			Delete: op.Patterns,
			Where:  &GroupPattern{Elements: []GroupElement{BGP{Patterns: op.Patterns}}},
		})
	case Modify:
		return e.executeModify(ctx, op)
	default:
		return UpdateStats{}, fmt.Errorf("sparql: unknown update op %T", op)
	}
}

func (e *Evaluator) insertAll(triples []rdf.Triple) (UpdateStats, error) {
	var stats UpdateStats
	for _, t := range triples {
		added, err := e.engine.Insert(t)
		if err != nil {
			return stats, err
		}
		if added {
			stats.Inserted++
		}
	}
	return stats, nil
}

func (e *Evaluator) deleteAll(triples []rdf.Triple) (UpdateStats, error) {
	var stats UpdateStats
	for _, t := range triples {
		removed, err := e.engine.Delete(t)
		if err != nil {
			return stats, err
		}
		if removed {
			stats.Deleted++
		}
	}
	return stats, nil
}

// executeModify evaluates the WHERE group, then instantiates the
// delete and insert templates for every solution. Both template
// instantiations are collected before any write so the WHERE
// evaluation never observes its own mutations.
func (e *Evaluator) executeModify(ctx context.Context, m Modify) (UpdateStats, error) {
	bindings, err := e.evalGroup(ctx, m.Where, []binding{{}})
	if err != nil {
		return UpdateStats{}, err
	}

	var toDelete, toInsert []rdf.Triple
	for _, b := range bindings {
		for _, pat := range m.Delete {
			t, err := groundTriple(pat, b)
			if err != nil {
				// Solutions leaving a template variable unbound are
				// skipped, matching SPARQL Update semantics.
				continue
			}
			toDelete = append(toDelete, t)
		}
		for _, pat := range m.Insert {
			t, err := groundTriple(pat, b)
			if err != nil {
				continue
			}
			toInsert = append(toInsert, t)
		}
	}

	var stats UpdateStats
	del, err := e.deleteAll(toDelete)
	if err != nil {
		return stats, err
	}
	ins, err := e.insertAll(toInsert)
	if err != nil {
		return stats, err
	}
	stats.Deleted = del.Deleted
	stats.Inserted = ins.Inserted
	return stats, nil
}

// groundTriple instantiates a pattern under a binding into a concrete
// triple. A nil binding grounds only variable-free patterns.
func groundTriple(pat TriplePattern, b binding) (rdf.Triple, error) {
	groundSlot := func(tv TermOrVar) (rdf.Term, error) {
		if !tv.IsVar() {
			return tv.Term, nil
		}
		if t, ok := b[tv.Var]; ok {
			return t, nil
		}
		return nil, fmt.Errorf("unbound variable ?%s", tv.Var)
	}

	s, err := groundSlot(pat.S)
	if err != nil {
		return rdf.Triple{}, err
	}
	p, err := groundSlot(pat.P)
	if err != nil {
		return rdf.Triple{}, err
	}
	pred, ok := p.(rdf.IRI)
	if !ok {
		return rdf.Triple{}, fmt.Errorf("predicate must be an IRI, got %s", p)
	}
	o, err := groundSlot(pat.O)
	if err != nil {
		return rdf.Triple{}, err
	}
	return rdf.Triple{Subject: s, Predicate: pred, Object: o}, nil
}
