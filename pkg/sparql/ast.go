// Package sparql provides parsing and evaluation for the SPARQL subset
// Huginn's analyzer and mutation routines use: SELECT queries over
// basic graph patterns with OPTIONAL, UNION, a small FILTER vocabulary,
// COUNT aggregation and solution modifiers, plus the four update forms
// (INSERT DATA, DELETE DATA, DELETE WHERE, DELETE/INSERT WHERE).
//
// It is not a general SPARQL engine and does not aim to become one.
package sparql

import (
	"github.com/orneryd/huginn/pkg/rdf"
)

// TermOrVar is one slot of a triple pattern: either a variable name or
// a concrete term.
type TermOrVar struct {
	Var  string
	Term rdf.Term
}

// IsVar reports whether the slot is a variable.
func (tv TermOrVar) IsVar() bool { return tv.Var != "" }

// TriplePattern is a subject/predicate/object pattern.
type TriplePattern struct {
	S, P, O TermOrVar
}

// GroupElement is one evaluation step inside a group graph pattern.
// Elements evaluate in written order.
type GroupElement interface {
	groupElement()
}

// BGP is a run of triple patterns joined in order.
type BGP struct {
	Patterns []TriplePattern
}

func (BGP) groupElement() {}

// Optional is an OPTIONAL { ... } left join.
type Optional struct {
	Group *GroupPattern
}

func (Optional) groupElement() {}

// Union is two or more alternative groups; solutions concatenate in
// branch order.
type Union struct {
	Branches []*GroupPattern
}

func (Union) groupElement() {}

// Filter is a FILTER constraint.
type Filter struct {
	Constraint Constraint
}

func (Filter) groupElement() {}

// GroupPattern is a { ... } group graph pattern.
type GroupPattern struct {
	Elements []GroupElement
}

// Constraint is a FILTER body.
type Constraint interface {
	constraint()
}

// Comparison operators supported in filters.
type CompareOp int

const (
	OpNotEqual CompareOp = iota
	OpLess
)

// Operand is one side of a comparison: a variable or a constant term,
// optionally wrapped in STR().
type Operand struct {
	Var  string
	Term rdf.Term
	Str  bool
}

// Compare is FILTER(left op right).
type Compare struct {
	Op          CompareOp
	Left, Right Operand
}

func (Compare) constraint() {}

// NotExists is FILTER NOT EXISTS { ... }.
type NotExists struct {
	Group *GroupPattern
}

func (NotExists) constraint() {}

// Aggregate is a COUNT select expression.
type Aggregate struct {
	As       string // projected variable name
	Distinct bool
	Var      string // "" means COUNT(*)
}

// OrderKey is one ORDER BY sort key.
type OrderKey struct {
	Var  string
	Desc bool
}

// Query is a parsed SELECT query.
type Query struct {
	Distinct   bool
	Vars       []string // projected plain variables, in order
	Aggregates []Aggregate
	Where      *GroupPattern
	GroupBy    []string
	OrderBy    []OrderKey
	Limit      int // -1 when absent
	Offset     int
}

// UpdateOp is one update operation.
type UpdateOp interface {
	updateOp()
}

// InsertData inserts ground triples.
type InsertData struct {
	Triples []rdf.Triple
}

func (InsertData) updateOp() {}

// DeleteData deletes ground triples.
type DeleteData struct {
	Triples []rdf.Triple
}

func (DeleteData) updateOp() {}

// DeleteWhere deletes every instantiation of the patterns.
type DeleteWhere struct {
	Patterns []TriplePattern
}

func (DeleteWhere) updateOp() {}

// Modify is DELETE {...} INSERT {...} WHERE {...}; either template may
// be empty.
type Modify struct {
	Delete []TriplePattern
	Insert []TriplePattern
	Where  *GroupPattern
}

func (Modify) updateOp() {}

// UpdateRequest is a parsed update: one or more operations separated
// by semicolons, executed in order.
type UpdateRequest struct {
	Ops []UpdateOp
}
