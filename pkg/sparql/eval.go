package sparql

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/orneryd/huginn/pkg/rdf"
	"github.com/orneryd/huginn/pkg/storage"
)

// Solution is one result row: projected variables in SELECT order and
// their bound terms. Unbound optional variables are absent from Values.
type Solution struct {
	Vars   []string
	Values map[string]rdf.Term
}

// Get returns the term bound to the variable, or nil.
func (s Solution) Get(v string) rdf.Term { return s.Values[v] }

// binding is an intermediate variable assignment during evaluation.
type binding map[string]rdf.Term

func (b binding) clone() binding {
	c := make(binding, len(b)+1)
	for k, v := range b {
		c[k] = v
	}
	return c
}

// Evaluator runs parsed queries against a storage engine.
type Evaluator struct {
	engine storage.Engine
}

// NewEvaluator creates an evaluator over the given engine.
func NewEvaluator(engine storage.Engine) *Evaluator {
	return &Evaluator{engine: engine}
}

// Select evaluates a SELECT query and returns its solutions in
// deterministic order.
func (e *Evaluator) Select(ctx context.Context, q *Query) ([]Solution, error) {
	bindings, err := e.evalGroup(ctx, q.Where, []binding{{}})
	if err != nil {
		return nil, err
	}

	var rows []Solution
	if len(q.Aggregates) > 0 {
		rows = aggregate(q, bindings)
	} else {
		rows = project(q.Vars, bindings)
	}

	if q.Distinct {
		rows = distinct(rows)
	}
	if len(q.OrderBy) > 0 {
		orderRows(rows, q.OrderBy)
	}
	if q.Offset > 0 {
		if q.Offset >= len(rows) {
			rows = nil
		} else {
			rows = rows[q.Offset:]
		}
	}
	if q.Limit >= 0 && q.Limit < len(rows) {
		rows = rows[:q.Limit]
	}
	return rows, nil
}

// ============================================================================
// Group evaluation
// ============================================================================

func (e *Evaluator) evalGroup(ctx context.Context, g *GroupPattern, seed []binding) ([]binding, error) {
	current := seed
	for _, el := range g.Elements {
		var err error
		switch el := el.(type) {
		case BGP:
			for _, pat := range el.Patterns {
				current, err = e.evalPattern(ctx, pat, current)
				if err != nil {
					return nil, err
				}
			}
		case Optional:
			current, err = e.evalOptional(ctx, el, current)
			if err != nil {
				return nil, err
			}
		case Union:
			current, err = e.evalUnion(ctx, el, current)
			if err != nil {
				return nil, err
			}
		case Filter:
			current, err = e.evalFilter(ctx, el, current)
			if err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("sparql: unknown group element %T", el)
		}
		if len(current) == 0 {
			return nil, nil
		}
	}
	return current, nil
}

// evalPattern extends each binding with every triple matching the
// pattern under that binding.
func (e *Evaluator) evalPattern(ctx context.Context, pat TriplePattern, in []binding) ([]binding, error) {
	var out []binding
	for _, b := range in {
		sp := resolveSlot(pat.S, b)
		pp := resolveSlot(pat.P, b)
		op := resolveSlot(pat.O, b)

		err := e.engine.Match(ctx, storage.Pattern{Subject: sp, Predicate: pp, Object: op}, func(t rdf.Triple) error {
			nb, ok := extend(b, pat, t)
			if ok {
				out = append(out, nb)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// resolveSlot returns the concrete term for a slot, or nil when the
// slot is an unbound variable.
func resolveSlot(tv TermOrVar, b binding) rdf.Term {
	if !tv.IsVar() {
		return tv.Term
	}
	return b[tv.Var] // nil when unbound
}

// extend binds the pattern's variables against a matched triple. It
// fails when the same variable would bind to two different terms.
func extend(b binding, pat TriplePattern, t rdf.Triple) (binding, bool) {
	nb := b.clone()
	bindSlot := func(tv TermOrVar, term rdf.Term) bool {
		if !tv.IsVar() {
			return true
		}
		if prev, ok := nb[tv.Var]; ok {
			return prev.String() == term.String()
		}
		nb[tv.Var] = term
		return true
	}
	if !bindSlot(pat.S, t.Subject) {
		return nil, false
	}
	if !bindSlot(pat.P, t.Predicate) {
		return nil, false
	}
	if !bindSlot(pat.O, t.Object) {
		return nil, false
	}
	return nb, true
}

func (e *Evaluator) evalOptional(ctx context.Context, opt Optional, in []binding) ([]binding, error) {
	var out []binding
	for _, b := range in {
		extended, err := e.evalGroup(ctx, opt.Group, []binding{b})
		if err != nil {
			return nil, err
		}
		if len(extended) == 0 {
			out = append(out, b)
		} else {
			out = append(out, extended...)
		}
	}
	return out, nil
}

func (e *Evaluator) evalUnion(ctx context.Context, u Union, in []binding) ([]binding, error) {
	var out []binding
	for _, b := range in {
		for _, branch := range u.Branches {
			res, err := e.evalGroup(ctx, branch, []binding{b})
			if err != nil {
				return nil, err
			}
			out = append(out, res...)
		}
	}
	return out, nil
}

func (e *Evaluator) evalFilter(ctx context.Context, f Filter, in []binding) ([]binding, error) {
	var out []binding
	for _, b := range in {
		ok, err := e.satisfies(ctx, f.Constraint, b)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, b)
		}
	}
	return out, nil
}

func (e *Evaluator) satisfies(ctx context.Context, c Constraint, b binding) (bool, error) {
	switch c := c.(type) {
	case Compare:
		left, lok := operandValue(c.Left, b)
		right, rok := operandValue(c.Right, b)
		if !lok || !rok {
			// Unbound operands fail the filter, per SPARQL error
			// semantics.
			return false, nil
		}
		switch c.Op {
		case OpNotEqual:
			return left != right, nil
		case OpLess:
			return left < right, nil
		}
		return false, fmt.Errorf("sparql: unknown comparison op %d", c.Op)
	case NotExists:
		res, err := e.evalGroup(ctx, c.Group, []binding{b})
		if err != nil {
			return false, err
		}
		return len(res) == 0, nil
	default:
		return false, fmt.Errorf("sparql: unknown constraint %T", c)
	}
}

// operandValue reduces a filter operand to its comparison string. With
// STR() that is the plain lexical/IRI form; without, the full
// N-Triples form so IRIs and literals never compare equal.
func operandValue(o Operand, b binding) (string, bool) {
	term := o.Term
	if o.Var != "" {
		var ok bool
		term, ok = b[o.Var]
		if !ok {
			return "", false
		}
	}
	if term == nil {
		return "", false
	}
	if o.Str {
		return rdf.ValueOf(term), true
	}
	return term.String(), true
}

// ============================================================================
// Projection, aggregation, ordering
// ============================================================================

func project(vars []string, bindings []binding) []Solution {
	rows := make([]Solution, 0, len(bindings))
	for _, b := range bindings {
		values := make(map[string]rdf.Term, len(vars))
		for _, v := range vars {
			if t, ok := b[v]; ok {
				values[v] = t
			}
		}
		rows = append(rows, Solution{Vars: vars, Values: values})
	}
	return rows
}

func countLiteral(n int) rdf.Term {
	return rdf.NewLiteral(strconv.Itoa(n)).WithDatatype(rdf.XSDInteger)
}

func aggregate(q *Query, bindings []binding) []Solution {
	outVars := append(append([]string{}, q.GroupBy...), aggregateNames(q.Aggregates)...)

	if len(q.GroupBy) == 0 {
		values := map[string]rdf.Term{}
		for _, agg := range q.Aggregates {
			values[agg.As] = countLiteral(countAgg(agg, bindings))
		}
		return []Solution{{Vars: outVars, Values: values}}
	}

	// Group by the concatenated key of the grouping terms, preserving
	// first-seen order.
	type groupState struct {
		key      binding
		bindings []binding
	}
	var order []string
	groups := map[string]*groupState{}
	for _, b := range bindings {
		var sb strings.Builder
		for _, v := range q.GroupBy {
			if t, ok := b[v]; ok {
				sb.WriteString(t.String())
			}
			sb.WriteByte(0)
		}
		k := sb.String()
		g, ok := groups[k]
		if !ok {
			g = &groupState{key: b}
			groups[k] = g
			order = append(order, k)
		}
		g.bindings = append(g.bindings, b)
	}

	rows := make([]Solution, 0, len(order))
	for _, k := range order {
		g := groups[k]
		values := make(map[string]rdf.Term, len(outVars))
		for _, v := range q.GroupBy {
			if t, ok := g.key[v]; ok {
				values[v] = t
			}
		}
		for _, agg := range q.Aggregates {
			values[agg.As] = countLiteral(countAgg(agg, g.bindings))
		}
		rows = append(rows, Solution{Vars: outVars, Values: values})
	}
	return rows
}

func aggregateNames(aggs []Aggregate) []string {
	names := make([]string, len(aggs))
	for i, a := range aggs {
		names[i] = a.As
	}
	return names
}

func countAgg(agg Aggregate, bindings []binding) int {
	if agg.Var == "" {
		return len(bindings)
	}
	if !agg.Distinct {
		n := 0
		for _, b := range bindings {
			if _, ok := b[agg.Var]; ok {
				n++
			}
		}
		return n
	}
	seen := map[string]struct{}{}
	for _, b := range bindings {
		if t, ok := b[agg.Var]; ok {
			seen[t.String()] = struct{}{}
		}
	}
	return len(seen)
}

func distinct(rows []Solution) []Solution {
	seen := map[string]struct{}{}
	out := rows[:0:0]
	for _, r := range rows {
		var sb strings.Builder
		for _, v := range r.Vars {
			if t, ok := r.Values[v]; ok {
				sb.WriteString(t.String())
			}
			sb.WriteByte(0)
		}
		k := sb.String()
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, r)
	}
	return out
}

func orderRows(rows []Solution, keys []OrderKey) {
	sort.SliceStable(rows, func(i, j int) bool {
		for _, k := range keys {
			c := compareTerms(rows[i].Values[k.Var], rows[j].Values[k.Var])
			if c == 0 {
				continue
			}
			if k.Desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

// compareTerms orders two terms: numerically when both are numeric
// literals, lexically otherwise. Unbound sorts first.
func compareTerms(a, b rdf.Term) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	if la, ok := a.(rdf.Literal); ok {
		if lb, ok := b.(rdf.Literal); ok {
			fa, ea := la.Float()
			fb, eb := lb.Float()
			if ea == nil && eb == nil {
				switch {
				case fa < fb:
					return -1
				case fa > fb:
					return 1
				default:
					return 0
				}
			}
		}
	}
	return strings.Compare(rdf.ValueOf(a), rdf.ValueOf(b))
}
