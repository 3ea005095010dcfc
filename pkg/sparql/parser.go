package sparql

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/orneryd/huginn/pkg/rdf"
)

// Parser parses SPARQL subset queries and updates into their ASTs.
type Parser struct {
	toks     []token
	pos      int
	prefixes map[string]string
}

// NewParser creates a parser for the given query text.
func NewParser(text string) (*Parser, error) {
	toks, err := tokenize(text)
	if err != nil {
		return nil, err
	}
	return &Parser{toks: toks, prefixes: map[string]string{}}, nil
}

// Parse parses a SELECT query.
func Parse(text string) (*Query, error) {
	p, err := NewParser(text)
	if err != nil {
		return nil, err
	}
	return p.parseQuery()
}

// ParseUpdate parses an update request (one or more `;`-separated
// operations).
func ParseUpdate(text string) (*UpdateRequest, error) {
	p, err := NewParser(text)
	if err != nil {
		return nil, err
	}
	return p.parseUpdate()
}

// ============================================================================
// Token helpers
// ============================================================================

func (p *Parser) peek() token { return p.toks[p.pos] }

func (p *Parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *Parser) atKeyword(word string) bool {
	t := p.peek()
	return t.kind == tokIdent && strings.EqualFold(t.text, word)
}

func (p *Parser) acceptKeyword(word string) bool {
	if p.atKeyword(word) {
		p.next()
		return true
	}
	return false
}

func (p *Parser) expectKeyword(word string) error {
	if !p.acceptKeyword(word) {
		return p.errorf("expected %s", word)
	}
	return nil
}

func (p *Parser) expect(kind tokenKind, what string) (token, error) {
	t := p.next()
	if t.kind != kind {
		return token{}, fmt.Errorf("sparql: expected %s, got %q at offset %d", what, t.text, t.pos)
	}
	return t, nil
}

func (p *Parser) errorf(format string, args ...any) error {
	t := p.peek()
	return fmt.Errorf("sparql: %s, got %q at offset %d", fmt.Sprintf(format, args...), t.text, t.pos)
}

// ============================================================================
// Prologue
// ============================================================================

func (p *Parser) parsePrologue() error {
	for p.acceptKeyword("PREFIX") {
		name, err := p.expect(tokIdent, "prefix name")
		if err != nil {
			return err
		}
		if !strings.HasSuffix(name.text, ":") {
			return fmt.Errorf("sparql: prefix name %q must end with ':'", name.text)
		}
		iri, err := p.expect(tokIRI, "prefix IRI")
		if err != nil {
			return err
		}
		p.prefixes[strings.TrimSuffix(name.text, ":")] = string(iri.term.(rdf.IRI))
	}
	return nil
}

// resolvePrefixed expands a prefixed name like schema:name.
func (p *Parser) resolvePrefixed(word string) (rdf.IRI, error) {
	i := strings.Index(word, ":")
	if i < 0 {
		return "", fmt.Errorf("sparql: unexpected bare word %q", word)
	}
	ns, ok := p.prefixes[word[:i]]
	if !ok {
		return "", fmt.Errorf("sparql: unknown prefix %q", word[:i])
	}
	return rdf.IRI(ns + word[i+1:]), nil
}

// ============================================================================
// SELECT queries
// ============================================================================

func (p *Parser) parseQuery() (*Query, error) {
	if err := p.parsePrologue(); err != nil {
		return nil, err
	}
	if err := p.expectKeyword("SELECT"); err != nil {
		return nil, err
	}

	q := &Query{Limit: -1}
	q.Distinct = p.acceptKeyword("DISTINCT")

	for {
		t := p.peek()
		if t.kind == tokVar {
			p.next()
			q.Vars = append(q.Vars, t.text)
			continue
		}
		if t.kind == tokLParen {
			agg, err := p.parseAggregate()
			if err != nil {
				return nil, err
			}
			q.Aggregates = append(q.Aggregates, *agg)
			continue
		}
		break
	}
	if len(q.Vars) == 0 && len(q.Aggregates) == 0 {
		return nil, p.errorf("expected select variables")
	}

	p.acceptKeyword("WHERE")
	where, err := p.parseGroup()
	if err != nil {
		return nil, err
	}
	q.Where = where

	if err := p.parseModifiers(q); err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, p.errorf("trailing input")
	}
	return q, nil
}

// parseAggregate parses (COUNT(*) AS ?c) or (COUNT(DISTINCT ?v) AS ?c).
func (p *Parser) parseAggregate() (*Aggregate, error) {
	if _, err := p.expect(tokLParen, "("); err != nil {
		return nil, err
	}
	if err := p.expectKeyword("COUNT"); err != nil {
		return nil, err
	}
	if _, err := p.expect(tokLParen, "("); err != nil {
		return nil, err
	}

	agg := &Aggregate{}
	switch {
	case p.peek().kind == tokStar:
		p.next()
	default:
		agg.Distinct = p.acceptKeyword("DISTINCT")
		v, err := p.expect(tokVar, "variable")
		if err != nil {
			return nil, err
		}
		agg.Var = v.text
	}
	if _, err := p.expect(tokRParen, ")"); err != nil {
		return nil, err
	}
	if err := p.expectKeyword("AS"); err != nil {
		return nil, err
	}
	as, err := p.expect(tokVar, "variable")
	if err != nil {
		return nil, err
	}
	agg.As = as.text
	if _, err := p.expect(tokRParen, ")"); err != nil {
		return nil, err
	}
	return agg, nil
}

func (p *Parser) parseModifiers(q *Query) error {
	for {
		switch {
		case p.acceptKeyword("GROUP"):
			if err := p.expectKeyword("BY"); err != nil {
				return err
			}
			for p.peek().kind == tokVar {
				q.GroupBy = append(q.GroupBy, p.next().text)
			}
			if len(q.GroupBy) == 0 {
				return p.errorf("expected GROUP BY variables")
			}
		case p.acceptKeyword("ORDER"):
			if err := p.expectKeyword("BY"); err != nil {
				return err
			}
			for {
				key, ok, err := p.parseOrderKey()
				if err != nil {
					return err
				}
				if !ok {
					break
				}
				q.OrderBy = append(q.OrderBy, key)
			}
			if len(q.OrderBy) == 0 {
				return p.errorf("expected ORDER BY keys")
			}
		case p.acceptKeyword("LIMIT"):
			n, err := p.expect(tokNumber, "limit")
			if err != nil {
				return err
			}
			q.Limit, _ = strconv.Atoi(n.text)
		case p.acceptKeyword("OFFSET"):
			n, err := p.expect(tokNumber, "offset")
			if err != nil {
				return err
			}
			q.Offset, _ = strconv.Atoi(n.text)
		default:
			return nil
		}
	}
}

func (p *Parser) parseOrderKey() (OrderKey, bool, error) {
	desc := false
	switch {
	case p.atKeyword("DESC"):
		p.next()
		desc = true
	case p.atKeyword("ASC"):
		p.next()
	case p.peek().kind == tokVar:
		return OrderKey{Var: p.next().text}, true, nil
	default:
		return OrderKey{}, false, nil
	}
	if _, err := p.expect(tokLParen, "("); err != nil {
		return OrderKey{}, false, err
	}
	v, err := p.expect(tokVar, "variable")
	if err != nil {
		return OrderKey{}, false, err
	}
	if _, err := p.expect(tokRParen, ")"); err != nil {
		return OrderKey{}, false, err
	}
	return OrderKey{Var: v.text, Desc: desc}, true, nil
}

// ============================================================================
// Group graph patterns
// ============================================================================

func (p *Parser) parseGroup() (*GroupPattern, error) {
	if _, err := p.expect(tokLBrace, "{"); err != nil {
		return nil, err
	}
	g := &GroupPattern{}
	var bgp *BGP

	flush := func() {
		if bgp != nil && len(bgp.Patterns) > 0 {
			g.Elements = append(g.Elements, *bgp)
		}
		bgp = nil
	}

	for {
		t := p.peek()
		switch {
		case t.kind == tokRBrace:
			p.next()
			flush()
			return g, nil
		case t.kind == tokEOF:
			return nil, p.errorf("unterminated group")
		case t.kind == tokLBrace:
			flush()
			union := Union{}
			for {
				branch, err := p.parseGroup()
				if err != nil {
					return nil, err
				}
				union.Branches = append(union.Branches, branch)
				if !p.acceptKeyword("UNION") {
					break
				}
			}
			g.Elements = append(g.Elements, union)
		case p.atKeyword("OPTIONAL"):
			flush()
			p.next()
			inner, err := p.parseGroup()
			if err != nil {
				return nil, err
			}
			g.Elements = append(g.Elements, Optional{Group: inner})
		case p.atKeyword("FILTER"):
			flush()
			p.next()
			c, err := p.parseConstraint()
			if err != nil {
				return nil, err
			}
			g.Elements = append(g.Elements, Filter{Constraint: c})
		case t.kind == tokDot:
			p.next()
		default:
			pats, err := p.parseTriplesSameSubject()
			if err != nil {
				return nil, err
			}
			if bgp == nil {
				bgp = &BGP{}
			}
			bgp.Patterns = append(bgp.Patterns, pats...)
		}
	}
}

// parseTriplesSameSubject parses one subject with its
// predicate-object list: s p1 o1, o2 ; p2 o3 .
func (p *Parser) parseTriplesSameSubject() ([]TriplePattern, error) {
	subj, err := p.parseTermOrVar(false)
	if err != nil {
		return nil, err
	}
	var out []TriplePattern
	for {
		pred, err := p.parseTermOrVar(true)
		if err != nil {
			return nil, err
		}
		for {
			obj, err := p.parseTermOrVar(false)
			if err != nil {
				return nil, err
			}
			out = append(out, TriplePattern{S: subj, P: pred, O: obj})
			if p.peek().kind != tokComma {
				break
			}
			p.next()
		}
		if p.peek().kind != tokSemicolon {
			break
		}
		p.next()
		// Trailing ';' before '.' or '}' is tolerated.
		if k := p.peek().kind; k == tokDot || k == tokRBrace {
			break
		}
	}
	if p.peek().kind == tokDot {
		p.next()
	}
	return out, nil
}

// parseTermOrVar parses one pattern slot. In predicate position the
// keyword `a` expands to rdf:type.
func (p *Parser) parseTermOrVar(predicate bool) (TermOrVar, error) {
	t := p.peek()
	switch t.kind {
	case tokVar:
		p.next()
		return TermOrVar{Var: t.text}, nil
	case tokIRI, tokLiteral:
		p.next()
		return TermOrVar{Term: t.term}, nil
	case tokNumber:
		p.next()
		return TermOrVar{Term: rdf.NewLiteral(t.text).WithDatatype(rdf.XSDInteger)}, nil
	case tokIdent:
		if predicate && t.text == "a" {
			p.next()
			return TermOrVar{Term: rdf.TypePredicate}, nil
		}
		iri, err := p.resolvePrefixed(t.text)
		if err != nil {
			return TermOrVar{}, err
		}
		p.next()
		return TermOrVar{Term: iri}, nil
	default:
		return TermOrVar{}, p.errorf("expected term or variable")
	}
}

// ============================================================================
// Filters
// ============================================================================

func (p *Parser) parseConstraint() (Constraint, error) {
	if p.acceptKeyword("NOT") {
		if err := p.expectKeyword("EXISTS"); err != nil {
			return nil, err
		}
		g, err := p.parseGroup()
		if err != nil {
			return nil, err
		}
		return NotExists{Group: g}, nil
	}

	if _, err := p.expect(tokLParen, "("); err != nil {
		return nil, err
	}
	left, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	var op CompareOp
	switch p.next().kind {
	case tokNeq:
		op = OpNotEqual
	case tokLess:
		op = OpLess
	default:
		return nil, p.errorf("expected comparison operator")
	}
	right, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokRParen, ")"); err != nil {
		return nil, err
	}
	return Compare{Op: op, Left: left, Right: right}, nil
}

func (p *Parser) parseOperand() (Operand, error) {
	if p.acceptKeyword("STR") {
		if _, err := p.expect(tokLParen, "("); err != nil {
			return Operand{}, err
		}
		inner, err := p.parseOperand()
		if err != nil {
			return Operand{}, err
		}
		if _, err := p.expect(tokRParen, ")"); err != nil {
			return Operand{}, err
		}
		inner.Str = true
		return inner, nil
	}
	t := p.peek()
	switch t.kind {
	case tokVar:
		p.next()
		return Operand{Var: t.text}, nil
	case tokIRI, tokLiteral:
		p.next()
		return Operand{Term: t.term}, nil
	case tokNumber:
		p.next()
		return Operand{Term: rdf.NewLiteral(t.text).WithDatatype(rdf.XSDInteger)}, nil
	default:
		return Operand{}, p.errorf("expected filter operand")
	}
}

// ============================================================================
// Updates
// ============================================================================

func (p *Parser) parseUpdate() (*UpdateRequest, error) {
	req := &UpdateRequest{}
	for {
		if err := p.parsePrologue(); err != nil {
			return nil, err
		}
		if p.peek().kind == tokEOF {
			break
		}
		op, err := p.parseUpdateOp()
		if err != nil {
			return nil, err
		}
		req.Ops = append(req.Ops, op)
		if p.peek().kind == tokSemicolon {
			p.next()
			continue
		}
		if p.peek().kind != tokEOF {
			return nil, p.errorf("expected ';' or end of update")
		}
	}
	if len(req.Ops) == 0 {
		return nil, fmt.Errorf("sparql: empty update")
	}
	return req, nil
}

func (p *Parser) parseUpdateOp() (UpdateOp, error) {
	switch {
	case p.acceptKeyword("INSERT"):
		if p.acceptKeyword("DATA") {
			triples, err := p.parseGroundTriples()
			if err != nil {
				return nil, err
			}
			return InsertData{Triples: triples}, nil
		}
		insert, err := p.parsePatternTemplate()
		if err != nil {
			return nil, err
		}
		if err := p.expectKeyword("WHERE"); err != nil {
			return nil, err
		}
		where, err := p.parseGroup()
		if err != nil {
			return nil, err
		}
		return Modify{Insert: insert, Where: where}, nil

	case p.acceptKeyword("DELETE"):
		if p.acceptKeyword("DATA") {
			triples, err := p.parseGroundTriples()
			if err != nil {
				return nil, err
			}
			return DeleteData{Triples: triples}, nil
		}
		if p.acceptKeyword("WHERE") {
			pats, err := p.parsePatternTemplate()
			if err != nil {
				return nil, err
			}
			return DeleteWhere{Patterns: pats}, nil
		}
		del, err := p.parsePatternTemplate()
		if err != nil {
			return nil, err
		}
		var ins []TriplePattern
		if p.acceptKeyword("INSERT") {
			ins, err = p.parsePatternTemplate()
			if err != nil {
				return nil, err
			}
		}
		if err := p.expectKeyword("WHERE"); err != nil {
			return nil, err
		}
		where, err := p.parseGroup()
		if err != nil {
			return nil, err
		}
		return Modify{Delete: del, Insert: ins, Where: where}, nil

	default:
		return nil, p.errorf("expected INSERT or DELETE")
	}
}

// parsePatternTemplate parses a braced triple-pattern list.
func (p *Parser) parsePatternTemplate() ([]TriplePattern, error) {
	if _, err := p.expect(tokLBrace, "{"); err != nil {
		return nil, err
	}
	var out []TriplePattern
	for {
		switch p.peek().kind {
		case tokRBrace:
			p.next()
			return out, nil
		case tokEOF:
			return nil, p.errorf("unterminated template")
		case tokDot:
			p.next()
		default:
			pats, err := p.parseTriplesSameSubject()
			if err != nil {
				return nil, err
			}
			out = append(out, pats...)
		}
	}
}

func (p *Parser) parseGroundTriples() ([]rdf.Triple, error) {
	pats, err := p.parsePatternTemplate()
	if err != nil {
		return nil, err
	}
	triples := make([]rdf.Triple, 0, len(pats))
	for _, pat := range pats {
		t, err := groundTriple(pat, nil)
		if err != nil {
			return nil, fmt.Errorf("sparql: variables not allowed in DATA block: %w", err)
		}
		triples = append(triples, t)
	}
	return triples, nil
}
