package rdf

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrBadLine reports an unparseable N-Triples or N-Quads line.
var ErrBadLine = errors.New("rdf: malformed statement")

// ParseTerm parses a single N-Triples token into a Term.
//
// Accepted forms:
//   - <iri>
//   - "literal", "literal"@lang, "literal"^^<datatype>
//   - _:label
func ParseTerm(tok string) (Term, error) {
	tok = strings.TrimSpace(tok)
	switch {
	case strings.HasPrefix(tok, "<") && strings.HasSuffix(tok, ">"):
		return IRI(tok[1 : len(tok)-1]), nil
	case strings.HasPrefix(tok, "_:"):
		return BlankNode(tok[2:]), nil
	case strings.HasPrefix(tok, `"`):
		return parseLiteral(tok)
	default:
		return nil, fmt.Errorf("%w: token %q", ErrBadLine, tok)
	}
}

func parseLiteral(tok string) (Term, error) {
	end := closingQuote(tok)
	if end < 0 {
		return nil, fmt.Errorf("%w: unterminated literal %q", ErrBadLine, tok)
	}
	value, err := strconv.Unquote(tok[:end+1])
	if err != nil {
		// N-Triples allows escapes Go rejects; fall back to the raw body.
		value = unescape(tok[1:end])
	}
	lit := Literal{Value: value}
	rest := tok[end+1:]
	switch {
	case rest == "":
		return lit, nil
	case strings.HasPrefix(rest, "@"):
		lit.Language = rest[1:]
		return lit, nil
	case strings.HasPrefix(rest, "^^<") && strings.HasSuffix(rest, ">"):
		lit.Datatype = IRI(rest[3 : len(rest)-1])
		return lit, nil
	default:
		return nil, fmt.Errorf("%w: literal suffix %q", ErrBadLine, rest)
	}
}

// closingQuote returns the index of the unescaped closing quote of a
// literal token starting with a double quote, or -1.
func closingQuote(tok string) int {
	for i := 1; i < len(tok); i++ {
		switch tok[i] {
		case '\\':
			i++
		case '"':
			return i
		}
	}
	return -1
}

func unescape(s string) string {
	r := strings.NewReplacer(`\"`, `"`, `\\`, `\`, `\n`, "\n", `\t`, "\t", `\r`, "\r")
	return r.Replace(s)
}

// ParseLine parses one N-Triples or N-Quads line into a Triple.
//
// N-Quads graph names are dropped (the store is a single default
// graph). Blank nodes are skolemized into urn:skolem IRIs so that
// statements stay addressable across load/dump cycles. Comment and
// blank lines return (Triple{}, false, nil).
func ParseLine(line string) (Triple, bool, error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return Triple{}, false, nil
	}
	line = strings.TrimSpace(strings.TrimSuffix(line, "."))

	toks, err := splitTokens(line)
	if err != nil {
		return Triple{}, false, err
	}
	if len(toks) != 3 && len(toks) != 4 {
		return Triple{}, false, fmt.Errorf("%w: %d terms", ErrBadLine, len(toks))
	}

	s, err := ParseTerm(toks[0])
	if err != nil {
		return Triple{}, false, err
	}
	p, err := ParseTerm(toks[1])
	if err != nil {
		return Triple{}, false, err
	}
	pred, ok := p.(IRI)
	if !ok {
		return Triple{}, false, fmt.Errorf("%w: predicate must be an IRI", ErrBadLine)
	}
	o, err := ParseTerm(toks[2])
	if err != nil {
		return Triple{}, false, err
	}

	return Triple{
		Subject:   skolemized(normalizeSchema(s)),
		Predicate: normalizeSchemaIRI(pred),
		Object:    skolemized(normalizeSchema(o)),
	}, true, nil
}

// splitTokens splits an N-Triples statement body into term tokens,
// honoring quoted literals.
func splitTokens(line string) ([]string, error) {
	var toks []string
	i := 0
	for i < len(line) {
		for i < len(line) && (line[i] == ' ' || line[i] == '\t') {
			i++
		}
		if i >= len(line) {
			break
		}
		start := i
		if line[i] == '"' {
			end := closingQuote(line[i:])
			if end < 0 {
				return nil, fmt.Errorf("%w: unterminated literal", ErrBadLine)
			}
			i += end + 1
			// Datatype or language suffix sticks to the literal.
			for i < len(line) && line[i] != ' ' && line[i] != '\t' {
				i++
			}
		} else {
			for i < len(line) && line[i] != ' ' && line[i] != '\t' {
				i++
			}
		}
		toks = append(toks, line[start:i])
	}
	return toks, nil
}

func skolemized(t Term) Term {
	if b, ok := t.(BlankNode); ok {
		return b.Skolemize()
	}
	return t
}

// normalizeSchema lowercases the local part of schema.org IRIs; the
// source datasets mix cases freely for the same vocabulary term.
func normalizeSchema(t Term) Term {
	if iri, ok := t.(IRI); ok {
		return normalizeSchemaIRI(iri)
	}
	return t
}

func normalizeSchemaIRI(iri IRI) IRI {
	s := string(iri)
	for _, prefix := range []string{"http://schema.org/", "https://schema.org/"} {
		if strings.HasPrefix(s, prefix) {
			return IRI(SchemaNamespace + strings.ToLower(s[len(prefix):]))
		}
	}
	return iri
}
