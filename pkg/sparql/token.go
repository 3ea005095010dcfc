package sparql

import (
	"fmt"
	"strings"

	"github.com/orneryd/huginn/pkg/rdf"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent           // keyword, prefixed name, or bare word
	tokVar             // ?name
	tokIRI             // <...>
	tokLiteral         // "..." with optional @lang / ^^<dt>
	tokNumber          // bare integer
	tokLBrace          // {
	tokRBrace          // }
	tokLParen          // (
	tokRParen          // )
	tokDot             // .
	tokSemicolon       // ;
	tokComma           // ,
	tokStar            // *
	tokNeq             // !=
	tokLess            // < (comparison, not an IRI opener)
)

type token struct {
	kind tokenKind
	text string   // raw text (keywords, names, numbers)
	term rdf.Term // parsed term for tokIRI / tokLiteral
	pos  int
}

// lexer tokenizes a query string. It is deliberately line-agnostic;
// SPARQL whitespace carries no meaning outside literals.
type lexer struct {
	input string
	pos   int
}

func newLexer(input string) *lexer {
	return &lexer{input: input}
}

func (l *lexer) errorf(pos int, format string, args ...any) error {
	return fmt.Errorf("sparql: %s at offset %d", fmt.Sprintf(format, args...), pos)
}

func (l *lexer) skipSpace() {
	for l.pos < len(l.input) {
		c := l.input[l.pos]
		if c == ' ' || c == '\t' || c == '\n' || c == '\r' {
			l.pos++
			continue
		}
		if c == '#' {
			for l.pos < len(l.input) && l.input[l.pos] != '\n' {
				l.pos++
			}
			continue
		}
		break
	}
}

func (l *lexer) next() (token, error) {
	l.skipSpace()
	start := l.pos
	if l.pos >= len(l.input) {
		return token{kind: tokEOF, pos: start}, nil
	}

	c := l.input[l.pos]
	switch c {
	case '{':
		l.pos++
		return token{kind: tokLBrace, text: "{", pos: start}, nil
	case '}':
		l.pos++
		return token{kind: tokRBrace, text: "}", pos: start}, nil
	case '(':
		l.pos++
		return token{kind: tokLParen, text: "(", pos: start}, nil
	case ')':
		l.pos++
		return token{kind: tokRParen, text: ")", pos: start}, nil
	case '.':
		l.pos++
		return token{kind: tokDot, text: ".", pos: start}, nil
	case ';':
		l.pos++
		return token{kind: tokSemicolon, text: ";", pos: start}, nil
	case ',':
		l.pos++
		return token{kind: tokComma, text: ",", pos: start}, nil
	case '*':
		l.pos++
		return token{kind: tokStar, text: "*", pos: start}, nil
	case '!':
		if l.pos+1 < len(l.input) && l.input[l.pos+1] == '=' {
			l.pos += 2
			return token{kind: tokNeq, text: "!=", pos: start}, nil
		}
		return token{}, l.errorf(start, "unexpected %q", c)
	case '?', '$':
		l.pos++
		name := l.takeWhile(isNameChar)
		if name == "" {
			return token{}, l.errorf(start, "empty variable name")
		}
		return token{kind: tokVar, text: name, pos: start}, nil
	case '<':
		// An IRI reference runs to '>' with no intervening whitespace;
		// anything else is the less-than operator.
		if end := l.iriEnd(); end >= 0 {
			raw := l.input[l.pos : end+1]
			l.pos = end + 1
			t, err := rdf.ParseTerm(raw)
			if err != nil {
				return token{}, l.errorf(start, "bad IRI %s", raw)
			}
			return token{kind: tokIRI, text: raw, term: t, pos: start}, nil
		}
		l.pos++
		return token{kind: tokLess, text: "<", pos: start}, nil
	case '"':
		raw, err := l.literal()
		if err != nil {
			return token{}, err
		}
		t, err := rdf.ParseTerm(raw)
		if err != nil {
			return token{}, l.errorf(start, "bad literal %s", raw)
		}
		return token{kind: tokLiteral, text: raw, term: t, pos: start}, nil
	case '_':
		if l.pos+1 < len(l.input) && l.input[l.pos+1] == ':' {
			l.pos += 2
			name := l.takeWhile(isNameChar)
			return token{kind: tokLiteral, text: "_:" + name, term: rdf.BlankNode(name).Skolemize(), pos: start}, nil
		}
	}

	if c >= '0' && c <= '9' {
		num := l.takeWhile(func(b byte) bool { return b >= '0' && b <= '9' })
		return token{kind: tokNumber, text: num, pos: start}, nil
	}
	if isNameStart(c) {
		word := l.takeWhile(func(b byte) bool { return isNameChar(b) || b == ':' })
		return token{kind: tokIdent, text: word, pos: start}, nil
	}
	return token{}, l.errorf(start, "unexpected %q", c)
}

// iriEnd returns the index of the closing '>' if the text at pos is an
// IRI reference, -1 otherwise.
func (l *lexer) iriEnd() int {
	for i := l.pos + 1; i < len(l.input); i++ {
		switch l.input[i] {
		case '>':
			return i
		case ' ', '\t', '\n', '\r':
			return -1
		}
	}
	return -1
}

func (l *lexer) literal() (string, error) {
	start := l.pos
	i := l.pos + 1
	for i < len(l.input) {
		switch l.input[i] {
		case '\\':
			i += 2
			continue
		case '"':
			i++
			// Language tag or datatype suffix.
			if i < len(l.input) && l.input[i] == '@' {
				i++
				for i < len(l.input) && (isNameChar(l.input[i]) || l.input[i] == '-') {
					i++
				}
			} else if strings.HasPrefix(l.input[i:], "^^<") {
				for i < len(l.input) && l.input[i] != '>' {
					i++
				}
				if i < len(l.input) {
					i++
				}
			}
			raw := l.input[start:i]
			l.pos = i
			return raw, nil
		default:
			i++
		}
	}
	return "", l.errorf(start, "unterminated literal")
}

func (l *lexer) takeWhile(pred func(byte) bool) string {
	start := l.pos
	for l.pos < len(l.input) && pred(l.input[l.pos]) {
		l.pos++
	}
	return l.input[start:l.pos]
}

func isNameStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isNameChar(c byte) bool {
	return isNameStart(c) || (c >= '0' && c <= '9')
}

// tokenize reads the whole input up front; queries are short and a
// token slice keeps the parser's lookahead trivial.
func tokenize(input string) ([]token, error) {
	l := newLexer(input)
	var toks []token
	for {
		t, err := l.next()
		if err != nil {
			return nil, err
		}
		toks = append(toks, t)
		if t.kind == tokEOF {
			return toks, nil
		}
	}
}
