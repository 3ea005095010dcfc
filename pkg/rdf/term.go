// Package rdf provides the RDF term model used across Huginn.
//
// Terms follow the N-Triples data model: IRIs, literals (with optional
// datatype or language tag), and blank nodes. The String form of every
// term is its N-Triples serialization, which is also the canonical key
// form used by the storage indexes.
//
// Example:
//
//	s := rdf.IRI("http://schema.org/Book")
//	fmt.Println(s.String()) // <http://schema.org/Book>
//
//	l := rdf.NewLiteral("42").WithDatatype(rdf.XSDInteger)
//	fmt.Println(l.String()) // "42"^^<http://www.w3.org/2001/XMLSchema#integer>
package rdf

import (
	"fmt"
	"strconv"
	"strings"
)

// Well-known IRIs.
const (
	// TypePredicate is the rdf:type membership predicate. It is excluded
	// from structural relation analysis.
	TypePredicate = IRI("http://www.w3.org/1999/02/22-rdf-syntax-ns#type")

	// AdditionalType holds demoted type assertions after duplicate-type
	// conflict resolution.
	AdditionalType = IRI("http://schema.org/additionalType")

	// XSDInteger is the xsd:integer datatype IRI.
	XSDInteger = IRI("http://www.w3.org/2001/XMLSchema#integer")

	// SchemaNamespace is the schema.org vocabulary namespace.
	SchemaNamespace = "http://schema.org/"
)

// Term is an RDF term: IRI, Literal or BlankNode.
//
// String returns the N-Triples serialization of the term.
type Term interface {
	String() string
	isTerm()
}

// IRI is an absolute IRI reference (without surrounding angle brackets).
type IRI string

func (i IRI) isTerm() {}

// String returns the IRI wrapped in angle brackets.
func (i IRI) String() string { return "<" + string(i) + ">" }

// SchemaIRI builds a schema.org IRI from a local name, lowercased the
// way the dataset normalization lowercases schema.org terms.
func SchemaIRI(local string) IRI {
	return IRI(SchemaNamespace + strings.ToLower(local))
}

// Literal is an RDF literal with an optional datatype or language tag.
// At most one of Datatype and Language is set.
type Literal struct {
	Value    string
	Datatype IRI
	Language string
}

func (l Literal) isTerm() {}

// NewLiteral returns a plain literal.
func NewLiteral(value string) Literal { return Literal{Value: value} }

// WithDatatype returns a copy of the literal carrying a datatype IRI.
func (l Literal) WithDatatype(dt IRI) Literal {
	l.Datatype = dt
	l.Language = ""
	return l
}

// String returns the N-Triples form of the literal.
func (l Literal) String() string {
	s := strconv.Quote(l.Value)
	switch {
	case l.Language != "":
		return s + "@" + l.Language
	case l.Datatype != "":
		return s + "^^" + l.Datatype.String()
	default:
		return s
	}
}

// Float returns the literal value parsed as a float64.
func (l Literal) Float() (float64, error) {
	return strconv.ParseFloat(l.Value, 64)
}

// Int returns the literal value parsed as an int64.
func (l Literal) Int() (int64, error) {
	return strconv.ParseInt(l.Value, 10, 64)
}

// BlankNode is a blank node label (without the leading "_:").
type BlankNode string

func (b BlankNode) isTerm() {}

// String returns the N-Triples blank node form.
func (b BlankNode) String() string { return "_:" + string(b) }

// Skolemize converts a blank node into a stable urn:skolem IRI so that
// datasets can be stored and compared without blank-node scoping.
func (b BlankNode) Skolemize() IRI {
	return IRI("urn:skolem:" + string(b))
}

// Triple is a single RDF statement.
type Triple struct {
	Subject   Term
	Predicate IRI
	Object    Term
}

// String returns the N-Triples line for the triple, without the
// trailing newline.
func (t Triple) String() string {
	return fmt.Sprintf("%s %s %s .", t.Subject, t.Predicate, t.Object)
}

// ValueOf extracts the comparable value of a term: the literal lexical
// form for literals, the bare IRI for IRIs, the label for blank nodes.
func ValueOf(t Term) string {
	switch v := t.(type) {
	case IRI:
		return string(v)
	case Literal:
		return v.Value
	case BlankNode:
		return string(v)
	default:
		return ""
	}
}
