package rdf

import (
	"testing"
)

func TestParseTerm(t *testing.T) {
	tests := []struct {
		name string
		tok  string
		want string // N-Triples form of the parsed term
		ok   bool
	}{
		{"iri", "<http://example.org/a>", "<http://example.org/a>", true},
		{"blank node", "_:b0", "_:b0", true},
		{"plain literal", `"hello"`, `"hello"`, true},
		{"lang literal", `"bonjour"@fr`, `"bonjour"@fr`, true},
		{"typed literal", `"42"^^<http://www.w3.org/2001/XMLSchema#integer>`, `"42"^^<http://www.w3.org/2001/XMLSchema#integer>`, true},
		{"escaped quote", `"say \"hi\""`, `"say \"hi\""`, true},
		{"bare word", "hello", "", false},
		{"unterminated literal", `"oops`, "", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			term, err := ParseTerm(tc.tok)
			if tc.ok != (err == nil) {
				t.Fatalf("ParseTerm(%q) error = %v, want ok=%v", tc.tok, err, tc.ok)
			}
			if tc.ok && term.String() != tc.want {
				t.Errorf("ParseTerm(%q) = %s, want %s", tc.tok, term, tc.want)
			}
		})
	}
}

func TestParseLine(t *testing.T) {
	t.Run("triple", func(t *testing.T) {
		tr, ok, err := ParseLine(`<http://ex/s> <http://ex/p> "v" .`)
		if err != nil || !ok {
			t.Fatalf("ParseLine: ok=%v err=%v", ok, err)
		}
		if got := tr.String(); got != `<http://ex/s> <http://ex/p> "v" .` {
			t.Errorf("round trip = %s", got)
		}
	})

	t.Run("quad drops graph name", func(t *testing.T) {
		tr, ok, err := ParseLine(`<http://ex/s> <http://ex/p> <http://ex/o> <http://ex/g> .`)
		if err != nil || !ok {
			t.Fatalf("ParseLine: ok=%v err=%v", ok, err)
		}
		if ValueOf(tr.Object) != "http://ex/o" {
			t.Errorf("object = %s", tr.Object)
		}
	})

	t.Run("blank nodes skolemized", func(t *testing.T) {
		tr, _, err := ParseLine(`_:x <http://ex/p> _:y .`)
		if err != nil {
			t.Fatal(err)
		}
		if tr.Subject != IRI("urn:skolem:x") || tr.Object != IRI("urn:skolem:y") {
			t.Errorf("got %s / %s", tr.Subject, tr.Object)
		}
	})

	t.Run("schema.org IRIs lowercased", func(t *testing.T) {
		tr, _, err := ParseLine(`<http://ex/s> <http://www.w3.org/1999/02/22-rdf-syntax-ns#type> <https://schema.org/CreativeWork> .`)
		if err != nil {
			t.Fatal(err)
		}
		if tr.Object != IRI("http://schema.org/creativework") {
			t.Errorf("object = %s", tr.Object)
		}
	})

	t.Run("comments and blanks skipped", func(t *testing.T) {
		for _, line := range []string{"", "   ", "# a comment"} {
			_, ok, err := ParseLine(line)
			if ok || err != nil {
				t.Errorf("ParseLine(%q): ok=%v err=%v", line, ok, err)
			}
		}
	})

	t.Run("malformed", func(t *testing.T) {
		for _, line := range []string{
			`<http://ex/s> <http://ex/p> .`,
			`<http://ex/s> "not-a-predicate" <http://ex/o> .`,
			`<http://ex/s> <http://ex/p> "unterminated .`,
		} {
			if _, _, err := ParseLine(line); err == nil {
				t.Errorf("ParseLine(%q): expected error", line)
			}
		}
	})
}

func TestLiteralAccessors(t *testing.T) {
	f, err := Literal{Value: "3.5"}.Float()
	if err != nil || f != 3.5 {
		t.Errorf("Float = %v, %v", f, err)
	}
	n, err := Literal{Value: "42"}.Int()
	if err != nil || n != 42 {
		t.Errorf("Int = %v, %v", n, err)
	}
}

func TestSchemaIRI(t *testing.T) {
	if got := SchemaIRI("Book"); got != IRI("http://schema.org/book") {
		t.Errorf("SchemaIRI = %s", got)
	}
}
