package qparser

import (
	"fmt"
	"strings"

	"github.com/knotgraph/sparqlprep/internal/algebra"
	"github.com/knotgraph/sparqlprep/pkg/query"
	"github.com/knotgraph/sparqlprep/pkg/rdf"
)

// parseIRIRef scans a '<...>'-delimited IRI reference and returns its
// contents, unresolved against BASE (callers that need BASE resolution call
// resolveIRI themselves).
func (p *Parser) parseIRIRef() (string, error) {
	if p.peek() != '<' {
		return "", fmt.Errorf("expected '<' at position %d", p.pos)
	}
	p.advance()
	start := p.pos
	for p.pos < p.length && p.input[p.pos] != '>' {
		p.pos++
	}
	if p.pos >= p.length {
		return "", fmt.Errorf("unterminated IRI reference starting at position %d", start)
	}
	iri := p.input[start:p.pos]
	p.advance()
	return iri, nil
}

// parseTermOrVar dispatches on the next character to the matching term or
// variable scanner.
func (p *Parser) parseTermOrVar(q *query.Query) (algebra.TermOrVar, error) {
	p.skipWhitespace()
	switch c := p.peek(); {
	case c == '?' || c == '$':
		v, err := p.parseVariableName()
		if err != nil {
			return algebra.TermOrVar{}, err
		}
		return algebra.FromVar(q.Variable(v)), nil
	case c == '<':
		iri, err := p.parseIRIRef()
		if err != nil {
			return algebra.TermOrVar{}, err
		}
		return algebra.FromTerm(rdf.NewNamedNode(p.resolveIRI(iri))), nil
	case c == '"' || c == '\'':
		lit, err := p.parseStringLiteral()
		if err != nil {
			return algebra.TermOrVar{}, err
		}
		return algebra.FromTerm(lit), nil
	case c == '_':
		bn, err := p.parseBlankNodeLabel()
		if err != nil {
			return algebra.TermOrVar{}, err
		}
		return algebra.FromTerm(bn), nil
	case c >= '0' && c <= '9', c == '-' || c == '+':
		lit, err := p.parseNumericLiteral()
		if err != nil {
			return algebra.TermOrVar{}, err
		}
		return algebra.FromTerm(lit), nil
	case c == 'a' && !isNameChar(p.peekAt(1)):
		p.advance()
		return algebra.FromTerm(rdf.RDFType), nil
	case c == ':' || isNameStartChar(c):
		qn, err := p.parsePrefixedName()
		if err != nil {
			return algebra.TermOrVar{}, err
		}
		return algebra.FromTerm(qn), nil
	default:
		return algebra.TermOrVar{}, fmt.Errorf("qparser: unexpected character %q at position %d", c, p.pos)
	}
}

func (p *Parser) parseVariableName() (string, error) {
	if p.peek() != '?' && p.peek() != '$' {
		return "", fmt.Errorf("expected variable at position %d", p.pos)
	}
	p.advance()
	name := p.readWhile(isNameChar)
	if name == "" {
		return "", fmt.Errorf("expected variable name at position %d", p.pos)
	}
	return name, nil
}

// parsePrefixedName scans a prefix:local pair and returns an unresolved
// rdf.QName. The prefix is deliberately not looked up here: qname expansion
// belongs to the rewriter, so the prefix table travels with the query as
// Namespaces instead of being consulted at parse time.
func (p *Parser) parsePrefixedName() (*rdf.QName, error) {
	prefix := p.readWhile(isNameChar)
	if p.peek() != ':' {
		return nil, fmt.Errorf("qparser: expected ':' in prefixed name at position %d", p.pos)
	}
	p.advance()
	local := p.readWhile(func(c byte) bool {
		return isNameChar(c) || c == '%' || c == '\\'
	})
	return rdf.NewQName(prefix, local), nil
}

func (p *Parser) parseStringLiteral() (*rdf.Literal, error) {
	quote := p.peek()
	if quote != '"' && quote != '\'' {
		return nil, fmt.Errorf("expected string literal at position %d", p.pos)
	}
	p.advance()
	var sb strings.Builder
	for p.pos < p.length && p.input[p.pos] != quote {
		if p.input[p.pos] == '\\' && p.pos+1 < p.length {
			sb.WriteByte(p.input[p.pos+1])
			p.pos += 2
			continue
		}
		sb.WriteByte(p.input[p.pos])
		p.pos++
	}
	if p.pos >= p.length {
		return nil, fmt.Errorf("unterminated string literal")
	}
	p.advance() // closing quote

	value := sb.String()

	if p.peek() == '@' {
		p.advance()
		lang := p.readWhile(func(c byte) bool {
			return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '-'
		})
		return rdf.NewLiteralWithLanguage(value, lang), nil
	}

	if p.match("^^") {
		p.skipWhitespace()
		switch p.peek() {
		case '<':
			iri, err := p.parseIRIRef()
			if err != nil {
				return nil, fmt.Errorf("datatype IRI: %w", err)
			}
			return rdf.NewLiteralWithDatatype(value, rdf.NewNamedNode(p.resolveIRI(iri))), nil
		default:
			qn, err := p.parsePrefixedName()
			if err != nil {
				return nil, fmt.Errorf("datatype prefixed name: %w", err)
			}
			// A literal's Datatype field is a concrete *rdf.NamedNode, not
			// a term the rewriter's qname pass ever visits, so resolve it
			// against the prefix table eagerly instead.
			base, ok := p.prefixes[qn.Prefix]
			if !ok {
				return nil, fmt.Errorf("qparser: undeclared prefix %q in datatype IRI", qn.Prefix)
			}
			return rdf.NewLiteralWithDatatype(value, rdf.NewNamedNode(base+qn.Local)), nil
		}
	}

	return rdf.NewLiteral(value), nil
}

func (p *Parser) parseBlankNodeLabel() (*rdf.BlankNode, error) {
	if p.peek() != '_' {
		return nil, fmt.Errorf("expected blank node at position %d", p.pos)
	}
	p.advance()
	if p.peek() != ':' {
		return nil, fmt.Errorf("expected ':' after '_' at position %d", p.pos)
	}
	p.advance()
	label := p.readWhile(isNameChar)
	if label == "" {
		return nil, fmt.Errorf("expected blank node label at position %d", p.pos)
	}
	return rdf.NewBlankNode(label), nil
}

func (p *Parser) parseNumericLiteral() (*rdf.Literal, error) {
	start := p.pos
	if p.peek() == '+' || p.peek() == '-' {
		p.advance()
	}
	p.readWhile(func(c byte) bool { return c >= '0' && c <= '9' })
	isDouble := false
	if p.peek() == '.' {
		isDouble = true
		p.advance()
		p.readWhile(func(c byte) bool { return c >= '0' && c <= '9' })
	}
	if p.peek() == 'e' || p.peek() == 'E' {
		isDouble = true
		p.advance()
		if p.peek() == '+' || p.peek() == '-' {
			p.advance()
		}
		p.readWhile(func(c byte) bool { return c >= '0' && c <= '9' })
	}
	text := p.input[start:p.pos]
	if text == "" || text == "+" || text == "-" {
		return nil, fmt.Errorf("qparser: expected numeric literal at position %d", start)
	}
	if isDouble {
		return rdf.NewLiteralWithDatatype(text, rdf.XSDDouble), nil
	}
	return rdf.NewLiteralWithDatatype(text, rdf.XSDInteger), nil
}
