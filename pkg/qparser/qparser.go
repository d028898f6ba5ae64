// Package qparser parses SPARQL query text into a pkg/query.Query ready for
// Prepare. It builds a raw, unanalyzed graph-pattern tree: QName terms are
// left unexpanded and blank-node labels are left as blank terms, since
// resolving those is pkg/query.Query.Prepare's job, not the parser's.
package qparser

import (
	"fmt"

	"github.com/knotgraph/sparqlprep/internal/algebra"
	"github.com/knotgraph/sparqlprep/pkg/query"
)

// Parser holds the scanning state for one query string. prefixes tracks
// PREFIX declarations for three purposes: Query.Declare (so the rewriter can
// later expand QName terms), resolving the datatype IRI of a typed
// literal eagerly, since a literal's Datatype field is a concrete
// *rdf.NamedNode rather than a term the rewriter's qname pass ever visits,
// and resolving a prefixed function name in a call to its IRI.
type Parser struct {
	input    string
	pos      int
	length   int
	baseURI  string
	prefixes map[string]string
}

// Parse parses a complete SPARQL query and returns the resulting Query,
// unprepared. Call Prepare on the result to run the analysis pipeline.
func Parse(input string) (*query.Query, error) {
	p := &Parser{input: input, length: len(input), prefixes: make(map[string]string)}
	return p.parseQuery()
}

func (p *Parser) parseQuery() (*query.Query, error) {
	if err := p.parsePrologue(); err != nil {
		return nil, err
	}

	p.skipWhitespace()
	savedPos := p.pos
	switch {
	case p.matchKeyword("SELECT"):
		return p.parseSelect()
	case p.matchKeyword("CONSTRUCT"):
		return p.parseConstruct()
	case p.matchKeyword("ASK"):
		return p.parseAsk()
	case p.matchKeyword("DESCRIBE"):
		return p.parseDescribe()
	default:
		p.pos = savedPos
		return nil, fmt.Errorf("qparser: expected SELECT, CONSTRUCT, ASK, or DESCRIBE at position %d", p.pos)
	}
}

// parsePrologue consumes the leading PREFIX/BASE declarations into
// p.prefixes and p.baseURI.
func (p *Parser) parsePrologue() error {
	for {
		p.skipWhitespace()
		savedPos := p.pos
		if p.matchKeyword("PREFIX") {
			if err := p.parsePrefixDecl(); err != nil {
				return err
			}
			continue
		}
		if p.matchKeyword("BASE") {
			if err := p.parseBaseDecl(); err != nil {
				return err
			}
			continue
		}
		p.pos = savedPos
		return nil
	}
}

func (p *Parser) parsePrefixDecl() error {
	p.skipWhitespace()
	name := p.readWhile(func(c byte) bool {
		return c != ':' && c != ' ' && c != '\t' && c != '\n' && c != '\r'
	})
	p.skipWhitespace()
	if p.peek() != ':' {
		return fmt.Errorf("qparser: expected ':' in PREFIX declaration at position %d", p.pos)
	}
	p.advance()
	p.skipWhitespace()
	iri, err := p.parseIRIRef()
	if err != nil {
		return fmt.Errorf("qparser: PREFIX declaration: %w", err)
	}
	p.prefixes[name] = p.resolveIRI(iri)
	return nil
}

func (p *Parser) parseBaseDecl() error {
	p.skipWhitespace()
	iri, err := p.parseIRIRef()
	if err != nil {
		return fmt.Errorf("qparser: BASE declaration: %w", err)
	}
	p.baseURI = p.resolveIRI(iri)
	return nil
}

// declarePrefixes copies the prologue's prefix table into q's Namespaces,
// leaving qname resolution itself to the rewriter.
func (p *Parser) declarePrefixes(q *query.Query) {
	for prefix, base := range p.prefixes {
		q.Declare(prefix, base)
	}
}

func (p *Parser) parseWhereClause(q *query.Query) (*algebra.Node, error) {
	p.skipWhitespace()
	p.matchKeyword("WHERE")
	p.skipWhitespace()
	return p.parseGroupGraphPattern(q)
}
