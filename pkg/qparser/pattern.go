package qparser

import (
	"fmt"

	"github.com/knotgraph/sparqlprep/internal/algebra"
	"github.com/knotgraph/sparqlprep/pkg/query"
	"github.com/knotgraph/sparqlprep/pkg/rdf"
)

// parseGroupGraphPattern parses a brace-delimited '{ ... }' group,
// dispatching on each element's leading keyword and building an
// algebra.Node tree directly, with no intermediate AST.
func (p *Parser) parseGroupGraphPattern(q *query.Query) (*algebra.Node, error) {
	p.skipWhitespace()
	if p.peek() != '{' {
		return nil, fmt.Errorf("qparser: expected '{' at position %d", p.pos)
	}
	p.advance()

	var children []*algebra.Node
	pendingStart, pendingEnd := -1, -1
	flush := func() {
		if pendingStart != -1 {
			children = append(children, algebra.NewBasic(pendingStart, pendingEnd))
			pendingStart, pendingEnd = -1, -1
		}
	}

	for {
		p.skipWhitespace()
		if p.peek() == '}' {
			p.advance()
			break
		}
		if p.pos >= p.length {
			return nil, fmt.Errorf("qparser: unterminated group graph pattern")
		}

		switch {
		case p.matchKeyword("GRAPH"):
			flush()
			n, err := p.parseGraphGraphPattern(q)
			if err != nil {
				return nil, err
			}
			children = append(children, n)
			continue

		case p.matchKeyword("SERVICE"):
			flush()
			n, err := p.parseServiceGraphPattern(q)
			if err != nil {
				return nil, err
			}
			children = append(children, n)
			continue

		case p.matchKeyword("FILTER"):
			flush()
			e, err := p.parseFilterClause(q)
			if err != nil {
				return nil, err
			}
			children = append(children, algebra.NewFilter(e))
			continue

		case p.matchKeyword("BIND"):
			flush()
			n, err := p.parseBindClause(q)
			if err != nil {
				return nil, err
			}
			children = append(children, n)
			continue

		case p.matchKeyword("OPTIONAL"):
			flush()
			inner, err := p.parseGroupGraphPattern(q)
			if err != nil {
				return nil, fmt.Errorf("OPTIONAL: %w", err)
			}
			children = append(children, algebra.NewOptional(inner))
			continue

		case p.matchKeyword("MINUS"):
			flush()
			inner, err := p.parseGroupGraphPattern(q)
			if err != nil {
				return nil, fmt.Errorf("MINUS: %w", err)
			}
			children = append(children, algebra.NewMinus(inner))
			continue

		case p.matchKeyword("VALUES"):
			flush()
			n, err := p.parseValuesClause(q)
			if err != nil {
				return nil, err
			}
			children = append(children, n)
			continue
		}

		if p.peek() == '{' {
			flush()
			if p.peekSubSelect() {
				n, err := p.parseSubSelect(q)
				if err != nil {
					return nil, err
				}
				children = append(children, n)
				continue
			}
			left, err := p.parseGroupGraphPattern(q)
			if err != nil {
				return nil, err
			}
			p.skipWhitespace()
			if p.matchKeyword("UNION") {
				right, err := p.parseGroupGraphPattern(q)
				if err != nil {
					return nil, fmt.Errorf("UNION: %w", err)
				}
				for p.matchKeyword("UNION") {
					extra, err := p.parseGroupGraphPattern(q)
					if err != nil {
						return nil, fmt.Errorf("UNION: %w", err)
					}
					right = algebra.NewUnion(right, extra)
				}
				children = append(children, algebra.NewUnion(left, right))
			} else {
				children = append(children, left)
			}
			continue
		}

		triples, err := p.parseTriplesSameSubject(q)
		if err != nil {
			return nil, err
		}
		for _, tp := range triples {
			start, end := q.AddTriples(tp)
			if pendingStart == -1 {
				pendingStart = start
			}
			pendingEnd = end
		}

		p.skipWhitespace()
		if p.peek() == '.' {
			p.advance()
		}
	}

	flush()
	return algebra.NewGroup(children...), nil
}

// parseGraphGraphPattern parses GRAPH <iri-or-var> { ... }.
func (p *Parser) parseGraphGraphPattern(q *query.Query) (*algebra.Node, error) {
	origin, err := p.parseTermOrVar(q)
	if err != nil {
		return nil, fmt.Errorf("GRAPH: %w", err)
	}
	inner, err := p.parseGroupGraphPattern(q)
	if err != nil {
		return nil, fmt.Errorf("GRAPH: %w", err)
	}
	return algebra.NewGraph(origin, inner), nil
}

// parseServiceGraphPattern parses SERVICE [SILENT] <iri-or-var> { ... }.
func (p *Parser) parseServiceGraphPattern(q *query.Query) (*algebra.Node, error) {
	silent := p.matchKeyword("SILENT")
	origin, err := p.parseTermOrVar(q)
	if err != nil {
		return nil, fmt.Errorf("SERVICE: %w", err)
	}
	inner, err := p.parseGroupGraphPattern(q)
	if err != nil {
		return nil, fmt.Errorf("SERVICE: %w", err)
	}
	return algebra.NewService(origin, inner, silent), nil
}

func (p *Parser) parseFilterClause(q *query.Query) (algebra.Expr, error) {
	return p.parseConstraint(q)
}

func (p *Parser) parseBindClause(q *query.Query) (*algebra.Node, error) {
	p.skipWhitespace()
	if p.peek() != '(' {
		return nil, fmt.Errorf("qparser: expected '(' after BIND at position %d", p.pos)
	}
	p.advance()
	e, err := p.parseExpression(q)
	if err != nil {
		return nil, fmt.Errorf("BIND: %w", err)
	}
	p.skipWhitespace()
	if !p.matchKeyword("AS") {
		return nil, fmt.Errorf("qparser: expected AS in BIND at position %d", p.pos)
	}
	p.skipWhitespace()
	name, err := p.parseVariableName()
	if err != nil {
		return nil, fmt.Errorf("BIND: %w", err)
	}
	p.skipWhitespace()
	if p.peek() != ')' {
		return nil, fmt.Errorf("qparser: expected ')' to close BIND at position %d", p.pos)
	}
	p.advance()

	v := q.Variable(name)
	v.SetExpression(e)
	return algebra.NewLet(v), nil
}

func (p *Parser) parseValuesClause(q *query.Query) (*algebra.Node, error) {
	p.skipWhitespace()
	var vars []string
	if p.peek() == '(' {
		p.advance()
		for {
			p.skipWhitespace()
			if p.peek() == ')' {
				p.advance()
				break
			}
			name, err := p.parseVariableName()
			if err != nil {
				return nil, fmt.Errorf("VALUES: %w", err)
			}
			vars = append(vars, name)
		}
	} else {
		name, err := p.parseVariableName()
		if err != nil {
			return nil, fmt.Errorf("VALUES: %w", err)
		}
		vars = append(vars, name)
	}

	p.skipWhitespace()
	if p.peek() != '{' {
		return nil, fmt.Errorf("qparser: expected '{' to start VALUES data block at position %d", p.pos)
	}
	p.advance()

	block := &algebra.ValuesBlock{}
	for _, name := range vars {
		block.Vars = append(block.Vars, q.Variable(name))
	}

	for {
		p.skipWhitespace()
		if p.peek() == '}' {
			p.advance()
			break
		}

		row := make([]rdf.Term, len(vars))
		if len(vars) == 1 {
			term, err := p.parseValuesTerm(q)
			if err != nil {
				return nil, fmt.Errorf("VALUES: %w", err)
			}
			row[0] = term
		} else {
			p.skipWhitespace()
			if p.peek() != '(' {
				return nil, fmt.Errorf("qparser: expected '(' in VALUES data row at position %d", p.pos)
			}
			p.advance()
			for i := range vars {
				term, err := p.parseValuesTerm(q)
				if err != nil {
					return nil, fmt.Errorf("VALUES: %w", err)
				}
				row[i] = term
			}
			p.skipWhitespace()
			if p.peek() != ')' {
				return nil, fmt.Errorf("qparser: expected ')' to close VALUES data row at position %d", p.pos)
			}
			p.advance()
		}
		block.Rows = append(block.Rows, row)
	}

	return algebra.NewValues(block), nil
}

// parseValuesTerm parses one VALUES cell: a term or the UNDEF keyword (nil).
func (p *Parser) parseValuesTerm(q *query.Query) (rdf.Term, error) {
	p.skipWhitespace()
	if p.matchKeyword("UNDEF") {
		return nil, nil
	}
	tv, err := p.parseTermOrVar(q)
	if err != nil {
		return nil, err
	}
	if tv.IsVariable() {
		return nil, fmt.Errorf("qparser: VALUES data block cannot contain a variable")
	}
	return tv.Term, nil
}

// parseTriplesSameSubject parses one subject's property list: ';'-separated
// predicate-object pairs, each of which may itself carry ','-separated
// objects.
func (p *Parser) parseTriplesSameSubject(q *query.Query) ([]algebra.TriplePattern, error) {
	subject, err := p.parseTermOrVar(q)
	if err != nil {
		return nil, fmt.Errorf("qparser: subject: %w", err)
	}

	p.skipWhitespace()
	predicate, err := p.parseTermOrVar(q)
	if err != nil {
		return nil, fmt.Errorf("qparser: predicate: %w", err)
	}

	p.skipWhitespace()
	object, err := p.parseTermOrVar(q)
	if err != nil {
		return nil, fmt.Errorf("qparser: object: %w", err)
	}

	triples := []algebra.TriplePattern{{Subject: subject, Predicate: predicate, Object: object}}

	for {
		p.skipWhitespace()
		switch p.peek() {
		case ',':
			p.advance()
			obj, err := p.parseTermOrVar(q)
			if err != nil {
				return nil, fmt.Errorf("qparser: object after ',': %w", err)
			}
			triples = append(triples, algebra.TriplePattern{Subject: subject, Predicate: predicate, Object: obj})
		case ';':
			p.advance()
			p.skipWhitespace()
			if p.peek() == '.' || p.peek() == '}' || p.peek() == ';' {
				if p.peek() == ';' {
					p.advance()
					continue
				}
				return triples, nil
			}
			pred, err := p.parseTermOrVar(q)
			if err != nil {
				return nil, fmt.Errorf("qparser: predicate after ';': %w", err)
			}
			p.skipWhitespace()
			obj, err := p.parseTermOrVar(q)
			if err != nil {
				return nil, fmt.Errorf("qparser: object after ';': %w", err)
			}
			predicate, object = pred, obj
			triples = append(triples, algebra.TriplePattern{Subject: subject, Predicate: predicate, Object: object})
		default:
			return triples, nil
		}
	}
}
