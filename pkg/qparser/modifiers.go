package qparser

import (
	"fmt"

	"github.com/knotgraph/sparqlprep/internal/algebra"
	"github.com/knotgraph/sparqlprep/internal/expr"
	"github.com/knotgraph/sparqlprep/internal/variable"
	"github.com/knotgraph/sparqlprep/pkg/query"
)

func (p *Parser) parseSelect() (*query.Query, error) {
	q := query.New(query.FormSelect)
	p.declarePrefixes(q)

	p.skipWhitespace()
	switch {
	case p.matchKeyword("DISTINCT"):
		q.Modifier = &algebra.Modifier{Distinct: true}
	case p.matchKeyword("REDUCED"):
		q.Modifier = &algebra.Modifier{Reduced: true}
	}

	if err := p.parseProjection(q); err != nil {
		return nil, fmt.Errorf("qparser: SELECT projection: %w", err)
	}

	if !p.matchKeyword("WHERE") {
		p.skipWhitespace()
	}
	where, err := p.parseGroupGraphPattern(q)
	if err != nil {
		return nil, fmt.Errorf("qparser: SELECT: %w", err)
	}
	q.Where = where

	if err := p.parseSolutionModifiers(q); err != nil {
		return nil, fmt.Errorf("qparser: SELECT: %w", err)
	}
	return q, nil
}

// parseProjection parses the variable/expression list between SELECT's
// DISTINCT/REDUCED marker and its WHERE clause, including the bare '*'
// wildcard and "(expr AS ?v)" projected-expression shorthand.
func (p *Parser) parseProjection(q *query.Query) error {
	vars, wildcard, err := p.parseProjectionList(q)
	if err != nil {
		return err
	}
	q.Projection = vars
	q.Wildcard = wildcard
	return nil
}

// parseProjectionList is the shared projection scanner behind the top-level
// SELECT and the sub-select form; variables are still registered on q (one
// variables table per query, sub-selects included) but the list itself goes
// to the caller.
func (p *Parser) parseProjectionList(q *query.Query) ([]*variable.Variable, bool, error) {
	p.skipWhitespace()
	if p.peek() == '*' {
		p.advance()
		return nil, true, nil
	}

	var projection []*variable.Variable
	for {
		p.skipWhitespace()
		switch p.peek() {
		case '?', '$':
			name, err := p.parseVariableName()
			if err != nil {
				return nil, false, err
			}
			projection = append(projection, q.Variable(name))
		case '(':
			p.advance()
			e, err := p.parseExpression(q)
			if err != nil {
				return nil, false, fmt.Errorf("projected expression: %w", err)
			}
			p.skipWhitespace()
			if !p.matchKeyword("AS") {
				return nil, false, fmt.Errorf("qparser: expected AS in projected expression at position %d", p.pos)
			}
			p.skipWhitespace()
			name, err := p.parseVariableName()
			if err != nil {
				return nil, false, err
			}
			p.skipWhitespace()
			if p.peek() != ')' {
				return nil, false, fmt.Errorf("qparser: expected ')' after projected expression at position %d", p.pos)
			}
			p.advance()
			v := q.Variable(name)
			v.SetExpression(e)
			projection = append(projection, v)
		default:
			return projection, false, nil
		}
	}
}

// parseSubSelect parses a '{ SELECT ... }' group into an OpSelect node.
// The sub-select shares the enclosing query's variables table and triple
// store; its isolation from the outer scope is the binding pass's concern,
// not the parser's.
func (p *Parser) parseSubSelect(q *query.Query) (*algebra.Node, error) {
	p.skipWhitespace()
	p.advance() // '{'
	if !p.matchKeyword("SELECT") {
		return nil, fmt.Errorf("qparser: expected SELECT in sub-select at position %d", p.pos)
	}

	mod := &algebra.Modifier{}
	switch {
	case p.matchKeyword("DISTINCT"):
		mod.Distinct = true
	case p.matchKeyword("REDUCED"):
		mod.Reduced = true
	}

	projection, wildcard, err := p.parseProjectionList(q)
	if err != nil {
		return nil, fmt.Errorf("qparser: sub-select projection: %w", err)
	}

	p.matchKeyword("WHERE")
	where, err := p.parseGroupGraphPattern(q)
	if err != nil {
		return nil, fmt.Errorf("qparser: sub-select: %w", err)
	}

	if err := p.parseModifierTail(q, mod); err != nil {
		return nil, fmt.Errorf("qparser: sub-select: %w", err)
	}

	p.skipWhitespace()
	if p.peek() != '}' {
		return nil, fmt.Errorf("qparser: expected '}' to close sub-select at position %d", p.pos)
	}
	p.advance()

	return algebra.NewSelect(where, projection, mod, wildcard), nil
}

func (p *Parser) parseAsk() (*query.Query, error) {
	q := query.New(query.FormAsk)
	p.declarePrefixes(q)

	where, err := p.parseWhereClause(q)
	if err != nil {
		return nil, fmt.Errorf("qparser: ASK: %w", err)
	}
	q.Where = where
	return q, nil
}

func (p *Parser) parseConstruct() (*query.Query, error) {
	q := query.New(query.FormConstruct)
	p.declarePrefixes(q)

	p.skipWhitespace()
	if p.peek() != '{' {
		return nil, fmt.Errorf("qparser: expected '{' to start CONSTRUCT template at position %d", p.pos)
	}
	p.advance()
	for {
		p.skipWhitespace()
		if p.peek() == '}' {
			p.advance()
			break
		}
		triples, err := p.parseTriplesSameSubject(q)
		if err != nil {
			return nil, fmt.Errorf("qparser: CONSTRUCT template: %w", err)
		}
		q.ConstructTemplate = append(q.ConstructTemplate, triples...)
		p.skipWhitespace()
		if p.peek() == '.' {
			p.advance()
		}
	}

	where, err := p.parseWhereClause(q)
	if err != nil {
		return nil, fmt.Errorf("qparser: CONSTRUCT: %w", err)
	}
	q.Where = where

	if err := p.parseSolutionModifiers(q); err != nil {
		return nil, fmt.Errorf("qparser: CONSTRUCT: %w", err)
	}
	return q, nil
}

func (p *Parser) parseDescribe() (*query.Query, error) {
	q := query.New(query.FormDescribe)
	p.declarePrefixes(q)

	p.skipWhitespace()
	if p.peek() == '*' {
		p.advance()
		q.Wildcard = true
	} else {
		for {
			p.skipWhitespace()
			if p.peek() != '?' && p.peek() != '$' && p.peek() != '<' && p.peek() != ':' && !isNameStartChar(p.peek()) {
				break
			}
			tv, err := p.parseTermOrVar(q)
			if err != nil {
				return nil, fmt.Errorf("qparser: DESCRIBE: %w", err)
			}
			q.DescribeTerms = append(q.DescribeTerms, tv)
		}
	}

	p.skipWhitespace()
	savedPos := p.pos
	if p.matchKeyword("WHERE") || p.peek() == '{' {
		p.pos = savedPos
		where, err := p.parseWhereClause(q)
		if err != nil {
			return nil, fmt.Errorf("qparser: DESCRIBE: %w", err)
		}
		q.Where = where
	}

	if err := p.parseSolutionModifiers(q); err != nil {
		return nil, fmt.Errorf("qparser: DESCRIBE: %w", err)
	}
	return q, nil
}

// parseSolutionModifiers parses the optional GROUP BY / HAVING / ORDER BY /
// LIMIT / OFFSET tail shared by every query form.
func (p *Parser) parseSolutionModifiers(q *query.Query) error {
	if q.Modifier == nil {
		q.Modifier = &algebra.Modifier{}
	}
	return p.parseModifierTail(q, q.Modifier)
}

func (p *Parser) parseModifierTail(q *query.Query, m *algebra.Modifier) error {
	p.skipWhitespace()
	if p.matchKeyword("GROUP") {
		if !p.matchKeyword("BY") {
			return fmt.Errorf("qparser: expected BY after GROUP at position %d", p.pos)
		}
		keys, err := p.parseGroupByKeys(q)
		if err != nil {
			return err
		}
		m.GroupBy = keys
	}

	p.skipWhitespace()
	if p.matchKeyword("HAVING") {
		conds, err := p.parseHavingConditions(q)
		if err != nil {
			return err
		}
		m.Having = conds
	}

	p.skipWhitespace()
	if p.matchKeyword("ORDER") {
		if !p.matchKeyword("BY") {
			return fmt.Errorf("qparser: expected BY after ORDER at position %d", p.pos)
		}
		conds, err := p.parseOrderByKeys(q)
		if err != nil {
			return err
		}
		m.OrderBy = conds
	}

	p.skipWhitespace()
	if p.matchKeyword("LIMIT") {
		n, err := p.parseInteger()
		if err != nil {
			return fmt.Errorf("LIMIT: %w", err)
		}
		m.Limit = &n
	}

	p.skipWhitespace()
	if p.matchKeyword("OFFSET") {
		n, err := p.parseInteger()
		if err != nil {
			return fmt.Errorf("OFFSET: %w", err)
		}
		m.Offset = &n
	}

	return nil
}

func (p *Parser) parseGroupByKeys(q *query.Query) ([]algebra.GroupKey, error) {
	var keys []algebra.GroupKey
	for {
		p.skipWhitespace()
		switch {
		case p.peek() == '?' || p.peek() == '$':
			name, err := p.parseVariableName()
			if err != nil {
				return nil, err
			}
			v := q.Variable(name)
			keys = append(keys, algebra.GroupKey{Expression: &expr.VarRef{Var: v}})
		case p.peek() == '(':
			p.advance()
			e, err := p.parseExpression(q)
			if err != nil {
				return nil, fmt.Errorf("GROUP BY key: %w", err)
			}
			p.skipWhitespace()
			var as *variable.Variable
			if p.matchKeyword("AS") {
				p.skipWhitespace()
				name, err := p.parseVariableName()
				if err != nil {
					return nil, err
				}
				as = q.Variable(name)
			}
			p.skipWhitespace()
			if p.peek() != ')' {
				return nil, fmt.Errorf("qparser: expected ')' in GROUP BY key at position %d", p.pos)
			}
			p.advance()
			keys = append(keys, algebra.GroupKey{Expression: e, As: as})
		default:
			return keys, nil
		}
	}
}

func (p *Parser) parseHavingConditions(q *query.Query) ([]algebra.Expr, error) {
	var conds []algebra.Expr
	for {
		p.skipWhitespace()
		c := p.peek()
		if c != '(' {
			savedPos := p.pos
			if !p.matchKeyword("EXISTS") && !p.matchKeyword("NOT") {
				p.pos = savedPos
				break
			}
			p.pos = savedPos
		}
		cond, err := p.parseConstraint(q)
		if err != nil {
			return nil, fmt.Errorf("HAVING: %w", err)
		}
		conds = append(conds, cond)
	}
	if len(conds) == 0 {
		return nil, fmt.Errorf("qparser: expected at least one condition in HAVING at position %d", p.pos)
	}
	return conds, nil
}

func (p *Parser) parseOrderByKeys(q *query.Query) ([]algebra.OrderCondition, error) {
	var conds []algebra.OrderCondition
	for {
		p.skipWhitespace()
		ascending := true
		switch {
		case p.matchKeyword("DESC"):
			ascending = false
		case p.matchKeyword("ASC"):
			ascending = true
		}

		p.skipWhitespace()
		var e algebra.Expr
		switch {
		case p.peek() == '?' || p.peek() == '$':
			name, err := p.parseVariableName()
			if err != nil {
				return nil, err
			}
			e = &expr.VarRef{Var: q.Variable(name)}
		case p.peek() == '(':
			p.advance()
			inner, err := p.parseExpression(q)
			if err != nil {
				return nil, fmt.Errorf("ORDER BY key: %w", err)
			}
			p.skipWhitespace()
			if p.peek() != ')' {
				return nil, fmt.Errorf("qparser: expected ')' in ORDER BY key at position %d", p.pos)
			}
			p.advance()
			e = inner
		default:
			return conds, nil
		}
		conds = append(conds, algebra.OrderCondition{Expression: e, Ascending: ascending})
	}
}
