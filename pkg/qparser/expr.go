package qparser

import (
	"fmt"
	"strings"

	"github.com/knotgraph/sparqlprep/internal/expr"
	"github.com/knotgraph/sparqlprep/pkg/query"
	"github.com/knotgraph/sparqlprep/pkg/rdf"
)

// parseConstraint parses a FILTER/HAVING condition. SPARQL's Constraint
// production is a parenthesized expression, a bare built-in call, or a bare
// function call; all three fall out of parseExpression since
// parsePrimaryExpression already handles a leading '(' and a leading
// function name.
func (p *Parser) parseConstraint(q *query.Query) (expr.Expression, error) {
	return p.parseExpression(q)
}

func (p *Parser) parseExpression(q *query.Query) (expr.Expression, error) {
	return p.parseLogicalOrExpression(q)
}

func (p *Parser) parseLogicalOrExpression(q *query.Query) (expr.Expression, error) {
	left, err := p.parseLogicalAndExpression(q)
	if err != nil {
		return nil, err
	}
	for {
		p.skipWhitespace()
		if !p.match("||") {
			break
		}
		right, err := p.parseLogicalAndExpression(q)
		if err != nil {
			return nil, err
		}
		left = &expr.Binary{Op: expr.OpOr, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseLogicalAndExpression(q *query.Query) (expr.Expression, error) {
	left, err := p.parseComparisonExpression(q)
	if err != nil {
		return nil, err
	}
	for {
		p.skipWhitespace()
		if !p.match("&&") {
			break
		}
		right, err := p.parseComparisonExpression(q)
		if err != nil {
			return nil, err
		}
		left = &expr.Binary{Op: expr.OpAnd, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseComparisonExpression(q *query.Query) (expr.Expression, error) {
	left, err := p.parseAdditiveExpression(q)
	if err != nil {
		return nil, err
	}
	p.skipWhitespace()

	savedPos := p.pos
	not := false
	if p.matchKeyword("NOT") {
		p.skipWhitespace()
		if p.matchKeyword("IN") {
			not = true
		} else {
			p.pos = savedPos
		}
	} else if p.matchKeyword("IN") {
		// not set
	} else {
		p.pos = savedPos
		var op expr.Operator
		switch {
		case p.match("<="):
			op = expr.OpLessThanOrEqual
		case p.match(">="):
			op = expr.OpGreaterThanOrEqual
		case p.match("!="):
			op = expr.OpNotEqual
		case p.match("="):
			op = expr.OpEqual
		case p.match("<"):
			op = expr.OpLessThan
		case p.match(">"):
			op = expr.OpGreaterThan
		default:
			return left, nil
		}
		right, err := p.parseAdditiveExpression(q)
		if err != nil {
			return nil, err
		}
		return &expr.Binary{Op: op, Left: left, Right: right}, nil
	}

	p.skipWhitespace()
	if p.peek() != '(' {
		return nil, fmt.Errorf("qparser: expected '(' after IN/NOT IN at position %d", p.pos)
	}
	p.advance()
	var args []expr.Expression
	p.skipWhitespace()
	if p.peek() != ')' {
		for {
			v, err := p.parseAdditiveExpression(q)
			if err != nil {
				return nil, fmt.Errorf("IN value: %w", err)
			}
			args = append(args, v)
			p.skipWhitespace()
			if p.peek() == ',' {
				p.advance()
				continue
			}
			break
		}
	}
	p.skipWhitespace()
	if p.peek() != ')' {
		return nil, fmt.Errorf("qparser: expected ')' after IN value list at position %d", p.pos)
	}
	p.advance()
	return &expr.Call{Name: "IN", Args: append([]expr.Expression{left}, args...), Not: not}, nil
}

func (p *Parser) parseAdditiveExpression(q *query.Query) (expr.Expression, error) {
	left, err := p.parseMultiplicativeExpression(q)
	if err != nil {
		return nil, err
	}
	for {
		p.skipWhitespace()
		var op expr.Operator
		switch {
		case p.match("+"):
			op = expr.OpAdd
		case p.match("-"):
			op = expr.OpSubtract
		default:
			return left, nil
		}
		right, err := p.parseMultiplicativeExpression(q)
		if err != nil {
			return nil, err
		}
		left = &expr.Binary{Op: op, Left: left, Right: right}
	}
}

func (p *Parser) parseMultiplicativeExpression(q *query.Query) (expr.Expression, error) {
	left, err := p.parseUnaryExpression(q)
	if err != nil {
		return nil, err
	}
	for {
		p.skipWhitespace()
		var op expr.Operator
		switch {
		case p.match("*"):
			op = expr.OpMultiply
		case p.match("/"):
			op = expr.OpDivide
		default:
			return left, nil
		}
		right, err := p.parseUnaryExpression(q)
		if err != nil {
			return nil, err
		}
		left = &expr.Binary{Op: op, Left: left, Right: right}
	}
}

func (p *Parser) parseUnaryExpression(q *query.Query) (expr.Expression, error) {
	p.skipWhitespace()
	switch {
	case p.match("!"):
		operand, err := p.parseUnaryExpression(q)
		if err != nil {
			return nil, err
		}
		return &expr.Unary{Op: expr.OpNot, Operand: operand}, nil
	case p.match("+"):
		operand, err := p.parseUnaryExpression(q)
		if err != nil {
			return nil, err
		}
		return &expr.Unary{Op: expr.OpUnaryPlus, Operand: operand}, nil
	case p.match("-"):
		operand, err := p.parseUnaryExpression(q)
		if err != nil {
			return nil, err
		}
		return &expr.Unary{Op: expr.OpUnaryMinus, Operand: operand}, nil
	default:
		return p.parsePrimaryExpression(q)
	}
}

func (p *Parser) parsePrimaryExpression(q *query.Query) (expr.Expression, error) {
	p.skipWhitespace()

	savedPos := p.pos
	if p.matchKeyword("TRUE") {
		return &expr.Literal{Term: rdf.NewBooleanLiteral(true)}, nil
	}
	p.pos = savedPos
	if p.matchKeyword("FALSE") {
		return &expr.Literal{Term: rdf.NewBooleanLiteral(false)}, nil
	}
	p.pos = savedPos

	if p.matchKeyword("NOT") {
		p.skipWhitespace()
		if p.matchKeyword("EXISTS") {
			pattern, err := p.parseGroupGraphPattern(q)
			if err != nil {
				return nil, fmt.Errorf("NOT EXISTS: %w", err)
			}
			return &expr.Exists{Not: true, Pattern: pattern}, nil
		}
		p.pos = savedPos
	} else if p.matchKeyword("EXISTS") {
		pattern, err := p.parseGroupGraphPattern(q)
		if err != nil {
			return nil, fmt.Errorf("EXISTS: %w", err)
		}
		return &expr.Exists{Not: false, Pattern: pattern}, nil
	}

	if p.peek() == '(' {
		p.advance()
		e, err := p.parseExpression(q)
		if err != nil {
			return nil, err
		}
		p.skipWhitespace()
		if p.peek() != ')' {
			return nil, fmt.Errorf("qparser: expected ')' after expression at position %d", p.pos)
		}
		p.advance()
		return e, nil
	}

	if p.peek() == '?' || p.peek() == '$' {
		name, err := p.parseVariableName()
		if err != nil {
			return nil, err
		}
		return &expr.VarRef{Var: q.Variable(name)}, nil
	}

	if c := p.peek(); (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') {
		saved := p.pos
		p.readWhile(func(b byte) bool {
			return (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z') || (b >= '0' && b <= '9') || b == '_'
		})
		p.skipWhitespace()
		if p.peek() == '(' {
			p.pos = saved
			return p.parseFunctionCall(q)
		}
		p.pos = saved
	}

	tv, err := p.parseTermOrVar(q)
	if err != nil {
		return nil, fmt.Errorf("qparser: expected expression at position %d: %w", p.pos, err)
	}
	if tv.IsVariable() {
		return &expr.VarRef{Var: tv.Var}, nil
	}
	return &expr.Literal{Term: tv.Term}, nil
}

// aggregateOps names the SPARQL set functions parsed as Aggregate
// expressions rather than generic Call expressions.
var aggregateOps = map[string]expr.AggregateOp{
	"COUNT":        expr.AggCount,
	"SUM":          expr.AggSum,
	"MIN":          expr.AggMin,
	"MAX":          expr.AggMax,
	"AVG":          expr.AggAvg,
	"GROUP_CONCAT": expr.AggGroupConcat,
	"SAMPLE":       expr.AggSample,
}

func (p *Parser) parseFunctionCall(q *query.Query) (expr.Expression, error) {
	p.skipWhitespace()
	name := p.readWhile(func(c byte) bool {
		return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '_' || c == ':'
	})
	if name == "" {
		return nil, fmt.Errorf("qparser: expected function name at position %d", p.pos)
	}

	if strings.Contains(name, ":") {
		parts := strings.SplitN(name, ":", 2)
		if base, ok := p.prefixes[parts[0]]; ok {
			name = base + parts[1]
		}
	}

	p.skipWhitespace()
	if p.peek() != '(' {
		return nil, fmt.Errorf("qparser: expected '(' after function name %q at position %d", name, p.pos)
	}
	p.advance()

	upper := strings.ToUpper(name)
	if aggOp, ok := aggregateOps[upper]; ok {
		return p.parseAggregateArgs(q, aggOp)
	}

	var args []expr.Expression
	p.skipWhitespace()
	if p.peek() != ')' {
		for {
			a, err := p.parseExpression(q)
			if err != nil {
				return nil, fmt.Errorf("function argument: %w", err)
			}
			args = append(args, a)
			p.skipWhitespace()
			if p.peek() == ',' {
				p.advance()
				p.skipWhitespace()
				continue
			}
			break
		}
	}
	p.skipWhitespace()
	if p.peek() != ')' {
		return nil, fmt.Errorf("qparser: expected ')' after function arguments at position %d", p.pos)
	}
	p.advance()
	return &expr.Call{Name: upper, Args: args}, nil
}

func (p *Parser) parseAggregateArgs(q *query.Query, op expr.AggregateOp) (expr.Expression, error) {
	p.skipWhitespace()
	distinct := p.matchKeyword("DISTINCT")
	p.skipWhitespace()

	if p.peek() == '*' {
		p.advance()
		p.skipWhitespace()
		if p.peek() != ')' {
			return nil, fmt.Errorf("qparser: expected ')' after aggregate '*' at position %d", p.pos)
		}
		p.advance()
		return &expr.Aggregate{Op: op, Arg: nil, Distinct: distinct}, nil
	}

	arg, err := p.parseExpression(q)
	if err != nil {
		return nil, fmt.Errorf("aggregate argument: %w", err)
	}
	p.skipWhitespace()
	if p.peek() != ')' {
		return nil, fmt.Errorf("qparser: expected ')' after aggregate argument at position %d", p.pos)
	}
	p.advance()
	return &expr.Aggregate{Op: op, Arg: arg, Distinct: distinct}, nil
}
