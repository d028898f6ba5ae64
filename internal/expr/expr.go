// Package expr implements the Expression Tree: a closed sum type covering
// every FILTER/BIND/SELECT-expression shape the core needs to rewrite and
// analyze, dispatched by type switch rather than a callback-visitor
// registry.
package expr

import (
	"fmt"

	"github.com/knotgraph/sparqlprep/internal/variable"
	"github.com/knotgraph/sparqlprep/pkg/rdf"
)

// Expression is the closed sum type. expressionNode is unexported so no
// type outside this package can implement Expression.
type Expression interface {
	expressionNode()
	String() string
}

// PatternNode is satisfied by *internal/algebra.Node. Declared here, not
// imported, because algebra.Node.Filter holds an Expression while
// Exists.Pattern holds a pattern — importing algebra from expr would close
// a cycle.
type PatternNode interface {
	IsPatternNode()
}

// Operator enumerates the logical, comparison, and arithmetic operators a
// Binary or Unary expression can carry.
type Operator int

const (
	OpAnd Operator = iota
	OpOr
	OpNot

	OpEqual
	OpNotEqual
	OpLessThan
	OpLessThanOrEqual
	OpGreaterThan
	OpGreaterThanOrEqual

	OpAdd
	OpSubtract
	OpMultiply
	OpDivide

	OpUnaryPlus
	OpUnaryMinus
)

func (op Operator) String() string {
	switch op {
	case OpAnd:
		return "&&"
	case OpOr:
		return "||"
	case OpNot:
		return "!"
	case OpEqual:
		return "="
	case OpNotEqual:
		return "!="
	case OpLessThan:
		return "<"
	case OpLessThanOrEqual:
		return "<="
	case OpGreaterThan:
		return ">"
	case OpGreaterThanOrEqual:
		return ">="
	case OpAdd:
		return "+"
	case OpSubtract:
		return "-"
	case OpMultiply:
		return "*"
	case OpDivide:
		return "/"
	case OpUnaryPlus:
		return "+"
	case OpUnaryMinus:
		return "-"
	default:
		return fmt.Sprintf("Operator(%d)", int(op))
	}
}

// AggregateOp enumerates the SPARQL set functions.
type AggregateOp int

const (
	AggCount AggregateOp = iota
	AggSum
	AggMin
	AggMax
	AggAvg
	AggGroupConcat
	AggSample
)

func (op AggregateOp) String() string {
	switch op {
	case AggCount:
		return "COUNT"
	case AggSum:
		return "SUM"
	case AggMin:
		return "MIN"
	case AggMax:
		return "MAX"
	case AggAvg:
		return "AVG"
	case AggGroupConcat:
		return "GROUP_CONCAT"
	case AggSample:
		return "SAMPLE"
	default:
		return fmt.Sprintf("AggregateOp(%d)", int(op))
	}
}

// Literal is a constant term leaf, either written directly in source text
// or spliced in by constant folding.
type Literal struct {
	Term rdf.Term
}

func (*Literal) expressionNode() {}

func (l *Literal) String() string { return l.Term.String() }

// VarRef is a reference to a query variable.
type VarRef struct {
	Var *variable.Variable
}

func (*VarRef) expressionNode() {}

func (v *VarRef) String() string { return v.Var.String() }

// Aggregate is a set function applied across a solution group.
type Aggregate struct {
	Op       AggregateOp
	Arg      Expression // nil for COUNT(*)
	Distinct bool
}

func (*Aggregate) expressionNode() {}

func (a *Aggregate) String() string {
	distinct := ""
	if a.Distinct {
		distinct = "DISTINCT "
	}
	arg := "*"
	if a.Arg != nil {
		arg = a.Arg.String()
	}
	return fmt.Sprintf("%s(%s%s)", a.Op, distinct, arg)
}

// Binary is a two-operand logical, comparison, or arithmetic expression.
type Binary struct {
	Op    Operator
	Left  Expression
	Right Expression
}

func (*Binary) expressionNode() {}

func (b *Binary) String() string {
	return fmt.Sprintf("(%s %s %s)", b.Left, b.Op, b.Right)
}

// Unary is a one-operand negation or sign expression.
type Unary struct {
	Op      Operator
	Operand Expression
}

func (*Unary) expressionNode() {}

func (u *Unary) String() string {
	return fmt.Sprintf("%s%s", u.Op, u.Operand)
}

// Call covers every SPARQL builtin and custom function call, including
// BOUND, COALESCE, IF, REGEX, and IN/NOT IN (lowered to Call("IN", ...)
// with Not set rather than a separate expression shape).
type Call struct {
	Name string
	Args []Expression
	Not  bool // only meaningful for Name == "IN"
}

func (*Call) expressionNode() {}

func (c *Call) String() string {
	name := c.Name
	if c.Not && name == "IN" {
		name = "NOT IN"
	}
	s := name + "("
	for i, a := range c.Args {
		if i > 0 {
			s += ", "
		}
		s += a.String()
	}
	return s + ")"
}

// Exists is an EXISTS/NOT EXISTS group graph pattern used as a boolean
// expression. Its free variables are mentions only; they are never bound
// by evaluating the expression.
type Exists struct {
	Not     bool
	Pattern PatternNode
}

func (*Exists) expressionNode() {}

func (e *Exists) String() string {
	if e.Not {
		return "NOT EXISTS {...}"
	}
	return "EXISTS {...}"
}
