package expr

import (
	"strconv"

	"github.com/knotgraph/sparqlprep/pkg/rdf"
)

// Fold performs constant folding: it rewrites the tree bottom-up and
// replaces any subexpression whose operands are all Literal with the
// computed Literal result. Subexpressions it cannot evaluate (a non-literal
// operand, an unsupported function, EXISTS) are returned unchanged except
// for their already-folded children.
func Fold(e Expression) Expression {
	switch n := e.(type) {
	case *Literal, *VarRef:
		return e
	case *Aggregate:
		if n.Arg == nil {
			return n
		}
		arg := Fold(n.Arg)
		if arg == n.Arg {
			return n
		}
		return &Aggregate{Op: n.Op, Arg: arg, Distinct: n.Distinct}
	case *Binary:
		left := Fold(n.Left)
		right := Fold(n.Right)
		if v, ok := foldBinary(n.Op, left, right); ok {
			return v
		}
		if left == n.Left && right == n.Right {
			return n
		}
		return &Binary{Op: n.Op, Left: left, Right: right}
	case *Unary:
		operand := Fold(n.Operand)
		if v, ok := foldUnary(n.Op, operand); ok {
			return v
		}
		if operand == n.Operand {
			return n
		}
		return &Unary{Op: n.Op, Operand: operand}
	case *Call:
		args := make([]Expression, len(n.Args))
		argsChanged := false
		for i, a := range n.Args {
			args[i] = Fold(a)
			if args[i] != a {
				argsChanged = true
			}
		}
		if v, ok := foldCall(n.Name, n.Not, args); ok {
			return v
		}
		if !argsChanged {
			return n
		}
		return &Call{Name: n.Name, Args: args, Not: n.Not}
	case *Exists:
		return n
	default:
		return e
	}
}

func asLiteral(e Expression) (*rdf.Literal, bool) {
	lit, ok := e.(*Literal)
	if !ok {
		return nil, false
	}
	rl, ok := lit.Term.(*rdf.Literal)
	return rl, ok
}

func numericValue(l *rdf.Literal) (float64, bool) {
	if l.Datatype == nil || !rdf.IsNumericDatatype(l.Datatype) {
		return 0, false
	}
	f, err := strconv.ParseFloat(l.Value, 64)
	return f, err == nil
}

func boolValue(l *rdf.Literal) (bool, bool) {
	if l.Datatype != nil && l.Datatype.IRI == rdf.XSDBoolean.IRI {
		b, err := strconv.ParseBool(l.Value)
		return b, err == nil
	}
	return false, false
}

func foldBinary(op Operator, left, right Expression) (Expression, bool) {
	ll, lok := asLiteral(left)
	rl, rok := asLiteral(right)
	if !lok || !rok {
		return nil, false
	}

	switch op {
	case OpAnd, OpOr:
		lb, lbok := boolValue(ll)
		rb, rbok := boolValue(rl)
		if !lbok || !rbok {
			return nil, false
		}
		if op == OpAnd {
			return &Literal{Term: rdf.NewBooleanLiteral(lb && rb)}, true
		}
		return &Literal{Term: rdf.NewBooleanLiteral(lb || rb)}, true

	case OpEqual, OpNotEqual:
		eq := ll.Equals(rl)
		if op == OpNotEqual {
			eq = !eq
		}
		return &Literal{Term: rdf.NewBooleanLiteral(eq)}, true

	case OpLessThan, OpLessThanOrEqual, OpGreaterThan, OpGreaterThanOrEqual:
		lv, lvok := numericValue(ll)
		rv, rvok := numericValue(rl)
		if !lvok || !rvok {
			return nil, false
		}
		var result bool
		switch op {
		case OpLessThan:
			result = lv < rv
		case OpLessThanOrEqual:
			result = lv <= rv
		case OpGreaterThan:
			result = lv > rv
		case OpGreaterThanOrEqual:
			result = lv >= rv
		}
		return &Literal{Term: rdf.NewBooleanLiteral(result)}, true

	case OpAdd, OpSubtract, OpMultiply, OpDivide:
		lv, lvok := numericValue(ll)
		rv, rvok := numericValue(rl)
		if !lvok || !rvok {
			return nil, false
		}
		if op == OpDivide && rv == 0 {
			return nil, false
		}
		var result float64
		switch op {
		case OpAdd:
			result = lv + rv
		case OpSubtract:
			result = lv - rv
		case OpMultiply:
			result = lv * rv
		case OpDivide:
			result = lv / rv
		}
		return &Literal{Term: numericResultLiteral(ll, rl, result)}, true
	}
	return nil, false
}

// numericResultLiteral picks xsd:integer when both operands were integers,
// otherwise xsd:double, matching SPARQL's type-promotion rule closely
// enough for constant folding (full decimal precision is not attempted).
func numericResultLiteral(l, r *rdf.Literal, result float64) rdf.Term {
	if l.Datatype != nil && r.Datatype != nil &&
		l.Datatype.IRI == rdf.XSDInteger.IRI && r.Datatype.IRI == rdf.XSDInteger.IRI &&
		result == float64(int64(result)) {
		return rdf.NewIntegerLiteral(int64(result))
	}
	return rdf.NewDoubleLiteral(result)
}

func foldUnary(op Operator, operand Expression) (Expression, bool) {
	l, ok := asLiteral(operand)
	if !ok {
		return nil, false
	}
	switch op {
	case OpNot:
		b, bok := boolValue(l)
		if !bok {
			return nil, false
		}
		return &Literal{Term: rdf.NewBooleanLiteral(!b)}, true
	case OpUnaryMinus:
		v, vok := numericValue(l)
		if !vok {
			return nil, false
		}
		return &Literal{Term: numericResultLiteral(l, l, -v)}, true
	case OpUnaryPlus:
		if _, vok := numericValue(l); !vok {
			return nil, false
		}
		return &Literal{Term: l}, true
	}
	return nil, false
}

func foldCall(name string, not bool, args []Expression) (Expression, bool) {
	switch name {
	case "BOUND":
		// BOUND's argument is always a variable reference in well-formed
		// SPARQL; it can never be constant-folded since boundedness is a
		// per-solution runtime property, not a property of the expression
		// tree.
		return nil, false
	case "NOT":
		if len(args) != 1 {
			return nil, false
		}
		l, ok := asLiteral(args[0])
		if !ok {
			return nil, false
		}
		b, bok := boolValue(l)
		if !bok {
			return nil, false
		}
		return &Literal{Term: rdf.NewBooleanLiteral(!b)}, true
	case "ABS":
		if len(args) != 1 {
			return nil, false
		}
		l, ok := asLiteral(args[0])
		if !ok {
			return nil, false
		}
		v, vok := numericValue(l)
		if !vok {
			return nil, false
		}
		if v < 0 {
			v = -v
		}
		return &Literal{Term: numericResultLiteral(l, l, v)}, true
	default:
		return nil, false
	}
}
