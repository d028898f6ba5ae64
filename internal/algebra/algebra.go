// Package algebra implements the Graph-Pattern Tree: the algebraic
// skeleton of a prepared query. Every node carries an operator and either a
// child list or a slice into the query's flat triple array, never both.
package algebra

import (
	"fmt"

	"github.com/knotgraph/sparqlprep/internal/expr"
	"github.com/knotgraph/sparqlprep/internal/variable"
	"github.com/knotgraph/sparqlprep/pkg/rdf"
)

// TermOrVar is either a concrete RDF term or a reference to a query
// variable; exactly one of the two fields is set.
type TermOrVar struct {
	Term rdf.Term
	Var  *variable.Variable
}

func FromTerm(t rdf.Term) TermOrVar { return TermOrVar{Term: t} }

func FromVar(v *variable.Variable) TermOrVar { return TermOrVar{Var: v} }

func (t TermOrVar) IsVariable() bool { return t.Var != nil }

func (t TermOrVar) IsZero() bool { return t.Term == nil && t.Var == nil }

func (t TermOrVar) String() string {
	if t.IsVariable() {
		return t.Var.String()
	}
	if t.Term != nil {
		return t.Term.String()
	}
	return "<unset>"
}

// TriplePattern is one (subject, predicate, object, graph?) tuple. Graph is
// the zero TermOrVar when the pattern has no explicit quad-graph term (the
// common case inside a Basic graph pattern; graph scoping there comes from
// an enclosing Graph node instead).
type TriplePattern struct {
	Subject   TermOrVar
	Predicate TermOrVar
	Object    TermOrVar
	Graph     TermOrVar
}

// TripleStore is the single flat triple array a query's Basic patterns
// slice into. Appending never reorders existing entries, so a [Start, End)
// range handed out by Append stays valid across every later rewrite.
type TripleStore struct {
	Triples []TriplePattern
}

func NewTripleStore() *TripleStore {
	return &TripleStore{}
}

// Append adds patterns to the end of the store and returns the half-open
// column range they now occupy.
func (s *TripleStore) Append(patterns ...TriplePattern) (start, end int) {
	start = len(s.Triples)
	s.Triples = append(s.Triples, patterns...)
	end = len(s.Triples)
	return start, end
}

func (s *TripleStore) Slice(start, end int) []TriplePattern {
	return s.Triples[start:end]
}

func (s *TripleStore) Len() int { return len(s.Triples) }

// Op enumerates the graph-pattern node operators.
type Op int

const (
	OpUnknown Op = iota
	OpBasic
	OpGroup
	OpOptional
	OpUnion
	OpGraph
	OpFilter
	OpLet
	OpSelect
	OpService
	OpMinus
	OpValues
)

func (op Op) String() string {
	switch op {
	case OpBasic:
		return "Basic"
	case OpGroup:
		return "Group"
	case OpOptional:
		return "Optional"
	case OpUnion:
		return "Union"
	case OpGraph:
		return "Graph"
	case OpFilter:
		return "Filter"
	case OpLet:
		return "Let"
	case OpSelect:
		return "Select"
	case OpService:
		return "Service"
	case OpMinus:
		return "Minus"
	case OpValues:
		return "Values"
	default:
		return "Unknown"
	}
}

// GroupKey is one GROUP BY key, optionally naming the group's value via AS.
type GroupKey struct {
	Expression expr.Expression
	As         *variable.Variable // nil unless the key used "(expr AS ?v)"
}

// OrderCondition is one ORDER BY key.
type OrderCondition struct {
	Expression expr.Expression
	Ascending  bool
}

// Modifier carries the solution-modifier sequence a Select node applies to
// its child pattern's solutions: GROUP BY / HAVING / ORDER BY / LIMIT /
// OFFSET / DISTINCT / REDUCED. REDUCED is a supplemented feature absent
// from the distilled projection description; it is carried alongside
// Distinct and treated identically for variable-use purposes since both
// are downstream execution concerns.
type Modifier struct {
	GroupBy  []GroupKey
	Having   []expr.Expression
	OrderBy  []OrderCondition
	Limit    *int
	Offset   *int
	Distinct bool
	Reduced  bool
}

// ValuesBlock is the payload of a Values node: a list of variables and, for
// each row, one term per variable (a nil entry in a row means UNDEF).
type ValuesBlock struct {
	Vars []*variable.Variable
	Rows [][]rdf.Term
}

// ScopeInfo is attached to a node by the Scope Checker; it records the
// enclosing Group's gp_index so later diagnostics and an execution engine
// can answer "what group does this pattern's scope belong to" without
// re-walking the tree.
type ScopeInfo struct {
	EnclosingGPIndex int
	RewrittenToFalse bool
}

// Node is one graph-pattern tree node. Only the fields legal for its Op are
// populated; the package's constructors are the only way to build a Node so
// that illegal field combinations can't arise.
type Node struct {
	Op       Op
	GPIndex  int // -1 until the Indexer runs
	Children []*Node

	Start, End int // valid iff Op == OpBasic; half-open range into the query's TripleStore

	Filter Expr // valid iff Op == OpFilter, or as the AND-folded filter riding along a Group

	Origin TermOrVar // valid iff Op == OpGraph or OpService

	BoundVar *variable.Variable // valid iff Op == OpLet

	Projection []*variable.Variable // valid iff Op == OpSelect
	Modifier   *Modifier            // valid iff Op == OpSelect
	Wildcard   bool                 // valid iff Op == OpSelect; true until wildcard expansion runs

	Bindings *ValuesBlock // valid iff Op == OpValues

	Silent bool // valid iff Op == OpService

	ExecutionScope *ScopeInfo // set by the Scope Checker
}

// Expr is a type alias so this file doesn't need to import expr under a
// different name merely to spell out Expression in field declarations.
type Expr = expr.Expression

// IsPatternNode satisfies internal/expr.PatternNode, letting an Exists
// expression hold a *Node without expr importing algebra.
func (n *Node) IsPatternNode() {}

func newNode(op Op) *Node {
	return &Node{Op: op, GPIndex: -1}
}

// NewBasic creates a Basic node owning the triple range [start, end).
func NewBasic(start, end int) *Node {
	if start > end || start < 0 {
		panic(fmt.Sprintf("algebra: invalid Basic range [%d, %d)", start, end))
	}
	n := newNode(OpBasic)
	n.Start, n.End = start, end
	return n
}

// NewGroup creates a Group node. children may be empty; empty-group removal
// is a rewriter concern, not a constructor-time one.
func NewGroup(children ...*Node) *Node {
	n := newNode(OpGroup)
	n.Children = children
	return n
}

// NewOptional creates an Optional node wrapping the single pattern that may
// fail to match.
func NewOptional(child *Node) *Node {
	n := newNode(OpOptional)
	n.Children = []*Node{child}
	return n
}

// NewUnion creates a Union node. A Union always has at least two children
// and is never merged by the rewriter's coalescing passes.
func NewUnion(children ...*Node) *Node {
	if len(children) < 2 {
		panic("algebra: Union requires at least 2 children")
	}
	n := newNode(OpUnion)
	n.Children = children
	return n
}

// NewGraph creates a Graph node scoping child to the named or
// variable-bound graph origin.
func NewGraph(origin TermOrVar, child *Node) *Node {
	if origin.IsZero() {
		panic("algebra: Graph requires a non-zero origin")
	}
	n := newNode(OpGraph)
	n.Origin = origin
	n.Children = []*Node{child}
	return n
}

// NewFilter creates a childless Filter node carrying filterExpr.
func NewFilter(filterExpr Expr) *Node {
	if filterExpr == nil {
		panic("algebra: Filter requires a non-nil expression")
	}
	n := newNode(OpFilter)
	n.Filter = filterExpr
	return n
}

// NewLet creates a Let (BIND) node. The bound expression itself lives on
// boundVar (set via Variable.SetExpression); the expression is a property
// of the variable, not the node.
func NewLet(boundVar *variable.Variable) *Node {
	if boundVar == nil {
		panic("algebra: Let requires a bound variable")
	}
	n := newNode(OpLet)
	n.BoundVar = boundVar
	return n
}

// NewSelect creates a Select (sub-select or top-level SELECT) node wrapping
// the single WHERE-clause pattern in where.
func NewSelect(where *Node, projection []*variable.Variable, modifier *Modifier, wildcard bool) *Node {
	n := newNode(OpSelect)
	n.Children = []*Node{where}
	n.Projection = projection
	n.Modifier = modifier
	n.Wildcard = wildcard
	return n
}

// NewService creates a Service node.
func NewService(origin TermOrVar, child *Node, silent bool) *Node {
	if origin.IsZero() {
		panic("algebra: Service requires a non-zero origin")
	}
	n := newNode(OpService)
	n.Origin = origin
	n.Children = []*Node{child}
	n.Silent = silent
	return n
}

// NewMinus creates a Minus node wrapping the pattern whose solutions are
// subtracted from the enclosing group's.
func NewMinus(child *Node) *Node {
	n := newNode(OpMinus)
	n.Children = []*Node{child}
	return n
}

// NewValues creates a Values node.
func NewValues(bindings *ValuesBlock) *Node {
	if bindings == nil {
		panic("algebra: Values requires a non-nil bindings block")
	}
	n := newNode(OpValues)
	n.Bindings = bindings
	return n
}

// NewUnknown creates a placeholder node for a pattern shape the upstream
// parser recognized syntactically but that carries no further structure
// the core understands (used for malformed or not-yet-supported fragments
// so a tree walk can still visit and report on them instead of panicking).
func NewUnknown() *Node {
	return newNode(OpUnknown)
}
