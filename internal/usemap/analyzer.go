package usemap

import (
	"github.com/knotgraph/sparqlprep/internal/algebra"
	"github.com/knotgraph/sparqlprep/internal/expr"
	"github.com/knotgraph/sparqlprep/internal/variable"
)

// VerbMentions carries the query-level "Verbs" slot content: the
// projection (for SELECT), the described terms (for DESCRIBE), or the
// construct template (for CONSTRUCT). Only the fields for the query's form
// are populated (both projection fields for SELECT); pkg/query decides which.
type VerbMentions struct {
	ProjectionVars   []*variable.Variable
	ProjectionExprs  []expr.Expression // the expr side of (expr AS ?v) projection entries
	DescribedTerms   []algebra.TermOrVar
	ConstructTriples []algebra.TriplePattern
}

// Analyzer builds the Variable-Use Matrix and Term-Role Matrix for one
// query's already-indexed graph-pattern tree.
type Analyzer struct {
	store *algebra.TripleStore
	Use   *UseMatrix
	Role  *RoleMatrix
}

// NewAnalyzer allocates the matrices. numPatterns is the count returned by
// the Indexer (internal/index.Build); store must already hold its final
// triple set (the rewriter must have finished running).
func NewAnalyzer(store *algebra.TripleStore, varCount, numPatterns int) *Analyzer {
	return &Analyzer{
		store: store,
		Use:   NewUseMatrix(varCount, numPatterns),
		Role:  NewRoleMatrix(varCount, store.Len()),
	}
}

func (a *Analyzer) markMention(row int, v *variable.Variable) {
	a.Use.Set(row, v.Offset(), Mentioned)
}

func (a *Analyzer) markTermMention(row int, t algebra.TermOrVar) {
	if t.IsVariable() {
		a.markMention(row, t.Var)
	}
}

func exprOf(be variable.BoundExpression) expr.Expression {
	if be == nil {
		return nil
	}
	e, _ := be.(expr.Expression)
	return e
}

// findExists walks an expression tree for *expr.Exists nodes. CollectMentions
// deliberately does not descend into Exists (it cannot, since expr does not
// import algebra); this is the usemap-side complement that does.
func findExists(e expr.Expression) []*expr.Exists {
	var out []*expr.Exists
	var walk func(expr.Expression)
	walk = func(e expr.Expression) {
		switch n := e.(type) {
		case nil:
		case *expr.Exists:
			out = append(out, n)
		case *expr.Binary:
			walk(n.Left)
			walk(n.Right)
		case *expr.Unary:
			walk(n.Operand)
		case *expr.Call:
			for _, arg := range n.Args {
				walk(arg)
			}
		case *expr.Aggregate:
			walk(n.Arg)
		}
	}
	walk(e)
	return out
}

// collectFreeVariables gathers every variable referenced anywhere under n,
// bound or used, without regard to gp_index rows — used only for an EXISTS
// pattern, which is never integrated into the indexed tree. store is the
// shared TripleStore EXISTS's Basic nodes slice into.
func collectFreeVariables(n *algebra.Node, store *algebra.TripleStore) []*variable.Variable {
	seen := make(map[int]bool)
	var out []*variable.Variable
	add := func(v *variable.Variable) {
		if !seen[v.Offset()] {
			seen[v.Offset()] = true
			out = append(out, v)
		}
	}
	addTerm := func(t algebra.TermOrVar) {
		if t.IsVariable() {
			add(t.Var)
		}
	}
	var walk func(*algebra.Node)
	walk = func(n *algebra.Node) {
		if n == nil {
			return
		}
		switch n.Op {
		case algebra.OpBasic:
			for _, tp := range store.Slice(n.Start, n.End) {
				addTerm(tp.Subject)
				addTerm(tp.Predicate)
				addTerm(tp.Object)
				addTerm(tp.Graph)
			}
		case algebra.OpGraph, algebra.OpService:
			addTerm(n.Origin)
		case algebra.OpFilter:
			for _, v := range expr.CollectMentions(n.Filter) {
				add(v)
			}
			for _, ex := range findExists(n.Filter) {
				if inner, ok := ex.Pattern.(*algebra.Node); ok {
					for _, v := range collectFreeVariables(inner, store) {
						add(v)
					}
				}
			}
		case algebra.OpLet:
			add(n.BoundVar)
			if e := exprOf(n.BoundVar.Expression()); e != nil {
				for _, v := range expr.CollectMentions(e) {
					add(v)
				}
			}
		case algebra.OpSelect:
			for _, v := range n.Projection {
				add(v)
			}
		case algebra.OpValues:
			for _, v := range n.Bindings.Vars {
				add(v)
			}
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(n)
	return out
}
