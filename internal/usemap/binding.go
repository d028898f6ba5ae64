package usemap

import (
	"github.com/knotgraph/sparqlprep/internal/algebra"
	"github.com/knotgraph/sparqlprep/internal/variable"
)

// scope is one bit per variable offset, set iff the variable has been seen
// bound on the current path through the tree.
type scope []bool

func newScope(width int) scope { return make(scope, width) }

func (s scope) clone() scope {
	c := make(scope, len(s))
	copy(c, s)
	return c
}

// RunBindingPass marks where each variable is bound and fills in the
// Term-Role Matrix. Must run after RunMentionPass on the same tree; it
// overrides the Mentioned bit for Basic pattern rows, deriving it from Use
// occurrences only (a variable's first binding occurrence, with no later
// use, does not count as a mention of that pattern).
func (a *Analyzer) RunBindingPass(root *algebra.Node, modifier *algebra.Modifier, valuesQueryLevel *algebra.ValuesBlock) {
	top := newScope(a.Use.Width())
	a.bindWalk(root, top)

	if valuesQueryLevel != nil {
		row := a.Use.RowForReserved(RowValues)
		for _, v := range valuesQueryLevel.Vars {
			a.Use.Clear(row, v.Offset(), Mentioned)
			a.Use.Set(row, v.Offset(), BoundHere)
		}
	}
	if modifier != nil {
		row := a.Use.RowForReserved(RowGroupBy)
		for _, key := range modifier.GroupBy {
			if key.As != nil {
				a.Use.Clear(row, key.As.Offset(), Mentioned)
				a.Use.Set(row, key.As.Offset(), BoundHere)
			}
		}
	}
}

func (a *Analyzer) promoteBound(row int, s scope, v *variable.Variable) {
	// A binding occurrence is a bind, not a mention: if this is the site
	// where v first enters scope, the mention pass's mark for the same
	// textual occurrence is withdrawn, matching how bindBasic derives the
	// Mentioned bit from Use occurrences only.
	if !s[v.Offset()] {
		a.Use.Clear(row, v.Offset(), Mentioned)
	}
	s[v.Offset()] = true
	a.Use.Set(row, v.Offset(), BoundHere)
}

// bindWalk processes n and returns the scope visible to n's successor
// siblings. Basic, Values, Graph/Service, Let and Group/Optional propagate
// their bindings upward; Union branches and Filter/Minus children are walked
// on copies and propagate nothing; a Select sub-select is walked in a fresh
// scope and only its projection is propagated.
func (a *Analyzer) bindWalk(n *algebra.Node, s scope) scope {
	if n == nil {
		return s
	}
	row := a.Use.RowForPattern(n.GPIndex)
	switch n.Op {
	case algebra.OpBasic:
		a.bindBasic(n, row, s)

	case algebra.OpGraph, algebra.OpService:
		if n.Origin.IsVariable() {
			a.promoteBound(row, s, n.Origin.Var)
		}
		if len(n.Children) > 0 {
			a.bindWalk(n.Children[0], s)
		}

	case algebra.OpLet:
		a.promoteBound(row, s, n.BoundVar)

	case algebra.OpSelect:
		inner := newScope(len(s))
		a.bindWalk(n.Children[0], inner)
		for _, v := range n.Projection {
			a.promoteBound(row, s, v)
		}

	case algebra.OpUnion:
		for _, c := range n.Children {
			a.bindWalk(c, s.clone())
		}

	case algebra.OpGroup, algebra.OpOptional:
		merged := s.clone()
		for _, c := range n.Children {
			branch := s.clone()
			result := a.bindWalk(c, branch)
			for i, bound := range result {
				if bound {
					merged[i] = true
				}
			}
		}
		copy(s, merged)

	case algebra.OpValues:
		for _, v := range n.Bindings.Vars {
			a.promoteBound(row, s, v)
		}

	case algebra.OpFilter, algebra.OpMinus:
		for _, c := range n.Children {
			a.bindWalk(c, s.clone())
		}

	default:
		for _, c := range n.Children {
			a.bindWalk(c, s)
		}
	}
	return s
}

func (a *Analyzer) bindBasic(n *algebra.Node, row int, s scope) {
	touched := make(map[int]bool)
	used := make(map[int]bool)

	bindTerm := func(tripleIdx int, t algebra.TermOrVar, boundFlag, useFlag RoleFlag) {
		if !t.IsVariable() {
			return
		}
		off := t.Var.Offset()
		touched[off] = true
		if !s[off] {
			a.Role.Set(tripleIdx, off, boundFlag)
			a.Use.Set(row, off, BoundHere)
			s[off] = true
		} else {
			a.Role.Set(tripleIdx, off, useFlag)
			used[off] = true
		}
	}

	for ti := n.Start; ti < n.End; ti++ {
		tp := a.store.Triples[ti]
		bindTerm(ti, tp.Subject, BoundSubject, UseSubject)
		bindTerm(ti, tp.Predicate, BoundPredicate, UsePredicate)
		bindTerm(ti, tp.Object, BoundObject, UseObject)
		bindTerm(ti, tp.Graph, BoundGraph, UseGraph)
	}

	for off := range touched {
		if used[off] {
			a.Use.Set(row, off, Mentioned)
		} else {
			a.Use.Clear(row, off, Mentioned)
		}
	}
}
