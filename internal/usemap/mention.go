package usemap

import (
	"github.com/knotgraph/sparqlprep/internal/algebra"
	"github.com/knotgraph/sparqlprep/internal/expr"
)

// RunMentionPass marks every site that textually references a variable.
// root may be nil (an empty WHERE {}). modifier and valuesQueryLevel may be
// nil when the query has no such clause.
func (a *Analyzer) RunMentionPass(root *algebra.Node, verbs VerbMentions, modifier *algebra.Modifier, valuesQueryLevel *algebra.ValuesBlock) {
	a.markVerbMentions(verbs)
	a.markModifierMentions(modifier)
	if valuesQueryLevel != nil {
		row := a.Use.RowForReserved(RowValues)
		for _, v := range valuesQueryLevel.Vars {
			a.markMention(row, v)
		}
	}
	a.walkMentions(root)
}

func (a *Analyzer) markVerbMentions(verbs VerbMentions) {
	row := a.Use.RowForReserved(RowVerbs)
	for _, v := range verbs.ProjectionVars {
		a.markMention(row, v)
	}
	for _, e := range verbs.ProjectionExprs {
		for _, v := range expr.CollectMentions(e) {
			a.markMention(row, v)
		}
	}
	for _, t := range verbs.DescribedTerms {
		a.markTermMention(row, t)
	}
	for _, tp := range verbs.ConstructTriples {
		a.markTermMention(row, tp.Subject)
		a.markTermMention(row, tp.Predicate)
		a.markTermMention(row, tp.Object)
		a.markTermMention(row, tp.Graph)
	}
}

func (a *Analyzer) markModifierMentions(modifier *algebra.Modifier) {
	if modifier == nil {
		return
	}
	groupByRow := a.Use.RowForReserved(RowGroupBy)
	for _, key := range modifier.GroupBy {
		for _, v := range expr.CollectMentions(key.Expression) {
			a.markMention(groupByRow, v)
		}
		if key.As != nil {
			a.markMention(groupByRow, key.As)
		}
	}
	havingRow := a.Use.RowForReserved(RowHaving)
	for _, e := range modifier.Having {
		for _, v := range expr.CollectMentions(e) {
			a.markMention(havingRow, v)
		}
	}
	orderByRow := a.Use.RowForReserved(RowOrderBy)
	for _, oc := range modifier.OrderBy {
		for _, v := range expr.CollectMentions(oc.Expression) {
			a.markMention(orderByRow, v)
		}
	}
}

func (a *Analyzer) walkMentions(n *algebra.Node) {
	if n == nil {
		return
	}
	row := a.Use.RowForPattern(n.GPIndex)
	switch n.Op {
	case algebra.OpBasic:
		for _, tp := range a.store.Slice(n.Start, n.End) {
			a.markTermMention(row, tp.Subject)
			a.markTermMention(row, tp.Predicate)
			a.markTermMention(row, tp.Object)
			a.markTermMention(row, tp.Graph)
		}
	case algebra.OpGraph, algebra.OpService:
		a.markTermMention(row, n.Origin)
	case algebra.OpFilter:
		a.markExpressionMentions(row, n.Filter)
	case algebra.OpLet:
		if e := exprOf(n.BoundVar.Expression()); e != nil {
			a.markExpressionMentions(row, e)
		}
		a.markMention(row, n.BoundVar)
	case algebra.OpSelect:
		for _, v := range n.Projection {
			a.markMention(row, v)
		}
	case algebra.OpValues:
		for _, v := range n.Bindings.Vars {
			a.markMention(row, v)
		}
	}
	for _, c := range n.Children {
		a.walkMentions(c)
	}
}

func (a *Analyzer) markExpressionMentions(row int, e expr.Expression) {
	for _, v := range expr.CollectMentions(e) {
		a.markMention(row, v)
	}
	for _, ex := range findExists(e) {
		if inner, ok := ex.Pattern.(*algebra.Node); ok {
			for _, v := range collectFreeVariables(inner, a.store) {
				a.markMention(row, v)
			}
		}
	}
}
