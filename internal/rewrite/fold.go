package rewrite

import (
	"github.com/knotgraph/sparqlprep/internal/algebra"
	"github.com/knotgraph/sparqlprep/internal/expr"
)

// foldConstants runs constant folding over every Filter expression, every
// Let-bound expression, and every expression in the query's solution
// modifier (GROUP BY / HAVING / ORDER BY keys). expr.Fold is pointer-stable
// when nothing changes, so comparing the folded result against the
// original by identity is enough to compute the modified count without a
// separate deep-equality pass.
func foldConstants(root *algebra.Node, modifier *algebra.Modifier) int {
	total := 0
	var walk func(*algebra.Node)
	walk = func(n *algebra.Node) {
		if n == nil {
			return
		}
		if n.Filter != nil {
			folded := expr.Fold(n.Filter)
			if folded != n.Filter {
				n.Filter = folded
				total++
			}
		}
		if n.Op == algebra.OpLet && n.BoundVar != nil {
			if be := n.BoundVar.Expression(); be != nil {
				if e, ok := be.(expr.Expression); ok {
					folded := expr.Fold(e)
					if folded != e {
						n.BoundVar.SetExpression(folded)
						total++
					}
				}
			}
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(root)

	if modifier != nil {
		for i := range modifier.GroupBy {
			k := &modifier.GroupBy[i]
			if k.Expression == nil {
				continue
			}
			folded := expr.Fold(k.Expression)
			if folded != k.Expression {
				k.Expression = folded
				total++
			}
		}
		for i := range modifier.Having {
			folded := expr.Fold(modifier.Having[i])
			if folded != modifier.Having[i] {
				modifier.Having[i] = folded
				total++
			}
		}
		for i := range modifier.OrderBy {
			o := &modifier.OrderBy[i]
			if o.Expression == nil {
				continue
			}
			folded := expr.Fold(o.Expression)
			if folded != o.Expression {
				o.Expression = folded
				total++
			}
		}
	}

	return total
}
