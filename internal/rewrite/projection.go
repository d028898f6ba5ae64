package rewrite

import (
	"github.com/knotgraph/sparqlprep/internal/algebra"
	"github.com/knotgraph/sparqlprep/internal/expr"
	"github.com/knotgraph/sparqlprep/internal/scope"
	"github.com/knotgraph/sparqlprep/internal/variable"
)

// expandWildcard replaces a SELECT * projection with every variable
// mentioned anywhere in the pattern tree, in table offset order — projection
// is resolved from the tree's own
// variable references, not from the Variables Table's full contents, so a
// variable the query declares but never mentions is correctly left out.
// Sub-select wildcards are expanded first, innermost before outermost, so
// an outer wildcard sees each sub-select's finished projection rather than
// its raw internals.
func expandWildcard(target *Target, vars *variable.Table, store *algebra.TripleStore) int {
	total := 0
	algebra.WalkPostOrder(target.Root, func(n *algebra.Node) {
		if n.Op == algebra.OpSelect && n.Wildcard {
			n.Projection = namedTreeVariables(n.Children[0], vars, store)
			n.Wildcard = false
			total++
		}
	})
	if target.Wildcard {
		target.Projection = namedTreeVariables(target.Root, vars, store)
		target.Wildcard = false
		total++
	}
	return total
}

// namedTreeVariables returns the named variables referenced under root, in
// table offset order.
func namedTreeVariables(root *algebra.Node, vars *variable.Table, store *algebra.TripleStore) []*variable.Variable {
	mentioned := make(map[*variable.Variable]bool)
	collectTreeVariables(root, store, mentioned)

	var projection []*variable.Variable
	for _, v := range vars.All() {
		if mentioned[v] && v.Kind() == variable.KindNamed {
			projection = append(projection, v)
		}
	}
	return projection
}

func collectTreeVariables(n *algebra.Node, store *algebra.TripleStore, out map[*variable.Variable]bool) {
	if n == nil {
		return
	}
	switch n.Op {
	case algebra.OpBasic:
		for _, t := range store.Slice(n.Start, n.End) {
			for _, tv := range []algebra.TermOrVar{t.Subject, t.Predicate, t.Object, t.Graph} {
				if tv.IsVariable() {
					out[tv.Var] = true
				}
			}
		}
	case algebra.OpFilter:
		for _, v := range expr.CollectMentions(n.Filter) {
			out[v] = true
		}
	case algebra.OpLet:
		out[n.BoundVar] = true
		if be := n.BoundVar.Expression(); be != nil {
			if e, ok := be.(expr.Expression); ok {
				for _, v := range expr.CollectMentions(e) {
					out[v] = true
				}
			}
		}
	case algebra.OpGraph, algebra.OpService:
		if n.Origin.IsVariable() {
			out[n.Origin.Var] = true
		}
	case algebra.OpValues:
		for _, v := range n.Bindings.Vars {
			out[v] = true
		}
	case algebra.OpSelect:
		// only a sub-select's projected variables are visible outside it
		for _, v := range n.Projection {
			out[v] = true
		}
		return
	}
	for _, c := range n.Children {
		collectTreeVariables(c, store, out)
	}
}

// pruneDuplicateProjection drops repeated variables from the SELECT
// projection list, emitting a DuplicateVariable diagnostic for each one
// removed (SELECT ?x ?x is a user error worth surfacing, not a silent
// normalization).
func pruneDuplicateProjection(target *Target, diags *[]scope.Diagnostic) int {
	if len(target.Projection) == 0 {
		return 0
	}
	seen := make(map[*variable.Variable]bool, len(target.Projection))
	out := make([]*variable.Variable, 0, len(target.Projection))
	removed := 0
	for _, v := range target.Projection {
		if seen[v] {
			removed++
			if diags != nil {
				*diags = append(*diags, scope.Diagnostic{Kind: scope.DuplicateVariable, Variable: v})
			}
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	if removed == 0 {
		return 0
	}
	target.Projection = out
	return removed
}
