// Package scope implements the Scope Checker: it rewrites filters that
// reference only out-of-scope variables to the constant false, then emits
// usage diagnostics from the finished Variable-Use Matrix.
package scope

import (
	"github.com/knotgraph/sparqlprep/internal/algebra"
	"github.com/knotgraph/sparqlprep/internal/expr"
	"github.com/knotgraph/sparqlprep/internal/usemap"
	"github.com/knotgraph/sparqlprep/internal/variable"
	"github.com/knotgraph/sparqlprep/pkg/rdf"
)

// Kind classifies a usage diagnostic.
type Kind int

const (
	DuplicateVariable Kind = iota
	VariableUnusedButBound
	SelectedNeverBound
	DanglingVariable
)

func (k Kind) String() string {
	switch k {
	case DuplicateVariable:
		return "DuplicateVariable"
	case VariableUnusedButBound:
		return "VariableUnusedButBound"
	case SelectedNeverBound:
		return "SelectedNeverBound"
	case DanglingVariable:
		return "DanglingVariable"
	default:
		return "Unknown"
	}
}

// Diagnostic is one usage finding. DanglingVariable is fatal (see
// internal/prepare); the rest are warnings.
type Diagnostic struct {
	Kind     Kind
	Variable *variable.Variable
}

// Check rewrites out-of-scope filters to false and returns the
// VariableUnusedButBound / SelectedNeverBound / DanglingVariable
// diagnostics for the finished tree. projection is the query's SELECT
// projection, if any (used for SelectedNeverBound).
func Check(root *algebra.Node, use *usemap.UseMatrix, vars *variable.Table, projection []*variable.Variable) []Diagnostic {
	boundInSubtree := computeBoundInSubtree(root, use, vars.Count())
	rewriteOutOfScopeFilters(root, boundInSubtree)
	boundAnywhere := make([]bool, vars.Count())
	copy(boundAnywhere, boundInSubtree[root])
	for r := usemap.RowVerbs; r < usemap.ReservedRowCount; r++ {
		row := use.RowForReserved(r)
		for off := range boundAnywhere {
			if use.Has(row, off, usemap.BoundHere) {
				boundAnywhere[off] = true
			}
		}
	}
	return diagnose(use, vars, projection, boundAnywhere)
}

// computeBoundInSubtree returns, for every node n in the tree rooted at
// root, a bitset over variable offsets that is true at position i iff some
// descendant-or-self row has BoundHere set for that variable.
func computeBoundInSubtree(root *algebra.Node, use *usemap.UseMatrix, width int) map[*algebra.Node][]bool {
	result := make(map[*algebra.Node][]bool)
	var walk func(*algebra.Node) []bool
	walk = func(n *algebra.Node) []bool {
		bits := make([]bool, width)
		if n == nil {
			return bits
		}
		row := use.RowForPattern(n.GPIndex)
		for off := 0; off < width; off++ {
			if use.Has(row, off, usemap.BoundHere) {
				bits[off] = true
			}
		}
		for _, c := range n.Children {
			childBits := walk(c)
			for i, b := range childBits {
				if b {
					bits[i] = true
				}
			}
		}
		result[n] = bits
		return bits
	}
	walk(root)
	return result
}

// rewriteOutOfScopeFilters walks the tree with an explicit ancestor stack
// of enclosing Group nodes (never stored parent pointers, per the
// ancestor-stack design this component follows). A Filter's natural scope
// is its nearest enclosing Group; if none of the variables it mentions is
// bound anywhere inside that Group's subtree — whether they are bound only
// in a strictly outer group or nowhere at all — the filter can never be
// true and is rewritten to the literal false in place. Every node with an
// enclosing Group gets an ExecutionScope recording that Group's gp_index
// and whether the node's filter was rewritten.
func rewriteOutOfScopeFilters(root *algebra.Node, boundInSubtree map[*algebra.Node][]bool) {
	var walk func(n *algebra.Node, groupStack []*algebra.Node)
	walk = func(n *algebra.Node, groupStack []*algebra.Node) {
		if n == nil {
			return
		}
		nextStack := groupStack
		if n.Op == algebra.OpGroup {
			nextStack = append(append([]*algebra.Node{}, groupStack...), n)
		}
		if len(groupStack) > 0 {
			if n.ExecutionScope == nil {
				n.ExecutionScope = &algebra.ScopeInfo{}
			}
			n.ExecutionScope.EnclosingGPIndex = groupStack[len(groupStack)-1].GPIndex
		}
		if n.Op == algebra.OpFilter && len(groupStack) > 0 {
			enclosing := groupStack[len(groupStack)-1]
			mentioned := filterMentions(n.Filter)
			if len(mentioned) > 0 && allOutOfScope(mentioned, boundInSubtree[enclosing]) {
				n.Filter = &expr.Literal{Term: rdf.NewBooleanLiteral(false)}
				n.ExecutionScope.RewrittenToFalse = true
			}
		}
		for _, c := range n.Children {
			walk(c, nextStack)
		}
	}
	walk(root, nil)
}

func filterMentions(e expr.Expression) []*variable.Variable {
	return expr.CollectMentions(e)
}

func allOutOfScope(vars []*variable.Variable, boundHere []bool) bool {
	for _, v := range vars {
		if boundHere[v.Offset()] {
			return false
		}
	}
	return true
}

func diagnose(use *usemap.UseMatrix, vars *variable.Table, projection []*variable.Variable, boundAnywhere []bool) []Diagnostic {
	width := vars.Count()
	mentionedAnywhere := make([]bool, width)
	for row := 0; row < use.Rows(); row++ {
		for off := 0; off < width; off++ {
			if use.Has(row, off, usemap.Mentioned) {
				mentionedAnywhere[off] = true
			}
		}
	}

	var diags []Diagnostic
	for _, v := range vars.All() {
		off := v.Offset()
		switch {
		case !boundAnywhere[off] && !mentionedAnywhere[off]:
			diags = append(diags, Diagnostic{Kind: DanglingVariable, Variable: v})
		case boundAnywhere[off] && !mentionedAnywhere[off]:
			diags = append(diags, Diagnostic{Kind: VariableUnusedButBound, Variable: v})
		}
	}
	for _, v := range projection {
		if v.Kind() == variable.KindNamed && !boundAnywhere[v.Offset()] {
			diags = append(diags, Diagnostic{Kind: SelectedNeverBound, Variable: v})
		}
	}
	return diags
}
