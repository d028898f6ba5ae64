package expr

import "github.com/knotgraph/sparqlprep/internal/variable"

// CollectMentions returns every variable directly referenced anywhere in e.
// It does not descend into an Exists expression's nested pattern — that
// pattern lives in internal/algebra, which this package cannot import, so
// gathering its free variables is internal/usemap's job (it type-asserts
// Exists.Pattern back to *algebra.Node and walks it with its own pattern
// walker). Direct VarRefs appearing as Exists's sibling operands are still
// collected normally.
func CollectMentions(e Expression) []*variable.Variable {
	var out []*variable.Variable
	var walk func(Expression)
	seen := make(map[int]bool)
	add := func(v *variable.Variable) {
		if !seen[v.Offset()] {
			seen[v.Offset()] = true
			out = append(out, v)
		}
	}
	walk = func(e Expression) {
		if e == nil {
			return
		}
		switch n := e.(type) {
		case *Literal:
		case *VarRef:
			add(n.Var)
		case *Aggregate:
			walk(n.Arg)
		case *Binary:
			walk(n.Left)
			walk(n.Right)
		case *Unary:
			walk(n.Operand)
		case *Call:
			for _, a := range n.Args {
				walk(a)
			}
		case *Exists:
			// nested pattern handled by internal/usemap
		}
	}
	walk(e)
	return out
}
