package expr

import "github.com/knotgraph/sparqlprep/pkg/rdf"

// Resolver maps a declared PREFIX to its base IRI.
type Resolver func(prefix string) (base string, ok bool)

// ExpandQNames rewrites every rdf.QName term reachable from a Literal leaf
// into an rdf.NamedNode using resolve, returning a new tree and the count
// of terms actually expanded (the Rewriter's qname-expansion pass folds
// this count into its overall modified signal). A QName whose prefix
// resolve does not recognize is left untouched; the caller is responsible
// for surfacing that as a diagnostic.
func ExpandQNames(e Expression, resolve Resolver) (Expression, int) {
	count := 0
	var walk func(Expression) Expression
	walk = func(e Expression) Expression {
		switch n := e.(type) {
		case *Literal:
			if q, ok := n.Term.(*rdf.QName); ok {
				if base, ok := resolve(q.Prefix); ok {
					count++
					return &Literal{Term: rdf.NewNamedNode(base + q.Local)}
				}
			}
			return n
		case *VarRef:
			return n
		case *Aggregate:
			if n.Arg == nil {
				return n
			}
			return &Aggregate{Op: n.Op, Arg: walk(n.Arg), Distinct: n.Distinct}
		case *Binary:
			return &Binary{Op: n.Op, Left: walk(n.Left), Right: walk(n.Right)}
		case *Unary:
			return &Unary{Op: n.Op, Operand: walk(n.Operand)}
		case *Call:
			args := make([]Expression, len(n.Args))
			for i, a := range n.Args {
				args[i] = walk(a)
			}
			return &Call{Name: n.Name, Args: args, Not: n.Not}
		case *Exists:
			return n
		default:
			return e
		}
	}
	return walk(e), count
}
