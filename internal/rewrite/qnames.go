package rewrite

import (
	"fmt"

	"github.com/knotgraph/sparqlprep/internal/algebra"
	"github.com/knotgraph/sparqlprep/internal/expr"
	"github.com/knotgraph/sparqlprep/pkg/rdf"
)

// expandQNames resolves every rdf.QName reachable from the triple store and
// from any Filter/Let expression in the tree, using ns as the PREFIX table.
// An unresolved prefix is an error; everything resolvable up to that point
// has already been rewritten in place, matching the "best effort, then
// report" posture the driver expects from a rewrite step.
func expandQNames(root *algebra.Node, store *algebra.TripleStore, ns map[string]string) (int, error) {
	total := 0
	resolve := func(prefix string) (string, bool) {
		base, ok := ns[prefix]
		return base, ok
	}

	for i := range store.Triples {
		t := &store.Triples[i]
		n, err := expandTermOrVar(&t.Subject, ns)
		if err != nil {
			return -1, err
		}
		total += n
		n, err = expandTermOrVar(&t.Predicate, ns)
		if err != nil {
			return -1, err
		}
		total += n
		n, err = expandTermOrVar(&t.Object, ns)
		if err != nil {
			return -1, err
		}
		total += n
		n, err = expandTermOrVar(&t.Graph, ns)
		if err != nil {
			return -1, err
		}
		total += n
	}

	var walk func(*algebra.Node) error
	walk = func(n *algebra.Node) error {
		if n == nil {
			return nil
		}
		switch n.Op {
		case algebra.OpFilter:
			rewritten, count := expr.ExpandQNames(n.Filter, resolve)
			if count > 0 {
				n.Filter = rewritten
				total += count
			}
			if err := checkUnresolved(n.Filter); err != nil {
				return err
			}
		case algebra.OpGraph, algebra.OpService:
			m, err := expandTermOrVar(&n.Origin, ns)
			if err != nil {
				return err
			}
			total += m
		}
		if n.BoundVar != nil {
			if be := n.BoundVar.Expression(); be != nil {
				if e, ok := be.(expr.Expression); ok {
					rewritten, count := expr.ExpandQNames(e, resolve)
					if count > 0 {
						n.BoundVar.SetExpression(rewritten)
						total += count
					}
					if err := checkUnresolved(n.BoundVar.Expression().(expr.Expression)); err != nil {
						return err
					}
				}
			}
		}
		for _, c := range n.Children {
			if err := walk(c); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(root); err != nil {
		return -1, err
	}
	return total, nil
}

func expandTermOrVar(tv *algebra.TermOrVar, ns map[string]string) (int, error) {
	if tv.IsVariable() || tv.Term == nil {
		return 0, nil
	}
	q, ok := tv.Term.(*rdf.QName)
	if !ok {
		return 0, nil
	}
	base, ok := ns[q.Prefix]
	if !ok {
		return 0, fmt.Errorf("rewrite: undeclared prefix %q: %w", q.Prefix, ErrUnresolvedPrefix)
	}
	tv.Term = rdf.NewNamedNode(base + q.Local)
	return 1, nil
}

// checkUnresolved reports the first qname expandQNames could not resolve,
// so the driver surfaces a real prefix name in the error rather than
// silently leaving QName terms in the finished tree.
func checkUnresolved(e expr.Expression) error {
	for _, leaf := range collectLiterals(e) {
		if q, ok := leaf.(*rdf.QName); ok {
			return fmt.Errorf("rewrite: undeclared prefix %q: %w", q.Prefix, ErrUnresolvedPrefix)
		}
	}
	return nil
}

func collectLiterals(e expr.Expression) []rdf.Term {
	var out []rdf.Term
	var walk func(expr.Expression)
	walk = func(e expr.Expression) {
		switch n := e.(type) {
		case *expr.Literal:
			out = append(out, n.Term)
		case *expr.Binary:
			walk(n.Left)
			walk(n.Right)
		case *expr.Unary:
			walk(n.Operand)
		case *expr.Call:
			for _, a := range n.Args {
				walk(a)
			}
		case *expr.Aggregate:
			if n.Arg != nil {
				walk(n.Arg)
			}
		}
	}
	walk(e)
	return out
}
