package rewrite

import (
	"github.com/knotgraph/sparqlprep/internal/algebra"
	"github.com/knotgraph/sparqlprep/internal/expr"
)

// mergeAndCoalesce walks the tree bottom-up and applies, at every Group
// node, triple-pattern merging, empty-group removal, and group coalescing,
// in that order — each pass operates on the child list left behind by the
// previous one. Because the walk is bottom-up, a child Group emptied at its
// own level is already empty when its parent's removal step runs, and is
// dropped there.
func mergeAndCoalesce(root *algebra.Node, store *algebra.TripleStore) (int, error) {
	total := 0
	var walk func(*algebra.Node) error
	walk = func(n *algebra.Node) error {
		if n == nil {
			return nil
		}
		for _, c := range n.Children {
			if err := walk(c); err != nil {
				return err
			}
		}
		if n.Op != algebra.OpGroup {
			return nil
		}
		merged, err := mergeContiguousBasicRuns(n, store)
		if err != nil {
			return err
		}
		total += merged
		total += removeEmptyChildGroups(n)
		total += coalesceChildren(n)
		return nil
	}
	if err := walk(root); err != nil {
		return -1, err
	}
	return total, nil
}

// join merges src into dest in place. Only two contiguous Basic nodes are
// ever joined; anything else is a caller bug.
func join(dest, src *algebra.Node) error {
	if dest.Op != src.Op {
		return ErrMerge
	}
	if dest.Op != algebra.OpBasic {
		return ErrMerge
	}
	dest.End = src.End
	return nil
}

// mergeContiguousBasicRuns collapses runs of adjacent Basic children whose
// triple ranges are contiguous into a single Basic node spanning the whole
// run, so the Indexer and the Use Matrix see one pattern instead of many
// for what was always one block of triples.
func mergeContiguousBasicRuns(n *algebra.Node, store *algebra.TripleStore) (int, error) {
	if len(n.Children) < 2 {
		return 0, nil
	}
	out := make([]*algebra.Node, 0, len(n.Children))
	count := 0
	i := 0
	for i < len(n.Children) {
		c := n.Children[i]
		if c.Op != algebra.OpBasic {
			out = append(out, c)
			i++
			continue
		}
		j := i + 1
		for j < len(n.Children) {
			next := n.Children[j]
			if next.Op != algebra.OpBasic || next.Start != c.End {
				break
			}
			if err := join(c, next); err != nil {
				return -1, err
			}
			count++
			j++
		}
		out = append(out, c)
		i = j
	}
	if count > 0 {
		n.Children = out
	}
	return count, nil
}

// removeEmptyChildGroups drops childless Group nodes from n's child list.
// A removed group's own AND-folded filter, if any, is conjoined into n's
// filter rather than discarded, since an empty group with a filter still
// constrains n's solutions.
func removeEmptyChildGroups(n *algebra.Node) int {
	removed := 0
	out := make([]*algebra.Node, 0, len(n.Children))
	for _, c := range n.Children {
		if c.Op == algebra.OpGroup && len(c.Children) == 0 {
			removed++
			if c.Filter != nil {
				n.Filter = andFilters(n.Filter, c.Filter)
			}
			continue
		}
		out = append(out, c)
	}
	if removed > 0 {
		n.Children = out
	}
	return removed
}

// coalesceChildren unwraps a child that is itself a single-child,
// filter-free Group wrapper, splicing its one child directly into n. Filter
// and Union children are never unwrapped this way: a Filter's placement
// inside its enclosing Group is meaningful to the Scope Checker's
// ancestor-stack walk, and a Union's branches must stay distinguishable
// from a plain sequence of siblings.
func coalesceChildren(n *algebra.Node) int {
	count := 0
	out := make([]*algebra.Node, 0, len(n.Children))
	for _, c := range n.Children {
		if c.Op == algebra.OpGroup && len(c.Children) == 1 && c.Filter == nil {
			grandchild := c.Children[0]
			if grandchild.Op != algebra.OpFilter && grandchild.Op != algebra.OpUnion {
				out = append(out, grandchild)
				count++
				continue
			}
		}
		out = append(out, c)
	}
	if count > 0 {
		n.Children = out
	}
	return count
}

// andFilters conjoins two filter expressions, treating a nil operand as
// the identity (true).
func andFilters(a, b expr.Expression) expr.Expression {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	default:
		return &expr.Binary{Op: expr.OpAnd, Left: a, Right: b}
	}
}
