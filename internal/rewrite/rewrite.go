// Package rewrite implements the Rewriter: the algebraic rewrite suite
// (qname expansion, blank-node lifting, wildcard expansion, duplicate-
// projection pruning, triple-pattern merging, empty-group removal, group
// coalescing, constant folding) that the Preparation Driver runs to a
// fixpoint.
package rewrite

import (
	"errors"

	"github.com/knotgraph/sparqlprep/internal/algebra"
	"github.com/knotgraph/sparqlprep/internal/scope"
	"github.com/knotgraph/sparqlprep/internal/variable"
)

var (
	// ErrUnresolvedPrefix is returned by qname expansion when a triple or
	// filter references a prefix with no matching PREFIX declaration.
	ErrUnresolvedPrefix = errors.New("rewrite: unresolved qname prefix")
	// ErrMerge is returned by join when asked to merge nodes whose
	// operators differ — always an implementation bug upstream, never a
	// user-input error.
	ErrMerge = errors.New("rewrite: cannot join nodes with different operators")
)

// Context carries everything a rewrite pass needs beyond the tree itself.
type Context struct {
	Vars        *variable.Table
	Store       *algebra.TripleStore
	Namespaces  map[string]string             // PREFIX declarations: prefix -> base IRI
	BlankScope  map[string]*variable.Variable // blank label -> lifted variable; owned by the Rewriter, not the parser
	Diagnostics *[]scope.Diagnostic
}

// Target is everything about one query the Rewriter can mutate across a
// pass: its pattern tree plus the query-level projection and solution
// modifier, which live outside the tree proper.
type Target struct {
	Root       *algebra.Node
	Projection []*variable.Variable
	Wildcard   bool
	Modifier   *algebra.Modifier
}

// RunOnce runs every rewrite once, in a fixed order, and returns the total
// modified count (>0 changed, 0 no change) or a negative count alongside a
// non-nil error.
func RunOnce(target *Target, ctx *Context) (int, error) {
	total := 0

	n, err := expandQNames(target.Root, ctx.Store, ctx.Namespaces)
	if err != nil {
		return -1, err
	}
	total += n

	total += liftBlankNodes(target.Root, ctx.Store, ctx.Vars, ctx.BlankScope)
	total += expandWildcard(target, ctx.Vars, ctx.Store)
	total += pruneDuplicateProjection(target, ctx.Diagnostics)

	if target.Root != nil {
		changed, err := mergeAndCoalesce(target.Root, ctx.Store)
		if err != nil {
			return -1, err
		}
		total += changed
	}

	total += foldConstants(target.Root, target.Modifier)

	return total, nil
}
