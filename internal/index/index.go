// Package index implements the Graph-Pattern Indexer: a post-order tree
// walk that assigns a stable gp_index to every graph-pattern node.
package index

import "github.com/knotgraph/sparqlprep/internal/algebra"

// Build assigns gp_index = 0, 1, ... to every node in root, post-order, and
// returns the resulting index -> node array. It is idempotent: calling it
// again on the same (possibly rewritten) tree clears the old indices first
// and reassigns from scratch, so stale indices from a prior pass never
// leak into the new array.
func Build(root *algebra.Node) []*algebra.Node {
	var patterns []*algebra.Node
	algebra.WalkPostOrder(root, func(n *algebra.Node) {
		n.GPIndex = len(patterns)
		patterns = append(patterns, n)
	})
	return patterns
}
