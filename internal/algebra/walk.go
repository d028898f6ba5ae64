package algebra

// Walk visits n and every descendant pre-order (parent before children).
func Walk(n *Node, visit func(*Node)) {
	if n == nil {
		return
	}
	visit(n)
	for _, c := range n.Children {
		Walk(c, visit)
	}
}

// WalkPostOrder visits n and every descendant post-order (children before
// parent) — the order the Indexer and the Rewriter's bottom-up passes rely
// on.
func WalkPostOrder(n *Node, visit func(*Node)) {
	if n == nil {
		return
	}
	for _, c := range n.Children {
		WalkPostOrder(c, visit)
	}
	visit(n)
}

// Size counts n and every descendant. Used as the rewrite driver's measure
// of tree size for bounding the fixpoint loop.
func Size(n *Node) int {
	count := 0
	Walk(n, func(*Node) { count++ })
	return count
}
