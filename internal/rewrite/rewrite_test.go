package rewrite

import (
	"errors"
	"testing"

	"github.com/knotgraph/sparqlprep/internal/algebra"
	"github.com/knotgraph/sparqlprep/internal/expr"
	"github.com/knotgraph/sparqlprep/internal/variable"
	"github.com/knotgraph/sparqlprep/pkg/rdf"
)

// ===== QName Expansion Tests =====

func TestExpandQNames_ResolvesDeclaredPrefix(t *testing.T) {
	tbl := variable.NewTable()
	s, _ := tbl.AddNamed("s")
	store := algebra.NewTripleStore()
	start, end := store.Append(algebra.TriplePattern{
		Subject:   algebra.FromVar(s),
		Predicate: algebra.FromTerm(rdf.NewQName("foaf", "knows")),
		Object:    algebra.FromTerm(rdf.NewQName("foaf", "Person")),
	})
	root := algebra.NewBasic(start, end)

	n, err := expandQNames(root, store, map[string]string{"foaf": "http://xmlns.com/foaf/0.1/"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 qnames expanded, got %d", n)
	}
	pred := store.Triples[0].Predicate.Term.(*rdf.NamedNode)
	if pred.IRI != "http://xmlns.com/foaf/0.1/knows" {
		t.Errorf("unexpected expansion: %s", pred.IRI)
	}
}

func TestExpandQNames_UndeclaredPrefixErrors(t *testing.T) {
	store := algebra.NewTripleStore()
	start, end := store.Append(algebra.TriplePattern{
		Subject:   algebra.FromTerm(rdf.NewQName("ex", "Thing")),
		Predicate: algebra.FromTerm(rdf.RDFType),
		Object:    algebra.FromTerm(rdf.NewQName("ex", "Other")),
	})
	root := algebra.NewBasic(start, end)

	_, err := expandQNames(root, store, map[string]string{})
	if !errors.Is(err, ErrUnresolvedPrefix) {
		t.Fatalf("expected ErrUnresolvedPrefix, got %v", err)
	}
}

func TestExpandQNames_IdempotentOnSecondRun(t *testing.T) {
	store := algebra.NewTripleStore()
	start, end := store.Append(algebra.TriplePattern{
		Subject:   algebra.FromTerm(rdf.NewQName("ex", "a")),
		Predicate: algebra.FromTerm(rdf.RDFType),
		Object:    algebra.FromTerm(rdf.NewQName("ex", "b")),
	})
	root := algebra.NewBasic(start, end)
	ns := map[string]string{"ex": "http://example.org/"}

	if _, err := expandQNames(root, store, ns); err != nil {
		t.Fatalf("first pass: %v", err)
	}
	n, err := expandQNames(root, store, ns)
	if err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if n != 0 {
		t.Errorf("expected 0 qnames expanded on second run, got %d", n)
	}
}

// ===== Blank Node Lifting Tests =====

func TestLiftBlankNodes_SameLabelSharesVariable(t *testing.T) {
	tbl := variable.NewTable()
	pIRI := rdf.NewNamedNode("http://example.org/p")
	store := algebra.NewTripleStore()
	store.Append(
		algebra.TriplePattern{Subject: algebra.FromTerm(rdf.NewBlankNode("b0")), Predicate: algebra.FromTerm(pIRI), Object: algebra.FromTerm(pIRI)},
		algebra.TriplePattern{Subject: algebra.FromTerm(pIRI), Predicate: algebra.FromTerm(pIRI), Object: algebra.FromTerm(rdf.NewBlankNode("b0"))},
	)
	root := algebra.NewBasic(0, 2)

	scope := make(map[string]*variable.Variable)
	n := liftBlankNodes(root, store, tbl, scope)
	if n != 2 {
		t.Errorf("expected 2 occurrences lifted, got %d", n)
	}
	if store.Triples[0].Subject.Var != store.Triples[1].Object.Var {
		t.Error("expected both occurrences of _:b0 to lift to the same variable")
	}
}

func TestLiftBlankNodes_DistinctLabelsDistinctVariables(t *testing.T) {
	tbl := variable.NewTable()
	pIRI := rdf.NewNamedNode("http://example.org/p")
	store := algebra.NewTripleStore()
	store.Append(
		algebra.TriplePattern{Subject: algebra.FromTerm(rdf.NewBlankNode("b0")), Predicate: algebra.FromTerm(pIRI), Object: algebra.FromTerm(pIRI)},
		algebra.TriplePattern{Subject: algebra.FromTerm(rdf.NewBlankNode("b1")), Predicate: algebra.FromTerm(pIRI), Object: algebra.FromTerm(pIRI)},
	)
	root := algebra.NewBasic(0, 2)

	scope := make(map[string]*variable.Variable)
	liftBlankNodes(root, store, tbl, scope)
	if store.Triples[0].Subject.Var == store.Triples[1].Subject.Var {
		t.Error("expected distinct blank labels to lift to distinct variables")
	}
}

// ===== Wildcard Expansion Tests =====

func TestExpandWildcard_CollectsMentionedVariablesInOffsetOrder(t *testing.T) {
	tbl := variable.NewTable()
	s, _ := tbl.AddNamed("s")
	p, _ := tbl.AddNamed("p")
	o, _ := tbl.AddNamed("o")
	store := algebra.NewTripleStore()
	start, end := store.Append(algebra.TriplePattern{Subject: algebra.FromVar(s), Predicate: algebra.FromVar(p), Object: algebra.FromVar(o)})
	basic := algebra.NewBasic(start, end)
	target := &Target{Root: basic, Wildcard: true}

	n := expandWildcard(target, tbl, store)
	if n != 1 {
		t.Fatalf("expected expandWildcard to report 1 change, got %d", n)
	}
	if target.Wildcard {
		t.Error("expected Wildcard to be cleared")
	}
	want := []*variable.Variable{s, p, o}
	if len(target.Projection) != len(want) {
		t.Fatalf("expected %d projected vars, got %d", len(want), len(target.Projection))
	}
	for i, v := range want {
		if target.Projection[i] != v {
			t.Errorf("projection[%d] = %s, want %s", i, target.Projection[i], v)
		}
	}
}

func TestExpandWildcard_SubSelectExpandsFromOwnSubtree(t *testing.T) {
	tbl := variable.NewTable()
	s, _ := tbl.AddNamed("s")
	o, _ := tbl.AddNamed("o")
	r, _ := tbl.AddNamed("r")
	pIRI := rdf.NewNamedNode("http://example.org/p")

	store := algebra.NewTripleStore()
	s1, e1 := store.Append(algebra.TriplePattern{Subject: algebra.FromVar(s), Predicate: algebra.FromTerm(pIRI), Object: algebra.FromVar(o)})
	s2, e2 := store.Append(algebra.TriplePattern{Subject: algebra.FromVar(o), Predicate: algebra.FromTerm(pIRI), Object: algebra.FromVar(r)})

	outerBasic := algebra.NewBasic(s1, e1)
	subWhere := algebra.NewGroup(algebra.NewBasic(s2, e2))
	sub := algebra.NewSelect(subWhere, nil, &algebra.Modifier{}, true)
	root := algebra.NewGroup(outerBasic, sub)
	target := &Target{Root: root, Wildcard: true}

	n := expandWildcard(target, tbl, store)
	if n != 2 {
		t.Fatalf("expected 2 expansions (sub-select then outer), got %d", n)
	}
	if sub.Wildcard {
		t.Error("expected sub-select wildcard cleared")
	}
	if len(sub.Projection) != 2 {
		t.Errorf("expected sub-select to project [?o ?r], got %v", sub.Projection)
	}
	// the outer wildcard sees the sub-select through its projection only,
	// so it picks up ?o and ?r via the finished projection plus ?s from
	// its own Basic
	if len(target.Projection) != 3 {
		t.Errorf("expected outer projection of 3 variables, got %v", target.Projection)
	}
}

func TestExpandWildcard_NoOpWhenNotWildcard(t *testing.T) {
	target := &Target{Root: algebra.NewBasic(0, 0), Wildcard: false}
	if n := expandWildcard(target, variable.NewTable(), algebra.NewTripleStore()); n != 0 {
		t.Errorf("expected no change, got %d", n)
	}
}

// ===== Duplicate Projection Pruning Tests =====

func TestPruneDuplicateProjection_RemovesRepeats(t *testing.T) {
	tbl := variable.NewTable()
	x, _ := tbl.AddNamed("x")
	y, _ := tbl.AddNamed("y")
	target := &Target{Projection: []*variable.Variable{x, y, x}}

	n := pruneDuplicateProjection(target, nil)
	if n != 1 {
		t.Fatalf("expected 1 duplicate removed, got %d", n)
	}
	if len(target.Projection) != 2 {
		t.Errorf("expected projection of length 2, got %d", len(target.Projection))
	}
}

// ===== Triple-Pattern Merge Tests =====

func TestMergeContiguousBasicRuns_MergesAdjacentRanges(t *testing.T) {
	tbl := variable.NewTable()
	s, _ := tbl.AddNamed("s")
	pIRI := rdf.NewNamedNode("http://example.org/p")
	store := algebra.NewTripleStore()
	s1, e1 := store.Append(algebra.TriplePattern{Subject: algebra.FromVar(s), Predicate: algebra.FromTerm(pIRI), Object: algebra.FromTerm(pIRI)})
	s2, e2 := store.Append(algebra.TriplePattern{Subject: algebra.FromVar(s), Predicate: algebra.FromTerm(pIRI), Object: algebra.FromTerm(pIRI)})

	b1 := algebra.NewBasic(s1, e1)
	b2 := algebra.NewBasic(s2, e2)
	group := algebra.NewGroup(b1, b2)

	n, err := mergeContiguousBasicRuns(group, store)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 merge, got %d", n)
	}
	if len(group.Children) != 1 {
		t.Fatalf("expected 1 child after merge, got %d", len(group.Children))
	}
	if group.Children[0].Start != 0 || group.Children[0].End != 2 {
		t.Errorf("expected merged range [0,2), got [%d,%d)", group.Children[0].Start, group.Children[0].End)
	}
}

func TestMergeContiguousBasicRuns_LeavesNonContiguousUnmerged(t *testing.T) {
	store := algebra.NewTripleStore()
	pIRI := rdf.NewNamedNode("http://example.org/p")
	store.Append(algebra.TriplePattern{Subject: algebra.FromTerm(pIRI), Predicate: algebra.FromTerm(pIRI), Object: algebra.FromTerm(pIRI)})
	store.Append(algebra.TriplePattern{Subject: algebra.FromTerm(pIRI), Predicate: algebra.FromTerm(pIRI), Object: algebra.FromTerm(pIRI)})

	b1 := algebra.NewBasic(0, 1)
	filter := algebra.NewFilter(&expr.Literal{Term: rdf.NewBooleanLiteral(true)})
	b2 := algebra.NewBasic(1, 2)
	group := algebra.NewGroup(b1, filter, b2)

	n, err := mergeContiguousBasicRuns(group, store)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 0 {
		t.Errorf("expected no merge across a non-Basic sibling, got %d", n)
	}
	if len(group.Children) != 3 {
		t.Errorf("expected 3 children unchanged, got %d", len(group.Children))
	}
}

// ===== Empty-Group Removal and Coalescing Tests =====

func TestRemoveEmptyChildGroups_FoldsFilterIntoParent(t *testing.T) {
	empty := algebra.NewGroup()
	empty.Filter = &expr.Literal{Term: rdf.NewBooleanLiteral(true)}
	parent := algebra.NewGroup(empty)

	n := removeEmptyChildGroups(parent)
	if n != 1 {
		t.Fatalf("expected 1 group removed, got %d", n)
	}
	if len(parent.Children) != 0 {
		t.Errorf("expected empty group removed from children, got %d", len(parent.Children))
	}
	if parent.Filter == nil {
		t.Error("expected removed group's filter to be folded into parent")
	}
}

func TestCoalesceChildren_UnwrapsSingleChildWrapper(t *testing.T) {
	inner := algebra.NewBasic(0, 1)
	wrapper := algebra.NewGroup(inner)
	parent := algebra.NewGroup(wrapper)

	n := coalesceChildren(parent)
	if n != 1 {
		t.Fatalf("expected 1 coalesce, got %d", n)
	}
	if len(parent.Children) != 1 || parent.Children[0] != inner {
		t.Error("expected wrapper unwrapped to expose inner directly")
	}
}

func TestCoalesceChildren_NeverUnwrapsUnionWrapper(t *testing.T) {
	branch1 := algebra.NewBasic(0, 1)
	branch2 := algebra.NewBasic(1, 2)
	union := algebra.NewUnion(branch1, branch2)
	wrapper := algebra.NewGroup(union)
	parent := algebra.NewGroup(wrapper)

	n := coalesceChildren(parent)
	if n != 0 {
		t.Errorf("expected Union wrapper left intact, got %d coalesces", n)
	}
	if len(parent.Children) != 1 || parent.Children[0] != wrapper {
		t.Error("expected wrapper to remain in place")
	}
}

// ===== Constant Folding Tests =====

func TestFoldConstants_FoldsFilterExpression(t *testing.T) {
	filterExpr := &expr.Binary{
		Op:    expr.OpAnd,
		Left:  &expr.Literal{Term: rdf.NewBooleanLiteral(true)},
		Right: &expr.Literal{Term: rdf.NewBooleanLiteral(false)},
	}
	filterNode := algebra.NewFilter(filterExpr)

	n := foldConstants(filterNode, nil)
	if n != 1 {
		t.Fatalf("expected 1 fold, got %d", n)
	}
	lit, ok := filterNode.Filter.(*expr.Literal)
	if !ok {
		t.Fatalf("expected folded filter to be a Literal, got %T", filterNode.Filter)
	}
	if lit.Term.(*rdf.Literal).Value != "false" {
		t.Errorf("expected false, got %s", lit.Term.(*rdf.Literal).Value)
	}
}

func TestFoldConstants_StableWhenNothingToFold(t *testing.T) {
	tbl := variable.NewTable()
	x, _ := tbl.AddNamed("x")
	filterExpr := &expr.Binary{
		Op:    expr.OpGreaterThan,
		Left:  &expr.VarRef{Var: x},
		Right: &expr.Literal{Term: rdf.NewIntegerLiteral(2)},
	}
	filterNode := algebra.NewFilter(filterExpr)

	n := foldConstants(filterNode, nil)
	if n != 0 {
		t.Errorf("expected no fold when an operand is a variable, got %d", n)
	}
	if filterNode.Filter != filterExpr {
		t.Error("expected filter expression pointer to remain stable")
	}
}

// ===== RunOnce Fixpoint Tests =====

func TestRunOnce_FullPipelineConverges(t *testing.T) {
	tbl := variable.NewTable()
	s, _ := tbl.AddNamed("s")
	store := algebra.NewTripleStore()
	start, end := store.Append(algebra.TriplePattern{
		Subject:   algebra.FromVar(s),
		Predicate: algebra.FromTerm(rdf.NewQName("ex", "p")),
		Object:    algebra.FromTerm(rdf.NewBlankNode("b0")),
	})
	basic := algebra.NewBasic(start, end)
	group := algebra.NewGroup(basic)
	target := &Target{Root: group, Wildcard: true}

	ctx := &Context{
		Vars:       tbl,
		Store:      store,
		Namespaces: map[string]string{"ex": "http://example.org/"},
		BlankScope: make(map[string]*variable.Variable),
	}

	total := 0
	for i := 0; i < 2*1; i++ {
		n, err := RunOnce(target, ctx)
		if err != nil {
			t.Fatalf("RunOnce pass %d: %v", i, err)
		}
		total += n
		if n == 0 {
			break
		}
	}
	n, err := RunOnce(target, ctx)
	if err != nil {
		t.Fatalf("final convergence check: %v", err)
	}
	if n != 0 {
		t.Errorf("expected RunOnce to have converged to 0, got %d", n)
	}
	if total == 0 {
		t.Error("expected at least one pass to have made a change")
	}
}
