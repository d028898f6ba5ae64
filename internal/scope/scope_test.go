package scope

import (
	"testing"

	"github.com/knotgraph/sparqlprep/internal/algebra"
	"github.com/knotgraph/sparqlprep/internal/expr"
	"github.com/knotgraph/sparqlprep/internal/index"
	"github.com/knotgraph/sparqlprep/internal/usemap"
	"github.com/knotgraph/sparqlprep/internal/variable"
	"github.com/knotgraph/sparqlprep/pkg/rdf"
)

// Scenario 4: SELECT ?x WHERE { ?a <p> ?b . FILTER(?x > 2) }
// ?x is mentioned in the filter but bound nowhere under the enclosing
// group: filter rewrites to false, SelectedNeverBound fires for ?x.
func TestCheck_OutOfScopeFilterRewritesToFalse(t *testing.T) {
	tbl := variable.NewTable()
	a, _ := tbl.AddNamed("a")
	b, _ := tbl.AddNamed("b")
	x, _ := tbl.AddNamed("x")
	pIRI := rdf.NewNamedNode("http://example.org/p")

	store := algebra.NewTripleStore()
	start, end := store.Append(algebra.TriplePattern{
		Subject: algebra.FromVar(a), Predicate: algebra.FromTerm(pIRI), Object: algebra.FromVar(b),
	})
	basic := algebra.NewBasic(start, end)

	filterExpr := &expr.Binary{
		Op:    expr.OpGreaterThan,
		Left:  &expr.VarRef{Var: x},
		Right: &expr.Literal{Term: rdf.NewIntegerLiteral(2)},
	}
	filterNode := algebra.NewFilter(filterExpr)

	root := algebra.NewGroup(basic, filterNode)

	index.Build(root)
	an := usemap.NewAnalyzer(store, tbl.Count(), 3)
	an.RunMentionPass(root, usemap.VerbMentions{ProjectionVars: []*variable.Variable{x}}, nil, nil)
	an.RunBindingPass(root, nil, nil)

	diags := Check(root, an.Use, tbl, []*variable.Variable{x})

	if _, ok := filterNode.Filter.(*expr.Literal); !ok {
		t.Fatalf("expected filter to be rewritten to a Literal, got %T", filterNode.Filter)
	}
	lit := filterNode.Filter.(*expr.Literal).Term.(*rdf.Literal)
	if lit.Value != "false" {
		t.Errorf("expected filter literal false, got %s", lit.Value)
	}

	foundSelectedNeverBound := false
	for _, d := range diags {
		if d.Kind == SelectedNeverBound && d.Variable == x {
			foundSelectedNeverBound = true
		}
	}
	if !foundSelectedNeverBound {
		t.Error("expected SelectedNeverBound diagnostic for ?x")
	}
}

// A filter whose variable is bound only in a strictly outer group is also
// rewritten: what matters is that the enclosing group's own subtree never
// binds it.
func TestCheck_FilterBoundOnlyInOuterGroupRewrites(t *testing.T) {
	tbl := variable.NewTable()
	a, _ := tbl.AddNamed("a")
	x, _ := tbl.AddNamed("x")
	pIRI := rdf.NewNamedNode("http://example.org/p")

	store := algebra.NewTripleStore()
	os, oe := store.Append(algebra.TriplePattern{
		Subject: algebra.FromVar(x), Predicate: algebra.FromTerm(pIRI), Object: algebra.FromTerm(pIRI),
	})
	outerBasic := algebra.NewBasic(os, oe)

	is, ie := store.Append(algebra.TriplePattern{
		Subject: algebra.FromVar(a), Predicate: algebra.FromTerm(pIRI), Object: algebra.FromTerm(pIRI),
	})
	innerBasic := algebra.NewBasic(is, ie)
	filterNode := algebra.NewFilter(&expr.Binary{
		Op:    expr.OpGreaterThan,
		Left:  &expr.VarRef{Var: x},
		Right: &expr.Literal{Term: rdf.NewIntegerLiteral(2)},
	})
	innerGroup := algebra.NewGroup(innerBasic, filterNode)
	root := algebra.NewGroup(outerBasic, innerGroup)

	index.Build(root)
	an := usemap.NewAnalyzer(store, tbl.Count(), 5)
	an.RunMentionPass(root, usemap.VerbMentions{}, nil, nil)
	an.RunBindingPass(root, nil, nil)

	diags := Check(root, an.Use, tbl, nil)

	if lit, ok := filterNode.Filter.(*expr.Literal); !ok || lit.Term.(*rdf.Literal).Value != "false" {
		t.Fatalf("expected filter rewritten to false, got %v", filterNode.Filter)
	}
	for _, d := range diags {
		if d.Kind == SelectedNeverBound {
			t.Errorf("unexpected SelectedNeverBound: %s", d.Variable)
		}
	}
}

func TestCheck_VariableUnusedButBound(t *testing.T) {
	tbl := variable.NewTable()
	v, _ := tbl.AddNamed("v")
	letNode := algebra.NewLet(v)
	v.SetExpression(&expr.Literal{Term: rdf.NewIntegerLiteral(1)})
	root := algebra.NewGroup(letNode)

	index.Build(root)
	an := usemap.NewAnalyzer(algebra.NewTripleStore(), tbl.Count(), 2)
	an.RunMentionPass(root, usemap.VerbMentions{}, nil, nil)
	an.RunBindingPass(root, nil, nil)

	diags := Check(root, an.Use, tbl, nil)

	found := false
	for _, d := range diags {
		if d.Kind == VariableUnusedButBound && d.Variable == v {
			found = true
		}
	}
	if !found {
		t.Error("expected VariableUnusedButBound diagnostic for ?v")
	}
}

func TestCheck_IdempotentOnSecondRun(t *testing.T) {
	tbl := variable.NewTable()
	x, _ := tbl.AddNamed("x")
	filterExpr := &expr.Binary{Op: expr.OpGreaterThan, Left: &expr.VarRef{Var: x}, Right: &expr.Literal{Term: rdf.NewIntegerLiteral(2)}}
	filterNode := algebra.NewFilter(filterExpr)
	root := algebra.NewGroup(filterNode)

	index.Build(root)
	an := usemap.NewAnalyzer(algebra.NewTripleStore(), tbl.Count(), 2)
	an.RunMentionPass(root, usemap.VerbMentions{}, nil, nil)
	an.RunBindingPass(root, nil, nil)
	Check(root, an.Use, tbl, nil)

	firstPass := filterNode.Filter

	an2 := usemap.NewAnalyzer(algebra.NewTripleStore(), tbl.Count(), 2)
	an2.RunMentionPass(root, usemap.VerbMentions{}, nil, nil)
	an2.RunBindingPass(root, nil, nil)
	Check(root, an2.Use, tbl, nil)

	if filterNode.Filter != firstPass {
		if lit, ok := filterNode.Filter.(*expr.Literal); !ok || lit.Term.(*rdf.Literal).Value != "false" {
			t.Error("expected scope-check result to remain stable across a second run")
		}
	}
}
