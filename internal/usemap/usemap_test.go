package usemap

import (
	"testing"

	"github.com/knotgraph/sparqlprep/internal/algebra"
	"github.com/knotgraph/sparqlprep/internal/index"
	"github.com/knotgraph/sparqlprep/internal/variable"
	"github.com/knotgraph/sparqlprep/pkg/rdf"
)

// ===== Scenario 1: SELECT * WHERE { ?s ?p ?o } =====

func TestAnalyzer_SingleTripleAllBound(t *testing.T) {
	tbl := variable.NewTable()
	s, _ := tbl.AddNamed("s")
	p, _ := tbl.AddNamed("p")
	o, _ := tbl.AddNamed("o")

	store := algebra.NewTripleStore()
	start, end := store.Append(algebra.TriplePattern{
		Subject:   algebra.FromVar(s),
		Predicate: algebra.FromVar(p),
		Object:    algebra.FromVar(o),
	})
	basic := algebra.NewBasic(start, end)
	root := algebra.NewGroup(basic)

	patterns := index.Build(root)

	a := NewAnalyzer(store, tbl.Count(), len(patterns))
	a.RunMentionPass(root, VerbMentions{ProjectionVars: []*variable.Variable{s, p, o}}, nil, nil)
	a.RunBindingPass(root, nil, nil)

	row := a.Use.RowForPattern(basic.GPIndex)
	for _, v := range []*variable.Variable{s, p, o} {
		if !a.Use.Has(row, v.Offset(), BoundHere) {
			t.Errorf("expected %s to be BoundHere in Basic row", v)
		}
	}
	if !a.Role.Has(0, s.Offset(), BoundSubject) {
		t.Error("expected subject bound flag set")
	}
	if !a.Role.Has(0, p.Offset(), BoundPredicate) {
		t.Error("expected predicate bound flag set")
	}
	if !a.Role.Has(0, o.Offset(), BoundObject) {
		t.Error("expected object bound flag set")
	}
}

// ===== Scenario 3: merged Basic, ?s bound then used =====

func TestAnalyzer_BindFirstThenUse(t *testing.T) {
	tbl := variable.NewTable()
	s, _ := tbl.AddNamed("s")
	x, _ := tbl.AddNamed("x")

	pIRI := rdf.NewNamedNode("http://example.org/p")
	qIRI := rdf.NewNamedNode("http://example.org/q")
	oVar, _ := tbl.AddNamed("o")

	store := algebra.NewTripleStore()
	start, end := store.Append(
		algebra.TriplePattern{Subject: algebra.FromVar(s), Predicate: algebra.FromTerm(pIRI), Object: algebra.FromVar(oVar)},
		algebra.TriplePattern{Subject: algebra.FromVar(s), Predicate: algebra.FromTerm(qIRI), Object: algebra.FromVar(x)},
	)
	basic := algebra.NewBasic(start, end)
	root := algebra.NewGroup(basic)
	index.Build(root)

	a := NewAnalyzer(store, tbl.Count(), 2)
	a.RunMentionPass(root, VerbMentions{ProjectionVars: []*variable.Variable{x}}, nil, nil)
	a.RunBindingPass(root, nil, nil)

	if !a.Role.Has(0, s.Offset(), BoundSubject) {
		t.Error("expected ?s bound on triple 0")
	}
	if !a.Role.Has(1, s.Offset(), UseSubject) {
		t.Error("expected ?s used on triple 1")
	}
	if a.Role.Has(1, s.Offset(), BoundSubject) {
		t.Error("expected ?s NOT bound again on triple 1")
	}

	row := a.Use.RowForPattern(basic.GPIndex)
	if !a.Use.Has(row, s.Offset(), Mentioned) {
		t.Error("expected ?s to be Mentioned (it has a Use* occurrence on triple 1)")
	}
}

// Scenario variant: a variable bound once and never used again should not
// be marked Mentioned for that Basic row (first-bind is not a mention).
func TestAnalyzer_BindOnlyIsNotAMention(t *testing.T) {
	tbl := variable.NewTable()
	s, _ := tbl.AddNamed("s")
	pIRI := rdf.NewNamedNode("http://example.org/p")
	oIRI := rdf.NewNamedNode("http://example.org/o")

	store := algebra.NewTripleStore()
	start, end := store.Append(algebra.TriplePattern{
		Subject: algebra.FromVar(s), Predicate: algebra.FromTerm(pIRI), Object: algebra.FromTerm(oIRI),
	})
	basic := algebra.NewBasic(start, end)
	root := algebra.NewGroup(basic)
	index.Build(root)

	a := NewAnalyzer(store, tbl.Count(), 1)
	a.RunMentionPass(root, VerbMentions{}, nil, nil)
	a.RunBindingPass(root, nil, nil)

	row := a.Use.RowForPattern(basic.GPIndex)
	if a.Use.Has(row, s.Offset(), Mentioned) {
		t.Error("expected bind-only occurrence to not count as a mention")
	}
	if !a.Use.Has(row, s.Offset(), BoundHere) {
		t.Error("expected ?s to still be BoundHere")
	}
}

// ===== Union branch isolation =====

func TestAnalyzer_UnionBranchesIsolated(t *testing.T) {
	tbl := variable.NewTable()
	a1, _ := tbl.AddNamed("a")
	b1, _ := tbl.AddNamed("b")
	pIRI := rdf.NewNamedNode("http://example.org/p")

	store := algebra.NewTripleStore()
	s1, e1 := store.Append(algebra.TriplePattern{Subject: algebra.FromVar(a1), Predicate: algebra.FromTerm(pIRI), Object: algebra.FromTerm(pIRI)})
	s2, e2 := store.Append(algebra.TriplePattern{Subject: algebra.FromVar(b1), Predicate: algebra.FromVar(a1), Object: algebra.FromTerm(pIRI)})

	branch1 := algebra.NewBasic(s1, e1)
	branch2 := algebra.NewBasic(s2, e2)
	root := algebra.NewUnion(branch1, branch2)
	index.Build(root)

	an := NewAnalyzer(store, tbl.Count(), 3)
	an.RunMentionPass(root, VerbMentions{}, nil, nil)
	an.RunBindingPass(root, nil, nil)

	// In branch2, ?a is bound as predicate, not used there, because Union
	// branches never see each other's bindings: branch1's ?a is not in scope.
	if !an.Role.Has(1, a1.Offset(), BoundPredicate) {
		t.Error("expected ?a to be a Bound (not Use) occurrence in the isolated second Union branch")
	}
}
