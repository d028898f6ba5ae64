package query

import (
	"testing"

	"github.com/knotgraph/sparqlprep/internal/algebra"
	"github.com/knotgraph/sparqlprep/internal/prepare"
	"github.com/knotgraph/sparqlprep/internal/variable"
	"github.com/knotgraph/sparqlprep/pkg/rdf"
)

// ===== Preparation Lifecycle Tests =====

func TestQuery_PrepareSucceedsOnWellFormedSelect(t *testing.T) {
	q := New(FormSelect)
	q.Wildcard = true

	s := q.Variable("s")
	p := q.Variable("p")
	o := q.Variable("o")
	start, end := q.AddTriples(algebra.TriplePattern{
		Subject: algebra.FromVar(s), Predicate: algebra.FromVar(p), Object: algebra.FromVar(o),
	})
	q.Where = algebra.NewGroup(algebra.NewBasic(start, end))

	if err := q.Prepare(prepare.Options{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !q.IsPrepared() {
		t.Fatal("expected query to be marked prepared")
	}
	if len(q.Projection) != 3 {
		t.Errorf("expected wildcard expanded to 3 variables, got %d", len(q.Projection))
	}
	if !q.IsVariableBoundAnywhere(s) {
		t.Error("expected ?s to be bound somewhere")
	}
}

func TestQuery_PrepareTwiceReturnsErrAlreadyPrepared(t *testing.T) {
	q := New(FormAsk)
	q.Where = algebra.NewGroup()

	if err := q.Prepare(prepare.Options{}); err != nil {
		t.Fatalf("first prepare: %v", err)
	}
	if err := q.Prepare(prepare.Options{}); err != ErrAlreadyPrepared {
		t.Errorf("expected ErrAlreadyPrepared, got %v", err)
	}
}

func TestQuery_AccessorPanicsBeforePrepare(t *testing.T) {
	q := New(FormSelect)
	defer func() {
		if recover() == nil {
			t.Error("expected Patterns() to panic before Prepare")
		}
	}()
	q.Patterns()
}

func TestQuery_WarningCallbackFiresForDuplicateProjection(t *testing.T) {
	q := New(FormSelect)
	x := q.Variable("x")
	pIRI := rdf.NewNamedNode("http://example.org/p")
	start, end := q.AddTriples(algebra.TriplePattern{
		Subject: algebra.FromVar(x), Predicate: algebra.FromTerm(pIRI), Object: algebra.FromTerm(pIRI),
	})
	q.Where = algebra.NewGroup(algebra.NewBasic(start, end))
	q.Projection = []*variable.Variable{x, x}

	var warnings []Warning
	q.OnWarning = func(w Warning) { warnings = append(warnings, w) }

	if err := q.Prepare(prepare.Options{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	found := false
	for _, w := range warnings {
		if w.Variable == x {
			found = true
		}
	}
	if !found {
		t.Error("expected a warning naming ?x")
	}
}
