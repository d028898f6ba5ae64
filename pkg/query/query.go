// Package query implements the Public Query-Preparation Interface: the
// Query type a parser builds and a driver prepares, and the read-only
// accessors an execution engine consults afterward.
package query

import (
	"errors"

	"github.com/knotgraph/sparqlprep/internal/algebra"
	"github.com/knotgraph/sparqlprep/internal/expr"
	"github.com/knotgraph/sparqlprep/internal/prepare"
	"github.com/knotgraph/sparqlprep/internal/rewrite"
	"github.com/knotgraph/sparqlprep/internal/scope"
	"github.com/knotgraph/sparqlprep/internal/usemap"
	"github.com/knotgraph/sparqlprep/internal/variable"
)

// Form is the query's top-level verb.
type Form int

const (
	FormSelect Form = iota
	FormConstruct
	FormAsk
	FormDescribe
)

func (f Form) String() string {
	switch f {
	case FormSelect:
		return "SELECT"
	case FormConstruct:
		return "CONSTRUCT"
	case FormAsk:
		return "ASK"
	case FormDescribe:
		return "DESCRIBE"
	default:
		return "Unknown"
	}
}

// Warning is one non-fatal diagnostic, surfaced through OnWarning once
// preparation has succeeded and retained in Diagnostics() for later
// programmatic inspection.
type Warning struct {
	Kind     scope.Kind
	Variable *variable.Variable
}

// ErrAlreadyPrepared is returned by Prepare when called a second time on
// the same Query.
var ErrAlreadyPrepared = prepare.ErrAlreadyPrepared

// Query is one query's complete state: its variables, triples, pattern
// tree, and (after Prepare) its analysis matrices. A parser builds one with
// the builder methods below; an execution engine reads it with the
// accessors after Prepare succeeds.
type Query struct {
	Form Form

	Vars    *variable.Table
	Triples *algebra.TripleStore
	Where   *algebra.Node

	Namespaces map[string]string

	Projection []*variable.Variable
	Wildcard   bool
	Modifier   *algebra.Modifier

	ConstructTemplate []algebra.TriplePattern
	DescribeTerms     []algebra.TermOrVar

	ValuesQueryLevel *algebra.ValuesBlock

	OnWarning func(Warning)

	prepared    bool
	patterns    []*algebra.Node
	use         *usemap.UseMatrix
	role        *usemap.RoleMatrix
	diagnostics []scope.Diagnostic
}

// New creates an empty Query of the given form, ready for a parser to
// populate via the builder methods.
func New(form Form) *Query {
	return &Query{
		Form:       form,
		Vars:       variable.NewTable(),
		Triples:    algebra.NewTripleStore(),
		Namespaces: make(map[string]string),
	}
}

// Declare registers a PREFIX declaration for later qname expansion.
func (q *Query) Declare(prefix, base string) {
	q.Namespaces[prefix] = base
}

// AddTriples appends patterns to the query's flat triple array and returns
// the half-open column range they occupy, for use as a Basic node's
// [Start, End).
func (q *Query) AddTriples(patterns ...algebra.TriplePattern) (start, end int) {
	return q.Triples.Append(patterns...)
}

// Variable returns the named variable, creating it if this is its first
// mention in the query.
func (q *Query) Variable(name string) *variable.Variable {
	v, _ := q.Vars.AddNamed(name)
	return v
}

// Prepare runs the full preparation pipeline (rewrite to fixpoint, index,
// analyze variable use, check scope) exactly once. A second call returns
// ErrAlreadyPrepared without touching the query's state again.
func (q *Query) Prepare(opts prepare.Options) error {
	if q.prepared {
		return ErrAlreadyPrepared
	}

	verbs := q.verbMentions()
	in := &prepare.Input{
		Target: &rewrite.Target{
			Root:       q.Where,
			Projection: q.Projection,
			Wildcard:   q.Wildcard,
			Modifier:   q.Modifier,
		},
		Vars:       q.Vars,
		Store:      q.Triples,
		Namespaces: q.Namespaces,
		Verbs:      verbs,
		Values:     q.ValuesQueryLevel,
	}

	result, err := prepare.Run(in, opts)
	if err != nil {
		return err
	}

	q.Where = in.Target.Root
	q.Projection = in.Target.Projection
	q.Wildcard = in.Target.Wildcard
	q.patterns = result.Patterns
	q.use = result.Use
	q.role = result.Role
	q.diagnostics = result.Diagnostics
	q.prepared = true

	if q.OnWarning != nil {
		for _, d := range q.diagnostics {
			q.OnWarning(Warning{Kind: d.Kind, Variable: d.Variable})
		}
	}
	return nil
}

func (q *Query) verbMentions() usemap.VerbMentions {
	switch q.Form {
	case FormDescribe:
		return usemap.VerbMentions{DescribedTerms: q.DescribeTerms}
	case FormConstruct:
		return usemap.VerbMentions{ConstructTriples: q.ConstructTemplate}
	default:
		var exprs []expr.Expression
		for _, v := range q.Projection {
			if e, ok := v.Expression().(expr.Expression); ok {
				exprs = append(exprs, e)
			}
		}
		return usemap.VerbMentions{ProjectionVars: q.Projection, ProjectionExprs: exprs}
	}
}

// ===== Read-only accessors for the execution engine =====

// Patterns returns the index-ordered pattern array the Indexer produced.
// Panics if called before Prepare succeeds.
func (q *Query) Patterns() []*algebra.Node { q.requirePrepared(); return q.patterns }

// UseMatrix returns the finished Variable-Use Matrix.
func (q *Query) UseMatrix() *usemap.UseMatrix { q.requirePrepared(); return q.use }

// RoleMatrix returns the finished per-triple Term-Role Matrix.
func (q *Query) RoleMatrix() *usemap.RoleMatrix { q.requirePrepared(); return q.role }

// Diagnostics returns every warning-class finding from preparation.
func (q *Query) Diagnostics() []scope.Diagnostic { q.requirePrepared(); return q.diagnostics }

// IsPrepared reports whether Prepare has already run successfully.
func (q *Query) IsPrepared() bool { return q.prepared }

// IsVariableBoundAnywhere reports whether v is bound by some pattern in
// the finished tree or by a query-level slot (GROUP BY (expr AS ?v), VALUES).
func (q *Query) IsVariableBoundAnywhere(v *variable.Variable) bool {
	q.requirePrepared()
	for row := 0; row < q.use.Rows(); row++ {
		if q.use.Has(row, v.Offset(), usemap.BoundHere) {
			return true
		}
	}
	return false
}

// IsVariableBoundUnderPattern reports whether v is bound directly on the
// graph-pattern row identified by gpIndex.
func (q *Query) IsVariableBoundUnderPattern(v *variable.Variable, gpIndex int) bool {
	q.requirePrepared()
	row := q.use.RowForPattern(gpIndex)
	return q.use.Has(row, v.Offset(), usemap.BoundHere)
}

func (q *Query) requirePrepared() {
	if !q.prepared {
		panic(errors.New("query: accessor called before Prepare succeeded"))
	}
}
