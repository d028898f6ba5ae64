// Package variable implements the Variables Table: the dense, offset-keyed
// registry of every variable a query mentions, named or anonymous.
package variable

import "fmt"

// Kind distinguishes a user-written variable from one synthesized by the
// rewriter (blank-node lifting, property-path lowering in a future
// extension).
type Kind int

const (
	KindNamed Kind = iota
	KindAnonymous
)

func (k Kind) String() string {
	switch k {
	case KindNamed:
		return "named"
	case KindAnonymous:
		return "anonymous"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// BoundExpression is satisfied by internal/expr.Expression. Declared here
// instead of imported to avoid a variable<->expr import cycle (expr.VarRef
// holds a *Variable, so Variable cannot import expr).
type BoundExpression interface {
	fmt.Stringer
}

// Variable is one entry in a query's Variables Table. Offsets are assigned
// once, at creation, by the owning Table's counter and never reassigned or
// recycled — every matrix in internal/usemap addresses rows/columns by this
// offset, so its stability across the whole preparation pipeline is load
// bearing.
type Variable struct {
	name       string
	kind       Kind
	offset     int
	expression BoundExpression // set for SELECT (expr AS ?v) and BIND targets
}

func (v *Variable) Name() string { return v.name }

func (v *Variable) Kind() Kind { return v.kind }

func (v *Variable) Offset() int { return v.offset }

func (v *Variable) Expression() BoundExpression { return v.expression }

func (v *Variable) SetExpression(e BoundExpression) { v.expression = e }

func (v *Variable) String() string {
	if v.kind == KindAnonymous {
		return fmt.Sprintf("_:%s", v.name)
	}
	return "?" + v.name
}

// Table is the ordered, append-only registry of a single query's variables.
type Table struct {
	vars      []*Variable
	byName    map[string]*Variable
	nextLabel int
}

func NewTable() *Table {
	return &Table{byName: make(map[string]*Variable)}
}

// AddNamed returns the existing Variable for name if one was already
// registered, otherwise creates and registers a new one. The bool result
// reports whether a new Variable was created.
func (t *Table) AddNamed(name string) (*Variable, bool) {
	if existing, ok := t.byName[name]; ok {
		return existing, false
	}
	v := &Variable{name: name, kind: KindNamed, offset: len(t.vars)}
	t.vars = append(t.vars, v)
	t.byName[name] = v
	return v, true
}

// AddAnonymous creates a fresh anonymous Variable with a synthesized,
// internally unique name derived from label. Unlike AddNamed it never
// deduplicates against an existing entry — scope-aware deduplication for
// blank-node lifting is the caller's responsibility (the rewriter keeps its
// own per-query scope map), since the right notion of "same blank node" is
// a per-query question the table itself can't answer.
func (t *Table) AddAnonymous(label string) *Variable {
	t.nextLabel++
	name := fmt.Sprintf("_b%d_%s", t.nextLabel, label)
	v := &Variable{name: name, kind: KindAnonymous, offset: len(t.vars)}
	t.vars = append(t.vars, v)
	t.byName[name] = v
	return v
}

// Lookup returns the Variable registered under name, if any.
func (t *Table) Lookup(name string) (*Variable, bool) {
	v, ok := t.byName[name]
	return v, ok
}

// ByOffset returns the Variable at offset, which must be < Count().
func (t *Table) ByOffset(offset int) *Variable {
	return t.vars[offset]
}

// Count returns total_variable_count: the number of distinct variables
// (named and anonymous) registered so far.
func (t *Table) Count() int {
	return len(t.vars)
}

// All returns the registered variables in offset order. The returned slice
// is owned by the Table and must not be mutated.
func (t *Table) All() []*Variable {
	return t.vars
}
