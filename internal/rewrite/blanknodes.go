package rewrite

import (
	"github.com/knotgraph/sparqlprep/internal/algebra"
	"github.com/knotgraph/sparqlprep/internal/variable"
	"github.com/knotgraph/sparqlprep/pkg/rdf"
)

// liftBlankNodes replaces every rdf.BlankNode term in the triple store with
// a reference to an anonymous variable, reusing the same variable for
// repeated occurrences of the same label within one query (blankScope is
// the query's single scope map: SPARQL blank-node labels inside one query
// denote the same node everywhere they appear, unlike Turtle's per-block
// scoping). The map is owned by the caller so it survives across the
// several RunOnce passes a single query goes through.
func liftBlankNodes(root *algebra.Node, store *algebra.TripleStore, vars *variable.Table, blankScope map[string]*variable.Variable) int {
	total := 0
	for i := range store.Triples {
		t := &store.Triples[i]
		total += liftOne(&t.Subject, vars, blankScope)
		total += liftOne(&t.Predicate, vars, blankScope)
		total += liftOne(&t.Object, vars, blankScope)
		total += liftOne(&t.Graph, vars, blankScope)
	}
	return total
}

func liftOne(tv *algebra.TermOrVar, vars *variable.Table, blankScope map[string]*variable.Variable) int {
	if tv.IsVariable() || tv.Term == nil {
		return 0
	}
	bn, isBlank := tv.Term.(*rdf.BlankNode)
	if !isBlank {
		return 0
	}
	label := bn.ID
	v, known := blankScope[label]
	if !known {
		v = vars.AddAnonymous(label)
		blankScope[label] = v
	}
	*tv = algebra.FromVar(v)
	return 1
}
