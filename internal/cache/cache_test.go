package cache

import (
	"testing"

	"github.com/knotgraph/sparqlprep/internal/prepare"
	"github.com/knotgraph/sparqlprep/pkg/qparser"
	"github.com/knotgraph/sparqlprep/pkg/query"
)

// ===== Get/Put Round-Trip Tests =====

func TestPrepareCache_MissThenHit(t *testing.T) {
	c, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("failed to open cache: %v", err)
	}
	defer c.Close()

	const q = `SELECT * WHERE { ?s ?p ?o }`

	if _, ok, err := c.Get(q, "default"); err != nil {
		t.Fatalf("unexpected error on miss: %v", err)
	} else if ok {
		t.Fatal("expected a miss before any Put")
	}

	summary := &Summary{Success: true, PatternCount: 1, VariableCount: 3}
	if err := c.Put(q, "default", summary); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, ok, err := c.Get(q, "default")
	if err != nil {
		t.Fatalf("unexpected error on hit: %v", err)
	}
	if !ok {
		t.Fatal("expected a hit after Put")
	}
	if got.PatternCount != 1 || got.VariableCount != 3 {
		t.Errorf("unexpected round-tripped summary: %+v", got)
	}
}

func TestPrepareCache_DatasetTagPartitionsKeys(t *testing.T) {
	c, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("failed to open cache: %v", err)
	}
	defer c.Close()

	const q = `ASK { ?s ?p ?o }`
	if err := c.Put(q, "dataset-a", &Summary{Success: true}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, ok, err := c.Get(q, "dataset-b"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	} else if ok {
		t.Error("expected a different dataset tag to miss")
	}
}

// ===== PrepareCached Tests =====

func TestPrepareCache_PrepareCachedMemoizesSuccess(t *testing.T) {
	c, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("failed to open cache: %v", err)
	}
	defer c.Close()

	const q = `SELECT ?s WHERE { ?s ?p ?o }`
	calls := 0
	parse := func(text string) (*query.Query, error) {
		calls++
		return qparser.Parse(text)
	}

	first, err := c.PrepareCached(q, "default", parse, prepare.Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !first.Success {
		t.Fatalf("expected preparation to succeed, got %+v", first)
	}
	if calls != 1 {
		t.Fatalf("expected parse to run once, got %d calls", calls)
	}

	second, err := c.PrepareCached(q, "default", parse, prepare.Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected parse NOT to run again on a cache hit, got %d calls", calls)
	}
	if second.PatternCount != first.PatternCount {
		t.Errorf("expected the cached summary to match the original: %+v vs %+v", second, first)
	}
}

func TestPrepareCache_PrepareCachedMemoizesFailure(t *testing.T) {
	c, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("failed to open cache: %v", err)
	}
	defer c.Close()

	const badQuery = `SELECT * WHERE { ?s ?p }`
	summary, err := c.PrepareCached(badQuery, "default", qparser.Parse, prepare.Options{})
	if err != nil {
		t.Fatalf("unexpected cache-layer error: %v", err)
	}
	if summary.Success {
		t.Fatal("expected a malformed query to record a failed summary")
	}
	if summary.ErrorMessage == "" {
		t.Error("expected a non-empty error message on a recorded failure")
	}
}
