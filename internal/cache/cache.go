// Package cache implements an optional BadgerDB-backed memo of prior
// Prepare outcomes, keyed by a hash of the query text and a caller-supplied
// dataset tag. A host application that re-prepares the same query string
// repeatedly (a connection-pooled service replaying a prepared statement,
// say) can check the cache before paying for the rewrite fixpoint again.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/knotgraph/sparqlprep/internal/prepare"
	"github.com/knotgraph/sparqlprep/internal/scope"
	"github.com/knotgraph/sparqlprep/internal/xhash"
	"github.com/knotgraph/sparqlprep/pkg/query"
)

// DiagnosticSummary is the JSON-serializable shadow of one scope.Diagnostic;
// a *variable.Variable pointer only means anything within the Query that
// produced it, so the cache stores the variable's name instead.
type DiagnosticSummary struct {
	Kind         string `json:"kind"`
	VariableName string `json:"variable"`
}

// Summary is everything about a Prepare outcome worth memoizing: whether
// it succeeded, and if so, shape statistics and diagnostics useful to a
// caller deciding whether to re-run preparation at all.
type Summary struct {
	Success       bool                `json:"success"`
	ErrorKind     string              `json:"error_kind,omitempty"`
	ErrorMessage  string              `json:"error_message,omitempty"`
	PatternCount  int                 `json:"pattern_count"`
	VariableCount int                 `json:"variable_count"`
	Diagnostics   []DiagnosticSummary `json:"diagnostics,omitempty"`
}

// Summarize builds a Summary from a successfully prepared Query.
func Summarize(q *query.Query) *Summary {
	s := &Summary{
		Success:       true,
		PatternCount:  len(q.Patterns()),
		VariableCount: q.Vars.Count(),
	}
	for _, d := range q.Diagnostics() {
		name := ""
		if d.Variable != nil {
			name = d.Variable.Name()
		}
		s.Diagnostics = append(s.Diagnostics, DiagnosticSummary{Kind: d.Kind.String(), VariableName: name})
	}
	return s
}

// FailureSummary builds a Summary recording that preparation failed.
func FailureSummary(err error) *Summary {
	kind := "Unknown"
	var pe *prepare.Error
	if errors.As(err, &pe) {
		kind = pe.Kind.String()
	}
	return &Summary{Success: false, ErrorKind: kind, ErrorMessage: err.Error()}
}

// HasKind reports whether the summary's diagnostics include one of the
// given scope.Kind.
func (s *Summary) HasKind(k scope.Kind) bool {
	for _, d := range s.Diagnostics {
		if d.Kind == k.String() {
			return true
		}
	}
	return false
}

// PrepareCache is a BadgerDB-backed store of (queryText, datasetTag) ->
// Summary entries.
type PrepareCache struct {
	db *badger.DB
}

// Open opens (creating if necessary) a PrepareCache rooted at path.
func Open(path string) (*PrepareCache, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("cache: failed to open badger db: %w", err)
	}
	return &PrepareCache{db: db}, nil
}

// Close closes the underlying database.
func (c *PrepareCache) Close() error {
	return c.db.Close()
}

// Get looks up the cached Summary for (queryText, datasetTag). The second
// return value is false on a cache miss.
func (c *PrepareCache) Get(queryText, datasetTag string) (*Summary, bool, error) {
	key := xhash.Key(queryText, datasetTag)

	var summary Summary
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key[:])
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &summary)
		})
	})
	if err == badger.ErrKeyNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache: get: %w", err)
	}
	return &summary, true, nil
}

// Put stores summary under the key derived from (queryText, datasetTag),
// overwriting any prior entry.
func (c *PrepareCache) Put(queryText, datasetTag string, summary *Summary) error {
	key := xhash.Key(queryText, datasetTag)
	value, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("cache: put: encoding summary: %w", err)
	}
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key[:], value)
	})
}

// PrepareCached runs parse+queryText through a parse function and
// query.Query.Prepare only on a cache miss, recording the outcome either
// way. On a hit it returns the cached Summary without touching parse at
// all. parse is supplied by the caller (cmd/sparqlprep wires pkg/qparser
// here) so this package never imports the parser.
func (c *PrepareCache) PrepareCached(queryText, datasetTag string, parse func(string) (*query.Query, error), opts prepare.Options) (*Summary, error) {
	if cached, ok, err := c.Get(queryText, datasetTag); err != nil {
		return nil, err
	} else if ok {
		return cached, nil
	}

	q, err := parse(queryText)
	if err != nil {
		summary := FailureSummary(err)
		if putErr := c.Put(queryText, datasetTag, summary); putErr != nil {
			return nil, putErr
		}
		return summary, nil
	}

	var summary *Summary
	if err := q.Prepare(opts); err != nil {
		summary = FailureSummary(err)
	} else {
		summary = Summarize(q)
	}
	if err := c.Put(queryText, datasetTag, summary); err != nil {
		return nil, err
	}
	return summary, nil
}
