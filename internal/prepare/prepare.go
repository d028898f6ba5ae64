// Package prepare implements the Preparation Driver: it runs the Rewriter
// to a fixpoint, then the Indexer, the Variable-Use Analyzer, and the Scope
// Checker, in that fixed order, exactly once per query.
package prepare

import (
	"errors"
	"fmt"

	"github.com/knotgraph/sparqlprep/internal/algebra"
	"github.com/knotgraph/sparqlprep/internal/index"
	"github.com/knotgraph/sparqlprep/internal/rewrite"
	"github.com/knotgraph/sparqlprep/internal/scope"
	"github.com/knotgraph/sparqlprep/internal/usemap"
	"github.com/knotgraph/sparqlprep/internal/variable"
)

// Kind classifies why preparation failed.
type Kind int

const (
	Structural Kind = iota
	Resolution
	MergeError
	DanglingVariable
	RewriteDidNotConverge
)

func (k Kind) String() string {
	switch k {
	case Structural:
		return "Structural"
	case Resolution:
		return "Resolution"
	case MergeError:
		return "MergeError"
	case DanglingVariable:
		return "DanglingVariable"
	case RewriteDidNotConverge:
		return "RewriteDidNotConverge"
	default:
		return "Unknown"
	}
}

// Error is the error type every preparation failure is reported as.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("prepare: %s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// ErrAlreadyPrepared is the sentinel pkg/query.Query.Prepare returns when
// called a second time on the same Query; preparation mutates its input in
// place and is not idempotent to re-run blindly (a second rewrite pass
// would see an already fully-reduced tree and do nothing useful, masking a
// caller bug that re-prepares the same query object). Run itself has no
// notion of "already prepared" — that single-shot guard belongs to the
// object that owns the prepared flag, not to this stateless driver.
var ErrAlreadyPrepared = errors.New("prepare: query already prepared")

// Options configures a preparation run.
type Options struct {
	// MaxRewritePasses bounds the Rewriter's fixpoint loop. Zero selects
	// the default of 2 * initial tree size (algebra.Size) + 2; every rewrite strictly
	// reduces a measure of the tree, so convergence within that bound is
	// guaranteed for well-formed input.
	MaxRewritePasses int
}

// Result is everything preparation produces for the finished query.
type Result struct {
	Patterns    []*algebra.Node
	Use         *usemap.UseMatrix
	Role        *usemap.RoleMatrix
	Diagnostics []scope.Diagnostic
}

// Input is everything the driver needs from the query being prepared.
// Target.Root may be nil for an empty WHERE {}.
type Input struct {
	Target     *rewrite.Target
	Vars       *variable.Table
	Store      *algebra.TripleStore
	Namespaces map[string]string
	Verbs      usemap.VerbMentions
	Values     *algebra.ValuesBlock
}

// Run drives one query's Target through rewriting, indexing, use analysis,
// and scope checking. It mutates Target.Root and Target's projection fields
// in place and returns the finished Result.
func Run(in *Input, opts Options) (*Result, error) {
	initialSize := algebra.Size(in.Target.Root)
	maxPasses := opts.MaxRewritePasses
	if maxPasses == 0 {
		maxPasses = 2*initialSize + 2
	}

	var rewriteDiags []scope.Diagnostic
	ctx := &rewrite.Context{
		Vars:        in.Vars,
		Store:       in.Store,
		Namespaces:  in.Namespaces,
		BlankScope:  make(map[string]*variable.Variable),
		Diagnostics: &rewriteDiags,
	}

	converged := false
	for i := 0; i < maxPasses; i++ {
		n, err := rewrite.RunOnce(in.Target, ctx)
		if err != nil {
			return nil, classifyRewriteError(err)
		}
		if n == 0 {
			converged = true
			break
		}
	}
	if !converged {
		return nil, &Error{Kind: RewriteDidNotConverge, Err: fmt.Errorf("did not converge within %d passes", maxPasses)}
	}

	patterns := index.Build(in.Target.Root)

	// a wildcard projection only exists after the rewrite loop expanded it,
	// so the Verbs slot reads the finished projection, not the caller's
	// pre-rewrite snapshot
	verbs := in.Verbs
	if len(verbs.ProjectionVars) == 0 && len(in.Target.Projection) > 0 {
		verbs.ProjectionVars = in.Target.Projection
	}

	an := usemap.NewAnalyzer(in.Store, in.Vars.Count(), len(patterns))
	an.RunMentionPass(in.Target.Root, verbs, in.Target.Modifier, in.Values)
	an.RunBindingPass(in.Target.Root, in.Target.Modifier, in.Values)

	diags := scope.Check(in.Target.Root, an.Use, in.Vars, in.Target.Projection)
	for _, d := range diags {
		if d.Kind == scope.DanglingVariable {
			return nil, &Error{Kind: DanglingVariable, Err: fmt.Errorf("variable %s is never bound anywhere in the query", d.Variable)}
		}
	}
	diags = append(rewriteDiags, diags...)

	return &Result{
		Patterns:    patterns,
		Use:         an.Use,
		Role:        an.Role,
		Diagnostics: diags,
	}, nil
}

func classifyRewriteError(err error) error {
	switch {
	case errors.Is(err, rewrite.ErrUnresolvedPrefix):
		return &Error{Kind: Resolution, Err: err}
	case errors.Is(err, rewrite.ErrMerge):
		return &Error{Kind: MergeError, Err: err}
	default:
		return &Error{Kind: Structural, Err: err}
	}
}
