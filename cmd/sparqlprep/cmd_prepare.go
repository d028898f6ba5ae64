package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/knotgraph/sparqlprep/internal/prepare"
	"github.com/knotgraph/sparqlprep/pkg/qparser"
	"github.com/knotgraph/sparqlprep/pkg/query"
)

type prepareReport struct {
	File          string   `json:"file"`
	Form          string   `json:"form"`
	PatternCount  int      `json:"pattern_count"`
	TripleCount   int      `json:"triple_count"`
	VariableCount int      `json:"variable_count"`
	Projection    []string `json:"projection,omitempty"`
	BoundVars     []string `json:"bound_variables,omitempty"`
	Warnings      []string `json:"warnings,omitempty"`
	Error         string   `json:"error,omitempty"`
}

func newPrepareCmd() *cobra.Command {
	var asJSON bool
	var maxPasses int

	cmd := &cobra.Command{
		Use:   "prepare <file>...",
		Short: "Run SPARQL query files through the full preparation pipeline",
		Long:  "prepare parses each query file (use '-' for stdin), runs the rewrite fixpoint, pattern indexing, variable-use analysis, and scope check, and reports the prepared shape: pattern and triple counts, the expanded projection, which variables end up bound, and any usage warnings.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var reports []prepareReport
			for _, file := range args {
				reports = append(reports, prepareOneFile(file, maxPasses))
			}
			return printPrepareReports(cmd, reports, asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "emit the report as JSON")
	cmd.Flags().IntVar(&maxPasses, "max-passes", 0, "rewrite fixpoint pass limit (0 = 2 x tree size + 2)")
	return cmd
}

func prepareOneFile(file string, maxPasses int) prepareReport {
	text, err := readInput(file)
	if err != nil {
		return prepareReport{File: file, Error: err.Error()}
	}

	q, err := qparser.Parse(text)
	if err != nil {
		return prepareReport{File: file, Error: err.Error()}
	}

	report := prepareReport{File: file, Form: q.Form.String()}
	q.OnWarning = func(w query.Warning) {
		report.Warnings = append(report.Warnings, fmt.Sprintf("%s: %s", w.Kind, w.Variable))
	}
	if err := q.Prepare(prepare.Options{MaxRewritePasses: maxPasses}); err != nil {
		report.Error = err.Error()
		return report
	}

	report.PatternCount = len(q.Patterns())
	report.TripleCount = q.Triples.Len()
	report.VariableCount = q.Vars.Count()
	for _, v := range q.Projection {
		report.Projection = append(report.Projection, v.Name())
	}
	for _, v := range q.Vars.All() {
		if q.IsVariableBoundAnywhere(v) {
			report.BoundVars = append(report.BoundVars, v.Name())
		}
	}
	return report
}

func printPrepareReports(cmd *cobra.Command, reports []prepareReport, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(reports)
	}
	for _, r := range reports {
		if r.Error != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: error: %s\n", r.File, r.Error)
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s, %d pattern(s), %d triple(s), %d variable(s)\n",
			r.File, r.Form, r.PatternCount, r.TripleCount, r.VariableCount)
		if len(r.Projection) > 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "  projection: %v\n", r.Projection)
		}
		if len(r.BoundVars) > 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "  bound: %v\n", r.BoundVars)
		}
		for _, w := range r.Warnings {
			fmt.Fprintf(cmd.OutOrStdout(), "  warning: %s\n", w)
		}
	}
	return nil
}
