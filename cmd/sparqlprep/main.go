package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "sparqlprep",
		Short: "Parse and prepare SPARQL queries without executing them",
		Long:  "sparqlprep parses SPARQL query text, runs it through the preparation pipeline (rewrite, index, variable-use analysis, scope check), and reports the result without ever touching a dataset.",
	}

	root.AddCommand(newParseCmd(), newPrepareCmd(), newCacheCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// readInput reads path's contents, treating "-" as stdin.
func readInput(path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		return string(data), err
	}
	data, err := os.ReadFile(path)
	return string(data), err
}
