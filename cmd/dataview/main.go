// Command dataview serves uploaded datasets over HTTP and inspects Parquet,
// CSV and Excel files from the command line.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "dataview",
		Short: "Browse, query and summarise tabular datasets",
		Long: `dataview converts CSV and Excel uploads to Parquet, runs restricted SELECT
queries over them and computes per-column value distributions.

Examples:
  dataview serve --storage-dir ./data
  dataview convert sales.csv -o ./out
  dataview inspect -q "SELECT city, COUNT(*) FROM data GROUP BY city" sales.parquet
  dataview inspect --dist -f table sales.parquet
  dataview schema sales.parquet`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newServeCmd(),
		newConvertCmd(),
		newInspectCmd(),
		newSchemaCmd(),
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
