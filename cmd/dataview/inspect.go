package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vegasq/dataview/convert"
	"github.com/vegasq/dataview/distribution"
	"github.com/vegasq/dataview/output"
	"github.com/vegasq/dataview/query"
	"github.com/vegasq/dataview/reader"
	"github.com/vegasq/dataview/table"
)

type inspectOptions struct {
	query  string
	format string
	limit  int
	dist   bool
}

func newInspectCmd() *cobra.Command {
	var opts inspectOptions

	cmd := &cobra.Command{
		Use:   "inspect <file>",
		Short: "Print rows of a file, optionally filtered by a query",
		Long: `Print rows of a Parquet, CSV or Excel file.

Parquet paths may be glob patterns; rows are then tagged with the source
file in the _file column. Queries select FROM data.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return inspect(cmd.Context(), cmd.OutOrStdout(), args[0], opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.query, "query", "q", "", `SQL query, e.g. "SELECT * FROM data WHERE age > 30"`)
	flags.StringVarP(&opts.format, "format", "f", "jsonl", "output format: "+strings.Join(output.Formats, ", "))
	flags.IntVar(&opts.limit, "limit", 0, "limit number of rows (0 = unlimited)")
	flags.BoolVar(&opts.dist, "dist", false, "print value distributions of the result")
	return cmd
}

func inspect(ctx context.Context, w io.Writer, path string, opts inspectOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.limit < 0 {
		return fmt.Errorf("--limit must be non-negative, got %d", opts.limit)
	}
	formatter, err := output.New(opts.format, w)
	if err != nil {
		return err
	}

	t, err := loadTable(ctx, path)
	if err != nil {
		return err
	}

	if opts.query != "" {
		res, err := query.Run(ctx, query.NewValidator(0), opts.query, t)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		t = res.Table
	}

	rows := t
	if opts.limit > 0 {
		rows = t.Head(opts.limit)
	}
	if err := formatter.Format(rows); err != nil {
		return fmt.Errorf("format output: %w", err)
	}

	if opts.dist {
		return output.FormatDistributions(w, opts.format, distribution.Compute(t))
	}
	return nil
}

// loadTable reads CSV and Excel files directly and everything else as
// Parquet.
func loadTable(ctx context.Context, path string) (*table.Table, error) {
	if convert.Supported(path) {
		f, err := os.Open(path)
		if err != nil {
			return nil, notFound(path, err)
		}
		defer f.Close()
		return convert.ReadFile(path, f, convert.Options{})
	}

	t, err := reader.ReadFiles(ctx, path)
	if err != nil {
		return nil, notFound(path, err)
	}
	return t, nil
}

func notFound(path string, err error) error {
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("file '%s' not found", filepath.Clean(path))
	}
	return err
}
