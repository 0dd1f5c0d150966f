package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vegasq/dataview/output"
	"github.com/vegasq/dataview/reader"
	"github.com/vegasq/dataview/table"
)

var schemaColumns = []string{"name", "type", "data_type", "physical_type", "logical_type", "required", "optional", "repeated"}

var schemaTypes = []table.ColumnType{
	table.String, table.String, table.String, table.String, table.String,
	table.Boolean, table.Boolean, table.Boolean,
}

func newSchemaCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "schema <file.parquet>",
		Short: "Print the schema of a Parquet file",
		Long: `Print the schema of a Parquet file.

For a glob pattern the schema of the first matching file is shown.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return printSchema(cmd.OutOrStdout(), cmd.ErrOrStderr(), args[0], format)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "table", "output format: "+strings.Join(output.Formats, ", "))
	return cmd
}

func printSchema(w, errw io.Writer, pattern, format string) error {
	formatter, err := output.New(format, w)
	if err != nil {
		return err
	}

	path := pattern
	if strings.ContainsAny(pattern, "*?[]") {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return fmt.Errorf("invalid glob pattern: %w", err)
		}
		if len(matches) == 0 {
			return fmt.Errorf("no files match pattern: %s", pattern)
		}
		path = matches[0]
		if len(matches) > 1 {
			fmt.Fprintf(errw, "# Showing schema from: %s (%d files matched)\n", path, len(matches))
		}
	}

	infos, err := reader.ExtractSchemaInfo(path)
	if err != nil {
		return notFound(path, err)
	}

	rows := make([]map[string]interface{}, len(infos))
	for i, field := range infos {
		rows[i] = map[string]interface{}{
			"name":          field.Name,
			"type":          field.Type,
			"data_type":     field.DataType,
			"physical_type": field.PhysicalType,
			"logical_type":  field.LogicalType,
			"required":      field.Required,
			"optional":      field.Optional,
			"repeated":      field.Repeated,
		}
	}
	t, err := table.FromRows(schemaColumns, schemaTypes, rows)
	if err != nil {
		return err
	}
	return formatter.Format(t)
}
