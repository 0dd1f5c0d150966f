package convert

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/vegasq/dataview/table"
)

// DefaultInferenceRows is the number of non-empty values per column used to
// pick its type.
const DefaultInferenceRows = 10000

// Options controls how raw records become a table.
type Options struct {
	// InferenceRows bounds the values inspected per column. Zero means
	// DefaultInferenceRows.
	InferenceRows int
}

func (o Options) inferenceRows() int {
	if o.InferenceRows <= 0 {
		return DefaultInferenceRows
	}
	return o.InferenceRows
}

// fromRecords builds a typed table from a header and string records.
// Short records are padded with empty cells; extra cells are dropped.
func fromRecords(header []string, records [][]string, opts Options) (*table.Table, error) {
	names := columnNames(header)
	limit := opts.inferenceRows()

	columns := make([]*table.Column, len(names))
	for i, name := range names {
		cells := make([]string, len(records))
		for r, rec := range records {
			if i < len(rec) {
				cells[r] = rec[i]
			}
		}

		typ := inferType(cells, limit)
		values := make([]interface{}, len(cells))
		for r, cell := range cells {
			values[r] = parseCell(cell, typ)
		}
		columns[i] = table.NewColumn(name, typ, values)
	}

	t, err := table.New(columns...)
	if err != nil {
		return nil, fmt.Errorf("failed to build table: %w", err)
	}
	return t, nil
}

// columnNames trims header cells, names blank ones after their position
// and makes duplicates unique.
func columnNames(header []string) []string {
	names := make([]string, len(header))
	used := make(map[string]bool, len(header))
	for i, h := range header {
		name := strings.TrimSpace(h)
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		if name == "" {
			name = fmt.Sprintf("column_%d", i+1)
		}
		for n, base := 0, name; used[name]; n++ {
			name = fmt.Sprintf("%s_duplicated_%d", base, n)
		}
		used[name] = true
		names[i] = name
	}
	return names
}

// inferType picks the narrowest type that fits the first limit non-empty
// cells. A column without any value is String.
func inferType(cells []string, limit int) table.ColumnType {
	isBool, isInt, isFloat := true, true, true
	seen := 0

	for _, cell := range cells {
		cell = strings.TrimSpace(cell)
		if cell == "" {
			continue
		}
		if seen == limit {
			break
		}
		seen++

		if isBool {
			_, isBool = parseBool(cell)
		}
		if isInt {
			_, err := strconv.ParseInt(cell, 10, 64)
			isInt = err == nil
		}
		if isFloat {
			_, isFloat = parseFloat(cell)
		}
		if !isBool && !isInt && !isFloat {
			return table.String
		}
	}

	switch {
	case seen == 0:
		return table.String
	case isBool:
		return table.Boolean
	case isInt:
		return table.Integer
	case isFloat:
		return table.Float
	default:
		return table.String
	}
}

// parseCell converts a cell to the column type. Empty or unparsable cells
// are null.
func parseCell(cell string, typ table.ColumnType) interface{} {
	trimmed := strings.TrimSpace(cell)
	if trimmed == "" {
		return nil
	}

	switch typ {
	case table.Boolean:
		if b, ok := parseBool(trimmed); ok {
			return b
		}
		return nil
	case table.Integer:
		if n, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
			return n
		}
		return nil
	case table.Float:
		if f, ok := parseFloat(trimmed); ok {
			return f
		}
		return nil
	default:
		return cell
	}
}

func parseBool(s string) (bool, bool) {
	switch strings.ToLower(s) {
	case "true":
		return true, true
	case "false":
		return false, true
	default:
		return false, false
	}
}

// parseFloat accepts finite decimal numbers only.
func parseFloat(s string) (float64, bool) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
