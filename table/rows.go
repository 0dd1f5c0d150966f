package table

import "fmt"

// FromRows builds a table from row maps. names fixes the column order and
// types the declared type of each column; a missing key is a null.
func FromRows(names []string, types []ColumnType, rows []map[string]interface{}) (*Table, error) {
	if len(names) != len(types) {
		return nil, fmt.Errorf("got %d column names but %d types", len(names), len(types))
	}

	columns := make([]*Column, len(names))
	for i, name := range names {
		values := make([]interface{}, len(rows))
		for r, row := range rows {
			values[r] = row[name]
		}
		columns[i] = NewColumn(name, types[i], values)
	}

	return New(columns...)
}

// TypeOf returns the column type a Go value maps to.
func TypeOf(v interface{}) ColumnType {
	switch v.(type) {
	case string:
		return String
	case bool:
		return Boolean
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return Integer
	case float32, float64:
		return Float
	default:
		return Unknown
	}
}

// Concat stacks tables with the same column names vertically. Column types
// are taken from the first table; a column whose type differs between
// tables becomes Unknown.
func Concat(tables ...*Table) (*Table, error) {
	if len(tables) == 0 {
		return New()
	}

	first := tables[0]
	columns := make([]*Column, first.NumColumns())
	for i, c := range first.columns {
		typ := c.Type
		total := 0
		for _, t := range tables {
			other, ok := t.Column(c.Name)
			if !ok || t.NumColumns() != first.NumColumns() {
				return nil, fmt.Errorf("cannot concatenate tables with different columns: %q", c.Name)
			}
			if other.Type != typ {
				typ = Unknown
			}
			total += other.Len()
		}

		values := make([]interface{}, 0, total)
		for _, t := range tables {
			other, _ := t.Column(c.Name)
			values = append(values, other.values...)
		}
		columns[i] = NewColumn(c.Name, typ, values)
	}

	return New(columns...)
}
