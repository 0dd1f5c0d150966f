// Package table provides the column-oriented in-memory table shared by the
// reader, the query executor and the distribution engine.
//
// A Table is an ordered list of named columns of equal length. Each column
// carries a declared scalar type and a sequence of nullable values; null
// positions are tracked in a roaring bitmap so null counts and null checks do
// not need to scan the values.
//
// Tables are treated as immutable once built: every operation that changes
// shape (Slice, Take, Select) returns a new Table.
package table

import (
	"errors"
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"
)

var (
	// ErrLengthMismatch is returned when columns of different lengths are combined
	ErrLengthMismatch = errors.New("column length mismatch")

	// ErrDuplicateColumn is returned when two columns share a name
	ErrDuplicateColumn = errors.New("duplicate column name")
)

// ColumnType is the declared scalar type of a column.
type ColumnType int

const (
	// Unknown covers every type the engine does not interpret (dates,
	// timestamps, decimals, binary and nested values).
	Unknown ColumnType = iota
	String
	Boolean
	Integer
	Float
)

// String returns the type name used in schema listings.
func (t ColumnType) String() string {
	switch t {
	case String:
		return "STRING"
	case Boolean:
		return "BOOLEAN"
	case Integer:
		return "INTEGER"
	case Float:
		return "FLOAT"
	default:
		return "UNKNOWN"
	}
}

// Column is a named, typed sequence of nullable values.
type Column struct {
	Name string
	Type ColumnType

	values []interface{}
	nulls  *roaring.Bitmap
}

// NewColumn creates a column. A nil entry in values marks a null.
// The slice is owned by the column afterwards.
func NewColumn(name string, typ ColumnType, values []interface{}) *Column {
	if values == nil {
		values = []interface{}{}
	}
	nulls := roaring.New()
	for i, v := range values {
		if v == nil {
			nulls.Add(uint32(i))
		}
	}
	return &Column{
		Name:   name,
		Type:   typ,
		values: values,
		nulls:  nulls,
	}
}

// Len returns the number of values including nulls.
func (c *Column) Len() int {
	return len(c.values)
}

// Value returns the value at row i, or nil when it is null.
func (c *Column) Value(i int) interface{} {
	return c.values[i]
}

// IsNull reports whether row i is null.
func (c *Column) IsNull(i int) bool {
	return c.nulls.Contains(uint32(i))
}

// NullCount returns the number of null values.
func (c *Column) NullCount() int {
	return int(c.nulls.GetCardinality())
}

// NonNull returns the non-null values in row order.
func (c *Column) NonNull() []interface{} {
	out := make([]interface{}, 0, len(c.values)-c.NullCount())
	for _, v := range c.values {
		if v != nil {
			out = append(out, v)
		}
	}
	return out
}

// Rename returns a column with the same values under another name.
func (c *Column) Rename(name string) *Column {
	return &Column{Name: name, Type: c.Type, values: c.values, nulls: c.nulls}
}

// take builds a new column from the given row positions.
func (c *Column) take(indices []int) *Column {
	values := make([]interface{}, len(indices))
	for i, idx := range indices {
		values[i] = c.values[idx]
	}
	return NewColumn(c.Name, c.Type, values)
}

// Table is an ordered set of equal-length columns.
type Table struct {
	columns []*Column
	index   map[string]int
	rows    int
}

// New builds a table from columns. All columns must have the same length
// and distinct names.
func New(columns ...*Column) (*Table, error) {
	t := &Table{index: make(map[string]int, len(columns))}
	for _, c := range columns {
		if err := t.AddColumn(c); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// AddColumn appends a column to the table.
func (t *Table) AddColumn(c *Column) error {
	if _, exists := t.index[c.Name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateColumn, c.Name)
	}
	if len(t.columns) > 0 && c.Len() != t.rows {
		return fmt.Errorf("%w: column %q has %d values, table has %d rows", ErrLengthMismatch, c.Name, c.Len(), t.rows)
	}
	if t.index == nil {
		t.index = make(map[string]int)
	}
	t.index[c.Name] = len(t.columns)
	t.columns = append(t.columns, c)
	t.rows = c.Len()
	return nil
}

// NumRows returns the number of rows.
func (t *Table) NumRows() int {
	return t.rows
}

// NumColumns returns the number of columns.
func (t *Table) NumColumns() int {
	return len(t.columns)
}

// Columns returns the columns in table order.
func (t *Table) Columns() []*Column {
	return t.columns
}

// Column looks up a column by name.
func (t *Table) Column(name string) (*Column, bool) {
	i, ok := t.index[name]
	if !ok {
		return nil, false
	}
	return t.columns[i], true
}

// ColumnNames returns the column names in table order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.columns))
	for i, c := range t.columns {
		names[i] = c.Name
	}
	return names
}

// ColumnTypes returns the declared types keyed by column name.
func (t *Table) ColumnTypes() map[string]ColumnType {
	types := make(map[string]ColumnType, len(t.columns))
	for _, c := range t.columns {
		types[c.Name] = c.Type
	}
	return types
}

// Row returns row i as a map from column name to value.
func (t *Table) Row(i int) map[string]interface{} {
	row := make(map[string]interface{}, len(t.columns))
	for _, c := range t.columns {
		row[c.Name] = c.values[i]
	}
	return row
}

// Rows returns all rows as maps. Nulls are present as nil values.
func (t *Table) Rows() []map[string]interface{} {
	rows := make([]map[string]interface{}, t.rows)
	for i := range rows {
		rows[i] = t.Row(i)
	}
	return rows
}

// Take returns a new table holding the rows at the given positions, in
// the given order.
func (t *Table) Take(indices []int) *Table {
	out := &Table{
		columns: make([]*Column, len(t.columns)),
		index:   make(map[string]int, len(t.columns)),
		rows:    len(indices),
	}
	for i, c := range t.columns {
		out.columns[i] = c.take(indices)
		out.index[c.Name] = i
	}
	return out
}

// Select returns a new table holding the rows whose positions are set in
// the bitmap, in ascending row order.
func (t *Table) Select(rows *roaring.Bitmap) *Table {
	positions := rows.ToArray()
	indices := make([]int, 0, len(positions))
	for _, p := range positions {
		if int(p) < t.rows {
			indices = append(indices, int(p))
		}
	}
	return t.Take(indices)
}

// Slice returns rows [start, end). Bounds are clamped to the table.
func (t *Table) Slice(start, end int) *Table {
	if start < 0 {
		start = 0
	}
	if end > t.rows {
		end = t.rows
	}
	if start > end {
		start = end
	}
	indices := make([]int, 0, end-start)
	for i := start; i < end; i++ {
		indices = append(indices, i)
	}
	return t.Take(indices)
}

// Head returns the first n rows.
func (t *Table) Head(n int) *Table {
	return t.Slice(0, n)
}
