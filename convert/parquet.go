package convert

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/parquet-go/parquet-go"
	"github.com/segmentio/encoding/json"

	"github.com/vegasq/dataview/reader"
	"github.com/vegasq/dataview/table"
)

// ErrNoColumns is returned when writing a table without columns.
var ErrNoColumns = errors.New("table has no columns")

// writeBatch is the number of rows handed to the writer at once.
const writeBatch = 1024

// WriteParquet writes t as a zstd compressed Parquet file with one optional
// leaf per column. The column order is kept in the file metadata so that
// reader.ReadTable restores it.
func WriteParquet(w io.Writer, t *table.Table) error {
	if t.NumColumns() == 0 {
		return ErrNoColumns
	}

	names := t.ColumnNames()
	order, err := json.Marshal(names)
	if err != nil {
		return fmt.Errorf("encode column order: %w", err)
	}

	group := make(parquet.Group, len(names))
	for _, c := range t.Columns() {
		group[c.Name] = parquet.Optional(leafNode(c.Type))
	}
	schema := parquet.NewSchema("dataview", group)

	// Leaf indexes follow the schema, which sorts group fields by name.
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)
	leafIndex := make(map[string]int, len(sorted))
	for i, name := range sorted {
		leafIndex[name] = i
	}

	writer := parquet.NewWriter(w, schema,
		parquet.Compression(&parquet.Zstd),
		parquet.KeyValueMetadata(reader.ColumnOrderKey, string(order)),
	)

	columns := t.Columns()
	batch := make([]parquet.Row, 0, writeBatch)
	for i := 0; i < t.NumRows(); i++ {
		row := make(parquet.Row, len(columns))
		for _, c := range columns {
			idx := leafIndex[c.Name]
			v, def := leafValue(c, i), 1
			if v.IsNull() {
				def = 0
			}
			row[idx] = v.Level(0, def, idx)
		}
		batch = append(batch, row)

		if len(batch) == writeBatch {
			if _, err := writer.WriteRows(batch); err != nil {
				return fmt.Errorf("write rows: %w", err)
			}
			batch = batch[:0]
		}
	}
	if len(batch) > 0 {
		if _, err := writer.WriteRows(batch); err != nil {
			return fmt.Errorf("write rows: %w", err)
		}
	}

	if err := writer.Close(); err != nil {
		return fmt.Errorf("close parquet writer: %w", err)
	}
	return nil
}

func leafNode(typ table.ColumnType) parquet.Node {
	switch typ {
	case table.Boolean:
		return parquet.Leaf(parquet.BooleanType)
	case table.Integer:
		return parquet.Int(64)
	case table.Float:
		return parquet.Leaf(parquet.DoubleType)
	default:
		return parquet.String()
	}
}

// leafValue converts a cell to the column's parquet value. Values that do
// not fit the column type are written as nulls.
func leafValue(c *table.Column, i int) parquet.Value {
	v := c.Value(i)
	if v == nil {
		return parquet.NullValue()
	}

	switch c.Type {
	case table.Boolean:
		if b, ok := v.(bool); ok {
			return parquet.BooleanValue(b)
		}
	case table.Integer:
		if n, ok := asInt64(v); ok {
			return parquet.Int64Value(n)
		}
	case table.Float:
		if f, ok := asFloat64(v); ok {
			return parquet.DoubleValue(f)
		}
	default:
		if s, ok := v.(string); ok {
			return parquet.ByteArrayValue([]byte(s))
		}
		return parquet.ByteArrayValue([]byte(fmt.Sprint(v)))
	}
	return parquet.NullValue()
}

func asInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	default:
		return 0, false
	}
}

func asFloat64(v interface{}) (float64, bool) {
	switch f := v.(type) {
	case float64:
		return f, true
	case float32:
		return float64(f), true
	default:
		if n, ok := asInt64(v); ok {
			return float64(n), true
		}
		return 0, false
	}
}
