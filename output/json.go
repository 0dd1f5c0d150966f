package output

import (
	"bufio"
	"fmt"
	"io"

	"github.com/segmentio/encoding/json"

	"github.com/vegasq/dataview/table"
)

// JSONFormatter outputs rows as JSON Lines format
type JSONFormatter struct {
	writer io.Writer
}

// NewJSONFormatter creates a new JSON Lines formatter
func NewJSONFormatter(w io.Writer) *JSONFormatter {
	return &JSONFormatter{writer: w}
}

// SetOutput sets the output writer
func (j *JSONFormatter) SetOutput(w io.Writer) {
	j.writer = w
}

// Format writes one JSON object per row. Keys follow the table's column
// order.
func (j *JSONFormatter) Format(t *table.Table) error {
	bw := bufio.NewWriter(j.writer)

	columns := t.Columns()
	keys := make([][]byte, len(columns))
	for i, c := range columns {
		key, err := json.Marshal(c.Name)
		if err != nil {
			return fmt.Errorf("encode column name %q: %w", c.Name, err)
		}
		keys[i] = key
	}

	for r := 0; r < t.NumRows(); r++ {
		line, err := encodeRow(keys, columns, r)
		if err != nil {
			return err
		}
		if _, err := bw.Write(line); err != nil {
			return err
		}
	}

	return bw.Flush()
}

func encodeRow(keys [][]byte, columns []*table.Column, r int) ([]byte, error) {
	line := []byte{'{'}
	for i, c := range columns {
		if i > 0 {
			line = append(line, ',')
		}
		line = append(line, keys[i]...)
		line = append(line, ':')

		value, err := json.Marshal(c.Value(r))
		if err != nil {
			return nil, fmt.Errorf("encode %s at row %d: %w", c.Name, r, err)
		}
		line = append(line, value...)
	}
	return append(line, '}', '\n'), nil
}

// MarshalRecords encodes t as a JSON array of row objects whose keys follow
// the table's column order.
func MarshalRecords(t *table.Table) ([]byte, error) {
	columns := t.Columns()
	keys := make([][]byte, len(columns))
	for i, c := range columns {
		key, err := json.Marshal(c.Name)
		if err != nil {
			return nil, fmt.Errorf("encode column name %q: %w", c.Name, err)
		}
		keys[i] = key
	}

	buf := []byte{'['}
	for r := 0; r < t.NumRows(); r++ {
		if r > 0 {
			buf = append(buf, ',')
		}
		line, err := encodeRow(keys, columns, r)
		if err != nil {
			return nil, err
		}
		buf = append(buf, line[:len(line)-1]...)
	}
	return append(buf, ']'), nil
}
