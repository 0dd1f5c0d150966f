package reader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"

	"github.com/parquet-go/parquet-go"
	"github.com/segmentio/encoding/json"
	"howett.net/ranger"

	"github.com/vegasq/dataview/table"
)

// ColumnOrderKey is the key/value metadata entry holding the JSON encoded
// list of column names in their original order.
const ColumnOrderKey = "dataview.columns"

// rowBatch is the number of rows decoded per ReadRows call.
const rowBatch = 512

// Reader reads parquet files into tables.
//
// It keeps the underlying source so that it can be released on Close.
type Reader struct {
	source io.Closer
	pqFile *parquet.File
}

// NewReader creates a new parquet reader for the specified file path.
//
// The file is opened and validated as a parquet file. Returns an error if
// the file doesn't exist or is not a valid parquet file.
//
// Example:
//
//	r, err := NewReader("data.parquet")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer r.Close()
func NewReader(path string) (*Reader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	stat, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	r, err := NewReaderAt(file, stat.Size())
	if err != nil {
		_ = file.Close()
		return nil, err
	}
	r.source = file
	return r, nil
}

// NewReaderAt opens parquet data of the given size from r. If r is also an
// io.Closer it is closed by Close.
func NewReaderAt(r io.ReaderAt, size int64) (*Reader, error) {
	pqFile, err := parquet.OpenFile(r, size)
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet file: %w", err)
	}

	closer, _ := r.(io.Closer)
	return &Reader{
		source: closer,
		pqFile: pqFile,
	}, nil
}

// NewHTTPReader opens a remote parquet file, fetching only the byte ranges
// the decoder asks for. The server must support HTTP range requests.
func NewHTTPReader(rawURL string) (*Reader, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}

	remote, err := ranger.NewReader(&ranger.HTTPRanger{URL: parsed})
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP reader: %w", err)
	}

	length, err := remote.Length()
	if err != nil {
		return nil, fmt.Errorf("failed to get HTTP content length: %w", err)
	}

	return NewReaderAt(remote, length)
}

// NumRows returns the number of rows recorded in the file footer.
func (r *Reader) NumRows() int64 {
	return r.pqFile.NumRows()
}

// Schema returns the parquet file schema.
func (r *Reader) Schema() *parquet.Schema {
	return r.pqFile.Schema()
}

// ReadTable reads every row of the file into a table. Columns follow the
// order stored under ColumnOrderKey when present, otherwise schema order.
// Nested fields are flattened with dot-separated names.
func (r *Reader) ReadTable(ctx context.Context) (*table.Table, error) {
	leaves := r.leaves()

	values := make([][]interface{}, len(leaves))
	for i := range values {
		values[i] = make([]interface{}, 0, r.pqFile.NumRows())
	}

	reader := parquet.NewReader(r.pqFile)
	defer func() { _ = reader.Close() }()

	buf := make([]parquet.Row, rowBatch)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		n, err := reader.ReadRows(buf)
		for _, row := range buf[:n] {
			appendRow(values, leaves, row)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("failed to read rows: %w", err)
		}
		if n == 0 {
			break
		}
	}

	columns := make([]*table.Column, len(leaves))
	for i, leaf := range leaves {
		columns[i] = table.NewColumn(leaf.name, leaf.typ, values[i])
	}
	ordered, err := orderColumns(columns, r.columnOrder())
	if err != nil {
		return nil, err
	}
	return table.New(ordered...)
}

// ReadAll reads all rows from the parquet file into memory.
//
// Each row is returned as a map where keys are column names and values are
// the column values.
func (r *Reader) ReadAll() ([]map[string]interface{}, error) {
	t, err := r.ReadTable(context.Background())
	if err != nil {
		return nil, err
	}
	return t.Rows(), nil
}

// Close releases the underlying source. It is safe to call Close multiple
// times.
func (r *Reader) Close() error {
	if r.source == nil {
		return nil
	}
	err := r.source.Close()
	r.source = nil
	return err
}

// appendRow distributes the values of one row to their columns. Repeated
// leaves collect all their values into a slice.
func appendRow(values [][]interface{}, leaves []leaf, row parquet.Row) {
	start := make([]int, len(values))
	for i := range values {
		start[i] = len(values[i])
		if leaves[i].repeated {
			values[i] = append(values[i], nil)
		}
	}

	for _, v := range row {
		col := v.Column()
		if col < 0 || col >= len(values) {
			continue
		}
		l := leaves[col]
		if l.repeated {
			if v.IsNull() {
				continue
			}
			list, _ := values[col][start[col]].([]interface{})
			values[col][start[col]] = append(list, l.convert(v))
			continue
		}
		if len(values[col]) > start[col] {
			continue
		}
		if v.IsNull() {
			values[col] = append(values[col], nil)
		} else {
			values[col] = append(values[col], l.convert(v))
		}
	}

	// Leaves absent from the row (nested nulls) still need a slot.
	for i := range values {
		if len(values[i]) == start[i] {
			values[i] = append(values[i], nil)
		}
	}
}

func (r *Reader) columnOrder() []string {
	raw, ok := r.pqFile.Lookup(ColumnOrderKey)
	if !ok {
		return nil
	}
	var names []string
	if err := json.Unmarshal([]byte(raw), &names); err != nil {
		return nil
	}
	return names
}

// orderColumns arranges columns by names. Columns not mentioned keep their
// relative order after the named ones.
func orderColumns(columns []*table.Column, names []string) ([]*table.Column, error) {
	if len(names) == 0 {
		return columns, nil
	}

	byName := make(map[string]*table.Column, len(columns))
	for _, c := range columns {
		byName[c.Name] = c
	}

	ordered := make([]*table.Column, 0, len(columns))
	used := make(map[string]bool, len(columns))
	for _, name := range names {
		c, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("column order metadata names unknown column %q", name)
		}
		if used[name] {
			continue
		}
		used[name] = true
		ordered = append(ordered, c)
	}
	for _, c := range columns {
		if !used[c.Name] {
			ordered = append(ordered, c)
		}
	}
	return ordered, nil
}
