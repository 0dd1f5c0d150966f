package output

import (
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"

	"github.com/vegasq/dataview/table"
)

// nullText is printed for NULL cells.
const nullText = "NULL"

// TableFormatter renders rows as an aligned text table.
type TableFormatter struct {
	writer io.Writer
}

// NewTableFormatter creates a new text table formatter
func NewTableFormatter(w io.Writer) *TableFormatter {
	return &TableFormatter{writer: w}
}

// SetOutput sets the output writer
func (f *TableFormatter) SetOutput(w io.Writer) {
	f.writer = w
}

// Format writes the table followed by a row count line.
func (f *TableFormatter) Format(t *table.Table) error {
	if t.NumColumns() == 0 {
		return nil
	}

	tw := newTableWriter(f.writer)
	tw.SetHeader(t.ColumnNames())

	alignments := make([]int, t.NumColumns())
	for i, c := range t.Columns() {
		alignments[i] = tablewriter.ALIGN_LEFT
		if c.Type == table.Integer || c.Type == table.Float {
			alignments[i] = tablewriter.ALIGN_RIGHT
		}
	}
	tw.SetColumnAlignment(alignments)

	columns := t.Columns()
	for r := 0; r < t.NumRows(); r++ {
		record := make([]string, len(columns))
		for i, c := range columns {
			record[i] = cellText(c.Value(r))
		}
		tw.Append(record)
	}
	tw.Render()

	_, err := fmt.Fprintf(f.writer, "(%d rows)\n", t.NumRows())
	return err
}

func newTableWriter(w io.Writer) *tablewriter.Table {
	tw := tablewriter.NewWriter(w)
	tw.SetAutoFormatHeaders(false)
	tw.SetAutoWrapText(false)
	return tw
}

func cellText(v interface{}) string {
	if v == nil {
		return nullText
	}
	if s, ok := v.(string); ok {
		return s
	}
	return plainValue(v)
}
