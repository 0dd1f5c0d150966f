package convert

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/vegasq/dataview/table"
)

// ReadExcel reads the first sheet of an Excel workbook. The first row is
// the header.
func ReadExcel(r io.Reader, opts Options) (*table.Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return table.New()
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return table.New()
	}

	return fromRecords(rows[0], rows[1:], opts)
}
