package convert

import (
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/vegasq/dataview/table"
)

// ErrUnsupportedFormat is returned for uploads that are not CSV or Excel.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// Supported reports whether name has an extension ReadFile understands.
func Supported(name string) bool {
	switch Ext(name) {
	case "csv", "xlsx", "xls":
		return true
	default:
		return false
	}
}

// Ext returns the lower-case extension of name without the dot.
func Ext(name string) string {
	return strings.ToLower(strings.TrimPrefix(path.Ext(name), "."))
}

// ReadFile reads r according to the extension of name.
func ReadFile(name string, r io.Reader, opts Options) (*table.Table, error) {
	switch Ext(name) {
	case "csv":
		return ReadCSV(r, opts)
	case "xlsx", "xls":
		return ReadExcel(r, opts)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, Ext(name))
	}
}

// ParquetName replaces the extension of name with .parquet, keeping any
// directory prefix.
func ParquetName(name string) string {
	return strings.TrimSuffix(name, path.Ext(name)) + ".parquet"
}

// TimestampedName returns "<YYYYmmdd_HHMMSS>_<base>.parquet" for name.
func TimestampedName(name string, now time.Time) string {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	base = strings.TrimSuffix(base, path.Ext(base))
	return now.Format("20060102_150405") + "_" + base + ".parquet"
}
