package reader

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/vegasq/dataview/table"
)

// maxFiles bounds how many files a glob pattern may expand to.
const maxFiles = 1000

// FileColumn is the column added by ReadFiles to tag each row with its
// source file.
const FileColumn = "_file"

// ReadFiles reads one file, or every file matching a glob pattern, into a
// single table.
//
// The pattern can include wildcards:
//   - * matches any sequence of non-separator characters
//   - ? matches any single non-separator character
//   - [range] matches any character in range
//
// For glob patterns each row is tagged with a FileColumn column holding the
// source path. All matched files must share the same column names.
func ReadFiles(ctx context.Context, pattern string) (*table.Table, error) {
	if !strings.ContainsAny(pattern, "*?[]") {
		return readFile(ctx, pattern)
	}

	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid glob pattern: %w", err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("no files match pattern: %s", pattern)
	}
	if len(matches) > maxFiles {
		return nil, fmt.Errorf("glob pattern matched too many files (%d), maximum is %d", len(matches), maxFiles)
	}

	tables := make([]*table.Table, 0, len(matches))
	for _, path := range matches {
		t, err := readFile(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}

		source := make([]interface{}, t.NumRows())
		for i := range source {
			source[i] = path
		}
		if err := t.AddColumn(table.NewColumn(FileColumn, table.String, source)); err != nil {
			return nil, fmt.Errorf("failed to tag rows from %s: %w", path, err)
		}
		tables = append(tables, t)
	}

	return table.Concat(tables...)
}

func readFile(ctx context.Context, path string) (*table.Table, error) {
	r, err := NewReader(path)
	if err != nil {
		return nil, err
	}

	t, readErr := r.ReadTable(ctx)
	closeErr := r.Close()
	if readErr != nil {
		return nil, readErr
	}
	if closeErr != nil {
		return nil, fmt.Errorf("failed to close %s: %w", path, closeErr)
	}
	return t, nil
}
