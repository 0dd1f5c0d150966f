package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/vegasq/dataview/convert"
	"github.com/vegasq/dataview/reader"
)

// testRow defines a simple test data structure
type testRow struct {
	ID     int64   `parquet:"id"`
	Name   string  `parquet:"name"`
	City   string  `parquet:"city"`
	Salary float64 `parquet:"salary"`
}

var testRows = []testRow{
	{ID: 1, Name: "Alice", City: "Oslo", Salary: 50000},
	{ID: 2, Name: "Bob", City: "Rome", Salary: 45000},
	{ID: 3, Name: "Charlie", City: "Oslo", Salary: 60000},
}

// createTestParquetFile creates a temporary parquet file with test data
func createTestParquetFile(t *testing.T, dir, filename string, rows []testRow) string {
	t.Helper()
	testFile := filepath.Join(dir, filename)

	f, err := os.Create(testFile)
	if err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	writer := parquet.NewGenericWriter[testRow](f)
	if _, err := writer.Write(rows); err != nil {
		t.Fatalf("failed to write test data: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("failed to close writer: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("failed to close file: %v", err)
	}

	return testFile
}

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestInspect_Query(t *testing.T) {
	file := createTestParquetFile(t, t.TempDir(), "people.parquet", testRows)

	out, _, err := run(t, "inspect", "-q", "SELECT name FROM data WHERE salary > 46000 ORDER BY name", file)
	if err != nil {
		t.Fatalf("inspect error = %v", err)
	}

	want := "{\"name\":\"Alice\"}\n{\"name\":\"Charlie\"}\n"
	if out != want {
		t.Errorf("inspect output = %q, want %q", out, want)
	}
}

func TestInspect_LimitAndCSV(t *testing.T) {
	file := createTestParquetFile(t, t.TempDir(), "people.parquet", testRows)

	out, _, err := run(t, "inspect", "-f", "csv", "--limit", "1", file)
	if err != nil {
		t.Fatalf("inspect error = %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want header and one row: %q", len(lines), out)
	}
	if lines[0] != "id,name,city,salary" {
		t.Errorf("header = %q", lines[0])
	}
}

func TestInspect_Distributions(t *testing.T) {
	file := createTestParquetFile(t, t.TempDir(), "people.parquet", testRows)

	out, _, err := run(t, "inspect", "-f", "table", "--dist", "--limit", "1", file)
	if err != nil {
		t.Fatalf("inspect error = %v", err)
	}

	// distributions cover every row even when the printed rows are limited
	for _, want := range []string{"(1 rows)", "city (categorical, 3 values)", "salary (numeric, 3 values)"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	out, _, err = run(t, "inspect", "-f", "jsonl", "--dist", "-q", "SELECT city FROM data", file)
	if err != nil {
		t.Fatalf("inspect error = %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	last := lines[len(lines)-1]
	if last != `{"city":{"type":"categorical","labels":["Oslo","Rome"],"counts":[2,1]}}` {
		t.Errorf("distribution line = %s", last)
	}
}

func TestInspect_CSVInput(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "sales.csv")
	if err := os.WriteFile(src, []byte("city,units\nOslo,3\nRome,\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	out, _, err := run(t, "inspect", "-q", "SELECT * FROM data WHERE units IS NULL", src)
	if err != nil {
		t.Fatalf("inspect error = %v", err)
	}
	if out != "{\"city\":\"Rome\",\"units\":null}\n" {
		t.Errorf("inspect output = %q", out)
	}
}

func TestInspect_Errors(t *testing.T) {
	file := createTestParquetFile(t, t.TempDir(), "people.parquet", testRows)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing file", []string{"inspect", filepath.Join(t.TempDir(), "nope.parquet")}, "not found"},
		{"negative limit", []string{"inspect", "--limit", "-1", file}, "--limit"},
		{"unknown format", []string{"inspect", "-f", "xml", file}, "unknown output format"},
		{"forbidden query", []string{"inspect", "-q", "DELETE FROM data", file}, "forbidden"},
		{"no args", []string{"inspect"}, "accepts 1 arg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := run(t, tt.args...)
			if err == nil {
				t.Fatalf("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestConvert(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "sales.csv")
	if err := os.WriteFile(src, []byte("city,units\nOslo,3\nRome,5\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	outDir := filepath.Join(dir, "out")

	out, _, err := run(t, "convert", src, "-o", outDir)
	if err != nil {
		t.Fatalf("convert error = %v", err)
	}

	dst := strings.TrimSpace(out)
	if filepath.Dir(dst) != outDir || !strings.HasSuffix(dst, "_sales.parquet") {
		t.Errorf("output path = %q", dst)
	}

	r, err := reader.NewReader(dst)
	if err != nil {
		t.Fatalf("NewReader() error = %v", err)
	}
	defer func() { _ = r.Close() }()
	tbl, err := r.ReadTable(context.Background())
	if err != nil {
		t.Fatalf("ReadTable() error = %v", err)
	}
	if tbl.NumRows() != 2 || strings.Join(tbl.ColumnNames(), ",") != "city,units" {
		t.Errorf("converted table = %v rows, columns %v", tbl.NumRows(), tbl.ColumnNames())
	}
}

func TestConvertFile_Name(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "report.csv")
	if err := os.WriteFile(src, []byte("a\n1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	now := time.Date(2024, 3, 5, 14, 7, 9, 0, time.UTC)
	dst, err := convertFile(src, dir, convert.Options{}, now)
	if err != nil {
		t.Fatalf("convertFile() error = %v", err)
	}
	if filepath.Base(dst) != "20240305_140709_report.parquet" {
		t.Errorf("convertFile() = %s", dst)
	}

	if _, err := convertFile(filepath.Join(dir, "notes.txt"), dir, convert.Options{}, now); err == nil {
		t.Errorf("convertFile(notes.txt) expected error")
	}
}

func TestSchema(t *testing.T) {
	dir := t.TempDir()
	file := createTestParquetFile(t, dir, "a.parquet", testRows)
	createTestParquetFile(t, dir, "b.parquet", testRows)

	out, _, err := run(t, "schema", "-f", "jsonl", file)
	if err != nil {
		t.Fatalf("schema error = %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d schema rows, want 4:\n%s", len(lines), out)
	}
	if !strings.HasPrefix(lines[0], `{"name":"id",`) {
		t.Errorf("first row = %s", lines[0])
	}

	_, stderr, err := run(t, "schema", filepath.Join(dir, "*.parquet"))
	if err != nil {
		t.Fatalf("schema glob error = %v", err)
	}
	if !strings.Contains(stderr, "2 files matched") {
		t.Errorf("stderr = %q, want matched file count", stderr)
	}

	if _, _, err := run(t, "schema", filepath.Join(dir, "*.nothing")); err == nil {
		t.Errorf("schema with no matches expected error")
	}
}

func TestServe_InvalidConfig(t *testing.T) {
	_, _, err := run(t, "serve", "--addr", "")
	if err == nil || !strings.Contains(err.Error(), "listen address") {
		t.Errorf("serve error = %v, want invalid listen address", err)
	}
}
