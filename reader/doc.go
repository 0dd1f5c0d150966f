// Package reader provides functionality for reading Apache Parquet files.
//
// This package reads parquet files from disk, from any io.ReaderAt, or over
// HTTP range requests, and decodes them into a columnar table.Table whose
// column types drive distribution summaries.
//
// # Basic Usage
//
// Reading a single parquet file:
//
//	r, err := reader.NewReader("data.parquet")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer r.Close()
//
//	t, err := r.ReadTable(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(t.NumRows(), t.ColumnNames())
//
// # Remote Files
//
// Files behind a URL that supports range requests (for example a presigned
// object store URL) are read without downloading them first:
//
//	r, err := reader.NewHTTPReader(url)
//
// # Type Mapping
//
// Leaves annotated as STRING or ENUM become String columns, BOOLEAN becomes
// Boolean, INT32 and INT64 become Integer, FLOAT and DOUBLE become Float.
// DECIMAL values are rendered exactly as strings; dates and timestamps are
// rendered as ISO 8601 strings. Those and every other type are Unknown and
// are not summarised.
//
// # Schema Introspection
//
//	infos, err := reader.ExtractSchemaInfo("data.parquet")
//	for _, info := range infos {
//	    fmt.Printf("%s: %s\n", info.Name, info.Type)
//	}
//
// # Resource Management
//
// Always call Close() when done reading to release file handles.
package reader
