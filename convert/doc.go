// Package convert turns spreadsheet uploads into typed tables and stores
// tables as Parquet.
//
// # Basic Usage
//
//	f, _ := os.Open("sales.csv")
//	defer f.Close()
//
//	t, err := convert.ReadFile("sales.csv", f, convert.Options{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	out, _ := os.Create(convert.ParquetName("sales.csv"))
//	defer out.Close()
//	if err := convert.WriteParquet(out, t); err != nil {
//	    log.Fatal(err)
//	}
//
// # Type Inference
//
// Each column is typed from its first non-empty values (10000 by default):
// all true/false gives Boolean, all integers gives Integer, all finite
// numbers gives Float, anything else String. Empty cells are null, and
// cells later in the file that do not parse as the inferred type become
// null as well.
package convert
