// Package output renders tables and distribution summaries for the command
// line.
//
// # Supported Formats
//
//   - table: aligned text table (tablewriter), NULLs shown as NULL
//   - jsonl: one JSON object per row, keys in column order
//   - csv: header row plus one record per row, with formula injection
//     protection for string cells
//
// # Basic Usage
//
//	f, err := output.New("csv", os.Stdout)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := f.Format(tbl); err != nil {
//	    log.Fatal(err)
//	}
//
// Distribution summaries are written with FormatDistributions, either as
// per-column tables with bars or as a single JSON document.
package output
