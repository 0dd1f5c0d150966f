// Package distribution computes per-column distribution summaries of a table
// for charting.
//
// Every column is classified from its declared type. Categorical columns
// (strings and booleans) get a frequency table sorted by count. Numeric
// columns (integers and floats) get a histogram whose binning strategy
// depends on the number of distinct values:
//
//   - one distinct value: a single bin holding every value
//   - up to 20 distinct values: one bin per value, edges at the midpoints
//   - more than 20 distinct values: equal-width bins over [min, max], with the
//     bin count derived from the interquartile range (Freedman–Diaconis) and
//     clamped to [2, 20]; a zero IQR falls back to 20 bins
//
// Numeric labels are always rendered as rounded integers.
//
// # Basic Usage
//
//	engine := distribution.New(distribution.WithLogger(logger))
//	summary := engine.Compute(tbl)
//
//	out, err := json.Marshal(summary)
//	// {"city":{"type":"categorical","labels":["Seoul","Busan"],"counts":[3,1]}, ...}
//
// # Failure Isolation
//
// Columns that cannot be classified or hold no non-null values are skipped
// silently. A column whose computation fails (non-finite numbers, values of
// an unexpected Go type, or a panic) is logged and left out; the remaining
// columns are still summarised. Results exposes the per-column outcome,
// including the skip reason, for callers that need to audit it.
//
// An Engine holds no mutable state and may be shared between goroutines.
package distribution
