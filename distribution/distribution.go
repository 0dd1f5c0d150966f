package distribution

import (
	"bytes"
	"fmt"

	"github.com/segmentio/encoding/json"
	"go.uber.org/zap"

	"github.com/vegasq/dataview/table"
)

// Distribution is the chart-ready summary of one column.
//
// Labels holds the category values for categorical columns and the
// integer-rounded bin labels for numeric columns; Counts is parallel to it.
type Distribution struct {
	Type   Kind          `json:"type"`
	Labels []interface{} `json:"labels"`
	Counts []int         `json:"counts"`

	// Edges are the numeric bin boundaries (len(Counts)+1). Not serialised.
	Edges []float64 `json:"-"`
}

// Total returns the number of values counted.
func (d *Distribution) Total() int {
	total := 0
	for _, c := range d.Counts {
		total += c
	}
	return total
}

// SkipReason explains why a column has no distribution.
type SkipReason int

const (
	NotSkipped SkipReason = iota
	SkipUnclassified
	SkipEmpty
	SkipFailed
)

func (r SkipReason) String() string {
	switch r {
	case NotSkipped:
		return "not skipped"
	case SkipUnclassified:
		return "unclassified type"
	case SkipEmpty:
		return "no non-null values"
	case SkipFailed:
		return "computation failed"
	default:
		return fmt.Sprintf("SkipReason(%d)", int(r))
	}
}

// Result is the outcome for a single column. Exactly one of Distribution
// and Skip is meaningful; Err is set when Skip is SkipFailed.
type Result struct {
	Column       string
	Distribution *Distribution
	Skip         SkipReason
	Err          error
}

// Summary maps column names to distributions, in table column order.
type Summary struct {
	names []string
	dists map[string]*Distribution
}

// Len returns the number of summarised columns.
func (s Summary) Len() int {
	return len(s.names)
}

// Columns returns the summarised column names in order.
func (s Summary) Columns() []string {
	return s.names
}

// Get returns the distribution of a column.
func (s Summary) Get(column string) (*Distribution, bool) {
	d, ok := s.dists[column]
	return d, ok
}

func (s *Summary) add(column string, d *Distribution) {
	if s.dists == nil {
		s.dists = make(map[string]*Distribution)
	}
	s.names = append(s.names, column)
	s.dists[column] = d
}

// MarshalJSON encodes the summary as an object whose keys keep table
// column order.
func (s Summary) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range s.names {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(s.dists[name])
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", name, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Engine computes distribution summaries.
type Engine struct {
	logger *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used to report failed columns.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// New creates an Engine.
func New(opts ...Option) *Engine {
	e := &Engine{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Compute summarises every classifiable, non-empty column of t.
func Compute(t *table.Table) Summary {
	return New().Compute(t)
}

// Compute summarises every classifiable, non-empty column of t. Columns
// that fail are logged and omitted.
func (e *Engine) Compute(t *table.Table) Summary {
	var summary Summary
	for _, res := range e.Results(t) {
		switch res.Skip {
		case NotSkipped:
			summary.add(res.Column, res.Distribution)
		case SkipFailed:
			e.logger.Warn("distribution skipped",
				zap.String("column", res.Column),
				zap.Error(res.Err))
		default:
			e.logger.Debug("distribution skipped",
				zap.String("column", res.Column),
				zap.Stringer("reason", res.Skip))
		}
	}
	if summary.dists == nil {
		summary.dists = map[string]*Distribution{}
	}
	return summary
}

// Results returns the outcome for every column of t, in table order.
func (e *Engine) Results(t *table.Table) []Result {
	results := make([]Result, 0, t.NumColumns())
	for _, c := range t.Columns() {
		results = append(results, summarizeColumn(c))
	}
	return results
}

// summarizeColumn never panics; a panic while summarising becomes a
// SkipFailed result.
func summarizeColumn(c *table.Column) (res Result) {
	res.Column = c.Name

	defer func() {
		if r := recover(); r != nil {
			res.Distribution = nil
			res.Skip = SkipFailed
			res.Err = fmt.Errorf("panic: %v", r)
		}
	}()

	kind, ok := Classify(c.Type)
	if !ok {
		res.Skip = SkipUnclassified
		return res
	}

	values := c.NonNull()
	if len(values) == 0 {
		res.Skip = SkipEmpty
		return res
	}

	var (
		dist *Distribution
		err  error
	)
	switch kind {
	case Categorical:
		dist, err = summarizeCategorical(values)
	case Numeric:
		var floats []float64
		floats, err = toFloats(values)
		if err == nil {
			dist, err = binNumeric(floats)
		}
	}

	switch {
	case err != nil:
		res.Skip = SkipFailed
		res.Err = err
	case dist == nil:
		res.Skip = SkipEmpty
	default:
		res.Distribution = dist
	}
	return res
}
