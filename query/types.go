package query

import (
	"fmt"
	"strings"
)

// TableName is the only relation a query may select from.
const TableName = "data"

// Query represents a parsed SELECT statement over the virtual table "data".
type Query struct {
	SelectList []SelectItem
	Distinct   bool
	Filter     Expression
	GroupBy    []string
	Having     Expression
	OrderBy    []OrderByItem
	Limit      *int64
	Offset     *int64

	// Hidden holds aggregates referenced by HAVING or ORDER BY that are not
	// part of the select list. They are computed per group and dropped from
	// the result.
	Hidden []SelectItem
}

// IsAggregate reports whether the query groups rows.
func (q *Query) IsAggregate() bool {
	return len(q.GroupBy) > 0 || HasAggregateFunction(q.SelectList) || len(q.Hidden) > 0
}

// Operator is a comparison operator.
type Operator int

const (
	OpEqual Operator = iota
	OpNotEqual
	OpLess
	OpLessEqual
	OpGreater
	OpGreaterEqual
)

func (o Operator) String() string {
	switch o {
	case OpEqual:
		return "="
	case OpNotEqual:
		return "<>"
	case OpLess:
		return "<"
	case OpLessEqual:
		return "<="
	case OpGreater:
		return ">"
	case OpGreaterEqual:
		return ">="
	default:
		return "?"
	}
}

// Row gives expressions access to column values by name.
type Row interface {
	Value(column string) (interface{}, bool)
}

// MapRow adapts a map to Row.
type MapRow map[string]interface{}

// Value implements Row.
func (r MapRow) Value(column string) (interface{}, bool) {
	v, ok := r[column]
	return v, ok
}

// SelectItem is one entry of the SELECT list.
type SelectItem struct {
	Expr  SelectExpression
	Alias string
}

// Name returns the output column name of the item.
func (s SelectItem) Name() string {
	if s.Alias != "" {
		return s.Alias
	}
	switch e := s.Expr.(type) {
	case *ColumnRef:
		return e.Column
	case *AggregateExpr:
		return e.defaultName()
	default:
		return ""
	}
}

// SelectExpression is an expression that can appear in the SELECT list.
type SelectExpression interface {
	isSelectExpression()
}

// ColumnRef references a column by name; "*" selects all columns.
type ColumnRef struct {
	Column string
}

func (*ColumnRef) isSelectExpression() {}

// AggregateExpr is COUNT, SUM, AVG, MIN or MAX over a column. An empty
// Column means COUNT(*).
type AggregateExpr struct {
	Function string
	Column   string
	Distinct bool
}

func (*AggregateExpr) isSelectExpression() {}

func (a *AggregateExpr) defaultName() string {
	fn := strings.ToLower(a.Function)
	switch {
	case a.Column == "":
		return fn
	case a.Distinct:
		return fn + "_distinct_" + a.Column
	default:
		return fn + "_" + a.Column
	}
}

func (a *AggregateExpr) String() string {
	switch {
	case a.Column == "":
		return a.Function + "(*)"
	case a.Distinct:
		return fmt.Sprintf("%s(DISTINCT %s)", a.Function, a.Column)
	default:
		return fmt.Sprintf("%s(%s)", a.Function, a.Column)
	}
}

// Expression represents a boolean condition evaluated against a row.
type Expression interface {
	Evaluate(row Row) (bool, error)
}

// BinaryExpr combines two conditions with AND or OR.
type BinaryExpr struct {
	Left  Expression
	Or    bool
	Right Expression
}

func (e *BinaryExpr) Evaluate(row Row) (bool, error) {
	left, err := e.Left.Evaluate(row)
	if err != nil {
		return false, err
	}

	if e.Or && left {
		return true, nil
	}
	if !e.Or && !left {
		return false, nil
	}

	return e.Right.Evaluate(row)
}

// NotExpr negates a condition.
type NotExpr struct {
	Expr Expression
}

func (e *NotExpr) Evaluate(row Row) (bool, error) {
	v, err := e.Expr.Evaluate(row)
	if err != nil {
		return false, err
	}
	return !v, nil
}

// ComparisonExpr compares a column with a literal.
type ComparisonExpr struct {
	Column   string
	Operator Operator
	Value    interface{}
}

func (e *ComparisonExpr) Evaluate(row Row) (bool, error) {
	v, ok := row.Value(e.Column)
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownColumn, e.Column)
	}
	return compare(v, e.Operator, e.Value)
}

// ColumnComparisonExpr compares two columns of the same row.
type ColumnComparisonExpr struct {
	Left     string
	Operator Operator
	Right    string
}

func (e *ColumnComparisonExpr) Evaluate(row Row) (bool, error) {
	left, ok := row.Value(e.Left)
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownColumn, e.Left)
	}
	right, ok := row.Value(e.Right)
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownColumn, e.Right)
	}
	return compare(left, e.Operator, right)
}

// InExpr tests membership of a column value in a literal list.
type InExpr struct {
	Column string
	Values []interface{}
	Not    bool
}

func (e *InExpr) Evaluate(row Row) (bool, error) {
	v, ok := row.Value(e.Column)
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownColumn, e.Column)
	}
	if v == nil {
		return false, nil
	}

	found := false
	for _, candidate := range e.Values {
		eq, err := compare(v, OpEqual, candidate)
		if err != nil {
			return false, err
		}
		if eq {
			found = true
			break
		}
	}

	return found != e.Not, nil
}

// BetweenExpr tests Lower <= column <= Upper.
type BetweenExpr struct {
	Column string
	Lower  interface{}
	Upper  interface{}
	Not    bool
}

func (e *BetweenExpr) Evaluate(row Row) (bool, error) {
	v, ok := row.Value(e.Column)
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownColumn, e.Column)
	}
	if v == nil {
		return false, nil
	}

	lower, err := compare(v, OpGreaterEqual, e.Lower)
	if err != nil {
		return false, err
	}
	upper, err := compare(v, OpLessEqual, e.Upper)
	if err != nil {
		return false, err
	}

	return (lower && upper) != e.Not, nil
}

// LikeExpr matches a string column against a LIKE pattern.
type LikeExpr struct {
	Column          string
	Pattern         string
	Not             bool
	CaseInsensitive bool
}

func (e *LikeExpr) Evaluate(row Row) (bool, error) {
	v, ok := row.Value(e.Column)
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownColumn, e.Column)
	}
	if v == nil {
		return false, nil
	}

	s, ok := v.(string)
	if !ok {
		return false, fmt.Errorf("LIKE requires a string column, %s is %T", e.Column, v)
	}

	pattern := e.Pattern
	if e.CaseInsensitive {
		s = strings.ToLower(s)
		pattern = strings.ToLower(pattern)
	}

	return matchLikePattern(s, pattern) != e.Not, nil
}

// IsNullExpr tests a column for NULL.
type IsNullExpr struct {
	Column string
	Not    bool
}

func (e *IsNullExpr) Evaluate(row Row) (bool, error) {
	v, ok := row.Value(e.Column)
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownColumn, e.Column)
	}
	return (v == nil) != e.Not, nil
}

// BoolColumnExpr uses a boolean column directly as a condition.
type BoolColumnExpr struct {
	Column string
}

func (e *BoolColumnExpr) Evaluate(row Row) (bool, error) {
	v, ok := row.Value(e.Column)
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownColumn, e.Column)
	}
	if v == nil {
		return false, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("column %s is not boolean", e.Column)
	}
	return b, nil
}

// ConstExpr is a condition folded to a constant, such as WHERE 1 = 1.
type ConstExpr struct {
	Value bool
}

func (e *ConstExpr) Evaluate(Row) (bool, error) {
	return e.Value, nil
}

// OrderByItem is one ORDER BY key.
type OrderByItem struct {
	Column string
	Desc   bool
}
