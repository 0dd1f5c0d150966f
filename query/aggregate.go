package query

import (
	"context"
	"fmt"
	"strings"

	"github.com/vegasq/dataview/table"
)

// Group represents a group of rows for aggregation
type Group struct {
	Key    string        // Hash key for the group
	Values []interface{} // Values of the GROUP BY columns
	Rows   []int         // Positions of the rows in the group
}

// groupRows partitions the rows of t by the given columns. Groups are
// returned in order of first appearance. Without columns every row,
// possibly none, falls into a single group.
func groupRows(ctx context.Context, t *table.Table, columns []string) ([]*Group, error) {
	if len(columns) == 0 {
		all := make([]int, t.NumRows())
		for i := range all {
			all[i] = i
		}
		return []*Group{{Rows: all}}, nil
	}

	cols := make([]*table.Column, len(columns))
	for i, name := range columns {
		c, ok := t.Column(name)
		if !ok {
			return nil, fmt.Errorf("%w: GROUP BY %s", ErrUnknownColumn, name)
		}
		cols[i] = c
	}

	index := make(map[string]*Group)
	var groups []*Group
	for r := 0; r < t.NumRows(); r++ {
		if r%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		key, values := computeGroupKey(cols, r)
		g, exists := index[key]
		if !exists {
			g = &Group{Key: key, Values: values}
			index[key] = g
			groups = append(groups, g)
		}
		g.Rows = append(g.Rows, r)
	}

	return groups, nil
}

// computeGroupKey computes a hash key for row r over the GROUP BY columns
func computeGroupKey(cols []*table.Column, r int) (string, []interface{}) {
	var keyBuilder strings.Builder
	values := make([]interface{}, len(cols))

	for i, c := range cols {
		if i > 0 {
			keyBuilder.WriteString("\x00||\x00") // Use unlikely separator to avoid collisions
		}
		v := c.Value(r)
		keyBuilder.WriteString(valueKey(v))
		values[i] = v
	}

	return keyBuilder.String(), values
}

// aggregate groups t and computes the select list, hidden aggregates and
// any GROUP BY column not otherwise selected. HAVING is applied to the
// groups. The first `visible` columns of the returned table form the
// result; the rest are only available to ORDER BY.
func aggregate(ctx context.Context, q *Query, t *table.Table) (out *table.Table, visible int, err error) {
	groups, err := groupRows(ctx, t, q.GroupBy)
	if err != nil {
		return nil, 0, err
	}

	// A GROUP BY over no rows yields no groups.
	if len(q.GroupBy) > 0 && t.NumRows() == 0 {
		groups = nil
	}

	items := outputItems(q.SelectList)
	visible = len(items)
	taken := make(map[string]bool, len(items))
	for _, item := range items {
		taken[item.Alias] = true
	}
	for _, h := range q.Hidden {
		if !taken[h.Alias] {
			items = append(items, h)
			taken[h.Alias] = true
		}
	}
	for _, g := range q.GroupBy {
		if !taken[g] {
			items = append(items, SelectItem{Expr: &ColumnRef{Column: g}, Alias: g})
			taken[g] = true
		}
	}

	groupPos := make(map[string]int, len(q.GroupBy))
	for i, g := range q.GroupBy {
		groupPos[g] = i
	}

	values := make([][]interface{}, len(items))
	types := make([]table.ColumnType, len(items))
	for i, item := range items {
		types[i], err = aggregateType(item.Expr, t)
		if err != nil {
			return nil, 0, err
		}
	}

	for _, g := range groups {
		row := make(MapRow, len(items)+len(q.GroupBy))
		for i, name := range q.GroupBy {
			row[name] = g.Values[i]
		}

		computed := make([]interface{}, len(items))
		for i, item := range items {
			v, err := evaluateItem(item, g, groupPos, t)
			if err != nil {
				return nil, 0, err
			}
			computed[i] = v
			row[item.Alias] = v
		}

		if q.Having != nil {
			match, err := q.Having.Evaluate(row)
			if err != nil {
				return nil, 0, fmt.Errorf("HAVING: %w", err)
			}
			if !match {
				continue
			}
		}

		for i, v := range computed {
			values[i] = append(values[i], v)
		}
	}

	columns := make([]*table.Column, len(items))
	for i, item := range items {
		columns[i] = table.NewColumn(item.Alias, types[i], values[i])
	}
	out, err = table.New(columns...)
	if err != nil {
		return nil, 0, err
	}
	return out, visible, nil
}

func evaluateItem(item SelectItem, g *Group, groupPos map[string]int, t *table.Table) (interface{}, error) {
	switch e := item.Expr.(type) {
	case *AggregateExpr:
		return evaluateAggregate(e, g.Rows, t)
	case *ColumnRef:
		pos, ok := groupPos[e.Column]
		if !ok {
			return nil, fmt.Errorf("column %q must appear in GROUP BY clause or be used in an aggregate function", e.Column)
		}
		return g.Values[pos], nil
	default:
		return nil, fmt.Errorf("%w: select expression %T", ErrUnsupported, item.Expr)
	}
}

// aggregateType is the output type of a grouped select item.
func aggregateType(expr SelectExpression, t *table.Table) (table.ColumnType, error) {
	column := func(name string) (table.ColumnType, error) {
		c, ok := t.Column(name)
		if !ok {
			return table.Unknown, fmt.Errorf("%w: %s", ErrUnknownColumn, name)
		}
		return c.Type, nil
	}

	switch e := expr.(type) {
	case *ColumnRef:
		return column(e.Column)
	case *AggregateExpr:
		switch e.Function {
		case "COUNT":
			return table.Integer, nil
		case "SUM", "AVG":
			return table.Float, nil
		default:
			return column(e.Column)
		}
	default:
		return table.Unknown, fmt.Errorf("%w: select expression %T", ErrUnsupported, expr)
	}
}

// aggregateValues returns the non-null values of the aggregate's column
// over rows, deduplicated for DISTINCT aggregates.
func aggregateValues(agg *AggregateExpr, rows []int, t *table.Table) ([]interface{}, error) {
	c, ok := t.Column(agg.Column)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownColumn, agg.Column)
	}

	var seen map[string]bool
	if agg.Distinct {
		seen = make(map[string]bool)
	}

	values := make([]interface{}, 0, len(rows))
	for _, r := range rows {
		v := c.Value(r)
		if v == nil {
			continue
		}
		if seen != nil {
			key := valueKey(v)
			if seen[key] {
				continue
			}
			seen[key] = true
		}
		values = append(values, v)
	}
	return values, nil
}

// evaluateAggregate evaluates an aggregate function over a set of rows
func evaluateAggregate(agg *AggregateExpr, rows []int, t *table.Table) (interface{}, error) {
	// COUNT(*) counts all rows
	if agg.Column == "" {
		return int64(len(rows)), nil
	}

	values, err := aggregateValues(agg, rows, t)
	if err != nil {
		return nil, err
	}

	switch agg.Function {
	case "COUNT":
		return int64(len(values)), nil
	case "SUM", "AVG":
		if len(values) == 0 {
			return nil, nil // Return NULL if no values
		}
		sum := 0.0
		for _, v := range values {
			num, ok := toFloat64(v)
			if !ok {
				return nil, fmt.Errorf("%s: cannot convert %T to number", agg.Function, v)
			}
			sum += num
		}
		if agg.Function == "AVG" {
			return sum / float64(len(values)), nil
		}
		return sum, nil
	case "MIN", "MAX":
		var best interface{}
		for _, v := range values {
			if best == nil {
				best = v
				continue
			}
			cmp := compareValues(v, best)
			if (agg.Function == "MIN" && cmp < 0) || (agg.Function == "MAX" && cmp > 0) {
				best = v
			}
		}
		return best, nil
	default:
		return nil, fmt.Errorf("unknown aggregate function: %s", agg.Function)
	}
}

// HasAggregateFunction checks if the SELECT list contains any aggregate functions
func HasAggregateFunction(selectList []SelectItem) bool {
	for _, item := range selectList {
		if _, ok := item.Expr.(*AggregateExpr); ok {
			return true
		}
	}
	return false
}

// validateSelectListWithGroupBy validates that non-aggregate columns in SELECT are in GROUP BY
func validateSelectListWithGroupBy(selectList []SelectItem, groupByColumns []string) error {
	groupByMap := make(map[string]bool)
	for _, col := range groupByColumns {
		groupByMap[col] = true
	}

	for _, item := range selectList {
		colRef, ok := item.Expr.(*ColumnRef)
		if !ok {
			continue
		}
		if colRef.Column == "*" {
			return fmt.Errorf("%w: SELECT * cannot be combined with aggregation", ErrSyntax)
		}
		if !groupByMap[colRef.Column] {
			return fmt.Errorf("%w: column %q must appear in GROUP BY clause or be used in an aggregate function", ErrSyntax, colRef.Column)
		}
	}

	return nil
}
