package query

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/vegasq/dataview/table"
)

// cancelCheckInterval is how many rows are scanned between context checks.
const cancelCheckInterval = 4096

// Result is the outcome of executing a query.
type Result struct {
	// Table holds every row of the result, before any paging.
	Table *table.Table
	// Total is the number of rows in Table.
	Total int
}

// Execute runs q against t. The pipeline is WHERE, then GROUP BY with
// aggregates and HAVING or plain projection, then DISTINCT, ORDER BY and
// finally LIMIT/OFFSET. t is not modified.
func Execute(ctx context.Context, q *Query, t *table.Table) (*Result, error) {
	bound, err := bind(q, t)
	if err != nil {
		return nil, err
	}

	selected, err := filterRows(ctx, bound.Filter, t)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out *table.Table
	if bound.IsAggregate() {
		grouped, visible, err := aggregate(ctx, bound, selected)
		if err != nil {
			return nil, err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		grouped, err = orderBy(grouped, bound.OrderBy)
		if err != nil {
			return nil, err
		}
		if out, err = table.New(grouped.Columns()[:visible]...); err != nil {
			return nil, err
		}
	} else {
		sorted, err := orderBy(selected, bound.OrderBy)
		if err != nil {
			return nil, err
		}
		if out, err = project(bound.SelectList, sorted); err != nil {
			return nil, err
		}
	}

	if bound.Distinct {
		out = distinct(out)
	}
	out = limitOffset(out, bound.Limit, bound.Offset)

	return &Result{Table: out, Total: out.NumRows()}, nil
}

// Run validates, parses and executes a query string.
func Run(ctx context.Context, v *Validator, sql string, t *table.Table) (*Result, error) {
	if err := v.Validate(sql); err != nil {
		return nil, err
	}
	q, err := Parse(sql)
	if err != nil {
		return nil, err
	}
	return Execute(ctx, q, t)
}

// Paginate returns page (1-based) of t with pageSize rows per page. Pages
// past the end are empty.
func Paginate(t *table.Table, page, pageSize int) (*table.Table, error) {
	if page < 1 {
		return nil, fmt.Errorf("%w: page must be >= 1, got %d", ErrInvalidPage, page)
	}
	if pageSize < 1 {
		return nil, fmt.Errorf("%w: page size must be >= 1, got %d", ErrInvalidPage, pageSize)
	}
	if page-1 > (math.MaxInt-pageSize)/pageSize {
		return nil, fmt.Errorf("%w: page %d of size %d is out of range", ErrInvalidPage, page, pageSize)
	}

	start := (page - 1) * pageSize
	return t.Slice(start, start+pageSize), nil
}

// tableRow exposes one row of a table as a Row.
type tableRow struct {
	t     *table.Table
	index int
}

func (r *tableRow) Value(column string) (interface{}, bool) {
	c, ok := r.t.Column(column)
	if !ok {
		return nil, false
	}
	return c.Value(r.index), true
}

// filterRows evaluates the WHERE clause into a selection bitmap and returns
// the selected rows.
func filterRows(ctx context.Context, filter Expression, t *table.Table) (*table.Table, error) {
	if filter == nil {
		return t, nil
	}

	selection := roaring.New()
	row := &tableRow{t: t}
	for i := 0; i < t.NumRows(); i++ {
		if i%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		row.index = i
		match, err := filter.Evaluate(row)
		if err != nil {
			return nil, err
		}
		if match {
			selection.Add(uint32(i))
		}
	}

	return t.Select(selection), nil
}

// outputItems assigns every non-star select item a unique output name.
func outputItems(selectList []SelectItem) []SelectItem {
	used := make(map[string]bool, len(selectList))
	items := make([]SelectItem, 0, len(selectList))
	for _, item := range selectList {
		if ref, ok := item.Expr.(*ColumnRef); ok && ref.Column == "*" {
			items = append(items, item)
			continue
		}
		item.Alias = uniqueName(item.Name(), used)
		items = append(items, item)
	}
	return items
}

func uniqueName(name string, used map[string]bool) string {
	candidate := name
	for i := 1; used[candidate]; i++ {
		candidate = name + "_" + strconv.Itoa(i)
	}
	used[candidate] = true
	return candidate
}

// project builds the result columns of a non-aggregate query.
func project(selectList []SelectItem, t *table.Table) (*table.Table, error) {
	var columns []*table.Column
	used := make(map[string]bool)

	for _, item := range selectList {
		ref, ok := item.Expr.(*ColumnRef)
		if !ok {
			return nil, fmt.Errorf("%w: select expression %T", ErrUnsupported, item.Expr)
		}

		if ref.Column == "*" {
			for _, c := range t.Columns() {
				columns = append(columns, c.Rename(uniqueName(c.Name, used)))
			}
			continue
		}

		c, ok := t.Column(ref.Column)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownColumn, ref.Column)
		}
		columns = append(columns, c.Rename(uniqueName(item.Name(), used)))
	}

	return table.New(columns...)
}

// orderBy stably sorts t by the given keys. NULLs sort first ascending and
// last descending.
func orderBy(t *table.Table, items []OrderByItem) (*table.Table, error) {
	if len(items) == 0 || t.NumRows() < 2 {
		return t, nil
	}

	keys := make([]*table.Column, len(items))
	for i, item := range items {
		c, ok := t.Column(item.Column)
		if !ok {
			return nil, fmt.Errorf("%w: ORDER BY %s", ErrUnknownColumn, item.Column)
		}
		keys[i] = c
	}

	indices := make([]int, t.NumRows())
	for i := range indices {
		indices[i] = i
	}
	sort.SliceStable(indices, func(a, b int) bool {
		for k, item := range items {
			cmp := compareValues(keys[k].Value(indices[a]), keys[k].Value(indices[b]))
			if cmp != 0 {
				if item.Desc {
					return cmp > 0
				}
				return cmp < 0
			}
		}
		return false
	})

	return t.Take(indices), nil
}

// distinct drops repeated rows, keeping the first occurrence.
func distinct(t *table.Table) *table.Table {
	seen := make(map[string]bool, t.NumRows())
	keep := make([]int, 0, t.NumRows())
	columns := t.Columns()

	var key strings.Builder
	for r := 0; r < t.NumRows(); r++ {
		key.Reset()
		for i, c := range columns {
			if i > 0 {
				key.WriteString("\x00||\x00")
			}
			key.WriteString(valueKey(c.Value(r)))
		}
		if k := key.String(); !seen[k] {
			seen[k] = true
			keep = append(keep, r)
		}
	}

	if len(keep) == t.NumRows() {
		return t
	}
	return t.Take(keep)
}

// limitOffset applies LIMIT and OFFSET
func limitOffset(t *table.Table, limit, offset *int64) *table.Table {
	if limit == nil && offset == nil {
		return t
	}

	start := int64(0)
	if offset != nil && *offset > 0 {
		start = *offset
	}
	if start > int64(t.NumRows()) {
		start = int64(t.NumRows())
	}

	end := int64(t.NumRows())
	if limit != nil && start+*limit < end {
		end = start + *limit
	}

	return t.Slice(int(start), int(end))
}
