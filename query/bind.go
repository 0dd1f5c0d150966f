package query

import (
	"fmt"
	"strings"

	"github.com/vegasq/dataview/table"
)

// resolver maps column names as written in a query to actual column names.
// Unquoted identifiers arrive lower-cased, so a name that does not match
// exactly falls back to a unique case-insensitive match.
type resolver struct {
	exact  map[string]bool
	folded map[string]string
}

func newResolver(names ...[]string) *resolver {
	r := &resolver{exact: make(map[string]bool), folded: make(map[string]string)}
	for _, list := range names {
		for _, name := range list {
			r.add(name)
		}
	}
	return r
}

func (r *resolver) add(name string) {
	if r.exact[name] {
		return
	}
	r.exact[name] = true

	lower := strings.ToLower(name)
	if existing, ok := r.folded[lower]; ok && existing != name {
		// Ambiguous without exact case.
		r.folded[lower] = ""
		return
	}
	r.folded[lower] = name
}

func (r *resolver) resolve(name string) (string, error) {
	if r.exact[name] {
		return name, nil
	}
	if actual := r.folded[strings.ToLower(name)]; actual != "" {
		return actual, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownColumn, name)
}

// bind returns a copy of q whose column references name actual columns of
// t, or of the aggregate output for HAVING and ORDER BY.
func bind(q *Query, t *table.Table) (*Query, error) {
	source := newResolver(t.ColumnNames())
	bound := &Query{
		Distinct: q.Distinct,
		Limit:    q.Limit,
		Offset:   q.Offset,
	}

	var err error
	if bound.SelectList, err = bindItems(q.SelectList, source); err != nil {
		return nil, err
	}
	if bound.Hidden, err = bindItems(q.Hidden, source); err != nil {
		return nil, err
	}

	for _, g := range q.GroupBy {
		name, err := source.resolve(g)
		if err != nil {
			return nil, fmt.Errorf("GROUP BY: %w", err)
		}
		bound.GroupBy = append(bound.GroupBy, name)
	}

	if bound.Filter, err = rewriteColumns(q.Filter, source.resolve); err != nil {
		return nil, fmt.Errorf("WHERE: %w", err)
	}

	if !bound.IsAggregate() {
		aliases := make(map[string]string)
		for _, item := range bound.SelectList {
			if ref, ok := item.Expr.(*ColumnRef); ok && item.Alias != "" {
				aliases[item.Alias] = ref.Column
			}
		}
		for _, o := range q.OrderBy {
			name, ok := aliases[o.Column]
			if !ok {
				if name, err = source.resolve(o.Column); err != nil {
					return nil, fmt.Errorf("ORDER BY: %w", err)
				}
			}
			bound.OrderBy = append(bound.OrderBy, OrderByItem{Column: name, Desc: o.Desc})
		}
		return bound, nil
	}

	// Aggregate queries see the output names first, then the grouped
	// columns.
	var outputs []string
	for _, item := range outputItems(bound.SelectList) {
		outputs = append(outputs, item.Alias)
	}
	for _, item := range bound.Hidden {
		outputs = append(outputs, item.Alias)
	}
	grouped := newResolver(outputs, bound.GroupBy)

	if bound.Having, err = rewriteColumns(q.Having, grouped.resolve); err != nil {
		return nil, fmt.Errorf("HAVING: %w", err)
	}
	for _, o := range q.OrderBy {
		name, err := grouped.resolve(o.Column)
		if err != nil {
			return nil, fmt.Errorf("ORDER BY: %w", err)
		}
		bound.OrderBy = append(bound.OrderBy, OrderByItem{Column: name, Desc: o.Desc})
	}

	return bound, nil
}

func bindItems(items []SelectItem, source *resolver) ([]SelectItem, error) {
	if items == nil {
		return nil, nil
	}

	out := make([]SelectItem, len(items))
	for i, item := range items {
		out[i] = SelectItem{Alias: item.Alias}
		switch e := item.Expr.(type) {
		case *ColumnRef:
			if e.Column == "*" {
				out[i].Expr = e
				continue
			}
			name, err := source.resolve(e.Column)
			if err != nil {
				return nil, err
			}
			out[i].Expr = &ColumnRef{Column: name}
		case *AggregateExpr:
			agg := *e
			if agg.Column != "" {
				name, err := source.resolve(agg.Column)
				if err != nil {
					return nil, fmt.Errorf("%s: %w", e, err)
				}
				agg.Column = name
			}
			out[i].Expr = &agg
		default:
			return nil, fmt.Errorf("%w: select expression %T", ErrUnsupported, item.Expr)
		}
	}
	return out, nil
}

// rewriteColumns copies expr with every column name passed through resolve.
func rewriteColumns(expr Expression, resolve func(string) (string, error)) (Expression, error) {
	if expr == nil {
		return nil, nil
	}

	var err error
	switch e := expr.(type) {
	case *BinaryExpr:
		left, err := rewriteColumns(e.Left, resolve)
		if err != nil {
			return nil, err
		}
		right, err := rewriteColumns(e.Right, resolve)
		if err != nil {
			return nil, err
		}
		return &BinaryExpr{Left: left, Or: e.Or, Right: right}, nil
	case *NotExpr:
		inner, err := rewriteColumns(e.Expr, resolve)
		if err != nil {
			return nil, err
		}
		return &NotExpr{Expr: inner}, nil
	case *ComparisonExpr:
		c := *e
		c.Column, err = resolve(c.Column)
		return &c, err
	case *ColumnComparisonExpr:
		c := *e
		if c.Left, err = resolve(c.Left); err != nil {
			return nil, err
		}
		c.Right, err = resolve(c.Right)
		return &c, err
	case *InExpr:
		c := *e
		c.Column, err = resolve(c.Column)
		return &c, err
	case *BetweenExpr:
		c := *e
		c.Column, err = resolve(c.Column)
		return &c, err
	case *LikeExpr:
		c := *e
		c.Column, err = resolve(c.Column)
		return &c, err
	case *IsNullExpr:
		c := *e
		c.Column, err = resolve(c.Column)
		return &c, err
	case *BoolColumnExpr:
		c := *e
		c.Column, err = resolve(c.Column)
		return &c, err
	case *ConstExpr:
		return e, nil
	default:
		return nil, fmt.Errorf("%w: condition %T", ErrUnsupported, expr)
	}
}
