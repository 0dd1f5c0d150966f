package query

import (
	"fmt"
	"strconv"
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"
)

var aggregateFunctions = map[string]bool{
	"COUNT": true,
	"SUM":   true,
	"AVG":   true,
	"MIN":   true,
	"MAX":   true,
}

// Parse parses a single SELECT statement over the table "data".
func Parse(sql string) (*Query, error) {
	result, err := pg_query.Parse(sql)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSyntax, err)
	}
	if len(result.Stmts) != 1 {
		return nil, fmt.Errorf("%w: expected exactly one statement, got %d", ErrUnsupported, len(result.Stmts))
	}

	stmt := result.Stmts[0].Stmt.GetSelectStmt()
	if stmt == nil {
		return nil, fmt.Errorf("%w: only SELECT statements are allowed", ErrUnsupported)
	}

	p := &parser{depth: NewExpressionDepthCounter(), q: &Query{}}
	if err := p.parseSelect(stmt); err != nil {
		return nil, err
	}
	return p.q, nil
}

type parser struct {
	depth *ExpressionDepthCounter
	q     *Query
}

func unsupported(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrUnsupported, fmt.Sprintf(format, args...))
}

func nodeName(n *pg_query.Node) string {
	if n == nil || n.Node == nil {
		return "empty expression"
	}
	return strings.TrimPrefix(fmt.Sprintf("%T", n.Node), "*pg_query.Node_")
}

func (p *parser) parseSelect(stmt *pg_query.SelectStmt) error {
	switch {
	case stmt.Op != pg_query.SetOperation_SETOP_NONE:
		return unsupported("set operations")
	case stmt.WithClause != nil:
		return unsupported("WITH clauses")
	case len(stmt.ValuesLists) > 0:
		return unsupported("VALUES lists")
	case stmt.IntoClause != nil:
		return unsupported("SELECT INTO")
	case len(stmt.LockingClause) > 0:
		return unsupported("locking clauses")
	case len(stmt.WindowClause) > 0:
		return unsupported("window clauses")
	case stmt.LimitOption == pg_query.LimitOption_LIMIT_OPTION_WITH_TIES:
		return unsupported("FETCH ... WITH TIES")
	}

	if err := p.parseFrom(stmt.FromClause); err != nil {
		return err
	}

	for _, d := range stmt.DistinctClause {
		if d != nil && d.Node != nil {
			return unsupported("DISTINCT ON")
		}
	}
	p.q.Distinct = len(stmt.DistinctClause) > 0

	if err := p.parseTargetList(stmt.TargetList); err != nil {
		return err
	}

	if stmt.WhereClause != nil {
		filter, err := p.parseCondition(stmt.WhereClause, false)
		if err != nil {
			return err
		}
		p.q.Filter = filter
	}

	for _, g := range stmt.GroupClause {
		ref := g.GetColumnRef()
		if ref == nil {
			return unsupported("GROUP BY %s", nodeName(g))
		}
		name, err := columnName(ref)
		if err != nil {
			return err
		}
		p.q.GroupBy = append(p.q.GroupBy, name)
	}

	if stmt.HavingClause != nil {
		having, err := p.parseCondition(stmt.HavingClause, true)
		if err != nil {
			return err
		}
		p.q.Having = having
	}

	if err := p.parseOrderBy(stmt.SortClause); err != nil {
		return err
	}

	var err error
	if p.q.Limit, err = parseCount("LIMIT", stmt.LimitCount); err != nil {
		return err
	}
	if p.q.Offset, err = parseCount("OFFSET", stmt.LimitOffset); err != nil {
		return err
	}

	if p.q.IsAggregate() {
		if err := validateSelectListWithGroupBy(p.q.SelectList, p.q.GroupBy); err != nil {
			return err
		}
	}
	return nil
}

func (p *parser) parseFrom(from []*pg_query.Node) error {
	if len(from) != 1 {
		return unsupported("queries must select FROM %s", TableName)
	}

	rv := from[0].GetRangeVar()
	if rv == nil {
		return unsupported("%s in FROM, joins and subqueries are not allowed", nodeName(from[0]))
	}
	if rv.Schemaname != "" || rv.Catalogname != "" || !strings.EqualFold(rv.Relname, TableName) {
		return unsupported("unknown table %q, queries must select FROM %s", rv.Relname, TableName)
	}
	if rv.Alias != nil {
		return unsupported("table aliases")
	}
	return nil
}

func (p *parser) parseTargetList(targets []*pg_query.Node) error {
	for _, t := range targets {
		rt := t.GetResTarget()
		if rt == nil || rt.Val == nil {
			return unsupported("select item %s", nodeName(t))
		}

		item := SelectItem{Alias: rt.Name}
		switch {
		case rt.Val.GetColumnRef() != nil:
			ref := rt.Val.GetColumnRef()
			if isStar(ref) {
				if rt.Name != "" {
					return fmt.Errorf("%w: cannot alias *", ErrSyntax)
				}
				item.Expr = &ColumnRef{Column: "*"}
				break
			}
			name, err := columnName(ref)
			if err != nil {
				return err
			}
			item.Expr = &ColumnRef{Column: name}
		case rt.Val.GetFuncCall() != nil:
			agg, err := parseAggregate(rt.Val.GetFuncCall())
			if err != nil {
				return err
			}
			item.Expr = agg
		default:
			return unsupported("select expression %s", nodeName(rt.Val))
		}

		p.q.SelectList = append(p.q.SelectList, item)
	}

	if len(p.q.SelectList) == 0 {
		return fmt.Errorf("%w: empty select list", ErrSyntax)
	}
	return nil
}

func isStar(ref *pg_query.ColumnRef) bool {
	n := len(ref.Fields)
	return n > 0 && ref.Fields[n-1].GetAStar() != nil
}

// columnName returns the column of a plain or data-qualified reference.
func columnName(ref *pg_query.ColumnRef) (string, error) {
	parts := make([]string, 0, len(ref.Fields))
	for _, f := range ref.Fields {
		s := f.GetString_()
		if s == nil {
			return "", unsupported("column reference %s", nodeName(f))
		}
		parts = append(parts, s.Sval)
	}

	switch {
	case len(parts) == 1:
		return parts[0], nil
	case len(parts) == 2 && strings.EqualFold(parts[0], TableName):
		return parts[1], nil
	default:
		return "", unsupported("qualified column %s", strings.Join(parts, "."))
	}
}

func parseAggregate(fc *pg_query.FuncCall) (*AggregateExpr, error) {
	var name string
	if n := len(fc.Funcname); n > 0 {
		if s := fc.Funcname[n-1].GetString_(); s != nil {
			name = strings.ToUpper(s.Sval)
		}
	}
	if !aggregateFunctions[name] {
		return nil, unsupported("function %s", strings.ToLower(name))
	}

	switch {
	case fc.Over != nil:
		return nil, unsupported("window functions")
	case fc.AggFilter != nil:
		return nil, unsupported("aggregate FILTER")
	case len(fc.AggOrder) > 0 || fc.AggWithinGroup:
		return nil, unsupported("ordered aggregates")
	case fc.FuncVariadic:
		return nil, unsupported("VARIADIC arguments")
	}

	agg := &AggregateExpr{Function: name, Distinct: fc.AggDistinct}
	if fc.AggStar {
		if name != "COUNT" {
			return nil, fmt.Errorf("%w: %s(*) is not allowed", ErrSyntax, name)
		}
		return agg, nil
	}

	if len(fc.Args) != 1 || fc.Args[0].GetColumnRef() == nil || isStar(fc.Args[0].GetColumnRef()) {
		return nil, unsupported("%s takes exactly one column argument", name)
	}
	col, err := columnName(fc.Args[0].GetColumnRef())
	if err != nil {
		return nil, err
	}
	agg.Column = col
	return agg, nil
}

// aggregateRef returns the output column holding agg, registering it as a
// hidden item when the select list does not compute it.
func (p *parser) aggregateRef(agg *AggregateExpr) string {
	for _, item := range p.q.SelectList {
		if other, ok := item.Expr.(*AggregateExpr); ok && *other == *agg {
			return item.Name()
		}
	}
	for _, item := range p.q.Hidden {
		if other, ok := item.Expr.(*AggregateExpr); ok && *other == *agg {
			return item.Alias
		}
	}

	name := agg.String()
	p.q.Hidden = append(p.q.Hidden, SelectItem{Expr: agg, Alias: name})
	return name
}

// operand is one side of a comparison: either a column or a constant.
type operand struct {
	column   string
	isColumn bool
	value    interface{}
}

func (p *parser) parseOperand(n *pg_query.Node, having bool) (operand, error) {
	if n == nil {
		return operand{}, unsupported("unary operators")
	}

	switch {
	case n.GetColumnRef() != nil:
		ref := n.GetColumnRef()
		if isStar(ref) {
			return operand{}, fmt.Errorf("%w: * is not a value", ErrSyntax)
		}
		name, err := columnName(ref)
		if err != nil {
			return operand{}, err
		}
		return operand{column: name, isColumn: true}, nil
	case n.GetFuncCall() != nil:
		if !having {
			return operand{}, fmt.Errorf("%w: aggregate functions are not allowed in WHERE", ErrSyntax)
		}
		agg, err := parseAggregate(n.GetFuncCall())
		if err != nil {
			return operand{}, err
		}
		return operand{column: p.aggregateRef(agg), isColumn: true}, nil
	case n.GetSubLink() != nil:
		return operand{}, unsupported("subqueries")
	}

	v, err := constant(n)
	if err != nil {
		return operand{}, err
	}
	return operand{value: v}, nil
}

// constant extracts a literal, looking through type casts.
func constant(n *pg_query.Node) (interface{}, error) {
	if tc := n.GetTypeCast(); tc != nil && tc.Arg != nil {
		return constant(tc.Arg)
	}

	c := n.GetAConst()
	if c == nil {
		return nil, unsupported("expression %s", nodeName(n))
	}

	switch {
	case c.Isnull:
		return nil, nil
	case c.GetIval() != nil:
		return int64(c.GetIval().Ival), nil
	case c.GetFval() != nil:
		raw := c.GetFval().Fval
		if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return i, nil
		}
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid number %s", ErrSyntax, raw)
		}
		return f, nil
	case c.GetSval() != nil:
		return c.GetSval().Sval, nil
	case c.GetBoolval() != nil:
		return c.GetBoolval().Boolval, nil
	default:
		return nil, unsupported("literal kind")
	}
}

func operatorName(names []*pg_query.Node) string {
	if n := len(names); n > 0 {
		if s := names[n-1].GetString_(); s != nil {
			return s.Sval
		}
	}
	return ""
}

func parseOperator(name string) (Operator, error) {
	switch name {
	case "=":
		return OpEqual, nil
	case "<>", "!=":
		return OpNotEqual, nil
	case "<":
		return OpLess, nil
	case "<=":
		return OpLessEqual, nil
	case ">":
		return OpGreater, nil
	case ">=":
		return OpGreaterEqual, nil
	default:
		return 0, unsupported("operator %s", name)
	}
}

// flip mirrors an operator so that "5 < col" can be evaluated as "col > 5".
func flip(op Operator) Operator {
	switch op {
	case OpLess:
		return OpGreater
	case OpLessEqual:
		return OpGreaterEqual
	case OpGreater:
		return OpLess
	case OpGreaterEqual:
		return OpLessEqual
	default:
		return op
	}
}

func (p *parser) parseCondition(n *pg_query.Node, having bool) (Expression, error) {
	if err := p.depth.Enter(); err != nil {
		return nil, err
	}
	defer p.depth.Exit()

	switch {
	case n.GetBoolExpr() != nil:
		return p.parseBoolExpr(n.GetBoolExpr(), having)
	case n.GetAExpr() != nil:
		return p.parseAExpr(n.GetAExpr(), having)
	case n.GetNullTest() != nil:
		nt := n.GetNullTest()
		col, err := p.columnOperand(nt.Arg, having, "IS NULL")
		if err != nil {
			return nil, err
		}
		return &IsNullExpr{Column: col, Not: nt.Nulltesttype == pg_query.NullTestType_IS_NOT_NULL}, nil
	case n.GetColumnRef() != nil:
		col, err := p.columnOperand(n, having, "condition")
		if err != nil {
			return nil, err
		}
		return &BoolColumnExpr{Column: col}, nil
	case n.GetSubLink() != nil:
		return nil, unsupported("subqueries")
	case n.GetAConst() != nil:
		v, err := constant(n)
		if err != nil {
			return nil, err
		}
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("%w: %v is not a boolean condition", ErrSyntax, v)
		}
		return &ConstExpr{Value: b}, nil
	default:
		return nil, unsupported("condition %s", nodeName(n))
	}
}

func (p *parser) parseBoolExpr(be *pg_query.BoolExpr, having bool) (Expression, error) {
	if len(be.Args) == 0 {
		return nil, fmt.Errorf("%w: empty boolean expression", ErrSyntax)
	}

	if be.Boolop == pg_query.BoolExprType_NOT_EXPR {
		inner, err := p.parseCondition(be.Args[0], having)
		if err != nil {
			return nil, err
		}
		return &NotExpr{Expr: inner}, nil
	}

	or := be.Boolop == pg_query.BoolExprType_OR_EXPR
	expr, err := p.parseCondition(be.Args[0], having)
	if err != nil {
		return nil, err
	}
	for _, arg := range be.Args[1:] {
		right, err := p.parseCondition(arg, having)
		if err != nil {
			return nil, err
		}
		expr = &BinaryExpr{Left: expr, Or: or, Right: right}
	}
	return expr, nil
}

func (p *parser) columnOperand(n *pg_query.Node, having bool, context string) (string, error) {
	op, err := p.parseOperand(n, having)
	if err != nil {
		return "", err
	}
	if !op.isColumn {
		return "", unsupported("%s requires a column on the left", context)
	}
	return op.column, nil
}

func (p *parser) constantList(n *pg_query.Node) ([]interface{}, error) {
	list := n.GetList()
	if list == nil {
		return nil, unsupported("%s as a list", nodeName(n))
	}
	values := make([]interface{}, 0, len(list.Items))
	for _, item := range list.Items {
		v, err := constant(item)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, nil
}

func (p *parser) parseAExpr(e *pg_query.A_Expr, having bool) (Expression, error) {
	name := operatorName(e.Name)

	switch e.Kind {
	case pg_query.A_Expr_Kind_AEXPR_OP:
		return p.parseComparison(e, name, having)

	case pg_query.A_Expr_Kind_AEXPR_IN:
		col, err := p.columnOperand(e.Lexpr, having, "IN")
		if err != nil {
			return nil, err
		}
		values, err := p.constantList(e.Rexpr)
		if err != nil {
			return nil, err
		}
		return &InExpr{Column: col, Values: values, Not: name == "<>"}, nil

	case pg_query.A_Expr_Kind_AEXPR_LIKE, pg_query.A_Expr_Kind_AEXPR_ILIKE:
		col, err := p.columnOperand(e.Lexpr, having, "LIKE")
		if err != nil {
			return nil, err
		}
		v, err := constant(e.Rexpr)
		if err != nil {
			return nil, err
		}
		pattern, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%w: LIKE pattern must be a string", ErrSyntax)
		}
		return &LikeExpr{
			Column:          col,
			Pattern:         pattern,
			Not:             strings.HasPrefix(name, "!"),
			CaseInsensitive: e.Kind == pg_query.A_Expr_Kind_AEXPR_ILIKE,
		}, nil

	case pg_query.A_Expr_Kind_AEXPR_BETWEEN, pg_query.A_Expr_Kind_AEXPR_NOT_BETWEEN:
		col, err := p.columnOperand(e.Lexpr, having, "BETWEEN")
		if err != nil {
			return nil, err
		}
		bounds, err := p.constantList(e.Rexpr)
		if err != nil {
			return nil, err
		}
		if len(bounds) != 2 {
			return nil, fmt.Errorf("%w: BETWEEN needs two bounds", ErrSyntax)
		}
		return &BetweenExpr{
			Column: col,
			Lower:  bounds[0],
			Upper:  bounds[1],
			Not:    e.Kind == pg_query.A_Expr_Kind_AEXPR_NOT_BETWEEN,
		}, nil

	default:
		return nil, unsupported("operator %s", name)
	}
}

func (p *parser) parseComparison(e *pg_query.A_Expr, name string, having bool) (Expression, error) {
	op, err := parseOperator(name)
	if err != nil {
		return nil, err
	}

	left, err := p.parseOperand(e.Lexpr, having)
	if err != nil {
		return nil, err
	}
	right, err := p.parseOperand(e.Rexpr, having)
	if err != nil {
		return nil, err
	}

	switch {
	case left.isColumn && right.isColumn:
		return &ColumnComparisonExpr{Left: left.column, Operator: op, Right: right.column}, nil
	case left.isColumn:
		return &ComparisonExpr{Column: left.column, Operator: op, Value: right.value}, nil
	case right.isColumn:
		return &ComparisonExpr{Column: right.column, Operator: flip(op), Value: left.value}, nil
	default:
		v, err := compare(left.value, op, right.value)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSyntax, err)
		}
		return &ConstExpr{Value: v}, nil
	}
}

func (p *parser) parseOrderBy(sorts []*pg_query.Node) error {
	for _, s := range sorts {
		sb := s.GetSortBy()
		if sb == nil || sb.Node == nil {
			return unsupported("ORDER BY %s", nodeName(s))
		}
		if sb.SortbyNulls != pg_query.SortByNulls_SORTBY_NULLS_DEFAULT {
			return unsupported("NULLS FIRST/LAST")
		}

		item := OrderByItem{Desc: sb.SortbyDir == pg_query.SortByDir_SORTBY_DESC}
		switch {
		case sb.Node.GetColumnRef() != nil:
			name, err := columnName(sb.Node.GetColumnRef())
			if err != nil {
				return err
			}
			item.Column = name
		case sb.Node.GetFuncCall() != nil:
			agg, err := parseAggregate(sb.Node.GetFuncCall())
			if err != nil {
				return err
			}
			item.Column = p.aggregateRef(agg)
		case sb.Node.GetAConst() != nil:
			name, err := p.positional(sb.Node)
			if err != nil {
				return err
			}
			item.Column = name
		default:
			return unsupported("ORDER BY %s", nodeName(sb.Node))
		}

		p.q.OrderBy = append(p.q.OrderBy, item)
	}
	return nil
}

// positional resolves "ORDER BY 2" to the name of the second select item.
func (p *parser) positional(n *pg_query.Node) (string, error) {
	v, err := constant(n)
	if err != nil {
		return "", err
	}
	pos, ok := v.(int64)
	if !ok || pos < 1 || pos > int64(len(p.q.SelectList)) {
		return "", fmt.Errorf("%w: ORDER BY position %v is not in select list", ErrSyntax, v)
	}

	item := p.q.SelectList[pos-1]
	if ref, ok := item.Expr.(*ColumnRef); ok && ref.Column == "*" {
		return "", unsupported("ORDER BY position of *")
	}
	return item.Name(), nil
}

func parseCount(clause string, n *pg_query.Node) (*int64, error) {
	if n == nil {
		return nil, nil
	}

	v, err := constant(n)
	if err != nil {
		return nil, err
	}
	if v == nil {
		// LIMIT ALL
		return nil, nil
	}

	count, ok := v.(int64)
	if !ok || count < 0 {
		return nil, fmt.Errorf("%w: %s must be a non-negative integer", ErrSyntax, clause)
	}
	return &count, nil
}
