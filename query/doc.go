// Package query provides SQL query validation, parsing and execution over an
// in-memory table.
//
// Queries are parsed with the PostgreSQL parser from pg_query_go and must be
// a single SELECT over the virtual table "data". The supported subset is:
//   - SELECT *, column references and AS aliases
//   - Aggregate functions COUNT, SUM, AVG, MIN and MAX, including COUNT(*)
//     and COUNT(DISTINCT col)
//   - SELECT DISTINCT
//   - WHERE and HAVING with AND, OR, NOT, comparisons, IN lists,
//     [NOT] BETWEEN, [NOT] LIKE / ILIKE and IS [NOT] NULL
//   - GROUP BY columns
//   - ORDER BY columns, aliases, aggregates or positions, ASC or DESC
//   - LIMIT and OFFSET
//
// Joins, subqueries, set operations, CTEs and scalar functions are rejected
// with ErrUnsupported.
//
// # Basic Usage
//
//	v := query.NewValidator(0)
//	if err := v.Validate(sql); err != nil {
//	    return err
//	}
//
//	q, err := query.Parse(sql)
//	if err != nil {
//	    return err
//	}
//
//	res, err := query.Execute(ctx, q, tbl)
//	if err != nil {
//	    return err
//	}
//
//	page, err := query.Paginate(res.Table, 1, 50)
//
// Run combines the three steps.
//
// # Column Names
//
// The parser folds unquoted identifiers to lower case. Column references
// that do not match a column exactly are resolved case-insensitively when
// the match is unique; use double quotes to pick one of several columns
// differing only in case.
//
// # NULL Handling
//
// Conditions on NULL values evaluate to false, so NOT applied to such a
// condition is true. ORDER BY puts NULLs first when ascending and last when
// descending. Aggregates other than COUNT(*) ignore NULLs and return NULL
// when no value remains.
//
// # Error Handling
//
// Errors caused by the query text wrap one of the sentinel errors
// (ErrEmptyQuery, ErrQueryTooLong, ErrForbiddenKeyword, ErrSyntax,
// ErrUnsupported, ErrUnknownColumn, ErrInvalidPage); IsInvalid reports
// whether an error is one of them.
package query
