package query

import (
	"context"
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/vegasq/dataview/table"
)

// housesTable returns a small table with nulls in every column.
func housesTable(t *testing.T) *table.Table {
	t.Helper()

	tbl, err := table.New(
		table.NewColumn("city", table.String, []interface{}{"Oslo", "Rome", "Oslo", "Paris", nil, "Rome"}),
		table.NewColumn("rooms", table.Integer, []interface{}{int64(3), int64(2), int64(5), nil, int64(1), int64(2)}),
		table.NewColumn("price", table.Float, []interface{}{10.5, 7.0, 20.0, 15.0, 3.0, 9.0}),
		table.NewColumn("active", table.Boolean, []interface{}{true, false, true, true, false, nil}),
	)
	if err != nil {
		t.Fatalf("failed to build table: %v", err)
	}
	return tbl
}

func runQuery(t *testing.T, tbl *table.Table, sql string) *table.Table {
	t.Helper()

	res, err := Run(context.Background(), NewValidator(0), sql, tbl)
	if err != nil {
		t.Fatalf("Run(%q) error = %v", sql, err)
	}
	if res.Total != res.Table.NumRows() {
		t.Errorf("Total = %d, table has %d rows", res.Total, res.Table.NumRows())
	}
	return res.Table
}

func values(t *testing.T, tbl *table.Table, column string) []interface{} {
	t.Helper()

	c, ok := tbl.Column(column)
	if !ok {
		t.Fatalf("column %q missing, have %v", column, tbl.ColumnNames())
	}
	out := make([]interface{}, c.Len())
	for i := range out {
		out[i] = c.Value(i)
	}
	return out
}

func TestExecute_SelectStar(t *testing.T) {
	tbl := housesTable(t)
	got := runQuery(t, tbl, "SELECT * FROM data")

	if !reflect.DeepEqual(got.ColumnNames(), tbl.ColumnNames()) {
		t.Errorf("columns = %v, want %v", got.ColumnNames(), tbl.ColumnNames())
	}
	if got.NumRows() != 6 {
		t.Errorf("rows = %d, want 6", got.NumRows())
	}
}

func TestExecute_Filter(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  []interface{}
	}{
		{"comparison", "SELECT city FROM data WHERE rooms > 2", []interface{}{"Oslo", "Oslo"}},
		{"boolean column", "SELECT city FROM data WHERE active", []interface{}{"Oslo", "Oslo", "Paris"}},
		{"in", "SELECT city FROM data WHERE city IN ('Paris', 'Rome')", []interface{}{"Rome", "Paris", "Rome"}},
		{"is null", "SELECT price FROM data WHERE city IS NULL", []interface{}{3.0}},
		{"between", "SELECT city FROM data WHERE price BETWEEN 9 AND 15", []interface{}{"Oslo", "Paris", "Rome"}},
		{"like", "SELECT city FROM data WHERE city LIKE '%o%'", []interface{}{"Oslo", "Rome", "Oslo", "Rome"}},
		{"or with not", "SELECT city FROM data WHERE NOT active OR rooms = 5", []interface{}{"Rome", "Oslo", nil, "Rome"}},
		{"no match", "SELECT city FROM data WHERE price > 100", []interface{}{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := runQuery(t, housesTable(t), tt.query)
			column := got.ColumnNames()[0]
			if !reflect.DeepEqual(values(t, got, column), tt.want) {
				t.Errorf("%s = %v, want %v", column, values(t, got, column), tt.want)
			}
		})
	}
}

func TestExecute_ProjectionAliasesAndTypes(t *testing.T) {
	got := runQuery(t, housesTable(t), "SELECT city AS town, price FROM data WHERE active")

	if !reflect.DeepEqual(got.ColumnNames(), []string{"town", "price"}) {
		t.Fatalf("columns = %v", got.ColumnNames())
	}
	types := got.ColumnTypes()
	if types["town"] != table.String || types["price"] != table.Float {
		t.Errorf("types = %v", types)
	}
	if !reflect.DeepEqual(values(t, got, "town"), []interface{}{"Oslo", "Oslo", "Paris"}) {
		t.Errorf("town = %v", values(t, got, "town"))
	}
}

func TestExecute_DuplicateOutputNames(t *testing.T) {
	got := runQuery(t, housesTable(t), "SELECT *, city FROM data LIMIT 1")

	want := []string{"city", "rooms", "price", "active", "city_1"}
	if !reflect.DeepEqual(got.ColumnNames(), want) {
		t.Errorf("columns = %v, want %v", got.ColumnNames(), want)
	}
}

func TestExecute_CaseInsensitiveColumns(t *testing.T) {
	tbl, err := table.New(table.NewColumn("Price", table.Float, []interface{}{1.0, 2.0, 3.0}))
	if err != nil {
		t.Fatal(err)
	}

	got := runQuery(t, tbl, "SELECT price FROM data WHERE PRICE > 1 ORDER BY Price DESC")
	if !reflect.DeepEqual(values(t, got, "Price"), []interface{}{3.0, 2.0}) {
		t.Errorf("Price = %v", values(t, got, "Price"))
	}
}

func TestExecute_OrderBy(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  []interface{}
	}{
		{"nulls first ascending, stable ties", "SELECT city FROM data ORDER BY rooms",
			[]interface{}{"Paris", nil, "Rome", "Rome", "Oslo", "Oslo"}},
		{"nulls last descending", "SELECT city FROM data ORDER BY rooms DESC",
			[]interface{}{"Oslo", "Oslo", "Rome", "Rome", nil, "Paris"}},
		{"multiple keys", "SELECT city FROM data ORDER BY city DESC, price",
			[]interface{}{"Rome", "Rome", "Paris", "Oslo", "Oslo", nil}},
		{"alias", "SELECT price AS city FROM data ORDER BY city DESC LIMIT 2",
			[]interface{}{20.0, 15.0}},
		{"column not selected", "SELECT city FROM data ORDER BY price LIMIT 2",
			[]interface{}{nil, "Rome"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := runQuery(t, housesTable(t), tt.query)
			if !reflect.DeepEqual(values(t, got, "city"), tt.want) {
				t.Errorf("city = %v, want %v", values(t, got, "city"), tt.want)
			}
		})
	}
}

func TestExecute_GroupBy(t *testing.T) {
	got := runQuery(t, housesTable(t),
		"SELECT city, COUNT(*) AS n, SUM(price) AS total, MIN(rooms) AS least FROM data GROUP BY city")

	if !reflect.DeepEqual(got.ColumnNames(), []string{"city", "n", "total", "least"}) {
		t.Fatalf("columns = %v", got.ColumnNames())
	}

	// Groups keep the order in which they first appear.
	checks := map[string][]interface{}{
		"city":  {"Oslo", "Rome", "Paris", nil},
		"n":     {int64(2), int64(2), int64(1), int64(1)},
		"total": {30.5, 16.0, 15.0, 3.0},
		"least": {int64(3), int64(2), nil, int64(1)},
	}
	for column, want := range checks {
		if !reflect.DeepEqual(values(t, got, column), want) {
			t.Errorf("%s = %v, want %v", column, values(t, got, column), want)
		}
	}

	types := got.ColumnTypes()
	if types["n"] != table.Integer || types["total"] != table.Float || types["least"] != table.Integer {
		t.Errorf("types = %v", types)
	}
}

func TestExecute_HavingAndHiddenAggregates(t *testing.T) {
	got := runQuery(t, housesTable(t),
		"SELECT city, COUNT(*) AS n FROM data GROUP BY city HAVING COUNT(*) > 1 ORDER BY SUM(price) DESC")

	if !reflect.DeepEqual(got.ColumnNames(), []string{"city", "n"}) {
		t.Fatalf("columns = %v, hidden aggregates must not leak", got.ColumnNames())
	}
	if !reflect.DeepEqual(values(t, got, "city"), []interface{}{"Oslo", "Rome"}) {
		t.Errorf("city = %v", values(t, got, "city"))
	}

	got = runQuery(t, housesTable(t), "SELECT COUNT(*) AS n FROM data GROUP BY city HAVING city = 'Rome'")
	if !reflect.DeepEqual(got.ColumnNames(), []string{"n"}) {
		t.Fatalf("columns = %v", got.ColumnNames())
	}
	if !reflect.DeepEqual(values(t, got, "n"), []interface{}{int64(2)}) {
		t.Errorf("n = %v", values(t, got, "n"))
	}

	got = runQuery(t, housesTable(t), "SELECT COUNT(*) AS n FROM data GROUP BY city ORDER BY city DESC")
	if !reflect.DeepEqual(values(t, got, "n"), []interface{}{int64(2), int64(1), int64(2), int64(1)}) {
		t.Errorf("n = %v", values(t, got, "n"))
	}
}

func TestExecute_AggregateWithoutGroupBy(t *testing.T) {
	got := runQuery(t, housesTable(t), "SELECT COUNT(*), SUM(price), MAX(price) FROM data WHERE rooms > 100")

	if !reflect.DeepEqual(got.ColumnNames(), []string{"count", "sum_price", "max_price"}) {
		t.Fatalf("columns = %v", got.ColumnNames())
	}
	if got.NumRows() != 1 {
		t.Fatalf("rows = %d, want a single row over no input", got.NumRows())
	}
	row := got.Row(0)
	if row["count"] != int64(0) || row["sum_price"] != nil || row["max_price"] != nil {
		t.Errorf("row = %v", row)
	}

	got = runQuery(t, housesTable(t), "SELECT city, COUNT(*) FROM data WHERE rooms > 100 GROUP BY city")
	if got.NumRows() != 0 {
		t.Errorf("GROUP BY over no rows returned %d rows", got.NumRows())
	}
}

func TestExecute_CountVariants(t *testing.T) {
	got := runQuery(t, housesTable(t),
		"SELECT COUNT(*) AS all_rows, COUNT(city) AS cities, COUNT(DISTINCT city) AS unique_cities, AVG(rooms) AS avg_rooms FROM data")

	row := got.Row(0)
	if row["all_rows"] != int64(6) || row["cities"] != int64(5) || row["unique_cities"] != int64(3) {
		t.Errorf("row = %v", row)
	}
	if row["avg_rooms"] != 2.6 {
		t.Errorf("avg_rooms = %v, want 2.6", row["avg_rooms"])
	}
}

func TestExecute_Distinct(t *testing.T) {
	got := runQuery(t, housesTable(t), "SELECT DISTINCT city FROM data ORDER BY city")

	if !reflect.DeepEqual(values(t, got, "city"), []interface{}{nil, "Oslo", "Paris", "Rome"}) {
		t.Errorf("city = %v", values(t, got, "city"))
	}
}

func TestExecute_LimitOffset(t *testing.T) {
	tests := []struct {
		query string
		want  []interface{}
	}{
		{"SELECT city FROM data LIMIT 2", []interface{}{"Oslo", "Rome"}},
		{"SELECT city FROM data LIMIT 2 OFFSET 5", []interface{}{"Rome"}},
		{"SELECT city FROM data OFFSET 4", []interface{}{nil, "Rome"}},
		{"SELECT city FROM data OFFSET 10", []interface{}{}},
		{"SELECT city FROM data LIMIT 0", []interface{}{}},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got := runQuery(t, housesTable(t), tt.query)
			if !reflect.DeepEqual(values(t, got, "city"), tt.want) {
				t.Errorf("city = %v, want %v", values(t, got, "city"), tt.want)
			}
		})
	}
}

func TestExecute_Errors(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		wantErr error
	}{
		{"unknown select column", "SELECT nope FROM data", ErrUnknownColumn},
		{"unknown filter column", "SELECT * FROM data WHERE nope = 1", ErrUnknownColumn},
		{"unknown order column", "SELECT * FROM data ORDER BY nope", ErrUnknownColumn},
		{"unknown group column", "SELECT COUNT(*) FROM data GROUP BY nope", ErrUnknownColumn},
		{"forbidden keyword", "SELECT * FROM data WHERE x = 1; DROP TABLE data", ErrForbiddenKeyword},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Run(context.Background(), NewValidator(0), tt.query, housesTable(t))
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Run() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	_, err := Run(context.Background(), NewValidator(0), "SELECT * FROM data WHERE city > 3", housesTable(t))
	if err == nil {
		t.Errorf("Run() expected error comparing strings with numbers")
	}
}

func TestExecute_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	q, err := Parse("SELECT * FROM data WHERE rooms > 1")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Execute(ctx, q, housesTable(t)); !errors.Is(err, context.Canceled) {
		t.Errorf("Execute() error = %v, want context.Canceled", err)
	}
}

func TestExecute_LeavesInputUntouched(t *testing.T) {
	tbl := housesTable(t)
	before := tbl.Rows()

	runQuery(t, tbl, "SELECT city AS c FROM data WHERE rooms > 1 ORDER BY price DESC")
	runQuery(t, tbl, "SELECT city, COUNT(*) FROM data GROUP BY city")

	if !reflect.DeepEqual(tbl.Rows(), before) {
		t.Errorf("input table changed")
	}
}

func TestPaginate(t *testing.T) {
	tbl := housesTable(t)

	tests := []struct {
		page, size int
		want       int
	}{
		{1, 4, 4},
		{2, 4, 2},
		{3, 4, 0},
		{1, 100, 6},
	}
	for _, tt := range tests {
		got, err := Paginate(tbl, tt.page, tt.size)
		if err != nil {
			t.Fatalf("Paginate(%d, %d) error = %v", tt.page, tt.size, err)
		}
		if got.NumRows() != tt.want {
			t.Errorf("Paginate(%d, %d) rows = %d, want %d", tt.page, tt.size, got.NumRows(), tt.want)
		}
	}

	page2, _ := Paginate(tbl, 2, 4)
	if page2.Row(0)["price"] != 3.0 {
		t.Errorf("page 2 starts at %v, want row 4", page2.Row(0))
	}

	if _, err := Paginate(tbl, 0, 10); !errors.Is(err, ErrInvalidPage) {
		t.Errorf("Paginate(0, 10) error = %v, want ErrInvalidPage", err)
	}
	if _, err := Paginate(tbl, 1, 0); !errors.Is(err, ErrInvalidPage) {
		t.Errorf("Paginate(1, 0) error = %v, want ErrInvalidPage", err)
	}
	if _, err := Paginate(tbl, math.MaxInt/4+2, 4); !errors.Is(err, ErrInvalidPage) {
		t.Errorf("Paginate(MaxInt/4+2, 4) error = %v, want ErrInvalidPage", err)
	}
	if got, err := Paginate(tbl, 1, math.MaxInt); err != nil || got.NumRows() != 6 {
		t.Errorf("Paginate(1, MaxInt) = %v, %v, want all 6 rows", got, err)
	}
}
