package distribution

import (
	"math"
	"testing"

	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/vegasq/dataview/table"
)

func mustTable(t *testing.T, cols ...*table.Column) *table.Table {
	t.Helper()
	tbl, err := table.New(cols...)
	require.NoError(t, err)
	return tbl
}

func TestClassify(t *testing.T) {
	tests := []struct {
		typ  table.ColumnType
		kind Kind
		ok   bool
	}{
		{table.String, Categorical, true},
		{table.Boolean, Categorical, true},
		{table.Integer, Numeric, true},
		{table.Float, Numeric, true},
		{table.Unknown, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.typ.String(), func(t *testing.T) {
			kind, ok := Classify(tt.typ)
			require.Equal(t, tt.ok, ok)
			require.Equal(t, tt.kind, kind)
		})
	}
}

func TestSummarizeCategorical(t *testing.T) {
	d, err := summarizeCategorical([]interface{}{"a", "b", "a", "c", "a", "b"})
	require.NoError(t, err)

	require.Equal(t, Categorical, d.Type)
	require.Equal(t, []interface{}{"a", "b", "c"}, d.Labels)
	require.Equal(t, []int{3, 2, 1}, d.Counts)
}

func TestSummarizeCategorical_TiesKeepFirstAppearance(t *testing.T) {
	d, err := summarizeCategorical([]interface{}{"x", "y", "z", "y", "x", "z"})
	require.NoError(t, err)

	require.Equal(t, []interface{}{"x", "y", "z"}, d.Labels)
	require.Equal(t, []int{2, 2, 2}, d.Counts)
}

func TestSummarizeCategorical_Booleans(t *testing.T) {
	d, err := summarizeCategorical([]interface{}{true, false, true})
	require.NoError(t, err)

	require.Equal(t, []interface{}{true, false}, d.Labels)
	require.Equal(t, []int{2, 1}, d.Counts)
}

func TestSummarizeCategorical_Uncomparable(t *testing.T) {
	_, err := summarizeCategorical([]interface{}{"a", []byte("b")})
	require.Error(t, err)
}

func TestCompute_Basic(t *testing.T) {
	tbl := mustTable(t,
		table.NewColumn("city", table.String, []interface{}{"Oslo", "Rome", "Oslo", nil}),
		table.NewColumn("rooms", table.Integer, []interface{}{int64(1), int64(1), int64(2), int64(3)}),
		table.NewColumn("active", table.Boolean, []interface{}{true, nil, true, false}),
	)

	summary := Compute(tbl)

	require.Equal(t, []string{"city", "rooms", "active"}, summary.Columns())

	city, ok := summary.Get("city")
	require.True(t, ok)
	require.Equal(t, Categorical, city.Type)
	require.Equal(t, []interface{}{"Oslo", "Rome"}, city.Labels)
	require.Equal(t, []int{2, 1}, city.Counts)
	require.Equal(t, 3, city.Total())

	rooms, ok := summary.Get("rooms")
	require.True(t, ok)
	require.Equal(t, Numeric, rooms.Type)
	require.Equal(t, []interface{}{"1", "2", "3"}, rooms.Labels)
	require.Equal(t, []int{2, 1, 1}, rooms.Counts)

	active, ok := summary.Get("active")
	require.True(t, ok)
	require.Equal(t, 3, active.Total())
}

func TestCompute_SkipsUnclassifiedAndEmpty(t *testing.T) {
	tbl := mustTable(t,
		table.NewColumn("blob", table.Unknown, []interface{}{"x", "y"}),
		table.NewColumn("missing", table.Float, []interface{}{nil, nil}),
		table.NewColumn("score", table.Float, []interface{}{1.5, 2.5}),
	)

	summary := Compute(tbl)
	require.Equal(t, []string{"score"}, summary.Columns())

	_, ok := summary.Get("blob")
	require.False(t, ok)
	_, ok = summary.Get("missing")
	require.False(t, ok)

	results := New().Results(tbl)
	require.Len(t, results, 3)
	require.Equal(t, SkipUnclassified, results[0].Skip)
	require.Equal(t, SkipEmpty, results[1].Skip)
	require.Equal(t, NotSkipped, results[2].Skip)
}

func TestCompute_FailureIsIsolated(t *testing.T) {
	tbl := mustTable(t,
		table.NewColumn("bad", table.Float, []interface{}{1.0, math.NaN(), 3.0}),
		table.NewColumn("mixed", table.Float, []interface{}{1.0, "two"}),
		table.NewColumn("good", table.String, []interface{}{"a", "b"}),
	)

	core, logs := observer.New(zap.WarnLevel)
	engine := New(WithLogger(zap.New(core)))

	summary := engine.Compute(tbl)
	require.Equal(t, []string{"good"}, summary.Columns())
	require.Equal(t, 2, logs.Len())
	require.Equal(t, "bad", logs.All()[0].ContextMap()["column"])

	results := engine.Results(tbl)
	require.Equal(t, SkipFailed, results[0].Skip)
	require.ErrorIs(t, results[0].Err, ErrNonFinite)
	require.Equal(t, SkipFailed, results[1].Skip)
	require.Error(t, results[1].Err)
	require.Equal(t, NotSkipped, results[2].Skip)
}

func TestCompute_RangeOverflowIsIsolated(t *testing.T) {
	huge := make([]interface{}, 30)
	for i := range huge {
		huge[i] = -1.7e308 + float64(i)*1.17e307
	}
	tbl := mustTable(t,
		table.NewColumn("huge", table.Float, huge),
		table.NewColumn("score", table.Integer, []interface{}{int64(1), int64(2), int64(2)}),
	)

	core, logs := observer.New(zap.WarnLevel)
	engine := New(WithLogger(zap.New(core)))

	summary := engine.Compute(tbl)
	require.Equal(t, []string{"score"}, summary.Columns())
	require.Equal(t, 1, logs.Len())
	require.Equal(t, "huge", logs.All()[0].ContextMap()["column"])

	results := engine.Results(tbl)
	require.Equal(t, SkipFailed, results[0].Skip)
	require.ErrorIs(t, results[0].Err, ErrNonFinite)
	require.Nil(t, results[0].Distribution)
	require.Equal(t, NotSkipped, results[1].Skip)
}

func TestCompute_EmptyTable(t *testing.T) {
	summary := Compute(mustTable(t))
	require.Equal(t, 0, summary.Len())

	data, err := json.Marshal(summary)
	require.NoError(t, err)
	require.JSONEq(t, `{}`, string(data))
}

func TestCompute_Idempotent(t *testing.T) {
	values := make([]interface{}, 0, 200)
	for i := 0; i < 200; i++ {
		values = append(values, float64(i*i%97)+0.25)
	}
	tbl := mustTable(t, table.NewColumn("v", table.Float, values))

	first := Compute(tbl)
	second := Compute(tbl)
	require.Equal(t, first, second)
}

func TestSummary_MarshalJSONKeepsColumnOrder(t *testing.T) {
	tbl := mustTable(t,
		table.NewColumn("zeta", table.String, []interface{}{"q"}),
		table.NewColumn("alpha", table.Integer, []interface{}{int64(7), int64(7)}),
	)

	data, err := json.Marshal(Compute(tbl))
	require.NoError(t, err)
	require.Equal(t,
		`{"zeta":{"type":"categorical","labels":["q"],"counts":[1]},`+
			`"alpha":{"type":"numeric","labels":["7"],"counts":[2]}}`,
		string(data))
}

func TestSkipReason_String(t *testing.T) {
	require.Equal(t, "computation failed", SkipFailed.String())
	require.Equal(t, "SkipReason(9)", SkipReason(9).String())
}
