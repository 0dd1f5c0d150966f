package dataset

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/vegasq/dataview/convert"
	"github.com/vegasq/dataview/distribution"
	"github.com/vegasq/dataview/query"
	"github.com/vegasq/dataview/storage"
	"github.com/vegasq/dataview/table"
)

const bucket = "datasets"

// salesCSV has 12 rows: cities cycle Oslo, Rome, Oslo, Paris.
func salesCSV() string {
	var b strings.Builder
	b.WriteString("city,units,price\n")
	cities := []string{"Oslo", "Rome", "Oslo", "Paris"}
	for i := 0; i < 12; i++ {
		fmt.Fprintf(&b, "%s,%d,%.1f\n", cities[i%4], i+1, float64(i)*2.5)
	}
	return b.String()
}

func newStore(t *testing.T) *storage.Local {
	t.Helper()
	s, err := storage.NewLocal(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, s.MakeBucket(bucket))
	return s
}

func putUpload(t *testing.T, s storage.Store, file, content string) {
	t.Helper()
	err := s.Put(context.Background(), bucket, "UPLOAD/"+file, strings.NewReader(content), int64(len(content)))
	require.NoError(t, err)
}

func newService(t *testing.T, s storage.Store, opts ...Option) *Service {
	t.Helper()
	svc, err := NewService(s, 4, opts...)
	require.NoError(t, err)
	return svc
}

func TestService_LoadConvertsOnce(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	putUpload(t, store, "sales.csv", salesCSV())

	core, logs := observer.New(zap.InfoLevel)
	svc := newService(t, store, WithLogger(zap.New(core)))

	view, err := svc.Load(ctx, bucket, "sales.csv")
	require.NoError(t, err)
	require.Equal(t, []string{"city", "units", "price"}, view.Columns)
	require.Equal(t, 12, view.Total)
	require.Equal(t, DefaultPreviewRows, view.Rows.NumRows())
	require.Equal(t, 1, logs.FilterMessage("converting upload to parquet").Len())

	ok, err := store.Exists(ctx, bucket, "UPLOAD/sales.parquet")
	require.NoError(t, err)
	require.True(t, ok)

	city, ok := view.Distributions.Get("city")
	require.True(t, ok)
	require.Equal(t, distribution.Categorical, city.Type)
	require.Equal(t, []interface{}{"Oslo", "Rome", "Paris"}, city.Labels)
	require.Equal(t, []int{6, 3, 3}, city.Counts)

	units, ok := view.Distributions.Get("units")
	require.True(t, ok)
	require.Equal(t, distribution.Numeric, units.Type)
	require.Equal(t, 12, units.Total())

	// a fresh service reads the stored parquet instead of converting again
	other := newService(t, store, WithLogger(zap.New(core)))
	again, err := other.Load(ctx, bucket, "sales.csv")
	require.NoError(t, err)
	require.Equal(t, view.Columns, again.Columns)
	require.Equal(t, 12, again.Total)
	require.Equal(t, 1, logs.FilterMessage("converting upload to parquet").Len())
	require.Equal(t, view.Rows.Rows(), again.Rows.Rows())
}

func TestService_LoadCached(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	putUpload(t, store, "sales.csv", salesCSV())
	svc := newService(t, store)

	first, err := svc.table(ctx, bucket, "sales.csv")
	require.NoError(t, err)
	second, err := svc.table(ctx, bucket, "sales.csv")
	require.NoError(t, err)
	require.Same(t, first, second)

	svc.Evict(bucket, "sales.csv")
	third, err := svc.table(ctx, bucket, "sales.csv")
	require.NoError(t, err)
	require.NotSame(t, first, third)
}

func TestService_LoadNotFound(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, newStore(t))

	_, err := svc.Load(ctx, bucket, "missing.csv")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = svc.Load(ctx, "nobucket", "missing.csv")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestService_Page(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	putUpload(t, store, "sales.csv", salesCSV())
	svc := newService(t, store)

	page, err := svc.Page(ctx, bucket, "sales.csv", "SELECT units FROM data WHERE city = 'Oslo' ORDER BY units", 2, 2)
	require.NoError(t, err)
	require.Equal(t, []string{"units"}, page.ColumnNames())

	units, _ := page.Column("units")
	require.Equal(t, []interface{}{int64(5), int64(7)}, units.NonNull())

	past, err := svc.Page(ctx, bucket, "sales.csv", "SELECT * FROM data", 9, 10)
	require.NoError(t, err)
	require.Equal(t, 0, past.NumRows())

	_, err = svc.Page(ctx, bucket, "sales.csv", "SELECT * FROM data", 0, 10)
	require.ErrorIs(t, err, query.ErrInvalidPage)
}

func TestService_Query(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	putUpload(t, store, "sales.csv", salesCSV())
	svc := newService(t, store, WithPreviewRows(2))

	view, err := svc.Query(ctx, bucket, "sales.csv", "SELECT city, units FROM data WHERE units > 4")
	require.NoError(t, err)
	require.Equal(t, []string{"city", "units"}, view.Columns)
	require.Equal(t, 8, view.Total)
	require.Equal(t, 2, view.Rows.NumRows())

	// distributions cover the whole result, not just the preview
	city, ok := view.Distributions.Get("city")
	require.True(t, ok)
	require.Equal(t, 8, city.Total())
	_, ok = view.Distributions.Get("price")
	require.False(t, ok)
}

func TestService_QueryInvalid(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	putUpload(t, store, "sales.csv", salesCSV())
	svc := newService(t, store, WithValidator(query.NewValidator(30)))

	for _, sql := range []string{
		"DROP TABLE data",
		"SELECT city, units, price FROM data",
		"SELECT nope FROM data",
	} {
		_, err := svc.Query(ctx, bucket, "sales.csv", sql)
		require.Error(t, err, sql)
		require.True(t, query.IsInvalid(err), "%q: %v", sql, err)
	}
}

func TestService_Store(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	svc := newService(t, store)

	view, err := svc.Store(ctx, bucket, "sales.csv", strings.NewReader(salesCSV()))
	require.NoError(t, err)
	require.Equal(t, 12, view.Total)

	for _, key := range []string{"UPLOAD/sales.csv", "UPLOAD/sales.parquet"} {
		ok, err := store.Exists(ctx, bucket, key)
		require.NoError(t, err)
		require.True(t, ok, key)
	}

	// a new upload under the same name replaces the cached table
	view, err = svc.Store(ctx, bucket, "sales.csv", strings.NewReader("city\nOslo\n"))
	require.NoError(t, err)
	require.Equal(t, 1, view.Total)

	loaded, err := svc.Load(ctx, bucket, "sales.csv")
	require.NoError(t, err)
	require.Equal(t, []string{"city"}, loaded.Columns)

	_, err = svc.Store(ctx, bucket, "notes.txt", strings.NewReader("x"))
	require.ErrorIs(t, err, convert.ErrUnsupportedFormat)
}

func TestSessions(t *testing.T) {
	s, err := NewSessions(2)
	require.NoError(t, err)

	a := s.Create(Ref{Bucket: bucket, File: "a.csv"})
	b := s.Create(Ref{Bucket: bucket, File: "b.csv"})
	require.NotEqual(t, a, b)

	ref, err := s.Get(a)
	require.NoError(t, err)
	require.Equal(t, "a.csv", ref.File)

	// a was used last, so b is evicted
	s.Create(Ref{Bucket: bucket, File: "c.csv"})
	_, err = s.Get(b)
	require.ErrorIs(t, err, ErrSessionNotFound)
	require.Equal(t, 2, s.Len())

	s.Delete(a)
	s.Delete(a)
	_, err = s.Get(a)
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestService_QueryPage(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	putUpload(t, store, "sales.csv", salesCSV())
	svc := newService(t, store)

	view, err := svc.QueryPage(ctx, bucket, "sales.csv", "SELECT city, COUNT(*) AS n FROM data GROUP BY city ORDER BY n DESC", 2, 1)
	require.NoError(t, err)
	require.Equal(t, 3, view.Total)
	require.Equal(t, []string{"city", "n"}, view.Columns)
	require.Equal(t, 1, view.Rows.NumRows())

	city, _ := view.Rows.Column("city")
	require.Equal(t, "Rome", city.Value(0))

	n, ok := view.Distributions.Get("n")
	require.True(t, ok)
	require.Equal(t, 3, n.Total())
}

func TestService_Schema(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	putUpload(t, store, "sales.csv", salesCSV())
	svc := newService(t, store)

	columns, types, err := svc.Schema(ctx, bucket, "sales.csv")
	require.NoError(t, err)
	require.Equal(t, []string{"city", "units", "price"}, columns)
	require.Equal(t, table.String, types["city"])
	require.Equal(t, table.Integer, types["units"])
	require.Equal(t, table.Float, types["price"])
}
