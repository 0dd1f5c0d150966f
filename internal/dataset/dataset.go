// Package dataset loads uploaded datasets from the object store and answers
// preview, paging and query requests over them.
//
// Uploads are stored under a folder of their bucket. The first load converts
// the upload to Parquet next to the original; later loads read the Parquet
// file. Loaded tables are kept in a bounded LRU cache.
package dataset

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/vegasq/dataview/convert"
	"github.com/vegasq/dataview/distribution"
	"github.com/vegasq/dataview/query"
	"github.com/vegasq/dataview/reader"
	"github.com/vegasq/dataview/storage"
	"github.com/vegasq/dataview/table"
)

const (
	// DefaultFolder is the folder uploads are stored under.
	DefaultFolder = "UPLOAD"

	// DefaultPreviewRows is the number of rows returned by Load and Query.
	DefaultPreviewRows = 10

	// DefaultCacheSize is the number of tables kept in memory.
	DefaultCacheSize = 16
)

// ErrNotFound is returned when the requested upload does not exist.
var ErrNotFound = errors.New("file not found")

// View is a dataset or query result as returned to clients: the column
// names, a slice of rows, the distributions over the whole result and its
// row count.
type View struct {
	Columns       []string
	Rows          *table.Table
	Distributions distribution.Summary
	Total         int
}

// Service answers dataset requests. It is safe for concurrent use.
type Service struct {
	store       storage.Store
	folder      string
	previewRows int
	validator   *query.Validator
	engine      *distribution.Engine
	convertOpts convert.Options
	logger      *zap.Logger

	tables *lru.Cache[string, *table.Table]
	loads  singleflight.Group
}

// Option configures a Service.
type Option func(*Service)

// WithFolder sets the folder uploads are stored under.
func WithFolder(folder string) Option {
	return func(s *Service) {
		if folder != "" {
			s.folder = folder
		}
	}
}

// WithPreviewRows sets the number of preview rows.
func WithPreviewRows(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.previewRows = n
		}
	}
}

// WithValidator sets the query validator.
func WithValidator(v *query.Validator) Option {
	return func(s *Service) {
		if v != nil {
			s.validator = v
		}
	}
}

// WithConvertOptions sets the options used to convert uploads.
func WithConvertOptions(opts convert.Options) Option {
	return func(s *Service) {
		s.convertOpts = opts
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService creates a Service reading from store, caching up to cacheSize
// tables.
func NewService(store storage.Store, cacheSize int, opts ...Option) (*Service, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	tables, err := lru.New[string, *table.Table](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create table cache: %w", err)
	}

	s := &Service{
		store:       store,
		folder:      DefaultFolder,
		previewRows: DefaultPreviewRows,
		validator:   query.NewValidator(0),
		logger:      zap.NewNop(),
		tables:      tables,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.engine = distribution.New(distribution.WithLogger(s.logger))
	return s, nil
}

func (s *Service) uploadKey(file string) string {
	return path.Join(s.folder, file)
}

func (s *Service) parquetKey(file string) string {
	return path.Join(s.folder, convert.ParquetName(file))
}

func cacheKey(bucket, file string) string {
	return bucket + "/" + file
}

// Load returns the preview, distributions and row count of an upload.
func (s *Service) Load(ctx context.Context, bucket, file string) (*View, error) {
	t, err := s.table(ctx, bucket, file)
	if err != nil {
		return nil, err
	}
	return s.view(t, t.Head(s.previewRows)), nil
}

// Page runs sql against an upload and returns the requested page of the
// result.
func (s *Service) Page(ctx context.Context, bucket, file, sql string, page, pageSize int) (*table.Table, error) {
	res, err := s.run(ctx, bucket, file, sql)
	if err != nil {
		return nil, err
	}
	return query.Paginate(res.Table, page, pageSize)
}

// Query runs sql against an upload and returns the preview of the result
// with distributions over all of it.
func (s *Service) Query(ctx context.Context, bucket, file, sql string) (*View, error) {
	res, err := s.run(ctx, bucket, file, sql)
	if err != nil {
		return nil, err
	}
	return s.view(res.Table, res.Table.Head(s.previewRows)), nil
}

// QueryPage is Query with the requested page of the result in place of
// the preview.
func (s *Service) QueryPage(ctx context.Context, bucket, file, sql string, page, pageSize int) (*View, error) {
	res, err := s.run(ctx, bucket, file, sql)
	if err != nil {
		return nil, err
	}
	rows, err := query.Paginate(res.Table, page, pageSize)
	if err != nil {
		return nil, err
	}
	return s.view(res.Table, rows), nil
}

// Schema returns the column names of an upload and their types.
func (s *Service) Schema(ctx context.Context, bucket, file string) ([]string, map[string]table.ColumnType, error) {
	t, err := s.table(ctx, bucket, file)
	if err != nil {
		return nil, nil, err
	}
	return t.ColumnNames(), t.ColumnTypes(), nil
}

func (s *Service) run(ctx context.Context, bucket, file, sql string) (*query.Result, error) {
	t, err := s.table(ctx, bucket, file)
	if err != nil {
		return nil, err
	}
	return query.Run(ctx, s.validator, sql, t)
}

// Store saves an upload and its Parquet conversion, replacing earlier
// versions, and returns the loaded dataset.
func (s *Service) Store(ctx context.Context, bucket, file string, r io.Reader) (*View, error) {
	if !convert.Supported(file) {
		return nil, fmt.Errorf("%w: %s", convert.ErrUnsupportedFormat, file)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}

	t, err := s.convert(ctx, bucket, file, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if err := s.store.Put(ctx, bucket, s.uploadKey(file), bytes.NewReader(data), int64(len(data))); err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}

	s.tables.Add(cacheKey(bucket, file), t)
	return s.view(t, t.Head(s.previewRows)), nil
}

// Evict drops the cached table of an upload.
func (s *Service) Evict(bucket, file string) {
	s.tables.Remove(cacheKey(bucket, file))
}

func (s *Service) view(full, rows *table.Table) *View {
	return &View{
		Columns:       full.ColumnNames(),
		Rows:          rows,
		Distributions: s.engine.Compute(full),
		Total:         full.NumRows(),
	}
}

// table returns the cached table of an upload, loading it once when
// several requests miss at the same time.
func (s *Service) table(ctx context.Context, bucket, file string) (*table.Table, error) {
	key := cacheKey(bucket, file)
	if t, ok := s.tables.Get(key); ok {
		return t, nil
	}

	v, err, _ := s.loads.Do(key, func() (interface{}, error) {
		if t, ok := s.tables.Get(key); ok {
			return t, nil
		}
		t, err := s.load(ctx, bucket, file)
		if err != nil {
			return nil, err
		}
		s.tables.Add(key, t)
		return t, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*table.Table), nil
}

func (s *Service) load(ctx context.Context, bucket, file string) (*table.Table, error) {
	start := time.Now()
	logger := s.logger.With(zap.String("bucket", bucket), zap.String("file", file))

	ok, err := s.store.Exists(ctx, bucket, s.uploadKey(file))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, file)
		}
		return nil, fmt.Errorf("check upload: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, file)
	}

	converted, err := s.store.Exists(ctx, bucket, s.parquetKey(file))
	if err != nil {
		return nil, fmt.Errorf("check parquet: %w", err)
	}
	if !converted {
		logger.Info("converting upload to parquet")
		rc, err := s.store.Get(ctx, bucket, s.uploadKey(file))
		if err != nil {
			return nil, fmt.Errorf("get upload: %w", err)
		}
		defer rc.Close()

		t, err := s.convert(ctx, bucket, file, rc)
		if err != nil {
			return nil, err
		}
		logger.Info("dataset loaded",
			zap.Int("rows", t.NumRows()),
			zap.Duration("elapsed", time.Since(start)))
		return t, nil
	}

	t, err := s.readParquet(ctx, bucket, s.parquetKey(file))
	if err != nil {
		return nil, err
	}
	logger.Info("dataset loaded",
		zap.Int("rows", t.NumRows()),
		zap.Duration("elapsed", time.Since(start)))
	return t, nil
}

// convert reads an upload into a table and stores its Parquet conversion.
func (s *Service) convert(ctx context.Context, bucket, file string, r io.Reader) (*table.Table, error) {
	t, err := convert.ReadFile(file, r, s.convertOpts)
	if err != nil {
		return nil, fmt.Errorf("convert %s: %w", file, err)
	}

	var buf bytes.Buffer
	if err := convert.WriteParquet(&buf, t); err != nil {
		return nil, fmt.Errorf("convert %s: %w", file, err)
	}
	if err := s.store.Put(ctx, bucket, s.parquetKey(file), bytes.NewReader(buf.Bytes()), int64(buf.Len())); err != nil {
		return nil, fmt.Errorf("store parquet: %w", err)
	}
	return t, nil
}

// readParquet reads a stored Parquet object. Objects with an HTTP URL are
// read through range requests, others through the store.
func (s *Service) readParquet(ctx context.Context, bucket, key string) (*table.Table, error) {
	rawURL, err := s.store.URL(ctx, bucket, key)
	if err != nil {
		return nil, fmt.Errorf("locate parquet: %w", err)
	}

	var r *reader.Reader
	if u, perr := url.Parse(rawURL); perr == nil && (u.Scheme == "http" || u.Scheme == "https") {
		r, err = reader.NewHTTPReader(rawURL)
	} else {
		var obj storage.Object
		obj, err = s.store.Open(ctx, bucket, key)
		if err == nil {
			r, err = reader.NewReaderAt(obj, obj.Size())
			if err != nil {
				_ = obj.Close()
			}
		}
	}
	if err != nil {
		return nil, fmt.Errorf("open parquet: %w", err)
	}
	defer r.Close()

	return r.ReadTable(ctx)
}
