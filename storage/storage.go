// Package storage abstracts the object store holding uploaded datasets and
// their Parquet conversions.
//
// Objects are addressed by bucket and key. Two implementations exist: MinIO
// (any S3 compatible service) and Local, which maps buckets to directories.
package storage

import (
	"context"
	"errors"
	"io"
)

var (
	// ErrNotFound is returned when a bucket or object does not exist
	ErrNotFound = errors.New("object not found")

	// ErrInvalidKey is returned for keys that escape their bucket
	ErrInvalidKey = errors.New("invalid object key")
)

// Object is an open object supporting random access, as needed by the
// Parquet reader.
type Object interface {
	io.ReaderAt
	io.Closer
	Size() int64
}

// Store is an object store.
type Store interface {
	// Exists reports whether the object exists. A missing bucket is
	// ErrNotFound.
	Exists(ctx context.Context, bucket, key string) (bool, error)

	// Get returns the object's content.
	Get(ctx context.Context, bucket, key string) (io.ReadCloser, error)

	// Put stores size bytes read from r. A size of -1 means unknown.
	Put(ctx context.Context, bucket, key string, r io.Reader, size int64) error

	// URL returns a URL the object can be fetched from, presigned where the
	// store requires it.
	URL(ctx context.Context, bucket, key string) (string, error)

	// Open returns the object for random access reads.
	Open(ctx context.Context, bucket, key string) (Object, error)
}
