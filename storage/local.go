package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// Local stores objects as files below a root directory, one directory per
// bucket.
type Local struct {
	root string
}

// NewLocal returns a store rooted at dir, which must exist.
func NewLocal(dir string) (*Local, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve storage root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage root %s is not a directory", abs)
	}
	return &Local{root: abs}, nil
}

// MakeBucket creates the bucket directory if needed.
func (l *Local) MakeBucket(bucket string) error {
	dir, err := l.bucketDir(bucket)
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0o755)
}

func (l *Local) bucketDir(bucket string) (string, error) {
	if bucket == "" || bucket == "." || bucket == ".." || strings.ContainsAny(bucket, `/\`) {
		return "", fmt.Errorf("%w: bucket %q", ErrInvalidKey, bucket)
	}
	return filepath.Join(l.root, bucket), nil
}

// path maps bucket and key to a file, rejecting keys that leave the bucket.
func (l *Local) path(bucket, key string) (string, error) {
	dir, err := l.bucketDir(bucket)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(dir); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: bucket %s", ErrNotFound, bucket)
		}
		return "", err
	}

	for _, part := range strings.Split(strings.ReplaceAll(key, "\\", "/"), "/") {
		if part == ".." {
			return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
		}
	}
	clean := filepath.Clean("/" + filepath.FromSlash(key))
	if clean == string(filepath.Separator) {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return filepath.Join(dir, clean), nil
}

func notFound(err error, bucket, key string) error {
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s/%s", ErrNotFound, bucket, key)
	}
	return err
}

// Exists implements Store.
func (l *Local) Exists(_ context.Context, bucket, key string) (bool, error) {
	p, err := l.path(bucket, key)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(p)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return info.Mode().IsRegular(), nil
}

// Get implements Store.
func (l *Local) Get(_ context.Context, bucket, key string) (io.ReadCloser, error) {
	p, err := l.path(bucket, key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		return nil, notFound(err, bucket, key)
	}
	return f, nil
}

// Put implements Store. The object is written to a temporary file and
// renamed into place.
func (l *Local) Put(_ context.Context, bucket, key string, r io.Reader, _ int64) error {
	p, err := l.path(bucket, key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(p), ".upload-*")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s/%s: %w", bucket, key, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), p)
}

// URL implements Store with a file:// URL.
func (l *Local) URL(_ context.Context, bucket, key string) (string, error) {
	p, err := l.path(bucket, key)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(p); err != nil {
		return "", notFound(err, bucket, key)
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(p)}).String(), nil
}

// Open implements Store.
func (l *Local) Open(_ context.Context, bucket, key string) (Object, error) {
	p, err := l.path(bucket, key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		return nil, notFound(err, bucket, key)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &localObject{File: f, size: info.Size()}, nil
}

type localObject struct {
	*os.File
	size int64
}

func (o *localObject) Size() int64 { return o.size }
