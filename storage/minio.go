package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinIOConfig holds the connection settings of an S3 compatible service.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Secure    bool
	// URLExpiry is the lifetime of presigned URLs.
	URLExpiry time.Duration
}

// MinIO is a Store backed by a MinIO or S3 bucket.
type MinIO struct {
	client *minio.Client
	expiry time.Duration
}

// NewMinIO creates a client. No request is made until the store is used.
func NewMinIO(cfg MinIOConfig) (*MinIO, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	expiry := cfg.URLExpiry
	if expiry <= 0 {
		expiry = time.Hour
	}
	return &MinIO{client: client, expiry: expiry}, nil
}

func (m *MinIO) checkBucket(ctx context.Context, bucket string) error {
	ok, err := m.client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", bucket, err)
	}
	if !ok {
		return fmt.Errorf("%w: bucket %s", ErrNotFound, bucket)
	}
	return nil
}

// translate maps missing bucket and key responses to ErrNotFound.
func translate(err error, bucket, key string) error {
	if err == nil {
		return nil
	}
	resp := minio.ToErrorResponse(err)
	if resp.StatusCode == http.StatusNotFound || resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket" {
		return fmt.Errorf("%w: %s/%s", ErrNotFound, bucket, key)
	}
	return fmt.Errorf("%s/%s: %w", bucket, key, err)
}

// Exists implements Store.
func (m *MinIO) Exists(ctx context.Context, bucket, key string) (bool, error) {
	if err := m.checkBucket(ctx, bucket); err != nil {
		return false, err
	}
	_, err := m.client.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	resp := minio.ToErrorResponse(err)
	if resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	return false, translate(err, bucket, key)
}

// Get implements Store.
func (m *MinIO) Get(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	obj, err := m.open(ctx, bucket, key)
	if err != nil {
		return nil, err
	}
	return obj, nil
}

// Put implements Store.
func (m *MinIO) Put(ctx context.Context, bucket, key string, r io.Reader, size int64) error {
	if err := m.checkBucket(ctx, bucket); err != nil {
		return err
	}
	_, err := m.client.PutObject(ctx, bucket, key, r, size, minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	})
	return translate(err, bucket, key)
}

// URL implements Store with a presigned GET URL.
func (m *MinIO) URL(ctx context.Context, bucket, key string) (string, error) {
	if err := m.checkBucket(ctx, bucket); err != nil {
		return "", err
	}
	u, err := m.client.PresignedGetObject(ctx, bucket, key, m.expiry, nil)
	if err != nil {
		return "", translate(err, bucket, key)
	}
	return u.String(), nil
}

// Open implements Store.
func (m *MinIO) Open(ctx context.Context, bucket, key string) (Object, error) {
	return m.open(ctx, bucket, key)
}

func (m *MinIO) open(ctx context.Context, bucket, key string) (*minioObject, error) {
	obj, err := m.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, translate(err, bucket, key)
	}
	// GetObject is lazy; Stat surfaces a missing key.
	info, err := obj.Stat()
	if err != nil {
		_ = obj.Close()
		return nil, translate(err, bucket, key)
	}
	return &minioObject{Object: obj, size: info.Size}, nil
}

type minioObject struct {
	*minio.Object
	size int64
}

func (o *minioObject) Size() int64 { return o.size }

// EnsureBucket creates bucket when it does not exist.
func (m *MinIO) EnsureBucket(ctx context.Context, bucket string) error {
	ok, err := m.client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", bucket, err)
	}
	if ok {
		return nil
	}
	if err := m.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket %s: %w", bucket, err)
	}
	return nil
}
