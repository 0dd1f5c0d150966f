package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func newLocal(t *testing.T) *Local {
	t.Helper()
	s, err := NewLocal(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, s.MakeBucket("datasets"))
	return s
}

func TestLocal_PutGet(t *testing.T) {
	ctx := context.Background()
	s := newLocal(t)

	ok, err := s.Exists(ctx, "datasets", "UPLOAD/a.csv")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.Put(ctx, "datasets", "UPLOAD/a.csv", strings.NewReader("x,y\n1,2\n"), -1))

	ok, err = s.Exists(ctx, "datasets", "UPLOAD/a.csv")
	require.NoError(t, err)
	require.True(t, ok)

	rc, err := s.Get(ctx, "datasets", "UPLOAD/a.csv")
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, "x,y\n1,2\n", string(data))

	// no temp files left behind
	entries, err := os.ReadDir(filepath.Join(s.root, "datasets", "UPLOAD"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestLocal_Open(t *testing.T) {
	ctx := context.Background()
	s := newLocal(t)
	require.NoError(t, s.Put(ctx, "datasets", "f.bin", strings.NewReader("0123456789"), 10))

	obj, err := s.Open(ctx, "datasets", "f.bin")
	require.NoError(t, err)
	defer obj.Close()

	require.EqualValues(t, 10, obj.Size())
	buf := make([]byte, 3)
	_, err = obj.ReadAt(buf, 4)
	require.NoError(t, err)
	require.Equal(t, "456", string(buf))
}

func TestLocal_URL(t *testing.T) {
	ctx := context.Background()
	s := newLocal(t)
	require.NoError(t, s.Put(ctx, "datasets", "f.bin", strings.NewReader("x"), 1))

	u, err := s.URL(ctx, "datasets", "f.bin")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(u, "file://"), u)
	require.True(t, strings.HasSuffix(u, "/datasets/f.bin"), u)
}

func TestLocal_NotFound(t *testing.T) {
	ctx := context.Background()
	s := newLocal(t)

	_, err := s.Get(ctx, "datasets", "missing.csv")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = s.Open(ctx, "datasets", "missing.csv")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = s.URL(ctx, "datasets", "missing.csv")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = s.Exists(ctx, "nobucket", "a.csv")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestLocal_InvalidKeys(t *testing.T) {
	ctx := context.Background()
	s := newLocal(t)

	for _, key := range []string{"", "/", "../secret", "UPLOAD/../../etc/passwd"} {
		err := s.Put(ctx, "datasets", key, strings.NewReader("x"), 1)
		require.ErrorIs(t, err, ErrInvalidKey, "key %q", key)
	}
	require.NoError(t, s.Put(ctx, "datasets", "UPLOAD/report..v2.csv", strings.NewReader("x"), 1))

	for _, bucket := range []string{"", "..", "a/b"} {
		_, err := s.Exists(ctx, bucket, "a.csv")
		require.ErrorIs(t, err, ErrInvalidKey, "bucket %q", bucket)
	}
}

func TestNewLocal_NotADirectory(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(f, []byte("x"), 0o644))

	_, err := NewLocal(f)
	require.Error(t, err)

	_, err = NewLocal(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
}
