package snapshot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyellow/nycu-course-go/internal/kvstore"
	"github.com/garyellow/nycu-course-go/internal/r2client"
)

// memoryBucket is an in-memory ObjectStore.
type memoryBucket struct {
	mu      sync.Mutex
	objects map[string][]byte
	puts    int
	getErr  error
}

func newMemoryBucket() *memoryBucket {
	return &memoryBucket{objects: make(map[string][]byte)}
}

func (b *memoryBucket) Put(_ context.Context, key string, body io.Reader, _ string) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.puts++
	b.objects[key] = data
	return fmt.Sprintf("etag-%d", b.puts), nil
}

func (b *memoryBucket) Get(_ context.Context, key string) (io.ReadCloser, r2client.ObjectInfo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.getErr != nil {
		return nil, r2client.ObjectInfo{}, b.getErr
	}
	data, ok := b.objects[key]
	if !ok {
		return nil, r2client.ObjectInfo{}, r2client.ErrNotFound
	}
	info := r2client.ObjectInfo{ETag: fmt.Sprintf("etag-%d", b.puts), Size: int64(len(data))}
	return io.NopCloser(bytes.NewReader(data)), info, nil
}

func (b *memoryBucket) putCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.puts
}

type failingSource struct{}

func (failingSource) Snapshot(context.Context, string) error { return errors.New("disk full") }

func newSQLite(t *testing.T, path string) *kvstore.SQLiteStore {
	t.Helper()
	store, err := kvstore.NewSQLite(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestPublishThenRestore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	bucket := newMemoryBucket()
	m := New(bucket, Config{Key: "snapshots/store.db.zst", TempDir: t.TempDir()}, nil)

	src := newSQLite(t, filepath.Join(t.TempDir(), "store.db"))
	require.NoError(t, src.Set(ctx, "departments:1121", `[{"id":"D1"}]`))

	etag, err := m.Publish(ctx, src)
	require.NoError(t, err)
	assert.Equal(t, "etag-1", etag)
	assert.Equal(t, "etag-1", m.LastETag())

	restoredPath := filepath.Join(t.TempDir(), "fresh", "store.db")
	restored, err := New(bucket, Config{Key: "snapshots/store.db.zst"}, nil).Restore(ctx, restoredPath)
	require.NoError(t, err)
	require.True(t, restored)

	_, err = os.Stat(restoredPath + ".restore")
	assert.True(t, os.IsNotExist(err), "partial file must be renamed away")

	dst := newSQLite(t, restoredPath)
	v, ok, err := dst.Get(ctx, "departments:1121")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `[{"id":"D1"}]`, v)
}

func TestRestore_KeepsExistingFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "store.db")
	require.NoError(t, os.WriteFile(path, []byte("local"), 0o644))

	bucket := newMemoryBucket()
	bucket.objects["k"] = []byte("remote")
	restored, err := New(bucket, Config{Key: "k"}, nil).Restore(context.Background(), path)
	require.NoError(t, err)
	assert.False(t, restored)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "local", string(data))
}

func TestRestore_NoRemoteSnapshot(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "store.db")
	restored, err := New(newMemoryBucket(), Config{Key: "k"}, nil).Restore(context.Background(), path)
	require.NoError(t, err)
	assert.False(t, restored)
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestRestore_Errors(t *testing.T) {
	t.Parallel()

	t.Run("download failure", func(t *testing.T) {
		bucket := newMemoryBucket()
		bucket.getErr = errors.New("connection reset")
		_, err := New(bucket, Config{Key: "k"}, nil).Restore(context.Background(), filepath.Join(t.TempDir(), "store.db"))
		assert.Error(t, err)
	})

	t.Run("corrupt archive", func(t *testing.T) {
		bucket := newMemoryBucket()
		bucket.objects["k"] = []byte("not zstd")
		path := filepath.Join(t.TempDir(), "store.db")
		_, err := New(bucket, Config{Key: "k"}, nil).Restore(context.Background(), path)
		assert.Error(t, err)
		_, statErr := os.Stat(path)
		assert.True(t, os.IsNotExist(statErr))
		_, statErr = os.Stat(path + ".restore")
		assert.True(t, os.IsNotExist(statErr))
	})
}

func TestPublish_SourceFailure(t *testing.T) {
	t.Parallel()
	bucket := newMemoryBucket()
	_, err := New(bucket, Config{Key: "k", TempDir: t.TempDir()}, nil).Publish(context.Background(), failingSource{})
	assert.ErrorContains(t, err, "disk full")
	assert.Zero(t, bucket.putCount())
}

func TestRun_PublishesOnInterval(t *testing.T) {
	t.Parallel()
	bucket := newMemoryBucket()
	src := newSQLite(t, filepath.Join(t.TempDir(), "store.db"))
	m := New(bucket, Config{Key: "k", Interval: 10 * time.Millisecond, TempDir: t.TempDir()}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx, src)
		close(done)
	}()

	require.Eventually(t, func() bool { return bucket.putCount() >= 2 }, 5*time.Second, 10*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestRun_DisabledInterval(t *testing.T) {
	t.Parallel()
	done := make(chan struct{})
	go func() {
		New(newMemoryBucket(), Config{Key: "k"}, nil).Run(context.Background(), failingSource{})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run with zero interval should return immediately")
	}
}
