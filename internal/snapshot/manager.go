// Package snapshot copies the SQLite store file to and from R2 so that a
// fresh instance starts with the department lists and cached responses of
// the previous one instead of re-crawling the catalog API.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/garyellow/nycu-course-go/internal/config"
	"github.com/garyellow/nycu-course-go/internal/metrics"
	"github.com/garyellow/nycu-course-go/internal/r2client"
)

const contentType = "application/zstd"

// ObjectStore holds the compressed snapshot.
type ObjectStore interface {
	Put(ctx context.Context, key string, body io.Reader, contentType string) (string, error)
	Get(ctx context.Context, key string) (io.ReadCloser, r2client.ObjectInfo, error)
}

// Source produces a consistent copy of the live store at dest.
// kvstore.SQLiteStore implements it with VACUUM INTO.
type Source interface {
	Snapshot(ctx context.Context, dest string) error
}

// Config holds snapshot manager configuration.
type Config struct {
	Key      string        // Object key, e.g. "snapshots/store.db.zst"
	Interval time.Duration // Publish period for Run; 0 disables publishing
	TempDir  string        // Scratch directory for snapshot files
}

// Manager restores and publishes store snapshots.
type Manager struct {
	store   ObjectStore
	cfg     Config
	metrics *metrics.Metrics

	mu       sync.Mutex
	lastETag string
}

// New creates a Manager. m may be nil.
func New(store ObjectStore, cfg Config, m *metrics.Metrics) *Manager {
	if cfg.TempDir == "" {
		cfg.TempDir = os.TempDir()
	}
	return &Manager{store: store, cfg: cfg, metrics: m}
}

// Restore downloads the published snapshot to path when no file exists
// there yet. It reports whether a snapshot was written. A missing remote
// snapshot is not an error.
func (m *Manager) Restore(ctx context.Context, path string) (restored bool, err error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("stat %s: %w", path, err)
	}

	body, info, err := m.store.Get(ctx, m.cfg.Key)
	if errors.Is(err, r2client.ErrNotFound) {
		return false, nil
	}
	defer func() { m.metrics.RecordSnapshot("restore", err) }()
	if err != nil {
		return false, fmt.Errorf("download snapshot: %w", err)
	}
	defer body.Close()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, fmt.Errorf("create store directory: %w", err)
	}
	// Decompress beside the target so the rename cannot cross filesystems.
	partial := path + ".restore"
	if err := decompressTo(body, partial); err != nil {
		_ = os.Remove(partial)
		return false, err
	}
	if err := os.Rename(partial, path); err != nil {
		_ = os.Remove(partial)
		return false, fmt.Errorf("install snapshot: %w", err)
	}

	m.setETag(info.ETag)
	slog.InfoContext(ctx, "Store restored from snapshot",
		"path", path, "etag", info.ETag, "size_bytes", info.Size)
	return true, nil
}

// Publish snapshots src, compresses it and uploads it under the configured
// key. It returns the new object's ETag.
func (m *Manager) Publish(ctx context.Context, src Source) (etag string, err error) {
	defer func() { m.metrics.RecordSnapshot("publish", err) }()

	base := filepath.Join(m.cfg.TempDir, fmt.Sprintf("snapshot_%d.db", time.Now().UnixNano()))
	if err := src.Snapshot(ctx, base); err != nil {
		return "", fmt.Errorf("create snapshot: %w", err)
	}
	defer os.Remove(base)

	compressed := base + ".zst"
	if err := compressFile(base, compressed); err != nil {
		return "", err
	}
	defer os.Remove(compressed)

	f, err := os.Open(compressed)
	if err != nil {
		return "", fmt.Errorf("open compressed snapshot: %w", err)
	}
	defer f.Close()

	etag, err = m.store.Put(ctx, m.cfg.Key, f, contentType)
	if err != nil {
		return "", fmt.Errorf("upload snapshot: %w", err)
	}
	m.setETag(etag)
	return etag, nil
}

// Run publishes src every Interval until ctx is canceled. Failures are
// logged and retried on the next tick.
func (m *Manager) Run(ctx context.Context, src Source) {
	if m.cfg.Interval <= 0 {
		return
	}
	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.publishOnce(ctx, src)
		}
	}
}

func (m *Manager) publishOnce(ctx context.Context, src Source) {
	ctx, cancel := context.WithTimeout(ctx, config.SnapshotTransfer)
	defer cancel()

	start := time.Now()
	etag, err := m.Publish(ctx, src)
	if err != nil {
		slog.WarnContext(ctx, "Snapshot publish failed", "error", err)
		return
	}
	slog.InfoContext(ctx, "Snapshot published",
		"etag", etag, "duration_ms", time.Since(start).Milliseconds())
}

// LastETag returns the ETag of the last snapshot restored or published.
func (m *Manager) LastETag() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastETag
}

func (m *Manager) setETag(etag string) {
	m.mu.Lock()
	m.lastETag = etag
	m.mu.Unlock()
}
