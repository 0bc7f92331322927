// Package cache is the content-addressed response cache in front of the
// catalog API. Entries carry the raw upstream payload and the time it was
// fetched. They never expire; a forced refresh is the only way to replace one.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	domerrors "github.com/garyellow/nycu-course-go/internal/errors"
	"github.com/garyellow/nycu-course-go/internal/kvstore"
	"github.com/garyellow/nycu-course-go/internal/metrics"
)

// Key identifies an upstream request by operation and parameters.
type Key struct {
	Operation  string            `json:"operation"`
	Parameters map[string]string `json:"parameters"`
}

// String returns the canonical serialization used as the store key.
// encoding/json sorts map keys, so insertion order never matters.
func (k Key) String() string {
	params := k.Parameters
	if params == nil {
		params = map[string]string{}
	}
	b, _ := json.Marshal(Key{Operation: k.Operation, Parameters: params})
	return string(b)
}

// Entry is a cached upstream payload. Data is nil when the fetch failed.
type Entry struct {
	Data json.RawMessage `json:"data"`
	Time time.Time       `json:"time"`
	// Hit is true when the entry came from the store.
	Hit bool `json:"-"`
}

// FetchFunc performs the upstream call on a miss.
type FetchFunc func(ctx context.Context) (json.RawMessage, error)

// Cache wraps a kvstore.Store.
type Cache struct {
	store   kvstore.Store
	metrics *metrics.Metrics
	now     func() time.Time
}

// New creates a cache over store. m may be nil.
func New(store kvstore.Store, m *metrics.Metrics) *Cache {
	return &Cache{store: store, metrics: m, now: time.Now}
}

// Fetch returns the stored entry for key unless force is set or the key is
// absent, in which case fetch is called and its result stored.
//
// A failed fetch is never stored: Fetch returns an Entry with nil Data and
// the current time together with the fetch error. Store read failures are
// treated as misses and store write failures are logged; neither is returned.
// Concurrent misses on the same key may both call fetch.
func (c *Cache) Fetch(ctx context.Context, key Key, fetch FetchFunc, force bool) (Entry, error) {
	k := key.String()
	log := slog.With("operation", key.Operation)

	if !force {
		if entry, ok := c.read(ctx, k, log); ok {
			c.metrics.RecordCacheHit(key.Operation)
			entry.Hit = true
			return entry, nil
		}
	}
	c.metrics.RecordCacheMiss(key.Operation)

	data, err := fetch(ctx)
	if err != nil {
		return Entry{Time: c.now()}, fmt.Errorf("%s: %w", key.Operation, err)
	}

	entry := Entry{Data: data, Time: c.now()}
	if data == nil {
		entry.Data = json.RawMessage("null")
	}
	encoded, err := json.Marshal(entry)
	if err != nil {
		log.WarnContext(ctx, "Failed to encode cache entry", "error", err)
		return entry, nil
	}
	if err := c.store.Set(ctx, k, string(encoded)); err != nil {
		c.metrics.RecordCacheError("write")
		log.ErrorContext(ctx, "Failed to write cache entry", "error", err)
	}
	return entry, nil
}

func (c *Cache) read(ctx context.Context, k string, log *slog.Logger) (Entry, bool) {
	raw, ok, err := c.store.Get(ctx, k)
	if err != nil {
		c.metrics.RecordCacheError("read")
		log.WarnContext(ctx, "Cache read failed, treating as miss", "error", err)
		return Entry{}, false
	}
	if !ok {
		return Entry{}, false
	}
	var entry Entry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		log.WarnContext(ctx, "Discarding undecodable cache entry",
			"error", fmt.Errorf("%w: %w", domerrors.ErrCacheUnavailable, err))
		return Entry{}, false
	}
	return entry, true
}
