package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domerrors "github.com/garyellow/nycu-course-go/internal/errors"
	"github.com/garyellow/nycu-course-go/internal/kvstore"
)

type flakyStore struct {
	kvstore.Store
	failGet bool
	failSet bool
}

func (s *flakyStore) Get(ctx context.Context, key string) (string, bool, error) {
	if s.failGet {
		return "", false, domerrors.ErrCacheUnavailable
	}
	return s.Store.Get(ctx, key)
}

func (s *flakyStore) Set(ctx context.Context, key, value string) error {
	if s.failSet {
		return domerrors.ErrCacheUnavailable
	}
	return s.Store.Set(ctx, key, value)
}

type countingFetch struct {
	calls   atomic.Int32
	payload string
	err     error
}

func (f *countingFetch) fetch(context.Context) (json.RawMessage, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return json.RawMessage(f.payload), nil
}

// stored reads key straight from the store, bypassing Fetch.
func stored(ctx context.Context, c *Cache, key Key) (Entry, bool) {
	return c.read(ctx, key.String(), slog.Default())
}

func newTestCache(store kvstore.Store) *Cache {
	c := New(store, nil)
	tick := time.Date(2024, 9, 1, 8, 0, 0, 0, time.UTC)
	c.now = func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}
	return c
}

func TestKey_Deterministic(t *testing.T) {
	a := map[string]string{}
	a["m_acy"] = "112"
	a["m_sem"] = "1"
	a["m_cos_id"] = "CS101"

	b := map[string]string{}
	b["m_cos_id"] = "CS101"
	b["m_sem"] = "1"
	b["m_acy"] = "112"

	ka := Key{Operation: "get_cos_list", Parameters: a}.String()
	kb := Key{Operation: "get_cos_list", Parameters: b}.String()
	assert.Equal(t, ka, kb)
	assert.Equal(t, `{"operation":"get_cos_list","parameters":{"m_acy":"112","m_cos_id":"CS101","m_sem":"1"}}`, ka)

	assert.Equal(t, `{"operation":"get_acysem","parameters":{}}`, Key{Operation: "get_acysem"}.String())
	assert.NotEqual(t, ka, Key{Operation: "get_dep", Parameters: a}.String())
}

func TestFetch_MissThenHit(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(kvstore.NewMemory())
	f := &countingFetch{payload: `{"x":1}`}
	key := Key{Operation: "get_cos_list", Parameters: map[string]string{"m_cos_id": "CS101"}}

	first, err := c.Fetch(ctx, key, f.fetch, false)
	require.NoError(t, err)
	assert.False(t, first.Hit)
	assert.JSONEq(t, `{"x":1}`, string(first.Data))

	second, err := c.Fetch(ctx, key, f.fetch, false)
	require.NoError(t, err)
	assert.True(t, second.Hit)
	assert.Equal(t, int32(1), f.calls.Load())
	assert.JSONEq(t, string(first.Data), string(second.Data))
	assert.True(t, first.Time.Equal(second.Time), "hit must return the stored timestamp unchanged")
}

func TestFetch_ForceBypassesAndOverwrites(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(kvstore.NewMemory())
	key := Key{Operation: "get_acysem"}

	old := &countingFetch{payload: `["old"]`}
	_, err := c.Fetch(ctx, key, old.fetch, false)
	require.NoError(t, err)

	fresh := &countingFetch{payload: `["new"]`}
	forced, err := c.Fetch(ctx, key, fresh.fetch, true)
	require.NoError(t, err)
	assert.Equal(t, int32(1), fresh.calls.Load())
	assert.False(t, forced.Hit)

	after, err := c.Fetch(ctx, key, old.fetch, false)
	require.NoError(t, err)
	assert.True(t, after.Hit)
	assert.JSONEq(t, `["new"]`, string(after.Data))
	assert.True(t, forced.Time.Equal(after.Time))
	assert.Equal(t, int32(1), old.calls.Load())
}

func TestFetch_FailureIsNotCached(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(kvstore.NewMemory())
	key := Key{Operation: "get_cos_list"}

	failing := &countingFetch{err: domerrors.NewUpstreamError("get_cos_list", 502, nil)}
	entry, err := c.Fetch(ctx, key, failing.fetch, false)
	require.Error(t, err)
	assert.True(t, domerrors.IsUpstreamUnavailable(err))
	assert.Nil(t, entry.Data)
	assert.False(t, entry.Time.IsZero())

	_, ok := stored(ctx, c, key)
	assert.False(t, ok, "failed fetch must not be stored")

	// A forced refresh that fails keeps the previous good entry.
	good := &countingFetch{payload: `{"ok":true}`}
	_, err = c.Fetch(ctx, key, good.fetch, false)
	require.NoError(t, err)
	_, err = c.Fetch(ctx, key, failing.fetch, true)
	require.Error(t, err)

	prev, ok := stored(ctx, c, key)
	require.True(t, ok)
	assert.JSONEq(t, `{"ok":true}`, string(prev.Data))
}

func TestFetch_ReadErrorIsMiss(t *testing.T) {
	store := &flakyStore{Store: kvstore.NewMemory(), failGet: true}
	c := newTestCache(store)
	f := &countingFetch{payload: `1`}

	for range 2 {
		entry, err := c.Fetch(context.Background(), Key{Operation: "get_acysem"}, f.fetch, false)
		require.NoError(t, err)
		assert.JSONEq(t, `1`, string(entry.Data))
	}
	assert.Equal(t, int32(2), f.calls.Load())
}

func TestFetch_WriteErrorIsSwallowed(t *testing.T) {
	store := &flakyStore{Store: kvstore.NewMemory(), failSet: true}
	c := newTestCache(store)
	f := &countingFetch{payload: `{"courses":[]}`}

	entry, err := c.Fetch(context.Background(), Key{Operation: "get_cos_list"}, f.fetch, false)
	require.NoError(t, err)
	assert.JSONEq(t, `{"courses":[]}`, string(entry.Data))
}

func TestFetch_CorruptEntryIsMiss(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemory()
	key := Key{Operation: "get_acysem"}
	require.NoError(t, store.Set(ctx, key.String(), "not json"))

	f := &countingFetch{payload: `[]`}
	entry, err := newTestCache(store).Fetch(ctx, key, f.fetch, false)
	require.NoError(t, err)
	assert.False(t, entry.Hit)
	assert.Equal(t, int32(1), f.calls.Load())
}

func TestFetch_ContextErrorFromFetch(t *testing.T) {
	c := newTestCache(kvstore.NewMemory())
	_, err := c.Fetch(context.Background(), Key{Operation: "get_dep"}, func(context.Context) (json.RawMessage, error) {
		return nil, context.Canceled
	}, false)
	assert.True(t, errors.Is(err, context.Canceled))
}
