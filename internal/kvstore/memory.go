package kvstore

import (
	"context"

	"github.com/patrickmn/go-cache"
)

// MemoryStore keeps entries in process memory. Contents are lost on restart.
type MemoryStore struct {
	cache *cache.Cache
}

// NewMemory creates an empty in-process store with no expiration and no janitor.
func NewMemory() *MemoryStore {
	return &MemoryStore{cache: cache.New(cache.NoExpiration, 0)}
}

// Get returns the value stored under key.
func (s *MemoryStore) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, unavailable("get", err)
	}
	v, ok := s.cache.Get(key)
	if !ok {
		return "", false, nil
	}
	return v.(string), true, nil
}

// Set stores value under key.
func (s *MemoryStore) Set(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return unavailable("set", err)
	}
	s.cache.Set(key, value, cache.NoExpiration)
	return nil
}

// Count returns the number of stored keys.
func (s *MemoryStore) Count(context.Context) (int, error) {
	return s.cache.ItemCount(), nil
}

// Ping always succeeds.
func (s *MemoryStore) Ping(context.Context) error {
	return nil
}

// Close drops every entry.
func (s *MemoryStore) Close() error {
	s.cache.Flush()
	return nil
}
