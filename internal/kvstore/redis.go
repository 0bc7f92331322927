package kvstore

import (
	"context"
	"errors"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"

	"github.com/garyellow/nycu-course-go/internal/config"
)

// RedisOptions configures a RedisStore.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// RedisStore keeps entries in Redis as plain string values.
type RedisStore struct {
	client *goredis.Client
}

// NewRedis creates a Redis-backed store and pings it once. An unreachable
// server is logged, not returned: the client reconnects on its own, and until
// then reads miss and writes fail with ErrCacheUnavailable.
func NewRedis(ctx context.Context, opts RedisOptions) *RedisStore {
	client := goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, config.StorePing)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		slog.WarnContext(ctx, "Redis unreachable, serving without cache until it recovers",
			"addr", opts.Addr, "error", err)
	}

	return &RedisStore{client: client}
}

// Get returns the value stored under key.
func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, goredis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, unavailable("get", err)
	}
	return value, true, nil
}

// Set stores value under key with no expiration.
func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, key, value, 0).Err(); err != nil {
		return unavailable("set", err)
	}
	return nil
}

// Ping checks the connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

// Close closes the client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
