// Package kvstore provides the string key-value store shared by the
// response cache, the name index and the department lists.
//
// Three backends exist: redis (the default for multi-instance deployments),
// an embedded SQLite file and an in-process map. All of them keep entries
// forever; nothing expires.
package kvstore

import (
	"context"
	"fmt"

	"github.com/garyellow/nycu-course-go/internal/config"
	domerrors "github.com/garyellow/nycu-course-go/internal/errors"
)

// Store is a string key-value store.
// Get reports a missing key as ok=false with a nil error.
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Ping(ctx context.Context) error
	Close() error
}

var (
	_ Store = (*RedisStore)(nil)
	_ Store = (*SQLiteStore)(nil)
	_ Store = (*MemoryStore)(nil)
)

// Open builds the backend selected by cfg.StoreBackend. Only a SQLite file
// that cannot be opened is an error; an unreachable Redis is not.
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.StoreBackend {
	case config.StoreRedis:
		return NewRedis(ctx, RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}), nil
	case config.StoreSQLite:
		return NewSQLite(ctx, cfg.SQLitePath())
	case config.StoreMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

func unavailable(op string, err error) error {
	return fmt.Errorf("kvstore %s: %w: %w", op, domerrors.ErrCacheUnavailable, err)
}
