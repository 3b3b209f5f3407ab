package kv

import (
	"context"
	"errors"
)

var (
	ErrInvalidConfig    = errors.New("invalid store configuration")
	ErrInvalidStoreType = errors.New("invalid store type")
	ErrClosed           = errors.New("store closed")
)

// StoreType selects the driver behind a Store.
type StoreType string

const (
	StoreTypeMemory StoreType = "memory"
	StoreTypePebble StoreType = "pebble"
	StoreTypeRedis  StoreType = "redis"
	StoreTypeSQLite StoreType = "sqlite"
)

// Store is the process-wide key/value store behind the local fallback path.
type Store interface {
	// Get returns nil, nil when the key does not exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set replaces the value stored under key.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes the key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Keys lists every key starting with prefix, in ascending order.
	Keys(ctx context.Context, prefix string) ([]string, error)

	// Close releases the underlying resources.
	Close() error
}

// NewStore creates a Store for the given driver type.
// Pebble and SQLite require WithPath, Redis requires WithRedisClient.
func NewStore(storeType StoreType, opts ...StoreOption) (Store, error) {
	cfg := &storeConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	switch storeType {
	case StoreTypeMemory, "":
		return newMemoryStore(), nil
	case StoreTypePebble:
		if cfg.path == "" {
			return nil, ErrInvalidConfig
		}
		return openPebbleStore(cfg.path)
	case StoreTypeRedis:
		if cfg.redisClient == nil {
			return nil, ErrInvalidConfig
		}
		return newRedisStore(cfg.redisClient, cfg.keyPrefix), nil
	case StoreTypeSQLite:
		if cfg.path == "" {
			return nil, ErrInvalidConfig
		}
		return openSQLiteStore(cfg.path)
	default:
		return nil, ErrInvalidStoreType
	}
}
