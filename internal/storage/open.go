// Package storage opens the configured key/value driver.
package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/redis/go-redis/v9"

	"github.com/custompc-tech/storefront/backend/internal/config"
	"github.com/custompc-tech/storefront/backend/internal/storage/kv"
)

// Open creates the store selected by cfg.Driver.
func Open(cfg config.StoreConfig) (kv.Store, error) {
	var opts []kv.StoreOption
	switch cfg.Driver {
	case kv.StoreTypePebble, kv.StoreTypeSQLite:
		path := cfg.Path
		if cfg.Driver == kv.StoreTypeSQLite && filepath.Ext(path) == "" {
			path += ".db"
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
		opts = append(opts, kv.WithPath(path))
	case kv.StoreTypeRedis:
		opts = append(opts,
			kv.WithRedisClient(redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})),
			kv.WithKeyPrefix(cfg.KeyPrefix),
		)
	}

	store, err := kv.NewStore(cfg.Driver, opts...)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Driver, err)
	}
	return store, nil
}
