package kv

import "github.com/redis/go-redis/v9"

// StoreOption configures NewStore.
type StoreOption func(*storeConfig)

type storeConfig struct {
	path        string
	redisClient *redis.Client
	keyPrefix   string
}

// WithPath sets the on-disk location for the pebble and sqlite drivers.
func WithPath(path string) StoreOption {
	return func(c *storeConfig) {
		c.path = path
	}
}

// WithRedisClient sets the client used by the redis driver.
func WithRedisClient(client *redis.Client) StoreOption {
	return func(c *storeConfig) {
		c.redisClient = client
	}
}

// WithKeyPrefix namespaces every redis key, e.g. "custompc:".
func WithKeyPrefix(prefix string) StoreOption {
	return func(c *storeConfig) {
		c.keyPrefix = prefix
	}
}
