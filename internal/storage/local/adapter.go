// Package local reads and writes JSON records in the process-wide key/value
// store used by the fallback path. Decode failures are logged and surface as
// empty values, never as errors.
package local

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"

	"github.com/custompc-tech/storefront/backend/internal/storage/kv"
)

// Adapter wraps a kv.Store with typed JSON helpers.
type Adapter struct {
	store  kv.Store
	prefix string
}

// New creates an adapter over store.
func New(store kv.Store) *Adapter {
	return &Adapter{store: store}
}

// Scoped returns an adapter whose keys live under the given client id,
// the server-side stand-in for one browser's storage.
func (a *Adapter) Scoped(clientID string) *Adapter {
	return &Adapter{store: a.store, prefix: a.prefix + "client:" + clientID + ":"}
}

func (a *Adapter) key(k string) string {
	return a.prefix + k
}

// Keys lists keys below prefix, relative to this adapter's scope.
func (a *Adapter) Keys(ctx context.Context, prefix string) ([]string, error) {
	keys, err := a.store.Keys(ctx, a.key(prefix))
	if err != nil {
		return nil, err
	}
	for i, k := range keys {
		keys[i] = k[len(a.prefix):]
	}
	return keys, nil
}

// ReadList decodes the JSON array stored under key. A missing key, a read
// failure or corrupt data all yield an empty slice.
func ReadList[T any](ctx context.Context, a *Adapter, key string) []T {
	raw, err := a.store.Get(ctx, a.key(key))
	if err != nil {
		log.Printf("[local] read %s failed: %v", key, err)
		return []T{}
	}
	if len(raw) == 0 {
		return []T{}
	}
	var items []T
	if err := json.Unmarshal(raw, &items); err != nil {
		log.Printf("[local] corrupt data under %s, treating as empty: %v", key, err)
		return []T{}
	}
	if items == nil {
		return []T{}
	}
	return items
}

// WriteList replaces the array stored under key.
func WriteList[T any](ctx context.Context, a *Adapter, key string, items []T) error {
	if items == nil {
		items = []T{}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := a.store.Set(ctx, a.key(key), raw); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

// ReadValue decodes a single JSON value. ok is false when the key is missing
// or unreadable.
func ReadValue[T any](ctx context.Context, a *Adapter, key string) (value T, ok bool) {
	raw, err := a.store.Get(ctx, a.key(key))
	if err != nil {
		log.Printf("[local] read %s failed: %v", key, err)
		return value, false
	}
	if len(raw) == 0 {
		return value, false
	}
	if err := json.Unmarshal(raw, &value); err != nil {
		log.Printf("[local] corrupt data under %s, treating as empty: %v", key, err)
		var zero T
		return zero, false
	}
	return value, true
}

// WriteValue stores a single JSON value.
func WriteValue[T any](ctx context.Context, a *Adapter, key string, value T) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := a.store.Set(ctx, a.key(key), raw); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

// ReadInt reads an integer stored as a decimal string. Missing or invalid
// values read as zero.
func (a *Adapter) ReadInt(ctx context.Context, key string) int64 {
	raw, err := a.store.Get(ctx, a.key(key))
	if err != nil {
		log.Printf("[local] read %s failed: %v", key, err)
		return 0
	}
	if len(raw) == 0 {
		return 0
	}
	n, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		log.Printf("[local] invalid integer under %s: %v", key, err)
		return 0
	}
	return n
}

// WriteInt stores n as a decimal string.
func (a *Adapter) WriteInt(ctx context.Context, key string, n int64) error {
	if err := a.store.Set(ctx, a.key(key), []byte(strconv.FormatInt(n, 10))); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

// Remove deletes key.
func (a *Adapter) Remove(ctx context.Context, key string) error {
	if err := a.store.Delete(ctx, a.key(key)); err != nil {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return nil
}
