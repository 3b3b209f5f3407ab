package chat_test

import (
	"encoding/json"
	"sort"
	"testing"
	"time"

	"github.com/custompc-tech/storefront/backend/internal/clock"
	"github.com/custompc-tech/storefront/backend/internal/realtime"
	chatsvc "github.com/custompc-tech/storefront/backend/internal/service/chat"
	"github.com/custompc-tech/storefront/backend/internal/storage/kv"
	"github.com/custompc-tech/storefront/backend/internal/storage/local"
)

var epoch = time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

type fixture struct {
	clock  *clock.Fake
	store  *local.Adapter
	local  *chatsvc.LocalBackend
	db     *realtime.MemoryDB
	remote *chatsvc.RemoteBackend
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	kvStore, err := kv.NewStore(kv.StoreTypeMemory)
	if err != nil {
		t.Fatalf("NewStore err: %v", err)
	}
	fake := clock.NewFake(epoch)
	adapter := local.New(kvStore)
	db := realtime.NewMemoryDB(fake)
	t.Cleanup(func() { _ = db.Close() })

	return &fixture{
		clock:  fake,
		store:  adapter,
		local:  chatsvc.NewLocalBackend(adapter, fake),
		db:     db,
		remote: chatsvc.NewRemoteBackend(db, fake),
	}
}

// populatedFields lists the JSON fields of v that hold a non-empty value.
func populatedFields(t *testing.T, v any) []string {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	var keys []string
	for k, val := range m {
		switch x := val.(type) {
		case nil:
			continue
		case string:
			if x == "" {
				continue
			}
		case float64:
			if x == 0 {
				continue
			}
		case []any:
			if len(x) == 0 {
				continue
			}
		case map[string]any:
			if len(x) == 0 {
				continue
			}
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func waitFor[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for callback")
		var zero T
		return zero
	}
}
