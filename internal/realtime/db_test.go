package realtime_test

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/custompc-tech/storefront/backend/internal/clock"
	"github.com/custompc-tech/storefront/backend/internal/ids"
	"github.com/custompc-tech/storefront/backend/internal/realtime"
)

var epoch = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func drivers(t *testing.T) map[string]realtime.DB {
	t.Helper()
	dbs := map[string]realtime.DB{
		"memory": realtime.NewMemoryDB(clock.NewFake(epoch)),
	}
	if addr := os.Getenv("TEST_REDIS_ADDR"); addr != "" {
		client := redis.NewClient(&redis.Options{Addr: addr})
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if client.Ping(ctx).Err() == nil {
			dbs["redis"] = realtime.NewRedisDB(client, "rttest:"+ids.Suffix()+":", clock.NewFake(epoch))
		}
	}
	t.Cleanup(func() {
		for _, db := range dbs {
			_ = db.Close()
		}
	})
	return dbs
}

func nextEvent(t *testing.T, ch <-chan realtime.Event) realtime.Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for event")
		return realtime.Event{}
	}
}

func TestSetGetResolvesServerTimestamp(t *testing.T) {
	ctx := context.Background()
	for name, db := range drivers(t) {
		t.Run(name, func(t *testing.T) {
			err := db.Set(ctx, "chats/c1", map[string]any{
				"id":        "c1",
				"createdAt": realtime.ServerTimestamp,
			})
			require.NoError(t, err)

			raw, err := db.Get(ctx, "chats/c1/createdAt")
			require.NoError(t, err)
			var ts int64
			require.NoError(t, json.Unmarshal(raw, &ts))
			require.Positive(t, ts)
			if name == "memory" {
				require.Equal(t, epoch.UnixMilli(), ts)
			}

			raw, err = db.Get(ctx, "chats/missing")
			require.NoError(t, err)
			require.Nil(t, raw)
		})
	}
}

func TestUpdateAndRemove(t *testing.T) {
	ctx := context.Background()
	for name, db := range drivers(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, db.Set(ctx, "activeUsers/u1", map[string]any{"username": "a"}))
			require.NoError(t, db.Update(ctx, "activeUsers/u1", map[string]any{
				"page":       "/builds",
				"meta/agent": "test",
			}))

			raw, err := db.Get(ctx, "activeUsers")
			require.NoError(t, err)
			require.JSONEq(t, `{"u1":{"username":"a","page":"/builds","meta":{"agent":"test"}}}`, string(raw))

			require.NoError(t, db.Remove(ctx, "activeUsers/u1"))
			raw, err = db.Get(ctx, "activeUsers")
			require.NoError(t, err)
			require.Nil(t, raw)
		})
	}
}

func TestListenReportsExistingThenNewChildren(t *testing.T) {
	ctx := context.Background()
	for name, db := range drivers(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, db.Set(ctx, "chats/c1/messages/m1", map[string]any{"text": "hi"}))

			events := make(chan realtime.Event, 16)
			unsubscribe, err := db.Listen(ctx, "chats/c1/messages", func(ev realtime.Event) {
				events <- ev
			})
			require.NoError(t, err)
			defer unsubscribe()

			ev := nextEvent(t, events)
			require.Equal(t, realtime.ChildAdded, ev.Type)
			require.Equal(t, "m1", ev.Key)

			require.NoError(t, db.Set(ctx, "chats/c1/messages/m2", map[string]any{"text": "there"}))
			ev = nextEvent(t, events)
			require.Equal(t, realtime.ChildAdded, ev.Type)
			require.Equal(t, "m2", ev.Key)
			require.JSONEq(t, `{"text":"there"}`, string(ev.Value))

			require.NoError(t, db.Update(ctx, "chats/c1/messages/m2", map[string]any{"read": true}))
			ev = nextEvent(t, events)
			require.Equal(t, realtime.ChildChanged, ev.Type)
			require.Equal(t, "m2", ev.Key)

			unsubscribe()
			unsubscribe()
			require.NoError(t, db.Set(ctx, "chats/c1/messages/m3", map[string]any{"text": "late"}))
			select {
			case ev := <-events:
				t.Fatalf("event after unsubscribe: %+v", ev)
			case <-time.After(100 * time.Millisecond):
			}
		})
	}
}

func TestMemoryDBOffline(t *testing.T) {
	db := realtime.NewMemoryDB(clock.NewFake(epoch))
	db.SetOnline(false)

	err := db.Set(context.Background(), "chats/c1", map[string]any{"id": "c1"})
	require.ErrorIs(t, err, realtime.ErrUnavailable)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, db.WaitConnected(ctx), context.DeadlineExceeded)

	db.SetOnline(true)
	require.NoError(t, db.WaitConnected(context.Background()))
}

func TestInvalidPath(t *testing.T) {
	db := realtime.NewMemoryDB(nil)
	_, err := db.Get(context.Background(), "chats/bad.key")
	require.ErrorIs(t, err, realtime.ErrInvalidPath)
	_, err = db.Get(context.Background(), "/")
	require.ErrorIs(t, err, realtime.ErrInvalidPath)
}
