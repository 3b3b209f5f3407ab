package notify_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/custompc-tech/storefront/backend/internal/clock"
	"github.com/custompc-tech/storefront/backend/internal/model/chat"
	chatsvc "github.com/custompc-tech/storefront/backend/internal/service/chat"
	"github.com/custompc-tech/storefront/backend/internal/service/notify"
	"github.com/custompc-tech/storefront/backend/internal/storage/kv"
	"github.com/custompc-tech/storefront/backend/internal/storage/local"
	"github.com/custompc-tech/storefront/backend/internal/watch"
)

func newAdapter(t *testing.T) *local.Adapter {
	t.Helper()
	store, err := kv.NewStore(kv.StoreTypeMemory)
	require.NoError(t, err)
	return local.New(store)
}

func TestObserveCountsOnlyNewReplies(t *testing.T) {
	ctx := context.Background()
	n := notify.New(newAdapter(t))

	msgs := []chat.Message{
		{ID: "1", ChatID: "c1", Type: chat.MessageTypeUser, Timestamp: 100},
		{ID: "2", ChatID: "c1", Type: chat.MessageTypeAdmin, Timestamp: 200},
		{ID: "3", ChatID: "c2", Type: chat.MessageTypeAdmin, Timestamp: 150},
	}
	require.Equal(t, 2, n.Observe(ctx, "sam", msgs))
	require.Equal(t, int64(2), n.Unread(ctx, "sam"))

	// the next poll sees the same messages again
	require.Zero(t, n.Observe(ctx, "sam", msgs))
	require.Equal(t, int64(2), n.Unread(ctx, "sam"))

	msgs = append(msgs, chat.Message{ID: "4", ChatID: "c1", Type: chat.MessageTypeAdmin, Timestamp: 300})
	require.Equal(t, 1, n.Observe(ctx, "sam", msgs))
	require.Equal(t, int64(3), n.Unread(ctx, "sam"))

	require.NoError(t, n.MarkRead(ctx, "sam"))
	require.Zero(t, n.Unread(ctx, "sam"))
	require.Zero(t, n.Observe(ctx, "sam", msgs))
}

func TestWatchReportsGrowingTotal(t *testing.T) {
	ctx := context.Background()
	adapter := newAdapter(t)
	fake := clock.NewFake(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	backend := chatsvc.NewLocalBackend(adapter, fake)
	n := notify.New(adapter)

	id, err := backend.CreateSession(ctx, chat.NewSession{UserID: "sam", UserName: "Sam"})
	require.NoError(t, err)

	totals := make(chan int64, 4)
	cancel, err := n.Watch(ctx, backend, "sam", func(total int64) { totals <- total })
	require.NoError(t, err)
	defer cancel()

	fake.Advance(time.Second)
	_, err = backend.SendMessage(ctx, id, chat.Message{Type: chat.MessageTypeAdmin, Text: "Your build ships Monday"})
	require.NoError(t, err)
	fake.Advance(watch.MessageInterval)

	select {
	case total := <-totals:
		require.Equal(t, int64(1), total)
	case <-time.After(2 * time.Second):
		t.Fatalf("no unread notification")
	}

	fake.Advance(watch.MessageInterval)
	select {
	case total := <-totals:
		t.Fatalf("unexpected second notification %d", total)
	case <-time.After(50 * time.Millisecond):
	}
}
