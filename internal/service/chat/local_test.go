package chat_test

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/custompc-tech/storefront/backend/internal/model/chat"
	"github.com/custompc-tech/storefront/backend/internal/model/presence"
	chatsvc "github.com/custompc-tech/storefront/backend/internal/service/chat"
	"github.com/custompc-tech/storefront/backend/internal/storage/local"
	"github.com/custompc-tech/storefront/backend/internal/watch"
)

func TestLocalSessionLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id, err := f.local.CreateSession(ctx, chat.NewSession{UserName: "J"})
	require.NoError(t, err)
	require.Regexp(t, regexp.MustCompile(`^chat_\d+_[0-9a-z]+$`), id)

	f.clock.Advance(time.Minute)
	msg, err := f.local.SendMessage(ctx, id, chat.Message{Type: chat.MessageTypeUser, Text: "hi"})
	require.NoError(t, err)
	require.Equal(t, epoch.Add(time.Minute).UnixMilli(), msg.Timestamp)
	require.Regexp(t, `^msg_\d+_[0-9a-z]+$`, msg.ID)
	require.Equal(t, chat.AnonymousSender, msg.Username)

	active, err := f.local.ActiveChats(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.Equal(t, id, active[0].ID)
	require.Equal(t, msg.Timestamp, active[0].LastActivity)
	require.GreaterOrEqual(t, active[0].LastActivity, active[0].CreatedAt)
	require.Equal(t, chat.AnonymousUserID, active[0].UserID)
}

func TestLocalAppendOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id, err := f.local.CreateSession(ctx, chat.NewSession{})
	require.NoError(t, err)
	for _, text := range []string{"A", "B"} {
		_, err := f.local.SendMessage(ctx, id, chat.Message{Text: text})
		require.NoError(t, err)
	}

	first, err := f.local.LoadTranscript(ctx, id)
	require.NoError(t, err)
	second, err := f.local.LoadTranscript(ctx, id)
	require.NoError(t, err)
	require.Equal(t, first, second)

	_, err = f.local.SendMessage(ctx, id, chat.Message{Text: "M"})
	require.NoError(t, err)
	msgs, err := f.local.LoadTranscript(ctx, id)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	require.Equal(t, []string{"A", "B", "M"}, []string{msgs[0].Text, msgs[1].Text, msgs[2].Text})
}

func TestLocalSendToMissingSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.local.SendMessage(ctx, "chat_missing", chat.Message{Text: "hello"})
	require.True(t, errors.Is(err, chatsvc.ErrSessionNotFound))

	sessions := local.ReadList[chat.Session](ctx, f.store, local.KeyChatSessions)
	require.Empty(t, sessions)
}

func TestLocalActiveChatsWindowAndOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	stale, err := f.local.CreateSession(ctx, chat.NewSession{UserName: "old"})
	require.NoError(t, err)
	f.clock.Advance(20 * time.Hour)
	older, err := f.local.CreateSession(ctx, chat.NewSession{UserName: "older"})
	require.NoError(t, err)
	f.clock.Advance(time.Hour)
	newer, err := f.local.CreateSession(ctx, chat.NewSession{UserName: "newer"})
	require.NoError(t, err)
	f.clock.Advance(4 * time.Hour)

	active, err := f.local.ActiveChats(ctx)
	require.NoError(t, err)
	ids := make([]string, len(active))
	for i, s := range active {
		ids[i] = s.ID
	}
	require.Equal(t, []string{newer, older}, ids)
	require.NotContains(t, ids, stale)
}

func TestLocalMarkChatAsRead(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.local.MarkChatAsRead(ctx, "chat_missing", "admin"))

	id, err := f.local.CreateSession(ctx, chat.NewSession{})
	require.NoError(t, err)
	f.clock.Advance(time.Second)
	require.NoError(t, f.local.MarkChatAsRead(ctx, id, "Minty-Komodo"))

	s, err := f.local.GetSession(ctx, id)
	require.NoError(t, err)
	require.Equal(t, epoch.Add(time.Second).UnixMilli(), s.ReadBy["Minty-Komodo"])
}

func TestLocalListenForMessagesEmitsOnlyNew(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id, err := f.local.CreateSession(ctx, chat.NewSession{})
	require.NoError(t, err)
	_, err = f.local.SendMessage(ctx, id, chat.Message{Text: "before"})
	require.NoError(t, err)

	got := make(chan chat.Message, 8)
	cancel, err := f.local.ListenForMessages(ctx, id, func(m chat.Message) { got <- m })
	require.NoError(t, err)
	defer cancel()

	_, err = f.local.SendMessage(ctx, id, chat.Message{Text: "one", Type: chat.MessageTypeAdmin})
	require.NoError(t, err)
	_, err = f.local.SendMessage(ctx, id, chat.Message{Text: "two"})
	require.NoError(t, err)
	f.clock.Advance(watch.MessageInterval)

	require.Equal(t, "one", waitFor(t, got).Text)
	require.Equal(t, "two", waitFor(t, got).Text)
	select {
	case m := <-got:
		t.Fatalf("unexpected extra message %+v", m)
	case <-time.After(50 * time.Millisecond):
	}

	_, err = f.local.ListenForMessages(ctx, "chat_missing", func(chat.Message) {})
	require.ErrorIs(t, err, chatsvc.ErrSessionNotFound)
}

func TestLocalListenForNewChats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.local.CreateSession(ctx, chat.NewSession{UserName: "existing"})
	require.NoError(t, err)

	got := make(chan chat.Session, 4)
	cancel, err := f.local.ListenForNewChats(ctx, func(s chat.Session) { got <- s })
	require.NoError(t, err)
	defer cancel()

	id, err := f.local.CreateSession(ctx, chat.NewSession{UserName: "fresh"})
	require.NoError(t, err)
	f.clock.Advance(watch.SessionInterval)

	require.Equal(t, id, waitFor(t, got).ID)
}

func TestLocalUserHistoryAndMessages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id, err := f.local.CreateSession(ctx, chat.NewSession{UserID: "sam", UserName: "Sam", Source: "Quote request"})
	require.NoError(t, err)
	f.clock.Advance(time.Second)
	_, err = f.local.SendMessage(ctx, id, chat.Message{Type: chat.MessageTypeAdmin, Text: "Thanks, Sam"})
	require.NoError(t, err)

	history, err := f.local.UserChatHistory(ctx, "sam")
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, "Quote request", history[0].Title)
	require.Equal(t, epoch.Add(time.Second).UnixMilli(), history[0].LastActivity)

	got := make(chan []chat.Message, 2)
	cancel, err := f.local.ListenForUserMessages(ctx, "sam", func(msgs []chat.Message) { got <- msgs })
	require.NoError(t, err)
	defer cancel()

	f.clock.Advance(watch.MessageInterval)
	msgs := waitFor(t, got)
	require.Len(t, msgs, 1)
	require.Equal(t, id, msgs[0].ChatID)
}

func TestLocalPresence(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.local.RegisterActiveUser(ctx, presence.ActiveUser{SessionID: "user_1", Username: "ada", Page: "/"}))
	f.clock.Advance(299 * time.Second)
	require.NoError(t, f.local.RegisterActiveUser(ctx, presence.ActiveUser{SessionID: "user_2", Username: "bob"}))

	users, err := f.local.ActiveUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)

	f.clock.Advance(2 * time.Second)
	users, err = f.local.ActiveUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	require.Equal(t, "user_2", users[0].SessionID)

	require.NoError(t, f.local.UpdateUserPresence(ctx, presence.ActiveUser{SessionID: "user_1", Page: "/builds"}))
	users, err = f.local.ActiveUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	require.Equal(t, "ada", users[0].Username)
	require.Equal(t, "/builds", users[0].Page)

	require.NoError(t, f.local.RemoveActiveUser(ctx, "user_1"))
	users, err = f.local.ActiveUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
}

func TestLocalAdminChats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id, err := f.local.CreateAdminChat(ctx, chat.AdminChat{TargetSessionID: "user_1", TargetUsername: "ada", AdminUsername: "Minty-Komodo"})
	require.NoError(t, err)
	require.Regexp(t, `^admin_chat_\d+_[0-9a-z]+$`, id)

	chats, err := f.local.AdminChats(ctx)
	require.NoError(t, err)
	require.Len(t, chats, 1)
	require.Equal(t, chat.StatusActive, chats[0].Status)
}
