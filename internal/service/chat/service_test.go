package chat_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/custompc-tech/storefront/backend/internal/model/chat"
	chatsvc "github.com/custompc-tech/storefront/backend/internal/service/chat"
	"github.com/custompc-tech/storefront/backend/internal/storage/local"
)

func TestServiceWithoutRemoteUsesLocal(t *testing.T) {
	f := newFixture(t)
	svc := chatsvc.NewService(f.local)
	ctx := context.Background()

	if svc.Connect(ctx) {
		t.Fatal("expected Connect to report no remote")
	}

	id, err := svc.CreateSession(ctx, chat.NewSession{UserName: "J"})
	if err != nil {
		t.Fatalf("CreateSession err: %v", err)
	}

	got, err := svc.GetSession(ctx, id)
	if err != nil {
		t.Fatalf("GetSession err: %v", err)
	}
	if got.ID != id || got.UserName != "J" {
		t.Fatalf("unexpected session: %+v", got)
	}
}

func TestServiceGetSessionNotFound(t *testing.T) {
	f := newFixture(t)
	svc := chatsvc.NewService(f.local, chatsvc.WithRemote(f.remote, f.remote))
	ctx := context.Background()
	svc.Connect(ctx)

	if _, err := svc.GetSession(ctx, "missing"); !errors.Is(err, chatsvc.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestServiceConnectTimeoutStaysLocal(t *testing.T) {
	f := newFixture(t)
	f.db.SetOnline(false)
	svc := chatsvc.NewService(f.local,
		chatsvc.WithRemote(f.remote, f.remote),
		chatsvc.WithConnectTimeout(20*time.Millisecond))
	ctx := context.Background()

	if svc.Connect(ctx) {
		t.Fatal("expected Connect to time out")
	}

	// coming back online later does not promote the service
	f.db.SetOnline(true)
	id, err := svc.CreateSession(ctx, chat.NewSession{UserName: "J"})
	if err != nil {
		t.Fatalf("CreateSession err: %v", err)
	}
	sessions := local.ReadList[chat.Session](ctx, f.store, local.KeyChatSessions)
	if len(sessions) != 1 || sessions[0].ID != id {
		t.Fatalf("expected session in local store, got %+v", sessions)
	}
	if raw, _ := f.db.Get(ctx, "chats"); raw != nil {
		t.Fatalf("expected nothing written remotely, got %s", raw)
	}
}

func TestServiceFallsBackPerCallWithoutDemotion(t *testing.T) {
	f := newFixture(t)
	metrics := chatsvc.NewMetrics(prometheus.NewRegistry())
	svc := chatsvc.NewService(f.local,
		chatsvc.WithRemote(f.remote, f.remote),
		chatsvc.WithMetrics(metrics))
	ctx := context.Background()

	if !svc.Connect(ctx) {
		t.Fatal("expected remote to connect")
	}

	f.db.SetOnline(false)
	localID, err := svc.CreateSession(ctx, chat.NewSession{UserName: "offline"})
	if err != nil {
		t.Fatalf("CreateSession during outage err: %v", err)
	}
	if !svc.Initialized() {
		t.Fatal("service demoted itself after a remote failure")
	}

	f.db.SetOnline(true)
	remoteID, err := svc.CreateSession(ctx, chat.NewSession{UserName: "online"})
	if err != nil {
		t.Fatalf("CreateSession after outage err: %v", err)
	}
	if raw, _ := f.db.Get(ctx, "chats/"+remoteID); raw == nil {
		t.Fatalf("expected %s in the remote tree", remoteID)
	}

	// a chat created during the outage is still reachable through the fallback
	msg, err := svc.SendMessage(ctx, localID, chat.Message{Text: "still here"})
	if err != nil {
		t.Fatalf("SendMessage to local chat err: %v", err)
	}
	if msg.ChatID != localID {
		t.Fatalf("unexpected message %+v", msg)
	}

	calls := metrics.Calls()
	if got := testutil.ToFloat64(calls.WithLabelValues("create_session", "fallback")); got != 1 {
		t.Fatalf("create_session fallback count = %v", got)
	}
	if got := testutil.ToFloat64(calls.WithLabelValues("create_session", "remote")); got != 1 {
		t.Fatalf("create_session remote count = %v", got)
	}
	if got := testutil.ToFloat64(calls.WithLabelValues("send_message", "fallback")); got != 1 {
		t.Fatalf("send_message fallback count = %v", got)
	}
}

func TestServiceRejectsEmptyMessageWithoutFallback(t *testing.T) {
	f := newFixture(t)
	metrics := chatsvc.NewMetrics(prometheus.NewRegistry())
	svc := chatsvc.NewService(f.local,
		chatsvc.WithRemote(f.remote, f.remote),
		chatsvc.WithMetrics(metrics))
	ctx := context.Background()
	if !svc.Connect(ctx) {
		t.Fatal("expected remote to connect")
	}

	id, err := svc.CreateSession(ctx, chat.NewSession{UserName: "J"})
	if err != nil {
		t.Fatalf("CreateSession err: %v", err)
	}
	if _, err := svc.SendMessage(ctx, id, chat.Message{}); !errors.Is(err, chatsvc.ErrEmptyMessage) {
		t.Fatalf("SendMessage err = %v, want ErrEmptyMessage", err)
	}

	calls := metrics.Calls()
	for _, path := range []string{"remote", "fallback", "local"} {
		if got := testutil.ToFloat64(calls.WithLabelValues("send_message", path)); got != 0 {
			t.Fatalf("send_message %s count = %v, want 0", path, got)
		}
	}
	msgs, err := svc.LoadTranscript(ctx, id)
	if err != nil {
		t.Fatalf("LoadTranscript err: %v", err)
	}
	if len(msgs) != 0 {
		t.Fatalf("expected empty transcript, got %+v", msgs)
	}
}

func TestServiceMarkReadReachesLocalOnlyChat(t *testing.T) {
	f := newFixture(t)
	svc := chatsvc.NewService(f.local, chatsvc.WithRemote(f.remote, f.remote))
	ctx := context.Background()
	if !svc.Connect(ctx) {
		t.Fatal("expected remote to connect")
	}

	f.db.SetOnline(false)
	localID, err := svc.CreateSession(ctx, chat.NewSession{UserName: "offline"})
	if err != nil {
		t.Fatalf("CreateSession during outage err: %v", err)
	}
	f.db.SetOnline(true)

	if err := svc.MarkChatAsRead(ctx, localID, "admin"); err != nil {
		t.Fatalf("MarkChatAsRead err: %v", err)
	}
	s, err := f.local.GetSession(ctx, localID)
	if err != nil {
		t.Fatalf("local GetSession err: %v", err)
	}
	if _, ok := s.ReadBy["admin"]; !ok {
		t.Fatalf("expected local readBy entry, got %+v", s.ReadBy)
	}
	if raw, _ := f.db.Get(ctx, "chats/"+localID); raw != nil {
		t.Fatalf("mark-read created %s in the remote tree", localID)
	}

	if err := svc.MarkChatAsRead(ctx, "does-not-exist", "admin"); err != nil {
		t.Fatalf("MarkChatAsRead on missing chat err: %v", err)
	}
	if _, err := svc.GetSession(ctx, "does-not-exist"); !errors.Is(err, chatsvc.ErrSessionNotFound) {
		t.Fatalf("GetSession err = %v, want ErrSessionNotFound", err)
	}
}

func TestServiceLocalScenarioWithRemoteDown(t *testing.T) {
	f := newFixture(t)
	f.db.SetOnline(false)
	svc := chatsvc.NewService(f.local,
		chatsvc.WithRemote(f.remote, f.remote),
		chatsvc.WithConnectTimeout(10*time.Millisecond))
	ctx := context.Background()
	svc.Connect(ctx)

	id, err := svc.CreateSession(ctx, chat.NewSession{UserName: "J"})
	if err != nil {
		t.Fatalf("CreateSession err: %v", err)
	}
	f.clock.Advance(time.Second)
	msg, err := svc.SendMessage(ctx, id, chat.Message{Type: chat.MessageTypeUser, Text: "hi"})
	if err != nil {
		t.Fatalf("SendMessage err: %v", err)
	}
	if msg.Timestamp == 0 {
		t.Fatal("expected message timestamp")
	}

	active, err := svc.ActiveChats(ctx)
	if err != nil {
		t.Fatalf("ActiveChats err: %v", err)
	}
	if len(active) != 1 || active[0].ID != id || active[0].LastActivity != msg.Timestamp {
		t.Fatalf("unexpected active chats %+v", active)
	}
}
