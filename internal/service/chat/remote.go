package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/custompc-tech/storefront/backend/internal/clock"
	"github.com/custompc-tech/storefront/backend/internal/model/chat"
	"github.com/custompc-tech/storefront/backend/internal/model/presence"
	"github.com/custompc-tech/storefront/backend/internal/realtime"
)

const (
	pathChats       = "chats"
	pathUserChats   = "userChats"
	pathAdminChats  = "adminChats"
	pathActiveUsers = "activeUsers"
	pathVisitors    = "visitors"
)

// RemoteBackend stores chat data in the hosted realtime tree. Messages live
// under chats/<id>/messages keyed by push key, so read order is send order.
type RemoteBackend struct {
	db    realtime.DB
	clock clock.Clock
}

// NewRemoteBackend creates the hosted backend.
func NewRemoteBackend(db realtime.DB, c clock.Clock) *RemoteBackend {
	if c == nil {
		c = clock.Real()
	}
	return &RemoteBackend{db: db, clock: c}
}

// WaitConnected reports when the hosted tree is reachable.
func (b *RemoteBackend) WaitConnected(ctx context.Context) error {
	return b.db.WaitConnected(ctx)
}

type remoteSession struct {
	chat.Session
	Messages map[string]chat.Message `json:"messages"`
}

func (rs remoteSession) toSession(key string) chat.Session {
	s := rs.Session
	if s.ID == "" {
		s.ID = key
	}
	s.Messages = orderedMessages(rs.Messages, s.ID)
	return s
}

func orderedMessages(byKey map[string]chat.Message, chatID string) []chat.Message {
	keys := make([]string, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]chat.Message, 0, len(keys))
	for _, k := range keys {
		m := byKey[k]
		if m.ID == "" {
			m.ID = k
		}
		if m.ChatID == "" {
			m.ChatID = chatID
		}
		out = append(out, m)
	}
	return out
}

// withServerTime encodes v as a field map and stamps the named fields with
// the server timestamp sentinel.
func withServerTime(v any, fields ...string) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	for _, f := range fields {
		m[f] = realtime.ServerTimestamp
	}
	return m, nil
}

func decodeInto[T any](raw json.RawMessage) (T, error) {
	var out T
	if raw == nil {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("decode realtime value: %w", err)
	}
	return out, nil
}

func (b *RemoteBackend) CreateSession(ctx context.Context, in chat.NewSession) (string, error) {
	in = in.WithDefaults()
	key := b.db.GenerateKey()

	value, err := withServerTime(chat.Session{
		ID:        key,
		UserID:    in.UserID,
		UserName:  in.UserName,
		UserEmail: in.UserEmail,
		Source:    in.Source,
		Status:    chat.StatusActive,
	}, "createdAt", "lastActivity")
	if err != nil {
		return "", err
	}
	delete(value, "messages")

	if err := b.db.Set(ctx, pathChats+"/"+key, value); err != nil {
		return "", err
	}

	if in.UserID != chat.AnonymousUserID {
		entry, err := withServerTime(chat.UserChat{
			ChatID: key,
			Title:  chatTitle(in),
			Status: chat.StatusActive,
		}, "createdAt", "lastActivity")
		if err != nil {
			return "", err
		}
		if err := b.db.Set(ctx, pathUserChats+"/"+in.UserID+"/"+key, entry); err != nil {
			return "", err
		}
	}
	return key, nil
}

func (b *RemoteBackend) GetSession(ctx context.Context, chatID string) (chat.Session, error) {
	raw, err := b.db.Get(ctx, pathChats+"/"+chatID)
	if err != nil {
		return chat.Session{}, err
	}
	if raw == nil {
		return chat.Session{}, ErrSessionNotFound
	}
	rs, err := decodeInto[remoteSession](raw)
	if err != nil {
		return chat.Session{}, err
	}
	return rs.toSession(chatID), nil
}

func (b *RemoteBackend) SendMessage(ctx context.Context, chatID string, msg chat.Message) (chat.Message, error) {
	msg, err := normalizeMessage(msg)
	if err != nil {
		return chat.Message{}, err
	}
	session, err := b.GetSession(ctx, chatID)
	if err != nil {
		return chat.Message{}, err
	}

	key := b.db.GenerateKey()
	msg.ID = key
	msg.ChatID = chatID
	value, err := withServerTime(msg, "timestamp")
	if err != nil {
		return chat.Message{}, err
	}

	err = b.db.Update(ctx, pathChats+"/"+chatID, map[string]any{
		"messages/" + key: value,
		"lastActivity":    realtime.ServerTimestamp,
	})
	if err != nil {
		return chat.Message{}, err
	}

	if session.UserID != "" && session.UserID != chat.AnonymousUserID {
		err := b.db.Update(ctx, pathUserChats+"/"+session.UserID+"/"+chatID, map[string]any{
			"lastActivity": realtime.ServerTimestamp,
		})
		if err != nil {
			return chat.Message{}, err
		}
	}

	raw, err := b.db.Get(ctx, pathChats+"/"+chatID+"/messages/"+key)
	if err != nil {
		return chat.Message{}, err
	}
	return decodeInto[chat.Message](raw)
}

func (b *RemoteBackend) LoadTranscript(ctx context.Context, chatID string) ([]chat.Message, error) {
	session, err := b.GetSession(ctx, chatID)
	if err != nil {
		return nil, err
	}
	return session.Messages, nil
}

// ListenForMessages reports messages added after the call.
func (b *RemoteBackend) ListenForMessages(ctx context.Context, chatID string, fn func(chat.Message)) (CancelFunc, error) {
	existing, err := b.LoadTranscript(ctx, chatID)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(existing))
	for _, m := range existing {
		seen[m.ID] = true
	}

	unsubscribe, err := b.db.Listen(ctx, pathChats+"/"+chatID+"/messages", func(ev realtime.Event) {
		if ev.Type != realtime.ChildAdded || seen[ev.Key] {
			return
		}
		seen[ev.Key] = true
		msg, err := decodeInto[chat.Message](ev.Value)
		if err != nil {
			return
		}
		if msg.ID == "" {
			msg.ID = ev.Key
		}
		msg.ChatID = chatID
		fn(msg)
	})
	if err != nil {
		return nil, err
	}
	return CancelFunc(unsubscribe), nil
}

func (b *RemoteBackend) allSessions(ctx context.Context) ([]chat.Session, error) {
	raw, err := b.db.Get(ctx, pathChats)
	if err != nil {
		return nil, err
	}
	byKey, err := decodeInto[map[string]remoteSession](raw)
	if err != nil {
		return nil, err
	}
	sessions := make([]chat.Session, 0, len(byKey))
	for k, rs := range byKey {
		sessions = append(sessions, rs.toSession(k))
	}
	return sessions, nil
}

func (b *RemoteBackend) ActiveChats(ctx context.Context) ([]chat.Session, error) {
	sessions, err := b.allSessions(ctx)
	if err != nil {
		return nil, err
	}
	return chat.FilterActive(sessions, b.clock.Now()), nil
}

// ListenForNewChats reports sessions created after the call and activity on
// any active session.
func (b *RemoteBackend) ListenForNewChats(ctx context.Context, fn func(chat.Session)) (CancelFunc, error) {
	existing, err := b.allSessions(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(existing))
	for _, s := range existing {
		seen[s.ID] = true
	}

	unsubscribe, err := b.db.Listen(ctx, pathChats, func(ev realtime.Event) {
		if ev.Type == realtime.ChildRemoved {
			return
		}
		if ev.Type == realtime.ChildAdded && seen[ev.Key] {
			return
		}
		seen[ev.Key] = true
		rs, err := decodeInto[remoteSession](ev.Value)
		if err != nil {
			return
		}
		s := rs.toSession(ev.Key)
		if s.IsActive() {
			fn(s)
		}
	})
	if err != nil {
		return nil, err
	}
	return CancelFunc(unsubscribe), nil
}

// MarkChatAsRead returns ErrSessionNotFound for a missing chat instead of
// writing readBy, which would create a session node with no metadata.
func (b *RemoteBackend) MarkChatAsRead(ctx context.Context, chatID, readerID string) error {
	if _, err := b.GetSession(ctx, chatID); err != nil {
		return err
	}
	return b.db.Update(ctx, pathChats+"/"+chatID+"/readBy", map[string]any{
		readerID: realtime.ServerTimestamp,
	})
}

func (b *RemoteBackend) UserChatHistory(ctx context.Context, username string) ([]chat.UserChat, error) {
	raw, err := b.db.Get(ctx, pathUserChats+"/"+username)
	if err != nil {
		return nil, err
	}
	byKey, err := decodeInto[map[string]chat.UserChat](raw)
	if err != nil {
		return nil, err
	}
	history := make([]chat.UserChat, 0, len(byKey))
	for k, h := range byKey {
		if h.ChatID == "" {
			h.ChatID = k
		}
		history = append(history, h)
	}
	sort.SliceStable(history, func(i, j int) bool {
		return history[i].LastActivity > history[j].LastActivity
	})
	return history, nil
}

func (b *RemoteBackend) userMessages(ctx context.Context, username string) ([]chat.Message, error) {
	history, err := b.UserChatHistory(ctx, username)
	if err != nil {
		return nil, err
	}
	var out []chat.Message
	for _, h := range history {
		msgs, err := b.LoadTranscript(ctx, h.ChatID)
		if err != nil {
			continue
		}
		out = append(out, msgs...)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	return out, nil
}

func (b *RemoteBackend) ListenForUserMessages(ctx context.Context, username string, fn func([]chat.Message)) (CancelFunc, error) {
	unsubscribe, err := b.db.Listen(ctx, pathUserChats+"/"+username, func(realtime.Event) {
		msgs, err := b.userMessages(ctx, username)
		if err != nil {
			return
		}
		fn(msgs)
	})
	if err != nil {
		return nil, err
	}
	return CancelFunc(unsubscribe), nil
}

func (b *RemoteBackend) CreateAdminChat(ctx context.Context, in chat.AdminChat) (string, error) {
	key := b.db.GenerateKey()
	in.ID = key
	in.Status = chat.StatusActive
	in.Messages = nil
	value, err := withServerTime(in, "createdAt", "lastActivity")
	if err != nil {
		return "", err
	}
	if err := b.db.Set(ctx, pathAdminChats+"/"+key, value); err != nil {
		return "", err
	}
	return key, nil
}

type remoteAdminChat struct {
	chat.AdminChat
	Messages map[string]chat.Message `json:"messages"`
}

func (b *RemoteBackend) AdminChats(ctx context.Context) ([]chat.AdminChat, error) {
	raw, err := b.db.Get(ctx, pathAdminChats)
	if err != nil {
		return nil, err
	}
	byKey, err := decodeInto[map[string]remoteAdminChat](raw)
	if err != nil {
		return nil, err
	}
	chats := make([]chat.AdminChat, 0, len(byKey))
	for k, rc := range byKey {
		c := rc.AdminChat
		if c.ID == "" {
			c.ID = k
		}
		c.Messages = orderedMessages(rc.Messages, c.ID)
		chats = append(chats, c)
	}
	sort.SliceStable(chats, func(i, j int) bool { return chats[i].CreatedAt > chats[j].CreatedAt })
	return chats, nil
}

func (b *RemoteBackend) RegisterActiveUser(ctx context.Context, u presence.ActiveUser) error {
	value, err := withServerTime(u, "lastSeen")
	if err != nil {
		return err
	}
	return b.db.Set(ctx, pathActiveUsers+"/"+u.SessionID, value)
}

func (b *RemoteBackend) UpdateUserPresence(ctx context.Context, u presence.ActiveUser) error {
	fields := map[string]any{
		"sessionId": u.SessionID,
		"lastSeen":  realtime.ServerTimestamp,
	}
	if u.Page != "" {
		fields["page"] = u.Page
	}
	if u.Username != "" {
		fields["username"] = u.Username
		fields["isAdmin"] = u.IsAdmin
	}
	return b.db.Update(ctx, pathActiveUsers+"/"+u.SessionID, fields)
}

func (b *RemoteBackend) RemoveActiveUser(ctx context.Context, sessionID string) error {
	return b.db.Remove(ctx, pathActiveUsers+"/"+sessionID)
}

func (b *RemoteBackend) ActiveUsers(ctx context.Context) ([]presence.ActiveUser, error) {
	raw, err := b.db.Get(ctx, pathActiveUsers)
	if err != nil {
		return nil, err
	}
	byKey, err := decodeInto[map[string]presence.ActiveUser](raw)
	if err != nil {
		return nil, err
	}
	users := make([]presence.ActiveUser, 0, len(byKey))
	for k, u := range byKey {
		if u.SessionID == "" {
			u.SessionID = k
		}
		users = append(users, u)
	}
	return presence.FilterActiveUsers(users, b.clock.Now()), nil
}

func (b *RemoteBackend) ListenForActiveUsers(ctx context.Context, fn func([]presence.ActiveUser)) (CancelFunc, error) {
	unsubscribe, err := b.db.Listen(ctx, pathActiveUsers, func(realtime.Event) {
		users, err := b.ActiveUsers(ctx)
		if err != nil {
			return
		}
		fn(users)
	})
	if err != nil {
		return nil, err
	}
	return CancelFunc(unsubscribe), nil
}

func (b *RemoteBackend) TrackVisitor(ctx context.Context, v presence.Visitor) error {
	value, err := withServerTime(v, "lastUpdated")
	if err != nil {
		return err
	}
	return b.db.Set(ctx, pathVisitors+"/"+v.VisitorID, value)
}

func (b *RemoteBackend) Visitors(ctx context.Context) ([]presence.Visitor, error) {
	raw, err := b.db.Get(ctx, pathVisitors)
	if err != nil {
		return nil, err
	}
	byKey, err := decodeInto[map[string]presence.Visitor](raw)
	if err != nil {
		return nil, err
	}
	visitors := make([]presence.Visitor, 0, len(byKey))
	for k, v := range byKey {
		if v.VisitorID == "" {
			v.VisitorID = k
		}
		visitors = append(visitors, v)
	}
	return visitors, nil
}
