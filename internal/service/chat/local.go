package chat

import (
	"context"
	"sort"
	"sync"

	"github.com/custompc-tech/storefront/backend/internal/clock"
	"github.com/custompc-tech/storefront/backend/internal/ids"
	"github.com/custompc-tech/storefront/backend/internal/model/chat"
	"github.com/custompc-tech/storefront/backend/internal/model/presence"
	"github.com/custompc-tech/storefront/backend/internal/storage/local"
	"github.com/custompc-tech/storefront/backend/internal/watch"
)

// LocalBackend keeps everything in the process-wide local store and emulates
// listeners by polling.
type LocalBackend struct {
	store   *local.Adapter
	clock   clock.Clock
	watcher *watch.PollingWatcher

	// serializes read-modify-write cycles inside this process
	mu sync.Mutex
}

// NewLocalBackend creates the fallback backend.
func NewLocalBackend(store *local.Adapter, c clock.Clock) *LocalBackend {
	if c == nil {
		c = clock.Real()
	}
	return &LocalBackend{store: store, clock: c, watcher: watch.NewPollingWatcher(c)}
}

func (b *LocalBackend) now() int64 {
	return clock.Millis(b.clock.Now())
}

func (b *LocalBackend) sessions(ctx context.Context) []chat.Session {
	return local.ReadList[chat.Session](ctx, b.store, local.KeyChatSessions)
}

func (b *LocalBackend) CreateSession(ctx context.Context, in chat.NewSession) (string, error) {
	in = in.WithDefaults()
	now := b.clock.Now()
	session := chat.Session{
		ID:           ids.New(ids.PrefixChat, now),
		UserID:       in.UserID,
		UserName:     in.UserName,
		UserEmail:    in.UserEmail,
		Source:       in.Source,
		CreatedAt:    clock.Millis(now),
		LastActivity: clock.Millis(now),
		Status:       chat.StatusActive,
		Messages:     []chat.Message{},
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	sessions := append(b.sessions(ctx), session)
	if err := local.WriteList(ctx, b.store, local.KeyChatSessions, sessions); err != nil {
		return "", err
	}

	if in.UserID != chat.AnonymousUserID {
		history := local.ReadList[chat.UserChat](ctx, b.store, local.KeyUserChats(in.UserID))
		history = append(history, chat.UserChat{
			ChatID:       session.ID,
			Title:        chatTitle(in),
			CreatedAt:    session.CreatedAt,
			LastActivity: session.LastActivity,
			Status:       chat.StatusActive,
		})
		if err := local.WriteList(ctx, b.store, local.KeyUserChats(in.UserID), history); err != nil {
			return "", err
		}
	}
	return session.ID, nil
}

func (b *LocalBackend) GetSession(ctx context.Context, chatID string) (chat.Session, error) {
	for _, s := range b.sessions(ctx) {
		if s.ID == chatID {
			if s.Messages == nil {
				s.Messages = []chat.Message{}
			}
			return s, nil
		}
	}
	return chat.Session{}, ErrSessionNotFound
}

func (b *LocalBackend) SendMessage(ctx context.Context, chatID string, msg chat.Message) (chat.Message, error) {
	msg, err := normalizeMessage(msg)
	if err != nil {
		return chat.Message{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	sessions := b.sessions(ctx)
	idx := -1
	for i := range sessions {
		if sessions[i].ID == chatID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return chat.Message{}, ErrSessionNotFound
	}

	now := b.clock.Now()
	msg.ID = ids.New(ids.PrefixMessage, now)
	msg.ChatID = chatID
	msg.Timestamp = clock.Millis(now)

	session := &sessions[idx]
	session.Messages = append(session.Messages, msg)
	if msg.Timestamp > session.LastActivity {
		session.LastActivity = msg.Timestamp
	}
	if err := local.WriteList(ctx, b.store, local.KeyChatSessions, sessions); err != nil {
		return chat.Message{}, err
	}

	if session.UserID != "" && session.UserID != chat.AnonymousUserID {
		key := local.KeyUserChats(session.UserID)
		history := local.ReadList[chat.UserChat](ctx, b.store, key)
		for i := range history {
			if history[i].ChatID == chatID {
				history[i].LastActivity = session.LastActivity
			}
		}
		if err := local.WriteList(ctx, b.store, key, history); err != nil {
			return chat.Message{}, err
		}
	}
	return msg, nil
}

func (b *LocalBackend) LoadTranscript(ctx context.Context, chatID string) ([]chat.Message, error) {
	session, err := b.GetSession(ctx, chatID)
	if err != nil {
		return nil, err
	}
	return session.Messages, nil
}

func (b *LocalBackend) ListenForMessages(ctx context.Context, chatID string, fn func(chat.Message)) (CancelFunc, error) {
	if _, err := b.GetSession(ctx, chatID); err != nil {
		return nil, err
	}
	read := func() []chat.Message {
		msgs, _ := b.LoadTranscript(ctx, chatID)
		return msgs
	}
	cancel := watch.Subscribe(b.watcher, watch.MessageInterval, read, messageID, func(fresh []chat.Message) {
		for _, m := range fresh {
			fn(m)
		}
	})
	return bindContext(ctx, cancel), nil
}

func (b *LocalBackend) ActiveChats(ctx context.Context) ([]chat.Session, error) {
	return chat.FilterActive(b.sessions(ctx), b.clock.Now()), nil
}

func (b *LocalBackend) ListenForNewChats(ctx context.Context, fn func(chat.Session)) (CancelFunc, error) {
	read := func() []chat.Session {
		active, _ := b.ActiveChats(ctx)
		return active
	}
	cancel := watch.Subscribe(b.watcher, watch.SessionInterval, read, sessionID, func(fresh []chat.Session) {
		for _, s := range fresh {
			fn(s)
		}
	})
	return bindContext(ctx, cancel), nil
}

func (b *LocalBackend) MarkChatAsRead(ctx context.Context, chatID, readerID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	sessions := b.sessions(ctx)
	for i := range sessions {
		if sessions[i].ID != chatID {
			continue
		}
		if sessions[i].ReadBy == nil {
			sessions[i].ReadBy = map[string]int64{}
		}
		sessions[i].ReadBy[readerID] = b.now()
		return local.WriteList(ctx, b.store, local.KeyChatSessions, sessions)
	}
	return nil
}

func (b *LocalBackend) UserChatHistory(ctx context.Context, username string) ([]chat.UserChat, error) {
	history := local.ReadList[chat.UserChat](ctx, b.store, local.KeyUserChats(username))
	sort.SliceStable(history, func(i, j int) bool {
		return history[i].LastActivity > history[j].LastActivity
	})
	return history, nil
}

func (b *LocalBackend) userMessages(ctx context.Context, username string) []chat.Message {
	history := local.ReadList[chat.UserChat](ctx, b.store, local.KeyUserChats(username))
	byID := make(map[string]chat.Session)
	for _, s := range b.sessions(ctx) {
		byID[s.ID] = s
	}

	var out []chat.Message
	for _, h := range history {
		s, ok := byID[h.ChatID]
		if !ok {
			continue
		}
		for _, m := range s.Messages {
			m.ChatID = s.ID
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	return out
}

func (b *LocalBackend) ListenForUserMessages(ctx context.Context, username string, fn func([]chat.Message)) (CancelFunc, error) {
	cancel := b.watcher.Every(watch.MessageInterval, func() {
		fn(b.userMessages(ctx, username))
	})
	return bindContext(ctx, cancel), nil
}

func (b *LocalBackend) CreateAdminChat(ctx context.Context, in chat.AdminChat) (string, error) {
	now := b.clock.Now()
	in.ID = ids.New(ids.PrefixAdminChat, now)
	in.CreatedAt = clock.Millis(now)
	in.LastActivity = in.CreatedAt
	in.Status = chat.StatusActive
	if in.Messages == nil {
		in.Messages = []chat.Message{}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	chats := local.ReadList[chat.AdminChat](ctx, b.store, local.KeyAdminChats)
	chats = append(chats, in)
	if err := local.WriteList(ctx, b.store, local.KeyAdminChats, chats); err != nil {
		return "", err
	}
	return in.ID, nil
}

func (b *LocalBackend) AdminChats(ctx context.Context) ([]chat.AdminChat, error) {
	chats := local.ReadList[chat.AdminChat](ctx, b.store, local.KeyAdminChats)
	sort.SliceStable(chats, func(i, j int) bool { return chats[i].CreatedAt > chats[j].CreatedAt })
	return chats, nil
}

func (b *LocalBackend) RegisterActiveUser(ctx context.Context, u presence.ActiveUser) error {
	return b.upsertActiveUser(ctx, u, false)
}

// UpdateUserPresence refreshes lastSeen and the current page, registering
// the record again if it was dropped.
func (b *LocalBackend) UpdateUserPresence(ctx context.Context, u presence.ActiveUser) error {
	return b.upsertActiveUser(ctx, u, true)
}

func (b *LocalBackend) upsertActiveUser(ctx context.Context, u presence.ActiveUser, heartbeat bool) error {
	u.LastSeen = b.now()

	b.mu.Lock()
	defer b.mu.Unlock()

	users := local.ReadList[presence.ActiveUser](ctx, b.store, local.KeyActiveUsers)
	replaced := false
	for i := range users {
		if users[i].SessionID != u.SessionID {
			continue
		}
		if heartbeat {
			users[i].LastSeen = u.LastSeen
			if u.Page != "" {
				users[i].Page = u.Page
			}
		} else {
			users[i] = u
		}
		replaced = true
		break
	}
	if !replaced {
		users = append(users, u)
	}
	return local.WriteList(ctx, b.store, local.KeyActiveUsers, users)
}

func (b *LocalBackend) RemoveActiveUser(ctx context.Context, sessionID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	users := local.ReadList[presence.ActiveUser](ctx, b.store, local.KeyActiveUsers)
	kept := users[:0]
	for _, u := range users {
		if u.SessionID != sessionID {
			kept = append(kept, u)
		}
	}
	return local.WriteList(ctx, b.store, local.KeyActiveUsers, kept)
}

func (b *LocalBackend) ActiveUsers(ctx context.Context) ([]presence.ActiveUser, error) {
	users := local.ReadList[presence.ActiveUser](ctx, b.store, local.KeyActiveUsers)
	return presence.FilterActiveUsers(users, b.clock.Now()), nil
}

func (b *LocalBackend) ListenForActiveUsers(ctx context.Context, fn func([]presence.ActiveUser)) (CancelFunc, error) {
	cancel := b.watcher.Every(watch.SessionInterval, func() {
		users, _ := b.ActiveUsers(ctx)
		fn(users)
	})
	return bindContext(ctx, cancel), nil
}

func (b *LocalBackend) TrackVisitor(ctx context.Context, v presence.Visitor) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	visitors := local.ReadList[presence.Visitor](ctx, b.store, local.KeyVisitors)
	replaced := false
	for i := range visitors {
		if visitors[i].VisitorID == v.VisitorID {
			visitors[i] = v
			replaced = true
			break
		}
	}
	if !replaced {
		visitors = append(visitors, v)
	}
	return local.WriteList(ctx, b.store, local.KeyVisitors, visitors)
}

func (b *LocalBackend) Visitors(ctx context.Context) ([]presence.Visitor, error) {
	return local.ReadList[presence.Visitor](ctx, b.store, local.KeyVisitors), nil
}

func bindContext(ctx context.Context, cancel watch.CancelFunc) CancelFunc {
	stop := context.AfterFunc(ctx, cancel)
	return func() {
		stop()
		cancel()
	}
}

func messageID(m chat.Message) string { return m.ID }

func sessionID(s chat.Session) string { return s.ID }
