package chat

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"github.com/custompc-tech/storefront/backend/internal/model/chat"
	"github.com/custompc-tech/storefront/backend/internal/model/presence"
)

// DefaultConnectTimeout bounds the wait for the hosted database at startup.
const DefaultConnectTimeout = 10 * time.Second

// Prober reports when the remote backend becomes reachable.
type Prober interface {
	WaitConnected(ctx context.Context) error
}

// Service routes every chat operation to the remote backend when it came up
// at startup, and to the local backend otherwise. A failed remote call is
// retried locally for that call only; the service never demotes itself.
type Service struct {
	local          Backend
	remote         Backend
	probe          Prober
	connectTimeout time.Duration
	metrics        *Metrics

	initialized atomic.Bool
}

// Option configures a Service.
type Option func(*Service)

// WithRemote sets the hosted backend and how to probe its connectivity.
func WithRemote(remote Backend, probe Prober) Option {
	return func(s *Service) {
		s.remote = remote
		s.probe = probe
	}
}

// WithConnectTimeout overrides DefaultConnectTimeout.
func WithConnectTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.connectTimeout = d
		}
	}
}

// WithMetrics records per-path call counts.
func WithMetrics(m *Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// NewService bootstraps the dispatcher. Call Connect once before serving.
func NewService(local Backend, opts ...Option) *Service {
	s := &Service{
		local:          local,
		connectTimeout: DefaultConnectTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Connect waits up to the connect timeout for the remote backend. When it
// does not answer in time the service stays local for its whole lifetime.
func (s *Service) Connect(ctx context.Context) bool {
	if s.remote == nil || s.probe == nil {
		log.Printf("[chat] no remote backend configured, using local store")
		return false
	}

	waitCtx, cancel := context.WithTimeout(ctx, s.connectTimeout)
	defer cancel()

	if err := s.probe.WaitConnected(waitCtx); err != nil {
		log.Printf("[chat] remote backend not reachable within %s, using local store: %v", s.connectTimeout, err)
		return false
	}

	s.initialized.Store(true)
	log.Printf("[chat] remote backend connected")
	return true
}

// Initialized reports whether calls go to the remote backend first.
func (s *Service) Initialized() bool {
	return s.initialized.Load()
}

func dispatch[T any](s *Service, op string, fn func(Backend) (T, error)) (T, error) {
	if s.remote != nil && s.initialized.Load() {
		v, err := fn(s.remote)
		if err == nil {
			s.metrics.observe(op, pathRemote)
			return v, nil
		}
		log.Printf("[chat] %s via remote failed, falling back to local: %v", op, err)
		s.metrics.observe(op, pathFallback)
	}
	v, err := fn(s.local)
	if err == nil {
		s.metrics.observe(op, pathLocal)
	}
	return v, err
}

func dispatchErr(s *Service, op string, fn func(Backend) error) error {
	_, err := dispatch(s, op, func(b Backend) (struct{}, error) {
		return struct{}{}, fn(b)
	})
	return err
}

// CreateSession opens a chat session and returns its id.
func (s *Service) CreateSession(ctx context.Context, in chat.NewSession) (string, error) {
	return dispatch(s, "create_session", func(b Backend) (string, error) {
		return b.CreateSession(ctx, in)
	})
}

// GetSession retrieves a session with its messages.
func (s *Service) GetSession(ctx context.Context, chatID string) (chat.Session, error) {
	return dispatch(s, "get_session", func(b Backend) (chat.Session, error) {
		return b.GetSession(ctx, chatID)
	})
}

// SendMessage appends a message. ErrSessionNotFound means it could not be
// delivered anywhere. Empty text is rejected before any backend is tried.
func (s *Service) SendMessage(ctx context.Context, chatID string, msg chat.Message) (chat.Message, error) {
	msg, err := normalizeMessage(msg)
	if err != nil {
		return chat.Message{}, err
	}
	return dispatch(s, "send_message", func(b Backend) (chat.Message, error) {
		return b.SendMessage(ctx, chatID, msg)
	})
}

// LoadTranscript returns a session's messages in send order.
func (s *Service) LoadTranscript(ctx context.Context, chatID string) ([]chat.Message, error) {
	return dispatch(s, "get_messages", func(b Backend) ([]chat.Message, error) {
		return b.LoadTranscript(ctx, chatID)
	})
}

// ListenForMessages calls fn for every message added after the call.
func (s *Service) ListenForMessages(ctx context.Context, chatID string, fn func(chat.Message)) (CancelFunc, error) {
	return dispatch(s, "listen_messages", func(b Backend) (CancelFunc, error) {
		return b.ListenForMessages(ctx, chatID, fn)
	})
}

// ActiveChats lists open sessions active in the last 24 hours.
func (s *Service) ActiveChats(ctx context.Context) ([]chat.Session, error) {
	return dispatch(s, "active_chats", func(b Backend) ([]chat.Session, error) {
		return b.ActiveChats(ctx)
	})
}

// ListenForNewChats calls fn for sessions that appear after the call.
func (s *Service) ListenForNewChats(ctx context.Context, fn func(chat.Session)) (CancelFunc, error) {
	return dispatch(s, "listen_chats", func(b Backend) (CancelFunc, error) {
		return b.ListenForNewChats(ctx, fn)
	})
}

// MarkChatAsRead records when readerID last read the chat.
func (s *Service) MarkChatAsRead(ctx context.Context, chatID, readerID string) error {
	return dispatchErr(s, "mark_read", func(b Backend) error {
		return b.MarkChatAsRead(ctx, chatID, readerID)
	})
}

// UserChatHistory lists a signed-in user's chats, most recent first.
func (s *Service) UserChatHistory(ctx context.Context, username string) ([]chat.UserChat, error) {
	return dispatch(s, "user_history", func(b Backend) ([]chat.UserChat, error) {
		return b.UserChatHistory(ctx, username)
	})
}

// ListenForUserMessages calls fn with every message across the user's chats
// whenever they may have changed.
func (s *Service) ListenForUserMessages(ctx context.Context, username string, fn func([]chat.Message)) (CancelFunc, error) {
	return dispatch(s, "listen_user_messages", func(b Backend) (CancelFunc, error) {
		return b.ListenForUserMessages(ctx, username, fn)
	})
}

// CreateAdminChat opens a conversation from an admin to an active visitor.
func (s *Service) CreateAdminChat(ctx context.Context, in chat.AdminChat) (string, error) {
	return dispatch(s, "create_admin_chat", func(b Backend) (string, error) {
		return b.CreateAdminChat(ctx, in)
	})
}

// AdminChats lists admin-initiated chats, newest first.
func (s *Service) AdminChats(ctx context.Context) ([]chat.AdminChat, error) {
	return dispatch(s, "admin_chats", func(b Backend) ([]chat.AdminChat, error) {
		return b.AdminChats(ctx)
	})
}

func (s *Service) RegisterActiveUser(ctx context.Context, u presence.ActiveUser) error {
	return dispatchErr(s, "register_presence", func(b Backend) error {
		return b.RegisterActiveUser(ctx, u)
	})
}

func (s *Service) UpdateUserPresence(ctx context.Context, u presence.ActiveUser) error {
	return dispatchErr(s, "update_presence", func(b Backend) error {
		return b.UpdateUserPresence(ctx, u)
	})
}

func (s *Service) RemoveActiveUser(ctx context.Context, sessionID string) error {
	return dispatchErr(s, "remove_presence", func(b Backend) error {
		return b.RemoveActiveUser(ctx, sessionID)
	})
}

func (s *Service) ActiveUsers(ctx context.Context) ([]presence.ActiveUser, error) {
	return dispatch(s, "active_users", func(b Backend) ([]presence.ActiveUser, error) {
		return b.ActiveUsers(ctx)
	})
}

func (s *Service) ListenForActiveUsers(ctx context.Context, fn func([]presence.ActiveUser)) (CancelFunc, error) {
	return dispatch(s, "listen_presence", func(b Backend) (CancelFunc, error) {
		return b.ListenForActiveUsers(ctx, fn)
	})
}

func (s *Service) TrackVisitor(ctx context.Context, v presence.Visitor) error {
	return dispatchErr(s, "track_visitor", func(b Backend) error {
		return b.TrackVisitor(ctx, v)
	})
}

func (s *Service) Visitors(ctx context.Context) ([]presence.Visitor, error) {
	return dispatch(s, "visitors", func(b Backend) ([]presence.Visitor, error) {
		return b.Visitors(ctx)
	})
}
