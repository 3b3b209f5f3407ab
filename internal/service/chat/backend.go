package chat

import (
	"context"
	"errors"

	"github.com/custompc-tech/storefront/backend/internal/model/chat"
	"github.com/custompc-tech/storefront/backend/internal/model/presence"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrEmptyMessage    = errors.New("message text is required")
)

// CancelFunc stops a listener. Calling it more than once is a no-op.
type CancelFunc func()

// Backend is one storage path for chat, presence and visitor data. The
// remote and local implementations return the same shapes so callers never
// need to know which one served a request.
type Backend interface {
	CreateSession(ctx context.Context, in chat.NewSession) (string, error)
	GetSession(ctx context.Context, chatID string) (chat.Session, error)
	SendMessage(ctx context.Context, chatID string, msg chat.Message) (chat.Message, error)
	LoadTranscript(ctx context.Context, chatID string) ([]chat.Message, error)
	ListenForMessages(ctx context.Context, chatID string, fn func(chat.Message)) (CancelFunc, error)
	ActiveChats(ctx context.Context) ([]chat.Session, error)
	ListenForNewChats(ctx context.Context, fn func(chat.Session)) (CancelFunc, error)
	MarkChatAsRead(ctx context.Context, chatID, readerID string) error

	UserChatHistory(ctx context.Context, username string) ([]chat.UserChat, error)
	ListenForUserMessages(ctx context.Context, username string, fn func([]chat.Message)) (CancelFunc, error)

	CreateAdminChat(ctx context.Context, in chat.AdminChat) (string, error)
	AdminChats(ctx context.Context) ([]chat.AdminChat, error)

	RegisterActiveUser(ctx context.Context, u presence.ActiveUser) error
	UpdateUserPresence(ctx context.Context, u presence.ActiveUser) error
	RemoveActiveUser(ctx context.Context, sessionID string) error
	ActiveUsers(ctx context.Context) ([]presence.ActiveUser, error)
	ListenForActiveUsers(ctx context.Context, fn func([]presence.ActiveUser)) (CancelFunc, error)

	TrackVisitor(ctx context.Context, v presence.Visitor) error
	Visitors(ctx context.Context) ([]presence.Visitor, error)
}

func normalizeMessage(msg chat.Message) (chat.Message, error) {
	if msg.Text == "" {
		return msg, ErrEmptyMessage
	}
	if msg.Type == "" {
		msg.Type = chat.MessageTypeUser
	}
	if msg.Username == "" {
		msg.Username = chat.AnonymousSender
	}
	return msg, nil
}

func chatTitle(in chat.NewSession) string {
	if in.Source != "" {
		return in.Source
	}
	return "Chat with " + in.UserName
}
