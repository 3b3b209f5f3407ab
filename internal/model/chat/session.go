package chat

import (
	"sort"
	"time"
)

// ActivityWindow bounds how long a session stays in the active list after
// its last message.
const ActivityWindow = 24 * time.Hour

// Status of a chat session. An empty status counts as active.
type Status string

const (
	StatusActive Status = "active"
	StatusClosed Status = "closed"
)

const (
	AnonymousUserID   = "anonymous"
	AnonymousUserName = "Anonymous User"
)

// Session is a conversation between a visitor and support.
type Session struct {
	ID           string           `json:"id"`
	UserID       string           `json:"userId"`
	UserName     string           `json:"userName"`
	UserEmail    string           `json:"userEmail"`
	Source       string           `json:"source,omitempty"`
	CreatedAt    int64            `json:"createdAt"`
	LastActivity int64            `json:"lastActivity"`
	Status       Status           `json:"status,omitempty"`
	Messages     []Message        `json:"messages"`
	ReadBy       map[string]int64 `json:"readBy,omitempty"`
}

// IsActive reports whether the session is open.
func (s Session) IsActive() bool {
	return s.Status == "" || s.Status == StatusActive
}

// NewSession is the input for creating a session.
type NewSession struct {
	UserID    string `json:"userId"`
	UserName  string `json:"userName"`
	UserEmail string `json:"userEmail"`
	Source    string `json:"source"`
}

// WithDefaults fills the anonymous identity.
func (in NewSession) WithDefaults() NewSession {
	if in.UserID == "" {
		in.UserID = AnonymousUserID
	}
	if in.UserName == "" {
		in.UserName = AnonymousUserName
	}
	return in
}

// UserChat is an entry in a signed-in user's chat history.
type UserChat struct {
	ChatID       string `json:"chatId"`
	Title        string `json:"title"`
	CreatedAt    int64  `json:"createdAt"`
	LastActivity int64  `json:"lastActivity"`
	Status       Status `json:"status"`
}

// AdminChat is a conversation an admin opened with an active visitor.
type AdminChat struct {
	ID              string    `json:"id"`
	TargetSessionID string    `json:"targetSessionId"`
	TargetUsername  string    `json:"targetUsername"`
	AdminUsername   string    `json:"adminUsername"`
	CreatedAt       int64     `json:"createdAt"`
	LastActivity    int64     `json:"lastActivity"`
	Status          Status    `json:"status"`
	Messages        []Message `json:"messages"`
}

// FilterActive keeps open sessions active within ActivityWindow of now and
// sorts them by last activity, newest first.
func FilterActive(sessions []Session, now time.Time) []Session {
	cutoff := now.Add(-ActivityWindow).UnixMilli()
	active := make([]Session, 0, len(sessions))
	for _, s := range sessions {
		if s.IsActive() && s.LastActivity > cutoff {
			active = append(active, s)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		return active[i].LastActivity > active[j].LastActivity
	})
	return active
}
