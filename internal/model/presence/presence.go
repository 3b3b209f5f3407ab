package presence

import (
	"sort"
	"time"
)

const (
	// ActiveUserTTL is how long a presence record counts as active after
	// its last heartbeat.
	ActiveUserTTL = 5 * time.Minute
	// HeartbeatInterval is how often an open connection refreshes lastSeen.
	HeartbeatInterval = 30 * time.Second
	// VisitorWindow is how long a visitor counts as active after the last
	// page view.
	VisitorWindow = 30 * time.Minute
)

// ActiveUser is the per-tab presence record.
type ActiveUser struct {
	SessionID string `json:"sessionId"`
	Username  string `json:"username"`
	IsAdmin   bool   `json:"isAdmin"`
	Page      string `json:"page,omitempty"`
	UserAgent string `json:"userAgent,omitempty"`
	LastSeen  int64  `json:"lastSeen"`
}

// Visitor is the cookie-backed visit record.
type Visitor struct {
	VisitorID    string   `json:"visitorId"`
	Pages        []string `json:"pages"`
	LastPage     string   `json:"lastPage,omitempty"`
	Referrer     string   `json:"referrer,omitempty"`
	UserAgent    string   `json:"userAgent,omitempty"`
	Language     string   `json:"language,omitempty"`
	IsReturning  bool     `json:"isReturning"`
	SessionStart int64    `json:"sessionStart"`
	LastUpdated  int64    `json:"lastUpdated"`
}

// HasPage reports whether page was already recorded.
func (v Visitor) HasPage(page string) bool {
	for _, p := range v.Pages {
		if p == page {
			return true
		}
	}
	return false
}

// FilterActiveUsers keeps records with now-lastSeen < ActiveUserTTL,
// most recent first.
func FilterActiveUsers(users []ActiveUser, now time.Time) []ActiveUser {
	nowMs := now.UnixMilli()
	ttl := ActiveUserTTL.Milliseconds()
	active := make([]ActiveUser, 0, len(users))
	for _, u := range users {
		if nowMs-u.LastSeen < ttl {
			active = append(active, u)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		return active[i].LastSeen > active[j].LastSeen
	})
	return active
}

// FilterActiveVisitors keeps visitors updated within VisitorWindow.
func FilterActiveVisitors(visitors []Visitor, now time.Time) []Visitor {
	nowMs := now.UnixMilli()
	window := VisitorWindow.Milliseconds()
	active := make([]Visitor, 0, len(visitors))
	for _, v := range visitors {
		if nowMs-v.LastUpdated < window {
			active = append(active, v)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		return active[i].LastUpdated > active[j].LastUpdated
	})
	return active
}
