// Package realtime models the hosted hierarchical database the chat prefers
// over the local store: a JSON tree addressed by slash-separated paths with
// child listeners and a server-assigned timestamp sentinel.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
)

var (
	ErrInvalidPath = errors.New("invalid realtime path")
	ErrUnavailable = errors.New("realtime database unavailable")
)

// EventType names a child change seen by a listener.
type EventType string

const (
	ChildAdded   EventType = "child_added"
	ChildChanged EventType = "child_changed"
	ChildRemoved EventType = "child_removed"
)

// Event describes one direct child of a listened path.
type Event struct {
	Type  EventType       `json:"type"`
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value,omitempty"`
}

// Handler receives events in the order they were produced for its path.
type Handler func(Event)

// UnsubscribeFunc detaches a listener. Calling it more than once is a no-op.
type UnsubscribeFunc func()

// DB is the hosted tree boundary.
type DB interface {
	// GenerateKey returns a unique child key that sorts by creation time.
	GenerateKey() string

	// Set replaces the value at path. A nil value removes it.
	Set(ctx context.Context, path string, value any) error

	// Update writes each field relative to path. Field names may contain
	// slashes to reach deeper children.
	Update(ctx context.Context, path string, fields map[string]any) error

	// Get returns the JSON value at path, or nil when nothing is stored.
	Get(ctx context.Context, path string) (json.RawMessage, error)

	// Remove deletes the value at path.
	Remove(ctx context.Context, path string) error

	// Listen reports existing children as ChildAdded, then every change to a
	// direct child of path caused by a write at or below that child.
	Listen(ctx context.Context, path string, h Handler) (UnsubscribeFunc, error)

	// WaitConnected blocks until the database is reachable or ctx is done.
	WaitConnected(ctx context.Context) error

	Close() error
}

type serverValue struct {
	SV string `json:".sv"`
}

// ServerTimestamp is replaced by the database's current time, in epoch
// milliseconds, when written.
var ServerTimestamp any = serverValue{SV: "timestamp"}
