// Package presence tracks who has the site open and who visited recently.
package presence

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/custompc-tech/storefront/backend/internal/clock"
	"github.com/custompc-tech/storefront/backend/internal/ids"
	"github.com/custompc-tech/storefront/backend/internal/model/presence"
)

var ErrSessionRequired = errors.New("presence session id is required")

// Store persists presence and visitor records. The chat dispatcher
// implements it, so presence follows the same remote-or-local routing.
type Store interface {
	RegisterActiveUser(ctx context.Context, u presence.ActiveUser) error
	UpdateUserPresence(ctx context.Context, u presence.ActiveUser) error
	RemoveActiveUser(ctx context.Context, sessionID string) error
	ActiveUsers(ctx context.Context) ([]presence.ActiveUser, error)
	TrackVisitor(ctx context.Context, v presence.Visitor) error
	Visitors(ctx context.Context) ([]presence.Visitor, error)
}

// Service wraps a Store with id generation, heartbeats and summaries.
type Service struct {
	store Store
	clock clock.Clock
}

// NewService creates a presence service.
func NewService(store Store, c clock.Clock) *Service {
	if c == nil {
		c = clock.Real()
	}
	return &Service{store: store, clock: c}
}

// Register records a tab as active, assigning a session id when missing.
func (s *Service) Register(ctx context.Context, u presence.ActiveUser) (presence.ActiveUser, error) {
	if u.SessionID == "" {
		u.SessionID = ids.New(ids.PrefixTab, s.clock.Now())
	}
	if u.Username == "" {
		u.Username = "Guest"
	}
	u.LastSeen = clock.Millis(s.clock.Now())
	if err := s.store.RegisterActiveUser(ctx, u); err != nil {
		return presence.ActiveUser{}, err
	}
	return u, nil
}

// Heartbeat refreshes lastSeen and the current page.
func (s *Service) Heartbeat(ctx context.Context, sessionID, page string) error {
	if sessionID == "" {
		return ErrSessionRequired
	}
	return s.store.UpdateUserPresence(ctx, presence.ActiveUser{SessionID: sessionID, Page: page})
}

// Remove drops a tab's record.
func (s *Service) Remove(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return ErrSessionRequired
	}
	return s.store.RemoveActiveUser(ctx, sessionID)
}

// Summary is the active-user view shown to admins.
type Summary struct {
	Users    []presence.ActiveUser `json:"users"`
	Total    int                   `json:"total"`
	Admins   int                   `json:"admins"`
	Visitors int                   `json:"visitors"`
}

// Summarize counts active records.
func Summarize(users []presence.ActiveUser) Summary {
	sum := Summary{Users: users, Total: len(users)}
	for _, u := range users {
		if u.IsAdmin {
			sum.Admins++
		} else {
			sum.Visitors++
		}
	}
	return sum
}

// ActiveUsers returns records seen within presence.ActiveUserTTL.
func (s *Service) ActiveUsers(ctx context.Context) (Summary, error) {
	users, err := s.store.ActiveUsers(ctx)
	if err != nil {
		return Summary{}, err
	}
	return Summarize(users), nil
}

// Registration is a presence record kept alive by a background heartbeat.
type Registration struct {
	User presence.ActiveUser

	svc  *Service
	done chan struct{}
	once sync.Once
}

// Attach registers u and refreshes it every presence.HeartbeatInterval
// until the registration is closed or ctx ends.
func (s *Service) Attach(ctx context.Context, u presence.ActiveUser) (*Registration, error) {
	registered, err := s.Register(ctx, u)
	if err != nil {
		return nil, err
	}
	reg := &Registration{User: registered, svc: s, done: make(chan struct{})}

	ticker := s.clock.NewTicker(presence.HeartbeatInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-reg.done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C():
				if err := s.Heartbeat(ctx, registered.SessionID, registered.Page); err != nil {
					log.Printf("[presence] heartbeat %s failed: %v", registered.SessionID, err)
				}
			}
		}
	}()
	return reg, nil
}

// Close stops the heartbeat and removes the record. Later calls do nothing.
func (r *Registration) Close(ctx context.Context) error {
	var err error
	r.once.Do(func() {
		close(r.done)
		err = r.svc.Remove(ctx, r.User.SessionID)
	})
	return err
}
