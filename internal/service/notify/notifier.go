// Package notify counts support replies a signed-in user has not seen yet.
package notify

import (
	"context"
	"log"
	"sync"

	"github.com/custompc-tech/storefront/backend/internal/model/chat"
	chatsvc "github.com/custompc-tech/storefront/backend/internal/service/chat"
	"github.com/custompc-tech/storefront/backend/internal/storage/local"
)

// MessageSource streams every message across a user's chats.
type MessageSource interface {
	ListenForUserMessages(ctx context.Context, username string, fn func([]chat.Message)) (chatsvc.CancelFunc, error)
}

// Notifier keeps a per-user unread counter and a per-chat watermark of the
// newest message already counted.
type Notifier struct {
	store *local.Adapter
	mu    sync.Mutex
}

// New creates a notifier over the local store.
func New(store *local.Adapter) *Notifier {
	return &Notifier{store: store}
}

// Observe counts messages from the other party newer than each chat's
// watermark, advances the watermarks and returns how many were added.
// Observing the same messages again adds nothing.
func (n *Notifier) Observe(ctx context.Context, username string, msgs []chat.Message) int {
	n.mu.Lock()
	defer n.mu.Unlock()

	byChat := make(map[string][]chat.Message)
	var order []string
	for _, m := range msgs {
		if _, ok := byChat[m.ChatID]; !ok {
			order = append(order, m.ChatID)
		}
		byChat[m.ChatID] = append(byChat[m.ChatID], m)
	}

	added := 0
	for _, chatID := range order {
		key := local.KeyLastNotified(chatID)
		watermark := n.store.ReadInt(ctx, key)
		newest := watermark
		for _, m := range byChat[chatID] {
			if m.Type == chat.MessageTypeUser || m.Timestamp <= watermark {
				continue
			}
			added++
			if m.Timestamp > newest {
				newest = m.Timestamp
			}
		}
		if newest > watermark {
			if err := n.store.WriteInt(ctx, key, newest); err != nil {
				log.Printf("[notify] save watermark for %s failed: %v", chatID, err)
			}
		}
	}

	if added > 0 {
		key := local.KeyUnread(username)
		total := n.store.ReadInt(ctx, key) + int64(added)
		if err := n.store.WriteInt(ctx, key, total); err != nil {
			log.Printf("[notify] save unread count for %s failed: %v", username, err)
		}
	}
	return added
}

// Unread returns the user's unread count.
func (n *Notifier) Unread(ctx context.Context, username string) int64 {
	return n.store.ReadInt(ctx, local.KeyUnread(username))
}

// MarkRead resets the user's unread count. Watermarks stay, so read
// messages are never counted again.
func (n *Notifier) MarkRead(ctx context.Context, username string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.store.WriteInt(ctx, local.KeyUnread(username), 0)
}

// Watch observes the user's messages as they change and calls onChange with
// the new total whenever it grows.
func (n *Notifier) Watch(ctx context.Context, src MessageSource, username string, onChange func(total int64)) (chatsvc.CancelFunc, error) {
	return src.ListenForUserMessages(ctx, username, func(msgs []chat.Message) {
		if ctx.Err() != nil {
			return
		}
		if n.Observe(ctx, username, msgs) > 0 {
			onChange(n.Unread(ctx, username))
		}
	})
}
