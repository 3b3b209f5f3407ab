package chat

import (
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/custompc-tech/storefront/backend/internal/model/chat"
	"github.com/custompc-tech/storefront/backend/pkg/utils"
)

// heartbeatInterval keeps idle event streams open through proxies.
const heartbeatInterval = 15 * time.Second

// handleUnread refreshes the user's unread count from their chats and
// returns it.
func (h *Handler) handleUnread(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	username := chi.URLParam(r, "username")

	history, err := h.chatSvc.UserChatHistory(ctx, username)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	var msgs []chat.Message
	for _, entry := range history {
		transcript, err := h.chatSvc.LoadTranscript(ctx, entry.ChatID)
		if err != nil {
			log.Printf("[notify] skip chat %s: %v", entry.ChatID, err)
			continue
		}
		msgs = append(msgs, transcript...)
	}
	h.notifier.Observe(ctx, username, msgs)

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"username": username,
		"unread":   h.notifier.Unread(ctx, username),
	})
}

func (h *Handler) handleMarkNotificationsRead(w http.ResponseWriter, r *http.Request) {
	if err := h.notifier.MarkRead(r.Context(), chi.URLParam(r, "username")); err != nil {
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleNotificationStream pushes the unread total as an SSE event each
// time it grows.
func (h *Handler) handleNotificationStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	ctx := r.Context()
	username := chi.URLParam(r, "username")
	updates := make(chan int64, 8)

	cancel, err := h.notifier.Watch(ctx, h.chatSvc, username, func(total int64) {
		select {
		case updates <- total:
		default:
		}
	})
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer cancel()

	utils.SetupSSEHeaders(w)
	utils.SendSSEEvent(w, flusher, "unread", map[string]int64{"unread": h.notifier.Unread(ctx, username)})

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case t := <-ticker.C:
			utils.SendSSEChunk(w, flusher, map[string]any{
				"event": "heartbeat",
				"time":  t.UTC().Format(time.RFC3339),
			})
		case total := <-updates:
			utils.SendSSEEvent(w, flusher, "unread", map[string]int64{"unread": total})
		}
	}
}
