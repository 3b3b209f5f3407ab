package chat

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/custompc-tech/storefront/backend/internal/model/chat"
	"github.com/custompc-tech/storefront/backend/internal/model/presence"
	presenceService "github.com/custompc-tech/storefront/backend/internal/service/presence"
)

const (
	readTimeout  = 60 * time.Second
	pingInterval = 25 * time.Second
	writeTimeout = 10 * time.Second
)

type inboundMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type outgoingMessage struct {
	Type      string      `json:"type"`
	ChatID    string      `json:"chatId,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// socket serializes writes to one connection.
type socket struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *socket) send(msg outgoingMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg.Timestamp = time.Now().UnixMilli()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := s.conn.WriteJSON(msg); err != nil {
		log.Printf("[websocket] write failed: %v", err)
	}
}

func (s *socket) ping() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout))
}

// handleStream upgrades to a websocket that pushes new messages of one chat
// and accepts outgoing ones. Query parameters username and page register
// the connection as an active user for its lifetime.
func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chatID")
	if _, err := h.chatSvc.GetSession(r.Context(), chatID); err != nil {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[websocket] upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	sock := &socket{conn: conn}
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	reg := h.attachPresence(ctx, r)
	if reg != nil {
		defer func() {
			if err := reg.Close(context.Background()); err != nil {
				log.Printf("[websocket] presence cleanup failed: %v", err)
			}
		}()
	}

	stop, err := h.chatSvc.ListenForMessages(ctx, chatID, func(m chat.Message) {
		sock.send(outgoingMessage{Type: "message", ChatID: chatID, Data: m})
	})
	if err != nil {
		sock.send(outgoingMessage{Type: "error", Data: map[string]string{"message": err.Error()}})
		return
	}
	defer stop()

	log.Printf("[websocket] new connection for chat: %s", chatID)

	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})
	go pingLoop(ctx, sock)

	info := map[string]any{"remote": h.chatSvc.Initialized()}
	if reg != nil {
		info["presenceId"] = reg.User.SessionID
	}
	sock.send(outgoingMessage{Type: "connected", ChatID: chatID, Data: info})

	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[websocket] read error: %v", err)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
		h.handleInbound(ctx, sock, chatID, msg)
	}
}

func (h *Handler) handleInbound(ctx context.Context, sock *socket, chatID string, msg inboundMessage) {
	switch msg.Type {
	case "message":
		var m chat.Message
		if err := json.Unmarshal(msg.Data, &m); err != nil {
			sock.send(outgoingMessage{Type: "error", Data: map[string]string{"message": "invalid message payload"}})
			return
		}
		if _, err := h.chatSvc.SendMessage(ctx, chatID, m); err != nil {
			sock.send(outgoingMessage{Type: "error", Data: map[string]string{"message": err.Error()}})
		}
	case "ping":
		sock.send(outgoingMessage{Type: "pong"})
	default:
		sock.send(outgoingMessage{Type: "error", Data: map[string]string{"message": "unsupported message type: " + msg.Type}})
	}
}

func (h *Handler) attachPresence(ctx context.Context, r *http.Request) *presenceService.Registration {
	if h.presence == nil {
		return nil
	}
	q := r.URL.Query()
	username := q.Get("username")
	if username == "" {
		return nil
	}
	reg, err := h.presence.Attach(ctx, presence.ActiveUser{
		Username:  username,
		Page:      q.Get("page"),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		log.Printf("[websocket] presence register failed: %v", err)
		return nil
	}
	return reg
}

func pingLoop(ctx context.Context, sock *socket) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := sock.ping(); err != nil {
				return
			}
		}
	}
}
