package chat

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/custompc-tech/storefront/backend/internal/model/chat"
	chatService "github.com/custompc-tech/storefront/backend/internal/service/chat"
	"github.com/custompc-tech/storefront/backend/internal/service/notify"
	presenceService "github.com/custompc-tech/storefront/backend/internal/service/presence"
	"github.com/custompc-tech/storefront/backend/pkg/utils"
)

// Handler serves support chat, admin chat and notification routes.
type Handler struct {
	chatSvc  *chatService.Service
	presence *presenceService.Service
	notifier *notify.Notifier
	upgrader websocket.Upgrader
}

// New creates a chat handler. presence and notifier may be nil.
func New(chatSvc *chatService.Service, presence *presenceService.Service, notifier *notify.Notifier) *Handler {
	return &Handler{
		chatSvc:  chatSvc,
		presence: presence,
		notifier: notifier,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes registers chat routes. admin guards the admin-only ones.
func (h *Handler) RegisterRoutes(r chi.Router, admin func(http.Handler) http.Handler) {
	if admin == nil {
		admin = func(next http.Handler) http.Handler { return next }
	}

	r.Post("/chats", h.handleCreateSession)
	r.With(admin).Get("/chats", h.handleActiveChats)
	r.Get("/chats/{chatID}", h.handleGetSession)
	r.Get("/chats/{chatID}/messages", h.handleTranscript)
	r.Post("/chats/{chatID}/messages", h.handleSendMessage)
	r.Post("/chats/{chatID}/read", h.handleMarkRead)
	r.Get("/chats/{chatID}/stream", h.handleStream)
	r.Get("/users/{username}/chats", h.handleUserChats)

	r.With(admin).Post("/admin/chats", h.handleCreateAdminChat)
	r.With(admin).Get("/admin/chats", h.handleAdminChats)

	if h.notifier != nil {
		r.Get("/notifications/{username}", h.handleUnread)
		r.Post("/notifications/{username}/read", h.handleMarkNotificationsRead)
		r.Get("/notifications/{username}/stream", h.handleNotificationStream)
	}
}

func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var payload chat.NewSession
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	chatID, err := h.chatSvc.CreateSession(r.Context(), payload)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	utils.RespondJSON(w, http.StatusCreated, map[string]string{"chatId": chatID})
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.chatSvc.GetSession(r.Context(), chi.URLParam(r, "chatID"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, session)
}

func (h *Handler) handleActiveChats(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.chatSvc.ActiveChats(r.Context())
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{"chats": sessions, "count": len(sessions)})
}

func (h *Handler) handleTranscript(w http.ResponseWriter, r *http.Request) {
	messages, err := h.chatSvc.LoadTranscript(r.Context(), chi.URLParam(r, "chatID"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{"messages": messages})
}

func (h *Handler) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var payload chat.Message
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	msg, err := h.chatSvc.SendMessage(r.Context(), chi.URLParam(r, "chatID"), payload)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusCreated, msg)
}

func (h *Handler) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		ReaderID string `json:"readerId"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil || payload.ReaderID == "" {
		utils.RespondError(w, http.StatusBadRequest, "readerId is required")
		return
	}

	if err := h.chatSvc.MarkChatAsRead(r.Context(), chi.URLParam(r, "chatID"), payload.ReaderID); err != nil {
		respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleUserChats(w http.ResponseWriter, r *http.Request) {
	history, err := h.chatSvc.UserChatHistory(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{"chats": history})
}

func (h *Handler) handleCreateAdminChat(w http.ResponseWriter, r *http.Request) {
	var payload chat.AdminChat
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.TargetSessionID == "" {
		utils.RespondError(w, http.StatusBadRequest, "targetSessionId is required")
		return
	}

	id, err := h.chatSvc.CreateAdminChat(r.Context(), payload)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (h *Handler) handleAdminChats(w http.ResponseWriter, r *http.Request) {
	chats, err := h.chatSvc.AdminChats(r.Context())
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{"chats": chats})
}

func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, chatService.ErrSessionNotFound):
		utils.RespondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, chatService.ErrEmptyMessage):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
	default:
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
	}
}
