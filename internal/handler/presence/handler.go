package presence

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/custompc-tech/storefront/backend/internal/clock"
	"github.com/custompc-tech/storefront/backend/internal/middleware"
	"github.com/custompc-tech/storefront/backend/internal/model/presence"
	chatService "github.com/custompc-tech/storefront/backend/internal/service/chat"
	presenceService "github.com/custompc-tech/storefront/backend/internal/service/presence"
	"github.com/custompc-tech/storefront/backend/internal/storage/local"
	"github.com/custompc-tech/storefront/backend/pkg/utils"
)

const (
	VisitorCookie     = "custompc_visitor_id"
	LastVisitCookie   = "custompc_last_visit"
	PreferencesCookie = "custompc_preferences"
	cookieMaxAge      = 365 * 24 * time.Hour
	heartbeatInterval = 15 * time.Second
)

// ActiveUserSource pushes the active-user list as it changes.
type ActiveUserSource interface {
	ListenForActiveUsers(ctx context.Context, fn func([]presence.ActiveUser)) (chatService.CancelFunc, error)
}

// Handler serves presence, visitor and preference routes.
type Handler struct {
	presence *presenceService.Service
	source   ActiveUserSource
	admins   middleware.SessionChecker
	store    *local.Adapter
	clock    clock.Clock
}

// New creates a presence handler. admins marks registrations from clients
// holding an admin session; it may be nil.
func New(svc *presenceService.Service, source ActiveUserSource, admins middleware.SessionChecker, store *local.Adapter, c clock.Clock) *Handler {
	if c == nil {
		c = clock.Real()
	}
	return &Handler{presence: svc, source: source, admins: admins, store: store, clock: c}
}

// RegisterRoutes registers presence routes. admin guards the admin views.
func (h *Handler) RegisterRoutes(r chi.Router, admin func(http.Handler) http.Handler) {
	if admin == nil {
		admin = func(next http.Handler) http.Handler { return next }
	}

	r.Post("/presence", h.handleRegister)
	r.Put("/presence/{sessionID}", h.handleHeartbeat)
	r.Delete("/presence/{sessionID}", h.handleRemove)
	r.With(admin).Get("/presence", h.handleActiveUsers)
	r.With(admin).Get("/presence/stream", h.handleStream)

	r.Post("/visits", h.handleVisit)
	r.With(admin).Get("/visitors", h.handleVisitors)

	r.Get("/preferences", h.handleGetPreferences)
	r.Put("/preferences", h.handlePutPreferences)
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var payload presence.ActiveUser
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	payload.IsAdmin = h.isAdmin(r)
	if payload.UserAgent == "" {
		payload.UserAgent = r.UserAgent()
	}

	u, err := h.presence.Register(r.Context(), payload)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusCreated, u)
}

func (h *Handler) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Page string `json:"page"`
	}
	if r.ContentLength != 0 {
		if err := utils.DecodeJSON(r, &payload); err != nil {
			utils.RespondError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	if err := h.presence.Heartbeat(r.Context(), chi.URLParam(r, "sessionID"), payload.Page); err != nil {
		respondPresenceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleRemove(w http.ResponseWriter, r *http.Request) {
	if err := h.presence.Remove(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		respondPresenceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleActiveUsers(w http.ResponseWriter, r *http.Request) {
	summary, err := h.presence.ActiveUsers(r.Context())
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusOK, summary)
}

// handleStream sends the active-user summary as SSE each time it changes.
func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	ctx := r.Context()
	updates := make(chan []presence.ActiveUser, 4)
	cancel, err := h.source.ListenForActiveUsers(ctx, func(users []presence.ActiveUser) {
		select {
		case updates <- users:
		default:
			log.Printf("[presence] stream consumer is slow, dropping update")
		}
	})
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer cancel()

	utils.SetupSSEHeaders(w)
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
		case users := <-updates:
			utils.SendSSEEvent(w, flusher, "presence", presenceService.Summarize(users))
		}
	}
}

func (h *Handler) handleVisit(w http.ResponseWriter, r *http.Request) {
	var payload presenceService.Visit
	if r.ContentLength != 0 {
		if err := utils.DecodeJSON(r, &payload); err != nil {
			utils.RespondError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	if c, err := r.Cookie(VisitorCookie); err == nil && c.Value != "" {
		payload.VisitorID = c.Value
	}
	if c, err := r.Cookie(LastVisitCookie); err == nil {
		if t, err := time.Parse(time.RFC3339, c.Value); err == nil {
			payload.LastVisit = clock.Millis(t)
		}
	}
	if payload.UserAgent == "" {
		payload.UserAgent = r.UserAgent()
	}
	if payload.Language == "" {
		payload.Language = r.Header.Get("Accept-Language")
	}
	if payload.Referrer == "" {
		payload.Referrer = r.Referer()
	}

	v, err := h.presence.TrackVisit(r.Context(), payload)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	setCookie(w, VisitorCookie, v.VisitorID)
	setCookie(w, LastVisitCookie, h.clock.Now().UTC().Format(time.RFC3339))
	utils.RespondJSON(w, http.StatusOK, v)
}

func (h *Handler) handleVisitors(w http.ResponseWriter, r *http.Request) {
	visitors, err := h.presence.ActiveVisitors(r.Context())
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{"visitors": visitors, "count": len(visitors)})
}

// Preferences combine the JSON preferences cookie with the per-client
// announcement bar flag.
type Preferences struct {
	Values                map[string]any `json:"values"`
	AnnouncementBarClosed bool           `json:"announcementBarClosed"`
}

func (h *Handler) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	prefs := Preferences{Values: map[string]any{}}
	if c, err := r.Cookie(PreferencesCookie); err == nil {
		if raw, err := url.QueryUnescape(c.Value); err == nil {
			if err := json.Unmarshal([]byte(raw), &prefs.Values); err != nil {
				log.Printf("[presence] ignoring malformed preferences cookie: %v", err)
				prefs.Values = map[string]any{}
			}
		}
	}
	closed, _ := local.ReadValue[bool](r.Context(), h.scope(r), local.KeyAnnouncementSeen)
	prefs.AnnouncementBarClosed = closed
	utils.RespondJSON(w, http.StatusOK, prefs)
}

func (h *Handler) handlePutPreferences(w http.ResponseWriter, r *http.Request) {
	var prefs Preferences
	if err := utils.DecodeJSON(r, &prefs); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if prefs.Values == nil {
		prefs.Values = map[string]any{}
	}
	raw, err := json.Marshal(prefs.Values)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := local.WriteValue(r.Context(), h.scope(r), local.KeyAnnouncementSeen, prefs.AnnouncementBarClosed); err != nil {
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	setCookie(w, PreferencesCookie, url.QueryEscape(string(raw)))
	utils.RespondJSON(w, http.StatusOK, prefs)
}

func (h *Handler) scope(r *http.Request) *local.Adapter {
	return h.store.Scoped(middleware.ClientID(r.Context()))
}

func (h *Handler) isAdmin(r *http.Request) bool {
	if h.admins == nil {
		return false
	}
	_, ok := h.admins.Session(r.Context(), h.scope(r))
	return ok
}

func setCookie(w http.ResponseWriter, name, value string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(cookieMaxAge.Seconds()),
		SameSite: http.SameSiteLaxMode,
	})
}

func respondPresenceError(w http.ResponseWriter, err error) {
	if errors.Is(err, presenceService.ErrSessionRequired) {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	utils.RespondError(w, http.StatusInternalServerError, err.Error())
}
