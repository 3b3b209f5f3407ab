package auth

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/custompc-tech/storefront/backend/internal/middleware"
	authService "github.com/custompc-tech/storefront/backend/internal/service/auth"
	"github.com/custompc-tech/storefront/backend/internal/storage/local"
	"github.com/custompc-tech/storefront/backend/pkg/utils"
)

// Handler serves the admin login gate.
type Handler struct {
	gate  *authService.Gate
	store *local.Adapter
}

// New creates an auth handler over the root store.
func New(gate *authService.Gate, store *local.Adapter) *Handler {
	return &Handler{gate: gate, store: store}
}

// RegisterRoutes registers auth routes. limit throttles login attempts
// per address and may be nil.
func (h *Handler) RegisterRoutes(r chi.Router, limit func(http.Handler) http.Handler) {
	login := http.Handler(http.HandlerFunc(h.handleLogin))
	if limit != nil {
		login = limit(login)
	}
	r.Method(http.MethodPost, "/auth/admin/login", login)
	r.Post("/auth/admin/logout", h.handleLogout)
	r.Get("/auth/admin/session", h.handleSession)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in authService.LoginInput
	if err := utils.DecodeJSON(r, &in); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	sess, err := h.gate.Login(r.Context(), h.scope(r), in)
	if err != nil {
		var lockout *authService.LockoutError
		var cred *authService.CredentialError
		switch {
		case errors.As(err, &lockout):
			utils.RespondJSON(w, http.StatusTooManyRequests, map[string]any{
				"error":            err.Error(),
				"remainingMinutes": lockout.RemainingMinutes,
			})
		case errors.Is(err, authService.ErrInvalidForm):
			utils.RespondError(w, http.StatusBadRequest, err.Error())
		case errors.As(err, &cred):
			utils.RespondJSON(w, http.StatusUnauthorized, map[string]any{
				"error":     err.Error(),
				"field":     cred.Field,
				"lockedOut": cred.LockedOut,
			})
		default:
			utils.RespondError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	utils.RespondJSON(w, http.StatusOK, sess)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.gate.Logout(r.Context(), h.scope(r)); err != nil {
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.gate.Session(r.Context(), h.scope(r))
	if !ok {
		utils.RespondJSON(w, http.StatusOK, map[string]any{"authenticated": false})
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{"authenticated": true, "session": sess})
}

func (h *Handler) scope(r *http.Request) *local.Adapter {
	return h.store.Scoped(middleware.ClientID(r.Context()))
}
