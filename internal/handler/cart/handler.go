package cart

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/custompc-tech/storefront/backend/internal/middleware"
	cartService "github.com/custompc-tech/storefront/backend/internal/service/cart"
	"github.com/custompc-tech/storefront/backend/internal/storage/local"
	"github.com/custompc-tech/storefront/backend/pkg/utils"
)

// Handler serves the cart. The signed-in user id comes from the
// X-User-ID header; without it the browser cart is used.
type Handler struct {
	carts *cartService.Service
	store *local.Adapter
}

// New creates a cart handler over the root store.
func New(carts *cartService.Service, store *local.Adapter) *Handler {
	return &Handler{carts: carts, store: store}
}

type cartResponse struct {
	Items []cartService.Item `json:"items"`
	Count int                `json:"count"`
	Total float64            `json:"total"`
}

func newCartResponse(items []cartService.Item) cartResponse {
	if items == nil {
		items = []cartService.Item{}
	}
	return cartResponse{Items: items, Count: len(items), Total: cartService.Total(items)}
}

// RegisterRoutes registers cart routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/cart", h.handleGet)
	r.Post("/cart/items", h.handleAdd)
	r.Delete("/cart/items/{index}", h.handleRemove)
	r.Post("/cart/sync", h.handleSync)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	items, err := h.carts.Items(r.Context(), h.scope(r), uid(r))
	if err != nil {
		utils.RespondError(w, http.StatusBadGateway, err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusOK, newCartResponse(items))
}

func (h *Handler) handleAdd(w http.ResponseWriter, r *http.Request) {
	var item cartService.Item
	if err := utils.DecodeJSON(r, &item); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	items, err := h.carts.Add(r.Context(), h.scope(r), uid(r), item)
	if err != nil {
		respondCartError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, newCartResponse(items))
}

func (h *Handler) handleRemove(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "index must be a number")
		return
	}
	items, err := h.carts.Remove(r.Context(), h.scope(r), uid(r), index)
	if err != nil {
		respondCartError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, newCartResponse(items))
}

// handleSync reports a sign-in state change. The browser cart is merged
// into the user's cloud cart once per sign-in.
func (h *Handler) handleSync(w http.ResponseWriter, r *http.Request) {
	id := uid(r)
	merged, err := h.carts.OnAuthStateChanged(r.Context(), h.scope(r), id)
	if err != nil {
		utils.RespondError(w, http.StatusBadGateway, err.Error())
		return
	}
	items, err := h.carts.Items(r.Context(), h.scope(r), id)
	if err != nil {
		utils.RespondError(w, http.StatusBadGateway, err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"merged": merged,
		"cart":   newCartResponse(items),
	})
}

func (h *Handler) scope(r *http.Request) *local.Adapter {
	return h.store.Scoped(middleware.ClientID(r.Context()))
}

func uid(r *http.Request) string {
	return r.Header.Get(middleware.HeaderUserID)
}

func respondCartError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, cartService.ErrInvalidItem), errors.Is(err, cartService.ErrIndexOutOfRange):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
	default:
		utils.RespondError(w, http.StatusBadGateway, err.Error())
	}
}
