package catalog

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/custompc-tech/storefront/backend/internal/clock"
	"github.com/custompc-tech/storefront/backend/internal/middleware"
	"github.com/custompc-tech/storefront/backend/internal/model/build"
	reviewService "github.com/custompc-tech/storefront/backend/internal/service/review"
	"github.com/custompc-tech/storefront/backend/internal/storage/local"
	"github.com/custompc-tech/storefront/backend/pkg/utils"
)

// Handler serves the build catalog and its reviews.
type Handler struct {
	builds  build.Store
	reviews *reviewService.Service
	store   *local.Adapter
	clock   clock.Clock
}

// New creates a catalog handler. store is the root adapter; per-client
// state such as the anonymous reviewer id is kept under the client scope.
func New(builds build.Store, reviews *reviewService.Service, store *local.Adapter, c clock.Clock) *Handler {
	if c == nil {
		c = clock.Real()
	}
	return &Handler{builds: builds, reviews: reviews, store: store, clock: c}
}

// RegisterRoutes registers catalog routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/builds", h.handleListBuilds)
	r.Route("/builds/{buildID}", func(r chi.Router) {
		r.Use(h.requireBuild)
		r.Get("/", h.handleGetBuild)
		r.Get("/reviews", h.handleListReviews)
		r.Post("/reviews", h.handleSubmitReview)
		r.Put("/reviews/{reviewID}", h.handleUpdateReview)
		r.Delete("/reviews/{reviewID}", h.handleDeleteReview)
	})
}

func (h *Handler) handleListBuilds(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.builds.List())
}

func (h *Handler) handleGetBuild(w http.ResponseWriter, r *http.Request) {
	b, _ := h.builds.FindByID(chi.URLParam(r, "buildID"))
	utils.RespondJSON(w, http.StatusOK, b)
}

func (h *Handler) requireBuild(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := h.builds.FindByID(chi.URLParam(r, "buildID")); !ok {
			utils.RespondError(w, http.StatusNotFound, "build not found")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) handleListReviews(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.reviews.List(r.Context(), chi.URLParam(r, "buildID")))
}

func (h *Handler) handleSubmitReview(w http.ResponseWriter, r *http.Request) {
	var in reviewService.Input
	if err := utils.DecodeJSON(r, &in); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	author, err := h.author(r)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	rev, err := h.reviews.Submit(r.Context(), chi.URLParam(r, "buildID"), author, in)
	if err != nil {
		respondReviewError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusCreated, rev)
}

func (h *Handler) handleUpdateReview(w http.ResponseWriter, r *http.Request) {
	var in reviewService.Input
	if err := utils.DecodeJSON(r, &in); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	author, err := h.author(r)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	rev, err := h.reviews.Update(r.Context(), chi.URLParam(r, "buildID"), chi.URLParam(r, "reviewID"), author, in)
	if err != nil {
		respondReviewError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, rev)
}

func (h *Handler) handleDeleteReview(w http.ResponseWriter, r *http.Request) {
	author, err := h.author(r)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := h.reviews.Delete(r.Context(), chi.URLParam(r, "buildID"), chi.URLParam(r, "reviewID"), author); err != nil {
		respondReviewError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) author(r *http.Request) (reviewService.Author, error) {
	scope := h.store.Scoped(middleware.ClientID(r.Context()))
	return reviewService.ResolveAuthor(r.Context(), scope, h.clock, r.Header.Get(middleware.HeaderUsername))
}

func respondReviewError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, reviewService.ErrReviewNotFound):
		utils.RespondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, reviewService.ErrNotOwner):
		utils.RespondError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, reviewService.ErrInvalidRating), errors.Is(err, reviewService.ErrTextTooShort):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
	default:
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
	}
}
