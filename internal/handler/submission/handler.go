package submission

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	submissionService "github.com/custompc-tech/storefront/backend/internal/service/submission"
	"github.com/custompc-tech/storefront/backend/pkg/utils"
)

// Handler serves the contact and quote forms.
type Handler struct {
	submissions *submissionService.Service
}

// New creates a submission handler.
func New(submissions *submissionService.Service) *Handler {
	return &Handler{submissions: submissions}
}

// RegisterRoutes registers form routes. admin guards the backlog views.
func (h *Handler) RegisterRoutes(r chi.Router, admin func(http.Handler) http.Handler) {
	if admin == nil {
		admin = func(next http.Handler) http.Handler { return next }
	}
	r.Post("/submissions/contact", h.handleContact)
	r.Post("/submissions/quote", h.handleQuote)
	r.With(admin).Get("/submissions/pending", h.handlePending)
	r.With(admin).Post("/submissions/{submissionID}/resolve", h.handleResolve)
}

func (h *Handler) handleContact(w http.ResponseWriter, r *http.Request) {
	var in submissionService.Contact
	if err := utils.DecodeJSON(r, &in); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	receipt, err := h.submissions.SubmitContact(r.Context(), in)
	respondReceipt(w, receipt, err)
}

func (h *Handler) handleQuote(w http.ResponseWriter, r *http.Request) {
	var in submissionService.Quote
	if err := utils.DecodeJSON(r, &in); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	receipt, err := h.submissions.SubmitQuote(r.Context(), in)
	respondReceipt(w, receipt, err)
}

func (h *Handler) handlePending(w http.ResponseWriter, r *http.Request) {
	pending := h.submissions.Pending(r.Context())
	utils.RespondJSON(w, http.StatusOK, map[string]any{"submissions": pending, "count": len(pending)})
}

func (h *Handler) handleResolve(w http.ResponseWriter, r *http.Request) {
	err := h.submissions.Resolve(r.Context(), chi.URLParam(r, "submissionID"))
	switch {
	case errors.Is(err, submissionService.ErrNotFound):
		utils.RespondError(w, http.StatusNotFound, err.Error())
	case err != nil:
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func respondReceipt(w http.ResponseWriter, receipt submissionService.Receipt, err error) {
	switch {
	case errors.Is(err, submissionService.ErrMissingFields):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
	case err != nil:
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
	default:
		utils.RespondJSON(w, http.StatusCreated, receipt)
	}
}
