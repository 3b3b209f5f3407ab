package payment

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/custompc-tech/storefront/backend/internal/clock"
	paymentService "github.com/custompc-tech/storefront/backend/internal/service/payment"
	"github.com/custompc-tech/storefront/backend/pkg/utils"
)

// Gateway is the part of the Square client used outside charging.
type Gateway interface {
	Configured() bool
	Location(ctx context.Context) (map[string]any, error)
}

// Handler relays card payments to the gateway.
type Handler struct {
	processor   *paymentService.Processor
	gateway     Gateway
	environment string
	clock       clock.Clock
}

// New creates a payment handler.
func New(processor *paymentService.Processor, gateway Gateway, environment string, c clock.Clock) *Handler {
	if c == nil {
		c = clock.Real()
	}
	return &Handler{processor: processor, gateway: gateway, environment: environment, clock: c}
}

// RegisterRoutes registers payment routes. limit throttles charges per
// address and may be nil.
func (h *Handler) RegisterRoutes(r chi.Router, limit func(http.Handler) http.Handler) {
	process := http.Handler(http.HandlerFunc(h.handleProcess))
	if limit != nil {
		process = limit(process)
	}
	r.Get("/health", h.handleHealth)
	r.Method(http.MethodPost, "/payments/process", process)
	r.Get("/test-square", h.handleTestSquare)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"status":           "ok",
		"environment":      h.environment,
		"squareConfigured": h.gateway.Configured(),
		"timestamp":        h.clock.Now().UTC().Format(time.RFC3339),
	})
}

func (h *Handler) handleProcess(w http.ResponseWriter, r *http.Request) {
	if !h.gateway.Configured() {
		utils.RespondJSON(w, http.StatusServiceUnavailable, paymentService.Result{Error: paymentService.ErrNotConfigured.Error()})
		return
	}

	var req paymentService.Request
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondJSON(w, http.StatusBadRequest, paymentService.Result{Error: err.Error()})
		return
	}
	if req.SourceID == "" || req.Amount == "" || req.Customer == (paymentService.Customer{}) {
		utils.RespondJSON(w, http.StatusBadRequest, paymentService.Result{Error: "Missing required fields: sourceId, amount, customerInfo"})
		return
	}

	log.Printf("[payment] processing payment for %s (amount %s)", req.Customer.Email, req.Amount)
	result := h.processor.Process(r.Context(), paymentService.SourceToken(req.SourceID), req)
	if !result.Success {
		utils.RespondJSON(w, http.StatusBadRequest, result)
		return
	}
	utils.RespondJSON(w, http.StatusOK, result)
}

func (h *Handler) handleTestSquare(w http.ResponseWriter, r *http.Request) {
	location, err := h.gateway.Location(r.Context())
	if err != nil {
		status := http.StatusInternalServerError
		var gwErr *paymentService.GatewayError
		if errors.As(err, &gwErr) {
			status = http.StatusBadRequest
		}
		utils.RespondJSON(w, status, map[string]any{"success": false, "error": err.Error()})
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"location": location,
		"message":  "Square connection successful",
	})
}
