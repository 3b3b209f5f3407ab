package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/custompc-tech/storefront/backend/internal/clock"
	"github.com/custompc-tech/storefront/backend/internal/config"
	"github.com/custompc-tech/storefront/backend/internal/handler/auth"
	"github.com/custompc-tech/storefront/backend/internal/handler/cart"
	"github.com/custompc-tech/storefront/backend/internal/handler/catalog"
	"github.com/custompc-tech/storefront/backend/internal/handler/chat"
	"github.com/custompc-tech/storefront/backend/internal/handler/payment"
	"github.com/custompc-tech/storefront/backend/internal/handler/presence"
	"github.com/custompc-tech/storefront/backend/internal/handler/submission"
	middlewarePkg "github.com/custompc-tech/storefront/backend/internal/middleware"
	"github.com/custompc-tech/storefront/backend/internal/model/build"
	authService "github.com/custompc-tech/storefront/backend/internal/service/auth"
	cartService "github.com/custompc-tech/storefront/backend/internal/service/cart"
	chatService "github.com/custompc-tech/storefront/backend/internal/service/chat"
	"github.com/custompc-tech/storefront/backend/internal/service/notify"
	paymentService "github.com/custompc-tech/storefront/backend/internal/service/payment"
	presenceService "github.com/custompc-tech/storefront/backend/internal/service/presence"
	reviewService "github.com/custompc-tech/storefront/backend/internal/service/review"
	submissionService "github.com/custompc-tech/storefront/backend/internal/service/submission"
	"github.com/custompc-tech/storefront/backend/internal/storage/local"
)

// Services bundles everything the router exposes.
type Services struct {
	Store       *local.Adapter
	Clock       clock.Clock
	Builds      build.Store
	Chat        *chatService.Service
	Presence    *presenceService.Service
	Notifier    *notify.Notifier
	Reviews     *reviewService.Service
	Gate        *authService.Gate
	Cart        *cartService.Service
	Submissions *submissionService.Service
	Payments    *paymentService.Processor
	Gateway     payment.Gateway
	Metrics     prometheus.Gatherer
}

// NewRouter wires HTTP routes to core services.
func NewRouter(cfg config.ServerConfig, env string, svc Services) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS(cfg.AllowedOrigins))
	r.Use(middlewarePkg.Client)

	admin := middlewarePkg.RequireAdmin(svc.Gate, svc.Store)
	limit := middlewarePkg.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst)

	if svc.Metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(svc.Metrics, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(api chi.Router) {
		chat.New(svc.Chat, svc.Presence, svc.Notifier).RegisterRoutes(api, admin)
		presence.New(svc.Presence, svc.Chat, svc.Gate, svc.Store, svc.Clock).RegisterRoutes(api, admin)
		catalog.New(svc.Builds, svc.Reviews, svc.Store, svc.Clock).RegisterRoutes(api)
		auth.New(svc.Gate, svc.Store).RegisterRoutes(api, limit)
		cart.New(svc.Cart, svc.Store).RegisterRoutes(api)
		submission.New(svc.Submissions).RegisterRoutes(api, admin)
		payment.New(svc.Payments, svc.Gateway, env, svc.Clock).RegisterRoutes(api, limit)
	})

	if cfg.ServeStatic && cfg.StaticDir != "" {
		r.Handle("/*", StaticSite(cfg.StaticDir))
	}

	return r
}
