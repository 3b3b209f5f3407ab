package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/custompc-tech/storefront/backend/internal/clock"
	"github.com/custompc-tech/storefront/backend/internal/config"
	"github.com/custompc-tech/storefront/backend/internal/model/build"
	authService "github.com/custompc-tech/storefront/backend/internal/service/auth"
	cartService "github.com/custompc-tech/storefront/backend/internal/service/cart"
	chatService "github.com/custompc-tech/storefront/backend/internal/service/chat"
	"github.com/custompc-tech/storefront/backend/internal/service/notify"
	paymentService "github.com/custompc-tech/storefront/backend/internal/service/payment"
	presenceService "github.com/custompc-tech/storefront/backend/internal/service/presence"
	reviewService "github.com/custompc-tech/storefront/backend/internal/service/review"
	submissionService "github.com/custompc-tech/storefront/backend/internal/service/submission"
	"github.com/custompc-tech/storefront/backend/internal/storage/kv"
	"github.com/custompc-tech/storefront/backend/internal/storage/local"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	store, err := kv.NewStore(kv.StoreTypeMemory)
	if err != nil {
		t.Fatalf("NewStore err: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	c := clock.Real()
	adapter := local.New(store)
	reg := prometheus.NewRegistry()
	chatSvc := chatService.NewService(chatService.NewLocalBackend(adapter, c), chatService.WithMetrics(chatService.NewMetrics(reg)))
	square := paymentService.NewSquareClient(paymentService.SquareConfig{})

	return NewRouter(config.ServerConfig{AllowedOrigins: []string{"*"}, RateLimitRPS: 5, RateLimitBurst: 10}, "test", Services{
		Store:       adapter,
		Clock:       c,
		Builds:      build.NewMemoryStore(build.Seed()),
		Chat:        chatSvc,
		Presence:    presenceService.NewService(chatSvc, c),
		Notifier:    notify.New(adapter),
		Reviews:     reviewService.NewService(adapter, c),
		Gate:        authService.NewGate(authService.DefaultCredentials(), c),
		Cart:        cartService.NewService(cartService.NewLocalCloudStore(adapter)),
		Submissions: submissionService.NewService(chatSvc, adapter, c),
		Payments:    paymentService.NewProcessor(square),
		Gateway:     square,
		Metrics:     reg,
	})
}

func TestRouterWiring(t *testing.T) {
	r := newTestRouter(t)

	cases := []struct {
		method, path string
		code         int
	}{
		{http.MethodGet, "/api/health", http.StatusOK},
		{http.MethodGet, "/api/builds", http.StatusOK},
		{http.MethodGet, "/api/cart", http.StatusOK},
		{http.MethodGet, "/api/chats", http.StatusUnauthorized},
		{http.MethodGet, "/api/visitors", http.StatusUnauthorized},
		{http.MethodGet, "/api/submissions/pending", http.StatusUnauthorized},
		{http.MethodGet, "/api/auth/admin/session", http.StatusOK},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(tc.method, tc.path, nil))
		if rec.Code != tc.code {
			t.Fatalf("%s %s: expected %d, got %d", tc.method, tc.path, tc.code, rec.Code)
		}
	}
}

func TestRouterIssuesClientCookie(t *testing.T) {
	r := newTestRouter(t)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	found := false
	for _, c := range rec.Result().Cookies() {
		if c.Name == "custompc_client" && c.Value != "" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a client cookie")
	}
}

func TestRouterExposesMetrics(t *testing.T) {
	r := newTestRouter(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/chats", strings.NewReader(`{"userId":"sam","userName":"Sam"}`)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create chat: %d %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), `custompc_chat_backend_calls_total{op="create_session",path="local"} 1`) {
		t.Fatalf("expected the dispatcher counter, got:\n%s", rec.Body.String())
	}
}
