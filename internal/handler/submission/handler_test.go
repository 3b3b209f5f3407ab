package submission

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/custompc-tech/storefront/backend/internal/clock"
	"github.com/custompc-tech/storefront/backend/internal/model/chat"
	submissionService "github.com/custompc-tech/storefront/backend/internal/service/submission"
	"github.com/custompc-tech/storefront/backend/internal/storage/kv"
	"github.com/custompc-tech/storefront/backend/internal/storage/local"
)

// offlineChats reports the hosted chat as unreachable.
type offlineChats struct{}

func (offlineChats) Initialized() bool { return false }

func (offlineChats) CreateSession(context.Context, chat.NewSession) (string, error) {
	return "", nil
}

func (offlineChats) SendMessage(_ context.Context, _ string, m chat.Message) (chat.Message, error) {
	return m, nil
}

func setupRouter(t *testing.T) chi.Router {
	t.Helper()
	store, err := kv.NewStore(kv.StoreTypeMemory)
	if err != nil {
		t.Fatalf("NewStore err: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	h := New(submissionService.NewService(offlineChats{}, local.New(store), clock.Real()))
	r := chi.NewRouter()
	h.RegisterRoutes(r, nil)
	return r
}

func do(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestContactGoesToBacklogWhenOffline(t *testing.T) {
	r := setupRouter(t)

	rec := do(t, r, http.MethodPost, "/submissions/contact", submissionService.Contact{Name: "Sam", Email: "sam@example.com", Message: "Do you ship to Canada?"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status %d body %s", rec.Code, rec.Body.String())
	}
	var receipt submissionService.Receipt
	if err := json.NewDecoder(rec.Body).Decode(&receipt); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !receipt.Success || receipt.Message != submissionService.ReceivedMessage {
		t.Fatalf("unexpected receipt: %+v", receipt)
	}

	rec = do(t, r, http.MethodGet, "/submissions/pending", nil)
	var pending struct {
		Submissions []submissionService.Submission `json:"submissions"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&pending); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(pending.Submissions) != 1 || pending.Submissions[0].ID != receipt.ChatID {
		t.Fatalf("unexpected backlog: %+v", pending.Submissions)
	}

	rec = do(t, r, http.MethodPost, "/submissions/"+receipt.ChatID+"/resolve", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("resolve status %d", rec.Code)
	}
	rec = do(t, r, http.MethodPost, "/submissions/missing/resolve", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestQuoteRequiresNameAndEmail(t *testing.T) {
	r := setupRouter(t)
	rec := do(t, r, http.MethodPost, "/submissions/quote", submissionService.Quote{Budget: "$2000"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
