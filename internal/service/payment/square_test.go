package payment_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custompc-tech/storefront/backend/internal/service/payment"
)

func TestSquareChargeRequestShape(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/payments", r.URL.Path)
		assert.Equal(t, "Bearer token-123", r.Header.Get("Authorization"))
		assert.Equal(t, payment.SquareVersion, r.Header.Get("Square-Version"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"payment":{"id":"pay_9","status":"COMPLETED","amount_money":{"amount":4999,"currency":"USD"},"receipt_url":"https://squareup.com/r/9","card_details":{"card":{"last_4":"4242"}}}}`))
	}))
	defer srv.Close()

	client := payment.NewSquareClient(payment.SquareConfig{BaseURL: srv.URL, AccessToken: "token-123", LocationID: "LOC1"})
	charge, err := client.Charge(context.Background(), payment.ChargeRequest{
		SourceID:       "cnon:ok",
		AmountCents:    4999,
		Customer:       payment.Customer{Name: "Ada Lovelace", Email: "ada@example.com"},
		IdempotencyKey: "idem-1",
	})
	require.NoError(t, err)
	require.Equal(t, "pay_9", charge.TransactionID)
	require.Equal(t, "4242", charge.Last4)
	require.Equal(t, int64(4999), charge.AmountCents)

	require.Equal(t, "cnon:ok", got["source_id"])
	require.Equal(t, "idem-1", got["idempotency_key"])
	require.Equal(t, "LOC1", got["location_id"])
	require.Equal(t, "Payment for CustomPC.tech - Ada Lovelace", got["note"])
	money := got["amount_money"].(map[string]any)
	require.Equal(t, float64(4999), money["amount"])
	require.Equal(t, "USD", money["currency"])
}

func TestSquareChargeGatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = w.Write([]byte(`{"errors":[{"category":"PAYMENT_METHOD_ERROR","code":"INSUFFICIENT_FUNDS","detail":"Authorization error: 'INSUFFICIENT_FUNDS'"}]}`))
	}))
	defer srv.Close()

	client := payment.NewSquareClient(payment.SquareConfig{BaseURL: srv.URL, AccessToken: "t", LocationID: "L"})
	_, err := client.Charge(context.Background(), payment.ChargeRequest{SourceID: "cnon:x", AmountCents: 100})
	var gw *payment.GatewayError
	require.ErrorAs(t, err, &gw)
	require.Equal(t, "INSUFFICIENT_FUNDS", gw.Code)
	require.Equal(t, http.StatusPaymentRequired, gw.StatusCode)
	require.True(t, payment.IsNonRetryable(err))
	require.Equal(t, "Insufficient funds. Please try a different payment method.", payment.FormatUserError(err))
}

func TestSquareLocation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/locations/LOC1", r.URL.Path)
		_, _ = w.Write([]byte(`{"location":{"id":"LOC1","name":"CustomPC"}}`))
	}))
	defer srv.Close()

	client := payment.NewSquareClient(payment.SquareConfig{BaseURL: srv.URL, AccessToken: "t", LocationID: "LOC1"})
	loc, err := client.Location(context.Background())
	require.NoError(t, err)
	require.Equal(t, "CustomPC", loc["name"])
}

func TestSquareNotConfigured(t *testing.T) {
	client := payment.NewSquareClient(payment.SquareConfig{})
	require.False(t, client.Configured())
	_, err := client.Charge(context.Background(), payment.ChargeRequest{})
	require.ErrorIs(t, err, payment.ErrNotConfigured)
}
