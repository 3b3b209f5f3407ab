package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultSquareBaseURL = "https://connect.squareup.com"
	SquareVersion        = "2023-10-18"
	currencyUSD          = "USD"
)

// SquareConfig holds the gateway credentials. They are read from the
// environment only.
type SquareConfig struct {
	BaseURL     string
	AccessToken string
	LocationID  string
	Timeout     time.Duration
}

// Configured reports whether both credentials are present.
func (c SquareConfig) Configured() bool {
	return c.AccessToken != "" && c.LocationID != ""
}

// SquareClient calls the Square Payments and Locations APIs.
type SquareClient struct {
	cfg  SquareConfig
	http *http.Client
}

// NewSquareClient creates a client for cfg.
func NewSquareClient(cfg SquareConfig) *SquareClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultSquareBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &SquareClient{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}}
}

// Configured reports whether the client has credentials.
func (c *SquareClient) Configured() bool {
	return c.cfg.Configured()
}

type squareMoney struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type squarePaymentRequest struct {
	SourceID       string      `json:"source_id"`
	AmountMoney    squareMoney `json:"amount_money"`
	IdempotencyKey string      `json:"idempotency_key"`
	BuyerEmail     string      `json:"buyer_email_address,omitempty"`
	Note           string      `json:"note,omitempty"`
	LocationID     string      `json:"location_id"`
}

type squareError struct {
	Category string `json:"category"`
	Code     string `json:"code"`
	Detail   string `json:"detail"`
}

type squarePaymentResponse struct {
	Payment *struct {
		ID          string      `json:"id"`
		Status      string      `json:"status"`
		AmountMoney squareMoney `json:"amount_money"`
		ReceiptURL  string      `json:"receipt_url"`
		CardDetails struct {
			Card struct {
				Last4 string `json:"last_4"`
			} `json:"card"`
		} `json:"card_details"`
	} `json:"payment"`
	Errors []squareError `json:"errors"`
}

// Charge creates a payment for req.
func (c *SquareClient) Charge(ctx context.Context, req ChargeRequest) (Charge, error) {
	if !c.Configured() {
		return Charge{}, ErrNotConfigured
	}
	body := squarePaymentRequest{
		SourceID:       req.SourceID,
		AmountMoney:    squareMoney{Amount: req.AmountCents, Currency: currencyUSD},
		IdempotencyKey: req.IdempotencyKey,
		BuyerEmail:     req.Customer.Email,
		Note:           "Payment for CustomPC.tech - " + req.Customer.Name,
		LocationID:     c.cfg.LocationID,
	}
	var out squarePaymentResponse
	status, err := c.do(ctx, http.MethodPost, "/v2/payments", body, &out)
	if err != nil {
		return Charge{}, err
	}
	if status >= 300 || out.Payment == nil {
		return Charge{}, gatewayError(status, out.Errors, "Payment processing failed")
	}
	p := out.Payment
	last4 := p.CardDetails.Card.Last4
	if last4 == "" {
		last4 = "Unknown"
	}
	return Charge{
		TransactionID: p.ID,
		AmountCents:   p.AmountMoney.Amount,
		Status:        p.Status,
		ReceiptURL:    p.ReceiptURL,
		Last4:         last4,
	}, nil
}

// Location fetches the configured location, used as a connectivity check.
func (c *SquareClient) Location(ctx context.Context) (map[string]any, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	var out struct {
		Location map[string]any `json:"location"`
		Errors   []squareError  `json:"errors"`
	}
	status, err := c.do(ctx, http.MethodGet, "/v2/locations/"+c.cfg.LocationID, nil, &out)
	if err != nil {
		return nil, err
	}
	if status >= 300 {
		return nil, gatewayError(status, out.Errors, "Square connection failed")
	}
	return out.Location, nil
}

func (c *SquareClient) do(ctx context.Context, method, path string, in, out any) (int, error) {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return 0, fmt.Errorf("encode square request: %w", err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, body)
	if err != nil {
		return 0, fmt.Errorf("build square request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.AccessToken)
	req.Header.Set("Square-Version", SquareVersion)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("square request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
		return resp.StatusCode, fmt.Errorf("decode square response (status %d): %w", resp.StatusCode, err)
	}
	return resp.StatusCode, nil
}

func gatewayError(status int, errs []squareError, fallback string) *GatewayError {
	if len(errs) == 0 {
		return &GatewayError{StatusCode: status, Detail: fallback}
	}
	e := errs[0]
	return &GatewayError{StatusCode: status, Category: e.Category, Code: e.Code, Detail: e.Detail}
}
