// Package payment validates payment forms and relays charges to Square
// with bounded retries.
package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/custompc-tech/storefront/backend/internal/clock"
)

const (
	TokenizeAttempts = 2
	ChargeAttempts   = 2
	tokenizeBackoff  = time.Second
	chargeBackoff    = 2 * time.Second
	TokenStatusOK    = "OK"
)

// Amount is a dollar amount as typed by the customer. It decodes from a
// JSON string or number.
type Amount string

func (a *Amount) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = Amount(s)
		return nil
	}
	if string(data) == "null" {
		*a = ""
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("amount must be a string or number: %w", err)
	}
	*a = Amount(n.String())
	return nil
}

// Customer is the cardholder.
type Customer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

// Request is a payment submission.
type Request struct {
	SourceID       string   `json:"sourceId"`
	Amount         Amount   `json:"amount"`
	Customer       Customer `json:"customerInfo"`
	IdempotencyKey string   `json:"idempotencyKey,omitempty"`
}

// Result is returned to the payment page.
type Result struct {
	Success       bool   `json:"success"`
	TransactionID string `json:"transactionId,omitempty"`
	Amount        int64  `json:"amount,omitempty"`
	Status        string `json:"status,omitempty"`
	ReceiptURL    string `json:"receiptUrl,omitempty"`
	Last4         string `json:"last4,omitempty"`
	Error         string `json:"error,omitempty"`
}

// TokenResult is the outcome of card tokenization.
type TokenResult struct {
	Status string
	Token  string
	Errors []string
}

// Tokenizer turns card details into a single-use source token.
type Tokenizer interface {
	Tokenize(ctx context.Context) (TokenResult, error)
}

// SourceToken is a Tokenizer for tokens the browser already produced.
type SourceToken string

func (s SourceToken) Tokenize(context.Context) (TokenResult, error) {
	token := strings.TrimSpace(string(s))
	if token == "" {
		return TokenResult{Errors: []string{"missing card source"}}, nil
	}
	return TokenResult{Status: TokenStatusOK, Token: token}, nil
}

// ChargeRequest is what the gateway is asked to collect.
type ChargeRequest struct {
	SourceID       string
	AmountCents    int64
	Customer       Customer
	IdempotencyKey string
}

// Charge is a successful gateway payment.
type Charge struct {
	TransactionID string
	AmountCents   int64
	Status        string
	ReceiptURL    string
	Last4         string
}

// Charger collects a payment.
type Charger interface {
	Charge(ctx context.Context, req ChargeRequest) (Charge, error)
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Option configures a Processor.
type Option func(*Processor)

// WithSleep replaces the backoff wait.
func WithSleep(fn SleepFunc) Option {
	return func(p *Processor) { p.sleep = fn }
}

// WithClock sets the clock used for backoff waits.
func WithClock(c clock.Clock) Option {
	return func(p *Processor) { p.clock = c }
}

// Processor validates requests and drives tokenize and charge retries.
type Processor struct {
	charger Charger
	clock   clock.Clock
	sleep   SleepFunc
}

// NewProcessor creates a processor that charges through charger.
func NewProcessor(charger Charger, opts ...Option) *Processor {
	p := &Processor{charger: charger, clock: clock.Real()}
	for _, opt := range opts {
		opt(p)
	}
	if p.sleep == nil {
		p.sleep = p.wait
	}
	return p
}

func (p *Processor) wait(ctx context.Context, d time.Duration) error {
	select {
	case <-p.clock.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Process validates req, tokenizes through tok and charges the card. The
// result carries a customer-facing error on failure.
func (p *Processor) Process(ctx context.Context, tok Tokenizer, req Request) Result {
	if problems := req.Validate(); len(problems) > 0 {
		return Result{Error: problems[0]}
	}
	amount, _ := ParseAmount(string(req.Amount))

	token, err := p.TokenizeWithRetry(ctx, tok)
	if err != nil {
		return Result{Error: FormatUserError(err)}
	}
	if token.Status != TokenStatusOK {
		return Result{Error: FormatTokenizationError(token.Errors)}
	}

	key := req.IdempotencyKey
	if key == "" {
		key = uuid.NewString()
	}
	charge, err := p.ChargeWithRetry(ctx, ChargeRequest{
		SourceID:       token.Token,
		AmountCents:    ToCents(amount),
		Customer:       req.Customer,
		IdempotencyKey: key,
	})
	if err != nil {
		log.Printf("[payment] charge failed for %s: %v", req.Customer.Email, err)
		return Result{Error: FormatUserError(err)}
	}
	log.Printf("[payment] charge %s succeeded (%d cents)", charge.TransactionID, charge.AmountCents)
	return Result{
		Success:       true,
		TransactionID: charge.TransactionID,
		Amount:        charge.AmountCents,
		Status:        charge.Status,
		ReceiptURL:    charge.ReceiptURL,
		Last4:         charge.Last4,
	}
}

// TokenizeWithRetry tries tokenization up to TokenizeAttempts times with a
// 1s*attempt pause and returns the last result. Tokenizer errors become
// result errors; only a cancelled wait is returned as an error.
func (p *Processor) TokenizeWithRetry(ctx context.Context, tok Tokenizer) (TokenResult, error) {
	var last TokenResult
	for attempt := 1; attempt <= TokenizeAttempts; attempt++ {
		res, err := tok.Tokenize(ctx)
		if err == nil && res.Status == TokenStatusOK {
			return res, nil
		}
		if err != nil {
			res = TokenResult{Errors: []string{err.Error()}}
		}
		last = res
		if attempt < TokenizeAttempts {
			if err := p.sleep(ctx, tokenizeBackoff*time.Duration(attempt)); err != nil {
				return last, err
			}
		}
	}
	return last, nil
}

// ChargeWithRetry tries the charge up to ChargeAttempts times with a
// 2s*attempt pause. Card failures stop immediately and network failures
// retry without waiting.
func (p *Processor) ChargeWithRetry(ctx context.Context, req ChargeRequest) (Charge, error) {
	var lastErr error
	for attempt := 1; attempt <= ChargeAttempts; attempt++ {
		charge, err := p.charger.Charge(ctx, req)
		if err == nil {
			return charge, nil
		}
		lastErr = err
		log.Printf("[payment] attempt %d/%d failed: %v", attempt, ChargeAttempts, err)
		if IsNonRetryable(err) {
			break
		}
		if attempt < ChargeAttempts && !IsNetworkError(err) {
			if err := p.sleep(ctx, chargeBackoff*time.Duration(attempt)); err != nil {
				return Charge{}, err
			}
		}
	}
	return Charge{}, lastErr
}
