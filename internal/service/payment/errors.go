package payment

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

var (
	ErrNotConfigured = errors.New("square is not configured")
	ErrNoSource      = errors.New("card validation failed")
)

var nonRetryable = []string{
	"declined",
	"insufficient funds",
	"invalid card",
	"expired card",
	"incorrect cvc",
	"card not supported",
}

var nonRetryableCodes = map[string]bool{
	"GENERIC_DECLINE":              true,
	"INSUFFICIENT_FUNDS":           true,
	"INVALID_CARD":                 true,
	"CARD_EXPIRED":                 true,
	"CVV_FAILURE":                  true,
	"CARD_NOT_SUPPORTED":           true,
	"INVALID_EXPIRATION":           true,
	"CARD_DECLINED":                true,
	"TRANSACTION_LIMIT":            true,
	"PAN_FAILURE":                  true,
	"ADDRESS_VERIFICATION_FAILURE": true,
}

var networkMarkers = []string{
	"network error",
	"timeout",
	"connection failed",
	"fetch failed",
}

var userMessages = []struct {
	code, message string
}{
	{"PAYMENT_METHOD_NOT_SUPPORTED", "This payment method is not supported. Please try a different card."},
	{"AMOUNT_TOO_HIGH", "Payment amount is too high. Please contact support for large transactions."},
	{"AMOUNT_TOO_LOW", "Payment amount is too low. Minimum payment is $1.00."},
	{"GENERIC_DECLINE", "Payment was declined. Please try a different payment method or contact your bank."},
	{"INSUFFICIENT_FUNDS", "Insufficient funds. Please try a different payment method."},
	{"CVV_FAILURE", "Security code verification failed. Please check your CVV and try again."},
	{"ADDRESS_VERIFICATION_FAILURE", "Address verification failed. Please check your billing address."},
}

var tokenMessages = []struct {
	code, message string
}{
	{"INVALID_CARD_NUMBER", "Invalid card number. Please check and try again."},
	{"INVALID_EXPIRATION_DATE", "Invalid expiration date. Please check the month and year."},
	{"INVALID_CVV", "Invalid security code (CVV). Please check the 3-4 digit code on your card."},
	{"CARD_EXPIRED", "This card has expired. Please use a different card."},
	{"UNSUPPORTED_CARD_BRAND", "This card type is not supported. Please use Visa, Mastercard, American Express, or Discover."},
}

const networkMessage = "Network connection error. Please check your internet connection and try again."

// GatewayError is a rejection returned by the payment gateway.
type GatewayError struct {
	StatusCode int
	Category   string
	Code       string
	Detail     string
}

func (e *GatewayError) Error() string {
	if e.Code == "" {
		return e.Detail
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Detail)
}

// IsNonRetryable reports whether a charge failure is final for the card.
func IsNonRetryable(err error) bool {
	if err == nil {
		return false
	}
	var gw *GatewayError
	if errors.As(err, &gw) && nonRetryableCodes[gw.Code] {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range nonRetryable {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// IsNetworkError reports whether err came from the transport rather than
// the gateway.
func IsNetworkError(err error) bool {
	if err == nil {
		return false
	}
	var gw *GatewayError
	if errors.As(err, &gw) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range networkMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// FormatTokenizationError maps card validation details to the message for
// the first one.
func FormatTokenizationError(details []string) string {
	if len(details) == 0 {
		return "Card validation failed. Please check your card information."
	}
	detail := details[0]
	for _, m := range tokenMessages {
		if strings.Contains(detail, m.code) {
			return m.message
		}
	}
	if detail == "" {
		return "Card validation error"
	}
	return detail
}

// FormatUserError maps a processing failure to a customer-facing message.
func FormatUserError(err error) string {
	if err == nil {
		return ""
	}
	if IsNetworkError(err) {
		return networkMessage
	}
	msg := err.Error()
	var gw *GatewayError
	if errors.As(err, &gw) {
		msg = gw.Code + " " + gw.Detail
	}
	for _, m := range userMessages {
		if strings.Contains(msg, m.code) {
			return m.message
		}
	}
	if gw != nil && gw.Detail != "" {
		return gw.Detail
	}
	if msg == "" {
		return "An unexpected error occurred"
	}
	return msg
}
