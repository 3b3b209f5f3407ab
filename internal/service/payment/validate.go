package payment

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

const (
	MinAmount = 1.00
	MaxAmount = 999999.99
)

var (
	leadingNumber = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?`)
	namePattern   = regexp.MustCompile(`^[a-zA-Z\s\-'.]+$`)
	hasLetter     = regexp.MustCompile(`[a-zA-Z]`)
	emailPattern  = regexp.MustCompile("^[a-zA-Z0-9.!#$%&'*+/=?^_`{|}~-]+@[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(?:\\.[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$")
	phoneNoise    = regexp.MustCompile(`[\s\-()+.]`)
	allDigits     = regexp.MustCompile(`^\d+$`)
)

var domainTypos = map[string]string{
	"gmial.com":   "gmail.com",
	"gmai.com":    "gmail.com",
	"yahooo.com":  "yahoo.com",
	"hotmial.com": "hotmail.com",
	"outlok.com":  "outlook.com",
}

// ParseAmount reads the leading decimal number of raw, ignoring trailing
// text. ok is false when raw does not start with a number.
func ParseAmount(raw string) (float64, bool) {
	m := leadingNumber.FindString(strings.TrimSpace(raw))
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// ToCents converts a dollar amount to whole cents.
func ToCents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// ValidateAmount returns the first problem with a dollar amount as typed by
// the customer, or "".
func ValidateAmount(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return "Payment amount is required"
	}
	v, ok := ParseAmount(raw)
	if !ok {
		return "Payment amount must be a valid number"
	}
	if v <= 0 {
		return "Payment amount must be greater than $0.00"
	}
	if v < MinAmount {
		return "Payment amount must be at least $1.00"
	}
	if v > MaxAmount {
		return "Payment amount cannot exceed $999,999.99"
	}
	if parts := strings.SplitN(raw, ".", 3); len(parts) > 1 && len(parts[1]) > 2 {
		return "Payment amount cannot have more than 2 decimal places"
	}
	return ""
}

// ValidateCustomerName checks the cardholder name.
func ValidateCustomerName(name string) string {
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		return "Customer name is required"
	case len(name) < 2:
		return "Customer name must be at least 2 characters long"
	case len(name) > 100:
		return "Customer name cannot exceed 100 characters"
	case !namePattern.MatchString(name):
		return "Customer name can only contain letters, spaces, hyphens, and apostrophes"
	case !hasLetter.MatchString(name):
		return "Customer name must contain at least one letter"
	}
	return ""
}

// ValidateCustomerEmail checks the receipt address and suggests a fix for
// common domain typos.
func ValidateCustomerEmail(email string) string {
	email = strings.TrimSpace(email)
	if email == "" {
		return "Customer email is required"
	}
	if len(email) > 254 {
		return "Email address is too long (maximum 254 characters)"
	}
	if !emailPattern.MatchString(email) {
		return "Please enter a valid email address"
	}
	if at := strings.LastIndex(email, "@"); at >= 0 {
		domain := strings.ToLower(email[at+1:])
		if fix, ok := domainTypos[domain]; ok {
			return "Did you mean " + email[:at+1] + fix + "?"
		}
	}
	return ""
}

// ValidatePhoneNumber checks an optional phone number.
func ValidatePhoneNumber(phone string) string {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return ""
	}
	digits := phoneNoise.ReplaceAllString(phone, "")
	switch {
	case !allDigits.MatchString(digits):
		return "Phone number can only contain digits, spaces, hyphens, parentheses, and plus sign"
	case len(digits) < 7:
		return "Phone number is too short (minimum 7 digits)"
	case len(digits) > 15:
		return "Phone number is too long (maximum 15 digits)"
	case len(digits) == 10 && (digits[0] == '0' || digits[0] == '1'):
		return "Invalid area code (cannot start with 0 or 1)"
	}
	return ""
}

// Validate runs every field check in form order and returns all problems.
func (r Request) Validate() []string {
	var problems []string
	for _, msg := range []string{
		ValidateAmount(string(r.Amount)),
		ValidateCustomerName(r.Customer.Name),
		ValidateCustomerEmail(r.Customer.Email),
		ValidatePhoneNumber(r.Customer.Phone),
	} {
		if msg != "" {
			problems = append(problems, msg)
		}
	}
	return problems
}
