// Package auth implements the admin gate: a fixed identity compared in
// plain text, a failed-attempt log with lockout, and an 8 hour session.
//
// The gate is client-grade. The credentials ship with the binary and anyone
// who can read it can sign in; it only keeps casual visitors out of the
// admin pages.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/custompc-tech/storefront/backend/internal/clock"
	"github.com/custompc-tech/storefront/backend/internal/ids"
	"github.com/custompc-tech/storefront/backend/internal/storage/local"
)

const (
	SessionMaxAge   = 8 * time.Hour
	LockoutDuration = 5 * time.Minute
	AttemptWindow   = 5 * time.Minute
	MaxAttempts     = 5
	attemptLogSize  = 10
	redacted        = "[REDACTED]"
	RoleAdmin       = "admin"
)

var (
	ErrLockedOut         = errors.New("account temporarily locked")
	ErrInvalidForm       = errors.New("invalid login form")
	ErrInvalidCredential = errors.New("invalid credentials")
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Credentials is the admin identity.
type Credentials struct {
	Username string
	Password string
	Email    string
}

// DefaultCredentials returns the identity the site was published with.
func DefaultCredentials() Credentials {
	return Credentials{
		Username: "Minty-Komodo",
		Password: "hJ.?'0PcU0).1.0.1PCimA4%oU",
		Email:    "griffin@crowhurst.ws",
	}
}

// LoginInput is the submitted login form.
type LoginInput struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
}

// Session is the blob stored for a signed-in admin.
type Session struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	LoginTime int64  `json:"loginTime"`
	SessionID string `json:"sessionId"`
}

// FailedAttempt is one entry in the failure log.
type FailedAttempt struct {
	Field     string `json:"field"`
	Value     string `json:"value"`
	Timestamp int64  `json:"timestamp"`
}

// LockoutError reports an active lockout.
type LockoutError struct {
	RemainingMinutes int
}

func (e *LockoutError) Error() string {
	return fmt.Sprintf("Account temporarily locked. Please try again in %d minute(s).", e.RemainingMinutes)
}

func (e *LockoutError) Is(target error) bool { return target == ErrLockedOut }

// FormError reports a login form that failed validation.
type FormError struct {
	Message string
}

func (e *FormError) Error() string { return e.Message }

func (e *FormError) Is(target error) bool { return target == ErrInvalidForm }

// CredentialError reports which field did not match. LockedOut is set when
// this failure triggered a lockout.
type CredentialError struct {
	Field     string
	LockedOut bool
}

func (e *CredentialError) Error() string {
	switch e.Field {
	case "username":
		return "Invalid username. Please check your credentials."
	case "email":
		return "Invalid email address. Please check your credentials."
	default:
		return "Invalid password. Please check your credentials."
	}
}

func (e *CredentialError) Is(target error) bool { return target == ErrInvalidCredential }

// Gate checks admin logins. State lives in the caller's client scope.
type Gate struct {
	creds Credentials
	clock clock.Clock
}

// NewGate creates a gate for creds.
func NewGate(creds Credentials, c clock.Clock) *Gate {
	if c == nil {
		c = clock.Real()
	}
	return &Gate{creds: creds, clock: c}
}

// ValidateLoginForm returns a user-facing message for the first problem in
// the form, or "" when it is acceptable.
func ValidateLoginForm(in LoginInput) string {
	username := strings.TrimSpace(in.Username)
	password := strings.TrimSpace(in.Password)
	email := strings.TrimSpace(in.Email)
	switch {
	case username == "":
		return "Username is required"
	case password == "":
		return "Password is required"
	case email == "":
		return "Email is required"
	case !emailPattern.MatchString(email):
		return "Please enter a valid email address"
	case len([]rune(username)) < 3:
		return "Username must be at least 3 characters long"
	case len([]rune(password)) < 8:
		return "Password must be at least 8 characters long"
	}
	return ""
}

// Login checks the lockout, then the form, then each credential in turn.
func (g *Gate) Login(ctx context.Context, scope *local.Adapter, in LoginInput) (Session, error) {
	if minutes := g.LockedOutFor(ctx, scope); minutes > 0 {
		return Session{}, &LockoutError{RemainingMinutes: minutes}
	}
	if msg := ValidateLoginForm(in); msg != "" {
		return Session{}, &FormError{Message: msg}
	}

	username := strings.TrimSpace(in.Username)
	email := strings.TrimSpace(in.Email)
	password := strings.TrimSpace(in.Password)

	var field, value string
	switch {
	case username != g.creds.Username:
		field, value = "username", username
	case email != g.creds.Email:
		field, value = "email", email
	case password != g.creds.Password:
		field, value = "password", redacted
	}
	if field != "" {
		locked, err := g.recordFailure(ctx, scope, field, value)
		if err != nil {
			return Session{}, err
		}
		return Session{}, &CredentialError{Field: field, LockedOut: locked}
	}

	now := g.clock.Now()
	sess := Session{
		Username:  username,
		Email:     email,
		Role:      RoleAdmin,
		LoginTime: clock.Millis(now),
		SessionID: ids.New(ids.PrefixAdmin, now),
	}
	if err := local.WriteValue(ctx, scope, local.KeyAdminSession, sess); err != nil {
		return Session{}, fmt.Errorf("store admin session: %w", err)
	}
	if err := g.clearFailures(ctx, scope); err != nil {
		return Session{}, err
	}
	log.Printf("[auth] admin session %s started", sess.SessionID)
	return sess, nil
}

// Session returns the stored admin session while it is younger than
// SessionMaxAge and still names the admin identity.
func (g *Gate) Session(ctx context.Context, scope *local.Adapter) (Session, bool) {
	sess, ok := local.ReadValue[Session](ctx, scope, local.KeyAdminSession)
	if !ok || sess.LoginTime == 0 {
		return Session{}, false
	}
	if sess.Username != g.creds.Username || sess.Email != g.creds.Email {
		return Session{}, false
	}
	age := clock.Millis(g.clock.Now()) - sess.LoginTime
	if age >= SessionMaxAge.Milliseconds() {
		return Session{}, false
	}
	return sess, true
}

// Logout clears the admin session.
func (g *Gate) Logout(ctx context.Context, scope *local.Adapter) error {
	return scope.Remove(ctx, local.KeyAdminSession)
}

// FailedAttempts returns the failure log, oldest first.
func (g *Gate) FailedAttempts(ctx context.Context, scope *local.Adapter) []FailedAttempt {
	return local.ReadList[FailedAttempt](ctx, scope, local.KeyFailedAttempts)
}

// LockedOutFor returns the remaining lockout in whole minutes, rounded up,
// or 0 when not locked. An expired lockout is cleared.
func (g *Gate) LockedOutFor(ctx context.Context, scope *local.Adapter) int {
	until := scope.ReadInt(ctx, local.KeyLockoutUntil)
	if until == 0 {
		return 0
	}
	now := clock.Millis(g.clock.Now())
	if now < until {
		return int(math.Ceil(float64(until-now) / float64(time.Minute.Milliseconds())))
	}
	if err := scope.Remove(ctx, local.KeyLockoutUntil); err != nil {
		log.Printf("[auth] clear expired lockout: %v", err)
	}
	return 0
}

func (g *Gate) recordFailure(ctx context.Context, scope *local.Adapter, field, value string) (bool, error) {
	if field == "password" {
		value = redacted
	}
	now := clock.Millis(g.clock.Now())
	attempts := local.ReadList[FailedAttempt](ctx, scope, local.KeyFailedAttempts)
	attempts = append(attempts, FailedAttempt{Field: field, Value: value, Timestamp: now})
	if len(attempts) > attemptLogSize {
		attempts = attempts[len(attempts)-attemptLogSize:]
	}
	if err := local.WriteList(ctx, scope, local.KeyFailedAttempts, attempts); err != nil {
		return false, fmt.Errorf("record failed attempt: %w", err)
	}

	cutoff := now - AttemptWindow.Milliseconds()
	recent := 0
	for _, a := range attempts {
		if a.Timestamp > cutoff {
			recent++
		}
	}
	if recent < MaxAttempts {
		return false, nil
	}
	if err := scope.WriteInt(ctx, local.KeyLockoutUntil, now+LockoutDuration.Milliseconds()); err != nil {
		return false, fmt.Errorf("set lockout: %w", err)
	}
	log.Printf("[auth] %d failed admin logins within %s, locking for %s", recent, AttemptWindow, LockoutDuration)
	return true, nil
}

func (g *Gate) clearFailures(ctx context.Context, scope *local.Adapter) error {
	if err := scope.Remove(ctx, local.KeyFailedAttempts); err != nil {
		return err
	}
	return scope.Remove(ctx, local.KeyLockoutUntil)
}
