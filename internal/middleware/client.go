// Package middleware holds the HTTP middleware shared by all handlers.
package middleware

import (
	"context"
	"net/http"
	"regexp"
	"time"

	"github.com/google/uuid"
)

const (
	// ClientCookie identifies one browser; its value scopes per-browser
	// state such as the cart, lockout counters and the admin session.
	ClientCookie   = "custompc_client"
	HeaderClientID = "X-Client-ID"
	HeaderUsername = "X-Username"
	HeaderUserID   = "X-User-ID"
	clientMaxAge   = 365 * 24 * time.Hour
)

var clientIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{8,64}$`)

type clientKey struct{}

// Client ensures every request carries a client id, issuing a cookie when
// the browser has none. An X-Client-ID header wins over the cookie.
func Client(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(HeaderClientID)
		if !clientIDPattern.MatchString(id) {
			id = ""
			if c, err := r.Cookie(ClientCookie); err == nil && clientIDPattern.MatchString(c.Value) {
				id = c.Value
			}
		}
		if id == "" {
			id = uuid.NewString()
			http.SetCookie(w, &http.Cookie{
				Name:     ClientCookie,
				Value:    id,
				Path:     "/",
				MaxAge:   int(clientMaxAge.Seconds()),
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}
		next.ServeHTTP(w, r.WithContext(WithClientID(r.Context(), id)))
	})
}

// WithClientID stores id in ctx.
func WithClientID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, clientKey{}, id)
}

// ClientID returns the id set by Client, or "" outside it.
func ClientID(ctx context.Context) string {
	id, _ := ctx.Value(clientKey{}).(string)
	return id
}
