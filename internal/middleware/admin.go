package middleware

import (
	"context"
	"net/http"

	"github.com/custompc-tech/storefront/backend/internal/service/auth"
	"github.com/custompc-tech/storefront/backend/internal/storage/local"
	"github.com/custompc-tech/storefront/backend/pkg/utils"
)

// SessionChecker reports the admin session of a client scope.
type SessionChecker interface {
	Session(ctx context.Context, scope *local.Adapter) (auth.Session, bool)
}

type adminKey struct{}

// RequireAdmin rejects requests whose client has no valid admin session.
func RequireAdmin(gate SessionChecker, store *local.Adapter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := ClientID(r.Context())
			if id == "" {
				utils.RespondError(w, http.StatusUnauthorized, "admin session required")
				return
			}
			sess, ok := gate.Session(r.Context(), store.Scoped(id))
			if !ok {
				utils.RespondError(w, http.StatusUnauthorized, "admin session required")
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), adminKey{}, sess)))
		})
	}
}

// AdminSession returns the session attached by RequireAdmin.
func AdminSession(ctx context.Context) (auth.Session, bool) {
	sess, ok := ctx.Value(adminKey{}).(auth.Session)
	return sess, ok
}
