package middleware

import (
	"context"
	"net/http"

	"github.com/baechuer/real-time-ressys/services/oauth-service/internal/domain"
)

// UserLookup loads the local account bound to an identity.
type UserLookup func(ctx context.Context, userName string) (*domain.User, error)

// RequireLogin hands anonymous requests to challenge.
// Assumes Authenticate() has already run.
func RequireLogin(challenge http.Handler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := UserIDFromContext(r.Context()); !ok {
				challenge.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin lets through accounts flagged as administrators. Anyone else
// goes to challenge, whose guard keeps logged-in users away from the provider.
func RequireAdmin(lookup UserLookup, challenge http.Handler, writeErr WriteErrFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			uid, ok := UserIDFromContext(r.Context())
			if !ok {
				challenge.ServeHTTP(w, r)
				return
			}

			u, err := lookup(r.Context(), uid)
			if err != nil {
				if domain.Is(err, "user_not_found") {
					challenge.ServeHTTP(w, r)
					return
				}
				writeErr(w, r, err)
				return
			}
			if !u.IsAdmin {
				challenge.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
