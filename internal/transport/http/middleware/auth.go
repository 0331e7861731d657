package middleware

import (
	"net/http"

	"github.com/baechuer/real-time-ressys/services/oauth-service/internal/domain"
	appCtx "github.com/baechuer/real-time-ressys/services/oauth-service/internal/pkg/context"
)

// Identifier resolves the identity a rememberer stored for the request.
// Every rememberer adapter implements it next to Remember/Forget.
type Identifier interface {
	Identify(r *http.Request) (domain.Identity, bool)
}

type WriteErrFunc func(http.ResponseWriter, *http.Request, error)

// Authenticate puts the remembered identity, if any, into the request
// context. Anonymous requests pass through unchanged.
func Authenticate(id Identifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if id == nil {
				next.ServeHTTP(w, r)
				return
			}
			identity, ok := id.Identify(r)
			if !ok || !identity.Authenticated() {
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(appCtx.WithIdentity(r.Context(), identity)))
		})
	}
}
