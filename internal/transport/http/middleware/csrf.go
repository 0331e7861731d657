package middleware

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/baechuer/real-time-ressys/services/oauth-service/internal/domain"
)

// SameOrigin rejects state-changing requests whose Origin (or Referer) is
// neither the request host nor one of extraOrigins. Applied to the cookie
// authenticated POST endpoints (logout, refresh).
func SameOrigin(extraOrigins []string, writeErr WriteErrFunc) func(http.Handler) http.Handler {
	allowedHosts := make(map[string]struct{})
	for _, origin := range extraOrigins {
		if u, err := url.Parse(origin); err == nil && u.Host != "" {
			allowedHosts[strings.ToLower(u.Host)] = struct{}{}
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			origin := r.Header.Get("Origin")
			if origin == "" {
				origin = r.Header.Get("Referer")
			}
			if origin == "" {
				writeErr(w, r, csrfRejected("missing_origin"))
				return
			}

			u, err := url.Parse(origin)
			if err != nil || u.Host == "" {
				writeErr(w, r, csrfRejected("invalid_origin"))
				return
			}

			host := strings.ToLower(u.Host)
			if _, ok := allowedHosts[host]; !ok && host != strings.ToLower(r.Host) {
				writeErr(w, r, csrfRejected("cross_origin"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func csrfRejected(reason string) error {
	return domain.WithMeta(domain.ErrForbidden(), map[string]string{"reason": reason})
}
