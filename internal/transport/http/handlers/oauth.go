package http_handlers

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"github.com/baechuer/real-time-ressys/services/oauth-service/internal/application/auth"
	"github.com/baechuer/real-time-ressys/services/oauth-service/internal/domain"
	"github.com/baechuer/real-time-ressys/services/oauth-service/internal/transport/http/dto"
	"github.com/baechuer/real-time-ressys/services/oauth-service/internal/transport/http/middleware"
	"github.com/baechuer/real-time-ressys/services/oauth-service/internal/transport/http/response"
)

// OAuthService is the slice of the flow controller the handlers drive.
type OAuthService interface {
	Challenge(ctx context.Context, in auth.ChallengeInput) (*auth.ChallengeResult, error)
	Callback(ctx context.Context, in auth.CallbackInput) (*auth.CallbackResult, error)
	Logout(ctx context.Context, id domain.Identity) ([]domain.Header, error)
	Refresh(ctx context.Context, userName string) (*domain.OAuthToken, error)
	CurrentUser(ctx context.Context, userName string) (*domain.User, error)
	CameFrom(state string) string
}

// OAuthHandler handles the login, callback and logout endpoints.
type OAuthHandler struct {
	svc            OAuthService
	callbackPath   string
	loginPath      string
	trustForwarded bool
	log            zerolog.Logger
}

// OAuthHandlerConfig holds configuration for OAuth handler
type OAuthHandlerConfig struct {
	Service        OAuthService
	CallbackPath   string
	LoginPath      string
	TrustForwarded bool
	Logger         zerolog.Logger
}

func NewOAuthHandler(cfg OAuthHandlerConfig) *OAuthHandler {
	return &OAuthHandler{
		svc:            cfg.Service,
		callbackPath:   cfg.CallbackPath,
		loginPath:      cfg.LoginPath,
		trustForwarded: cfg.TrustForwarded,
		log:            cfg.Logger.With().Str("component", "oauth_handler").Logger(),
	}
}

// Login handles GET <login path> and is also the challenge handler for
// protected routes.
func (h *OAuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	_, authed := middleware.IdentityFromContext(r.Context())
	h.challenge(w, r, h.cameFrom(r), authed)
}

func (h *OAuthHandler) challenge(w http.ResponseWriter, r *http.Request, cameFrom string, authed bool) {
	res, err := h.svc.Challenge(r.Context(), auth.ChallengeInput{
		CameFrom:      cameFrom,
		Referer:       localPath(r.Referer(), r.Host),
		Authenticated: authed,
		RedirectURI:   h.redirectURI(r),
	})
	if err != nil {
		response.WriteError(w, r, err)
		return
	}

	target := "guard"
	if res.ToProvider {
		target = "provider"
	}
	middleware.ChallengesTotal.WithLabelValues(target).Inc()

	response.Redirect(w, res.Location, nil)
}

// Callback handles GET <callback path>?code=...&state=...
func (h *OAuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if code := q.Get("error"); code != "" {
		middleware.LoginAttemptsTotal.WithLabelValues("denied").Inc()
		response.WriteError(w, r, domain.ErrOAuthDenied(code, q.Get("error_description")))
		return
	}

	res, err := h.svc.Callback(r.Context(), auth.CallbackInput{
		Code:        q.Get("code"),
		State:       q.Get("state"),
		RedirectURI: h.redirectURI(r),
	})
	if err != nil {
		if domain.Is(err, domain.CodeAuthenticationExpired) {
			middleware.LoginAttemptsTotal.WithLabelValues("expired").Inc()
			cameFrom := localPath(h.svc.CameFrom(q.Get("state")), r.Host)
			if cameFrom == "" {
				cameFrom = "/"
			}
			h.challenge(w, r, cameFrom, false)
			return
		}
		status := "error"
		if domain.KindOf(err) == domain.KindUpstream {
			status = "upstream"
		}
		middleware.LoginAttemptsTotal.WithLabelValues(status).Inc()
		response.WriteError(w, r, err)
		return
	}

	middleware.LoginAttemptsTotal.WithLabelValues("success").Inc()

	loc := localPath(res.Location, r.Host)
	if loc == "" {
		h.log.Warn().Str("came_from", res.Location).Msg("dropping off-site came_from")
		loc = "/"
	}
	response.Redirect(w, loc, res.Headers)
}

// Logout handles GET|POST <logout path>.
func (h *OAuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFromContext(r.Context())

	headers, err := h.svc.Logout(r.Context(), id)
	if err != nil {
		response.WriteError(w, r, err)
		return
	}
	response.Redirect(w, "/", headers)
}

// Me handles GET /me
func (h *OAuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	uid, _ := middleware.UserIDFromContext(r.Context())

	u, err := h.svc.CurrentUser(r.Context(), uid)
	if err != nil {
		response.WriteError(w, r, err)
		return
	}
	response.OK(w, dto.MeFromUser(u))
}

// Refresh handles POST /oauth2/refresh. Nothing stored answers 204.
func (h *OAuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	uid, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		response.WriteError(w, r, domain.ErrNotAuthenticated())
		return
	}

	tok, err := h.svc.Refresh(r.Context(), uid)
	if err != nil {
		status := "error"
		if domain.Is(err, domain.CodeAuthenticationExpired) {
			status = "expired"
		}
		middleware.TokenRefreshTotal.WithLabelValues(status).Inc()
		response.WriteError(w, r, err)
		return
	}
	if tok == nil {
		middleware.TokenRefreshTotal.WithLabelValues("skipped").Inc()
		response.NoContent(w)
		return
	}

	middleware.TokenRefreshTotal.WithLabelValues("success").Inc()
	response.OK(w, dto.RefreshFromToken(tok))
}

// redirectURI rebuilds the public callback URL for this request.
func (h *OAuthHandler) redirectURI(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	host := r.Host
	if h.trustForwarded {
		if p := firstValue(r.Header.Get("X-Forwarded-Proto")); p != "" {
			scheme = p
		}
		if fh := firstValue(r.Header.Get("X-Forwarded-Host")); fh != "" {
			host = fh
		}
	}
	return scheme + "://" + host + h.callbackPath
}

// cameFrom is the page to return to after login. On the login page itself
// that is ?came_from or the Referer; elsewhere it is the requested URL.
func (h *OAuthHandler) cameFrom(r *http.Request) string {
	if h.loginPath == "" || strings.HasPrefix(r.URL.Path, h.loginPath) {
		if cf := localPath(r.URL.Query().Get("came_from"), r.Host); cf != "" {
			return cf
		}
		return localPath(r.Referer(), r.Host)
	}
	return r.URL.RequestURI()
}

// localPath returns raw as a site-relative path when it points at host (or
// has no host at all), and "" otherwise.
func localPath(raw, host string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if u.Host != "" && !strings.EqualFold(u.Host, host) {
		return ""
	}
	if u.Host == "" && (u.Scheme != "" || !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//")) {
		return ""
	}
	p := u.RequestURI()
	if strings.HasPrefix(p, "//") {
		return ""
	}
	return p
}

func firstValue(v string) string {
	if i := strings.IndexByte(v, ','); i >= 0 {
		v = v[:i]
	}
	return strings.TrimSpace(v)
}
