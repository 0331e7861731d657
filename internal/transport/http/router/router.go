package router

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/baechuer/real-time-ressys/services/oauth-service/internal/transport/http/middleware"
)

type HealthHandler interface {
	Healthz(w http.ResponseWriter, r *http.Request)
	Readyz(w http.ResponseWriter, r *http.Request)
}

type OAuthHandler interface {
	Login(w http.ResponseWriter, r *http.Request)
	Callback(w http.ResponseWriter, r *http.Request)
	Logout(w http.ResponseWriter, r *http.Request)
	Me(w http.ResponseWriter, r *http.Request)
	Refresh(w http.ResponseWriter, r *http.Request)
}

type Middleware = func(http.Handler) http.Handler

type Deps struct {
	Health HealthHandler
	OAuth  OAuthHandler

	LoginPath    string
	CallbackPath string
	LogoutPath   string

	AuthenticateMW Middleware
	RequireLoginMW Middleware
	RequireAdminMW Middleware
	CSRFMW         Middleware

	// Optional; nil disables limiting for the route.
	RLLogin    Middleware
	RLCallback Middleware
	RLRefresh  Middleware

	// Defaults to promhttp.Handler().
	Metrics http.Handler
}

func New(deps Deps) (http.Handler, error) {
	if deps.Health == nil {
		return nil, fmt.Errorf("nil Health handler")
	}
	if deps.OAuth == nil {
		return nil, fmt.Errorf("nil OAuth handler")
	}
	if deps.AuthenticateMW == nil {
		return nil, fmt.Errorf("nil Authenticate middleware")
	}
	if deps.RequireLoginMW == nil {
		return nil, fmt.Errorf("nil RequireLogin middleware")
	}
	if deps.RequireAdminMW == nil {
		return nil, fmt.Errorf("nil RequireAdmin middleware")
	}
	if deps.LoginPath == "" || deps.CallbackPath == "" || deps.LogoutPath == "" {
		return nil, fmt.Errorf("login, callback and logout paths are required")
	}
	if deps.Metrics == nil {
		deps.Metrics = promhttp.Handler()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.Metrics)

	r.Get("/healthz", deps.Health.Healthz)
	r.Get("/readyz", deps.Health.Readyz)
	r.Handle("/metrics", deps.Metrics)

	r.Group(func(r chi.Router) {
		r.Use(deps.AuthenticateMW)

		r.With(optional(deps.RLLogin)...).Get(deps.LoginPath, deps.OAuth.Login)
		r.With(optional(deps.RLCallback)...).Get(deps.CallbackPath, deps.OAuth.Callback)

		r.Get(deps.LogoutPath, deps.OAuth.Logout)
		r.With(optional(deps.CSRFMW)...).Post(deps.LogoutPath, deps.OAuth.Logout)

		r.With(deps.RequireLoginMW).Get("/me", deps.OAuth.Me)
		r.With(deps.RequireLoginMW, deps.RequireAdminMW).Get("/admin/me", deps.OAuth.Me)

		r.With(append([]Middleware{deps.RequireLoginMW}, optional(deps.CSRFMW, deps.RLRefresh)...)...).
			Post("/oauth2/refresh", deps.OAuth.Refresh)
	})

	return r, nil
}

func optional(mws ...Middleware) []Middleware {
	out := make([]Middleware, 0, len(mws))
	for _, mw := range mws {
		if mw != nil {
			out = append(out, mw)
		}
	}
	return out
}
