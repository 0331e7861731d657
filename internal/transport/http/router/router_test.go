package router

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

// ---------- fakes ----------

type fakeHealth struct{}

func (fakeHealth) Healthz(w http.ResponseWriter, r *http.Request) { write(w, 200, "healthz") }
func (fakeHealth) Readyz(w http.ResponseWriter, r *http.Request)  { write(w, 200, "readyz") }

type fakeOAuth struct{}

func (fakeOAuth) Login(w http.ResponseWriter, r *http.Request)    { write(w, 200, "login") }
func (fakeOAuth) Callback(w http.ResponseWriter, r *http.Request) { write(w, 200, "callback") }
func (fakeOAuth) Logout(w http.ResponseWriter, r *http.Request)   { write(w, 200, "logout") }
func (fakeOAuth) Me(w http.ResponseWriter, r *http.Request)       { write(w, 200, "me") }
func (fakeOAuth) Refresh(w http.ResponseWriter, r *http.Request)  { write(w, 200, "refresh") }

func write(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(code)
	_, _ = w.Write([]byte(msg))
}

func passthrough(next http.Handler) http.Handler { return next }

func deny(code int) Middleware {
	return func(http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			write(w, code, "denied")
		})
	}
}

func baseDeps() Deps {
	d := Deps{
		Health:         fakeHealth{},
		OAuth:          fakeOAuth{},
		LoginPath:      "/user/login",
		CallbackPath:   "/oauth2/callback",
		LogoutPath:     "/user/logout",
		AuthenticateMW: passthrough,
		RequireLoginMW: passthrough,
		RequireAdminMW: passthrough,
	}
	d.Metrics = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		write(w, 200, "metrics")
	})
	return d
}

func doReq(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(method, path, nil))
	return rr
}

// ---------- tests ----------

func TestNew_RequiresDeps(t *testing.T) {
	mutations := map[string]func(*Deps){
		"health":       func(d *Deps) { d.Health = nil },
		"oauth":        func(d *Deps) { d.OAuth = nil },
		"authenticate": func(d *Deps) { d.AuthenticateMW = nil },
		"login mw":     func(d *Deps) { d.RequireLoginMW = nil },
		"admin mw":     func(d *Deps) { d.RequireAdminMW = nil },
		"paths":        func(d *Deps) { d.CallbackPath = "" },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			d := baseDeps()
			mutate(&d)
			if _, err := New(d); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestRoutes(t *testing.T) {
	h, err := New(baseDeps())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	cases := []struct {
		method, path, want string
	}{
		{http.MethodGet, "/healthz", "healthz"},
		{http.MethodGet, "/readyz", "readyz"},
		{http.MethodGet, "/metrics", "metrics"},
		{http.MethodGet, "/user/login", "login"},
		{http.MethodGet, "/oauth2/callback", "callback"},
		{http.MethodGet, "/user/logout", "logout"},
		{http.MethodPost, "/user/logout", "logout"},
		{http.MethodGet, "/me", "me"},
		{http.MethodGet, "/admin/me", "me"},
		{http.MethodPost, "/oauth2/refresh", "refresh"},
	}
	for _, tc := range cases {
		rr := doReq(t, h, tc.method, tc.path)
		if rr.Code != http.StatusOK || rr.Body.String() != tc.want {
			t.Fatalf("%s %s: got %d %q", tc.method, tc.path, rr.Code, rr.Body.String())
		}
		if rr.Header().Get("X-Request-Id") == "" {
			t.Fatalf("%s %s: missing request id", tc.method, tc.path)
		}
	}
}

func TestRoutes_GuardsApply(t *testing.T) {
	d := baseDeps()
	d.RequireAdminMW = deny(http.StatusFound)
	d.RLLogin = deny(http.StatusTooManyRequests)
	d.CSRFMW = deny(http.StatusForbidden)
	h, _ := New(d)

	if rr := doReq(t, h, http.MethodGet, "/admin/me"); rr.Code != http.StatusFound {
		t.Fatalf("admin guard not applied: %d", rr.Code)
	}
	if rr := doReq(t, h, http.MethodGet, "/me"); rr.Code != http.StatusOK {
		t.Fatalf("/me must not need admin: %d", rr.Code)
	}
	if rr := doReq(t, h, http.MethodGet, "/user/login"); rr.Code != http.StatusTooManyRequests {
		t.Fatalf("login limiter not applied: %d", rr.Code)
	}
	if rr := doReq(t, h, http.MethodPost, "/user/logout"); rr.Code != http.StatusForbidden {
		t.Fatalf("csrf not applied to POST logout: %d", rr.Code)
	}
	if rr := doReq(t, h, http.MethodGet, "/user/logout"); rr.Code != http.StatusOK {
		t.Fatalf("GET logout must stay open: %d", rr.Code)
	}
}

func TestRoutes_UnknownPath404(t *testing.T) {
	h, _ := New(baseDeps())
	if rr := doReq(t, h, http.MethodGet, "/nope"); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}
