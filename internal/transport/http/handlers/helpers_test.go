package http_handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/baechuer/real-time-ressys/services/oauth-service/internal/application/auth"
	"github.com/baechuer/real-time-ressys/services/oauth-service/internal/infrastructure/memory"
	"github.com/baechuer/real-time-ressys/services/oauth-service/internal/infrastructure/oauth"
	"github.com/baechuer/real-time-ressys/services/oauth-service/internal/infrastructure/security"
	"github.com/baechuer/real-time-ressys/services/oauth-service/internal/infrastructure/state"
	"github.com/baechuer/real-time-ressys/services/oauth-service/internal/transport/http/middleware"
	"github.com/baechuer/real-time-ressys/services/oauth-service/internal/transport/http/response"
	"github.com/baechuer/real-time-ressys/services/oauth-service/internal/transport/http/router"
)

// fakeIdP plays the identity provider: /authorize, /token and /user.
func fakeIdP(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.PostForm.Get("grant_type") == "refresh_token":
			_, _ = io.WriteString(w, `{"access_token":"at-2","refresh_token":"rt-2","token_type":"Bearer","expires_in":3600}`)
		case r.PostForm.Get("code") == "good":
			_, _ = io.WriteString(w, `{"access_token":"at-1","refresh_token":"rt-1","token_type":"Bearer","expires_in":3600}`)
		case r.PostForm.Get("code") == "stale":
			_, _ = io.WriteString(w, `{"access_token":"at-expired","token_type":"Bearer","expires_in":3600}`)
		default:
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"error":"invalid_grant"}`)
		}
	})

	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.Header.Get("Authorization") == "Bearer at-expired" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"error":"invalid_token"}`)
			return
		}
		_, _ = io.WriteString(w, `{"username":"alice","name":"Alice","email":"alice@example.com","roles":["ROLE_ADMIN"]}`)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

type testApp struct {
	srv    *httptest.Server
	idp    *httptest.Server
	client *http.Client
	users  *memory.UserRepo
	tokens *memory.TokenStore
}

// newTestApp wires the real flow controller with in-memory adapters behind
// the real router.
func newTestApp(t *testing.T) *testApp {
	t.Helper()
	idp := fakeIdP(t)

	users := memory.NewUserRepo()
	tokens := memory.NewTokenStore()
	sessions := memory.NewSessionRememberer(security.CookieConfig{Name: "oauth_session"})

	reg := auth.NewRegistry()
	reg.Register("memory", sessions)

	svc, err := auth.NewService(auth.Deps{
		Users:  users,
		Tokens: tokens,
		Logins: memory.NewLoginStore(users, tokens),
		Provider: oauth.NewProvider(oauth.ProviderConfig{
			AuthorizationEndpoint: idp.URL + "/authorize",
			TokenEndpoint:         idp.URL + "/token",
			ClientID:              "client",
			ClientSecret:          "secret",
			Scopes:                []string{"profile"},
		}, idp.Client()),
		Profiles: oauth.NewProfileClient(idp.URL+"/user", oauth.DefaultProfileFields(), false, idp.Client()),
		States:   state.NewCodec(zerolog.Nop()),
	}, reg, auth.Config{RemembererName: "memory"})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	h := NewOAuthHandler(OAuthHandlerConfig{
		Service:      svc,
		CallbackPath: "/oauth2/callback",
		LoginPath:    "/user/login",
		Logger:       zerolog.Nop(),
	})
	challenge := http.HandlerFunc(h.Login)

	mux, err := router.New(router.Deps{
		Health:         NewHealthHandler(nil),
		OAuth:          h,
		LoginPath:      "/user/login",
		CallbackPath:   "/oauth2/callback",
		LogoutPath:     "/user/logout",
		AuthenticateMW: middleware.Authenticate(sessions),
		RequireLoginMW: middleware.RequireLogin(challenge),
		RequireAdminMW: middleware.RequireAdmin(svc.CurrentUser, challenge, response.WriteError),
		CSRFMW:         middleware.SameOrigin(nil, response.WriteError),
	})
	if err != nil {
		t.Fatalf("router: %v", err)
	}

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	jar, _ := cookiejar.New(nil)
	client := &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	return &testApp{srv: srv, idp: idp, client: client, users: users, tokens: tokens}
}

func (a *testApp) do(t *testing.T, method, path string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, a.srv.URL+path, nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if method == http.MethodPost {
		req.Header.Set("Origin", a.srv.URL)
	}
	res, err := a.client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { _ = res.Body.Close() })
	return res
}

func mustLocation(t *testing.T, res *http.Response) *url.URL {
	t.Helper()
	if res.StatusCode != http.StatusFound {
		t.Fatalf("expected 302, got %d", res.StatusCode)
	}
	u, err := url.Parse(res.Header.Get("Location"))
	if err != nil {
		t.Fatalf("bad location: %v", err)
	}
	return u
}

// requireBareRedirect checks a redirect step carries no body of its own.
func requireBareRedirect(t *testing.T, res *http.Response) {
	t.Helper()
	raw, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if len(raw) != 0 {
		t.Fatalf("expected empty redirect body, got %q", raw)
	}
	if ct := res.Header.Get("Content-Type"); strings.HasPrefix(ct, "text/html") {
		t.Fatalf("unexpected content type %q on redirect", ct)
	}
}

// mustReadJSON decodes {"data": ...} envelopes (or bare bodies) into out.
func mustReadJSON(t *testing.T, r io.Reader, out any) {
	t.Helper()
	raw, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	wrapped := struct {
		Data json.RawMessage `json:"data"`
	}{}
	if err := json.Unmarshal(raw, &wrapped); err == nil && len(wrapped.Data) > 0 {
		raw = wrapped.Data
	}
	if err := json.Unmarshal(raw, out); err != nil {
		t.Fatalf("decode json failed; body=%s err=%v", raw, err)
	}
}

func readErrorCode(t *testing.T, r io.Reader) string {
	t.Helper()
	var body response.ErrorBody
	raw, _ := io.ReadAll(r)
	if err := json.Unmarshal(raw, &body); err != nil {
		t.Fatalf("not an error body: %s", raw)
	}
	return body.Error.Code
}

func isProvider(u *url.URL, idp *httptest.Server) bool {
	return strings.HasPrefix(u.String(), idp.URL+"/authorize")
}
