package oauth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baechuer/real-time-ressys/services/oauth-service/internal/domain"
)

func newProfileServer(t *testing.T, h http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchProfile_BearerHeaderAndMapping(t *testing.T) {
	var gotAuth, gotQueryToken string
	srv := newProfileServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotQueryToken = r.URL.Query().Get("access_token")
		_, _ = w.Write([]byte(`{
			"principal": {"username": "alice"},
			"name": "Alice", "surname": "Smith",
			"email": "alice@example.com",
			"userAuthorities": [{"authority":"ROLE_USER"},{"authority":"ROLE_ADMIN"}]
		}`))
	})

	c := NewProfileClient(srv.URL, ProfileFields{
		Username: "principal.username",
		FullName: []string{"name", "surname"},
		Roles:    "userAuthorities",
	}, false, nil)

	p, err := c.FetchProfile(context.Background(), "at-1")
	require.NoError(t, err)

	assert.Equal(t, "Bearer at-1", gotAuth)
	assert.Empty(t, gotQueryToken)
	assert.Equal(t, &domain.UserProfile{
		Username: "alice",
		FullName: "Alice Smith",
		Email:    "alice@example.com",
		Roles:    []string{"ROLE_USER", "ROLE_ADMIN"},
	}, p)
}

func TestFetchProfile_TokenInQuery(t *testing.T) {
	var gotQueryToken, gotKeep string
	srv := newProfileServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotQueryToken = r.URL.Query().Get("access_token")
		gotKeep = r.URL.Query().Get("keep")
		_, _ = w.Write([]byte(`{"username":"bob","roles":["a","b"]}`))
	})

	c := NewProfileClient(srv.URL+"?keep=1", ProfileFields{}, true, nil)

	p, err := c.FetchProfile(context.Background(), "at-2")
	require.NoError(t, err)
	assert.Equal(t, "at-2", gotQueryToken)
	assert.Equal(t, "1", gotKeep)
	assert.Equal(t, []string{"a", "b"}, p.Roles)
	assert.Equal(t, "", p.FullName)
}

func TestFetchProfile_ErrorTaxonomy(t *testing.T) {
	cases := []struct {
		name   string
		status int
		header map[string]string
		body   string
		code   string
	}{
		{"invalid_token body", http.StatusUnauthorized, nil, `{"error":"invalid_token","error_description":"expired"}`, domain.CodeAuthenticationExpired},
		{"invalid_token header", http.StatusUnauthorized, map[string]string{"WWW-Authenticate": `Bearer realm="x", error="invalid_token"`}, ``, domain.CodeAuthenticationExpired},
		{"other 401", http.StatusUnauthorized, nil, `{"error":"insufficient_scope"}`, domain.CodeUpstreamProvider},
		{"server error", http.StatusInternalServerError, nil, `boom`, domain.CodeUpstreamProvider},
		{"missing username", http.StatusOK, nil, `{"email":"x@example.com"}`, domain.CodeMalformedProfile},
		{"blank username", http.StatusOK, nil, `{"username":"  "}`, domain.CodeMalformedProfile},
		{"not json", http.StatusOK, nil, `<html></html>`, domain.CodeMalformedProfile},
		{"json array", http.StatusOK, nil, `[{"username":"x"}]`, domain.CodeMalformedProfile},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := newProfileServer(t, func(w http.ResponseWriter, r *http.Request) {
				for k, v := range tc.header {
					w.Header().Set(k, v)
				}
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			})

			_, err := NewProfileClient(srv.URL, DefaultProfileFields(), false, nil).
				FetchProfile(context.Background(), "at")
			require.Error(t, err)
			assert.True(t, domain.Is(err, tc.code), "expected %s, got %v", tc.code, err)
		})
	}
}

func TestFetchProfile_UpstreamKeepsDiagnostics(t *testing.T) {
	srv := newProfileServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("gateway down"))
	})

	_, err := NewProfileClient(srv.URL, DefaultProfileFields(), false, nil).FetchProfile(context.Background(), "at")
	require.Error(t, err)

	de := err.(*domain.Error)
	assert.Equal(t, "502", de.Meta["status"])
	assert.Equal(t, "gateway down", de.Meta["body"])
}

func TestFetchProfile_EmptyToken(t *testing.T) {
	_, err := NewProfileClient("http://127.0.0.1:1", DefaultProfileFields(), false, nil).
		FetchProfile(context.Background(), "")
	assert.True(t, domain.Is(err, "missing_field"))
}

func TestParseRoles_Shapes(t *testing.T) {
	p, err := parseProfile([]byte(`{"username":"u","roles":"ROLE_ADMIN"}`), DefaultProfileFields())
	require.NoError(t, err)
	assert.Equal(t, []string{"ROLE_ADMIN"}, p.Roles)

	p, err = parseProfile([]byte(`{"username":"u","roles":[{"name":"ops"}, "", "dev"]}`), DefaultProfileFields())
	require.NoError(t, err)
	assert.Equal(t, []string{"ops", "dev"}, p.Roles)

	p, err = parseProfile([]byte(`{"username":42}`), DefaultProfileFields())
	require.NoError(t, err)
	assert.Equal(t, "42", p.Username)
	assert.Nil(t, p.Roles)
}
