package auth

import (
	"context"
	"testing"

	"github.com/baechuer/real-time-ressys/services/oauth-service/internal/domain"
)

func TestRefresh_NoStoredToken_NoOp(t *testing.T) {
	env := newTestEnv(t, Config{})

	tok, err := env.svc.Refresh(context.Background(), "alice")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if tok != nil {
		t.Fatalf("expected no token, got %+v", tok)
	}
	if len(env.provider.refreshed) != 0 || env.tokens.upserts != 0 {
		t.Fatalf("refresh must not touch provider or store")
	}
	if acts := env.auditActions(); len(acts) != 1 || acts[0] != "oauth_refresh_skipped" {
		t.Fatalf("unexpected audit: %v", acts)
	}
}

func TestRefresh_ReplacesAllFourFields(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.tokens.tokens["alice"] = domain.OAuthToken{AccessToken: "old-at", RefreshToken: "old-rt", TokenType: "Bearer", ExpiresIn: 10}
	env.provider.refreshGrant = &TokenGrant{
		Token:              domain.OAuthToken{AccessToken: "new-at", RefreshToken: "new-rt", TokenType: "bearer", ExpiresIn: 7200},
		RefreshTokenIssued: true,
	}

	tok, err := env.svc.Refresh(context.Background(), "alice")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(env.provider.refreshed) != 1 || env.provider.refreshed[0] != "old-rt" {
		t.Fatalf("expected refresh grant with old-rt, got %v", env.provider.refreshed)
	}

	want := domain.OAuthToken{AccessToken: "new-at", RefreshToken: "new-rt", TokenType: "bearer", ExpiresIn: 7200}
	if *tok != want {
		t.Fatalf("unexpected returned token: %+v", tok)
	}
	if got := env.tokens.tokens["alice"]; got != want {
		t.Fatalf("store does not reflect new token: %+v", got)
	}
	env.svc.WaitEvents()
	if len(env.pub.refreshes) != 1 {
		t.Fatalf("expected refresh event")
	}
}

func TestRefresh_OmittedRefreshToken(t *testing.T) {
	cases := []struct {
		name   string
		retain bool
		want   string
	}{
		{"cleared by default", false, ""},
		{"retained when configured", true, "old-rt"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t, Config{RetainRefreshToken: tc.retain})
			env.tokens.tokens["alice"] = domain.OAuthToken{AccessToken: "old-at", RefreshToken: "old-rt"}
			env.provider.refreshGrant = &TokenGrant{
				Token:              domain.OAuthToken{AccessToken: "new-at", RefreshToken: "old-rt", TokenType: "Bearer", ExpiresIn: 60},
				RefreshTokenIssued: false,
			}

			if _, err := env.svc.Refresh(context.Background(), "alice"); err != nil {
				t.Fatalf("unexpected err: %v", err)
			}
			got := env.tokens.tokens["alice"]
			if got.AccessToken != "new-at" || got.RefreshToken != tc.want {
				t.Fatalf("unexpected stored token: %+v", got)
			}
		})
	}
}

func TestRefresh_Errors(t *testing.T) {
	t.Run("empty user", func(t *testing.T) {
		env := newTestEnv(t, Config{})
		_, err := env.svc.Refresh(context.Background(), "")
		requireErrCode(t, err, "missing_field")
	})

	t.Run("stored token without refresh token", func(t *testing.T) {
		env := newTestEnv(t, Config{})
		env.tokens.tokens["alice"] = domain.OAuthToken{AccessToken: "at"}
		_, err := env.svc.Refresh(context.Background(), "alice")
		requireErrCode(t, err, domain.CodeRefreshTokenMissing)
	})

	t.Run("provider rejects grant", func(t *testing.T) {
		env := newTestEnv(t, Config{})
		env.tokens.tokens["alice"] = domain.OAuthToken{AccessToken: "at", RefreshToken: "rt"}
		env.provider.refreshErr = domain.ErrAuthenticationExpired("invalid_grant")

		_, err := env.svc.Refresh(context.Background(), "alice")
		requireErrCode(t, err, domain.CodeAuthenticationExpired)
		if env.tokens.upserts != 0 {
			t.Fatalf("failed refresh must not write")
		}
	})

	t.Run("store read fails", func(t *testing.T) {
		env := newTestEnv(t, Config{})
		env.tokens.getErr = domain.ErrDBUnavailable(errBoom)
		_, err := env.svc.Refresh(context.Background(), "alice")
		requireErrCode(t, err, "db_unavailable")
	})
}

func TestStoredToken(t *testing.T) {
	env := newTestEnv(t, Config{})

	tok, err := env.svc.StoredToken(context.Background(), "alice")
	if err != nil || tok != nil {
		t.Fatalf("expected (nil, nil), got %+v %v", tok, err)
	}

	env.tokens.tokens["alice"] = domain.OAuthToken{AccessToken: "at"}
	tok, err = env.svc.StoredToken(context.Background(), "alice")
	if err != nil || tok.AccessToken != "at" {
		t.Fatalf("unexpected: %+v %v", tok, err)
	}
}

func TestLogout_DelegatesToForget(t *testing.T) {
	env := newTestEnv(t, Config{})

	headers, err := env.svc.Logout(context.Background(), domain.NewIdentity("alice"))
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(headers) != 1 || headers[0].Name != "Set-Cookie" {
		t.Fatalf("unexpected headers: %v", headers)
	}
	if len(env.rem.forgotten) != 1 || env.rem.forgotten[0].UserID() != "alice" {
		t.Fatalf("expected forget for alice, got %v", env.rem.forgotten)
	}
	if acts := env.auditActions(); len(acts) != 1 || acts[0] != "oauth_logout" {
		t.Fatalf("unexpected audit: %v", acts)
	}
}

func TestLogout_Anonymous_NoAudit(t *testing.T) {
	env := newTestEnv(t, Config{})

	if _, err := env.svc.Logout(context.Background(), nil); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(*env.audits) != 0 {
		t.Fatalf("anonymous logout must not be audited")
	}
}
