package oauth

import (
	"context"
	"errors"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/baechuer/real-time-ressys/services/oauth-service/internal/application/auth"
	"github.com/baechuer/real-time-ressys/services/oauth-service/internal/domain"
)

const defaultTimeout = 10 * time.Second

// ProviderConfig describes the provider endpoints and client credentials.
type ProviderConfig struct {
	AuthorizationEndpoint string
	TokenEndpoint         string
	ClientID              string
	ClientSecret          string
	Scopes                []string
	Timeout               time.Duration
}

// Provider handles the authorization-code and refresh-token grants.
// Client credentials are sent with HTTP basic auth.
type Provider struct {
	conf       oauth2.Config
	httpClient *http.Client
}

// NewProvider builds a provider client. A nil httpClient gets one with
// cfg.Timeout (10s when unset) so no provider call can hang forever.
func NewProvider(cfg ProviderConfig, httpClient *http.Client) *Provider {
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Provider{
		conf: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthorizationEndpoint,
				TokenURL:  cfg.TokenEndpoint,
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
		httpClient: httpClient,
	}
}

// AuthCodeURL returns the authorization request URL:
// response_type=code, client_id, redirect_uri, scope and state.
func (p *Provider) AuthCodeURL(state, redirectURI string) string {
	return p.withRedirect(redirectURI).AuthCodeURL(state)
}

// Exchange trades an authorization code for a token set.
func (p *Provider) Exchange(ctx context.Context, code, redirectURI string) (*auth.TokenGrant, error) {
	conf := p.withRedirect(redirectURI)
	tok, err := conf.Exchange(p.clientContext(ctx), code)
	if err != nil {
		return nil, classifyTokenError(err, false)
	}
	return grantFromToken(tok), nil
}

// Refresh runs a refresh_token grant.
func (p *Provider) Refresh(ctx context.Context, refreshToken string) (*auth.TokenGrant, error) {
	if refreshToken == "" {
		return nil, domain.ErrRefreshTokenMissing()
	}
	src := p.conf.TokenSource(p.clientContext(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, classifyTokenError(err, true)
	}
	return grantFromToken(tok), nil
}

func (p *Provider) withRedirect(redirectURI string) *oauth2.Config {
	conf := p.conf
	conf.RedirectURL = redirectURI
	return &conf
}

func (p *Provider) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
}

// grantFromToken keeps the exact four fields the provider sent. x/oauth2
// silently carries the previous refresh token forward on refresh, so the
// raw response decides whether a new one was issued.
func grantFromToken(tok *oauth2.Token) *auth.TokenGrant {
	issued := false
	if rt, ok := tok.Extra("refresh_token").(string); ok && rt != "" {
		issued = true
	}

	expiresIn := tok.ExpiresIn
	if expiresIn == 0 && !tok.Expiry.IsZero() {
		expiresIn = int64(time.Until(tok.Expiry).Round(time.Second).Seconds())
	}

	return &auth.TokenGrant{
		Token: domain.OAuthToken{
			AccessToken:  tok.AccessToken,
			RefreshToken: tok.RefreshToken,
			TokenType:    tok.TokenType,
			ExpiresIn:    expiresIn,
		},
		RefreshTokenIssued: issued,
	}
}

// classifyTokenError maps token endpoint failures onto the domain taxonomy.
// On refresh, invalid_grant means the refresh token is dead and the user has
// to log in again. On code exchange it stays an upstream error: re-challenging
// a misconfigured client would loop.
func classifyTokenError(err error, refreshing bool) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		status := 0
		if re.Response != nil {
			status = re.Response.StatusCode
		}
		if refreshing && (re.ErrorCode == "invalid_grant" || re.ErrorCode == "invalid_token") {
			return domain.ErrAuthenticationExpired(re.ErrorDescription)
		}
		return domain.ErrUpstreamProvider(status, string(re.Body), err)
	}
	return domain.ErrUpstreamProvider(0, "", err)
}
