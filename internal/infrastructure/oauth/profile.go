package oauth

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"

	"github.com/baechuer/real-time-ressys/services/oauth-service/internal/domain"
)

// maxProfileBody caps how much of a profile response is read.
const maxProfileBody = 1 << 20

// ProfileFields are gjson paths into the profile document.
// FullName parts are joined with a single space, empty parts skipped.
type ProfileFields struct {
	Username string
	FullName []string
	Email    string
	Roles    string
}

func DefaultProfileFields() ProfileFields {
	return ProfileFields{
		Username: "username",
		FullName: []string{"name"},
		Email:    "email",
		Roles:    "roles",
	}
}

// ProfileClient fetches the user profile with a bearer token.
type ProfileClient struct {
	endpoint     string
	fields       ProfileFields
	tokenInQuery bool
	httpClient   *http.Client
}

func NewProfileClient(endpoint string, fields ProfileFields, tokenInQuery bool, httpClient *http.Client) *ProfileClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	defaults := DefaultProfileFields()
	if fields.Username == "" {
		fields.Username = defaults.Username
	}
	if len(fields.FullName) == 0 {
		fields.FullName = defaults.FullName
	}
	if fields.Email == "" {
		fields.Email = defaults.Email
	}
	if fields.Roles == "" {
		fields.Roles = defaults.Roles
	}
	return &ProfileClient{
		endpoint:     endpoint,
		fields:       fields,
		tokenInQuery: tokenInQuery,
		httpClient:   httpClient,
	}
}

func (c *ProfileClient) FetchProfile(ctx context.Context, accessToken string) (*domain.UserProfile, error) {
	if accessToken == "" {
		return nil, domain.ErrMissingField("access_token")
	}

	u, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, domain.ErrInternal(fmt.Errorf("parse profile endpoint: %w", err))
	}
	if c.tokenInQuery {
		q := u.Query()
		q.Set("access_token", accessToken)
		u.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, domain.ErrInternal(err)
	}
	req.Header.Set("Accept", "application/json")
	(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}).SetAuthHeader(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, domain.ErrUpstreamProvider(0, "", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxProfileBody))
	if err != nil {
		return nil, domain.ErrUpstreamProvider(resp.StatusCode, "", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, classifyProfileError(resp, body)
	}
	return parseProfile(body, c.fields)
}

// classifyProfileError separates "the token is no longer good" from every
// other provider failure. invalid_token may come in the JSON body or in the
// WWW-Authenticate challenge.
func classifyProfileError(resp *http.Response, body []byte) error {
	if gjson.ValidBytes(body) {
		res := gjson.ParseBytes(body)
		if res.Get("error").String() == "invalid_token" {
			return domain.ErrAuthenticationExpired(res.Get("error_description").String())
		}
	}
	if strings.Contains(resp.Header.Get("WWW-Authenticate"), `error="invalid_token"`) {
		return domain.ErrAuthenticationExpired("")
	}
	return domain.ErrUpstreamProvider(resp.StatusCode, string(body), nil)
}

func parseProfile(body []byte, f ProfileFields) (*domain.UserProfile, error) {
	if !gjson.ValidBytes(body) {
		return nil, domain.ErrMalformedProfile("body")
	}
	doc := gjson.ParseBytes(body)
	if !doc.IsObject() {
		return nil, domain.ErrMalformedProfile("body")
	}

	username := strings.TrimSpace(doc.Get(f.Username).String())
	if username == "" {
		return nil, domain.ErrMalformedProfile(f.Username)
	}

	parts := make([]string, 0, len(f.FullName))
	for _, path := range f.FullName {
		if s := strings.TrimSpace(doc.Get(path).String()); s != "" {
			parts = append(parts, s)
		}
	}

	return &domain.UserProfile{
		Username: username,
		FullName: strings.Join(parts, " "),
		Email:    strings.TrimSpace(doc.Get(f.Email).String()),
		Roles:    parseRoles(doc.Get(f.Roles)),
	}, nil
}

// parseRoles accepts ["ROLE_A"], [{"authority":"ROLE_A"}] or a bare string.
func parseRoles(r gjson.Result) []string {
	if !r.Exists() {
		return nil
	}
	if !r.IsArray() {
		if s := strings.TrimSpace(r.String()); s != "" {
			return []string{s}
		}
		return nil
	}

	var roles []string
	r.ForEach(func(_, v gjson.Result) bool {
		name := v.String()
		if v.IsObject() {
			name = v.Get("authority").String()
			if name == "" {
				name = v.Get("name").String()
			}
		}
		if name = strings.TrimSpace(name); name != "" {
			roles = append(roles, name)
		}
		return true
	})
	return roles
}
