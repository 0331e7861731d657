package security

import (
	"net/http"
	"strings"
	"time"

	"github.com/baechuer/real-time-ressys/services/oauth-service/internal/domain"
)

const DefaultCookieName = "oauth_session"

// hostPrefix pins secure cookies to the exact host and path "/".
const hostPrefix = "__Host-"

// CookieConfig describes the session cookie shared by all rememberers.
type CookieConfig struct {
	Name   string
	Secure bool
	TTL    time.Duration
}

func (c CookieConfig) name() string {
	name := c.Name
	if name == "" {
		name = DefaultCookieName
	}
	if c.Secure && !strings.HasPrefix(name, hostPrefix) {
		name = hostPrefix + name
	}
	return name
}

// SessionCookie builds the cookie carrying value for cfg.TTL.
func SessionCookie(cfg CookieConfig, value string) *http.Cookie {
	return &http.Cookie{
		Name:     cfg.name(),
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(cfg.TTL.Seconds()),
	}
}

// ExpiredCookie clears the session cookie.
func ExpiredCookie(cfg CookieConfig) *http.Cookie {
	return &http.Cookie{
		Name:     cfg.name(),
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	}
}

// ReadCookie prefers the __Host- variant and falls back to the plain name
// (local http development).
func ReadCookie(r *http.Request, cfg CookieConfig) (string, bool) {
	if c, err := r.Cookie(cfg.name()); err == nil && c.Value != "" {
		return c.Value, true
	}
	plain := strings.TrimPrefix(cfg.Name, hostPrefix)
	if plain == "" {
		plain = DefaultCookieName
	}
	if c, err := r.Cookie(plain); err == nil && c.Value != "" {
		return c.Value, true
	}
	return "", false
}

// SetCookieHeader renders a cookie as a rememberer header.
func SetCookieHeader(c *http.Cookie) domain.Header {
	return domain.Header{Name: "Set-Cookie", Value: c.String()}
}
