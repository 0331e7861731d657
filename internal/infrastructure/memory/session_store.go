package memory

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"maps"
	"net/http"
	"sync"
	"time"

	"github.com/baechuer/real-time-ressys/services/oauth-service/internal/domain"
	"github.com/baechuer/real-time-ressys/services/oauth-service/internal/infrastructure/security"
)

type sessionEntry struct {
	identity  domain.Identity
	expiresAt time.Time
}

// SessionRememberer keeps identities server side, keyed by an opaque id in
// the session cookie. Sessions die with the process.
type SessionRememberer struct {
	mu       sync.Mutex
	sessions map[string]sessionEntry
	cookie   security.CookieConfig
	now      func() time.Time
}

func NewSessionRememberer(cookie security.CookieConfig) *SessionRememberer {
	if cookie.TTL <= 0 {
		cookie.TTL = 24 * time.Hour
	}
	return &SessionRememberer{
		sessions: make(map[string]sessionEntry),
		cookie:   cookie,
		now:      time.Now,
	}
}

func (s *SessionRememberer) Remember(_ context.Context, id domain.Identity) ([]domain.Header, error) {
	if !id.Authenticated() {
		return nil, domain.ErrMissingField(domain.IdentityUserID)
	}
	sid, err := newSessionID()
	if err != nil {
		return nil, domain.ErrRandomFailed(err)
	}

	stored := maps.Clone(id)
	delete(stored, domain.IdentitySessionID)

	s.mu.Lock()
	s.sessions[sid] = sessionEntry{identity: stored, expiresAt: s.now().Add(s.cookie.TTL)}
	s.mu.Unlock()

	return []domain.Header{security.SetCookieHeader(security.SessionCookie(s.cookie, sid))}, nil
}

func (s *SessionRememberer) Forget(_ context.Context, id domain.Identity) ([]domain.Header, error) {
	if sid := id[domain.IdentitySessionID]; sid != "" {
		s.mu.Lock()
		delete(s.sessions, sid)
		s.mu.Unlock()
	}
	return []domain.Header{security.SetCookieHeader(security.ExpiredCookie(s.cookie))}, nil
}

func (s *SessionRememberer) Identify(r *http.Request) (domain.Identity, bool) {
	sid, ok := security.ReadCookie(r, s.cookie)
	if !ok {
		return nil, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[sid]
	if !ok {
		return nil, false
	}
	if !s.now().Before(e.expiresAt) {
		delete(s.sessions, sid)
		return nil, false
	}

	id := maps.Clone(e.identity)
	id[domain.IdentitySessionID] = sid
	return id, true
}

func newSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
