package redis

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"maps"
	"net/http"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/baechuer/real-time-ressys/services/oauth-service/internal/domain"
	"github.com/baechuer/real-time-ressys/services/oauth-service/internal/infrastructure/security"
)

const sessionPrefix = "oauth:sess:"

// SessionRememberer stores identities in Redis under oauth:sess:<sid> with the
// cookie TTL, so sessions survive restarts and are shared across replicas.
type SessionRememberer struct {
	rdb    *goredis.Client
	cookie security.CookieConfig
}

func NewSessionRememberer(c *Client, cookie security.CookieConfig) *SessionRememberer {
	var rdb *goredis.Client
	if c != nil {
		rdb = c.rdb
	}
	if cookie.TTL <= 0 {
		cookie.TTL = 24 * time.Hour
	}
	return &SessionRememberer{rdb: rdb, cookie: cookie}
}

func (s *SessionRememberer) Remember(ctx context.Context, id domain.Identity) ([]domain.Header, error) {
	if !id.Authenticated() {
		return nil, domain.ErrMissingField(domain.IdentityUserID)
	}
	if s.rdb == nil {
		return nil, domain.ErrRedisUnavailable(errors.New("redis not configured"))
	}

	sid, err := newSessionID()
	if err != nil {
		return nil, domain.ErrRandomFailed(err)
	}

	stored := maps.Clone(id)
	delete(stored, domain.IdentitySessionID)
	raw, err := json.Marshal(stored)
	if err != nil {
		return nil, domain.ErrInternal(err)
	}

	if err := s.rdb.Set(ctx, sessionPrefix+sid, raw, s.cookie.TTL).Err(); err != nil {
		return nil, domain.ErrRedisUnavailable(err)
	}
	return []domain.Header{security.SetCookieHeader(security.SessionCookie(s.cookie, sid))}, nil
}

func (s *SessionRememberer) Forget(ctx context.Context, id domain.Identity) ([]domain.Header, error) {
	sid := id[domain.IdentitySessionID]
	if sid != "" && s.rdb != nil {
		if err := s.rdb.Del(ctx, sessionPrefix+sid).Err(); err != nil {
			return nil, domain.ErrRedisUnavailable(err)
		}
	}
	return []domain.Header{security.SetCookieHeader(security.ExpiredCookie(s.cookie))}, nil
}

// Identify resolves the session cookie. Redis errors read as anonymous.
func (s *SessionRememberer) Identify(r *http.Request) (domain.Identity, bool) {
	if s.rdb == nil {
		return nil, false
	}
	sid, ok := security.ReadCookie(r, s.cookie)
	if !ok {
		return nil, false
	}

	raw, err := s.rdb.Get(r.Context(), sessionPrefix+sid).Bytes()
	if err != nil {
		return nil, false
	}

	var id domain.Identity
	if err := json.Unmarshal(raw, &id); err != nil || !id.Authenticated() {
		return nil, false
	}
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
