package security

import (
	"context"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/baechuer/real-time-ressys/services/oauth-service/internal/domain"
)

const ticketIssuer = "oauth-service"

type ticketClaims struct {
	jwt.RegisteredClaims
}

// TicketRememberer keeps the identity in a signed cookie (HS256 JWT), so
// there is no server-side session state at all.
type TicketRememberer struct {
	secret []byte
	cookie CookieConfig
	now    func() time.Time
}

func NewTicketRememberer(secret string, cookie CookieConfig) (*TicketRememberer, error) {
	if len(secret) < 16 {
		return nil, domain.ErrConfiguration("SESSION_SECRET", "must be at least 16 characters")
	}
	if cookie.TTL <= 0 {
		cookie.TTL = 24 * time.Hour
	}
	return &TicketRememberer{
		secret: []byte(secret),
		cookie: cookie,
		now:    time.Now,
	}, nil
}

func (t *TicketRememberer) Remember(_ context.Context, id domain.Identity) ([]domain.Header, error) {
	user := id.UserID()
	if user == "" {
		return nil, domain.ErrMissingField(domain.IdentityUserID)
	}

	now := t.now()
	claims := ticketClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ticketIssuer,
			Subject:   user,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.cookie.TTL)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return nil, domain.ErrTokenSignFailed(err)
	}
	return []domain.Header{SetCookieHeader(SessionCookie(t.cookie, signed))}, nil
}

func (t *TicketRememberer) Forget(_ context.Context, _ domain.Identity) ([]domain.Header, error) {
	return []domain.Header{SetCookieHeader(ExpiredCookie(t.cookie))}, nil
}

// Identify returns the identity carried by a valid, unexpired ticket.
func (t *TicketRememberer) Identify(r *http.Request) (domain.Identity, bool) {
	raw, ok := ReadCookie(r, t.cookie)
	if !ok {
		return nil, false
	}

	claims := &ticketClaims{}
	parsed, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(ticketIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil || !parsed.Valid || claims.Subject == "" {
		return nil, false
	}
	return domain.NewIdentity(claims.Subject), true
}
