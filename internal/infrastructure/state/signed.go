package state

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
)

const defaultSignedTTL = 10 * time.Minute

type stateClaims struct {
	CameFrom string `json:"came_from"`
	jwt.RegisteredClaims
}

// SignedCodec wraps the came-from URL in an HS256 JWT so the provider round
// trip cannot be used to redirect users elsewhere. Expired or tampered
// states decode to DefaultCameFrom like any other bad state.
type SignedCodec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
	log    zerolog.Logger
}

func NewSignedCodec(secret string, ttl time.Duration, lg zerolog.Logger) *SignedCodec {
	if ttl <= 0 {
		ttl = defaultSignedTTL
	}
	return &SignedCodec{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
		log:    lg,
	}
}

func (c *SignedCodec) Encode(cameFrom string) (string, error) {
	if len(c.secret) == 0 {
		return "", errors.New("state signing secret is empty")
	}
	now := c.now()
	claims := stateClaims{
		CameFrom: cameFrom,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
}

func (c *SignedCodec) Decode(token string) string {
	if token == "" || len(c.secret) == 0 {
		return DefaultCameFrom
	}

	claims := &stateClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !parsed.Valid {
		c.log.Debug().Err(err).Msg("signed state rejected, using default")
		return DefaultCameFrom
	}
	if claims.CameFrom == "" {
		return DefaultCameFrom
	}
	return claims.CameFrom
}
