package auth

import (
	"context"
	"time"

	"github.com/baechuer/real-time-ressys/services/oauth-service/internal/domain"
)

/*
UserRepo
--------
Persistence port for local users, keyed by provider username.
GetByName returns domain.ErrUserNotFound when no row exists.
*/
type UserRepo interface {
	GetByName(ctx context.Context, name string) (*domain.User, error)
	Upsert(ctx context.Context, u domain.User) (created bool, err error)
}

/*
TokenStore
----------
One OAuth token set per user. Get returns (nil, nil) when nothing is stored:
absence means "never authenticated", not a failure.
*/
type TokenStore interface {
	Get(ctx context.Context, userName string) (*domain.OAuthToken, error)
	Upsert(ctx context.Context, userName string, tok domain.OAuthToken) error
}

/*
LoginStore
----------
Persists the bound user and the freshly issued token as one unit.
Either both rows are written or neither is.
*/
type LoginStore interface {
	SaveLogin(ctx context.Context, u domain.User, tok domain.OAuthToken) (created bool, err error)
}

/*
ProviderClient
--------------
Talks to the authorization and token endpoints.
*/
type ProviderClient interface {
	AuthCodeURL(state, redirectURI string) string
	Exchange(ctx context.Context, code, redirectURI string) (*TokenGrant, error)
	Refresh(ctx context.Context, refreshToken string) (*TokenGrant, error)
}

// TokenGrant is a token endpoint response. RefreshTokenIssued is false when
// the response body carried no refresh_token of its own.
type TokenGrant struct {
	Token              domain.OAuthToken
	RefreshTokenIssued bool
}

/*
ProfileFetcher
--------------
Resolves the provider profile for an access token.
*/
type ProfileFetcher interface {
	FetchProfile(ctx context.Context, accessToken string) (*domain.UserProfile, error)
}

/*
StateCodec
----------
Carries the came-from URL through the provider round trip.
Decode never fails; it falls back to "/".
*/
type StateCodec interface {
	Encode(cameFrom string) (string, error)
	Decode(token string) string
}

/*
Rememberer
----------
Establishes and clears the client session. The returned headers are attached
to the response untouched.
*/
type Rememberer interface {
	Remember(ctx context.Context, id domain.Identity) ([]domain.Header, error)
	Forget(ctx context.Context, id domain.Identity) ([]domain.Header, error)
}

/*
EventPublisher
--------------
Publishes login lifecycle events. Failures never fail the request.
*/
type EventPublisher interface {
	PublishLoginSucceeded(ctx context.Context, evt LoginSucceededEvent) error
	PublishTokenRefreshed(ctx context.Context, evt TokenRefreshedEvent) error
}

type LoginSucceededEvent struct {
	UserName   string    `json:"user_name"`
	Email      string    `json:"email"`
	IsAdmin    bool      `json:"is_admin"`
	Created    bool      `json:"created"`
	OccurredAt time.Time `json:"occurred_at"`
}

type TokenRefreshedEvent struct {
	UserName   string    `json:"user_name"`
	OccurredAt time.Time `json:"occurred_at"`
}
