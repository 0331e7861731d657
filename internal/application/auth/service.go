package auth

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/baechuer/real-time-ressys/services/oauth-service/internal/domain"
)

// publishTimeout bounds one detached event publish.
const publishTimeout = 5 * time.Second

// DefaultAdminRole is the authority that grants the local admin flag when no
// other marker is configured.
const DefaultAdminRole = "ROLE_ADMIN"

// Service is the OAuth2 flow controller. It keeps no per-request state;
// everything that crosses a redirect lives in the state parameter or the
// token store.
type Service struct {
	users    UserRepo
	tokens   TokenStore
	logins   LoginStore
	provider ProviderClient
	profiles ProfileFetcher
	states   StateCodec
	remember Rememberer
	pub      EventPublisher

	adminRole          string
	retainRefreshToken bool

	now   func() time.Time
	log   zerolog.Logger
	audit func(action string, fields map[string]string)

	events sync.WaitGroup
}

// Config is read once at construction and never mutated afterwards.
type Config struct {
	// RemembererName selects the session adapter from the registry.
	RemembererName string
	// AdminRole is the profile authority that maps to User.IsAdmin.
	AdminRole string
	// RetainRefreshToken keeps the stored refresh token when a refresh
	// response omits one. Off by default: the stored value is cleared.
	RetainRefreshToken bool
}

// Deps groups the ports the flow controller drives.
type Deps struct {
	Users    UserRepo
	Tokens   TokenStore
	Logins   LoginStore
	Provider ProviderClient
	Profiles ProfileFetcher
	States   StateCodec
	Events   EventPublisher
}

// NewService validates its dependencies and resolves the rememberer by name.
// Any problem is a configuration error and must stop the process.
func NewService(deps Deps, registry *Registry, cfg Config) (*Service, error) {
	switch {
	case deps.Users == nil:
		return nil, domain.ErrConfiguration("users", "user repository is required")
	case deps.Tokens == nil:
		return nil, domain.ErrConfiguration("tokens", "token store is required")
	case deps.Logins == nil:
		return nil, domain.ErrConfiguration("logins", "login store is required")
	case deps.Provider == nil:
		return nil, domain.ErrConfiguration("provider", "provider client is required")
	case deps.Profiles == nil:
		return nil, domain.ErrConfiguration("profiles", "profile fetcher is required")
	case deps.States == nil:
		return nil, domain.ErrConfiguration("states", "state codec is required")
	case registry == nil:
		return nil, domain.ErrConfiguration("rememberer_name", "no rememberer registry supplied")
	}

	rem, err := registry.Resolve(cfg.RemembererName)
	if err != nil {
		return nil, err
	}

	adminRole := cfg.AdminRole
	if adminRole == "" {
		adminRole = DefaultAdminRole
	}
	pub := deps.Events
	if pub == nil {
		pub = noopPublisher{}
	}

	return &Service{
		users:    deps.Users,
		tokens:   deps.Tokens,
		logins:   deps.Logins,
		provider: deps.Provider,
		profiles: deps.Profiles,
		states:   deps.States,
		remember: rem,
		pub:      pub,

		adminRole:          adminRole,
		retainRefreshToken: cfg.RetainRefreshToken,

		now:   time.Now,
		log:   zerolog.Nop(),
		audit: func(string, map[string]string) {},
	}, nil
}

func (s *Service) WithAudit(fn func(action string, fields map[string]string)) *Service {
	if fn != nil {
		s.audit = fn
	}
	return s
}

func (s *Service) WithLogger(lg zerolog.Logger) *Service {
	s.log = lg.With().Str("component", "oauth_flow").Logger()
	return s
}

// publish runs fn off the request path on a context detached from the
// request's cancellation. Failures are logged only.
func (s *Service) publish(ctx context.Context, event, user string, fn func(ctx context.Context) error) {
	ctx = context.WithoutCancel(ctx)
	s.events.Add(1)
	go func() {
		defer s.events.Done()
		ctx, cancel := context.WithTimeout(ctx, publishTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			s.log.Warn().Err(err).Str("user", user).Str("event", event).Msg("publish event failed")
		}
	}()
}

// WaitEvents blocks until every in-flight event publish has returned.
// Call it before closing the publisher.
func (s *Service) WaitEvents() {
	s.events.Wait()
}

type noopPublisher struct{}

func (noopPublisher) PublishLoginSucceeded(_ context.Context, _ LoginSucceededEvent) error {
	return nil
}

func (noopPublisher) PublishTokenRefreshed(_ context.Context, _ TokenRefreshedEvent) error {
	return nil
}
