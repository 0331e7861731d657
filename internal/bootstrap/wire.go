package bootstrap

import (
	"context"
	"database/sql"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/baechuer/real-time-ressys/services/oauth-service/internal/application/auth"
	"github.com/baechuer/real-time-ressys/services/oauth-service/internal/audit"
	"github.com/baechuer/real-time-ressys/services/oauth-service/internal/config"
	"github.com/baechuer/real-time-ressys/services/oauth-service/internal/domain"
	"github.com/baechuer/real-time-ressys/services/oauth-service/internal/infrastructure/db/postgres"
	"github.com/baechuer/real-time-ressys/services/oauth-service/internal/infrastructure/memory"
	rabbitmq_pub "github.com/baechuer/real-time-ressys/services/oauth-service/internal/infrastructure/messaging/rabbitmq"
	"github.com/baechuer/real-time-ressys/services/oauth-service/internal/infrastructure/oauth"
	"github.com/baechuer/real-time-ressys/services/oauth-service/internal/infrastructure/redis"
	"github.com/baechuer/real-time-ressys/services/oauth-service/internal/infrastructure/security"
	"github.com/baechuer/real-time-ressys/services/oauth-service/internal/infrastructure/state"
	"github.com/baechuer/real-time-ressys/services/oauth-service/internal/logger"
	http_handlers "github.com/baechuer/real-time-ressys/services/oauth-service/internal/transport/http/handlers"
	"github.com/baechuer/real-time-ressys/services/oauth-service/internal/transport/http/middleware"
	"github.com/baechuer/real-time-ressys/services/oauth-service/internal/transport/http/response"
	"github.com/baechuer/real-time-ressys/services/oauth-service/internal/transport/http/router"
)

/*
========================
 Public entry (prod)
========================
*/

func NewServer() (*http.Server, func(), error) {
	return newServer(defaultDeps())
}

// NewServerWithDeps allows injecting dependencies for testing
func NewServerWithDeps(deps Deps) (*http.Server, func(), error) {
	return newServer(deps)
}

/*
========================
 Dependency injection
========================
*/

type Deps struct {
	LoadConfig func() (*config.Config, error)

	NewDB   func(addr string, lg zerolog.Logger) (*sql.DB, error)
	Migrate func(dsn string) error

	NewRedis func(addr, password string, db int) RedisClient

	NewPublisher func(url, exchange string, lg zerolog.Logger) (Publisher, error)

	NewRouter func(router.Deps) (http.Handler, error)

	// HTTPClient talks to the identity provider. Nil builds one with
	// OAUTH2_HTTP_TIMEOUT.
	HTTPClient *http.Client

	Logger *zerolog.Logger
}

type RedisClient interface {
	Ping(ctx context.Context) error
	Close() error
}

type Publisher interface {
	auth.EventPublisher
	Close() error
}

type storage struct {
	users  auth.UserRepo
	tokens auth.TokenStore
	logins auth.LoginStore
	ready  http_handlers.Check
}

/*
========================
 Core bootstrap logic
========================
*/

func newServer(deps Deps) (*http.Server, func(), error) {
	// 0) config
	cfg, err := deps.LoadConfig()
	if err != nil {
		return nil, nil, err
	}

	lg := logger.Logger
	if deps.Logger != nil {
		lg = *deps.Logger
	}

	var cleanupFns []func()
	fail := func(err error) (*http.Server, func(), error) {
		runCleanup(cleanupFns)
		return nil, nil, err
	}

	// 1) storage
	store, closeDB, err := newStorage(cfg, deps, lg)
	if err != nil {
		return fail(err)
	}
	if closeDB != nil {
		cleanupFns = append(cleanupFns, closeDB)
	}

	// 2) redis (best-effort)
	var redisCli *redis.Client
	if cfg.RedisAddr != "" && deps.NewRedis != nil {
		c := deps.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := c.Ping(context.Background()); err != nil {
			lg.Warn().Err(err).Msg("redis unavailable; redis sessions and rate limiting disabled")
			_ = c.Close()
		} else {
			lg.Info().Msg("redis connected")
			cleanupFns = append(cleanupFns, func() { _ = c.Close() })
			redisCli, _ = c.(*redis.Client)
		}
	}

	// 3) rememberers
	cookie := security.CookieConfig{
		Name:   cfg.SessionCookieName,
		Secure: cfg.CookieSecure,
		TTL:    cfg.SessionTTL,
	}
	registry, err := newRegistry(cfg, cookie, redisCli, lg)
	if err != nil {
		return fail(err)
	}

	// 4) provider
	httpClient := deps.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.HTTPTimeout}
	}
	provider := oauth.NewProvider(oauth.ProviderConfig{
		AuthorizationEndpoint: cfg.AuthorizationEndpoint,
		TokenEndpoint:         cfg.TokenEndpoint,
		ClientID:              cfg.ClientID,
		ClientSecret:          cfg.ClientSecret,
		Scopes:                cfg.Scopes,
		Timeout:               cfg.HTTPTimeout,
	}, httpClient)
	profiles := oauth.NewProfileClient(cfg.ProfileAPIURL, oauth.ProfileFields{
		Username: cfg.ProfileUserField,
		FullName: cfg.ProfileFullNameField,
		Email:    cfg.ProfileMailField,
		Roles:    cfg.ProfileRolesField,
	}, cfg.ProfileTokenInQuery, httpClient)

	var states auth.StateCodec = state.NewCodec(lg)
	if cfg.StateSigningSecret != "" {
		states = state.NewSignedCodec(cfg.StateSigningSecret, cfg.StateTTL, lg)
	}

	// 5) publisher
	pub, err := newPublisher(cfg, deps, lg)
	if err != nil {
		return fail(err)
	}
	if c, ok := pub.(interface{ Close() error }); ok {
		cleanupFns = append(cleanupFns, func() { _ = c.Close() })
	}

	// 6) service
	svc, err := auth.NewService(auth.Deps{
		Users:    store.users,
		Tokens:   store.tokens,
		Logins:   store.logins,
		Provider: provider,
		Profiles: profiles,
		States:   states,
		Events:   pub,
	}, registry, auth.Config{
		RemembererName:     cfg.RemembererName,
		AdminRole:          cfg.AdminRole,
		RetainRefreshToken: cfg.RetainRefreshToken,
	})
	if err != nil {
		return fail(err)
	}
	svc = svc.WithLogger(lg).WithAudit(audit.New(lg).Event)
	cleanupFns = append(cleanupFns, svc.WaitEvents)

	rem, _ := registry.Lookup(cfg.RemembererName)
	identifier, ok := rem.(middleware.Identifier)
	if !ok {
		return fail(domain.ErrConfiguration("OAUTH2_REMEMBERER_NAME", "rememberer cannot identify requests"))
	}

	// 7) handlers + middleware
	oauthH := http_handlers.NewOAuthHandler(http_handlers.OAuthHandlerConfig{
		Service:        svc,
		CallbackPath:   cfg.CallbackPath,
		LoginPath:      cfg.LoginPath,
		TrustForwarded: cfg.TrustForwardedHeaders,
		Logger:         lg,
	})
	challenge := http.HandlerFunc(oauthH.Login)

	checks := map[string]http_handlers.Check{}
	if store.ready != nil {
		checks["postgres"] = store.ready
	}
	if redisCli != nil {
		checks["redis"] = redisCli.Ping
	}
	healthH := http_handlers.NewHealthHandler(checks)

	// rate limit (fail-open)
	var limiter middleware.RateLimiter
	if redisCli != nil && cfg.RateLimitEnabled {
		limiter = redis.NewFixedWindowLimiter(redisCli)
	}
	rl := func(key string, limit int) func(http.Handler) http.Handler {
		if limiter == nil {
			return nil
		}
		return middleware.RateLimitFixedWindow(limiter, middleware.FixedWindowConfig{
			RouteKey:       key,
			Limit:          limit,
			Window:         cfg.RateLimitWindow,
			TrustForwarded: cfg.TrustForwardedHeaders,
		}, response.WriteError)
	}

	// 8) router
	mux, err := deps.NewRouter(router.Deps{
		Health: healthH,
		OAuth:  oauthH,

		LoginPath:    cfg.LoginPath,
		CallbackPath: cfg.CallbackPath,
		LogoutPath:   cfg.LogoutPath,

		AuthenticateMW: middleware.Authenticate(identifier),
		RequireLoginMW: middleware.RequireLogin(challenge),
		RequireAdminMW: middleware.RequireAdmin(svc.CurrentUser, challenge, response.WriteError),
		CSRFMW:         middleware.SameOrigin(nil, response.WriteError),

		RLLogin:    rl("oauth.login", cfg.LoginLimit),
		RLCallback: rl("oauth.callback", cfg.LoginLimit),
		RLRefresh:  rl("oauth.refresh", cfg.LoginLimit),
	})
	if err != nil {
		return fail(err)
	}

	// 9) server
	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      mux,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	lg.Info().
		Str("rememberer", cfg.RemembererName).
		Strs("rememberers", registry.Names()).
		Bool("signed_state", cfg.StateSigningSecret != "").
		Msg("oauth service configured")

	return srv, func() { runCleanup(cleanupFns) }, nil
}

// newStorage picks postgres when DB_ADDR is set; dev without a database
// runs on in-memory stores.
func newStorage(cfg *config.Config, deps Deps, lg zerolog.Logger) (*storage, func(), error) {
	if cfg.DBAddr == "" {
		lg.Warn().Msg("DB_ADDR empty; using in-memory user and token stores")
		users, tokens := memory.NewUserRepo(), memory.NewTokenStore()
		return &storage{
			users:  users,
			tokens: tokens,
			logins: memory.NewLoginStore(users, tokens),
		}, nil, nil
	}

	if cfg.DBMigrate && deps.Migrate != nil {
		if err := deps.Migrate(cfg.DBAddr); err != nil {
			return nil, nil, err
		}
	}

	db, err := deps.NewDB(cfg.DBAddr, lg)
	if err != nil {
		return nil, nil, err
	}

	var cipher postgres.TokenCipher
	if cfg.TokenEncryptionKey != "" {
		c, err := security.NewTokenCipher(cfg.TokenEncryptionKey)
		if err != nil {
			_ = db.Close()
			return nil, nil, domain.ErrConfiguration("OAUTH2_TOKEN_ENCRYPTION_KEY", err.Error())
		}
		cipher = c
	}

	tokens := postgres.NewTokenRepo(db, cipher)
	return &storage{
		users:  postgres.NewUserRepo(db),
		tokens: tokens,
		logins: postgres.NewLoginStore(db, tokens),
		ready:  db.PingContext,
	}, func() { _ = db.Close() }, nil
}

// newRegistry registers every rememberer this process can back. The
// configured one must be among them or auth.NewService refuses to start.
func newRegistry(cfg *config.Config, cookie security.CookieConfig, redisCli *redis.Client, lg zerolog.Logger) (*auth.Registry, error) {
	reg := auth.NewRegistry()

	reg.Register("memory", memory.NewSessionRememberer(cookie))

	if cfg.SessionSecret != "" {
		ticket, err := security.NewTicketRememberer(cfg.SessionSecret, cookie)
		if err != nil {
			if cfg.RemembererName == "cookie" {
				return nil, err
			}
			lg.Warn().Err(err).Msg("cookie rememberer disabled")
		} else {
			reg.Register("cookie", ticket)
		}
	}

	if redisCli != nil {
		reg.Register("redis", redis.NewSessionRememberer(redisCli, cookie))
	}

	return reg, nil
}

func newPublisher(cfg *config.Config, deps Deps, lg zerolog.Logger) (auth.EventPublisher, error) {
	if cfg.RabbitURL == "" || deps.NewPublisher == nil {
		return memory.NewNoopPublisher(lg), nil
	}
	pub, err := deps.NewPublisher(cfg.RabbitURL, cfg.RabbitExchange, lg)
	if err != nil {
		if cfg.IsDev() {
			lg.Warn().Err(err).Msg("rabbitmq unavailable; using noop publisher")
			return memory.NewNoopPublisher(lg), nil
		}
		return nil, err
	}
	return pub, nil
}

/*
========================
 Default deps (prod)
========================
*/

func defaultDeps() Deps {
	return Deps{
		LoadConfig: config.Load,
		NewDB:      config.NewDB,
		Migrate:    postgres.Migrate,
		NewRedis: func(addr, password string, db int) RedisClient {
			return redis.New(addr, password, db)
		},
		NewPublisher: func(url, exchange string, lg zerolog.Logger) (Publisher, error) {
			return rabbitmq_pub.NewPublisher(url, exchange, lg)
		},
		NewRouter: router.New,
	}
}

/*
========================
 helpers
========================
*/

func runCleanup(fns []func()) {
	for i := len(fns) - 1; i >= 0; i-- {
		fns[i]()
	}
}
