package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	entrans "github.com/go-playground/validator/v10/translations/en"
	"github.com/joho/godotenv"

	"github.com/baechuer/real-time-ressys/services/oauth-service/internal/domain"
)

type Config struct {
	//App
	Env      string `env:"APP_ENV" validate:"oneof=dev staging prod"`
	HTTPAddr string `env:"HTTP_ADDR" validate:"required"`

	HTTPReadTimeout  time.Duration `env:"HTTP_READ_TIMEOUT" validate:"gt=0"`
	HTTPWriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" validate:"gt=0"`
	HTTPIdleTimeout  time.Duration `env:"HTTP_IDLE_TIMEOUT" validate:"gt=0"`

	// Provider
	AuthorizationEndpoint string        `env:"OAUTH2_AUTHORIZATION_ENDPOINT" validate:"required,url"`
	TokenEndpoint         string        `env:"OAUTH2_TOKEN_ENDPOINT" validate:"required,url"`
	ProfileAPIURL         string        `env:"OAUTH2_PROFILE_API_URL" validate:"required,url"`
	ClientID              string        `env:"OAUTH2_CLIENT_ID" validate:"required"`
	ClientSecret          string        `env:"OAUTH2_CLIENT_SECRET" validate:"required"`
	Scopes                []string      `env:"OAUTH2_SCOPE" validate:"required,min=1"`
	HTTPTimeout           time.Duration `env:"OAUTH2_HTTP_TIMEOUT" validate:"gt=0"`

	// Profile mapping
	ProfileUserField     string   `env:"OAUTH2_PROFILE_API_USER_FIELD" validate:"required"`
	ProfileFullNameField []string `env:"OAUTH2_PROFILE_API_FULLNAME_FIELD" validate:"required,min=1"`
	ProfileMailField     string   `env:"OAUTH2_PROFILE_API_MAIL_FIELD" validate:"required"`
	ProfileRolesField    string   `env:"OAUTH2_PROFILE_API_ROLES_FIELD"`
	AdminRole            string   `env:"OAUTH2_ADMIN_ROLE" validate:"required"`
	ProfileTokenInQuery  bool     `env:"OAUTH2_PROFILE_TOKEN_IN_QUERY"`

	// Routes
	CallbackPath string `env:"OAUTH2_CALLBACK_PATH" validate:"required,startswith=/"`
	LoginPath    string `env:"OAUTH2_LOGIN_PATH" validate:"required,startswith=/"`
	LogoutPath   string `env:"OAUTH2_LOGOUT_PATH" validate:"required,startswith=/"`

	// State / tokens
	StateSigningSecret string        `env:"OAUTH2_STATE_SIGNING_SECRET"`
	StateTTL           time.Duration `env:"OAUTH2_STATE_TTL" validate:"gt=0"`
	RetainRefreshToken bool          `env:"OAUTH2_RETAIN_REFRESH_TOKEN"`
	TokenEncryptionKey string        `env:"OAUTH2_TOKEN_ENCRYPTION_KEY" validate:"omitempty,min=16"`

	// Session
	RemembererName        string        `env:"OAUTH2_REMEMBERER_NAME" validate:"required,oneof=cookie redis memory"`
	SessionCookieName     string        `env:"SESSION_COOKIE_NAME" validate:"required"`
	SessionSecret         string        `env:"SESSION_SECRET" validate:"required_if=RemembererName cookie"`
	SessionTTL            time.Duration `env:"SESSION_TTL" validate:"gt=0"`
	CookieSecure          bool          `env:"COOKIE_SECURE"`
	TrustForwardedHeaders bool          `env:"TRUST_FORWARDED_HEADERS"`

	// Infrastructure
	DBAddr         string `env:"DB_ADDR" validate:"required_unless=Env dev"`
	DBMigrate      bool   `env:"DB_MIGRATE"`
	RedisAddr      string `env:"REDIS_ADDR"`
	RedisPassword  string `env:"REDIS_PASSWORD"`
	RedisDB        int    `env:"REDIS_DB" validate:"gte=0"`
	RabbitURL      string `env:"RABBIT_URL" validate:"omitempty,url"`
	RabbitExchange string `env:"RABBIT_EXCHANGE"`

	// Rate limiting
	RateLimitEnabled bool          `env:"RL_ENABLED"`
	LoginLimit       int           `env:"RL_LOGIN_LIMIT" validate:"gte=0"`
	RateLimitWindow  time.Duration `env:"RL_WINDOW" validate:"gt=0"`
}

// IsDev reports whether the service runs with development defaults.
func (c *Config) IsDev() bool { return c.Env == "dev" }

// Load reads the environment (and an optional .env file) and validates the
// result. Every failure is a ConfigurationError; the service must not start.
func Load() (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	p := &parser{}
	cfg := &Config{
		Env:      p.str("APP_ENV", "dev"),
		HTTPAddr: p.str("HTTP_ADDR", ":8090"),

		HTTPReadTimeout:  p.duration("HTTP_READ_TIMEOUT", 10*time.Second),
		HTTPWriteTimeout: p.duration("HTTP_WRITE_TIMEOUT", 30*time.Second),
		HTTPIdleTimeout:  p.duration("HTTP_IDLE_TIMEOUT", time.Minute),

		AuthorizationEndpoint: p.str("OAUTH2_AUTHORIZATION_ENDPOINT", ""),
		TokenEndpoint:         p.str("OAUTH2_TOKEN_ENDPOINT", ""),
		ProfileAPIURL:         p.str("OAUTH2_PROFILE_API_URL", ""),
		ClientID:              p.str("OAUTH2_CLIENT_ID", ""),
		ClientSecret:          p.str("OAUTH2_CLIENT_SECRET", ""),
		Scopes:                SplitScope(p.str("OAUTH2_SCOPE", "")),
		HTTPTimeout:           p.duration("OAUTH2_HTTP_TIMEOUT", 10*time.Second),

		ProfileUserField:     p.str("OAUTH2_PROFILE_API_USER_FIELD", "username"),
		ProfileFullNameField: splitList(p.str("OAUTH2_PROFILE_API_FULLNAME_FIELD", "name")),
		ProfileMailField:     p.str("OAUTH2_PROFILE_API_MAIL_FIELD", "email"),
		ProfileRolesField:    p.str("OAUTH2_PROFILE_API_ROLES_FIELD", "roles"),
		AdminRole:            p.str("OAUTH2_ADMIN_ROLE", "ROLE_ADMIN"),
		ProfileTokenInQuery:  p.boolean("OAUTH2_PROFILE_TOKEN_IN_QUERY", false),

		CallbackPath: p.str("OAUTH2_CALLBACK_PATH", "/oauth2/callback"),
		LoginPath:    p.str("OAUTH2_LOGIN_PATH", "/user/login"),
		LogoutPath:   p.str("OAUTH2_LOGOUT_PATH", "/user/logout"),

		StateSigningSecret: p.str("OAUTH2_STATE_SIGNING_SECRET", ""),
		StateTTL:           p.duration("OAUTH2_STATE_TTL", 10*time.Minute),
		RetainRefreshToken: p.boolean("OAUTH2_RETAIN_REFRESH_TOKEN", false),
		TokenEncryptionKey: p.str("OAUTH2_TOKEN_ENCRYPTION_KEY", ""),

		RemembererName:        strings.ToLower(p.str("OAUTH2_REMEMBERER_NAME", "")),
		SessionCookieName:     p.str("SESSION_COOKIE_NAME", "oauth_session"),
		SessionSecret:         p.str("SESSION_SECRET", ""),
		SessionTTL:            p.duration("SESSION_TTL", 24*time.Hour),
		TrustForwardedHeaders: p.boolean("TRUST_FORWARDED_HEADERS", false),

		DBAddr:         p.str("DB_ADDR", ""),
		DBMigrate:      p.boolean("DB_MIGRATE", true),
		RedisAddr:      p.str("REDIS_ADDR", ""),
		RedisPassword:  p.str("REDIS_PASSWORD", ""),
		RedisDB:        p.integer("REDIS_DB", 0),
		RabbitURL:      p.str("RABBIT_URL", ""),
		RabbitExchange: p.str("RABBIT_EXCHANGE", ""),

		RateLimitEnabled: p.boolean("RL_ENABLED", true),
		LoginLimit:       p.integer("RL_LOGIN_LIMIT", 30),
		RateLimitWindow:  p.duration("RL_WINDOW", time.Minute),
	}
	cfg.CookieSecure = p.boolean("COOKIE_SECURE", !cfg.IsDev())

	if p.err != nil {
		return nil, p.err
	}
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SplitScope splits on spaces when the value has any, otherwise on newlines.
func SplitScope(raw string) []string {
	sep := "\n"
	if strings.Contains(raw, " ") {
		sep = " "
	}
	var out []string
	for _, s := range strings.Split(raw, sep) {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func splitList(raw string) []string {
	var out []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

var (
	validate   *validator.Validate
	translator ut.Translator
)

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name := f.Tag.Get("env"); name != "" {
			return name
		}
		return f.Name
	})

	locale := en.New()
	translator, _ = ut.New(locale, locale).GetTranslator("en")
	_ = entrans.RegisterDefaultTranslations(validate, translator)
}

// validateConfig reports the first invalid variable as a ConfigurationError.
func validateConfig(cfg *Config) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) || len(ves) == 0 {
		return domain.ErrConfiguration("config", err.Error())
	}
	fe := ves[0]
	return domain.ErrConfiguration(fe.Field(), fe.Translate(translator))
}

// parser keeps the first conversion error so Load reads straight through.
type parser struct {
	err error
}

func (p *parser) str(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.fail(key, fmt.Sprintf("invalid duration %q", v))
		return def
	}
	return d
}

func (p *parser) boolean(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.fail(key, fmt.Sprintf("invalid bool %q", v))
		return def
	}
	return b
}

func (p *parser) integer(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.fail(key, fmt.Sprintf("invalid int %q", v))
		return def
	}
	return n
}

func (p *parser) fail(key, reason string) {
	if p.err == nil {
		p.err = domain.ErrConfiguration(key, reason)
	}
}
