package memory

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/baechuer/real-time-ressys/services/oauth-service/internal/application/auth"
)

// NoopPublisher logs events instead of sending them. Used in dev when no
// broker is configured.
type NoopPublisher struct {
	log zerolog.Logger
}

func NewNoopPublisher(lg zerolog.Logger) *NoopPublisher {
	return &NoopPublisher{log: lg.With().Str("component", "noop_publisher").Logger()}
}

func (p *NoopPublisher) PublishLoginSucceeded(_ context.Context, evt auth.LoginSucceededEvent) error {
	p.log.Debug().Str("user", evt.UserName).Bool("created", evt.Created).Msg("login succeeded")
	return nil
}

func (p *NoopPublisher) PublishTokenRefreshed(_ context.Context, evt auth.TokenRefreshedEvent) error {
	p.log.Debug().Str("user", evt.UserName).Msg("token refreshed")
	return nil
}
