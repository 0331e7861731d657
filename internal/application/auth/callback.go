package auth

import (
	"context"
	"strconv"
	"strings"

	"github.com/baechuer/real-time-ressys/services/oauth-service/internal/domain"
)

type CallbackInput struct {
	Code        string
	State       string
	RedirectURI string
}

type CallbackResult struct {
	User     domain.User
	Token    domain.OAuthToken
	Headers  []domain.Header
	Location string
	Created  bool
}

// Callback completes the authorization-code grant:
// exchange -> profile -> bind user -> persist user+token -> remember -> came_from.
// Nothing is written unless both provider calls succeed.
func (s *Service) Callback(ctx context.Context, in CallbackInput) (*CallbackResult, error) {
	if strings.TrimSpace(in.Code) == "" {
		return nil, domain.ErrMissingCode()
	}

	grant, err := s.provider.Exchange(ctx, in.Code, in.RedirectURI)
	if err != nil {
		s.loginFailed("exchange", err)
		return nil, err
	}

	profile, err := s.profiles.FetchProfile(ctx, grant.Token.AccessToken)
	if err != nil {
		s.loginFailed("profile", err)
		return nil, err
	}

	user, err := s.mergeProfile(ctx, profile)
	if err != nil {
		s.loginFailed("bind", err)
		return nil, err
	}

	created, err := s.logins.SaveLogin(ctx, user, grant.Token)
	if err != nil {
		s.loginFailed("persist", err)
		return nil, err
	}

	headers, err := s.remember.Remember(ctx, domain.NewIdentity(user.Name))
	if err != nil {
		s.loginFailed("remember", err)
		return nil, err
	}

	loc := s.states.Decode(in.State)

	evt := LoginSucceededEvent{
		UserName:   user.Name,
		Email:      user.Email,
		IsAdmin:    user.IsAdmin,
		Created:    created,
		OccurredAt: s.now().UTC(),
	}
	s.publish(ctx, "login_succeeded", user.Name, func(ctx context.Context) error {
		return s.pub.PublishLoginSucceeded(ctx, evt)
	})

	s.audit("oauth_login_succeeded", map[string]string{
		"user":     user.Name,
		"email":    user.Email,
		"is_admin": strconv.FormatBool(user.IsAdmin),
		"created":  strconv.FormatBool(created),
	})

	return &CallbackResult{
		User:     user,
		Token:    grant.Token,
		Headers:  headers,
		Location: loc,
		Created:  created,
	}, nil
}

func (s *Service) loginFailed(stage string, err error) {
	s.log.Warn().Err(err).Str("stage", stage).Msg("oauth login failed")
	s.audit("oauth_login_failed", map[string]string{
		"stage": stage,
		"code":  domainCode(err),
	})
}
