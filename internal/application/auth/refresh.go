package auth

import (
	"context"

	"github.com/baechuer/real-time-ressys/services/oauth-service/internal/domain"
)

// Refresh renews the stored token with a refresh grant and replaces it in
// full. With nothing stored it is a no-op: (nil, nil).
//
// Concurrent refreshes for the same user race on the store; the last write
// wins.
func (s *Service) Refresh(ctx context.Context, userName string) (*domain.OAuthToken, error) {
	if userName == "" {
		return nil, domain.ErrMissingField("user_name")
	}

	current, err := s.tokens.Get(ctx, userName)
	if err != nil {
		return nil, err
	}
	if current == nil {
		s.log.Warn().Str("user", userName).Msg("no token stored, refresh skipped")
		s.audit("oauth_refresh_skipped", map[string]string{"user": userName})
		return nil, nil
	}
	if current.RefreshToken == "" {
		return nil, domain.ErrRefreshTokenMissing()
	}

	grant, err := s.provider.Refresh(ctx, current.RefreshToken)
	if err != nil {
		s.audit("oauth_refresh_failed", map[string]string{
			"user": userName,
			"code": domainCode(err),
		})
		return nil, err
	}

	next := grant.Token
	if !grant.RefreshTokenIssued {
		if s.retainRefreshToken {
			next.RefreshToken = current.RefreshToken
			s.log.Info().Str("user", userName).Msg("refresh response without refresh_token, keeping previous")
		} else {
			next.RefreshToken = ""
			s.log.Warn().Str("user", userName).Msg("refresh response without refresh_token, stored value cleared")
		}
	}

	if err := s.tokens.Upsert(ctx, userName, next); err != nil {
		return nil, err
	}

	evt := TokenRefreshedEvent{
		UserName:   userName,
		OccurredAt: s.now().UTC(),
	}
	s.publish(ctx, "token_refreshed", userName, func(ctx context.Context) error {
		return s.pub.PublishTokenRefreshed(ctx, evt)
	})

	s.audit("oauth_refresh_succeeded", map[string]string{"user": userName})
	return &next, nil
}
