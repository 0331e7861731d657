package auth

import (
	"context"

	"github.com/baechuer/real-time-ressys/services/oauth-service/internal/domain"
)

// Logout asks the rememberer for the headers that clear the session.
func (s *Service) Logout(ctx context.Context, id domain.Identity) ([]domain.Header, error) {
	headers, err := s.remember.Forget(ctx, id)
	if err != nil {
		return nil, err
	}
	if user := id.UserID(); user != "" {
		s.audit("oauth_logout", map[string]string{"user": user})
	}
	return headers, nil
}
