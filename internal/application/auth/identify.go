package auth

import (
	"context"

	"github.com/baechuer/real-time-ressys/services/oauth-service/internal/domain"
)

// BindLocalUser creates or updates the local user for a provider profile.
// fullname, email and the admin flag always follow the latest profile.
func (s *Service) BindLocalUser(ctx context.Context, profile *domain.UserProfile) (*domain.User, bool, error) {
	u, err := s.mergeProfile(ctx, profile)
	if err != nil {
		return nil, false, err
	}
	created, err := s.users.Upsert(ctx, u)
	if err != nil {
		return nil, false, err
	}
	return &u, created, nil
}

// mergeProfile computes the user row for a profile without writing it.
func (s *Service) mergeProfile(ctx context.Context, profile *domain.UserProfile) (domain.User, error) {
	if profile == nil || profile.Username == "" {
		return domain.User{}, domain.ErrMalformedProfile("username")
	}

	var u domain.User
	existing, err := s.users.GetByName(ctx, profile.Username)
	switch {
	case err == nil && existing != nil:
		u = *existing
	case err == nil || domain.Is(err, "user_not_found"):
		u = domain.User{Name: profile.Username}
	default:
		return domain.User{}, err
	}

	u.ApplyProfile(*profile, s.adminRole)
	return u, nil
}

// CurrentUser returns the local user bound to a session.
func (s *Service) CurrentUser(ctx context.Context, userName string) (*domain.User, error) {
	if userName == "" {
		return nil, domain.ErrNotAuthenticated()
	}
	u, err := s.users.GetByName(ctx, userName)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, domain.ErrUserNotFound()
	}
	return u, nil
}

// StoredToken returns the persisted token set, or nil when none exists.
func (s *Service) StoredToken(ctx context.Context, userName string) (*domain.OAuthToken, error) {
	if userName == "" {
		return nil, domain.ErrMissingField("user_name")
	}
	return s.tokens.Get(ctx, userName)
}
