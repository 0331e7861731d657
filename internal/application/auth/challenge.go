package auth

import (
	"context"

	"github.com/baechuer/real-time-ressys/services/oauth-service/internal/domain"
)

type ChallengeInput struct {
	// CameFrom is where the user should land after logging in.
	CameFrom string
	// Referer is used when the caller is already authenticated.
	Referer string
	// Authenticated is true when the request already carries an identity.
	Authenticated bool
	// RedirectURI is the callback URL registered with the provider.
	RedirectURI string
}

type ChallengeResult struct {
	Location   string
	ToProvider bool
}

// Challenge decides where an unauthenticated (or unauthorized) request goes.
// A caller that is already logged in is never sent back to the provider;
// that would loop forever on pages it is simply not allowed to see.
func (s *Service) Challenge(ctx context.Context, in ChallengeInput) (*ChallengeResult, error) {
	if in.Authenticated {
		loc := in.Referer
		if loc == "" {
			loc = "/"
		}
		return &ChallengeResult{Location: loc}, nil
	}

	if in.RedirectURI == "" {
		return nil, domain.ErrMissingField("redirect_uri")
	}

	cameFrom := in.CameFrom
	if cameFrom == "" {
		cameFrom = "/"
	}

	state, err := s.states.Encode(cameFrom)
	if err != nil {
		return nil, domain.ErrInternal(err)
	}

	s.log.Debug().Str("came_from", cameFrom).Msg("challenge issued")

	return &ChallengeResult{
		Location:   s.provider.AuthCodeURL(state, in.RedirectURI),
		ToProvider: true,
	}, nil
}

// CameFrom decodes a callback state into the came_from it carries, "/" when
// the state is unusable.
func (s *Service) CameFrom(state string) string {
	return s.states.Decode(state)
}
