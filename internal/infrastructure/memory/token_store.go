package memory

import (
	"context"
	"sync"

	"github.com/baechuer/real-time-ressys/services/oauth-service/internal/domain"
)

// TokenStore keeps one token set per user in process memory.
type TokenStore struct {
	mu     sync.RWMutex
	tokens map[string]domain.OAuthToken
}

func NewTokenStore() *TokenStore {
	return &TokenStore{tokens: make(map[string]domain.OAuthToken)}
}

func (s *TokenStore) Get(_ context.Context, userName string) (*domain.OAuthToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tokens[userName]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (s *TokenStore) Upsert(_ context.Context, userName string, tok domain.OAuthToken) error {
	if userName == "" {
		return domain.ErrMissingField("user_name")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[userName] = tok
	return nil
}

// LoginStore writes user and token under both locks so readers never see
// one without the other.
type LoginStore struct {
	users  *UserRepo
	tokens *TokenStore
}

func NewLoginStore(users *UserRepo, tokens *TokenStore) *LoginStore {
	return &LoginStore{users: users, tokens: tokens}
}

func (s *LoginStore) SaveLogin(_ context.Context, u domain.User, tok domain.OAuthToken) (bool, error) {
	if u.Name == "" {
		return false, domain.ErrMissingField("name")
	}

	s.users.mu.Lock()
	defer s.users.mu.Unlock()
	s.tokens.mu.Lock()
	defer s.tokens.mu.Unlock()

	created := s.users.upsertLocked(u)
	s.tokens.tokens[u.Name] = tok
	return created, nil
}
