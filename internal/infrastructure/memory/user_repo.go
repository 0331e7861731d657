package memory

import (
	"context"
	"sync"
	"time"

	"github.com/baechuer/real-time-ressys/services/oauth-service/internal/domain"
)

type UserRepo struct {
	mu     sync.RWMutex
	byName map[string]domain.User
}

func NewUserRepo() *UserRepo {
	return &UserRepo{byName: make(map[string]domain.User)}
}

func (r *UserRepo) GetByName(_ context.Context, name string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byName[name]
	if !ok {
		return nil, domain.ErrUserNotFound()
	}
	return &u, nil
}

func (r *UserRepo) Upsert(_ context.Context, u domain.User) (bool, error) {
	if u.Name == "" {
		return false, domain.ErrMissingField("name")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.upsertLocked(u), nil
}

func (r *UserRepo) upsertLocked(u domain.User) bool {
	now := time.Now().UTC()
	prev, exists := r.byName[u.Name]
	if exists {
		u.CreatedAt = prev.CreatedAt
	} else {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	r.byName[u.Name] = u
	return !exists
}
