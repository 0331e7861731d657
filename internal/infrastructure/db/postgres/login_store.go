package postgres

import (
	"context"
	"database/sql"

	"github.com/baechuer/real-time-ressys/services/oauth-service/internal/domain"
)

// LoginStore writes the bound user and the new token in one transaction.
type LoginStore struct {
	db     *sql.DB
	tokens *TokenRepo
}

func NewLoginStore(db *sql.DB, tokens *TokenRepo) *LoginStore {
	return &LoginStore{db: db, tokens: tokens}
}

func (s *LoginStore) SaveLogin(ctx context.Context, u domain.User, tok domain.OAuthToken) (created bool, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, domain.ErrDBUnavailable(err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	created, err = upsertUser(ctx, tx, u)
	if err != nil {
		return false, err
	}
	if err = s.tokens.upsert(ctx, tx, u.Name, tok); err != nil {
		return false, err
	}
	if err = tx.Commit(); err != nil {
		return false, domain.ErrDBUnavailable(err)
	}
	return created, nil
}
