package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/baechuer/real-time-ressys/services/oauth-service/internal/domain"
)

// TokenCipher protects token values at rest. Empty values are stored as-is.
type TokenCipher interface {
	Seal(plaintext string) (string, error)
	Open(ciphertext string) (string, error)
}

// TokenRepo implements auth.TokenStore on the user_token table.
type TokenRepo struct {
	db     *sql.DB
	cipher TokenCipher
}

// NewTokenRepo stores tokens in plaintext when cipher is nil.
func NewTokenRepo(db *sql.DB, cipher TokenCipher) *TokenRepo {
	return &TokenRepo{db: db, cipher: cipher}
}

func (r *TokenRepo) Get(ctx context.Context, userName string) (*domain.OAuthToken, error) {
	userName = strings.TrimSpace(userName)
	if userName == "" {
		return nil, domain.ErrMissingField("user_name")
	}

	const q = `
SELECT user_name, access_token, refresh_token, token_type, expires_in
FROM user_token
WHERE user_name = $1
LIMIT 1;
`
	var tr tokenRow
	err := r.db.QueryRowContext(ctx, q, userName).Scan(
		&tr.UserName,
		&tr.AccessToken,
		&tr.RefreshToken,
		&tr.TokenType,
		&tr.ExpiresIn,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, domain.ErrDBUnavailable(err)
	}

	access, err := r.open(tr.AccessToken)
	if err != nil {
		return nil, domain.ErrInternal(err)
	}
	refresh, err := r.open(tr.RefreshToken)
	if err != nil {
		return nil, domain.ErrInternal(err)
	}

	return &domain.OAuthToken{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    tr.TokenType,
		ExpiresIn:    tr.ExpiresIn,
	}, nil
}

func (r *TokenRepo) Upsert(ctx context.Context, userName string, tok domain.OAuthToken) error {
	return r.upsert(ctx, r.db, userName, tok)
}

// upsert replaces all four fields in one statement; there is no partial update.
func (r *TokenRepo) upsert(ctx context.Context, q execQuerier, userName string, tok domain.OAuthToken) error {
	if strings.TrimSpace(userName) == "" {
		return domain.ErrMissingField("user_name")
	}

	access, err := r.seal(tok.AccessToken)
	if err != nil {
		return domain.ErrInternal(err)
	}
	refresh, err := r.seal(tok.RefreshToken)
	if err != nil {
		return domain.ErrInternal(err)
	}

	const stmt = `
INSERT INTO user_token (user_name, access_token, refresh_token, token_type, expires_in)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (user_name) DO UPDATE
SET access_token = EXCLUDED.access_token,
    refresh_token = EXCLUDED.refresh_token,
    token_type = EXCLUDED.token_type,
    expires_in = EXCLUDED.expires_in,
    updated_at = now();
`
	if _, err := q.ExecContext(ctx, stmt, userName, access, refresh, tok.TokenType, tok.ExpiresIn); err != nil {
		return domain.ErrDBUnavailable(err)
	}
	return nil
}

func (r *TokenRepo) seal(v string) (string, error) {
	if r.cipher == nil || v == "" {
		return v, nil
	}
	return r.cipher.Seal(v)
}

func (r *TokenRepo) open(v string) (string, error) {
	if r.cipher == nil || v == "" {
		return v, nil
	}
	return r.cipher.Open(v)
}
