package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/baechuer/real-time-ressys/services/oauth-service/internal/domain"
)

type UserRepo struct {
	db *sql.DB
}

func NewUserRepo(db *sql.DB) *UserRepo {
	return &UserRepo{db: db}
}

func toDomainUser(ur userRow) *domain.User {
	return &domain.User{
		Name:      ur.Name,
		FullName:  ur.FullName,
		Email:     ur.Email,
		IsAdmin:   ur.IsAdmin,
		CreatedAt: ur.CreatedAt,
		UpdatedAt: ur.UpdatedAt,
	}
}

// ---------- auth.UserRepo ----------

func (r *UserRepo) GetByName(ctx context.Context, name string) (*domain.User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domain.ErrMissingField("name")
	}

	const q = `
SELECT name, fullname, email, is_admin, created_at, updated_at
FROM users
WHERE name = $1
LIMIT 1;
`
	var ur userRow
	err := r.db.QueryRowContext(ctx, q, name).Scan(
		&ur.Name,
		&ur.FullName,
		&ur.Email,
		&ur.IsAdmin,
		&ur.CreatedAt,
		&ur.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrUserNotFound()
		}
		return nil, domain.ErrDBUnavailable(err)
	}
	return toDomainUser(ur), nil
}

func (r *UserRepo) Upsert(ctx context.Context, u domain.User) (bool, error) {
	return upsertUser(ctx, r.db, u)
}

// upsertUser reports created=true when the row did not exist before.
// xmax is 0 only for freshly inserted tuples.
func upsertUser(ctx context.Context, q execQuerier, u domain.User) (bool, error) {
	if strings.TrimSpace(u.Name) == "" {
		return false, domain.ErrMissingField("name")
	}

	const stmt = `
INSERT INTO users (name, fullname, email, is_admin)
VALUES ($1, $2, $3, $4)
ON CONFLICT (name) DO UPDATE
SET fullname = EXCLUDED.fullname,
    email = EXCLUDED.email,
    is_admin = EXCLUDED.is_admin,
    updated_at = now()
RETURNING (xmax = 0) AS created;
`
	var created bool
	if err := q.QueryRowContext(ctx, stmt, u.Name, u.FullName, u.Email, u.IsAdmin).Scan(&created); err != nil {
		return false, domain.ErrDBUnavailable(err)
	}
	return created, nil
}
