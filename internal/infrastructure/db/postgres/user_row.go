package postgres

import (
	"context"
	"database/sql"
	"time"
)

type userRow struct {
	Name      string
	FullName  string
	Email     string
	IsAdmin   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

type tokenRow struct {
	UserName     string
	AccessToken  string
	RefreshToken string
	TokenType    string
	ExpiresIn    int64
}

// execQuerier is satisfied by both *sql.DB and *sql.Tx so the same statements
// run standalone or inside the login transaction.
type execQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
