package config

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog"

	"github.com/baechuer/real-time-ressys/services/oauth-service/internal/domain"
)

// NewDB opens a pgx-backed *sql.DB and pings it before returning.
func NewDB(dsn string, lg zerolog.Logger) (*sql.DB, error) {
	if dsn == "" {
		return nil, domain.ErrConfiguration("DB_ADDR", "empty DSN")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, domain.ErrDBUnavailable(err)
	}

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(60 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, domain.ErrDBUnavailable(err)
	}

	if lg.Debug().Enabled() {
		var who, dbname, ver string
		_ = db.QueryRowContext(ctx, "SELECT current_user").Scan(&who)
		_ = db.QueryRowContext(ctx, "SELECT current_database()").Scan(&dbname)
		_ = db.QueryRowContext(ctx, "SHOW server_version").Scan(&ver)
		lg.Debug().Str("user", who).Str("db", dbname).Str("version", ver).Msg("db connected")
	}

	return db, nil
}
