// Command tool is an operator helper for the oauth service.
//
//	tool state encode <came_from>     print the state value a login would send
//	tool state decode <state>         print the came_from a callback would use
//	tool migrate                      apply database migrations to DB_ADDR
//	tool sessions [user] [--purge]    list or delete redis sessions
//
// State commands sign when OAUTH2_STATE_SIGNING_SECRET is set.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/baechuer/real-time-ressys/services/oauth-service/internal/application/auth"
	"github.com/baechuer/real-time-ressys/services/oauth-service/internal/infrastructure/db/postgres"
	"github.com/baechuer/real-time-ressys/services/oauth-service/internal/infrastructure/redis"
	"github.com/baechuer/real-time-ressys/services/oauth-service/internal/infrastructure/state"
	"github.com/baechuer/real-time-ressys/services/oauth-service/internal/logger"
)

var errUsage = errors.New("usage: tool state encode <came_from> | tool state decode <state> | tool migrate | tool sessions [user] [--purge]")

type env func(string) string

type sessionScanner func(ctx context.Context, getenv env, user string, purge bool) ([]redis.SessionInfo, error)

type toolDeps struct {
	getenv   env
	migrate  func(dsn string) error
	sessions sessionScanner
}

func main() {
	_ = godotenv.Load()
	logger.Init()

	deps := toolDeps{
		getenv:   os.Getenv,
		migrate:  postgres.Migrate,
		sessions: scanRedis,
	}
	if err := run(os.Args[1:], os.Stdout, deps); err != nil {
		logger.Logger.Error().Err(err).Msg("tool failed")
		os.Exit(1)
	}
}

func run(args []string, out io.Writer, deps toolDeps) error {
	if len(args) == 0 {
		return errUsage
	}

	switch args[0] {
	case "state":
		if len(args) != 3 {
			return errUsage
		}
		return runState(args[1], args[2], out, deps.getenv)

	case "migrate":
		dsn := deps.getenv("DB_ADDR")
		if dsn == "" {
			return errors.New("DB_ADDR is required")
		}
		if err := deps.migrate(dsn); err != nil {
			return err
		}
		_, err := fmt.Fprintln(out, "migrations applied")
		return err

	case "sessions":
		return runSessions(args[1:], out, deps)
	}

	return errUsage
}

func runState(op, arg string, out io.Writer, getenv env) error {
	codec, err := stateCodec(getenv)
	if err != nil {
		return err
	}
	switch op {
	case "encode":
		s, err := codec.Encode(arg)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, s)
		return err
	case "decode":
		_, err := fmt.Fprintln(out, codec.Decode(arg))
		return err
	}
	return errUsage
}

func runSessions(args []string, out io.Writer, deps toolDeps) error {
	var (
		user  string
		purge bool
	)
	for _, a := range args {
		switch {
		case a == "--purge":
			purge = true
		case user == "" && a != "" && a[0] != '-':
			user = a
		default:
			return errUsage
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	sessions, err := deps.sessions(ctx, deps.getenv, user, purge)
	if err != nil {
		return err
	}
	for _, s := range sessions {
		line := fmt.Sprintf("%s\tuser=%s\tttl=%s", s.ID, s.User, s.TTL)
		if s.Purged {
			line += "\tpurged"
		}
		if _, err := fmt.Fprintln(out, line); err != nil {
			return err
		}
	}
	_, err = fmt.Fprintf(out, "%d session(s)\n", len(sessions))
	return err
}

func scanRedis(ctx context.Context, getenv env, user string, purge bool) ([]redis.SessionInfo, error) {
	addr := getenv("REDIS_ADDR")
	if addr == "" {
		return nil, errors.New("REDIS_ADDR is required")
	}
	db := 0
	if v := getenv("REDIS_DB"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("REDIS_DB: %w", err)
		}
		db = n
	}

	c := redis.New(addr, getenv("REDIS_PASSWORD"), db)
	defer c.Close()

	if err := c.Ping(ctx); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return c.ScanSessions(ctx, user, purge)
}

func stateCodec(getenv env) (auth.StateCodec, error) {
	lg := zerolog.Nop()
	secret := getenv("OAUTH2_STATE_SIGNING_SECRET")
	if secret == "" {
		return state.NewCodec(lg), nil
	}

	ttl := 10 * time.Minute
	if v := getenv("OAUTH2_STATE_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("OAUTH2_STATE_TTL: %w", err)
		}
		ttl = d
	}
	return state.NewSignedCodec(secret, ttl, lg), nil
}
