package redis

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/baechuer/real-time-ressys/services/oauth-service/internal/domain"
)

const scanCount = 200

// SessionInfo describes one server-side session.
type SessionInfo struct {
	ID     string
	User   string
	TTL    time.Duration
	Purged bool
}

// ScanSessions walks every stored session with SCAN. When user is set only
// that user's sessions are reported. With purge the reported sessions are
// deleted, which logs those browsers out on their next request.
func (c *Client) ScanSessions(ctx context.Context, user string, purge bool) ([]SessionInfo, error) {
	var (
		cursor uint64
		out    []SessionInfo
	)
	for {
		keys, next, err := c.rdb.Scan(ctx, cursor, sessionPrefix+"*", scanCount).Result()
		if err != nil {
			return out, domain.ErrRedisUnavailable(err)
		}

		for _, k := range keys {
			info, err := c.sessionInfo(ctx, k)
			if errors.Is(err, goredis.Nil) {
				continue // expired between SCAN and GET
			}
			if err != nil {
				return out, domain.ErrRedisUnavailable(err)
			}
			if user != "" && info.User != user {
				continue
			}
			if purge {
				if err := c.rdb.Del(ctx, k).Err(); err != nil {
					return out, domain.ErrRedisUnavailable(err)
				}
				info.Purged = true
			}
			out = append(out, info)
		}

		cursor = next
		if cursor == 0 {
			return out, nil
		}
	}
}

func (c *Client) sessionInfo(ctx context.Context, key string) (SessionInfo, error) {
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		return SessionInfo{}, err
	}
	ttl, err := c.rdb.TTL(ctx, key).Result()
	if err != nil {
		return SessionInfo{}, err
	}

	var id domain.Identity
	_ = json.Unmarshal(raw, &id) // unreadable payloads show up with an empty user

	return SessionInfo{
		ID:   strings.TrimPrefix(key, sessionPrefix),
		User: id.UserID(),
		TTL:  ttl,
	}, nil
}
