package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	sessionPrefix      = "session:"
	loginFailurePrefix = "login:failures:"
	loginLockPrefix    = "login:locked:"
)

type Client struct {
	rdb *redis.Client
}

func Initialize(ctx context.Context, redisURL string) (*Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return &Client{rdb: rdb}, nil
}

// New wraps an existing go-redis client.
func New(rdb *redis.Client) *Client {
	return &Client{rdb: rdb}
}

func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

// SaveSession records a refresh token ID for the agent until ttl elapses.
func (c *Client) SaveSession(ctx context.Context, tokenID string, agentID uint, ttl time.Duration) error {
	if err := c.rdb.Set(ctx, sessionPrefix+tokenID, agentID, ttl).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// LookupSession returns the agent owning tokenID. ok is false when the
// session expired or was revoked.
func (c *Client) LookupSession(ctx context.Context, tokenID string) (uint, bool, error) {
	val, err := c.rdb.Get(ctx, sessionPrefix+tokenID).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("lookup session: %w", err)
	}
	id, err := strconv.ParseUint(val, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("corrupt session %s: %w", tokenID, err)
	}
	return uint(id), true, nil
}

func (c *Client) RevokeSession(ctx context.Context, tokenID string) error {
	if err := c.rdb.Del(ctx, sessionPrefix+tokenID).Err(); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

// LoginLimiter locks a username after too many failed logins.
type LoginLimiter struct {
	client      *Client
	maxAttempts int64
	lockFor     time.Duration
}

func NewLoginLimiter(client *Client, maxAttempts int64, lockFor time.Duration) *LoginLimiter {
	return &LoginLimiter{client: client, maxAttempts: maxAttempts, lockFor: lockFor}
}

func (l *LoginLimiter) Locked(ctx context.Context, username string) (bool, error) {
	n, err := l.client.rdb.Exists(ctx, loginLockPrefix+username).Result()
	if err != nil {
		return false, fmt.Errorf("check login lock: %w", err)
	}
	return n > 0, nil
}

// Fail counts a failed attempt and reports whether the username is now locked.
func (l *LoginLimiter) Fail(ctx context.Context, username string) (bool, error) {
	key := loginFailurePrefix + username
	n, err := l.client.rdb.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("count login failure: %w", err)
	}
	if n == 1 {
		if err := l.client.rdb.Expire(ctx, key, l.lockFor).Err(); err != nil {
			return false, fmt.Errorf("expire login failures: %w", err)
		}
	}
	if n < l.maxAttempts {
		return false, nil
	}

	pipe := l.client.rdb.TxPipeline()
	pipe.Set(ctx, loginLockPrefix+username, n, l.lockFor)
	pipe.Del(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("lock login: %w", err)
	}
	return true, nil
}

func (l *LoginLimiter) Reset(ctx context.Context, username string) error {
	if err := l.client.rdb.Del(ctx, loginFailurePrefix+username, loginLockPrefix+username).Err(); err != nil {
		return fmt.Errorf("reset login failures: %w", err)
	}
	return nil
}
