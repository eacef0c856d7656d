package session

import (
	"context"
	"fmt"

	platformredis "caretrack/internal/platform/redis"
)

// RevocationChecker reports whether a token has been revoked. A nil checker
// (Redis not configured) skips the check.
type RevocationChecker interface {
	IsTokenRevoked(ctx context.Context, jti string) (bool, error)
}

// RedisRevocationChecker consults the shared revocation cache. The auth
// collaborator writes `revoked:{jti}` keys on logout and forced revocation.
type RedisRevocationChecker struct {
	client *platformredis.Client
}

func NewRedisRevocationChecker(client *platformredis.Client) *RedisRevocationChecker {
	return &RedisRevocationChecker{client: client}
}

func (c *RedisRevocationChecker) IsTokenRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := c.client.Exists(ctx, "revoked:"+jti).Result()
	if err != nil {
		return false, fmt.Errorf("check revocation: %w", err)
	}
	return n > 0, nil
}
