package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisUnknownCredentialCache struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisUnknownCredentialCache(client redis.UniversalClient, prefix string) *RedisUnknownCredentialCache {
	if prefix == "" {
		prefix = "credential_unknown"
	}
	return &RedisUnknownCredentialCache{client: client, prefix: prefix}
}

func (c *RedisUnknownCredentialCache) IsUnknown(ctx context.Context, memberID string) (bool, error) {
	if c.client == nil {
		return false, nil
	}
	err := c.client.Get(ctx, c.key(memberID)).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (c *RedisUnknownCredentialCache) MarkUnknown(ctx context.Context, memberID string, ttl time.Duration) error {
	if c.client == nil || ttl <= 0 {
		return nil
	}
	return c.client.Set(ctx, c.key(memberID), "1", ttl).Err()
}

// key hashes the id since it comes straight from a public URL.
func (c *RedisUnknownCredentialCache) key(memberID string) string {
	sum := sha256.Sum256([]byte(memberID))
	return c.prefix + ":" + hex.EncodeToString(sum[:])
}
