package middleware

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisFixedWindowLimiter shares fixed-window counters between instances. Each window gets its
// own key that expires with the window.
type RedisFixedWindowLimiter struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

func NewRedisFixedWindowLimiter(client redis.UniversalClient, prefix string) *RedisFixedWindowLimiter {
	if strings.TrimSpace(prefix) == "" {
		prefix = "rl"
	}
	return &RedisFixedWindowLimiter{client: client, prefix: prefix, now: time.Now}
}

func (l *RedisFixedWindowLimiter) Allow(ctx context.Context, key string, policy RateLimitPolicy) (Decision, error) {
	policy = normalizePolicy(policy)
	now := l.now()
	start := now.Truncate(policy.Window)
	end := start.Add(policy.Window)
	redisKey := l.prefix + ":" + key + ":" + strconv.FormatInt(start.UnixMilli(), 10)

	var incr *redis.IntCmd
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, redisKey)
		pipe.PExpire(ctx, redisKey, policy.Window)
		return nil
	})
	if err != nil {
		return Decision{}, fmt.Errorf("redis rate limit: %w", err)
	}
	count := int(incr.Val())
	if count > policy.Limit {
		return Decision{Allowed: false, RetryAfter: end.Sub(now), Remaining: 0, ResetAt: end}, nil
	}
	return Decision{Allowed: true, Remaining: policy.Limit - count, ResetAt: end}, nil
}
