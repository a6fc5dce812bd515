package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/layer-3/recaptcha/ports"
	"github.com/redis/go-redis/v9"
)

// recordFailureScript starts the expiry window on the first failure only
var recordFailureScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return current
`)

// RedisLimiter is a Redis implementation of the AttemptLimiter interface
type RedisLimiter struct {
	client *redis.Client
	prefix string
}

// NewRedisLimiter creates a new Redis limiter
func NewRedisLimiter(client *redis.Client) ports.AttemptLimiter {
	return &RedisLimiter{
		client: client,
		prefix: "recaptcha:failures:",
	}
}

// RecordFailure increments the failure counter of key in Redis
func (s *RedisLimiter) RecordFailure(ctx context.Context, key string, window time.Duration) (int64, error) {
	windowMillis := window.Milliseconds()
	if windowMillis <= 0 {
		windowMillis = 1000
	}

	count, err := recordFailureScript.Run(ctx, s.client, []string{s.prefix + key}, windowMillis).Int64()
	if err != nil {
		return 0, fmt.Errorf("failed to record failure: %w", err)
	}

	return count, nil
}

// Failures reads the failure counter of key from Redis
func (s *RedisLimiter) Failures(ctx context.Context, key string) (int64, error) {
	count, err := s.client.Get(ctx, s.prefix+key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read failures: %w", err)
	}

	return count, nil
}
