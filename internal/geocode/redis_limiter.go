package geocode

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultRedisKey is the key holding the current geocoding slot.
const DefaultRedisKey = "agenda:geocode:slot"

// RedisLimiter grants one request per interval across every process sharing
// the Redis instance. A slot is held by a key that expires after the interval.
type RedisLimiter struct {
	client   *redis.Client
	key      string
	interval time.Duration
	poll     time.Duration
}

// NewRedisLimiter creates a shared limiter. Intervals below MinInterval are raised to it.
func NewRedisLimiter(client *redis.Client, key string, interval time.Duration) *RedisLimiter {
	if interval < MinInterval {
		interval = MinInterval
	}
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisLimiter{client: client, key: key, interval: interval, poll: 50 * time.Millisecond}
}

// Wait blocks until this caller acquires the slot.
func (l *RedisLimiter) Wait(ctx context.Context) error {
	token := uuid.NewString()
	for {
		ok, err := l.client.SetNX(ctx, l.key, token, l.interval).Result()
		if err != nil {
			return fmt.Errorf("failed to acquire geocode slot: %w", err)
		}
		if ok {
			return nil
		}

		wait := l.poll
		if ttl, err := l.client.PTTL(ctx, l.key).Result(); err == nil && ttl > 0 {
			wait = ttl
		}
		if err := sleepContext(ctx, wait); err != nil {
			return err
		}
	}
}
