package middleware

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// Requires Redis on localhost:6379; skipped otherwise.
func TestRedisRateLimitStore_Allow(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skip("Redis not available, skipping integration test")
	}
	defer client.Close()

	store := NewRedisRateLimitStore(client)
	config := RateLimitConfig{RequestsPerWindow: 5, WindowDuration: time.Minute}
	key := "test-redis-key-" + strconv.FormatInt(time.Now().UnixNano(), 10)
	defer client.Del(context.Background(), store.prefix+key)

	for i := 0; i < 5; i++ {
		allowed, remaining, _ := store.Allow(context.Background(), key, config)
		if !allowed {
			t.Errorf("request %d should be allowed", i+1)
		}
		if remaining != 4-i {
			t.Errorf("request %d: remaining = %d, want %d", i+1, remaining, 4-i)
		}
	}

	allowed, remaining, retryAfter := store.Allow(context.Background(), key, config)
	if allowed || remaining != 0 {
		t.Errorf("6th request: allowed %v remaining %d", allowed, remaining)
	}
	if retryAfter <= 0 || retryAfter > 60 {
		t.Errorf("retryAfter = %d, want 1..60", retryAfter)
	}
}

func TestRedisRateLimitStore_FailsOpen(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	m := NewMetrics()
	store := NewRedisRateLimitStore(client).WithMetrics(m)
	allowed, _, _ := store.Allow(context.Background(), "k", DefaultChatLimit())
	if !allowed {
		t.Error("unavailable Redis should allow the request")
	}
}
