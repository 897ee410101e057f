package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"skyprice/internal/config"
)

// unreachable points at a port nothing listens on.
const unreachable = "127.0.0.1:1"

func TestNewRedisClientFailsWhenUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if _, err := NewRedisClient(ctx, config.RedisConfig{Addr: unreachable}); err == nil {
		t.Fatal("expected connection error")
	}
}

func TestRedisCacheSurfacesErrors(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: unreachable, MaxRetries: -1, DialTimeout: 200 * time.Millisecond})
	defer client.Close()
	c := NewRedisCache(client, "test")
	ctx := context.Background()

	if _, ok, err := c.Get(ctx, "alerts:email:a@b.com", "/v1/alerts"); err == nil || ok {
		t.Errorf("Get: ok=%v err=%v, want error", ok, err)
	}
	if err := c.Set(ctx, "k", "v", time.Second); err == nil {
		t.Errorf("Set should fail")
	}
	if _, err := c.InvalidateByPrefix(ctx, "alerts:email:"); err == nil {
		t.Errorf("InvalidateByPrefix should fail")
	}
}

func TestRateLimiterSurfacesErrors(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: unreachable, MaxRetries: -1, DialTimeout: 200 * time.Millisecond})
	defer client.Close()

	rl := NewRateLimiter(client, 10)
	if allowed, err := rl.Allow(context.Background(), "10.0.0.1"); err == nil || allowed {
		t.Errorf("Allow: allowed=%v err=%v, want error", allowed, err)
	}
}
