package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"skyprice/internal/config"
	"skyprice/internal/logger"
	"skyprice/internal/tracing"
)

var (
	cacheHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"endpoint", "instance"},
	)
	cacheMissesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"endpoint", "instance"},
	)
)

func init() {
	prometheus.MustRegister(cacheHitsTotal)
	prometheus.MustRegister(cacheMissesTotal)
}

// NewRedisClient connects to Redis and verifies the connection.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.Db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", cfg.Addr, err)
	}
	return client, nil
}

// RedisCache stores serialized responses with a TTL and counts hits and misses
// per endpoint label.
type RedisCache struct {
	client   *redis.Client
	instance string
}

func NewRedisCache(client *redis.Client, instance string) *RedisCache {
	return &RedisCache{client: client, instance: instance}
}

// Get returns the cached value for key. A miss is reported as ok == false with a nil error.
func (c *RedisCache) Get(ctx context.Context, key, endpoint string) (string, bool, error) {
	val, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		cacheMissesTotal.WithLabelValues(endpoint, c.instance).Inc()
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	cacheHitsTotal.WithLabelValues(endpoint, c.instance).Inc()
	return val, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.client.Set(ctx, key, value, ttl).Err()
}

// InvalidateByPrefix deletes every key starting with prefix and returns how many were removed.
func (c *RedisCache) InvalidateByPrefix(ctx context.Context, prefix string) (int, error) {
	tracer := otel.Tracer(tracing.TracerName)
	ctx, span := tracer.Start(ctx, "InvalidateByPrefix")
	defer span.End()

	keys, err := c.getAllKeys(ctx, prefix)
	if err != nil {
		return 0, err
	}

	invalidatedCount := 0
	for _, key := range keys {
		if err := c.client.Del(ctx, key).Err(); err != nil {
			logger.Log.Warn("Failed to invalidate cache key",
				zap.String("key", key),
				zap.String("prefix", prefix),
				zap.String("instance", c.instance),
				zap.Error(err),
			)
			continue
		}
		invalidatedCount++
	}

	logger.Log.Debug("Cache invalidation completed",
		zap.String("prefix", prefix),
		zap.String("instance", c.instance),
		zap.Int("invalidated_keys", invalidatedCount),
	)
	return invalidatedCount, nil
}

// getAllKeys scans Redis for keys matching prefix.
func (c *RedisCache) getAllKeys(ctx context.Context, prefix string) ([]string, error) {
	var cursor uint64
	var keys []string
	for {
		foundKeys, nextCursor, err := c.client.Scan(ctx, cursor, prefix+"*", 1000).Result()
		if err != nil {
			return nil, err
		}
		keys = append(keys, foundKeys...)
		cursor = nextCursor
		if cursor == 0 {
			break
		}
	}
	return keys, nil
}
