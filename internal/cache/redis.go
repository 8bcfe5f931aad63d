package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vidtube/backend/internal/logging"
	"github.com/vidtube/backend/internal/models"
)

const keyPrefix = "vidtube:channel:"

// RedisCache shares channel statistics between replicas. Redis failures are
// logged and treated as misses.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache wraps an existing client.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &RedisCache{client: client, ttl: ttl}
}

// Dial parses url, connects and verifies the server responds.
func Dial(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func (c *RedisCache) Get(ctx context.Context, username string) (models.ChannelStats, bool) {
	data, err := c.client.Get(ctx, keyPrefix+username).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logging.FromContext(ctx).Warn("channel cache read failed", slog.String("username", username), slog.Any("error", err))
		}
		return models.ChannelStats{}, false
	}

	var stats models.ChannelStats
	if err := json.Unmarshal(data, &stats); err != nil {
		logging.FromContext(ctx).Warn("channel cache entry corrupt", slog.String("username", username), slog.Any("error", err))
		return models.ChannelStats{}, false
	}
	return stats, true
}

func (c *RedisCache) Set(ctx context.Context, stats models.ChannelStats) {
	data, err := json.Marshal(stats)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, keyPrefix+stats.Username, data, c.ttl).Err(); err != nil {
		logging.FromContext(ctx).Warn("channel cache write failed", slog.String("username", stats.Username), slog.Any("error", err))
	}
}

func (c *RedisCache) Invalidate(ctx context.Context, username string) {
	if err := c.client.Del(ctx, keyPrefix+username).Err(); err != nil {
		logging.FromContext(ctx).Warn("channel cache invalidate failed", slog.String("username", username), slog.Any("error", err))
	}
}

var _ ChannelCache = (*RedisCache)(nil)
