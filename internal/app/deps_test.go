package app

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/pashagolub/pgxmock/v4"

	"github.com/vidtube/backend/internal/cache"
	"github.com/vidtube/backend/internal/config"
)

func testConfig() config.Config {
	return config.Config{
		Auth: config.AuthConfig{
			AccessTokenSecret:  "access",
			AccessTokenTTL:     time.Minute,
			RefreshTokenSecret: "refresh",
			RefreshTokenTTL:    time.Hour,
		},
		RateLimit: config.RateLimitConfig{Requests: 5, Window: time.Minute, Burst: 1, TTL: time.Minute},
		Redis:     config.RedisConfig{ProfileCacheTTL: time.Minute},
		Views:     config.ViewsConfig{Workers: 1, QueueSize: 4},
	}
}

func TestBuildDependencies(t *testing.T) {
	pool, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("create mock pool: %v", err)
	}
	defer pool.Close()

	cfg := testConfig()
	cfg.ObjectStore = config.ObjectStoreConfig{Bucket: "test-bucket", Endpoint: "http://localhost:9000", Region: "us-east-1"}

	t.Setenv("AWS_ACCESS_KEY_ID", "test")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "test")

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	deps, cleanup, err := buildDependencies(context.Background(), pool, cfg, logger)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cleanup == nil {
		t.Fatal("expected cleanup function")
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = cleanup(ctx)
	}()

	if deps.Users == nil {
		t.Fatal("expected user repository to be configured")
	}
	if deps.Sessions == nil || deps.Verifier == nil {
		t.Fatal("expected session manager to be configured")
	}
	if deps.Videos == nil || deps.Likes == nil || deps.Comments == nil || deps.Subscriptions == nil {
		t.Fatal("expected repositories to be configured")
	}
	if deps.Media == nil {
		t.Fatal("expected media store to be configured")
	}
	if deps.Views == nil {
		t.Fatal("expected view recorder to be configured")
	}
	if _, ok := deps.Channels.(*cache.MemoryCache); !ok {
		t.Fatalf("expected in-memory channel cache, got %T", deps.Channels)
	}
}

func TestBuildDependenciesWithRedis(t *testing.T) {
	pool, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("create mock pool: %v", err)
	}
	defer pool.Close()

	srv := miniredis.RunT(t)
	cfg := testConfig()
	cfg.Redis.URL = "redis://" + srv.Addr()

	deps, cleanup, err := buildDependencies(context.Background(), pool, cfg, slog.New(slog.NewJSONHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer func() { _ = cleanup(context.Background()) }()

	if _, ok := deps.Channels.(*cache.RedisCache); !ok {
		t.Fatalf("expected redis channel cache, got %T", deps.Channels)
	}
	if deps.Media != nil {
		t.Fatalf("expected media store to be disabled, got %T", deps.Media)
	}
}
