package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/vidtube/backend/internal/auth"
	"github.com/vidtube/backend/internal/cache"
	"github.com/vidtube/backend/internal/config"
	"github.com/vidtube/backend/internal/db"
	"github.com/vidtube/backend/internal/handlers"
	"github.com/vidtube/backend/internal/middleware"
	"github.com/vidtube/backend/internal/repositories"
	"github.com/vidtube/backend/internal/storage"
	"github.com/vidtube/backend/internal/videos"
)

// buildDependencies wires together concrete implementations used by the HTTP
// handlers. The returned cleanup drains background work and closes clients.
func buildDependencies(ctx context.Context, pool db.Pool, cfg config.Config, logger *slog.Logger) (handlers.Dependencies, func(context.Context) error, error) {
	users := repositories.NewPostgresUserRepository(pool)
	videoRepo := repositories.NewPostgresVideoRepository(pool)
	sessionStore := repositories.NewPostgresSessionStore(pool)

	manager := auth.NewManager(auth.Config{
		AccessSecret:  cfg.Auth.AccessTokenSecret,
		AccessTTL:     cfg.Auth.AccessTokenTTL,
		RefreshSecret: cfg.Auth.RefreshTokenSecret,
		RefreshTTL:    cfg.Auth.RefreshTokenTTL,
	}, users, sessionStore)

	var cleanups []func(context.Context) error

	var channels cache.ChannelCache = cache.NewMemoryCache(cfg.Redis.ProfileCacheTTL)
	if cfg.Redis.URL != "" {
		client, err := cache.Dial(ctx, cfg.Redis.URL)
		if err != nil {
			return handlers.Dependencies{}, nil, err
		}
		channels = cache.NewRedisCache(client, cfg.Redis.ProfileCacheTTL)
		cleanups = append(cleanups, func(context.Context) error { return client.Close() })
		logger.Info("channel cache backed by redis")
	}

	var media storage.Store
	if cfg.ObjectStore.Enabled() {
		s3Store, err := storage.NewS3Storage(ctx, cfg.ObjectStore, logger)
		if err != nil {
			return handlers.Dependencies{}, nil, fmt.Errorf("configure media store: %w", err)
		}
		media = s3Store
	} else {
		logger.Warn("object store not configured; media uploads are disabled")
	}

	views := videos.NewViewRecorder(videoRepo, videos.ViewRecorderConfig{
		QueueSize: cfg.Views.QueueSize,
		Workers:   cfg.Views.Workers,
	}, logger)
	cleanups = append(cleanups, views.Shutdown)

	deps := handlers.Dependencies{
		Logger:        logger,
		Sessions:      manager,
		Verifier:      manager.AccessCodec(),
		UserLoader:    users,
		Users:         users,
		Videos:        videoRepo,
		Likes:         repositories.NewPostgresLikeRepository(pool),
		Comments:      repositories.NewPostgresCommentRepository(pool),
		Subscriptions: repositories.NewPostgresSubscriptionRepository(pool),
		Channels:      channels,
		Media:         media,
		Views:         views,
		RateLimiter:   middleware.NewIPRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window, cfg.RateLimit.Burst, cfg.RateLimit.TTL),
		DB:            pool,
		CookieSecure:  cfg.Auth.CookieSecure,
	}

	cleanup := func(ctx context.Context) error {
		var errs []error
		for i := len(cleanups) - 1; i >= 0; i-- {
			if err := cleanups[i](ctx); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}

	return deps, cleanup, nil
}
