package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vidtube/backend/internal/apperrors"
	"github.com/vidtube/backend/internal/cache"
	"github.com/vidtube/backend/internal/middleware"
	"github.com/vidtube/backend/internal/storage"
)

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Logger        *slog.Logger
	Sessions      SessionService
	Verifier      middleware.AccessVerifier
	UserLoader    middleware.UserLoader
	Users         UserStore
	Videos        VideoStore
	Likes         LikeStore
	Comments      CommentStore
	Subscriptions SubscriptionStore
	Channels      cache.ChannelCache
	Media         storage.Store
	Views         ViewQueue
	RateLimiter   middleware.RateLimiter
	DB            Pinger
	CookieSecure  bool
	NowFunc       func() time.Time
}

// NewRouter wires HTTP handlers into a chi router.
func NewRouter(deps Dependencies) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	health := HealthHandler{DB: deps.DB}
	authH := AuthHandler{Users: deps.Users, Sessions: deps.Sessions, CookieSecure: deps.CookieSecure, NowFunc: deps.NowFunc}
	users := UserHandler{
		Users:         deps.Users,
		Videos:        deps.Videos,
		Subscriptions: deps.Subscriptions,
		Channels:      deps.Channels,
		Media:         deps.Media,
		NowFunc:       deps.NowFunc,
	}
	videos := VideoHandler{Videos: deps.Videos, Media: deps.Media, Views: deps.Views, NowFunc: deps.NowFunc}
	likes := LikeHandler{Likes: deps.Likes}
	comments := CommentHandler{Comments: deps.Comments, Videos: deps.Videos, NowFunc: deps.NowFunc}
	subscriptions := SubscriptionHandler{Subscriptions: deps.Subscriptions, Channels: deps.Channels, Users: deps.UserLoader}

	r := chi.NewRouter()
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.Metrics)

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		respondError(req.Context(), w, apperrors.NotFound("route"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		respondError(req.Context(), w, apperrors.MethodNotAllowed())
	})

	r.Get("/healthz", health.Handle)
	r.Handle("/metrics", promhttp.Handler())

	gate := middleware.Authenticate(deps.Verifier, deps.UserLoader)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/users", func(r chi.Router) {
			r.With(middleware.RateLimit(deps.RateLimiter, "register")).Post("/register", authH.Register)
			r.With(middleware.RateLimit(deps.RateLimiter, "login")).Post("/login", authH.Login)
			r.With(middleware.RateLimit(deps.RateLimiter, "refresh")).Post("/refresh-token", authH.Refresh)

			r.Group(func(r chi.Router) {
				r.Use(gate)
				r.Post("/logout", authH.Logout)
				r.Post("/change-password", authH.ChangePassword)
				r.Get("/current-user", authH.CurrentUser)
				r.Patch("/update-account", users.UpdateAccount)
				r.Patch("/avatar", users.UpdateAvatar)
				r.Patch("/cover-image", users.UpdateCoverImage)
				r.Get("/c/{username}", users.ChannelProfile)
				r.Get("/history", users.WatchHistory)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(gate)

			r.Route("/videos", func(r chi.Router) {
				r.Get("/", videos.List)
				r.Post("/", videos.Publish)
				r.Get("/{videoId}", videos.Get)
				r.Patch("/{videoId}", videos.Update)
				r.Delete("/{videoId}", videos.Delete)
				r.Patch("/toggle/publish/{videoId}", videos.TogglePublish)
			})

			r.Route("/likes", func(r chi.Router) {
				r.Post("/toggle/v/{videoId}", likes.ToggleVideo)
				r.Post("/toggle/c/{commentId}", likes.ToggleComment)
				r.Get("/videos", likes.LikedVideos)
			})

			r.Route("/comments", func(r chi.Router) {
				r.Get("/{videoId}", comments.List)
				r.Post("/{videoId}", comments.Add)
				r.Patch("/c/{commentId}", comments.Update)
				r.Delete("/c/{commentId}", comments.Delete)
			})

			r.Route("/subscriptions", func(r chi.Router) {
				r.Post("/c/{channelId}", subscriptions.Toggle)
				r.Get("/c/{channelId}", subscriptions.Subscribers)
				r.Get("/u/{subscriberId}", subscriptions.SubscribedChannels)
			})
		})
	})

	return r
}
