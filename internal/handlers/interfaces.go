package handlers

import (
	"context"
	"time"

	"github.com/vidtube/backend/internal/auth"
	"github.com/vidtube/backend/internal/catalog"
	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/repositories"
	"github.com/vidtube/backend/internal/videos"
)

// SessionService runs the session lifecycle for the auth handlers.
type SessionService interface {
	Login(ctx context.Context, identifier, password string) (auth.Session, error)
	Refresh(ctx context.Context, refreshToken string) (models.SessionTokens, error)
	Logout(ctx context.Context, userID string) error
	ChangePassword(ctx context.Context, userID, current, next, confirmation string) error
	HashPassword(password string) (string, error)
}

// UserStore captures the account operations required by the user handlers.
type UserStore interface {
	Create(ctx context.Context, user models.User) error
	ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error)
	UpdateAccount(ctx context.Context, id, fullName, email string, updatedAt time.Time) (models.User, error)
	UpdateAvatar(ctx context.Context, id, avatar string, updatedAt time.Time) (models.User, error)
	UpdateCoverImage(ctx context.Context, id, coverImage string, updatedAt time.Time) (models.User, error)
}

// VideoStore captures persistence for video workflows.
type VideoStore interface {
	Create(ctx context.Context, video models.Video) error
	FindByID(ctx context.Context, id string) (models.Video, error)
	Detail(ctx context.Context, id, viewerID string) (models.VideoDetail, error)
	Update(ctx context.Context, video models.Video) error
	TogglePublished(ctx context.Context, id string, updatedAt time.Time) (models.Video, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, pipeline catalog.Pipeline) (repositories.CatalogPage, error)
	WatchHistory(ctx context.Context, userID string) ([]models.WatchHistoryEntry, error)
}

// LikeStore toggles likes on videos and comments.
type LikeStore interface {
	Toggle(ctx context.Context, target repositories.LikeTarget, targetID, userID string) (bool, error)
	LikedVideos(ctx context.Context, userID string) ([]models.Video, error)
}

// CommentStore captures persistence for video comments.
type CommentStore interface {
	Create(ctx context.Context, comment models.Comment) error
	FindByID(ctx context.Context, id string) (models.Comment, error)
	ListForVideo(ctx context.Context, videoID string, limit, offset int) ([]models.Comment, int64, error)
	UpdateContent(ctx context.Context, id, content string, updatedAt time.Time) error
	Delete(ctx context.Context, id string) error
}

// SubscriptionStore captures persistence for channel subscriptions.
type SubscriptionStore interface {
	Toggle(ctx context.Context, subscriberID, channelID string) (bool, error)
	IsSubscribed(ctx context.Context, subscriberID, channelID string) (bool, error)
	Subscribers(ctx context.Context, channelID string) ([]models.OwnerProfile, error)
	SubscribedChannels(ctx context.Context, subscriberID string) ([]models.OwnerProfile, error)
	ChannelStats(ctx context.Context, username string) (models.ChannelStats, error)
}

// ViewQueue schedules view recording off the request path.
type ViewQueue interface {
	Enqueue(view videos.View) bool
}

// Pinger reports whether a backing service is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}
