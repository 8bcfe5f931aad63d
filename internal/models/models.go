package models

import "time"

// User represents an account within the VidTube platform. Password holds the
// bcrypt hash and RefreshToken the single active refresh credential, if any.
type User struct {
	ID           string
	Username     string
	Email        string
	FullName     string
	Password     string
	Avatar       string
	CoverImage   string
	RefreshToken string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PublicUser is the sanitized view of a user returned to clients.
type PublicUser struct {
	ID         string    `json:"id"`
	Username   string    `json:"username"`
	Email      string    `json:"email"`
	FullName   string    `json:"fullName"`
	Avatar     string    `json:"avatar"`
	CoverImage string    `json:"coverImage,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Public strips the password hash and refresh credential.
func (u User) Public() PublicUser {
	return PublicUser{
		ID:         u.ID,
		Username:   u.Username,
		Email:      u.Email,
		FullName:   u.FullName,
		Avatar:     u.Avatar,
		CoverImage: u.CoverImage,
		CreatedAt:  u.CreatedAt,
		UpdatedAt:  u.UpdatedAt,
	}
}

// OwnerProfile is the public slice of a user joined onto videos and comments.
type OwnerProfile struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	FullName string `json:"fullName,omitempty"`
	Avatar   string `json:"avatar"`
}

// Video is an uploaded video owned by a single user.
type Video struct {
	ID          string        `json:"id"`
	OwnerID     string        `json:"ownerId"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	VideoFile   string        `json:"videoFile"`
	Thumbnail   string        `json:"thumbnail"`
	Duration    float64       `json:"duration"`
	Views       int64         `json:"views"`
	IsPublished bool          `json:"isPublished"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
	Owner       *OwnerProfile `json:"owner,omitempty"`
}

// VideoDetail decorates a video with viewer-relative engagement data.
type VideoDetail struct {
	Video
	Likes            int64 `json:"likesCount"`
	IsLiked          bool  `json:"isLiked"`
	OwnerSubscribers int64 `json:"subscribersCount"`
	IsSubscribed     bool  `json:"isSubscribed"`
}

// Comment is a user comment on a video.
type Comment struct {
	ID        string        `json:"id"`
	VideoID   string        `json:"videoId"`
	OwnerID   string        `json:"ownerId"`
	Content   string        `json:"content"`
	Likes     int64         `json:"likesCount"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
	Owner     *OwnerProfile `json:"owner,omitempty"`
}

// Like targets exactly one of a video or a comment.
type Like struct {
	ID        string
	LikedBy   string
	VideoID   string
	CommentID string
	CreatedAt time.Time
}

// Subscription links a subscriber to a channel (another user).
type Subscription struct {
	SubscriberID string    `json:"subscriberId"`
	ChannelID    string    `json:"channelId"`
	CreatedAt    time.Time `json:"createdAt"`
}

// ChannelStats are the viewer-independent aggregates of a channel.
type ChannelStats struct {
	ID                string `json:"id"`
	Username          string `json:"username"`
	FullName          string `json:"fullName"`
	Avatar            string `json:"avatar"`
	CoverImage        string `json:"coverImage,omitempty"`
	Email             string `json:"email"`
	SubscribersCount  int64  `json:"subscribersCount"`
	SubscribedToCount int64  `json:"channelsSubscribedToCount"`
}

// ChannelProfile is a channel as seen by a specific viewer.
type ChannelProfile struct {
	ChannelStats
	IsSubscribed bool `json:"isSubscribed"`
}

// WatchHistoryEntry is a watched video with the time it was last viewed.
type WatchHistoryEntry struct {
	Video     Video     `json:"video"`
	WatchedAt time.Time `json:"watchedAt"`
}

// SessionTokens groups the credentials issued to authenticated users.
type SessionTokens struct {
	AccessToken      string    `json:"accessToken"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshToken     string    `json:"refreshToken"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}
