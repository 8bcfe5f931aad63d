package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vidtube/backend/internal/apperrors"
	"github.com/vidtube/backend/internal/auth"
	"github.com/vidtube/backend/internal/cache"
	"github.com/vidtube/backend/internal/logging"
	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/storage"
)

// UserHandler serves account and channel endpoints for authenticated users.
type UserHandler struct {
	Users         UserStore
	Videos        VideoStore
	Subscriptions SubscriptionStore
	Channels      cache.ChannelCache
	Media         storage.Store
	NowFunc       func() time.Time
}

// UpdateAccount handles PATCH /api/v1/users/update-account.
func (h UserHandler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	caller, err := callerFrom(r)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	var req updateAccountRequest
	if err := decodeAndValidate(w, r, &req, false); err != nil {
		respondError(ctx, w, err)
		return
	}

	updated, err := h.Users.UpdateAccount(ctx, caller.ID, req.FullName, auth.NormalizeIdentifier(req.Email), h.now())
	if err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			respondError(ctx, w, apperrors.Conflict("email is already in use"))
			return
		}
		respondError(ctx, w, err)
		return
	}

	h.invalidateChannel(r, caller.Username)
	respondJSON(ctx, w, http.StatusOK, updated.Public(), "account details updated successfully")
}

// UpdateAvatar handles PATCH /api/v1/users/avatar.
func (h UserHandler) UpdateAvatar(w http.ResponseWriter, r *http.Request) {
	h.updateImage(w, r, "avatar", "avatars", h.Users.UpdateAvatar, "avatar updated successfully")
}

// UpdateCoverImage handles PATCH /api/v1/users/cover-image.
func (h UserHandler) UpdateCoverImage(w http.ResponseWriter, r *http.Request) {
	h.updateImage(w, r, "coverImage", "covers", h.Users.UpdateCoverImage, "cover image updated successfully")
}

type imageUpdater func(ctx context.Context, id, location string, updatedAt time.Time) (models.User, error)

func (h UserHandler) updateImage(w http.ResponseWriter, r *http.Request, field, prefix string, update imageUpdater, message string) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	caller, err := callerFrom(r)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	if err := parseMultipart(w, r, maxImageBytes); err != nil {
		respondError(ctx, w, err)
		return
	}

	location, err := saveFormFile(r, h.Media, field, prefix, true)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	updated, err := update(ctx, caller.ID, location, h.now())
	if err != nil {
		h.discard(r, location)
		respondError(ctx, w, err)
		return
	}

	previous := caller.Avatar
	if field == "coverImage" {
		previous = caller.CoverImage
	}
	h.discard(r, previous)
	h.invalidateChannel(r, caller.Username)

	logger.Info("user image updated", "field", field, "userId", caller.ID)
	respondJSON(ctx, w, http.StatusOK, updated.Public(), message)
}

// ChannelProfile handles GET /api/v1/users/c/{username}.
func (h UserHandler) ChannelProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	caller, err := callerFrom(r)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	username := auth.NormalizeIdentifier(chi.URLParam(r, "username"))
	if username == "" {
		respondError(ctx, w, apperrors.InvalidInput("username is missing"))
		return
	}

	stats, ok := models.ChannelStats{}, false
	if h.Channels != nil {
		stats, ok = h.Channels.Get(ctx, username)
	}
	if !ok {
		stats, err = h.Subscriptions.ChannelStats(ctx, username)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				respondError(ctx, w, apperrors.NotFound("channel"))
				return
			}
			respondError(ctx, w, err)
			return
		}
		if h.Channels != nil {
			h.Channels.Set(ctx, stats)
		}
	}

	subscribed, err := h.Subscriptions.IsSubscribed(ctx, caller.ID, stats.ID)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, models.ChannelProfile{ChannelStats: stats, IsSubscribed: subscribed}, "channel profile fetched successfully")
}

// WatchHistory handles GET /api/v1/users/history.
func (h UserHandler) WatchHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	caller, err := callerFrom(r)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	history, err := h.Videos.WatchHistory(ctx, caller.ID)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, history, "watch history fetched successfully")
}

type updateAccountRequest struct {
	FullName string `json:"fullName" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email"`
}

func (r *updateAccountRequest) normalize() {
	r.FullName = strings.TrimSpace(r.FullName)
	r.Email = strings.TrimSpace(r.Email)
}

func (h UserHandler) invalidateChannel(r *http.Request, username string) {
	if h.Channels != nil && username != "" {
		h.Channels.Invalidate(r.Context(), username)
	}
}

// discard removes a replaced media object. Failures are logged only.
func (h UserHandler) discard(r *http.Request, location string) {
	discardMedia(r, h.Media, location)
}

func (h UserHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}
