package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vidtube/backend/internal/apperrors"
	"github.com/vidtube/backend/internal/catalog"
	"github.com/vidtube/backend/internal/logging"
	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/storage"
	"github.com/vidtube/backend/internal/videos"
)

// VideoHandler exposes catalog and video management endpoints.
type VideoHandler struct {
	Videos  VideoStore
	Media   storage.Store
	Views   ViewQueue
	NowFunc func() time.Time
}

// List handles GET /api/v1/videos.
func (h VideoHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	page, err := intQuery(r, "page")
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	limit, err := intQuery(r, "limit")
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	pipeline, err := catalog.Build(catalog.Query{
		Text:     query.Get("query"),
		OwnerID:  query.Get("userId"),
		SortBy:   query.Get("sortBy"),
		SortType: query.Get("sortType"),
		Page:     page,
		Limit:    limit,
	})
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	result, err := h.Videos.List(ctx, pipeline)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, result, "videos fetched successfully")
}

// Publish handles POST /api/v1/videos. The video file and thumbnail are
// stored before the row is written and removed again if the write fails.
func (h VideoHandler) Publish(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	caller, err := callerFrom(r)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	if err := parseMultipart(w, r, maxUploadBytes); err != nil {
		respondError(ctx, w, err)
		return
	}

	req := publishRequest{
		Title:       strings.TrimSpace(r.FormValue("title")),
		Description: strings.TrimSpace(r.FormValue("description")),
	}
	if raw := strings.TrimSpace(r.FormValue("duration")); raw != "" {
		duration, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			respondError(ctx, w, apperrors.InvalidInput("duration must be a number"))
			return
		}
		req.Duration = duration
	}
	if err := validateStruct(&req); err != nil {
		respondError(ctx, w, err)
		return
	}

	videoFile, err := saveFormFile(r, h.Media, "videoFile", "videos", true)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	thumbnail, err := saveFormFile(r, h.Media, "thumbnail", "thumbnails", true)
	if err != nil {
		discardMedia(r, h.Media, videoFile)
		respondError(ctx, w, err)
		return
	}

	now := h.now()
	video := models.Video{
		ID:          uuid.NewString(),
		OwnerID:     caller.ID,
		Title:       req.Title,
		Description: req.Description,
		VideoFile:   videoFile,
		Thumbnail:   thumbnail,
		Duration:    req.Duration,
		IsPublished: true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := h.Videos.Create(ctx, video); err != nil {
		discardMedia(r, h.Media, videoFile)
		discardMedia(r, h.Media, thumbnail)
		respondError(ctx, w, err)
		return
	}

	logger.Info("video published", "videoId", video.ID, "ownerId", caller.ID)
	respondJSON(ctx, w, http.StatusCreated, video, "video published successfully")
}

// Get handles GET /api/v1/videos/{videoId} and schedules a view for the caller.
func (h VideoHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	caller, err := callerFrom(r)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	videoID, err := idParam(r, "videoId", "video")
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	detail, err := h.Videos.Detail(ctx, videoID, caller.ID)
	if err != nil {
		respondError(ctx, w, notFoundAs(err, "video"))
		return
	}
	if !detail.IsPublished && !canModify(detail.OwnerID, caller.ID) {
		respondError(ctx, w, apperrors.NotFound("video"))
		return
	}

	if h.Views != nil {
		h.Views.Enqueue(videos.View{VideoID: detail.ID, ViewerID: caller.ID, At: h.now()})
	}

	respondJSON(ctx, w, http.StatusOK, detail, "video fetched successfully")
}

// Update handles PATCH /api/v1/videos/{videoId}. Multipart bodies may carry
// a replacement thumbnail; JSON bodies update text fields only.
func (h VideoHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	video, caller, ok := h.ownedVideo(w, r)
	if !ok {
		return
	}

	var req updateVideoRequest
	thumbnail := ""
	if isMultipart(r) {
		if err := parseMultipart(w, r, maxImageBytes); err != nil {
			respondError(ctx, w, err)
			return
		}
		req.Title = r.FormValue("title")
		req.Description = r.FormValue("description")
	} else if err := decodeJSON(w, r, &req, false); err != nil {
		respondError(ctx, w, err)
		return
	}

	if err := validateRequest(&req); err != nil {
		respondError(ctx, w, err)
		return
	}
	if isMultipart(r) {
		location, err := saveFormFile(r, h.Media, "thumbnail", "thumbnails", false)
		if err != nil {
			respondError(ctx, w, err)
			return
		}
		thumbnail = location
	}

	previousThumbnail := video.Thumbnail
	video.Title = req.Title
	video.Description = req.Description
	if thumbnail != "" {
		video.Thumbnail = thumbnail
	}
	video.UpdatedAt = h.now()

	if err := h.Videos.Update(ctx, video); err != nil {
		discardMedia(r, h.Media, thumbnail)
		respondError(ctx, w, notFoundAs(err, "video"))
		return
	}
	if thumbnail != "" {
		discardMedia(r, h.Media, previousThumbnail)
	}

	logging.FromContext(ctx).Info("video updated", "videoId", video.ID, "ownerId", caller.ID)
	respondJSON(ctx, w, http.StatusOK, video, "video updated successfully")
}

// Delete handles DELETE /api/v1/videos/{videoId}. Stored media is removed
// after the rows are gone; cleanup failures do not fail the request.
func (h VideoHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	video, caller, ok := h.ownedVideo(w, r)
	if !ok {
		return
	}

	if err := h.Videos.Delete(ctx, video.ID); err != nil {
		respondError(ctx, w, notFoundAs(err, "video"))
		return
	}

	discardMedia(r, h.Media, video.VideoFile)
	discardMedia(r, h.Media, video.Thumbnail)

	logging.FromContext(ctx).Info("video deleted", "videoId", video.ID, "ownerId", caller.ID)
	respondJSON(ctx, w, http.StatusOK, struct{}{}, "video deleted successfully")
}

// TogglePublish handles PATCH /api/v1/videos/toggle/publish/{videoId}.
func (h VideoHandler) TogglePublish(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	video, _, ok := h.ownedVideo(w, r)
	if !ok {
		return
	}

	updated, err := h.Videos.TogglePublished(ctx, video.ID, h.now())
	if err != nil {
		respondError(ctx, w, notFoundAs(err, "video"))
		return
	}

	respondJSON(ctx, w, http.StatusOK, updated, "publish status toggled successfully")
}

// ownedVideo loads the path video and checks that the caller owns it. It
// writes the error response itself when it returns false.
func (h VideoHandler) ownedVideo(w http.ResponseWriter, r *http.Request) (models.Video, models.User, bool) {
	ctx := r.Context()

	caller, err := callerFrom(r)
	if err != nil {
		respondError(ctx, w, err)
		return models.Video{}, models.User{}, false
	}

	videoID, err := idParam(r, "videoId", "video")
	if err != nil {
		respondError(ctx, w, err)
		return models.Video{}, models.User{}, false
	}

	video, err := h.Videos.FindByID(ctx, videoID)
	if err != nil {
		respondError(ctx, w, notFoundAs(err, "video"))
		return models.Video{}, models.User{}, false
	}

	if !canModify(video.OwnerID, caller.ID) {
		logging.FromContext(ctx).Warn("video modification denied", "videoId", video.ID, "userId", caller.ID)
		respondError(ctx, w, apperrors.Forbidden("you are not allowed to modify this video"))
		return models.Video{}, models.User{}, false
	}

	return video, caller, true
}

type publishRequest struct {
	Title       string  `json:"title" validate:"required,max=200"`
	Description string  `json:"description" validate:"required,max=5000"`
	Duration    float64 `json:"duration" validate:"gte=0"`
}

type updateVideoRequest struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"required,max=5000"`
}

func (r *updateVideoRequest) normalize() {
	r.Title = strings.TrimSpace(r.Title)
	r.Description = strings.TrimSpace(r.Description)
}

// notFoundAs names the missing resource in repository not-found errors.
func notFoundAs(err error, resource string) error {
	if errors.Is(err, apperrors.ErrNotFound) {
		return apperrors.NotFound(resource).WithCause(err)
	}
	return err
}

func (h VideoHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}
