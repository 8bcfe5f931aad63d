package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vidtube/backend/internal/apperrors"
	"github.com/vidtube/backend/internal/catalog"
	"github.com/vidtube/backend/internal/logging"
	"github.com/vidtube/backend/internal/models"
)

// CommentHandler serves the comment endpoints of a video.
type CommentHandler struct {
	Comments CommentStore
	Videos   VideoStore
	NowFunc  func() time.Time
}

// List handles GET /api/v1/comments/{videoId}.
func (h CommentHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	videoID, err := idParam(r, "videoId", "video")
	if err != nil {
		respondError(ctx, w, err)
		return
	}

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
	page, limit, err = catalog.Paginate(page, limit)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	if _, err := h.Videos.FindByID(ctx, videoID); err != nil {
		respondError(ctx, w, notFoundAs(err, "video"))
		return
	}

	comments, total, err := h.Comments.ListForVideo(ctx, videoID, limit, catalog.Offset(page, limit))
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	totalPages := int((total + int64(limit) - 1) / int64(limit))
	respondJSON(ctx, w, http.StatusOK, commentPage{
		Comments:   comments,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
		HasPrev:    page > 1,
	}, "comments fetched successfully")
}

// Add handles POST /api/v1/comments/{videoId}.
func (h CommentHandler) Add(w http.ResponseWriter, r *http.Request) {
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

	var req commentRequest
	if err := decodeAndValidate(w, r, &req, false); err != nil {
		respondError(ctx, w, err)
		return
	}

	now := h.now()
	comment := models.Comment{
		ID:        uuid.NewString(),
		VideoID:   videoID,
		OwnerID:   caller.ID,
		Content:   req.Content,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := h.Comments.Create(ctx, comment); err != nil {
		respondError(ctx, w, notFoundAs(err, "video"))
		return
	}

	respondJSON(ctx, w, http.StatusCreated, comment, "comment added successfully")
}

// Update handles PATCH /api/v1/comments/c/{commentId}.
func (h CommentHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	comment, ok := h.ownedComment(w, r)
	if !ok {
		return
	}

	var req commentRequest
	if err := decodeAndValidate(w, r, &req, false); err != nil {
		respondError(ctx, w, err)
		return
	}

	comment.Content = req.Content
	comment.UpdatedAt = h.now()
	if err := h.Comments.UpdateContent(ctx, comment.ID, comment.Content, comment.UpdatedAt); err != nil {
		respondError(ctx, w, notFoundAs(err, "comment"))
		return
	}

	respondJSON(ctx, w, http.StatusOK, comment, "comment updated successfully")
}

// Delete handles DELETE /api/v1/comments/c/{commentId}.
func (h CommentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	comment, ok := h.ownedComment(w, r)
	if !ok {
		return
	}

	if err := h.Comments.Delete(ctx, comment.ID); err != nil {
		respondError(ctx, w, notFoundAs(err, "comment"))
		return
	}

	respondJSON(ctx, w, http.StatusOK, struct{}{}, "comment deleted successfully")
}

func (h CommentHandler) ownedComment(w http.ResponseWriter, r *http.Request) (models.Comment, bool) {
	ctx := r.Context()

	caller, err := callerFrom(r)
	if err != nil {
		respondError(ctx, w, err)
		return models.Comment{}, false
	}

	commentID, err := idParam(r, "commentId", "comment")
	if err != nil {
		respondError(ctx, w, err)
		return models.Comment{}, false
	}

	comment, err := h.Comments.FindByID(ctx, commentID)
	if err != nil {
		respondError(ctx, w, notFoundAs(err, "comment"))
		return models.Comment{}, false
	}

	if !canModify(comment.OwnerID, caller.ID) {
		logging.FromContext(ctx).Warn("comment modification denied", "commentId", comment.ID, "userId", caller.ID)
		respondError(ctx, w, apperrors.Forbidden("you are not allowed to modify this comment"))
		return models.Comment{}, false
	}

	return comment, true
}

type commentRequest struct {
	Content string `json:"content" validate:"required,max=2000"`
}

func (r *commentRequest) normalize() {
	r.Content = strings.TrimSpace(r.Content)
}

type commentPage struct {
	Comments   []models.Comment `json:"comments"`
	Total      int64            `json:"totalComments"`
	Page       int              `json:"page"`
	Limit      int              `json:"limit"`
	TotalPages int              `json:"totalPages"`
	HasNext    bool             `json:"hasNextPage"`
	HasPrev    bool             `json:"hasPrevPage"`
}

func (h CommentHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}
