package handlers

import (
	"net/http"

	"github.com/vidtube/backend/internal/repositories"
)

// LikeHandler toggles likes and lists liked videos.
type LikeHandler struct {
	Likes LikeStore
}

// ToggleVideo handles POST /api/v1/likes/toggle/v/{videoId}.
func (h LikeHandler) ToggleVideo(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, repositories.LikeTargetVideo, "videoId", "video")
}

// ToggleComment handles POST /api/v1/likes/toggle/c/{commentId}.
func (h LikeHandler) ToggleComment(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, repositories.LikeTargetComment, "commentId", "comment")
}

func (h LikeHandler) toggle(w http.ResponseWriter, r *http.Request, target repositories.LikeTarget, param, resource string) {
	ctx := r.Context()

	caller, err := callerFrom(r)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	targetID, err := idParam(r, param, resource)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	liked, err := h.Likes.Toggle(ctx, target, targetID, caller.ID)
	if err != nil {
		respondError(ctx, w, notFoundAs(err, resource))
		return
	}

	message := resource + " unliked"
	if liked {
		message = resource + " liked"
	}
	respondJSON(ctx, w, http.StatusOK, likeResponse{IsLiked: liked}, message)
}

// LikedVideos handles GET /api/v1/likes/videos.
func (h LikeHandler) LikedVideos(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	caller, err := callerFrom(r)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	liked, err := h.Likes.LikedVideos(ctx, caller.ID)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, liked, "liked videos fetched successfully")
}

type likeResponse struct {
	IsLiked bool `json:"isLiked"`
}
